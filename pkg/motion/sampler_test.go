package motion

import (
	"math"
	"testing"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestSamplerSpeedFromDistance(t *testing.T) {
	s := NewSampler(99.0)
	s.Reset(Vector3{X: 0, Y: 0, Z: 0})

	// 3 units in 0.1s -> 30 units/s
	speed := s.Sample(Vector3{X: 3, Y: 0, Z: 0}, 0.1)
	if !almostEqual(speed, 30.0) {
		t.Errorf("Expected speed 30.0, got %f", speed)
	}

	// Previous position advanced: another 3 units in 0.1s
	speed = s.Sample(Vector3{X: 6, Y: 0, Z: 0}, 0.1)
	if !almostEqual(speed, 30.0) {
		t.Errorf("Expected speed 30.0 after position update, got %f", speed)
	}

	// No movement -> zero speed
	speed = s.Sample(Vector3{X: 6, Y: 0, Z: 0}, 0.1)
	if !almostEqual(speed, 0.0) {
		t.Errorf("Expected speed 0.0 for no movement, got %f", speed)
	}
}

func TestSamplerEuclideanDistance(t *testing.T) {
	s := NewSampler(99.0)
	s.Reset(Vector3{X: 1, Y: 2, Z: 3})

	// Displacement (2,3,6) has length 7
	speed := s.Sample(Vector3{X: 3, Y: 5, Z: 9}, 1.0)
	if !almostEqual(speed, 7.0) {
		t.Errorf("Expected speed 7.0, got %f", speed)
	}
}

func TestSamplerZeroDeltaReturnsLastSpeed(t *testing.T) {
	s := NewSampler(99.0)
	s.Reset(Vector3{})

	speed := s.Sample(Vector3{X: 3, Y: 0, Z: 0}, 0.1)
	if !almostEqual(speed, 30.0) {
		t.Fatalf("Expected speed 30.0, got %f", speed)
	}

	// Zero delta: previous speed is reused, no state change
	speed = s.Sample(Vector3{X: 100, Y: 0, Z: 0}, 0)
	if !almostEqual(speed, 30.0) {
		t.Errorf("Expected reused speed 30.0 for zero delta, got %f", speed)
	}

	// Negative delta behaves the same way
	speed = s.Sample(Vector3{X: 200, Y: 0, Z: 0}, -0.5)
	if !almostEqual(speed, 30.0) {
		t.Errorf("Expected reused speed 30.0 for negative delta, got %f", speed)
	}

	// The skipped samples must not have advanced the previous position
	speed = s.Sample(Vector3{X: 4, Y: 0, Z: 0}, 0.1)
	if !almostEqual(speed, 10.0) {
		t.Errorf("Expected speed 10.0 from unmodified previous position, got %f", speed)
	}
}

func TestSamplerClampsToCap(t *testing.T) {
	s := NewSampler(99.0)
	s.Reset(Vector3{})

	// 500 units in 1s -> clamped to 99
	speed := s.Sample(Vector3{X: 500, Y: 0, Z: 0}, 1.0)
	if !almostEqual(speed, 99.0) {
		t.Errorf("Expected clamped speed 99.0, got %f", speed)
	}

	if !almostEqual(s.LastSpeed(), 99.0) {
		t.Errorf("Expected stored speed 99.0, got %f", s.LastSpeed())
	}
}

func TestSamplerResetClearsState(t *testing.T) {
	s := NewSampler(99.0)
	s.Sample(Vector3{X: 10, Y: 0, Z: 0}, 0.1)

	s.Reset(Vector3{X: 50, Y: 0, Z: 0})
	if s.LastSpeed() != 0 {
		t.Errorf("Expected zero speed after reset, got %f", s.LastSpeed())
	}

	// Distance measured from the reset position, not the stale one
	speed := s.Sample(Vector3{X: 51, Y: 0, Z: 0}, 1.0)
	if !almostEqual(speed, 1.0) {
		t.Errorf("Expected speed 1.0 from reset position, got %f", speed)
	}
}

package motion

// Sampler turns per-tick position samples into a scalar speed estimate in
// engine-units per second. It keeps the previous position as its only
// state and must be owned by exactly one goroutine.
type Sampler struct {
	speedCap  float64
	prev      Vector3
	lastSpeed float64
}

// NewSampler creates a sampler with the given speed cap. The first Sample
// call measures distance from the origin unless Reset is called with a
// starting position.
func NewSampler(speedCap float64) *Sampler {
	return &Sampler{speedCap: speedCap}
}

// Reset seeds the previous position and clears the stored speed. Used when
// a motion source (re)appears so the first real tick does not register the
// jump from the stale position.
func (s *Sampler) Reset(position Vector3) {
	s.prev = position
	s.lastSpeed = 0
}

// Sample ingests one tick and returns the speed estimate.
//
// delta is the tick duration in seconds. A zero or negative delta returns
// the previously stored speed unchanged; hosts report delta=0 on the first
// frame or when paused, and that is not an error.
func (s *Sampler) Sample(position Vector3, delta float64) float64 {
	if delta <= 0 {
		return s.lastSpeed
	}

	speed := position.Distance(s.prev) / delta
	if speed > s.speedCap {
		speed = s.speedCap
	}

	s.prev = position
	s.lastSpeed = speed
	return speed
}

// LastSpeed returns the most recent speed estimate
func (s *Sampler) LastSpeed() float64 {
	return s.lastSpeed
}

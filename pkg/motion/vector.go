package motion

import "math"

// Vector3 is a plain 3D position in engine units. Host-side scene-graph
// types never cross this boundary; engine plugins serialize to x/y/z.
type Vector3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Sub returns the component-wise difference v - other
func (v Vector3) Sub(other Vector3) Vector3 {
	return Vector3{
		X: v.X - other.X,
		Y: v.Y - other.Y,
		Z: v.Z - other.Z,
	}
}

// Mag returns the euclidean length of the vector
func (v Vector3) Mag() float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
}

// Distance returns the euclidean distance between two positions
func (v Vector3) Distance(other Vector3) float64 {
	return v.Sub(other).Mag()
}

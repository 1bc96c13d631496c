package motion

import "fmt"

// Frame is one tick's motion sample for a single actor, as produced by a
// host engine. Delta is the tick duration in seconds; hosts may report 0
// on their first frame or while paused.
type Frame struct {
	ActorID  string  `json:"actor_id"`
	Position Vector3 `json:"position"`
	Delta    float64 `json:"delta"`
}

// Validate checks the frame for fields no host should ever produce. A
// zero delta is legal (the sampler reuses the last speed); a missing actor
// id is not.
func (f Frame) Validate() error {
	if f.ActorID == "" {
		return fmt.Errorf("motion frame is missing actor_id")
	}
	return nil
}

package dispatch

import "time"

// IntensityCommand is a normalized instruction for one device channel.
// Intensity is always within [0,1]. Commands are value types constructed
// fresh per emission.
type IntensityCommand struct {
	Channel   int     `json:"channel"`
	Intensity float64 `json:"intensity"`
}

// Dispatcher gates intensity emissions by a minimum wall-clock interval.
// One instance serves one logical device; its state is owned by a single
// goroutine, so there is no internal locking.
//
// The caller protocol is offer-then-commit: Offer decides whether an
// emission is due and builds the commands, and Commit records the emission
// time only after the caller confirms the downstream send succeeded. A
// failed send skips Commit, which leaves the limiter armed so the next
// tick retries naturally.
type Dispatcher struct {
	channels      int
	minInterval   time.Duration
	normalization float64
	lastEmission  time.Time
}

// NewDispatcher creates a dispatcher emitting on the given number of
// channels, at most once per minInterval. Speed is divided by
// normalization to produce intensity.
func NewDispatcher(channels int, minInterval time.Duration, normalization float64) *Dispatcher {
	if channels < 1 {
		channels = 1
	}
	return &Dispatcher{
		channels:      channels,
		minInterval:   minInterval,
		normalization: normalization,
	}
}

// Offer proposes a speed sample at the given time. It returns the commands
// to send and true when the minimum interval has elapsed since the last
// committed emission, or nil and false when the sample is suppressed.
// Suppression changes no state; ticks arriving faster than the interval
// are dropped, never queued.
func (d *Dispatcher) Offer(speed float64, now time.Time) ([]IntensityCommand, bool) {
	if !d.lastEmission.IsZero() && now.Sub(d.lastEmission) < d.minInterval {
		return nil, false
	}

	intensity := speed / d.normalization
	if intensity < 0 {
		intensity = 0
	} else if intensity > 1 {
		intensity = 1
	}

	commands := make([]IntensityCommand, d.channels)
	for i := range commands {
		commands[i] = IntensityCommand{Channel: i, Intensity: intensity}
	}
	return commands, true
}

// Commit records a successful emission. Call exactly once per accepted
// Offer whose commands were actually delivered.
func (d *Dispatcher) Commit(now time.Time) {
	d.lastEmission = now
}

// Stop builds zero-intensity commands for every channel, bypassing the
// rate limiter. Used at shutdown so a device is never left running.
func (d *Dispatcher) Stop() []IntensityCommand {
	commands := make([]IntensityCommand, d.channels)
	for i := range commands {
		commands[i] = IntensityCommand{Channel: i, Intensity: 0}
	}
	return commands
}

package processing

import (
	"fmt"
	"sync"

	customlog "github.com/haptic-link/controller/pkg/log"
	"github.com/haptic-link/controller/pkg/motion"
)

// FrameDirector is the single entry point both tick transports (WebSocket
// ingest and the ZeroMQ listener) feed into. It validates frames, counts
// arrivals per actor and routes them into the frame pool.
type FrameDirector struct {
	logger customlog.Logger
	pool   *FramePool

	mu       sync.RWMutex
	running  bool
	received map[string]int64
}

// NewFrameDirector creates a director routing into the given pool
func NewFrameDirector(pool *FramePool, logger customlog.Logger) *FrameDirector {
	return &FrameDirector{
		logger:   logger,
		pool:     pool,
		received: make(map[string]int64),
	}
}

// Start starts the director and its pool
func (d *FrameDirector) Start() {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return
	}
	d.running = true
	d.mu.Unlock()

	d.pool.Start()
	d.logger.Infof("Frame director started")
}

// Stop stops the director and drains the pool
func (d *FrameDirector) Stop() {
	d.mu.Lock()
	running := d.running
	d.running = false
	d.mu.Unlock()

	if !running {
		return
	}

	d.pool.Stop()
	d.logger.Infof("Frame director stopped")
}

// RouteFrame validates and enqueues one motion frame
func (d *FrameDirector) RouteFrame(frame motion.Frame) error {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return fmt.Errorf("frame director is not running")
	}
	d.received[frame.ActorID]++
	d.mu.Unlock()

	if err := frame.Validate(); err != nil {
		return fmt.Errorf("rejecting motion frame: %w", err)
	}

	if !d.pool.Enqueue(frame) {
		return fmt.Errorf("failed to enqueue frame for actor '%s'", frame.ActorID)
	}
	return nil
}

// FrameCounts returns a snapshot of frames received per actor
func (d *FrameDirector) FrameCounts() map[string]int64 {
	d.mu.RLock()
	defer d.mu.RUnlock()

	counts := make(map[string]int64, len(d.received))
	for actor, n := range d.received {
		counts[actor] = n
	}
	return counts
}

// PoolMetrics returns the underlying pool metrics
func (d *FrameDirector) PoolMetrics() PoolMetrics {
	return d.pool.GetMetrics()
}

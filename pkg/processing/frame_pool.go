package processing

import (
	"sync"
	"time"

	customlog "github.com/haptic-link/controller/pkg/log"
	"github.com/haptic-link/controller/pkg/motion"
)

// FrameHandler consumes one motion frame. The pool guarantees that frames
// for the same actor are handled sequentially on a single goroutine, which
// keeps per-actor sampler and dispatcher state single-owner.
type FrameHandler func(frame motion.Frame)

// PoolMetrics tracks metrics for the frame pool
type PoolMetrics struct {
	ProcessedCount    int64
	DroppedCount      int64
	LastProcessedTime int64
	ProcessingTimeAvg int64 // in microseconds
	ProcessingTimeMax int64 // in microseconds
	mu                sync.Mutex
}

// FramePool fans motion frames out to one serial worker per actor. Queues
// are bounded; a frame arriving while its actor's queue is full is
// dropped, not queued behind stale motion.
type FramePool struct {
	queueSize int
	logger    customlog.Logger
	handler   FrameHandler
	metrics   *PoolMetrics

	mu      sync.Mutex
	queues  map[string]chan motion.Frame
	running bool
	wg      sync.WaitGroup
}

// NewFramePool creates a frame pool with the given per-actor queue size
func NewFramePool(queueSize int, logger customlog.Logger) *FramePool {
	if queueSize <= 0 {
		queueSize = 64
	}
	return &FramePool{
		queueSize: queueSize,
		logger:    logger,
		queues:    make(map[string]chan motion.Frame),
		metrics:   &PoolMetrics{},
	}
}

// SetHandler sets the frame handler. Must be called before Start.
func (p *FramePool) SetHandler(handler FrameHandler) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handler = handler
}

// Start marks the pool as running. Workers are spawned lazily, one per
// actor, on the first frame for that actor.
func (p *FramePool) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return
	}
	p.running = true
	p.logger.Infof("Frame pool started (queue size %d per actor)", p.queueSize)
}

// Stop closes all actor queues and waits for the workers to drain
func (p *FramePool) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	queues := p.queues
	p.queues = make(map[string]chan motion.Frame)
	p.mu.Unlock()

	for _, q := range queues {
		close(q)
	}
	p.wg.Wait()

	p.logMetrics()
}

// Enqueue hands a frame to its actor's worker. Returns false when the pool
// is not running or the actor's queue is full.
func (p *FramePool) Enqueue(frame motion.Frame) bool {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		p.logger.Warnf("Frame pool not running, discarding frame for actor '%s'", frame.ActorID)
		return false
	}

	q, exists := p.queues[frame.ActorID]
	if !exists {
		q = make(chan motion.Frame, p.queueSize)
		p.queues[frame.ActorID] = q
		p.wg.Add(1)
		go p.worker(frame.ActorID, q)
	}

	// The non-blocking send happens under the lock: Stop clears running
	// before it closes any queue, so a send can never hit a closed channel.
	select {
	case q <- frame:
		p.mu.Unlock()
		return true
	default:
		p.mu.Unlock()
		p.metrics.mu.Lock()
		p.metrics.DroppedCount++
		p.metrics.mu.Unlock()
		p.logger.Debugf("Queue full for actor '%s', dropping frame", frame.ActorID)
		return false
	}
}

// worker drains one actor's queue
func (p *FramePool) worker(actorID string, q chan motion.Frame) {
	defer p.wg.Done()

	p.logger.Debugf("Frame worker started for actor '%s'", actorID)

	for frame := range q {
		p.mu.Lock()
		handler := p.handler
		p.mu.Unlock()

		if handler == nil {
			p.logger.Errorf("No frame handler set, discarding frame for actor '%s'", actorID)
			continue
		}

		startTime := time.Now()
		handler(frame)
		processingTime := time.Since(startTime).Microseconds()

		p.metrics.mu.Lock()
		p.metrics.ProcessedCount++
		p.metrics.LastProcessedTime = time.Now().UnixNano()
		if p.metrics.ProcessingTimeAvg == 0 {
			p.metrics.ProcessingTimeAvg = processingTime
		} else {
			// Simple moving average
			p.metrics.ProcessingTimeAvg = (p.metrics.ProcessingTimeAvg + processingTime) / 2
		}
		if processingTime > p.metrics.ProcessingTimeMax {
			p.metrics.ProcessingTimeMax = processingTime
		}
		p.metrics.mu.Unlock()
	}

	p.logger.Debugf("Frame worker stopped for actor '%s'", actorID)
}

// GetMetrics returns a copy of the current metrics
func (p *FramePool) GetMetrics() PoolMetrics {
	p.metrics.mu.Lock()
	defer p.metrics.mu.Unlock()

	return PoolMetrics{
		ProcessedCount:    p.metrics.ProcessedCount,
		DroppedCount:      p.metrics.DroppedCount,
		LastProcessedTime: p.metrics.LastProcessedTime,
		ProcessingTimeAvg: p.metrics.ProcessingTimeAvg,
		ProcessingTimeMax: p.metrics.ProcessingTimeMax,
	}
}

// ActiveActors returns the number of actors with a live worker
func (p *FramePool) ActiveActors() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queues)
}

// logMetrics logs the final metrics
func (p *FramePool) logMetrics() {
	metrics := p.GetMetrics()

	p.logger.Infof("Frame pool metrics: processed=%d, dropped=%d, avg_time=%dµs, max_time=%dµs",
		metrics.ProcessedCount, metrics.DroppedCount,
		metrics.ProcessingTimeAvg, metrics.ProcessingTimeMax)
}

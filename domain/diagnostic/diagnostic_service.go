package diagnostic

import (
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/haptic-link/controller/pkg/processing"
)

// ConnectionStatus reports the device server connection state.
// Implemented by device.Client.
type ConnectionStatus interface {
	IsConnected() bool
}

// DeviceCounter reports how many devices the server currently announces.
// Implemented by device.Registry.
type DeviceCounter interface {
	Count() int
}

// LinkMetrics is the accumulated accounting for the motion-to-haptics link
type LinkMetrics struct {
	FramesHandled      int64            `json:"frames_handled"`
	CommandsSent       int64            `json:"commands_sent"`
	CommandsSuppressed int64            `json:"commands_suppressed"`
	SendFailures       int64            `json:"send_failures"`
	LastFrameTime      time.Time        `json:"last_frame_time"`
	FramesPerActor     map[string]int64 `json:"frames_per_actor"`
}

// DiagnosticService aggregates link accounting, connection state and frame
// pipeline metrics for the diagnostics endpoint. It receives the per-tick
// callbacks from the bridge service.
type DiagnosticService struct {
	mu       sync.RWMutex
	metrics  LinkMetrics
	conn     ConnectionStatus
	devices  DeviceCounter
	pipeline *processing.FrameDirector
}

// NewDiagnosticService creates a diagnostic service. pipeline may be nil
// when no frame director is wired yet.
func NewDiagnosticService(conn ConnectionStatus, devices DeviceCounter, pipeline *processing.FrameDirector) *DiagnosticService {
	return &DiagnosticService{
		conn:     conn,
		devices:  devices,
		pipeline: pipeline,
		metrics: LinkMetrics{
			FramesPerActor: make(map[string]int64),
		},
	}
}

// SetPipeline wires the frame director after construction
func (s *DiagnosticService) SetPipeline(pipeline *processing.FrameDirector) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pipeline = pipeline
}

// FrameHandled records one handled motion frame
func (s *DiagnosticService) FrameHandled(actorID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metrics.FramesHandled++
	s.metrics.LastFrameTime = time.Now()
	s.metrics.FramesPerActor[actorID]++
}

// CommandSent records one delivered intensity command
func (s *DiagnosticService) CommandSent() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metrics.CommandsSent++
}

// CommandSuppressed records one rate-limited emission
func (s *DiagnosticService) CommandSuppressed() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metrics.CommandsSuppressed++
}

// SendFailed records one transient send failure
func (s *DiagnosticService) SendFailed() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metrics.SendFailures++
}

// GetMetrics returns a copy of the current link metrics
func (s *DiagnosticService) GetMetrics() LinkMetrics {
	s.mu.RLock()
	defer s.mu.RUnlock()

	metrics := s.metrics
	metrics.FramesPerActor = make(map[string]int64, len(s.metrics.FramesPerActor))
	for actor, n := range s.metrics.FramesPerActor {
		metrics.FramesPerActor[actor] = n
	}
	return metrics
}

// GetMetricsHandler handles API requests for link diagnostics
func (s *DiagnosticService) GetMetricsHandler(c *fiber.Ctx) error {
	s.mu.RLock()
	pipeline := s.pipeline
	s.mu.RUnlock()

	response := fiber.Map{
		"status":           "success",
		"link":             s.GetMetrics(),
		"server_connected": s.conn.IsConnected(),
		"device_count":     s.devices.Count(),
	}

	if pipeline != nil {
		response["pipeline"] = pipeline.PoolMetrics()
		response["frames_received"] = pipeline.FrameCounts()
	}

	return c.JSON(response)
}

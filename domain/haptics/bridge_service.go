package haptics

import (
	"sync"
	"time"

	"github.com/haptic-link/controller/pkg/config"
	"github.com/haptic-link/controller/pkg/device"
	"github.com/haptic-link/controller/pkg/dispatch"
	customlog "github.com/haptic-link/controller/pkg/log"
	"github.com/haptic-link/controller/pkg/motion"
)

// CommandSink is the device-side boundary: an opaque transport that
// delivers commands to the device-control server. Implemented by
// device.Client.
type CommandSink interface {
	IsConnected() bool
	SendIntensity(dev device.Handle, commands []dispatch.IntensityCommand) error
	SendStop(dev device.Handle) error
}

// DeviceSource enumerates the devices the server currently announces.
// Implemented by device.Registry.
type DeviceSource interface {
	Devices() []device.Handle
	DevicesWithCapability(capability string, name string) []device.Handle
}

// LinkStats receives per-tick accounting. Implemented by the diagnostic
// service; a nil stats receiver disables accounting.
type LinkStats interface {
	FrameHandled(actorID string)
	CommandSent()
	CommandSuppressed()
	SendFailed()
}

// actorState is the per-actor pipeline: one sampler plus one dispatcher
// per device the actor currently drives. The state mutex serializes the
// actor's frame worker against config updates, which retire the state
// from another goroutine. mapping is immutable after creation.
type actorState struct {
	mu          sync.Mutex
	mapping     config.ActorMapping
	sampler     *motion.Sampler
	seeded      bool
	retired     bool
	dispatchers map[int]*dispatch.Dispatcher
}

// BridgeService translates actor motion into rate-limited intensity
// commands. HandleFrame implements the tick control flow: connected-check,
// speed sampling, offer, send, commit.
type BridgeService struct {
	sink    CommandSink
	devices DeviceSource
	logger  customlog.Logger
	stats   LinkStats
	now     func() time.Time

	mu     sync.RWMutex
	cfg    *config.Config
	actors map[string]*actorState
}

// NewBridgeService creates a bridge for the given operational config.
// stats may be nil.
func NewBridgeService(cfg *config.Config, sink CommandSink, devices DeviceSource, stats LinkStats, logger customlog.Logger) *BridgeService {
	return &BridgeService{
		sink:    sink,
		devices: devices,
		logger:  logger,
		stats:   stats,
		now:     time.Now,
		cfg:     cfg,
		actors:  make(map[string]*actorState),
	}
}

// HandleFrame processes one motion frame. Every failure mode degrades to
// "skip this tick": unknown actors, a disconnected device server and
// transient send failures are all non-fatal.
func (s *BridgeService) HandleFrame(frame motion.Frame) {
	state := s.actorFor(frame.ActorID)
	if state == nil {
		s.logger.Debugf("No mapping for actor '%s', ignoring frame", frame.ActorID)
		return
	}

	state.mu.Lock()
	defer state.mu.Unlock()

	if state.retired {
		// A config update retired this state mid-flight; the next frame
		// resolves the replacement (if any) through actorFor.
		return
	}

	if s.stats != nil {
		s.stats.FrameHandled(frame.ActorID)
	}

	if !s.sink.IsConnected() {
		// Forget the seed so the first frame after reconnect does not
		// register the whole offline displacement as one tick's movement.
		state.seeded = false
		return
	}

	if !state.seeded {
		// First frame for this actor (or first after a reconnect) only
		// seeds the previous position; there is no speed to report yet.
		state.sampler.Reset(frame.Position)
		state.seeded = true
		return
	}

	speed := state.sampler.Sample(frame.Position, frame.Delta)

	targets := s.devices.DevicesWithCapability(state.mapping.Capability, state.mapping.DeviceName)
	for _, dev := range targets {
		disp := s.dispatcherFor(state, dev)

		commands, ok := disp.Offer(speed, s.now())
		if !ok {
			if s.stats != nil {
				s.stats.CommandSuppressed()
			}
			continue
		}

		if err := s.sink.SendIntensity(dev, commands); err != nil {
			// No commit: the limiter stays open and the next tick retries
			s.logger.Warnf("Send to device %d (%s) failed: %v", dev.Index, dev.Name, err)
			if s.stats != nil {
				s.stats.SendFailed()
			}
			continue
		}

		disp.Commit(s.now())
		if s.stats != nil {
			s.stats.CommandSent()
		}
	}
}

// Reconfigure applies an updated operational config. Actors that survive
// keep their sampler state; actors that disappear get their devices
// stopped.
func (s *BridgeService) Reconfigure(cfg *config.Config) {
	s.mu.Lock()
	s.cfg = cfg

	for actorID, state := range s.actors {
		mapping, found := cfg.GetActorMapping(actorID)
		if !found {
			s.retireActor(state)
			delete(s.actors, actorID)
			s.logger.Infof("Actor '%s' removed from config, devices stopped", actorID)
			continue
		}
		if mapping != state.mapping {
			// Tuning changed: zero the old dispatchers' devices, then
			// replace the whole pipeline state. The actor's worker picks up
			// the new pointer on its next frame.
			s.retireActor(state)
			s.actors[actorID] = &actorState{
				mapping:     mapping,
				sampler:     motion.NewSampler(mapping.SpeedCap),
				dispatchers: make(map[int]*dispatch.Dispatcher),
			}
			s.logger.Infof("Actor '%s' mapping updated", actorID)
		}
	}
	s.mu.Unlock()
}

// Shutdown emits the terminal zero-intensity command for every device each
// actor drove, then a server-side stop for every device still announced.
// Called once before the device client disconnects.
func (s *BridgeService) Shutdown() {
	s.mu.Lock()
	for _, state := range s.actors {
		s.retireActor(state)
	}
	s.actors = make(map[string]*actorState)
	s.mu.Unlock()

	for _, dev := range s.devices.Devices() {
		if err := s.sink.SendStop(dev); err != nil {
			s.logger.Warnf("Stop for device %d (%s) failed: %v", dev.Index, dev.Name, err)
		}
	}
}

// retireActor marks the state stale and sends zero intensity to every
// device the actor has a dispatcher for. Stop bypasses the rate limiter by
// contract. Taking the state lock here means a concurrent frame worker
// either finishes its tick first or observes the retirement; the caller
// holds s.mu, never the other way around.
func (s *BridgeService) retireActor(state *actorState) {
	state.mu.Lock()
	defer state.mu.Unlock()

	state.retired = true
	for index, disp := range state.dispatchers {
		dev, ok := s.deviceByIndex(index)
		if !ok {
			continue // device already gone
		}
		if err := s.sink.SendIntensity(dev, disp.Stop()); err != nil {
			s.logger.Warnf("Zero-intensity send to device %d failed: %v", index, err)
		}
	}
}

// actorFor returns the pipeline state for an actor, creating it on first
// use when the actor is configured
func (s *BridgeService) actorFor(actorID string) *actorState {
	s.mu.RLock()
	state, exists := s.actors[actorID]
	s.mu.RUnlock()
	if exists {
		return state
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if state, exists = s.actors[actorID]; exists {
		return state
	}

	mapping, found := s.cfg.GetActorMapping(actorID)
	if !found {
		return nil
	}

	state = &actorState{
		mapping:     mapping,
		sampler:     motion.NewSampler(mapping.SpeedCap),
		dispatchers: make(map[int]*dispatch.Dispatcher),
	}
	s.actors[actorID] = state
	s.logger.Infof("Actor '%s' pipeline created (capability=%s, interval=%dms)",
		actorID, mapping.Capability, mapping.MinCommandIntervalMs)
	return state
}

// dispatcherFor returns the actor's dispatcher for a device, creating it
// lazily when the device first appears
func (s *BridgeService) dispatcherFor(state *actorState, dev device.Handle) *dispatch.Dispatcher {
	if disp, exists := state.dispatchers[dev.Index]; exists {
		return disp
	}

	channels := dev.Channels
	if channels < 1 {
		channels = 1
	}
	disp := dispatch.NewDispatcher(
		channels,
		time.Duration(state.mapping.MinCommandIntervalMs)*time.Millisecond,
		state.mapping.NormalizationFactor,
	)
	state.dispatchers[dev.Index] = disp
	return disp
}

// deviceByIndex finds a known device by server index
func (s *BridgeService) deviceByIndex(index int) (device.Handle, bool) {
	for _, dev := range s.devices.Devices() {
		if dev.Index == index {
			return dev, true
		}
	}
	return device.Handle{}, false
}

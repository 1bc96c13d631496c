package device

import "sync"

// Registry tracks the devices currently announced by the device server.
// It is safe for concurrent use; the read pump updates it while the bridge
// iterates it per tick.
type Registry struct {
	mu      sync.RWMutex
	devices map[int]Handle
}

// NewRegistry creates an empty device registry
func NewRegistry() *Registry {
	return &Registry{devices: make(map[int]Handle)}
}

// Replace swaps the full device set for the given list. Used when the
// server answers a device_list request (including after a reconnect, when
// indices may have been reassigned).
func (r *Registry) Replace(devices []Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.devices = make(map[int]Handle, len(devices))
	for _, dev := range devices {
		r.devices[dev.Index] = dev
	}
}

// Add inserts or updates a single device announcement
func (r *Registry) Add(dev Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.devices[dev.Index] = dev
}

// Remove drops a device by server index
func (r *Registry) Remove(index int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.devices, index)
}

// Get returns a device by server index
func (r *Registry) Get(index int) (Handle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	dev, ok := r.devices[index]
	return dev, ok
}

// Devices returns a snapshot of all known devices
func (r *Registry) Devices() []Handle {
	r.mu.RLock()
	defer r.mu.RUnlock()

	devices := make([]Handle, 0, len(r.devices))
	for _, dev := range r.devices {
		devices = append(devices, dev)
	}
	return devices
}

// DevicesWithCapability returns a snapshot of devices announcing the given
// capability, optionally narrowed to a single device name. An empty name
// matches every device.
func (r *Registry) DevicesWithCapability(capability string, name string) []Handle {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var devices []Handle
	for _, dev := range r.devices {
		if !dev.HasCapability(capability) {
			continue
		}
		if name != "" && dev.Name != name {
			continue
		}
		devices = append(devices, dev)
	}
	return devices
}

// Count returns the number of known devices
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.devices)
}

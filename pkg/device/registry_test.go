package device

import "testing"

func testDevices() []Handle {
	return []Handle{
		{Index: 0, Name: "Wand", Channels: 1, Capabilities: []string{CapabilityVibrate}},
		{Index: 1, Name: "Tail Toy", Channels: 2, Capabilities: []string{CapabilityVibrate, CapabilityRotate}},
		{Index: 2, Name: "Base Station", Channels: 0, Capabilities: nil},
	}
}

func TestRegistryReplace(t *testing.T) {
	r := NewRegistry()
	r.Replace(testDevices())

	if r.Count() != 3 {
		t.Errorf("Expected 3 devices, got %d", r.Count())
	}

	dev, ok := r.Get(1)
	if !ok {
		t.Fatalf("Expected to find device 1")
	}
	if dev.Name != "Tail Toy" {
		t.Errorf("Expected Tail Toy, got %s", dev.Name)
	}

	// Replace drops devices absent from the new list
	r.Replace(testDevices()[:1])
	if r.Count() != 1 {
		t.Errorf("Expected 1 device after replace, got %d", r.Count())
	}
	if _, ok := r.Get(1); ok {
		t.Errorf("Expected device 1 to be gone after replace")
	}
}

func TestRegistryAddRemove(t *testing.T) {
	r := NewRegistry()

	r.Add(Handle{Index: 5, Name: "Cuff", Channels: 1, Capabilities: []string{CapabilityVibrate}})
	if r.Count() != 1 {
		t.Fatalf("Expected 1 device, got %d", r.Count())
	}

	// Re-adding the same index updates in place
	r.Add(Handle{Index: 5, Name: "Cuff v2", Channels: 2, Capabilities: []string{CapabilityVibrate}})
	if r.Count() != 1 {
		t.Errorf("Expected 1 device after update, got %d", r.Count())
	}
	dev, _ := r.Get(5)
	if dev.Channels != 2 {
		t.Errorf("Expected updated channel count 2, got %d", dev.Channels)
	}

	r.Remove(5)
	if r.Count() != 0 {
		t.Errorf("Expected empty registry after remove, got %d", r.Count())
	}
}

func TestDevicesWithCapability(t *testing.T) {
	r := NewRegistry()
	r.Replace(testDevices())

	vibrators := r.DevicesWithCapability(CapabilityVibrate, "")
	if len(vibrators) != 2 {
		t.Errorf("Expected 2 vibration devices, got %d", len(vibrators))
	}

	rotators := r.DevicesWithCapability(CapabilityRotate, "")
	if len(rotators) != 1 {
		t.Errorf("Expected 1 rotation device, got %d", len(rotators))
	}

	// Name filter narrows to a single device
	named := r.DevicesWithCapability(CapabilityVibrate, "Wand")
	if len(named) != 1 || named[0].Index != 0 {
		t.Errorf("Expected only the Wand, got %v", named)
	}

	// Devices without the capability never match, regardless of name
	none := r.DevicesWithCapability(CapabilityRotate, "Base Station")
	if len(none) != 0 {
		t.Errorf("Expected no matches for incapable device, got %v", none)
	}
}

func TestHandleHasCapability(t *testing.T) {
	dev := Handle{Index: 0, Capabilities: []string{CapabilityVibrate}}

	if !dev.HasCapability(CapabilityVibrate) {
		t.Errorf("Expected vibrate capability")
	}
	if dev.HasCapability(CapabilityRotate) {
		t.Errorf("Did not expect rotate capability")
	}
}

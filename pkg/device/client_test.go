package device

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/haptic-link/controller/pkg/config"
	"github.com/haptic-link/controller/pkg/dispatch"
	customlog "github.com/haptic-link/controller/pkg/log"
)

// fakeServer is a minimal in-process device-control server: it answers the
// handshake and device list request and records every command envelope.
type fakeServer struct {
	srv      *httptest.Server
	url      string
	devices  []Handle
	received chan clientMessage
}

func newFakeServer(t *testing.T, devices []Handle) *fakeServer {
	t.Helper()

	f := &fakeServer{
		devices:  devices,
		received: make(chan clientMessage, 32),
	}

	upgrader := websocket.Upgrader{}
	f.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		for {
			var msg clientMessage
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			f.received <- msg

			switch msg.Type {
			case MsgTypeHandshake:
				conn.WriteJSON(serverMessage{Type: MsgTypeHandshakeAck, ServerName: "fake-server"})
			case MsgTypeDeviceListRequest:
				conn.WriteJSON(serverMessage{Type: MsgTypeDeviceList, Devices: f.devices})
			}
		}
	}))
	f.url = "ws" + strings.TrimPrefix(f.srv.URL, "http")
	return f
}

func (f *fakeServer) close() {
	f.srv.Close()
}

func (f *fakeServer) next(t *testing.T) clientMessage {
	t.Helper()
	select {
	case msg := <-f.received:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatalf("Timed out waiting for client message")
		return clientMessage{}
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("Timed out waiting for %s", what)
}

func newTestClient(t *testing.T, url string) (*Client, *Registry) {
	t.Helper()
	logger, _ := customlog.NewLogrusLogger("error", "")
	registry := NewRegistry()
	client := NewClient(config.DeviceServerConfig{URL: url}, "test-client", registry, logger)
	return client, registry
}

func TestClientConnectHandshakeAndDeviceList(t *testing.T) {
	server := newFakeServer(t, []Handle{
		{Index: 0, Name: "Wand", Channels: 1, Capabilities: []string{CapabilityVibrate}},
	})
	defer server.close()

	client, registry := newTestClient(t, server.url)
	defer client.Disconnect()

	if client.IsConnected() {
		t.Fatalf("Expected client to start disconnected")
	}

	if err := client.Connect(); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	if !client.IsConnected() {
		t.Errorf("Expected client to report connected")
	}

	if msg := server.next(t); msg.Type != MsgTypeHandshake || msg.ClientName != "test-client" {
		t.Errorf("Expected handshake with client name, got %+v", msg)
	}
	if msg := server.next(t); msg.Type != MsgTypeDeviceListRequest {
		t.Errorf("Expected device list request, got %+v", msg)
	}

	// Device list is applied asynchronously by the read pump
	waitFor(t, "device list", func() bool { return registry.Count() == 1 })

	dev, ok := registry.Get(0)
	if !ok || dev.Name != "Wand" {
		t.Errorf("Expected Wand in registry, got %+v", dev)
	}
}

func TestClientSendIntensity(t *testing.T) {
	dev := Handle{Index: 2, Name: "Dual", Channels: 2, Capabilities: []string{CapabilityVibrate}}
	server := newFakeServer(t, []Handle{dev})
	defer server.close()

	client, _ := newTestClient(t, server.url)
	defer client.Disconnect()

	if err := client.Connect(); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	server.next(t) // handshake
	server.next(t) // device list request

	commands := []dispatch.IntensityCommand{
		{Channel: 0, Intensity: 0.3},
		{Channel: 1, Intensity: 0.3},
	}
	if err := client.SendIntensity(dev, commands); err != nil {
		t.Fatalf("SendIntensity failed: %v", err)
	}

	msg := server.next(t)
	if msg.Type != MsgTypeVibrate {
		t.Fatalf("Expected vibrate message, got %s", msg.Type)
	}
	if msg.DeviceIndex != 2 {
		t.Errorf("Expected device index 2, got %d", msg.DeviceIndex)
	}
	if len(msg.Channels) != 2 || msg.Channels[1].Intensity != 0.3 {
		t.Errorf("Expected two channel levels at 0.3, got %+v", msg.Channels)
	}
	if msg.ID == "" {
		t.Errorf("Expected a message id on the envelope")
	}

	if err := client.SendStop(dev); err != nil {
		t.Fatalf("SendStop failed: %v", err)
	}
	if msg := server.next(t); msg.Type != MsgTypeStopDevice || msg.DeviceIndex != 2 {
		t.Errorf("Expected stop_device for index 2, got %+v", msg)
	}
}

func TestClientSendWhileDisconnected(t *testing.T) {
	client, _ := newTestClient(t, "ws://127.0.0.1:1/ws")

	err := client.SendIntensity(Handle{Index: 0}, []dispatch.IntensityCommand{{Channel: 0, Intensity: 0.5}})
	if err != ErrNotConnected {
		t.Errorf("Expected ErrNotConnected, got %v", err)
	}
}

func TestClientDisconnectStopsClient(t *testing.T) {
	server := newFakeServer(t, nil)
	defer server.close()

	client, _ := newTestClient(t, server.url)
	if err := client.Connect(); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	client.Disconnect()
	if client.IsConnected() {
		t.Errorf("Expected disconnected after Disconnect")
	}

	if err := client.Connect(); err != ErrClientClosed {
		t.Errorf("Expected ErrClientClosed after Disconnect, got %v", err)
	}
}

func TestEnvelopeRoundTrip(t *testing.T) {
	// Registry updates driven by raw server payloads, as the read pump
	// would decode them
	payload := []byte(`{"type":"device_added","device":{"index":4,"name":"Cuff","channels":1,"capabilities":["vibrate"]}}`)

	var msg serverMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if msg.Type != MsgTypeDeviceAdded || msg.Device == nil {
		t.Fatalf("Unexpected decode: %+v", msg)
	}
	if !msg.Device.HasCapability(CapabilityVibrate) {
		t.Errorf("Expected decoded device to announce vibrate")
	}
}

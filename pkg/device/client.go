package device

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/haptic-link/controller/pkg/config"
	"github.com/haptic-link/controller/pkg/dispatch"
	customlog "github.com/haptic-link/controller/pkg/log"
)

// Common errors
var (
	ErrNotConnected = errors.New("device server not connected")
	ErrClientClosed = errors.New("device client is closed")
)

// Client maintains the WebSocket connection to the external device-control
// server. It owns the connection lifecycle (connect, reconnect with
// exponential backoff, disconnect), keeps the Registry in sync with the
// server's device announcements, and acts as the command sink.
//
// Send failures are transient by contract: callers leave their dispatch
// state uncommitted and retry on the next eligible tick.
type Client struct {
	url          string
	clientName   string
	reconnectMin time.Duration
	reconnectMax time.Duration
	registry     *Registry
	logger       customlog.Logger

	mu        sync.Mutex // guards conn, connected, closed and writes
	conn      *websocket.Conn
	connected bool
	closed    bool
}

// NewClient creates a device server client. Connect must be called before
// any send.
func NewClient(cfg config.DeviceServerConfig, clientName string, registry *Registry, logger customlog.Logger) *Client {
	reconnectMin := time.Duration(cfg.ReconnectMinMs) * time.Millisecond
	if reconnectMin <= 0 {
		reconnectMin = 500 * time.Millisecond
	}
	reconnectMax := time.Duration(cfg.ReconnectMaxMs) * time.Millisecond
	if reconnectMax <= 0 {
		reconnectMax = 30 * time.Second
	}

	return &Client{
		url:          cfg.URL,
		clientName:   clientName,
		reconnectMin: reconnectMin,
		reconnectMax: reconnectMax,
		registry:     registry,
		logger:       logger,
	}
}

// Connect dials the device server, performs the handshake, requests the
// initial device list and starts the read pump.
func (c *Client) Connect() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClientClosed
	}
	if c.connected {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	if err := c.dial(); err != nil {
		return err
	}

	go c.readPump()
	return nil
}

// ConnectWithRetry dials the device server with exponential backoff until
// it succeeds or the client is closed. Blocks; run it on its own goroutine
// when the rest of startup should not wait for the server.
func (c *Client) ConnectWithRetry() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClientClosed
	}
	if c.connected {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	if !c.reconnect() {
		return ErrClientClosed
	}

	go c.readPump()
	return nil
}

// dial establishes the connection and sends the handshake and device list
// request. The caller must not hold the mutex.
func (c *Client) dial() error {
	conn, _, err := websocket.DefaultDialer.Dial(c.url, nil)
	if err != nil {
		return fmt.Errorf("failed to dial device server %s: %w", c.url, err)
	}

	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.mu.Unlock()

	if err := c.writeMessage(clientMessage{
		ID:         uuid.NewString(),
		Type:       MsgTypeHandshake,
		ClientName: c.clientName,
	}); err != nil {
		c.markDisconnected()
		return fmt.Errorf("handshake failed: %w", err)
	}

	if err := c.RequestDeviceList(); err != nil {
		c.markDisconnected()
		return fmt.Errorf("device list request failed: %w", err)
	}

	c.logger.Infof("Connected to device server %s", c.url)
	return nil
}

// IsConnected reports whether the connection is currently up. The bridge
// checks this before each tick and skips all work when false.
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// Disconnect closes the connection and stops any reconnect attempts.
func (c *Client) Disconnect() {
	c.mu.Lock()
	c.closed = true
	conn := c.conn
	c.conn = nil
	c.connected = false
	c.mu.Unlock()

	if conn != nil {
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		conn.Close()
	}
	c.logger.Infof("Disconnected from device server")
}

// RequestDeviceList asks the server to announce its current device set.
// The registry is updated asynchronously when the answer arrives.
func (c *Client) RequestDeviceList() error {
	return c.writeMessage(clientMessage{
		ID:   uuid.NewString(),
		Type: MsgTypeDeviceListRequest,
	})
}

// SendIntensity forwards intensity commands for one device. An error means
// the commands were not delivered; the caller must not commit its
// rate-limiter state.
func (c *Client) SendIntensity(dev Handle, commands []dispatch.IntensityCommand) error {
	levels := make([]channelLevel, len(commands))
	for i, cmd := range commands {
		levels[i] = channelLevel{Channel: cmd.Channel, Intensity: cmd.Intensity}
	}

	return c.writeMessage(clientMessage{
		ID:          uuid.NewString(),
		Type:        MsgTypeVibrate,
		DeviceIndex: dev.Index,
		Channels:    levels,
	})
}

// SendStop tells the server to halt all output on one device
func (c *Client) SendStop(dev Handle) error {
	return c.writeMessage(clientMessage{
		ID:          uuid.NewString(),
		Type:        MsgTypeStopDevice,
		DeviceIndex: dev.Index,
	})
}

// writeMessage serializes one envelope onto the connection. Writes are
// serialized by the client mutex; gorilla connections allow only one
// concurrent writer.
func (c *Client) writeMessage(msg clientMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClientClosed
	}
	if !c.connected || c.conn == nil {
		return ErrNotConnected
	}

	if err := c.conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("failed to send %s message: %w", msg.Type, err)
	}
	return nil
}

// markDisconnected tears down the current connection without closing the
// client
func (c *Client) markDisconnected() {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.connected = false
	c.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
}

// readPump consumes server messages until the connection drops. On an
// unexpected drop it reconnects with exponential backoff and resumes,
// unless Disconnect was called.
func (c *Client) readPump() {
	for {
		c.mu.Lock()
		conn := c.conn
		closed := c.closed
		c.mu.Unlock()

		if closed || conn == nil {
			return
		}

		var msg serverMessage
		if err := conn.ReadJSON(&msg); err != nil {
			c.mu.Lock()
			closed = c.closed
			c.mu.Unlock()
			if closed {
				return
			}

			c.logger.Warnf("Device server connection lost: %v", err)
			c.markDisconnected()

			if !c.reconnect() {
				return
			}
			continue
		}

		c.handleMessage(msg)
	}
}

// reconnect retries dial with exponential backoff until it succeeds or the
// client is closed. Returns false when the client was closed.
func (c *Client) reconnect() bool {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.reconnectMin
	policy.MaxInterval = c.reconnectMax
	policy.MaxElapsedTime = 0 // retry until closed

	err := backoff.Retry(func() error {
		c.mu.Lock()
		closed := c.closed
		c.mu.Unlock()
		if closed {
			return backoff.Permanent(ErrClientClosed)
		}

		c.logger.Infof("Reconnecting to device server %s...", c.url)
		if err := c.dial(); err != nil {
			c.logger.Warnf("Reconnect attempt failed: %v", err)
			return err
		}
		return nil
	}, policy)

	return err == nil
}

// handleMessage applies one server announcement to the registry
func (c *Client) handleMessage(msg serverMessage) {
	switch msg.Type {
	case MsgTypeHandshakeAck:
		c.logger.Infof("Device server handshake acknowledged by %s", msg.ServerName)
	case MsgTypeDeviceList:
		c.registry.Replace(msg.Devices)
		c.logger.Infof("Device list updated: %d device(s)", len(msg.Devices))
	case MsgTypeDeviceAdded:
		if msg.Device != nil {
			c.registry.Add(*msg.Device)
			c.logger.Infof("Device added: %s (index %d)", msg.Device.Name, msg.Device.Index)
		}
	case MsgTypeDeviceRemoved:
		c.registry.Remove(msg.DeviceIndex)
		c.logger.Infof("Device removed: index %d", msg.DeviceIndex)
	case MsgTypeError:
		c.logger.Errorf("Device server error: %s", msg.Message)
	default:
		c.logger.Debugf("Ignoring unknown device server message type: %s", msg.Type)
	}
}

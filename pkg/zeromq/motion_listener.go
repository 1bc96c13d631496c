package zeromq

import (
	"encoding/json"
	"time"

	zmq "github.com/pebbe/zmq4"

	customlog "github.com/haptic-link/controller/pkg/log"
	"github.com/haptic-link/controller/pkg/motion"
	"github.com/haptic-link/controller/pkg/processing"
)

// MotionListener receives motion frames over a ZeroMQ SUB socket, for
// hosts that publish their tick stream over ZeroMQ instead of WebSocket.
// Payloads are the same JSON frames the WebSocket ingest accepts.
type MotionListener struct {
	socket   *zmq.Socket
	director *processing.FrameDirector
	logger   customlog.Logger
	running  bool
}

// NewMotionListener creates a new ZeroMQ motion listener
func NewMotionListener(director *processing.FrameDirector, logger customlog.Logger) (*MotionListener, error) {
	socket, err := zmq.NewSocket(zmq.SUB)
	if err != nil {
		return nil, err
	}

	if err := socket.SetSubscribe(""); err != nil {
		socket.Close()
		return nil, err
	}

	return &MotionListener{
		socket:   socket,
		director: director,
		logger:   logger,
	}, nil
}

// Start binds the socket and begins receiving frames
func (l *MotionListener) Start(address string) error {
	if err := l.socket.Bind(address); err != nil {
		return err
	}

	l.running = true
	go l.receiveLoop()

	l.logger.Infof("ZeroMQ motion listener started on %s", address)
	return nil
}

// Stop stops the listener and closes the socket
func (l *MotionListener) Stop() {
	l.running = false
	l.socket.Close()
}

// receiveLoop continuously receives and routes motion frames
func (l *MotionListener) receiveLoop() {
	for l.running {
		msg, err := l.socket.RecvBytes(0)
		if err != nil {
			if !l.running {
				return
			}
			l.logger.Warnf("Error receiving ZeroMQ message: %v", err)
			time.Sleep(100 * time.Millisecond)
			continue
		}

		var frame motion.Frame
		if err := json.Unmarshal(msg, &frame); err != nil {
			l.logger.Warnf("Failed to unmarshal motion frame from ZeroMQ: %v", err)
			continue
		}

		if err := l.director.RouteFrame(frame); err != nil {
			l.logger.Debugf("ZeroMQ motion frame not routed: %v", err)
		}
	}
}

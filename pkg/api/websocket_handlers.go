package api

import (
	"encoding/json"
	"errors"
	"syscall"

	"github.com/gofiber/contrib/websocket"

	customlog "github.com/haptic-link/controller/pkg/log"
	"github.com/haptic-link/controller/pkg/motion"
	"github.com/haptic-link/controller/pkg/processing"
)

// MotionWebSocketHandler handles one engine plugin's motion stream. Each
// text message is a JSON motion frame routed into the frame director; a
// malformed frame is skipped, never fatal to the stream.
func MotionWebSocketHandler(conn *websocket.Conn, logger customlog.Logger, director *processing.FrameDirector) {
	logger.Infof("Motion WebSocket connected: %s", conn.RemoteAddr())

	var (
		mt  int
		msg []byte
		err error
	)
	for {
		if mt, msg, err = conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Errorf("Motion WS read error: %v", err)
			} else if err != websocket.ErrCloseSent && !errors.Is(err, syscall.EPIPE) && !errors.Is(err, syscall.ECONNRESET) {
				logger.Infof("Motion WS connection closed: %v", err)
			} else {
				logger.Infof("Motion WS connection closed normally.")
			}
			break
		}

		if mt != websocket.TextMessage {
			logger.Debugf("Ignoring non-text motion WS message type: %d", mt)
			continue
		}

		var frame motion.Frame
		if err := json.Unmarshal(msg, &frame); err != nil {
			logger.Warnf("Failed to unmarshal motion frame from WS: %v. Message: %s", err, string(msg))
			continue
		}

		if err := director.RouteFrame(frame); err != nil {
			logger.Debugf("Motion frame not routed: %v", err)
		}
	}

	logger.Infof("Motion WebSocket disconnected: %s", conn.RemoteAddr())
}

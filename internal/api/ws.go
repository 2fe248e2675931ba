package api

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/kibrowser/ki-browser/api/schemas"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// The control plane binds to loopback; cross-origin pages may not
	// drive it.
	CheckOrigin: func(*http.Request) bool { return true },
}

// handleWebSocket upgrades the connection and bridges it onto the event
// bus. The write side drains the client queue; the read side applies
// subscription commands.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if s.bus == nil {
		writeError(w, http.StatusServiceUnavailable, "event stream is not available")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := s.bus.Attach()
	logger := s.logger.With(zap.Uint64("client_id", client.ID()))
	logger.Info("websocket client connected")

	done := make(chan struct{})

	// Write side. The Connected handshake is already queued by Attach.
	go func() {
		defer conn.Close()
		for {
			select {
			case <-done:
				return
			case ev, ok := <-client.Events():
				if !ok {
					return
				}
				if err := conn.WriteJSON(ev); err != nil {
					logger.Debug("websocket write failed", zap.Error(err))
					return
				}
			}
		}
	}()

	// Read side. Exits on close or protocol error, which detaches the
	// client and stops the writer.
	defer func() {
		close(done)
		s.bus.Detach(client)
		conn.Close()
		logger.Info("websocket client disconnected")
	}()

	for {
		msgType, payload, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Debug("websocket read failed", zap.Error(err))
			}
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}

		var cmd schemas.WSCommand
		if err := json.Unmarshal(payload, &cmd); err != nil {
			logger.Warn("discarding malformed client command", zap.Error(err))
			continue
		}
		s.bus.HandleCommand(client, cmd)
	}
}

package handler

import (
	"github.com/gofiber/contrib/websocket"
	"go.uber.org/zap"

	"score-annotator/internal/config"
	"score-annotator/internal/hub"
	"score-annotator/internal/session"
)

// AnnotationWSHandler WebSocket endpoint for realtime annotation sync
type AnnotationWSHandler struct {
	hub *hub.Hub
	cfg config.WebSocketConfig
	log *zap.Logger
}

// NewAnnotationWSHandler AnnotationWSHandler constructor
func NewAnnotationWSHandler(h *hub.Hub, cfg config.WebSocketConfig, log *zap.Logger) *AnnotationWSHandler {
	return &AnnotationWSHandler{hub: h, cfg: cfg, log: log.Named("ws")}
}

// HandleWebSocket runs one connection: register with the hub, feed every
// inbound frame to the dispatcher, and run the departure path on exit.
// A rejected connection is still read until the close handshake finishes so
// the error frame reaches the client.
func (h *AnnotationWSHandler) HandleWebSocket(c *websocket.Conn) {
	sess := session.New(c, h.cfg, h.log)
	go sess.WritePump()

	ip, _ := c.Locals("ip").(string)
	log := h.log.With(zap.String("session", sess.ID()), zap.String("ip", ip))

	accepted := h.hub.Connect(sess) == nil
	if accepted {
		log.Info("client connected")
	}

	defer func() {
		if accepted {
			h.hub.Disconnect(sess)
		}
		sess.Close()
		sess.Wait()
		if accepted {
			log.Info("client disconnected", zap.Duration("duration", sess.Duration()))
		}
	}()

	if h.cfg.MaxMessageSize > 0 {
		c.SetReadLimit(h.cfg.MaxMessageSize)
	}

	for {
		messageType, data, err := c.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug("read error", zap.Error(err))
			}
			return
		}
		if !accepted {
			continue
		}
		if messageType != websocket.TextMessage && messageType != websocket.BinaryMessage {
			continue
		}
		h.hub.Dispatch(sess, data)
	}
}

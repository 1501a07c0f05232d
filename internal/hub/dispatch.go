package hub

import (
	"errors"

	"go.uber.org/zap"

	"score-annotator/internal/protocol"
)

// Dispatch decodes one inbound frame from conn and routes it. Every frame
// refreshes the connection's activity, including invalid ones.
func (h *Hub) Dispatch(conn Conn, data []byte) {
	msg, err := protocol.DecodeClient(data)

	h.mu.Lock()
	defer h.mu.Unlock()

	m := h.registry.byConn(conn.ID())
	if m == nil {
		return
	}
	m.lastActivity = h.clock.Now()

	if err != nil {
		h.rejectFrame(m, err)
		return
	}

	switch msg := msg.(type) {
	case *protocol.Join:
		h.join(m, msg)
	case *protocol.Leave:
		h.leaveRoom(m)
	case *protocol.Ping:
		h.sendTo(m, protocol.NewPong())
	default:
		if m.roomID == "" {
			h.drop("event without room", zap.String("conn", conn.ID()), zap.Stringer("type", msg.MessageType()))
			return
		}
		h.dispatchRoomEvent(m, msg)
	}
}

func (h *Hub) dispatchRoomEvent(m *member, msg protocol.Message) {
	switch msg := msg.(type) {
	case *protocol.StrokeStart:
		h.startStroke(m, msg)
	case *protocol.StrokePoint:
		h.appendPoint(m, msg)
	case *protocol.StrokeEnd:
		h.endStroke(m, msg)
	case *protocol.StrokeDelete:
		h.deleteStroke(m, msg)
	case *protocol.CursorMove:
		h.broadcastToRoom(m.roomID, m.profile.ProfileID, protocol.NewCursorMoved(m.profile.ProfileID, msg.X, msg.Y))
	}
}

// rejectFrame answers a frame that could not be decoded. The connection
// stays open.
func (h *Hub) rejectFrame(m *member, err error) {
	h.protocolErrors.Inc()

	code := protocol.CodeInvalidMessage
	if errors.Is(err, protocol.ErrUnknownType) {
		code = protocol.CodeUnknownType
		h.log.Warn("unknown message type", zap.String("conn", m.conn.ID()), zap.Error(err))
	} else {
		h.log.Debug("invalid message", zap.String("conn", m.conn.ID()), zap.Error(err))
	}
	h.sendErrorToConn(m.conn, code, err.Error())
}

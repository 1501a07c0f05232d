package hub

import (
	"go.uber.org/zap"

	"score-annotator/internal/protocol"
)

// BroadcastToRoom sends msg to every open member of roomID except
// excludeProfileID.
func (h *Hub) BroadcastToRoom(roomID, excludeProfileID string, msg protocol.Message) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.broadcastToRoom(roomID, excludeProfileID, msg)
}

// BroadcastToAll sends msg to every open connection in every room except
// excludeProfileID. Connections that never joined are included.
func (h *Hub) BroadcastToAll(msg protocol.Message, excludeProfileID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	data := h.encode(msg)
	if data == nil {
		return
	}
	for _, m := range h.registry.conns {
		if excludeProfileID != "" && m.roomID != "" && m.profile.ProfileID == excludeProfileID {
			continue
		}
		h.deliver(m.conn, data)
	}
}

func (h *Hub) broadcastToRoom(roomID, excludeProfileID string, msg protocol.Message) {
	members := h.registry.roomMembers(roomID)
	if len(members) == 0 {
		return
	}

	data := h.encode(msg)
	if data == nil {
		return
	}
	for profileID, m := range members {
		if profileID == excludeProfileID {
			continue
		}
		h.deliver(m.conn, data)
	}
}

func (h *Hub) sendTo(m *member, msg protocol.Message) {
	if data := h.encode(msg); data != nil {
		h.deliver(m.conn, data)
	}
}

// SendErrorToProfile sends an error to the connection currently holding
// profileID. It reports false when the profile is not joined anywhere.
func (h *Hub) SendErrorToProfile(profileID, code, message string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	m := h.registry.byProfile(profileID)
	if m == nil {
		return false
	}
	h.sendErrorToConn(m.conn, code, message)
	return true
}

// sendErrorToConn addresses a socket directly, registered or not.
func (h *Hub) sendErrorToConn(conn Conn, code, message string) {
	if data := h.encode(protocol.NewError(code, message)); data != nil {
		h.deliver(conn, data)
	}
}

// deliver skips connections that are not open.
func (h *Hub) deliver(conn Conn, data []byte) {
	if !conn.IsOpen() {
		return
	}
	if err := conn.Send(data); err != nil {
		h.log.Debug("send failed", zap.String("conn", conn.ID()), zap.Error(err))
	}
}

func (h *Hub) encode(msg protocol.Message) []byte {
	data, err := protocol.Encode(msg)
	if err != nil {
		h.log.Error("encode failed", zap.Stringer("type", msg.MessageType()), zap.Error(err))
		return nil
	}
	return data
}

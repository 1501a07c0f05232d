package hub

import (
	"go.uber.org/zap"

	"score-annotator/internal/protocol"
)

// join places m in msg.RoomID under msg's profile.
//
// Rejoining the same room with the same profile updates metadata in place.
// Any other prior room is left first. If another connection holds the
// profile, it is displaced: silently when it sits in the target room, since
// the profile stays present, otherwise through a full leave.
func (h *Hub) join(m *member, msg *protocol.Join) {
	profile := protocol.Participant{
		ProfileID:    msg.ProfileID,
		ProfileName:  msg.ProfileName,
		ProfileColor: msg.ProfileColor,
	}

	if m.roomID == msg.RoomID && m.profile.ProfileID == profile.ProfileID {
		m.profile = profile
		h.announceJoin(m)
		return
	}

	h.leaveRoom(m)

	if prev := h.registry.byProfile(profile.ProfileID); prev != nil && prev != m {
		if prev.roomID == msg.RoomID {
			h.registry.detach(prev)
			h.log.Debug("profile moved to new connection",
				zap.String("profile", profile.ProfileID),
				zap.String("from", prev.conn.ID()),
				zap.String("to", m.conn.ID()),
			)
		} else {
			h.leaveRoom(prev)
		}
	}

	m.profile = profile
	h.registry.attach(m, msg.RoomID, h.clock.Now())
	h.announceJoin(m)

	h.log.Info("participant joined",
		zap.String("room", m.roomID),
		zap.String("profile", profile.ProfileID),
		zap.Int("members", len(h.registry.roomMembers(m.roomID))),
	)
}

func (h *Hub) announceJoin(m *member) {
	h.sendTo(m, protocol.NewJoined(h.registry.participants(m.roomID)))
	h.broadcastToRoom(m.roomID, m.profile.ProfileID, protocol.NewParticipantJoined(m.profile))
	h.publishPresence(m.roomID)
}

// leaveRoom is the departure path shared by leave, disconnect, heartbeat and
// idle eviction. A connection that still owns its profile takes the profile's
// pending strokes with it.
func (h *Hub) leaveRoom(m *member) {
	roomID := m.roomID
	if roomID == "" {
		return
	}

	profileID := m.profile.ProfileID
	if h.registry.byProfile(profileID) == m {
		h.discardProfile(profileID)
	}

	wasMember, emptied := h.registry.detach(m)
	if !wasMember {
		return
	}
	if emptied {
		h.log.Info("room closed", zap.String("room", roomID))
	} else {
		h.broadcastToRoom(roomID, profileID, protocol.NewParticipantLeft(profileID))
	}
	h.publishPresence(roomID)

	h.log.Info("participant left", zap.String("room", roomID), zap.String("profile", profileID))
}

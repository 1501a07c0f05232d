package hub

import (
	"context"

	"go.uber.org/zap"

	"score-annotator/internal/annotation"
	"score-annotator/internal/protocol"
)

func (h *Hub) startStroke(m *member, msg *protocol.StrokeStart) {
	key := strokeKey{ProfileID: m.profile.ProfileID, StrokeID: msg.StrokeID}
	h.strokes.start(key, &pendingStroke{
		tool:      msg.Tool,
		color:     msg.Color,
		thickness: msg.Thickness,
		startedAt: h.clock.Now(),
	})
	h.broadcastToRoom(m.roomID, key.ProfileID, protocol.NewStrokeStarted(key.ProfileID, *msg))
}

// appendPoint only buffers; points leave on the next flush.
func (h *Hub) appendPoint(m *member, msg *protocol.StrokePoint) {
	key := strokeKey{ProfileID: m.profile.ProfileID, StrokeID: msg.StrokeID}
	if !h.strokes.append(key, msg.Point()) {
		h.drop("point for stroke not in progress", zap.String("profile", key.ProfileID), zap.String("stroke", key.StrokeID))
	}
}

// endStroke flushes the final partial batch, tears the stroke down,
// announces it and hands it to the persister.
func (h *Hub) endStroke(m *member, msg *protocol.StrokeEnd) {
	key := strokeKey{ProfileID: m.profile.ProfileID, StrokeID: msg.StrokeID}
	h.flushStroke(key)
	p := h.discard(key)

	h.broadcastToRoom(m.roomID, key.ProfileID, protocol.NewStrokeEnded(key.ProfileID, key.StrokeID, msg.SVGPath))

	in := annotation.Input{
		SongID:   m.roomID,
		UserID:   m.profile.ProfileID,
		UserName: m.profile.ProfileName,
		SVGPath:  msg.SVGPath,
		Tool:     defaultTool,
		Color:    defaultColor,
	}
	if p != nil {
		if p.tool != "" {
			in.Tool = p.tool
		}
		if p.color != "" {
			in.Color = p.color
		}
	}
	h.persist(key, in)
}

// deleteStroke drops any buffered points unsent and announces the deletion.
func (h *Hub) deleteStroke(m *member, msg *protocol.StrokeDelete) {
	key := strokeKey{ProfileID: m.profile.ProfileID, StrokeID: msg.StrokeID}
	h.discard(key)
	h.broadcastToRoom(m.roomID, key.ProfileID, protocol.NewStrokeDeleted(key.ProfileID, key.StrokeID))
}

// discard is the single teardown for a pending stroke. Once it returns no
// flush can emit points for key.
func (h *Hub) discard(key strokeKey) *pendingStroke {
	return h.strokes.remove(key)
}

func (h *Hub) discardProfile(profileID string) {
	for _, key := range h.strokes.profileKeys(profileID) {
		h.discard(key)
	}
}

// persist runs outside the lock. Failures are logged and never retried.
func (h *Hub) persist(key strokeKey, in annotation.Input) {
	if h.opts.Persister == nil {
		return
	}

	h.persistWG.Add(1)
	go func() {
		defer h.persistWG.Done()

		ctx, cancel := context.WithTimeout(context.Background(), h.opts.PersistTimeout)
		defer cancel()

		a, err := h.opts.Persister.Create(ctx, in)
		if err != nil {
			h.persistFailures.Inc()
			h.log.Error("persist annotation failed",
				zap.String("room", in.SongID),
				zap.String("profile", key.ProfileID),
				zap.String("stroke", key.StrokeID),
				zap.Error(err),
			)
			return
		}
		h.persisted.Inc()
		h.log.Debug("annotation persisted", zap.String("id", a.ID), zap.String("stroke", key.StrokeID))
	}()
}

package hub

import (
	"time"

	"score-annotator/internal/protocol"
)

type strokeKey struct {
	ProfileID string
	StrokeID  string
}

type pendingStroke struct {
	tool      string
	color     string
	thickness float64
	points    []protocol.Point
	startedAt time.Time
}

// strokeBuffer holds in-progress strokes keyed by (profile, stroke).
// Callers hold Hub.mu.
type strokeBuffer struct {
	pending map[strokeKey]*pendingStroke
}

func newStrokeBuffer() *strokeBuffer {
	return &strokeBuffer{pending: make(map[strokeKey]*pendingStroke)}
}

// start registers a stroke. A restart of the same key discards its points.
func (b *strokeBuffer) start(key strokeKey, p *pendingStroke) {
	b.pending[key] = p
}

// append reports false when the stroke is not pending.
func (b *strokeBuffer) append(key strokeKey, pt protocol.Point) bool {
	p, ok := b.pending[key]
	if !ok {
		return false
	}
	p.points = append(p.points, pt)
	return true
}

// drain hands over the buffered points and leaves the stroke pending with an
// empty buffer.
func (b *strokeBuffer) drain(key strokeKey) []protocol.Point {
	p, ok := b.pending[key]
	if !ok || len(p.points) == 0 {
		return nil
	}
	points := p.points
	p.points = nil
	return points
}

// dirty lists strokes with buffered points.
func (b *strokeBuffer) dirty() []strokeKey {
	var keys []strokeKey
	for key, p := range b.pending {
		if len(p.points) > 0 {
			keys = append(keys, key)
		}
	}
	return keys
}

func (b *strokeBuffer) remove(key strokeKey) *pendingStroke {
	p, ok := b.pending[key]
	if !ok {
		return nil
	}
	delete(b.pending, key)
	return p
}

func (b *strokeBuffer) profileKeys(profileID string) []strokeKey {
	var keys []strokeKey
	for key := range b.pending {
		if key.ProfileID == profileID {
			keys = append(keys, key)
		}
	}
	return keys
}

func (b *strokeBuffer) has(key strokeKey) bool {
	_, ok := b.pending[key]
	return ok
}

func (b *strokeBuffer) size() int {
	return len(b.pending)
}

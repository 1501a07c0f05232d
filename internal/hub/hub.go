// Package hub is the realtime sync engine: room presence, stroke batching,
// broadcast fan-out and connection maintenance for annotation sessions.
package hub

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/puzpuzpuz/xsync/v3"
	"go.uber.org/zap"

	"score-annotator/internal/annotation"
	"score-annotator/internal/model"
	"score-annotator/internal/protocol"
)

var ErrCapacityExceeded = errors.New("max clients exceeded")

// Persister stores a finalized stroke. annotation.Store implements it.
type Persister interface {
	Create(ctx context.Context, in annotation.Input) (*model.Annotation, error)
}

// Mirror receives a snapshot of a room's participants after every membership
// change. An empty slice means the room is gone. Publish must not block.
type Mirror interface {
	Publish(roomID string, participants []protocol.Participant)
}

// Options configure a Hub. Zero durations fall back to defaults.
type Options struct {
	Clock             clock.Clock
	FlushInterval     time.Duration
	HeartbeatInterval time.Duration
	IdleSweepInterval time.Duration
	IdleTimeout       time.Duration
	MaxConnections    int // 0 disables the capacity guard
	PersistTimeout    time.Duration
	Persister         Persister
	Mirror            Mirror
	Logger            *zap.Logger
}

const (
	defaultFlushInterval     = 50 * time.Millisecond
	defaultHeartbeatInterval = 30 * time.Second
	defaultIdleSweepInterval = 60 * time.Second
	defaultIdleTimeout       = 5 * time.Minute
	defaultPersistTimeout    = 5 * time.Second

	defaultTool  = "pen"
	defaultColor = "#000000"
)

// Hub owns every registry and stroke buffer mutation. mu plays the role of
// the single event loop: dispatch and the three timers run under it.
type Hub struct {
	opts  Options
	clock clock.Clock
	log   *zap.Logger

	mu       sync.Mutex
	registry *registry
	strokes  *strokeBuffer

	persistWG sync.WaitGroup

	dropped         *xsync.Counter
	protocolErrors  *xsync.Counter
	rejected        *xsync.Counter
	batchesSent     *xsync.Counter
	persisted       *xsync.Counter
	persistFailures *xsync.Counter
}

// Stats is a point in time view of the hub.
type Stats struct {
	Rooms           int   `json:"rooms"`
	Connections     int   `json:"connections"`
	PendingStrokes  int   `json:"pendingStrokes"`
	Dropped         int64 `json:"dropped"`
	ProtocolErrors  int64 `json:"protocolErrors"`
	Rejected        int64 `json:"rejected"`
	BatchesSent     int64 `json:"batchesSent"`
	Persisted       int64 `json:"persisted"`
	PersistFailures int64 `json:"persistFailures"`
}

// New creates a hub. Call Run to start the periodic flush and sweeps.
func New(opts Options) *Hub {
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.FlushInterval <= 0 {
		opts.FlushInterval = defaultFlushInterval
	}
	if opts.HeartbeatInterval <= 0 {
		opts.HeartbeatInterval = defaultHeartbeatInterval
	}
	if opts.IdleSweepInterval <= 0 {
		opts.IdleSweepInterval = defaultIdleSweepInterval
	}
	if opts.IdleTimeout <= 0 {
		opts.IdleTimeout = defaultIdleTimeout
	}
	if opts.PersistTimeout <= 0 {
		opts.PersistTimeout = defaultPersistTimeout
	}

	return &Hub{
		opts:            opts,
		clock:           opts.Clock,
		log:             opts.Logger,
		registry:        newRegistry(),
		strokes:         newStrokeBuffer(),
		dropped:         xsync.NewCounter(),
		protocolErrors:  xsync.NewCounter(),
		rejected:        xsync.NewCounter(),
		batchesSent:     xsync.NewCounter(),
		persisted:       xsync.NewCounter(),
		persistFailures: xsync.NewCounter(),
	}
}

// Connect registers a new connection. Beyond MaxConnections the connection
// is sent MAX_CLIENTS_EXCEEDED, closed, and ErrCapacityExceeded is returned.
func (h *Hub) Connect(conn Conn) error {
	h.mu.Lock()
	if h.opts.MaxConnections > 0 && len(h.registry.conns) >= h.opts.MaxConnections {
		total := len(h.registry.conns)
		h.mu.Unlock()

		h.rejected.Inc()
		h.log.Warn("connection rejected",
			zap.String("conn", conn.ID()),
			zap.Int("connections", total),
			zap.Int("max", h.opts.MaxConnections),
		)
		h.sendErrorToConn(conn, protocol.CodeMaxClientsExceeded, "server is full")
		_ = conn.Close()
		return ErrCapacityExceeded
	}
	h.registry.add(conn, h.clock.Now())
	total := len(h.registry.conns)
	h.mu.Unlock()

	h.log.Debug("connection registered", zap.String("conn", conn.ID()), zap.Int("connections", total))
	return nil
}

// Disconnect runs the departure path for conn: its room is left and, if it
// still owns its profile, the profile's pending strokes are purged.
func (h *Hub) Disconnect(conn Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	m := h.registry.byConn(conn.ID())
	if m == nil {
		return
	}
	h.removeMember(m)
	h.log.Debug("connection removed", zap.String("conn", conn.ID()))
}

// removeMember leaves the room and forgets the connection.
func (h *Hub) removeMember(m *member) {
	h.leaveRoom(m)
	h.registry.remove(m.conn.ID())
}

// Flush broadcasts every non-empty stroke buffer as one stroke:points batch.
func (h *Hub) Flush() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, key := range h.strokes.dirty() {
		h.flushStroke(key)
	}
}

// flushStroke drains one buffer to the room of the owner's current connection.
func (h *Hub) flushStroke(key strokeKey) {
	points := h.strokes.drain(key)
	if len(points) == 0 {
		return
	}

	owner := h.registry.byProfile(key.ProfileID)
	if owner == nil || owner.roomID == "" {
		h.drop("flush without owner room", zap.String("profile", key.ProfileID), zap.String("stroke", key.StrokeID))
		return
	}

	h.broadcastToRoom(owner.roomID, key.ProfileID, protocol.NewStrokePoints(key.ProfileID, key.StrokeID, points))
	h.batchesSent.Inc()
}

// Stats returns current sizes and counters.
func (h *Hub) Stats() Stats {
	h.mu.Lock()
	rooms, conns, pending := len(h.registry.rooms), len(h.registry.conns), h.strokes.size()
	h.mu.Unlock()

	return Stats{
		Rooms:           rooms,
		Connections:     conns,
		PendingStrokes:  pending,
		Dropped:         h.dropped.Value(),
		ProtocolErrors:  h.protocolErrors.Value(),
		Rejected:        h.rejected.Value(),
		BatchesSent:     h.batchesSent.Value(),
		Persisted:       h.persisted.Value(),
		PersistFailures: h.persistFailures.Value(),
	}
}

// Participants returns the members of roomID in join order.
func (h *Hub) Participants(roomID string) []protocol.Participant {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.registry.participants(roomID)
}

// Shutdown notifies every connection that the server is going away, then
// closes them. Queued frames, the notice included, are still written.
func (h *Hub) Shutdown() {
	h.BroadcastToAll(protocol.NewError(protocol.CodeServerShutdown, "server is shutting down"), "")

	h.mu.Lock()
	conns := make([]Conn, 0, len(h.registry.conns))
	for _, m := range h.registry.conns {
		conns = append(conns, m.conn)
	}
	h.mu.Unlock()

	for _, conn := range conns {
		_ = conn.Close()
	}
	h.log.Info("hub shutdown", zap.Int("connections", len(conns)))
}

// WaitPersistence blocks until in-flight persistence calls finish.
func (h *Hub) WaitPersistence() {
	h.persistWG.Wait()
}

// drop records an event discarded because its profile has no room.
func (h *Hub) drop(reason string, fields ...zap.Field) {
	h.dropped.Inc()
	h.log.Debug("dropped: "+reason, fields...)
}

func (h *Hub) publishPresence(roomID string) {
	if h.opts.Mirror == nil || roomID == "" {
		return
	}
	h.opts.Mirror.Publish(roomID, h.registry.participants(roomID))
}

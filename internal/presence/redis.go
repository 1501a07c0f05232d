package presence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"score-annotator/internal/config"
	"score-annotator/internal/protocol"
)

// Channel pub/sub channel carrying every room snapshot
const Channel = "presence_updates"

// RoomPresence snapshot of one room stored in Redis
type RoomPresence struct {
	RoomID       string                 `json:"room_id"`
	Participants []protocol.Participant `json:"participants"`
	UpdatedAt    int64                  `json:"updated_at"`
	ServerID     string                 `json:"server_id"` // for a future multi node setup
}

// redisClient is the subset of *redis.Client the mirror uses.
type redisClient interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
	Ping(ctx context.Context) *redis.StatusCmd
}

// Mirror copies room membership into Redis. The hub calls Publish under its
// lock, so Publish only enqueues; Run does the network work.
type Mirror struct {
	client   redisClient
	ttl      time.Duration
	serverID string
	log      *zap.Logger

	updates chan RoomPresence
	rooms   map[string]RoomPresence // owned by Run
}

// NewClient builds a go-redis client from config.
func NewClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
	})
}

// NewMirror creates a mirror over an existing client.
func NewMirror(client redisClient, ttl time.Duration, serverID string, log *zap.Logger) *Mirror {
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &Mirror{
		client:   client,
		ttl:      ttl,
		serverID: serverID,
		log:      log.Named("presence"),
		updates:  make(chan RoomPresence, 256),
		rooms:    make(map[string]RoomPresence),
	}
}

func roomKey(roomID string) string {
	return "presence:room:" + roomID
}

// Publish queues a snapshot. When the queue is full the snapshot is dropped;
// the next membership change or refresh supersedes it.
func (m *Mirror) Publish(roomID string, participants []protocol.Participant) {
	snap := RoomPresence{
		RoomID:       roomID,
		Participants: append([]protocol.Participant(nil), participants...),
		UpdatedAt:    time.Now().Unix(),
		ServerID:     m.serverID,
	}
	select {
	case m.updates <- snap:
	default:
		m.log.Warn("presence queue full, snapshot dropped", zap.String("room", roomID))
	}
}

// Run writes queued snapshots and refreshes TTLs until ctx is done.
func (m *Mirror) Run(ctx context.Context) error {
	refresh := time.NewTicker(m.ttl / 2)
	defer refresh.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case snap := <-m.updates:
			if err := m.write(ctx, snap); err != nil {
				m.log.Warn("presence write failed", zap.String("room", snap.RoomID), zap.Error(err))
			}
		case <-refresh.C:
			m.refresh(ctx)
		}
	}
}

func (m *Mirror) write(ctx context.Context, snap RoomPresence) error {
	key := roomKey(snap.RoomID)

	if len(snap.Participants) == 0 {
		delete(m.rooms, snap.RoomID)
		if err := m.client.Del(ctx, key).Err(); err != nil {
			return fmt.Errorf("delete %s: %w", key, err)
		}
	} else {
		m.rooms[snap.RoomID] = snap
		if err := m.set(ctx, snap); err != nil {
			return err
		}
	}

	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	return m.client.Publish(ctx, Channel, data).Err()
}

func (m *Mirror) set(ctx context.Context, snap RoomPresence) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	key := roomKey(snap.RoomID)
	if err := m.client.Set(ctx, key, data, m.ttl).Err(); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

// refresh rewrites every live room so keys outlive quiet periods.
func (m *Mirror) refresh(ctx context.Context) {
	for roomID, snap := range m.rooms {
		if err := m.set(ctx, snap); err != nil {
			m.log.Warn("presence refresh failed", zap.String("room", roomID), zap.Error(err))
		}
	}
}

// Get reads a room snapshot. A missing key returns nil, nil.
func (m *Mirror) Get(ctx context.Context, roomID string) (*RoomPresence, error) {
	val, err := m.client.Get(ctx, roomKey(roomID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var snap RoomPresence
	if err := json.Unmarshal([]byte(val), &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// Ping checks the Redis connection.
func (m *Mirror) Ping(ctx context.Context) error {
	return m.client.Ping(ctx).Err()
}

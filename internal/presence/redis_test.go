package presence

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"score-annotator/internal/protocol"
)

type fakeRedis struct {
	mu        sync.Mutex
	values    map[string]string
	ttls      map[string]time.Duration
	published []string
	sets      int
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{values: make(map[string]string), ttls: make(map[string]time.Duration)}
}

func (f *fakeRedis) Set(_ context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.values[key] = string(value.([]byte))
	f.ttls[key] = expiration
	f.sets++
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) Get(_ context.Context, key string) *redis.StringCmd {
	f.mu.Lock()
	defer f.mu.Unlock()

	val, ok := f.values[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(val, nil)
}

func (f *fakeRedis) Del(_ context.Context, keys ...string) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, k := range keys {
		delete(f.values, k)
	}
	return redis.NewIntResult(int64(len(keys)), nil)
}

func (f *fakeRedis) Publish(_ context.Context, _ string, message interface{}) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.published = append(f.published, string(message.([]byte)))
	return redis.NewIntResult(0, nil)
}

func (f *fakeRedis) Ping(context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", nil)
}

func (f *fakeRedis) publishedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return len(f.published)
}

func TestMirror_WriteAndGet(t *testing.T) {
	fake := newFakeRedis()
	m := NewMirror(fake, time.Minute, "node-1", zaptest.NewLogger(t))
	ctx := context.Background()

	participants := []protocol.Participant{{ProfileID: "p1", ProfileName: "Ann", ProfileColor: "#f00"}}
	require.NoError(t, m.write(ctx, RoomPresence{RoomID: "song-1", Participants: participants, ServerID: "node-1"}))

	snap, err := m.Get(ctx, "song-1")
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, participants, snap.Participants)
	assert.Equal(t, "node-1", snap.ServerID)
	assert.Equal(t, time.Minute, fake.ttls["presence:room:song-1"])

	var published RoomPresence
	require.NoError(t, json.Unmarshal([]byte(fake.published[0]), &published))
	assert.Equal(t, "song-1", published.RoomID)
}

func TestMirror_EmptyRoomDeletesKey(t *testing.T) {
	fake := newFakeRedis()
	m := NewMirror(fake, time.Minute, "node-1", zaptest.NewLogger(t))
	ctx := context.Background()

	require.NoError(t, m.write(ctx, RoomPresence{RoomID: "song-1", Participants: []protocol.Participant{{ProfileID: "p1"}}}))
	require.NoError(t, m.write(ctx, RoomPresence{RoomID: "song-1"}))

	snap, err := m.Get(ctx, "song-1")
	require.NoError(t, err)
	assert.Nil(t, snap)
	assert.Empty(t, m.rooms)
	assert.Len(t, fake.published, 2)
}

func TestMirror_RefreshRewritesLiveRooms(t *testing.T) {
	fake := newFakeRedis()
	m := NewMirror(fake, time.Minute, "node-1", zaptest.NewLogger(t))
	ctx := context.Background()

	require.NoError(t, m.write(ctx, RoomPresence{RoomID: "a", Participants: []protocol.Participant{{ProfileID: "p1"}}}))
	require.NoError(t, m.write(ctx, RoomPresence{RoomID: "b", Participants: []protocol.Participant{{ProfileID: "p2"}}}))
	require.NoError(t, m.write(ctx, RoomPresence{RoomID: "b"}))

	m.refresh(ctx)
	assert.Equal(t, 3, fake.sets, "only room a is refreshed")
}

func TestMirror_RunDrainsQueue(t *testing.T) {
	fake := newFakeRedis()
	m := NewMirror(fake, time.Minute, "node-1", zaptest.NewLogger(t))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	m.Publish("song-1", []protocol.Participant{{ProfileID: "p1"}})
	m.Publish("song-1", nil)

	assert.Eventually(t, func() bool { return fake.publishedCount() == 2 }, time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}

func TestMirror_PublishNeverBlocks(t *testing.T) {
	m := NewMirror(newFakeRedis(), time.Minute, "node-1", zaptest.NewLogger(t))

	for i := 0; i < cap(m.updates)+10; i++ {
		m.Publish("song-1", nil)
	}
	assert.Len(t, m.updates, cap(m.updates))
}

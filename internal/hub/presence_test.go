package hub

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"score-annotator/internal/protocol"
)

type fakeMirror struct {
	mu        sync.Mutex
	snapshots map[string][]protocol.Participant
}

func (m *fakeMirror) Publish(roomID string, participants []protocol.Participant) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.snapshots == nil {
		m.snapshots = make(map[string][]protocol.Participant)
	}
	m.snapshots[roomID] = participants
}

func (m *fakeMirror) last(roomID string) []protocol.Participant {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.snapshots[roomID]
}

func profileIDs(ps []protocol.Participant) []string {
	ids := make([]string, len(ps))
	for i, p := range ps {
		ids[i] = p.ProfileID
	}
	return ids
}

func TestJoinAnnouncesAndListsParticipants(t *testing.T) {
	h, mock := newTestHub(t, Options{})

	c1 := connect(t, h, "c1")
	c2 := connect(t, h, "c2")
	join(h, c1, "p1", "song-1")
	mock.Add(time.Second)
	join(h, c2, "p2", "song-1")

	joined := received[*protocol.Joined](t, c2)
	require.Len(t, joined, 1)
	assert.Equal(t, []string{"p1", "p2"}, profileIDs(joined[0].Participants))

	announced := received[*protocol.ParticipantJoined](t, c1)
	require.Len(t, announced, 1)
	assert.Equal(t, protocol.Participant{ProfileID: "p2", ProfileName: "name-p2", ProfileColor: "#123456"}, announced[0].Participant)
	assert.Empty(t, received[*protocol.ParticipantJoined](t, c2), "joiner is not told about itself")
}

func TestJoinIsIdempotent(t *testing.T) {
	h, _ := newTestHub(t, Options{})

	c1 := connect(t, h, "c1")
	c2 := connect(t, h, "c2")
	join(h, c2, "p2", "song-1")
	join(h, c1, "p1", "song-1")
	dispatch(h, c1, `{"type":"join","profileId":"p1","profileName":"Renamed","profileColor":"#00ff00","roomId":"song-1"}`)

	participants := h.Participants("song-1")
	assert.Len(t, participants, 2)
	assert.ElementsMatch(t, []string{"p1", "p2"}, profileIDs(participants))
	for _, p := range participants {
		if p.ProfileID == "p1" {
			assert.Equal(t, "Renamed", p.ProfileName)
			assert.Equal(t, "#00ff00", p.ProfileColor)
		}
	}

	announced := received[*protocol.ParticipantJoined](t, c2)
	require.Len(t, announced, 2)
	assert.Equal(t, "Renamed", announced[1].Participant.ProfileName)
	assert.Empty(t, received[*protocol.ParticipantLeft](t, c2))
	assert.Equal(t, 1, h.Stats().Rooms)
}

func TestJoinAnotherRoomLeavesPrevious(t *testing.T) {
	h, _ := newTestHub(t, Options{})

	c1 := connect(t, h, "c1")
	c2 := connect(t, h, "c2")
	join(h, c1, "p1", "song-1")
	join(h, c2, "p2", "song-1")
	startStroke(h, c1, "s1")
	point(h, c1, "s1", 1, 1)

	join(h, c1, "p1", "song-2")
	h.Flush()

	left := received[*protocol.ParticipantLeft](t, c2)
	require.Len(t, left, 1)
	assert.Equal(t, "p1", left[0].ProfileID)
	assert.Empty(t, received[*protocol.StrokePoints](t, c2))
	assert.False(t, hasPending(h, "p1", "s1"))

	assert.Equal(t, []string{"p2"}, profileIDs(h.Participants("song-1")))
	assert.Equal(t, []string{"p1"}, profileIDs(h.Participants("song-2")))
}

func TestJoinUnderNewProfileLeavesOldProfile(t *testing.T) {
	h, _ := newTestHub(t, Options{})

	c1 := connect(t, h, "c1")
	c2 := connect(t, h, "c2")
	join(h, c1, "p1", "song-1")
	join(h, c2, "p2", "song-1")

	join(h, c1, "p1b", "song-1")

	left := received[*protocol.ParticipantLeft](t, c2)
	require.Len(t, left, 1)
	assert.Equal(t, "p1", left[0].ProfileID)
	assert.ElementsMatch(t, []string{"p1b", "p2"}, profileIDs(h.Participants("song-1")))
}

func TestLeaveCleansUpRooms(t *testing.T) {
	h, _ := newTestHub(t, Options{})

	c1 := connect(t, h, "c1")
	for i := 0; i < 50; i++ {
		join(h, c1, "p1", fmt.Sprintf("song-%d", i))
		dispatch(h, c1, `{"type":"leave"}`)
	}

	assert.Zero(t, h.Stats().Rooms)
	assert.Empty(t, h.Participants("song-0"))
	assert.Equal(t, 1, h.Stats().Connections, "leave keeps the socket")
}

func TestLeaveBroadcastsAndPurges(t *testing.T) {
	h, _ := newTestHub(t, Options{})

	c1 := connect(t, h, "c1")
	c2 := connect(t, h, "c2")
	join(h, c1, "p1", "song-1")
	join(h, c2, "p2", "song-1")
	startStroke(h, c1, "s1")
	point(h, c1, "s1", 1, 1)

	dispatch(h, c1, `{"type":"leave"}`)
	h.Flush()

	assert.Len(t, received[*protocol.ParticipantLeft](t, c2), 1)
	assert.Empty(t, received[*protocol.StrokePoints](t, c2))
	assert.Equal(t, 1, h.Stats().Rooms)

	dispatch(h, c2, `{"type":"leave"}`)
	assert.Zero(t, h.Stats().Rooms)
}

func TestLeaveWithoutRoomIsNoop(t *testing.T) {
	h, _ := newTestHub(t, Options{})
	c1 := connect(t, h, "c1")

	dispatch(h, c1, `{"type":"leave"}`)

	assert.Empty(t, c1.messages(t))
}

func TestProfileReconnectKeepsStrokeAlive(t *testing.T) {
	h, _ := newTestHub(t, Options{})

	old := connect(t, h, "old")
	c2 := connect(t, h, "c2")
	join(h, old, "p1", "song-1")
	join(h, c2, "p2", "song-1")
	startStroke(h, old, "s1")
	point(h, old, "s1", 1, 1)

	fresh := connect(t, h, "fresh")
	join(h, fresh, "p1", "song-1")

	assert.Empty(t, received[*protocol.ParticipantLeft](t, c2), "profile never left")
	assert.ElementsMatch(t, []string{"p1", "p2"}, profileIDs(h.Participants("song-1")))

	// the displaced socket is room-less now
	dispatch(h, old, `{"type":"cursor:move","x":1,"y":1}`)
	assert.Empty(t, received[*protocol.CursorMoved](t, c2))

	// the stale socket going away must not tear down the profile's stroke
	h.Disconnect(old)
	assert.Empty(t, received[*protocol.ParticipantLeft](t, c2))
	assert.True(t, hasPending(h, "p1", "s1"))

	point(h, fresh, "s1", 2, 2)
	h.Flush()
	batches := received[*protocol.StrokePoints](t, c2)
	require.Len(t, batches, 1)
	assert.Equal(t, []protocol.Point{{X: 1, Y: 1}, {X: 2, Y: 2}}, batches[0].Points)
}

func TestProfileReconnectIntoOtherRoom(t *testing.T) {
	h, _ := newTestHub(t, Options{})

	old := connect(t, h, "old")
	c2 := connect(t, h, "c2")
	join(h, old, "p1", "song-1")
	join(h, c2, "p2", "song-1")
	startStroke(h, old, "s1")
	point(h, old, "s1", 1, 1)

	fresh := connect(t, h, "fresh")
	join(h, fresh, "p1", "song-2")
	h.Flush()

	assert.Len(t, received[*protocol.ParticipantLeft](t, c2), 1)
	assert.Empty(t, received[*protocol.StrokePoints](t, c2))
	assert.False(t, hasPending(h, "p1", "s1"))
}

func TestMirrorReceivesSnapshots(t *testing.T) {
	mirror := &fakeMirror{}
	h, _ := newTestHub(t, Options{Mirror: mirror})

	c1 := connect(t, h, "c1")
	c2 := connect(t, h, "c2")
	join(h, c1, "p1", "song-1")
	join(h, c2, "p2", "song-1")
	assert.ElementsMatch(t, []string{"p1", "p2"}, profileIDs(mirror.last("song-1")))

	h.Disconnect(c1)
	assert.Equal(t, []string{"p2"}, profileIDs(mirror.last("song-1")))

	h.Disconnect(c2)
	snapshot := mirror.last("song-1")
	require.NotNil(t, snapshot)
	assert.Empty(t, snapshot)
}

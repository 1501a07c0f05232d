package syncclient

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"score-annotator/internal/protocol"
)

var (
	ann = protocol.Participant{ProfileID: "p1", ProfileName: "Ann", ProfileColor: "#ff0000"}
	bob = protocol.Participant{ProfileID: "p2", ProfileName: "Bob", ProfileColor: "#0000ff"}
)

func joined(ps ...protocol.Participant) *protocol.Joined {
	msg := protocol.NewJoined(ps)
	return &msg
}

func TestState_Participants(t *testing.T) {
	s := NewState()
	now := time.Unix(100, 0)

	assert.True(t, s.Apply(joined(ann), now))
	joinedBob := protocol.NewParticipantJoined(bob)
	assert.True(t, s.Apply(&joinedBob, now))
	assert.Equal(t, []protocol.Participant{ann, bob}, s.Snapshot().Participants)

	renamed := bob
	renamed.ProfileName = "Robert"
	again := protocol.NewParticipantJoined(renamed)
	s.Apply(&again, now)
	assert.Equal(t, []protocol.Participant{ann, renamed}, s.Snapshot().Participants, "rejoin upserts")

	left := protocol.NewParticipantLeft("p1")
	s.Apply(&left, now)
	assert.Equal(t, []protocol.Participant{renamed}, s.Snapshot().Participants)
}

func TestState_CursorTakesIdentityFromParticipants(t *testing.T) {
	s := NewState()
	now := time.Unix(100, 0)
	s.Apply(joined(ann, bob), now)

	moved := protocol.NewCursorMoved("p1", 10, 20)
	require.True(t, s.Apply(&moved, now))

	c, ok := s.Cursor("p1")
	require.True(t, ok)
	assert.Equal(t, RemoteCursor{ProfileID: "p1", ProfileName: "Ann", ProfileColor: "#ff0000", X: 10, Y: 20, LastUpdate: now}, c)
}

// Scenario C: a silent peer's cursor is pruned once it is older than 5s.
func TestState_PruneStaleCursor(t *testing.T) {
	s := NewState()
	start := time.Unix(100, 0)
	s.Apply(joined(ann), start)
	moved := protocol.NewCursorMoved("p1", 10, 20)
	s.Apply(&moved, start)

	for sec := 1; sec <= 5; sec++ {
		assert.False(t, s.PruneCursors(start.Add(time.Duration(sec)*time.Second), DefaultCursorMaxAge), "second %d", sec)
	}
	_, ok := s.Cursor("p1")
	require.True(t, ok)

	assert.True(t, s.PruneCursors(start.Add(6*time.Second), DefaultCursorMaxAge))
	_, ok = s.Cursor("p1")
	assert.False(t, ok)
	assert.Equal(t, []protocol.Participant{ann}, s.Snapshot().Participants, "pruning keeps presence")
}

func TestState_StrokeLifecycle(t *testing.T) {
	s := NewState()
	now := time.Unix(100, 0)
	s.Apply(joined(ann, bob), now)

	started := protocol.NewStrokeStarted("p1", protocol.StrokeStart{StrokeID: "s1", Tool: "pen", Color: "#00ff00", Thickness: 3})
	require.True(t, s.Apply(&started, now))

	first := protocol.NewStrokePoints("p1", "s1", []protocol.Point{{X: 1, Y: 1}, {X: 2, Y: 2}})
	second := protocol.NewStrokePoints("p1", "s1", []protocol.Point{{X: 3, Y: 3}})
	s.Apply(&first, now)
	s.Apply(&second, now)

	rs, ok := s.Stroke("p1", "s1")
	require.True(t, ok)
	assert.Equal(t, RemoteStroke{
		StrokeID:     "s1",
		ProfileID:    "p1",
		ProfileColor: "#ff0000",
		Tool:         "pen",
		Color:        "#00ff00",
		Thickness:    3,
		Points:       []protocol.Point{{X: 1, Y: 1}, {X: 2, Y: 2}, {X: 3, Y: 3}},
	}, rs)

	ended := protocol.NewStrokeEnded("p1", "s1", "M1,1")
	assert.True(t, s.Apply(&ended, now))
	_, ok = s.Stroke("p1", "s1")
	assert.False(t, ok)
	assert.False(t, s.Apply(&ended, now), "second end is a no-op")
}

func TestState_PointsForUnknownStrokeIgnored(t *testing.T) {
	s := NewState()
	batch := protocol.NewStrokePoints("p1", "late", []protocol.Point{{X: 1, Y: 1}})

	assert.False(t, s.Apply(&batch, time.Now()))
	assert.Empty(t, s.Snapshot().Strokes)
}

func TestState_DeletedAndOwnerLeftRemoveStrokes(t *testing.T) {
	s := NewState()
	now := time.Unix(100, 0)
	s.Apply(joined(ann, bob), now)

	for _, id := range []string{"s1", "s2"} {
		msg := protocol.NewStrokeStarted("p1", protocol.StrokeStart{StrokeID: id})
		s.Apply(&msg, now)
	}
	bobStroke := protocol.NewStrokeStarted("p2", protocol.StrokeStart{StrokeID: "s1"})
	s.Apply(&bobStroke, now)
	moved := protocol.NewCursorMoved("p1", 1, 1)
	s.Apply(&moved, now)

	deleted := protocol.NewStrokeDeleted("p1", "s1")
	s.Apply(&deleted, now)
	assert.Len(t, s.Snapshot().Strokes, 2)

	left := protocol.NewParticipantLeft("p1")
	s.Apply(&left, now)
	snap := s.Snapshot()
	require.Len(t, snap.Strokes, 1)
	assert.Equal(t, "p2", snap.Strokes[0].ProfileID)
	assert.Empty(t, snap.Cursors)
}

func TestState_JoinedResetsRemoteState(t *testing.T) {
	s := NewState()
	now := time.Unix(100, 0)
	s.Apply(joined(ann), now)
	moved := protocol.NewCursorMoved("p1", 1, 1)
	s.Apply(&moved, now)
	started := protocol.NewStrokeStarted("p1", protocol.StrokeStart{StrokeID: "s1"})
	s.Apply(&started, now)

	s.Apply(joined(bob), now)

	snap := s.Snapshot()
	assert.Equal(t, []protocol.Participant{bob}, snap.Participants)
	assert.Empty(t, snap.Cursors)
	assert.Empty(t, snap.Strokes)
}

func TestState_ErrorAndPong(t *testing.T) {
	s := NewState()

	pong := protocol.NewPong()
	assert.False(t, s.Apply(&pong, time.Now()))

	e := protocol.NewError(protocol.CodeMaxClientsExceeded, "server is full")
	assert.True(t, s.Apply(&e, time.Now()))
	require.NotNil(t, s.Snapshot().LastError)
	assert.Equal(t, "MAX_CLIENTS_EXCEEDED", s.Snapshot().LastError.Code)
}

// Package syncclient is the client side of annotation sync: a reducer that
// rebuilds remote participants, cursors and strokes from server events, and
// a websocket client that feeds it.
package syncclient

import (
	"sort"
	"time"

	"score-annotator/internal/protocol"
)

// Status of one socket instance. Disconnected and Error are terminal.
type Status string

const (
	StatusConnecting   Status = "connecting"
	StatusConnected    Status = "connected"
	StatusDisconnected Status = "disconnected"
	StatusError        Status = "error"
)

// RemoteCursor last known pointer position of a peer.
type RemoteCursor struct {
	ProfileID    string
	ProfileName  string
	ProfileColor string
	X            float64
	Y            float64
	LastUpdate   time.Time
}

// RemoteStroke mirrors a peer's in-progress stroke.
type RemoteStroke struct {
	StrokeID     string
	ProfileID    string
	ProfileColor string
	Tool         string
	Color        string
	Thickness    float64
	Points       []protocol.Point
}

type strokeKey struct {
	profileID string
	strokeID  string
}

// State is the reducer. It is not safe for concurrent use; Client guards it.
type State struct {
	participants []protocol.Participant
	cursors      map[string]*RemoteCursor
	strokes      map[strokeKey]*RemoteStroke
	lastError    *protocol.Error
}

// Snapshot is an immutable copy of State. Cursors and strokes are sorted by
// profile then stroke id.
type Snapshot struct {
	Participants []protocol.Participant
	Cursors      []RemoteCursor
	Strokes      []RemoteStroke
	LastError    *protocol.Error
}

func NewState() *State {
	return &State{
		cursors: make(map[string]*RemoteCursor),
		strokes: make(map[strokeKey]*RemoteStroke),
	}
}

// Apply folds one server event into the state and reports whether anything
// changed.
func (s *State) Apply(msg protocol.Message, now time.Time) bool {
	switch msg := msg.(type) {
	case *protocol.Joined:
		// a fresh membership; anything tracked before belongs to another room
		s.participants = append([]protocol.Participant(nil), msg.Participants...)
		s.cursors = make(map[string]*RemoteCursor)
		s.strokes = make(map[strokeKey]*RemoteStroke)
		return true

	case *protocol.ParticipantJoined:
		s.upsertParticipant(msg.Participant)
		if c, ok := s.cursors[msg.Participant.ProfileID]; ok {
			c.ProfileName = msg.Participant.ProfileName
			c.ProfileColor = msg.Participant.ProfileColor
		}
		return true

	case *protocol.ParticipantLeft:
		s.removeParticipant(msg.ProfileID)
		delete(s.cursors, msg.ProfileID)
		for key := range s.strokes {
			if key.profileID == msg.ProfileID {
				delete(s.strokes, key)
			}
		}
		return true

	case *protocol.CursorMoved:
		c, ok := s.cursors[msg.ProfileID]
		if !ok {
			c = &RemoteCursor{ProfileID: msg.ProfileID}
			if p, found := s.participant(msg.ProfileID); found {
				c.ProfileName = p.ProfileName
				c.ProfileColor = p.ProfileColor
			}
			s.cursors[msg.ProfileID] = c
		}
		c.X, c.Y = msg.X, msg.Y
		c.LastUpdate = now
		return true

	case *protocol.StrokeStarted:
		rs := &RemoteStroke{
			StrokeID:  msg.StrokeID,
			ProfileID: msg.ProfileID,
			Tool:      msg.Tool,
			Color:     msg.Color,
			Thickness: msg.Thickness,
		}
		if p, found := s.participant(msg.ProfileID); found {
			rs.ProfileColor = p.ProfileColor
		}
		s.strokes[strokeKey{msg.ProfileID, msg.StrokeID}] = rs
		return true

	case *protocol.StrokePoints:
		rs, ok := s.strokes[strokeKey{msg.ProfileID, msg.StrokeID}]
		if !ok {
			// started before we joined; the finished stroke arrives via persistence
			return false
		}
		rs.Points = append(rs.Points, msg.Points...)
		return len(msg.Points) > 0

	case *protocol.StrokeEnded:
		return s.removeStroke(strokeKey{msg.ProfileID, msg.StrokeID})

	case *protocol.StrokeDeleted:
		return s.removeStroke(strokeKey{msg.ProfileID, msg.StrokeID})

	case *protocol.Error:
		e := *msg
		s.lastError = &e
		return true
	}
	return false
}

// PruneCursors drops cursors not updated for longer than maxAge.
func (s *State) PruneCursors(now time.Time, maxAge time.Duration) bool {
	pruned := false
	for id, c := range s.cursors {
		if now.Sub(c.LastUpdate) > maxAge {
			delete(s.cursors, id)
			pruned = true
		}
	}
	return pruned
}

// Cursor returns a copy of profileID's cursor.
func (s *State) Cursor(profileID string) (RemoteCursor, bool) {
	c, ok := s.cursors[profileID]
	if !ok {
		return RemoteCursor{}, false
	}
	return *c, true
}

// Stroke returns a copy of a remote in-progress stroke.
func (s *State) Stroke(profileID, strokeID string) (RemoteStroke, bool) {
	rs, ok := s.strokes[strokeKey{profileID, strokeID}]
	if !ok {
		return RemoteStroke{}, false
	}
	out := *rs
	out.Points = append([]protocol.Point(nil), rs.Points...)
	return out, true
}

func (s *State) Snapshot() Snapshot {
	snap := Snapshot{
		Participants: append([]protocol.Participant{}, s.participants...),
		Cursors:      make([]RemoteCursor, 0, len(s.cursors)),
		Strokes:      make([]RemoteStroke, 0, len(s.strokes)),
	}
	if s.lastError != nil {
		e := *s.lastError
		snap.LastError = &e
	}

	for _, c := range s.cursors {
		snap.Cursors = append(snap.Cursors, *c)
	}
	sort.Slice(snap.Cursors, func(i, j int) bool {
		return snap.Cursors[i].ProfileID < snap.Cursors[j].ProfileID
	})

	for key := range s.strokes {
		rs, _ := s.Stroke(key.profileID, key.strokeID)
		snap.Strokes = append(snap.Strokes, rs)
	}
	sort.Slice(snap.Strokes, func(i, j int) bool {
		a, b := snap.Strokes[i], snap.Strokes[j]
		if a.ProfileID != b.ProfileID {
			return a.ProfileID < b.ProfileID
		}
		return a.StrokeID < b.StrokeID
	})
	return snap
}

func (s *State) participant(profileID string) (protocol.Participant, bool) {
	for _, p := range s.participants {
		if p.ProfileID == profileID {
			return p, true
		}
	}
	return protocol.Participant{}, false
}

func (s *State) upsertParticipant(p protocol.Participant) {
	for i := range s.participants {
		if s.participants[i].ProfileID == p.ProfileID {
			s.participants[i] = p
			return
		}
	}
	s.participants = append(s.participants, p)
}

func (s *State) removeParticipant(profileID string) {
	out := s.participants[:0]
	for _, p := range s.participants {
		if p.ProfileID != profileID {
			out = append(out, p)
		}
	}
	s.participants = out
}

func (s *State) removeStroke(key strokeKey) bool {
	if _, ok := s.strokes[key]; !ok {
		return false
	}
	delete(s.strokes, key)
	return true
}

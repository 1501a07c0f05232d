package hub

import (
	"sort"
	"time"

	"score-annotator/internal/protocol"
)

// member is the registry record for one connection.
type member struct {
	conn         Conn
	profile      protocol.Participant
	roomID       string // "" until join
	joinedAt     time.Time
	lastActivity time.Time
}

type room struct {
	id      string
	members map[string]*member // profileID -> member
}

// registry tracks connections, rooms and the current connection of each
// profile. Callers hold Hub.mu.
type registry struct {
	conns    map[string]*member // connID -> member
	rooms    map[string]*room
	profiles map[string]*member // profileID -> member currently joined with it
}

func newRegistry() *registry {
	return &registry{
		conns:    make(map[string]*member),
		rooms:    make(map[string]*room),
		profiles: make(map[string]*member),
	}
}

func (r *registry) add(conn Conn, now time.Time) *member {
	m := &member{conn: conn, lastActivity: now}
	r.conns[conn.ID()] = m
	return m
}

func (r *registry) byConn(connID string) *member {
	return r.conns[connID]
}

// byProfile returns the connection that most recently joined with profileID.
func (r *registry) byProfile(profileID string) *member {
	return r.profiles[profileID]
}

func (r *registry) remove(connID string) {
	delete(r.conns, connID)
}

// attach inserts m into roomID, creating the room if absent. m.profile must
// already be set.
func (r *registry) attach(m *member, roomID string, now time.Time) {
	rm, ok := r.rooms[roomID]
	if !ok {
		rm = &room{id: roomID, members: make(map[string]*member)}
		r.rooms[roomID] = rm
	}
	rm.members[m.profile.ProfileID] = m
	r.profiles[m.profile.ProfileID] = m
	m.roomID = roomID
	m.joinedAt = now
}

// detach takes m out of its room. It reports whether m was the room's entry
// for its profile and whether the room was deleted because it became empty.
func (r *registry) detach(m *member) (wasMember, emptied bool) {
	roomID := m.roomID
	m.roomID = ""
	if r.profiles[m.profile.ProfileID] == m {
		delete(r.profiles, m.profile.ProfileID)
	}

	rm, ok := r.rooms[roomID]
	if !ok {
		return false, false
	}
	if rm.members[m.profile.ProfileID] == m {
		delete(rm.members, m.profile.ProfileID)
		wasMember = true
	}
	if len(rm.members) == 0 {
		delete(r.rooms, roomID)
		emptied = true
	}
	return wasMember, emptied
}

// participants lists roomID's members in join order.
func (r *registry) participants(roomID string) []protocol.Participant {
	rm, ok := r.rooms[roomID]
	if !ok {
		return []protocol.Participant{}
	}

	members := make([]*member, 0, len(rm.members))
	for _, m := range rm.members {
		members = append(members, m)
	}
	sort.Slice(members, func(i, j int) bool {
		if members[i].joinedAt.Equal(members[j].joinedAt) {
			return members[i].profile.ProfileID < members[j].profile.ProfileID
		}
		return members[i].joinedAt.Before(members[j].joinedAt)
	})

	out := make([]protocol.Participant, len(members))
	for i, m := range members {
		out[i] = m.profile
	}
	return out
}

func (r *registry) roomMembers(roomID string) map[string]*member {
	if rm, ok := r.rooms[roomID]; ok {
		return rm.members
	}
	return nil
}

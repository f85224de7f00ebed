package presence

import (
	"sort"
	"sync"
)

type connKey struct {
	roomID        string
	participantID string
}

// Registry is the authoritative in-process view of who is in which room
// right now. Room sessions are created lazily on the first join and
// removed synchronously when the last participant leaves; an entry in
// rooms therefore always holds at least one participant.
type Registry struct {
	mu    sync.Mutex
	rooms map[string]map[string]Participant // roomID -> participantID -> participant
	conns map[Conn]connKey                  // reverse index for disconnect handling
}

func NewRegistry() *Registry {
	return &Registry{
		rooms: make(map[string]map[string]Participant),
		conns: make(map[Conn]connKey),
	}
}

// Join registers p under roomID and returns the membership snapshot
// including p. The whole mutation runs under one lock so two concurrent
// joins to the same room both register and both observe each other.
// A participant can be in at most one room: if p.Conn is already
// registered somewhere, that stale entry is dropped first.
func (r *Registry) Join(roomID string, p Participant) []Participant {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p.Conn != nil {
		if key, ok := r.conns[p.Conn]; ok {
			r.removeLocked(key.roomID, key.participantID)
		}
	}

	room, ok := r.rooms[roomID]
	if !ok {
		room = make(map[string]Participant)
		r.rooms[roomID] = room
	}

	// Rejoin with the same tab id replaces the old entry.
	if old, ok := room[p.ParticipantID]; ok && old.Conn != nil {
		delete(r.conns, old.Conn)
	}

	room[p.ParticipantID] = p
	if p.Conn != nil {
		r.conns[p.Conn] = connKey{roomID: roomID, participantID: p.ParticipantID}
	}

	return snapshotLocked(room)
}

// Leave removes the participant and returns the removed record, or nil
// if it was already gone (duplicate departure, e.g. an explicit leave
// racing a transport disconnect). The room session is removed as soon
// as it becomes empty.
func (r *Registry) Leave(roomID, participantID string) *Participant {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.removeLocked(roomID, participantID)
}

func (r *Registry) removeLocked(roomID, participantID string) *Participant {
	room, ok := r.rooms[roomID]
	if !ok {
		return nil
	}
	p, ok := room[participantID]
	if !ok {
		return nil
	}

	delete(room, participantID)
	if p.Conn != nil {
		delete(r.conns, p.Conn)
	}
	if len(room) == 0 {
		delete(r.rooms, roomID)
	}

	return &p
}

// FindByConn resolves a transport handle back to its room and
// participant. Used when a disconnect fires without a leave message.
func (r *Registry) FindByConn(c Conn) (roomID, participantID string, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key, ok := r.conns[c]
	if !ok {
		return "", "", false
	}
	return key.roomID, key.participantID, true
}

// Get returns a single participant by room and id.
func (r *Registry) Get(roomID, participantID string) (Participant, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.rooms[roomID][participantID]
	return p, ok
}

// Snapshot returns a copy of the room's membership, empty if the room
// has no session.
func (r *Registry) Snapshot(roomID string) []Participant {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[roomID]
	if !ok {
		return nil
	}
	return snapshotLocked(room)
}

func snapshotLocked(room map[string]Participant) []Participant {
	out := make([]Participant, 0, len(room))
	for _, p := range room {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].JoinedAt.Equal(out[j].JoinedAt) {
			return out[i].ParticipantID < out[j].ParticipantID
		}
		return out[i].JoinedAt.Before(out[j].JoinedAt)
	})
	return out
}

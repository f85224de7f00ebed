package presence

import "sync"

// AccessGate remembers which accounts have satisfied a private room's
// password check during this process lifetime. It is a capability
// cache, not storage: a restart forces everyone to re-enter passwords.
type AccessGate struct {
	mu      sync.RWMutex
	allowed map[string]map[string]struct{} // roomID -> set of userIDs
}

func NewAccessGate() *AccessGate {
	return &AccessGate{allowed: make(map[string]map[string]struct{})}
}

// Grant is idempotent and never fails.
func (g *AccessGate) Grant(roomID, userID string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	set, ok := g.allowed[roomID]
	if !ok {
		set = make(map[string]struct{})
		g.allowed[roomID] = set
	}
	set[userID] = struct{}{}
}

func (g *AccessGate) HasAccess(roomID, userID string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()

	set, ok := g.allowed[roomID]
	if !ok {
		return false
	}
	_, ok = set[userID]
	return ok
}

// Revoke removes a single grant; no-op if absent.
func (g *AccessGate) Revoke(roomID, userID string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	set, ok := g.allowed[roomID]
	if !ok {
		return
	}
	delete(set, userID)
	if len(set) == 0 {
		delete(g.allowed, roomID)
	}
}

// Clear drops every grant for a room. Called when a room is deleted.
func (g *AccessGate) Clear(roomID string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	delete(g.allowed, roomID)
}

package chat

import "sync"

// Session is the live association between a connection and a
// (username, room) pair.
type Session struct {
	Username string
	RoomCode string
}

// Registry maps connection ids to sessions. It is the single source of truth
// for who is online where. Process-local only, reconstructable from the
// active connections. The zero value is not usable, use NewRegistry.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]Session
	// connection ids per room, in binding order
	byRoom map[string][]string
}

func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]Session),
		byRoom:   make(map[string][]string),
	}
}

// Bind associates a connection with a room/user pair, replacing any prior
// binding for that connection. The prior session is returned so callers can
// clean up room-scoped state.
func (r *Registry) Bind(connId, username, roomCode string) (Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	prev, hadPrev := r.sessions[connId]
	if hadPrev {
		r.removeFromRoom(prev.RoomCode, connId)
	}
	r.sessions[connId] = Session{Username: username, RoomCode: roomCode}
	r.byRoom[roomCode] = append(r.byRoom[roomCode], connId)
	return prev, hadPrev
}

// Lookup returns the session bound to connId.
func (r *Registry) Lookup(connId string) (Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sess, ok := r.sessions[connId]
	return sess, ok
}

// Unbind removes the binding for connId and returns the prior session.
// Unbinding an unknown connection is a no-op.
func (r *Registry) Unbind(connId string) (Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sess, ok := r.sessions[connId]
	if !ok {
		return Session{}, false
	}
	delete(r.sessions, connId)
	r.removeFromRoom(sess.RoomCode, connId)
	return sess, true
}

// ListByRoom returns the usernames bound to roomCode in binding order. A
// username connected more than once appears exactly once, at its earliest
// position.
func (r *Registry) ListByRoom(roomCode string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	usernames := make([]string, 0)
	seen := make(map[string]struct{})
	for _, connId := range r.byRoom[roomCode] {
		name := r.sessions[connId].Username
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		usernames = append(usernames, name)
	}
	return usernames
}

// ConnectionsByRoom returns the connection ids bound to roomCode in binding
// order. Used by the gateway for room fan-out.
func (r *Registry) ConnectionsByRoom(roomCode string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conns := make([]string, len(r.byRoom[roomCode]))
	copy(conns, r.byRoom[roomCode])
	return conns
}

// caller must hold the write lock
func (r *Registry) removeFromRoom(roomCode, connId string) {
	conns := r.byRoom[roomCode]
	for i, id := range conns {
		if id == connId {
			conns = append(conns[:i], conns[i+1:]...)
			break
		}
	}
	if len(conns) == 0 {
		delete(r.byRoom, roomCode)
	} else {
		r.byRoom[roomCode] = conns
	}
}

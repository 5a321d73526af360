package chat

import (
	"sync"
	"time"
)

// TypingTracker keeps the per-room set of currently-typing usernames, in the
// order the start signals arrived. Entries carry a deadline: a client that
// vanishes without a stop signal is dropped once the deadline passes, either
// lazily on the next snapshot or by the coordinator's periodic sweep. A room
// whose set becomes empty is removed entirely to bound memory.
type TypingTracker struct {
	mu     sync.Mutex
	expiry time.Duration // <= 0 disables expiry
	rooms  map[string]*typingRoom

	now func() time.Time
}

type typingRoom struct {
	order     []string
	deadlines map[string]time.Time
}

func NewTypingTracker(expiry time.Duration) *TypingTracker {
	return &TypingTracker{
		expiry: expiry,
		rooms:  make(map[string]*typingRoom),
		now:    time.Now,
	}
}

// Mark flags username as typing in roomCode (idempotent, refreshes the
// deadline) and returns the updated set.
func (t *TypingTracker) Mark(roomCode, username string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	room := t.rooms[roomCode]
	if room == nil {
		room = &typingRoom{deadlines: make(map[string]time.Time)}
		t.rooms[roomCode] = room
	}
	if _, ok := room.deadlines[username]; !ok {
		room.order = append(room.order, username)
	}
	room.deadlines[username] = t.now().Add(t.expiry)
	return t.snapshotLocked(roomCode)
}

// Clear removes username from the room's typing set. The bool result reports
// whether the room had a typing set at all, callers broadcast only then.
func (t *TypingTracker) Clear(roomCode, username string) ([]string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	room := t.rooms[roomCode]
	if room == nil {
		return nil, false
	}
	room.remove(username)
	set := t.snapshotLocked(roomCode)
	return set, true
}

// Snapshot returns the current typing set for roomCode, dropping any entries
// whose deadline has passed.
func (t *TypingTracker) Snapshot(roomCode string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshotLocked(roomCode)
}

// Sweep drops all expired entries and returns the resulting set for every
// room the sweep actually changed.
func (t *TypingTracker) Sweep() map[string][]string {
	t.mu.Lock()
	defer t.mu.Unlock()
	changed := make(map[string][]string)
	for roomCode, room := range t.rooms {
		if !t.pruneLocked(room) {
			continue
		}
		changed[roomCode] = append([]string{}, room.order...)
		if len(room.order) == 0 {
			delete(t.rooms, roomCode)
		}
	}
	return changed
}

// caller must hold the lock
func (t *TypingTracker) snapshotLocked(roomCode string) []string {
	room := t.rooms[roomCode]
	if room == nil {
		return []string{}
	}
	t.pruneLocked(room)
	if len(room.order) == 0 {
		delete(t.rooms, roomCode)
		return []string{}
	}
	return append([]string{}, room.order...)
}

// caller must hold the lock, reports whether anything was removed
func (t *TypingTracker) pruneLocked(room *typingRoom) bool {
	if t.expiry <= 0 {
		return false
	}
	now := t.now()
	removed := false
	for _, username := range append([]string{}, room.order...) {
		if now.After(room.deadlines[username]) {
			room.remove(username)
			removed = true
		}
	}
	return removed
}

func (tr *typingRoom) remove(username string) {
	if _, ok := tr.deadlines[username]; !ok {
		return
	}
	delete(tr.deadlines, username)
	for i, u := range tr.order {
		if u == username {
			tr.order = append(tr.order[:i], tr.order[i+1:]...)
			return
		}
	}
}

package scheduler

import (
	"sort"
	"sync"
	"time"
)

// RoomBuffer holds a room's unconsumed messages plus its timing state.
// Appends come from the ingest goroutine, reads and resets from whichever
// analysis cycle currently holds the guard, so everything goes through mu.
//
// The zero time acts as the far-past sentinel for both timers: a room that
// has never been responded to, or never analyzed, always passes the time
// gates on its first look.
type RoomBuffer struct {
	mu               sync.Mutex
	pending          []ChatMessage
	lastResponseAt   time.Time
	lastOracleCallAt time.Time
}

// Append adds a message at the tail. Duplicates are kept as-is.
func (b *RoomBuffer) Append(msg ChatMessage) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pending = append(b.pending, msg)
}

func (b *RoomBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

// Window returns a copy of the most recent n pending messages in arrival
// order, or all of them if fewer are buffered.
func (b *RoomBuffer) Window(n int) []ChatMessage {
	b.mu.Lock()
	defer b.mu.Unlock()
	start := 0
	if len(b.pending) > n {
		start = len(b.pending) - n
	}
	out := make([]ChatMessage, len(b.pending)-start)
	copy(out, b.pending[start:])
	return out
}

// Timers returns the last response and last oracle-call timestamps.
func (b *RoomBuffer) Timers() (lastResponse, lastOracleCall time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastResponseAt, b.lastOracleCallAt
}

// MarkOracleCall stamps the oracle-call timer. Called before the oracle is
// invoked, so a slow or failing call still consumes its rate-limit window.
func (b *RoomBuffer) MarkOracleCall(t time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lastOracleCallAt = t
}

// CommitResponse records a successful dispatch: the response timer advances
// and the whole buffer is dropped, including messages that arrived while
// the cycle was in flight.
func (b *RoomBuffer) CommitResponse(t time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lastResponseAt = t
	b.pending = nil
}

// Registry maps room ids to their buffers. Entries are created lazily on
// first use and live for the life of the process. The registry is owned by
// the Scheduler; nothing else retains buffer references across cycles.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]*RoomBuffer
}

func NewRegistry() *Registry {
	return &Registry{rooms: make(map[string]*RoomBuffer)}
}

// Get returns the buffer for roomID, creating it if the room is new.
func (r *Registry) Get(roomID string) *RoomBuffer {
	r.mu.RLock()
	buf, ok := r.rooms[roomID]
	r.mu.RUnlock()
	if ok {
		return buf
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if buf, ok := r.rooms[roomID]; ok {
		return buf
	}
	buf = &RoomBuffer{}
	r.rooms[roomID] = buf
	return buf
}

// RoomIDs returns all known room ids, sorted for stable iteration.
func (r *Registry) RoomIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.rooms))
	for id := range r.rooms {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

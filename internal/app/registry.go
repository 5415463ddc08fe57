// Package app is the sync engine: presence, the action dispatcher, the
// buffering policy, the clock broadcaster and room lifecycle.
package app

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sarim-aliii/duet/internal/core"
	"github.com/sarim-aliii/duet/internal/domain"
)

// memberState is the per-connection bookkeeping: who is behind the
// socket, which room it resolved to, and the client-reported stall flag.
type memberState struct {
	SID       core.SessionID
	Account   domain.Account
	Conn      core.SignalConnection
	Buffering bool
}

// roomEntry holds the in-memory side of one room. Its mutex serializes
// every read-modify-write of the room's state, so a dispatched action
// and a broadcaster tick never interleave. The grace timers are owned
// here, never looked up from a global table.
type roomEntry struct {
	mu      sync.Mutex
	members map[core.SessionID]*memberState

	// resumeOnClear marks that playback was paused by the weakest-link
	// rule rather than by a user, and may resume once everyone is ready.
	resumeOnClear bool

	debounce *time.Timer
	grace    *time.Timer
}

// Registry tracks live connections and their rooms. It is the only
// cross-connection mutable structure besides the store itself.
type Registry struct {
	mu    sync.RWMutex
	rooms map[domain.RoomID]*roomEntry
	index map[core.SessionID]domain.RoomID
}

func NewRegistry() *Registry {
	return &Registry{
		rooms: make(map[domain.RoomID]*roomEntry),
		index: make(map[core.SessionID]domain.RoomID),
	}
}

// room returns the entry for id, creating it if needed.
func (r *Registry) room(id domain.RoomID) *roomEntry {
	r.mu.RLock()
	e, ok := r.rooms[id]
	r.mu.RUnlock()
	if ok {
		return e
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok = r.rooms[id]; ok {
		return e
	}
	e = &roomEntry{members: make(map[core.SessionID]*memberState)}
	r.rooms[id] = e
	return e
}

func (r *Registry) peek(id domain.RoomID) (*roomEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.rooms[id]
	return e, ok
}

// join registers the connection and returns the partner already in the
// room, if any.
func (r *Registry) join(id domain.RoomID, m *memberState) (partner memberState, found bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.rooms[id]
	if !ok {
		e = &roomEntry{members: make(map[core.SessionID]*memberState)}
		r.rooms[id] = e
	}
	for _, other := range e.members {
		partner, found = *other, true
		break
	}
	e.members[m.SID] = m
	r.index[m.SID] = id
	return partner, found
}

// leave deregisters the connection and reports who is left behind.
func (r *Registry) leave(sid core.SessionID) (domain.RoomID, memberState, []memberState, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.index[sid]
	if !ok {
		return "", memberState{}, nil, false
	}
	delete(r.index, sid)
	e, ok := r.rooms[id]
	if !ok {
		return "", memberState{}, nil, false
	}
	m, ok := e.members[sid]
	if !ok {
		return "", memberState{}, nil, false
	}
	delete(e.members, sid)
	remaining := make([]memberState, 0, len(e.members))
	for _, other := range e.members {
		remaining = append(remaining, *other)
	}
	return id, *m, remaining, true
}

func (r *Registry) memberBySID(sid core.SessionID) (domain.RoomID, memberState, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.index[sid]
	if !ok {
		return "", memberState{}, false
	}
	if e, ok := r.rooms[id]; ok {
		if m, ok := e.members[sid]; ok {
			return id, *m, true
		}
	}
	return "", memberState{}, false
}

func (r *Registry) members(id domain.RoomID) []memberState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.rooms[id]
	if !ok {
		return nil
	}
	out := make([]memberState, 0, len(e.members))
	for _, m := range e.members {
		out = append(out, *m)
	}
	return out
}

func (r *Registry) conn(sid core.SessionID) (core.SignalConnection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.index[sid]
	if !ok {
		return nil, false
	}
	if e, ok := r.rooms[id]; ok {
		if m, ok := e.members[sid]; ok {
			return m.Conn, true
		}
	}
	return nil, false
}

func (r *Registry) setBuffering(sid core.SessionID, buffering bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.index[sid]
	if !ok {
		return false
	}
	if e, ok := r.rooms[id]; ok {
		if m, ok := e.members[sid]; ok {
			m.Buffering = buffering
			return true
		}
	}
	return false
}

// anyBuffering reports whether any live connection in the room, other
// than except, is stalled.
func (r *Registry) anyBuffering(id domain.RoomID, except core.SessionID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.rooms[id]
	if !ok {
		return false
	}
	for sid, m := range e.members {
		if sid != except && m.Buffering {
			return true
		}
	}
	return false
}

// activeRooms lists rooms with at least one live connection. Empty
// rooms are skipped by the broadcaster and reclaimed by the grace
// timer.
func (r *Registry) activeRooms() []domain.RoomID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.RoomID, 0, len(r.rooms))
	for id, e := range r.rooms {
		if len(e.members) > 0 {
			out = append(out, id)
		}
	}
	return out
}

// scheduleTeardown arms the empty-room timers: a short debounce first,
// then the grace period. If the room is still empty when the grace
// timer fires, the in-memory entry is released. The durable store
// record is untouched; it expires on its own TTL.
func (r *Registry) scheduleTeardown(id domain.RoomID, debounce, grace time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.rooms[id]
	if !ok || len(e.members) > 0 {
		return
	}
	if e.debounce != nil {
		e.debounce.Stop()
	}
	e.debounce = time.AfterFunc(debounce, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		e, ok := r.rooms[id]
		if !ok || len(e.members) > 0 {
			return
		}
		if e.grace != nil {
			e.grace.Stop()
		}
		e.grace = time.AfterFunc(grace, func() { r.release(id) })
	})
}

// cancelTeardown stops pending teardown timers; called on reconnect so
// continuity is preserved.
func (r *Registry) cancelTeardown(id domain.RoomID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.rooms[id]
	if !ok {
		return
	}
	if e.debounce != nil {
		e.debounce.Stop()
		e.debounce = nil
	}
	if e.grace != nil {
		e.grace.Stop()
		e.grace = nil
	}
}

func (r *Registry) release(id domain.RoomID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.rooms[id]
	if !ok || len(e.members) > 0 {
		return
	}
	delete(r.rooms, id)
	log.Info().Str("module", "app.registry").Str("room", string(id)).Msg("released empty room")
}

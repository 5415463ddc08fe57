package store

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/sarim-aliii/duet/internal/core"
	"github.com/sarim-aliii/duet/internal/domain"
)

type memoryRecord struct {
	data      []byte
	expiresAt time.Time
}

// MemoryStore is the single-instance store: a TTL'd map with the same
// codec as the redis adapter, so both round-trip identically. Records
// are kept encoded so callers never share a mutable reference with the
// store.
type MemoryStore struct {
	mu      sync.Mutex
	records map[domain.RoomID]memoryRecord
	ttl     time.Duration
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		records: make(map[domain.RoomID]memoryRecord),
		ttl:     ttl,
	}
}

var _ core.StateStore = (*MemoryStore)(nil)

func (s *MemoryStore) Get(_ context.Context, id domain.RoomID) (*domain.RoomState, bool) {
	s.mu.Lock()
	rec, ok := s.records[id]
	if ok && time.Now().After(rec.expiresAt) {
		delete(s.records, id)
		ok = false
	}
	s.mu.Unlock()
	if !ok {
		return nil, false
	}
	var state domain.RoomState
	if err := msgpack.Unmarshal(rec.data, &state); err != nil {
		log.Error().Err(err).Str("module", "store.memory").Str("room", string(id)).Msg("corrupt record, treating as absent")
		return nil, false
	}
	return &state, true
}

func (s *MemoryStore) Put(_ context.Context, id domain.RoomID, state *domain.RoomState) {
	b, err := msgpack.Marshal(state)
	if err != nil {
		log.Error().Err(err).Str("module", "store.memory").Str("room", string(id)).Msg("encode state")
		return
	}
	s.mu.Lock()
	s.records[id] = memoryRecord{data: b, expiresAt: time.Now().Add(s.ttl)}
	s.mu.Unlock()
}

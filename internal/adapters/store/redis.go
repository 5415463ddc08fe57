// Package store provides the RoomState store adapters. Both honor the
// same contract: absence means "needs hydration", backend failures
// degrade to absence, and every put refreshes the TTL.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/sarim-aliii/duet/internal/core"
	"github.com/sarim-aliii/duet/internal/domain"
)

const keyPrefix = "room:"

type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore connects and pings; a dead redis at startup is an
// error, a dead redis later is degraded-to-absent.
func NewRedisStore(url string, ttl time.Duration) (*RedisStore, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis: parse url: %w", err)
	}
	c := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := c.Ping(ctx).Err(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("redis: ping: %w", err)
	}
	return &RedisStore{client: c, ttl: ttl}, nil
}

var _ core.StateStore = (*RedisStore)(nil)

func (s *RedisStore) Get(ctx context.Context, id domain.RoomID) (*domain.RoomState, bool) {
	b, err := s.client.Get(ctx, keyPrefix+string(id)).Bytes()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		log.Warn().Err(err).Str("module", "store.redis").Str("room", string(id)).Msg("get failed, treating as absent")
		return nil, false
	}
	var state domain.RoomState
	if err := msgpack.Unmarshal(b, &state); err != nil {
		log.Error().Err(err).Str("module", "store.redis").Str("room", string(id)).Msg("corrupt record, treating as absent")
		return nil, false
	}
	return &state, true
}

func (s *RedisStore) Put(ctx context.Context, id domain.RoomID, state *domain.RoomState) {
	b, err := msgpack.Marshal(state)
	if err != nil {
		log.Error().Err(err).Str("module", "store.redis").Str("room", string(id)).Msg("encode state")
		return
	}
	if err := s.client.Set(ctx, keyPrefix+string(id), b, s.ttl).Err(); err != nil {
		log.Warn().Err(err).Str("module", "store.redis").Str("room", string(id)).Msg("put failed")
	}
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

package app

import (
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sarim-aliii/duet/internal/core"
	"github.com/sarim-aliii/duet/internal/domain"
)

// Config carries the engine's policy knobs; values come from the config
// file via main.
type Config struct {
	SyncInterval   time.Duration
	GracePeriod    time.Duration
	EmptyDebounce  time.Duration
	FreeTrialLimit time.Duration
	MessageCap     int
	ChatRateLimit  int
	ChatRateWindow time.Duration
}

// Engine is the single authority over a room's state. All mutation goes
// through it, serialized per room by the registry entry's lock.
type Engine struct {
	cfg      Config
	reg      *Registry
	store    core.StateStore
	history  core.HistoryLog
	accounts core.Accounts
	notify   core.Notifier
	limiter  *RateLimiter

	now func() time.Time
}

func NewEngine(cfg Config, store core.StateStore, history core.HistoryLog, accounts core.Accounts, notify core.Notifier) *Engine {
	return &Engine{
		cfg:      cfg,
		reg:      NewRegistry(),
		store:    store,
		history:  history,
		accounts: accounts,
		notify:   notify,
		limiter:  NewRateLimiter(cfg.ChatRateLimit, cfg.ChatRateWindow),
		now:      time.Now,
	}
}

// sendTo marshals and pushes one event to one connection. Socket I/O is
// fire-and-forget: a slow or closed peer never blocks the room's unit
// of work.
func (e *Engine) sendTo(sid core.SessionID, conn core.SignalConnection, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "app").Msg("marshal event")
		return
	}
	if err := conn.TrySend(b); err != nil {
		log.Warn().Err(err).Str("module", "app").Str("sid", string(sid)).Msg("send dropped")
	}
}

func (e *Engine) broadcast(id domain.RoomID, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "app").Str("room", string(id)).Msg("marshal broadcast")
		return
	}
	for _, m := range e.reg.members(id) {
		if err := m.Conn.TrySend(b); err != nil {
			log.Warn().Err(err).Str("module", "app").Str("sid", string(m.SID)).Msg("broadcast dropped")
		}
	}
}

func (e *Engine) broadcastExcept(id domain.RoomID, except core.SessionID, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "app").Str("room", string(id)).Msg("marshal broadcast")
		return
	}
	for _, m := range e.reg.members(id) {
		if m.SID == except {
			continue
		}
		if err := m.Conn.TrySend(b); err != nil {
			log.Warn().Err(err).Str("module", "app").Str("sid", string(m.SID)).Msg("broadcast dropped")
		}
	}
}

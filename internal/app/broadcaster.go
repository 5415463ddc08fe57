package app

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sarim-aliii/duet/internal/core"
	"github.com/sarim-aliii/duet/internal/domain"
)

// RunSync is the master clock: a fixed-interval loop that advances each
// active room's playback position and enforces the free-trial cutoff.
// It is the single source of "now"; clients only smooth between ticks.
// Blocks until ctx is done.
func (e *Engine) RunSync(ctx context.Context) {
	ticker := time.NewTicker(e.cfg.SyncInterval)
	defer ticker.Stop()
	log.Info().Str("module", "app.broadcaster").Dur("interval", e.cfg.SyncInterval).Msg("sync loop started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "app.broadcaster").Msg("sync loop stopped")
			return
		case <-ticker.C:
			for _, id := range e.reg.activeRooms() {
				e.tickRoom(ctx, id)
			}
		}
	}
}

// tickRoom runs one sync step for one room under its lock. Rooms with
// nothing to change are skipped silently to avoid redundant traffic.
func (e *Engine) tickRoom(ctx context.Context, id domain.RoomID) {
	entry, ok := e.reg.peek(id)
	if !ok {
		return
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()

	state, ok := e.store.Get(ctx, id)
	if !ok {
		return
	}
	now := e.now()

	if !state.IsPremium && state.Age(now) > e.cfg.FreeTrialLimit && state.VideoSource.Loaded() {
		state.VideoSource = domain.VideoSource{Kind: domain.SourceNone}
		state.Playback.IsPlaying = false
		state.Playback.LastUpdate = now.UnixMilli()
		state.IsScreenSharing = false
		e.store.Put(ctx, id, state)
		e.broadcast(id, core.NewStateUpdate(state))
		e.broadcast(id, core.NewNotification(core.NoticeGated, "Free trial expired. Go premium to continue."))
		log.Warn().Str("module", "app.broadcaster").Str("room", string(id)).Msg("free trial expired")
		return
	}

	if !state.Playback.IsPlaying {
		return
	}
	elapsed := float64(now.UnixMilli()-state.Playback.LastUpdate) / 1000
	state.Playback.CurrentTime += elapsed * state.Playback.Rate
	state.Playback.LastUpdate = now.UnixMilli()
	e.store.Put(ctx, id, state)
	e.broadcast(id, core.NewStateUpdate(state))
}

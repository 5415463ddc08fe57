package app

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/sarim-aliii/duet/internal/core"
)

// ReportBuffering applies the weakest-link rule: if anyone is stalled,
// nobody plays. A stall report pauses playback immediately, independent
// of the sync tick. Clearing a flag resumes only when no live
// connection is still stalled and the pause was caused by buffering in
// the first place.
func (e *Engine) ReportBuffering(ctx context.Context, sid core.SessionID, buffering bool) {
	roomID, _, ok := e.reg.memberBySID(sid)
	if !ok {
		return
	}
	e.reg.setBuffering(sid, buffering)
	e.broadcastExcept(roomID, sid, core.NewPartnerBuffering(buffering))

	entry := e.reg.room(roomID)
	entry.mu.Lock()
	defer entry.mu.Unlock()

	state, ok := e.store.Get(ctx, roomID)
	if !ok {
		return
	}
	now := e.now()

	if buffering {
		if !state.Playback.IsPlaying {
			return
		}
		// pause at the derived position, not the stale measurement
		state.Playback.CurrentTime = state.Playback.PositionAt(now)
		state.Playback.IsPlaying = false
		state.Playback.LastUpdate = now.UnixMilli()
		entry.resumeOnClear = true
		e.store.Put(ctx, roomID, state)
		e.broadcast(roomID, core.NewStateUpdate(state))
		log.Info().Str("module", "app.policy").Str("room", string(roomID)).Str("sid", string(sid)).Msg("paused for buffering")
		return
	}

	if !entry.resumeOnClear || state.Playback.IsPlaying {
		return
	}
	if e.reg.anyBuffering(roomID, "") {
		// someone else is still stalled; stay paused
		return
	}
	state.Playback.IsPlaying = true
	state.Playback.LastUpdate = now.UnixMilli()
	entry.resumeOnClear = false
	e.store.Put(ctx, roomID, state)
	e.broadcast(roomID, core.NewStateUpdate(state))
	log.Info().Str("module", "app.policy").Str("room", string(roomID)).Msg("resumed, all connections ready")
}

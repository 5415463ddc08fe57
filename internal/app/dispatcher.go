package app

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/sarim-aliii/duet/internal/core"
	"github.com/sarim-aliii/duet/internal/domain"
)

// HandleAction applies one client action to the room's state. The whole
// read-modify-write runs under the room lock; nothing here may panic
// past this boundary, and a failed action is a no-op for state.
func (e *Engine) HandleAction(ctx context.Context, sid core.SessionID, raw []byte) {
	roomID, m, ok := e.reg.memberBySID(sid)
	if !ok {
		log.Warn().Str("module", "app.dispatcher").Str("sid", string(sid)).Msg("action from unregistered connection")
		return
	}

	action, err := e.decode(raw, roomID)
	if err != nil {
		return
	}

	entry := e.reg.room(roomID)
	entry.mu.Lock()
	defer entry.mu.Unlock()

	now := e.now()
	state, ok := e.store.Get(ctx, roomID)
	if !ok {
		// Absence means the record expired or the store is down. Either
		// way the room needs hydration, not an error.
		state = e.hydrate(ctx, roomID, m.Account)
	}

	switch a := action.(type) {
	case domain.UpdatePlaybackState:
		e.clearStall(roomID, sid, m)
		if a.IsPlaying != nil {
			state.Playback.IsPlaying = *a.IsPlaying
			if !*a.IsPlaying {
				// explicit pause wins over any pending auto-resume
				entry.resumeOnClear = false
			}
		}
		if a.CurrentTime != nil {
			state.Playback.CurrentTime = *a.CurrentTime
		}
		if a.Rate != nil {
			state.Playback.Rate = *a.Rate
		}
		state.Playback.LastUpdate = now.UnixMilli()
		if state.Playback.IsPlaying && e.reg.anyBuffering(roomID, "") {
			// weakest link: nobody plays while someone is stalled
			state.Playback.IsPlaying = false
			entry.resumeOnClear = true
		}

	case domain.UpdatePlaybackTime:
		e.clearStall(roomID, sid, m)
		state.Playback.CurrentTime = a.CurrentTime
		state.Playback.LastUpdate = now.UnixMilli()

	case domain.UpdateVideoSource:
		state.VideoSource = a.Source
		state.Playback = domain.PlaybackState{Rate: 1, LastUpdate: now.UnixMilli()}
		state.IsScreenSharing = a.Source.Kind == domain.SourceScreen

	case domain.SendMessage:
		e.handleMessage(ctx, roomID, sid, m, state, a, now)
		return

	case domain.SetTyping:
		if a.IsTyping {
			state.TypingUser = m.Account.ID
		} else {
			state.TypingUser = ""
		}
		e.store.Put(ctx, roomID, state)
		e.broadcastExcept(roomID, sid, core.NewPartnerTyping(state.TypingUser))
		return

	case domain.UpdateUIState:
		if a.SidebarVisible != nil {
			state.UI.SidebarVisible = *a.SidebarVisible
		}

	case domain.SetAmbientSound:
		if a.Track != nil {
			state.AmbientSound.Track = *a.Track
		}
		if a.IsPlaying != nil {
			state.AmbientSound.IsPlaying = *a.IsPlaying
		}
		if a.Volume != nil {
			state.AmbientSound.Volume = *a.Volume
		}

	case domain.CreateJournalEntry:
		e.handleJournal(ctx, roomID, sid, m, state, a, now)
		return

	case domain.CheckPremiumStatus:
		// isPremium is monotonic: it may be upgraded in place, never
		// revoked mid-session.
		if !state.IsPremium && e.pairIsPremium(ctx, m.Account) {
			state.IsPremium = true
			log.Info().Str("module", "app.dispatcher").Str("room", string(roomID)).Msg("room upgraded to premium")
		}
	}

	// Default path for every action that did not return after a narrow
	// broadcast: persist and push the full authoritative state.
	e.store.Put(ctx, roomID, state)
	e.broadcast(roomID, core.NewStateUpdate(state))
}

func (e *Engine) decode(raw []byte, roomID domain.RoomID) (domain.Action, error) {
	action, err := domain.DecodeAction(raw)
	if err != nil {
		log.Warn().Err(err).Str("module", "app.dispatcher").Str("room", string(roomID)).Msg("dropped action")
		return nil, err
	}
	return action, nil
}

// clearStall drops the sender's buffering flag when an action carries
// fresh playback data; receiving it proves the stall resolved.
func (e *Engine) clearStall(roomID domain.RoomID, sid core.SessionID, m memberState) {
	if !m.Buffering {
		return
	}
	e.reg.setBuffering(sid, false)
	e.broadcastExcept(roomID, sid, core.NewPartnerBuffering(false))
}

func (e *Engine) handleMessage(ctx context.Context, roomID domain.RoomID, sid core.SessionID, m memberState, state *domain.RoomState, a domain.SendMessage, now time.Time) {
	if !e.limiter.Allow(m.Account.ID) {
		e.sendTo(sid, m.Conn, core.NewNotification(core.NoticeError, "You are sending messages too fast."))
		return
	}

	kind := a.Kind
	if kind == "" {
		kind = domain.MessageText
	}
	content := a.Content
	if content == "" && a.Image != "" {
		content = "Image Attachment"
	}
	msg := domain.ChatMessage{
		ID:           uuid.NewString(),
		SenderID:     m.Account.ID,
		SenderName:   m.Account.Name,
		SenderAvatar: m.Account.Avatar,
		Kind:         kind,
		Content:      content,
		Image:        a.Image,
		Timestamp:    now.UnixMilli(),
	}

	e.broadcast(roomID, core.NewMessage(msg))
	state.AppendMessage(msg, e.cfg.MessageCap)
	e.store.Put(ctx, roomID, state)

	partnerOffline := true
	for _, other := range e.reg.members(roomID) {
		if other.SID != sid {
			partnerOffline = false
		}
	}
	go e.persistMessage(roomID, msg, m.Account, partnerOffline)
}

// persistMessage writes the durable copy and pokes the offline partner.
// Durability loss here is logged, not fatal to the live session.
func (e *Engine) persistMessage(roomID domain.RoomID, msg domain.ChatMessage, sender domain.Account, partnerOffline bool) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := e.history.AppendMessage(ctx, roomID, msg); err != nil {
		log.Error().Err(err).Str("module", "app.dispatcher").Str("room", string(roomID)).Msg("message persistence failed")
	}
	if partnerOffline {
		title := sender.Name
		if title == "" {
			title = "Partner"
		}
		e.notify.Push(ctx, sender.Partner, title, msg.Content)
	}
}

func (e *Engine) handleJournal(ctx context.Context, roomID domain.RoomID, sid core.SessionID, m memberState, state *domain.RoomState, a domain.CreateJournalEntry, now time.Time) {
	entry := domain.JournalEntry{
		RoomID:    roomID,
		AuthorID:  m.Account.ID,
		Content:   a.Content,
		CreatedAt: now,
		UpdatedAt: now,
	}
	// Durable write first; the broadcast carries the assigned id.
	saved, err := e.history.AppendJournal(ctx, entry)
	if err != nil {
		log.Error().Err(err).Str("module", "app.dispatcher").Str("room", string(roomID)).Msg("journal persistence failed")
		e.sendTo(sid, m.Conn, core.NewNotification(core.NoticeError, "Failed to save journal entry."))
		return
	}
	state.JournalEntries = append(state.JournalEntries, saved)
	e.store.Put(ctx, roomID, state)
	e.broadcast(roomID, core.NewJournalEntry(saved))
}

func (e *Engine) pairIsPremium(ctx context.Context, account domain.Account) bool {
	premium := false
	if fresh, err := e.accounts.Lookup(ctx, account.ID); err == nil {
		premium = fresh.Premium
	} else {
		log.Warn().Err(err).Str("module", "app.dispatcher").Msg("premium re-check failed")
	}
	if partner, err := e.accounts.Lookup(ctx, account.Partner); err == nil {
		premium = premium || partner.Premium
	} else {
		log.Warn().Err(err).Str("module", "app.dispatcher").Msg("partner premium re-check failed")
	}
	return premium
}

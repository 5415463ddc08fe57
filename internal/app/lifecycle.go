package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/sarim-aliii/duet/internal/core"
	"github.com/sarim-aliii/duet/internal/domain"
)

// ErrNotPaired rejects connections whose account has no partner
// configured. Pairing is a precondition, not a runtime optional.
var ErrNotPaired = errors.New("account is not paired")

// Join admits an authenticated connection: resolves the room, cancels a
// pending teardown, hydrates state if the store has none, registers
// presence and tells both sides about each other.
func (e *Engine) Join(ctx context.Context, sid core.SessionID, uid domain.UserID, conn core.SignalConnection) (domain.RoomID, error) {
	account, err := e.accounts.Lookup(ctx, uid)
	if err != nil {
		return "", fmt.Errorf("resolve account %s: %w", uid, err)
	}
	if !account.Paired() {
		return "", ErrNotPaired
	}

	roomID := domain.PairRoomID(uid, account.Partner)
	e.reg.cancelTeardown(roomID)

	entry := e.reg.room(roomID)
	entry.mu.Lock()
	state, ok := e.store.Get(ctx, roomID)
	if !ok {
		state = e.hydrate(ctx, roomID, account)
		e.store.Put(ctx, roomID, state)
	}
	entry.mu.Unlock()

	m := &memberState{SID: sid, Account: account, Conn: conn}
	partner, hasPartner := e.reg.join(roomID, m)

	var partnerSID core.SessionID
	if hasPartner {
		partnerSID = partner.SID
	}
	e.sendTo(sid, conn, core.NewRoomJoined(roomID, state, sid, partnerSID))
	if hasPartner {
		e.sendTo(partner.SID, partner.Conn, core.NewPartnerOnline(sid))
	}

	log.Info().Str("module", "app.lifecycle").
		Str("room", string(roomID)).
		Str("sid", string(sid)).
		Bool("partner_online", hasPartner).
		Msg("joined room")
	return roomID, nil
}

// hydrate builds a fresh room: default state, premium computed from
// both accounts, rolling windows loaded from the durable log. Failures
// of the collaborators degrade to an empty window, never to an error.
func (e *Engine) hydrate(ctx context.Context, id domain.RoomID, account domain.Account) *domain.RoomState {
	state := domain.DefaultRoomState(e.now())

	premium := account.Premium
	if partner, err := e.accounts.Lookup(ctx, account.Partner); err == nil {
		premium = premium || partner.Premium
	} else {
		log.Warn().Err(err).Str("module", "app.lifecycle").Str("room", string(id)).Msg("partner account lookup failed")
	}
	state.IsPremium = premium

	if msgs, err := e.history.MessagesByRoom(ctx, id, e.cfg.MessageCap); err == nil {
		state.Messages = msgs
	} else {
		log.Warn().Err(err).Str("module", "app.lifecycle").Str("room", string(id)).Msg("message hydration failed")
	}
	if entries, err := e.history.JournalByRoom(ctx, id); err == nil {
		state.JournalEntries = entries
	} else {
		log.Warn().Err(err).Str("module", "app.lifecycle").Str("room", string(id)).Msg("journal hydration failed")
	}

	log.Info().Str("module", "app.lifecycle").
		Str("room", string(id)).
		Bool("premium", premium).
		Int("messages", len(state.Messages)).
		Int("journal_entries", len(state.JournalEntries)).
		Msg("hydrated room state")
	return state
}

// Disconnect handles a closed connection: the remaining participant
// hears about it immediately, the leaver's stall flag stops counting
// against the room, and the empty-room teardown is armed. Reconnecting
// before the grace timer fires cancels it; nothing durable is lost
// either way.
func (e *Engine) Disconnect(sid core.SessionID) {
	roomID, m, remaining, ok := e.reg.leave(sid)
	if !ok {
		return
	}

	for _, other := range remaining {
		e.sendTo(other.SID, other.Conn, core.NewPartnerOffline(sid))
		if m.Buffering {
			e.sendTo(other.SID, other.Conn, core.NewPartnerBuffering(false))
		}
	}

	if len(remaining) == 0 {
		e.reg.scheduleTeardown(roomID, e.cfg.EmptyDebounce, e.cfg.GracePeriod)
	}

	log.Info().Str("module", "app.lifecycle").
		Str("room", string(roomID)).
		Str("sid", string(sid)).
		Int("remaining", len(remaining)).
		Msg("disconnected")
}

// Package core defines the ports between the sync engine and its
// adapters. The engine never touches redis, postgres or websockets
// directly.
package core

import (
	"context"

	"github.com/sarim-aliii/duet/internal/domain"
)

// Frame is a raw outbound payload.
type Frame []byte

// SessionID identifies one live connection, not a user: both halves of
// a room have their own.
type SessionID string

// SignalConnection abstracts the transport endpoint of one session.
// Owned by the adapter; the adapter must Close() it.
type SignalConnection interface {
	TrySend(Frame) error
	Close()
}

// StateStore holds the durable, TTL'd RoomState records. Absence means
// "needs hydration", never an error: Get swallows backend failures and
// reports absent, Put is fire-and-forget-logged. Every Put refreshes
// the TTL, so an active room never expires mid-session.
type StateStore interface {
	Get(ctx context.Context, id domain.RoomID) (*domain.RoomState, bool)
	Put(ctx context.Context, id domain.RoomID, state *domain.RoomState)
}

// HistoryLog is the durable message/journal collaborator. The rolling
// in-memory windows are hydrated from here on room creation.
type HistoryLog interface {
	AppendMessage(ctx context.Context, id domain.RoomID, m domain.ChatMessage) error
	MessagesByRoom(ctx context.Context, id domain.RoomID, limit int) ([]domain.ChatMessage, error)
	// AppendJournal persists the entry and returns it with the durably
	// assigned id and timestamps.
	AppendJournal(ctx context.Context, e domain.JournalEntry) (domain.JournalEntry, error)
	JournalByRoom(ctx context.Context, id domain.RoomID) ([]domain.JournalEntry, error)
}

// Accounts resolves an identity to its account record (premium flag,
// paired partner).
type Accounts interface {
	Lookup(ctx context.Context, id domain.UserID) (domain.Account, error)
}

// Notifier delivers a fire-and-forget push to an identity that is not
// currently connected.
type Notifier interface {
	Push(ctx context.Context, to domain.UserID, title, body string)
}

// Package history is the durable message/journal log. The engine's
// rolling windows are hydrated from here; losing a write degrades
// durability, never the live session.
package history

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sarim-aliii/duet/internal/core"
	"github.com/sarim-aliii/duet/internal/domain"
)

type PgHistory struct {
	pool *pgxpool.Pool
}

func NewPgHistory(pool *pgxpool.Pool) *PgHistory {
	return &PgHistory{pool: pool}
}

var _ core.HistoryLog = (*PgHistory)(nil)

func (h *PgHistory) AppendMessage(ctx context.Context, id domain.RoomID, m domain.ChatMessage) error {
	_, err := h.pool.Exec(ctx, `
		INSERT INTO messages (id, room_id, sender_id, sender_name, sender_avatar, kind, content, image, sent_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		m.ID, string(id), string(m.SenderID), m.SenderName, m.SenderAvatar,
		string(m.Kind), m.Content, m.Image, time.UnixMilli(m.Timestamp),
	)
	if err != nil {
		return fmt.Errorf("append message: %w", err)
	}
	return nil
}

// MessagesByRoom returns the most recent limit messages in ascending
// order, matching the shape of the in-memory rolling window.
func (h *PgHistory) MessagesByRoom(ctx context.Context, id domain.RoomID, limit int) ([]domain.ChatMessage, error) {
	rows, err := h.pool.Query(ctx, `
		SELECT id, sender_id, sender_name, sender_avatar, kind, content, image, sent_at FROM (
			SELECT id, sender_id, sender_name, sender_avatar, kind, content, image, sent_at
			FROM messages WHERE room_id = $1
			ORDER BY sent_at DESC LIMIT $2
		) latest ORDER BY sent_at ASC`,
		string(id), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	out := []domain.ChatMessage{}
	for rows.Next() {
		var m domain.ChatMessage
		var sentAt time.Time
		if err := rows.Scan(&m.ID, &m.SenderID, &m.SenderName, &m.SenderAvatar, &m.Kind, &m.Content, &m.Image, &sentAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		m.Timestamp = sentAt.UnixMilli()
		out = append(out, m)
	}
	return out, rows.Err()
}

func (h *PgHistory) AppendJournal(ctx context.Context, e domain.JournalEntry) (domain.JournalEntry, error) {
	row := h.pool.QueryRow(ctx, `
		INSERT INTO journal_entries (room_id, author_id, content, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)
		RETURNING id, created_at, updated_at`,
		string(e.RoomID), string(e.AuthorID), e.Content, e.CreatedAt,
	)
	if err := row.Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return domain.JournalEntry{}, fmt.Errorf("append journal entry: %w", err)
	}
	return e, nil
}

func (h *PgHistory) JournalByRoom(ctx context.Context, id domain.RoomID) ([]domain.JournalEntry, error) {
	rows, err := h.pool.Query(ctx, `
		SELECT id, author_id, content, created_at, updated_at
		FROM journal_entries WHERE room_id = $1
		ORDER BY created_at ASC`,
		string(id),
	)
	if err != nil {
		return nil, fmt.Errorf("query journal: %w", err)
	}
	defer rows.Close()

	out := []domain.JournalEntry{}
	for rows.Next() {
		e := domain.JournalEntry{RoomID: id}
		if err := rows.Scan(&e.ID, &e.AuthorID, &e.Content, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan journal entry: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

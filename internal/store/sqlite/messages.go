package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"gochat/internal/domain"
)

// MessageStore is the append-only message persistence layer.
type MessageStore struct {
	db *sql.DB
}

func NewMessageStore(db *sql.DB) *MessageStore {
	return &MessageStore{db: db}
}

var _ domain.MessageStore = (*MessageStore)(nil)

const messageColumns = `id, text, sender_id, receiver_id, is_private, created_at`

// Append persists the message and fills in its ID and creation
// timestamp. The timestamp is assigned here so the caller can echo it
// on the wire without a read-back.
func (s *MessageStore) Append(ctx context.Context, m *domain.Message) error {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	query := `
		INSERT INTO messages (text, sender_id, receiver_id, is_private, created_at)
		VALUES (?, ?, ?, ?, ?)
	`
	res, err := s.db.ExecContext(ctx, query,
		m.Text,
		m.SenderID,
		m.ReceiverID,
		m.IsPrivate,
		m.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	m.ID = id
	return nil
}

// QueryPublic returns the most recent public messages, newest first.
// The id tiebreak keeps same-timestamp rows in insertion order.
func (s *MessageStore) QueryPublic(ctx context.Context, limit int) ([]*domain.Message, error) {
	query := `
		SELECT ` + messageColumns + `
		FROM messages
		WHERE is_private = 0
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`
	return s.queryMessages(ctx, query, limit)
}

// QueryPrivate returns the most recent private messages between the two
// users, in either sender/receiver orientation, newest first.
func (s *MessageStore) QueryPrivate(ctx context.Context, userA, userB string, limit int) ([]*domain.Message, error) {
	query := `
		SELECT ` + messageColumns + `
		FROM messages
		WHERE is_private = 1
		  AND ((sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?))
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`
	return s.queryMessages(ctx, query, userA, userB, userB, userA, limit)
}

// PrunePublic deletes the oldest public messages beyond keep.
func (s *MessageStore) PrunePublic(ctx context.Context, keep int) error {
	var count int
	if err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM messages WHERE is_private = 0
	`).Scan(&count); err != nil {
		return fmt.Errorf("count public messages: %w", err)
	}

	if count <= keep {
		return nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id FROM messages
		WHERE is_private = 0
		ORDER BY created_at ASC, id ASC
		LIMIT ?
	`, count-keep)
	if err != nil {
		return fmt.Errorf("select old messages: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return fmt.Errorf("scan id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate old messages: %w", err)
	}

	if len(ids) == 0 {
		return nil
	}

	query := `DELETE FROM messages WHERE id IN (?` + strings.Repeat(",?", len(ids)-1) + `)`
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("delete old messages: %w", err)
	}
	return nil
}

func (s *MessageStore) queryMessages(ctx context.Context, query string, args ...any) ([]*domain.Message, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var res []*domain.Message
	for rows.Next() {
		m := &domain.Message{}
		if err := rows.Scan(
			&m.ID,
			&m.Text,
			&m.SenderID,
			&m.ReceiverID,
			&m.IsPrivate,
			&m.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		res = append(res, m)
	}
	return res, rows.Err()
}

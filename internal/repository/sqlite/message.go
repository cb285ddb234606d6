package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"time"

	"github.com/sakif/chat-wrapper/internal/model"
	"github.com/sakif/chat-wrapper/internal/repository"
)

var _ repository.MessageRepository = (*MessageStore)(nil)

// MessageStore is the append-only conversation log.
type MessageStore struct {
	conn *sql.DB
	now  func() time.Time
}

// Append stores msg and fills in its ID and CreatedAt.
func (s *MessageStore) Append(ctx context.Context, msg *model.Message) error {
	msg.CreatedAt = s.now().UTC()

	result, err := s.conn.ExecContext(ctx,
		`INSERT INTO messages (user_id, role, content, created_at) VALUES (?, ?, ?, ?)`,
		msg.UserID, string(msg.Role), msg.Content, toMillis(msg.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("sqlite: appending %s message for user %s: %w", msg.Role, msg.UserID, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("sqlite: reading message id: %w", err)
	}
	msg.ID = id
	return nil
}

// Recent takes the newest limit rows by id and returns them oldest first.
func (s *MessageStore) Recent(ctx context.Context, userID string, limit int) ([]model.Message, error) {
	if limit <= 0 {
		return []model.Message{}, nil
	}

	rows, err := s.conn.QueryContext(ctx,
		`SELECT id, user_id, role, content, created_at
		 FROM messages
		 WHERE user_id = ?
		 ORDER BY id DESC
		 LIMIT ?`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: loading recent messages for user %s: %w", userID, err)
	}
	defer rows.Close()

	msgs := make([]model.Message, 0, limit)
	for rows.Next() {
		var (
			m       model.Message
			role    string
			created int64
		)
		if err := rows.Scan(&m.ID, &m.UserID, &role, &m.Content, &created); err != nil {
			return nil, fmt.Errorf("sqlite: scanning message row: %w", err)
		}
		m.Role = model.Role(role)
		m.CreatedAt = fromMillis(created)
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating message rows: %w", err)
	}

	slices.Reverse(msgs)
	return msgs, nil
}

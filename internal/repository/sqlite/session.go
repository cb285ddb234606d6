package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sakif/chat-wrapper/internal/apperror"
	"github.com/sakif/chat-wrapper/internal/model"
	"github.com/sakif/chat-wrapper/internal/repository"
)

var _ repository.SessionRepository = (*SessionStore)(nil)

// SessionStore persists session tokens. It never judges expiry itself;
// callers compare ExpiresAt against their own clock.
type SessionStore struct {
	conn *sql.DB
}

func (s *SessionStore) Create(ctx context.Context, session *model.Session) error {
	_, err := s.conn.ExecContext(ctx,
		`INSERT INTO sessions (token, user_id, created_at, expires_at) VALUES (?, ?, ?, ?)`,
		session.Token,
		session.UserID,
		toMillis(session.CreatedAt),
		toMillis(session.ExpiresAt),
	)
	if err != nil {
		return fmt.Errorf("sqlite: inserting session for user %s: %w", session.UserID, err)
	}
	return nil
}

// Get loads the session together with its user. The inner join means a
// session whose user has vanished is reported as not found.
func (s *SessionStore) Get(ctx context.Context, token string) (*model.Session, *model.User, error) {
	var (
		sess                 model.Session
		u                    model.User
		created, expires, uc int64
	)
	err := s.conn.QueryRowContext(ctx,
		`SELECT s.token, s.user_id, s.created_at, s.expires_at,
		        u.id, u.display_name, u.login_name, u.password_hash, u.is_admin, u.created_at
		 FROM sessions s
		 JOIN users u ON u.id = s.user_id
		 WHERE s.token = ?`, token,
	).Scan(
		&sess.Token, &sess.UserID, &created, &expires,
		&u.ID, &u.DisplayName, &u.LoginName, &u.PasswordHash, &u.IsAdmin, &uc,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, apperror.NotFound("session", "(redacted)")
	}
	if err != nil {
		return nil, nil, fmt.Errorf("sqlite: getting session: %w", err)
	}

	sess.CreatedAt = fromMillis(created)
	sess.ExpiresAt = fromMillis(expires)
	u.CreatedAt = fromMillis(uc)
	return &sess, &u, nil
}

// Delete removes one session. Deleting an unknown token is not an error.
func (s *SessionStore) Delete(ctx context.Context, token string) error {
	if _, err := s.conn.ExecContext(ctx, `DELETE FROM sessions WHERE token = ?`, token); err != nil {
		return fmt.Errorf("sqlite: deleting session: %w", err)
	}
	return nil
}

// DeleteExpired removes every session with expires_at <= now and returns
// how many rows were dropped.
func (s *SessionStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := s.conn.ExecContext(ctx,
		`DELETE FROM sessions WHERE expires_at <= ?`, toMillis(now))
	if err != nil {
		return 0, fmt.Errorf("sqlite: deleting expired sessions: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	return n, nil
}

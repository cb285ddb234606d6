package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sakif/chat-wrapper/internal/apperror"
	"github.com/sakif/chat-wrapper/internal/auth"
	"github.com/sakif/chat-wrapper/internal/metrics"
	"github.com/sakif/chat-wrapper/internal/model"
	"github.com/sakif/chat-wrapper/internal/repository"
)

// SessionService issues, resolves and revokes session tokens.
//
// Expiry is absolute: ExpiresAt is fixed at creation. Every Resolve
// re-reads the store, so revocation takes effect immediately.
type SessionService struct {
	repo   repository.SessionRepository
	ttl    time.Duration
	now    Clock
	logger *slog.Logger
}

var _ auth.SessionResolver = (*SessionService)(nil)

func NewSessionService(repo repository.SessionRepository, ttl time.Duration, now Clock, logger *slog.Logger) *SessionService {
	if now == nil {
		now = time.Now
	}
	return &SessionService{repo: repo, ttl: ttl, now: now, logger: logger}
}

// TTL returns the lifetime given to new sessions.
func (s *SessionService) TTL() time.Duration {
	return s.ttl
}

// Create opens a new session for userID and returns it.
func (s *SessionService) Create(ctx context.Context, userID string) (*model.Session, error) {
	token, err := auth.NewToken()
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	sess := &model.Session{
		Token:     token,
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}
	if err := s.repo.Create(ctx, sess); err != nil {
		return nil, fmt.Errorf("service/session: creating session for user %s: %w", userID, err)
	}
	return sess, nil
}

// Resolve returns the user owning token, or (nil, nil) when the token is
// unknown, expired, or belongs to a deleted user.
func (s *SessionService) Resolve(ctx context.Context, token string) (*model.User, error) {
	if token == "" {
		return nil, nil
	}

	sess, user, err := s.repo.Get(ctx, token)
	if errors.Is(err, apperror.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("service/session: resolving session: %w", err)
	}
	if !sess.ValidAt(s.now()) {
		return nil, nil
	}
	return user, nil
}

// Invalidate deletes one session. Unknown tokens are ignored.
func (s *SessionService) Invalidate(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if err := s.repo.Delete(ctx, token); err != nil {
		return fmt.Errorf("service/session: invalidating session: %w", err)
	}
	return nil
}

// Sweep removes expired session rows. Resolve already ignores them; this
// only keeps the table small.
func (s *SessionService) Sweep(ctx context.Context) (int64, error) {
	n, err := s.repo.DeleteExpired(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("service/session: sweeping: %w", err)
	}
	if n > 0 {
		metrics.SessionsSwept.Add(float64(n))
		s.logger.Debug("expired sessions swept", slog.Int64("count", n))
	}
	return n, nil
}

// RunSweeper calls Sweep every interval until ctx is done.
func (s *SessionService) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Sweep(ctx); err != nil && ctx.Err() == nil {
				s.logger.Warn("session sweep failed", slog.String("error", err.Error()))
			}
		}
	}
}

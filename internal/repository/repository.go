// Package repository declares the storage contracts the service layer depends
// on. Implementations live in subpackages (see repository/sqlite).
package repository

import (
	"context"
	"time"

	"github.com/sakif/chat-wrapper/internal/model"
)

// UserRepository owns user records.
//
// Lookups are exact-match. Missing rows yield an apperror.ErrNotFound;
// a duplicate login name on Create yields apperror.ErrConflict.
type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id string) (*model.User, error)
	GetByLoginName(ctx context.Context, loginName string) (*model.User, error)
	List(ctx context.Context) ([]model.User, error)
	Count(ctx context.Context) (int, error)
	// UpdatePasswordHashAndRevoke stores the new hash and deletes every
	// session of the user atomically: either both happen or neither does.
	UpdatePasswordHashAndRevoke(ctx context.Context, id, hash string) error
	// Delete removes the user together with every session it owns.
	Delete(ctx context.Context, id string) error
}

// SessionRepository owns session rows. Expiry is evaluated by the caller.
type SessionRepository interface {
	Create(ctx context.Context, session *model.Session) error
	// Get returns the session and its user. If either row is gone the
	// result is apperror.ErrNotFound.
	Get(ctx context.Context, token string) (*model.Session, *model.User, error)
	Delete(ctx context.Context, token string) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// MessageRepository is the append-only conversation log.
type MessageRepository interface {
	Append(ctx context.Context, msg *model.Message) error
	// Recent returns at most limit messages for the user, oldest first.
	Recent(ctx context.Context, userID string, limit int) ([]model.Message, error)
}

// UsageRepository is the append-only usage ledger.
type UsageRepository interface {
	Record(ctx context.Context, rec *model.UsageRecord) error
	// Summary aggregates the user's records per day, newest day first,
	// keeping at most days rows.
	Summary(ctx context.Context, userID string, days int) ([]model.UsageDay, error)
}

package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode"

	"github.com/sakif/chat-wrapper/internal/apperror"
	"github.com/sakif/chat-wrapper/internal/auth"
	"github.com/sakif/chat-wrapper/internal/model"
	"github.com/sakif/chat-wrapper/internal/repository"
)

// AdminService backs the /api/admin endpoints. Callers are expected to have
// checked the admin flag already.
type AdminService struct {
	users     repository.UserRepository
	passwords *auth.PasswordService
	logger    *slog.Logger
}

func NewAdminService(users repository.UserRepository, passwords *auth.PasswordService, logger *slog.Logger) *AdminService {
	return &AdminService{users: users, passwords: passwords, logger: logger}
}

// CreateUserInput is the data accepted for a new account. ID is optional;
// an empty ID gets a generated one.
type CreateUserInput struct {
	ID          string
	LoginName   string
	DisplayName string
	Password    string
	IsAdmin     bool
}

// ListUsers returns every user ordered by login name.
func (s *AdminService) ListUsers(ctx context.Context) ([]model.User, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("service/admin: listing users: %w", err)
	}
	return users, nil
}

// CreateUser validates the input, hashes the password and stores the user.
// A taken login name is reported as apperror.ErrConflict.
func (s *AdminService) CreateUser(ctx context.Context, in CreateUserInput) (*model.User, error) {
	in.ID = strings.TrimSpace(in.ID)
	in.LoginName = strings.TrimSpace(in.LoginName)
	in.DisplayName = strings.TrimSpace(in.DisplayName)

	switch {
	case in.LoginName == "":
		return nil, apperror.ValidationFailed("loginName", "loginName is required")
	case len(in.LoginName) > MaxLoginNameLen:
		return nil, apperror.ValidationFailed("loginName",
			fmt.Sprintf("loginName must be %d characters or fewer", MaxLoginNameLen))
	case strings.IndexFunc(in.LoginName, unicode.IsSpace) >= 0:
		return nil, apperror.ValidationFailed("loginName", "loginName must not contain spaces")
	case in.Password == "":
		return nil, apperror.ValidationFailed("password", "password is required")
	case len(in.ID) > MaxLoginNameLen:
		return nil, apperror.ValidationFailed("id", fmt.Sprintf("id must be %d characters or fewer", MaxLoginNameLen))
	}
	if err := validateNewPassword("password", in.Password); err != nil {
		return nil, err
	}

	if in.DisplayName == "" {
		in.DisplayName = in.LoginName
	}
	if len(in.DisplayName) > MaxDisplayNameLen {
		return nil, apperror.ValidationFailed("displayName",
			fmt.Sprintf("displayName must be %d characters or fewer", MaxDisplayNameLen))
	}

	hash, err := s.passwords.Hash(in.Password)
	if err != nil {
		return nil, err
	}

	user := &model.User{
		ID:           in.ID,
		DisplayName:  in.DisplayName,
		LoginName:    in.LoginName,
		PasswordHash: hash,
		IsAdmin:      in.IsAdmin,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("service/admin: creating user: %w", err)
	}

	s.logger.Info("user created",
		slog.String("userID", user.ID),
		slog.String("loginName", user.LoginName),
		slog.Bool("isAdmin", user.IsAdmin),
	)
	return user, nil
}

// DeleteUser removes a user and all of its sessions. An admin cannot
// delete their own account.
func (s *AdminService) DeleteUser(ctx context.Context, actorID, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return apperror.ValidationFailed("id", "id is required")
	}
	if id == actorID {
		return apperror.ValidationFailed("id", "You cannot delete your own account")
	}

	if err := s.users.Delete(ctx, id); err != nil {
		return fmt.Errorf("service/admin: deleting user %s: %w", id, err)
	}

	s.logger.Info("user deleted", slog.String("userID", id), slog.String("by", actorID))
	return nil
}

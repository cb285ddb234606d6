package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/sakif/chat-wrapper/internal/apperror"
	"github.com/sakif/chat-wrapper/internal/auth"
	"github.com/sakif/chat-wrapper/internal/metrics"
	"github.com/sakif/chat-wrapper/internal/model"
	"github.com/sakif/chat-wrapper/internal/ratelimit"
	"github.com/sakif/chat-wrapper/internal/repository"
)

// invalidCredentials is shared by every credential failure so callers cannot
// tell an unknown login name from a wrong password.
const invalidCredentials = "Invalid credentials"

// AuthService handles password login, logout, password changes and the
// first-run admin bootstrap.
//
//	AuthHandler (HTTP) → AuthService → UserRepository
//	                                 ↘ SessionService
type AuthService struct {
	users     repository.UserRepository
	sessions  *SessionService
	passwords *auth.PasswordService
	limiter   *ratelimit.Limiter
	logger    *slog.Logger
}

func NewAuthService(
	users repository.UserRepository,
	sessions *SessionService,
	passwords *auth.PasswordService,
	limiter *ratelimit.Limiter,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:     users,
		sessions:  sessions,
		passwords: passwords,
		limiter:   limiter,
		logger:    logger,
	}
}

// AuthResult bundles the user and the freshly issued session so the handler
// can set the cookie and respond in one step.
type AuthResult struct {
	User    *model.User
	Session *model.Session
}

// Login checks credentials and opens a session.
//
// Both login counters (per client IP and per case-folded login name) are
// charged on every attempt that passes field validation, whatever the
// outcome. Exceeding either one rejects the attempt before the password is
// looked at.
func (s *AuthService) Login(ctx context.Context, loginName, password, clientIP string) (*AuthResult, error) {
	loginName = strings.TrimSpace(loginName)
	if loginName == "" {
		return nil, apperror.ValidationFailed("loginName", "loginName is required")
	}
	if password == "" {
		return nil, apperror.ValidationFailed("password", "password is required")
	}

	exceeded := s.limiter.AllowAll(
		ratelimit.Check{Policy: ratelimit.LoginPerIP, Key: clientIP},
		ratelimit.Check{Policy: ratelimit.LoginPerName, Key: strings.ToLower(loginName)},
	)
	if len(exceeded) > 0 {
		for _, p := range exceeded {
			metrics.RateLimited.WithLabelValues(p.Name).Inc()
		}
		s.logger.Warn("login rate limited",
			slog.String("ip", clientIP),
			slog.String("policy", exceeded[0].Name),
		)
		return nil, apperror.RateLimited("Too many login attempts. Please wait a few minutes and try again.")
	}

	user, err := s.users.GetByLoginName(ctx, loginName)
	if errors.Is(err, apperror.ErrNotFound) {
		s.passwords.VerifyNone(password)
		return nil, apperror.Unauthorized(invalidCredentials)
	}
	if err != nil {
		return nil, fmt.Errorf("service/auth: looking up login: %w", err)
	}

	if err := s.passwords.Verify(user.PasswordHash, password); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			return nil, apperror.Unauthorized(invalidCredentials)
		}
		return nil, fmt.Errorf("service/auth: verifying password for user %s: %w", user.ID, err)
	}

	sess, err := s.sessions.Create(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	s.logger.Info("user logged in", slog.String("userID", user.ID))
	return &AuthResult{User: user, Session: sess}, nil
}

// Logout revokes the session identified by token.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	return s.sessions.Invalidate(ctx, token)
}

// ChangePassword verifies the current password, stores the new hash,
// revokes every session of the user and opens exactly one new session.
func (s *AuthService) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) (*AuthResult, error) {
	if currentPassword == "" {
		return nil, apperror.ValidationFailed("currentPassword", "currentPassword is required")
	}
	if err := validateNewPassword("newPassword", newPassword); err != nil {
		return nil, err
	}

	user, err := s.users.GetByID(ctx, userID)
	if errors.Is(err, apperror.ErrNotFound) {
		return nil, apperror.Unauthorized("Not authenticated")
	}
	if err != nil {
		return nil, fmt.Errorf("service/auth: loading user %s: %w", userID, err)
	}

	if err := s.passwords.Verify(user.PasswordHash, currentPassword); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			return nil, apperror.Unauthorized("Current password is incorrect")
		}
		return nil, fmt.Errorf("service/auth: verifying password for user %s: %w", userID, err)
	}

	hash, err := s.passwords.Hash(newPassword)
	if err != nil {
		return nil, err
	}
	if err := s.users.UpdatePasswordHashAndRevoke(ctx, userID, hash); err != nil {
		return nil, fmt.Errorf("service/auth: storing new password: %w", err)
	}
	user.PasswordHash = hash

	sess, err := s.sessions.Create(ctx, userID)
	if err != nil {
		return nil, err
	}

	s.logger.Info("password changed", slog.String("userID", userID))
	return &AuthResult{User: user, Session: sess}, nil
}

// ResetPassword sets a new password without knowing the old one and revokes
// every session of the user. It backs the operator CLI.
func (s *AuthService) ResetPassword(ctx context.Context, loginName, newPassword string) (*model.User, error) {
	if err := validateNewPassword("password", newPassword); err != nil {
		return nil, err
	}

	user, err := s.users.GetByLoginName(ctx, strings.TrimSpace(loginName))
	if err != nil {
		return nil, fmt.Errorf("service/auth: loading user %q: %w", loginName, err)
	}

	hash, err := s.passwords.Hash(newPassword)
	if err != nil {
		return nil, err
	}
	if err := s.users.UpdatePasswordHashAndRevoke(ctx, user.ID, hash); err != nil {
		return nil, fmt.Errorf("service/auth: storing new password: %w", err)
	}

	s.logger.Info("password reset", slog.String("userID", user.ID))
	return user, nil
}

// BootstrapAdmin creates the initial administrator when the store holds no
// users. It returns the generated plaintext password, or "" if nothing was
// created. The password is not stored anywhere in plaintext.
func (s *AuthService) BootstrapAdmin(ctx context.Context) (string, error) {
	n, err := s.users.Count(ctx)
	if err != nil {
		return "", fmt.Errorf("service/auth: counting users: %w", err)
	}
	if n > 0 {
		return "", nil
	}

	password, err := auth.GeneratePassword()
	if err != nil {
		return "", err
	}
	hash, err := s.passwords.Hash(password)
	if err != nil {
		return "", err
	}

	admin := &model.User{
		ID:           "admin",
		DisplayName:  "Administrator",
		LoginName:    "admin",
		PasswordHash: hash,
		IsAdmin:      true,
	}
	if err := s.users.Create(ctx, admin); err != nil {
		return "", fmt.Errorf("service/auth: creating bootstrap admin: %w", err)
	}
	return password, nil
}

// validateNewPassword enforces the length rules for a password being set.
func validateNewPassword(field, password string) error {
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return apperror.ValidationFailed(field,
			fmt.Sprintf("%s must be at least %d characters", field, MinPasswordLength))
	}
	if len(password) > 72 {
		return apperror.ValidationFailed(field, field+" must be 72 bytes or fewer")
	}
	return nil
}

package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/chat-wrapper/internal/apperror"
	"github.com/sakif/chat-wrapper/internal/ratelimit"
	"github.com/sakif/chat-wrapper/internal/repository"
)

func TestLogin_Success(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.createUser(t, "alice", "correct-horse", false)

	res, err := env.auth.Login(ctx, "alice", "correct-horse", "10.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, alice.ID, res.User.ID)
	assert.Len(t, res.Session.Token, 64)
	assert.Equal(t, env.clock.Now().Add(env.sessions.TTL()), res.Session.ExpiresAt)

	got, err := env.sessions.Resolve(ctx, res.Session.Token)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, alice.ID, got.ID)
}

func TestLogin_LoginNameIsCaseSensitive(t *testing.T) {
	env := newTestEnv(t)
	env.createUser(t, "alice", "correct-horse", false)

	_, err := env.auth.Login(context.Background(), "Alice", "correct-horse", "10.0.0.1")
	assert.ErrorIs(t, err, apperror.ErrUnauthorized)
}

func TestLogin_FailuresLookIdentical(t *testing.T) {
	env := newTestEnv(t)
	env.createUser(t, "alice", "correct-horse", false)
	ctx := context.Background()

	_, wrongPassword := env.auth.Login(ctx, "alice", "wrong-password", "10.0.0.1")
	_, unknownUser := env.auth.Login(ctx, "mallory", "wrong-password", "10.0.0.1")

	require.ErrorIs(t, wrongPassword, apperror.ErrUnauthorized)
	require.ErrorIs(t, unknownUser, apperror.ErrUnauthorized)
	assert.Equal(t, wrongPassword.Error(), unknownUser.Error())
}

func TestLogin_Validation(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name      string
		loginName string
		password  string
		field     string
	}{
		{"missing login name", "", "pw", "loginName"},
		{"blank login name", "   ", "pw", "loginName"},
		{"missing password", "alice", "", "password"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := env.auth.Login(context.Background(), tc.loginName, tc.password, "10.0.0.1")
			require.ErrorIs(t, err, apperror.ErrValidation)

			var appErr *apperror.AppError
			require.ErrorAs(t, err, &appErr)
			assert.Equal(t, tc.field, appErr.Field)
		})
	}
}

func TestLogin_PerNameLimit(t *testing.T) {
	env := newTestEnv(t)
	env.createUser(t, "alice", "correct-horse", false)
	ctx := context.Background()

	// Different IPs, same (case-folded) name.
	for i := 0; i < ratelimit.LoginPerName.Max; i++ {
		name := "alice"
		if i%2 == 1 {
			name = "ALICE"
		}
		_, err := env.auth.Login(ctx, name, "wrong-password", ipFor(i))
		require.ErrorIs(t, err, apperror.ErrUnauthorized, "attempt %d", i+1)
	}

	// Even the right password is refused now.
	_, err := env.auth.Login(ctx, "alice", "correct-horse", "10.9.9.9")
	assert.ErrorIs(t, err, apperror.ErrRateLimited)

	env.clock.Advance(ratelimit.LoginPerName.Window)
	_, err = env.auth.Login(ctx, "alice", "correct-horse", "10.9.9.9")
	assert.NoError(t, err)
}

func TestLogin_PerIPLimit(t *testing.T) {
	env := newTestEnv(t)
	env.createUser(t, "alice", "correct-horse", false)
	ctx := context.Background()

	for i := 0; i < ratelimit.LoginPerIP.Max; i++ {
		_, err := env.auth.Login(ctx, fmt.Sprintf("user%d", i), "wrong-password", "10.0.0.1")
		require.ErrorIs(t, err, apperror.ErrUnauthorized, "attempt %d", i+1)
	}

	_, err := env.auth.Login(ctx, "alice", "correct-horse", "10.0.0.1")
	assert.ErrorIs(t, err, apperror.ErrRateLimited)

	// Another address is unaffected.
	_, err = env.auth.Login(ctx, "alice", "correct-horse", "10.0.0.2")
	assert.NoError(t, err)
}

func TestLogin_ValidationFailureDoesNotCount(t *testing.T) {
	env := newTestEnv(t)
	env.createUser(t, "alice", "correct-horse", false)
	ctx := context.Background()

	for i := 0; i < ratelimit.LoginPerIP.Max+5; i++ {
		_, err := env.auth.Login(ctx, "alice", "", "10.0.0.1")
		require.ErrorIs(t, err, apperror.ErrValidation)
	}

	_, err := env.auth.Login(ctx, "alice", "correct-horse", "10.0.0.1")
	assert.NoError(t, err)
}

func TestLogout(t *testing.T) {
	env := newTestEnv(t)
	env.createUser(t, "alice", "correct-horse", false)
	ctx := context.Background()

	res, err := env.auth.Login(ctx, "alice", "correct-horse", "10.0.0.1")
	require.NoError(t, err)

	require.NoError(t, env.auth.Logout(ctx, res.Session.Token))

	got, err := env.sessions.Resolve(ctx, res.Session.Token)
	require.NoError(t, err)
	assert.Nil(t, got)

	// A second logout with the same token is harmless.
	assert.NoError(t, env.auth.Logout(ctx, res.Session.Token))
}

func TestChangePassword_RevokesOtherSessions(t *testing.T) {
	env := newTestEnv(t)
	alice := env.createUser(t, "alice", "correct-horse", false)
	ctx := context.Background()

	first, err := env.auth.Login(ctx, "alice", "correct-horse", "10.0.0.1")
	require.NoError(t, err)
	second, err := env.auth.Login(ctx, "alice", "correct-horse", "10.0.0.2")
	require.NoError(t, err)

	res, err := env.auth.ChangePassword(ctx, alice.ID, "correct-horse", "battery-staple")
	require.NoError(t, err)

	for _, old := range []string{first.Session.Token, second.Session.Token} {
		got, err := env.sessions.Resolve(ctx, old)
		require.NoError(t, err)
		assert.Nil(t, got, "old session should be revoked")
	}

	got, err := env.sessions.Resolve(ctx, res.Session.Token)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, alice.ID, got.ID)

	_, err = env.auth.Login(ctx, "alice", "correct-horse", "10.0.0.3")
	assert.ErrorIs(t, err, apperror.ErrUnauthorized)
	_, err = env.auth.Login(ctx, "alice", "battery-staple", "10.0.0.3")
	assert.NoError(t, err)
}

func TestChangePassword_Errors(t *testing.T) {
	env := newTestEnv(t)
	alice := env.createUser(t, "alice", "correct-horse", false)

	tests := []struct {
		name    string
		userID  string
		current string
		next    string
		wantErr error
	}{
		{"missing current", alice.ID, "", "battery-staple", apperror.ErrValidation},
		{"new too short", alice.ID, "correct-horse", "short", apperror.ErrValidation},
		{"new too long", alice.ID, "correct-horse", strings.Repeat("a", 73), apperror.ErrValidation},
		{"wrong current", alice.ID, "not-it-at-all", "battery-staple", apperror.ErrUnauthorized},
		{"vanished user", "ghost", "correct-horse", "battery-staple", apperror.ErrUnauthorized},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := env.auth.ChangePassword(context.Background(), tc.userID, tc.current, tc.next)
			assert.ErrorIs(t, err, tc.wantErr)
		})
	}
}

func TestChangePassword_WrongCurrentKeepsSessions(t *testing.T) {
	env := newTestEnv(t)
	alice := env.createUser(t, "alice", "correct-horse", false)
	ctx := context.Background()

	res, err := env.auth.Login(ctx, "alice", "correct-horse", "10.0.0.1")
	require.NoError(t, err)

	_, err = env.auth.ChangePassword(ctx, alice.ID, "not-it-at-all", "battery-staple")
	require.ErrorIs(t, err, apperror.ErrUnauthorized)

	got, err := env.sessions.Resolve(ctx, res.Session.Token)
	require.NoError(t, err)
	assert.NotNil(t, got)
}

// failingPasswordStore fails every password update and passes the rest
// through to the real store.
type failingPasswordStore struct {
	repository.UserRepository
	err error
}

func (f failingPasswordStore) UpdatePasswordHashAndRevoke(context.Context, string, string) error {
	return f.err
}

func TestChangePassword_StoreFailureKeepsOldState(t *testing.T) {
	env := newTestEnv(t)
	alice := env.createUser(t, "alice", "correct-horse", false)
	ctx := context.Background()

	res, err := env.auth.Login(ctx, "alice", "correct-horse", "10.0.0.1")
	require.NoError(t, err)

	boom := errors.New("database is locked")
	svc := NewAuthService(failingPasswordStore{UserRepository: env.db.Users(), err: boom},
		env.sessions, env.passwords, env.limiter, discardLogger())

	_, err = svc.ChangePassword(ctx, alice.ID, "correct-horse", "battery-staple")
	require.ErrorIs(t, err, boom)

	got, err := env.sessions.Resolve(ctx, res.Session.Token)
	require.NoError(t, err)
	assert.NotNil(t, got, "session survives a failed password change")

	_, err = env.auth.Login(ctx, "alice", "correct-horse", "10.0.0.2")
	assert.NoError(t, err)
}

func TestResetPassword(t *testing.T) {
	env := newTestEnv(t)
	env.createUser(t, "alice", "correct-horse", false)
	ctx := context.Background()

	res, err := env.auth.Login(ctx, "alice", "correct-horse", "10.0.0.1")
	require.NoError(t, err)

	_, err = env.auth.ResetPassword(ctx, "alice", "battery-staple")
	require.NoError(t, err)

	got, err := env.sessions.Resolve(ctx, res.Session.Token)
	require.NoError(t, err)
	assert.Nil(t, got)

	_, err = env.auth.Login(ctx, "alice", "battery-staple", "10.0.0.1")
	assert.NoError(t, err)

	_, err = env.auth.ResetPassword(ctx, "nobody", "battery-staple")
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestBootstrapAdmin(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	password, err := env.auth.BootstrapAdmin(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, password)

	admin, err := env.db.Users().GetByLoginName(ctx, "admin")
	require.NoError(t, err)
	assert.True(t, admin.IsAdmin)
	assert.Equal(t, "Administrator", admin.DisplayName)
	assert.NotContains(t, admin.PasswordHash, password)

	_, err = env.auth.Login(ctx, "admin", password, "127.0.0.1")
	require.NoError(t, err)

	// A second start finds a user and does nothing.
	again, err := env.auth.BootstrapAdmin(ctx)
	require.NoError(t, err)
	assert.Empty(t, again)

	n, err := env.db.Users().Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func ipFor(i int) string {
	return fmt.Sprintf("10.1.0.%d", i+1)
}

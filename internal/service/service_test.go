package service

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/sakif/chat-wrapper/internal/auth"
	"github.com/sakif/chat-wrapper/internal/completion"
	"github.com/sakif/chat-wrapper/internal/model"
	"github.com/sakif/chat-wrapper/internal/ratelimit"
	"github.com/sakif/chat-wrapper/internal/repository/sqlite"
)

// =========================================================================
// FAKES AND HELPERS
// =========================================================================

// testClock is a settable clock shared by the services and the limiter.
type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func newTestClock() *testClock {
	return &testClock{t: time.Date(2026, 3, 14, 23, 30, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// fakeCompleter records every prompt it receives and answers with a canned
// result or error.
type fakeCompleter struct {
	mu      sync.Mutex
	prompts [][]model.ChatMessage
	result  *completion.Result
	err     error
}

func (f *fakeCompleter) Complete(_ context.Context, messages []model.ChatMessage) (*completion.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, append([]model.ChatMessage(nil), messages...))
	if f.err != nil {
		return nil, f.err
	}
	r := *f.result
	return &r, nil
}

func (f *fakeCompleter) lastPrompt() []model.ChatMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.prompts) == 0 {
		return nil
	}
	return f.prompts[len(f.prompts)-1]
}

func (f *fakeCompleter) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.prompts)
}

// testEnv wires every service against a fresh in-memory database.
type testEnv struct {
	db        *sqlite.DB
	clock     *testClock
	limiter   *ratelimit.Limiter
	passwords *auth.PasswordService
	completer *fakeCompleter
	sessions  *SessionService
	auth      *AuthService
	admin     *AdminService
	chat      *ChatService
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := sqlite.New(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	clock := newTestClock()
	logger := discardLogger()
	limiter := ratelimit.New(ratelimit.WithClock(clock.Now))
	passwords := auth.NewPasswordServiceWithCost(bcrypt.MinCost)
	completer := &fakeCompleter{result: &completion.Result{
		Text:  "hello back",
		Usage: model.Usage{InputTokens: 100, OutputTokens: 50, TotalTokens: 150},
		Model: completion.DefaultModel,
	}}

	sessions := NewSessionService(db.Sessions(), 7*24*time.Hour, clock.Now, logger)
	return &testEnv{
		db:        db,
		clock:     clock,
		limiter:   limiter,
		passwords: passwords,
		completer: completer,
		sessions:  sessions,
		auth:      NewAuthService(db.Users(), sessions, passwords, limiter, logger),
		admin:     NewAdminService(db.Users(), passwords, logger),
		chat: NewChatService(db.Messages(), db.Usage(), ChatConfig{
			Completer: completer,
			Limiter:   limiter,
			Model:     completion.DefaultModel,
			Now:       clock.Now,
		}, logger),
	}
}

// createUser stores a user with the given login name and password.
func (e *testEnv) createUser(t *testing.T, loginName, password string, isAdmin bool) *model.User {
	t.Helper()
	u, err := e.admin.CreateUser(context.Background(), CreateUserInput{
		LoginName: loginName,
		Password:  password,
		IsAdmin:   isAdmin,
	})
	require.NoError(t, err)
	return u
}

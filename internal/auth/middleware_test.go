package auth

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/chat-wrapper/internal/model"
)

type stubResolver struct {
	users map[string]*model.User
	err   error
	calls int
}

func (s *stubResolver) Resolve(_ context.Context, token string) (*model.User, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.users[token], nil
}

var (
	alice = &model.User{ID: "u1", LoginName: "alice"}
	root  = &model.User{ID: "u0", LoginName: "admin", IsAdmin: true}
)

func newStub() *stubResolver {
	return &stubResolver{users: map[string]*model.User{"alice-token": alice, "admin-token": root}}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestResolveIdentity(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   *model.User
	}{
		{"no header", "", nil},
		{"other cookies only", "theme=dark; lang=en", nil},
		{"valid session", "sid=alice-token", alice},
		{"session among others", "theme=dark; sid=admin-token; lang=en", root},
		{"unknown token", "sid=forged", nil},
		{"malformed header", "sid", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveIdentity(context.Background(), newStub(), tt.header)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveIdentity_SkipsStoreWithoutCookie(t *testing.T) {
	stub := newStub()
	_, _ = ResolveIdentity(context.Background(), stub, "theme=dark")
	assert.Equal(t, 0, stub.calls)
}

func TestIdentify_StoresUserInContext(t *testing.T) {
	var seen *model.User
	h := Identify(newStub(), discardLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = UserFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: "alice-token"})
	h.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, alice, seen)
}

func TestIdentify_AnonymousPassesThrough(t *testing.T) {
	called := false
	h := Identify(newStub(), discardLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		_, ok := UserFromContext(r.Context())
		assert.False(t, ok)
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.True(t, called)
}

func TestIdentify_StoreFailureIs500(t *testing.T) {
	stub := newStub()
	stub.err = errors.New("database is locked")
	h := Identify(stub, discardLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: "alice-token"})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "locked")
}

func TestRequireAuthAndAdmin(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })

	tests := []struct {
		name       string
		user       *model.User
		middleware func(http.Handler) http.Handler
		wantStatus int
	}{
		{"auth: anonymous", nil, RequireAuth, http.StatusUnauthorized},
		{"auth: user", alice, RequireAuth, http.StatusNoContent},
		{"admin: anonymous", nil, RequireAdmin, http.StatusUnauthorized},
		{"admin: non-admin", alice, RequireAdmin, http.StatusForbidden},
		{"admin: admin", root, RequireAdmin, http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.user != nil {
				req = req.WithContext(WithUser(req.Context(), tt.user))
			}
			rec := httptest.NewRecorder()
			tt.middleware(ok).ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if rec.Code >= 400 {
				assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			}
		})
	}
}

func TestTokenFromRequest(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Empty(t, TokenFromRequest(req))

	req.AddCookie(&http.Cookie{Name: CookieName, Value: "abc"})
	assert.Equal(t, "abc", TokenFromRequest(req))
}

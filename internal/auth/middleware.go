package auth

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/sakif/chat-wrapper/internal/model"
)

// contextKey is an unexported type used for context keys in this package,
// so no other package can read or shadow the values stored here.
type contextKey string

const userKey contextKey = "user"

// SessionResolver maps a session token to its user. It returns (nil, nil)
// when the token is unknown, expired, or its user no longer exists; a
// non-nil error means the lookup itself failed.
type SessionResolver interface {
	Resolve(ctx context.Context, token string) (*model.User, error)
}

// ResolveIdentity extracts the session cookie from a raw Cookie header and
// resolves it. A missing or invalid session yields (nil, nil).
func ResolveIdentity(ctx context.Context, resolver SessionResolver, cookieHeader string) (*model.User, error) {
	token := sessionToken(cookieHeader)
	if token == "" {
		return nil, nil
	}
	return resolver.Resolve(ctx, token)
}

// sessionToken returns the value of the session cookie, or "" if absent.
// Malformed cookie pairs are skipped the same way net/http does for a
// request's own cookies.
func sessionToken(cookieHeader string) string {
	if cookieHeader == "" {
		return ""
	}
	r := &http.Request{Header: http.Header{"Cookie": {cookieHeader}}}
	c, err := r.Cookie(CookieName)
	if err != nil {
		return ""
	}
	return c.Value
}

// TokenFromRequest returns the raw session token carried by r, if any.
func TokenFromRequest(r *http.Request) string {
	return sessionToken(cookieHeader(r))
}

func cookieHeader(r *http.Request) string {
	return strings.Join(r.Header.Values("Cookie"), "; ")
}

// Identify resolves the caller once per request and stores the user in the
// request context. Anonymous requests pass through untouched. A failing
// store aborts the request with 500.
func Identify(resolver SessionResolver, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, err := ResolveIdentity(r.Context(), resolver, cookieHeader(r))
			if err != nil {
				logger.Error("resolving session", slog.String("error", err.Error()))
				writeAuthError(w, http.StatusInternalServerError, "internal_error", "An internal error occurred")
				return
			}
			if user != nil {
				r = r.WithContext(WithUser(r.Context(), user))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAuth rejects anonymous requests with 401.
// It must run after Identify.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := UserFromContext(r.Context()); !ok {
			writeAuthError(w, http.StatusUnauthorized, "unauthorized", "Not authenticated")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAdmin rejects anonymous requests with 401 and non-admins with 403.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := UserFromContext(r.Context())
		if !ok {
			writeAuthError(w, http.StatusUnauthorized, "unauthorized", "Not authenticated")
			return
		}
		if !user.IsAdmin {
			writeAuthError(w, http.StatusForbidden, "forbidden", "Admin only")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// WithUser returns a copy of ctx carrying user.
func WithUser(ctx context.Context, user *model.User) context.Context {
	return context.WithValue(ctx, userKey, user)
}

// UserFromContext returns the authenticated user, or (nil, false) for an
// anonymous request.
func UserFromContext(ctx context.Context) (*model.User, bool) {
	u, ok := ctx.Value(userKey).(*model.User)
	return u, ok && u != nil
}

func writeAuthError(w http.ResponseWriter, status int, kind, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": kind, "message": message})
}

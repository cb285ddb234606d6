package auth

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"time"
)

// CookieName is the name of the session cookie.
const CookieName = "sid"

// tokenBytes is the amount of randomness in a session token (256 bits).
const tokenBytes = 32

// NewToken returns a fresh opaque session token: 32 random bytes, hex encoded.
func NewToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("auth: generating session token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// CookieSettings controls the attributes of the session cookie.
type CookieSettings struct {
	Secure bool
	TTL    time.Duration
}

// SetSessionCookie writes the session cookie: HttpOnly, SameSite=Lax, path /.
func SetSessionCookie(w http.ResponseWriter, cs CookieSettings, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(cs.TTL / time.Second),
		HttpOnly: true,
		Secure:   cs.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearSessionCookie tells the browser to drop the session cookie.
func ClearSessionCookie(w http.ResponseWriter, cs CookieSettings) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   cs.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

package model

import "time"

// Session binds an opaque bearer token to a user until ExpiresAt.
// The expiry is fixed at creation and never extended.
type Session struct {
	Token     string
	UserID    string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// ValidAt reports whether the session is still usable at t.
func (s *Session) ValidAt(t time.Time) bool {
	return t.Before(s.ExpiresAt)
}

// Package model defines the data structures used throughout the application.
package model

import "time"

// User is an account that can log in and chat.
//
// LoginName is unique across all users and matched exactly. PasswordHash is
// an opaque bcrypt string and never leaves the server.
type User struct {
	ID           string    `json:"id"`
	DisplayName  string    `json:"displayName"`
	LoginName    string    `json:"loginName"`
	PasswordHash string    `json:"-"`
	IsAdmin      bool      `json:"isAdmin"`
	CreatedAt    time.Time `json:"-"`
}

// Name returns the name the assistant should address the user by.
func (u *User) Name() string {
	switch {
	case u.DisplayName != "":
		return u.DisplayName
	case u.LoginName != "":
		return u.LoginName
	default:
		return "the user"
	}
}

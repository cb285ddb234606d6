// Package service contains the business logic layer of the application.
//
//	Handler (HTTP layer)     → parses requests, writes responses
//	Service (Business layer) → validates, enforces rules, orchestrates
//	Repository (Data layer)  → reads/writes the database
//
// Services take repository interfaces, return apperror values for every
// caller-visible failure, and know nothing about HTTP.
package service

import "time"

// Clock returns the current time. Services take one so tests can pin it.
type Clock func() time.Time

// Limits and window sizes.
const (
	MinPasswordLength = 8
	MaxMessageLength  = 16000
	MaxLoginNameLen   = 64
	MaxDisplayNameLen = 100

	// PromptWindow is how many past messages are replayed to the model.
	PromptWindow = 20
	// HistoryWindow is how many messages the UI loads on start.
	HistoryWindow = 30
	// UsageDays is how many days the usage summary covers.
	UsageDays = 30
)

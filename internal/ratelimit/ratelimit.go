// Package ratelimit implements process-local fixed-window counters.
//
// A window opens on the first hit for a key and lasts Policy.Window. Every
// call increments the counter, including calls that are rejected. When the
// window has elapsed the counter starts again from zero.
//
// Counters live in memory only: they are lost on restart and are not shared
// between server instances.
package ratelimit

import (
	"sync"
	"time"
)

// Policy describes one counter family.
type Policy struct {
	Name   string        // metric label and key prefix
	Window time.Duration // length of a window, measured from its first hit
	Max    int           // calls allowed per window
}

var (
	// LoginPerIP caps login attempts from one client address.
	LoginPerIP = Policy{Name: "login_ip", Window: 5 * time.Minute, Max: 50}
	// LoginPerName caps login attempts against one case-folded login name.
	LoginPerName = Policy{Name: "login_name", Window: 5 * time.Minute, Max: 20}
	// ChatPerUser caps chat calls by one authenticated user.
	ChatPerUser = Policy{Name: "chat_user", Window: 60 * time.Second, Max: 60}
)

type counter struct {
	start time.Time
	count int
	// window is kept so Sweep can tell when the entry is dead.
	window time.Duration
}

// Limiter holds the counters for every policy. The zero value is not usable;
// call New.
type Limiter struct {
	mu       sync.Mutex
	counters map[string]*counter
	now      func() time.Time
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

func New(opts ...Option) *Limiter {
	l := &Limiter{
		counters: make(map[string]*counter),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Allow records one hit for key under policy p and reports whether the hit
// is within the limit.
func (l *Limiter) Allow(p Policy, key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.hit(p, key)
}

// AllowAll records one hit against every (policy, key) pair and returns the
// policies that are over their limit; an empty result means the call is
// allowed. Every counter is incremented even when an earlier one is
// already over.
func (l *Limiter) AllowAll(checks ...Check) []Policy {
	l.mu.Lock()
	defer l.mu.Unlock()

	var exceeded []Policy
	for _, c := range checks {
		if !l.hit(c.Policy, c.Key) {
			exceeded = append(exceeded, c.Policy)
		}
	}
	return exceeded
}

// Check pairs a policy with the key it is evaluated for.
type Check struct {
	Policy Policy
	Key    string
}

func (l *Limiter) hit(p Policy, key string) bool {
	now := l.now()
	k := p.Name + ":" + key

	c, ok := l.counters[k]
	if !ok || now.Sub(c.start) >= p.Window {
		c = &counter{start: now, window: p.Window}
		l.counters[k] = c
	}
	c.count++
	return c.count <= p.Max
}

// Sweep drops counters whose window has fully elapsed and returns how many
// were removed. Allow behaves the same whether or not Sweep runs.
func (l *Limiter) Sweep() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	removed := 0
	for k, c := range l.counters {
		if now.Sub(c.start) >= c.window {
			delete(l.counters, k)
			removed++
		}
	}
	return removed
}

// Len returns the number of live counters.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.counters)
}

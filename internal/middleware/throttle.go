package middleware

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/sakif/chat-wrapper/internal/metrics"
)

type keyLimiter struct {
	lim  *rate.Limiter
	seen time.Time
}

// Throttle is a per-client-IP token bucket placed in front of every route.
// It is independent of the fixed-window login and chat limits.
type Throttle struct {
	mu   sync.Mutex
	m    map[string]*keyLimiter
	r    rate.Limit
	b    int
	ttl  time.Duration
	stop chan struct{}
	once sync.Once
}

// NewThrottle creates a throttle allowing rps requests per second with the
// given burst per IP. Idle buckets are forgotten after ttl once the
// collector is running (see Run).
func NewThrottle(rps float64, burst int, ttl time.Duration) *Throttle {
	return &Throttle{
		m:    make(map[string]*keyLimiter),
		r:    rate.Limit(rps),
		b:    burst,
		ttl:  ttl,
		stop: make(chan struct{}),
	}
}

func (t *Throttle) get(key string, now time.Time) *rate.Limiter {
	t.mu.Lock()
	defer t.mu.Unlock()

	kl, ok := t.m[key]
	if !ok {
		kl = &keyLimiter{lim: rate.NewLimiter(t.r, t.b)}
		t.m[key] = kl
	}
	kl.seen = now
	return kl.lim
}

// gc drops buckets not used for longer than ttl.
func (t *Throttle) gc(now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for k, v := range t.m {
		if now.Sub(v.seen) > t.ttl {
			delete(t.m, k)
		}
	}
}

// Run collects idle buckets every interval until Stop is called.
func (t *Throttle) Run(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-t.stop:
			return
		case now := <-ticker.C:
			t.gc(now)
		}
	}
}

// Stop ends Run. It is safe to call more than once.
func (t *Throttle) Stop() {
	t.once.Do(func() { close(t.stop) })
}

// Handler is the middleware.
func (t *Throttle) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !t.get(ClientIP(r), time.Now()).Allow() {
			metrics.RateLimited.WithLabelValues("global").Inc()
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			_ = json.NewEncoder(w).Encode(map[string]string{
				"error":   "rate_limited",
				"message": "Too many requests. Please slow down.",
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

package audit

import (
	"strings"
	"sync"
	"time"
)

type tokenBucket struct {
	mu       sync.Mutex
	rate     float64
	capacity float64
	tokens   float64
	last     time.Time
}

func newTokenBucket(rate, capacity float64, now time.Time) *tokenBucket {
	return &tokenBucket{rate: rate, capacity: capacity, tokens: capacity, last: now}
}

func (b *tokenBucket) allow(now time.Time) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if now.Before(b.last) {
		b.last = now
	}
	if elapsed := now.Sub(b.last).Seconds(); elapsed > 0 {
		b.tokens += elapsed * b.rate
		if b.tokens > b.capacity {
			b.tokens = b.capacity
		}
		b.last = now
	}
	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

// ClientRateLimiter gates high-risk operations (sign, create, remove) per
// session, grounded on the token-bucket ClientRateLimiter in
// r3e-network-neo-miniapps-platform's services/teesigner/signer/ratelimit.go.
// Each session_id gets its own bucket so one noisy caller can't starve
// another's budget.
type ClientRateLimiter struct {
	mu       sync.Mutex
	buckets  map[string]*tokenBucket
	rate     float64
	capacity float64
	now      func() time.Time
}

// NewClientRateLimiter builds a limiter allowing perMinute operations per
// session, with a burst capacity equal to perMinute.
func NewClientRateLimiter(perMinute int, now func() time.Time) *ClientRateLimiter {
	if now == nil {
		now = time.Now
	}
	rate := float64(perMinute) / 60.0
	capacity := float64(perMinute)
	if capacity < 1 {
		capacity = 1
	}
	if rate <= 0 {
		rate = 1.0 / 60.0
	}
	return &ClientRateLimiter{
		buckets:  make(map[string]*tokenBucket),
		rate:     rate,
		capacity: capacity,
		now:      now,
	}
}

// Allow reports whether sessionID may proceed with a rate-limited
// operation right now, consuming one token if so.
func (l *ClientRateLimiter) Allow(sessionID string) bool {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		sessionID = "unknown"
	}

	l.mu.Lock()
	b, ok := l.buckets[sessionID]
	if !ok {
		b = newTokenBucket(l.rate, l.capacity, l.now())
		l.buckets[sessionID] = b
	}
	l.mu.Unlock()

	return b.allow(l.now())
}

// Forget drops the bucket for sessionID, called on CloseSession so a long
// history of sessions doesn't grow the map unbounded.
func (l *ClientRateLimiter) Forget(sessionID string) {
	l.mu.Lock()
	delete(l.buckets, sessionID)
	l.mu.Unlock()
}

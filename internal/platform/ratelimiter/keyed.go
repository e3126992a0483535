// Package ratelimiter throttles remote lookups per normalized key, such as a
// username typed into the read-only login.
package ratelimiter

import (
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const defaultMaxKeys = 1024

type Keyed struct {
	mu      sync.Mutex
	limit   rate.Limit
	burst   int
	maxKeys int
	now     func() time.Time
	buckets map[string]*bucket
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

type Option func(*Keyed)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(k *Keyed) {
		if now != nil {
			k.now = now
		}
	}
}

// WithMaxKeys bounds how many buckets are tracked at once.
func WithMaxKeys(n int) Option {
	return func(k *Keyed) {
		if n > 0 {
			k.maxKeys = n
		}
	}
}

// NewKeyed returns nil when rps or burst is not positive. A nil *Keyed allows
// everything.
func NewKeyed(rps float64, burst int, opts ...Option) *Keyed {
	if rps <= 0 || burst <= 0 {
		return nil
	}
	k := &Keyed{
		limit:   rate.Limit(rps),
		burst:   burst,
		maxKeys: defaultMaxKeys,
		now:     time.Now,
		buckets: make(map[string]*bucket),
	}
	for _, opt := range opts {
		opt(k)
	}
	return k
}

// Allow spends one token from key's bucket. Keys are compared trimmed and
// case-insensitively.
func (k *Keyed) Allow(key string) bool {
	if k == nil {
		return true
	}
	key = strings.ToLower(strings.TrimSpace(key))

	k.mu.Lock()
	defer k.mu.Unlock()

	now := k.now()
	b, ok := k.buckets[key]
	if !ok {
		if len(k.buckets) >= k.maxKeys {
			k.evictLocked(now)
		}
		b = &bucket{limiter: rate.NewLimiter(k.limit, k.burst)}
		k.buckets[key] = b
	}
	b.lastSeen = now
	return b.limiter.AllowN(now, 1)
}

// evictLocked forgets every bucket that has refilled, since a full bucket
// behaves like a new one. When none has, the least recently used goes.
func (k *Keyed) evictLocked(now time.Time) {
	var (
		oldestKey string
		oldest    time.Time
	)
	for key, b := range k.buckets {
		if b.limiter.TokensAt(now) >= float64(k.burst) {
			delete(k.buckets, key)
			continue
		}
		if oldestKey == "" || b.lastSeen.Before(oldest) {
			oldestKey, oldest = key, b.lastSeen
		}
	}
	if len(k.buckets) >= k.maxKeys {
		delete(k.buckets, oldestKey)
	}
}

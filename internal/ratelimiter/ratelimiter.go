// Package ratelimiter provides a token bucket keyed by an arbitrary string,
// used to bound how often a user may trigger a full refresh.
package ratelimiter

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*rate.Limiter
	limit   rate.Limit
	burst   int
	now     func() time.Time
}

// New creates a keyed limiter where each key's bucket holds burst permits
// refilling one per interval.
func New(interval time.Duration, burst int) *Limiter {
	return &Limiter{
		buckets: make(map[string]*rate.Limiter),
		limit:   rate.Every(interval),
		burst:   burst,
		now:     time.Now,
	}
}

// Consume takes cost permits from the key's bucket, reporting whether they
// were available. A key seen for the first time starts with a full bucket.
func (l *Limiter) Consume(key string, cost int) bool {
	l.mu.Lock()
	bucket, ok := l.buckets[key]
	if !ok {
		bucket = rate.NewLimiter(l.limit, l.burst)
		l.buckets[key] = bucket
	}
	now := l.now()
	l.mu.Unlock()

	return bucket.AllowN(now, cost)
}

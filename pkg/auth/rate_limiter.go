package auth

import (
	"sync"
	"time"
)

// TokenBucketLimiter is an in-process token bucket keyed by an arbitrary
// string (client IP or user id). State is per-process; a horizontally
// scaled deployment would rate limit per instance.
type TokenBucketLimiter struct {
	mu         sync.Mutex
	buckets    map[string]*bucket
	maxTokens  int
	refillRate time.Duration
}

type bucket struct {
	tokens     int
	lastRefill time.Time
}

// NewTokenBucketLimiter creates a limiter allowing maxTokens requests per
// refill interval per key. A background sweep evicts idle buckets.
func NewTokenBucketLimiter(maxTokens int, refillRate time.Duration) *TokenBucketLimiter {
	l := &TokenBucketLimiter{
		buckets:    make(map[string]*bucket),
		maxTokens:  maxTokens,
		refillRate: refillRate,
	}
	go l.sweep()
	return l
}

// Allow reports whether a request under the given key may proceed.
func (l *TokenBucketLimiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	b, ok := l.buckets[key]
	if !ok {
		l.buckets[key] = &bucket{tokens: l.maxTokens - 1, lastRefill: now}
		return true
	}

	if elapsed := now.Sub(b.lastRefill); elapsed >= l.refillRate {
		refills := int(elapsed / l.refillRate)
		b.tokens = min(l.maxTokens, b.tokens+refills*l.maxTokens)
		b.lastRefill = now
	}

	if b.tokens <= 0 {
		return false
	}
	b.tokens--
	return true
}

func (l *TokenBucketLimiter) sweep() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for range ticker.C {
		cutoff := time.Now().Add(-10 * l.refillRate)
		l.mu.Lock()
		for key, b := range l.buckets {
			if b.lastRefill.Before(cutoff) {
				delete(l.buckets, key)
			}
		}
		l.mu.Unlock()
	}
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

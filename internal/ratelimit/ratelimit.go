// Package ratelimit limits how fast new relay subscribers are admitted.
package ratelimit

import (
	"sync"
	"time"
)

// TokenBucket implements a token bucket rate limiter.
type TokenBucket struct {
	mu         sync.Mutex
	tokens     float64
	capacity   float64
	rate       float64 // tokens per second
	lastRefill time.Time
	now        func() time.Time
}

// NewTokenBucket creates a full bucket refilling rate tokens per second up to capacity.
func NewTokenBucket(rate, capacity int) *TokenBucket {
	return newTokenBucket(rate, capacity, time.Now)
}

func newTokenBucket(rate, capacity int, now func() time.Time) *TokenBucket {
	if capacity < 1 {
		capacity = 1
	}
	return &TokenBucket{
		tokens:     float64(capacity),
		capacity:   float64(capacity),
		rate:       float64(rate),
		lastRefill: now(),
		now:        now,
	}
}

// Allow consumes a token if one is available.
func (tb *TokenBucket) Allow() bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	now := tb.now()
	tb.tokens += now.Sub(tb.lastRefill).Seconds() * tb.rate
	if tb.tokens > tb.capacity {
		tb.tokens = tb.capacity
	}
	tb.lastRefill = now

	if tb.tokens >= 1 {
		tb.tokens--
		return true
	}
	return false
}

// RateLimiter admits connections against a global bucket and a bucket per peer IP.
type RateLimiter struct {
	mu       sync.Mutex
	global   *TokenBucket
	perPeer  map[string]*TokenBucket
	peerRate int
	burst    int
	now      func() time.Time
}

// NewRateLimiter creates a limiter; a rate of 0 disables that limit.
func NewRateLimiter(globalConnRate, perPeerConnRate, burst int) *RateLimiter {
	return newRateLimiter(globalConnRate, perPeerConnRate, burst, time.Now)
}

func newRateLimiter(globalConnRate, perPeerConnRate, burst int, now func() time.Time) *RateLimiter {
	rl := &RateLimiter{
		perPeer:  make(map[string]*TokenBucket),
		peerRate: perPeerConnRate,
		burst:    burst,
		now:      now,
	}
	if globalConnRate > 0 {
		rl.global = newTokenBucket(globalConnRate, burst, now)
	}
	return rl
}

// AllowConnection checks the global limit first, then the peer's own limit.
func (rl *RateLimiter) AllowConnection(peer string) bool {
	if rl == nil {
		return true
	}
	if rl.global != nil && !rl.global.Allow() {
		return false
	}
	if rl.peerRate <= 0 {
		return true
	}
	rl.mu.Lock()
	bucket, ok := rl.perPeer[peer]
	if !ok {
		bucket = newTokenBucket(rl.peerRate, rl.burst, rl.now)
		rl.perPeer[peer] = bucket
	}
	rl.mu.Unlock()
	return bucket.Allow()
}

// CleanupExpiredPeers removes buckets for peers not in active.
func (rl *RateLimiter) CleanupExpiredPeers(active map[string]bool) {
	if rl == nil {
		return
	}
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for peer := range rl.perPeer {
		if !active[peer] {
			delete(rl.perPeer, peer)
		}
	}
}

// Peers returns the number of tracked peer buckets.
func (rl *RateLimiter) Peers() int {
	if rl == nil {
		return 0
	}
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.perPeer)
}

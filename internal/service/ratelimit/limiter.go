// Package ratelimit implements per-key token buckets.
package ratelimit

import (
	"sync"
	"time"
)

type bucket struct {
	tokens float64
	last   time.Time
}

// Limiter holds one token bucket per key. All buckets share capacity and refill rate.
type Limiter struct {
	capacity   float64
	refillRate float64 // tokens per second
	idleTTL    time.Duration
	now        func() time.Time

	mu sync.Mutex
	m  map[string]*bucket
}

type Option func(*Limiter)

// WithIdleTTL sets how long an untouched bucket survives a Sweep. Default 10m.
func WithIdleTTL(d time.Duration) Option { return func(l *Limiter) { l.idleTTL = d } }

func withClock(now func() time.Time) Option { return func(l *Limiter) { l.now = now } }

// New returns a limiter allowing perMinute requests per key with bursts up to burst.
// A burst below 1 is raised to 1.
func New(perMinute, burst int, opts ...Option) *Limiter {
	if burst < 1 {
		burst = 1
	}
	l := &Limiter{
		capacity:   float64(burst),
		refillRate: float64(perMinute) / 60,
		idleTTL:    10 * time.Minute,
		now:        time.Now,
		m:          make(map[string]*bucket),
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Allow returns true if one token can be consumed for key.
func (l *Limiter) Allow(key string) bool {
	ok, _ := l.Reserve(key)
	return ok
}

// Reserve consumes a token when available. Otherwise it reports how long
// until the next token is due.
func (l *Limiter) Reserve(key string) (bool, time.Duration) {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.m[key]
	if !ok {
		b = &bucket{tokens: l.capacity, last: now}
		l.m[key] = b
	}
	// refill
	if elapsed := now.Sub(b.last).Seconds(); elapsed > 0 {
		b.tokens += elapsed * l.refillRate
		if b.tokens > l.capacity {
			b.tokens = l.capacity
		}
		b.last = now
	}
	if b.tokens >= 1 {
		b.tokens--
		return true, 0
	}
	if l.refillRate <= 0 {
		return false, l.idleTTL
	}
	wait := time.Duration((1 - b.tokens) / l.refillRate * float64(time.Second))
	return false, wait
}

// Sweep evicts buckets idle longer than the TTL and returns how many were removed.
func (l *Limiter) Sweep() int {
	cutoff := l.now().Add(-l.idleTTL)
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for k, b := range l.m {
		if b.last.Before(cutoff) {
			delete(l.m, k)
			n++
		}
	}
	return n
}

// Len returns the number of tracked keys.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.m)
}

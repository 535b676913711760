package ratelimit

import (
	"context"
	"sync"
	"time"
)

// tokenBucket tracks the remaining allowance for one key.
type tokenBucket struct {
	level   float64
	touched time.Time
}

// refill credits tokens for the time elapsed since the last touch, capped at
// burst, and advances the touch time.
func (b *tokenBucket) refill(now time.Time, rate, burst float64) {
	b.level += now.Sub(b.touched).Seconds() * rate
	if b.level > burst {
		b.level = burst
	}
	b.touched = now
}

// MemoryLimiter is an in-process token-bucket Limiter with one bucket per
// key. The MCP endpoints key it by client IP, so each caller gets an
// independent allowance of rate tokens per second up to burst. A janitor
// goroutine drops buckets idle past staleThreshold so one-off callers do
// not accumulate.
type MemoryLimiter struct {
	rate  float64
	burst float64
	now   func() time.Time // swapped out by tests

	mu      sync.Mutex
	buckets map[string]*tokenBucket

	stopOnce sync.Once
	done     chan struct{}
}

// NewMemoryLimiter creates a limiter allowing rate requests per second per
// key with bursts up to burst. Close stops the janitor goroutine.
func NewMemoryLimiter(rate float64, burst int) *MemoryLimiter {
	m := &MemoryLimiter{
		rate:    rate,
		burst:   float64(burst),
		now:     time.Now,
		buckets: make(map[string]*tokenBucket),
		done:    make(chan struct{}),
	}
	go m.janitor()
	return m
}

// Allow spends one token for key, reporting whether one was available. A
// key's first request starts from a full bucket.
func (m *MemoryLimiter) Allow(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	b, ok := m.buckets[key]
	if !ok {
		b = &tokenBucket{level: m.burst, touched: now}
		m.buckets[key] = b
	} else {
		b.refill(now, m.rate, m.burst)
	}

	if b.level < 1 {
		return false, nil
	}
	b.level--
	return true, nil
}

// Close stops the janitor. Safe to call more than once.
func (m *MemoryLimiter) Close() error {
	m.stopOnce.Do(func() { close(m.done) })
	return nil
}

// staleThreshold is how long a bucket may sit untouched before eviction.
const staleThreshold = 10 * time.Minute

func (m *MemoryLimiter) janitor() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			m.evictStale()
		}
	}
}

func (m *MemoryLimiter) evictStale() {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := m.now().Add(-staleThreshold)
	for key, b := range m.buckets {
		if b.touched.Before(cutoff) {
			delete(m.buckets, key)
		}
	}
}

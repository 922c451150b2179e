// Package ratelimit provides fixed-window quotas keyed by caller.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter decides whether one more unit of work is allowed for key.
type Limiter interface {
	TryConsume(ctx context.Context, key string) (bool, error)
}

type window struct {
	count   int
	resetAt time.Time
}

// MemoryLimiter is a process-local fixed-window limiter. Counters are lost on
// restart and are not shared between instances; use RedisLimiter for that.
type MemoryLimiter struct {
	limit   int
	window  time.Duration
	now     func() time.Time
	mu      sync.Mutex
	entries map[string]*window
	stop    chan struct{}
	once    sync.Once
}

// NewMemoryLimiter allows limit units per window for each key.
func NewMemoryLimiter(limit int, win time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		limit:   limit,
		window:  win,
		now:     time.Now,
		entries: make(map[string]*window),
		stop:    make(chan struct{}),
	}
}

// WithClock replaces time.Now. Intended for tests.
func (l *MemoryLimiter) WithClock(now func() time.Time) *MemoryLimiter {
	l.now = now
	return l
}

// TryConsume never returns an error.
func (l *MemoryLimiter) TryConsume(_ context.Context, key string) (bool, error) {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.entries[key]
	if !ok || !now.Before(w.resetAt) {
		w = &window{resetAt: now.Add(l.window)}
		l.entries[key] = w
	}
	if w.count >= l.limit {
		return false, nil
	}
	w.count++
	return true, nil
}

// StartJanitor drops expired windows every interval until Close is called.
func (l *MemoryLimiter) StartJanitor(interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-l.stop:
				return
			case <-ticker.C:
				l.sweep()
			}
		}
	}()
}

func (l *MemoryLimiter) sweep() int {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()
	removed := 0
	for key, w := range l.entries {
		if !now.Before(w.resetAt) {
			delete(l.entries, key)
			removed++
		}
	}
	return removed
}

// Close stops the janitor.
func (l *MemoryLimiter) Close() {
	l.once.Do(func() { close(l.stop) })
}

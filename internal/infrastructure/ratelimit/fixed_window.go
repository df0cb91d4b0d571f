package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/arvoria/authd/internal/domain"
)

type window struct {
	count   int
	resetAt time.Time
}

// FixedWindow is an in-process fixed-window counter keyed by client IP
// or client identifier. Suitable for single-instance deployments only;
// multi-instance deployments should use the Redis-backed limiter so
// counters are shared.
type FixedWindow struct {
	windows map[string]*window
	mu      sync.Mutex
	now     func() time.Time
}

// NewFixedWindow creates an in-process fixed-window limiter.
func NewFixedWindow() *FixedWindow {
	fw := &FixedWindow{
		windows: make(map[string]*window),
		now:     time.Now,
	}
	go fw.cleanup()
	return fw
}

// IsLimited opens a window on the first request for key, increments the
// counter per call, and reports true once the counter exceeds max before
// the window elapses. A limited key is not incremented further; once the
// window elapses the counter resets.
func (f *FixedWindow) IsLimited(_ context.Context, key string, max int, windowDur time.Duration) (bool, error) {
	now := f.now()

	f.mu.Lock()
	defer f.mu.Unlock()

	w, ok := f.windows[key]
	if !ok || now.After(w.resetAt) {
		f.windows[key] = &window{count: 1, resetAt: now.Add(windowDur)}
		return false, nil
	}

	if w.count >= max {
		return true, nil
	}

	w.count++
	return false, nil
}

// cleanup drops elapsed windows so the map does not grow unbounded.
func (f *FixedWindow) cleanup() {
	for {
		time.Sleep(time.Minute)
		now := f.now()
		f.mu.Lock()
		for key, w := range f.windows {
			if now.After(w.resetAt) {
				delete(f.windows, key)
			}
		}
		f.mu.Unlock()
	}
}

var _ domain.RateLimiter = (*FixedWindow)(nil)

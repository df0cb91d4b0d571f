package domain

import (
	"context"
	"time"
)

// RateLimiter throttles requests per key (client IP or client ID) using
// a counting window. Implementations must increment atomically per key
// and roll the window over without racing concurrent increments.
type RateLimiter interface {
	// IsLimited opens a window on first sight of key, increments the
	// counter per call, and reports true once the counter exceeds max
	// before the window elapses. A limited key is not incremented
	// further; an elapsed window resets the counter.
	IsLimited(ctx context.Context, key string, max int, window time.Duration) (bool, error)
}

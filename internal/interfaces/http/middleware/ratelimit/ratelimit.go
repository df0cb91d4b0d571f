package ratelimit

import (
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/arvoria/authd/internal/domain"
	httperrors "github.com/arvoria/authd/internal/interfaces/http/errors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// VisitorLimiter smooths overall request pressure per source IP with a
// token bucket. It protects the whole router; the stricter fixed-window
// limiter below guards the authentication endpoints specifically.
type VisitorLimiter struct {
	visitors map[string]*clientLimiter
	mu       sync.Mutex
	rate     rate.Limit
	burst    int
	ttl      time.Duration
}

// NewVisitorLimiter creates a new VisitorLimiter
func NewVisitorLimiter(r rate.Limit, b int, ttl time.Duration) *VisitorLimiter {
	rl := &VisitorLimiter{
		visitors: make(map[string]*clientLimiter),
		rate:     r,
		burst:    b,
		ttl:      ttl,
	}
	go rl.cleanupVisitors()
	return rl
}

func (rl *VisitorLimiter) getVisitor(ip string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if v, exists := rl.visitors[ip]; exists {
		v.lastSeen = time.Now()
		return v.limiter
	}

	limiter := rate.NewLimiter(rl.rate, rl.burst)
	rl.visitors[ip] = &clientLimiter{limiter, time.Now()}
	return limiter
}

func (rl *VisitorLimiter) cleanupVisitors() {
	for {
		time.Sleep(time.Minute)
		rl.mu.Lock()
		now := time.Now()
		for ip, v := range rl.visitors {
			if now.Sub(v.lastSeen) > rl.ttl {
				delete(rl.visitors, ip)
			}
		}
		rl.mu.Unlock()
	}
}

// Middleware applies the per-visitor token bucket.
func (rl *VisitorLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			ip = r.RemoteAddr
		}
		limiter := rl.getVisitor(ip)
		if !limiter.Allow() {
			http.Error(w, "Rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// WindowLimiter applies a fixed-window limit per source IP to the
// authentication endpoints. Bypass entries exist for trusted internal
// callers in development; production configuration rejects them.
type WindowLimiter struct {
	limiter domain.RateLimiter
	max     int
	window  time.Duration
	bypass  map[string]struct{}
	logger  *zap.Logger
}

// NewWindowLimiter creates a new WindowLimiter
func NewWindowLimiter(limiter domain.RateLimiter, max int, window time.Duration, bypass []string, logger *zap.Logger) *WindowLimiter {
	set := make(map[string]struct{}, len(bypass))
	for _, entry := range bypass {
		set[entry] = struct{}{}
	}
	return &WindowLimiter{
		limiter: limiter,
		max:     max,
		window:  window,
		bypass:  set,
		logger:  logger,
	}
}

// Middleware enforces the fixed window. A limiter backend failure lets
// the request through: availability of the token endpoint wins over
// strict enforcement.
func (wl *WindowLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			ip = r.RemoteAddr
		}

		if _, ok := wl.bypass[ip]; ok {
			next.ServeHTTP(w, r)
			return
		}

		limited, err := wl.limiter.IsLimited(r.Context(), ip, wl.max, wl.window)
		if err != nil {
			wl.logger.Error("Rate limiter backend failure", zap.Error(err))
			next.ServeHTTP(w, r)
			return
		}
		if limited {
			wl.logger.Warn("Request rate limited", zap.String("ip", ip))
			w.Header().Set("Retry-After", wl.window.String())
			httperrors.RespondWithError(w, domain.NewOAuthError(domain.ErrTemporarilyUnavailable, "rate limit exceeded"))
			return
		}

		next.ServeHTTP(w, r)
	})
}

package jwt

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/arvoria/authd/internal/domain"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"go.uber.org/zap"
)

// keySetResolver resolves client JWKS endpoints through a jwk.Cache so
// assertion verification does not pay a network round-trip per request.
type keySetResolver struct {
	cache      *jwk.Cache
	httpClient *http.Client
	ttl        time.Duration
	timeout    time.Duration
	logger     *zap.Logger
	registered map[string]struct{}
	mu         sync.Mutex
}

// NewKeySetResolver creates a TTL-cached JWKS resolver. Every fetch is
// bounded by timeout; an unreachable endpoint fails the resolution
// instead of hanging the authentication attempt.
func NewKeySetResolver(ctx context.Context, ttl, timeout time.Duration, logger *zap.Logger) domain.KeySetResolver {
	httpClient := &http.Client{Timeout: timeout}
	cache := jwk.NewCache(ctx, jwk.WithRefreshWindow(time.Minute))

	return &keySetResolver{
		cache:      cache,
		httpClient: httpClient,
		ttl:        ttl,
		timeout:    timeout,
		logger:     logger,
		registered: make(map[string]struct{}),
	}
}

// Resolve returns the key set published at jwksURI, served from cache
// within the TTL.
func (r *keySetResolver) Resolve(ctx context.Context, jwksURI string) (jwk.Set, error) {
	if jwksURI == "" {
		return nil, fmt.Errorf("jwks_uri is empty")
	}

	r.mu.Lock()
	if _, ok := r.registered[jwksURI]; !ok {
		err := r.cache.Register(jwksURI,
			jwk.WithHTTPClient(r.httpClient),
			jwk.WithMinRefreshInterval(r.ttl),
		)
		if err != nil {
			r.mu.Unlock()
			r.logger.Error("Failed to register JWKS endpoint",
				zap.String("jwks_uri", jwksURI),
				zap.Error(err))
			return nil, fmt.Errorf("registering jwks endpoint: %w", err)
		}
		r.registered[jwksURI] = struct{}{}
	}
	r.mu.Unlock()

	fetchCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	set, err := r.cache.Get(fetchCtx, jwksURI)
	if err != nil {
		r.logger.Error("Failed to fetch key set",
			zap.String("jwks_uri", jwksURI),
			zap.Error(err))
		return nil, fmt.Errorf("fetching key set: %w", err)
	}

	return set, nil
}

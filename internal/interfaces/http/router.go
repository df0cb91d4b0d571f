package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/arvoria/authd/internal/application"
	"github.com/arvoria/authd/internal/domain"
	"github.com/arvoria/authd/internal/infrastructure/config"
	"github.com/arvoria/authd/internal/infrastructure/database"
	"github.com/arvoria/authd/internal/infrastructure/jwt"
	infraratelimit "github.com/arvoria/authd/internal/infrastructure/ratelimit"
	"github.com/arvoria/authd/internal/infrastructure/repository"
	"github.com/arvoria/authd/internal/interfaces/http/handlers"
	"github.com/arvoria/authd/internal/interfaces/http/middleware/auth"
	"github.com/arvoria/authd/internal/interfaces/http/middleware/ratelimit"
)

type Router struct {
	router *chi.Mux
	db     *database.Postgres
}

// NewRouter wires the full dependency graph and mounts every endpoint.
func NewRouter(
	ctx context.Context,
	db *database.Postgres,
	cfg *config.Config,
	logger *zap.Logger,
) (*Router, error) {
	provider, err := jwt.NewLocalProvider(cfg.JWTKeyPath, logger)
	if err != nil {
		return nil, err
	}

	clientRepo := repository.NewClientRepository(db, logger)
	codeRepo := repository.NewCodeRepository(db, logger)
	tokenRepo := repository.NewTokenRepository(db, logger)
	scopeRepo := repository.NewScopeRepository(db, logger)
	userRepo := repository.NewUserRepository(db, logger)
	auditRepo := repository.NewAuditRepository(db, logger)
	revocationRepo := repository.NewRevocationRepository(db, logger)

	jwtService, err := jwt.NewJWTService(provider, revocationRepo, jwt.Options{
		Issuer:          cfg.JWTIssuer,
		Audience:        cfg.JWTAudience,
		AccessDuration:  cfg.AccessTokenDuration(),
		RefreshDuration: cfg.RefreshTokenDuration(),
		IDTokenDuration: cfg.JWTIDTokenDuration,
	}, logger)
	if err != nil {
		return nil, err
	}

	resolver := jwt.NewKeySetResolver(ctx, cfg.JWKSCacheTTL, cfg.JWKSFetchTimeout, logger)

	auditService := application.NewAuditService(auditRepo, clientRepo, userRepo, logger)
	scopeService := application.NewScopeService(scopeRepo, logger)
	clientAuthService := application.NewClientAuthService(clientRepo, resolver, cfg.TokenEndpointURL, logger)
	authorizationService := application.NewAuthorizationService(clientRepo, codeRepo, userRepo, scopeService, auditService, cfg.AuthorizationCodeDuration(), logger)
	grantService := application.NewGrantService(
		clientAuthService,
		scopeService,
		jwtService,
		codeRepo,
		tokenRepo,
		userRepo,
		auditService,
		cfg.AccessTokenDuration(),
		cfg.RefreshTokenDuration(),
		logger,
	)

	authMiddleware := auth.NewAuthMiddleware(jwtService, logger)
	oauth2Handler := handlers.NewOAuth2Handler(grantService, authorizationService, logger)
	oidcHandler := handlers.NewOIDCHandler(jwtService, userRepo, cfg.JWTIssuer, logger)

	router := createRouter()

	visitorLimiter := ratelimit.NewVisitorLimiter(100, 200, 3*time.Minute)
	router.Use(visitorLimiter.Middleware)

	windowLimiter := ratelimit.NewWindowLimiter(
		newWindowBackend(cfg, logger),
		cfg.RateLimitMax,
		cfg.RateLimitWindow,
		cfg.RateLimitBypass,
		logger,
	)

	// Health check endpoints
	router.Group(func(r chi.Router) {
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("OK"))
		})

		r.Get("/health/ready", func(w http.ResponseWriter, r *http.Request) {
			if err := db.Ping(); err != nil {
				logger.Error("Database health check failed", zap.Error(err))
				w.WriteHeader(http.StatusServiceUnavailable)
				w.Write([]byte("Database connection failed"))
				return
			}
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("Ready"))
		})

		r.Get("/health/live", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("Alive"))
		})
	})

	// OIDC discovery
	router.Group(func(r chi.Router) {
		r.Get("/.well-known/openid-configuration", oidcHandler.GetOpenIDConfigurationHandler)
		r.Get("/.well-known/jwks.json", oidcHandler.GetJWKSHandler)
	})

	router.Route("/oauth2", func(r chi.Router) {
		// Client-facing endpoints, rate limited per source IP
		r.Group(func(r chi.Router) {
			r.Use(windowLimiter.Middleware)
			r.Post("/token", oauth2Handler.TokenHandler)
			r.Post("/revoke", oauth2Handler.RevokeHandler)
		})

		// Resource-owner endpoints, behind bearer authentication
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.Authenticator)
			r.Get("/authorize", oauth2Handler.AuthorizeHandler)
			r.Post("/authorize/deny", oauth2Handler.DenyHandler)
		})

		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.Authenticator, authMiddleware.RequireScope("openid"))
			r.Get("/userinfo", oidcHandler.GetUserInfoHandler)
		})
	})

	return &Router{router: router, db: db}, nil
}

// newWindowBackend selects the fixed-window backend: Redis when an
// address is configured, in-process otherwise. Multi-instance
// deployments must configure Redis so all instances share one window.
func newWindowBackend(cfg *config.Config, logger *zap.Logger) domain.RateLimiter {
	if cfg.RedisAddr == "" {
		return infraratelimit.NewFixedWindow()
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	return infraratelimit.NewRedisWindow(client, logger)
}

func createRouter() *chi.Mux {
	router := chi.NewRouter()

	// Add middleware
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Timeout(60 * time.Second))

	return router
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.router.ServeHTTP(w, req)
}

package auth

import (
	"net/http"
	"strings"

	"github.com/arvoria/authd/internal/domain"
	httperrors "github.com/arvoria/authd/internal/interfaces/http/errors"
	"go.uber.org/zap"
)

// AuthMiddleware verifies bearer tokens and exposes their claims to
// downstream handlers through the request context.
type AuthMiddleware struct {
	jwtService domain.JWTService
	logger     *zap.Logger
}

// NewAuthMiddleware creates a new AuthMiddleware
func NewAuthMiddleware(jwtService domain.JWTService, logger *zap.Logger) *AuthMiddleware {
	return &AuthMiddleware{jwtService: jwtService, logger: logger}
}

// Authenticator rejects requests without a verifiable access token.
// Verification includes the revocation blacklist, so a revoked token is
// refused before its embedded expiry.
func (m *AuthMiddleware) Authenticator(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := m.extractToken(r)
		if token == "" {
			httperrors.RespondWithError(w, domain.NewOAuthError(domain.ErrInvalidTokenKind, "missing bearer token"))
			return
		}

		claims, verr := m.jwtService.VerifyAccessToken(r.Context(), token)
		if verr != nil {
			m.logger.Warn("Bearer token rejected", zap.String("reason", string(verr.Reason)))
			httperrors.RespondWithError(w, domain.NewOAuthError(domain.ErrInvalidTokenKind, "invalid access token"))
			return
		}

		ctx := domain.WithSubject(r.Context(), claims.Subject)
		ctx = domain.WithScopes(ctx, domain.ParseScope(claims.Scope))
		ctx = domain.WithClientID(ctx, claims.ClientID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireScope refuses requests whose token does not carry the scope
// (RFC 6750: 403 insufficient_scope).
func (m *AuthMiddleware) RequireScope(scope string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			scopes, ok := domain.GetScopes(r.Context())
			if !ok || !domain.HasScope(scopes, scope) {
				httperrors.RespondWithError(w, domain.NewOAuthError(domain.ErrInsufficientScope, "token lacks required scope "+scope))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (m *AuthMiddleware) extractToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return parts[1]
}

package handlers

import (
	"net/http"

	"github.com/arvoria/authd/internal/domain"
	httperrors "github.com/arvoria/authd/internal/interfaces/http/errors"
	"go.uber.org/zap"
)

// OIDCHandler serves the discovery document, the public key set and the
// userinfo endpoint.
type OIDCHandler struct {
	jwtService domain.JWTService
	userRepo   domain.UserRepository
	issuer     string
	logger     *zap.Logger
}

// NewOIDCHandler creates a new OIDCHandler
func NewOIDCHandler(jwtService domain.JWTService, userRepo domain.UserRepository, issuer string, logger *zap.Logger) *OIDCHandler {
	return &OIDCHandler{
		jwtService: jwtService,
		userRepo:   userRepo,
		issuer:     issuer,
		logger:     logger,
	}
}

// OpenIDConfiguration is the discovery document served at
// /.well-known/openid-configuration.
type OpenIDConfiguration struct {
	Issuer                           string   `json:"issuer"`
	AuthorizationEndpoint            string   `json:"authorization_endpoint"`
	TokenEndpoint                    string   `json:"token_endpoint"`
	UserinfoEndpoint                 string   `json:"userinfo_endpoint"`
	RevocationEndpoint               string   `json:"revocation_endpoint"`
	JWKSURI                          string   `json:"jwks_uri"`
	ResponseTypesSupported           []string `json:"response_types_supported"`
	GrantTypesSupported              []string `json:"grant_types_supported"`
	SubjectTypesSupported            []string `json:"subject_types_supported"`
	IDTokenSigningAlgValuesSupported []string `json:"id_token_signing_alg_values_supported"`
	ScopesSupported                  []string `json:"scopes_supported"`
	TokenEndpointAuthMethods         []string `json:"token_endpoint_auth_methods_supported"`
	CodeChallengeMethodsSupported    []string `json:"code_challenge_methods_supported"`
}

// GetOpenIDConfigurationHandler serves the OIDC discovery document.
func (h *OIDCHandler) GetOpenIDConfigurationHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.logger, http.StatusOK, OpenIDConfiguration{
		Issuer:                           h.issuer,
		AuthorizationEndpoint:            h.issuer + "/oauth2/authorize",
		TokenEndpoint:                    h.issuer + "/oauth2/token",
		UserinfoEndpoint:                 h.issuer + "/oauth2/userinfo",
		RevocationEndpoint:               h.issuer + "/oauth2/revoke",
		JWKSURI:                          h.issuer + "/.well-known/jwks.json",
		ResponseTypesSupported:           []string{domain.ResponseTypeCode},
		GrantTypesSupported:              []string{domain.GrantTypeAuthorizationCode, domain.GrantTypeRefreshToken, domain.GrantTypeClientCredentials},
		SubjectTypesSupported:            []string{"public"},
		IDTokenSigningAlgValuesSupported: []string{"RS256"},
		ScopesSupported:                  []string{"openid", "profile", "email"},
		TokenEndpointAuthMethods:         []string{"client_secret_basic", "client_secret_post", "private_key_jwt"},
		CodeChallengeMethodsSupported:    []string{"S256"},
	})
}

// GetJWKSHandler serves the public key set used to verify issued tokens.
func (h *OIDCHandler) GetJWKSHandler(w http.ResponseWriter, r *http.Request) {
	jwks, err := h.jwtService.JWKS()
	if err != nil {
		h.logger.Error("Failed to build JWKS", zap.Error(err))
		httperrors.RespondWithError(w, domain.WrapServerError(err))
		return
	}

	writeJSON(w, h.logger, http.StatusOK, jwks)
}

// GetUserInfoHandler serves the OIDC userinfo endpoint. Claims are
// released according to the scopes the access token carries.
func (h *OIDCHandler) GetUserInfoHandler(w http.ResponseWriter, r *http.Request) {
	sub, ok := domain.GetSubject(r.Context())
	if !ok || sub == "" {
		httperrors.RespondWithError(w, domain.NewOAuthError(domain.ErrInvalidTokenKind, "authentication required"))
		return
	}

	id, err := domain.ParseULID(sub)
	if err != nil {
		h.logger.Warn("Access token subject is not a user", zap.String("sub", sub))
		httperrors.RespondWithError(w, domain.NewOAuthError(domain.ErrInvalidTokenKind, "token has no user subject"))
		return
	}

	user, err := h.userRepo.FindByID(r.Context(), id)
	if err != nil {
		h.logger.Error("Failed to load user for userinfo", zap.String("sub", sub), zap.Error(err))
		httperrors.RespondWithError(w, domain.WrapServerError(err))
		return
	}

	scopes, _ := domain.GetScopes(r.Context())

	info := map[string]interface{}{
		"sub": sub,
	}
	if domain.HasScope(scopes, "profile") {
		info["name"] = user.Name
		info["given_name"] = user.GivenName
		info["family_name"] = user.FamilyName
		info["preferred_username"] = user.PreferredUsername
	}
	if domain.HasScope(scopes, "email") {
		info["email"] = user.Email
		info["email_verified"] = user.EmailVerified
	}

	writeJSON(w, h.logger, http.StatusOK, info)
}

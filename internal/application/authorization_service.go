package application

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"time"

	"github.com/arvoria/authd/internal/domain"
	"go.uber.org/zap"
)

// AuthorizationService coordinates the authorization endpoint: it
// validates the request against the client registration, issues the
// single-use code bound to redirect URI and PKCE challenge, and audits
// the decision.
type AuthorizationService struct {
	clientRepo   domain.ClientRepository
	codeRepo     domain.AuthorizationCodeRepository
	userRepo     domain.UserRepository
	scopeService *ScopeService
	audit        domain.AuditLogger
	codeTTL      time.Duration
	logger       *zap.Logger
}

// NewAuthorizationService creates a new AuthorizationService
func NewAuthorizationService(
	clientRepo domain.ClientRepository,
	codeRepo domain.AuthorizationCodeRepository,
	userRepo domain.UserRepository,
	scopeService *ScopeService,
	audit domain.AuditLogger,
	codeTTL time.Duration,
	logger *zap.Logger,
) *AuthorizationService {
	if codeTTL <= 0 {
		codeTTL = domain.DefaultAuthorizationCodeDuration
	}
	return &AuthorizationService{
		clientRepo:   clientRepo,
		codeRepo:     codeRepo,
		userRepo:     userRepo,
		scopeService: scopeService,
		audit:        audit,
		codeTTL:      codeTTL,
		logger:       logger,
	}
}

// ValidateRedirectURI checks exact-match containment. Partial or prefix
// matching is not supported.
func ValidateRedirectURI(uri string, registered []string) bool {
	for _, r := range registered {
		if r == uri {
			return true
		}
	}
	return false
}

// ValidateResponseType checks containment in the supported set; the
// default supported set is {code}.
func ValidateResponseType(responseType string, supported []string) bool {
	if len(supported) == 0 {
		supported = []string{domain.ResponseTypeCode}
	}
	for _, s := range supported {
		if s == responseType {
			return true
		}
	}
	return false
}

// GenerateState returns a cryptographically random URL-safe state value.
func GenerateState() (string, error) {
	return randomURLSafe(32)
}

// GenerateNonce returns a cryptographically random URL-safe nonce.
func GenerateNonce() (string, error) {
	return randomURLSafe(32)
}

// GenerateAuthorizationCode returns an opaque code carrying 256 bits of
// entropy.
func GenerateAuthorizationCode() (string, error) {
	return randomURLSafe(32)
}

func randomURLSafe(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// Authorize validates the request and issues an authorization code for
// the already-authenticated resource owner. Request-level failures
// (unknown client, unregistered redirect URI) are returned without a
// redirect target; the boundary layer must not redirect for them.
func (s *AuthorizationService) Authorize(ctx context.Context, req *domain.AuthorizeRequest) (*domain.AuthorizeResult, error) {
	s.logger.Debug("Authorizing client",
		zap.String("client_id", req.ClientID),
		zap.String("redirect_uri", req.RedirectURI))

	client, err := s.clientRepo.FindByID(ctx, req.ClientID)
	if err != nil {
		s.logger.Warn("Failed to find client", zap.String("client_id", req.ClientID), zap.Error(err))
		s.auditFailure(ctx, req, domain.ErrClientNotFound)
		return nil, domain.ErrClientNotFound
	}

	if !client.IsActive {
		s.auditFailure(ctx, req, domain.ErrInvalidClient)
		return nil, domain.ErrInvalidClient
	}

	// Exact-match only; an unregistered URI must never be redirected to.
	if !ValidateRedirectURI(req.RedirectURI, client.RedirectURIs) {
		s.logger.Warn("Redirect URI not registered",
			zap.String("client_id", req.ClientID),
			zap.String("redirect_uri", req.RedirectURI))
		s.auditFailure(ctx, req, domain.ErrInvalidRedirectURI)
		return nil, domain.ErrInvalidRedirectURI
	}

	if !ValidateResponseType(req.ResponseType, nil) {
		err := domain.NewOAuthError(domain.ErrUnsupportedResponseType, "response_type is not supported")
		s.auditFailure(ctx, req, err)
		return nil, err
	}

	if !client.AllowsGrantType(domain.GrantTypeAuthorizationCode) {
		err := domain.NewOAuthError(domain.ErrUnauthorizedClient, "client is not authorized for the authorization_code grant")
		s.auditFailure(ctx, req, err)
		return nil, err
	}

	scopes := domain.ParseScope(req.Scope)
	validation, err := s.scopeService.ValidateForClient(ctx, scopes, client)
	if err != nil {
		s.auditFailure(ctx, req, err)
		return nil, err
	}
	if !validation.Valid {
		err := domain.NewOAuthError(domain.ErrInvalidScopeKind, validation.Reason)
		s.auditFailure(ctx, req, err)
		return nil, err
	}

	if req.CodeChallenge != "" {
		if req.CodeChallengeMethod != PKCEMethodS256 || !ValidPKCEChallenge(req.CodeChallenge) {
			err := domain.NewOAuthError(domain.ErrInvalidRequest, "invalid code_challenge or code_challenge_method")
			s.auditFailure(ctx, req, err)
			return nil, err
		}
	}

	code, err := GenerateAuthorizationCode()
	if err != nil {
		s.logger.Error("Failed to generate authorization code", zap.Error(err))
		s.auditFailure(ctx, req, err)
		return nil, domain.WrapServerError(err)
	}

	now := time.Now()
	authCode := &domain.AuthorizationCode{
		Code:                code,
		ClientID:            client.ID,
		UserID:              req.UserID,
		RedirectURI:         req.RedirectURI,
		Scopes:              scopes,
		Nonce:               req.Nonce,
		CodeChallenge:       req.CodeChallenge,
		CodeChallengeMethod: req.CodeChallengeMethod,
		CreatedAt:           now,
		ExpiresAt:           now.Add(s.codeTTL),
	}

	if err := s.codeRepo.Create(ctx, authCode); err != nil {
		s.logger.Error("Failed to store authorization code", zap.Error(err))
		s.auditFailure(ctx, req, err)
		return nil, domain.WrapServerError(err)
	}

	s.audit.Log(ctx, domain.AuditEvent{
		UserID:       req.UserID,
		ClientID:     client.ID,
		Action:       domain.AuditActionAuthorize,
		ResourceType: "authorization_code",
		Status:       domain.AuditSuccess,
		Metadata: map[string]string{
			"scope": domain.FormatScope(scopes),
		},
		IPAddress: req.IPAddress,
		UserAgent: req.UserAgent,
	})

	return &domain.AuthorizeResult{
		Code:        code,
		State:       req.State,
		RedirectURI: req.RedirectURI,
	}, nil
}

// Deny records the resource owner's refusal. The boundary layer
// redirects back with error=access_denied and the echoed state.
func (s *AuthorizationService) Deny(ctx context.Context, req *domain.AuthorizeRequest) *domain.AuthorizeResult {
	s.audit.Log(ctx, domain.AuditEvent{
		UserID:       req.UserID,
		ClientID:     req.ClientID,
		Action:       domain.AuditActionAccessDenied,
		ResourceType: "authorization_code",
		Status:       domain.AuditFailure,
		Metadata: map[string]string{
			"error": string(domain.ErrAccessDenied),
		},
		IPAddress: req.IPAddress,
		UserAgent: req.UserAgent,
	})

	return &domain.AuthorizeResult{
		State:       req.State,
		RedirectURI: req.RedirectURI,
	}
}

// GetUserPermissions aggregates the user's effective permissions for
// inclusion in access token claims.
func (s *AuthorizationService) GetUserPermissions(ctx context.Context, userID string) ([]string, error) {
	id, err := domain.ParseULID(userID)
	if err != nil {
		return nil, err
	}
	permissions, err := s.userRepo.GetPermissions(ctx, id)
	if err != nil {
		s.logger.Error("Failed to aggregate user permissions",
			zap.String("user_id", userID),
			zap.Error(err))
		return nil, domain.WrapServerError(err)
	}
	return permissions, nil
}

func (s *AuthorizationService) auditFailure(ctx context.Context, req *domain.AuthorizeRequest, err error) {
	oerr := domain.AsOAuthError(err)
	s.audit.Log(ctx, domain.AuditEvent{
		UserID:       req.UserID,
		ClientID:     req.ClientID,
		Action:       domain.AuditActionAuthorize,
		ResourceType: "authorization_code",
		Status:       domain.AuditFailure,
		Metadata: map[string]string{
			"error": string(oerr.Kind),
		},
		IPAddress: req.IPAddress,
		UserAgent: req.UserAgent,
	})
}

var _ domain.AuthorizationService = (*AuthorizationService)(nil)

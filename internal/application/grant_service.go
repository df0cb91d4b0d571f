package application

import (
	"context"
	"strconv"
	"time"

	"github.com/arvoria/authd/internal/domain"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

// Pipeline stages of a token request. Every grant type walks the common
// sequence; authorization_code additionally passes stageCodeValidated.
// A failing stage short-circuits to the error terminal and is recorded
// in the audit metadata.
type grantStage string

const (
	stageReceived            grantStage = "RECEIVED"
	stageClientAuthenticated grantStage = "CLIENT_AUTHENTICATED"
	stageGrantValidated      grantStage = "GRANT_VALIDATED"
	stageCodeValidated       grantStage = "CODE_VALIDATED"
	stageScopeValidated      grantStage = "SCOPE_VALIDATED"
	stageTokenIssued         grantStage = "TOKEN_ISSUED"
)

// tokenHashPrefixLen bounds how much of a token digest is written into
// audit metadata. Raw tokens never reach the audit log.
const tokenHashPrefixLen = 12

// GrantService orchestrates client authentication, grant validation,
// scope enforcement and token issuance for the token endpoint, plus
// RFC 7009 revocation.
type GrantService struct {
	authenticator domain.ClientAuthenticator
	scopeService  *ScopeService
	jwtService    domain.JWTService
	codeRepo      domain.AuthorizationCodeRepository
	tokenRepo     domain.TokenRepository
	userRepo      domain.UserRepository
	audit         domain.AuditLogger
	accessTTL     time.Duration
	refreshTTL    time.Duration
	logger        *zap.Logger
}

// NewGrantService creates a new GrantService
func NewGrantService(
	authenticator domain.ClientAuthenticator,
	scopeService *ScopeService,
	jwtService domain.JWTService,
	codeRepo domain.AuthorizationCodeRepository,
	tokenRepo domain.TokenRepository,
	userRepo domain.UserRepository,
	audit domain.AuditLogger,
	accessTTL, refreshTTL time.Duration,
	logger *zap.Logger,
) *GrantService {
	if accessTTL <= 0 {
		accessTTL = domain.DefaultAccessTokenDuration
	}
	if refreshTTL <= 0 {
		refreshTTL = domain.DefaultRefreshTokenDuration
	}
	return &GrantService{
		authenticator: authenticator,
		scopeService:  scopeService,
		jwtService:    jwtService,
		codeRepo:      codeRepo,
		tokenRepo:     tokenRepo,
		userRepo:      userRepo,
		audit:         audit,
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
		logger:        logger,
	}
}

// grantOutcome carries what the audit record needs about a completed
// flow, alongside the response itself.
type grantOutcome struct {
	response    *domain.TokenResponse
	userID      string
	accessHash  string
	refreshHash string
}

// Token executes the requested grant flow. Exactly one audit record is
// written per call, success or failure.
func (s *GrantService) Token(ctx context.Context, req *domain.TokenRequest) (*domain.TokenResponse, error) {
	stage := stageReceived

	outcome, err := s.process(ctx, req, &stage)
	if err != nil {
		oerr := domain.AsOAuthError(err)
		s.logger.Warn("Token request failed",
			zap.String("grant_type", req.GrantType),
			zap.String("stage", string(stage)),
			zap.String("error", string(oerr.Kind)))
		s.audit.Log(ctx, domain.AuditEvent{
			ClientID:     req.Credentials.ClientID,
			Action:       s.auditAction(req.GrantType),
			ResourceType: "token",
			Status:       domain.AuditFailure,
			Metadata: map[string]string{
				"grant_type": req.GrantType,
				"stage":      string(stage),
				"error":      string(oerr.Kind),
			},
			IPAddress: req.IPAddress,
			UserAgent: req.UserAgent,
		})
		return nil, oerr
	}

	metadata := map[string]string{
		"grant_type":        req.GrantType,
		"scope":             outcome.response.Scope,
		"access_token_hash": hashPrefix(outcome.accessHash),
	}
	if outcome.refreshHash != "" {
		metadata["refresh_token_hash"] = hashPrefix(outcome.refreshHash)
	}

	s.audit.Log(ctx, domain.AuditEvent{
		UserID:       outcome.userID,
		ClientID:     req.Credentials.ClientID,
		Action:       s.auditAction(req.GrantType),
		ResourceType: "token",
		Status:       domain.AuditSuccess,
		Metadata:     metadata,
		IPAddress:    req.IPAddress,
		UserAgent:    req.UserAgent,
	})

	return outcome.response, nil
}

func (s *GrantService) process(ctx context.Context, req *domain.TokenRequest, stage *grantStage) (*grantOutcome, error) {
	// Request-level validation happens before any persistence access.
	if req.GrantType == "" {
		return nil, domain.NewOAuthError(domain.ErrInvalidRequest, "grant_type is required")
	}

	switch req.GrantType {
	case domain.GrantTypeAuthorizationCode, domain.GrantTypeRefreshToken, domain.GrantTypeClientCredentials:
	default:
		return nil, domain.NewOAuthError(domain.ErrUnsupportedGrantType, "unsupported grant_type "+req.GrantType)
	}

	client, err := s.authenticator.Authenticate(ctx, req.Credentials)
	if err != nil {
		return nil, err
	}
	req.Credentials.ClientID = client.ID
	*stage = stageClientAuthenticated

	if !client.AllowsGrantType(req.GrantType) {
		return nil, domain.NewOAuthError(domain.ErrUnauthorizedClient, "client is not authorized for grant type "+req.GrantType)
	}

	switch req.GrantType {
	case domain.GrantTypeAuthorizationCode:
		return s.processAuthorizationCode(ctx, req, client, stage)
	case domain.GrantTypeRefreshToken:
		return s.processRefreshToken(ctx, req, client, stage)
	default:
		return s.processClientCredentials(ctx, req, client, stage)
	}
}

// processAuthorizationCode exchanges a single-use code for tokens. The
// code is consumed in one atomic step before any further checks, so a
// concurrent duplicate exchange can never double-issue: one racer wins
// the conditional update and the rest see invalid_grant.
func (s *GrantService) processAuthorizationCode(ctx context.Context, req *domain.TokenRequest, client *domain.Client, stage *grantStage) (*grantOutcome, error) {
	if req.Code == "" {
		return nil, domain.NewOAuthError(domain.ErrInvalidRequest, "code is required")
	}
	if req.RedirectURI == "" {
		return nil, domain.NewOAuthError(domain.ErrInvalidRequest, "redirect_uri is required")
	}
	*stage = stageGrantValidated

	authCode, err := s.codeRepo.Consume(ctx, req.Code)
	if err != nil {
		s.logger.Warn("Authorization code consumption failed", zap.Error(err))
		return nil, domain.ErrInvalidAuthorizationCode
	}

	// The code must be exchanged by the client it was issued to, against
	// the exact redirect URI used at authorization time.
	if authCode.ClientID != client.ID {
		s.logger.Warn("Authorization code client mismatch",
			zap.String("code_client_id", authCode.ClientID),
			zap.String("client_id", client.ID))
		return nil, domain.ErrInvalidAuthorizationCode
	}
	if authCode.RedirectURI != req.RedirectURI {
		s.logger.Warn("Authorization code redirect URI mismatch",
			zap.String("client_id", client.ID))
		return nil, domain.NewOAuthError(domain.ErrInvalidGrant, "redirect_uri does not match the authorization request")
	}

	if authCode.CodeChallenge != "" {
		if !VerifyPKCE(req.CodeVerifier, authCode.CodeChallenge, authCode.CodeChallengeMethod) {
			s.logger.Warn("PKCE verification failed", zap.String("client_id", client.ID))
			return nil, domain.NewOAuthError(domain.ErrInvalidGrant, "PKCE verification failed")
		}
	}
	*stage = stageCodeValidated

	// The granted set was validated at authorization time; re-check
	// containment in case the client registration narrowed since.
	if validation := s.scopeService.ValidateSubset(authCode.Scopes, client.Scopes); !validation.Valid {
		return nil, domain.NewOAuthError(domain.ErrInvalidScopeKind, validation.Reason)
	}
	*stage = stageScopeValidated

	outcome, err := s.issueTokens(ctx, client, authCode.UserID, authCode.Scopes, authCode.Nonce, true, "")
	if err != nil {
		return nil, err
	}
	*stage = stageTokenIssued
	return outcome, nil
}

// processRefreshToken rotates a refresh token: the presented token is
// revoked and a successor linked through previous_token_id is issued.
// Replay of an already-revoked token revokes the entire chain, since it
// signals the token leaked.
func (s *GrantService) processRefreshToken(ctx context.Context, req *domain.TokenRequest, client *domain.Client, stage *grantStage) (*grantOutcome, error) {
	if req.RefreshToken == "" {
		return nil, domain.NewOAuthError(domain.ErrInvalidRequest, "refresh_token is required")
	}

	claims, verr := s.jwtService.VerifyRefreshToken(ctx, req.RefreshToken)
	if verr != nil {
		s.logger.Warn("Refresh token verification failed",
			zap.String("client_id", client.ID),
			zap.String("reason", string(verr.Reason)))
		return nil, domain.NewOAuthError(domain.ErrInvalidGrant, "invalid refresh token")
	}

	record, err := s.tokenRepo.FindRefreshTokenByHash(ctx, s.jwtService.HashToken(req.RefreshToken))
	if err != nil {
		s.logger.Warn("Refresh token record not found", zap.String("client_id", client.ID))
		return nil, domain.NewOAuthError(domain.ErrInvalidGrant, "invalid refresh token")
	}

	if record.ClientID != client.ID {
		s.logger.Warn("Refresh token client mismatch",
			zap.String("record_client_id", record.ClientID),
			zap.String("client_id", client.ID))
		return nil, domain.NewOAuthError(domain.ErrInvalidGrant, "refresh token is not bound to this client")
	}

	if record.IsRevoked {
		// A revoked token coming back is a strong theft signal
		// (RFC 6819): kill the whole rotation chain.
		revoked, chainErr := s.tokenRepo.RevokeRefreshTokenChain(ctx, record.ID)
		if chainErr != nil {
			s.logger.Error("Failed to revoke token chain on replay",
				zap.String("token_id", record.ID),
				zap.Error(chainErr))
		}
		s.logger.Warn("Revoked refresh token replayed; chain revoked",
			zap.String("token_id", record.ID),
			zap.String("client_id", client.ID),
			zap.Int64("revoked_count", revoked))
		s.audit.Log(ctx, domain.AuditEvent{
			UserID:       record.UserID,
			ClientID:     client.ID,
			Action:       domain.AuditActionReplayDetected,
			ResourceType: "refresh_token",
			ResourceID:   record.ID,
			Status:       domain.AuditFailure,
			Metadata: map[string]string{
				"revoked_count": strconv.FormatInt(revoked, 10),
			},
			IPAddress: req.IPAddress,
			UserAgent: req.UserAgent,
		})
		return nil, domain.NewOAuthError(domain.ErrInvalidGrant, "refresh token has been revoked")
	}

	if record.Expired(time.Now()) {
		return nil, domain.NewOAuthError(domain.ErrInvalidGrant, "refresh token expired")
	}
	*stage = stageGrantValidated

	// Narrowing: a requested scope must be a subset of the original grant.
	grantedScopes := record.Scopes
	if req.Scope != "" {
		requested := domain.ParseScope(req.Scope)
		if validation := s.scopeService.ValidateSubset(requested, record.Scopes); !validation.Valid {
			return nil, domain.NewOAuthError(domain.ErrInvalidScopeKind, "requested scope exceeds the original grant")
		}
		grantedScopes = requested
	}
	*stage = stageScopeValidated

	// Exactly one concurrent rotation wins the conditional revoke.
	won, err := s.tokenRepo.RevokeRefreshToken(ctx, record.ID)
	if err != nil {
		return nil, domain.WrapServerError(err)
	}
	if !won {
		s.logger.Warn("Lost refresh rotation race", zap.String("token_id", record.ID))
		return nil, domain.NewOAuthError(domain.ErrInvalidGrant, "refresh token has been revoked")
	}

	if err := s.jwtService.RevokeJTI(ctx, claims.ID, record.ExpiresAt); err != nil {
		s.logger.Error("Failed to blacklist rotated refresh token",
			zap.String("jti", claims.ID),
			zap.Error(err))
	}

	outcome, err := s.issueTokens(ctx, client, record.UserID, grantedScopes, "", true, record.ID)
	if err != nil {
		return nil, err
	}
	*stage = stageTokenIssued
	return outcome, nil
}

// processClientCredentials issues an access token for the client itself:
// no user context, no refresh token, no ID token.
func (s *GrantService) processClientCredentials(ctx context.Context, req *domain.TokenRequest, client *domain.Client, stage *grantStage) (*grantOutcome, error) {
	*stage = stageGrantValidated

	scopes := domain.ParseScope(req.Scope)
	validation, err := s.scopeService.ValidateForClient(ctx, scopes, client)
	if err != nil {
		return nil, err
	}
	if !validation.Valid {
		return nil, domain.NewOAuthError(domain.ErrInvalidScopeKind, validation.Reason)
	}
	*stage = stageScopeValidated

	outcome, err := s.issueTokens(ctx, client, "", scopes, "", false, "")
	if err != nil {
		return nil, err
	}
	*stage = stageTokenIssued
	return outcome, nil
}

// issueTokens mints and persists the token set for a completed grant.
func (s *GrantService) issueTokens(ctx context.Context, client *domain.Client, userID string, scopes []string, nonce string, withRefresh bool, previousTokenID string) (*grantOutcome, error) {
	var user *domain.User
	var permissions []string

	if userID != "" {
		id, err := domain.ParseULID(userID)
		if err != nil {
			return nil, domain.WrapServerError(err)
		}
		user, err = s.userRepo.FindByID(ctx, id)
		if err != nil {
			s.logger.Error("Failed to load user for token issuance",
				zap.String("user_id", userID),
				zap.Error(err))
			return nil, domain.WrapServerError(err)
		}
		permissions, err = s.userRepo.GetPermissions(ctx, id)
		if err != nil {
			s.logger.Error("Failed to aggregate permissions",
				zap.String("user_id", userID),
				zap.Error(err))
			return nil, domain.WrapServerError(err)
		}
	}

	now := time.Now()
	opts := domain.SignOptions{
		ClientID:    client.ID,
		UserID:      userID,
		Scopes:      scopes,
		Permissions: permissions,
	}

	accessToken, accessClaims, err := s.jwtService.SignAccessToken(opts)
	if err != nil {
		return nil, err
	}

	accessHash := s.jwtService.HashToken(accessToken)
	if err := s.tokenRepo.CreateAccessToken(ctx, &domain.AccessTokenRecord{
		ID:        ulid.Make().String(),
		TokenHash: accessHash,
		JTI:       accessClaims.ID,
		ClientID:  client.ID,
		UserID:    userID,
		Scopes:    scopes,
		CreatedAt: now,
		ExpiresAt: accessClaims.ExpiresAt.Time,
	}); err != nil {
		s.logger.Error("Failed to persist access token record", zap.Error(err))
		return nil, domain.WrapServerError(err)
	}

	response := &domain.TokenResponse{
		AccessToken: accessToken,
		TokenType:   "Bearer",
		ExpiresIn:   int64(time.Until(accessClaims.ExpiresAt.Time).Seconds()),
		Scope:       domain.FormatScope(scopes),
	}

	outcome := &grantOutcome{
		response:   response,
		userID:     userID,
		accessHash: accessHash,
	}

	if withRefresh {
		refreshToken, refreshClaims, err := s.jwtService.SignRefreshToken(opts)
		if err != nil {
			return nil, err
		}

		refreshHash := s.jwtService.HashToken(refreshToken)
		if err := s.tokenRepo.CreateRefreshToken(ctx, &domain.RefreshTokenRecord{
			ID:              ulid.Make().String(),
			TokenHash:       refreshHash,
			JTI:             refreshClaims.ID,
			ClientID:        client.ID,
			UserID:          userID,
			Scopes:          scopes,
			PreviousTokenID: previousTokenID,
			CreatedAt:       now,
			ExpiresAt:       refreshClaims.ExpiresAt.Time,
		}); err != nil {
			s.logger.Error("Failed to persist refresh token record", zap.Error(err))
			return nil, domain.WrapServerError(err)
		}

		response.RefreshToken = refreshToken
		outcome.refreshHash = refreshHash
	}

	if user != nil && domain.HasScope(scopes, "openid") {
		idToken, err := s.jwtService.SignIDToken(user, client, nonce)
		if err != nil {
			return nil, err
		}
		response.IDToken = idToken
	}

	return outcome, nil
}

// Revoke implements RFC 7009: revoking an unknown token is still a
// success, so callers cannot probe for token existence.
func (s *GrantService) Revoke(ctx context.Context, req *domain.RevocationRequest) error {
	if req.Token == "" {
		return domain.NewOAuthError(domain.ErrInvalidRequest, "token is required")
	}

	client, err := s.authenticator.Authenticate(ctx, req.Credentials)
	if err != nil {
		s.audit.Log(ctx, domain.AuditEvent{
			ClientID:     req.Credentials.ClientID,
			Action:       domain.AuditActionTokenRevoke,
			ResourceType: "token",
			Status:       domain.AuditFailure,
			Metadata:     map[string]string{"error": string(domain.ErrInvalidClientKind)},
			IPAddress:    req.IPAddress,
			UserAgent:    req.UserAgent,
		})
		return err
	}

	hash := s.jwtService.HashToken(req.Token)
	revoked := s.revokeByHash(ctx, client, hash, req.TokenTypeHint)

	s.audit.Log(ctx, domain.AuditEvent{
		ClientID:     client.ID,
		Action:       domain.AuditActionTokenRevoke,
		ResourceType: "token",
		Status:       domain.AuditSuccess,
		Metadata: map[string]string{
			"token_hash": hashPrefix(hash),
			"revoked":    boolString(revoked),
		},
		IPAddress: req.IPAddress,
		UserAgent: req.UserAgent,
	})

	return nil
}

// revokeByHash blacklists whichever record matches the digest. A token
// issued to a different client is treated as unknown.
func (s *GrantService) revokeByHash(ctx context.Context, client *domain.Client, hash, hint string) bool {
	if hint != "access_token" {
		if record, err := s.tokenRepo.FindRefreshTokenByHash(ctx, hash); err == nil && record.ClientID == client.ID {
			if _, err := s.tokenRepo.RevokeRefreshToken(ctx, record.ID); err != nil {
				s.logger.Error("Failed to revoke refresh token record", zap.Error(err))
			}
			if err := s.jwtService.RevokeJTI(ctx, record.JTI, record.ExpiresAt); err != nil {
				s.logger.Error("Failed to blacklist refresh token", zap.Error(err))
			}
			return true
		}
	}

	if record, err := s.tokenRepo.FindAccessTokenByHash(ctx, hash); err == nil && record.ClientID == client.ID {
		if err := s.jwtService.RevokeJTI(ctx, record.JTI, record.ExpiresAt); err != nil {
			s.logger.Error("Failed to blacklist access token", zap.Error(err))
		}
		return true
	}

	return false
}

func (s *GrantService) auditAction(grantType string) string {
	if grantType == domain.GrantTypeRefreshToken {
		return domain.AuditActionTokenRefresh
	}
	return domain.AuditActionTokenIssue
}

func hashPrefix(hash string) string {
	if len(hash) <= tokenHashPrefixLen {
		return hash
	}
	return hash[:tokenHashPrefixLen]
}

func boolString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

var _ domain.GrantService = (*GrantService)(nil)

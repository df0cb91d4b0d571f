package application

import (
	"context"
	"encoding/base64"
	"strings"
	"time"

	"github.com/arvoria/authd/internal/domain"
	"github.com/arvoria/authd/internal/infrastructure/secret"
	jwxjwt "github.com/lestrrat-go/jwx/v2/jwt"
	"go.uber.org/zap"
)

// ClientAuthService establishes a client identity from the credentials a
// request presented. Authentication methods are tried in order: JWT
// bearer assertion, client_id+client_secret (form or HTTP Basic), bare
// client_id for public clients. Every failure path classifies as
// invalid_client.
type ClientAuthService struct {
	clientRepo       domain.ClientRepository
	resolver         domain.KeySetResolver
	tokenEndpointURL string
	logger           *zap.Logger
}

// NewClientAuthService creates a new ClientAuthService. tokenEndpointURL
// is the audience a client assertion must carry.
func NewClientAuthService(clientRepo domain.ClientRepository, resolver domain.KeySetResolver, tokenEndpointURL string, logger *zap.Logger) *ClientAuthService {
	return &ClientAuthService{
		clientRepo:       clientRepo,
		resolver:         resolver,
		tokenEndpointURL: tokenEndpointURL,
		logger:           logger,
	}
}

// Authenticate resolves the client the credentials belong to.
func (s *ClientAuthService) Authenticate(ctx context.Context, creds domain.ClientCredentials) (*domain.Client, error) {
	if creds.ClientAssertion != "" || creds.ClientAssertionType != "" {
		return s.authenticateAssertion(ctx, creds)
	}

	clientID, clientSecret, err := s.resolveSecretCredentials(creds)
	if err != nil {
		return nil, err
	}

	if clientID == "" {
		s.logger.Warn("Token request presented no client credentials")
		return nil, domain.ErrInvalidClient
	}

	if clientSecret != "" {
		return s.authenticateSecret(ctx, clientID, clientSecret)
	}

	return s.authenticatePublic(ctx, clientID)
}

// resolveSecretCredentials merges form credentials with the HTTP Basic
// header. A malformed Basic header classifies as invalid_client, never
// as a parse failure.
func (s *ClientAuthService) resolveSecretCredentials(creds domain.ClientCredentials) (string, string, error) {
	clientID := creds.ClientID
	clientSecret := creds.ClientSecret

	header := creds.AuthorizationHeader
	if header == "" {
		return clientID, clientSecret, nil
	}

	const prefix = "Basic "
	if !strings.HasPrefix(header, prefix) {
		return clientID, clientSecret, nil
	}

	decoded, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(header, prefix))
	if err != nil {
		s.logger.Warn("Malformed Basic authorization header", zap.Error(err))
		return "", "", domain.ErrInvalidClient
	}

	id, secretValue, found := strings.Cut(string(decoded), ":")
	if !found || id == "" {
		s.logger.Warn("Basic authorization header missing client id")
		return "", "", domain.ErrInvalidClient
	}

	return id, secretValue, nil
}

// authenticateSecret validates a confidential client's shared secret.
func (s *ClientAuthService) authenticateSecret(ctx context.Context, clientID, clientSecret string) (*domain.Client, error) {
	client, err := s.loadActiveClient(ctx, clientID)
	if err != nil {
		return nil, err
	}

	// Public clients must never present a secret.
	if client.IsPublic {
		s.logger.Warn("Public client presented a secret", zap.String("client_id", clientID))
		return nil, domain.ErrInvalidClient
	}

	if client.SecretHash == "" {
		s.logger.Warn("Client has no registered secret", zap.String("client_id", clientID))
		return nil, domain.ErrInvalidClient
	}

	if err := secret.Compare(clientSecret, client.SecretHash); err != nil {
		s.logger.Warn("Client secret mismatch", zap.String("client_id", clientID))
		return nil, domain.ErrInvalidClient
	}

	if client.SecretExpired(time.Now()) {
		s.logger.Warn("Client secret expired", zap.String("client_id", clientID))
		return nil, domain.ErrInvalidClient
	}

	return client, nil
}

// authenticatePublic accepts a bare client_id only for public clients.
func (s *ClientAuthService) authenticatePublic(ctx context.Context, clientID string) (*domain.Client, error) {
	client, err := s.loadActiveClient(ctx, clientID)
	if err != nil {
		return nil, err
	}

	if !client.IsPublic {
		s.logger.Warn("Confidential client presented no secret", zap.String("client_id", clientID))
		return nil, domain.ErrInvalidClient
	}

	return client, nil
}

// authenticateAssertion verifies a private_key_jwt client assertion
// (RFC 7523) against the client's registered key-set endpoint.
func (s *ClientAuthService) authenticateAssertion(ctx context.Context, creds domain.ClientCredentials) (*domain.Client, error) {
	if creds.ClientAssertionType != domain.ClientAssertionTypeJWTBearer || creds.ClientAssertion == "" {
		s.logger.Warn("Unsupported client assertion type",
			zap.String("client_assertion_type", creds.ClientAssertionType))
		return nil, domain.ErrInvalidClient
	}

	// Decode without verifying to discover which client is asserting.
	unverified, err := jwxjwt.ParseInsecure([]byte(creds.ClientAssertion))
	if err != nil {
		s.logger.Warn("Failed to decode client assertion", zap.Error(err))
		return nil, domain.ErrInvalidClient
	}

	clientID := unverified.Issuer()
	if clientID == "" || clientID != unverified.Subject() {
		s.logger.Warn("Client assertion iss/sub mismatch",
			zap.String("iss", unverified.Issuer()),
			zap.String("sub", unverified.Subject()))
		return nil, domain.ErrInvalidClient
	}

	client, err := s.loadActiveClient(ctx, clientID)
	if err != nil {
		return nil, err
	}

	if client.JWKSURI == "" {
		s.logger.Warn("Client has no registered jwks_uri", zap.String("client_id", clientID))
		return nil, domain.ErrInvalidClient
	}

	keySet, err := s.resolver.Resolve(ctx, client.JWKSURI)
	if err != nil {
		s.logger.Error("Failed to resolve client key set",
			zap.String("client_id", clientID),
			zap.String("jwks_uri", client.JWKSURI),
			zap.Error(err))
		return nil, domain.ErrInvalidClient
	}

	_, err = jwxjwt.Parse([]byte(creds.ClientAssertion),
		jwxjwt.WithKeySet(keySet),
		jwxjwt.WithValidate(true),
		jwxjwt.WithIssuer(clientID),
		jwxjwt.WithSubject(clientID),
		jwxjwt.WithAudience(s.tokenEndpointURL),
	)
	if err != nil {
		s.logger.Warn("Client assertion verification failed",
			zap.String("client_id", clientID),
			zap.Error(err))
		return nil, domain.ErrInvalidClient
	}

	return client, nil
}

func (s *ClientAuthService) loadActiveClient(ctx context.Context, clientID string) (*domain.Client, error) {
	client, err := s.clientRepo.FindByID(ctx, clientID)
	if err != nil {
		s.logger.Warn("Failed to load client", zap.String("client_id", clientID), zap.Error(err))
		return nil, domain.ErrInvalidClient
	}

	if !client.IsActive {
		s.logger.Warn("Client is inactive", zap.String("client_id", clientID))
		return nil, domain.ErrInvalidClient
	}

	return client, nil
}

var _ domain.ClientAuthenticator = (*ClientAuthService)(nil)

package jwt

import (
	"bytes"
	"context"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"sync"
	"time"

	"github.com/arvoria/authd/internal/domain"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Options configure the token codec. Issuer and Audience are bound into
// every minted token and required from every verified one.
type Options struct {
	Issuer          string
	Audience        string
	AccessDuration  time.Duration
	RefreshDuration time.Duration
	IDTokenDuration time.Duration
}

type jwtService struct {
	provider    domain.SigningKeyProvider
	revocations domain.RevocationRepository
	opts        Options
	logger      *zap.Logger
	cache       *jwksCache
}

type jwksCache struct {
	keys     map[string]interface{}
	lastSync time.Time
	mu       sync.RWMutex
}

// NewJWTService creates the token codec around a key provider and the
// revocation blacklist.
func NewJWTService(provider domain.SigningKeyProvider, revocations domain.RevocationRepository, opts Options, logger *zap.Logger) (domain.JWTService, error) {
	if provider == nil {
		return nil, errInvalidKeyConfig
	}
	if opts.Issuer == "" || opts.Audience == "" {
		return nil, errors.New("issuer and audience are required")
	}
	if opts.AccessDuration <= 0 {
		opts.AccessDuration = domain.DefaultAccessTokenDuration
	}
	if opts.RefreshDuration <= 0 {
		opts.RefreshDuration = domain.DefaultRefreshTokenDuration
	}
	if opts.IDTokenDuration <= 0 {
		opts.IDTokenDuration = domain.DefaultIDTokenDuration
	}

	return &jwtService{
		provider:    provider,
		revocations: revocations,
		opts:        opts,
		logger:      logger,
		cache:       &jwksCache{keys: make(map[string]interface{})},
	}, nil
}

func (j *jwtService) signToken(opts domain.SignOptions, tokenType string, ttl time.Duration) (string, *domain.Claims, error) {
	if opts.TTL > 0 {
		ttl = opts.TTL
	}

	subject := opts.UserID
	if subject == "" {
		subject = opts.ClientID
	}

	now := time.Now()
	claims := &domain.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    j.opts.Issuer,
			Audience:  jwt.ClaimStrings{j.opts.Audience},
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
		ClientID:    opts.ClientID,
		Scope:       domain.FormatScope(opts.Scopes),
		Permissions: opts.Permissions,
		TokenType:   tokenType,
	}

	token, err := j.provider.Sign(claims)
	if err != nil {
		j.logger.Error("Failed to sign token",
			zap.Error(err),
			zap.String("token_id", claims.ID),
			zap.String("client_id", opts.ClientID))
		return "", nil, domain.WrapServerError(err)
	}

	return token, claims, nil
}

// SignAccessToken mints a signed access token
func (j *jwtService) SignAccessToken(opts domain.SignOptions) (string, *domain.Claims, error) {
	return j.signToken(opts, "", j.opts.AccessDuration)
}

// SignRefreshToken mints a signed refresh token carrying token_type=refresh
func (j *jwtService) SignRefreshToken(opts domain.SignOptions) (string, *domain.Claims, error) {
	return j.signToken(opts, domain.TokenTypeRefresh, j.opts.RefreshDuration)
}

// SignIDToken mints an OIDC ID token. The audience is the client ID and
// optional claims are omitted when empty.
func (j *jwtService) SignIDToken(user *domain.User, client *domain.Client, nonce string) (string, error) {
	now := time.Now()
	claims := &domain.IDTokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    j.opts.Issuer,
			Audience:  jwt.ClaimStrings{client.ID},
			Subject:   user.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(j.opts.IDTokenDuration)),
			ID:        uuid.NewString(),
		},
		Email:             user.Email,
		EmailVerified:     user.EmailVerified,
		Name:              user.Name,
		GivenName:         user.GivenName,
		FamilyName:        user.FamilyName,
		PreferredUsername: user.PreferredUsername,
		Nonce:             nonce,
	}

	token, err := j.provider.Sign(claims)
	if err != nil {
		j.logger.Error("Failed to sign ID token",
			zap.Error(err),
			zap.String("user_id", user.ID.String()),
			zap.String("client_id", client.ID))
		return "", domain.WrapServerError(err)
	}

	return token, nil
}

func (j *jwtService) verify(ctx context.Context, tokenString string) (*domain.Claims, *domain.TokenVerificationError) {
	token, err := jwt.ParseWithClaims(tokenString, &domain.Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, jwt.ErrTokenSignatureInvalid
		}
		publicKey := j.provider.GetPublicKey()
		if publicKey == nil {
			return nil, errInvalidKeyConfig
		}
		return publicKey, nil
	},
		jwt.WithValidMethods([]string{"RS256"}),
		jwt.WithIssuer(j.opts.Issuer),
		jwt.WithAudience(j.opts.Audience),
		jwt.WithExpirationRequired(),
	)

	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			j.logger.Warn("Token expired", zap.Error(err))
			return nil, &domain.TokenVerificationError{Reason: domain.VerificationExpired}
		case errors.Is(err, jwt.ErrTokenMalformed):
			j.logger.Warn("Malformed token", zap.Error(err))
			return nil, &domain.TokenVerificationError{Reason: domain.VerificationMalformed}
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			j.logger.Warn("Invalid token signature", zap.Error(err))
			return nil, &domain.TokenVerificationError{Reason: domain.VerificationBadSignature}
		case errors.Is(err, jwt.ErrTokenInvalidIssuer), errors.Is(err, jwt.ErrTokenInvalidAudience):
			j.logger.Warn("Token issuer/audience mismatch", zap.Error(err))
			return nil, &domain.TokenVerificationError{Reason: domain.VerificationClaimMismatch, Detail: err.Error()}
		default:
			j.logger.Error("Failed to parse token", zap.Error(err))
			return nil, &domain.TokenVerificationError{Reason: domain.VerificationMalformed, Detail: err.Error()}
		}
	}

	claims, ok := token.Claims.(*domain.Claims)
	if !ok || claims.Subject == "" || claims.ID == "" {
		j.logger.Warn("Token missing required claims")
		return nil, &domain.TokenVerificationError{Reason: domain.VerificationClaimMismatch, Detail: "missing subject or jti"}
	}

	// Check the revocation blacklist last; presence of the jti blocks the
	// token regardless of its embedded expiry.
	revoked, err := j.revocations.Contains(ctx, claims.ID)
	if err != nil {
		j.logger.Error("Failed to check revocation list",
			zap.Error(err),
			zap.String("token_id", claims.ID))
		return nil, &domain.TokenVerificationError{Reason: domain.VerificationRevoked, Detail: "revocation check failed"}
	}
	if revoked {
		j.logger.Warn("Token is revoked", zap.String("token_id", claims.ID))
		return nil, &domain.TokenVerificationError{Reason: domain.VerificationRevoked}
	}

	return claims, nil
}

// VerifyAccessToken validates an access token
func (j *jwtService) VerifyAccessToken(ctx context.Context, token string) (*domain.Claims, *domain.TokenVerificationError) {
	claims, verr := j.verify(ctx, token)
	if verr != nil {
		return nil, verr
	}
	if claims.TokenType == domain.TokenTypeRefresh {
		return nil, &domain.TokenVerificationError{Reason: domain.VerificationClaimMismatch, Detail: "refresh token presented as access token"}
	}
	return claims, nil
}

// VerifyRefreshToken validates a refresh token, additionally requiring
// the token_type=refresh claim
func (j *jwtService) VerifyRefreshToken(ctx context.Context, token string) (*domain.Claims, *domain.TokenVerificationError) {
	claims, verr := j.verify(ctx, token)
	if verr != nil {
		return nil, verr
	}
	if claims.TokenType != domain.TokenTypeRefresh {
		return nil, &domain.TokenVerificationError{Reason: domain.VerificationClaimMismatch, Detail: "token_type is not refresh"}
	}
	return claims, nil
}

// HashToken computes the SHA-256 digest of the signed token, encoded
// base64url. Records and lookups use this digest, never the raw value.
func (j *jwtService) HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// RevokeJTI blacklists a token ID until its natural expiry
func (j *jwtService) RevokeJTI(ctx context.Context, jti string, expiresAt time.Time) error {
	if err := j.revocations.Add(ctx, jti, expiresAt); err != nil {
		j.logger.Error("Failed to blacklist token", zap.Error(err), zap.String("token_id", jti))
		return domain.WrapServerError(err)
	}
	return nil
}

// JWKS returns the public key set, cached for JWKSCacheDuration.
func (j *jwtService) JWKS() (map[string]interface{}, error) {
	j.cache.mu.RLock()
	if !j.cache.lastSync.IsZero() && time.Since(j.cache.lastSync) < domain.JWKSCacheDuration {
		keys := j.cache.keys
		j.cache.mu.RUnlock()
		return keys, nil
	}
	j.cache.mu.RUnlock()

	publicKey := j.provider.GetPublicKey()
	if publicKey == nil {
		j.logger.Error("Failed to get public key")
		return nil, errInvalidKeyConfig
	}

	jwkDoc, err := convertToJWK(publicKey, j.provider.GetKeyID())
	if err != nil {
		j.logger.Error("Failed to convert public key to JWK", zap.Error(err))
		return nil, err
	}

	keys := map[string]interface{}{
		"keys": []map[string]interface{}{jwkDoc},
	}

	j.cache.mu.Lock()
	j.cache.keys = keys
	j.cache.lastSync = time.Now()
	j.cache.mu.Unlock()

	return keys, nil
}

// convertToJWK converts an RSA public key to JWK format
func convertToJWK(publicKey *rsa.PublicKey, kid string) (map[string]interface{}, error) {
	if publicKey == nil {
		return nil, errInvalidKeyConfig
	}

	// Modulus and exponent as Base64URL without padding
	nStr := base64.RawURLEncoding.EncodeToString(publicKey.N.Bytes())

	eBytes := make([]byte, 4)
	binary.BigEndian.PutUint32(eBytes, uint32(publicKey.E))
	eBytes = bytes.TrimLeft(eBytes, "\x00")
	eStr := base64.RawURLEncoding.EncodeToString(eBytes)

	return map[string]interface{}{
		"kty": "RSA",
		"use": "sig",
		"kid": kid,
		"alg": "RS256",
		"n":   nStr,
		"e":   eStr,
	}, nil
}

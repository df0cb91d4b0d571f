package handlers

import (
	"context"
	"time"

	"github.com/arvoria/authd/internal/domain"
	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/mock"
)

// MockGrantService is a mock implementation of domain.GrantService
type MockGrantService struct {
	mock.Mock
}

func (m *MockGrantService) Token(ctx context.Context, req *domain.TokenRequest) (*domain.TokenResponse, error) {
	args := m.Called(ctx, req)
	var response *domain.TokenResponse
	if args.Get(0) != nil {
		response = args.Get(0).(*domain.TokenResponse)
	}
	return response, args.Error(1)
}

func (m *MockGrantService) Revoke(ctx context.Context, req *domain.RevocationRequest) error {
	args := m.Called(ctx, req)
	return args.Error(0)
}

// MockAuthorizationService is a mock implementation of domain.AuthorizationService
type MockAuthorizationService struct {
	mock.Mock
}

func (m *MockAuthorizationService) Authorize(ctx context.Context, req *domain.AuthorizeRequest) (*domain.AuthorizeResult, error) {
	args := m.Called(ctx, req)
	var result *domain.AuthorizeResult
	if args.Get(0) != nil {
		result = args.Get(0).(*domain.AuthorizeResult)
	}
	return result, args.Error(1)
}

func (m *MockAuthorizationService) Deny(ctx context.Context, req *domain.AuthorizeRequest) *domain.AuthorizeResult {
	args := m.Called(ctx, req)
	return args.Get(0).(*domain.AuthorizeResult)
}

// MockJWTService is a mock implementation of domain.JWTService
type MockJWTService struct {
	mock.Mock
}

func (m *MockJWTService) SignAccessToken(opts domain.SignOptions) (string, *domain.Claims, error) {
	args := m.Called(opts)
	var claims *domain.Claims
	if args.Get(1) != nil {
		claims = args.Get(1).(*domain.Claims)
	}
	return args.String(0), claims, args.Error(2)
}

func (m *MockJWTService) SignRefreshToken(opts domain.SignOptions) (string, *domain.Claims, error) {
	args := m.Called(opts)
	var claims *domain.Claims
	if args.Get(1) != nil {
		claims = args.Get(1).(*domain.Claims)
	}
	return args.String(0), claims, args.Error(2)
}

func (m *MockJWTService) SignIDToken(user *domain.User, client *domain.Client, nonce string) (string, error) {
	args := m.Called(user, client, nonce)
	return args.String(0), args.Error(1)
}

func (m *MockJWTService) VerifyAccessToken(ctx context.Context, token string) (*domain.Claims, *domain.TokenVerificationError) {
	args := m.Called(ctx, token)
	var claims *domain.Claims
	if args.Get(0) != nil {
		claims = args.Get(0).(*domain.Claims)
	}
	var verr *domain.TokenVerificationError
	if args.Get(1) != nil {
		verr = args.Get(1).(*domain.TokenVerificationError)
	}
	return claims, verr
}

func (m *MockJWTService) VerifyRefreshToken(ctx context.Context, token string) (*domain.Claims, *domain.TokenVerificationError) {
	args := m.Called(ctx, token)
	var claims *domain.Claims
	if args.Get(0) != nil {
		claims = args.Get(0).(*domain.Claims)
	}
	var verr *domain.TokenVerificationError
	if args.Get(1) != nil {
		verr = args.Get(1).(*domain.TokenVerificationError)
	}
	return claims, verr
}

func (m *MockJWTService) HashToken(token string) string {
	args := m.Called(token)
	return args.String(0)
}

func (m *MockJWTService) RevokeJTI(ctx context.Context, jti string, expiresAt time.Time) error {
	args := m.Called(ctx, jti, expiresAt)
	return args.Error(0)
}

func (m *MockJWTService) JWKS() (map[string]interface{}, error) {
	args := m.Called()
	var set map[string]interface{}
	if args.Get(0) != nil {
		set = args.Get(0).(map[string]interface{})
	}
	return set, args.Error(1)
}

// MockUserRepository is a mock implementation of domain.UserRepository
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) FindByID(ctx context.Context, id ulid.ULID) (*domain.User, error) {
	args := m.Called(ctx, id)
	var user *domain.User
	if args.Get(0) != nil {
		user = args.Get(0).(*domain.User)
	}
	return user, args.Error(1)
}

func (m *MockUserRepository) GetPermissions(ctx context.Context, id ulid.ULID) ([]string, error) {
	args := m.Called(ctx, id)
	var permissions []string
	if args.Get(0) != nil {
		permissions = args.Get(0).([]string)
	}
	return permissions, args.Error(1)
}

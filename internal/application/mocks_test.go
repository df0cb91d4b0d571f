package application

import (
	"context"
	"sync"
	"time"

	"github.com/arvoria/authd/internal/domain"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/mock"
)

// MockClientRepository is a mock implementation of domain.ClientRepository
type MockClientRepository struct {
	mock.Mock
}

func (m *MockClientRepository) FindByID(ctx context.Context, id string) (*domain.Client, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Client), args.Error(1)
}

// MockCodeRepository is a mock implementation of domain.AuthorizationCodeRepository
type MockCodeRepository struct {
	mock.Mock
}

func (m *MockCodeRepository) Create(ctx context.Context, code *domain.AuthorizationCode) error {
	args := m.Called(ctx, code)
	return args.Error(0)
}

func (m *MockCodeRepository) Consume(ctx context.Context, code string) (*domain.AuthorizationCode, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.AuthorizationCode), args.Error(1)
}

func (m *MockCodeRepository) DeleteExpired(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

// MockTokenRepository is a mock implementation of domain.TokenRepository
type MockTokenRepository struct {
	mock.Mock
}

func (m *MockTokenRepository) CreateAccessToken(ctx context.Context, record *domain.AccessTokenRecord) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

func (m *MockTokenRepository) CreateRefreshToken(ctx context.Context, record *domain.RefreshTokenRecord) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

func (m *MockTokenRepository) FindAccessTokenByHash(ctx context.Context, hash string) (*domain.AccessTokenRecord, error) {
	args := m.Called(ctx, hash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.AccessTokenRecord), args.Error(1)
}

func (m *MockTokenRepository) FindRefreshTokenByHash(ctx context.Context, hash string) (*domain.RefreshTokenRecord, error) {
	args := m.Called(ctx, hash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.RefreshTokenRecord), args.Error(1)
}

func (m *MockTokenRepository) RevokeRefreshToken(ctx context.Context, id string) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *MockTokenRepository) RevokeRefreshTokenChain(ctx context.Context, id string) (int64, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(int64), args.Error(1)
}

// MockScopeRepository is a mock implementation of domain.ScopeRepository
type MockScopeRepository struct {
	mock.Mock
}

func (m *MockScopeRepository) FindByNames(ctx context.Context, names []string) ([]*domain.Scope, error) {
	args := m.Called(ctx, names)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Scope), args.Error(1)
}

func (m *MockScopeRepository) ListActive(ctx context.Context) ([]*domain.Scope, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Scope), args.Error(1)
}

// MockUserRepository is a mock implementation of domain.UserRepository
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) FindByID(ctx context.Context, id ulid.ULID) (*domain.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockUserRepository) GetPermissions(ctx context.Context, id ulid.ULID) ([]string, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

// MockAuditRepository is a mock implementation of domain.AuditRepository
type MockAuditRepository struct {
	mock.Mock
}

func (m *MockAuditRepository) Create(ctx context.Context, record *domain.AuditRecord) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

// MockAuthenticator is a mock implementation of domain.ClientAuthenticator
type MockAuthenticator struct {
	mock.Mock
}

func (m *MockAuthenticator) Authenticate(ctx context.Context, creds domain.ClientCredentials) (*domain.Client, error) {
	args := m.Called(ctx, creds)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Client), args.Error(1)
}

// MockKeySetResolver is a mock implementation of domain.KeySetResolver
type MockKeySetResolver struct {
	mock.Mock
}

func (m *MockKeySetResolver) Resolve(ctx context.Context, jwksURI string) (jwk.Set, error) {
	args := m.Called(ctx, jwksURI)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(jwk.Set), args.Error(1)
}

// MockJWTService is a mock implementation of domain.JWTService.
// HashToken is deterministic rather than expectation-driven so tests
// can predict lookup keys without extra setup.
type MockJWTService struct {
	mock.Mock
}

func (m *MockJWTService) SignAccessToken(opts domain.SignOptions) (string, *domain.Claims, error) {
	args := m.Called(opts)
	if args.Get(1) == nil {
		return args.String(0), nil, args.Error(2)
	}
	return args.String(0), args.Get(1).(*domain.Claims), args.Error(2)
}

func (m *MockJWTService) SignRefreshToken(opts domain.SignOptions) (string, *domain.Claims, error) {
	args := m.Called(opts)
	if args.Get(1) == nil {
		return args.String(0), nil, args.Error(2)
	}
	return args.String(0), args.Get(1).(*domain.Claims), args.Error(2)
}

func (m *MockJWTService) SignIDToken(user *domain.User, client *domain.Client, nonce string) (string, error) {
	args := m.Called(user, client, nonce)
	return args.String(0), args.Error(1)
}

func (m *MockJWTService) VerifyAccessToken(ctx context.Context, token string) (*domain.Claims, *domain.TokenVerificationError) {
	args := m.Called(ctx, token)
	if args.Get(1) != nil {
		return nil, args.Get(1).(*domain.TokenVerificationError)
	}
	return args.Get(0).(*domain.Claims), nil
}

func (m *MockJWTService) VerifyRefreshToken(ctx context.Context, token string) (*domain.Claims, *domain.TokenVerificationError) {
	args := m.Called(ctx, token)
	if args.Get(1) != nil {
		return nil, args.Get(1).(*domain.TokenVerificationError)
	}
	return args.Get(0).(*domain.Claims), nil
}

func (m *MockJWTService) HashToken(token string) string {
	return "hash-" + token
}

func (m *MockJWTService) RevokeJTI(ctx context.Context, jti string, expiresAt time.Time) error {
	args := m.Called(ctx, jti, expiresAt)
	return args.Error(0)
}

func (m *MockJWTService) JWKS() (map[string]interface{}, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]interface{}), args.Error(1)
}

// recordingAudit captures emitted audit events so tests can assert the
// one-record-per-outcome invariant.
type recordingAudit struct {
	mu     sync.Mutex
	events []domain.AuditEvent
}

func (r *recordingAudit) Log(_ context.Context, event domain.AuditEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recordingAudit) Events() []domain.AuditEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.AuditEvent, len(r.events))
	copy(out, r.events)
	return out
}

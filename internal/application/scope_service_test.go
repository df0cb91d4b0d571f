package application

import (
	"context"
	"testing"

	"github.com/arvoria/authd/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestScopeService_ValidateForClient(t *testing.T) {
	confidential := &domain.Client{
		ID:     "confidential-client",
		Scopes: []string{"openid", "profile", "email"},
	}
	public := &domain.Client{
		ID:       "public-client",
		IsPublic: true,
		Scopes:   []string{"openid", "profile", "admin"},
	}

	catalog := []*domain.Scope{
		{Name: "openid", IsActive: true, IsPublic: true},
		{Name: "profile", IsActive: true, IsPublic: true},
		{Name: "email", IsActive: true, IsPublic: true},
		{Name: "admin", IsActive: true, IsPublic: false},
		{Name: "legacy", IsActive: false, IsPublic: true},
	}

	tests := []struct {
		name        string
		requested   []string
		client      *domain.Client
		setupMock   func(*MockScopeRepository)
		wantValid   bool
		wantInvalid []string
	}{
		{
			name:      "empty request is valid",
			requested: nil,
			client:    confidential,
			setupMock: func(m *MockScopeRepository) {},
			wantValid: true,
		},
		{
			name:      "all scopes allowed",
			requested: []string{"openid", "profile"},
			client:    confidential,
			setupMock: func(m *MockScopeRepository) {
				m.On("FindByNames", mock.Anything, []string{"openid", "profile"}).Return(catalog, nil)
			},
			wantValid: true,
		},
		{
			name:      "scope not registered for client",
			requested: []string{"openid", "admin"},
			client:    confidential,
			setupMock: func(m *MockScopeRepository) {
				m.On("FindByNames", mock.Anything, []string{"openid", "admin"}).Return(catalog, nil)
			},
			wantValid:   false,
			wantInvalid: []string{"admin"},
		},
		{
			name:      "inactive scope rejected",
			requested: []string{"legacy"},
			client: &domain.Client{
				ID:     "confidential-client",
				Scopes: []string{"legacy"},
			},
			setupMock: func(m *MockScopeRepository) {
				m.On("FindByNames", mock.Anything, []string{"legacy"}).Return(catalog, nil)
			},
			wantValid:   false,
			wantInvalid: []string{"legacy"},
		},
		{
			name:      "unknown scope rejected",
			requested: []string{"openid", "missing"},
			client: &domain.Client{
				ID:     "confidential-client",
				Scopes: []string{"openid", "missing"},
			},
			setupMock: func(m *MockScopeRepository) {
				m.On("FindByNames", mock.Anything, []string{"openid", "missing"}).Return(catalog, nil)
			},
			wantValid:   false,
			wantInvalid: []string{"missing"},
		},
		{
			name:      "public client denied non-public scope",
			requested: []string{"openid", "admin"},
			client:    public,
			setupMock: func(m *MockScopeRepository) {
				m.On("FindByNames", mock.Anything, []string{"openid", "admin"}).Return(catalog, nil)
			},
			wantValid:   false,
			wantInvalid: []string{"admin"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockRepo := new(MockScopeRepository)
			tt.setupMock(mockRepo)

			service := NewScopeService(mockRepo, zap.NewNop())
			validation, err := service.ValidateForClient(context.Background(), tt.requested, tt.client)

			require.NoError(t, err)
			assert.Equal(t, tt.wantValid, validation.Valid)
			assert.Equal(t, tt.wantInvalid, validation.InvalidScopes)
			mockRepo.AssertExpectations(t)
		})
	}
}

func TestScopeService_ValidateForClient_RepositoryFailure(t *testing.T) {
	mockRepo := new(MockScopeRepository)
	mockRepo.On("FindByNames", mock.Anything, []string{"openid"}).Return(nil, assert.AnError)

	service := NewScopeService(mockRepo, zap.NewNop())
	_, err := service.ValidateForClient(context.Background(), []string{"openid"}, &domain.Client{ID: "c", Scopes: []string{"openid"}})

	require.Error(t, err)
	assert.Equal(t, domain.ErrServerError, domain.AsOAuthError(err).Kind)
}

func TestScopeService_ValidateSubset(t *testing.T) {
	service := NewScopeService(new(MockScopeRepository), zap.NewNop())

	valid := service.ValidateSubset([]string{"openid"}, []string{"openid", "profile"})
	assert.True(t, valid.Valid)

	invalid := service.ValidateSubset([]string{"openid", "email"}, []string{"openid"})
	assert.False(t, invalid.Valid)
	assert.Equal(t, []string{"email"}, invalid.InvalidScopes)

	empty := service.ValidateSubset(nil, []string{"openid"})
	assert.True(t, empty.Valid)
}

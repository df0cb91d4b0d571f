package application

import (
	"context"
	"fmt"

	"github.com/arvoria/authd/internal/domain"
	"go.uber.org/zap"
)

// ScopeService validates requested scopes against client registrations
// and the global scope catalog.
type ScopeService struct {
	scopeRepo domain.ScopeRepository
	logger    *zap.Logger
}

// NewScopeService creates a new ScopeService
func NewScopeService(scopeRepo domain.ScopeRepository, logger *zap.Logger) *ScopeService {
	return &ScopeService{
		scopeRepo: scopeRepo,
		logger:    logger,
	}
}

// ValidateForClient checks that every requested scope is allowed for the
// client, active in the global catalog, and — for public clients —
// marked public. The invalid subset is returned for diagnostics.
func (s *ScopeService) ValidateForClient(ctx context.Context, requested []string, client *domain.Client) (*domain.ScopeValidation, error) {
	if len(requested) == 0 {
		return &domain.ScopeValidation{Valid: true}, nil
	}

	catalog, err := s.scopeRepo.FindByNames(ctx, requested)
	if err != nil {
		s.logger.Error("Failed to load scope catalog",
			zap.Strings("requested", requested),
			zap.Error(err))
		return nil, domain.WrapServerError(err)
	}

	byName := make(map[string]*domain.Scope, len(catalog))
	for _, scope := range catalog {
		byName[scope.Name] = scope
	}

	var invalid []string
	var reason string
	for _, name := range requested {
		if !domain.HasScope(client.Scopes, name) {
			invalid = append(invalid, name)
			reason = "scope not allowed for client"
			continue
		}
		scope, ok := byName[name]
		if !ok || !scope.IsActive {
			invalid = append(invalid, name)
			reason = "scope not active"
			continue
		}
		if client.IsPublic && !scope.IsPublic {
			invalid = append(invalid, name)
			reason = "public clients may only receive public scopes"
		}
	}

	if len(invalid) > 0 {
		s.logger.Warn("Scope validation failed",
			zap.String("client_id", client.ID),
			zap.Strings("invalid_scopes", invalid),
			zap.String("reason", reason))
		return &domain.ScopeValidation{Valid: false, InvalidScopes: invalid, Reason: reason}, nil
	}

	return &domain.ScopeValidation{Valid: true}, nil
}

// ValidateSubset checks plain containment of requested within allowed.
// Used when re-validating a narrowed scope against a previously granted
// set during refresh.
func (s *ScopeService) ValidateSubset(requested, allowed []string) *domain.ScopeValidation {
	var invalid []string
	for _, name := range requested {
		if !domain.HasScope(allowed, name) {
			invalid = append(invalid, name)
		}
	}
	if len(invalid) > 0 {
		return &domain.ScopeValidation{
			Valid:         false,
			InvalidScopes: invalid,
			Reason:        fmt.Sprintf("%d scope(s) exceed the granted set", len(invalid)),
		}
	}
	return &domain.ScopeValidation{Valid: true}
}

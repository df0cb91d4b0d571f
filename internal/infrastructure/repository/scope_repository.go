package repository

import (
	"context"

	"github.com/arvoria/authd/internal/domain"
	"github.com/arvoria/authd/internal/infrastructure/database"
	"go.uber.org/zap"
)

// PostgresScopeRepository implements domain.ScopeRepository using PostgreSQL
type PostgresScopeRepository struct {
	db     *database.Postgres
	logger *zap.Logger
}

// NewScopeRepository creates a new PostgresScopeRepository
func NewScopeRepository(db *database.Postgres, logger *zap.Logger) domain.ScopeRepository {
	return &PostgresScopeRepository{
		db:     db,
		logger: logger,
	}
}

func (r *PostgresScopeRepository) FindByNames(ctx context.Context, names []string) ([]*domain.Scope, error) {
	rows, err := r.db.Query(ctx, `
		SELECT name, description, is_active, is_public
		FROM scopes WHERE name = ANY($1)
	`, names)
	if err != nil {
		r.logger.Error("Failed to query scopes", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	return scanScopes(rows)
}

func (r *PostgresScopeRepository) ListActive(ctx context.Context) ([]*domain.Scope, error) {
	rows, err := r.db.Query(ctx, `
		SELECT name, description, is_active, is_public
		FROM scopes WHERE is_active = true
		ORDER BY name
	`)
	if err != nil {
		r.logger.Error("Failed to list scopes", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	return scanScopes(rows)
}

type scopeRows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanScopes(rows scopeRows) ([]*domain.Scope, error) {
	var scopes []*domain.Scope
	for rows.Next() {
		scope := &domain.Scope{}
		if err := rows.Scan(&scope.Name, &scope.Description, &scope.IsActive, &scope.IsPublic); err != nil {
			return nil, err
		}
		scopes = append(scopes, scope)
	}
	return scopes, rows.Err()
}

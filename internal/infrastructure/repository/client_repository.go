package repository

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/arvoria/authd/internal/domain"
	"github.com/arvoria/authd/internal/infrastructure/database"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// PostgresClientRepository implements domain.ClientRepository using PostgreSQL
type PostgresClientRepository struct {
	db     *database.Postgres
	logger *zap.Logger
}

// NewClientRepository creates a new PostgresClientRepository
func NewClientRepository(db *database.Postgres, logger *zap.Logger) domain.ClientRepository {
	return &PostgresClientRepository{
		db:     db,
		logger: logger,
	}
}

func (r *PostgresClientRepository) FindByID(ctx context.Context, id string) (*domain.Client, error) {
	client := &domain.Client{}
	var redirectURIs, grantTypes, scopes []byte

	err := r.db.QueryRow(ctx, `
		SELECT id, secret_hash, is_public, is_active, redirect_uris, grant_types, scopes,
		       secret_expires_at, jwks_uri, created_at, updated_at
		FROM oauth2_clients WHERE id = $1
	`, id).Scan(&client.ID, &client.SecretHash, &client.IsPublic, &client.IsActive,
		&redirectURIs, &grantTypes, &scopes,
		&client.SecretExpiry, &client.JWKSURI, &client.CreatedAt, &client.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrClientNotFound
		}
		r.logger.Error("Failed to find client", zap.String("client_id", id), zap.Error(err))
		return nil, err
	}

	if err := json.Unmarshal(redirectURIs, &client.RedirectURIs); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(grantTypes, &client.GrantTypes); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(scopes, &client.Scopes); err != nil {
		return nil, err
	}

	return client, nil
}

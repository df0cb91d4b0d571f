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

// PostgresTokenRepository implements domain.TokenRepository using PostgreSQL
type PostgresTokenRepository struct {
	db     *database.Postgres
	logger *zap.Logger
}

// NewTokenRepository creates a new PostgresTokenRepository
func NewTokenRepository(db *database.Postgres, logger *zap.Logger) domain.TokenRepository {
	return &PostgresTokenRepository{
		db:     db,
		logger: logger,
	}
}

func (r *PostgresTokenRepository) CreateAccessToken(ctx context.Context, record *domain.AccessTokenRecord) error {
	scopes, err := json.Marshal(record.Scopes)
	if err != nil {
		return err
	}

	return r.db.Exec(ctx, `
		INSERT INTO access_tokens (id, token_hash, jti, client_id, user_id, scopes, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, record.ID, record.TokenHash, record.JTI, record.ClientID, nullable(record.UserID),
		scopes, record.CreatedAt, record.ExpiresAt)
}

func (r *PostgresTokenRepository) CreateRefreshToken(ctx context.Context, record *domain.RefreshTokenRecord) error {
	scopes, err := json.Marshal(record.Scopes)
	if err != nil {
		return err
	}

	return r.db.Exec(ctx, `
		INSERT INTO refresh_tokens
			(id, token_hash, jti, client_id, user_id, scopes, is_revoked,
			 previous_token_id, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, record.ID, record.TokenHash, record.JTI, record.ClientID, nullable(record.UserID),
		scopes, record.IsRevoked, nullable(record.PreviousTokenID), record.CreatedAt, record.ExpiresAt)
}

func (r *PostgresTokenRepository) FindAccessTokenByHash(ctx context.Context, hash string) (*domain.AccessTokenRecord, error) {
	record := &domain.AccessTokenRecord{}
	var scopes []byte
	var userID *string

	err := r.db.QueryRow(ctx, `
		SELECT id, token_hash, jti, client_id, user_id, scopes, created_at, expires_at
		FROM access_tokens WHERE token_hash = $1
	`, hash).Scan(&record.ID, &record.TokenHash, &record.JTI, &record.ClientID, &userID,
		&scopes, &record.CreatedAt, &record.ExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, pgx.ErrNoRows
		}
		r.logger.Error("Failed to find access token", zap.Error(err))
		return nil, err
	}

	if userID != nil {
		record.UserID = *userID
	}
	if err := json.Unmarshal(scopes, &record.Scopes); err != nil {
		return nil, err
	}

	return record, nil
}

func (r *PostgresTokenRepository) FindRefreshTokenByHash(ctx context.Context, hash string) (*domain.RefreshTokenRecord, error) {
	record := &domain.RefreshTokenRecord{}
	var scopes []byte
	var userID, previousTokenID *string

	err := r.db.QueryRow(ctx, `
		SELECT id, token_hash, jti, client_id, user_id, scopes, is_revoked, revoked_at,
		       previous_token_id, created_at, expires_at
		FROM refresh_tokens WHERE token_hash = $1
	`, hash).Scan(&record.ID, &record.TokenHash, &record.JTI, &record.ClientID, &userID,
		&scopes, &record.IsRevoked, &record.RevokedAt, &previousTokenID,
		&record.CreatedAt, &record.ExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, pgx.ErrNoRows
		}
		r.logger.Error("Failed to find refresh token", zap.Error(err))
		return nil, err
	}

	if userID != nil {
		record.UserID = *userID
	}
	if previousTokenID != nil {
		record.PreviousTokenID = *previousTokenID
	}
	if err := json.Unmarshal(scopes, &record.Scopes); err != nil {
		return nil, err
	}

	return record, nil
}

// RevokeRefreshToken performs the conditional revoke that guards the
// rotation race: the is_revoked predicate means exactly one of several
// concurrent rotations observes an affected row.
func (r *PostgresTokenRepository) RevokeRefreshToken(ctx context.Context, id string) (bool, error) {
	tag, err := r.db.ExecTag(ctx, `
		UPDATE refresh_tokens
		SET is_revoked = true, revoked_at = now()
		WHERE id = $1 AND is_revoked = false
	`, id)
	if err != nil {
		r.logger.Error("Failed to revoke refresh token", zap.String("token_id", id), zap.Error(err))
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// RevokeRefreshTokenChain revokes the record and everything linked to it
// through previous_token_id, ancestors and successors alike. Used when a
// revoked token is replayed, which signals token theft.
func (r *PostgresTokenRepository) RevokeRefreshTokenChain(ctx context.Context, id string) (int64, error) {
	tag, err := r.db.ExecTag(ctx, `
		WITH RECURSIVE chain AS (
			SELECT id, previous_token_id FROM refresh_tokens WHERE id = $1
			UNION
			SELECT rt.id, rt.previous_token_id
			FROM refresh_tokens rt
			JOIN chain c ON rt.previous_token_id = c.id OR rt.id = c.previous_token_id
		)
		UPDATE refresh_tokens
		SET is_revoked = true, revoked_at = now()
		WHERE id IN (SELECT id FROM chain) AND is_revoked = false
	`, id)
	if err != nil {
		r.logger.Error("Failed to revoke refresh token chain", zap.String("token_id", id), zap.Error(err))
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// nullable maps the empty string to SQL NULL.
func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

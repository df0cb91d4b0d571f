package repository

import (
	"context"
	"time"

	"github.com/arvoria/authd/internal/domain"
	"github.com/arvoria/authd/internal/infrastructure/database"
	"go.uber.org/zap"
)

// PostgresRevocationRepository implements the jti blacklist using PostgreSQL
type PostgresRevocationRepository struct {
	db     *database.Postgres
	logger *zap.Logger
}

// NewRevocationRepository creates a new PostgresRevocationRepository
func NewRevocationRepository(db *database.Postgres, logger *zap.Logger) domain.RevocationRepository {
	return &PostgresRevocationRepository{
		db:     db,
		logger: logger,
	}
}

// Add records a revoked jti. Re-revoking the same jti is a no-op so
// revocation stays idempotent.
func (r *PostgresRevocationRepository) Add(ctx context.Context, jti string, expiresAt time.Time) error {
	return r.db.Exec(ctx, `
		INSERT INTO revoked_tokens (jti, expires_at, created_at)
		VALUES ($1, $2, now())
		ON CONFLICT (jti) DO NOTHING
	`, jti, expiresAt)
}

func (r *PostgresRevocationRepository) Contains(ctx context.Context, jti string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM revoked_tokens WHERE jti = $1)
	`, jti).Scan(&exists)
	if err != nil {
		r.logger.Error("Failed to check revocation entry", zap.String("jti", jti), zap.Error(err))
		return false, err
	}
	return exists, nil
}

// DeleteExpired prunes entries for tokens whose embedded expiry has
// passed; an expired token fails verification on its own.
func (r *PostgresRevocationRepository) DeleteExpired(ctx context.Context) (int64, error) {
	tag, err := r.db.ExecTag(ctx, `DELETE FROM revoked_tokens WHERE expires_at < now()`)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

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

// PostgresCodeRepository implements domain.AuthorizationCodeRepository
// using PostgreSQL
type PostgresCodeRepository struct {
	db     *database.Postgres
	logger *zap.Logger
}

// NewCodeRepository creates a new PostgresCodeRepository
func NewCodeRepository(db *database.Postgres, logger *zap.Logger) domain.AuthorizationCodeRepository {
	return &PostgresCodeRepository{
		db:     db,
		logger: logger,
	}
}

func (r *PostgresCodeRepository) Create(ctx context.Context, code *domain.AuthorizationCode) error {
	scopes, err := json.Marshal(code.Scopes)
	if err != nil {
		return err
	}

	return r.db.Exec(ctx, `
		INSERT INTO authorization_codes
			(code, client_id, user_id, redirect_uri, scopes, nonce,
			 code_challenge, code_challenge_method, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, code.Code, code.ClientID, code.UserID, code.RedirectURI, scopes, code.Nonce,
		code.CodeChallenge, code.CodeChallengeMethod, code.CreatedAt, code.ExpiresAt)
}

// Consume marks an unexpired, unconsumed code consumed in one
// conditional update. The guard on consumed_at makes exactly one of
// several concurrent callers win; everyone else sees invalid_grant.
func (r *PostgresCodeRepository) Consume(ctx context.Context, code string) (*domain.AuthorizationCode, error) {
	authCode := &domain.AuthorizationCode{}
	var scopes []byte

	err := r.db.QueryRow(ctx, `
		UPDATE authorization_codes
		SET consumed_at = now()
		WHERE code = $1 AND consumed_at IS NULL AND expires_at > now()
		RETURNING code, client_id, user_id, redirect_uri, scopes, nonce,
		          code_challenge, code_challenge_method, created_at, expires_at, consumed_at
	`, code).Scan(&authCode.Code, &authCode.ClientID, &authCode.UserID, &authCode.RedirectURI,
		&scopes, &authCode.Nonce, &authCode.CodeChallenge, &authCode.CodeChallengeMethod,
		&authCode.CreatedAt, &authCode.ExpiresAt, &authCode.ConsumedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrInvalidAuthorizationCode
		}
		r.logger.Error("Failed to consume authorization code", zap.Error(err))
		return nil, err
	}

	if err := json.Unmarshal(scopes, &authCode.Scopes); err != nil {
		return nil, err
	}

	return authCode, nil
}

func (r *PostgresCodeRepository) DeleteExpired(ctx context.Context) (int64, error) {
	tag, err := r.db.ExecTag(ctx, `DELETE FROM authorization_codes WHERE expires_at < now()`)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

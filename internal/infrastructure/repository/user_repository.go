package repository

import (
	"context"
	"errors"

	"github.com/arvoria/authd/internal/domain"
	"github.com/arvoria/authd/internal/infrastructure/database"
	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

// PostgresUserRepository implements domain.UserRepository using PostgreSQL
type PostgresUserRepository struct {
	db     *database.Postgres
	logger *zap.Logger
}

// NewUserRepository creates a new PostgresUserRepository
func NewUserRepository(db *database.Postgres, logger *zap.Logger) domain.UserRepository {
	return &PostgresUserRepository{
		db:     db,
		logger: logger,
	}
}

func (r *PostgresUserRepository) FindByID(ctx context.Context, id ulid.ULID) (*domain.User, error) {
	user := &domain.User{}
	var idStr string

	err := r.db.QueryRow(ctx, `
		SELECT id, email, email_verified, name, given_name, family_name, preferred_username, roles
		FROM users WHERE id = $1
	`, id.String()).Scan(&idStr, &user.Email, &user.EmailVerified, &user.Name,
		&user.GivenName, &user.FamilyName, &user.PreferredUsername, &user.Roles)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, pgx.ErrNoRows
		}
		r.logger.Error("Failed to find user", zap.String("user_id", id.String()), zap.Error(err))
		return nil, err
	}

	user.ID, err = domain.ParseULID(idStr)
	if err != nil {
		return nil, err
	}

	return user, nil
}

// GetPermissions aggregates the permissions attached to the user's roles.
func (r *PostgresUserRepository) GetPermissions(ctx context.Context, id ulid.ULID) ([]string, error) {
	rows, err := r.db.Query(ctx, `
		SELECT DISTINCT rp.permission
		FROM users u
		JOIN role_permissions rp ON rp.role = ANY(u.roles)
		WHERE u.id = $1
		ORDER BY rp.permission
	`, id.String())
	if err != nil {
		r.logger.Error("Failed to query permissions", zap.String("user_id", id.String()), zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	var permissions []string
	for rows.Next() {
		var permission string
		if err := rows.Scan(&permission); err != nil {
			return nil, err
		}
		permissions = append(permissions, permission)
	}
	return permissions, rows.Err()
}

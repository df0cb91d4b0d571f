package repository

import (
	"context"
	"encoding/json"

	"github.com/arvoria/authd/internal/domain"
	"github.com/arvoria/authd/internal/infrastructure/database"
	"go.uber.org/zap"
)

// PostgresAuditRepository implements the append-only audit log using
// PostgreSQL. Records are inserted once and never updated or deleted.
type PostgresAuditRepository struct {
	db     *database.Postgres
	logger *zap.Logger
}

// NewAuditRepository creates a new PostgresAuditRepository
func NewAuditRepository(db *database.Postgres, logger *zap.Logger) domain.AuditRepository {
	return &PostgresAuditRepository{
		db:     db,
		logger: logger,
	}
}

func (r *PostgresAuditRepository) Create(ctx context.Context, record *domain.AuditRecord) error {
	metadata, err := json.Marshal(record.Metadata)
	if err != nil {
		return err
	}

	return r.db.Exec(ctx, `
		INSERT INTO audit_records
			(id, actor_type, actor_id, action, resource_type, resource_id,
			 status, metadata, ip_address, user_agent, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, record.ID, record.ActorType, record.ActorID, record.Action,
		record.ResourceType, record.ResourceID, record.Status, metadata,
		record.IPAddress, record.UserAgent, record.CreatedAt)
}

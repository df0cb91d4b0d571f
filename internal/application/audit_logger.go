package application

import (
	"context"
	"time"

	"github.com/arvoria/authd/internal/domain"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

// AuditService writes one immutable record per security decision. A
// failure to persist the record is logged locally and never changes the
// outcome of the request being audited.
type AuditService struct {
	auditRepo  domain.AuditRepository
	clientRepo domain.ClientRepository
	userRepo   domain.UserRepository
	logger     *zap.Logger
}

// NewAuditService creates a new AuditService
func NewAuditService(auditRepo domain.AuditRepository, clientRepo domain.ClientRepository, userRepo domain.UserRepository, logger *zap.Logger) *AuditService {
	return &AuditService{
		auditRepo:  auditRepo,
		clientRepo: clientRepo,
		userRepo:   userRepo,
		logger:     logger,
	}
}

// Log resolves the actor and appends one audit record. Resolution
// prefers the user, then the client, and falls back to SYSTEM when
// neither can be established.
func (s *AuditService) Log(ctx context.Context, event domain.AuditEvent) {
	record := &domain.AuditRecord{
		ID:           ulid.Make().String(),
		ActorType:    domain.ActorSystem,
		Action:       event.Action,
		ResourceType: event.ResourceType,
		ResourceID:   event.ResourceID,
		Status:       event.Status,
		Metadata:     event.Metadata,
		IPAddress:    event.IPAddress,
		UserAgent:    event.UserAgent,
		CreatedAt:    time.Now(),
	}

	if actorID := s.resolveUser(ctx, event.UserID); actorID != "" {
		record.ActorType = domain.ActorUser
		record.ActorID = actorID
	} else if actorID := s.resolveClient(ctx, event.ClientID); actorID != "" {
		record.ActorType = domain.ActorClient
		record.ActorID = actorID
	}

	if err := s.auditRepo.Create(ctx, record); err != nil {
		// Log-and-continue: auditing must not abort the primary flow.
		s.logger.Error("Failed to write audit record",
			zap.String("action", event.Action),
			zap.String("status", string(event.Status)),
			zap.Error(err))
	}
}

func (s *AuditService) resolveUser(ctx context.Context, userID string) string {
	if userID == "" {
		return ""
	}
	id, err := domain.ParseULID(userID)
	if err != nil {
		return ""
	}
	if _, err := s.userRepo.FindByID(ctx, id); err != nil {
		return ""
	}
	return userID
}

func (s *AuditService) resolveClient(ctx context.Context, clientID string) string {
	if clientID == "" {
		return ""
	}
	if _, err := s.clientRepo.FindByID(ctx, clientID); err != nil {
		return ""
	}
	return clientID
}

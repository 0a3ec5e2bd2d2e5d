package service

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/noah-isme/ndc-portal-api/internal/models"
	"github.com/noah-isme/ndc-portal-api/pkg/middleware/requestid"
)

type auditWriter interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// auditTrail writes best-effort audit entries; failures are logged and never surface to callers.
type auditTrail struct {
	writer auditWriter
	logger *zap.Logger
	source string
}

func (a auditTrail) emit(ctx context.Context, actorID, action, resource, resourceID string, values interface{}) {
	a.record(ctx, models.LoginRequest{IP: "system", UserAgent: a.source}, actorID, action, resource, resourceID, values)
}

// record is emit for entries that carry the caller's address and user agent.
func (a auditTrail) record(ctx context.Context, client models.LoginRequest, actorID, action, resource, resourceID string, values interface{}) {
	if a.writer == nil {
		return
	}
	entry := &models.AuditLog{
		Action:    action,
		Resource:  resource,
		IPAddress: client.IP,
		UserAgent: client.UserAgent,
	}
	if actorID != "" {
		entry.UserID = &actorID
	}
	if resourceID != "" {
		entry.ResourceID = &resourceID
	}
	if values != nil {
		payload, err := json.Marshal(values)
		if err == nil {
			entry.NewValues = payload
		}
	}
	if err := a.writer.CreateAuditLog(ctx, entry); err != nil {
		a.logger.Warn("failed to persist audit log",
			zap.String("action", action),
			zap.String("correlation_id", requestid.FromContext(ctx)),
			zap.Error(err),
		)
	}
}

package service

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/noah-isme/formation-lms-api/internal/models"
	"github.com/noah-isme/formation-lms-api/pkg/middleware/requestid"
)

type auditWriter interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// AuditMeta carries request metadata recorded with audit entries.
type AuditMeta struct {
	ActorID   string
	IP        string
	UserAgent string
}

// recordAudit writes an audit row; failures are logged and swallowed.
func recordAudit(ctx context.Context, w auditWriter, logger *zap.Logger, meta AuditMeta, action, resource, resourceID string, values map[string]interface{}) {
	if w == nil {
		return
	}
	entry := &models.AuditLog{
		Action:    action,
		Resource:  resource,
		IPAddress: meta.IP,
		UserAgent: meta.UserAgent,
	}
	if meta.ActorID != "" {
		actor := meta.ActorID
		entry.UserID = &actor
	}
	if resourceID != "" {
		entry.ResourceID = &resourceID
	}
	if reqID := requestid.FromContext(ctx); reqID != "" {
		if values == nil {
			values = map[string]interface{}{}
		}
		values["request_id"] = reqID
	}
	if len(values) > 0 {
		if raw, err := json.Marshal(values); err == nil {
			entry.NewValues = raw
		}
	}
	if err := w.CreateAuditLog(ctx, entry); err != nil {
		logger.Warn("failed to record audit log", zap.String("action", action), zap.Error(err))
	}
}

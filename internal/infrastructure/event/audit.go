package event

import (
	"context"

	"go.uber.org/zap"

	"github.com/ordersync/backend/internal/domain/shared"
)

// AuditHandler logs every published domain event. It subscribes to all event
// types and serves as the pipeline's audit trail when no dedicated consumer
// exists for an event.
type AuditHandler struct {
	logger *zap.Logger
}

// NewAuditHandler creates an audit handler
func NewAuditHandler(logger *zap.Logger) *AuditHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditHandler{logger: logger}
}

// Handle implements shared.EventHandler
func (h *AuditHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	h.logger.Info("domain event",
		zap.String("event_type", event.EventType()),
		zap.String("event_id", event.EventID().String()),
		zap.String("aggregate_type", event.AggregateType()),
		zap.String("aggregate_id", event.AggregateID().String()),
		zap.String("tenant_id", event.TenantID().String()),
		zap.String("correlation_id", event.CorrelationID().String()),
	)
	return nil
}

// EventTypes implements shared.EventHandler. Empty means all events.
func (h *AuditHandler) EventTypes() []string {
	return nil
}

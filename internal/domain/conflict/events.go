package conflict

import (
	"github.com/google/uuid"

	"github.com/ordersync/backend/internal/domain/shared"
)

// Event types emitted by the conflict detector and resolver
const (
	EventTypeConflictDetected             = "conflict.detected"
	EventTypeConflictResolved             = "conflict.resolved"
	EventTypeInventoryAdjustmentRequested = "inventory.adjustment.requested"
)

const aggregateTypeConflict = "ConflictRecord"

// DetectedEvent is published when a discrepancy becomes a conflict record
type DetectedEvent struct {
	shared.BaseDomainEvent
	ConflictID   uuid.UUID `json:"conflict_id"`
	OrderID      uuid.UUID `json:"order_id"`
	ChannelID    uuid.UUID `json:"channel_id"`
	ConflictType string    `json:"conflict_type"`
	Severity     string    `json:"severity"`
}

// NewDetectedEvent creates a conflict.detected event
func NewDetectedEvent(r *Record, correlationID uuid.UUID) *DetectedEvent {
	return &DetectedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeConflictDetected, aggregateTypeConflict, r.ID, r.TenantID, correlationID),
		ConflictID:      r.ID,
		OrderID:         r.OrderID,
		ChannelID:       r.ChannelID,
		ConflictType:    r.Type.String(),
		Severity:        r.Severity.String(),
	}
}

// ResolvedEvent is published when a conflict record reaches Resolved
type ResolvedEvent struct {
	shared.BaseDomainEvent
	ConflictID uuid.UUID `json:"conflict_id"`
	OrderID    uuid.UUID `json:"order_id"`
	Strategy   string    `json:"strategy"`
	Outcome    string    `json:"outcome"`
}

// NewResolvedEvent creates a conflict.resolved event
func NewResolvedEvent(r *Record, correlationID uuid.UUID) *ResolvedEvent {
	strategy := ""
	outcome := ""
	if r.Resolution != nil {
		strategy = string(r.Resolution.Strategy)
		outcome = r.Resolution.Outcome
	}
	return &ResolvedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeConflictResolved, aggregateTypeConflict, r.ID, r.TenantID, correlationID),
		ConflictID:      r.ID,
		OrderID:         r.OrderID,
		Strategy:        strategy,
		Outcome:         outcome,
	}
}

// InventoryAdjustmentEvent asks the inventory collaborator to apply a merged
// allocation after an automatic merge
type InventoryAdjustmentEvent struct {
	shared.BaseDomainEvent
	ConflictID  uuid.UUID         `json:"conflict_id"`
	OrderID     uuid.UUID         `json:"order_id"`
	Allocations map[string]string `json:"allocations"`
}

// NewInventoryAdjustmentEvent creates an inventory.adjustment.requested event.
// Allocations map SKU to the corrected quantity (decimal string).
func NewInventoryAdjustmentEvent(r *Record, correlationID uuid.UUID, allocations map[string]string) *InventoryAdjustmentEvent {
	return &InventoryAdjustmentEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeInventoryAdjustmentRequested, aggregateTypeConflict, r.ID, r.TenantID, correlationID),
		ConflictID:      r.ID,
		OrderID:         r.OrderID,
		Allocations:     allocations,
	}
}

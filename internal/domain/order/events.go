package order

import (
	"github.com/google/uuid"

	"github.com/ordersync/backend/internal/domain/shared"
)

// Event types emitted by the routing and sync pipeline
const (
	EventTypeOrderRouted         = "order.routed"
	EventTypeFulfillmentAssigned = "order.fulfillment.assigned"
	EventTypeSyncCompleted       = "order.sync.completed"
)

const aggregateTypeOrder = "Order"

// RoutedEvent is published when the routing engine has routed an order
type RoutedEvent struct {
	shared.BaseDomainEvent
	OrderID        uuid.UUID `json:"order_id"`
	OrderNumber    string    `json:"order_number"`
	FinalPriority  int       `json:"final_priority"`
	AppliedRuleIDs []string  `json:"applied_rule_ids"`
	Tags           []string  `json:"tags"`
	RoutingScore   float64   `json:"routing_score"`
	HoldForReview  bool      `json:"hold_for_review"`
}

// NewRoutedEvent creates an order.routed event
func NewRoutedEvent(o *Order, correlationID uuid.UUID, appliedRuleIDs []string, score float64, hold bool) *RoutedEvent {
	return &RoutedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeOrderRouted, aggregateTypeOrder, o.ID, o.TenantID, correlationID),
		OrderID:         o.ID,
		OrderNumber:     o.OrderNumber,
		FinalPriority:   o.Priority,
		AppliedRuleIDs:  appliedRuleIDs,
		Tags:            o.Tags(),
		RoutingScore:    score,
		HoldForReview:   hold,
	}
}

// FulfillmentAssignedEvent is published when a fulfillment location is assigned
type FulfillmentAssignedEvent struct {
	shared.BaseDomainEvent
	OrderID      uuid.UUID `json:"order_id"`
	LocationID   uuid.UUID `json:"location_id"`
	LocationName string    `json:"location_name"`
	Score        float64   `json:"score"`
}

// NewFulfillmentAssignedEvent creates an order.fulfillment.assigned event
func NewFulfillmentAssignedEvent(o *Order, correlationID, locationID uuid.UUID, locationName string, score float64) *FulfillmentAssignedEvent {
	return &FulfillmentAssignedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeFulfillmentAssigned, aggregateTypeOrder, o.ID, o.TenantID, correlationID),
		OrderID:         o.ID,
		LocationID:      locationID,
		LocationName:    locationName,
		Score:           score,
	}
}

// SyncCompletedEvent is published after a channel sync run finishes
type SyncCompletedEvent struct {
	shared.BaseDomainEvent
	ChannelID      uuid.UUID `json:"channel_id"`
	OrderID        uuid.UUID `json:"order_id"`
	Synced         int       `json:"synced"`
	Failed         int       `json:"failed"`
	Skipped        int       `json:"skipped"`
	BusinessHours  bool      `json:"business_hours"`
	SeasonalWindow string    `json:"seasonal_window,omitempty"`
}

// NewSyncCompletedEvent creates an order.sync.completed event. The aggregate is
// the channel whose sync run completed; OrderID carries the first order of the
// run for traceability and may be Nil for empty runs.
func NewSyncCompletedEvent(tenantID, channelID, orderID, correlationID uuid.UUID, synced, failed, skipped int, businessHours bool, seasonalWindow string) *SyncCompletedEvent {
	return &SyncCompletedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeSyncCompleted, "Channel", channelID, tenantID, correlationID),
		ChannelID:       channelID,
		OrderID:         orderID,
		Synced:          synced,
		Failed:          failed,
		Skipped:         skipped,
		BusinessHours:   businessHours,
		SeasonalWindow:  seasonalWindow,
	}
}

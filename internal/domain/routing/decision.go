package routing

import (
	"time"

	"github.com/google/uuid"

	"github.com/ordersync/backend/internal/domain/fulfillment"
)

// Decision is the value-object outcome of routing one order. It is the
// one-directional handoff between the routing engine and its collaborators;
// it never holds live references into optimizer state.
type Decision struct {
	OrderID       uuid.UUID
	TenantID      uuid.UUID
	CorrelationID uuid.UUID
	// FinalPriority is the order priority after all matching rules applied
	FinalPriority int
	// Tags is the union of all matching rules' tag actions
	Tags []string
	// AssignedLocationID is the chosen fulfillment location, if any
	AssignedLocationID *uuid.UUID
	HoldForReview      bool
	// AppliedRuleIDs lists every matched rule in evaluation order
	AppliedRuleIDs []uuid.UUID
	// Score ranks routing outcomes for telemetry; it carries no control flow
	Score float64
	// EstimatedProcessing is the projected total processing time
	EstimatedProcessing time.Duration
	// Options are the fulfillment candidates evaluated for the order
	Options []fulfillment.Option
	// Recommended is the best option, nil when none were available
	Recommended *fulfillment.Option
	RoutedAt    time.Time
}

// BulkResult aggregates a bulk routing run. A single order's failure never
// aborts the batch.
type BulkResult struct {
	ProcessedCount int
	FailedCount    int
	Decisions      []Decision
	Failures       []BulkFailure
}

// BulkFailure records one order that could not be routed
type BulkFailure struct {
	OrderID uuid.UUID
	Reason  string
}

// Success reports whether every order routed cleanly
func (r BulkResult) Success() bool {
	return r.FailedCount == 0
}

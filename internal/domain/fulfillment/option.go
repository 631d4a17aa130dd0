package fulfillment

import (
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ErrNoOptionsAvailable is returned when no location can fulfill any part of
// an order. The order stays unrouted for manual intervention.
var ErrNoOptionsAvailable = errors.New("fulfillment: no fulfillment options available")

// Availability is the item-coverage level of a location for one order
type Availability string

const (
	AvailabilityFull    Availability = "FULL"
	AvailabilityPartial Availability = "PARTIAL"
	AvailabilityNone    Availability = "NONE"
)

// String returns the string representation of Availability
func (a Availability) String() string {
	return string(a)
}

// MissingItem details one SKU a location cannot fully cover
type MissingItem struct {
	SKU       string
	Requested decimal.Decimal
	Available decimal.Decimal
}

// Option is one candidate fulfillment location evaluated for an order.
// Options are ephemeral: computed per request, never persisted.
type Option struct {
	LocationID   uuid.UUID
	LocationName string
	Availability Availability
	MissingItems []MissingItem

	// Cost breakdown, in order currency
	ShippingCost decimal.Decimal
	HandlingCost decimal.Decimal
	TotalCost    decimal.Decimal

	// Time breakdown, in hours
	ProcessingHours float64
	ShippingHours   float64
	TotalHours      float64

	// Score is the derived priority score; lower is better
	Score float64
	// Reasons explains the score in human-readable terms
	Reasons []string
	// CanSplit is always false: multi-location split fulfillment is a known
	// simplification in this version
	CanSplit bool

	SameDayCapable bool
	DistanceTier   DistanceTier
}

// Evaluation is the optimizer output for one order
type Evaluation struct {
	OrderID uuid.UUID
	// Options sorted ascending by score
	Options []Option
	// Recommended is Options[0] when any exist
	Recommended *Option
}

// SelectionMode chooses how batch optimization ranks options per order
type SelectionMode string

const (
	// SelectionModeCost picks the cheapest viable option
	SelectionModeCost SelectionMode = "COST"
	// SelectionModeSpeed picks the fastest viable option
	SelectionModeSpeed SelectionMode = "SPEED"
	// SelectionModeBalanced picks the best-scored option
	SelectionModeBalanced SelectionMode = "BALANCED"
)

// IsValid returns true if the mode is valid
func (m SelectionMode) IsValid() bool {
	switch m {
	case SelectionModeCost, SelectionModeSpeed, SelectionModeBalanced:
		return true
	default:
		return false
	}
}

// LocationUtilization reports assignment load against daily capacity
type LocationUtilization struct {
	LocationID    uuid.UUID
	LocationName  string
	AssignedCount int
	MaxDaily      int
	// Utilization is AssignedCount / MaxDaily, 0 when capacity is unknown
	Utilization float64
}

// BatchEvaluation is the outcome of optimizing a batch of orders
type BatchEvaluation struct {
	Mode           SelectionMode
	ProcessedCount int
	FailedCount    int
	Selections     []BatchSelection
	Utilization    []LocationUtilization
}

// BatchSelection is the chosen option for one order in a batch run
type BatchSelection struct {
	OrderID  uuid.UUID
	Selected *Option
	// Err holds the failure reason when no option was selectable
	Err string
}

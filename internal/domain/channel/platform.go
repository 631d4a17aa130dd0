package channel

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ---------------------------------------------------------------------------
// External order snapshot
// ---------------------------------------------------------------------------

// ExternalOrderStatus is the order status as reported by the platform
type ExternalOrderStatus string

const (
	ExternalStatusPending    ExternalOrderStatus = "PENDING"
	ExternalStatusPaid       ExternalOrderStatus = "PAID"
	ExternalStatusProcessing ExternalOrderStatus = "PROCESSING"
	ExternalStatusShipped    ExternalOrderStatus = "SHIPPED"
	ExternalStatusDelivered  ExternalOrderStatus = "DELIVERED"
	ExternalStatusCancelled  ExternalOrderStatus = "CANCELLED"
)

// IsValid returns true if the status is valid
func (s ExternalOrderStatus) IsValid() bool {
	switch s {
	case ExternalStatusPending, ExternalStatusPaid, ExternalStatusProcessing,
		ExternalStatusShipped, ExternalStatusDelivered, ExternalStatusCancelled:
		return true
	default:
		return false
	}
}

// String returns the string representation of ExternalOrderStatus
func (s ExternalOrderStatus) String() string {
	return string(s)
}

// Rank orders statuses by fulfillment progress. A higher rank means the order
// is further along its lifecycle; used to decide whether the platform view is
// more advanced than the local one.
func (s ExternalOrderStatus) Rank() int {
	switch s {
	case ExternalStatusPending:
		return 0
	case ExternalStatusPaid:
		return 1
	case ExternalStatusProcessing:
		return 2
	case ExternalStatusShipped:
		return 3
	case ExternalStatusDelivered:
		return 4
	case ExternalStatusCancelled:
		return 5
	default:
		return -1
	}
}

// ExternalItemSnapshot is one line item as the platform sees it
type ExternalItemSnapshot struct {
	SKU      string
	Name     string
	Quantity decimal.Decimal
}

// ExternalOrderSnapshot is the platform's current view of one order
type ExternalOrderSnapshot struct {
	ExternalOrderID string
	PlatformCode    PlatformCode
	Status          ExternalOrderStatus
	PaymentStatus   string
	TotalAmount     decimal.Decimal
	Currency        string
	Courier         string
	TrackingNumber  string
	ShippingCity    string
	Items           []ExternalItemSnapshot
	UpdatedAt       time.Time
}

// ---------------------------------------------------------------------------
// Sync request/result DTOs
// ---------------------------------------------------------------------------

// SyncOptions tunes one SyncOrderStatus call
type SyncOptions struct {
	// IncludeItems requests item-level detail in the snapshots
	IncludeItems bool
	// Since limits the sync to orders updated after this time (zero = all)
	Since time.Time
}

// OrderOutcomeState is the per-order result of a sync call
type OrderOutcomeState string

const (
	OrderOutcomeSynced  OrderOutcomeState = "SYNCED"
	OrderOutcomeFailed  OrderOutcomeState = "FAILED"
	OrderOutcomeSkipped OrderOutcomeState = "SKIPPED"
)

// OrderOutcome reports the result for one order within a sync call.
// Outcomes are reported in submission order.
type OrderOutcome struct {
	OrderID  uuid.UUID
	State    OrderOutcomeState
	Reason   string
	Snapshot *ExternalOrderSnapshot
}

// SyncSummary aggregates per-order outcomes
type SyncSummary struct {
	Total   int
	Synced  int
	Failed  int
	Skipped int
}

// BusinessContext records the calendar conditions under which a sync ran
type BusinessContext struct {
	BusinessHours  bool
	SeasonalWindow string
	SeasonalFactor float64
}

// SyncResult is the outcome of one platform sync call
type SyncResult struct {
	Summary         SyncSummary
	PerOrder        []OrderOutcome
	BusinessContext BusinessContext
	Duration        time.Duration
}

// ---------------------------------------------------------------------------
// MarketplacePlatform port
// ---------------------------------------------------------------------------

// MarketplacePlatform is the port every marketplace adapter must satisfy.
// It is defined in the domain layer; concrete implementations live in the
// infrastructure layer and are selected once at channel-configuration time.
// Writes must be idempotent: the orchestrator provides at-least-once delivery.
type MarketplacePlatform interface {
	// PlatformCode returns the platform this adapter handles
	PlatformCode() PlatformCode

	// SyncOrderStatus fetches the platform's current view for the given orders
	SyncOrderStatus(ctx context.Context, tenantID, channelID uuid.UUID, orderIDs []uuid.UUID, opts SyncOptions) (*SyncResult, error)

	// GetOrderDetails retrieves a single order snapshot from the platform
	GetOrderDetails(ctx context.Context, tenantID, channelID uuid.UUID, externalOrderID string) (*ExternalOrderSnapshot, error)

	// UpdateOrderStatus pushes a status change to the platform
	UpdateOrderStatus(ctx context.Context, tenantID, channelID uuid.UUID, orderID uuid.UUID, status ExternalOrderStatus) error
}

// PlatformRegistry provides access to configured marketplace adapters
type PlatformRegistry interface {
	// GetPlatform returns the adapter for the specified code
	GetPlatform(code PlatformCode) (MarketplacePlatform, error)

	// ListPlatforms returns all registered adapters
	ListPlatforms() []MarketplacePlatform
}

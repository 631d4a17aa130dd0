package order

import (
	"context"
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ordersync/backend/internal/domain/shared"
)

// Status represents the lifecycle status of an order
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusConfirmed  Status = "CONFIRMED"
	StatusProcessing Status = "PROCESSING"
	StatusShipped    Status = "SHIPPED"
	StatusDelivered  Status = "DELIVERED"
	StatusCancelled  Status = "CANCELLED"
)

// IsValid checks if the status is a valid order status
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusProcessing, StatusShipped, StatusDelivered, StatusCancelled:
		return true
	}
	return false
}

// String returns the string representation of Status
func (s Status) String() string {
	return string(s)
}

// IsTerminal returns true for statuses that close the order
func (s Status) IsTerminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

// Rank orders statuses by fulfillment progress
func (s Status) Rank() int {
	switch s {
	case StatusPending:
		return 0
	case StatusConfirmed:
		return 1
	case StatusProcessing:
		return 2
	case StatusShipped:
		return 3
	case StatusDelivered:
		return 4
	case StatusCancelled:
		return 5
	default:
		return -1
	}
}

// PaymentStatus is the payment sub-status of an order
type PaymentStatus string

const (
	PaymentStatusUnpaid   PaymentStatus = "UNPAID"
	PaymentStatusPending  PaymentStatus = "PENDING"
	PaymentStatusPaid     PaymentStatus = "PAID"
	PaymentStatusRefunded PaymentStatus = "REFUNDED"
)

// FulfillmentStatus is the fulfillment sub-status of an order
type FulfillmentStatus string

const (
	FulfillmentStatusUnassigned FulfillmentStatus = "UNASSIGNED"
	FulfillmentStatusAssigned   FulfillmentStatus = "ASSIGNED"
	FulfillmentStatusPicking    FulfillmentStatus = "PICKING"
	FulfillmentStatusPacked     FulfillmentStatus = "PACKED"
	FulfillmentStatusShipped    FulfillmentStatus = "SHIPPED"
	FulfillmentStatusOnHold     FulfillmentStatus = "ON_HOLD"
)

// Priority bounds: 1 is the highest priority, 5 the lowest
const (
	HighestPriority = 1
	LowestPriority  = 5
)

// Item is one order line
type Item struct {
	SKU      string
	Name     string
	Quantity decimal.Decimal
}

// Order is the local view of a customer order. It is mutated only by the
// routing engine and the sync orchestrator.
type Order struct {
	shared.TenantEntity
	OrderNumber       string
	ChannelID         uuid.UUID
	ExternalOrderID   string
	Status            Status
	PaymentStatus     PaymentStatus
	FulfillmentStatus FulfillmentStatus
	TotalAmount       decimal.Decimal
	Currency          string
	Priority          int
	ShippingCity      string
	Region            string
	Items             []Item
	// FulfillmentLocationID is the single assigned fulfillment location, if any
	FulfillmentLocationID *uuid.UUID
	Courier               string
	TrackingNumber        string
	tags                  map[string]struct{}
}

// New creates a pending order on intake
func New(tenantID, channelID uuid.UUID, orderNumber, externalOrderID string, totalAmount decimal.Decimal, items []Item) (*Order, error) {
	if orderNumber == "" {
		return nil, shared.NewDomainError("INVALID_ORDER_NUMBER", "Order number cannot be empty")
	}
	if channelID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_CHANNEL", "Channel ID cannot be empty")
	}
	if totalAmount.IsNegative() {
		return nil, shared.NewDomainError("INVALID_AMOUNT", "Order total cannot be negative")
	}
	if len(items) == 0 {
		return nil, shared.NewDomainError("INVALID_ITEMS", "Order must have at least one item")
	}
	return &Order{
		TenantEntity:      shared.NewTenantEntity(tenantID),
		OrderNumber:       orderNumber,
		ChannelID:         channelID,
		ExternalOrderID:   externalOrderID,
		Status:            StatusPending,
		PaymentStatus:     PaymentStatusUnpaid,
		FulfillmentStatus: FulfillmentStatusUnassigned,
		TotalAmount:       totalAmount,
		Currency:          "IDR",
		Priority:          3,
		Items:             items,
		tags:              make(map[string]struct{}),
	}, nil
}

// SetPriority sets the order priority, clamped to the valid range
func (o *Order) SetPriority(p int) {
	if p < HighestPriority {
		p = HighestPriority
	}
	if p > LowestPriority {
		p = LowestPriority
	}
	o.Priority = p
	o.Touch()
}

// AddTags merges tags into the order's tag set
func (o *Order) AddTags(tags ...string) {
	if o.tags == nil {
		o.tags = make(map[string]struct{})
	}
	for _, t := range tags {
		if t != "" {
			o.tags[t] = struct{}{}
		}
	}
	o.Touch()
}

// Tags returns the tag set in sorted order
func (o *Order) Tags() []string {
	out := make([]string, 0, len(o.tags))
	for t := range o.tags {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// HasTag reports whether the order carries the tag
func (o *Order) HasTag(tag string) bool {
	_, ok := o.tags[tag]
	return ok
}

// SetTags replaces the tag set. Used when rehydrating from persistence.
func (o *Order) SetTags(tags []string) {
	o.tags = make(map[string]struct{}, len(tags))
	for _, t := range tags {
		if t != "" {
			o.tags[t] = struct{}{}
		}
	}
}

// AssignFulfillmentLocation assigns the single fulfillment location.
// Re-assignment replaces the previous location; an order never holds two.
func (o *Order) AssignFulfillmentLocation(locationID uuid.UUID) error {
	if locationID == uuid.Nil {
		return shared.NewDomainError("INVALID_LOCATION", "Fulfillment location ID cannot be empty")
	}
	if o.Status.IsTerminal() {
		return shared.ErrInvalidState
	}
	o.FulfillmentLocationID = &locationID
	o.FulfillmentStatus = FulfillmentStatusAssigned
	o.Touch()
	return nil
}

// ClearFulfillmentLocation removes the assignment, e.g. before re-routing
func (o *Order) ClearFulfillmentLocation() {
	o.FulfillmentLocationID = nil
	o.FulfillmentStatus = FulfillmentStatusUnassigned
	o.Touch()
}

// HoldForReview places the order's fulfillment on manual hold
func (o *Order) HoldForReview() {
	o.FulfillmentStatus = FulfillmentStatusOnHold
	o.Touch()
}

// ApplyStatus applies a status change, e.g. from a conflict resolution
func (o *Order) ApplyStatus(s Status) error {
	if !s.IsValid() {
		return shared.ErrInvalidInput
	}
	o.Status = s
	o.Touch()
	return nil
}

// ApplyPaymentStatus applies a payment sub-status change
func (o *Order) ApplyPaymentStatus(s PaymentStatus) {
	o.PaymentStatus = s
	o.Touch()
}

// SetShipment records courier information pushed back from a platform
func (o *Order) SetShipment(courier, trackingNumber string) {
	o.Courier = courier
	o.TrackingNumber = trackingNumber
	o.Touch()
}

// ItemQuantity returns the local quantity for a SKU, zero if absent
func (o *Order) ItemQuantity(sku string) decimal.Decimal {
	for _, it := range o.Items {
		if it.SKU == sku {
			return it.Quantity
		}
	}
	return decimal.Zero
}

// Repository defines the persistence port for orders
type Repository interface {
	FindByID(ctx context.Context, tenantID, orderID uuid.UUID) (*Order, error)
	FindByIDs(ctx context.Context, tenantID uuid.UUID, orderIDs []uuid.UUID) ([]*Order, error)
	// FindOpenByChannel returns the channel's orders that have not reached a
	// terminal status, oldest first
	FindOpenByChannel(ctx context.Context, tenantID, channelID uuid.UUID) ([]*Order, error)
	// FindUnassignedByTenant returns open orders awaiting a fulfillment
	// location, oldest first
	FindUnassignedByTenant(ctx context.Context, tenantID uuid.UUID, limit int) ([]*Order, error)
	Save(ctx context.Context, o *Order) error
}

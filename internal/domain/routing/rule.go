package routing

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ordersync/backend/internal/domain/order"
	"github.com/ordersync/backend/internal/domain/shared"
)

// ValueRange is an inclusive monetary range; a nil bound is open
type ValueRange struct {
	Min *decimal.Decimal
	Max *decimal.Decimal
}

// Contains reports whether the amount falls within the range
func (r ValueRange) Contains(amount decimal.Decimal) bool {
	if r.Min != nil && amount.LessThan(*r.Min) {
		return false
	}
	if r.Max != nil && amount.GreaterThan(*r.Max) {
		return false
	}
	return true
}

// HourRange is a half-open [From, To) hour-of-day window in the rule's locale.
// From == To means the whole day; From > To wraps past midnight.
type HourRange struct {
	From int
	To   int
}

// Contains reports whether the hour falls within the window
func (h HourRange) Contains(hour int) bool {
	if h.From == h.To {
		return true
	}
	if h.From < h.To {
		return hour >= h.From && hour < h.To
	}
	return hour >= h.From || hour < h.To
}

// Conditions is the predicate side of a routing rule. Empty fields match
// everything; set fields must all match.
type Conditions struct {
	OrderValue     *ValueRange
	ShippingCities []string
	ChannelIDs     []uuid.UUID
	DaysOfWeek     []time.Weekday
	Hours          *HourRange
}

// Actions is the action side of a routing rule
type Actions struct {
	AssignLocationID *uuid.UUID
	SetPriority      *int
	AddTags          []string
	HoldForReview    bool
}

// Rule is a priority-ordered routing rule. Rules are evaluated in ascending
// Priority order; every matching rule applies cumulatively. Tags accumulate as
// a set union, scalar actions are last-writer-wins.
type Rule struct {
	shared.TenantEntity
	Name       string
	Priority   int
	Active     bool
	Conditions Conditions
	Actions    Actions
}

// NewRule creates a routing rule
func NewRule(tenantID uuid.UUID, name string, priority int, conditions Conditions, actions Actions) (*Rule, error) {
	if name == "" {
		return nil, shared.NewDomainError("INVALID_RULE_NAME", "Rule name cannot be empty")
	}
	if priority < 0 {
		return nil, shared.NewDomainError("INVALID_RULE_PRIORITY", "Rule priority cannot be negative")
	}
	if p := actions.SetPriority; p != nil && (*p < order.HighestPriority || *p > order.LowestPriority) {
		return nil, shared.NewDomainError("INVALID_RULE_ACTION", "Rule priority action out of range")
	}
	return &Rule{
		TenantEntity: shared.NewTenantEntity(tenantID),
		Name:         name,
		Priority:     priority,
		Active:       true,
		Conditions:   conditions,
		Actions:      actions,
	}, nil
}

// Matches evaluates the rule predicate against an order. Time-window
// conditions are evaluated against now, not the order's creation time.
func (r *Rule) Matches(o *order.Order, now time.Time) bool {
	c := r.Conditions
	if c.OrderValue != nil && !c.OrderValue.Contains(o.TotalAmount) {
		return false
	}
	if len(c.ShippingCities) > 0 && !containsFold(c.ShippingCities, o.ShippingCity) {
		return false
	}
	if len(c.ChannelIDs) > 0 && !containsUUID(c.ChannelIDs, o.ChannelID) {
		return false
	}
	if len(c.DaysOfWeek) > 0 && !containsWeekday(c.DaysOfWeek, now.Weekday()) {
		return false
	}
	if c.Hours != nil && !c.Hours.Contains(now.Hour()) {
		return false
	}
	return true
}

func containsFold(haystack []string, needle string) bool {
	for _, s := range haystack {
		if strings.EqualFold(s, needle) {
			return true
		}
	}
	return false
}

func containsUUID(haystack []uuid.UUID, needle uuid.UUID) bool {
	for _, id := range haystack {
		if id == needle {
			return true
		}
	}
	return false
}

func containsWeekday(haystack []time.Weekday, needle time.Weekday) bool {
	for _, d := range haystack {
		if d == needle {
			return true
		}
	}
	return false
}

// Repository defines the persistence port for routing rules
type Repository interface {
	// FindActiveByTenant returns active rules ordered by ascending priority
	FindActiveByTenant(ctx context.Context, tenantID uuid.UUID) ([]Rule, error)
	Save(ctx context.Context, rule *Rule) error
	Delete(ctx context.Context, tenantID, ruleID uuid.UUID) error
}

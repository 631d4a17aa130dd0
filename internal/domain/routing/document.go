package routing

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ordersync/backend/internal/domain/shared"
)

// RuleDocument is the externally authored routing rule configuration format.
// Documents are validated before they are converted into domain rules;
// malformed documents fail fast and are never retried.
type RuleDocument struct {
	ID         string             `json:"id" validate:"required"`
	Name       string             `json:"name" validate:"required"`
	Priority   int                `json:"priority" validate:"gte=0"`
	Conditions DocumentConditions `json:"conditions"`
	Actions    DocumentActions    `json:"actions"`
}

// DocumentConditions mirrors the conditions block of the configuration format
type DocumentConditions struct {
	OrderValueRange *DocumentValueRange `json:"orderValueRange,omitempty"`
	ShippingCities  []string            `json:"shippingCities,omitempty" validate:"omitempty,dive,min=1"`
	ChannelIDs      []string            `json:"channelIds,omitempty" validate:"omitempty,dive,uuid4"`
	DaysOfWeek      []int               `json:"dayOfWeek,omitempty" validate:"omitempty,dive,gte=0,lte=6"`
	HourRange       *DocumentHourRange  `json:"hourRange,omitempty"`
}

// DocumentValueRange is an inclusive monetary range in the document format
type DocumentValueRange struct {
	Min *float64 `json:"min,omitempty" validate:"omitempty,gte=0"`
	Max *float64 `json:"max,omitempty" validate:"omitempty,gte=0"`
}

// DocumentHourRange is an hour-of-day window in the document format
type DocumentHourRange struct {
	From int `json:"from" validate:"gte=0,lte=23"`
	To   int `json:"to" validate:"gte=0,lte=24"`
}

// DocumentActions mirrors the actions block of the configuration format
type DocumentActions struct {
	AssignToLocation *string  `json:"assignToLocation,omitempty" validate:"omitempty,uuid4"`
	SetPriority      *int     `json:"setPriority,omitempty" validate:"omitempty,gte=1,lte=5"`
	AddTags          []string `json:"addTags,omitempty" validate:"omitempty,dive,min=1"`
	HoldForReview    bool     `json:"holdForReview,omitempty"`
}

var documentValidator = validator.New()

// Validate validates the document against the configuration format
func (d *RuleDocument) Validate() error {
	if err := documentValidator.Struct(d); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}
	if vr := d.Conditions.OrderValueRange; vr != nil && vr.Min != nil && vr.Max != nil && *vr.Min > *vr.Max {
		return shared.NewDomainError("INVALID_VALUE_RANGE", "Order value range min exceeds max")
	}
	return nil
}

// ToRule converts a validated document into a domain rule
func (d *RuleDocument) ToRule(tenantID uuid.UUID) (*Rule, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}

	var conditions Conditions
	if vr := d.Conditions.OrderValueRange; vr != nil {
		r := &ValueRange{}
		if vr.Min != nil {
			min := decimal.NewFromFloat(*vr.Min)
			r.Min = &min
		}
		if vr.Max != nil {
			max := decimal.NewFromFloat(*vr.Max)
			r.Max = &max
		}
		conditions.OrderValue = r
	}
	conditions.ShippingCities = d.Conditions.ShippingCities
	for _, raw := range d.Conditions.ChannelIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: channel id %q", shared.ErrInvalidInput, raw)
		}
		conditions.ChannelIDs = append(conditions.ChannelIDs, id)
	}
	for _, day := range d.Conditions.DaysOfWeek {
		conditions.DaysOfWeek = append(conditions.DaysOfWeek, time.Weekday(day))
	}
	if hr := d.Conditions.HourRange; hr != nil {
		conditions.Hours = &HourRange{From: hr.From, To: hr.To % 24}
	}

	actions := Actions{
		SetPriority:   d.Actions.SetPriority,
		AddTags:       d.Actions.AddTags,
		HoldForReview: d.Actions.HoldForReview,
	}
	if d.Actions.AssignToLocation != nil {
		id, err := uuid.Parse(*d.Actions.AssignToLocation)
		if err != nil {
			return nil, fmt.Errorf("%w: location id %q", shared.ErrInvalidInput, *d.Actions.AssignToLocation)
		}
		actions.AssignLocationID = &id
	}

	return NewRule(tenantID, d.Name, d.Priority, conditions, actions)
}

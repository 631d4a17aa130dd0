package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ordersync/backend/internal/domain/routing"
)

// RoutingRuleModel is the persistence model for the routing Rule entity.
// Conditions and actions are stored as JSONB documents.
type RoutingRuleModel struct {
	TenantModel
	Name           string `gorm:"type:varchar(255);not null"`
	Priority       int    `gorm:"not null;index:idx_routing_rules_tenant_priority,priority:2"`
	Active         bool   `gorm:"not null;default:true"`
	ConditionsJSON string `gorm:"type:jsonb;column:conditions"`
	ActionsJSON    string `gorm:"type:jsonb;column:actions"`
}

// TableName returns the table name for GORM
func (RoutingRuleModel) TableName() string {
	return "routing_rules"
}

type ruleConditionsDoc struct {
	ValueMin       *decimal.Decimal `json:"value_min,omitempty"`
	ValueMax       *decimal.Decimal `json:"value_max,omitempty"`
	ShippingCities []string         `json:"shipping_cities,omitempty"`
	ChannelIDs     []uuid.UUID      `json:"channel_ids,omitempty"`
	DaysOfWeek     []int            `json:"days_of_week,omitempty"`
	HourFrom       *int             `json:"hour_from,omitempty"`
	HourTo         *int             `json:"hour_to,omitempty"`
}

type ruleActionsDoc struct {
	AssignLocationID *uuid.UUID `json:"assign_location_id,omitempty"`
	SetPriority      *int       `json:"set_priority,omitempty"`
	AddTags          []string   `json:"add_tags,omitempty"`
	HoldForReview    bool       `json:"hold_for_review,omitempty"`
}

// ToDomain converts the persistence model to a domain Rule entity
func (m *RoutingRuleModel) ToDomain() *routing.Rule {
	rule := &routing.Rule{
		TenantEntity: m.ToTenantEntity(),
		Name:         m.Name,
		Priority:     m.Priority,
		Active:       m.Active,
	}

	if m.ConditionsJSON != "" {
		var doc ruleConditionsDoc
		if err := json.Unmarshal([]byte(m.ConditionsJSON), &doc); err == nil {
			if doc.ValueMin != nil || doc.ValueMax != nil {
				rule.Conditions.OrderValue = &routing.ValueRange{Min: doc.ValueMin, Max: doc.ValueMax}
			}
			rule.Conditions.ShippingCities = doc.ShippingCities
			rule.Conditions.ChannelIDs = doc.ChannelIDs
			for _, d := range doc.DaysOfWeek {
				rule.Conditions.DaysOfWeek = append(rule.Conditions.DaysOfWeek, time.Weekday(d))
			}
			if doc.HourFrom != nil && doc.HourTo != nil {
				rule.Conditions.Hours = &routing.HourRange{From: *doc.HourFrom, To: *doc.HourTo}
			}
		}
	}
	if m.ActionsJSON != "" {
		var doc ruleActionsDoc
		if err := json.Unmarshal([]byte(m.ActionsJSON), &doc); err == nil {
			rule.Actions = routing.Actions{
				AssignLocationID: doc.AssignLocationID,
				SetPriority:      doc.SetPriority,
				AddTags:          doc.AddTags,
				HoldForReview:    doc.HoldForReview,
			}
		}
	}

	return rule
}

// FromDomain populates the persistence model from a domain Rule entity
func (m *RoutingRuleModel) FromDomain(rule *routing.Rule) {
	m.FromTenantEntity(rule.TenantEntity)
	m.Name = rule.Name
	m.Priority = rule.Priority
	m.Active = rule.Active

	condDoc := ruleConditionsDoc{
		ShippingCities: rule.Conditions.ShippingCities,
		ChannelIDs:     rule.Conditions.ChannelIDs,
	}
	if vr := rule.Conditions.OrderValue; vr != nil {
		condDoc.ValueMin = vr.Min
		condDoc.ValueMax = vr.Max
	}
	for _, d := range rule.Conditions.DaysOfWeek {
		condDoc.DaysOfWeek = append(condDoc.DaysOfWeek, int(d))
	}
	if hr := rule.Conditions.Hours; hr != nil {
		from, to := hr.From, hr.To
		condDoc.HourFrom = &from
		condDoc.HourTo = &to
	}
	if data, err := json.Marshal(condDoc); err == nil {
		m.ConditionsJSON = string(data)
	}

	actDoc := ruleActionsDoc{
		AssignLocationID: rule.Actions.AssignLocationID,
		SetPriority:      rule.Actions.SetPriority,
		AddTags:          rule.Actions.AddTags,
		HoldForReview:    rule.Actions.HoldForReview,
	}
	if data, err := json.Marshal(actDoc); err == nil {
		m.ActionsJSON = string(data)
	}
}

// RoutingRuleModelFromDomain creates a new persistence model from a domain Rule
func RoutingRuleModelFromDomain(rule *routing.Rule) *RoutingRuleModel {
	m := &RoutingRuleModel{}
	m.FromDomain(rule)
	return m
}

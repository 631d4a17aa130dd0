package shared

import (
	"time"

	"github.com/google/uuid"
)

// DomainEvent represents an event that occurred in the domain
type DomainEvent interface {
	EventID() uuid.UUID
	EventType() string
	OccurredAt() time.Time
	AggregateID() uuid.UUID
	AggregateType() string
	TenantID() uuid.UUID
	// CorrelationID links every event produced by one logical operation
	// (a routing run, a sync run, a conflict resolution pass)
	CorrelationID() uuid.UUID
}

// BaseDomainEvent provides common fields for all domain events
type BaseDomainEvent struct {
	ID                 uuid.UUID `json:"id"`
	Type               string    `json:"type"`
	Timestamp          time.Time `json:"timestamp"`
	AggID              uuid.UUID `json:"aggregate_id"`
	AggType            string    `json:"aggregate_type"`
	TenantIDValue      uuid.UUID `json:"tenant_id"`
	CorrelationIDValue uuid.UUID `json:"correlation_id"`
}

// EventID returns the unique event identifier
func (e *BaseDomainEvent) EventID() uuid.UUID {
	return e.ID
}

// EventType returns the type of the event
func (e *BaseDomainEvent) EventType() string {
	return e.Type
}

// OccurredAt returns when the event occurred
func (e *BaseDomainEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// AggregateID returns the ID of the aggregate that produced this event
func (e *BaseDomainEvent) AggregateID() uuid.UUID {
	return e.AggID
}

// AggregateType returns the type of the aggregate
func (e *BaseDomainEvent) AggregateType() string {
	return e.AggType
}

// TenantID returns the tenant ID
func (e *BaseDomainEvent) TenantID() uuid.UUID {
	return e.TenantIDValue
}

// CorrelationID returns the correlation identifier
func (e *BaseDomainEvent) CorrelationID() uuid.UUID {
	return e.CorrelationIDValue
}

// NewBaseDomainEvent creates a new base domain event
func NewBaseDomainEvent(eventType, aggType string, aggID, tenantID, correlationID uuid.UUID) BaseDomainEvent {
	if correlationID == uuid.Nil {
		correlationID = uuid.New()
	}
	return BaseDomainEvent{
		ID:                 uuid.New(),
		Type:               eventType,
		Timestamp:          time.Now(),
		AggID:              aggID,
		AggType:            aggType,
		TenantIDValue:      tenantID,
		CorrelationIDValue: correlationID,
	}
}

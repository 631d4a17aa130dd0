package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/ordersync/backend/internal/infrastructure/resilience"
)

// DeadLetterModel is the persistence model for dead-lettered sync operations.
// Rows stay until the out-of-band re-drive job consumes them.
type DeadLetterModel struct {
	ID                uuid.UUID `gorm:"type:uuid;primary_key"`
	TenantID          uuid.UUID `gorm:"type:uuid;not null;index"`
	ChannelID         uuid.UUID `gorm:"type:uuid;not null;index"`
	OriginalQueue     string    `gorm:"type:varchar(100);not null"`
	OriginalOperation string    `gorm:"type:varchar(100);not null"`
	PayloadJSON       string    `gorm:"type:jsonb;column:payload"`
	FailedAt          time.Time `gorm:"not null;index"`
	Error             string    `gorm:"type:text"`
	RetryCount        int       `gorm:"not null;default:0"`
	CalendarSensitive bool      `gorm:"not null;default:false"`
	BusinessHoursOnly bool      `gorm:"not null;default:false"`
	Replayed          bool      `gorm:"not null;default:false;index"`
}

// TableName returns the table name for GORM
func (DeadLetterModel) TableName() string {
	return "dead_letters"
}

// ToDomain converts the persistence model to a DeadLetterEntry
func (m *DeadLetterModel) ToDomain() *resilience.DeadLetterEntry {
	entry := &resilience.DeadLetterEntry{
		ID:                m.ID,
		TenantID:          m.TenantID,
		ChannelID:         m.ChannelID,
		OriginalQueue:     m.OriginalQueue,
		OriginalOperation: m.OriginalOperation,
		FailedAt:          m.FailedAt,
		Error:             m.Error,
		RetryCount:        m.RetryCount,
		CalendarSensitive: m.CalendarSensitive,
		BusinessHoursOnly: m.BusinessHoursOnly,
	}
	if m.PayloadJSON != "" {
		_ = json.Unmarshal([]byte(m.PayloadJSON), &entry.Payload)
	}
	return entry
}

// FromDomain populates the persistence model from a DeadLetterEntry
func (m *DeadLetterModel) FromDomain(e *resilience.DeadLetterEntry) {
	m.ID = e.ID
	m.TenantID = e.TenantID
	m.ChannelID = e.ChannelID
	m.OriginalQueue = e.OriginalQueue
	m.OriginalOperation = e.OriginalOperation
	m.FailedAt = e.FailedAt
	m.Error = e.Error
	m.RetryCount = e.RetryCount
	m.CalendarSensitive = e.CalendarSensitive
	m.BusinessHoursOnly = e.BusinessHoursOnly
	if data, err := json.Marshal(e.Payload); err == nil {
		m.PayloadJSON = string(data)
	}
}

package models

import (
	"time"

	"github.com/google/uuid"
)

// SyncRunModel records the outcome of one sync pass over one channel.
// Rows are written once at the end of the pass and never updated.
type SyncRunModel struct {
	ID             uuid.UUID `gorm:"type:uuid;primary_key"`
	TenantID       uuid.UUID `gorm:"type:uuid;not null;index:idx_sync_runs_tenant,priority:1"`
	ChannelID      uuid.UUID `gorm:"type:uuid;not null;index"`
	CorrelationID  uuid.UUID `gorm:"type:uuid;not null;index"`
	Total          int       `gorm:"not null"`
	Synced         int       `gorm:"not null"`
	Conflicted     int       `gorm:"not null"`
	Failed         int       `gorm:"not null"`
	Skipped        int       `gorm:"not null"`
	SeasonalFactor float64   `gorm:"not null;default:1"`
	Deferred       bool      `gorm:"not null;default:false"`
	StartedAt      time.Time `gorm:"not null;index"`
	FinishedAt     time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (SyncRunModel) TableName() string {
	return "sync_runs"
}

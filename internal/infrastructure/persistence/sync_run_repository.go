package persistence

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ordersync/backend/internal/infrastructure/persistence/models"
)

// SyncRunRecord is the write model for one completed sync pass
type SyncRunRecord struct {
	TenantID       uuid.UUID
	ChannelID      uuid.UUID
	CorrelationID  uuid.UUID
	Total          int
	Synced         int
	Conflicted     int
	Failed         int
	Skipped        int
	SeasonalFactor float64
	Deferred       bool
	StartedAt      time.Time
	FinishedAt     time.Time
}

// GormSyncRunRepository persists sync pass outcomes for reporting
type GormSyncRunRepository struct {
	db *gorm.DB
}

// NewGormSyncRunRepository creates a new GormSyncRunRepository
func NewGormSyncRunRepository(db *gorm.DB) *GormSyncRunRepository {
	return &GormSyncRunRepository{db: db}
}

// Record writes one sync pass outcome
func (r *GormSyncRunRepository) Record(ctx context.Context, run *SyncRunRecord) error {
	m := &models.SyncRunModel{
		ID:             uuid.New(),
		TenantID:       run.TenantID,
		ChannelID:      run.ChannelID,
		CorrelationID:  run.CorrelationID,
		Total:          run.Total,
		Synced:         run.Synced,
		Conflicted:     run.Conflicted,
		Failed:         run.Failed,
		Skipped:        run.Skipped,
		SeasonalFactor: run.SeasonalFactor,
		Deferred:       run.Deferred,
		StartedAt:      run.StartedAt,
		FinishedAt:     run.FinishedAt,
	}
	return r.db.WithContext(ctx).Create(m).Error
}

// FindRecentByChannel returns the most recent sync passes for a channel
func (r *GormSyncRunRepository) FindRecentByChannel(ctx context.Context, tenantID, channelID uuid.UUID, limit int) ([]models.SyncRunModel, error) {
	if limit <= 0 {
		limit = 20
	}
	var ms []models.SyncRunModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND channel_id = ?", tenantID, channelID).
		Order("started_at DESC").
		Limit(limit).
		Find(&ms).Error; err != nil {
		return nil, err
	}
	return ms, nil
}

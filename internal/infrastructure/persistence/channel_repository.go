package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ordersync/backend/internal/domain/channel"
	"github.com/ordersync/backend/internal/infrastructure/persistence/models"
)

// GormChannelRepository implements channel.ChannelRepository using GORM
type GormChannelRepository struct {
	db *gorm.DB
}

// NewGormChannelRepository creates a new GormChannelRepository
func NewGormChannelRepository(db *gorm.DB) *GormChannelRepository {
	return &GormChannelRepository{db: db}
}

// FindByID finds a channel by ID within a tenant
func (r *GormChannelRepository) FindByID(ctx context.Context, tenantID, channelID uuid.UUID) (*channel.Channel, error) {
	var m models.ChannelModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, channelID).
		First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, channel.ErrChannelNotFound
		}
		return nil, err
	}
	return m.ToDomain(), nil
}

// FindActiveByTenant returns all active channels for a tenant
func (r *GormChannelRepository) FindActiveByTenant(ctx context.Context, tenantID uuid.UUID) ([]channel.Channel, error) {
	var ms []models.ChannelModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND active = ?", tenantID, true).
		Order("created_at ASC").
		Find(&ms).Error; err != nil {
		return nil, err
	}
	channels := make([]channel.Channel, 0, len(ms))
	for i := range ms {
		channels = append(channels, *ms[i].ToDomain())
	}
	return channels, nil
}

// FindActiveTenantIDs returns the distinct tenants that have at least one
// active channel. Used by the sync daemon to enumerate its work.
func (r *GormChannelRepository) FindActiveTenantIDs(ctx context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	if err := r.db.WithContext(ctx).
		Model(&models.ChannelModel{}).
		Where("active = ?", true).
		Distinct("tenant_id").
		Order("tenant_id ASC").
		Pluck("tenant_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

// Save creates or updates a channel
func (r *GormChannelRepository) Save(ctx context.Context, ch *channel.Channel) error {
	m := models.ChannelModelFromDomain(ch)
	return r.db.WithContext(ctx).Save(m).Error
}

// Ensure GormChannelRepository implements the repository port
var _ channel.ChannelRepository = (*GormChannelRepository)(nil)

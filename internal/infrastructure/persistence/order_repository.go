package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ordersync/backend/internal/domain/order"
	"github.com/ordersync/backend/internal/domain/shared"
	"github.com/ordersync/backend/internal/infrastructure/persistence/models"
)

// GormOrderRepository implements order.Repository using GORM
type GormOrderRepository struct {
	db *gorm.DB
}

// NewGormOrderRepository creates a new GormOrderRepository
func NewGormOrderRepository(db *gorm.DB) *GormOrderRepository {
	return &GormOrderRepository{db: db}
}

// FindByID finds an order by ID within a tenant
func (r *GormOrderRepository) FindByID(ctx context.Context, tenantID, orderID uuid.UUID) (*order.Order, error) {
	var m models.OrderModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, orderID).
		First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return m.ToDomain(), nil
}

// FindByIDs loads a batch of orders for a tenant. Missing IDs are silently
// absent from the result; callers decide how to treat them.
func (r *GormOrderRepository) FindByIDs(ctx context.Context, tenantID uuid.UUID, orderIDs []uuid.UUID) ([]*order.Order, error) {
	if len(orderIDs) == 0 {
		return nil, nil
	}
	var ms []models.OrderModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id IN ?", tenantID, orderIDs).
		Find(&ms).Error; err != nil {
		return nil, err
	}
	orders := make([]*order.Order, 0, len(ms))
	for i := range ms {
		orders = append(orders, ms[i].ToDomain())
	}
	return orders, nil
}

// FindOpenByChannel returns the channel's orders that have not reached a
// terminal status, oldest first
func (r *GormOrderRepository) FindOpenByChannel(ctx context.Context, tenantID, channelID uuid.UUID) ([]*order.Order, error) {
	var ms []models.OrderModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND channel_id = ? AND status NOT IN ?",
			tenantID, channelID,
			[]string{order.StatusDelivered.String(), order.StatusCancelled.String()}).
		Order("created_at ASC").
		Find(&ms).Error; err != nil {
		return nil, err
	}
	orders := make([]*order.Order, 0, len(ms))
	for i := range ms {
		orders = append(orders, ms[i].ToDomain())
	}
	return orders, nil
}

// FindUnassignedByTenant returns open orders awaiting a fulfillment location,
// oldest first
func (r *GormOrderRepository) FindUnassignedByTenant(ctx context.Context, tenantID uuid.UUID, limit int) ([]*order.Order, error) {
	if limit <= 0 {
		limit = 100
	}
	var ms []models.OrderModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND fulfillment_status = ? AND status NOT IN ?",
			tenantID, string(order.FulfillmentStatusUnassigned),
			[]string{order.StatusDelivered.String(), order.StatusCancelled.String()}).
		Order("created_at ASC").
		Limit(limit).
		Find(&ms).Error; err != nil {
		return nil, err
	}
	orders := make([]*order.Order, 0, len(ms))
	for i := range ms {
		orders = append(orders, ms[i].ToDomain())
	}
	return orders, nil
}

// Save creates or updates an order
func (r *GormOrderRepository) Save(ctx context.Context, o *order.Order) error {
	m := models.OrderModelFromDomain(o)
	return r.db.WithContext(ctx).Save(m).Error
}

// Ensure GormOrderRepository implements the repository port
var _ order.Repository = (*GormOrderRepository)(nil)

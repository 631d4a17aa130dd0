package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/ordersync/backend/internal/domain/fulfillment"
	"github.com/ordersync/backend/internal/domain/shared"
	"github.com/ordersync/backend/internal/infrastructure/persistence/models"
)

// GormLocationRepository implements fulfillment.LocationRepository using GORM
type GormLocationRepository struct {
	db *gorm.DB
}

// NewGormLocationRepository creates a new GormLocationRepository
func NewGormLocationRepository(db *gorm.DB) *GormLocationRepository {
	return &GormLocationRepository{db: db}
}

// FindActiveByTenant returns all active fulfillment locations for a tenant
func (r *GormLocationRepository) FindActiveByTenant(ctx context.Context, tenantID uuid.UUID) ([]fulfillment.Location, error) {
	var ms []models.LocationModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND active = ?", tenantID, true).
		Order("created_at ASC").
		Find(&ms).Error; err != nil {
		return nil, err
	}
	locations := make([]fulfillment.Location, 0, len(ms))
	for i := range ms {
		locations = append(locations, *ms[i].ToDomain())
	}
	return locations, nil
}

// FindByID finds a location by ID within a tenant
func (r *GormLocationRepository) FindByID(ctx context.Context, tenantID, locationID uuid.UUID) (*fulfillment.Location, error) {
	var m models.LocationModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, locationID).
		First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return m.ToDomain(), nil
}

// Ensure GormLocationRepository implements the repository port
var _ fulfillment.LocationRepository = (*GormLocationRepository)(nil)

// GormInventoryChecker implements fulfillment.InventoryChecker against the
// stock_levels table
type GormInventoryChecker struct {
	db *gorm.DB
}

// NewGormInventoryChecker creates a new GormInventoryChecker
func NewGormInventoryChecker(db *gorm.DB) *GormInventoryChecker {
	return &GormInventoryChecker{db: db}
}

// CheckAvailability returns the stock position for each requested SKU, in
// request order. SKUs with no stock row report zero availability.
func (c *GormInventoryChecker) CheckAvailability(ctx context.Context, tenantID, locationID uuid.UUID, requests []fulfillment.ItemAvailability) ([]fulfillment.ItemAvailability, error) {
	if len(requests) == 0 {
		return nil, nil
	}
	skus := make([]string, 0, len(requests))
	for _, req := range requests {
		skus = append(skus, req.SKU)
	}

	var rows []models.StockLevelModel
	if err := c.db.WithContext(ctx).
		Where("tenant_id = ? AND location_id = ? AND sku IN ?", tenantID, locationID, skus).
		Find(&rows).Error; err != nil {
		return nil, err
	}

	available := make(map[string]decimal.Decimal, len(rows))
	for _, row := range rows {
		available[row.SKU] = row.Available
	}

	out := make([]fulfillment.ItemAvailability, 0, len(requests))
	for _, req := range requests {
		out = append(out, fulfillment.ItemAvailability{
			SKU:       req.SKU,
			Requested: req.Requested,
			Available: available[req.SKU],
		})
	}
	return out, nil
}

// Ensure GormInventoryChecker implements the checker port
var _ fulfillment.InventoryChecker = (*GormInventoryChecker)(nil)

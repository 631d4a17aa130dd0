package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ordersync/backend/internal/domain/conflict"
	"github.com/ordersync/backend/internal/domain/shared"
	"github.com/ordersync/backend/internal/infrastructure/persistence/models"
)

// GormConflictRepository implements conflict.Repository using GORM
type GormConflictRepository struct {
	db *gorm.DB
}

// NewGormConflictRepository creates a new GormConflictRepository
func NewGormConflictRepository(db *gorm.DB) *GormConflictRepository {
	return &GormConflictRepository{db: db}
}

// FindByID finds a conflict record by ID within a tenant
func (r *GormConflictRepository) FindByID(ctx context.Context, tenantID, recordID uuid.UUID) (*conflict.Record, error) {
	var m models.ConflictRecordModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, recordID).
		First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return m.ToDomain(), nil
}

// FindOpenByOrder returns unresolved conflict records for an order
func (r *GormConflictRepository) FindOpenByOrder(ctx context.Context, tenantID, orderID uuid.UUID) ([]*conflict.Record, error) {
	var ms []models.ConflictRecordModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND order_id = ? AND state <> ?", tenantID, orderID, string(conflict.StateResolved)).
		Order("detected_at ASC").
		Find(&ms).Error; err != nil {
		return nil, err
	}
	return toDomainRecords(ms), nil
}

// FindOpenByTenant returns all unresolved conflict records for a tenant,
// most severe first, newest first within a severity
func (r *GormConflictRepository) FindOpenByTenant(ctx context.Context, tenantID uuid.UUID) ([]*conflict.Record, error) {
	var ms []models.ConflictRecordModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND state <> ?", tenantID, string(conflict.StateResolved)).
		Order("severity DESC, detected_at DESC").
		Find(&ms).Error; err != nil {
		return nil, err
	}
	return toDomainRecords(ms), nil
}

// Save creates or updates a conflict record
func (r *GormConflictRepository) Save(ctx context.Context, rec *conflict.Record) error {
	m := models.ConflictRecordModelFromDomain(rec)
	return r.db.WithContext(ctx).Save(m).Error
}

func toDomainRecords(ms []models.ConflictRecordModel) []*conflict.Record {
	records := make([]*conflict.Record, 0, len(ms))
	for i := range ms {
		records = append(records, ms[i].ToDomain())
	}
	return records
}

// Ensure GormConflictRepository implements the repository port
var _ conflict.Repository = (*GormConflictRepository)(nil)

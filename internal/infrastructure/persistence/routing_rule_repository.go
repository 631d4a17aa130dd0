package persistence

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ordersync/backend/internal/domain/routing"
	"github.com/ordersync/backend/internal/infrastructure/persistence/models"
)

// GormRoutingRuleRepository implements routing.Repository using GORM
type GormRoutingRuleRepository struct {
	db *gorm.DB
}

// NewGormRoutingRuleRepository creates a new GormRoutingRuleRepository
func NewGormRoutingRuleRepository(db *gorm.DB) *GormRoutingRuleRepository {
	return &GormRoutingRuleRepository{db: db}
}

// FindActiveByTenant returns active rules ordered by ascending priority
func (r *GormRoutingRuleRepository) FindActiveByTenant(ctx context.Context, tenantID uuid.UUID) ([]routing.Rule, error) {
	var ms []models.RoutingRuleModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND active = ?", tenantID, true).
		Order("priority ASC, created_at ASC").
		Find(&ms).Error; err != nil {
		return nil, err
	}
	rules := make([]routing.Rule, 0, len(ms))
	for i := range ms {
		rules = append(rules, *ms[i].ToDomain())
	}
	return rules, nil
}

// Save creates or updates a routing rule
func (r *GormRoutingRuleRepository) Save(ctx context.Context, rule *routing.Rule) error {
	m := models.RoutingRuleModelFromDomain(rule)
	return r.db.WithContext(ctx).Save(m).Error
}

// Delete removes a routing rule
func (r *GormRoutingRuleRepository) Delete(ctx context.Context, tenantID, ruleID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, ruleID).
		Delete(&models.RoutingRuleModel{}).Error
}

// Ensure GormRoutingRuleRepository implements the repository port
var _ routing.Repository = (*GormRoutingRuleRepository)(nil)

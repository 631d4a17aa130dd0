package models

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ordersync/backend/internal/domain/fulfillment"
)

// LocationModel is the persistence model for fulfillment locations
type LocationModel struct {
	TenantModel
	Name             string `gorm:"type:varchar(255);not null"`
	City             string `gorm:"type:varchar(100);index"`
	Region           string `gorm:"type:varchar(100)"`
	Active           bool   `gorm:"not null;default:true;index"`
	SameDayCapable   bool   `gorm:"not null;default:false"`
	MaxDailyCapacity int    `gorm:"not null"`
}

// TableName returns the table name for GORM
func (LocationModel) TableName() string {
	return "fulfillment_locations"
}

// ToDomain converts the persistence model to a domain Location entity
func (m *LocationModel) ToDomain() *fulfillment.Location {
	return &fulfillment.Location{
		TenantEntity:     m.ToTenantEntity(),
		Name:             m.Name,
		City:             m.City,
		Region:           m.Region,
		Active:           m.Active,
		SameDayCapable:   m.SameDayCapable,
		MaxDailyCapacity: m.MaxDailyCapacity,
	}
}

// FromDomain populates the persistence model from a domain Location entity
func (m *LocationModel) FromDomain(loc *fulfillment.Location) {
	m.FromTenantEntity(loc.TenantEntity)
	m.Name = loc.Name
	m.City = loc.City
	m.Region = loc.Region
	m.Active = loc.Active
	m.SameDayCapable = loc.SameDayCapable
	m.MaxDailyCapacity = loc.MaxDailyCapacity
}

// StockLevelModel is the persistence model for per-location SKU stock
// positions consulted by the fulfillment optimizer
type StockLevelModel struct {
	TenantModel
	LocationID uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_stock_location_sku,priority:2"`
	SKU        string          `gorm:"type:varchar(100);not null;uniqueIndex:idx_stock_location_sku,priority:3"`
	Available  decimal.Decimal `gorm:"type:decimal(18,3);not null;default:0"`
}

// TableName returns the table name for GORM
func (StockLevelModel) TableName() string {
	return "stock_levels"
}

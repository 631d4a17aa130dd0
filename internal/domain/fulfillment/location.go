package fulfillment

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ordersync/backend/internal/domain/shared"
)

// DistanceTier buckets shipping distance between a location and a destination
// city. Live logistics/geocoding integration is abstracted behind the
// DistanceEstimator port; the core only reasons about tiers.
type DistanceTier int

const (
	// DistanceTierLocal is same-city delivery
	DistanceTierLocal DistanceTier = iota
	// DistanceTierRegional is same-region delivery
	DistanceTierRegional
	// DistanceTierNational is cross-region delivery
	DistanceTierNational
	// DistanceTierRemote covers outer islands and hard-to-reach areas
	DistanceTierRemote
)

// Location is a warehouse or store capable of shipping some or all of an
// order's items
type Location struct {
	shared.TenantEntity
	Name             string
	City             string
	Region           string
	Active           bool
	SameDayCapable   bool
	MaxDailyCapacity int
}

// NewLocation creates a fulfillment location
func NewLocation(tenantID uuid.UUID, name, city, region string, sameDay bool, maxDailyCapacity int) (*Location, error) {
	if name == "" {
		return nil, shared.NewDomainError("INVALID_LOCATION_NAME", "Location name cannot be empty")
	}
	if maxDailyCapacity <= 0 {
		return nil, shared.NewDomainError("INVALID_LOCATION_CAPACITY", "Location capacity must be positive")
	}
	return &Location{
		TenantEntity:     shared.NewTenantEntity(tenantID),
		Name:             name,
		City:             city,
		Region:           region,
		Active:           true,
		SameDayCapable:   sameDay,
		MaxDailyCapacity: maxDailyCapacity,
	}, nil
}

// LocationRepository defines the persistence port for fulfillment locations
type LocationRepository interface {
	FindActiveByTenant(ctx context.Context, tenantID uuid.UUID) ([]Location, error)
	FindByID(ctx context.Context, tenantID, locationID uuid.UUID) (*Location, error)
}

// ItemAvailability is the stock position of one SKU at one location
type ItemAvailability struct {
	SKU       string
	Requested decimal.Decimal
	Available decimal.Decimal
}

// Shortfall returns the missing quantity, zero when fully available
func (a ItemAvailability) Shortfall() decimal.Decimal {
	if a.Available.GreaterThanOrEqual(a.Requested) {
		return decimal.Zero
	}
	return a.Requested.Sub(a.Available)
}

// InventoryChecker answers item-level availability questions for a location
type InventoryChecker interface {
	// CheckAvailability returns the stock position for each requested SKU,
	// in request order
	CheckAvailability(ctx context.Context, tenantID, locationID uuid.UUID, requests []ItemAvailability) ([]ItemAvailability, error)
}

// DistanceEstimator abstracts the logistics distance/cost function
type DistanceEstimator interface {
	// Tier buckets the distance from a location to a destination city
	Tier(loc *Location, destinationCity, destinationRegion string) DistanceTier
}

// CityTierEstimator is the default estimator: same city is local, same region
// is regional, everything else national. No external geocoding involved.
type CityTierEstimator struct{}

// Tier implements DistanceEstimator
func (CityTierEstimator) Tier(loc *Location, destinationCity, destinationRegion string) DistanceTier {
	if destinationCity != "" && strings.EqualFold(loc.City, destinationCity) {
		return DistanceTierLocal
	}
	if destinationRegion != "" && strings.EqualFold(loc.Region, destinationRegion) {
		return DistanceTierRegional
	}
	return DistanceTierNational
}

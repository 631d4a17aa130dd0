package fulfillment

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ordersync/backend/internal/domain/fulfillment"
	"github.com/ordersync/backend/internal/domain/order"
)

type fakeLocationRepo struct {
	locations []fulfillment.Location
}

func (r *fakeLocationRepo) FindActiveByTenant(_ context.Context, _ uuid.UUID) ([]fulfillment.Location, error) {
	return r.locations, nil
}

func (r *fakeLocationRepo) FindByID(_ context.Context, _ uuid.UUID, locationID uuid.UUID) (*fulfillment.Location, error) {
	for i := range r.locations {
		if r.locations[i].ID == locationID {
			return &r.locations[i], nil
		}
	}
	return nil, fulfillment.ErrNoOptionsAvailable
}

// fakeInventory maps location ID to SKU stock levels
type fakeInventory struct {
	stock map[uuid.UUID]map[string]int64
}

func (c *fakeInventory) CheckAvailability(_ context.Context, _ uuid.UUID, locationID uuid.UUID, requests []fulfillment.ItemAvailability) ([]fulfillment.ItemAvailability, error) {
	positions := make([]fulfillment.ItemAvailability, 0, len(requests))
	for _, req := range requests {
		req.Available = decimal.NewFromInt(c.stock[locationID][req.SKU])
		positions = append(positions, req)
	}
	return positions, nil
}

func makeLocation(t *testing.T, tenantID uuid.UUID, name, city, region string, sameDay bool, capacity int) fulfillment.Location {
	loc, err := fulfillment.NewLocation(tenantID, name, city, region, sameDay, capacity)
	require.NoError(t, err)
	return *loc
}

func makeOrder(t *testing.T, tenantID uuid.UUID, city, region string) *order.Order {
	o, err := order.New(tenantID, uuid.New(), "ORD-001", "EXT-001",
		decimal.NewFromInt(250000),
		[]order.Item{
			{SKU: "SKU-001", Quantity: decimal.NewFromInt(2)},
			{SKU: "SKU-002", Quantity: decimal.NewFromInt(1)},
		})
	require.NoError(t, err)
	o.ShippingCity = city
	o.Region = region
	return o
}

func TestOptimizer_Evaluate_FullBeatsPartial(t *testing.T) {
	tenantID := uuid.New()
	jakarta := makeLocation(t, tenantID, "Gudang Jakarta", "Jakarta", "DKI Jakarta", false, 100)
	bandung := makeLocation(t, tenantID, "Gudang Bandung", "Bandung", "Jawa Barat", false, 100)

	inv := &fakeInventory{stock: map[uuid.UUID]map[string]int64{
		jakarta.ID: {"SKU-001": 1, "SKU-002": 1}, // partial, but local
		bandung.ID: {"SKU-001": 5, "SKU-002": 5}, // full, but national
	}}
	opt := NewOptimizer(&fakeLocationRepo{locations: []fulfillment.Location{jakarta, bandung}}, inv, nil, DefaultConfig(), nil)

	ord := makeOrder(t, tenantID, "Jakarta", "DKI Jakarta")
	eval, err := opt.Evaluate(context.Background(), ord)
	require.NoError(t, err)
	require.Len(t, eval.Options, 2)

	// Full availability outweighs the distance penalty at default weights
	assert.Equal(t, bandung.ID, eval.Recommended.LocationID)
	assert.Equal(t, fulfillment.AvailabilityFull, eval.Recommended.Availability)

	second := eval.Options[1]
	assert.Equal(t, jakarta.ID, second.LocationID)
	assert.Equal(t, fulfillment.AvailabilityPartial, second.Availability)
	require.Len(t, second.MissingItems, 1)
	assert.Equal(t, "SKU-001", second.MissingItems[0].SKU)
}

func TestOptimizer_Evaluate_SkipsEmptyLocations(t *testing.T) {
	tenantID := uuid.New()
	empty := makeLocation(t, tenantID, "Gudang Kosong", "Medan", "Sumatera Utara", false, 100)
	stocked := makeLocation(t, tenantID, "Gudang Jakarta", "Jakarta", "DKI Jakarta", false, 100)

	inv := &fakeInventory{stock: map[uuid.UUID]map[string]int64{
		stocked.ID: {"SKU-001": 5, "SKU-002": 5},
	}}
	opt := NewOptimizer(&fakeLocationRepo{locations: []fulfillment.Location{empty, stocked}}, inv, nil, DefaultConfig(), nil)

	eval, err := opt.Evaluate(context.Background(), makeOrder(t, tenantID, "Jakarta", "DKI Jakarta"))
	require.NoError(t, err)
	require.Len(t, eval.Options, 1)
	assert.Equal(t, stocked.ID, eval.Options[0].LocationID)
}

func TestOptimizer_Evaluate_NoOptions(t *testing.T) {
	tenantID := uuid.New()
	empty := makeLocation(t, tenantID, "Gudang Kosong", "Medan", "Sumatera Utara", false, 100)

	opt := NewOptimizer(&fakeLocationRepo{locations: []fulfillment.Location{empty}},
		&fakeInventory{stock: map[uuid.UUID]map[string]int64{}}, nil, DefaultConfig(), nil)

	_, err := opt.Evaluate(context.Background(), makeOrder(t, tenantID, "Jakarta", "DKI Jakarta"))
	assert.ErrorIs(t, err, fulfillment.ErrNoOptionsAvailable)
}

func TestOptimizer_Evaluate_SameDayBonusForUrgentOrders(t *testing.T) {
	tenantID := uuid.New()
	sameDay := makeLocation(t, tenantID, "Toko Jakarta", "Jakarta", "DKI Jakarta", true, 50)
	regular := makeLocation(t, tenantID, "Gudang Jakarta", "Jakarta", "DKI Jakarta", false, 100)

	inv := &fakeInventory{stock: map[uuid.UUID]map[string]int64{
		sameDay.ID: {"SKU-001": 5, "SKU-002": 5},
		regular.ID: {"SKU-001": 5, "SKU-002": 5},
	}}
	opt := NewOptimizer(&fakeLocationRepo{locations: []fulfillment.Location{regular, sameDay}}, inv, nil, DefaultConfig(), nil)

	ord := makeOrder(t, tenantID, "Jakarta", "DKI Jakarta")
	ord.SetPriority(1)

	eval, err := opt.Evaluate(context.Background(), ord)
	require.NoError(t, err)
	assert.Equal(t, sameDay.ID, eval.Recommended.LocationID)
	assert.Contains(t, eval.Recommended.Reasons, "same-day capable for urgent order")
	assert.Equal(t, 2.0, eval.Recommended.ProcessingHours)

	// At default priority the bonus does not apply and order is stable
	ord.SetPriority(3)
	eval, err = opt.Evaluate(context.Background(), ord)
	require.NoError(t, err)
	assert.NotContains(t, eval.Recommended.Reasons, "same-day capable for urgent order")
}

func TestOptimizer_Evaluate_DistanceTiers(t *testing.T) {
	tenantID := uuid.New()
	local := makeLocation(t, tenantID, "Gudang Jakarta", "Jakarta", "DKI Jakarta", false, 100)
	regional := makeLocation(t, tenantID, "Gudang Depok", "Depok", "DKI Jakarta", false, 100)
	national := makeLocation(t, tenantID, "Gudang Surabaya", "Surabaya", "Jawa Timur", false, 100)

	inv := &fakeInventory{stock: map[uuid.UUID]map[string]int64{
		local.ID:    {"SKU-001": 5, "SKU-002": 5},
		regional.ID: {"SKU-001": 5, "SKU-002": 5},
		national.ID: {"SKU-001": 5, "SKU-002": 5},
	}}
	opt := NewOptimizer(&fakeLocationRepo{locations: []fulfillment.Location{national, regional, local}}, inv, nil, DefaultConfig(), nil)

	eval, err := opt.Evaluate(context.Background(), makeOrder(t, tenantID, "Jakarta", "DKI Jakarta"))
	require.NoError(t, err)
	require.Len(t, eval.Options, 3)

	assert.Equal(t, local.ID, eval.Options[0].LocationID)
	assert.Equal(t, fulfillment.DistanceTierLocal, eval.Options[0].DistanceTier)
	assert.Equal(t, regional.ID, eval.Options[1].LocationID)
	assert.Equal(t, national.ID, eval.Options[2].LocationID)

	// Cheaper and faster as the tier gets closer
	assert.True(t, eval.Options[0].TotalCost.LessThan(eval.Options[1].TotalCost))
	assert.Less(t, eval.Options[0].TotalHours, eval.Options[1].TotalHours)
}

func TestOptimizer_OptimizeBatch(t *testing.T) {
	tenantID := uuid.New()
	jakarta := makeLocation(t, tenantID, "Gudang Jakarta", "Jakarta", "DKI Jakarta", false, 2)

	inv := &fakeInventory{stock: map[uuid.UUID]map[string]int64{
		jakarta.ID: {"SKU-001": 50, "SKU-002": 50},
	}}
	opt := NewOptimizer(&fakeLocationRepo{locations: []fulfillment.Location{jakarta}}, inv, nil, DefaultConfig(), nil)

	orders := []*order.Order{
		makeOrder(t, tenantID, "Jakarta", "DKI Jakarta"),
		makeOrder(t, tenantID, "Jakarta", "DKI Jakarta"),
	}
	result, err := opt.OptimizeBatch(context.Background(), orders, fulfillment.SelectionModeBalanced)
	require.NoError(t, err)

	assert.Equal(t, 2, result.ProcessedCount)
	assert.Zero(t, result.FailedCount)
	require.Len(t, result.Utilization, 1)
	assert.Equal(t, 2, result.Utilization[0].AssignedCount)
	assert.Equal(t, 1.0, result.Utilization[0].Utilization)
}

func TestOptimizer_OptimizeBatch_FailureDoesNotAbort(t *testing.T) {
	tenantID := uuid.New()
	jakarta := makeLocation(t, tenantID, "Gudang Jakarta", "Jakarta", "DKI Jakarta", false, 100)

	// Second tenant's order finds no stock anywhere
	inv := &fakeInventory{stock: map[uuid.UUID]map[string]int64{
		jakarta.ID: {"SKU-001": 50, "SKU-002": 50},
	}}
	repo := &fakeLocationRepo{locations: []fulfillment.Location{jakarta}}
	opt := NewOptimizer(repo, inv, nil, DefaultConfig(), nil)

	good := makeOrder(t, tenantID, "Jakarta", "DKI Jakarta")
	bad, err := order.New(tenantID, uuid.New(), "ORD-002", "EXT-002",
		decimal.NewFromInt(100000),
		[]order.Item{{SKU: "SKU-404", Quantity: decimal.NewFromInt(1)}})
	require.NoError(t, err)

	result, err := opt.OptimizeBatch(context.Background(), []*order.Order{bad, good}, fulfillment.SelectionModeBalanced)
	require.NoError(t, err)

	assert.Equal(t, 1, result.ProcessedCount)
	assert.Equal(t, 1, result.FailedCount)
	require.Len(t, result.Selections, 2)
	assert.NotEmpty(t, result.Selections[0].Err)
	assert.NotNil(t, result.Selections[1].Selected)
}

func TestSelectByMode_OverridesBalancedScore(t *testing.T) {
	tenantID := uuid.New()
	partialLocal := makeLocation(t, tenantID, "Gudang Jakarta", "Jakarta", "DKI Jakarta", false, 100)
	fullNational := makeLocation(t, tenantID, "Gudang Bandung", "Bandung", "Jawa Barat", false, 100)

	inv := &fakeInventory{stock: map[uuid.UUID]map[string]int64{
		partialLocal.ID: {"SKU-001": 1, "SKU-002": 1},
		fullNational.ID: {"SKU-001": 5, "SKU-002": 5},
	}}
	opt := NewOptimizer(&fakeLocationRepo{locations: []fulfillment.Location{partialLocal, fullNational}}, inv, nil, DefaultConfig(), nil)

	ord := makeOrder(t, tenantID, "Jakarta", "DKI Jakarta")
	eval, err := opt.Evaluate(context.Background(), ord)
	require.NoError(t, err)
	require.Len(t, eval.Options, 2)

	// The balanced score prefers full availability despite the distance
	assert.Equal(t, fullNational.ID, eval.Recommended.LocationID)

	// Cost and speed modes ignore the availability bonus and pick the closer
	// location outright
	byCost := selectByMode(eval.Options, fulfillment.SelectionModeCost)
	assert.Equal(t, partialLocal.ID, byCost.LocationID)

	bySpeed := selectByMode(eval.Options, fulfillment.SelectionModeSpeed)
	assert.Equal(t, partialLocal.ID, bySpeed.LocationID)
}

package fulfillment

import (
	"context"
	"math"
	"sort"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/ordersync/backend/internal/domain/fulfillment"
	"github.com/ordersync/backend/internal/domain/order"
)

// Config holds the optimizer scoring constants. Scores are penalties: the
// lowest-scored option wins.
type Config struct {
	// BaseShippingRate is the local-tier shipping cost in order currency
	BaseShippingRate float64
	// HandlingCostPerLine is the per-line-item handling cost
	HandlingCostPerLine float64
	// FullBonus is subtracted when a location covers every item
	FullBonus float64
	// PartialBonus is subtracted when a location covers part of the order
	PartialBonus float64
	// CostDivisor normalizes total cost into score points
	CostDivisor float64
	// TimeDivisor converts total hours into score points
	TimeDivisor float64
	// SameDayBonus is subtracted for same-day capable locations when the
	// order priority is at or above the urgency threshold
	SameDayBonus float64
	// SameDayPriorityLE is the priority at or below which same-day applies
	SameDayPriorityLE int
}

// DefaultConfig returns the default optimizer configuration
func DefaultConfig() Config {
	return Config{
		BaseShippingRate:    20000,
		HandlingCostPerLine: 2000,
		FullBonus:           30,
		PartialBonus:        10,
		CostDivisor:         10000,
		TimeDivisor:         24,
		SameDayBonus:        20,
		SameDayPriorityLE:   2,
	}
}

// shippingMultipliers scale the base rate by distance tier
var shippingMultipliers = map[fulfillment.DistanceTier]float64{
	fulfillment.DistanceTierLocal:    1.0,
	fulfillment.DistanceTierRegional: 1.8,
	fulfillment.DistanceTierNational: 3.0,
	fulfillment.DistanceTierRemote:   5.0,
}

// shippingHours estimate transit time by distance tier
var shippingHours = map[fulfillment.DistanceTier]float64{
	fulfillment.DistanceTierLocal:    6,
	fulfillment.DistanceTierRegional: 24,
	fulfillment.DistanceTierNational: 72,
	fulfillment.DistanceTierRemote:   168,
}

// Optimizer evaluates fulfillment locations for orders and selects the best
// assignment. Options are recomputed on every call; nothing here is cached.
type Optimizer struct {
	locations fulfillment.LocationRepository
	inventory fulfillment.InventoryChecker
	estimator fulfillment.DistanceEstimator
	config    Config
	logger    *zap.Logger
}

// NewOptimizer creates a fulfillment optimizer
func NewOptimizer(locations fulfillment.LocationRepository, inventory fulfillment.InventoryChecker, estimator fulfillment.DistanceEstimator, config Config, logger *zap.Logger) *Optimizer {
	if estimator == nil {
		estimator = fulfillment.CityTierEstimator{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Optimizer{
		locations: locations,
		inventory: inventory,
		estimator: estimator,
		config:    config,
		logger:    logger,
	}
}

// Evaluate computes fulfillment options for one order, sorted ascending by
// score. Locations with no stock at all are excluded. Returns
// ErrNoOptionsAvailable when no location can serve any part of the order.
func (o *Optimizer) Evaluate(ctx context.Context, ord *order.Order) (*fulfillment.Evaluation, error) {
	locations, err := o.locations.FindActiveByTenant(ctx, ord.TenantID)
	if err != nil {
		return nil, err
	}

	options := make([]fulfillment.Option, 0, len(locations))
	for i := range locations {
		loc := &locations[i]
		opt, err := o.evaluateLocation(ctx, ord, loc)
		if err != nil {
			return nil, err
		}
		if opt == nil {
			continue
		}
		options = append(options, *opt)
	}
	if len(options) == 0 {
		return nil, fulfillment.ErrNoOptionsAvailable
	}

	sort.SliceStable(options, func(i, j int) bool {
		return options[i].Score < options[j].Score
	})

	eval := &fulfillment.Evaluation{
		OrderID:     ord.ID,
		Options:     options,
		Recommended: &options[0],
	}
	return eval, nil
}

// evaluateLocation scores one location for one order; nil when it has no stock
func (o *Optimizer) evaluateLocation(ctx context.Context, ord *order.Order, loc *fulfillment.Location) (*fulfillment.Option, error) {
	requests := make([]fulfillment.ItemAvailability, 0, len(ord.Items))
	for _, it := range ord.Items {
		requests = append(requests, fulfillment.ItemAvailability{SKU: it.SKU, Requested: it.Quantity})
	}

	positions, err := o.inventory.CheckAvailability(ctx, ord.TenantID, loc.ID, requests)
	if err != nil {
		return nil, err
	}

	var missing []fulfillment.MissingItem
	anyStock := false
	for _, pos := range positions {
		if pos.Available.GreaterThan(decimal.Zero) {
			anyStock = true
		}
		if shortfall := pos.Shortfall(); shortfall.GreaterThan(decimal.Zero) {
			missing = append(missing, fulfillment.MissingItem{
				SKU:       pos.SKU,
				Requested: pos.Requested,
				Available: pos.Available,
			})
		}
	}
	if !anyStock {
		return nil, nil
	}

	availability := fulfillment.AvailabilityFull
	if len(missing) > 0 {
		availability = fulfillment.AvailabilityPartial
	}

	tier := o.estimator.Tier(loc, ord.ShippingCity, ord.Region)
	shipping := decimal.NewFromFloat(o.config.BaseShippingRate * shippingMultipliers[tier])
	handling := decimal.NewFromFloat(o.config.HandlingCostPerLine * float64(len(ord.Items)))
	totalCost := shipping.Add(handling)

	processingHours := 4.0
	if loc.SameDayCapable && tier == fulfillment.DistanceTierLocal {
		processingHours = 2.0
	}
	transitHours := shippingHours[tier]
	totalHours := processingHours + transitHours

	opt := &fulfillment.Option{
		LocationID:      loc.ID,
		LocationName:    loc.Name,
		Availability:    availability,
		MissingItems:    missing,
		ShippingCost:    shipping,
		HandlingCost:    handling,
		TotalCost:       totalCost,
		ProcessingHours: processingHours,
		ShippingHours:   transitHours,
		TotalHours:      totalHours,
		SameDayCapable:  loc.SameDayCapable,
		DistanceTier:    tier,
	}
	o.score(ord, opt)
	return opt, nil
}

// score computes the penalty score and its reasons; lower is better
func (o *Optimizer) score(ord *order.Order, opt *fulfillment.Option) {
	cost, _ := opt.TotalCost.Float64()
	score := cost/o.config.CostDivisor + opt.TotalHours/o.config.TimeDivisor

	switch opt.Availability {
	case fulfillment.AvailabilityFull:
		score -= o.config.FullBonus
		opt.Reasons = append(opt.Reasons, "full availability")
	case fulfillment.AvailabilityPartial:
		score -= o.config.PartialBonus
		opt.Reasons = append(opt.Reasons, "partial availability")
	}

	if opt.SameDayCapable && ord.Priority <= o.config.SameDayPriorityLE {
		score -= o.config.SameDayBonus
		opt.Reasons = append(opt.Reasons, "same-day capable for urgent order")
	}

	switch opt.DistanceTier {
	case fulfillment.DistanceTierLocal:
		opt.Reasons = append(opt.Reasons, "local delivery")
	case fulfillment.DistanceTierRegional:
		opt.Reasons = append(opt.Reasons, "regional delivery")
	case fulfillment.DistanceTierNational:
		opt.Reasons = append(opt.Reasons, "national delivery")
	case fulfillment.DistanceTierRemote:
		opt.Reasons = append(opt.Reasons, "remote delivery")
	}

	opt.Score = score
}

// OptimizeBatch evaluates a batch of orders and selects one option per order
// according to the selection mode. A single order's failure never aborts the
// batch; utilization is reported against each location's daily capacity.
func (o *Optimizer) OptimizeBatch(ctx context.Context, orders []*order.Order, mode fulfillment.SelectionMode) (*fulfillment.BatchEvaluation, error) {
	if !mode.IsValid() {
		mode = fulfillment.SelectionModeBalanced
	}

	result := &fulfillment.BatchEvaluation{Mode: mode}
	assigned := make(map[string]*fulfillment.LocationUtilization)

	for _, ord := range orders {
		eval, err := o.Evaluate(ctx, ord)
		if err != nil {
			result.FailedCount++
			result.Selections = append(result.Selections, fulfillment.BatchSelection{
				OrderID: ord.ID,
				Err:     err.Error(),
			})
			continue
		}

		selected := selectByMode(eval.Options, mode)
		result.ProcessedCount++
		result.Selections = append(result.Selections, fulfillment.BatchSelection{
			OrderID:  ord.ID,
			Selected: selected,
		})

		key := selected.LocationID.String()
		util, ok := assigned[key]
		if !ok {
			util = &fulfillment.LocationUtilization{
				LocationID:   selected.LocationID,
				LocationName: selected.LocationName,
			}
			if loc, err := o.locations.FindByID(ctx, ord.TenantID, selected.LocationID); err == nil {
				util.MaxDaily = loc.MaxDailyCapacity
			}
			assigned[key] = util
		}
		util.AssignedCount++
	}

	for _, util := range assigned {
		if util.MaxDaily > 0 {
			util.Utilization = float64(util.AssignedCount) / float64(util.MaxDaily)
		}
		result.Utilization = append(result.Utilization, *util)
	}
	sort.Slice(result.Utilization, func(i, j int) bool {
		return result.Utilization[i].LocationName < result.Utilization[j].LocationName
	})

	return result, nil
}

// selectByMode picks one option from a score-sorted slice
func selectByMode(options []fulfillment.Option, mode fulfillment.SelectionMode) *fulfillment.Option {
	best := &options[0]
	switch mode {
	case fulfillment.SelectionModeCost:
		minCost := math.Inf(1)
		for i := range options {
			if c, _ := options[i].TotalCost.Float64(); c < minCost {
				minCost = c
				best = &options[i]
			}
		}
	case fulfillment.SelectionModeSpeed:
		minHours := math.Inf(1)
		for i := range options {
			if options[i].TotalHours < minHours {
				minHours = options[i].TotalHours
				best = &options[i]
			}
		}
	}
	return best
}

package routing

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ordersync/backend/internal/domain/fulfillment"
	"github.com/ordersync/backend/internal/domain/order"
	"github.com/ordersync/backend/internal/domain/routing"
	"github.com/ordersync/backend/internal/domain/shared"
)

type fakeOrderRepo struct {
	mu     sync.Mutex
	orders map[uuid.UUID]*order.Order
	saved  int
}

func newFakeOrderRepo(orders ...*order.Order) *fakeOrderRepo {
	r := &fakeOrderRepo{orders: make(map[uuid.UUID]*order.Order)}
	for _, o := range orders {
		r.orders[o.ID] = o
	}
	return r
}

func (r *fakeOrderRepo) FindByID(_ context.Context, tenantID, orderID uuid.UUID) (*order.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[orderID]
	if !ok || o.TenantID != tenantID {
		return nil, shared.ErrNotFound
	}
	return o, nil
}

func (r *fakeOrderRepo) FindByIDs(_ context.Context, tenantID uuid.UUID, orderIDs []uuid.UUID) ([]*order.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*order.Order
	for _, id := range orderIDs {
		if o, ok := r.orders[id]; ok && o.TenantID == tenantID {
			out = append(out, o)
		}
	}
	return out, nil
}

func (r *fakeOrderRepo) FindOpenByChannel(_ context.Context, _, _ uuid.UUID) ([]*order.Order, error) {
	return nil, nil
}

func (r *fakeOrderRepo) FindUnassignedByTenant(_ context.Context, _ uuid.UUID, _ int) ([]*order.Order, error) {
	return nil, nil
}

func (r *fakeOrderRepo) Save(_ context.Context, _ *order.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saved++
	return nil
}

type fakeRuleRepo struct {
	mu    sync.Mutex
	rules []routing.Rule
	saved []routing.Rule
}

func (r *fakeRuleRepo) FindActiveByTenant(_ context.Context, _ uuid.UUID) ([]routing.Rule, error) {
	return r.rules, nil
}

func (r *fakeRuleRepo) Save(_ context.Context, rule *routing.Rule) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saved = append(r.saved, *rule)
	return nil
}

func (r *fakeRuleRepo) Delete(_ context.Context, _, _ uuid.UUID) error { return nil }

type fakeEvaluator struct {
	eval *fulfillment.Evaluation
	err  error
}

func (e *fakeEvaluator) Evaluate(_ context.Context, _ *order.Order) (*fulfillment.Evaluation, error) {
	if e.err != nil {
		return nil, e.err
	}
	return e.eval, nil
}

type capturePublisher struct {
	mu     sync.Mutex
	events []shared.DomainEvent
}

func (p *capturePublisher) Publish(_ context.Context, events ...shared.DomainEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, events...)
	return nil
}

func (p *capturePublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, e := range p.events {
		out = append(out, e.EventType())
	}
	return out
}

func newEngineOrder(t *testing.T, tenantID uuid.UUID, amount int64) *order.Order {
	o, err := order.New(tenantID, uuid.New(), "ORD-001", "EXT-001",
		decimal.NewFromInt(amount),
		[]order.Item{{SKU: "SKU-001", Quantity: decimal.NewFromInt(1)}})
	require.NoError(t, err)
	o.ShippingCity = "Jakarta"
	return o
}

func recommendation() *fulfillment.Evaluation {
	opt := fulfillment.Option{
		LocationID:   uuid.New(),
		LocationName: "Gudang Jakarta",
		Availability: fulfillment.AvailabilityFull,
		Score:        -25,
	}
	return &fulfillment.Evaluation{Options: []fulfillment.Option{opt}, Recommended: &opt}
}

func mustRule(t *testing.T, tenantID uuid.UUID, priority int, conditions routing.Conditions, actions routing.Actions) routing.Rule {
	r, err := routing.NewRule(tenantID, "rule", priority, conditions, actions)
	require.NoError(t, err)
	return *r
}

func TestEngine_Route_NoRules(t *testing.T) {
	tenantID := uuid.New()
	ord := newEngineOrder(t, tenantID, 250000)
	orders := newFakeOrderRepo(ord)
	eval := recommendation()
	pub := &capturePublisher{}

	e := NewEngine(orders, &fakeRuleRepo{}, &fakeEvaluator{eval: eval}, pub, DefaultConfig(), nil)

	decision, err := e.Route(context.Background(), tenantID, ord.ID)
	require.NoError(t, err)

	assert.Empty(t, decision.AppliedRuleIDs)
	assert.Equal(t, 3, decision.FinalPriority)
	require.NotNil(t, decision.AssignedLocationID)
	assert.Equal(t, eval.Recommended.LocationID, *decision.AssignedLocationID)
	assert.Equal(t, order.FulfillmentStatusAssigned, ord.FulfillmentStatus)
	assert.Equal(t, 1, orders.saved)
	assert.Equal(t, []string{order.EventTypeOrderRouted, order.EventTypeFulfillmentAssigned}, pub.types())
}

func TestEngine_Route_RulesApplyCumulatively(t *testing.T) {
	tenantID := uuid.New()
	ord := newEngineOrder(t, tenantID, 750000)
	locationID := uuid.New()

	one := 1
	two := 2
	rules := &fakeRuleRepo{rules: []routing.Rule{
		mustRule(t, tenantID, 1, routing.Conditions{}, routing.Actions{SetPriority: &two, AddTags: []string{"vip"}}),
		// Later rule overrides priority and assigns a location
		mustRule(t, tenantID, 2, routing.Conditions{}, routing.Actions{
			SetPriority: &one, AddTags: []string{"express"}, AssignLocationID: &locationID,
		}),
		// Non-matching rule contributes nothing
		mustRule(t, tenantID, 3, routing.Conditions{ShippingCities: []string{"Surabaya"}}, routing.Actions{AddTags: []string{"wrong"}}),
	}}

	e := NewEngine(newFakeOrderRepo(ord), rules, &fakeEvaluator{err: fulfillment.ErrNoOptionsAvailable}, nil, DefaultConfig(), nil)

	decision, err := e.Route(context.Background(), tenantID, ord.ID)
	require.NoError(t, err)

	assert.Len(t, decision.AppliedRuleIDs, 2)
	assert.Equal(t, 1, decision.FinalPriority)
	assert.ElementsMatch(t, []string{"vip", "express"}, decision.Tags)
	// Rule-assigned location short-circuits the optimizer
	require.NotNil(t, decision.AssignedLocationID)
	assert.Equal(t, locationID, *decision.AssignedLocationID)
	assert.False(t, decision.HoldForReview)
}

func TestEngine_Route_Score(t *testing.T) {
	tenantID := uuid.New()
	// Value contribution 750000/100000 = 7.5
	ord := newEngineOrder(t, tenantID, 750000)

	one := 1
	rules := &fakeRuleRepo{rules: []routing.Rule{
		mustRule(t, tenantID, 1, routing.Conditions{}, routing.Actions{SetPriority: &one}),
	}}
	e := NewEngine(newFakeOrderRepo(ord), rules, &fakeEvaluator{eval: recommendation()}, nil, DefaultConfig(), nil)

	decision, err := e.Route(context.Background(), tenantID, ord.ID)
	require.NoError(t, err)

	// 100 base + (5-1)*20 priority + 1*10 rules + 7.5 value
	assert.InDelta(t, 197.5, decision.Score, 0.001)
}

func TestEngine_Route_ScoreValueCapped(t *testing.T) {
	tenantID := uuid.New()
	ord := newEngineOrder(t, tenantID, 100000000)

	e := NewEngine(newFakeOrderRepo(ord), &fakeRuleRepo{}, &fakeEvaluator{eval: recommendation()}, nil, DefaultConfig(), nil)

	decision, err := e.Route(context.Background(), tenantID, ord.ID)
	require.NoError(t, err)

	// 100 base + (5-3)*20 priority + capped 50 value
	assert.InDelta(t, 190, decision.Score, 0.001)
}

func TestEngine_Route_ProcessingEstimate(t *testing.T) {
	tenantID := uuid.New()
	items := make([]order.Item, 0, 12)
	for i := 0; i < 12; i++ {
		items = append(items, order.Item{SKU: "SKU-001", Quantity: decimal.NewFromInt(1)})
	}
	ord, err := order.New(tenantID, uuid.New(), "ORD-001", "EXT-001", decimal.NewFromInt(100000), items)
	require.NoError(t, err)

	e := NewEngine(newFakeOrderRepo(ord), &fakeRuleRepo{}, &fakeEvaluator{eval: recommendation()}, nil, DefaultConfig(), nil)

	decision, err := e.Route(context.Background(), tenantID, ord.ID)
	require.NoError(t, err)

	// Priority 3 base 24h plus 2 items over the threshold at 0.5h each
	assert.Equal(t, 25*time.Hour, decision.EstimatedProcessing)
}

func TestEngine_Route_NoOptionsFails(t *testing.T) {
	tenantID := uuid.New()
	ord := newEngineOrder(t, tenantID, 250000)
	orders := newFakeOrderRepo(ord)
	pub := &capturePublisher{}

	e := NewEngine(orders, &fakeRuleRepo{}, &fakeEvaluator{err: fulfillment.ErrNoOptionsAvailable}, pub, DefaultConfig(), nil)

	_, err := e.Route(context.Background(), tenantID, ord.ID)
	require.ErrorIs(t, err, fulfillment.ErrNoOptionsAvailable)

	// The order is left untouched: not held, not saved, no events
	assert.Equal(t, order.FulfillmentStatusUnassigned, ord.FulfillmentStatus)
	assert.Zero(t, orders.saved)
	assert.Empty(t, pub.types())
}

func TestEngine_Route_HoldRuleSticks(t *testing.T) {
	tenantID := uuid.New()
	ord := newEngineOrder(t, tenantID, 250000)

	rules := &fakeRuleRepo{rules: []routing.Rule{
		mustRule(t, tenantID, 1, routing.Conditions{}, routing.Actions{HoldForReview: true}),
	}}
	// The evaluator must not be consulted for a held order
	e := NewEngine(newFakeOrderRepo(ord), rules, &fakeEvaluator{err: assert.AnError}, nil, DefaultConfig(), nil)

	decision, err := e.Route(context.Background(), tenantID, ord.ID)
	require.NoError(t, err)
	assert.True(t, decision.HoldForReview)
	assert.Equal(t, order.FulfillmentStatusOnHold, ord.FulfillmentStatus)
}

func TestEngine_Route_OrderNotFound(t *testing.T) {
	e := NewEngine(newFakeOrderRepo(), &fakeRuleRepo{}, &fakeEvaluator{}, nil, DefaultConfig(), nil)

	_, err := e.Route(context.Background(), uuid.New(), uuid.New())
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestEngine_RouteBulk(t *testing.T) {
	tenantID := uuid.New()
	a := newEngineOrder(t, tenantID, 250000)
	b := newEngineOrder(t, tenantID, 500000)
	missing := uuid.New()

	e := NewEngine(newFakeOrderRepo(a, b), &fakeRuleRepo{}, &fakeEvaluator{eval: recommendation()}, nil, DefaultConfig(), nil)

	result, err := e.RouteBulk(context.Background(), tenantID, []uuid.UUID{a.ID, missing, b.ID})
	require.NoError(t, err)

	assert.Equal(t, 2, result.ProcessedCount)
	assert.Equal(t, 1, result.FailedCount)
	require.Len(t, result.Failures, 1)
	assert.Equal(t, missing, result.Failures[0].OrderID)
	assert.Equal(t, "order not found", result.Failures[0].Reason)

	// One correlation ID spans the whole batch
	require.Len(t, result.Decisions, 2)
	assert.Equal(t, result.Decisions[0].CorrelationID, result.Decisions[1].CorrelationID)
}

func TestEngine_RouteBulk_NoOptionsCountsFailed(t *testing.T) {
	tenantID := uuid.New()
	ord := newEngineOrder(t, tenantID, 250000)

	e := NewEngine(newFakeOrderRepo(ord), &fakeRuleRepo{}, &fakeEvaluator{err: fulfillment.ErrNoOptionsAvailable}, nil, DefaultConfig(), nil)

	result, err := e.RouteBulk(context.Background(), tenantID, []uuid.UUID{ord.ID})
	require.NoError(t, err)

	assert.Zero(t, result.ProcessedCount)
	assert.Equal(t, 1, result.FailedCount)
	require.Len(t, result.Failures, 1)
	assert.Equal(t, ord.ID, result.Failures[0].OrderID)
	assert.Equal(t, fulfillment.ErrNoOptionsAvailable.Error(), result.Failures[0].Reason)
}

func TestEngine_Route_LaterRuleOverridesPriority(t *testing.T) {
	tenantID := uuid.New()
	// Jakarta order over the high-value threshold matches both rules
	ord := newEngineOrder(t, tenantID, 1200000)

	one := 1
	two := 2
	threshold := decimal.NewFromInt(1000000)
	rules := &fakeRuleRepo{rules: []routing.Rule{
		mustRule(t, tenantID, 1,
			routing.Conditions{OrderValue: &routing.ValueRange{Min: &threshold}},
			routing.Actions{SetPriority: &one, AddTags: []string{"high-value", "express"}}),
		mustRule(t, tenantID, 2,
			routing.Conditions{ShippingCities: []string{"Jakarta"}},
			routing.Actions{SetPriority: &two, AddTags: []string{"same-city"}}),
	}}

	e := NewEngine(newFakeOrderRepo(ord), rules, &fakeEvaluator{eval: recommendation()}, nil, DefaultConfig(), nil)

	decision, err := e.Route(context.Background(), tenantID, ord.ID)
	require.NoError(t, err)

	// The same-city rule runs last and wins the priority even though the
	// express rule set a more urgent one; tags accumulate across both
	assert.Len(t, decision.AppliedRuleIDs, 2)
	assert.Equal(t, 2, decision.FinalPriority)
	assert.ElementsMatch(t, []string{"high-value", "express", "same-city"}, decision.Tags)
}

func TestEngine_ImportRules(t *testing.T) {
	tenantID := uuid.New()
	rules := &fakeRuleRepo{}
	e := NewEngine(newFakeOrderRepo(), rules, &fakeEvaluator{}, nil, DefaultConfig(), nil)

	priority := 2
	docs := []routing.RuleDocument{
		{ID: "vip", Name: "VIP orders", Priority: 1, Actions: routing.DocumentActions{SetPriority: &priority}},
		{ID: "jakarta", Name: "Jakarta orders", Priority: 2, Conditions: routing.DocumentConditions{ShippingCities: []string{"Jakarta"}}},
	}
	imported, err := e.ImportRules(context.Background(), tenantID, docs)
	require.NoError(t, err)
	assert.Len(t, imported, 2)
	assert.Len(t, rules.saved, 2)
}

func TestEngine_ImportRules_MalformedFailsWhole(t *testing.T) {
	rules := &fakeRuleRepo{}
	e := NewEngine(newFakeOrderRepo(), rules, &fakeEvaluator{}, nil, DefaultConfig(), nil)

	docs := []routing.RuleDocument{
		{ID: "ok", Name: "Valid rule"},
		{ID: "bad", Name: ""},
	}
	_, err := e.ImportRules(context.Background(), uuid.New(), docs)
	assert.Error(t, err)
	assert.Empty(t, rules.saved)
}

package routing

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ordersync/backend/internal/domain/fulfillment"
	"github.com/ordersync/backend/internal/domain/order"
	"github.com/ordersync/backend/internal/domain/routing"
	"github.com/ordersync/backend/internal/domain/shared"
)

// FulfillmentEvaluator computes fulfillment options for an order. It is the
// engine's only view of the optimizer; the two never share state beyond the
// returned evaluation.
type FulfillmentEvaluator interface {
	Evaluate(ctx context.Context, ord *order.Order) (*fulfillment.Evaluation, error)
}

// Config holds the routing score and processing time constants
type Config struct {
	// BaseScore is the starting score for every routed order
	BaseScore float64
	// PriorityWeight is added per priority step above the lowest priority
	PriorityWeight float64
	// RuleWeight is added per applied rule
	RuleWeight float64
	// ValueDivisor normalizes the order value contribution
	ValueDivisor float64
	// ValueCap bounds the order value contribution
	ValueCap float64
	// ProcessingHours maps final priority to base processing time
	ProcessingHours map[int]float64
	// ItemThreshold is the item count included in the base processing time
	ItemThreshold int
	// ExtraItemHours is added per item beyond the threshold
	ExtraItemHours float64
}

// DefaultConfig returns the default routing configuration
func DefaultConfig() Config {
	return Config{
		BaseScore:       100,
		PriorityWeight:  20,
		RuleWeight:      10,
		ValueDivisor:    100000,
		ValueCap:        50,
		ProcessingHours: map[int]float64{1: 2, 2: 6, 3: 24, 4: 48, 5: 72},
		ItemThreshold:   10,
		ExtraItemHours:  0.5,
	}
}

// Engine routes orders through the tenant's rule set and assigns fulfillment.
// Rules apply cumulatively in ascending priority order: tags union, scalar
// actions are last-writer-wins, a hold sticks once any rule sets it.
type Engine struct {
	orders    order.Repository
	rules     routing.Repository
	evaluator FulfillmentEvaluator
	publisher shared.EventPublisher
	config    Config
	logger    *zap.Logger

	now func() time.Time
}

// NewEngine creates a routing engine
func NewEngine(orders order.Repository, rules routing.Repository, evaluator FulfillmentEvaluator, publisher shared.EventPublisher, config Config, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.ProcessingHours == nil {
		config.ProcessingHours = DefaultConfig().ProcessingHours
	}
	return &Engine{
		orders:    orders,
		rules:     rules,
		evaluator: evaluator,
		publisher: publisher,
		config:    config,
		logger:    logger,
		now:       time.Now,
	}
}

// Route routes one order: applies every matching rule, computes the routing
// score and processing estimate, evaluates fulfillment options and persists
// the outcome. When no location can serve the order the call fails with
// fulfillment.ErrNoOptionsAvailable and the order is left untouched.
func (e *Engine) Route(ctx context.Context, tenantID, orderID uuid.UUID) (*routing.Decision, error) {
	ord, err := e.orders.FindByID(ctx, tenantID, orderID)
	if err != nil {
		return nil, err
	}
	if ord.TenantID != tenantID {
		return nil, shared.ErrTenantMismatch
	}

	rules, err := e.rules.FindActiveByTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	return e.route(ctx, ord, rules, uuid.New())
}

// RouteBulk routes a batch of orders against one rule snapshot. A single
// order's failure is recorded and never aborts the batch.
func (e *Engine) RouteBulk(ctx context.Context, tenantID uuid.UUID, orderIDs []uuid.UUID) (*routing.BulkResult, error) {
	rules, err := e.rules.FindActiveByTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	orders, err := e.orders.FindByIDs(ctx, tenantID, orderIDs)
	if err != nil {
		return nil, err
	}
	byID := make(map[uuid.UUID]*order.Order, len(orders))
	for _, ord := range orders {
		byID[ord.ID] = ord
	}

	correlationID := uuid.New()
	result := &routing.BulkResult{}
	for _, id := range orderIDs {
		ord, ok := byID[id]
		if !ok {
			result.FailedCount++
			result.Failures = append(result.Failures, routing.BulkFailure{OrderID: id, Reason: "order not found"})
			continue
		}
		decision, err := e.route(ctx, ord, rules, correlationID)
		if err != nil {
			result.FailedCount++
			result.Failures = append(result.Failures, routing.BulkFailure{OrderID: id, Reason: err.Error()})
			continue
		}
		result.ProcessedCount++
		result.Decisions = append(result.Decisions, *decision)
	}
	return result, nil
}

func (e *Engine) route(ctx context.Context, ord *order.Order, rules []routing.Rule, correlationID uuid.UUID) (*routing.Decision, error) {
	now := e.now()

	var appliedRuleIDs []uuid.UUID
	var assignLocationID *uuid.UUID
	hold := false
	for i := range rules {
		rule := &rules[i]
		if !rule.Matches(ord, now) {
			continue
		}
		appliedRuleIDs = append(appliedRuleIDs, rule.ID)

		if p := rule.Actions.SetPriority; p != nil {
			ord.SetPriority(*p)
		}
		if len(rule.Actions.AddTags) > 0 {
			ord.AddTags(rule.Actions.AddTags...)
		}
		if loc := rule.Actions.AssignLocationID; loc != nil {
			assignLocationID = loc
		}
		if rule.Actions.HoldForReview {
			hold = true
		}
	}

	decision := &routing.Decision{
		OrderID:        ord.ID,
		TenantID:       ord.TenantID,
		CorrelationID:  correlationID,
		FinalPriority:  ord.Priority,
		Tags:           ord.Tags(),
		AppliedRuleIDs: appliedRuleIDs,
		HoldForReview:  hold,
		RoutedAt:       now,
	}
	decision.Score = e.score(ord, len(appliedRuleIDs))
	decision.EstimatedProcessing = e.estimateProcessing(ord)

	// Rule-assigned location short-circuits optimization; otherwise the
	// optimizer recommends one.
	if assignLocationID == nil && !hold {
		eval, err := e.evaluator.Evaluate(ctx, ord)
		if err != nil {
			return nil, err
		}
		decision.Options = eval.Options
		decision.Recommended = eval.Recommended
		assignLocationID = &eval.Recommended.LocationID
	}

	if hold {
		ord.HoldForReview()
	} else if assignLocationID != nil {
		if err := ord.AssignFulfillmentLocation(*assignLocationID); err != nil {
			return nil, err
		}
		decision.AssignedLocationID = assignLocationID
	}

	if err := e.orders.Save(ctx, ord); err != nil {
		return nil, err
	}

	e.publish(ctx, ord, decision)
	return decision, nil
}

// score computes the routing score: base plus priority, rule and value
// contributions. The score ranks outcomes for reporting; it drives no control
// flow.
func (e *Engine) score(ord *order.Order, appliedRules int) float64 {
	score := e.config.BaseScore
	score += float64(order.LowestPriority-ord.Priority) * e.config.PriorityWeight
	score += float64(appliedRules) * e.config.RuleWeight

	value, _ := ord.TotalAmount.Float64()
	contribution := value / e.config.ValueDivisor
	if contribution > e.config.ValueCap {
		contribution = e.config.ValueCap
	}
	score += contribution
	return score
}

// estimateProcessing projects total processing time from the final priority
// and the item count
func (e *Engine) estimateProcessing(ord *order.Order) time.Duration {
	hours, ok := e.config.ProcessingHours[ord.Priority]
	if !ok {
		hours = e.config.ProcessingHours[3]
	}
	if extra := len(ord.Items) - e.config.ItemThreshold; extra > 0 {
		hours += float64(extra) * e.config.ExtraItemHours
	}
	return time.Duration(hours * float64(time.Hour))
}

func (e *Engine) publish(ctx context.Context, ord *order.Order, decision *routing.Decision) {
	if e.publisher == nil {
		return
	}
	ruleIDs := make([]string, 0, len(decision.AppliedRuleIDs))
	for _, id := range decision.AppliedRuleIDs {
		ruleIDs = append(ruleIDs, id.String())
	}
	events := []shared.DomainEvent{
		order.NewRoutedEvent(ord, decision.CorrelationID, ruleIDs, decision.Score, decision.HoldForReview),
	}
	if decision.AssignedLocationID != nil {
		name := ""
		score := 0.0
		if decision.Recommended != nil {
			name = decision.Recommended.LocationName
			score = decision.Recommended.Score
		}
		events = append(events, order.NewFulfillmentAssignedEvent(ord, decision.CorrelationID, *decision.AssignedLocationID, name, score))
	}
	if err := e.publisher.Publish(ctx, events...); err != nil {
		e.logger.Error("failed to publish routing events",
			zap.String("order_id", ord.ID.String()),
			zap.Error(err),
		)
	}
}

// ImportRules validates rule documents and saves them as the tenant's rules.
// Malformed documents fail the whole import; nothing is partially applied.
func (e *Engine) ImportRules(ctx context.Context, tenantID uuid.UUID, docs []routing.RuleDocument) ([]routing.Rule, error) {
	rules := make([]routing.Rule, 0, len(docs))
	for i := range docs {
		rule, err := docs[i].ToRule(tenantID)
		if err != nil {
			return nil, err
		}
		rules = append(rules, *rule)
	}
	for i := range rules {
		if err := e.rules.Save(ctx, &rules[i]); err != nil {
			return nil, err
		}
	}
	return rules, nil
}

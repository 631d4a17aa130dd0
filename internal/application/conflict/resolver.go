package conflict

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/ordersync/backend/internal/domain/channel"
	"github.com/ordersync/backend/internal/domain/conflict"
	"github.com/ordersync/backend/internal/domain/order"
	"github.com/ordersync/backend/internal/domain/shared"
	"github.com/ordersync/backend/internal/infrastructure/resilience"
)

// CallExecutor wraps outbound platform calls with retry and circuit breaking.
// Satisfied by the resilience executor.
type CallExecutor interface {
	Do(ctx context.Context, op resilience.OperationDescriptor, fn func(ctx context.Context) error) error
}

// resolutionQueue names the dead-letter queue for resolution pushes
const resolutionQueue = "conflict-resolution"

// Resolver executes resolution strategies on classified conflict records. The
// only outbound write path is UpdateOrderStatus through the call executor;
// everything else mutates local state or publishes events.
type Resolver struct {
	records   conflict.Repository
	orders    order.Repository
	channels  channel.ChannelRepository
	registry  channel.PlatformRegistry
	executor  CallExecutor
	publisher shared.EventPublisher
	calendar  RegionCalendar
	logger    *zap.Logger

	now func() time.Time
}

// NewResolver creates a conflict resolver
func NewResolver(records conflict.Repository, orders order.Repository, channels channel.ChannelRepository, registry channel.PlatformRegistry, executor CallExecutor, publisher shared.EventPublisher, calendar RegionCalendar, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{
		records:   records,
		orders:    orders,
		channels:  channels,
		registry:  registry,
		executor:  executor,
		publisher: publisher,
		calendar:  calendar,
		logger:    logger,
		now:       time.Now,
	}
}

// statusRank ranks a status string from either vocabulary by lifecycle
// progress
func statusRank(s string) int {
	if r := order.Status(s).Rank(); r >= 0 {
		return r
	}
	return channel.ExternalOrderStatus(s).Rank()
}

// Resolve advances one conflict record. Resolving an already-resolved record
// returns its existing resolution unchanged. A nil resolution with a nil error
// means the record is still pending: deferred, or awaiting manual review.
func (r *Resolver) Resolve(ctx context.Context, tenantID, recordID, correlationID uuid.UUID) (*conflict.Resolution, error) {
	rec, err := r.records.FindByID(ctx, tenantID, recordID)
	if err != nil {
		return nil, err
	}
	return r.resolve(ctx, rec, correlationID)
}

func (r *Resolver) resolve(ctx context.Context, rec *conflict.Record, correlationID uuid.UUID) (*conflict.Resolution, error) {
	if rec.IsResolved() {
		return rec.Resolution, nil
	}

	if rec.State == conflict.StateClassified {
		strategy := conflict.SelectStrategy(rec, statusRank)
		if err := rec.BeginResolution(strategy); err != nil {
			return nil, err
		}
		if err := r.records.Save(ctx, rec); err != nil {
			return nil, err
		}
	}

	if rec.State == conflict.StatePendingManualReview {
		return nil, nil
	}

	var outcome string
	var execErr error
	switch rec.Strategy {
	case conflict.StrategyPlatformWins:
		outcome, execErr = r.applyPlatformView(ctx, rec)
	case conflict.StrategyAutomaticMerge:
		outcome, execErr = r.mergeInventory(ctx, rec, correlationID)
	case conflict.StrategyBusinessRuleBased:
		outcome, execErr = r.pushLocalStatus(ctx, rec)
	case conflict.StrategyDefer:
		if r.calendar != nil && r.calendar.IsObservanceWindow(rec.Context.Region, r.now()) {
			// Still inside the observance window: try again on a later pass
			return nil, nil
		}
		outcome = "deferral window elapsed, local state retained"
	default:
		return nil, shared.ErrInvalidState
	}
	if execErr != nil {
		// The record stays in AutoResolving; the next pass retries execution
		return nil, execErr
	}

	res, err := rec.Resolve(outcome, "resolver")
	if err != nil {
		return nil, err
	}
	if err := r.records.Save(ctx, rec); err != nil {
		return nil, err
	}

	r.logger.Info("conflict resolved",
		zap.String("conflict_id", rec.ID.String()),
		zap.String("order_id", rec.OrderID.String()),
		zap.String("strategy", string(rec.Strategy)),
		zap.String("outcome", outcome),
	)
	r.publishResolved(ctx, rec, correlationID)
	return res, nil
}

// ResolveManually finalizes a record awaiting human review
func (r *Resolver) ResolveManually(ctx context.Context, tenantID, recordID uuid.UUID, outcome, resolvedBy string, correlationID uuid.UUID) (*conflict.Resolution, error) {
	rec, err := r.records.FindByID(ctx, tenantID, recordID)
	if err != nil {
		return nil, err
	}
	if rec.IsResolved() {
		return rec.Resolution, nil
	}
	res, err := rec.Resolve(outcome, resolvedBy)
	if err != nil {
		return nil, err
	}
	if err := r.records.Save(ctx, rec); err != nil {
		return nil, err
	}
	r.publishResolved(ctx, rec, correlationID)
	return res, nil
}

// PassSummary aggregates one batch resolution pass
type PassSummary struct {
	Examined int
	Resolved int
	Pending  int
	Failed   int
}

// ResolveOpen runs one resolution pass over the tenant's open conflicts. A
// single record's failure never aborts the pass.
func (r *Resolver) ResolveOpen(ctx context.Context, tenantID, correlationID uuid.UUID) (*PassSummary, error) {
	open, err := r.records.FindOpenByTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	summary := &PassSummary{Examined: len(open)}
	for _, rec := range open {
		res, err := r.resolve(ctx, rec, correlationID)
		switch {
		case err != nil:
			summary.Failed++
			r.logger.Warn("conflict resolution failed",
				zap.String("conflict_id", rec.ID.String()),
				zap.Error(err),
			)
		case res == nil:
			summary.Pending++
		default:
			summary.Resolved++
		}
	}
	return summary, nil
}

// applyPlatformView overwrites local order state with the platform's values
// for every disagreeing field
func (r *Resolver) applyPlatformView(ctx context.Context, rec *conflict.Record) (string, error) {
	ord, err := r.orders.FindByID(ctx, rec.TenantID, rec.OrderID)
	if err != nil {
		return "", err
	}

	var applied []string
	courier, tracking := ord.Courier, ord.TrackingNumber
	for _, d := range rec.Deltas {
		switch d.Field {
		case "status":
			mapped := MapExternalStatus(channel.ExternalOrderStatus(d.ExternalValue))
			if err := ord.ApplyStatus(mapped); err != nil {
				return "", err
			}
			applied = append(applied, "status")
		case "payment_status":
			ord.ApplyPaymentStatus(order.PaymentStatus(strings.ToUpper(d.ExternalValue)))
			applied = append(applied, "payment_status")
		case "courier":
			courier = d.ExternalValue
			applied = append(applied, "courier")
		case "tracking_number":
			tracking = d.ExternalValue
			applied = append(applied, "tracking_number")
		}
	}
	if courier != ord.Courier || tracking != ord.TrackingNumber {
		ord.SetShipment(courier, tracking)
	}
	if err := r.orders.Save(ctx, ord); err != nil {
		return "", err
	}
	return "platform view applied to " + strings.Join(applied, ", "), nil
}

// mergeInventory requests corrected allocations for the disagreeing items. The
// merged quantity is the larger of the two views; the inventory collaborator
// applies the adjustment asynchronously.
func (r *Resolver) mergeInventory(ctx context.Context, rec *conflict.Record, correlationID uuid.UUID) (string, error) {
	allocations := make(map[string]string)
	for _, d := range rec.Deltas {
		if !strings.HasPrefix(d.Field, "item:") {
			continue
		}
		sku := strings.TrimPrefix(d.Field, "item:")
		local, err := decimal.NewFromString(d.LocalValue)
		if err != nil {
			continue
		}
		external, err := decimal.NewFromString(d.ExternalValue)
		if err != nil {
			continue
		}
		merged := local
		if external.GreaterThan(local) {
			merged = external
		}
		allocations[sku] = merged.String()
	}

	if r.publisher != nil && len(allocations) > 0 {
		if err := r.publisher.Publish(ctx, conflict.NewInventoryAdjustmentEvent(rec, correlationID, allocations)); err != nil {
			return "", err
		}
	}
	return "inventory adjustment requested", nil
}

// pushLocalStatus pushes the local order status out to the platform through
// the resilient executor
func (r *Resolver) pushLocalStatus(ctx context.Context, rec *conflict.Record) (string, error) {
	ch, err := r.channels.FindByID(ctx, rec.TenantID, rec.ChannelID)
	if err != nil {
		return "", err
	}
	platform, err := r.registry.GetPlatform(ch.PlatformCode)
	if err != nil {
		return "", err
	}

	ord, err := r.orders.FindByID(ctx, rec.TenantID, rec.OrderID)
	if err != nil {
		return "", err
	}
	target := MapLocalStatus(ord.Status)

	op := resilience.OperationDescriptor{
		TenantID:  rec.TenantID,
		ChannelID: rec.ChannelID,
		Queue:     resolutionQueue,
		Operation: "update_order_status",
		Payload: map[string]any{
			"order_id":      rec.OrderID.String(),
			"conflict_id":   rec.ID.String(),
			"target_status": target.String(),
		},
	}
	err = r.executor.Do(ctx, op, func(ctx context.Context) error {
		return platform.UpdateOrderStatus(ctx, rec.TenantID, rec.ChannelID, rec.OrderID, target)
	})
	if err != nil {
		return "", err
	}
	return "local status " + target.String() + " pushed to platform", nil
}

func (r *Resolver) publishResolved(ctx context.Context, rec *conflict.Record, correlationID uuid.UUID) {
	if r.publisher == nil {
		return
	}
	if err := r.publisher.Publish(ctx, conflict.NewResolvedEvent(rec, correlationID)); err != nil {
		r.logger.Error("failed to publish conflict resolved event",
			zap.String("conflict_id", rec.ID.String()),
			zap.Error(err),
		)
	}
}

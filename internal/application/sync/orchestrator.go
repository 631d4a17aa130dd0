package sync

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ordersync/backend/internal/domain/channel"
	"github.com/ordersync/backend/internal/domain/conflict"
	"github.com/ordersync/backend/internal/domain/order"
	"github.com/ordersync/backend/internal/domain/shared"
	"github.com/ordersync/backend/internal/infrastructure/ratelimit"
	"github.com/ordersync/backend/internal/infrastructure/resilience"
)

// syncQueue names the dead-letter queue for order sync calls
const syncQueue = "order-sync"

// RegionCalendar answers calendar questions for a region. Satisfied by the
// business calendar gate.
type RegionCalendar interface {
	IsOperationalWindow(region string, t time.Time) bool
	SeasonalFactor(region string, t time.Time) (float64, string)
}

// CallExecutor wraps outbound platform calls with retry and circuit breaking
type CallExecutor interface {
	Do(ctx context.Context, op resilience.OperationDescriptor, fn func(ctx context.Context) error) error
}

// ConflictSink receives per-order discrepancies found during a sync pass.
// Satisfied by the conflict detector.
type ConflictSink interface {
	Detect(ctx context.Context, ord *order.Order, ch *channel.Channel, snap *channel.ExternalOrderSnapshot, correlationID uuid.UUID) (*conflict.Record, error)
}

// RunReport is the outcome of one channel sync pass
type RunReport struct {
	TenantID       uuid.UUID
	ChannelID      uuid.UUID
	CorrelationID  uuid.UUID
	Total          int
	Synced         int
	Conflicted     int
	Failed         int
	Skipped        int
	SeasonalFactor float64
	SeasonalWindow string
	BusinessHours  bool
	// Deferred marks a pass skipped whole by the calendar gate. A deferred
	// pass is a success: the orders simply wait for the next window.
	Deferred   bool
	StartedAt  time.Time
	FinishedAt time.Time
}

// RunRecorder persists sync pass outcomes for reporting
type RunRecorder interface {
	Record(ctx context.Context, report *RunReport) error
}

// Config tunes the orchestrator
type Config struct {
	// GateEnabled defers sync passes outside the region's operational window
	GateEnabled bool
	// MaxChannelFanout bounds concurrent channel syncs per tenant
	MaxChannelFanout int
}

// DefaultConfig returns the default orchestrator configuration
func DefaultConfig() Config {
	return Config{
		GateEnabled:      true,
		MaxChannelFanout: 4,
	}
}

// Orchestrator drives sync passes: one channel at a time per pair, batched and
// paced by the channel's sync parameters, throttled harder during seasonal
// peaks. Batches within a pass run sequentially; channels of one tenant fan
// out concurrently.
type Orchestrator struct {
	channels  channel.ChannelRepository
	orders    order.Repository
	registry  channel.PlatformRegistry
	executor  CallExecutor
	limiter   *ratelimit.ChannelLimiter
	locker    ratelimit.SyncLocker
	calendar  RegionCalendar
	conflicts ConflictSink
	recorder  RunRecorder
	publisher shared.EventPublisher
	config    Config
	logger    *zap.Logger

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewOrchestrator creates a sync orchestrator
func NewOrchestrator(
	channels channel.ChannelRepository,
	orders order.Repository,
	registry channel.PlatformRegistry,
	executor CallExecutor,
	limiter *ratelimit.ChannelLimiter,
	locker ratelimit.SyncLocker,
	calendar RegionCalendar,
	conflicts ConflictSink,
	recorder RunRecorder,
	publisher shared.EventPublisher,
	config Config,
	logger *zap.Logger,
) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.MaxChannelFanout <= 0 {
		config.MaxChannelFanout = DefaultConfig().MaxChannelFanout
	}
	return &Orchestrator{
		channels:  channels,
		orders:    orders,
		registry:  registry,
		executor:  executor,
		limiter:   limiter,
		locker:    locker,
		calendar:  calendar,
		conflicts: conflicts,
		recorder:  recorder,
		publisher: publisher,
		config:    config,
		logger:    logger,
		now:       time.Now,
		sleep:     sleepContext,
	}
}

// SyncChannel runs one sync pass for a (tenant, channel) pair. The pair lock
// serializes passes across processes; batches inside the pass are sequential.
func (o *Orchestrator) SyncChannel(ctx context.Context, tenantID, channelID uuid.UUID) (*RunReport, error) {
	correlationID := uuid.New()
	logger := o.logger.With(
		zap.String("tenant_id", tenantID.String()),
		zap.String("channel_id", channelID.String()),
		zap.String("correlation_id", correlationID.String()),
	)

	ch, err := o.channels.FindByID(ctx, tenantID, channelID)
	if err != nil {
		return nil, err
	}
	if !ch.Active {
		return nil, channel.ErrChannelInactive
	}

	now := o.now()
	report := &RunReport{
		TenantID:      tenantID,
		ChannelID:     channelID,
		CorrelationID: correlationID,
		StartedAt:     now,
	}
	report.SeasonalFactor, report.SeasonalWindow = o.seasonalFactor(ch.Region, now)
	report.BusinessHours = o.businessHours(ch.Region, now)

	if o.config.GateEnabled && !report.BusinessHours {
		orders, err := o.orders.FindOpenByChannel(ctx, tenantID, channelID)
		if err != nil {
			return nil, err
		}
		report.Total = len(orders)
		report.Skipped = len(orders)
		report.Deferred = true
		logger.Info("sync pass deferred outside operational window",
			zap.String("region", ch.Region),
			zap.Int("orders", report.Total),
		)
		return o.finish(ctx, report, logger)
	}

	lock, err := o.locker.Acquire(ctx, tenantID, channelID)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := lock.Release(context.WithoutCancel(ctx)); err != nil {
			logger.Warn("failed to release sync lock", zap.Error(err))
		}
	}()

	platform, err := o.registry.GetPlatform(ch.PlatformCode)
	if err != nil {
		return nil, err
	}

	orders, err := o.orders.FindOpenByChannel(ctx, tenantID, channelID)
	if err != nil {
		return nil, err
	}
	report.Total = len(orders)
	if len(orders) == 0 {
		return o.finish(ctx, report, logger)
	}

	params := ch.Sync
	params.Normalize()
	batchSize := scaledBatchSize(params.BatchSize, report.SeasonalFactor)
	batchDelay := scaledDelay(params.RequestDelay, report.SeasonalFactor)
	if o.limiter != nil {
		o.limiter.Configure(tenantID, channelID, params.RequestsPerSecond, params.Burst, report.SeasonalFactor)
	}

	logger.Info("sync pass started",
		zap.String("platform", ch.PlatformCode.String()),
		zap.Int("orders", report.Total),
		zap.Int("batch_size", batchSize),
		zap.Duration("batch_delay", batchDelay),
		zap.Float64("seasonal_factor", report.SeasonalFactor),
	)

	for start := 0; start < len(orders); start += batchSize {
		end := start + batchSize
		if end > len(orders) {
			end = len(orders)
		}
		batch := orders[start:end]

		if start > 0 {
			if err := o.sleep(ctx, batchDelay); err != nil {
				return nil, err
			}
			// A channel deactivated mid-pass gets no further platform traffic;
			// the untouched remainder waits for reactivation
			fresh, err := o.channels.FindByID(ctx, tenantID, channelID)
			if err != nil {
				return nil, err
			}
			if !fresh.Active {
				report.Skipped += len(orders) - start
				logger.Info("channel deactivated mid-pass, stopping",
					zap.Int("remaining", len(orders)-start),
				)
				break
			}
			ch = fresh
		}
		if o.limiter != nil {
			if err := o.limiter.Wait(ctx, tenantID, channelID); err != nil {
				return nil, err
			}
		}

		err := o.syncBatch(ctx, ch, platform, batch, params.CallTimeout, correlationID, report, logger)
		if errors.Is(err, resilience.ErrCredentialRefreshRequired) {
			// Every further call would fail the same way; stop the pass and
			// count the untouched remainder as failed
			report.Failed += len(orders) - end
			logger.Error("credential refresh required, aborting sync pass", zap.Error(err))
			break
		}
	}

	return o.finish(ctx, report, logger)
}

// syncBatch issues one platform call for a batch and folds the outcomes into
// the report. A failed call counts the whole batch as failed; the pass
// continues with the next batch.
func (o *Orchestrator) syncBatch(ctx context.Context, ch *channel.Channel, platform channel.MarketplacePlatform, batch []*order.Order, callTimeout time.Duration, correlationID uuid.UUID, report *RunReport, logger *zap.Logger) error {
	ids := make([]uuid.UUID, 0, len(batch))
	byID := make(map[uuid.UUID]*order.Order, len(batch))
	for _, ord := range batch {
		ids = append(ids, ord.ID)
		byID[ord.ID] = ord
	}

	op := resilience.OperationDescriptor{
		TenantID:  ch.TenantID,
		ChannelID: ch.ID,
		Queue:     syncQueue,
		Operation: "sync_order_status",
		Payload: map[string]any{
			"correlation_id": correlationID.String(),
			"order_count":    len(ids),
		},
		CalendarSensitive: true,
		BusinessHoursOnly: o.config.GateEnabled,
	}

	var result *channel.SyncResult
	err := o.executor.Do(ctx, op, func(ctx context.Context) error {
		callCtx, cancel := context.WithTimeout(ctx, callTimeout)
		defer cancel()
		res, err := platform.SyncOrderStatus(callCtx, ch.TenantID, ch.ID, ids, channel.SyncOptions{IncludeItems: true})
		if err != nil {
			return err
		}
		result = res
		return nil
	})
	if err != nil {
		report.Failed += len(batch)
		logger.Warn("sync batch failed",
			zap.Int("batch_size", len(batch)),
			zap.Error(err),
		)
		return err
	}

	for _, outcome := range result.PerOrder {
		switch outcome.State {
		case channel.OrderOutcomeSynced:
			ord, ok := byID[outcome.OrderID]
			if !ok || outcome.Snapshot == nil {
				report.Synced++
				continue
			}
			rec, err := o.conflicts.Detect(ctx, ord, ch, outcome.Snapshot, correlationID)
			switch {
			case err != nil:
				report.Failed++
				logger.Warn("conflict detection failed",
					zap.String("order_id", ord.ID.String()),
					zap.Error(err),
				)
			case rec != nil:
				report.Conflicted++
			default:
				o.enrich(ctx, ord, outcome.Snapshot, logger)
				report.Synced++
			}
		case channel.OrderOutcomeSkipped:
			report.Skipped++
		default:
			report.Failed++
		}
	}
	return nil
}

// enrich copies shipment detail the platform knows but the local order lacks.
// Only empty local fields are filled; disagreements are conflicts, not
// enrichment.
func (o *Orchestrator) enrich(ctx context.Context, ord *order.Order, snap *channel.ExternalOrderSnapshot, logger *zap.Logger) {
	courier, tracking := ord.Courier, ord.TrackingNumber
	if courier == "" && snap.Courier != "" {
		courier = snap.Courier
	}
	if tracking == "" && snap.TrackingNumber != "" {
		tracking = snap.TrackingNumber
	}
	if courier == ord.Courier && tracking == ord.TrackingNumber {
		return
	}
	ord.SetShipment(courier, tracking)
	if err := o.orders.Save(ctx, ord); err != nil {
		logger.Warn("failed to save shipment enrichment",
			zap.String("order_id", ord.ID.String()),
			zap.Error(err),
		)
	}
}

func (o *Orchestrator) finish(ctx context.Context, report *RunReport, logger *zap.Logger) (*RunReport, error) {
	report.FinishedAt = o.now()

	if o.publisher != nil {
		firstOrderID := uuid.Nil
		event := order.NewSyncCompletedEvent(
			report.TenantID, report.ChannelID, firstOrderID, report.CorrelationID,
			report.Synced, report.Failed, report.Skipped,
			report.BusinessHours, report.SeasonalWindow,
		)
		if err := o.publisher.Publish(ctx, event); err != nil {
			logger.Error("failed to publish sync completed event", zap.Error(err))
		}
	}
	if o.recorder != nil {
		if err := o.recorder.Record(ctx, report); err != nil {
			logger.Error("failed to record sync pass", zap.Error(err))
		}
	}

	logger.Info("sync pass finished",
		zap.Int("total", report.Total),
		zap.Int("synced", report.Synced),
		zap.Int("conflicted", report.Conflicted),
		zap.Int("failed", report.Failed),
		zap.Int("skipped", report.Skipped),
		zap.Bool("deferred", report.Deferred),
		zap.Duration("elapsed", report.FinishedAt.Sub(report.StartedAt)),
	)
	return report, nil
}

// ChannelOutcome is one channel's result within a tenant-wide pass
type ChannelOutcome struct {
	ChannelID uuid.UUID
	Report    *RunReport
	Err       string
}

// TenantReport aggregates one tenant-wide sync pass
type TenantReport struct {
	TenantID uuid.UUID
	Outcomes []ChannelOutcome
}

// SyncTenant fans a sync pass out over every active channel of a tenant,
// bounded by the fanout limit. One channel's failure never aborts the others.
func (o *Orchestrator) SyncTenant(ctx context.Context, tenantID uuid.UUID) (*TenantReport, error) {
	channels, err := o.channels.FindActiveByTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	report := &TenantReport{
		TenantID: tenantID,
		Outcomes: make([]ChannelOutcome, len(channels)),
	}

	var g errgroup.Group
	g.SetLimit(o.config.MaxChannelFanout)
	var mu sync.Mutex
	for i := range channels {
		i := i
		channelID := channels[i].ID
		g.Go(func() error {
			run, err := o.SyncChannel(ctx, tenantID, channelID)
			outcome := ChannelOutcome{ChannelID: channelID, Report: run}
			if err != nil {
				outcome.Err = err.Error()
			}
			mu.Lock()
			report.Outcomes[i] = outcome
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return report, nil
}

func scaledBatchSize(base int, factor float64) int {
	if factor < 1 {
		factor = 1
	}
	scaled := int(float64(base) / factor)
	if scaled < 1 {
		scaled = 1
	}
	return scaled
}

func scaledDelay(base time.Duration, factor float64) time.Duration {
	if factor < 1 {
		factor = 1
	}
	return time.Duration(float64(base) * factor)
}

func (o *Orchestrator) seasonalFactor(region string, t time.Time) (float64, string) {
	if o.calendar == nil {
		return 1.0, ""
	}
	return o.calendar.SeasonalFactor(region, t)
}

func (o *Orchestrator) businessHours(region string, t time.Time) bool {
	if o.calendar == nil {
		return true
	}
	return o.calendar.IsOperationalWindow(region, t)
}

// sleepContext waits for d or until the context is cancelled
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	conflictapp "github.com/ordersync/backend/internal/application/conflict"
	fulfillmentapp "github.com/ordersync/backend/internal/application/fulfillment"
	routingapp "github.com/ordersync/backend/internal/application/routing"
	syncapp "github.com/ordersync/backend/internal/application/sync"
	"github.com/ordersync/backend/internal/infrastructure/calendar"
	"github.com/ordersync/backend/internal/infrastructure/config"
	"github.com/ordersync/backend/internal/infrastructure/event"
	"github.com/ordersync/backend/internal/infrastructure/logger"
	"github.com/ordersync/backend/internal/infrastructure/marketplace"
	"github.com/ordersync/backend/internal/infrastructure/persistence"
	"github.com/ordersync/backend/internal/infrastructure/ratelimit"
	"github.com/ordersync/backend/internal/infrastructure/resilience"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting order sync daemon",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.Duration("sync_interval", cfg.Sync.Interval),
	)

	// Database connection with zap-backed GORM logger
	gormLogLevel := logger.MapGormLogLevel(cfg.Log.Level)
	gormLog := logger.NewGormLogger(log, gormLogLevel)
	db, err := persistence.NewDatabaseWithLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	if err := db.Migrate(); err != nil {
		log.Fatal("Failed to migrate database schema", zap.Error(err))
	}
	log.Info("Database connected")

	// Redis backs the sync lock and the dead letter queue mirror
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer func() {
		if err := rdb.Close(); err != nil {
			log.Error("Error closing redis client", zap.Error(err))
		}
	}()

	// Repositories
	orderRepo := persistence.NewGormOrderRepository(db.DB)
	ruleRepo := persistence.NewGormRoutingRuleRepository(db.DB)
	conflictRepo := persistence.NewGormConflictRepository(db.DB)
	channelRepo := persistence.NewGormChannelRepository(db.DB)
	locationRepo := persistence.NewGormLocationRepository(db.DB)
	inventoryChecker := persistence.NewGormInventoryChecker(db.DB)
	syncRunRepo := persistence.NewGormSyncRunRepository(db.DB)

	// Event bus with the audit trail subscribed to everything
	eventBus := event.NewInMemoryEventBus(log)
	eventBus.Subscribe(event.NewAuditHandler(log.Named("audit")))
	if err := eventBus.Start(context.Background()); err != nil {
		log.Fatal("Failed to start event bus", zap.Error(err))
	}
	defer func() {
		if err := eventBus.Stop(context.Background()); err != nil {
			log.Error("Error stopping event bus", zap.Error(err))
		}
	}()

	// Resilience: dead letter sink, retries, per-pair circuit breakers
	var sink resilience.DeadLetterSink
	if cfg.Resilience.DeadLetterEnabled {
		sink = persistence.NewGormDeadLetterRepository(db.DB, rdb, log)
	}
	executor, err := resilience.NewExecutor(resilience.Config{
		MaxAttempts:        cfg.Resilience.MaxAttempts,
		NetworkBaseDelay:   cfg.Resilience.TransientBackoff,
		RateLimitBaseDelay: cfg.Resilience.RateLimitBackoff,
		MaxDelay:           cfg.Resilience.MaxBackoff,
		BreakerThreshold:   cfg.Resilience.FailureThreshold,
		BreakerCoolDown:    cfg.Resilience.BreakerCooldown,
	}, sink, log)
	if err != nil {
		log.Fatal("Failed to create resilience executor", zap.Error(err))
	}

	// Marketplace adapters
	registry := marketplace.NewRegistry()
	tokopediaCfg := &marketplace.TokopediaConfig{
		BaseURL:      cfg.Marketplace.Tokopedia.BaseURL,
		FsID:         cfg.Marketplace.Tokopedia.FsID,
		ShopID:       cfg.Marketplace.Tokopedia.ShopID,
		ClientID:     cfg.Marketplace.Tokopedia.ClientID,
		ClientSecret: cfg.Marketplace.Tokopedia.ClientSecret,
		AccessToken:  cfg.Marketplace.Tokopedia.AccessToken,
		Timeout:      cfg.Marketplace.Tokopedia.Timeout,
	}
	if tokopedia, err := marketplace.NewTokopediaAdapter(tokopediaCfg); err != nil {
		log.Warn("Tokopedia adapter not configured", zap.Error(err))
	} else {
		registry.Register(tokopedia)
		log.Info("Marketplace adapter registered", zap.String("platform", tokopedia.PlatformCode().String()))
	}

	// Business calendar gate
	gate := calendar.NewGate(nil, calendar.FromConfig(cfg.Calendar), log)

	// Pacing: per-pair rate limiter and cross-process sync lock
	limiter := ratelimit.NewChannelLimiter()
	locker := ratelimit.NewRedisSyncLocker(rdb, cfg.Sync.LockTTL)

	// Application services
	optimizer := fulfillmentapp.NewOptimizer(locationRepo, inventoryChecker, nil, fulfillmentapp.Config{
		BaseShippingRate:    cfg.Fulfillment.BaseShippingRate,
		HandlingCostPerLine: cfg.Fulfillment.HandlingCostPerLine,
		FullBonus:           cfg.Fulfillment.FullBonus,
		PartialBonus:        cfg.Fulfillment.PartialBonus,
		CostDivisor:         cfg.Fulfillment.CostDivisor,
		TimeDivisor:         cfg.Fulfillment.TimeDivisor,
		SameDayBonus:        cfg.Fulfillment.SameDayBonus,
		SameDayPriorityLE:   cfg.Fulfillment.SameDayPriorityLE,
	}, log)
	engine := routingapp.NewEngine(orderRepo, ruleRepo, optimizer, eventBus, routingapp.Config{
		BaseScore:       cfg.Routing.BaseScore,
		PriorityWeight:  cfg.Routing.PriorityWeight,
		RuleWeight:      cfg.Routing.RuleWeight,
		ValueDivisor:    cfg.Routing.ValueDivisor,
		ValueCap:        cfg.Routing.ValueCap,
		ProcessingHours: cfg.Routing.ProcessingHours,
		ItemThreshold:   cfg.Routing.ItemThreshold,
		ExtraItemHours:  cfg.Routing.ExtraItemHours,
	}, log)
	detector := conflictapp.NewDetector(conflictRepo, eventBus, gate, log)
	resolver := conflictapp.NewResolver(conflictRepo, orderRepo, channelRepo, registry, executor, eventBus, gate, log)

	orchestrator := syncapp.NewOrchestrator(
		channelRepo, orderRepo, registry, executor,
		limiter, locker, gate, detector,
		&syncRunRecorder{repo: syncRunRepo},
		eventBus,
		syncapp.Config{
			GateEnabled:      cfg.Calendar.GateEnabled,
			MaxChannelFanout: cfg.Sync.MaxChannelFanout,
		},
		log,
	)

	// Sync cycle loop with graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(cfg.Sync.Interval)
	defer ticker.Stop()

	cycle := &syncCycle{
		channels:     channelRepo,
		orders:       orderRepo,
		engine:       engine,
		orchestrator: orchestrator,
		resolver:     resolver,
		routeLimit:   cfg.Routing.MaxBulkOrders,
		log:          log,
	}

	log.Info("Sync daemon started", zap.Duration("interval", cfg.Sync.Interval))
	cycle.run(ctx)

	for {
		select {
		case <-ticker.C:
			cycle.run(ctx)
		case sig := <-quit:
			log.Info("Shutting down sync daemon", zap.String("signal", sig.String()))
			cancel()
			return
		}
	}
}

// syncCycle runs one full daemon cycle per tick: route unassigned orders,
// sync every tenant's channels, then resolve open conflicts
type syncCycle struct {
	channels     *persistence.GormChannelRepository
	orders       *persistence.GormOrderRepository
	engine       *routingapp.Engine
	orchestrator *syncapp.Orchestrator
	resolver     *conflictapp.Resolver
	routeLimit   int
	log          *zap.Logger
}

func (c *syncCycle) run(ctx context.Context) {
	tenantIDs, err := c.channels.FindActiveTenantIDs(ctx)
	if err != nil {
		c.log.Error("Failed to enumerate tenants", zap.Error(err))
		return
	}

	for _, tenantID := range tenantIDs {
		c.routeUnassigned(ctx, tenantID)
		c.syncTenant(ctx, tenantID)
		c.resolveConflicts(ctx, tenantID)
	}
}

func (c *syncCycle) routeUnassigned(ctx context.Context, tenantID uuid.UUID) {
	orders, err := c.orders.FindUnassignedByTenant(ctx, tenantID, c.routeLimit)
	if err != nil {
		c.log.Error("Failed to load unassigned orders",
			zap.String("tenant_id", tenantID.String()),
			zap.Error(err),
		)
		return
	}
	if len(orders) == 0 {
		return
	}

	ids := make([]uuid.UUID, 0, len(orders))
	for _, ord := range orders {
		ids = append(ids, ord.ID)
	}
	result, err := c.engine.RouteBulk(ctx, tenantID, ids)
	if err != nil {
		c.log.Error("Bulk routing failed",
			zap.String("tenant_id", tenantID.String()),
			zap.Error(err),
		)
		return
	}
	c.log.Info("Routing pass finished",
		zap.String("tenant_id", tenantID.String()),
		zap.Int("routed", result.ProcessedCount),
		zap.Int("failed", result.FailedCount),
	)
}

func (c *syncCycle) syncTenant(ctx context.Context, tenantID uuid.UUID) {
	report, err := c.orchestrator.SyncTenant(ctx, tenantID)
	if err != nil {
		c.log.Error("Tenant sync failed",
			zap.String("tenant_id", tenantID.String()),
			zap.Error(err),
		)
		return
	}
	for _, outcome := range report.Outcomes {
		if outcome.Err != "" {
			c.log.Warn("Channel sync failed",
				zap.String("tenant_id", tenantID.String()),
				zap.String("channel_id", outcome.ChannelID.String()),
				zap.String("error", outcome.Err),
			)
		}
	}
}

func (c *syncCycle) resolveConflicts(ctx context.Context, tenantID uuid.UUID) {
	summary, err := c.resolver.ResolveOpen(ctx, tenantID, uuid.New())
	if err != nil {
		c.log.Error("Conflict resolution pass failed",
			zap.String("tenant_id", tenantID.String()),
			zap.Error(err),
		)
		return
	}
	if summary.Examined > 0 {
		c.log.Info("Conflict resolution pass finished",
			zap.String("tenant_id", tenantID.String()),
			zap.Int("examined", summary.Examined),
			zap.Int("resolved", summary.Resolved),
			zap.Int("pending", summary.Pending),
			zap.Int("failed", summary.Failed),
		)
	}
}

// syncRunRecorder adapts the persistence layer to the orchestrator's recorder
// port
type syncRunRecorder struct {
	repo *persistence.GormSyncRunRepository
}

func (r *syncRunRecorder) Record(ctx context.Context, report *syncapp.RunReport) error {
	return r.repo.Record(ctx, &persistence.SyncRunRecord{
		TenantID:       report.TenantID,
		ChannelID:      report.ChannelID,
		CorrelationID:  report.CorrelationID,
		Total:          report.Total,
		Synced:         report.Synced,
		Conflicted:     report.Conflicted,
		Failed:         report.Failed,
		Skipped:        report.Skipped,
		SeasonalFactor: report.SeasonalFactor,
		Deferred:       report.Deferred,
		StartedAt:      report.StartedAt,
		FinishedAt:     report.FinishedAt,
	})
}

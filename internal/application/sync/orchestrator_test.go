package sync

import (
	"context"
	"fmt"
	stdsync "sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ordersync/backend/internal/domain/channel"
	"github.com/ordersync/backend/internal/domain/conflict"
	"github.com/ordersync/backend/internal/domain/order"
	"github.com/ordersync/backend/internal/domain/shared"
	"github.com/ordersync/backend/internal/infrastructure/marketplace"
	"github.com/ordersync/backend/internal/infrastructure/ratelimit"
	"github.com/ordersync/backend/internal/infrastructure/resilience"
)

type fakeChannelRepo struct {
	channels map[uuid.UUID]*channel.Channel
}

func newFakeChannelRepo(channels ...*channel.Channel) *fakeChannelRepo {
	r := &fakeChannelRepo{channels: make(map[uuid.UUID]*channel.Channel)}
	for _, ch := range channels {
		r.channels[ch.ID] = ch
	}
	return r
}

func (r *fakeChannelRepo) FindByID(_ context.Context, tenantID, channelID uuid.UUID) (*channel.Channel, error) {
	ch, ok := r.channels[channelID]
	if !ok || ch.TenantID != tenantID {
		return nil, channel.ErrChannelNotFound
	}
	return ch, nil
}

func (r *fakeChannelRepo) FindActiveByTenant(_ context.Context, tenantID uuid.UUID) ([]channel.Channel, error) {
	var out []channel.Channel
	for _, ch := range r.channels {
		if ch.TenantID == tenantID && ch.Active {
			out = append(out, *ch)
		}
	}
	return out, nil
}

func (r *fakeChannelRepo) Save(_ context.Context, _ *channel.Channel) error { return nil }

type fakeOrderRepo struct {
	mu     stdsync.Mutex
	orders []*order.Order
	saved  int
}

func (r *fakeOrderRepo) FindByID(_ context.Context, tenantID, orderID uuid.UUID) (*order.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, o := range r.orders {
		if o.ID == orderID && o.TenantID == tenantID {
			return o, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *fakeOrderRepo) FindByIDs(_ context.Context, _ uuid.UUID, _ []uuid.UUID) ([]*order.Order, error) {
	return nil, nil
}

func (r *fakeOrderRepo) FindOpenByChannel(_ context.Context, tenantID, channelID uuid.UUID) ([]*order.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*order.Order
	for _, o := range r.orders {
		if o.TenantID == tenantID && o.ChannelID == channelID && !o.Status.IsTerminal() {
			out = append(out, o)
		}
	}
	return out, nil
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

// fakeCalendar is a canned-answer region calendar
type fakeCalendar struct {
	businessHours bool
	factor        float64
	window        string
}

func (c *fakeCalendar) IsOperationalWindow(string, time.Time) bool { return c.businessHours }

func (c *fakeCalendar) SeasonalFactor(string, time.Time) (float64, string) {
	if c.factor == 0 {
		return 1.0, ""
	}
	return c.factor, c.window
}

// stubExecutor mimics the resilience executor's error translation without its
// retry pauses
type stubExecutor struct{}

func (stubExecutor) Do(ctx context.Context, _ resilience.OperationDescriptor, fn func(ctx context.Context) error) error {
	err := fn(ctx)
	if err != nil && resilience.Classify(err) == resilience.ClassAuth {
		return fmt.Errorf("%w: %v", resilience.ErrCredentialRefreshRequired, err)
	}
	return err
}

// fakeSink flags scripted orders as conflicted
type fakeSink struct {
	mu         stdsync.Mutex
	conflicted map[uuid.UUID]bool
	detections int
}

func (s *fakeSink) Detect(_ context.Context, ord *order.Order, _ *channel.Channel, _ *channel.ExternalOrderSnapshot, _ uuid.UUID) (*conflict.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.detections++
	if s.conflicted[ord.ID] {
		return &conflict.Record{OrderID: ord.ID}, nil
	}
	return nil, nil
}

type captureRecorder struct {
	mu      stdsync.Mutex
	reports []*RunReport
}

func (r *captureRecorder) Record(_ context.Context, report *RunReport) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reports = append(r.reports, report)
	return nil
}

type syncFixture struct {
	orchestrator *Orchestrator
	adapter      *marketplace.MemoryAdapter
	orders       *fakeOrderRepo
	sink         *fakeSink
	recorder     *captureRecorder
	calendar     *fakeCalendar
	tenantID     uuid.UUID
	ch           *channel.Channel
}

func newSyncFixture(t *testing.T, config Config) *syncFixture {
	tenantID := uuid.New()
	ch, err := channel.NewChannel(tenantID, "Tokopedia Store", channel.PlatformCodeTokopedia, "ID")
	require.NoError(t, err)
	ch.Sync.BatchSize = 2
	ch.Sync.RequestDelay = time.Millisecond

	adapter := marketplace.NewMemoryAdapter(channel.PlatformCodeTokopedia)
	registry := marketplace.NewRegistry()
	registry.Register(adapter)

	f := &syncFixture{
		adapter:  adapter,
		orders:   &fakeOrderRepo{},
		sink:     &fakeSink{conflicted: make(map[uuid.UUID]bool)},
		recorder: &captureRecorder{},
		calendar: &fakeCalendar{businessHours: true},
		tenantID: tenantID,
		ch:       ch,
	}
	f.orchestrator = NewOrchestrator(
		newFakeChannelRepo(ch), f.orders, registry, stubExecutor{},
		nil, ratelimit.NewLocalSyncLocker(),
		f.calendar, f.sink, f.recorder, nil,
		config, nil,
	)
	// No real pauses between batches
	f.orchestrator.sleep = func(ctx context.Context, d time.Duration) error { return ctx.Err() }
	return f
}

func (f *syncFixture) addOrder(t *testing.T, n int) *order.Order {
	o, err := order.New(f.tenantID, f.ch.ID,
		fmt.Sprintf("ORD-%03d", n), fmt.Sprintf("TKP-%03d", n),
		decimal.NewFromInt(250000),
		[]order.Item{{SKU: "SKU-001", Quantity: decimal.NewFromInt(1)}})
	require.NoError(t, err)
	f.orders.orders = append(f.orders.orders, o)
	return o
}

func (f *syncFixture) script(o *order.Order, status channel.ExternalOrderStatus) {
	f.adapter.SetSnapshot(o.ID, &channel.ExternalOrderSnapshot{
		ExternalOrderID: o.ExternalOrderID,
		Status:          status,
		UpdatedAt:       o.UpdatedAt,
	})
}

func TestOrchestrator_SyncChannel(t *testing.T) {
	f := newSyncFixture(t, DefaultConfig())

	clean := f.addOrder(t, 1)
	conflicted := f.addOrder(t, 2)
	f.addOrder(t, 3) // missing: never scripted below

	f.script(clean, channel.ExternalStatusPending)
	f.script(conflicted, channel.ExternalStatusShipped)
	// missing is never scripted: the platform skips it
	f.sink.conflicted[conflicted.ID] = true

	report, err := f.orchestrator.SyncChannel(context.Background(), f.tenantID, f.ch.ID)
	require.NoError(t, err)

	assert.Equal(t, 3, report.Total)
	assert.Equal(t, 1, report.Synced)
	assert.Equal(t, 1, report.Conflicted)
	assert.Equal(t, 1, report.Skipped)
	assert.Zero(t, report.Failed)
	assert.False(t, report.Deferred)
	assert.Equal(t, 2, f.sink.detections)
	// Batch size 2 over 3 orders: two platform calls
	assert.Equal(t, 2, f.adapter.Calls())
	require.Len(t, f.recorder.reports, 1)
	assert.Same(t, report, f.recorder.reports[0])
}

func TestOrchestrator_GateDefersOutsideWindow(t *testing.T) {
	f := newSyncFixture(t, DefaultConfig())
	f.calendar.businessHours = false
	f.addOrder(t, 1)
	f.addOrder(t, 2)

	report, err := f.orchestrator.SyncChannel(context.Background(), f.tenantID, f.ch.ID)
	require.NoError(t, err)

	assert.True(t, report.Deferred)
	assert.Equal(t, 2, report.Total)
	assert.Equal(t, 2, report.Skipped)
	assert.Zero(t, report.Synced)
	// No platform traffic while deferred
	assert.Zero(t, f.adapter.Calls())
	require.Len(t, f.recorder.reports, 1)
}

func TestOrchestrator_GateDisabledSyncsAnyway(t *testing.T) {
	f := newSyncFixture(t, Config{GateEnabled: false, MaxChannelFanout: 2})
	f.calendar.businessHours = false
	o := f.addOrder(t, 1)
	f.script(o, channel.ExternalStatusPending)

	report, err := f.orchestrator.SyncChannel(context.Background(), f.tenantID, f.ch.ID)
	require.NoError(t, err)

	assert.False(t, report.Deferred)
	assert.False(t, report.BusinessHours)
	assert.Equal(t, 1, report.Synced)
	assert.Equal(t, 1, f.adapter.Calls())
}

func TestOrchestrator_Enrichment(t *testing.T) {
	f := newSyncFixture(t, DefaultConfig())
	o := f.addOrder(t, 1)

	f.adapter.SetSnapshot(o.ID, &channel.ExternalOrderSnapshot{
		ExternalOrderID: o.ExternalOrderID,
		Status:          channel.ExternalStatusPending,
		Courier:         "JNE",
		TrackingNumber:  "JNE-12345",
		UpdatedAt:       o.UpdatedAt,
	})

	report, err := f.orchestrator.SyncChannel(context.Background(), f.tenantID, f.ch.ID)
	require.NoError(t, err)

	assert.Equal(t, 1, report.Synced)
	assert.Equal(t, "JNE", o.Courier)
	assert.Equal(t, "JNE-12345", o.TrackingNumber)
	assert.Equal(t, 1, f.orders.saved)
}

func TestOrchestrator_BatchFailureContinuesPass(t *testing.T) {
	f := newSyncFixture(t, DefaultConfig())
	f.ch.Sync.BatchSize = 1

	first := f.addOrder(t, 1)
	second := f.addOrder(t, 2)
	f.script(first, channel.ExternalStatusPending)
	f.script(second, channel.ExternalStatusPending)
	f.adapter.FailNext = 1
	f.adapter.Err = channel.ErrPlatformUnavailable

	report, err := f.orchestrator.SyncChannel(context.Background(), f.tenantID, f.ch.ID)
	require.NoError(t, err)

	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 1, report.Synced)
	assert.Equal(t, 2, f.adapter.Calls())
}

func TestOrchestrator_CredentialFailureAbortsPass(t *testing.T) {
	f := newSyncFixture(t, DefaultConfig())
	f.ch.Sync.BatchSize = 1

	for i := 1; i <= 3; i++ {
		f.script(f.addOrder(t, i), channel.ExternalStatusPending)
	}
	f.adapter.FailNext = 1
	f.adapter.Err = channel.ErrPlatformAuthFailed

	report, err := f.orchestrator.SyncChannel(context.Background(), f.tenantID, f.ch.ID)
	require.NoError(t, err)

	// First batch fails on auth; the untouched remainder counts as failed too
	assert.Equal(t, 3, report.Failed)
	assert.Zero(t, report.Synced)
	assert.Equal(t, 1, f.adapter.Calls())
}

func TestOrchestrator_DeactivationMidPassStopsTraffic(t *testing.T) {
	f := newSyncFixture(t, DefaultConfig())
	f.ch.Sync.BatchSize = 1

	for i := 1; i <= 3; i++ {
		f.script(f.addOrder(t, i), channel.ExternalStatusPending)
	}
	// The channel is switched off during the pause before the second batch
	f.orchestrator.sleep = func(context.Context, time.Duration) error {
		f.ch.Deactivate()
		return nil
	}

	report, err := f.orchestrator.SyncChannel(context.Background(), f.tenantID, f.ch.ID)
	require.NoError(t, err)

	// Only the first batch reached the platform; the remainder is skipped
	assert.Equal(t, 1, report.Synced)
	assert.Equal(t, 2, report.Skipped)
	assert.Zero(t, report.Failed)
	assert.Equal(t, 1, f.adapter.Calls())
	require.Len(t, f.recorder.reports, 1)
}

func TestOrchestrator_InactiveChannel(t *testing.T) {
	f := newSyncFixture(t, DefaultConfig())
	f.ch.Deactivate()

	_, err := f.orchestrator.SyncChannel(context.Background(), f.tenantID, f.ch.ID)
	assert.ErrorIs(t, err, channel.ErrChannelInactive)
}

func TestOrchestrator_SeasonalThrottling(t *testing.T) {
	f := newSyncFixture(t, DefaultConfig())
	f.calendar.factor = 2.0
	f.calendar.window = "harbolnas"
	f.ch.Sync.BatchSize = 4

	for i := 1; i <= 4; i++ {
		f.script(f.addOrder(t, i), channel.ExternalStatusPending)
	}

	report, err := f.orchestrator.SyncChannel(context.Background(), f.tenantID, f.ch.ID)
	require.NoError(t, err)

	assert.Equal(t, 2.0, report.SeasonalFactor)
	assert.Equal(t, "harbolnas", report.SeasonalWindow)
	// Batch size halves under factor 2: four orders take two calls
	assert.Equal(t, 2, f.adapter.Calls())
}

func TestOrchestrator_SyncTenant(t *testing.T) {
	f := newSyncFixture(t, DefaultConfig())
	o := f.addOrder(t, 1)
	f.script(o, channel.ExternalStatusPending)

	// Second channel's platform has no registered adapter
	orphan, err := channel.NewChannel(f.tenantID, "Shopee Store", channel.PlatformCodeShopee, "ID")
	require.NoError(t, err)
	channels := newFakeChannelRepo(f.ch, orphan)
	f.orchestrator.channels = channels

	report, err := f.orchestrator.SyncTenant(context.Background(), f.tenantID)
	require.NoError(t, err)
	require.Len(t, report.Outcomes, 2)

	byChannel := make(map[uuid.UUID]ChannelOutcome, len(report.Outcomes))
	for _, outcome := range report.Outcomes {
		byChannel[outcome.ChannelID] = outcome
	}
	good := byChannel[f.ch.ID]
	require.NotNil(t, good.Report)
	assert.Empty(t, good.Err)
	assert.Equal(t, 1, good.Report.Synced)

	bad := byChannel[orphan.ID]
	assert.Nil(t, bad.Report)
	assert.NotEmpty(t, bad.Err)
}

func TestScaledBatchSize(t *testing.T) {
	assert.Equal(t, 20, scaledBatchSize(20, 1.0))
	assert.Equal(t, 10, scaledBatchSize(20, 2.0))
	assert.Equal(t, 13, scaledBatchSize(20, 1.5))
	// Never below one order per batch
	assert.Equal(t, 1, scaledBatchSize(2, 10.0))
	// A factor below one never speeds the pass up
	assert.Equal(t, 20, scaledBatchSize(20, 0.5))
}

func TestScaledDelay(t *testing.T) {
	assert.Equal(t, time.Second, scaledDelay(time.Second, 1.0))
	assert.Equal(t, 2*time.Second, scaledDelay(time.Second, 2.0))
	assert.Equal(t, time.Second, scaledDelay(time.Second, 0.5))
}

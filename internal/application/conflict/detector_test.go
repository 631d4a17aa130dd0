package conflict

import (
	"context"
	"sync"
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
)

type fakeRecordRepo struct {
	mu      sync.Mutex
	records map[uuid.UUID]*conflict.Record
}

func newFakeRecordRepo() *fakeRecordRepo {
	return &fakeRecordRepo{records: make(map[uuid.UUID]*conflict.Record)}
}

func (r *fakeRecordRepo) FindByID(_ context.Context, tenantID, recordID uuid.UUID) (*conflict.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[recordID]
	if !ok || rec.TenantID != tenantID {
		return nil, shared.ErrNotFound
	}
	return rec, nil
}

func (r *fakeRecordRepo) FindOpenByOrder(_ context.Context, tenantID, orderID uuid.UUID) ([]*conflict.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*conflict.Record
	for _, rec := range r.records {
		if rec.TenantID == tenantID && rec.OrderID == orderID && !rec.IsResolved() {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (r *fakeRecordRepo) FindOpenByTenant(_ context.Context, tenantID uuid.UUID) ([]*conflict.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*conflict.Record
	for _, rec := range r.records {
		if rec.TenantID == tenantID && !rec.IsResolved() {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (r *fakeRecordRepo) Save(_ context.Context, rec *conflict.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[rec.ID] = rec
	return nil
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

// fakeCalendar is a canned-answer region calendar
type fakeCalendar struct {
	businessHours bool
	factor        float64
	window        string
	observance    bool
}

func (c *fakeCalendar) IsOperationalWindow(string, time.Time) bool { return c.businessHours }

func (c *fakeCalendar) SeasonalFactor(string, time.Time) (float64, string) {
	if c.factor == 0 {
		return 1.0, ""
	}
	return c.factor, c.window
}

func (c *fakeCalendar) IsObservanceWindow(string, time.Time) bool { return c.observance }

func newDetectorOrder(t *testing.T, tenantID, channelID uuid.UUID) *order.Order {
	o, err := order.New(tenantID, channelID, "ORD-2026-001", "TKP-889123",
		decimal.NewFromInt(250000),
		[]order.Item{
			{SKU: "SKU-001", Quantity: decimal.NewFromInt(2)},
			{SKU: "SKU-002", Quantity: decimal.NewFromInt(1)},
		})
	require.NoError(t, err)
	return o
}

func newDetectorChannel(t *testing.T, tenantID uuid.UUID) *channel.Channel {
	ch, err := channel.NewChannel(tenantID, "Tokopedia Store", channel.PlatformCodeTokopedia, "ID")
	require.NoError(t, err)
	return ch
}

func agreeingSnapshot(o *order.Order) *channel.ExternalOrderSnapshot {
	return &channel.ExternalOrderSnapshot{
		ExternalOrderID: o.ExternalOrderID,
		PlatformCode:    channel.PlatformCodeTokopedia,
		Status:          channel.ExternalOrderStatus(o.Status),
		UpdatedAt:       o.UpdatedAt,
	}
}

func TestDetector_NoDeltas(t *testing.T) {
	tenantID := uuid.New()
	ch := newDetectorChannel(t, tenantID)
	ord := newDetectorOrder(t, tenantID, ch.ID)
	records := newFakeRecordRepo()

	d := NewDetector(records, &capturePublisher{}, &fakeCalendar{}, nil)

	rec, err := d.Detect(context.Background(), ord, ch, agreeingSnapshot(ord), uuid.New())
	require.NoError(t, err)
	assert.Nil(t, rec)
	assert.Empty(t, records.records)
}

func TestDetector_StatusMismatch(t *testing.T) {
	tenantID := uuid.New()
	ch := newDetectorChannel(t, tenantID)
	ord := newDetectorOrder(t, tenantID, ch.ID)
	records := newFakeRecordRepo()
	pub := &capturePublisher{}

	d := NewDetector(records, pub, &fakeCalendar{businessHours: true}, nil)

	snap := agreeingSnapshot(ord)
	snap.Status = channel.ExternalStatusShipped

	rec, err := d.Detect(context.Background(), ord, ch, snap, uuid.New())
	require.NoError(t, err)
	require.NotNil(t, rec)

	assert.Equal(t, conflict.TypeStatusMismatch, rec.Type)
	assert.Equal(t, conflict.StateClassified, rec.State)
	assert.Equal(t, "PENDING", rec.LocalStatus)
	assert.Equal(t, "SHIPPED", rec.ExternalStatus)
	assert.True(t, rec.Impact.CustomerFacing)
	assert.True(t, rec.Context.BusinessHours)
	require.Len(t, rec.Deltas, 1)
	assert.Equal(t, "status", rec.Deltas[0].Field)
	assert.Equal(t, []string{conflict.EventTypeConflictDetected}, pub.types())
}

func TestDetector_PaidMapsToConfirmed(t *testing.T) {
	tenantID := uuid.New()
	ch := newDetectorChannel(t, tenantID)
	ord := newDetectorOrder(t, tenantID, ch.ID)
	require.NoError(t, ord.ApplyStatus(order.StatusConfirmed))

	d := NewDetector(newFakeRecordRepo(), nil, &fakeCalendar{}, nil)

	snap := agreeingSnapshot(ord)
	snap.Status = channel.ExternalStatusPaid

	rec, err := d.Detect(context.Background(), ord, ch, snap, uuid.New())
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestDetector_PaymentOutranksStatus(t *testing.T) {
	tenantID := uuid.New()
	ch := newDetectorChannel(t, tenantID)
	ord := newDetectorOrder(t, tenantID, ch.ID)

	d := NewDetector(newFakeRecordRepo(), nil, &fakeCalendar{}, nil)

	snap := agreeingSnapshot(ord)
	snap.Status = channel.ExternalStatusShipped
	snap.PaymentStatus = "PAID"

	rec, err := d.Detect(context.Background(), ord, ch, snap, uuid.New())
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, conflict.TypePaymentInconsistency, rec.Type)
	assert.True(t, rec.Impact.AffectsPayment)
	assert.Len(t, rec.Deltas, 2)
}

func TestDetector_PaidUnpaidDivergenceIsCritical(t *testing.T) {
	tenantID := uuid.New()
	ch := newDetectorChannel(t, tenantID)
	ord := newDetectorOrder(t, tenantID, ch.ID)
	ord.ApplyPaymentStatus(order.PaymentStatusPaid)

	d := NewDetector(newFakeRecordRepo(), nil, &fakeCalendar{}, nil)

	// The platform thinks the money never moved; the two views disagree on
	// whether the order is actually paid
	snap := agreeingSnapshot(ord)
	snap.PaymentStatus = "PENDING"

	rec, err := d.Detect(context.Background(), ord, ch, snap, uuid.New())
	require.NoError(t, err)
	require.NotNil(t, rec)

	assert.Equal(t, conflict.TypePaymentInconsistency, rec.Type)
	assert.True(t, rec.Impact.Critical)
	assert.True(t, rec.Impact.AffectsPayment)
	assert.Equal(t, conflict.SeverityCritical, rec.Severity)
	assert.Equal(t, conflict.StrategyManualReview, conflict.SelectStrategy(rec, nil))
}

func TestDetector_UnsettledPaymentDivergenceStaysRoutine(t *testing.T) {
	tenantID := uuid.New()
	ch := newDetectorChannel(t, tenantID)
	ord := newDetectorOrder(t, tenantID, ch.ID)
	ord.ApplyPaymentStatus(order.PaymentStatusUnpaid)

	d := NewDetector(newFakeRecordRepo(), nil, &fakeCalendar{}, nil)

	// UNPAID against PENDING: neither side claims the money moved
	snap := agreeingSnapshot(ord)
	snap.PaymentStatus = "PENDING"

	rec, err := d.Detect(context.Background(), ord, ch, snap, uuid.New())
	require.NoError(t, err)
	require.NotNil(t, rec)

	assert.Equal(t, conflict.TypePaymentInconsistency, rec.Type)
	assert.False(t, rec.Impact.Critical)
	assert.Equal(t, conflict.StrategyBusinessRuleBased, conflict.SelectStrategy(rec, nil))
}

func TestDetector_ShippingDiscrepancy(t *testing.T) {
	tenantID := uuid.New()
	ch := newDetectorChannel(t, tenantID)
	ord := newDetectorOrder(t, tenantID, ch.ID)
	ord.SetShipment("JNE", "JNE-12345")

	d := NewDetector(newFakeRecordRepo(), nil, &fakeCalendar{}, nil)

	snap := agreeingSnapshot(ord)
	snap.Courier = "SiCepat"
	snap.TrackingNumber = "SC-99999"

	rec, err := d.Detect(context.Background(), ord, ch, snap, uuid.New())
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, conflict.TypeShippingDiscrepancy, rec.Type)
	assert.True(t, rec.Impact.AffectsShipping)
	assert.Len(t, rec.Deltas, 2)
}

func TestDetector_ShippingFieldsIgnoredWhenLocalEmpty(t *testing.T) {
	tenantID := uuid.New()
	ch := newDetectorChannel(t, tenantID)
	ord := newDetectorOrder(t, tenantID, ch.ID)

	d := NewDetector(newFakeRecordRepo(), nil, &fakeCalendar{}, nil)

	// Local order has no shipment info yet; the snapshot carrying some is
	// enrichment, not a conflict
	snap := agreeingSnapshot(ord)
	snap.Courier = "JNE"
	snap.TrackingNumber = "JNE-12345"

	rec, err := d.Detect(context.Background(), ord, ch, snap, uuid.New())
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestDetector_InventoryConflict(t *testing.T) {
	tenantID := uuid.New()
	ch := newDetectorChannel(t, tenantID)
	ord := newDetectorOrder(t, tenantID, ch.ID)

	d := NewDetector(newFakeRecordRepo(), nil, &fakeCalendar{}, nil)

	snap := agreeingSnapshot(ord)
	snap.Items = []channel.ExternalItemSnapshot{
		{SKU: "SKU-001", Quantity: decimal.NewFromInt(3)}, // local has 2
		{SKU: "SKU-003", Quantity: decimal.NewFromInt(1)}, // not local
	}
	// local SKU-002 missing from snapshot

	rec, err := d.Detect(context.Background(), ord, ch, snap, uuid.New())
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, conflict.TypeInventoryConflict, rec.Type)

	fields := make(map[string]conflict.FieldDelta, len(rec.Deltas))
	for _, delta := range rec.Deltas {
		fields[delta.Field] = delta
	}
	require.Len(t, fields, 3)
	assert.Equal(t, "2", fields["item:SKU-001"].LocalValue)
	assert.Equal(t, "3", fields["item:SKU-001"].ExternalValue)
	assert.Equal(t, "0", fields["item:SKU-003"].LocalValue)
	assert.Equal(t, "0", fields["item:SKU-002"].ExternalValue)
}

func TestDetector_TimingConflict(t *testing.T) {
	tenantID := uuid.New()
	ch := newDetectorChannel(t, tenantID)
	ord := newDetectorOrder(t, tenantID, ch.ID)

	d := NewDetector(newFakeRecordRepo(), nil, &fakeCalendar{observance: true}, nil)

	snap := agreeingSnapshot(ord)
	snap.UpdatedAt = ord.UpdatedAt.Add(-25 * time.Hour)

	rec, err := d.Detect(context.Background(), ord, ch, snap, uuid.New())
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, conflict.TypeTimingConflict, rec.Type)
	assert.True(t, rec.Context.ObservanceWindow)
	require.Len(t, rec.Deltas, 1)
	assert.Equal(t, "updated_at", rec.Deltas[0].Field)
}

func TestDetector_TimingIgnoredWithinWindow(t *testing.T) {
	tenantID := uuid.New()
	ch := newDetectorChannel(t, tenantID)
	ord := newDetectorOrder(t, tenantID, ch.ID)

	d := NewDetector(newFakeRecordRepo(), nil, &fakeCalendar{}, nil)

	snap := agreeingSnapshot(ord)
	snap.UpdatedAt = ord.UpdatedAt.Add(-23 * time.Hour)

	rec, err := d.Detect(context.Background(), ord, ch, snap, uuid.New())
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestDetector_TimingIgnoredForTerminalOrders(t *testing.T) {
	tenantID := uuid.New()
	ch := newDetectorChannel(t, tenantID)
	ord := newDetectorOrder(t, tenantID, ch.ID)
	require.NoError(t, ord.ApplyStatus(order.StatusDelivered))

	d := NewDetector(newFakeRecordRepo(), nil, &fakeCalendar{}, nil)

	snap := agreeingSnapshot(ord)
	snap.Status = channel.ExternalStatusDelivered
	snap.UpdatedAt = ord.UpdatedAt.Add(-48 * time.Hour)

	rec, err := d.Detect(context.Background(), ord, ch, snap, uuid.New())
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestDetector_CrossTerminalDivergenceIsCritical(t *testing.T) {
	tenantID := uuid.New()
	ch := newDetectorChannel(t, tenantID)
	ord := newDetectorOrder(t, tenantID, ch.ID)
	require.NoError(t, ord.ApplyStatus(order.StatusCancelled))

	d := NewDetector(newFakeRecordRepo(), nil, &fakeCalendar{}, nil)

	snap := agreeingSnapshot(ord)
	snap.Status = channel.ExternalStatusDelivered

	rec, err := d.Detect(context.Background(), ord, ch, snap, uuid.New())
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.True(t, rec.Impact.Critical)
	assert.Equal(t, conflict.SeverityCritical, rec.Severity)
}

func TestDetector_DedupPerOrderAndChannel(t *testing.T) {
	tenantID := uuid.New()
	ch := newDetectorChannel(t, tenantID)
	ord := newDetectorOrder(t, tenantID, ch.ID)
	records := newFakeRecordRepo()
	pub := &capturePublisher{}

	d := NewDetector(records, pub, &fakeCalendar{}, nil)

	snap := agreeingSnapshot(ord)
	snap.Status = channel.ExternalStatusShipped

	first, err := d.Detect(context.Background(), ord, ch, snap, uuid.New())
	require.NoError(t, err)
	require.NotNil(t, first)

	// Same disagreement on the next sync pass returns the open record
	// without a second event
	second, err := d.Detect(context.Background(), ord, ch, snap, uuid.New())
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Len(t, records.records, 1)
	assert.Len(t, pub.types(), 1)
}

func TestMapStatus_RoundTrip(t *testing.T) {
	assert.Equal(t, order.StatusConfirmed, MapExternalStatus(channel.ExternalStatusPaid))
	assert.Equal(t, order.StatusShipped, MapExternalStatus(channel.ExternalStatusShipped))
	assert.Equal(t, channel.ExternalStatusPaid, MapLocalStatus(order.StatusConfirmed))
	assert.Equal(t, channel.ExternalStatusDelivered, MapLocalStatus(order.StatusDelivered))
}

package conflict

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ordersync/backend/internal/domain/channel"
	"github.com/ordersync/backend/internal/domain/conflict"
	"github.com/ordersync/backend/internal/domain/order"
	"github.com/ordersync/backend/internal/domain/shared"
)

// RegionCalendar answers calendar questions for a region. Satisfied by the
// business calendar gate.
type RegionCalendar interface {
	IsOperationalWindow(region string, t time.Time) bool
	SeasonalFactor(region string, t time.Time) (float64, string)
	IsObservanceWindow(region string, t time.Time) bool
}

// stalenessWindow is how far the platform's view may lag the local one before
// an otherwise-identical order counts as a timing conflict
const stalenessWindow = 24 * time.Hour

// Detector compares the local order view with a channel snapshot and opens a
// conflict record when the two disagree. One open record per order and channel:
// repeated detections against an unresolved record return the existing one.
type Detector struct {
	records   conflict.Repository
	publisher shared.EventPublisher
	calendar  RegionCalendar
	logger    *zap.Logger

	now func() time.Time
}

// NewDetector creates a conflict detector
func NewDetector(records conflict.Repository, publisher shared.EventPublisher, calendar RegionCalendar, logger *zap.Logger) *Detector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Detector{
		records:   records,
		publisher: publisher,
		calendar:  calendar,
		logger:    logger,
		now:       time.Now,
	}
}

// Detect diffs the local order against the platform snapshot. Returns nil when
// the views agree. A new record is classified, persisted and announced; an
// existing open record for the same channel is returned as is.
func (d *Detector) Detect(ctx context.Context, ord *order.Order, ch *channel.Channel, snap *channel.ExternalOrderSnapshot, correlationID uuid.UUID) (*conflict.Record, error) {
	deltas, kinds := diff(ord, snap)
	if len(deltas) == 0 {
		return nil, nil
	}

	open, err := d.records.FindOpenByOrder(ctx, ord.TenantID, ord.ID)
	if err != nil {
		return nil, err
	}
	for _, rec := range open {
		if rec.ChannelID == ch.ID {
			return rec, nil
		}
	}

	impact := deriveImpact(ord, snap, kinds)
	regionCtx := d.regionContext(ch.Region)

	rec, err := conflict.NewRecord(
		ord.TenantID, ord.ID, ch.ID,
		snap.ExternalOrderID,
		ord.Status.String(), snap.Status.String(),
		deltas, impact, regionCtx,
	)
	if err != nil {
		return nil, err
	}
	if err := rec.Classify(classify(kinds)); err != nil {
		return nil, err
	}
	if err := d.records.Save(ctx, rec); err != nil {
		return nil, err
	}

	d.logger.Info("conflict detected",
		zap.String("conflict_id", rec.ID.String()),
		zap.String("order_id", ord.ID.String()),
		zap.String("channel_id", ch.ID.String()),
		zap.String("type", rec.Type.String()),
		zap.String("severity", rec.Severity.String()),
		zap.Int("deltas", len(deltas)),
	)

	if d.publisher != nil {
		if err := d.publisher.Publish(ctx, conflict.NewDetectedEvent(rec, correlationID)); err != nil {
			d.logger.Error("failed to publish conflict detected event",
				zap.String("conflict_id", rec.ID.String()),
				zap.Error(err),
			)
		}
	}
	return rec, nil
}

func (d *Detector) regionContext(region string) conflict.RegionContext {
	now := d.now()
	ctx := conflict.RegionContext{Region: region}
	if d.calendar == nil {
		return ctx
	}
	ctx.BusinessHours = d.calendar.IsOperationalWindow(region, now)
	factor, _ := d.calendar.SeasonalFactor(region, now)
	ctx.PeakSeason = factor > 1.0
	ctx.ObservanceWindow = d.calendar.IsObservanceWindow(region, now)
	return ctx
}

// deltaKinds tracks which categories of disagreement the diff found
type deltaKinds struct {
	payment   bool
	status    bool
	shipping  bool
	inventory bool
	timing    bool
}

// diff computes field-level disagreements between the local order and the
// platform snapshot
func diff(ord *order.Order, snap *channel.ExternalOrderSnapshot) ([]conflict.FieldDelta, deltaKinds) {
	var deltas []conflict.FieldDelta
	var kinds deltaKinds

	if mapped := MapExternalStatus(snap.Status); mapped != ord.Status {
		kinds.status = true
		deltas = append(deltas, conflict.FieldDelta{
			Field:         "status",
			LocalValue:    ord.Status.String(),
			ExternalValue: snap.Status.String(),
		})
	}

	if snap.PaymentStatus != "" && !strings.EqualFold(snap.PaymentStatus, string(ord.PaymentStatus)) {
		kinds.payment = true
		deltas = append(deltas, conflict.FieldDelta{
			Field:         "payment_status",
			LocalValue:    string(ord.PaymentStatus),
			ExternalValue: snap.PaymentStatus,
		})
	}

	if snap.Courier != "" && ord.Courier != "" && !strings.EqualFold(snap.Courier, ord.Courier) {
		kinds.shipping = true
		deltas = append(deltas, conflict.FieldDelta{
			Field:         "courier",
			LocalValue:    ord.Courier,
			ExternalValue: snap.Courier,
		})
	}
	if snap.TrackingNumber != "" && ord.TrackingNumber != "" && snap.TrackingNumber != ord.TrackingNumber {
		kinds.shipping = true
		deltas = append(deltas, conflict.FieldDelta{
			Field:         "tracking_number",
			LocalValue:    ord.TrackingNumber,
			ExternalValue: snap.TrackingNumber,
		})
	}
	if snap.ShippingCity != "" && ord.ShippingCity != "" && !strings.EqualFold(snap.ShippingCity, ord.ShippingCity) {
		kinds.shipping = true
		deltas = append(deltas, conflict.FieldDelta{
			Field:         "shipping_city",
			LocalValue:    ord.ShippingCity,
			ExternalValue: snap.ShippingCity,
		})
	}

	// Item comparison only runs when the snapshot carries item detail
	if len(snap.Items) > 0 {
		seen := make(map[string]struct{}, len(snap.Items))
		for _, it := range snap.Items {
			seen[it.SKU] = struct{}{}
			local := ord.ItemQuantity(it.SKU)
			if !local.Equal(it.Quantity) {
				kinds.inventory = true
				deltas = append(deltas, conflict.FieldDelta{
					Field:         "item:" + it.SKU,
					LocalValue:    local.String(),
					ExternalValue: it.Quantity.String(),
				})
			}
		}
		for _, it := range ord.Items {
			if _, ok := seen[it.SKU]; ok {
				continue
			}
			kinds.inventory = true
			deltas = append(deltas, conflict.FieldDelta{
				Field:         "item:" + it.SKU,
				LocalValue:    it.Quantity.String(),
				ExternalValue: "0",
			})
		}
	}

	// A stale snapshot with no other disagreement still merits attention: the
	// platform stopped reporting progress on an order we consider open
	if len(deltas) == 0 && !snap.UpdatedAt.IsZero() && !ord.Status.IsTerminal() &&
		ord.UpdatedAt.Sub(snap.UpdatedAt) > stalenessWindow {
		kinds.timing = true
		deltas = append(deltas, conflict.FieldDelta{
			Field:         "updated_at",
			LocalValue:    ord.UpdatedAt.UTC().Format(time.RFC3339),
			ExternalValue: snap.UpdatedAt.UTC().Format(time.RFC3339),
		})
	}

	return deltas, kinds
}

// classify picks the conflict type by category precedence: payment outranks
// status, which outranks shipping, inventory, then timing
func classify(kinds deltaKinds) conflict.Type {
	switch {
	case kinds.payment:
		return conflict.TypePaymentInconsistency
	case kinds.status:
		return conflict.TypeStatusMismatch
	case kinds.shipping:
		return conflict.TypeShippingDiscrepancy
	case kinds.inventory:
		return conflict.TypeInventoryConflict
	default:
		return conflict.TypeTimingConflict
	}
}

func deriveImpact(ord *order.Order, snap *channel.ExternalOrderSnapshot, kinds deltaKinds) conflict.ImpactFlags {
	crossedTerminal := (ord.Status == order.StatusCancelled && snap.Status == channel.ExternalStatusDelivered) ||
		(ord.Status == order.StatusDelivered && snap.Status == channel.ExternalStatusCancelled)
	critical := crossedTerminal
	if kinds.payment && paymentBoundaryCrossed(ord.PaymentStatus, snap.PaymentStatus) {
		critical = true
	}
	return conflict.ImpactFlags{
		Critical:        critical,
		CustomerFacing:  kinds.status || kinds.shipping,
		AffectsShipping: kinds.shipping,
		AffectsPayment:  kinds.payment,
	}
}

// paymentBoundaryCrossed reports whether the two payment views disagree on
// whether money actually moved: settled on one side against unsettled on the
// other, or a refund only one side knows about. Disagreements within the
// unsettled states (PENDING against UNPAID) stay routine.
func paymentBoundaryCrossed(local order.PaymentStatus, external string) bool {
	ext := order.PaymentStatus(strings.ToUpper(external))
	if (local == order.PaymentStatusRefunded) != (ext == order.PaymentStatusRefunded) {
		return true
	}
	return (local == order.PaymentStatusPaid) != (ext == order.PaymentStatusPaid)
}

// MapExternalStatus translates a platform status into the local vocabulary.
// PAID has no local equivalent and maps to CONFIRMED.
func MapExternalStatus(s channel.ExternalOrderStatus) order.Status {
	if s == channel.ExternalStatusPaid {
		return order.StatusConfirmed
	}
	return order.Status(s)
}

// MapLocalStatus translates a local status into the platform vocabulary
func MapLocalStatus(s order.Status) channel.ExternalOrderStatus {
	if s == order.StatusConfirmed {
		return channel.ExternalStatusPaid
	}
	return channel.ExternalOrderStatus(s)
}

package marketplace

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ordersync/backend/internal/domain/channel"
)

// MemoryAdapter is an in-memory MarketplacePlatform used by tests and local
// dry runs. Snapshots are scripted per order; errors can be injected per
// operation.
type MemoryAdapter struct {
	code channel.PlatformCode

	mu        sync.Mutex
	snapshots map[uuid.UUID]*channel.ExternalOrderSnapshot
	byExtID   map[string]*channel.ExternalOrderSnapshot
	updates   []StatusUpdate

	// FailNext makes the next n calls fail with Err
	FailNext int
	Err      error

	// CallDelay simulates platform latency
	CallDelay time.Duration

	calls int
}

// StatusUpdate records one UpdateOrderStatus call for assertions
type StatusUpdate struct {
	OrderID uuid.UUID
	Status  channel.ExternalOrderStatus
}

// NewMemoryAdapter creates an in-memory adapter for the given platform code
func NewMemoryAdapter(code channel.PlatformCode) *MemoryAdapter {
	return &MemoryAdapter{
		code:      code,
		snapshots: make(map[uuid.UUID]*channel.ExternalOrderSnapshot),
		byExtID:   make(map[string]*channel.ExternalOrderSnapshot),
	}
}

// SetSnapshot scripts the platform view for an order
func (a *MemoryAdapter) SetSnapshot(orderID uuid.UUID, snap *channel.ExternalOrderSnapshot) {
	a.mu.Lock()
	defer a.mu.Unlock()
	snap.PlatformCode = a.code
	a.snapshots[orderID] = snap
	if snap.ExternalOrderID != "" {
		a.byExtID[snap.ExternalOrderID] = snap
	}
}

// Calls returns how many operations ran against the adapter
func (a *MemoryAdapter) Calls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls
}

// Updates returns the recorded status pushes
func (a *MemoryAdapter) Updates() []StatusUpdate {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]StatusUpdate, len(a.updates))
	copy(out, a.updates)
	return out
}

func (a *MemoryAdapter) before(ctx context.Context) error {
	a.mu.Lock()
	a.calls++
	shouldFail := a.FailNext > 0
	if shouldFail {
		a.FailNext--
	}
	err := a.Err
	delay := a.CallDelay
	a.mu.Unlock()

	if delay > 0 {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}
	if shouldFail {
		if err == nil {
			err = channel.ErrPlatformUnavailable
		}
		return err
	}
	return nil
}

// PlatformCode returns the platform code this adapter handles
func (a *MemoryAdapter) PlatformCode() channel.PlatformCode {
	return a.code
}

// SyncOrderStatus returns the scripted snapshots in submission order
func (a *MemoryAdapter) SyncOrderStatus(ctx context.Context, tenantID, channelID uuid.UUID, orderIDs []uuid.UUID, opts channel.SyncOptions) (*channel.SyncResult, error) {
	if err := a.before(ctx); err != nil {
		return nil, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	result := &channel.SyncResult{
		PerOrder: make([]channel.OrderOutcome, 0, len(orderIDs)),
	}
	result.Summary.Total = len(orderIDs)
	for _, id := range orderIDs {
		snap, ok := a.snapshots[id]
		if !ok {
			result.Summary.Skipped++
			result.PerOrder = append(result.PerOrder, channel.OrderOutcome{
				OrderID: id,
				State:   channel.OrderOutcomeSkipped,
				Reason:  "order not found on platform",
			})
			continue
		}
		result.Summary.Synced++
		result.PerOrder = append(result.PerOrder, channel.OrderOutcome{
			OrderID:  id,
			State:    channel.OrderOutcomeSynced,
			Snapshot: snap,
		})
	}
	return result, nil
}

// GetOrderDetails returns a scripted snapshot by external ID
func (a *MemoryAdapter) GetOrderDetails(ctx context.Context, tenantID, channelID uuid.UUID, externalOrderID string) (*channel.ExternalOrderSnapshot, error) {
	if err := a.before(ctx); err != nil {
		return nil, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	snap, ok := a.byExtID[externalOrderID]
	if !ok {
		return nil, channel.ErrExternalOrderNotFound
	}
	return snap, nil
}

// UpdateOrderStatus records the push and mutates the scripted snapshot
func (a *MemoryAdapter) UpdateOrderStatus(ctx context.Context, tenantID, channelID uuid.UUID, orderID uuid.UUID, status channel.ExternalOrderStatus) error {
	if err := a.before(ctx); err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.updates = append(a.updates, StatusUpdate{OrderID: orderID, Status: status})
	if snap, ok := a.snapshots[orderID]; ok {
		snap.Status = status
		snap.UpdatedAt = time.Now()
	}
	return nil
}

// Ensure MemoryAdapter implements MarketplacePlatform
var _ channel.MarketplacePlatform = (*MemoryAdapter)(nil)

package conflict

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/ordersync/backend/internal/domain/shared"
)

// Type classifies a detected disagreement between local and external state
type Type string

const (
	TypeStatusMismatch       Type = "STATUS_MISMATCH"
	TypePaymentInconsistency Type = "PAYMENT_INCONSISTENCY"
	TypeShippingDiscrepancy  Type = "SHIPPING_DISCREPANCY"
	TypeInventoryConflict    Type = "INVENTORY_CONFLICT"
	TypeTimingConflict       Type = "TIMING_CONFLICT"
)

// IsValid returns true if the type is valid
func (t Type) IsValid() bool {
	switch t {
	case TypeStatusMismatch, TypePaymentInconsistency, TypeShippingDiscrepancy,
		TypeInventoryConflict, TypeTimingConflict:
		return true
	default:
		return false
	}
}

// String returns the string representation of Type
func (t Type) String() string {
	return string(t)
}

// State is the conflict record lifecycle state.
// Transitions: Detected -> Classified -> {AutoResolving | PendingManualReview} -> Resolved.
type State string

const (
	StateDetected            State = "DETECTED"
	StateClassified          State = "CLASSIFIED"
	StateAutoResolving       State = "AUTO_RESOLVING"
	StatePendingManualReview State = "PENDING_MANUAL_REVIEW"
	StateResolved            State = "RESOLVED"
)

// Strategy is the chosen resolution strategy
type Strategy string

const (
	// StrategyPlatformWins overwrites local state with the platform's value
	StrategyPlatformWins Strategy = "PLATFORM_WINS"
	// StrategyAutomaticMerge unions both views into a corrected value
	StrategyAutomaticMerge Strategy = "AUTOMATIC_MERGE"
	// StrategyBusinessRuleBased applies a deterministic business rule
	StrategyBusinessRuleBased Strategy = "BUSINESS_RULE_BASED"
	// StrategyDefer postpones the decision until the calendar gate reopens
	StrategyDefer Strategy = "DEFER"
	// StrategyManualReview escalates to a human operator
	StrategyManualReview Strategy = "MANUAL_REVIEW"
)

// Severity orders conflicts for batch presentation; it does not affect
// correctness since records resolve independently
type Severity int

const (
	SeverityLow Severity = iota
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

// String returns the string representation of Severity
func (s Severity) String() string {
	switch s {
	case SeverityCritical:
		return "CRITICAL"
	case SeverityHigh:
		return "HIGH"
	case SeverityMedium:
		return "MEDIUM"
	default:
		return "LOW"
	}
}

// ImpactFlags describe the business impact of a conflict
type ImpactFlags struct {
	Critical        bool
	CustomerFacing  bool
	AffectsShipping bool
	AffectsPayment  bool
}

// RegionContext captures the calendar conditions at detection time
type RegionContext struct {
	Region           string
	BusinessHours    bool
	PeakSeason       bool
	ObservanceWindow bool
}

// FieldDelta is one disagreeing field between the local and external views
type FieldDelta struct {
	Field         string
	LocalValue    string
	ExternalValue string
}

// AuditEntry records one step in a conflict's resolution history
type AuditEntry struct {
	At       time.Time
	Actor    string
	Action   string
	Details  string
	Strategy Strategy
}

// Resolution is the final outcome of a resolved conflict
type Resolution struct {
	Strategy   Strategy
	Outcome    string
	ResolvedBy string
	ResolvedAt time.Time
}

// Record is a detected disagreement between local order state and one external
// channel's view. It always references an existing order and is retained for
// audit after resolution.
type Record struct {
	shared.TenantEntity
	OrderID         uuid.UUID
	ChannelID       uuid.UUID
	ExternalOrderID string

	Type     Type
	State    State
	Severity Severity

	LocalStatus    string
	ExternalStatus string
	Deltas         []FieldDelta

	Impact  ImpactFlags
	Context RegionContext

	Strategy   Strategy
	Resolution *Resolution
	Audit      []AuditEntry

	DetectedAt time.Time
}

// NewRecord creates a conflict record in the Detected state
func NewRecord(tenantID, orderID, channelID uuid.UUID, externalOrderID, localStatus, externalStatus string, deltas []FieldDelta, impact ImpactFlags, regionCtx RegionContext) (*Record, error) {
	if orderID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_ORDER", "Conflict must reference an existing order")
	}
	now := time.Now()
	r := &Record{
		TenantEntity:    shared.NewTenantEntity(tenantID),
		OrderID:         orderID,
		ChannelID:       channelID,
		ExternalOrderID: externalOrderID,
		State:           StateDetected,
		LocalStatus:     localStatus,
		ExternalStatus:  externalStatus,
		Deltas:          deltas,
		Impact:          impact,
		Context:         regionCtx,
		DetectedAt:      now,
	}
	r.appendAudit("detector", "detected", "discrepancy detected against channel view", "")
	return r, nil
}

// Classify assigns the conflict type and severity and advances the state
func (r *Record) Classify(t Type) error {
	if r.State != StateDetected {
		return shared.ErrInvalidState
	}
	if !t.IsValid() {
		return shared.ErrInvalidInput
	}
	r.Type = t
	r.Severity = deriveSeverity(r.Impact)
	r.State = StateClassified
	r.appendAudit("detector", "classified", "type "+t.String()+", severity "+r.Severity.String(), "")
	r.Touch()
	return nil
}

// BeginResolution records the chosen strategy and advances to AutoResolving
// or PendingManualReview
func (r *Record) BeginResolution(s Strategy) error {
	if r.State != StateClassified {
		return shared.ErrInvalidState
	}
	r.Strategy = s
	if s == StrategyManualReview {
		r.State = StatePendingManualReview
	} else {
		r.State = StateAutoResolving
	}
	r.appendAudit("resolver", "strategy_selected", "", s)
	r.Touch()
	return nil
}

// Resolve finalizes the record. Resolving an already-resolved record is a
// no-op that returns the existing resolution without touching the audit trail.
func (r *Record) Resolve(outcome, resolvedBy string) (*Resolution, error) {
	if r.State == StateResolved {
		return r.Resolution, nil
	}
	if r.State != StateAutoResolving && r.State != StatePendingManualReview {
		return nil, shared.ErrInvalidState
	}
	res := &Resolution{
		Strategy:   r.Strategy,
		Outcome:    outcome,
		ResolvedBy: resolvedBy,
		ResolvedAt: time.Now(),
	}
	r.Resolution = res
	r.State = StateResolved
	r.appendAudit(resolvedBy, "resolved", outcome, r.Strategy)
	r.Touch()
	return res, nil
}

// IsResolved reports whether the record reached its terminal state
func (r *Record) IsResolved() bool {
	return r.State == StateResolved
}

func (r *Record) appendAudit(actor, action, details string, s Strategy) {
	r.Audit = append(r.Audit, AuditEntry{
		At:       time.Now(),
		Actor:    actor,
		Action:   action,
		Details:  details,
		Strategy: s,
	})
}

func deriveSeverity(f ImpactFlags) Severity {
	switch {
	case f.Critical:
		return SeverityCritical
	case f.AffectsPayment, f.CustomerFacing && f.AffectsShipping:
		return SeverityHigh
	case f.CustomerFacing:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// Repository defines the persistence port for conflict records
type Repository interface {
	FindByID(ctx context.Context, tenantID, recordID uuid.UUID) (*Record, error)
	FindOpenByOrder(ctx context.Context, tenantID, orderID uuid.UUID) ([]*Record, error)
	FindOpenByTenant(ctx context.Context, tenantID uuid.UUID) ([]*Record, error)
	Save(ctx context.Context, r *Record) error
}

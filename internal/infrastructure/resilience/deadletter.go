package resilience

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// DeadLetterEntry is a durably recorded operation that exhausted retries or
// was rejected by an open circuit. It is terminal for this layer: only the
// out-of-band re-drive job may return it to the active pipeline.
type DeadLetterEntry struct {
	ID                uuid.UUID
	TenantID          uuid.UUID
	ChannelID         uuid.UUID
	OriginalQueue     string
	OriginalOperation string
	Payload           map[string]any
	FailedAt          time.Time
	Error             string
	RetryCount        int
	CalendarSensitive bool
	BusinessHoursOnly bool
}

// DeadLetterSink persists dead letters for the external re-drive job
type DeadLetterSink interface {
	// Record durably stores the entry. Failures here are logged and must not
	// mask the original operation error.
	Record(ctx context.Context, entry *DeadLetterEntry) error
}

// OperationDescriptor identifies one remote operation for dead-lettering and
// breaker bookkeeping
type OperationDescriptor struct {
	TenantID          uuid.UUID
	ChannelID         uuid.UUID
	Queue             string
	Operation         string
	Payload           map[string]any
	CalendarSensitive bool
	BusinessHoursOnly bool
}

func (op OperationDescriptor) deadLetter(err error, retryCount int) *DeadLetterEntry {
	return &DeadLetterEntry{
		ID:                uuid.New(),
		TenantID:          op.TenantID,
		ChannelID:         op.ChannelID,
		OriginalQueue:     op.Queue,
		OriginalOperation: op.Operation,
		Payload:           op.Payload,
		FailedAt:          time.Now(),
		Error:             err.Error(),
		RetryCount:        retryCount,
		CalendarSensitive: op.CalendarSensitive,
		BusinessHoursOnly: op.BusinessHoursOnly,
	}
}

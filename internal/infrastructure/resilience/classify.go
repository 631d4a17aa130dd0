package resilience

import (
	"context"
	"errors"
	"net"

	"github.com/ordersync/backend/internal/domain/channel"
	"github.com/ordersync/backend/internal/domain/shared"
)

// Class buckets a remote-call failure for retry decisions
type Class int

const (
	// ClassTransient covers network timeouts, 5xx-equivalents and anything
	// plausibly recoverable; retried with backoff, then dead-lettered
	ClassTransient Class = iota
	// ClassRateLimited is a 429-equivalent; retried with a longer base delay
	ClassRateLimited
	// ClassAuth covers invalid/expired credentials or signatures; never
	// auto-retried, surfaced as requiring credential refresh
	ClassAuth
	// ClassValidation covers malformed input; failed fast, never retried
	ClassValidation
)

// String returns the string representation of Class
func (c Class) String() string {
	switch c {
	case ClassRateLimited:
		return "RATE_LIMITED"
	case ClassAuth:
		return "AUTH"
	case ClassValidation:
		return "VALIDATION"
	default:
		return "TRANSIENT"
	}
}

// Retryable reports whether the class is retried with backoff
func (c Class) Retryable() bool {
	return c == ClassTransient || c == ClassRateLimited
}

// Classify assigns a failure class to an adapter error. Unknown errors are
// treated as transient: at-least-once semantics make a wasted retry cheaper
// than a lost order.
func Classify(err error) Class {
	switch {
	case errors.Is(err, channel.ErrPlatformRateLimited):
		return ClassRateLimited
	case errors.Is(err, channel.ErrPlatformAuthFailed),
		errors.Is(err, channel.ErrPlatformTokenExpired),
		errors.Is(err, channel.ErrPlatformInvalidSignature):
		return ClassAuth
	case errors.Is(err, channel.ErrInvalidPlatformCode),
		errors.Is(err, channel.ErrChannelNotFound),
		errors.Is(err, channel.ErrExternalOrderNotFound):
		return ClassValidation
	case errors.Is(err, context.DeadlineExceeded):
		// A call exceeding its hard timeout is a retryable network error
		return ClassTransient
	}

	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		return ClassValidation
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return ClassTransient
	}

	return ClassTransient
}

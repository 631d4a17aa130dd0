package resilience

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

var (
	// ErrCircuitOpen is the fast synthetic failure for short-circuited calls
	ErrCircuitOpen = errors.New("resilience: circuit open")
	// ErrRetriesExhausted wraps the last error after the final attempt
	ErrRetriesExhausted = errors.New("resilience: retries exhausted")
	// ErrCredentialRefreshRequired flags auth failures for the operator channel
	ErrCredentialRefreshRequired = errors.New("resilience: credential refresh required")
)

// Config tunes the retry and circuit breaker behaviour
type Config struct {
	// MaxAttempts bounds the retry loop, first try included
	MaxAttempts int
	// NetworkBaseDelay is the backoff base for transient errors
	NetworkBaseDelay time.Duration
	// RateLimitBaseDelay is the backoff base for rate-limit errors
	RateLimitBaseDelay time.Duration
	// MaxDelay caps a single backoff pause
	MaxDelay time.Duration
	// BreakerThreshold is the consecutive-failure count that opens a breaker
	BreakerThreshold int
	// BreakerCoolDown is how long an open breaker rejects calls before probing
	BreakerCoolDown time.Duration
}

// DefaultConfig returns the default resilience configuration
func DefaultConfig() Config {
	return Config{
		MaxAttempts:        3,
		NetworkBaseDelay:   500 * time.Millisecond,
		RateLimitBaseDelay: 2 * time.Second,
		MaxDelay:           30 * time.Second,
		BreakerThreshold:   5,
		BreakerCoolDown:    60 * time.Second,
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.MaxAttempts <= 0 || c.NetworkBaseDelay <= 0 || c.RateLimitBaseDelay <= 0 ||
		c.BreakerThreshold <= 0 || c.BreakerCoolDown <= 0 {
		return errors.New("resilience: invalid config")
	}
	return nil
}

// Executor wraps remote operations with bounded retry, per-(tenant, channel)
// circuit breaking and dead-letter escalation. It owns every retry decision:
// callers delegate external calls here and never retry independently.
type Executor struct {
	config   Config
	breakers *BreakerRegistry
	sink     DeadLetterSink
	logger   *zap.Logger

	sleep func(ctx context.Context, d time.Duration) error
}

// NewExecutor creates a resilience executor
func NewExecutor(config Config, sink DeadLetterSink, logger *zap.Logger) (*Executor, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{
		config:   config,
		breakers: NewBreakerRegistry(config.BreakerThreshold, config.BreakerCoolDown),
		sink:     sink,
		logger:   logger,
		sleep:    sleepContext,
	}, nil
}

// Breaker exposes the breaker for a pair, for monitoring only
func (e *Executor) Breaker(op OperationDescriptor) *CircuitBreaker {
	return e.breakers.Get(op.TenantID, op.ChannelID)
}

// Do executes fn with retry, breaker and dead-letter handling. The retry loop
// is iterative and timer-driven so retry count and elapsed time stay
// observable and boundable.
func (e *Executor) Do(ctx context.Context, op OperationDescriptor, fn func(ctx context.Context) error) error {
	breaker := e.breakers.Get(op.TenantID, op.ChannelID)

	if !breaker.Allow() {
		err := fmt.Errorf("%w: %s for tenant %s channel %s", ErrCircuitOpen, op.Operation, op.TenantID, op.ChannelID)
		e.deadLetter(ctx, op, err, 0)
		return err
	}

	started := time.Now()
	var lastErr error
	for attempt := 1; attempt <= e.config.MaxAttempts; attempt++ {
		err := fn(ctx)
		if err == nil {
			breaker.RecordSuccess()
			if attempt > 1 {
				e.logger.Info("operation recovered after retry",
					zap.String("operation", op.Operation),
					zap.Int("attempt", attempt),
					zap.Duration("elapsed", time.Since(started)),
				)
			}
			return nil
		}
		lastErr = err

		class := Classify(err)
		switch class {
		case ClassValidation:
			// Caller error, not a channel failure: fail fast, no breaker count
			return err
		case ClassAuth:
			breaker.RecordFailure()
			e.logger.Error("authentication failure on platform call",
				zap.String("operation", op.Operation),
				zap.String("tenant_id", op.TenantID.String()),
				zap.String("channel_id", op.ChannelID.String()),
				zap.Error(err),
			)
			return fmt.Errorf("%w: %v", ErrCredentialRefreshRequired, err)
		}

		breaker.RecordFailure()
		if attempt == e.config.MaxAttempts {
			break
		}

		delay := e.backoff(class, attempt)
		e.logger.Warn("retrying platform call",
			zap.String("operation", op.Operation),
			zap.String("class", class.String()),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", e.config.MaxAttempts),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
		if err := e.sleep(ctx, delay); err != nil {
			return err
		}

		if !breaker.Allow() {
			err := fmt.Errorf("%w: %s opened mid-retry", ErrCircuitOpen, op.Operation)
			e.deadLetter(ctx, op, err, attempt)
			return err
		}
	}

	wrapped := fmt.Errorf("%w after %d attempts: %v", ErrRetriesExhausted, e.config.MaxAttempts, lastErr)
	e.deadLetter(ctx, op, wrapped, e.config.MaxAttempts)
	return wrapped
}

// backoff computes the exponential delay for the next attempt
func (e *Executor) backoff(class Class, attempt int) time.Duration {
	base := e.config.NetworkBaseDelay
	if class == ClassRateLimited {
		base = e.config.RateLimitBaseDelay
	}
	delay := base * time.Duration(1<<(attempt-1))
	if e.config.MaxDelay > 0 && delay > e.config.MaxDelay {
		delay = e.config.MaxDelay
	}
	return delay
}

func (e *Executor) deadLetter(ctx context.Context, op OperationDescriptor, cause error, retryCount int) {
	if e.sink == nil {
		return
	}
	entry := op.deadLetter(cause, retryCount)
	if err := e.sink.Record(ctx, entry); err != nil {
		e.logger.Error("failed to record dead letter",
			zap.String("operation", op.Operation),
			zap.String("entry_id", entry.ID.String()),
			zap.Error(err),
		)
		return
	}
	e.logger.Warn("operation dead-lettered",
		zap.String("operation", op.Operation),
		zap.String("entry_id", entry.ID.String()),
		zap.Int("retry_count", retryCount),
		zap.String("reason", cause.Error()),
	)
}

// sleepContext waits for d or until the context is cancelled
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

package resilience

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// BreakerState is the circuit breaker state.
// Transitions only Closed -> Open -> HalfOpen -> Closed; a failed HalfOpen
// probe re-enters Open.
type BreakerState string

const (
	BreakerClosed   BreakerState = "CLOSED"
	BreakerOpen     BreakerState = "OPEN"
	BreakerHalfOpen BreakerState = "HALF_OPEN"
)

// String returns the string representation of BreakerState
func (s BreakerState) String() string {
	return string(s)
}

// CircuitBreaker guards one (tenant, channel) pair. The executor is the sole
// write path; no other component mutates breaker state.
type CircuitBreaker struct {
	mu sync.Mutex

	state               BreakerState
	consecutiveFailures int
	openedAt            time.Time
	probing             bool

	threshold int
	coolDown  time.Duration

	now func() time.Time
}

// NewCircuitBreaker creates a closed breaker
func NewCircuitBreaker(threshold int, coolDown time.Duration) *CircuitBreaker {
	if threshold <= 0 {
		threshold = 5
	}
	if coolDown <= 0 {
		coolDown = 60 * time.Second
	}
	return &CircuitBreaker{
		state:     BreakerClosed,
		threshold: threshold,
		coolDown:  coolDown,
		now:       time.Now,
	}
}

// Allow reports whether a call may proceed. When the cool-down has elapsed on
// an open breaker it transitions to HalfOpen and admits exactly one probe.
func (b *CircuitBreaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case BreakerClosed:
		return true
	case BreakerOpen:
		if b.now().Sub(b.openedAt) >= b.coolDown {
			b.state = BreakerHalfOpen
			b.probing = true
			return true
		}
		return false
	case BreakerHalfOpen:
		if b.probing {
			return false
		}
		b.probing = true
		return true
	default:
		return false
	}
}

// RecordSuccess closes the breaker after a successful call
func (b *CircuitBreaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.consecutiveFailures = 0
	b.probing = false
	if b.state == BreakerHalfOpen {
		b.state = BreakerClosed
	}
}

// RecordFailure counts a failed call; reaching the threshold opens the
// breaker, and a failed HalfOpen probe re-opens it
func (b *CircuitBreaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.probing = false
	switch b.state {
	case BreakerHalfOpen:
		b.state = BreakerOpen
		b.openedAt = b.now()
	case BreakerClosed:
		b.consecutiveFailures++
		if b.consecutiveFailures >= b.threshold {
			b.state = BreakerOpen
			b.openedAt = b.now()
		}
	}
}

// State returns the current state
func (b *CircuitBreaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// ConsecutiveFailures returns the failure counter
func (b *CircuitBreaker) ConsecutiveFailures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.consecutiveFailures
}

// BreakerRegistry holds one breaker per (tenant, channel) pair
type BreakerRegistry struct {
	mu        sync.Mutex
	breakers  map[string]*CircuitBreaker
	threshold int
	coolDown  time.Duration
}

// NewBreakerRegistry creates a registry; new breakers use the given defaults
func NewBreakerRegistry(threshold int, coolDown time.Duration) *BreakerRegistry {
	return &BreakerRegistry{
		breakers:  make(map[string]*CircuitBreaker),
		threshold: threshold,
		coolDown:  coolDown,
	}
}

// Get returns the breaker for the pair, creating it on first use
func (r *BreakerRegistry) Get(tenantID, channelID uuid.UUID) *CircuitBreaker {
	key := tenantID.String() + "|" + channelID.String()

	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.breakers[key]; ok {
		return b
	}
	b := NewCircuitBreaker(r.threshold, r.coolDown)
	r.breakers[key] = b
	return b
}

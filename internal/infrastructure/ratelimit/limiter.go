package ratelimit

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// ChannelLimiter paces outbound platform calls per (tenant, channel) pair.
// Channel rate limits are global per channel, not per order, so every batch
// for a pair shares one token bucket.
type ChannelLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewChannelLimiter creates an empty limiter registry
func NewChannelLimiter() *ChannelLimiter {
	return &ChannelLimiter{
		limiters: make(map[string]*rate.Limiter),
	}
}

func pairKey(tenantID, channelID uuid.UUID) string {
	return tenantID.String() + "|" + channelID.String()
}

// Configure sets the bucket for a pair. The seasonal factor throttles harder
// during peaks: the effective rate is requestsPerSecond / factor.
func (l *ChannelLimiter) Configure(tenantID, channelID uuid.UUID, requestsPerSecond float64, burst int, seasonalFactor float64) {
	if seasonalFactor < 1 {
		seasonalFactor = 1
	}
	if requestsPerSecond <= 0 {
		requestsPerSecond = 1
	}
	if burst <= 0 {
		burst = 1
	}
	limit := rate.Limit(requestsPerSecond / seasonalFactor)

	l.mu.Lock()
	defer l.mu.Unlock()
	key := pairKey(tenantID, channelID)
	if lim, ok := l.limiters[key]; ok {
		lim.SetLimit(limit)
		lim.SetBurst(burst)
		return
	}
	l.limiters[key] = rate.NewLimiter(limit, burst)
}

// Wait blocks until the pair may issue its next platform call
func (l *ChannelLimiter) Wait(ctx context.Context, tenantID, channelID uuid.UUID) error {
	l.mu.Lock()
	lim, ok := l.limiters[pairKey(tenantID, channelID)]
	if !ok {
		lim = rate.NewLimiter(rate.Limit(1), 1)
		l.limiters[pairKey(tenantID, channelID)] = lim
	}
	l.mu.Unlock()
	return lim.Wait(ctx)
}

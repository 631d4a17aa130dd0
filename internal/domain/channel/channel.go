package channel

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/ordersync/backend/internal/domain/shared"
)

// PlatformCode represents the type of external marketplace platform
type PlatformCode string

const (
	// PlatformCodeTokopedia represents the Tokopedia marketplace
	PlatformCodeTokopedia PlatformCode = "TOKOPEDIA"
	// PlatformCodeShopee represents the Shopee marketplace
	PlatformCodeShopee PlatformCode = "SHOPEE"
	// PlatformCodeLazada represents the Lazada marketplace
	PlatformCodeLazada PlatformCode = "LAZADA"
	// PlatformCodeBukalapak represents the Bukalapak marketplace
	PlatformCodeBukalapak PlatformCode = "BUKALAPAK"
	// PlatformCodeTiktok represents TikTok Shop
	PlatformCodeTiktok PlatformCode = "TIKTOK"
	// PlatformCodeBlibli represents the Blibli marketplace
	PlatformCodeBlibli PlatformCode = "BLIBLI"
)

// IsValid returns true if the platform code is valid
func (c PlatformCode) IsValid() bool {
	switch c {
	case PlatformCodeTokopedia, PlatformCodeShopee, PlatformCodeLazada,
		PlatformCodeBukalapak, PlatformCodeTiktok, PlatformCodeBlibli:
		return true
	default:
		return false
	}
}

// String returns the string representation of PlatformCode
func (c PlatformCode) String() string {
	return string(c)
}

// SyncParameters holds the per-platform pacing configuration for a channel.
// Batch size and delay are the values at seasonal factor 1.0; the orchestrator
// scales them during peak windows.
type SyncParameters struct {
	// BatchSize is the number of orders sent to the platform per request
	BatchSize int
	// RequestDelay is the pause between consecutive requests to the platform
	RequestDelay time.Duration
	// RequestsPerSecond is the platform rate limit for this channel
	RequestsPerSecond float64
	// Burst is the rate limiter burst allowance
	Burst int
	// CallTimeout is the hard timeout applied to every external call
	CallTimeout time.Duration
}

// Normalize applies safe defaults to unset parameters
func (p *SyncParameters) Normalize() {
	if p.BatchSize <= 0 {
		p.BatchSize = 20
	}
	if p.RequestDelay <= 0 {
		p.RequestDelay = 500 * time.Millisecond
	}
	if p.RequestsPerSecond <= 0 {
		p.RequestsPerSecond = 5
	}
	if p.Burst <= 0 {
		p.Burst = 1
	}
	if p.CallTimeout <= 0 {
		p.CallTimeout = 15 * time.Second
	}
}

// Channel is a configured connection to one external marketplace for one tenant.
// Channels are owned by tenant configuration and read-only to the sync core.
type Channel struct {
	shared.TenantEntity
	Name         string
	PlatformCode PlatformCode
	// Region is the operational region used by the business calendar gate
	Region string
	Active bool
	Sync   SyncParameters
}

// NewChannel creates a channel configuration entry
func NewChannel(tenantID uuid.UUID, name string, code PlatformCode, region string) (*Channel, error) {
	if name == "" {
		return nil, shared.NewDomainError("INVALID_CHANNEL_NAME", "Channel name cannot be empty")
	}
	if !code.IsValid() {
		return nil, ErrInvalidPlatformCode
	}
	ch := &Channel{
		TenantEntity: shared.NewTenantEntity(tenantID),
		Name:         name,
		PlatformCode: code,
		Region:       region,
		Active:       true,
	}
	ch.Sync.Normalize()
	return ch, nil
}

// Deactivate marks the channel inactive. In-flight sync batches finish their
// current call; no further batches are scheduled.
func (c *Channel) Deactivate() {
	c.Active = false
	c.Touch()
}

// Activate marks the channel active
func (c *Channel) Activate() {
	c.Active = true
	c.Touch()
}

// ChannelRepository defines the persistence port for channels
type ChannelRepository interface {
	FindByID(ctx context.Context, tenantID, channelID uuid.UUID) (*Channel, error)
	FindActiveByTenant(ctx context.Context, tenantID uuid.UUID) ([]Channel, error)
	Save(ctx context.Context, ch *Channel) error
}

package models

import (
	"time"

	"github.com/ordersync/backend/internal/domain/channel"
)

// ChannelModel is the persistence model for the Channel domain entity
type ChannelModel struct {
	TenantModel
	Name           string  `gorm:"type:varchar(255);not null"`
	PlatformCode   string  `gorm:"type:varchar(20);not null;index"`
	Region         string  `gorm:"type:varchar(100)"`
	Active         bool    `gorm:"not null;default:true;index"`
	BatchSize      int     `gorm:"not null;default:20"`
	RequestDelayMs int64   `gorm:"not null;default:500"`
	RequestsPerSec float64 `gorm:"not null;default:5"`
	Burst          int     `gorm:"not null;default:1"`
	CallTimeoutMs  int64   `gorm:"not null;default:15000"`
}

// TableName returns the table name for GORM
func (ChannelModel) TableName() string {
	return "channels"
}

// ToDomain converts the persistence model to a domain Channel entity
func (m *ChannelModel) ToDomain() *channel.Channel {
	ch := &channel.Channel{
		TenantEntity: m.ToTenantEntity(),
		Name:         m.Name,
		PlatformCode: channel.PlatformCode(m.PlatformCode),
		Region:       m.Region,
		Active:       m.Active,
		Sync: channel.SyncParameters{
			BatchSize:         m.BatchSize,
			RequestDelay:      time.Duration(m.RequestDelayMs) * time.Millisecond,
			RequestsPerSecond: m.RequestsPerSec,
			Burst:             m.Burst,
			CallTimeout:       time.Duration(m.CallTimeoutMs) * time.Millisecond,
		},
	}
	ch.Sync.Normalize()
	return ch
}

// FromDomain populates the persistence model from a domain Channel entity
func (m *ChannelModel) FromDomain(ch *channel.Channel) {
	m.FromTenantEntity(ch.TenantEntity)
	m.Name = ch.Name
	m.PlatformCode = ch.PlatformCode.String()
	m.Region = ch.Region
	m.Active = ch.Active
	m.BatchSize = ch.Sync.BatchSize
	m.RequestDelayMs = ch.Sync.RequestDelay.Milliseconds()
	m.RequestsPerSec = ch.Sync.RequestsPerSecond
	m.Burst = ch.Sync.Burst
	m.CallTimeoutMs = ch.Sync.CallTimeout.Milliseconds()
}

// ChannelModelFromDomain creates a new persistence model from a domain Channel
func ChannelModelFromDomain(ch *channel.Channel) *ChannelModel {
	m := &ChannelModel{}
	m.FromDomain(ch)
	return m
}

package models

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ordersync/backend/internal/domain/order"
)

// OrderModel is the persistence model for the Order domain entity.
// Items and tags are stored as JSONB columns; orders are always loaded
// whole, never item by item.
type OrderModel struct {
	TenantModel
	OrderNumber           string          `gorm:"type:varchar(100);not null;uniqueIndex:idx_orders_tenant_number,priority:2"`
	ChannelID             uuid.UUID       `gorm:"type:uuid;not null;index:idx_orders_channel,priority:1"`
	ExternalOrderID       string          `gorm:"type:varchar(100);index"`
	Status                string          `gorm:"type:varchar(20);not null;index"`
	PaymentStatus         string          `gorm:"type:varchar(20);not null"`
	FulfillmentStatus     string          `gorm:"type:varchar(20);not null"`
	TotalAmount           decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	Currency              string          `gorm:"type:varchar(3);not null;default:'IDR'"`
	Priority              int             `gorm:"not null;default:3"`
	ShippingCity          string          `gorm:"type:varchar(100)"`
	Region                string          `gorm:"type:varchar(100)"`
	ItemsJSON             string          `gorm:"type:jsonb;column:items"`
	TagsJSON              string          `gorm:"type:jsonb;column:tags"`
	FulfillmentLocationID *uuid.UUID      `gorm:"type:uuid;index"`
	Courier               string          `gorm:"type:varchar(100)"`
	TrackingNumber        string          `gorm:"type:varchar(100)"`
}

// TableName returns the table name for GORM
func (OrderModel) TableName() string {
	return "orders"
}

type orderItemDoc struct {
	SKU      string          `json:"sku"`
	Name     string          `json:"name"`
	Quantity decimal.Decimal `json:"quantity"`
}

// ToDomain converts the persistence model to a domain Order entity
func (m *OrderModel) ToDomain() *order.Order {
	o := &order.Order{
		TenantEntity:          m.ToTenantEntity(),
		OrderNumber:           m.OrderNumber,
		ChannelID:             m.ChannelID,
		ExternalOrderID:       m.ExternalOrderID,
		Status:                order.Status(m.Status),
		PaymentStatus:         order.PaymentStatus(m.PaymentStatus),
		FulfillmentStatus:     order.FulfillmentStatus(m.FulfillmentStatus),
		TotalAmount:           m.TotalAmount,
		Currency:              m.Currency,
		Priority:              m.Priority,
		ShippingCity:          m.ShippingCity,
		Region:                m.Region,
		FulfillmentLocationID: m.FulfillmentLocationID,
		Courier:               m.Courier,
		TrackingNumber:        m.TrackingNumber,
	}

	if m.ItemsJSON != "" {
		var docs []orderItemDoc
		if err := json.Unmarshal([]byte(m.ItemsJSON), &docs); err == nil {
			for _, d := range docs {
				o.Items = append(o.Items, order.Item{SKU: d.SKU, Name: d.Name, Quantity: d.Quantity})
			}
		}
	}
	var tags []string
	if m.TagsJSON != "" {
		_ = json.Unmarshal([]byte(m.TagsJSON), &tags)
	}
	o.SetTags(tags)

	return o
}

// FromDomain populates the persistence model from a domain Order entity
func (m *OrderModel) FromDomain(o *order.Order) {
	m.FromTenantEntity(o.TenantEntity)
	m.OrderNumber = o.OrderNumber
	m.ChannelID = o.ChannelID
	m.ExternalOrderID = o.ExternalOrderID
	m.Status = o.Status.String()
	m.PaymentStatus = string(o.PaymentStatus)
	m.FulfillmentStatus = string(o.FulfillmentStatus)
	m.TotalAmount = o.TotalAmount
	m.Currency = o.Currency
	m.Priority = o.Priority
	m.ShippingCity = o.ShippingCity
	m.Region = o.Region
	m.FulfillmentLocationID = o.FulfillmentLocationID
	m.Courier = o.Courier
	m.TrackingNumber = o.TrackingNumber

	docs := make([]orderItemDoc, 0, len(o.Items))
	for _, it := range o.Items {
		docs = append(docs, orderItemDoc{SKU: it.SKU, Name: it.Name, Quantity: it.Quantity})
	}
	if data, err := json.Marshal(docs); err == nil {
		m.ItemsJSON = string(data)
	}
	if data, err := json.Marshal(o.Tags()); err == nil {
		m.TagsJSON = string(data)
	}
}

// OrderModelFromDomain creates a new persistence model from a domain Order
func OrderModelFromDomain(o *order.Order) *OrderModel {
	m := &OrderModel{}
	m.FromDomain(o)
	return m
}

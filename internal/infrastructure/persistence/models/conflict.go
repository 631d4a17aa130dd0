package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/ordersync/backend/internal/domain/conflict"
)

// ConflictRecordModel is the persistence model for conflict records. Deltas,
// impact flags, calendar context and the audit trail are JSONB documents;
// records are retained after resolution for audit.
type ConflictRecordModel struct {
	TenantModel
	OrderID         uuid.UUID `gorm:"type:uuid;not null;index:idx_conflicts_order,priority:1"`
	ChannelID       uuid.UUID `gorm:"type:uuid;not null;index"`
	ExternalOrderID string    `gorm:"type:varchar(100)"`
	Type            string    `gorm:"type:varchar(30);index"`
	State           string    `gorm:"type:varchar(30);not null;index"`
	Severity        int       `gorm:"not null;default:0"`
	LocalStatus     string    `gorm:"type:varchar(30)"`
	ExternalStatus  string    `gorm:"type:varchar(30)"`
	DeltasJSON      string    `gorm:"type:jsonb;column:deltas"`
	ImpactJSON      string    `gorm:"type:jsonb;column:impact"`
	ContextJSON     string    `gorm:"type:jsonb;column:context"`
	Strategy        string    `gorm:"type:varchar(30)"`
	ResolutionJSON  string    `gorm:"type:jsonb;column:resolution"`
	AuditJSON       string    `gorm:"type:jsonb;column:audit"`
	DetectedAt      time.Time `gorm:"not null;index"`
}

// TableName returns the table name for GORM
func (ConflictRecordModel) TableName() string {
	return "conflict_records"
}

type fieldDeltaDoc struct {
	Field         string `json:"field"`
	LocalValue    string `json:"local_value"`
	ExternalValue string `json:"external_value"`
}

type impactDoc struct {
	Critical        bool `json:"critical"`
	CustomerFacing  bool `json:"customer_facing"`
	AffectsShipping bool `json:"affects_shipping"`
	AffectsPayment  bool `json:"affects_payment"`
}

type regionContextDoc struct {
	Region           string `json:"region"`
	BusinessHours    bool   `json:"business_hours"`
	PeakSeason       bool   `json:"peak_season"`
	ObservanceWindow bool   `json:"observance_window"`
}

type resolutionDoc struct {
	Strategy   string    `json:"strategy"`
	Outcome    string    `json:"outcome"`
	ResolvedBy string    `json:"resolved_by"`
	ResolvedAt time.Time `json:"resolved_at"`
}

type auditEntryDoc struct {
	At       time.Time `json:"at"`
	Actor    string    `json:"actor"`
	Action   string    `json:"action"`
	Details  string    `json:"details,omitempty"`
	Strategy string    `json:"strategy,omitempty"`
}

// ToDomain converts the persistence model to a domain conflict Record
func (m *ConflictRecordModel) ToDomain() *conflict.Record {
	r := &conflict.Record{
		TenantEntity:    m.ToTenantEntity(),
		OrderID:         m.OrderID,
		ChannelID:       m.ChannelID,
		ExternalOrderID: m.ExternalOrderID,
		Type:            conflict.Type(m.Type),
		State:           conflict.State(m.State),
		Severity:        conflict.Severity(m.Severity),
		LocalStatus:     m.LocalStatus,
		ExternalStatus:  m.ExternalStatus,
		Strategy:        conflict.Strategy(m.Strategy),
		DetectedAt:      m.DetectedAt,
	}

	if m.DeltasJSON != "" {
		var docs []fieldDeltaDoc
		if err := json.Unmarshal([]byte(m.DeltasJSON), &docs); err == nil {
			for _, d := range docs {
				r.Deltas = append(r.Deltas, conflict.FieldDelta{
					Field:         d.Field,
					LocalValue:    d.LocalValue,
					ExternalValue: d.ExternalValue,
				})
			}
		}
	}
	if m.ImpactJSON != "" {
		var doc impactDoc
		if err := json.Unmarshal([]byte(m.ImpactJSON), &doc); err == nil {
			r.Impact = conflict.ImpactFlags{
				Critical:        doc.Critical,
				CustomerFacing:  doc.CustomerFacing,
				AffectsShipping: doc.AffectsShipping,
				AffectsPayment:  doc.AffectsPayment,
			}
		}
	}
	if m.ContextJSON != "" {
		var doc regionContextDoc
		if err := json.Unmarshal([]byte(m.ContextJSON), &doc); err == nil {
			r.Context = conflict.RegionContext{
				Region:           doc.Region,
				BusinessHours:    doc.BusinessHours,
				PeakSeason:       doc.PeakSeason,
				ObservanceWindow: doc.ObservanceWindow,
			}
		}
	}
	if m.ResolutionJSON != "" {
		var doc resolutionDoc
		if err := json.Unmarshal([]byte(m.ResolutionJSON), &doc); err == nil && doc.Strategy != "" {
			r.Resolution = &conflict.Resolution{
				Strategy:   conflict.Strategy(doc.Strategy),
				Outcome:    doc.Outcome,
				ResolvedBy: doc.ResolvedBy,
				ResolvedAt: doc.ResolvedAt,
			}
		}
	}
	if m.AuditJSON != "" {
		var docs []auditEntryDoc
		if err := json.Unmarshal([]byte(m.AuditJSON), &docs); err == nil {
			for _, d := range docs {
				r.Audit = append(r.Audit, conflict.AuditEntry{
					At:       d.At,
					Actor:    d.Actor,
					Action:   d.Action,
					Details:  d.Details,
					Strategy: conflict.Strategy(d.Strategy),
				})
			}
		}
	}

	return r
}

// FromDomain populates the persistence model from a domain conflict Record
func (m *ConflictRecordModel) FromDomain(r *conflict.Record) {
	m.FromTenantEntity(r.TenantEntity)
	m.OrderID = r.OrderID
	m.ChannelID = r.ChannelID
	m.ExternalOrderID = r.ExternalOrderID
	m.Type = r.Type.String()
	m.State = string(r.State)
	m.Severity = int(r.Severity)
	m.LocalStatus = r.LocalStatus
	m.ExternalStatus = r.ExternalStatus
	m.Strategy = string(r.Strategy)
	m.DetectedAt = r.DetectedAt

	deltas := make([]fieldDeltaDoc, 0, len(r.Deltas))
	for _, d := range r.Deltas {
		deltas = append(deltas, fieldDeltaDoc{
			Field:         d.Field,
			LocalValue:    d.LocalValue,
			ExternalValue: d.ExternalValue,
		})
	}
	if data, err := json.Marshal(deltas); err == nil {
		m.DeltasJSON = string(data)
	}

	if data, err := json.Marshal(impactDoc{
		Critical:        r.Impact.Critical,
		CustomerFacing:  r.Impact.CustomerFacing,
		AffectsShipping: r.Impact.AffectsShipping,
		AffectsPayment:  r.Impact.AffectsPayment,
	}); err == nil {
		m.ImpactJSON = string(data)
	}

	if data, err := json.Marshal(regionContextDoc{
		Region:           r.Context.Region,
		BusinessHours:    r.Context.BusinessHours,
		PeakSeason:       r.Context.PeakSeason,
		ObservanceWindow: r.Context.ObservanceWindow,
	}); err == nil {
		m.ContextJSON = string(data)
	}

	if r.Resolution != nil {
		if data, err := json.Marshal(resolutionDoc{
			Strategy:   string(r.Resolution.Strategy),
			Outcome:    r.Resolution.Outcome,
			ResolvedBy: r.Resolution.ResolvedBy,
			ResolvedAt: r.Resolution.ResolvedAt,
		}); err == nil {
			m.ResolutionJSON = string(data)
		}
	} else {
		m.ResolutionJSON = ""
	}

	audit := make([]auditEntryDoc, 0, len(r.Audit))
	for _, e := range r.Audit {
		audit = append(audit, auditEntryDoc{
			At:       e.At,
			Actor:    e.Actor,
			Action:   e.Action,
			Details:  e.Details,
			Strategy: string(e.Strategy),
		})
	}
	if data, err := json.Marshal(audit); err == nil {
		m.AuditJSON = string(data)
	}
}

// ConflictRecordModelFromDomain creates a new persistence model from a domain Record
func ConflictRecordModelFromDomain(r *conflict.Record) *ConflictRecordModel {
	m := &ConflictRecordModel{}
	m.FromDomain(r)
	return m
}

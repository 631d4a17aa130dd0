package marketplace

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ordersync/backend/internal/domain/channel"
)

// maxResponseSize is the maximum allowed response size from the Tokopedia API (10MB)
const maxResponseSize = 10 * 1024 * 1024

// TokopediaAdapter implements the MarketplacePlatform port for Tokopedia
type TokopediaAdapter struct {
	config     *TokopediaConfig
	httpClient *http.Client

	// tenantConfigs stores per-tenant credentials, loaded at channel
	// configuration time
	tenantConfigs map[uuid.UUID]*TokopediaConfig
	mu            sync.RWMutex
}

// NewTokopediaAdapter creates a Tokopedia adapter with a default configuration
func NewTokopediaAdapter(config *TokopediaConfig) (*TokopediaAdapter, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &TokopediaAdapter{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		tenantConfigs: make(map[uuid.UUID]*TokopediaConfig),
	}, nil
}

// SetTenantConfig sets the credentials for a specific tenant
func (a *TokopediaAdapter) SetTenantConfig(tenantID uuid.UUID, config *TokopediaConfig) error {
	if err := config.Validate(); err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.tenantConfigs[tenantID] = config
	return nil
}

func (a *TokopediaAdapter) tenantConfig(tenantID uuid.UUID) *TokopediaConfig {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if cfg, ok := a.tenantConfigs[tenantID]; ok {
		return cfg
	}
	return a.config
}

// PlatformCode returns the platform code this adapter handles
func (a *TokopediaAdapter) PlatformCode() channel.PlatformCode {
	return channel.PlatformCodeTokopedia
}

// ---------------------------------------------------------------------------
// Wire types
// ---------------------------------------------------------------------------

type tokopediaOrderPayload struct {
	OrderID      string `json:"order_id"`
	InvoiceRef   string `json:"invoice_ref_num"`
	OrderStatus  int    `json:"order_status"`
	PaymentState string `json:"payment_status"`
	Amount       string `json:"amt"`
	Courier      string `json:"logistics,omitempty"`
	AWB          string `json:"awb,omitempty"`
	City         string `json:"destination_city,omitempty"`
	UpdateTime   int64  `json:"update_time"`
	Items        []struct {
		SKU      string `json:"sku"`
		Name     string `json:"name"`
		Quantity int64  `json:"quantity"`
	} `json:"order_items,omitempty"`
}

type tokopediaEnvelope struct {
	Header struct {
		ProcessTime float64 `json:"process_time"`
		Messages    string  `json:"messages"`
		Reason      string  `json:"reason"`
		ErrorCode   string  `json:"error_code"`
	} `json:"header"`
	Data json.RawMessage `json:"data"`
}

// tokopediaStatusCodes maps Tokopedia numeric order states to the snapshot
// status enum
var tokopediaStatusCodes = map[int]channel.ExternalOrderStatus{
	100: channel.ExternalStatusPending,
	220: channel.ExternalStatusPaid,
	400: channel.ExternalStatusProcessing,
	500: channel.ExternalStatusShipped,
	600: channel.ExternalStatusDelivered,
	0:   channel.ExternalStatusCancelled,
	10:  channel.ExternalStatusCancelled,
}

var tokopediaStatusValues = map[channel.ExternalOrderStatus]int{
	channel.ExternalStatusPending:    100,
	channel.ExternalStatusPaid:       220,
	channel.ExternalStatusProcessing: 400,
	channel.ExternalStatusShipped:    500,
	channel.ExternalStatusDelivered:  600,
	channel.ExternalStatusCancelled:  0,
}

func (p *tokopediaOrderPayload) toSnapshot() *channel.ExternalOrderSnapshot {
	status, ok := tokopediaStatusCodes[p.OrderStatus]
	if !ok {
		status = channel.ExternalStatusProcessing
	}
	amount, _ := decimal.NewFromString(p.Amount)
	snap := &channel.ExternalOrderSnapshot{
		ExternalOrderID: p.OrderID,
		PlatformCode:    channel.PlatformCodeTokopedia,
		Status:          status,
		PaymentStatus:   p.PaymentState,
		TotalAmount:     amount,
		Currency:        "IDR",
		Courier:         p.Courier,
		TrackingNumber:  p.AWB,
		ShippingCity:    p.City,
		UpdatedAt:       time.Unix(p.UpdateTime, 0),
	}
	for _, it := range p.Items {
		snap.Items = append(snap.Items, channel.ExternalItemSnapshot{
			SKU:      it.SKU,
			Name:     it.Name,
			Quantity: decimal.NewFromInt(it.Quantity),
		})
	}
	return snap
}

// ---------------------------------------------------------------------------
// Port operations
// ---------------------------------------------------------------------------

// SyncOrderStatus fetches the platform view for the given orders
func (a *TokopediaAdapter) SyncOrderStatus(ctx context.Context, tenantID, channelID uuid.UUID, orderIDs []uuid.UUID, opts channel.SyncOptions) (*channel.SyncResult, error) {
	cfg := a.tenantConfig(tenantID)
	started := time.Now()

	body := map[string]any{
		"fs_id":   cfg.FsID,
		"shop_id": cfg.ShopID,
	}
	ids := make([]string, 0, len(orderIDs))
	for _, id := range orderIDs {
		ids = append(ids, id.String())
	}
	body["order_ids"] = ids
	if opts.IncludeItems {
		body["with_items"] = true
	}
	if !opts.Since.IsZero() {
		body["from_date"] = opts.Since.Unix()
	}

	data, err := a.doRequest(ctx, cfg, http.MethodPost, "/v2/order/list", body)
	if err != nil {
		return nil, err
	}

	var payloads []tokopediaOrderPayload
	if err := json.Unmarshal(data, &payloads); err != nil {
		return nil, fmt.Errorf("%w: %v", channel.ErrPlatformInvalidResponse, err)
	}

	byExternal := make(map[string]*tokopediaOrderPayload, len(payloads))
	for i := range payloads {
		byExternal[payloads[i].OrderID] = &payloads[i]
	}

	result := &channel.SyncResult{
		PerOrder: make([]channel.OrderOutcome, 0, len(orderIDs)),
	}
	result.Summary.Total = len(orderIDs)
	for _, id := range orderIDs {
		p, ok := byExternal[id.String()]
		if !ok {
			result.Summary.Skipped++
			result.PerOrder = append(result.PerOrder, channel.OrderOutcome{
				OrderID: id,
				State:   channel.OrderOutcomeSkipped,
				Reason:  "order not found on platform",
			})
			continue
		}
		result.Summary.Synced++
		result.PerOrder = append(result.PerOrder, channel.OrderOutcome{
			OrderID:  id,
			State:    channel.OrderOutcomeSynced,
			Snapshot: p.toSnapshot(),
		})
	}
	result.Duration = time.Since(started)
	return result, nil
}

// GetOrderDetails retrieves one order snapshot from Tokopedia
func (a *TokopediaAdapter) GetOrderDetails(ctx context.Context, tenantID, channelID uuid.UUID, externalOrderID string) (*channel.ExternalOrderSnapshot, error) {
	if externalOrderID == "" {
		return nil, channel.ErrExternalOrderNotFound
	}
	cfg := a.tenantConfig(tenantID)

	path := fmt.Sprintf("/v2/order/%s?fs_id=%s", externalOrderID, cfg.FsID)
	data, err := a.doRequest(ctx, cfg, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	var payload tokopediaOrderPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", channel.ErrPlatformInvalidResponse, err)
	}
	if payload.OrderID == "" {
		return nil, channel.ErrExternalOrderNotFound
	}
	return payload.toSnapshot(), nil
}

// UpdateOrderStatus pushes a status change to Tokopedia. The call is
// idempotent on the platform side: setting an already-set status is accepted.
func (a *TokopediaAdapter) UpdateOrderStatus(ctx context.Context, tenantID, channelID uuid.UUID, orderID uuid.UUID, status channel.ExternalOrderStatus) error {
	if !status.IsValid() {
		return channel.ErrInvalidPlatformCode
	}
	cfg := a.tenantConfig(tenantID)

	body := map[string]any{
		"fs_id":        cfg.FsID,
		"shop_id":      cfg.ShopID,
		"order_id":     orderID.String(),
		"order_status": tokopediaStatusValues[status],
	}
	_, err := a.doRequest(ctx, cfg, http.MethodPost, "/v2/order/status", body)
	return err
}

// ---------------------------------------------------------------------------
// HTTP plumbing
// ---------------------------------------------------------------------------

func (a *TokopediaAdapter) doRequest(ctx context.Context, cfg *TokopediaConfig, method, path string, body any) (json.RawMessage, error) {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", channel.ErrPlatformRequestFailed, err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, cfg.BaseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", channel.ErrPlatformRequestFailed, err)
	}
	req.Header.Set("Authorization", "Bearer "+cfg.AccessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", channel.ErrPlatformUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if err := mapStatusCode(resp.StatusCode); err != nil {
		return nil, err
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", channel.ErrPlatformInvalidResponse, err)
	}

	var envelope tokopediaEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("%w: %v", channel.ErrPlatformInvalidResponse, err)
	}
	if envelope.Header.ErrorCode != "" {
		return nil, fmt.Errorf("%w: %s - %s", channel.ErrPlatformRequestFailed, envelope.Header.ErrorCode, envelope.Header.Reason)
	}
	return envelope.Data, nil
}

func mapStatusCode(code int) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusTooManyRequests:
		return channel.ErrPlatformRateLimited
	case code == http.StatusUnauthorized:
		return channel.ErrPlatformTokenExpired
	case code == http.StatusForbidden:
		return channel.ErrPlatformAuthFailed
	case code >= 500:
		return channel.ErrPlatformUnavailable
	default:
		return fmt.Errorf("%w: http status %d", channel.ErrPlatformRequestFailed, code)
	}
}

// Ensure TokopediaAdapter implements MarketplacePlatform
var _ channel.MarketplacePlatform = (*TokopediaAdapter)(nil)

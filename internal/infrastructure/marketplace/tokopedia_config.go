package marketplace

import (
	"errors"
	"time"
)

// TokopediaConfig holds the credentials and endpoints for the Tokopedia
// Seller API
type TokopediaConfig struct {
	// BaseURL is the API gateway base, e.g. https://fs.tokopedia.net
	BaseURL string
	// FsID is the app (fulfillment service) identifier
	FsID string
	// ShopID identifies the seller shop
	ShopID string
	// ClientID and ClientSecret authenticate the app
	ClientID     string
	ClientSecret string
	// AccessToken is the current OAuth bearer token
	AccessToken string
	// Timeout is the per-request HTTP timeout
	Timeout time.Duration
}

// Validate validates the configuration
func (c *TokopediaConfig) Validate() error {
	if c.BaseURL == "" {
		return errors.New("marketplace: tokopedia base URL is required")
	}
	if c.FsID == "" || c.ShopID == "" {
		return errors.New("marketplace: tokopedia fs_id and shop_id are required")
	}
	if c.AccessToken == "" && (c.ClientID == "" || c.ClientSecret == "") {
		return errors.New("marketplace: tokopedia credentials are required")
	}
	if c.Timeout <= 0 {
		c.Timeout = 15 * time.Second
	}
	return nil
}

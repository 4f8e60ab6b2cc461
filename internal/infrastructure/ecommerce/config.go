package ecommerce

import (
	"errors"
	"fmt"
	"strings"

	"github.com/erp/listingsync/internal/domain/integration"
	"github.com/erp/listingsync/internal/infrastructure/config"
)

const defaultTimeoutSeconds = 30

// Default endpoints of the marketplace APIs
const (
	EbayProductionAPIURL   = "https://api.ebay.com"
	EbayProductionTokenURL = "https://api.ebay.com/identity/v1/oauth2/token"
	AmazonNAAPIURL         = "https://sellingpartnerapi-na.amazon.com"
	AmazonTokenURL         = "https://api.amazon.com/auth/o2/token"
	EtsyAPIURL             = "https://openapi.etsy.com/v3/application"
	EtsyTokenURL           = "https://api.etsy.com/v3/public/oauth/token"
	WalmartAPIURL          = "https://marketplace.walmartapis.com/v3"
	WalmartTokenURL        = "https://marketplace.walmartapis.com/v3/token"
	BigCommerceAPIURL      = "https://api.bigcommerce.com/stores"
)

// Errors for adapter configuration
var (
	ErrConfigInvalidTimeout = errors.New("ecommerce: timeout must not be negative")
	ErrConfigInvalidRate    = errors.New("ecommerce: requests per second must not be negative")
)

// OAuthConfig holds the application credentials used to refresh seller tokens
type OAuthConfig struct {
	ClientID     string
	ClientSecret string
	TokenURL     string
	Scopes       []string
}

// PlatformConfig holds the outbound settings of one marketplace
type PlatformConfig struct {
	// BaseURL overrides the API endpoint (sandbox, tests). For Shopify and
	// WooCommerce it replaces the shop origin.
	BaseURL string
	// TimeoutSeconds is the HTTP request timeout
	TimeoutSeconds int
	// RequestsPerSecond limits outbound calls; zero disables limiting
	RequestsPerSecond float64
	// Burst is the limiter bucket size
	Burst int
	OAuth OAuthConfig
}

// Validate checks the configuration and fills defaults
func (c *PlatformConfig) Validate() error {
	if c.TimeoutSeconds < 0 {
		return ErrConfigInvalidTimeout
	}
	if c.RequestsPerSecond < 0 {
		return ErrConfigInvalidRate
	}
	if c.TimeoutSeconds == 0 {
		c.TimeoutSeconds = defaultTimeoutSeconds
	}
	if c.RequestsPerSecond > 0 && c.Burst <= 0 {
		c.Burst = 1
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	return nil
}

// Config holds the outbound settings of every marketplace
type Config struct {
	Platforms map[integration.PlatformCode]PlatformConfig
}

// DefaultConfig returns production endpoints for every marketplace
func DefaultConfig() Config {
	return Config{Platforms: map[integration.PlatformCode]PlatformConfig{
		integration.PlatformShopify:     {RequestsPerSecond: 2, Burst: 4},
		integration.PlatformEbay:        {BaseURL: EbayProductionAPIURL, RequestsPerSecond: 5, Burst: 5, OAuth: OAuthConfig{TokenURL: EbayProductionTokenURL}},
		integration.PlatformAmazon:      {BaseURL: AmazonNAAPIURL, RequestsPerSecond: 5, Burst: 10, OAuth: OAuthConfig{TokenURL: AmazonTokenURL}},
		integration.PlatformEtsy:        {BaseURL: EtsyAPIURL, RequestsPerSecond: 10, Burst: 10, OAuth: OAuthConfig{TokenURL: EtsyTokenURL}},
		integration.PlatformWalmart:     {BaseURL: WalmartAPIURL, RequestsPerSecond: 5, Burst: 5, OAuth: OAuthConfig{TokenURL: WalmartTokenURL}},
		integration.PlatformWooCommerce: {RequestsPerSecond: 5, Burst: 5},
		integration.PlatformBigCommerce: {BaseURL: BigCommerceAPIURL, RequestsPerSecond: 7, Burst: 7},
	}}
}

// For returns the validated settings of a platform, with blanks filled from DefaultConfig
func (c Config) For(platform integration.PlatformCode) (PlatformConfig, error) {
	cfg := c.Platforms[platform]
	def := DefaultConfig().Platforms[platform]
	if cfg.BaseURL == "" {
		cfg.BaseURL = def.BaseURL
	}
	if cfg.OAuth.TokenURL == "" {
		cfg.OAuth.TokenURL = def.OAuth.TokenURL
	}
	if cfg.RequestsPerSecond == 0 {
		cfg.RequestsPerSecond = def.RequestsPerSecond
		cfg.Burst = def.Burst
	}
	if err := cfg.Validate(); err != nil {
		return PlatformConfig{}, err
	}
	return cfg, nil
}

// ConfigFromMarketplaces converts the [marketplaces.<platform>] sections of
// the service configuration. Platforms left out keep their defaults.
func ConfigFromMarketplaces(sections map[string]config.MarketplaceConfig) (Config, error) {
	cfg := Config{Platforms: make(map[integration.PlatformCode]PlatformConfig, len(sections))}
	for name, section := range sections {
		code := integration.PlatformCode(strings.ToLower(name))
		if !code.IsValid() {
			return Config{}, fmt.Errorf("marketplaces.%s: %w", name, integration.ErrInvalidPlatformCode)
		}
		pc := PlatformConfig{
			BaseURL:           section.BaseURL,
			TimeoutSeconds:    section.TimeoutSeconds,
			RequestsPerSecond: section.RequestsPerSecond,
			Burst:             section.Burst,
			OAuth: OAuthConfig{
				ClientID:     section.ClientID,
				ClientSecret: section.ClientSecret,
				TokenURL:     section.TokenURL,
				Scopes:       section.Scopes,
			},
		}
		if err := pc.Validate(); err != nil {
			return Config{}, fmt.Errorf("marketplaces.%s: %w", name, err)
		}
		cfg.Platforms[code] = pc
	}
	return cfg, nil
}

package integration

import (
	"time"

	"github.com/google/uuid"
)

// ConnectionStatus is the state of a MarketplaceConnection
type ConnectionStatus string

const (
	ConnectionStatusPending ConnectionStatus = "pending"
	ConnectionStatusActive  ConnectionStatus = "active"
	ConnectionStatusError   ConnectionStatus = "error"
)

// IsValid returns true if the status is known
func (s ConnectionStatus) IsValid() bool {
	switch s {
	case ConnectionStatusPending, ConnectionStatusActive, ConnectionStatusError:
		return true
	default:
		return false
	}
}

// MarketplaceConnection is one authenticated link between a store and a marketplace.
// Only fields relevant to Platform are populated; the shape of Credentials is
// validated by the adapter that consumes it, through the typed accessors.
type MarketplaceConnection struct {
	ID       uuid.UUID
	StoreID  uuid.UUID
	Platform PlatformCode

	AccessToken    string
	RefreshToken   string
	TokenExpiresAt *time.Time

	// Credentials holds platform-specific keys (client ids, seller ids, api secrets)
	Credentials map[string]any

	Status          ConnectionStatus
	ShopDomain      string
	ExternalStoreID string
	LastSyncAt      *time.Time
	LastError       string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasAccessToken reports whether an OAuth access token is stored
func (c *MarketplaceConnection) HasAccessToken() bool {
	return c.AccessToken != ""
}

// TokenExpired reports whether the access token expires before now+leeway
func (c *MarketplaceConnection) TokenExpired(now time.Time, leeway time.Duration) bool {
	if c.TokenExpiresAt == nil {
		return false
	}
	return now.Add(leeway).After(*c.TokenExpiresAt)
}

// UpdateToken stores a refreshed token pair. An empty refresh token keeps the old one.
func (c *MarketplaceConnection) UpdateToken(accessToken, refreshToken string, expiresAt *time.Time) {
	c.AccessToken = accessToken
	if refreshToken != "" {
		c.RefreshToken = refreshToken
	}
	c.TokenExpiresAt = expiresAt
	c.UpdatedAt = time.Now()
}

// MarkActive records a successful sync or test
func (c *MarketplaceConnection) MarkActive(now time.Time) {
	c.Status = ConnectionStatusActive
	c.LastError = ""
	c.LastSyncAt = &now
	c.UpdatedAt = now
}

// MarkError records a failed sync or test
func (c *MarketplaceConnection) MarkError(message string, now time.Time) {
	c.Status = ConnectionStatusError
	c.LastError = message
	c.UpdatedAt = now
}

// SetCredential stores one platform-specific key
func (c *MarketplaceConnection) SetCredential(key string, value any) {
	if c.Credentials == nil {
		c.Credentials = make(map[string]any)
	}
	c.Credentials[key] = value
	c.UpdatedAt = time.Now()
}

// CredentialString reads one platform-specific key as a string
func (c *MarketplaceConnection) CredentialString(key string) string {
	if c.Credentials == nil {
		return ""
	}
	s, _ := c.Credentials[key].(string)
	return s
}

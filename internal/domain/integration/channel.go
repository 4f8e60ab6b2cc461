package integration

import (
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/google/uuid"
)

// SalesChannel is a sellable destination: the local store or a marketplace connection.
// Channels are never removed implicitly; Disconnect is explicit.
type SalesChannel struct {
	ID      uuid.UUID
	StoreID uuid.UUID

	// Type is the declared platform of the channel
	Type PlatformCode

	Name     string
	Settings map[string]any

	// ConnectionID links the channel to a MarketplaceConnection
	ConnectionID *uuid.UUID

	// Connection is loaded together with the channel when linked
	Connection *MarketplaceConnection

	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsLocal reports whether this is the in-store channel
func (c *SalesChannel) IsLocal() bool {
	return c.Type == PlatformLocal
}

// HasConnection reports whether a connection is linked and loaded
func (c *SalesChannel) HasConnection() bool {
	return c.Connection != nil
}

// PlatformKey returns the key used to pick an adapter: the linked
// connection's platform, falling back to the channel's declared type.
func (c *SalesChannel) PlatformKey() PlatformCode {
	if c.IsLocal() {
		return PlatformLocal
	}
	if c.Connection != nil && c.Connection.Platform != "" {
		return c.Connection.Platform
	}
	return c.Type
}

// Disconnect unlinks the marketplace connection and deactivates the channel
func (c *SalesChannel) Disconnect() {
	c.ConnectionID = nil
	c.Connection = nil
	c.IsActive = false
	c.UpdatedAt = time.Now()
}

// ChannelSettings is the typed view of SalesChannel.Settings
type ChannelSettings struct {
	Currency         string `mapstructure:"currency"`
	DefaultCondition string `mapstructure:"default_condition"`
	// MarketplaceID is the eBay site or Amazon marketplace identifier
	MarketplaceID string `mapstructure:"marketplace_id"`
	// LocationKey is the eBay merchant inventory location
	LocationKey     string `mapstructure:"location_key"`
	PublishAsDraft  bool   `mapstructure:"publish_as_draft"`
	EnforceValidity bool   `mapstructure:"enforce_validation"`
}

// TypedSettings decodes the free-form settings map
func (c *SalesChannel) TypedSettings() (ChannelSettings, error) {
	settings := ChannelSettings{Currency: "USD", EnforceValidity: true}
	if err := decodeMap(c.Settings, &settings); err != nil {
		return ChannelSettings{}, err
	}
	return settings, nil
}

func decodeMap(src map[string]any, out any) error {
	if len(src) == 0 {
		return nil
	}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		TagName:          "mapstructure",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}
	return decoder.Decode(src)
}

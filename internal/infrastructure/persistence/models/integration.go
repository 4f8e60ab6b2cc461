package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/erp/listingsync/internal/domain/integration"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// SecretSealer encrypts and decrypts secret column values
type SecretSealer interface {
	Seal(plaintext []byte) ([]byte, error)
	Open(sealed []byte) ([]byte, error)
}

// ---------------------------------------------------------------------------
// Sales channels and connections
// ---------------------------------------------------------------------------

// SalesChannelModel is the persistence model for the SalesChannel domain entity.
type SalesChannelModel struct {
	StoreModel
	Type         integration.PlatformCode    `gorm:"type:varchar(20);not null;index"`
	Name         string                      `gorm:"type:varchar(100);not null"`
	Settings     datatypes.JSON              `gorm:"type:jsonb"`
	ConnectionID *uuid.UUID                  `gorm:"type:uuid;index"`
	Connection   *MarketplaceConnectionModel `gorm:"foreignKey:ConnectionID"`
	IsActive     bool                        `gorm:"not null"`
}

// TableName returns the table name for GORM
func (SalesChannelModel) TableName() string {
	return "sales_channels"
}

// ToDomain converts the persistence model to a domain SalesChannel.
// A preloaded connection is opened with sealer.
func (m *SalesChannelModel) ToDomain(sealer SecretSealer) (*integration.SalesChannel, error) {
	settings, err := decodeObject("channel settings", m.Settings)
	if err != nil {
		return nil, fmt.Errorf("channel %s: %w", m.ID, err)
	}
	channel := &integration.SalesChannel{
		ID:           m.ID,
		StoreID:      m.StoreID,
		Type:         m.Type,
		Name:         m.Name,
		Settings:     settings,
		ConnectionID: m.ConnectionID,
		IsActive:     m.IsActive,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
	if m.Connection != nil {
		conn, err := m.Connection.ToDomain(sealer)
		if err != nil {
			return nil, err
		}
		channel.Connection = conn
	}
	return channel, nil
}

// FromDomain populates the persistence model from a domain SalesChannel.
// The linked connection is saved separately.
func (m *SalesChannelModel) FromDomain(c *integration.SalesChannel) {
	m.ID = c.ID
	m.StoreID = c.StoreID
	m.Type = c.Type
	m.Name = c.Name
	m.Settings = encodeJSON(c.Settings)
	m.ConnectionID = c.ConnectionID
	m.IsActive = c.IsActive
	m.CreatedAt = c.CreatedAt
	m.UpdatedAt = c.UpdatedAt
}

// MarketplaceConnectionModel is the persistence model for the MarketplaceConnection
// domain entity. Tokens and credentials are stored sealed.
type MarketplaceConnectionModel struct {
	StoreModel
	Platform        integration.PlatformCode     `gorm:"type:varchar(20);not null;index"`
	AccessToken     []byte                       `gorm:"type:bytea"`
	RefreshToken    []byte                       `gorm:"type:bytea"`
	TokenExpiresAt  *time.Time                   `gorm:"index"`
	Credentials     []byte                       `gorm:"type:bytea"`
	Status          integration.ConnectionStatus `gorm:"type:varchar(20);not null;default:'pending'"`
	ShopDomain      string                       `gorm:"type:varchar(255)"`
	ExternalStoreID string                       `gorm:"type:varchar(100)"`
	LastSyncAt      *time.Time                   `gorm:"index"`
	LastError       string                       `gorm:"type:text"`
}

// TableName returns the table name for GORM
func (MarketplaceConnectionModel) TableName() string {
	return "marketplace_connections"
}

// ToDomain converts the persistence model to a domain MarketplaceConnection,
// opening the sealed columns
func (m *MarketplaceConnectionModel) ToDomain(sealer SecretSealer) (*integration.MarketplaceConnection, error) {
	access, err := openString(sealer, m.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("open access token of connection %s: %w", m.ID, err)
	}
	refresh, err := openString(sealer, m.RefreshToken)
	if err != nil {
		return nil, fmt.Errorf("open refresh token of connection %s: %w", m.ID, err)
	}
	credentials := make(map[string]any)
	if len(m.Credentials) > 0 {
		plain, err := sealer.Open(m.Credentials)
		if err != nil {
			return nil, fmt.Errorf("open credentials of connection %s: %w", m.ID, err)
		}
		if err := json.Unmarshal(plain, &credentials); err != nil {
			return nil, fmt.Errorf("decode credentials of connection %s: %w", m.ID, err)
		}
	}

	return &integration.MarketplaceConnection{
		ID:              m.ID,
		StoreID:         m.StoreID,
		Platform:        m.Platform,
		AccessToken:     access,
		RefreshToken:    refresh,
		TokenExpiresAt:  m.TokenExpiresAt,
		Credentials:     credentials,
		Status:          m.Status,
		ShopDomain:      m.ShopDomain,
		ExternalStoreID: m.ExternalStoreID,
		LastSyncAt:      m.LastSyncAt,
		LastError:       m.LastError,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}, nil
}

// FromDomain populates the persistence model from a domain MarketplaceConnection,
// sealing tokens and credentials
func (m *MarketplaceConnectionModel) FromDomain(c *integration.MarketplaceConnection, sealer SecretSealer) error {
	m.ID = c.ID
	m.StoreID = c.StoreID
	m.Platform = c.Platform
	m.TokenExpiresAt = c.TokenExpiresAt
	m.Status = c.Status
	m.ShopDomain = c.ShopDomain
	m.ExternalStoreID = c.ExternalStoreID
	m.LastSyncAt = c.LastSyncAt
	m.LastError = c.LastError
	m.CreatedAt = c.CreatedAt
	m.UpdatedAt = c.UpdatedAt

	var err error
	if m.AccessToken, err = sealString(sealer, c.AccessToken); err != nil {
		return fmt.Errorf("seal access token: %w", err)
	}
	if m.RefreshToken, err = sealString(sealer, c.RefreshToken); err != nil {
		return fmt.Errorf("seal refresh token: %w", err)
	}
	m.Credentials = nil
	if len(c.Credentials) > 0 {
		plain, err := json.Marshal(c.Credentials)
		if err != nil {
			return fmt.Errorf("encode credentials: %w", err)
		}
		if m.Credentials, err = sealer.Seal(plain); err != nil {
			return fmt.Errorf("seal credentials: %w", err)
		}
	}
	return nil
}

func sealString(sealer SecretSealer, s string) ([]byte, error) {
	if s == "" {
		return nil, nil
	}
	return sealer.Seal([]byte(s))
}

func openString(sealer SecretSealer, sealed []byte) (string, error) {
	if len(sealed) == 0 {
		return "", nil
	}
	plain, err := sealer.Open(sealed)
	if err != nil {
		return "", err
	}
	return string(plain), nil
}

// ---------------------------------------------------------------------------
// Listings
// ---------------------------------------------------------------------------

// PlatformListingModel is the persistence model for the PlatformListing domain entity.
// One row per (product, sales channel).
type PlatformListingModel struct {
	StoreModel
	ProductID         uuid.UUID                 `gorm:"type:uuid;not null;uniqueIndex:idx_platform_listing_product_channel,priority:1"`
	SalesChannelID    uuid.UUID                 `gorm:"type:uuid;not null;index;uniqueIndex:idx_platform_listing_product_channel,priority:2"`
	ExternalListingID *string                   `gorm:"type:varchar(100);index"`
	ListingURL        string                    `gorm:"type:varchar(500)"`
	Status            integration.ListingStatus `gorm:"type:varchar(20);not null;default:'draft';index"`
	PlatformPrice     *decimal.Decimal          `gorm:"type:decimal(18,4)"`
	PlatformQuantity  *int                      `gorm:"type:integer"`
	PlatformData      datatypes.JSON            `gorm:"type:jsonb"`
	PublishedAt       *time.Time                `gorm:"index"`
	LastSyncedAt      *time.Time                `gorm:"index"`
	LastError         string                    `gorm:"type:text"`
	Version           int                       `gorm:"not null;default:1"`
}

// TableName returns the table name for GORM
func (PlatformListingModel) TableName() string {
	return "platform_listings"
}

// ToDomain converts the persistence model to a domain PlatformListing
func (m *PlatformListingModel) ToDomain() (*integration.PlatformListing, error) {
	platformData, err := decodeObject("platform data", m.PlatformData)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", m.ID, err)
	}
	return &integration.PlatformListing{
		ID:                m.ID,
		StoreID:           m.StoreID,
		ProductID:         m.ProductID,
		SalesChannelID:    m.SalesChannelID,
		ExternalListingID: m.ExternalListingID,
		ListingURL:        m.ListingURL,
		Status:            m.Status,
		PlatformPrice:     m.PlatformPrice,
		PlatformQuantity:  m.PlatformQuantity,
		PlatformData:      platformData,
		PublishedAt:       m.PublishedAt,
		LastSyncedAt:      m.LastSyncedAt,
		LastError:         m.LastError,
		Version:           m.Version,
		CreatedAt:         m.CreatedAt,
		UpdatedAt:         m.UpdatedAt,
	}, nil
}

// FromDomain populates the persistence model from a domain PlatformListing
func (m *PlatformListingModel) FromDomain(l *integration.PlatformListing) {
	m.ID = l.ID
	m.StoreID = l.StoreID
	m.ProductID = l.ProductID
	m.SalesChannelID = l.SalesChannelID
	m.ExternalListingID = l.ExternalListingID
	m.ListingURL = l.ListingURL
	m.Status = l.Status
	m.PlatformPrice = l.PlatformPrice
	m.PlatformQuantity = l.PlatformQuantity
	m.PlatformData = encodeJSON(l.PlatformData)
	m.PublishedAt = l.PublishedAt
	m.LastSyncedAt = l.LastSyncedAt
	m.LastError = l.LastError
	m.Version = l.Version
	m.CreatedAt = l.CreatedAt
	m.UpdatedAt = l.UpdatedAt
}

// PlatformListingModelFromDomain creates a new persistence model from a domain PlatformListing
func PlatformListingModelFromDomain(l *integration.PlatformListing) *PlatformListingModel {
	m := &PlatformListingModel{}
	m.FromDomain(l)
	return m
}

// ProductPlatformOverrideModel is the persistence model for the ProductPlatformOverride
// domain entity. Nullable columns mean "no override".
type ProductPlatformOverrideModel struct {
	StoreModel
	ProductID   uuid.UUID                `gorm:"type:uuid;not null;uniqueIndex:idx_product_platform_override,priority:1"`
	Platform    integration.PlatformCode `gorm:"type:varchar(20);not null;uniqueIndex:idx_product_platform_override,priority:2"`
	Title       *string                  `gorm:"type:varchar(255)"`
	Description *string                  `gorm:"type:text"`
	Price       *decimal.Decimal         `gorm:"type:decimal(18,4)"`
	Quantity    *int                     `gorm:"type:integer"`
	CategoryID  *string                  `gorm:"type:varchar(100)"`
	Attributes  datatypes.JSON           `gorm:"type:jsonb"`
}

// TableName returns the table name for GORM
func (ProductPlatformOverrideModel) TableName() string {
	return "product_platform_overrides"
}

// ToDomain converts the persistence model to a domain ProductPlatformOverride
func (m *ProductPlatformOverrideModel) ToDomain() (*integration.ProductPlatformOverride, error) {
	o := &integration.ProductPlatformOverride{
		ID:          m.ID,
		StoreID:     m.StoreID,
		ProductID:   m.ProductID,
		Platform:    m.Platform,
		Title:       m.Title,
		Description: m.Description,
		Price:       m.Price,
		Quantity:    m.Quantity,
		CategoryID:  m.CategoryID,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
	if hasJSON(m.Attributes) {
		attributes, err := decodeObject("override attributes", m.Attributes)
		if err != nil {
			return nil, fmt.Errorf("override %s: %w", m.ID, err)
		}
		o.Attributes = attributes
	}
	return o, nil
}

// FromDomain populates the persistence model from a domain ProductPlatformOverride
func (m *ProductPlatformOverrideModel) FromDomain(o *integration.ProductPlatformOverride) {
	m.ID = o.ID
	m.StoreID = o.StoreID
	m.ProductID = o.ProductID
	m.Platform = o.Platform
	m.Title = o.Title
	m.Description = o.Description
	m.Price = o.Price
	m.Quantity = o.Quantity
	m.CategoryID = o.CategoryID
	m.Attributes = encodeJSON(o.Attributes)
	m.CreatedAt = o.CreatedAt
	m.UpdatedAt = o.UpdatedAt
}

// ---------------------------------------------------------------------------
// Category and template mappings
// ---------------------------------------------------------------------------

// CategoryPlatformMappingModel is the persistence model for the CategoryPlatformMapping
// domain entity
type CategoryPlatformMappingModel struct {
	StoreModel
	CategoryID              uuid.UUID                `gorm:"type:uuid;not null;uniqueIndex:idx_category_platform_mapping,priority:1"`
	Platform                integration.PlatformCode `gorm:"type:varchar(20);not null;uniqueIndex:idx_category_platform_mapping,priority:2"`
	PrimaryCategoryID       string                   `gorm:"type:varchar(100);not null"`
	SecondaryCategoryID     *string                  `gorm:"type:varchar(100)"`
	CategoryPath            string                   `gorm:"type:varchar(500)"`
	FieldMappings           datatypes.JSON           `gorm:"type:jsonb"`
	DefaultValues           datatypes.JSON           `gorm:"type:jsonb"`
	ItemSpecifics           datatypes.JSON           `gorm:"type:jsonb"`
	ItemSpecificsCategoryID string                   `gorm:"type:varchar(100)"`
	ItemSpecificsSyncedAt   *time.Time               `gorm:"index"`
	Metadata                datatypes.JSON           `gorm:"type:jsonb"`
}

// TableName returns the table name for GORM
func (CategoryPlatformMappingModel) TableName() string {
	return "category_platform_mappings"
}

// ToDomain converts the persistence model to a domain CategoryPlatformMapping
func (m *CategoryPlatformMappingModel) ToDomain() (*integration.CategoryPlatformMapping, error) {
	mapping := &integration.CategoryPlatformMapping{
		ID:                      m.ID,
		StoreID:                 m.StoreID,
		CategoryID:              m.CategoryID,
		Platform:                m.Platform,
		PrimaryCategoryID:       m.PrimaryCategoryID,
		SecondaryCategoryID:     m.SecondaryCategoryID,
		CategoryPath:            m.CategoryPath,
		FieldMappings:           make(map[string]string),
		ItemSpecificsCategoryID: m.ItemSpecificsCategoryID,
		ItemSpecificsSyncedAt:   m.ItemSpecificsSyncedAt,
		CreatedAt:               m.CreatedAt,
		UpdatedAt:               m.UpdatedAt,
	}
	var err error
	if mapping.DefaultValues, err = decodeObject("default values", m.DefaultValues); err != nil {
		return nil, fmt.Errorf("category mapping %s: %w", m.ID, err)
	}
	if mapping.Metadata, err = decodeObject("metadata", m.Metadata); err != nil {
		return nil, fmt.Errorf("category mapping %s: %w", m.ID, err)
	}
	if err = decodeJSON("field mappings", m.FieldMappings, &mapping.FieldMappings); err != nil {
		return nil, fmt.Errorf("category mapping %s: %w", m.ID, err)
	}
	if err = decodeJSON("item specifics", m.ItemSpecifics, &mapping.ItemSpecifics); err != nil {
		return nil, fmt.Errorf("category mapping %s: %w", m.ID, err)
	}
	return mapping, nil
}

// FromDomain populates the persistence model from a domain CategoryPlatformMapping
func (m *CategoryPlatformMappingModel) FromDomain(c *integration.CategoryPlatformMapping) {
	m.ID = c.ID
	m.StoreID = c.StoreID
	m.CategoryID = c.CategoryID
	m.Platform = c.Platform
	m.PrimaryCategoryID = c.PrimaryCategoryID
	m.SecondaryCategoryID = c.SecondaryCategoryID
	m.CategoryPath = c.CategoryPath
	m.FieldMappings = encodeJSON(c.FieldMappings)
	m.DefaultValues = encodeJSON(c.DefaultValues)
	m.ItemSpecifics = encodeJSON(c.ItemSpecifics)
	m.ItemSpecificsCategoryID = c.ItemSpecificsCategoryID
	m.ItemSpecificsSyncedAt = c.ItemSpecificsSyncedAt
	m.Metadata = encodeJSON(c.Metadata)
	m.CreatedAt = c.CreatedAt
	m.UpdatedAt = c.UpdatedAt
}

// TemplatePlatformMappingModel is the persistence model for the TemplatePlatformMapping
// domain entity
type TemplatePlatformMappingModel struct {
	StoreModel
	TemplateID        uuid.UUID                `gorm:"type:uuid;not null;uniqueIndex:idx_template_platform_mapping,priority:1"`
	Platform          integration.PlatformCode `gorm:"type:varchar(20);not null;uniqueIndex:idx_template_platform_mapping,priority:2"`
	FieldMappings     datatypes.JSON           `gorm:"type:jsonb"`
	DefaultValues     datatypes.JSON           `gorm:"type:jsonb"`
	MetafieldMappings datatypes.JSON           `gorm:"type:jsonb"`
	IsAISuggested     bool                     `gorm:"column:is_ai_suggested;not null;default:false"`
}

// TableName returns the table name for GORM
func (TemplatePlatformMappingModel) TableName() string {
	return "template_platform_mappings"
}

// ToDomain converts the persistence model to a domain TemplatePlatformMapping
func (m *TemplatePlatformMappingModel) ToDomain() (*integration.TemplatePlatformMapping, error) {
	mapping := &integration.TemplatePlatformMapping{
		ID:                m.ID,
		StoreID:           m.StoreID,
		TemplateID:        m.TemplateID,
		Platform:          m.Platform,
		FieldMappings:     make(map[string]string),
		MetafieldMappings: make(map[string]integration.MetafieldMapping),
		IsAISuggested:     m.IsAISuggested,
		CreatedAt:         m.CreatedAt,
		UpdatedAt:         m.UpdatedAt,
	}
	var err error
	if mapping.DefaultValues, err = decodeObject("default values", m.DefaultValues); err != nil {
		return nil, fmt.Errorf("template mapping %s: %w", m.ID, err)
	}
	if err = decodeJSON("field mappings", m.FieldMappings, &mapping.FieldMappings); err != nil {
		return nil, fmt.Errorf("template mapping %s: %w", m.ID, err)
	}
	if err = decodeJSON("metafield mappings", m.MetafieldMappings, &mapping.MetafieldMappings); err != nil {
		return nil, fmt.Errorf("template mapping %s: %w", m.ID, err)
	}
	return mapping, nil
}

// FromDomain populates the persistence model from a domain TemplatePlatformMapping
func (m *TemplatePlatformMappingModel) FromDomain(t *integration.TemplatePlatformMapping) {
	m.ID = t.ID
	m.StoreID = t.StoreID
	m.TemplateID = t.TemplateID
	m.Platform = t.Platform
	m.FieldMappings = encodeJSON(t.FieldMappings)
	m.DefaultValues = encodeJSON(t.DefaultValues)
	m.MetafieldMappings = encodeJSON(t.MetafieldMappings)
	m.IsAISuggested = t.IsAISuggested
	m.CreatedAt = t.CreatedAt
	m.UpdatedAt = t.UpdatedAt
}

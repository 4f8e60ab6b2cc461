package integration

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ListingRepository persists PlatformListings
type ListingRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*PlatformListing, error)
	FindByProductAndChannel(ctx context.Context, productID, channelID uuid.UUID) (*PlatformListing, error)
	FindByChannel(ctx context.Context, channelID uuid.UUID, filter ListingFilter) ([]PlatformListing, error)
	// Create inserts a new listing; a second listing for the same pair is ErrListingAlreadyExists
	Create(ctx context.Context, listing *PlatformListing) error
	// Update writes the listing if its version is unchanged and increments it
	Update(ctx context.Context, listing *PlatformListing) error
}

// SalesChannelRepository persists SalesChannels
type SalesChannelRepository interface {
	// FindByID loads the channel with its connection
	FindByID(ctx context.Context, id uuid.UUID) (*SalesChannel, error)
	FindByStoreAndPlatform(ctx context.Context, storeID uuid.UUID, platform PlatformCode) ([]SalesChannel, error)
	Save(ctx context.Context, channel *SalesChannel) error
}

// ConnectionRepository persists MarketplaceConnections
type ConnectionRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*MarketplaceConnection, error)
	Save(ctx context.Context, conn *MarketplaceConnection) error
}

// OverrideRepository persists ProductPlatformOverrides
type OverrideRepository interface {
	// FindByProductAndPlatform returns ErrOverrideNotFound when none exists
	FindByProductAndPlatform(ctx context.Context, productID uuid.UUID, platform PlatformCode) (*ProductPlatformOverride, error)
	Save(ctx context.Context, override *ProductPlatformOverride) error
}

// CategoryMappingRepository persists CategoryPlatformMappings
type CategoryMappingRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*CategoryPlatformMapping, error)
	// FindByCategoryAndPlatform returns ErrCategoryMappingNotFound when none exists
	FindByCategoryAndPlatform(ctx context.Context, categoryID uuid.UUID, platform PlatformCode) (*CategoryPlatformMapping, error)
	FindByCategory(ctx context.Context, categoryID uuid.UUID) ([]CategoryPlatformMapping, error)
	// Upsert inserts or replaces the mapping keyed by (category, platform)
	Upsert(ctx context.Context, mapping *CategoryPlatformMapping) error
	Delete(ctx context.Context, categoryID uuid.UUID, platform PlatformCode) error
	// FindItemSpecificsDue lists up to limit mappings on platforms with item
	// specifics whose specifics were never synced, were synced before
	// syncedBefore, or belong to an older primary category
	FindItemSpecificsDue(ctx context.Context, syncedBefore time.Time, limit int) ([]CategoryPlatformMapping, error)
}

// TemplateMappingRepository persists TemplatePlatformMappings
type TemplateMappingRepository interface {
	// FindByTemplateAndPlatform returns ErrTemplateMappingNotFound when none exists
	FindByTemplateAndPlatform(ctx context.Context, templateID uuid.UUID, platform PlatformCode) (*TemplatePlatformMapping, error)
	// Upsert inserts or replaces the mapping keyed by (template, platform)
	Upsert(ctx context.Context, mapping *TemplatePlatformMapping) error
}

// Package models contains GORM-specific persistence models that map to database tables.
// These models are separate from domain entities to keep the domain layer pure and free
// from ORM concerns.
//
// Key Principles:
// 1. Domain entities should be free of GORM tags and infrastructure concerns
// 2. Persistence models contain all GORM annotations and table mappings
// 3. Mappers convert between domain entities and persistence models
// 4. Repositories use persistence models for database operations
//
// Structure:
// - base.go: Base persistence models (BaseModel, StoreModel)
// - catalog.go: Catalog read models (Product, ProductVariant, Category, ProductTemplate)
// - integration.go: Listing models (SalesChannel, MarketplaceConnection, PlatformListing,
// overrides, category and template mappings)
//
// Secret columns of MarketplaceConnectionModel are stored sealed; the SecretSealer
// handed to its mappers does the encryption.
package models

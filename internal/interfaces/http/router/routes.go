package router

import (
	"github.com/erp/listingsync/internal/interfaces/http/handler"
)

// Handlers bundles the HTTP handlers mounted under the API prefix
type Handlers struct {
	Listing         *handler.ListingHandler
	FieldMapping    *handler.FieldMappingHandler
	CategoryMapping *handler.CategoryMappingHandler
	Connection      *handler.ConnectionHandler
}

// DomainGroups returns the route groups of the listing service
func DomainGroups(h Handlers) []RouteRegistrar {
	listings := NewDomainGroup("listings", "/listings")
	listings.POST("/:id/publish", h.Listing.Publish)
	listings.POST("/:id/unpublish", h.Listing.Unpublish)
	listings.POST("/:id/end", h.Listing.End)
	listings.POST("/:id/sync", h.Listing.Sync)
	listings.POST("/:id/refresh", h.Listing.Refresh)
	listings.PUT("/:id/price", h.Listing.UpdatePrice)
	listings.PUT("/:id/inventory", h.Listing.UpdateInventory)

	products := NewDomainGroup("products", "/products")
	products.GET("/:id/channels/:channelId/preview", h.Listing.Preview)
	products.POST("/:id/channels/:channelId/listing", h.Listing.EnsureListing)
	products.GET("/:id/categories/:platform", h.CategoryMapping.ProductCategory)

	channels := NewDomainGroup("channels", "/channels")
	channels.POST("/:id/bulk-listings", h.Listing.BulkListing)

	mappings := NewDomainGroup("mappings", "/mappings")
	mappings.GET("/schemas/:platform", h.FieldMapping.GetSchema)

	templates := NewDomainGroup("templates", "/templates")
	templateMappings := templates.Group("template-mappings", "/:id/mappings/:platform")
	templateMappings.GET("", h.FieldMapping.GetMapping)
	templateMappings.PUT("", h.FieldMapping.SaveMapping)
	templateMappings.POST("/suggest", h.FieldMapping.Suggest)
	templateMappings.GET("/unmapped", h.FieldMapping.Unmapped)

	categories := NewDomainGroup("categories", "/categories")
	categories.GET("/:id/mappings", h.CategoryMapping.ListMappings)
	categories.PUT("/:id/mappings/:platform", h.CategoryMapping.SaveMapping)
	categories.DELETE("/:id/mappings/:platform", h.CategoryMapping.DeleteMapping)

	connections := NewDomainGroup("connections", "/connections")
	connections.POST("/:id/test", h.Connection.Test)
	connections.POST("/:id/business-policies/sync", h.Connection.SyncBusinessPolicies)

	return []RouteRegistrar{listings, products, channels, mappings, templates, categories, connections}
}

// Package integration contains the marketplace listing bounded context.
// It models how store products are exposed on external marketplaces and on
// the local in-store channel.
//
// Key concepts:
//   - ListingAdapter: port implemented once per marketplace (Shopify, eBay, Amazon, Etsy,
//     Walmart, WooCommerce, BigCommerce) plus the local channel
//   - PlatformListing: the join of one product and one sales channel
//   - AdapterResult: the outcome of a single adapter call
//   - CategoryPlatformMapping / TemplatePlatformMapping: how store data maps onto each
//     marketplace's categories and fields
//
// Design Pattern: Ports & Adapters
//   - Ports (interfaces) are defined here in the domain layer
//   - Adapters (implementations) are in the infrastructure layer
package integration

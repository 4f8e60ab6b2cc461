package integration

// PlatformCode identifies a marketplace (or the local channel)
type PlatformCode string

const (
	PlatformShopify     PlatformCode = "shopify"
	PlatformEbay        PlatformCode = "ebay"
	PlatformAmazon      PlatformCode = "amazon"
	PlatformEtsy        PlatformCode = "etsy"
	PlatformWalmart     PlatformCode = "walmart"
	PlatformWooCommerce PlatformCode = "woocommerce"
	PlatformBigCommerce PlatformCode = "bigcommerce"
	PlatformLocal       PlatformCode = "local"
)

// AllPlatforms returns every known platform code
func AllPlatforms() []PlatformCode {
	return []PlatformCode{
		PlatformShopify,
		PlatformEbay,
		PlatformAmazon,
		PlatformEtsy,
		PlatformWalmart,
		PlatformWooCommerce,
		PlatformBigCommerce,
		PlatformLocal,
	}
}

// IsValid returns true if the platform code is known
func (c PlatformCode) IsValid() bool {
	switch c {
	case PlatformShopify, PlatformEbay, PlatformAmazon, PlatformEtsy,
		PlatformWalmart, PlatformWooCommerce, PlatformBigCommerce, PlatformLocal:
		return true
	default:
		return false
	}
}

// String returns the string representation of PlatformCode
func (c PlatformCode) String() string {
	return string(c)
}

// DisplayName returns a human-readable name for the platform
func (c PlatformCode) DisplayName() string {
	switch c {
	case PlatformShopify:
		return "Shopify"
	case PlatformEbay:
		return "eBay"
	case PlatformAmazon:
		return "Amazon"
	case PlatformEtsy:
		return "Etsy"
	case PlatformWalmart:
		return "Walmart"
	case PlatformWooCommerce:
		return "WooCommerce"
	case PlatformBigCommerce:
		return "BigCommerce"
	case PlatformLocal:
		return "Local"
	default:
		return string(c)
	}
}

// SupportsMetafields reports whether the platform accepts arbitrary custom attributes
func (c PlatformCode) SupportsMetafields() bool {
	switch c {
	case PlatformShopify, PlatformWooCommerce, PlatformBigCommerce:
		return true
	default:
		return false
	}
}

// SupportsItemSpecifics reports whether category-specific aspects must be
// fetched from the platform and kept in sync.
func (c PlatformCode) SupportsItemSpecifics() bool {
	return c == PlatformEbay
}

// IsMarketplace is true for every platform backed by an external system
func (c PlatformCode) IsMarketplace() bool {
	return c.IsValid() && c != PlatformLocal
}

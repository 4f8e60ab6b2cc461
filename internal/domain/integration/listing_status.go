package integration

// ListingStatus is the canonical status of a PlatformListing
type ListingStatus string

const (
	ListingStatusDraft   ListingStatus = "draft"
	ListingStatusPending ListingStatus = "pending"
	ListingStatusListed  ListingStatus = "listed"
	ListingStatusActive  ListingStatus = "active"
	ListingStatusEnded   ListingStatus = "ended"
	ListingStatusError   ListingStatus = "error"
)

// IsValid returns true if the status is part of the canonical set
func (s ListingStatus) IsValid() bool {
	switch s {
	case ListingStatusDraft, ListingStatusPending, ListingStatusListed,
		ListingStatusActive, ListingStatusEnded, ListingStatusError:
		return true
	default:
		return false
	}
}

// IsLive reports whether buyers can currently see the listing
func (s ListingStatus) IsLive() bool {
	return s == ListingStatusListed || s == ListingStatusActive
}

// String returns the string representation of ListingStatus
func (s ListingStatus) String() string {
	return string(s)
}

// StatusTable translates a platform's native status vocabulary into ListingStatus.
// Keys are matched exactly.
type StatusTable map[string]ListingStatus

// Resolve maps native to a canonical status. Unknown values keep current and
// report false.
func (t StatusTable) Resolve(native string, current ListingStatus) (ListingStatus, bool) {
	if status, ok := t[native]; ok {
		return status, true
	}
	return current, false
}

// Native status tables, one per marketplace
var (
	AmazonStatusTable = StatusTable{
		"BUYABLE":      ListingStatusListed,
		"DISCOVERABLE": ListingStatusListed,
		"DELETED":      ListingStatusEnded,
	}

	EtsyStatusTable = StatusTable{
		"active":   ListingStatusListed,
		"inactive": ListingStatusEnded,
		"expired":  ListingStatusEnded,
		"removed":  ListingStatusEnded,
		"draft":    ListingStatusPending,
	}

	WalmartStatusTable = StatusTable{
		"PUBLISHED":      ListingStatusListed,
		"UNPUBLISHED":    ListingStatusEnded,
		"RETIRED":        ListingStatusEnded,
		"SYSTEM_PROBLEM": ListingStatusError,
	}

	ShopifyStatusTable = StatusTable{
		"active":   ListingStatusActive,
		"draft":    ListingStatusDraft,
		"archived": ListingStatusEnded,
	}

	EbayStatusTable = StatusTable{
		"PUBLISHED":   ListingStatusListed,
		"UNPUBLISHED": ListingStatusEnded,
	}

	WooCommerceStatusTable = StatusTable{
		"publish": ListingStatusListed,
		"draft":   ListingStatusDraft,
		"pending": ListingStatusPending,
		"private": ListingStatusEnded,
		"trash":   ListingStatusEnded,
	}

	// BigCommerce exposes a visibility flag, rendered as "true"/"false"
	BigCommerceStatusTable = StatusTable{
		"true":  ListingStatusListed,
		"false": ListingStatusEnded,
	}
)

// StatusTableFor returns the native status table of a platform
func StatusTableFor(platform PlatformCode) StatusTable {
	switch platform {
	case PlatformAmazon:
		return AmazonStatusTable
	case PlatformEtsy:
		return EtsyStatusTable
	case PlatformWalmart:
		return WalmartStatusTable
	case PlatformShopify:
		return ShopifyStatusTable
	case PlatformEbay:
		return EbayStatusTable
	case PlatformWooCommerce:
		return WooCommerceStatusTable
	case PlatformBigCommerce:
		return BigCommerceStatusTable
	default:
		return StatusTable{}
	}
}

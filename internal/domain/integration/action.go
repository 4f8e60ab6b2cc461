package integration

// ListingAction names one ListingManager operation
type ListingAction string

const (
	ActionPublish         ListingAction = "publish"
	ActionUnpublish       ListingAction = "unpublish"
	ActionEnd             ListingAction = "end"
	ActionUpdatePrice     ListingAction = "update_price"
	ActionUpdateInventory ListingAction = "update_inventory"
	ActionSync            ListingAction = "sync"
	ActionRefresh         ListingAction = "refresh"
)

// IsLifecycle is true for actions whose failure moves the listing to error.
// Incremental actions only record the error message.
func (a ListingAction) IsLifecycle() bool {
	switch a {
	case ActionPublish, ActionUnpublish, ActionEnd:
		return true
	default:
		return false
	}
}

// String returns the string representation of ListingAction
func (a ListingAction) String() string {
	return string(a)
}

package catalog

import (
	"github.com/erp/listingsync/internal/domain/shared"
	"github.com/google/uuid"
)

// Category is a node of the store's category tree
type Category struct {
	shared.BaseEntity
	StoreID  uuid.UUID
	ParentID *uuid.UUID
	Name     string
}

// IsRoot returns true if the category has no parent
func (c *Category) IsRoot() bool {
	return c.ParentID == nil
}

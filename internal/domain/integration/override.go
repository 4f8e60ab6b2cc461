package integration

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ProductPlatformOverride holds per-(product, platform) values that win over the
// product's base data. A nil field means "no override"; a zero price or quantity
// is a real override.
type ProductPlatformOverride struct {
	ID        uuid.UUID
	StoreID   uuid.UUID
	ProductID uuid.UUID
	Platform  PlatformCode

	Title       *string
	Description *string
	Price       *decimal.Decimal
	Quantity    *int
	CategoryID  *string
	Attributes  map[string]any

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewProductPlatformOverride creates an empty override
func NewProductPlatformOverride(storeID, productID uuid.UUID, platform PlatformCode) (*ProductPlatformOverride, error) {
	if !platform.IsValid() {
		return nil, ErrInvalidPlatformCode
	}
	now := time.Now()
	return &ProductPlatformOverride{
		ID:        uuid.New(),
		StoreID:   storeID,
		ProductID: productID,
		Platform:  platform,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// IsEmpty reports whether no field is overridden
func (o *ProductPlatformOverride) IsEmpty() bool {
	return o.Title == nil && o.Description == nil && o.Price == nil &&
		o.Quantity == nil && o.CategoryID == nil && len(o.Attributes) == 0
}

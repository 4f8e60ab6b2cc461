package integration

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// ItemSpecificsMaxAge is how long fetched item specifics stay fresh
const ItemSpecificsMaxAge = 30 * 24 * time.Hour

// CategoryPlatformMapping maps one internal category to a marketplace category.
// Descendant categories without their own mapping inherit it.
type CategoryPlatformMapping struct {
	ID         uuid.UUID
	StoreID    uuid.UUID
	CategoryID uuid.UUID
	Platform   PlatformCode

	// PrimaryCategoryID is the marketplace category id
	PrimaryCategoryID string

	// SecondaryCategoryID is an optional second listing category
	SecondaryCategoryID *string

	// CategoryPath is the human-readable marketplace breadcrumb
	CategoryPath string

	FieldMappings map[string]string
	DefaultValues map[string]any

	// ItemSpecifics are the aspects the marketplace defines for PrimaryCategoryID
	ItemSpecifics []PlatformField

	// ItemSpecificsCategoryID is the category the stored specifics were fetched for
	ItemSpecificsCategoryID string
	ItemSpecificsSyncedAt   *time.Time

	Metadata map[string]any

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewCategoryPlatformMapping creates a mapping after validating its keys
func NewCategoryPlatformMapping(storeID, categoryID uuid.UUID, platform PlatformCode, primaryCategoryID string) (*CategoryPlatformMapping, error) {
	if !platform.IsValid() {
		return nil, ErrInvalidPlatformCode
	}
	if strings.TrimSpace(primaryCategoryID) == "" {
		return nil, ErrInvalidCategoryID
	}
	now := time.Now()
	return &CategoryPlatformMapping{
		ID:                uuid.New(),
		StoreID:           storeID,
		CategoryID:        categoryID,
		Platform:          platform,
		PrimaryCategoryID: primaryCategoryID,
		FieldMappings:     make(map[string]string),
		DefaultValues:     make(map[string]any),
		Metadata:          make(map[string]any),
		CreatedAt:         now,
		UpdatedAt:         now,
	}, nil
}

// ItemSpecificsStale reports whether item specifics must be (re)fetched: the
// platform has them and they were never synced, are older than
// ItemSpecificsMaxAge, or belong to a different primary category.
func (m *CategoryPlatformMapping) ItemSpecificsStale(now time.Time) bool {
	if !m.Platform.SupportsItemSpecifics() {
		return false
	}
	if m.ItemSpecificsSyncedAt == nil {
		return true
	}
	if m.ItemSpecificsCategoryID != m.PrimaryCategoryID {
		return true
	}
	return now.Sub(*m.ItemSpecificsSyncedAt) > ItemSpecificsMaxAge
}

// RecordItemSpecifics stores freshly fetched aspects for the current primary category
func (m *CategoryPlatformMapping) RecordItemSpecifics(fields []PlatformField, now time.Time) {
	m.ItemSpecifics = fields
	m.ItemSpecificsCategoryID = m.PrimaryCategoryID
	m.ItemSpecificsSyncedAt = &now
	m.UpdatedAt = now
}

// RequiredItemSpecifics returns the names of mandatory aspects
func (m *CategoryPlatformMapping) RequiredItemSpecifics() []string {
	var names []string
	for _, f := range m.ItemSpecifics {
		if f.Required {
			names = append(names, f.Name)
		}
	}
	return names
}

// ResolvedCategory is the marketplace category a product resolves to
type ResolvedCategory struct {
	PrimaryCategoryID   *string
	SecondaryCategoryID *string
	// MappingID and FromCategoryID identify the mapping that matched, if any
	MappingID      *uuid.UUID
	FromCategoryID *uuid.UUID
	CategoryPath   string
}

// Found reports whether any mapping matched
func (r ResolvedCategory) Found() bool {
	return r.PrimaryCategoryID != nil
}

package catalog

import (
	"context"

	"github.com/google/uuid"
)

// ProductReader loads products for listing assembly
type ProductReader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Product, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]Product, error)
}

// CategoryReader loads categories for ancestor resolution
type CategoryReader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Category, error)
}

// TemplateReader loads product templates
type TemplateReader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*ProductTemplate, error)
}

package listing

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/erp/listingsync/internal/domain/catalog"
	"github.com/erp/listingsync/internal/domain/integration"
	"github.com/erp/listingsync/internal/domain/shared"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CategoryMappingService maps store categories onto marketplace categories.
// A category without its own mapping inherits the nearest ancestor's.
type CategoryMappingService struct {
	categoryRepo catalog.CategoryReader
	mappingRepo  integration.CategoryMappingRepository
	jobs         integration.JobDispatcher
	logger       *zap.Logger
	now          func() time.Time
}

// NewCategoryMappingService creates a new CategoryMappingService
func NewCategoryMappingService(
	categoryRepo catalog.CategoryReader,
	mappingRepo integration.CategoryMappingRepository,
	logger *zap.Logger,
) *CategoryMappingService {
	return &CategoryMappingService{
		categoryRepo: categoryRepo,
		mappingRepo:  mappingRepo,
		logger:       logger,
		now:          time.Now,
	}
}

// SetJobDispatcher sets the queue used for item specifics syncs
func (s *CategoryMappingService) SetJobDispatcher(jobs integration.JobDispatcher) {
	s.jobs = jobs
}

// ---------------------------------------------------------------------------
// Resolution
// ---------------------------------------------------------------------------

// ResolveCategory finds the marketplace category of a product by checking its
// category and then each ancestor in turn. An empty result means no category
// in the chain is mapped.
func (s *CategoryMappingService) ResolveCategory(ctx context.Context, product *catalog.Product, platform integration.PlatformCode) (integration.ResolvedCategory, error) {
	if product == nil || product.CategoryID == nil {
		return integration.ResolvedCategory{}, nil
	}

	current := *product.CategoryID
	visited := make(map[uuid.UUID]struct{})
	for {
		visited[current] = struct{}{}

		mapping, err := s.mappingRepo.FindByCategoryAndPlatform(ctx, current, platform)
		if err == nil {
			return resolvedFrom(mapping), nil
		}
		if !errors.Is(err, integration.ErrCategoryMappingNotFound) {
			return integration.ResolvedCategory{}, err
		}

		category, err := s.categoryRepo.FindByID(ctx, current)
		if err != nil {
			return integration.ResolvedCategory{}, err
		}
		if category.IsRoot() {
			return integration.ResolvedCategory{}, nil
		}
		if _, seen := visited[*category.ParentID]; seen {
			s.logger.Warn("category parent chain has a cycle",
				zap.String("category_id", category.ID.String()),
				zap.String("parent_id", category.ParentID.String()),
			)
			return integration.ResolvedCategory{}, nil
		}
		current = *category.ParentID
	}
}

// MappingForProduct returns the mapping a product resolves to, or nil
func (s *CategoryMappingService) MappingForProduct(ctx context.Context, product *catalog.Product, platform integration.PlatformCode) (*integration.CategoryPlatformMapping, error) {
	resolved, err := s.ResolveCategory(ctx, product, platform)
	if err != nil || resolved.MappingID == nil {
		return nil, err
	}
	return s.mappingRepo.FindByID(ctx, *resolved.MappingID)
}

func resolvedFrom(m *integration.CategoryPlatformMapping) integration.ResolvedCategory {
	primary := m.PrimaryCategoryID
	mappingID := m.ID
	categoryID := m.CategoryID
	return integration.ResolvedCategory{
		PrimaryCategoryID:   &primary,
		SecondaryCategoryID: m.SecondaryCategoryID,
		MappingID:           &mappingID,
		FromCategoryID:      &categoryID,
		CategoryPath:        m.CategoryPath,
	}
}

// ---------------------------------------------------------------------------
// CRUD Operations
// ---------------------------------------------------------------------------

// SaveMapping upserts the mapping of a category on a platform. When the stored
// item specifics are stale a sync job is queued; the save never waits for it.
func (s *CategoryMappingService) SaveMapping(ctx context.Context, storeID uuid.UUID, input SaveCategoryMappingInput) (*integration.CategoryPlatformMapping, error) {
	if !input.Platform.IsMarketplace() {
		return nil, shared.InvalidInput("Platform must be a marketplace")
	}
	if strings.TrimSpace(input.PrimaryCategoryID) == "" {
		return nil, shared.InvalidInput("Primary category id is required")
	}

	category, err := s.categoryRepo.FindByID(ctx, input.CategoryID)
	if err != nil {
		return nil, err
	}
	if category.StoreID != storeID {
		return nil, shared.NotFound("Category not found")
	}

	mapping, err := s.mappingRepo.FindByCategoryAndPlatform(ctx, input.CategoryID, input.Platform)
	switch {
	case errors.Is(err, integration.ErrCategoryMappingNotFound):
		mapping, err = integration.NewCategoryPlatformMapping(storeID, input.CategoryID, input.Platform, input.PrimaryCategoryID)
		if err != nil {
			return nil, err
		}
	case err != nil:
		return nil, err
	default:
		mapping.PrimaryCategoryID = strings.TrimSpace(input.PrimaryCategoryID)
	}

	mapping.SecondaryCategoryID = input.SecondaryCategoryID
	mapping.CategoryPath = input.CategoryPath
	if input.FieldMappings != nil {
		mapping.FieldMappings = input.FieldMappings
	}
	if input.DefaultValues != nil {
		mapping.DefaultValues = input.DefaultValues
	}
	now := s.now()
	mapping.UpdatedAt = now

	if err := s.mappingRepo.Upsert(ctx, mapping); err != nil {
		return nil, err
	}

	if mapping.ItemSpecificsStale(now) {
		s.queueItemSpecificsSync(ctx, mapping)
	}
	return mapping, nil
}

func (s *CategoryMappingService) queueItemSpecificsSync(ctx context.Context, mapping *integration.CategoryPlatformMapping) {
	if s.jobs == nil {
		return
	}
	payload := integration.ItemSpecificsSyncPayload{
		MappingID:  mapping.ID,
		StoreID:    mapping.StoreID,
		CategoryID: mapping.CategoryID,
		Platform:   mapping.Platform,
	}
	if err := s.jobs.Dispatch(ctx, integration.JobItemSpecificsSync, payload); err != nil {
		s.logger.Warn("failed to queue item specifics sync",
			zap.String("mapping_id", mapping.ID.String()),
			zap.String("platform", mapping.Platform.String()),
			zap.Error(err),
		)
	}
}

// DeleteMapping removes the mapping of a category on a platform
func (s *CategoryMappingService) DeleteMapping(ctx context.Context, storeID, categoryID uuid.UUID, platform integration.PlatformCode) error {
	mapping, err := s.mappingRepo.FindByCategoryAndPlatform(ctx, categoryID, platform)
	if err != nil {
		return err
	}
	if mapping.StoreID != storeID {
		return integration.ErrCategoryMappingNotFound
	}
	return s.mappingRepo.Delete(ctx, categoryID, platform)
}

// ListMappings lists every platform mapping of a category
func (s *CategoryMappingService) ListMappings(ctx context.Context, storeID, categoryID uuid.UUID) ([]integration.CategoryPlatformMapping, error) {
	mappings, err := s.mappingRepo.FindByCategory(ctx, categoryID)
	if err != nil {
		return nil, err
	}
	out := make([]integration.CategoryPlatformMapping, 0, len(mappings))
	for _, m := range mappings {
		if m.StoreID == storeID {
			out = append(out, m)
		}
	}
	return out, nil
}

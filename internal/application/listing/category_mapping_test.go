package listing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/erp/listingsync/internal/domain/catalog"
	"github.com/erp/listingsync/internal/domain/integration"
	"github.com/erp/listingsync/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newCategory(storeID uuid.UUID, parent *catalog.Category) *catalog.Category {
	c := &catalog.Category{BaseEntity: shared.NewBaseEntity(), StoreID: storeID}
	if parent != nil {
		c.ParentID = &parent.ID
	}
	return c
}

func TestCategoryMappingService_ResolveCategory(t *testing.T) {
	ctx := context.Background()
	storeID := uuid.New()

	t.Run("uses the nearest mapped ancestor", func(t *testing.T) {
		categories := new(MockCategoryReader)
		mappings := new(MockCategoryMappingRepository)
		svc := NewCategoryMappingService(categories, mappings, zap.NewNop())

		root := newCategory(storeID, nil)
		kitchen := newCategory(storeID, root)
		mugs := newCategory(storeID, kitchen)
		rootMapping, _ := integration.NewCategoryPlatformMapping(storeID, root.ID, integration.PlatformEbay, "20625")
		rootMapping.CategoryPath = "Home & Garden > Kitchen"

		mappings.On("FindByCategoryAndPlatform", mock.Anything, mugs.ID, integration.PlatformEbay).Return(nil, integration.ErrCategoryMappingNotFound)
		mappings.On("FindByCategoryAndPlatform", mock.Anything, kitchen.ID, integration.PlatformEbay).Return(nil, integration.ErrCategoryMappingNotFound)
		mappings.On("FindByCategoryAndPlatform", mock.Anything, root.ID, integration.PlatformEbay).Return(rootMapping, nil)
		categories.On("FindByID", mock.Anything, mugs.ID).Return(mugs, nil)
		categories.On("FindByID", mock.Anything, kitchen.ID).Return(kitchen, nil)

		product := newTestProduct(storeID)
		product.CategoryID = &mugs.ID

		resolved, err := svc.ResolveCategory(ctx, product, integration.PlatformEbay)

		require.NoError(t, err)
		require.True(t, resolved.Found())
		assert.Equal(t, "20625", *resolved.PrimaryCategoryID)
		assert.Equal(t, root.ID, *resolved.FromCategoryID)
		assert.Equal(t, rootMapping.ID, *resolved.MappingID)
		assert.Equal(t, "Home & Garden > Kitchen", resolved.CategoryPath)
	})

	t.Run("own mapping wins over ancestors", func(t *testing.T) {
		categories := new(MockCategoryReader)
		mappings := new(MockCategoryMappingRepository)
		svc := NewCategoryMappingService(categories, mappings, zap.NewNop())

		mugs := newCategory(storeID, newCategory(storeID, nil))
		own, _ := integration.NewCategoryPlatformMapping(storeID, mugs.ID, integration.PlatformEtsy, "1633")
		mappings.On("FindByCategoryAndPlatform", mock.Anything, mugs.ID, integration.PlatformEtsy).Return(own, nil)

		product := newTestProduct(storeID)
		product.CategoryID = &mugs.ID

		resolved, err := svc.ResolveCategory(ctx, product, integration.PlatformEtsy)

		require.NoError(t, err)
		assert.Equal(t, "1633", *resolved.PrimaryCategoryID)
		categories.AssertNotCalled(t, "FindByID", mock.Anything, mock.Anything)
	})

	t.Run("unmapped chain resolves to nothing", func(t *testing.T) {
		categories := new(MockCategoryReader)
		mappings := new(MockCategoryMappingRepository)
		svc := NewCategoryMappingService(categories, mappings, zap.NewNop())

		root := newCategory(storeID, nil)
		mugs := newCategory(storeID, root)
		mappings.On("FindByCategoryAndPlatform", mock.Anything, mock.Anything, integration.PlatformEbay).Return(nil, integration.ErrCategoryMappingNotFound)
		categories.On("FindByID", mock.Anything, mugs.ID).Return(mugs, nil)
		categories.On("FindByID", mock.Anything, root.ID).Return(root, nil)

		product := newTestProduct(storeID)
		product.CategoryID = &mugs.ID

		resolved, err := svc.ResolveCategory(ctx, product, integration.PlatformEbay)

		require.NoError(t, err)
		assert.False(t, resolved.Found())
	})

	t.Run("product without category resolves to nothing", func(t *testing.T) {
		svc := NewCategoryMappingService(new(MockCategoryReader), new(MockCategoryMappingRepository), zap.NewNop())

		resolved, err := svc.ResolveCategory(ctx, newTestProduct(storeID), integration.PlatformEbay)

		require.NoError(t, err)
		assert.False(t, resolved.Found())
	})

	t.Run("parent cycle stops the walk", func(t *testing.T) {
		categories := new(MockCategoryReader)
		mappings := new(MockCategoryMappingRepository)
		svc := NewCategoryMappingService(categories, mappings, zap.NewNop())

		a := newCategory(storeID, nil)
		b := newCategory(storeID, a)
		a.ParentID = &b.ID
		mappings.On("FindByCategoryAndPlatform", mock.Anything, mock.Anything, integration.PlatformEbay).Return(nil, integration.ErrCategoryMappingNotFound)
		categories.On("FindByID", mock.Anything, a.ID).Return(a, nil)
		categories.On("FindByID", mock.Anything, b.ID).Return(b, nil)

		product := newTestProduct(storeID)
		product.CategoryID = &a.ID

		resolved, err := svc.ResolveCategory(ctx, product, integration.PlatformEbay)

		require.NoError(t, err)
		assert.False(t, resolved.Found())
		mappings.AssertNumberOfCalls(t, "FindByCategoryAndPlatform", 2)
	})

	t.Run("lookup errors propagate", func(t *testing.T) {
		categories := new(MockCategoryReader)
		mappings := new(MockCategoryMappingRepository)
		svc := NewCategoryMappingService(categories, mappings, zap.NewNop())
		dbErr := errors.New("db down")
		categoryID := uuid.New()
		mappings.On("FindByCategoryAndPlatform", mock.Anything, categoryID, integration.PlatformEbay).Return(nil, dbErr)

		product := newTestProduct(storeID)
		product.CategoryID = &categoryID

		_, err := svc.ResolveCategory(ctx, product, integration.PlatformEbay)

		assert.ErrorIs(t, err, dbErr)
	})
}

func TestCategoryMappingService_SaveMapping(t *testing.T) {
	ctx := context.Background()
	storeID := uuid.New()
	now := time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)

	newService := func() (*CategoryMappingService, *MockCategoryReader, *MockCategoryMappingRepository, *MockJobDispatcher) {
		categories := new(MockCategoryReader)
		mappings := new(MockCategoryMappingRepository)
		jobs := new(MockJobDispatcher)
		svc := NewCategoryMappingService(categories, mappings, zap.NewNop())
		svc.SetJobDispatcher(jobs)
		svc.now = func() time.Time { return now }
		return svc, categories, mappings, jobs
	}

	t.Run("new eBay mapping queues an item specifics sync", func(t *testing.T) {
		svc, categories, mappings, jobs := newService()
		category := newCategory(storeID, nil)
		categories.On("FindByID", mock.Anything, category.ID).Return(category, nil)
		mappings.On("FindByCategoryAndPlatform", mock.Anything, category.ID, integration.PlatformEbay).Return(nil, integration.ErrCategoryMappingNotFound)
		mappings.On("Upsert", mock.Anything, mock.Anything).Return(nil)
		jobs.On("Dispatch", mock.Anything, integration.JobItemSpecificsSync, mock.Anything).Return(nil)

		mapping, err := svc.SaveMapping(ctx, storeID, SaveCategoryMappingInput{
			CategoryID:        category.ID,
			Platform:          integration.PlatformEbay,
			PrimaryCategoryID: "20625",
			CategoryPath:      "Home & Garden > Kitchen > Mugs",
		})

		require.NoError(t, err)
		assert.Equal(t, "20625", mapping.PrimaryCategoryID)
		assert.Equal(t, now, mapping.UpdatedAt)
		jobs.AssertCalled(t, "Dispatch", mock.Anything, integration.JobItemSpecificsSync, integration.ItemSpecificsSyncPayload{
			MappingID:  mapping.ID,
			StoreID:    storeID,
			CategoryID: category.ID,
			Platform:   integration.PlatformEbay,
		})
	})

	t.Run("fresh specifics for the same category queue nothing", func(t *testing.T) {
		svc, categories, mappings, jobs := newService()
		category := newCategory(storeID, nil)
		existing, _ := integration.NewCategoryPlatformMapping(storeID, category.ID, integration.PlatformEbay, "20625")
		existing.RecordItemSpecifics([]integration.PlatformField{{Name: "Brand", Required: true}}, now.Add(-time.Hour))
		categories.On("FindByID", mock.Anything, category.ID).Return(category, nil)
		mappings.On("FindByCategoryAndPlatform", mock.Anything, category.ID, integration.PlatformEbay).Return(existing, nil)
		mappings.On("Upsert", mock.Anything, existing).Return(nil)

		_, err := svc.SaveMapping(ctx, storeID, SaveCategoryMappingInput{
			CategoryID:        category.ID,
			Platform:          integration.PlatformEbay,
			PrimaryCategoryID: "20625",
		})

		require.NoError(t, err)
		jobs.AssertNotCalled(t, "Dispatch", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("changing the eBay category makes the specifics stale", func(t *testing.T) {
		svc, categories, mappings, jobs := newService()
		category := newCategory(storeID, nil)
		existing, _ := integration.NewCategoryPlatformMapping(storeID, category.ID, integration.PlatformEbay, "20625")
		existing.RecordItemSpecifics(nil, now.Add(-time.Hour))
		categories.On("FindByID", mock.Anything, category.ID).Return(category, nil)
		mappings.On("FindByCategoryAndPlatform", mock.Anything, category.ID, integration.PlatformEbay).Return(existing, nil)
		mappings.On("Upsert", mock.Anything, existing).Return(nil)
		jobs.On("Dispatch", mock.Anything, integration.JobItemSpecificsSync, mock.Anything).Return(nil)

		mapping, err := svc.SaveMapping(ctx, storeID, SaveCategoryMappingInput{
			CategoryID:        category.ID,
			Platform:          integration.PlatformEbay,
			PrimaryCategoryID: " 46782 ",
		})

		require.NoError(t, err)
		assert.Equal(t, "46782", mapping.PrimaryCategoryID)
		jobs.AssertNumberOfCalls(t, "Dispatch", 1)
	})

	t.Run("platforms without item specifics queue nothing", func(t *testing.T) {
		svc, categories, mappings, jobs := newService()
		category := newCategory(storeID, nil)
		categories.On("FindByID", mock.Anything, category.ID).Return(category, nil)
		mappings.On("FindByCategoryAndPlatform", mock.Anything, category.ID, integration.PlatformEtsy).Return(nil, integration.ErrCategoryMappingNotFound)
		mappings.On("Upsert", mock.Anything, mock.Anything).Return(nil)

		_, err := svc.SaveMapping(ctx, storeID, SaveCategoryMappingInput{
			CategoryID:        category.ID,
			Platform:          integration.PlatformEtsy,
			PrimaryCategoryID: "1633",
			FieldMappings:     map[string]string{"glaze": "finish"},
		})

		require.NoError(t, err)
		jobs.AssertNotCalled(t, "Dispatch", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("a failing queue does not fail the save", func(t *testing.T) {
		svc, categories, mappings, jobs := newService()
		category := newCategory(storeID, nil)
		categories.On("FindByID", mock.Anything, category.ID).Return(category, nil)
		mappings.On("FindByCategoryAndPlatform", mock.Anything, category.ID, integration.PlatformEbay).Return(nil, integration.ErrCategoryMappingNotFound)
		mappings.On("Upsert", mock.Anything, mock.Anything).Return(nil)
		jobs.On("Dispatch", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("queue full"))

		mapping, err := svc.SaveMapping(ctx, storeID, SaveCategoryMappingInput{
			CategoryID:        category.ID,
			Platform:          integration.PlatformEbay,
			PrimaryCategoryID: "20625",
		})

		require.NoError(t, err)
		assert.NotNil(t, mapping)
	})

	t.Run("rejects the local platform and blank category ids", func(t *testing.T) {
		svc, _, _, _ := newService()

		_, err := svc.SaveMapping(ctx, storeID, SaveCategoryMappingInput{CategoryID: uuid.New(), Platform: integration.PlatformLocal, PrimaryCategoryID: "1"})
		var domainErr *shared.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, "INVALID_INPUT", domainErr.Code)

		_, err = svc.SaveMapping(ctx, storeID, SaveCategoryMappingInput{CategoryID: uuid.New(), Platform: integration.PlatformEbay, PrimaryCategoryID: "  "})
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, "Primary category id is required", domainErr.Message)
	})

	t.Run("category of another store is not found", func(t *testing.T) {
		svc, categories, mappings, _ := newService()
		category := newCategory(uuid.New(), nil)
		categories.On("FindByID", mock.Anything, category.ID).Return(category, nil)

		_, err := svc.SaveMapping(ctx, storeID, SaveCategoryMappingInput{
			CategoryID:        category.ID,
			Platform:          integration.PlatformEbay,
			PrimaryCategoryID: "20625",
		})

		var domainErr *shared.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, "NOT_FOUND", domainErr.Code)
		mappings.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything)
	})
}

func TestCategoryMappingService_DeleteAndList(t *testing.T) {
	ctx := context.Background()
	storeID := uuid.New()
	categoryID := uuid.New()

	t.Run("deletes a mapping of the store", func(t *testing.T) {
		mappings := new(MockCategoryMappingRepository)
		svc := NewCategoryMappingService(new(MockCategoryReader), mappings, zap.NewNop())
		mapping, _ := integration.NewCategoryPlatformMapping(storeID, categoryID, integration.PlatformEbay, "20625")
		mappings.On("FindByCategoryAndPlatform", mock.Anything, categoryID, integration.PlatformEbay).Return(mapping, nil)
		mappings.On("Delete", mock.Anything, categoryID, integration.PlatformEbay).Return(nil)

		require.NoError(t, svc.DeleteMapping(ctx, storeID, categoryID, integration.PlatformEbay))
		mappings.AssertExpectations(t)
	})

	t.Run("mapping of another store is not deleted", func(t *testing.T) {
		mappings := new(MockCategoryMappingRepository)
		svc := NewCategoryMappingService(new(MockCategoryReader), mappings, zap.NewNop())
		mapping, _ := integration.NewCategoryPlatformMapping(uuid.New(), categoryID, integration.PlatformEbay, "20625")
		mappings.On("FindByCategoryAndPlatform", mock.Anything, categoryID, integration.PlatformEbay).Return(mapping, nil)

		err := svc.DeleteMapping(ctx, storeID, categoryID, integration.PlatformEbay)

		assert.ErrorIs(t, err, integration.ErrCategoryMappingNotFound)
		mappings.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("lists only the store's mappings", func(t *testing.T) {
		mappings := new(MockCategoryMappingRepository)
		svc := NewCategoryMappingService(new(MockCategoryReader), mappings, zap.NewNop())
		own, _ := integration.NewCategoryPlatformMapping(storeID, categoryID, integration.PlatformEbay, "20625")
		foreign, _ := integration.NewCategoryPlatformMapping(uuid.New(), categoryID, integration.PlatformEtsy, "1633")
		mappings.On("FindByCategory", mock.Anything, categoryID).Return([]integration.CategoryPlatformMapping{*own, *foreign}, nil)

		got, err := svc.ListMappings(ctx, storeID, categoryID)

		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, own.ID, got[0].ID)
	})
}

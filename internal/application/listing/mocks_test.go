package listing

import (
	"context"
	"time"

	"github.com/erp/listingsync/internal/domain/catalog"
	"github.com/erp/listingsync/internal/domain/integration"
	"github.com/erp/listingsync/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

// ---------------------------------------------------------------------------
// Repositories
// ---------------------------------------------------------------------------

// MockListingRepository is a mock implementation of ListingRepository
type MockListingRepository struct {
	mock.Mock
}

func (m *MockListingRepository) FindByID(ctx context.Context, id uuid.UUID) (*integration.PlatformListing, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.PlatformListing), args.Error(1)
}

func (m *MockListingRepository) FindByProductAndChannel(ctx context.Context, productID, channelID uuid.UUID) (*integration.PlatformListing, error) {
	args := m.Called(ctx, productID, channelID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.PlatformListing), args.Error(1)
}

func (m *MockListingRepository) FindByChannel(ctx context.Context, channelID uuid.UUID, filter integration.ListingFilter) ([]integration.PlatformListing, error) {
	args := m.Called(ctx, channelID, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]integration.PlatformListing), args.Error(1)
}

func (m *MockListingRepository) Create(ctx context.Context, listing *integration.PlatformListing) error {
	args := m.Called(ctx, listing)
	return args.Error(0)
}

func (m *MockListingRepository) Update(ctx context.Context, listing *integration.PlatformListing) error {
	args := m.Called(ctx, listing)
	return args.Error(0)
}

// MockSalesChannelRepository is a mock implementation of SalesChannelRepository
type MockSalesChannelRepository struct {
	mock.Mock
}

func (m *MockSalesChannelRepository) FindByID(ctx context.Context, id uuid.UUID) (*integration.SalesChannel, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.SalesChannel), args.Error(1)
}

func (m *MockSalesChannelRepository) FindByStoreAndPlatform(ctx context.Context, storeID uuid.UUID, platform integration.PlatformCode) ([]integration.SalesChannel, error) {
	args := m.Called(ctx, storeID, platform)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]integration.SalesChannel), args.Error(1)
}

func (m *MockSalesChannelRepository) Save(ctx context.Context, channel *integration.SalesChannel) error {
	args := m.Called(ctx, channel)
	return args.Error(0)
}

// MockConnectionRepository is a mock implementation of ConnectionRepository
type MockConnectionRepository struct {
	mock.Mock
}

func (m *MockConnectionRepository) FindByID(ctx context.Context, id uuid.UUID) (*integration.MarketplaceConnection, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.MarketplaceConnection), args.Error(1)
}

func (m *MockConnectionRepository) Save(ctx context.Context, conn *integration.MarketplaceConnection) error {
	args := m.Called(ctx, conn)
	return args.Error(0)
}

// MockOverrideRepository is a mock implementation of OverrideRepository
type MockOverrideRepository struct {
	mock.Mock
}

func (m *MockOverrideRepository) FindByProductAndPlatform(ctx context.Context, productID uuid.UUID, platform integration.PlatformCode) (*integration.ProductPlatformOverride, error) {
	args := m.Called(ctx, productID, platform)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.ProductPlatformOverride), args.Error(1)
}

func (m *MockOverrideRepository) Save(ctx context.Context, override *integration.ProductPlatformOverride) error {
	args := m.Called(ctx, override)
	return args.Error(0)
}

// MockCategoryMappingRepository is a mock implementation of CategoryMappingRepository
type MockCategoryMappingRepository struct {
	mock.Mock
}

func (m *MockCategoryMappingRepository) FindByID(ctx context.Context, id uuid.UUID) (*integration.CategoryPlatformMapping, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.CategoryPlatformMapping), args.Error(1)
}

func (m *MockCategoryMappingRepository) FindByCategoryAndPlatform(ctx context.Context, categoryID uuid.UUID, platform integration.PlatformCode) (*integration.CategoryPlatformMapping, error) {
	args := m.Called(ctx, categoryID, platform)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.CategoryPlatformMapping), args.Error(1)
}

func (m *MockCategoryMappingRepository) FindByCategory(ctx context.Context, categoryID uuid.UUID) ([]integration.CategoryPlatformMapping, error) {
	args := m.Called(ctx, categoryID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]integration.CategoryPlatformMapping), args.Error(1)
}

func (m *MockCategoryMappingRepository) Upsert(ctx context.Context, mapping *integration.CategoryPlatformMapping) error {
	args := m.Called(ctx, mapping)
	return args.Error(0)
}

func (m *MockCategoryMappingRepository) Delete(ctx context.Context, categoryID uuid.UUID, platform integration.PlatformCode) error {
	args := m.Called(ctx, categoryID, platform)
	return args.Error(0)
}

func (m *MockCategoryMappingRepository) FindItemSpecificsDue(ctx context.Context, syncedBefore time.Time, limit int) ([]integration.CategoryPlatformMapping, error) {
	args := m.Called(ctx, syncedBefore, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]integration.CategoryPlatformMapping), args.Error(1)
}

// MockTemplateMappingRepository is a mock implementation of TemplateMappingRepository
type MockTemplateMappingRepository struct {
	mock.Mock
}

func (m *MockTemplateMappingRepository) FindByTemplateAndPlatform(ctx context.Context, templateID uuid.UUID, platform integration.PlatformCode) (*integration.TemplatePlatformMapping, error) {
	args := m.Called(ctx, templateID, platform)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.TemplatePlatformMapping), args.Error(1)
}

func (m *MockTemplateMappingRepository) Upsert(ctx context.Context, mapping *integration.TemplatePlatformMapping) error {
	args := m.Called(ctx, mapping)
	return args.Error(0)
}

// ---------------------------------------------------------------------------
// Catalog readers
// ---------------------------------------------------------------------------

// MockProductReader is a mock implementation of catalog.ProductReader
type MockProductReader struct {
	mock.Mock
}

func (m *MockProductReader) FindByID(ctx context.Context, id uuid.UUID) (*catalog.Product, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*catalog.Product), args.Error(1)
}

func (m *MockProductReader) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]catalog.Product, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]catalog.Product), args.Error(1)
}

// MockCategoryReader is a mock implementation of catalog.CategoryReader
type MockCategoryReader struct {
	mock.Mock
}

func (m *MockCategoryReader) FindByID(ctx context.Context, id uuid.UUID) (*catalog.Category, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*catalog.Category), args.Error(1)
}

// MockTemplateReader is a mock implementation of catalog.TemplateReader
type MockTemplateReader struct {
	mock.Mock
}

func (m *MockTemplateReader) FindByID(ctx context.Context, id uuid.UUID) (*catalog.ProductTemplate, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*catalog.ProductTemplate), args.Error(1)
}

// ---------------------------------------------------------------------------
// Ports
// ---------------------------------------------------------------------------

// MockAdapterResolver is a mock implementation of AdapterResolver
type MockAdapterResolver struct {
	mock.Mock
}

func (m *MockAdapterResolver) Make(ctx context.Context, channel *integration.SalesChannel) (integration.ListingAdapter, error) {
	args := m.Called(ctx, channel)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(integration.ListingAdapter), args.Error(1)
}

// MockListingAdapter is a mock implementation of ListingAdapter
type MockListingAdapter struct {
	mock.Mock
	platform integration.PlatformCode
}

func (m *MockListingAdapter) Platform() integration.PlatformCode {
	return m.platform
}

func (m *MockListingAdapter) IsConnected() bool {
	args := m.Called()
	return args.Bool(0)
}

func (m *MockListingAdapter) Publish(ctx context.Context, lc *integration.ListingContext) integration.AdapterResult {
	args := m.Called(ctx, lc)
	return args.Get(0).(integration.AdapterResult)
}

func (m *MockListingAdapter) Unpublish(ctx context.Context, lc *integration.ListingContext) integration.AdapterResult {
	args := m.Called(ctx, lc)
	return args.Get(0).(integration.AdapterResult)
}

func (m *MockListingAdapter) End(ctx context.Context, lc *integration.ListingContext) integration.AdapterResult {
	args := m.Called(ctx, lc)
	return args.Get(0).(integration.AdapterResult)
}

func (m *MockListingAdapter) UpdatePrice(ctx context.Context, lc *integration.ListingContext, price decimal.Decimal) integration.AdapterResult {
	args := m.Called(ctx, lc, price)
	return args.Get(0).(integration.AdapterResult)
}

func (m *MockListingAdapter) UpdateInventory(ctx context.Context, lc *integration.ListingContext, quantity int) integration.AdapterResult {
	args := m.Called(ctx, lc, quantity)
	return args.Get(0).(integration.AdapterResult)
}

func (m *MockListingAdapter) Sync(ctx context.Context, lc *integration.ListingContext) integration.AdapterResult {
	args := m.Called(ctx, lc)
	return args.Get(0).(integration.AdapterResult)
}

func (m *MockListingAdapter) Refresh(ctx context.Context, lc *integration.ListingContext) integration.AdapterResult {
	args := m.Called(ctx, lc)
	return args.Get(0).(integration.AdapterResult)
}

// MockConnectorAdapter adds the account-level capabilities
type MockConnectorAdapter struct {
	MockListingAdapter
}

func (m *MockConnectorAdapter) TestConnection(ctx context.Context) (*integration.ConnectionInfo, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.ConnectionInfo), args.Error(1)
}

func (m *MockConnectorAdapter) SyncBusinessPolicies(ctx context.Context) (*integration.BusinessPolicies, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.BusinessPolicies), args.Error(1)
}

func (m *MockConnectorAdapter) FetchItemSpecifics(ctx context.Context, categoryID string) ([]integration.PlatformField, error) {
	args := m.Called(ctx, categoryID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]integration.PlatformField), args.Error(1)
}

// MockJobDispatcher is a mock implementation of JobDispatcher
type MockJobDispatcher struct {
	mock.Mock
}

func (m *MockJobDispatcher) Dispatch(ctx context.Context, name string, payload any) error {
	args := m.Called(ctx, name, payload)
	return args.Error(0)
}

// MockTextCompleter is a mock implementation of TextCompleter
type MockTextCompleter struct {
	mock.Mock
}

func (m *MockTextCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	args := m.Called(ctx, prompt)
	return args.String(0), args.Error(1)
}

// MockEventPublisher is a mock implementation of shared.EventPublisher
type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	args := m.Called(ctx, events)
	return args.Error(0)
}

var (
	_ integration.ListingAdapter        = (*MockListingAdapter)(nil)
	_ integration.CredentialConnector   = (*MockConnectorAdapter)(nil)
	_ integration.BusinessPolicySyncer  = (*MockConnectorAdapter)(nil)
	_ integration.ItemSpecificsProvider = (*MockConnectorAdapter)(nil)
)

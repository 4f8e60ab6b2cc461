package persistence

import (
	"context"

	applisting "github.com/erp/listingsync/internal/application/listing"
	"github.com/erp/listingsync/internal/domain/integration"
	"github.com/erp/listingsync/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormTransactionScope implements listing.TransactionScope using GORM transactions.
// A listing transition and the connection bookkeeping it causes commit together.
type GormTransactionScope struct {
	db     *gorm.DB
	sealer models.SecretSealer
}

// NewGormTransactionScope creates a new GormTransactionScope.
func NewGormTransactionScope(db *gorm.DB, sealer models.SecretSealer) *GormTransactionScope {
	return &GormTransactionScope{db: db, sealer: sealer}
}

// Execute runs the given function within a database transaction.
// If the function returns an error, the transaction is rolled back.
// If the function succeeds, the transaction is committed.
func (s *GormTransactionScope) Execute(ctx context.Context, fn func(repos applisting.TransactionalRepositories) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repos := &gormTransactionalRepositories{tx: tx, sealer: s.sealer}
		return fn(repos)
	})
}

// gormTransactionalRepositories provides access to the listing repositories within a transaction.
type gormTransactionalRepositories struct {
	tx     *gorm.DB
	sealer models.SecretSealer
}

// ListingRepo returns the listing repository scoped to the current transaction.
func (r *gormTransactionalRepositories) ListingRepo() integration.ListingRepository {
	return NewGormListingRepository(r.tx)
}

// ConnectionRepo returns the connection repository scoped to the current transaction.
func (r *gormTransactionalRepositories) ConnectionRepo() integration.ConnectionRepository {
	return NewGormConnectionRepository(r.tx, r.sealer)
}

// Ensure GormTransactionScope implements TransactionScope
var _ applisting.TransactionScope = (*GormTransactionScope)(nil)

// Ensure gormTransactionalRepositories implements TransactionalRepositories
var _ applisting.TransactionalRepositories = (*gormTransactionalRepositories)(nil)

package listing

import (
	"context"

	"github.com/erp/listingsync/internal/domain/integration"
)

// TransactionScope provides transactional access to the listing repositories.
// Repository calls made through the TransactionalRepositories handed to fn are
// committed or rolled back together.
type TransactionScope interface {
	// Execute runs fn within a database transaction.
	// If fn returns an error, the transaction is rolled back.
	Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error
}

// TransactionalRepositories gives access to the repositories of one transaction
type TransactionalRepositories interface {
	// ListingRepo returns the listing repository scoped to the current transaction
	ListingRepo() integration.ListingRepository
	// ConnectionRepo returns the connection repository scoped to the current transaction
	ConnectionRepo() integration.ConnectionRepository
}

// NoOpTransactionScope runs fn against plain repositories without a transaction.
// It is used in tests and by callers without a database.
type NoOpTransactionScope struct {
	listingRepo    integration.ListingRepository
	connectionRepo integration.ConnectionRepository
}

// NewNoOpTransactionScope creates a NoOpTransactionScope
func NewNoOpTransactionScope(listingRepo integration.ListingRepository, connectionRepo integration.ConnectionRepository) *NoOpTransactionScope {
	return &NoOpTransactionScope{
		listingRepo:    listingRepo,
		connectionRepo: connectionRepo,
	}
}

// Execute runs fn without a real transaction
func (s *NoOpTransactionScope) Execute(_ context.Context, fn func(repos TransactionalRepositories) error) error {
	return fn(s)
}

// ListingRepo returns the listing repository
func (s *NoOpTransactionScope) ListingRepo() integration.ListingRepository {
	return s.listingRepo
}

// ConnectionRepo returns the connection repository
func (s *NoOpTransactionScope) ConnectionRepo() integration.ConnectionRepository {
	return s.connectionRepo
}

var _ TransactionScope = (*NoOpTransactionScope)(nil)
var _ TransactionalRepositories = (*NoOpTransactionScope)(nil)

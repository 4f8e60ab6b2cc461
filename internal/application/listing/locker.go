package listing

import (
	"context"

	"github.com/google/uuid"
)

// ListingLocker serializes ListingManager operations on the same listing.
// Acquire returns integration.ErrListingLocked when another operation holds the lock.
type ListingLocker interface {
	Acquire(ctx context.Context, listingID uuid.UUID) (release func(), err error)
}

type noopLocker struct{}

func (noopLocker) Acquire(context.Context, uuid.UUID) (func(), error) {
	return func() {}, nil
}

package cache

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/erp/listingsync/internal/application/listing"
	"github.com/erp/listingsync/internal/domain/integration"
)

// InMemoryListingLocker implements listing.ListingLocker inside one process.
// It is suitable for single-instance deployments and testing.
type InMemoryListingLocker struct {
	mu   sync.Mutex
	held map[uuid.UUID]chan struct{}
	opts LockOptions
}

// NewInMemoryListingLocker creates a process-local locker. TTL is ignored
// since a holder cannot outlive the process.
func NewInMemoryListingLocker(opts LockOptions) *InMemoryListingLocker {
	return &InMemoryListingLocker{
		held: make(map[uuid.UUID]chan struct{}),
		opts: opts.withDefaults(),
	}
}

// Acquire takes the lock of a listing, waiting up to the configured wait
func (l *InMemoryListingLocker) Acquire(ctx context.Context, listingID uuid.UUID) (func(), error) {
	timer := time.NewTimer(l.opts.Wait)
	defer timer.Stop()

	for {
		l.mu.Lock()
		released, busy := l.held[listingID]
		if !busy {
			done := make(chan struct{})
			l.held[listingID] = done
			l.mu.Unlock()
			return l.releaser(listingID, done), nil
		}
		l.mu.Unlock()

		select {
		case <-released:
		case <-timer.C:
			return nil, integration.ErrListingLocked
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (l *InMemoryListingLocker) releaser(listingID uuid.UUID, done chan struct{}) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			if l.held[listingID] == done {
				delete(l.held, listingID)
			}
			l.mu.Unlock()
			close(done)
		})
	}
}

// Size returns the number of held locks (for testing/monitoring)
func (l *InMemoryListingLocker) Size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.held)
}

var _ listing.ListingLocker = (*InMemoryListingLocker)(nil)

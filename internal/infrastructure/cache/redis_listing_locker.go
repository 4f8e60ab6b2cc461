package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/erp/listingsync/internal/application/listing"
	"github.com/erp/listingsync/internal/domain/integration"
)

const (
	defaultLockKeyPrefix = "listing:lock:"
	defaultLockTTL       = 2 * time.Minute
	defaultLockWait      = 5 * time.Second
	lockRetryInterval    = 50 * time.Millisecond
)

// releaseScript deletes the lock only while it still holds our token, so a
// lock that expired and was taken by another instance is left alone.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// LockOptions tunes a listing locker
type LockOptions struct {
	// TTL bounds how long a crashed holder blocks the listing
	TTL time.Duration
	// Wait is how long Acquire retries before reporting ErrListingLocked
	Wait time.Duration
}

func (o LockOptions) withDefaults() LockOptions {
	if o.TTL <= 0 {
		o.TTL = defaultLockTTL
	}
	if o.Wait < 0 {
		o.Wait = 0
	} else if o.Wait == 0 {
		o.Wait = defaultLockWait
	}
	return o
}

// RedisListingLocker implements listing.ListingLocker with SET NX PX so that
// every instance of the service shares the same per-listing locks
type RedisListingLocker struct {
	client    *redis.Client
	keyPrefix string
	opts      LockOptions
	logger    *zap.Logger
}

// NewRedisListingLocker creates a locker with an existing Redis client
func NewRedisListingLocker(client *redis.Client, opts LockOptions, logger *zap.Logger) *RedisListingLocker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisListingLocker{
		client:    client,
		keyPrefix: defaultLockKeyPrefix,
		opts:      opts.withDefaults(),
		logger:    logger,
	}
}

// Acquire takes the lock of a listing, retrying until the wait elapses or ctx ends
func (l *RedisListingLocker) Acquire(ctx context.Context, listingID uuid.UUID) (func(), error) {
	key := l.keyPrefix + listingID.String()
	token := uuid.NewString()
	deadline := time.Now().Add(l.opts.Wait)

	for {
		ok, err := l.client.SetNX(ctx, key, token, l.opts.TTL).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to acquire listing lock: %w", err)
		}
		if ok {
			return l.releaser(key, token), nil
		}
		if !time.Now().Before(deadline) {
			return nil, integration.ErrListingLocked
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(lockRetryInterval):
		}
	}
}

func (l *RedisListingLocker) releaser(key, token string) func() {
	return func() {
		// the caller's context may already be cancelled
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := releaseScript.Run(ctx, l.client, []string{key}, token).Err(); err != nil {
			l.logger.Warn("failed to release listing lock", zap.String("key", key), zap.Error(err))
		}
	}
}

// Close closes the Redis client
func (l *RedisListingLocker) Close() error {
	return l.client.Close()
}

var _ listing.ListingLocker = (*RedisListingLocker)(nil)

package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/erp/listingsync/internal/application/listing"
	"github.com/erp/listingsync/internal/infrastructure/config"
)

// LockerFactory creates listing lockers based on configuration
type LockerFactory struct {
	redisConfig           config.RedisConfig
	logger                *zap.Logger
	allowInMemoryFallback bool
}

// LockerFactoryOption is a functional option for configuring the factory
type LockerFactoryOption func(*LockerFactory)

// WithLogger sets the logger for the factory
func WithLogger(logger *zap.Logger) LockerFactoryOption {
	return func(f *LockerFactory) {
		f.logger = logger
	}
}

// WithInMemoryFallback controls whether an unreachable Redis falls back to
// process-local locks. Default is true.
func WithInMemoryFallback(allow bool) LockerFactoryOption {
	return func(f *LockerFactory) {
		f.allowInMemoryFallback = allow
	}
}

// NewLockerFactory creates a new factory
func NewLockerFactory(cfg config.RedisConfig, opts ...LockerFactoryOption) *LockerFactory {
	f := &LockerFactory{
		redisConfig:           cfg,
		logger:                zap.NewNop(),
		allowInMemoryFallback: true,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *LockerFactory) lockOptions() LockOptions {
	return LockOptions{TTL: f.redisConfig.LockTTL}
}

// CreateRedisLocker connects to Redis and returns a shared locker
func (f *LockerFactory) CreateRedisLocker() (*RedisListingLocker, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     f.redisConfig.Addr(),
		Password: f.redisConfig.Password,
		DB:       f.redisConfig.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisListingLocker(client, f.lockOptions(), f.logger), nil
}

// CreateLocker returns a Redis locker when Redis is enabled and reachable.
// Otherwise it falls back to process-local locks if allowed.
func (f *LockerFactory) CreateLocker() (listing.ListingLocker, error) {
	if !f.redisConfig.Enabled {
		f.logger.Info("Redis disabled, using in-memory listing locks")
		return NewInMemoryListingLocker(f.lockOptions()), nil
	}

	locker, err := f.CreateRedisLocker()
	if err == nil {
		f.logger.Info("using Redis listing locks", zap.String("addr", f.redisConfig.Addr()))
		return locker, nil
	}

	if !f.allowInMemoryFallback {
		return nil, fmt.Errorf("Redis required for listing locks but unavailable: %w", err)
	}

	f.logger.Warn("Redis unavailable, falling back to in-memory listing locks. "+
		"Concurrent instances may then operate on the same listing.",
		zap.Error(err),
	)
	return NewInMemoryListingLocker(f.lockOptions()), nil
}

package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/erp/listingsync/internal/domain/integration"
)

// ItemSpecificsTriggerConfig holds configuration for the periodic refresh
type ItemSpecificsTriggerConfig struct {
	// CheckInterval is how often due mappings are looked up
	CheckInterval time.Duration
	// BatchSize caps the jobs queued per check
	BatchSize int
}

// DefaultItemSpecificsTriggerConfig returns default trigger configuration
func DefaultItemSpecificsTriggerConfig() ItemSpecificsTriggerConfig {
	return ItemSpecificsTriggerConfig{
		CheckInterval: 6 * time.Hour,
		BatchSize:     100,
	}
}

// ItemSpecificsTrigger periodically queues item specifics syncs for category
// mappings whose specifics went stale without the mapping being saved again
type ItemSpecificsTrigger struct {
	config   ItemSpecificsTriggerConfig
	mappings integration.CategoryMappingRepository
	jobs     integration.JobDispatcher
	logger   *zap.Logger
	now      func() time.Time

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
}

// NewItemSpecificsTrigger creates a new trigger
func NewItemSpecificsTrigger(
	config ItemSpecificsTriggerConfig,
	mappings integration.CategoryMappingRepository,
	jobs integration.JobDispatcher,
	logger *zap.Logger,
) *ItemSpecificsTrigger {
	if config.CheckInterval <= 0 {
		config.CheckInterval = DefaultItemSpecificsTriggerConfig().CheckInterval
	}
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultItemSpecificsTriggerConfig().BatchSize
	}
	return &ItemSpecificsTrigger{
		config:   config,
		mappings: mappings,
		jobs:     jobs,
		logger:   logger,
		now:      time.Now,
	}
}

// Start starts the trigger loop
func (c *ItemSpecificsTrigger) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.isRunning {
		return nil
	}
	c.isRunning = true

	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	c.wg.Add(1)
	go c.runLoop(ctx)

	c.logger.Info("Item specifics trigger started",
		zap.Duration("check_interval", c.config.CheckInterval),
		zap.Int("batch_size", c.config.BatchSize),
	)
	return nil
}

// Stop stops the trigger loop
func (c *ItemSpecificsTrigger) Stop(ctx context.Context) error {
	c.mu.Lock()
	if !c.isRunning {
		c.mu.Unlock()
		return nil
	}
	c.isRunning = false
	c.mu.Unlock()

	if c.cancel != nil {
		c.cancel()
	}

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		c.logger.Info("Item specifics trigger stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *ItemSpecificsTrigger) runLoop(ctx context.Context) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.TriggerNow(ctx)
		}
	}
}

// TriggerNow queues one batch of due mappings and returns how many were queued
func (c *ItemSpecificsTrigger) TriggerNow(ctx context.Context) int {
	cutoff := c.now().Add(-integration.ItemSpecificsMaxAge)
	due, err := c.mappings.FindItemSpecificsDue(ctx, cutoff, c.config.BatchSize)
	if err != nil {
		c.logger.Error("Failed to list mappings with stale item specifics", zap.Error(err))
		return 0
	}

	queued := 0
	for _, mapping := range due {
		payload := integration.ItemSpecificsSyncPayload{
			MappingID:  mapping.ID,
			StoreID:    mapping.StoreID,
			CategoryID: mapping.CategoryID,
			Platform:   mapping.Platform,
		}
		if err := c.jobs.Dispatch(ctx, integration.JobItemSpecificsSync, payload); err != nil {
			c.logger.Warn("Failed to queue item specifics sync",
				zap.String("mapping_id", mapping.ID.String()),
				zap.Error(err),
			)
			continue
		}
		queued++
	}

	if len(due) > 0 {
		c.logger.Info("Queued item specifics syncs",
			zap.Int("due", len(due)),
			zap.Int("queued", queued),
		)
	}
	return queued
}

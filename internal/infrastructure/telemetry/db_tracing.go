package telemetry

import (
	"context"
	"errors"
	"time"

	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DBTracingConfig configures query spans
type DBTracingConfig struct {
	Enabled bool
	// LogFullSQL keeps bound variables in span statements. Connection rows carry
	// sealed tokens, so this stays off outside development.
	LogFullSQL      bool
	SlowQueryThresh time.Duration
	DBSystem        string
	// TracerProvider overrides the global provider
	TracerProvider trace.TracerProvider
}

// DefaultDBTracingConfig returns tracing disabled with a 200ms slow threshold
func DefaultDBTracingConfig() DBTracingConfig {
	return DBTracingConfig{
		SlowQueryThresh: 200 * time.Millisecond,
		DBSystem:        "postgresql",
	}
}

// DBTracingPlugin installs otelgorm and marks slow statements on its spans
type DBTracingPlugin struct {
	config DBTracingConfig
	logger *zap.Logger
}

// NewDBTracingPlugin creates a DBTracingPlugin
func NewDBTracingPlugin(cfg DBTracingConfig, logger *zap.Logger) *DBTracingPlugin {
	if cfg.SlowQueryThresh <= 0 {
		cfg.SlowQueryThresh = DefaultDBTracingConfig().SlowQueryThresh
	}
	return &DBTracingPlugin{config: cfg, logger: logger}
}

type queryStartKey struct{}

// Register installs the plugin on db. A disabled config is a no-op.
func (p *DBTracingPlugin) Register(db *gorm.DB) error {
	if !p.config.Enabled {
		return nil
	}

	opts := []otelgorm.Option{otelgorm.WithDBName(p.config.DBSystem)}
	if !p.config.LogFullSQL {
		opts = append(opts, otelgorm.WithoutQueryVariables())
	}
	if p.config.TracerProvider != nil {
		opts = append(opts, otelgorm.WithTracerProvider(p.config.TracerProvider))
	}
	if err := db.Use(otelgorm.NewPlugin(opts...)); err != nil {
		return err
	}

	// The slow query hook runs before otelgorm's after hook, which ends the span.
	cb := db.Callback()
	registrations := []error{
		cb.Create().Before("gorm:create").Register("listing_trace:before_create", markQueryStart),
		cb.Query().Before("gorm:query").Register("listing_trace:before_query", markQueryStart),
		cb.Update().Before("gorm:update").Register("listing_trace:before_update", markQueryStart),
		cb.Delete().Before("gorm:delete").Register("listing_trace:before_delete", markQueryStart),
		cb.Row().Before("gorm:row").Register("listing_trace:before_row", markQueryStart),
		cb.Raw().Before("gorm:raw").Register("listing_trace:before_raw", markQueryStart),
		cb.Create().After("gorm:create").Before("otel:after:create").Register("listing_trace:after_create", p.markSlowQuery),
		cb.Query().After("gorm:query").Before("otel:after:select").Register("listing_trace:after_query", p.markSlowQuery),
		cb.Update().After("gorm:update").Before("otel:after:update").Register("listing_trace:after_update", p.markSlowQuery),
		cb.Delete().After("gorm:delete").Before("otel:after:delete").Register("listing_trace:after_delete", p.markSlowQuery),
		cb.Row().After("gorm:row").Before("otel:after:row").Register("listing_trace:after_row", p.markSlowQuery),
		cb.Raw().After("gorm:raw").Before("otel:after:raw").Register("listing_trace:after_raw", p.markSlowQuery),
	}
	if err := errors.Join(registrations...); err != nil {
		return err
	}

	p.logger.Info("Database tracing enabled",
		zap.Bool("log_full_sql", p.config.LogFullSQL),
		zap.Duration("slow_query_threshold", p.config.SlowQueryThresh),
	)
	return nil
}

func markQueryStart(db *gorm.DB) {
	if db.Statement.Context != nil {
		db.Statement.Context = context.WithValue(db.Statement.Context, queryStartKey{}, time.Now())
	}
}

// markSlowQuery flags statements slower than the threshold on the query span
func (p *DBTracingPlugin) markSlowQuery(db *gorm.DB) {
	ctx := db.Statement.Context
	if ctx == nil {
		return
	}
	start, ok := ctx.Value(queryStartKey{}).(time.Time)
	if !ok {
		return
	}
	elapsed := time.Since(start)
	if elapsed <= p.config.SlowQueryThresh {
		return
	}

	span := trace.SpanFromContext(ctx)
	span.SetAttributes(
		attribute.Bool("db.slow_query", true),
		attribute.Int64("db.query_duration_ms", elapsed.Milliseconds()),
	)
	span.AddEvent("slow_query", trace.WithAttributes(
		attribute.Int64("threshold_ms", p.config.SlowQueryThresh.Milliseconds()),
	))
	p.logger.Warn("slow query",
		zap.String("table", db.Statement.Table),
		zap.Duration("elapsed", elapsed),
	)
}

package main

import (
	"context"
	"errors"
	"flag"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	listingapp "github.com/erp/listingsync/internal/application/listing"
	"github.com/erp/listingsync/internal/domain/integration"
	"github.com/erp/listingsync/internal/infrastructure/ai"
	"github.com/erp/listingsync/internal/infrastructure/auth"
	"github.com/erp/listingsync/internal/infrastructure/cache"
	"github.com/erp/listingsync/internal/infrastructure/config"
	"github.com/erp/listingsync/internal/infrastructure/ecommerce"
	"github.com/erp/listingsync/internal/infrastructure/event"
	"github.com/erp/listingsync/internal/infrastructure/logger"
	"github.com/erp/listingsync/internal/infrastructure/persistence"
	"github.com/erp/listingsync/internal/infrastructure/scheduler"
	"github.com/erp/listingsync/internal/infrastructure/telemetry"
	"github.com/erp/listingsync/internal/interfaces/http/handler"
	"github.com/erp/listingsync/internal/interfaces/http/middleware"
	"github.com/erp/listingsync/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "", "Config file (default: config.toml in . or /app)")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = log.Sync()
	}()

	if err := run(cfg, log); err != nil {
		log.Error("Server stopped with error", zap.Error(err))
		_ = log.Sync()
		os.Exit(1)
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	return config.Load()
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx := context.Background()

	// Telemetry first so the database plugin and HTTP middleware pick up the
	// global providers
	tracerProvider, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		ServiceVersion:    cfg.App.Version,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		return err
	}
	meterProvider, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.Enabled && cfg.Telemetry.MetricsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ExportInterval:    cfg.Telemetry.MetricsInterval,
		ServiceName:       cfg.Telemetry.ServiceName,
		ServiceVersion:    cfg.App.Version,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		return err
	}
	loggerProvider, err := telemetry.NewLoggerProvider(ctx, telemetry.LogsConfig{
		Enabled:           cfg.Telemetry.Enabled && cfg.Telemetry.LogsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		ServiceVersion:    cfg.App.Version,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		return err
	}
	log = loggerProvider.Bridge(log, logger.ParseLevel(cfg.Telemetry.LogsLevel))

	profiler, err := telemetry.NewProfiler(telemetry.ProfilerConfig{
		Enabled:         cfg.Telemetry.ProfilingEnabled,
		ServerAddress:   cfg.Telemetry.ProfilingServer,
		ApplicationName: cfg.Telemetry.ServiceName,
	}, log)
	if err != nil {
		log.Warn("Profiler unavailable", zap.Error(err))
	} else if profiler.IsEnabled() {
		tracerProvider.EnableSpanProfiles()
	}

	log.Info("Starting listing sync service",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("version", cfg.App.Version),
		zap.String("port", cfg.App.Port),
	)

	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.GormLevel),
		logger.WithSlowThreshold(cfg.Telemetry.DBSlowQueryThresh),
		logger.WithParameterizedQueries(!cfg.Telemetry.DBLogFullSQL),
	)
	db, err := persistence.NewDatabaseWithGormLogger(&cfg.Database, gormLog)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	dbTracing := telemetry.NewDBTracingPlugin(telemetry.DBTracingConfig{
		Enabled:         cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled,
		LogFullSQL:      cfg.Telemetry.DBLogFullSQL,
		SlowQueryThresh: cfg.Telemetry.DBSlowQueryThresh,
		DBSystem:        "postgresql",
	}, log)
	if err := dbTracing.Register(db.DB); err != nil {
		return err
	}
	log.Info("Database connected successfully")

	cipher, err := persistence.NewCredentialCipherFromBase64(cfg.Security.CredentialKey)
	if err != nil {
		return err
	}

	// Repositories
	productRepo := persistence.NewGormProductRepository(db.DB)
	categoryRepo := persistence.NewGormCategoryRepository(db.DB)
	templateRepo := persistence.NewGormProductTemplateRepository(db.DB)
	channelRepo := persistence.NewGormSalesChannelRepository(db.DB, cipher)
	connectionRepo := persistence.NewGormConnectionRepository(db.DB, cipher)
	listingRepo := persistence.NewGormListingRepository(db.DB)
	overrideRepo := persistence.NewGormOverrideRepository(db.DB)
	categoryMappingRepo := persistence.NewGormCategoryMappingRepository(db.DB)
	templateMappingRepo := persistence.NewGormTemplateMappingRepository(db.DB)
	txScope := persistence.NewGormTransactionScope(db.DB, cipher)

	// Marketplace adapters
	marketplaces, err := ecommerce.ConfigFromMarketplaces(cfg.Marketplaces)
	if err != nil {
		return err
	}
	listingMetrics, err := telemetry.NewListingMetrics(meterProvider.Meter("listingsync"), log)
	if err != nil {
		return err
	}
	adapters := ecommerce.NewAdapterFactory(ecommerce.AdapterDeps{
		Config:   marketplaces,
		Logger:   log,
		Recorder: listingMetrics,
		Tokens:   connectionRepo,
	})

	schemas, err := integration.DefaultSchemaCatalog()
	if err != nil {
		return err
	}

	// Application services
	fieldMappingService := listingapp.NewFieldMappingService(templateRepo, templateMappingRepo, schemas, log)
	fieldMappingService.SetSuggestionTTL(cfg.AI.CacheTTL)
	if cfg.AI.Enabled {
		completer, err := ai.NewChatCompleter(cfg.AI, log)
		if err != nil {
			return err
		}
		fieldMappingService.SetTextCompleter(completer)
	}
	categoryMappingService := listingapp.NewCategoryMappingService(categoryRepo, categoryMappingRepo, log)
	builder := listingapp.NewListingBuilder(productRepo, channelRepo, overrideRepo, fieldMappingService, categoryMappingService, schemas)
	manager := listingapp.NewListingManager(listingRepo, channelRepo, productRepo, adapters, builder, txScope, log)
	connectionService := listingapp.NewConnectionService(connectionRepo, adapters, log)

	locker, err := cache.NewLockerFactory(cfg.Redis,
		cache.WithLogger(log),
		cache.WithInMemoryFallback(cfg.App.Env != "production"),
	).CreateLocker()
	if err != nil {
		return err
	}
	if closer, ok := locker.(io.Closer); ok {
		defer func() { _ = closer.Close() }()
	}
	manager.SetLocker(locker)

	eventBus := event.NewInMemoryEventBus(log)
	eventBus.Subscribe(event.NewLoggingHandler(log))
	eventBus.Subscribe(listingMetrics)
	if err := eventBus.Start(ctx); err != nil {
		return err
	}
	manager.SetEventPublisher(eventBus)

	// Background jobs
	jobs, err := scheduler.NewScheduler(scheduler.SchedulerConfig{
		Workers:       cfg.Jobs.Workers,
		QueueSize:     cfg.Jobs.QueueSize,
		JobTimeout:    cfg.Jobs.JobTimeout,
		RetryAttempts: cfg.Jobs.RetryAttempts,
		RetryDelay:    cfg.Jobs.RetryDelay,
	}, log)
	if err != nil {
		return err
	}
	jobs.Register(integration.JobItemSpecificsSync,
		listingapp.NewItemSpecificsSyncExecutor(categoryMappingRepo, channelRepo, adapters, log))
	// Bulk runs are not idempotent for already published products
	jobs.Register(integration.JobBulkListing,
		listingapp.NewBulkListingExecutor(manager, log), scheduler.WithMaxRetries(0))
	categoryMappingService.SetJobDispatcher(jobs)

	trigger := scheduler.NewItemSpecificsTrigger(scheduler.ItemSpecificsTriggerConfig{
		CheckInterval: cfg.Jobs.ItemSpecificsInterval,
	}, categoryMappingRepo, jobs, log)

	if err := jobs.Start(ctx); err != nil {
		return err
	}
	if err := trigger.Start(ctx); err != nil {
		return err
	}

	// HTTP
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	middleware.SetupValidator()

	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
		return err
	}
	engine.Use(
		logger.Recovery(log),
		middleware.Tracing(cfg.Telemetry.ServiceName),
		logger.GinMiddleware(log),
		middleware.SpanErrorMarker(),
		middleware.Secure(),
		middleware.CORS(middleware.CORSConfigFrom(cfg.HTTP)),
		middleware.BodyLimit(cfg.HTTP.MaxBodySize),
	)

	health := handler.NewHealthHandler(3 * time.Second).
		AddCheck("database", db.PingContext)
	engine.GET("/health", health.Check)

	jwtService := auth.NewJWTService(cfg.JWT)
	r := router.NewRouter(engine, router.WithAPIVersion("v1"))
	r.Use(
		middleware.JWTAuthMiddlewareWithConfig(middleware.JWTMiddlewareConfig{
			Validator: jwtService,
			Logger:    log,
		}),
		middleware.SpanAttributes(),
	)
	if cfg.HTTP.RateLimit > 0 {
		r.Use(middleware.RateLimit(middleware.NewKeyedRateLimiter(cfg.HTTP.RateLimit, cfg.HTTP.RateLimitBurst)))
	}
	r.Register(router.DomainGroups(router.Handlers{
		Listing:         handler.NewListingHandler(manager, builder, channelRepo, jobs),
		FieldMapping:    handler.NewFieldMappingHandler(fieldMappingService),
		CategoryMapping: handler.NewCategoryMappingHandler(categoryMappingService, productRepo),
		Connection:      handler.NewConnectionHandler(connectionService),
	})...)
	r.Setup()

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-quit:
		log.Info("Shutting down server...", zap.String("signal", sig.String()))
	case err := <-serveErr:
		log.Error("Server failed", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	if err := trigger.Stop(shutdownCtx); err != nil {
		log.Warn("Item specifics trigger did not stop cleanly", zap.Error(err))
	}
	if err := jobs.Stop(shutdownCtx); err != nil {
		log.Warn("Job scheduler did not stop cleanly", zap.Error(err))
	}
	if err := eventBus.Stop(shutdownCtx); err != nil {
		log.Warn("Event bus did not stop cleanly", zap.Error(err))
	}
	if profiler != nil {
		if err := profiler.Stop(); err != nil {
			log.Warn("Profiler did not stop cleanly", zap.Error(err))
		}
	}
	if err := loggerProvider.Shutdown(shutdownCtx); err != nil {
		log.Warn("Logger provider shutdown failed", zap.Error(err))
	}
	if err := meterProvider.Shutdown(shutdownCtx); err != nil {
		log.Warn("Meter provider shutdown failed", zap.Error(err))
	}
	if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
		log.Warn("Tracer provider shutdown failed", zap.Error(err))
	}

	log.Info("Server exited gracefully")
	return nil
}

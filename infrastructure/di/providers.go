package di

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"signalwatcher/application/ports"
	"signalwatcher/application/services"
	domainconfig "signalwatcher/domain/config"
	"signalwatcher/infrastructure/ai"
	"signalwatcher/infrastructure/cache"
	"signalwatcher/infrastructure/config"
	natsmsg "signalwatcher/infrastructure/messaging/nats"
	"signalwatcher/infrastructure/persistence/memory"
	"signalwatcher/infrastructure/persistence/postgres"
	"signalwatcher/interfaces/http/rest"
	"signalwatcher/interfaces/http/rest/handlers"
	pkgerrors "signalwatcher/pkg/errors"
	"signalwatcher/pkg/observability"
	"signalwatcher/pkg/ratelimit"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ServiceName is attached to every log line and span
const ServiceName = "signal-watcher-api"

// Repositories groups the storage ports so that one backend provides all three
type Repositories struct {
	Watchlists ports.WatchlistRepository
	Events     ports.EventRepository
	Analyses   ports.AnalysisRepository
}

// HealthCheckers holds the dependencies probed by /health. A nil field
// means the dependency is not configured.
type HealthCheckers struct {
	Redis ports.HealthChecker
	DB    ports.HealthChecker
}

// Analyzers holds the primary and fallback analyzers. They are the same
// value when no external provider is configured.
type Analyzers struct {
	Primary  ports.Analyzer
	Fallback ports.Analyzer
}

// ProvideLogLevel parses LOG_LEVEL into an adjustable level
func ProvideLogLevel(cfg *config.Config) (zap.AtomicLevel, error) {
	level, err := zap.ParseAtomicLevel(cfg.LogLevel)
	if err != nil {
		return zap.AtomicLevel{}, fmt.Errorf("invalid log level %q: %w", cfg.LogLevel, err)
	}
	return level, nil
}

// ProvideLogger creates the root logger. Production logs JSON; every other
// environment uses the development encoder.
func ProvideLogger(cfg *config.Config, level zap.AtomicLevel) (*zap.Logger, func(), error) {
	var zapCfg zap.Config
	if cfg.IsProduction() {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
	}
	zapCfg.Level = level
	zapCfg.EncoderConfig.TimeKey = "timestamp"
	zapCfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zapCfg.InitialFields = map[string]interface{}{
		"service": ServiceName,
		"version": cfg.Version,
	}
	if cfg.LogFile != "" {
		zapCfg.OutputPaths = append(zapCfg.OutputPaths, cfg.LogFile)
		zapCfg.ErrorOutputPaths = append(zapCfg.ErrorOutputPaths, cfg.LogFile)
	}

	logger, err := zapCfg.Build()
	if err != nil {
		return nil, nil, err
	}

	cleanup := func() {
		_ = logger.Sync()
	}
	return logger, cleanup, nil
}

// ProvideMetrics creates the process-wide metrics registry
func ProvideMetrics(logger *zap.Logger) *observability.Registry {
	return observability.NewRegistry(logger.Named("metrics"))
}

// ProvideDomainConfig loads the business limits for the environment
func ProvideDomainConfig(cfg *config.Config) (*domainconfig.DomainConfig, error) {
	dcfg := domainconfig.LoadDomainConfig(cfg.Environment)
	if err := dcfg.Validate(); err != nil {
		return nil, err
	}
	return dcfg, nil
}

// ProvideTracer creates the OpenTelemetry tracer. Disabled tracing yields a
// tracer over the global no-op provider.
func ProvideTracer(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*observability.Tracer, func(), error) {
	tracer, err := observability.NewTracer(ctx, observability.TracingConfig{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: ServiceName,
		Version:     cfg.Version,
		Environment: cfg.Environment,
		Endpoint:    cfg.Tracing.Endpoint,
		SampleRate:  cfg.Tracing.SampleRate,
	})
	if err != nil {
		return nil, nil, err
	}
	if cfg.Tracing.Enabled {
		logger.Info("Tracing enabled", zap.String("endpoint", cfg.Tracing.Endpoint))
	}

	cleanup := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracer.Shutdown(ctx); err != nil {
			logger.Warn("Tracer shutdown failed", zap.Error(err))
		}
	}
	return tracer, cleanup, nil
}

// ProvideDatabase opens PostgreSQL when DATABASE_URL is set and applies
// pending migrations when AUTO_MIGRATE is on. It returns nil otherwise.
func ProvideDatabase(ctx context.Context, cfg *config.Config, logger *zap.Logger, metrics *observability.Registry) (*postgres.DB, func(), error) {
	if cfg.Database.URL == "" {
		logger.Info("DATABASE_URL not set, using in-memory store")
		return nil, func() {}, nil
	}

	dbLogger := logger.Named("db")
	db, err := postgres.Open(ctx, cfg.Database.URL, postgres.Options{
		MaxOpenConns: cfg.Database.MaxOpenConns,
	}, dbLogger, metrics)
	if err != nil {
		return nil, nil, err
	}

	if cfg.Database.AutoMigrate {
		if err := postgres.Migrate(ctx, db, dbLogger); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("failed to migrate database: %w", err)
		}
	}

	cleanup := func() {
		if err := db.Close(); err != nil {
			logger.Warn("Database close failed", zap.Error(err))
		}
	}
	return db, cleanup, nil
}

// ProvideDatabaseMonitor starts the periodic database ping when a database
// is configured
func ProvideDatabaseMonitor(ctx context.Context, db *postgres.DB, logger *zap.Logger, metrics *observability.Registry) (*postgres.DatabaseMonitor, func()) {
	if db == nil {
		return nil, func() {}
	}
	monitor := postgres.NewDatabaseMonitor(db, 30*time.Second, logger, metrics)
	monitor.Start(context.WithoutCancel(ctx))
	return monitor, monitor.Stop
}

// ProvideRepositories selects PostgreSQL or the in-memory store
func ProvideRepositories(db *postgres.DB) Repositories {
	if db != nil {
		return Repositories{
			Watchlists: postgres.NewWatchlistRepository(db),
			Events:     postgres.NewEventRepository(db),
			Analyses:   postgres.NewAnalysisRepository(db),
		}
	}
	store := memory.NewStore()
	return Repositories{
		Watchlists: store.Watchlists(),
		Events:     store.Events(),
		Analyses:   store.Analyses(),
	}
}

// ProvideRedisStore connects to Redis when REDIS_URL is set. A failed
// connection is logged and the service runs without Redis.
func ProvideRedisStore(ctx context.Context, cfg *config.Config, logger *zap.Logger, metrics *observability.Registry) (*cache.RedisStore, func()) {
	if cfg.Cache.RedisURL == "" {
		return nil, func() {}
	}

	redisLogger := logger.Named("redis")
	client, err := cache.NewRedisClient(ctx, cache.RedisOptions{URL: cfg.Cache.RedisURL}, redisLogger)
	if err != nil {
		redisLogger.Error("Redis unavailable, continuing without it", zap.Error(err))
		return nil, func() {}
	}

	store := cache.NewRedisStore(client, redisLogger, metrics)
	cleanup := func() {
		if err := store.Close(); err != nil {
			logger.Warn("Redis close failed", zap.Error(err))
		}
	}
	return store, cleanup
}

// ProvideCacheStore picks the response cache backend: Redis when connected,
// the in-process LRU when CACHE_IN_MEMORY is set, otherwise no caching
func ProvideCacheStore(cfg *config.Config, redisStore *cache.RedisStore) (cache.Store, func(), error) {
	if redisStore != nil {
		return redisStore, func() {}, nil
	}
	if !cfg.Cache.InMemory {
		return nil, func() {}, nil
	}

	lru, err := cache.NewLRUStore(cfg.Cache.MaxEntries)
	if err != nil {
		return nil, nil, err
	}
	return lru, func() { _ = lru.Close() }, nil
}

// ProvideRateLimiter builds the limiter for RATE_LIMIT_STRATEGY
func ProvideRateLimiter(cfg *config.Config, redisStore *cache.RedisStore) (ratelimit.RateLimiter, func(), error) {
	var client redis.UniversalClient
	if redisStore != nil {
		client = redisStore.Client()
	}

	limiter, err := ratelimit.New(cfg.RateLimit.Strategy, cfg.RateLimit.Max, cfg.RateLimit.Window, client)
	if err != nil {
		return nil, nil, err
	}

	cleanup := func() {}
	if closer, ok := limiter.(interface{ Close() }); ok {
		cleanup = closer.Close
	}
	return limiter, cleanup, nil
}

// ProvideHealthCheckers collects the configured dependencies
func ProvideHealthCheckers(redisStore *cache.RedisStore, db *postgres.DB) HealthCheckers {
	var checkers HealthCheckers
	if redisStore != nil {
		checkers.Redis = redisStore
	}
	if db != nil {
		checkers.DB = db
	}
	return checkers
}

// ProvideAnalyzers builds the mock fallback and, when an OpenAI key is
// configured, the OpenAI primary behind a circuit breaker
func ProvideAnalyzers(cfg *config.Config, logger *zap.Logger, metrics *observability.Registry) (Analyzers, error) {
	mock := ai.NewMockAnalyzer()
	if !cfg.UsesOpenAI() {
		if cfg.AI.Provider == config.ProviderOpenAI {
			logger.Warn("OPENAI_API_KEY not set, using mock analyzer")
		}
		return Analyzers{Primary: mock, Fallback: mock}, nil
	}

	aiLogger := logger.Named("ai")
	openai, err := ai.NewOpenAIAnalyzer(ai.OpenAIConfig{
		APIKey:  cfg.AI.OpenAIAPIKey,
		Model:   cfg.AI.OpenAIModel,
		BaseURL: cfg.AI.OpenAIBaseURL,
		Timeout: cfg.AI.PrimaryTimeout,
	}, aiLogger, metrics)
	if err != nil {
		return Analyzers{}, err
	}

	var primary ports.Analyzer = openai
	if b := cfg.AI.Breaker; b.Enabled {
		primary = ai.NewBreakerAnalyzer(openai, ai.BreakerConfig{
			MaxRequests:      b.MaxRequests,
			Interval:         b.Interval,
			Timeout:          b.Timeout,
			FailureThreshold: b.FailureThreshold,
			MinRequests:      b.MinRequests,
		}, aiLogger)
	}
	return Analyzers{Primary: primary, Fallback: mock}, nil
}

// ProvideEventPublisher connects to NATS when NATS_URL is set. Without it,
// or when the connection fails, notifications are only logged.
func ProvideEventPublisher(cfg *config.Config, logger *zap.Logger, metrics *observability.Registry) (ports.EventPublisher, func()) {
	natsLogger := logger.Named("nats")
	if cfg.NATS.URL == "" {
		return natsmsg.NewNoopPublisher(natsLogger), func() {}
	}

	publisher, err := natsmsg.NewPublisher(cfg.NATS.URL, cfg.NATS.SubjectPrefix, natsLogger, metrics)
	if err != nil {
		natsLogger.Error("NATS unavailable, event notifications disabled", zap.Error(err))
		return natsmsg.NewNoopPublisher(natsLogger), func() {}
	}

	cleanup := func() {
		if err := publisher.Close(); err != nil {
			logger.Warn("NATS close failed", zap.Error(err))
		}
	}
	return publisher, cleanup
}

// ProvideAnalysisService creates the analysis orchestrator
func ProvideAnalysisService(
	repos Repositories,
	analyzers Analyzers,
	publisher ports.EventPublisher,
	cfg *config.Config,
	dcfg *domainconfig.DomainConfig,
	logger *zap.Logger,
	metrics *observability.Registry,
	tracer *observability.Tracer,
) *services.AnalysisService {
	return services.NewAnalysisService(
		repos.Events,
		repos.Analyses,
		analyzers.Primary,
		analyzers.Fallback,
		publisher,
		services.AnalysisOptions{PrimaryTimeout: cfg.AI.PrimaryTimeout},
		dcfg,
		logger,
		metrics,
		tracer,
	)
}

// ProvideAnalysisDispatcher starts the background analysis workers. The
// cleanup drains queued jobs within SHUTDOWN_TIMEOUT.
func ProvideAnalysisDispatcher(
	analysis *services.AnalysisService,
	cfg *config.Config,
	logger *zap.Logger,
	metrics *observability.Registry,
) (*services.AnalysisDispatcher, func()) {
	dispatcher := services.NewAnalysisDispatcher(analysis, cfg.Analysis.Workers, cfg.Analysis.QueueSize, logger, metrics)

	cleanup := func() {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := dispatcher.Shutdown(ctx); err != nil {
			logger.Warn("Analysis queue not drained", zap.Error(err))
		}
	}
	return dispatcher, cleanup
}

// ProvideWatchlistService creates the watchlist service
func ProvideWatchlistService(repos Repositories, dcfg *domainconfig.DomainConfig, logger *zap.Logger, metrics *observability.Registry) *services.WatchlistService {
	return services.NewWatchlistService(repos.Watchlists, dcfg, logger, metrics)
}

// ProvideEventService creates the event service
func ProvideEventService(
	repos Repositories,
	dispatcher *services.AnalysisDispatcher,
	publisher ports.EventPublisher,
	dcfg *domainconfig.DomainConfig,
	logger *zap.Logger,
	metrics *observability.Registry,
) *services.EventService {
	return services.NewEventService(repos.Events, repos.Analyses, dispatcher, publisher, dcfg, logger, metrics)
}

// ProvideSeeder creates the demo data seeder
func ProvideSeeder(repos Repositories, dcfg *domainconfig.DomainConfig, logger *zap.Logger) *services.Seeder {
	return services.NewSeeder(repos.Watchlists, repos.Events, dcfg, logger)
}

// ProvideErrorHandler creates the shared error handler
func ProvideErrorHandler(cfg *config.Config, logger *zap.Logger, metrics *observability.Registry) *pkgerrors.ErrorHandler {
	return pkgerrors.NewErrorHandler(logger.Named("errors"), metrics, cfg.IsProduction())
}

// ProvideRouter assembles the handlers and the HTTP router
func ProvideRouter(
	cfg *config.Config,
	watchlists *services.WatchlistService,
	events *services.EventService,
	analysis *services.AnalysisService,
	checkers HealthCheckers,
	errHandler *pkgerrors.ErrorHandler,
	limiter ratelimit.RateLimiter,
	store cache.Store,
	tracer *observability.Tracer,
	metrics *observability.Registry,
	logger *zap.Logger,
) http.Handler {
	httpLogger := logger.Named("http")

	opts := rest.RouterOptions{
		AllowedOrigins: cfg.CORSAllowedOrigins,
		AdminSecret:    cfg.AdminJWTSecret,
		Production:     cfg.IsProduction(),
	}
	if cfg.PrometheusEnabled {
		bridge := observability.NewPrometheusBridge(metrics, "signalwatcher")
		opts.Prometheus = observability.PrometheusHandler(observability.NewPrometheusRegistry(bridge))
	}

	router := rest.NewRouter(
		handlers.NewWatchlistHandler(watchlists, errHandler, httpLogger),
		handlers.NewEventHandler(events, analysis, errHandler, httpLogger),
		handlers.NewHealthHandler(checkers.Redis, checkers.DB, httpLogger),
		handlers.NewMetricsHandler(metrics, cfg.Version, httpLogger),
		errHandler,
		limiter,
		store,
		tracer,
		metrics,
		httpLogger,
		opts,
	)
	return router.Setup()
}

// ProvideConfigWatcher hot-reloads the YAML overlay when one was loaded
func ProvideConfigWatcher(cfg *config.Config, level zap.AtomicLevel, logger *zap.Logger) (*config.Watcher, func(), error) {
	if cfg.ConfigFile == "" {
		return nil, func() {}, nil
	}

	watcher, err := config.NewWatcher(cfg.ConfigFile, cfg, level, logger.Named("config"))
	if err != nil {
		return nil, nil, err
	}
	watcher.Start()
	return watcher, watcher.Stop, nil
}

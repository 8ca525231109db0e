//go:build wireinject
// +build wireinject

package di

import (
	"context"

	"signalwatcher/infrastructure/config"

	"github.com/google/wire"
)

// ConfigProviders provide logging, metrics and business limits
var ConfigProviders = wire.NewSet(
	ProvideLogLevel,
	ProvideLogger,
	ProvideMetrics,
	ProvideDomainConfig,
	ProvideTracer,
	ProvideConfigWatcher,
)

// InfrastructureProviders provide storage, cache, messaging and analyzers
var InfrastructureProviders = wire.NewSet(
	ProvideDatabase,
	ProvideDatabaseMonitor,
	ProvideRepositories,
	ProvideRedisStore,
	ProvideCacheStore,
	ProvideRateLimiter,
	ProvideHealthCheckers,
	ProvideAnalyzers,
	ProvideEventPublisher,
)

// ApplicationProviders provide the services and the background workers
var ApplicationProviders = wire.NewSet(
	ProvideAnalysisService,
	ProvideAnalysisDispatcher,
	ProvideWatchlistService,
	ProvideEventService,
	ProvideSeeder,
)

// InterfaceProviders provide the HTTP surface
var InterfaceProviders = wire.NewSet(
	ProvideErrorHandler,
	ProvideRouter,
)

// SuperSet is the main provider set containing all providers
var SuperSet = wire.NewSet(
	ConfigProviders,
	InfrastructureProviders,
	ApplicationProviders,
	InterfaceProviders,
	wire.Struct(new(Container), "*"),
)

// InitializeContainer creates a fully wired container. The returned cleanup
// releases resources in reverse construction order.
func InitializeContainer(ctx context.Context, cfg *config.Config) (*Container, func(), error) {
	wire.Build(SuperSet)
	return nil, nil, nil // Wire will replace this
}

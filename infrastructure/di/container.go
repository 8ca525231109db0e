package di

import (
	"net/http"

	"signalwatcher/application/services"
	"signalwatcher/infrastructure/config"
	"signalwatcher/infrastructure/persistence/postgres"
	"signalwatcher/pkg/observability"

	"go.uber.org/zap"
)

// Container holds all application dependencies
type Container struct {
	Config     *config.Config
	Logger     *zap.Logger
	LogLevel   zap.AtomicLevel
	Metrics    *observability.Registry
	Handler    http.Handler
	Seeder     *services.Seeder
	Dispatcher *services.AnalysisDispatcher
	Monitor    *postgres.DatabaseMonitor
	Watcher    *config.Watcher
}

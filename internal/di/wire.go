//go:build wireinject
// +build wireinject

package di

import (
	"ChartSignal/pkg/config"
	"ChartSignal/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Ambient
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideSQLiteClient,
		ProvideKafkaProducer,
		ProvideKafkaConsumer,
		ProvideClickHouseClient,
		ProvideCacheService,

		// Repositories
		ProvidePredictionStore,
		ProvideEventPublisher,
		ProvideAnalyticsSink,
		ProvideResultCache,
		ProvideUploadStore,

		// Services
		ProvideFeedHub,
		ProvideRateLimiter,
		ProvideBackends,
		ProvideStages,
		ProvideWorkerPool,

		// Use cases
		ProvideChartAnalyzer,
		ProvideAnalysisService,
		ProvideKafkaAnalysisHandler,
		ProvideScheduler,

		// HTTP and application
		ProvideHandlers,
		ProvideHTTPServer,
		ProvideApp,
	)
	return &server.App{}, nil
}

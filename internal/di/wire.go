//go:build wireinject
// +build wireinject

package di

import (
	"NewsPull/pkg/config"
	"NewsPull/pkg/server"

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
		ProvideClickHouseClient,
		ProvideRedisClient,
		ProvideKafkaProducer,

		// Repositories
		ProvideStores,
		ProvideProviders,
		ProvidePublisher,
		ProvideCategorizer,

		// Use cases
		ProvideNormalizer,
		ProvideFetcher,
		ProvideProcessor,
		ProvideSweeper,
		ProvideOrchestrator,
		ProvideNewsQuery,
		ProvideHeadlineCollector,
		ProvideKafkaConsumer,
		ProvideKafkaNewsHandler,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}

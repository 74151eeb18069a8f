//go:build wireinject
// +build wireinject

package di

import (
	"StockRank/pkg/config"
	"StockRank/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, func(), error) {
	wire.Build(
		// Ambient
		ProvideLogger,
		ProvideMetrics,
		ProvideLimiter,

		// Infrastructure clients
		ProvideAlpacaClient,
		ProvideClickHouseClient,
		ProvideCache,

		// Repositories
		ProvideBarStore,
		ProvideBarSource,
		ProvideBroker,
		ProvideRankingWriter,
		ProvideRankingPublisher,

		// Use cases
		ProvidePipelineConfig,
		ProvidePipeline,
		ProvideRanker,
		ProvideRegression,
		ProvideSession,
		ProvideSeries,
		ProvidePortfolio,
		ProvideAccount,

		// HTTP
		ProvideDashboardHandler,
		ProvideHTTPServer,

		ProvideApp,
	)
	return nil, nil, nil
}

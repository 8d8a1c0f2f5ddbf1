//go:build wireinject
// +build wireinject

package di

import (
	"github.com/google/wire"

	"github.com/ansh-info/StockPulse/pkg/config"
	"github.com/ansh-info/StockPulse/pkg/server"
)

// InitializeLoader wires up all loader dependencies and returns the
// application. Wire generates the implementation of this function.
func InitializeLoader(cfg *config.Config) (*server.App, error) {
	wire.Build(
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideKafkaConsumer,

		// Repositories
		ProvideSink,

		// Use cases
		ProvidePreprocessor,
		ProvideCoordinator,
		ProvideTicksHandler,

		// Operator surface
		ProvideOpsHandler,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}

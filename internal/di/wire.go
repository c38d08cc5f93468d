//go:build wireinject
// +build wireinject

package di

import (
	"FxPilot/pkg/config"
	"FxPilot/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Ambient
		ProvideLogger,
		ProvideMetrics,
		ProvideCache,

		// Data plane
		ProvideFeedStore,
		ProvideRefresher,
		ProvideScorerRegistry,

		// Persistence and mirrors
		ProvideStateStore,
		ProvideTradeLog,
		ProvideTradePublisher,
		ProvideTradeArchive,
		ProvideQuoteStream,

		// Core
		ProvideEngine,
		ProvidePipeline,
		ProvideScheduler,

		// HTTP and application server
		ProvideRouter,
		ProvideApp,
	)
	return &server.App{}, nil
}

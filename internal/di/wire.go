//go:build wireinject
// +build wireinject

package di

import (
	"NewsDesk/pkg/config"
	"NewsDesk/pkg/server"

	"github.com/google/wire"
)

var coreSet = wire.NewSet(
	// Sinks and transport
	ProvideKafkaProducer,
	ProvideKafkaPublisher,
	ProvideResultPublisher,
	ProvideClickHouseClient,
	ProvideResultStorage,
	ProvideResultProcessor,

	// Observability
	ProvideLogger,
	ProvideMetrics,

	// Upstreams
	ProvideMarketData,
	ProvideDispatcher,
	ProvideCache,
	ProvideMarketContext,
	ProvideChatModel,

	// Use cases
	ProvideQualityConfig,
	ProvidePipeline,
	ProvidePipelineOptions,
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		coreSet,
		ProvideKafkaConsumer,
		ProvideNewsConsumer,
		ProvideArticleExtractor,
		ProvideAnalysisHandler,
		ProvideApp,
	)
	return &server.App{}, nil
}

// InitializeRunner wires the components used by the one-shot commands.
func InitializeRunner(cfg *config.Config) (*Runner, error) {
	wire.Build(
		coreSet,
		ProvideRunner,
	)
	return &Runner{}, nil
}

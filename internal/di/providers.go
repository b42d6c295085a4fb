package di

import (
	"context"
	"fmt"
	"time"

	"NewsDesk/internal/domain/repository"
	dservice "NewsDesk/internal/domain/service"
	"NewsDesk/internal/handler/api"
	internalrepo "NewsDesk/internal/repository"
	"NewsDesk/internal/service/dispatcher"
	"NewsDesk/internal/service/fmp"
	"NewsDesk/internal/service/llm"
	"NewsDesk/internal/service/marketctx"
	"NewsDesk/internal/service/ratelimit"
	"NewsDesk/internal/usecase"
	"NewsDesk/pkg/cache"
	pkgch "NewsDesk/pkg/clickhouse"
	"NewsDesk/pkg/config"
	xhttp "NewsDesk/pkg/http"
	pkgkafka "NewsDesk/pkg/kafka"
	"NewsDesk/pkg/logger"
	"NewsDesk/pkg/metrics"
	"NewsDesk/pkg/server"
)

const serviceName = "newsdesk"

// ProvideLogger builds the application logger. When the collector is enabled
// error digests go out through the Kafka publisher.
func ProvideLogger(cfg *config.Config, pub *internalrepo.KafkaPublisher) (*logger.Logger, error) {
	l, err := logger.New(&logger.Config{
		Level:   cfg.Log.Level,
		Format:  cfg.Log.Format,
		Output:  cfg.Log.Output,
		Service: serviceName,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}

	if cfg.Log.Collector.Enabled && pub != nil {
		l.AddCollector(&logger.CollectionConfig{
			Service:        serviceName,
			TimeInterval:   cfg.Log.Collector.Interval,
			CountThreshold: cfg.Log.Collector.CountThreshold,
			Topic:          cfg.Log.Collector.Topic,
			Publisher:      pub,
		})
	}
	return l, nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideMarketData creates the FMP client behind a shared token bucket.
func ProvideMarketData(cfg *config.Config, l *logger.Logger) repository.MarketData {
	return fmp.New(fmp.Config{
		BaseURL:        cfg.FMP.BaseURL,
		APIKey:         cfg.FMP.APIKey,
		Timeout:        cfg.FMP.Timeout,
		MaxRetries:     cfg.FMP.MaxRetries,
		InitialBackoff: cfg.FMP.InitialBackoff,
		Burst:          cfg.FMP.Burst,
		RefillPerSec:   cfg.FMP.RefillPerSec,
	}, ratelimit.New(), l.With(logger.String("component", "fmp")))
}

// ProvideDispatcher creates the typed data-request dispatcher.
func ProvideDispatcher(cfg *config.Config, md repository.MarketData, m repository.Metrics, l *logger.Logger) *dispatcher.Dispatcher {
	return dispatcher.New(md, m, l.With(logger.String("component", "dispatcher")),
		dispatcher.WithCallTimeout(cfg.FMP.CallTimeout))
}

// ProvideCache builds the snapshot cache selected by market_context.cache.
// "none" returns a nil Service, which disables caching.
func ProvideCache(cfg *config.Config) (cache.Service, error) {
	switch cfg.MarketContext.Cache {
	case "none":
		return nil, nil
	case "memory":
		return cache.NewMemoryCache(cache.WithMemoryMaxSize(64), cache.WithMemoryCleanup(cfg.MarketContext.CacheTTL)), nil
	}

	rc, err := cache.NewRedisCache(
		cache.WithRedisAddr(cfg.Redis.Host, cfg.Redis.Port),
		cache.WithRedisAuth(cfg.Redis.Password, cfg.Redis.DB),
		cache.WithRedisPrefix(cfg.Redis.Prefix),
		cache.WithRedisPool(cfg.Redis.PoolSize, 2, 30*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}
	if cfg.MarketContext.Cache == "redis" {
		return rc, nil
	}
	return cache.NewLayeredCache(cache.NewMemoryCache(cache.WithMemoryMaxSize(64)), rc,
		cache.WithPromoteTTL(cfg.MarketContext.CacheTTL)), nil
}

// ProvideMarketContext creates the market snapshot fetcher.
func ProvideMarketContext(
	cfg *config.Config,
	md repository.MarketData,
	c cache.Service,
	m repository.Metrics,
	l *logger.Logger,
) *marketctx.Fetcher {
	return marketctx.New(marketctx.Config{
		FearGreedURL: cfg.MarketContext.FearGreedURL,
		BinanceURL:   cfg.MarketContext.BinanceURL,
		Timeout:      cfg.MarketContext.Timeout,
		CacheTTL:     cfg.MarketContext.CacheTTL,
	}, md, c, l.With(logger.String("component", "marketctx")), m)
}

// ProvideChatModel creates the LLM client for the configured provider.
func ProvideChatModel(cfg *config.Config, m repository.Metrics, l *logger.Logger) (repository.ChatModel, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := llm.New(ctx, llm.Config{
		Provider:          cfg.LLM.Provider,
		BaseURL:           cfg.LLM.BaseURL,
		APIKey:            cfg.LLM.APIKey,
		Timeout:           cfg.LLM.Timeout,
		RequestsPerMinute: cfg.LLM.RequestsPerMinute,
		MaxRetries:        cfg.LLM.MaxRetries,
		InitialBackoff:    cfg.LLM.InitialBackoff,
	}, m, l.With(logger.String("component", "llm")))
	if err != nil {
		return nil, fmt.Errorf("llm client: %w", err)
	}
	return client, nil
}

// ProvideQualityConfig maps the YAML thresholds onto the scorer.
func ProvideQualityConfig(cfg *config.Config) usecase.QualityConfig {
	q := cfg.Pipeline.Quality
	return usecase.QualityConfig{
		StrategistWeight:       q.StrategistWeight,
		AdherenceWeight:        q.AdherenceWeight,
		ConfidenceWeight:       q.ConfidenceWeight,
		WarningPenalty:         q.WarningPenalty,
		ProbabilityTolerance:   q.ProbabilityTolerance,
		LowIncrementalInfo:     q.LowIncrementalInfo,
		HighConfidence:         float64(q.HighConfidence),
		TradeableMinConviction: float64(q.TradeableMinConviction),
	}
}

// ProvidePipeline creates the two-stage analysis pipeline.
func ProvidePipeline(
	cfg *config.Config,
	chat repository.ChatModel,
	d *dispatcher.Dispatcher,
	mc *marketctx.Fetcher,
	quality usecase.QualityConfig,
	m repository.Metrics,
	l *logger.Logger,
) *usecase.Pipeline {
	return usecase.NewPipeline(chat, d, mc, cfg.LLM.Tiers, quality, m, l.With(logger.String("component", "pipeline")))
}

// ProvidePipelineOptions returns the per-item defaults from config.
func ProvidePipelineOptions(cfg *config.Config) usecase.Options {
	return usecase.Options{
		ModelTier:            cfg.Pipeline.ModelTier,
		IncludeMarketContext: cfg.Pipeline.IncludeMarketContext,
		UseDispatcher:        cfg.Pipeline.UseDispatcher,
	}
}

// ProvideKafkaProducer creates a Kafka producer when the sink or the log
// collector needs one. It returns nil otherwise.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if cfg.Sink.Type != config.SinkKafka && !cfg.Log.Collector.Enabled {
		return nil, nil
	}

	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.Producer.BatchBytes),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
		pkgkafka.WithClientID(serviceName),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideKafkaPublisher wraps the producer for result messages.
func ProvideKafkaPublisher(producer *pkgkafka.Producer, cfg *config.Config) *internalrepo.KafkaPublisher {
	if producer == nil {
		return nil
	}
	return internalrepo.NewKafkaPublisher(producer, cfg.Kafka.ResultsTopic)
}

// ProvideResultPublisher exposes the publisher to the sink only when the sink
// is Kafka.
func ProvideResultPublisher(pub *internalrepo.KafkaPublisher, cfg *config.Config) repository.ResultPublisher {
	if pub == nil || cfg.Sink.Type != config.SinkKafka {
		return nil
	}
	return pub
}

// ProvideClickHouseClient creates a ClickHouse client and the database when
// the sink is ClickHouse. It returns nil otherwise.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if cfg.Sink.Type != config.SinkClickHouse {
		return nil, nil
	}

	client, err := pkgch.NewClient(
		pkgch.WithAddr(cfg.ClickHouse.Host, cfg.ClickHouse.Port),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithCompression(cfg.ClickHouse.Compress),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := client.InitSchema(ctx, []string{
		"CREATE DATABASE IF NOT EXISTS " + cfg.ClickHouse.Database,
	}); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return client, nil
}

// ProvideResultStorage creates the results table storage.
func ProvideResultStorage(ch *pkgch.Client, cfg *config.Config) (repository.ResultStorage, error) {
	if ch == nil {
		return nil, nil
	}

	store := internalrepo.NewClickHouseStorage(ch.DB(), cfg.ClickHouse.Database+"."+cfg.ClickHouse.Table)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := store.Init(ctx); err != nil {
		return nil, fmt.Errorf("results table: %w", err)
	}
	return store, nil
}

// ProvideResultProcessor creates the sink router.
func ProvideResultProcessor(
	pub repository.ResultPublisher,
	store repository.ResultStorage,
	m repository.Metrics,
	cfg *config.Config,
) *usecase.ResultProcessor {
	return usecase.NewResultProcessor(pub, store, m, cfg.Sink.Type)
}

// ProvideKafkaConsumer creates the news-topic consumer when it is enabled.
func ProvideKafkaConsumer(cfg *config.Config, l *logger.Logger) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Consumer.Enabled {
		return nil, nil
	}

	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
		pkgkafka.WithConsumerLogger(l.With(logger.String("component", "kafka_consumer"))),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	return consumer, nil
}

// ProvideNewsConsumer registers the pipeline on the news topic.
func ProvideNewsConsumer(
	cfg *config.Config,
	pipeline *usecase.Pipeline,
	sink *usecase.ResultProcessor,
	opts usecase.Options,
	m repository.Metrics,
) *usecase.NewsConsumer {
	if !cfg.Kafka.Consumer.Enabled {
		return nil
	}
	return usecase.NewNewsConsumer(cfg.Kafka.Consumer.NewsTopic, pipeline, sink, opts, m)
}

// ProvideArticleExtractor creates the readability extractor used for
// URL-only requests.
func ProvideArticleExtractor(cfg *config.Config) api.ArticleExtractor {
	return api.NewReadabilityExtractor(xhttp.NewClient(
		xhttp.WithTimeout(cfg.MarketContext.Timeout),
		xhttp.WithRetry(1, 500*time.Millisecond),
		xhttp.WithMaxBodySize(api.MaxArticleBytes),
	))
}

// ProvideAnalysisHandler creates the HTTP handler.
func ProvideAnalysisHandler(
	cfg *config.Config,
	l *logger.Logger,
	pipeline *usecase.Pipeline,
	d *dispatcher.Dispatcher,
	mc *marketctx.Fetcher,
	sink *usecase.ResultProcessor,
	articles api.ArticleExtractor,
) *api.AnalysisEchoHandler {
	return api.NewAnalysisEchoHandler(l, pipeline, d, mc, sink, articles, api.AnalysisDefaults{
		ModelTier:            cfg.Pipeline.ModelTier,
		IncludeMarketContext: cfg.Pipeline.IncludeMarketContext,
		UseDispatcher:        cfg.Pipeline.UseDispatcher,
	})
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	l *logger.Logger,
	h *api.AnalysisEchoHandler,
	consumer *pkgkafka.Consumer,
	news *usecase.NewsConsumer,
	sink *usecase.ResultProcessor,
	producer *pkgkafka.Producer,
	chClient *pkgch.Client,
) *server.App {
	var handler pkgkafka.MessageHandler
	if news != nil {
		handler = news
	}
	return server.New(cfg, l, h, consumer, handler, sink, producer, chClient)
}

// Runner holds what the one-shot CLI commands need.
type Runner struct {
	Logger        *logger.Logger
	Pipeline      *usecase.Pipeline
	Dispatcher    dservice.DataDispatcher
	MarketContext dservice.MarketContextProvider
	Sink          *usecase.ResultProcessor
	Options       usecase.Options

	producer *pkgkafka.Producer
	chClient *pkgch.Client
}

// ProvideRunner bundles the components for a one-shot command.
func ProvideRunner(
	l *logger.Logger,
	pipeline *usecase.Pipeline,
	d *dispatcher.Dispatcher,
	mc *marketctx.Fetcher,
	sink *usecase.ResultProcessor,
	opts usecase.Options,
	producer *pkgkafka.Producer,
	chClient *pkgch.Client,
) *Runner {
	return &Runner{
		Logger:        l,
		Pipeline:      pipeline,
		Dispatcher:    d,
		MarketContext: mc,
		Sink:          sink,
		Options:       opts,
		producer:      producer,
		chClient:      chClient,
	}
}

// Close flushes the log collector and releases sink connections.
func (r *Runner) Close() {
	r.Logger.RemoveCollector()
	backend := r.Sink.Backend()
	r.Sink.Close()
	if r.producer != nil && backend != config.SinkKafka {
		_ = r.producer.Close()
	}
	if r.chClient != nil {
		_ = r.chClient.Close()
	}
}

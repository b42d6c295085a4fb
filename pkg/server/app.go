package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"NewsDesk/internal/usecase"
	pkgch "NewsDesk/pkg/clickhouse"
	"NewsDesk/pkg/config"
	xhttp "NewsDesk/pkg/http"
	pkgkafka "NewsDesk/pkg/kafka"
	applogger "NewsDesk/pkg/logger"
)

// App encapsulates the entire application lifecycle.
type App struct {
	cfg         *config.Config
	log         *applogger.Logger
	httpHandler xhttp.Handler
	httpServer  *xhttp.Server
	consumer    *pkgkafka.Consumer
	kh          pkgkafka.MessageHandler
	sink        *usecase.ResultProcessor
	producer    *pkgkafka.Producer
	chClient    *pkgch.Client
}

// New creates a new App instance with all dependencies. consumer, kh,
// producer and chClient may be nil when the matching feature is off.
func New(
	cfg *config.Config,
	l *applogger.Logger,
	h xhttp.Handler,
	consumer *pkgkafka.Consumer,
	kh pkgkafka.MessageHandler,
	sink *usecase.ResultProcessor,
	producer *pkgkafka.Producer,
	chClient *pkgch.Client,
) *App {
	if l == nil {
		l = applogger.Nop()
	}
	return &App{
		cfg:         cfg,
		log:         l,
		httpHandler: h,
		consumer:    consumer,
		kh:          kh,
		sink:        sink,
		producer:    producer,
		chClient:    chClient,
	}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	metricsPath := ""
	if a.cfg.Metrics.Enabled {
		metricsPath = a.cfg.Metrics.Path
	}
	a.httpServer = xhttp.NewServer(a.httpHandler, a.log,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
		xhttp.WithSlowRequest(a.cfg.Server.SlowRequest),
		xhttp.WithBodyLimit(a.cfg.Server.BodyLimit),
		xhttp.WithCORS(a.cfg.Server.CORS),
		xhttp.WithMetricsPath(metricsPath),
	)

	// Start consumer if configured
	if a.consumer != nil && a.kh != nil {
		a.consumer.RegisterHandler(a.kh)
		if err := a.consumer.Start(); err != nil {
			a.log.Error("kafka consumer start error", applogger.Error(err))
			return err
		}
		a.log.Info("kafka consumer started", applogger.String("topic", a.kh.Topic()))
	}

	if err := a.httpServer.Start(); err != nil {
		a.log.Error("http server start error", applogger.Error(err))
		return err
	}
	a.log.Info("newsdesk started",
		applogger.String("sink", a.sink.Backend()),
		applogger.String("model_tier", a.cfg.Pipeline.ModelTier),
		applogger.String("llm_provider", a.cfg.LLM.Provider),
	)

	// Wait for interrupt
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.log.Info("shutdown signal received")
	return a.shutdown(ctx)
}

// shutdown gracefully stops all services. In-flight HTTP analyses finish
// first, then the consumer drains, then sinks close.
func (a *App) shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		a.log.Error("http shutdown error", applogger.Error(err))
	}

	if a.consumer != nil {
		if err := a.consumer.Stop(shutdownCtx); err != nil {
			a.log.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}

	a.log.Info("shutdown complete")

	// The collector publishes through the producer, so it goes before sinks.
	a.log.RemoveCollector()

	backend := a.sink.Backend()
	a.sink.Close()
	if a.producer != nil && backend != config.SinkKafka {
		_ = a.producer.Close()
	}
	if a.chClient != nil {
		_ = a.chClient.Close()
	}
	return nil
}

package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	domrepo "NewsPull/internal/domain/repository"
	"NewsPull/internal/handler/api"
	icache "NewsPull/internal/service/cache"
	"NewsPull/internal/usecase"
	pkgch "NewsPull/pkg/clickhouse"
	"NewsPull/pkg/config"
	xhttp "NewsPull/pkg/http"
	pkgkafka "NewsPull/pkg/kafka"
	applogger "NewsPull/pkg/logger"
	pkgredis "NewsPull/pkg/redis"
)

// App encapsulates the entire application lifecycle: fetch cycles, the
// processing drain, the stale-claim sweep, the optional realtime wire and
// Kafka consumer, and the HTTP API.
type App struct {
	cfg          *config.Config
	l            *applogger.Logger
	orchestrator *usecase.Orchestrator
	sweeper      *usecase.Sweeper
	query        *usecase.NewsQueryUseCase
	collector    *usecase.HeadlineCollector
	consumer     *pkgkafka.Consumer
	kh           pkgkafka.MessageHandler
	chClient     *pkgch.Client
	redisClient  *pkgredis.Client
	httpServer   *xhttp.Server
	httpHandler  xhttp.Handler

	// Publisher is attached by DI so shutdown can close the Kafka writer.
	Publisher domrepo.Publisher
}

// New creates a new App instance with all dependencies.
func New(
	cfg *config.Config,
	l *applogger.Logger,
	orchestrator *usecase.Orchestrator,
	sweeper *usecase.Sweeper,
	query *usecase.NewsQueryUseCase,
	collector *usecase.HeadlineCollector,
	consumer *pkgkafka.Consumer,
	kh pkgkafka.MessageHandler,
	chClient *pkgch.Client,
	redisClient *pkgredis.Client,
) *App {
	return &App{
		cfg:          cfg,
		l:            l,
		orchestrator: orchestrator,
		sweeper:      sweeper,
		query:        query,
		collector:    collector,
		consumer:     consumer,
		kh:           kh,
		chClient:     chClient,
		redisClient:  redisClient,
	}
}

// SetHTTPHandler allows DI to inject an HTTP handler.
func (a *App) SetHTTPHandler(h xhttp.Handler) { a.httpHandler = h }

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	httpHandler := a.httpHandler
	if httpHandler == nil {
		h := api.NewNewsEchoHandler(a.l, a.query)
		h.SetCache(icache.NewTTLCache())
		httpHandler = h
	}

	serverOpts := []xhttp.ServerOption{
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
		xhttp.WithLogger(a.l),
	}
	if a.cfg.Metrics.Enabled {
		serverOpts = append(serverOpts, xhttp.WithRequestMetrics(time.Second))
	}
	a.httpServer = xhttp.NewServer(httpHandler, serverOpts...)

	// Orchestrated fetch-then-process cycles
	go a.orchestrator.Run(ctx, a.cfg.Pipeline.FetchInterval)
	a.l.Info("orchestrator started",
		applogger.Strings("symbols", a.cfg.Pipeline.Symbols),
		applogger.Duration("interval", a.cfg.Pipeline.FetchInterval))

	// Stale-claim recovery
	go a.sweeper.Run(ctx, a.cfg.Pipeline.SweepInterval)

	// Realtime wire if configured
	if a.collector != nil {
		go func() {
			if err := a.collector.Start(ctx); err != nil {
				a.l.Error("newswire collector error", applogger.Error(err))
			}
		}()
		a.l.Info("newswire collector started")
	}

	// Kafka raw-news consumer if configured
	if a.consumer != nil && a.kh != nil {
		a.consumer.RegisterHandler(a.kh)
		go func() {
			if err := a.consumer.Start(); err != nil {
				a.l.Error("kafka consumer error", applogger.Error(err))
			}
		}()
		a.l.Info("kafka consumer started", applogger.String("topic", a.kh.Topic()))
	}

	if err := a.httpServer.Start(); err != nil {
		a.l.Error("http server start error", applogger.Error(err))
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.l.Info("shutdown signal received")
	cancel()
	return a.shutdown(context.Background())
}

// shutdown gracefully stops all services.
func (a *App) shutdown(ctx context.Context) error {
	if a.collector != nil {
		if err := a.collector.Shutdown(ctx); err != nil {
			a.l.Warn("newswire stop error", applogger.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if a.httpServer != nil {
		if err := a.httpServer.Stop(shutdownCtx); err != nil {
			a.l.Error("http shutdown error", applogger.Error(err))
		}
	}

	if a.consumer != nil {
		if err := a.consumer.Stop(ctx); err != nil {
			a.l.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}

	if a.Publisher != nil {
		if err := a.Publisher.Close(); err != nil {
			a.l.Warn("publisher close error", applogger.Error(err))
		}
	}

	if a.chClient != nil {
		if err := a.chClient.Close(); err != nil {
			a.l.Warn("clickhouse close error", applogger.Error(err))
		}
	}
	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.l.Warn("redis close error", applogger.Error(err))
		}
	}

	a.l.Info("shutdown complete")
	return nil
}

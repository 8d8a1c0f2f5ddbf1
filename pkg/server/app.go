package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	domrepo "github.com/ansh-info/StockPulse/internal/domain/repository"
	"github.com/ansh-info/StockPulse/internal/usecase"
	pkgch "github.com/ansh-info/StockPulse/pkg/clickhouse"
	"github.com/ansh-info/StockPulse/pkg/config"
	xhttp "github.com/ansh-info/StockPulse/pkg/http"
	pkgkafka "github.com/ansh-info/StockPulse/pkg/kafka"
	applogger "github.com/ansh-info/StockPulse/pkg/logger"
)

// App encapsulates the loader lifecycle: consume from the queue, batch, and
// flush into the warehouse until a shutdown signal arrives.
type App struct {
	cfg         *config.Config
	log         *applogger.Logger
	consumer    *pkgkafka.Consumer
	handler     pkgkafka.MessageHandler
	coord       *usecase.Coordinator
	sink        domrepo.Sink
	chClient    *pkgch.Client
	httpHandler xhttp.Handler
	httpServer  *xhttp.Server
}

// New creates the App with all dependencies.
func New(
	cfg *config.Config,
	log *applogger.Logger,
	consumer *pkgkafka.Consumer,
	handler pkgkafka.MessageHandler,
	coord *usecase.Coordinator,
	sink domrepo.Sink,
	chClient *pkgch.Client,
	httpHandler xhttp.Handler,
) *App {
	return &App{
		cfg:         cfg,
		log:         log,
		consumer:    consumer,
		handler:     handler,
		coord:       coord,
		sink:        sink,
		chClient:    chClient,
		httpHandler: httpHandler,
	}
}

// Run starts the loader and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := a.sink.Init(ctx); err != nil {
		return err
	}

	a.httpServer = xhttp.NewServer(a.httpHandler,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
	)

	a.consumer.RegisterHandler(a.handler)
	go func() {
		if err := a.consumer.Start(); err != nil {
			a.log.Error("kafka consumer error", applogger.Error(err))
		}
	}()
	a.log.Info("loader started",
		applogger.String("topic", a.handler.Topic()),
		applogger.Strings("symbols", a.cfg.Symbols()))

	if err := a.httpServer.Start(); err != nil {
		a.log.Error("http server start error", applogger.Error(err))
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.log.Info("shutdown signal received")
	return a.shutdown()
}

// shutdown stops the consumer first so no new ticks arrive, then drains the
// pending batches, then releases infrastructure.
func (a *App) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := a.consumer.Stop(ctx); err != nil {
		a.log.Warn("kafka consumer stop error", applogger.Error(err))
	}

	if err := a.coord.Cleanup(ctx); err != nil {
		// buffered rows that cannot be drained here are lost; their offsets
		// were committed at accept time
		a.log.Warn("drain incomplete", applogger.Error(err))
	}

	if a.httpServer != nil {
		if err := a.httpServer.Stop(ctx); err != nil {
			a.log.Error("http shutdown error", applogger.Error(err))
		}
	}

	if err := a.sink.Close(); err != nil {
		a.log.Warn("sink close error", applogger.Error(err))
	}

	a.log.Info("shutdown complete")
	return nil
}

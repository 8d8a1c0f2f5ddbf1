package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	mid "github.com/ansh-info/StockPulse/internal/middleware"
	"github.com/ansh-info/StockPulse/internal/repository"
	"github.com/ansh-info/StockPulse/internal/service/alphavantage"
	"github.com/ansh-info/StockPulse/internal/service/ratelimit"
	"github.com/ansh-info/StockPulse/internal/service/stream"
	"github.com/ansh-info/StockPulse/internal/usecase"
	"github.com/ansh-info/StockPulse/pkg/cache"
	"github.com/ansh-info/StockPulse/pkg/config"
	pkgkafka "github.com/ansh-info/StockPulse/pkg/kafka"
	applogger "github.com/ansh-info/StockPulse/pkg/logger"
	"github.com/ansh-info/StockPulse/pkg/metrics"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "config file path")
	flag.Parse()

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	logger, err := applogger.New(&applogger.Config{Level: "info", Format: "json", Output: "stdout"})
	if err != nil {
		log.Fatalf("logger init failed: %v", err)
	}

	if err := run(cfg, logger); err != nil && err != context.Canceled {
		logger.Error("ingest error", applogger.Error(err))
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *applogger.Logger) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.Producer.BatchBytes),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
	)
	if err != nil {
		return err
	}

	publisher := repository.NewKafkaPublisher(producer, cfg.Kafka.Topic, logger)
	defer publisher.Close()

	cacheSvc := buildCache(cfg, logger)
	defer cacheSvc.Close()

	recorder := metrics.New()

	switch cfg.Ingest.Source {
	case "stream":
		return runStream(ctx, cfg, logger, publisher, recorder)
	default:
		fetcher := alphavantage.New(
			cfg.Ingest.AlphaVantage.APIKey,
			cfg.Ingest.AlphaVantage.BaseURL,
			cfg.Ingest.AlphaVantage.Interval,
			cfg.Ingest.AlphaVantage.RatePerMinute,
			ratelimit.New(),
			logger,
		)
		ingestor := usecase.NewPollIngestor(
			fetcher, publisher, cacheSvc,
			cfg.Symbols(),
			cfg.Ingest.PollInterval, cfg.Cache.FreshnessTTL,
			recorder, logger,
		)
		logger.Info("polling ingest started",
			applogger.Strings("symbols", cfg.Symbols()),
			applogger.Duration("interval", cfg.Ingest.PollInterval))
		return ingestor.Run(ctx)
	}
}

func runStream(ctx context.Context, cfg *config.Config, logger *applogger.Logger, publisher *repository.KafkaPublisher, recorder *metrics.Recorder) error {
	ws := stream.New(
		cfg.Ingest.Stream.APIKey,
		cfg.Ingest.Stream.URL,
		cfg.Symbols(),
		cfg.Ingest.Stream.ReconnectDelay,
		cfg.Ingest.Stream.PingInterval,
		logger,
	)

	candles := usecase.NewCandlePublisher(usecase.NewCandleBuilder(), publisher, recorder)
	pipeline := mid.NewTradePipeline(candles, recorder,
		mid.WithMaxRPS(cfg.Ingest.Pipeline.MaxRPS),
		mid.WithBufferSize(cfg.Ingest.Pipeline.BufferSize),
	)
	pipeline.Start(ctx)
	defer pipeline.Stop()

	collector := usecase.NewStreamCollector(ws, pipeline, logger)
	logger.Info("stream ingest started", applogger.Strings("symbols", cfg.Symbols()))

	err := collector.Run(ctx)

	// publish whatever candles are still open before exiting
	drainCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if derr := candles.Drain(drainCtx); derr != nil {
		logger.Warn("candle drain failed", applogger.Error(derr))
	}
	_ = ws.Close()
	return err
}

// buildCache returns the fetch-suppression cache: layered over Redis when
// configured, in-process otherwise.
func buildCache(cfg *config.Config, logger *applogger.Logger) cache.Service {
	local := cache.NewMemoryCache()
	if !cfg.Cache.Redis.Enabled {
		return local
	}
	shared, err := cache.NewRedisCache(
		cache.WithRedisAddr(cfg.Cache.Redis.Addr),
		cache.WithRedisPassword(cfg.Cache.Redis.Password),
		cache.WithRedisDB(cfg.Cache.Redis.DB),
		cache.WithRedisPrefix("stockpulse"),
	)
	if err != nil {
		logger.Warn("redis unavailable, using in-process cache only", applogger.Error(err))
		return local
	}
	return cache.NewLayeredCache(local, shared)
}

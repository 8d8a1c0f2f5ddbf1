package di

import (
	"fmt"

	domrepo "github.com/ansh-info/StockPulse/internal/domain/repository"
	"github.com/ansh-info/StockPulse/internal/handler/api"
	"github.com/ansh-info/StockPulse/internal/preprocess"
	internalrepo "github.com/ansh-info/StockPulse/internal/repository"
	"github.com/ansh-info/StockPulse/internal/usecase"
	pkgch "github.com/ansh-info/StockPulse/pkg/clickhouse"
	"github.com/ansh-info/StockPulse/pkg/config"
	xhttp "github.com/ansh-info/StockPulse/pkg/http"
	pkgkafka "github.com/ansh-info/StockPulse/pkg/kafka"
	applogger "github.com/ansh-info/StockPulse/pkg/logger"
	"github.com/ansh-info/StockPulse/pkg/metrics"
	"github.com/ansh-info/StockPulse/pkg/server"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	level := "info"
	format := "json"
	if cfg.Environment == "development" {
		level = "debug"
		format = "console"
	}
	return applogger.New(&applogger.Config{Level: level, Format: format, Output: "stdout"})
}

// ProvideMetrics creates the Prometheus metrics recorder.
func ProvideMetrics() domrepo.Metrics {
	return metrics.New()
}

// ProvideClickHouseClient creates a ClickHouse client.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}
	return client, nil
}

// ProvideSink creates the ClickHouse sink over the configured symbol tables.
func ProvideSink(client *pkgch.Client, cfg *config.Config, log *applogger.Logger) (domrepo.Sink, error) {
	tables := make(map[string]string, len(cfg.Stocks))
	for symbol, sc := range cfg.Stocks {
		tables[symbol] = sc.Table
	}
	return internalrepo.NewClickHouseSink(client, cfg.ClickHouse.Database, tables, log), nil
}

// ProvidePreprocessor creates the batch preprocessor.
func ProvidePreprocessor() usecase.Preprocessor {
	return preprocess.New()
}

// ProvideCoordinator creates the batching coordinator.
func ProvideCoordinator(
	cfg *config.Config,
	pre usecase.Preprocessor,
	sink domrepo.Sink,
	m domrepo.Metrics,
	log *applogger.Logger,
) *usecase.Coordinator {
	return usecase.NewCoordinator(usecase.CoordinatorConfig{
		BatchSize:          cfg.Loader.BatchSize,
		BatchTimeout:       cfg.Loader.BatchTimeout,
		MinBatchInterval:   cfg.Loader.MinBatchInterval,
		MaxRetries:         cfg.Loader.MaxRetries,
		InitialRetryDelay:  cfg.Loader.InitialRetryDelay,
		MaxRetryDelay:      cfg.Loader.MaxRetryDelay,
		RetryMultiplier:    cfg.Loader.RetryMultiplier,
		MaxConcurrentLoads: cfg.Loader.MaxConcurrentLoads,
	}, cfg.Symbols(), pre, sink, m, log)
}

// ProvideKafkaConsumer creates the Kafka consumer for the ticks topic.
func ProvideKafkaConsumer(cfg *config.Config) (*pkgkafka.Consumer, error) {
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	return consumer, nil
}

// ProvideTicksHandler creates the queue message handler feeding the
// coordinator.
func ProvideTicksHandler(cfg *config.Config, coord *usecase.Coordinator, m domrepo.Metrics, log *applogger.Logger) pkgkafka.MessageHandler {
	return usecase.NewTicksHandler(cfg.Kafka.Topic, coord, m, log)
}

// ProvideOpsHandler creates the operator HTTP handler.
func ProvideOpsHandler(coord *usecase.Coordinator, sink domrepo.Sink, log *applogger.Logger) xhttp.Handler {
	return api.NewOpsHandler(coord, sink, log)
}

// ProvideApp assembles the loader application.
func ProvideApp(
	cfg *config.Config,
	log *applogger.Logger,
	consumer *pkgkafka.Consumer,
	handler pkgkafka.MessageHandler,
	coord *usecase.Coordinator,
	sink domrepo.Sink,
	chClient *pkgch.Client,
	httpHandler xhttp.Handler,
) *server.App {
	return server.New(cfg, log, consumer, handler, coord, sink, chClient, httpHandler)
}

package repository

import (
	"context"

	"github.com/ansh-info/StockPulse/internal/domain/models"
)

// Sink appends tick batches to durable per-symbol tables. Errors expected to
// resolve on retry are marked transient (models.IsTransient); anything else
// is treated as permanent by callers.
type Sink interface {
	Init(ctx context.Context) error // ensure tables exist, idempotent
	StoreRawBatch(ctx context.Context, symbol string, ticks []models.Tick) error
	StoreProcessedBatch(ctx context.Context, symbol string, rows []models.ProcessedTick) error
	Health(ctx context.Context) error
	Close() error
}

// Publisher pushes ticks onto the message queue.
type Publisher interface {
	Publish(ctx context.Context, t models.Tick) error
	PublishBatch(ctx context.Context, ticks []models.Tick) error
	Close() error
}

// MarketStream is a live trade feed used by the stream ingest backend.
type MarketStream interface {
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context) error
	Read(ctx context.Context) (<-chan *models.Trade, <-chan error)
	Reconnect(ctx context.Context) error
	Close() error
	IsConnected() bool
}

// Metrics records pipeline telemetry.
type Metrics interface {
	RecordTickAccepted(symbol string)
	RecordBatchFlushed(table, symbol string, rows int)
	RecordFlushDuration(symbol string, seconds float64)
	RecordBatchSize(symbol string, n int)
	RecordInFlightLoads(n int)
	RecordError(kind string)
	RecordMessageSent(backend, symbol string)
}

package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/ansh-info/StockPulse/internal/domain/models"
	"github.com/ansh-info/StockPulse/internal/domain/repository"
	"github.com/ansh-info/StockPulse/pkg/cache"
	applogger "github.com/ansh-info/StockPulse/pkg/logger"
	"github.com/ansh-info/StockPulse/pkg/util"
)

// Fetcher pulls an intraday series for one symbol from the vendor API.
type Fetcher interface {
	FetchIntraday(ctx context.Context, symbol string) ([]models.Tick, error)
}

// PollIngestor periodically fetches each configured symbol and publishes new
// ticks onto the queue. The latest published timestamp per symbol lives in
// the cache; while it is fresher than the freshness TTL the fetch is skipped
// entirely, which keeps the rate-limited vendor budget for symbols that
// actually need data.
type PollIngestor struct {
	fetcher   Fetcher
	pub       repository.Publisher
	cache     cache.Service
	symbols   []string
	interval  time.Duration
	freshness time.Duration
	metrics   repository.Metrics
	log       *applogger.Logger
}

func NewPollIngestor(
	fetcher Fetcher,
	pub repository.Publisher,
	cacheSvc cache.Service,
	symbols []string,
	interval, freshness time.Duration,
	metrics repository.Metrics,
	log *applogger.Logger,
) *PollIngestor {
	return &PollIngestor{
		fetcher:   fetcher,
		pub:       pub,
		cache:     cacheSvc,
		symbols:   symbols,
		interval:  interval,
		freshness: freshness,
		metrics:   metrics,
		log:       log.With(applogger.String("component", "poll_ingestor")),
	}
}

// Run polls until the context ends. The first cycle starts immediately.
func (i *PollIngestor) Run(ctx context.Context) error {
	ticker := time.NewTicker(i.interval)
	defer ticker.Stop()

	i.pollOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			i.pollOnce(ctx)
		}
	}
}

func (i *PollIngestor) pollOnce(ctx context.Context) {
	for _, symbol := range i.symbols {
		if err := i.pollSymbol(ctx, symbol); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			i.log.Error("poll failed",
				applogger.String("symbol", symbol),
				applogger.Error(err))
			i.metrics.RecordError("poll")
		}
	}
}

func (i *PollIngestor) pollSymbol(ctx context.Context, symbol string) error {
	key := cache.Key("latest", symbol)

	latest := i.latestPublished(ctx, key)
	if !latest.IsZero() && time.Since(latest) < i.freshness {
		i.log.Debug("data still fresh, skipping fetch",
			applogger.String("symbol", symbol),
			applogger.String("latest", util.FormatWire(latest)))
		return nil
	}

	ticks, err := i.fetcher.FetchIntraday(ctx, symbol)
	if err != nil {
		return err
	}

	fresh := ticks[:0:0]
	for _, t := range ticks {
		if t.Timestamp.After(latest) {
			fresh = append(fresh, t)
		}
	}
	if len(fresh) == 0 {
		i.log.Debug("no new ticks", applogger.String("symbol", symbol))
		return nil
	}

	if err := i.pub.PublishBatch(ctx, fresh); err != nil {
		return err
	}
	i.metrics.RecordMessageSent("kafka", symbol)

	newest := fresh[len(fresh)-1].Timestamp
	if err := i.cache.Set(ctx, key, util.FormatWire(newest), 24*time.Hour); err != nil {
		i.log.Warn("could not record latest timestamp",
			applogger.String("symbol", symbol), applogger.Error(err))
	}

	i.log.Info("published ticks",
		applogger.String("symbol", symbol),
		applogger.Int("count", len(fresh)),
		applogger.String("newest", util.FormatWire(newest)))
	return nil
}

func (i *PollIngestor) latestPublished(ctx context.Context, key string) time.Time {
	s, err := i.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			i.log.Warn("cache read failed", applogger.String("key", key), applogger.Error(err))
		}
		return time.Time{}
	}
	return util.ParseTimeDefault(s, time.Time{})
}

// StreamCollector consumes a live trade feed, folds trades into minute
// candles through the pipeline, and publishes completed candles onto the
// queue. Stream errors trigger reconnects until the context ends.
type StreamCollector struct {
	stream   repository.MarketStream
	pipeline Proc
	log      *applogger.Logger
}

// Proc matches the trade pipeline's processor contract.
type Proc interface {
	Process(ctx context.Context, t *models.Trade) error
}

func NewStreamCollector(stream repository.MarketStream, pipeline Proc, log *applogger.Logger) *StreamCollector {
	return &StreamCollector{
		stream:   stream,
		pipeline: pipeline,
		log:      log.With(applogger.String("component", "stream_collector")),
	}
}

// Run reads trades until the context ends, reconnecting on stream errors.
func (s *StreamCollector) Run(ctx context.Context) error {
	if err := s.stream.Connect(ctx); err != nil {
		return err
	}
	if err := s.stream.Subscribe(ctx); err != nil {
		return err
	}

	for {
		trades, errs := s.stream.Read(ctx)
	loop:
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case t, ok := <-trades:
				if !ok {
					break loop
				}
				if err := s.pipeline.Process(ctx, t); err != nil {
					s.log.Warn("trade rejected", applogger.Error(err))
				}
			case err, ok := <-errs:
				if !ok {
					break loop
				}
				s.log.Error("stream error, reconnecting", applogger.Error(err))
				break loop
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err := s.stream.Reconnect(ctx); err != nil {
			s.log.Error("reconnect failed", applogger.Error(err))
		}
	}
}

// CandlePublisher is the pipeline's downstream: it folds trades into minute
// candles and publishes each completed candle.
type CandlePublisher struct {
	builder *CandleBuilder
	pub     repository.Publisher
	metrics repository.Metrics
}

func NewCandlePublisher(builder *CandleBuilder, pub repository.Publisher, metrics repository.Metrics) *CandlePublisher {
	return &CandlePublisher{builder: builder, pub: pub, metrics: metrics}
}

func (c *CandlePublisher) Process(ctx context.Context, t *models.Trade) error {
	done := c.builder.Add(t)
	if len(done) == 0 {
		return nil
	}
	if err := c.pub.PublishBatch(ctx, done); err != nil {
		return err
	}
	for _, tick := range done {
		c.metrics.RecordMessageSent("kafka", tick.Symbol)
	}
	return nil
}

// Drain publishes whatever candles are still open, for shutdown.
func (c *CandlePublisher) Drain(ctx context.Context) error {
	open := c.builder.Drain()
	if len(open) == 0 {
		return nil
	}
	return c.pub.PublishBatch(ctx, open)
}

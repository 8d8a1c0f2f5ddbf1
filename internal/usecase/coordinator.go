package usecase

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/ansh-info/StockPulse/internal/domain/models"
	"github.com/ansh-info/StockPulse/internal/domain/repository"
	applogger "github.com/ansh-info/StockPulse/pkg/logger"
	"github.com/ansh-info/StockPulse/pkg/retry"
)

// Preprocessor cleans and enriches a batch before it is written.
type Preprocessor interface {
	Validate(rows []models.Tick) ([]models.Tick, int)
	Enrich(rows []models.Tick) []models.ProcessedTick
}

// CoordinatorConfig bounds batching and flush behavior.
type CoordinatorConfig struct {
	BatchSize          int
	BatchTimeout       time.Duration
	MinBatchInterval   time.Duration
	MaxRetries         int
	InitialRetryDelay  time.Duration
	MaxRetryDelay      time.Duration
	RetryMultiplier    float64
	MaxConcurrentLoads int
}

// symbolState holds one symbol's pending batch. mu guards batch and
// lastFlush; flushMu serializes flushes so at most one load per symbol is
// in flight.
type symbolState struct {
	mu        sync.Mutex
	flushMu   sync.Mutex
	batch     []models.Tick
	lastFlush time.Time
}

// SymbolStats is a point-in-time view of one symbol's batch, exposed on the
// operator surface.
type SymbolStats struct {
	Buffered  int       `json:"buffered"`
	LastFlush time.Time `json:"last_flush"`
}

// Coordinator accumulates ticks into per-symbol batches and flushes them to
// the sink when size or age thresholds trip. The set of known symbols is
// fixed at construction; ticks for anything else are rejected with
// models.ErrUnknownSymbol.
type Coordinator struct {
	cfg     CoordinatorConfig
	pre     Preprocessor
	sink    repository.Sink
	metrics repository.Metrics
	log     *applogger.Logger

	// slots caps concurrent sink loads across all symbols.
	slots    chan struct{}
	inFlight int64
	flightMu sync.Mutex

	states map[string]*symbolState
}

func NewCoordinator(
	cfg CoordinatorConfig,
	symbols []string,
	pre Preprocessor,
	sink repository.Sink,
	metrics repository.Metrics,
	log *applogger.Logger,
) *Coordinator {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.MaxConcurrentLoads <= 0 {
		cfg.MaxConcurrentLoads = 4
	}

	states := make(map[string]*symbolState, len(symbols))
	now := time.Now()
	for _, s := range symbols {
		states[s] = &symbolState{lastFlush: now}
	}

	return &Coordinator{
		cfg:     cfg,
		pre:     pre,
		sink:    sink,
		metrics: metrics,
		log:     log,
		slots:   make(chan struct{}, cfg.MaxConcurrentLoads),
		states:  states,
	}
}

// Accept validates the tick and appends it to the symbol's pending batch.
// Unknown symbols return models.ErrUnknownSymbol; out-of-range fields return
// a *models.ValidationError. Both mean the tick was dropped.
func (c *Coordinator) Accept(symbol string, t models.Tick) error {
	state, ok := c.states[symbol]
	if !ok {
		return models.ErrUnknownSymbol
	}
	if err := checkTick(t); err != nil {
		return err
	}

	state.mu.Lock()
	state.batch = append(state.batch, t)
	n := len(state.batch)
	state.mu.Unlock()

	c.metrics.RecordTickAccepted(symbol)
	c.metrics.RecordBatchSize(symbol, n)
	return nil
}

func checkTick(t models.Tick) error {
	if t.Timestamp.IsZero() {
		return &models.ValidationError{Field: "timestamp", Reason: "missing"}
	}
	for _, f := range []struct {
		name  string
		value float64
	}{
		{"open", t.Open}, {"high", t.High}, {"low", t.Low}, {"close", t.Close},
	} {
		if math.IsNaN(f.value) || math.IsInf(f.value, 0) {
			return &models.ValidationError{Field: f.name, Reason: "not a finite number"}
		}
		if f.value <= 0 {
			return &models.ValidationError{Field: f.name, Reason: "must be positive"}
		}
	}
	if t.Volume < 0 {
		return &models.ValidationError{Field: "volume", Reason: "must be non-negative"}
	}
	return nil
}

// ShouldFlush reports whether the symbol's batch is due: either it reached
// the size threshold or it aged past the batch timeout. Within the minimum
// batch interval of the last flush it always reports false, so a burst of
// small flushes cannot storm the sink.
func (c *Coordinator) ShouldFlush(symbol string) bool {
	state, ok := c.states[symbol]
	if !ok {
		return false
	}

	state.mu.Lock()
	defer state.mu.Unlock()

	elapsed := time.Since(state.lastFlush)
	if elapsed < c.cfg.MinBatchInterval {
		return false
	}
	if len(state.batch) >= c.cfg.BatchSize {
		return true
	}
	return len(state.batch) > 0 && c.cfg.BatchTimeout > 0 && elapsed > c.cfg.BatchTimeout
}

// Flush writes the symbol's pending batch to the sink: the raw rows first,
// then the validated and enriched rows. On success the flushed rows are
// removed and the flush clock resets; on failure the batch is retained
// untouched for a later attempt. An empty batch is a successful no-op.
func (c *Coordinator) Flush(ctx context.Context, symbol string) error {
	state, ok := c.states[symbol]
	if !ok {
		return models.ErrUnknownSymbol
	}

	state.flushMu.Lock()
	defer state.flushMu.Unlock()

	state.mu.Lock()
	n := len(state.batch)
	if n == 0 {
		state.mu.Unlock()
		return nil
	}
	rows := make([]models.Tick, n)
	copy(rows, state.batch)
	state.mu.Unlock()

	clean, dropped := c.pre.Validate(rows)
	if dropped > 0 {
		c.log.Warn("dropped invalid rows during flush",
			applogger.String("symbol", symbol),
			applogger.Int("dropped", dropped))
		c.metrics.RecordError("row_validation")
	}
	processed := c.pre.Enrich(clean)

	if err := c.acquireSlot(ctx); err != nil {
		return err
	}
	defer c.releaseSlot()

	start := time.Now()

	policy := retry.Policy{
		MaxAttempts:  c.cfg.MaxRetries,
		InitialDelay: c.cfg.InitialRetryDelay,
		MaxDelay:     c.cfg.MaxRetryDelay,
		Multiplier:   c.cfg.RetryMultiplier,
	}

	err := retry.Do(ctx, policy, models.IsTransient, func(ctx context.Context) error {
		return c.sink.StoreRawBatch(ctx, symbol, rows)
	})
	if err != nil {
		c.metrics.RecordError("flush_raw")
		return fmt.Errorf("flush %s: raw batch: %w", symbol, err)
	}

	// A failure here leaves the raw rows written; the retry re-writes them
	// and the dedup pass reconciles the duplicates.
	err = retry.Do(ctx, policy, models.IsTransient, func(ctx context.Context) error {
		return c.sink.StoreProcessedBatch(ctx, symbol, processed)
	})
	if err != nil {
		c.metrics.RecordError("flush_processed")
		return fmt.Errorf("flush %s: processed batch: %w", symbol, err)
	}

	state.mu.Lock()
	state.batch = append(make([]models.Tick, 0, cap(state.batch)), state.batch[n:]...)
	state.lastFlush = time.Now()
	remaining := len(state.batch)
	state.mu.Unlock()

	c.metrics.RecordBatchFlushed("raw", symbol, len(rows))
	c.metrics.RecordBatchFlushed("processed", symbol, len(processed))
	c.metrics.RecordBatchSize(symbol, remaining)
	c.metrics.RecordFlushDuration(symbol, time.Since(start).Seconds())

	c.log.Info("batch flushed",
		applogger.String("symbol", symbol),
		applogger.Int("raw_rows", len(rows)),
		applogger.Int("processed_rows", len(processed)),
		applogger.Duration("took", time.Since(start)))
	return nil
}

// Cleanup drains every pending batch on shutdown. Failures are logged and
// folded into the returned error; rows that cannot be written before the
// context expires are lost, which the at-least-once queue offsets cover.
func (c *Coordinator) Cleanup(ctx context.Context) error {
	var errs []error
	for symbol := range c.states {
		if err := c.Flush(ctx, symbol); err != nil {
			c.log.Error("shutdown drain failed",
				applogger.String("symbol", symbol),
				applogger.Error(err))
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Stats snapshots every symbol's batch for the operator surface.
func (c *Coordinator) Stats() map[string]SymbolStats {
	out := make(map[string]SymbolStats, len(c.states))
	for symbol, state := range c.states {
		state.mu.Lock()
		out[symbol] = SymbolStats{
			Buffered:  len(state.batch),
			LastFlush: state.lastFlush,
		}
		state.mu.Unlock()
	}
	return out
}

// InFlight returns the number of sink loads currently running.
func (c *Coordinator) InFlight() int {
	c.flightMu.Lock()
	defer c.flightMu.Unlock()
	return int(c.inFlight)
}

func (c *Coordinator) acquireSlot(ctx context.Context) error {
	select {
	case c.slots <- struct{}{}:
	default:
		select {
		case c.slots <- struct{}{}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	c.flightMu.Lock()
	c.inFlight++
	c.metrics.RecordInFlightLoads(int(c.inFlight))
	c.flightMu.Unlock()
	return nil
}

func (c *Coordinator) releaseSlot() {
	<-c.slots
	c.flightMu.Lock()
	c.inFlight--
	c.metrics.RecordInFlightLoads(int(c.inFlight))
	c.flightMu.Unlock()
}

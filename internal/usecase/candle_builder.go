package usecase

import (
	"math"
	"sync"
	"time"

	"github.com/ansh-info/StockPulse/internal/domain/models"
	"github.com/ansh-info/StockPulse/pkg/util"
)

type candle struct {
	bucket time.Time
	open   float64
	high   float64
	low    float64
	close  float64
	volume float64
}

// CandleBuilder folds live trades into minute OHLCV ticks. A symbol's candle
// is emitted when a trade arrives for a later minute; Drain emits whatever
// is still open, for shutdown.
type CandleBuilder struct {
	mu   sync.Mutex
	open map[string]*candle
}

func NewCandleBuilder() *CandleBuilder {
	return &CandleBuilder{open: make(map[string]*candle)}
}

// Add folds one trade in and returns any candle it completed. Trades older
// than the symbol's open candle are folded into it rather than reopening a
// closed minute.
func (b *CandleBuilder) Add(t *models.Trade) []models.Tick {
	bucket := util.MinuteBucket(time.Unix(t.Timestamp, 0).UTC())

	b.mu.Lock()
	defer b.mu.Unlock()

	cur, ok := b.open[t.Symbol]
	if !ok {
		b.open[t.Symbol] = newCandle(bucket, t)
		return nil
	}

	if bucket.After(cur.bucket) {
		done := toTick(t.Symbol, cur)
		b.open[t.Symbol] = newCandle(bucket, t)
		return []models.Tick{done}
	}

	cur.close = t.Price
	if t.Price > cur.high {
		cur.high = t.Price
	}
	if t.Price < cur.low {
		cur.low = t.Price
	}
	cur.volume += t.Volume
	return nil
}

// Drain closes and returns every open candle.
func (b *CandleBuilder) Drain() []models.Tick {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]models.Tick, 0, len(b.open))
	for symbol, c := range b.open {
		out = append(out, toTick(symbol, c))
	}
	b.open = make(map[string]*candle)
	return out
}

func newCandle(bucket time.Time, t *models.Trade) *candle {
	return &candle{
		bucket: bucket,
		open:   t.Price,
		high:   t.Price,
		low:    t.Price,
		close:  t.Price,
		volume: t.Volume,
	}
}

func toTick(symbol string, c *candle) models.Tick {
	return models.Tick{
		Symbol:    symbol,
		Timestamp: c.bucket,
		Open:      c.open,
		High:      c.high,
		Low:       c.low,
		Close:     c.close,
		Volume:    int64(math.Round(c.volume)),
	}
}

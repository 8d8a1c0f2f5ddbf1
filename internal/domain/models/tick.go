package models

import (
	"fmt"
	"time"

	"github.com/ansh-info/StockPulse/pkg/util"
)

// WireTimeLayout is the timestamp format carried on the queue and stored in
// the warehouse identity key.
const WireTimeLayout = util.WireTimeLayout

// Tick is one OHLCV observation for a symbol at minute resolution.
// Identity key is (Symbol, Timestamp); ticks are immutable once accepted
// into a batch.
type Tick struct {
	Symbol    string
	Timestamp time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    int64
}

// Key returns the identity key used for deduplication.
func (t Tick) Key() string {
	return fmt.Sprintf("%s_%s", t.Symbol, t.Timestamp.Format(WireTimeLayout))
}

// ProcessedTick is a Tick enriched with derived indicator columns. It is
// written to a separate destination table than the raw tick.
type ProcessedTick struct {
	Tick
	DailyReturn float64
	MA7         float64
	MA20        float64
	Volatility  float64
	VolumeMA5   float64
	Momentum    float64
}

// Trade is a single live trade event from a streaming market source.
// The candle builder folds trades into minute Ticks.
type Trade struct {
	Symbol    string
	Timestamp int64 // unix seconds
	Price     float64
	Volume    float64
}

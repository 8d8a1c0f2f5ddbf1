package usecase

import (
	"testing"
	"time"

	"github.com/ansh-info/StockPulse/internal/domain/models"
)

func tr(sym string, ts time.Time, price, vol float64) *models.Trade {
	return &models.Trade{Symbol: sym, Timestamp: ts.Unix(), Price: price, Volume: vol}
}

func TestCandleAggregatesWithinMinute(t *testing.T) {
	b := NewCandleBuilder()
	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	trades := []*models.Trade{
		tr("AMZN", base.Add(5*time.Second), 100, 10),
		tr("AMZN", base.Add(20*time.Second), 103, 5),
		tr("AMZN", base.Add(40*time.Second), 99, 20),
		tr("AMZN", base.Add(55*time.Second), 101, 15),
	}
	for _, trade := range trades {
		if done := b.Add(trade); done != nil {
			t.Fatalf("candle emitted mid-minute: %v", done)
		}
	}

	// crossing into the next minute closes the candle
	done := b.Add(tr("AMZN", base.Add(61*time.Second), 102, 1))
	if len(done) != 1 {
		t.Fatalf("completed candles = %d, want 1", len(done))
	}
	c := done[0]
	if c.Open != 100 || c.High != 103 || c.Low != 99 || c.Close != 101 {
		t.Fatalf("OHLC = %v/%v/%v/%v", c.Open, c.High, c.Low, c.Close)
	}
	if c.Volume != 50 {
		t.Fatalf("volume = %d, want 50", c.Volume)
	}
	if !c.Timestamp.Equal(base) {
		t.Fatalf("timestamp = %v, want %v", c.Timestamp, base)
	}
}

func TestCandleSymbolsAreIndependent(t *testing.T) {
	b := NewCandleBuilder()
	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	b.Add(tr("AMZN", base, 100, 1))
	b.Add(tr("MSFT", base, 50, 1))

	// only AMZN's candle completes
	done := b.Add(tr("AMZN", base.Add(time.Minute), 101, 1))
	if len(done) != 1 || done[0].Symbol != "AMZN" {
		t.Fatalf("done = %v", done)
	}

	remaining := b.Drain()
	// MSFT's open candle plus AMZN's new one
	if len(remaining) != 2 {
		t.Fatalf("drained candles = %d, want 2", len(remaining))
	}
}

func TestCandleLateTradeFoldsIntoOpenCandle(t *testing.T) {
	b := NewCandleBuilder()
	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	b.Add(tr("AMZN", base.Add(30*time.Second), 100, 1))
	// an out-of-order trade from earlier in the same minute
	if done := b.Add(tr("AMZN", base.Add(10*time.Second), 95, 2)); done != nil {
		t.Fatalf("late trade closed a candle: %v", done)
	}

	out := b.Drain()
	if len(out) != 1 {
		t.Fatalf("drained = %d, want 1", len(out))
	}
	if out[0].Low != 95 || out[0].Volume != 3 {
		t.Fatalf("low = %v volume = %d", out[0].Low, out[0].Volume)
	}
}

func TestDrainEmptiesBuilder(t *testing.T) {
	b := NewCandleBuilder()
	b.Add(tr("AMZN", time.Now(), 100, 1))

	if got := len(b.Drain()); got != 1 {
		t.Fatalf("first drain = %d, want 1", got)
	}
	if got := len(b.Drain()); got != 0 {
		t.Fatalf("second drain = %d, want 0", got)
	}
}

package preprocess

import (
	"math"
	"testing"
	"time"

	"github.com/ansh-info/StockPulse/internal/domain/models"
)

func tick(sym string, min int, open, high, low, clo float64, vol int64) models.Tick {
	return models.Tick{
		Symbol:    sym,
		Timestamp: time.Date(2024, 3, 1, 9, min, 0, 0, time.UTC),
		Open:      open,
		High:      high,
		Low:       low,
		Close:     clo,
		Volume:    vol,
	}
}

func TestValidateDropsBadRows(t *testing.T) {
	rows := []models.Tick{
		tick("AMZN", 0, 100, 102, 99, 101, 500),
		tick("AMZN", 1, 0, 102, 99, 101, 500),     // non-positive open
		tick("AMZN", 2, 100, 98, 99, 98.5, 500),   // high < low
		tick("AMZN", 3, 100, 102, 99, 101, -5),    // negative volume
		tick("AMZN", 4, 103, 102, 99, 101, 500),   // open above high
		tick("AMZN", 0, 100, 102, 99, 101, 500),   // exact duplicate
		tick("AMZN", 5, 100, 102, 99, 101, 0),     // zero volume is fine
	}

	p := New()
	clean, dropped := p.Validate(rows)

	if len(clean) != 2 {
		t.Fatalf("clean rows = %d, want 2", len(clean))
	}
	if dropped != 5 {
		t.Fatalf("dropped = %d, want 5", dropped)
	}
	if clean[0].Timestamp.Minute() != 0 || clean[1].Timestamp.Minute() != 5 {
		t.Fatalf("surviving rows out of order: %v", clean)
	}
}

func TestValidateRejectsNaN(t *testing.T) {
	bad := tick("AMZN", 0, 100, 102, 99, 101, 500)
	bad.Close = math.NaN()

	p := New()
	clean, dropped := p.Validate([]models.Tick{bad})
	if len(clean) != 0 || dropped != 1 {
		t.Fatalf("NaN row survived: clean=%d dropped=%d", len(clean), dropped)
	}
}

func TestEnrichReturnsAndMomentum(t *testing.T) {
	rows := []models.Tick{
		tick("AMZN", 0, 100, 101, 99, 100, 100),
		tick("AMZN", 1, 100, 103, 100, 102, 200),
		tick("AMZN", 2, 102, 104, 101, 101, 300),
		tick("AMZN", 3, 101, 105, 101, 104, 400),
		tick("AMZN", 4, 104, 107, 103, 106, 500),
	}

	p := New()
	out := p.Enrich(rows)
	if len(out) != 5 {
		t.Fatalf("enriched rows = %d, want 5", len(out))
	}

	if out[0].DailyReturn != 0 {
		t.Errorf("first return = %v, want 0", out[0].DailyReturn)
	}
	wantRet := (102.0 - 100.0) / 100.0
	if math.Abs(out[1].DailyReturn-wantRet) > 1e-12 {
		t.Errorf("second return = %v, want %v", out[1].DailyReturn, wantRet)
	}

	// Momentum is zero until the lookback window fills.
	for i := 0; i < 4; i++ {
		if out[i].Momentum != 0 {
			t.Errorf("row %d momentum = %v, want 0", i, out[i].Momentum)
		}
	}
	if out[4].Momentum != 106-100 {
		t.Errorf("momentum = %v, want 6", out[4].Momentum)
	}
}

func TestEnrichRollingMeansWithShortSeries(t *testing.T) {
	rows := []models.Tick{
		tick("AMZN", 0, 100, 101, 99, 100, 100),
		tick("AMZN", 1, 100, 103, 100, 102, 200),
		tick("AMZN", 2, 102, 104, 101, 104, 300),
	}

	p := New()
	out := p.Enrich(rows)

	// Windows shorter than 7 fall back to the available points.
	want := (100.0 + 102.0 + 104.0) / 3.0
	if math.Abs(out[2].MA7-want) > 1e-12 {
		t.Errorf("ma7 = %v, want %v", out[2].MA7, want)
	}
	if math.Abs(out[2].MA20-want) > 1e-12 {
		t.Errorf("ma20 = %v, want %v", out[2].MA20, want)
	}
	wantVol := (100.0 + 200.0 + 300.0) / 3.0
	if math.Abs(out[2].VolumeMA5-wantVol) > 1e-12 {
		t.Errorf("volume ma5 = %v, want %v", out[2].VolumeMA5, wantVol)
	}
	if out[0].Volatility != 0 {
		t.Errorf("single-point volatility = %v, want 0", out[0].Volatility)
	}
}

func TestEnrichPartitionsBySymbol(t *testing.T) {
	rows := []models.Tick{
		tick("MSFT", 1, 50, 52, 49, 51, 10),
		tick("AMZN", 0, 100, 101, 99, 100, 100),
		tick("AMZN", 1, 100, 103, 100, 102, 200),
		tick("MSFT", 0, 50, 51, 49, 50, 10),
	}

	p := New()
	out := p.Enrich(rows)

	if out[0].Symbol != "AMZN" || out[2].Symbol != "MSFT" {
		t.Fatalf("output not symbol-partitioned: %v", out)
	}
	// MSFT series must be computed from its own rows only.
	wantRet := (51.0 - 50.0) / 50.0
	if math.Abs(out[3].DailyReturn-wantRet) > 1e-12 {
		t.Errorf("MSFT return = %v, want %v", out[3].DailyReturn, wantRet)
	}
}

func TestEnrichDeterministic(t *testing.T) {
	rows := []models.Tick{
		tick("GOOGL", 2, 10, 12, 9, 11, 5),
		tick("GOOGL", 0, 10, 11, 9, 10, 5),
		tick("GOOGL", 1, 10, 12, 10, 12, 5),
	}

	p := New()
	a := p.Enrich(rows)
	b := p.Enrich(rows)
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("row %d differs between runs: %v vs %v", i, a[i], b[i])
		}
	}
}

// Package preprocess validates and enriches tick batches before they are
// loaded into the warehouse. All functions are pure and deterministic given
// identical input ordering; no I/O happens here.
package preprocess

import (
	"math"
	"sort"

	"github.com/ansh-info/StockPulse/internal/domain/models"
)

const (
	maShortWindow    = 7
	maLongWindow     = 20
	volatilityWindow = 7
	volumeMAWindow   = 5
	momentumLookback = 4
)

// Preprocessor implements the collaborator contract consumed by the batching
// coordinator.
type Preprocessor struct{}

func New() *Preprocessor { return &Preprocessor{} }

// Validate drops rows failing positivity and consistency checks as well as
// exact in-batch duplicates. Surviving rows keep their accumulation order.
// Returns the clean rows and the number dropped.
func (p *Preprocessor) Validate(rows []models.Tick) ([]models.Tick, int) {
	clean := make([]models.Tick, 0, len(rows))
	seen := make(map[models.Tick]struct{}, len(rows))
	for _, t := range rows {
		if !valid(t) {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		clean = append(clean, t)
	}
	return clean, len(rows) - len(clean)
}

func valid(t models.Tick) bool {
	for _, v := range []float64{t.Open, t.High, t.Low, t.Close} {
		if v <= 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	if t.Volume < 0 {
		return false
	}
	if t.High < t.Low {
		return false
	}
	if t.Open < t.Low || t.Open > t.High || t.Close < t.Low || t.Close > t.High {
		return false
	}
	return !t.Timestamp.IsZero()
}

// Enrich computes derived indicator columns over the symbol-partitioned,
// timestamp-sorted rows: period return, short and long moving averages,
// rolling return volatility, volume moving average, and momentum.
func (p *Preprocessor) Enrich(rows []models.Tick) []models.ProcessedTick {
	sorted := make([]models.Tick, len(rows))
	copy(sorted, rows)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Symbol != sorted[j].Symbol {
			return sorted[i].Symbol < sorted[j].Symbol
		}
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	out := make([]models.ProcessedTick, 0, len(sorted))
	for start := 0; start < len(sorted); {
		end := start
		for end < len(sorted) && sorted[end].Symbol == sorted[start].Symbol {
			end++
		}
		out = append(out, enrichSeries(sorted[start:end])...)
		start = end
	}
	return out
}

// enrichSeries computes indicators for one symbol's timestamp-sorted rows.
func enrichSeries(series []models.Tick) []models.ProcessedTick {
	closes := make([]float64, len(series))
	volumes := make([]float64, len(series))
	for i, t := range series {
		closes[i] = t.Close
		volumes[i] = float64(t.Volume)
	}

	returns := make([]float64, len(series))
	for i := 1; i < len(series); i++ {
		if closes[i-1] != 0 {
			returns[i] = (closes[i] - closes[i-1]) / closes[i-1]
		}
	}

	out := make([]models.ProcessedTick, len(series))
	for i, t := range series {
		pt := models.ProcessedTick{Tick: t}
		pt.DailyReturn = returns[i]
		pt.MA7 = rollingMean(closes, maShortWindow, i)
		pt.MA20 = rollingMean(closes, maLongWindow, i)
		pt.Volatility = rollingStd(returns, volatilityWindow, i)
		pt.VolumeMA5 = rollingMean(volumes, volumeMAWindow, i)
		if i >= momentumLookback {
			pt.Momentum = closes[i] - closes[i-momentumLookback]
		}
		out[i] = pt
	}
	return out
}

// rollingMean averages vals over the window ending at i, using however many
// points are available when the series is shorter than the window.
func rollingMean(vals []float64, window, i int) float64 {
	start := i - window + 1
	if start < 0 {
		start = 0
	}
	sum := 0.0
	for j := start; j <= i; j++ {
		sum += vals[j]
	}
	return sum / float64(i-start+1)
}

// rollingStd computes the sample standard deviation over the window ending
// at i; 0 when fewer than two points are available.
func rollingStd(vals []float64, window, i int) float64 {
	start := i - window + 1
	if start < 0 {
		start = 0
	}
	n := i - start + 1
	if n < 2 {
		return 0
	}
	mean := 0.0
	for j := start; j <= i; j++ {
		mean += vals[j]
	}
	mean /= float64(n)
	var sum2 float64
	for j := start; j <= i; j++ {
		d := vals[j] - mean
		sum2 += d * d
	}
	return math.Sqrt(sum2 / float64(n-1))
}

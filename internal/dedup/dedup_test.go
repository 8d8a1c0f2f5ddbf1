package dedup

import (
	"testing"
	"time"
)

var rawCols = []string{"timestamp", "symbol", "open", "high", "low", "close", "volume", "ingested_at"}
var processedCols = append(rawCols[:7:7], "daily_return", "ma7", "ma20", "volatility", "volume_ma5", "momentum", "ingested_at")

func rawRow(ts, sym string, ingested time.Time) []interface{} {
	t, _ := time.Parse("2006-01-02 15:04:05", ts)
	return []interface{}{t, sym, 100.0, 102.0, 99.0, 101.0, int64(500), ingested}
}

func processedRow(ts, sym string, ingested time.Time, ma7 float64) []interface{} {
	t, _ := time.Parse("2006-01-02 15:04:05", ts)
	return []interface{}{
		t, sym, 100.0, 102.0, 99.0, 101.0, int64(500),
		0.01, ma7, 100.5, 0.002, 480.0, 1.5, ingested,
	}
}

func TestSelectWinnersKeepsUniqueRows(t *testing.T) {
	ing := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	rows := [][]interface{}{
		rawRow("2024-03-01 10:00:00", "AMZN", ing),
		rawRow("2024-03-01 10:01:00", "AMZN", ing),
		rawRow("2024-03-01 10:00:00", "MSFT", ing),
	}

	winners, err := selectWinners(rawCols, rows)
	if err != nil {
		t.Fatalf("selectWinners: %v", err)
	}
	if len(winners) != 3 {
		t.Fatalf("winners = %d, want 3 (no duplicates to drop)", len(winners))
	}
}

func TestSelectWinnersCollapsesDuplicates(t *testing.T) {
	ing := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	rows := [][]interface{}{
		rawRow("2024-03-01 10:00:00", "AMZN", ing),
		rawRow("2024-03-01 10:00:00", "AMZN", ing),
		rawRow("2024-03-01 10:00:00", "AMZN", ing),
		rawRow("2024-03-01 10:01:00", "AMZN", ing),
	}

	winners, err := selectWinners(rawCols, rows)
	if err != nil {
		t.Fatalf("selectWinners: %v", err)
	}
	if len(winners) != 2 {
		t.Fatalf("winners = %d, want 2", len(winners))
	}
}

func TestSelectWinnersPrefersCompleteRow(t *testing.T) {
	ing := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	sparse := processedRow("2024-03-01 10:00:00", "AMZN", ing, 0) // ma7 unset
	full := processedRow("2024-03-01 10:00:00", "AMZN", ing.Add(-time.Hour), 100.8)

	winners, err := selectWinners(processedCols, [][]interface{}{sparse, full})
	if err != nil {
		t.Fatalf("selectWinners: %v", err)
	}
	if len(winners) != 1 {
		t.Fatalf("winners = %d, want 1", len(winners))
	}
	// The richer row wins even though it was ingested earlier.
	if winners[0][8].(float64) != 100.8 {
		t.Fatalf("winner ma7 = %v, want 100.8", winners[0][8])
	}
}

func TestSelectWinnersPrefersRecentIngestion(t *testing.T) {
	old := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	recent := old.Add(2 * time.Hour)

	a := processedRow("2024-03-01 10:00:00", "AMZN", old, 100.1)
	b := processedRow("2024-03-01 10:00:00", "AMZN", recent, 100.2)

	winners, err := selectWinners(processedCols, [][]interface{}{a, b})
	if err != nil {
		t.Fatalf("selectWinners: %v", err)
	}
	if winners[0][8].(float64) != 100.2 {
		t.Fatalf("winner ma7 = %v, want the later-ingested row", winners[0][8])
	}
}

func TestSelectWinnersFullTieKeepsFirstScanned(t *testing.T) {
	ing := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	a := rawRow("2024-03-01 10:00:00", "AMZN", ing)
	b := rawRow("2024-03-01 10:00:00", "AMZN", ing)
	a[2], b[2] = 100.0, 999.0 // open differs, richness and ingestion tie

	winners, err := selectWinners(rawCols, [][]interface{}{a, b})
	if err != nil {
		t.Fatalf("selectWinners: %v", err)
	}
	if len(winners) != 1 {
		t.Fatalf("winners = %d, want 1", len(winners))
	}
	if winners[0][2].(float64) != 100.0 {
		t.Fatalf("winner open = %v, want the first scanned row", winners[0][2])
	}
}

func TestSelectWinnersIdempotent(t *testing.T) {
	ing := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	rows := [][]interface{}{
		rawRow("2024-03-01 10:00:00", "AMZN", ing),
		rawRow("2024-03-01 10:00:00", "AMZN", ing.Add(time.Minute)),
		rawRow("2024-03-01 10:01:00", "MSFT", ing),
	}

	first, err := selectWinners(rawCols, rows)
	if err != nil {
		t.Fatalf("first pass: %v", err)
	}
	second, err := selectWinners(rawCols, first)
	if err != nil {
		t.Fatalf("second pass: %v", err)
	}
	if len(first) != len(second) {
		t.Fatalf("second pass changed row count: %d vs %d", len(first), len(second))
	}
	for i := range first {
		for j := range first[i] {
			if first[i][j] != second[i][j] {
				t.Fatalf("row %d col %d differs after second pass", i, j)
			}
		}
	}
}

func TestSelectWinnersRejectsMissingIdentity(t *testing.T) {
	_, err := selectWinners([]string{"open", "close"}, [][]interface{}{{1.0, 2.0}})
	if err == nil {
		t.Fatal("expected error for table without identity columns")
	}
}

func TestRichnessIgnoresCoreColumns(t *testing.T) {
	ing := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	row := rawRow("2024-03-01 10:00:00", "AMZN", ing)
	if got := richness(rawCols, row); got != 0 {
		t.Fatalf("raw row richness = %d, want 0", got)
	}

	full := processedRow("2024-03-01 10:00:00", "AMZN", ing, 100.5)
	if got := richness(processedCols, full); got != 6 {
		t.Fatalf("processed row richness = %d, want 6", got)
	}
}

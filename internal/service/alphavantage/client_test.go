package alphavantage

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ansh-info/StockPulse/internal/domain/models"
	"github.com/ansh-info/StockPulse/internal/service/ratelimit"
	applogger "github.com/ansh-info/StockPulse/pkg/logger"
)

const fixture = `{
  "Meta Data": {
    "1. Information": "Intraday (5min) open, high, low, close prices and volume",
    "2. Symbol": "AMZN"
  },
  "Time Series (5min)": {
    "2024-03-01 10:05:00": {
      "1. open": "178.3500",
      "2. high": "178.9000",
      "3. low": "178.1000",
      "4. close": "178.7500",
      "5. volume": "120345"
    },
    "2024-03-01 10:00:00": {
      "1. open": "178.0000",
      "2. high": "178.5000",
      "3. low": "177.8000",
      "4. close": "178.3500",
      "5. volume": "98012"
    }
  }
}`

func testClient(t *testing.T, url string) *Client {
	t.Helper()
	log, err := applogger.New(&applogger.Config{Level: "error", Format: "json", Output: "stderr"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return New("test-key", url, "5min", 100, ratelimit.New(), log)
}

func TestFetchIntradayParsesSeries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("function"); got != "TIME_SERIES_INTRADAY" {
			t.Errorf("function = %q", got)
		}
		if got := r.URL.Query().Get("symbol"); got != "AMZN" {
			t.Errorf("symbol = %q", got)
		}
		_, _ = w.Write([]byte(fixture))
	}))
	defer srv.Close()

	ticks, err := testClient(t, srv.URL).FetchIntraday(context.Background(), "AMZN")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(ticks) != 2 {
		t.Fatalf("ticks = %d, want 2", len(ticks))
	}
	// sorted ascending regardless of map order
	if !ticks[0].Timestamp.Before(ticks[1].Timestamp) {
		t.Fatal("ticks not sorted by timestamp")
	}
	first := ticks[0]
	if first.Open != 178.0 || first.Close != 178.35 || first.Volume != 98012 {
		t.Fatalf("unexpected first tick: %+v", first)
	}
	if first.Symbol != "AMZN" {
		t.Fatalf("symbol = %q", first.Symbol)
	}
}

func TestFetchIntradayThrottleNoteIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"Note": "Thank you for using Alpha Vantage! Please consider upgrading."}`))
	}))
	defer srv.Close()

	_, err := testClient(t, srv.URL).FetchIntraday(context.Background(), "AMZN")
	if err == nil {
		t.Fatal("throttle note should error")
	}
	if !models.IsTransient(err) {
		t.Fatalf("throttle error should be transient, got %v", err)
	}
}

func TestFetchIntradayErrorMessageIsPermanent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"Error Message": "Invalid API call."}`))
	}))
	defer srv.Close()

	_, err := testClient(t, srv.URL).FetchIntraday(context.Background(), "BOGUS")
	if err == nil {
		t.Fatal("error message should error")
	}
	if models.IsTransient(err) {
		t.Fatalf("invalid call must not be retried, got transient: %v", err)
	}
}

func TestFetchIntradayServerErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := testClient(t, srv.URL).FetchIntraday(context.Background(), "AMZN")
	if !models.IsTransient(err) {
		t.Fatalf("5xx should be transient, got %v", err)
	}
}

func TestParseSeriesSkipsMalformedEntries(t *testing.T) {
	const mixed = `{
	  "Time Series (5min)": {
	    "2024-03-01 10:00:00": {
	      "1. open": "178.0000", "2. high": "178.5000", "3. low": "177.8000",
	      "4. close": "178.3500", "5. volume": "98012"
	    },
	    "2024-03-01 10:05:00": {
	      "1. open": "not-a-number", "2. high": "178.9", "3. low": "178.1",
	      "4. close": "178.75", "5. volume": "120345"
	    }
	  }
	}`

	c := testClient(t, "http://unused")
	ticks, err := c.parseSeries("AMZN", []byte(mixed))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(ticks) != 1 {
		t.Fatalf("ticks = %d, want 1 (malformed entry skipped)", len(ticks))
	}
}

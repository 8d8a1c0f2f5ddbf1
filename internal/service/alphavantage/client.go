// Package alphavantage fetches intraday OHLCV series over the vendor REST
// API for the polling ingest backend.
package alphavantage

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	"github.com/ansh-info/StockPulse/internal/domain/models"
	"github.com/ansh-info/StockPulse/internal/service/ratelimit"
	applogger "github.com/ansh-info/StockPulse/pkg/logger"
	"github.com/ansh-info/StockPulse/pkg/util"
)

const limiterKey = "alphavantage"

// Client calls the intraday time-series endpoint. The vendor free tier is
// heavily rate limited, so every request goes through a shared token bucket.
type Client struct {
	apiKey   string
	baseURL  string
	interval string
	perMin   float64
	httpc    *http.Client
	limiter  *ratelimit.Limiter
	log      *applogger.Logger
}

func New(apiKey, baseURL, interval string, ratePerMinute float64, limiter *ratelimit.Limiter, log *applogger.Logger) *Client {
	if ratePerMinute <= 0 {
		ratePerMinute = 5
	}
	return &Client{
		apiKey:   apiKey,
		baseURL:  baseURL,
		interval: interval,
		perMin:   ratePerMinute,
		httpc:    &http.Client{Timeout: 30 * time.Second},
		limiter:  limiter,
		log:      log.With(applogger.String("component", "alphavantage")),
	}
}

// vendor payloads carry every numeric as a quoted string under ordinal keys.
type seriesEntry struct {
	Open   string `json:"1. open"`
	High   string `json:"2. high"`
	Low    string `json:"3. low"`
	Close  string `json:"4. close"`
	Volume string `json:"5. volume"`
}

// FetchIntraday returns the symbol's intraday series sorted by timestamp
// ascending. Vendor throttle responses come back as transient errors so the
// caller's retry policy applies.
func (c *Client) FetchIntraday(ctx context.Context, symbol string) ([]models.Tick, error) {
	if err := c.limiter.Wait(ctx, limiterKey, c.perMin, c.perMin/60.0); err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("function", "TIME_SERIES_INTRADAY")
	q.Set("symbol", symbol)
	q.Set("interval", c.interval)
	q.Set("outputsize", "full")
	q.Set("apikey", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("alphavantage request: %w", err)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, models.MarkTransient(fmt.Errorf("alphavantage fetch %s: %w", symbol, err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, models.MarkTransient(fmt.Errorf("alphavantage read %s: %w", symbol, err))
	}
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return nil, models.MarkTransient(fmt.Errorf("alphavantage %s: status %d", symbol, resp.StatusCode))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("alphavantage %s: status %d", symbol, resp.StatusCode)
	}

	return c.parseSeries(symbol, body)
}

func (c *Client) parseSeries(symbol string, body []byte) ([]models.Tick, error) {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("alphavantage decode %s: %w", symbol, err)
	}

	if raw, ok := envelope["Error Message"]; ok {
		return nil, fmt.Errorf("alphavantage %s: %s", symbol, string(raw))
	}
	// "Note" and "Information" are how the vendor reports throttling.
	for _, key := range []string{"Note", "Information"} {
		if raw, ok := envelope[key]; ok {
			return nil, models.MarkTransient(fmt.Errorf("alphavantage %s throttled: %s", symbol, string(raw)))
		}
	}

	seriesKey := fmt.Sprintf("Time Series (%s)", c.interval)
	raw, ok := envelope[seriesKey]
	if !ok {
		return nil, fmt.Errorf("alphavantage %s: missing %q", symbol, seriesKey)
	}

	var series map[string]seriesEntry
	if err := json.Unmarshal(raw, &series); err != nil {
		return nil, fmt.Errorf("alphavantage decode series %s: %w", symbol, err)
	}

	ticks := make([]models.Tick, 0, len(series))
	for ts, e := range series {
		t, ok := util.ParseTime(ts)
		if !ok {
			c.log.Warn("skipping entry with bad timestamp",
				applogger.String("symbol", symbol),
				applogger.String("timestamp", ts))
			continue
		}
		tick, err := entryToTick(symbol, t, e)
		if err != nil {
			c.log.Warn("skipping malformed entry",
				applogger.String("symbol", symbol),
				applogger.String("timestamp", ts),
				applogger.Error(err))
			continue
		}
		ticks = append(ticks, tick)
	}

	sort.Slice(ticks, func(i, j int) bool { return ticks[i].Timestamp.Before(ticks[j].Timestamp) })
	return ticks, nil
}

func entryToTick(symbol string, ts time.Time, e seriesEntry) (models.Tick, error) {
	open, err := strconv.ParseFloat(e.Open, 64)
	if err != nil {
		return models.Tick{}, fmt.Errorf("open: %w", err)
	}
	high, err := strconv.ParseFloat(e.High, 64)
	if err != nil {
		return models.Tick{}, fmt.Errorf("high: %w", err)
	}
	low, err := strconv.ParseFloat(e.Low, 64)
	if err != nil {
		return models.Tick{}, fmt.Errorf("low: %w", err)
	}
	clo, err := strconv.ParseFloat(e.Close, 64)
	if err != nil {
		return models.Tick{}, fmt.Errorf("close: %w", err)
	}
	vol, err := strconv.ParseInt(e.Volume, 10, 64)
	if err != nil {
		return models.Tick{}, fmt.Errorf("volume: %w", err)
	}
	return models.Tick{
		Symbol:    symbol,
		Timestamp: ts,
		Open:      open,
		High:      high,
		Low:       low,
		Close:     clo,
		Volume:    vol,
	}, nil
}

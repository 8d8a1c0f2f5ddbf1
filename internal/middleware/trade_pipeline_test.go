package middleware

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ansh-info/StockPulse/internal/domain/models"
)

type recordingProc struct {
	mu     sync.Mutex
	trades []*models.Trade
	errs   []error
}

func (r *recordingProc) Process(_ context.Context, t *models.Trade) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.errs) > 0 {
		err := r.errs[0]
		r.errs = r.errs[1:]
		if err != nil {
			return err
		}
	}
	r.trades = append(r.trades, t)
	return nil
}

func (r *recordingProc) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.trades)
}

type countMetrics struct {
	mu     sync.Mutex
	errors map[string]int
}

func newCountMetrics() *countMetrics { return &countMetrics{errors: make(map[string]int)} }

func (m *countMetrics) RecordTickAccepted(string)              {}
func (m *countMetrics) RecordBatchFlushed(string, string, int) {}
func (m *countMetrics) RecordFlushDuration(string, float64)    {}
func (m *countMetrics) RecordBatchSize(string, int)            {}
func (m *countMetrics) RecordInFlightLoads(int)                {}
func (m *countMetrics) RecordMessageSent(string, string)       {}
func (m *countMetrics) RecordError(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors[kind]++
}

func (m *countMetrics) get(kind string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.errors[kind]
}

func trade(sym string, price float64) *models.Trade {
	return &models.Trade{Symbol: sym, Timestamp: time.Now().Unix(), Price: price, Volume: 10}
}

func TestProcessRejectsInvalidTrade(t *testing.T) {
	proc := &recordingProc{}
	m := newCountMetrics()
	p := NewTradePipeline(proc, m)

	bad := []*models.Trade{
		nil,
		{Symbol: "", Timestamp: 1, Price: 1, Volume: 1},
		{Symbol: "AMZN", Timestamp: 0, Price: 1, Volume: 1},
		{Symbol: "AMZN", Timestamp: 1, Price: 0, Volume: 1},
	}
	for _, tr := range bad {
		if err := p.Process(context.Background(), tr); err == nil {
			t.Errorf("invalid trade %+v accepted", tr)
		}
	}
	if proc.count() != 0 {
		t.Fatalf("downstream saw %d invalid trades", proc.count())
	}
	if m.get("pipeline_validate") != len(bad) {
		t.Fatalf("validate errors = %d, want %d", m.get("pipeline_validate"), len(bad))
	}
}

func TestProcessThrottlesBursts(t *testing.T) {
	proc := &recordingProc{}
	m := newCountMetrics()
	p := NewTradePipeline(proc, m, WithMaxRPS(1))

	if err := p.Process(context.Background(), trade("AMZN", 100)); err != nil {
		t.Fatalf("first trade: %v", err)
	}
	// immediate second trade for the same symbol is throttled, not an error
	if err := p.Process(context.Background(), trade("AMZN", 101)); err != nil {
		t.Fatalf("throttled trade returned error: %v", err)
	}
	if proc.count() != 1 {
		t.Fatalf("downstream trades = %d, want 1", proc.count())
	}
	// a different symbol is unaffected
	if err := p.Process(context.Background(), trade("MSFT", 50)); err != nil {
		t.Fatalf("other symbol: %v", err)
	}
	if proc.count() != 2 {
		t.Fatalf("downstream trades = %d, want 2", proc.count())
	}
}

func TestProcessBuffersOnDownstreamFailure(t *testing.T) {
	proc := &recordingProc{errs: []error{errors.New("broker down")}}
	m := newCountMetrics()
	p := NewTradePipeline(proc, m, WithMaxRPS(1000))

	if err := p.Process(context.Background(), trade("AMZN", 100)); err == nil {
		t.Fatal("downstream failure should surface")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p.Start(ctx)
	defer p.Stop()

	deadline := time.After(2 * time.Second)
	for proc.count() == 0 {
		select {
		case <-deadline:
			t.Fatal("buffered trade was never redelivered")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

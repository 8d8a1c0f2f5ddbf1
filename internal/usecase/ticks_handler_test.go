package usecase

import (
	"context"
	"errors"
	"testing"
	"time"
)

func newTestHandler(t *testing.T, cfg CoordinatorConfig, sink *fakeSink) (*TicksHandler, *Coordinator) {
	t.Helper()
	c := newTestCoordinator(t, cfg, sink)
	return NewTicksHandler("stock-ticks", c, nopMetrics{}, testLogger(t)), c
}

func TestHandleAcceptsNumbersAndStrings(t *testing.T) {
	h, c := newTestHandler(t, CoordinatorConfig{BatchSize: 100, MinBatchInterval: time.Hour}, newFakeSink())

	msgs := []string{
		`{"symbol":"AMZN","timestamp":"2024-03-01 10:00:00","open":100,"high":102,"low":99,"close":101,"volume":500}`,
		`{"symbol":"AMZN","timestamp":"2024-03-01 10:01:00","open":"100.5","high":"102","low":"99","close":"101.25","volume":"600"}`,
	}
	for _, m := range msgs {
		if err := h.Handle(context.Background(), []byte(m)); err != nil {
			t.Fatalf("handle %s: %v", m, err)
		}
	}
	if got := c.Stats()["AMZN"].Buffered; got != 2 {
		t.Fatalf("buffered = %d, want 2", got)
	}
}

func TestHandleAcksMalformedMessage(t *testing.T) {
	h, c := newTestHandler(t, CoordinatorConfig{BatchSize: 100}, newFakeSink())

	cases := []string{
		`not json at all`,
		`{"symbol":"AMZN","timestamp":"yesterday","open":1,"high":1,"low":1,"close":1,"volume":1}`,
		`{"symbol":"AMZN","timestamp":"2024-03-01 10:00:00","open":"abc","high":1,"low":1,"close":1,"volume":1}`,
	}
	for _, m := range cases {
		if err := h.Handle(context.Background(), []byte(m)); err != nil {
			t.Fatalf("malformed message must ack, got %v for %s", err, m)
		}
	}
	if got := c.Stats()["AMZN"].Buffered; got != 0 {
		t.Fatalf("buffered = %d, want 0", got)
	}
}

func TestHandleAcksUnknownSymbol(t *testing.T) {
	h, _ := newTestHandler(t, CoordinatorConfig{BatchSize: 100}, newFakeSink())

	msg := `{"symbol":"TSLA","timestamp":"2024-03-01 10:00:00","open":100,"high":102,"low":99,"close":101,"volume":500}`
	if err := h.Handle(context.Background(), []byte(msg)); err != nil {
		t.Fatalf("unknown symbol must ack, got %v", err)
	}
}

func TestHandleFlushesAtThreshold(t *testing.T) {
	sink := newFakeSink()
	h, c := newTestHandler(t, CoordinatorConfig{BatchSize: 2, BatchTimeout: time.Hour}, sink)

	msgs := []string{
		`{"symbol":"AMZN","timestamp":"2024-03-01 10:00:00","open":100,"high":102,"low":99,"close":101,"volume":500}`,
		`{"symbol":"AMZN","timestamp":"2024-03-01 10:01:00","open":101,"high":103,"low":100,"close":102,"volume":600}`,
	}
	for _, m := range msgs {
		if err := h.Handle(context.Background(), []byte(m)); err != nil {
			t.Fatalf("handle: %v", err)
		}
	}
	if len(sink.raw["AMZN"]) != 1 {
		t.Fatalf("raw flushes = %d, want 1", len(sink.raw["AMZN"]))
	}
	if got := c.Stats()["AMZN"].Buffered; got != 0 {
		t.Fatalf("buffered after flush = %d, want 0", got)
	}
}

func TestHandleReturnsErrorWhenFlushFails(t *testing.T) {
	sink := newFakeSink()
	sink.rawErrs = []error{errors.New("table does not exist")}
	h, c := newTestHandler(t, CoordinatorConfig{BatchSize: 1, MaxRetries: 1}, sink)

	msg := `{"symbol":"AMZN","timestamp":"2024-03-01 10:00:00","open":100,"high":102,"low":99,"close":101,"volume":500}`
	if err := h.Handle(context.Background(), []byte(msg)); err == nil {
		t.Fatal("handle must surface flush failure so offsets stay uncommitted")
	}
	if got := c.Stats()["AMZN"].Buffered; got != 1 {
		t.Fatalf("buffered = %d, want 1 (retained for redelivery)", got)
	}
}

package stream

import (
	"context"
	"runtime"
	"testing"
	"time"

	applogger "github.com/ansh-info/StockPulse/pkg/logger"
)

func testLogger(t *testing.T) *applogger.Logger {
	t.Helper()
	log, err := applogger.New(&applogger.Config{Level: "error", Format: "json", Output: "stderr"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return log
}

func TestReadPingerExitsWithReader(t *testing.T) {
	c := New("", "ws://unused", []string{"AMZN"}, time.Millisecond, time.Millisecond, testLogger(t))

	before := runtime.NumGoroutine()
	ctx := context.Background()
	for i := 0; i < 50; i++ {
		// Without a connection the read loop reports and exits; the pinger
		// must go with it.
		trades, errs := c.Read(ctx)
		if err := <-errs; err == nil {
			t.Fatal("expected read error on unconnected stream")
		}
		for range trades {
		}
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if runtime.NumGoroutine() <= before+2 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("goroutines before=%d after=%d, pingers outlived their readers", before, runtime.NumGoroutine())
}

func TestIsConnectedAfterClose(t *testing.T) {
	c := New("", "ws://unused", nil, time.Second, time.Second, testLogger(t))
	if c.IsConnected() {
		t.Fatal("new client must not report connected")
	}
	if err := c.Close(); err != nil {
		t.Fatalf("close on unconnected client: %v", err)
	}
	if c.IsConnected() {
		t.Fatal("closed client must not report connected")
	}
}

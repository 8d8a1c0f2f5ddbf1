package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestAllowConsumesCapacity(t *testing.T) {
	l := New()
	for i := 0; i < 3; i++ {
		if !l.Allow("api", 3, 0.0001) {
			t.Fatalf("call %d denied within capacity", i+1)
		}
	}
	if l.Allow("api", 3, 0.0001) {
		t.Fatal("call over capacity allowed")
	}
}

func TestAllowKeysAreIndependent(t *testing.T) {
	l := New()
	if !l.Allow("a", 1, 0.0001) {
		t.Fatal("first key denied")
	}
	if !l.Allow("b", 1, 0.0001) {
		t.Fatal("second key denied")
	}
	if l.Allow("a", 1, 0.0001) {
		t.Fatal("exhausted key allowed")
	}
}

func TestAllowRefills(t *testing.T) {
	l := New()
	if !l.Allow("api", 1, 50) {
		t.Fatal("initial token denied")
	}
	if l.Allow("api", 1, 50) {
		t.Fatal("empty bucket allowed")
	}
	time.Sleep(50 * time.Millisecond)
	if !l.Allow("api", 1, 50) {
		t.Fatal("bucket did not refill")
	}
}

func TestWaitCancels(t *testing.T) {
	l := New()
	l.Allow("api", 1, 0.0001) // drain

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := l.Wait(ctx, "api", 1, 0.0001); err == nil {
		t.Fatal("wait on empty bucket should respect context")
	}
}

// Package retry provides a single retry-with-backoff utility shared by every
// sink write path, parameterized by an error classifier.
package retry

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// Classifier reports whether an error is transient and worth another attempt.
// Errors it rejects fail immediately.
type Classifier func(error) bool

// Policy bounds attempts and backoff delays.
type Policy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

// DefaultPolicy matches the loader defaults.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:  5,
		InitialDelay: 1 * time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
	}
}

func (p Policy) withDefaults() Policy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 1
	}
	if p.InitialDelay <= 0 {
		p.InitialDelay = time.Second
	}
	if p.MaxDelay < p.InitialDelay {
		p.MaxDelay = p.InitialDelay
	}
	if p.Multiplier < 1 {
		p.Multiplier = 2.0
	}
	return p
}

// Delay returns the backoff before retry number attempt (0-based):
// min(MaxDelay, InitialDelay*Multiplier^attempt) plus up to 10% jitter.
func (p Policy) Delay(attempt int) time.Duration {
	p = p.withDefaults()
	d := float64(p.InitialDelay) * math.Pow(p.Multiplier, float64(attempt))
	if d > float64(p.MaxDelay) {
		d = float64(p.MaxDelay)
	}
	jitter := rand.Float64() * 0.1 * d
	return time.Duration(d + jitter)
}

// Do runs op up to p.MaxAttempts times. A transient error (per classify)
// backs off and retries; any other error returns immediately. The last
// error is returned once attempts are exhausted.
func Do(ctx context.Context, p Policy, classify Classifier, op func(context.Context) error) error {
	p = p.withDefaults()

	var err error
	for attempt := 0; attempt < p.MaxAttempts; attempt++ {
		err = op(ctx)
		if err == nil {
			return nil
		}
		if classify != nil && !classify(err) {
			return err
		}
		if attempt == p.MaxAttempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.Delay(attempt)):
		}
	}
	return err
}

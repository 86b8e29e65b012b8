package cmd

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Pacer is the single shared pacing token of the verifier client: call
// slots are handed out at least one spacing apart.
// Not meant for concurrent callers; the verifier is invoked sequentially.
type Pacer struct {
	limiter *rate.Limiter
}

// NewPacer creates a Pacer. A non-positive spacing disables pacing.
func NewPacer(spacing time.Duration) *Pacer {
	return &Pacer{limiter: rate.NewLimiter(rate.Every(spacing), 1)}
}

// Acquire books the next call slot and returns the instant it opens.
func (p *Pacer) Acquire() time.Time {
	now := time.Now()
	r := p.limiter.ReserveN(now, 1)
	return now.Add(r.DelayFrom(now))
}

// Wait books the next slot and blocks until it opens or ctx is done.
func (p *Pacer) Wait(ctx context.Context) error {
	d := time.Until(p.Acquire())
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

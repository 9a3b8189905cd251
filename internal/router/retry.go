package router

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/alexanderjulianmartinez/dsroute/internal/backend"
)

// RetryPolicy bounds retries of transient backend failures.
type RetryPolicy struct {
	MaxAttempts    int           // total attempts including the first, default 3
	InitialBackoff time.Duration // default 100ms
	MaxBackoff     time.Duration // cap for a single delay, default 5s
	Multiplier     float64       // default 2
	MaxWait        time.Duration // total sleep budget, default 30s
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    3,
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     5 * time.Second,
		Multiplier:     2,
		MaxWait:        30 * time.Second,
	}
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	def := DefaultRetryPolicy()
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = def.MaxAttempts
	}
	if p.InitialBackoff <= 0 {
		p.InitialBackoff = def.InitialBackoff
	}
	if p.MaxBackoff <= 0 {
		p.MaxBackoff = def.MaxBackoff
	}
	if p.MaxBackoff < p.InitialBackoff {
		p.MaxBackoff = p.InitialBackoff
	}
	if p.Multiplier < 1 {
		p.Multiplier = def.Multiplier
	}
	if p.MaxWait <= 0 {
		p.MaxWait = def.MaxWait
	}
	return p
}

// Backoff returns the delay before attempt+1, where attempt counts from 1.
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	d := float64(p.InitialBackoff)
	for i := 1; i < attempt; i++ {
		d *= p.Multiplier
		if d >= float64(p.MaxBackoff) {
			return p.MaxBackoff
		}
	}
	return time.Duration(d)
}

type sleepFunc func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// run calls fn until it succeeds, fails with a non retryable error, or the
// attempt or wait budget is spent. It returns the number of attempts made.
func (r *Router) run(ctx context.Context, handle, op string, fn func(context.Context) error) (int, error) {
	p := r.cfg.Retry
	var waited time.Duration
	for attempt := 1; ; attempt++ {
		err := fn(ctx)
		if err == nil || !backend.IsRetryable(err) || ctx.Err() != nil {
			return attempt, err
		}
		if attempt >= p.MaxAttempts {
			return attempt, err
		}

		wait := p.Backoff(attempt)
		if hint := backend.RetryAfterOf(err); hint > wait {
			wait = min(hint, p.MaxBackoff)
		}
		if waited+wait > p.MaxWait {
			r.log.Debug("retry wait budget spent",
				zap.String("handle", handle),
				zap.String("op", op),
				zap.Int("attempt", attempt),
				zap.Duration("waited", waited))
			return attempt, err
		}

		r.log.Debug("retrying backend call",
			zap.String("handle", handle),
			zap.String("op", op),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", wait),
			zap.Error(err))
		if err := r.sleep(ctx, wait); err != nil {
			return attempt, err
		}
		waited += wait
	}
}

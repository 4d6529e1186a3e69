package runner

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// pacer spaces requests across all workers.
type pacer struct {
	limiter *rate.Limiter
}

func newPacer(opt Options) *pacer {
	if opt.RatePerSecond <= 0 {
		return &pacer{}
	}
	return &pacer{limiter: opt.LimiterFactory(opt.RatePerSecond)}
}

func (p *pacer) Wait(ctx context.Context) error {
	if p == nil || p.limiter == nil {
		return nil
	}
	return p.limiter.Wait(ctx)
}

// sleep pauses for d or until ctx is done. It reports whether the full
// delay elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

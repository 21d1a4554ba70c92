package docstore

import (
	"context"
	"sync"
	"time"
)

// pacer enforces a minimum spacing between outbound requests to stay under
// the store's undocumented rate ceiling. It is advisory and per process;
// independent instances do not coordinate.
type pacer struct {
	mu       sync.Mutex
	last     time.Time
	interval time.Duration
}

func newPacer(interval time.Duration) *pacer {
	return &pacer{interval: interval}
}

// wait blocks until the minimum spacing since the previous request has
// elapsed, or the context is done.
func (p *pacer) wait(ctx context.Context) error {
	p.mu.Lock()
	now := time.Now()
	next := p.last.Add(p.interval)
	if next.Before(now) {
		next = now
	}
	p.last = next
	p.mu.Unlock()

	delay := time.Until(next)
	if delay <= 0 {
		return nil
	}
	return sleepCtx(ctx, delay)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

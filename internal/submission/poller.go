package submission

import (
	"context"
	"sync"
	"time"
)

// poller runs fn immediately and then on every tick until fn reports a
// terminal result or stop is called. Only one fn call is in flight at a time.
type poller struct {
	cancel context.CancelFunc
	once   sync.Once
	done   chan struct{}
}

func startPoller(interval time.Duration, fn func(ctx context.Context) bool) *poller {
	ctx, cancel := context.WithCancel(context.Background())
	p := &poller{
		cancel: cancel,
		done:   make(chan struct{}),
	}

	go func() {
		defer close(p.done)
		defer p.stop()

		if fn(ctx) {
			return
		}

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if ctx.Err() != nil || fn(ctx) {
					return
				}
			}
		}
	}()

	return p
}

// stop cancels the poller. Safe to call more than once.
func (p *poller) stop() {
	p.once.Do(p.cancel)
}

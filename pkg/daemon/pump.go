package daemon

import (
	"context"

	"github.com/cuemby/dtnd/pkg/link"
)

// PumpLink drains l's send queue for as long as ctx is live, transmitting
// one bundle at a time. It is meant to run in its own goroutine, one per
// link with Params.Reopen or an established contact; it exits only when
// ctx is cancelled, leaving link teardown to the caller.
func (d *Daemon) PumpLink(ctx context.Context, l *link.Link) {
	logger := d.logger.With().Str("link", l.Name()).Logger()
	for {
		for {
			b := l.Dequeue()
			if b == nil {
				break
			}
			if err := d.Transmit(l, b); err != nil {
				logger.Warn().Err(err).Msg("transmit failed")
			}
		}
		select {
		case <-l.Ready():
		case <-ctx.Done():
			return
		}
	}
}

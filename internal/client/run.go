package client

import (
    "context"
    "time"
)

// Run polls every pollEvery and sweeps expired holds every sweepEvery until
// ctx is done.  Both run on the calling goroutine, so a poll and a sweep
// never overlap and the sweep always works on the latest polled copy.
func (b *Board) Run(ctx context.Context, pollEvery, sweepEvery time.Duration) error {
    if pollEvery <= 0 {
        pollEvery = 1500 * time.Millisecond
    }
    if sweepEvery <= 0 {
        sweepEvery = 10 * time.Second
    }
    poll := time.NewTicker(pollEvery)
    defer poll.Stop()
    sweep := time.NewTicker(sweepEvery)
    defer sweep.Stop()

    for {
        select {
        case <-ctx.Done():
            return ctx.Err()
        case <-poll.C:
            b.Poll(ctx)
        case <-sweep.C:
            if _, _, err := b.Sweep(ctx, b.now()); err != nil && ctx.Err() == nil {
                b.log.Warn("sweep failed", "err", err)
            }
        }
    }
}

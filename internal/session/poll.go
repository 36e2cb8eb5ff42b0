package session

import (
	"context"
	"time"

	"github.com/danmuck/covertfs/internal/medium"
)

// poll calls check until it reports done, sleeping interval between calls.
// Media that implement medium.Notifier cut the sleep short on change.
func poll(ctx context.Context, m medium.Medium, interval time.Duration, check func(ctx context.Context) (bool, error)) error {
	var wake <-chan struct{}
	if n, ok := m.(medium.Notifier); ok {
		wake = n.Changes()
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		done, err := check(ctx)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		case <-wake:
		}
	}
}

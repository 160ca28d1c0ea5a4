// Package retry runs an operation with exponential backoff until it
// succeeds, exhausts its attempts, or the context ends.
package retry

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
)

type Policy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	// OnRetry is called before each backoff sleep.
	OnRetry func(attempt int, backoff time.Duration)
}

// Do runs op up to MaxAttempts times. again decides whether a result is
// worth retrying; the final result is returned either way. Backoff doubles
// between attempts and sleeps on the injected clock.
func Do[T any](ctx context.Context, clock clockwork.Clock, p Policy, again func(T) bool, op func(context.Context) T) T {
	backoff := p.InitialBackoff

	var result T
	for attempt := 1; ; attempt++ {
		result = op(ctx)
		if !again(result) || attempt == p.MaxAttempts {
			return result
		}

		if p.OnRetry != nil {
			p.OnRetry(attempt, backoff)
		}

		select {
		case <-clock.After(backoff):
			backoff *= 2
		case <-ctx.Done():
			return result
		}
	}
}

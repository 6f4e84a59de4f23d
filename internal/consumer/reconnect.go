package consumer

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Defaults applied when a ReconnectPolicy retries but leaves an interval unset.
const (
	DefaultInitialInterval = 100 * time.Millisecond
	DefaultMaxInterval     = 5 * time.Second
)

// ReconnectPolicy controls how often the consumer dials before giving up.
// The zero value dials exactly once.
type ReconnectPolicy struct {
	// MaxAttempts is the total number of dials, including the first.
	MaxAttempts int
	// InitialInterval is the wait after the first failure; it grows
	// exponentially up to MaxInterval.
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// Attempts returns the effective number of dials.
func (p ReconnectPolicy) Attempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

func (p ReconnectPolicy) backOff(ctx context.Context) backoff.BackOffContext {
	if p.Attempts() == 1 {
		return backoff.WithContext(&backoff.StopBackOff{}, ctx)
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = p.InitialInterval
	if eb.InitialInterval <= 0 {
		eb.InitialInterval = DefaultInitialInterval
	}
	eb.MaxInterval = p.MaxInterval
	if eb.MaxInterval <= 0 {
		eb.MaxInterval = DefaultMaxInterval
	}
	if eb.MaxInterval < eb.InitialInterval {
		eb.MaxInterval = eb.InitialInterval
	}
	// The attempt count is the only limit.
	eb.MaxElapsedTime = 0
	eb.Reset()

	return backoff.WithContext(backoff.WithMaxRetries(eb, uint64(p.Attempts()-1)), ctx)
}

package trade

import (
	"context"
	"time"

	backoff "github.com/cenkalti/backoff/v5"

	"cryptotrader/internal/exchange"
	"cryptotrader/logger"
)

// Caller is the bounded-retry wrapper applied to every remote call. Retries
// use a fixed delay; before each retry (never before the first attempt) the
// exchange clock is re-synchronized, since a drifted timestamp is the most
// common cause of signed-request failures. Only exchange/network errors are
// retried; local errors fail immediately without consuming an attempt.
type Caller struct {
	delay  time.Duration
	resync func(context.Context) error
	log    *logger.Log
}

// NewCaller builds a retry wrapper. resync may be nil.
func NewCaller(delay time.Duration, resync func(context.Context) error) *Caller {
	return &Caller{delay: delay, resync: resync, log: logger.GetLogger()}
}

// Call invokes fn up to maxAttempts times and returns the last error on
// exhaustion.
func Call[T any](ctx context.Context, c *Caller, name string, maxAttempts int, fn func(context.Context) (T, error)) (T, error) {
	attempt := 0
	operation := func() (T, error) {
		attempt++
		v, err := fn(ctx)
		if err == nil {
			return v, nil
		}
		if !exchange.IsTransient(err) {
			return v, backoff.Permanent(err)
		}
		return v, err
	}

	notify := func(err error, next time.Duration) {
		c.log.WithComponent("retry").WithFields(logger.Fields{
			"call":    name,
			"attempt": attempt,
			"delay":   next.String(),
		}).WithError(err).Warn("transient failure; retrying")
		if c.resync != nil {
			// Best effort; a failed sync keeps the previous offset.
			_ = c.resync(ctx)
		}
	}

	return backoff.Retry(ctx, operation,
		backoff.WithBackOff(backoff.NewConstantBackOff(c.delay)),
		backoff.WithMaxTries(uint(maxAttempts)),
		backoff.WithNotify(notify),
	)
}

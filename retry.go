package x402x

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/rs/zerolog"
)

// RetryConfig drives the retry loop around recoverable operations. Configs
// are plain immutable values; pick a named profile per operation kind and
// pass it explicitly at the call site.
type RetryConfig struct {
	MaxAttempts       int
	InitialDelay      time.Duration
	MaxDelay          time.Duration
	BackoffMultiplier float64
	Jitter            bool

	// Timeout bounds the whole loop in wall-clock time. Zero means no bound.
	Timeout time.Duration

	// ShouldRetry overrides the default recoverability check when set.
	ShouldRetry func(*Error) bool
}

// DefaultRetryConfig suits one-off settlement preconditions.
var DefaultRetryConfig = RetryConfig{
	MaxAttempts:       3,
	InitialDelay:      500 * time.Millisecond,
	MaxDelay:          10 * time.Second,
	BackoffMultiplier: 2.0,
	Jitter:            true,
}

// RPCRetryConfig suits chatty read calls against an RPC endpoint.
var RPCRetryConfig = RetryConfig{
	MaxAttempts:       5,
	InitialDelay:      200 * time.Millisecond,
	MaxDelay:          5 * time.Second,
	BackoffMultiplier: 2.0,
	Jitter:            true,
}

// TxConfirmationRetryConfig polls for transaction receipts: many slow-growing
// attempts under a hard two minute ceiling, whichever bound hits first.
var TxConfirmationRetryConfig = RetryConfig{
	MaxAttempts:       60,
	InitialDelay:      2 * time.Second,
	MaxDelay:          5 * time.Second,
	BackoffMultiplier: 1.2,
	Timeout:           2 * time.Minute,
}

// WithRetry invokes fn until it succeeds, retry is declined, or the attempt
// and wall-clock budgets run out. Failures are classified before the retry
// decision; the last classified error is always propagated, never swallowed.
// Cancellation is cooperative: the context is checked between attempts only.
func WithRetry[T any](ctx context.Context, log zerolog.Logger, cfg RetryConfig, operation string, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}

	start := time.Now()
	var lastErr *Error

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if cfg.Timeout > 0 && time.Since(start) > cfg.Timeout {
			log.Warn().
				Str("operation", operation).
				Int("attempt", attempt).
				Dur("elapsed", time.Since(start)).
				Msg("retry wall-clock budget exhausted")
			if lastErr == nil {
				lastErr = NewTransactionTimeoutError(operation + ": retry budget exhausted before first attempt")
			}
			return zero, lastErr
		}

		result, err := fn(ctx)
		if err == nil {
			if attempt > 1 {
				log.Info().
					Str("operation", operation).
					Int("attempt", attempt).
					Msg("operation recovered after retry")
			}
			return result, nil
		}

		lastErr = Classify(err)
		log.Warn().
			Str("operation", operation).
			Int("attempt", attempt).
			Str("code", lastErr.Code).
			Bool("recoverable", lastErr.Recoverable).
			Err(lastErr).
			Msg("operation attempt failed")

		// Never retry on the final allowed attempt.
		if attempt == cfg.MaxAttempts {
			break
		}

		retryable := lastErr.Recoverable
		if cfg.ShouldRetry != nil {
			retryable = cfg.ShouldRetry(lastErr)
		}
		if !retryable {
			break
		}

		select {
		case <-time.After(cfg.backoffDelay(attempt)):
		case <-ctx.Done():
			return zero, Classify(ctx.Err())
		}
	}

	return zero, lastErr
}

// backoffDelay computes the sleep before the attempt following the given one:
// min(initial * multiplier^(attempt-1), max), optionally jittered by a
// uniform +/-25% factor.
func (c RetryConfig) backoffDelay(attempt int) time.Duration {
	d := float64(c.InitialDelay) * math.Pow(c.BackoffMultiplier, float64(attempt-1))
	if c.MaxDelay > 0 && d > float64(c.MaxDelay) {
		d = float64(c.MaxDelay)
	}
	if c.Jitter {
		d *= 0.75 + rand.Float64()*0.5
	}
	return time.Duration(d)
}

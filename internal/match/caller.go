package match

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"
)

// CallerConfig is the retry policy for a single provider call.
type CallerConfig struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int
	// BaseDelay is the initial backoff; it doubles per attempt with jitter.
	BaseDelay time.Duration
	// MaxDelay caps the backoff between attempts.
	MaxDelay time.Duration
	// CallTimeout bounds each individual attempt. Zero disables it.
	CallTimeout time.Duration
}

// DefaultCallerConfig returns the default retry policy.
func DefaultCallerConfig() CallerConfig {
	return CallerConfig{
		MaxAttempts: 3,
		BaseDelay:   2 * time.Second,
		MaxDelay:    10 * time.Second,
		CallTimeout: 10 * time.Second,
	}
}

// CallWithRetry runs one provider call with bounded retries and exponential
// backoff. Only transient failures are retried; ErrAuth and ErrNotFound
// return immediately. After exhausting attempts the last transient error is
// returned so the caller can exclude the provider from this query.
func CallWithRetry[T any](ctx context.Context, logger zerolog.Logger, cfg CallerConfig, op string, fn func(context.Context) (T, error)) (T, error) {
	var result T

	backoff := retry.NewExponential(cfg.BaseDelay)
	backoff = retry.WithJitterPercent(20, backoff)
	backoff = retry.WithCappedDuration(cfg.MaxDelay, backoff)
	if cfg.MaxAttempts > 0 {
		backoff = retry.WithMaxRetries(uint64(cfg.MaxAttempts-1), backoff)
	}

	attempt := 0
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++

		callCtx := ctx
		if cfg.CallTimeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, cfg.CallTimeout)
			defer cancel()
		}

		value, err := fn(callCtx)
		if err != nil {
			if IsTransient(err) {
				logger.Warn().
					Err(err).
					Str("operation", op).
					Int("attempt", attempt).
					Int("maxAttempts", cfg.MaxAttempts).
					Msg("transient provider failure, will retry")
				return retry.RetryableError(err)
			}
			return err
		}

		result = value
		return nil
	})

	if err == nil && attempt > 1 {
		logger.Info().Str("operation", op).Int("attempt", attempt).Msg("provider call succeeded after retry")
	}
	return result, err
}

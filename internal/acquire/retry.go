package acquire

import (
	"context"
	"log/slog"
)

// withRetry is the policy applied to every state-machine entry point: retry
// the whole run on the retryable pair, propagate everything else untouched.
// Each run owns and tears down its own session, so the wrapper stays pure
// policy. Exhausting the budget is an anomaly in its own right and surfaces
// as ErrAttemptsExhausted rather than an empty result.
func (a *Acquirer) withRetry(ctx context.Context, run func() (Outcome, error)) (Outcome, error) {
	for attempt := 1; attempt <= a.attempts(); attempt++ {
		if err := ctx.Err(); err != nil {
			return Outcome{}, err
		}

		out, err := run()
		if err == nil {
			return out, nil
		}
		if !retryable(err) {
			return Outcome{}, err
		}
		a.log().Warn("run failed, retrying", slog.Int("attempt", attempt), slog.Any("error", err))
	}
	return Outcome{}, ErrAttemptsExhausted
}

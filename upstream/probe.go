package upstream

import (
	"context"

	"go.uber.org/zap"

	"github.com/xiangyuzeng/newkenwei-aigc-platform3/types"
)

// AttemptFunc performs one attempt against a single candidate route.
type AttemptFunc[T any] func(ctx context.Context, candidate string) (T, error)

// FirstSuccess tries each candidate in order and returns the index and result
// of the first attempt that succeeds. Per-candidate failures (network errors,
// timeouts, non-success statuses surfaced as errors by the attempt) are
// skipped; they carry no actionable information for the caller. Only when
// every candidate has been exhausted does it fail, with NO_CANDIDATE_AVAILABLE
// wrapping the last attempt's error.
//
// The upstream's concrete route names for a capability are not contractually
// fixed, so job creation, media ingestion, and chat proxying all share this
// combinator instead of hard-coding one path each.
func FirstSuccess[T any](ctx context.Context, candidates []string, attempt AttemptFunc[T], logger *zap.Logger) (int, T, error) {
	var zero T
	var lastErr error

	for i, candidate := range candidates {
		if err := ctx.Err(); err != nil {
			return -1, zero, err
		}

		result, err := attempt(ctx, candidate)
		if err == nil {
			return i, result, nil
		}
		lastErr = err
		if logger != nil {
			logger.Debug("candidate attempt failed",
				zap.Int("index", i),
				zap.String("candidate", candidate),
				zap.Error(err),
			)
		}
	}

	err := types.NewError(types.ErrNoCandidateAvailable, "all candidate routes exhausted").
		WithCause(lastErr).
		WithRetryable(true)
	return -1, zero, err
}

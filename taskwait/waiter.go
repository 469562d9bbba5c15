// Package taskwait converts the upstream's asynchronous job model into a
// synchronous call for surfaces that expect one. It is the only place in the
// gateway allowed to loop on a job record.
package taskwait

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/xiangyuzeng/newkenwei-aigc-platform3/types"
	"github.com/xiangyuzeng/newkenwei-aigc-platform3/upstream"
)

// FetchFunc fetches the raw upstream record for the job being awaited.
type FetchFunc func(ctx context.Context) (map[string]any, error)

// Config holds wait engine settings. Interval and budget are configuration,
// not per-adapter constants.
type Config struct {
	// Interval between polls
	Interval time.Duration
	// Overall wall-clock budget
	Budget time.Duration
}

// Waiter polls a job record until it reaches terminal state or the budget
// elapses.
type Waiter struct {
	cfg    Config
	logger *zap.Logger
}

// NewWaiter creates a wait engine.
func NewWaiter(cfg Config, logger *zap.Logger) *Waiter {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Second
	}
	if cfg.Budget <= 0 {
		cfg.Budget = 8 * time.Minute
	}
	return &Waiter{
		cfg:    cfg,
		logger: logger.With(zap.String("component", "task_waiter")),
	}
}

// Wait polls until the record normalizes to completed (returning its result
// URLs) or failed (JOB_FAILED carrying the upstream message), or until the
// budget elapses (WAIT_TIMEOUT, distinct from JOB_FAILED so callers can keep
// polling asynchronously instead). Cancellation of ctx is honored between
// polls so a disconnected caller does not pin the full budget.
func (w *Waiter) Wait(ctx context.Context, jobID string, fetch FetchFunc) ([]string, error) {
	parent := ctx
	ctx, cancel := context.WithTimeout(ctx, w.cfg.Budget)
	defer cancel()

	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()

	polls := 0
	for {
		select {
		case <-ctx.Done():
			if parent.Err() != nil {
				// caller disconnected or its own deadline fired
				return nil, parent.Err()
			}
			w.logger.Warn("wait budget elapsed",
				zap.String("job_id", jobID),
				zap.Int("polls", polls),
			)
			return nil, types.NewError(types.ErrWaitTimeout, "job did not complete within the wait budget").
				WithRetryable(true)

		case <-ticker.C:
			raw, err := fetch(ctx)
			if err != nil {
				// transient fetch failures do not consume the job;
				// the budget bounds how long they can recur
				w.logger.Debug("poll failed", zap.String("job_id", jobID), zap.Error(err))
				polls++
				continue
			}
			polls++

			switch upstream.Normalize(raw) {
			case upstream.StatusCompleted:
				urls := upstream.ResultURLs(raw)
				if len(urls) == 0 {
					if u := upstream.FirstResultURL(raw); u != "" {
						urls = []string{u}
					}
				}
				w.logger.Info("job completed",
					zap.String("job_id", jobID),
					zap.Int("polls", polls),
					zap.Int("results", len(urls)),
				)
				return urls, nil

			case upstream.StatusFailed:
				msg := upstream.ErrorMessage(raw)
				if msg == "" {
					msg = "upstream reported failure"
				}
				return nil, types.NewError(types.ErrJobFailed, msg)
			}
		}
	}
}

package transport

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/iscanabdulhalik/go-esim/core"
)

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

func WaitWithContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

type RetryPolicy struct {
	MaxRetries int
	BaseDelay  time.Duration
	Sleep      Sleeper
	Logger     core.Logger
	Metrics    core.MetricsRecorder
}

// Delay is linear: BaseDelay × retry, where retry starts at 1.
func (p RetryPolicy) Delay(retry int) time.Duration {
	if retry < 1 {
		retry = 1
	}
	return p.BaseDelay * time.Duration(retry)
}

// RetryOnServerError resends requests answered with a 5xx status up to
// MaxRetries times. Transport failures and other statuses pass through.
// When the retries are exhausted, or the wait is interrupted, the last
// response is returned.
func RetryOnServerError(policy RetryPolicy) Middleware {
	sleep := policy.Sleep
	if sleep == nil {
		sleep = WaitWithContext
	}
	metrics := policy.Metrics
	if metrics == nil {
		metrics = core.NopMetricsRecorder{}
	}
	return func(next Handler) Handler {
		return HandlerFunc(func(ctx context.Context, req Request) (Response, error) {
			current := req
			for {
				resp, err := next.Do(ctx, current)
				if err != nil || resp.StatusCode < http.StatusInternalServerError {
					return resp, err
				}
				if resp.Attempt.Retries >= policy.MaxRetries {
					return resp, nil
				}

				attempt := resp.Attempt.NextRetry()
				delay := policy.Delay(attempt.Retries)
				core.Log(ctx, policy.Logger, core.LevelWarn, "retrying after server error", map[string]any{
					"request_id":  req.Attempt.RequestID,
					"path":        req.Path,
					"status":      resp.StatusCode,
					"retry":       attempt.Retries,
					"max_retries": policy.MaxRetries,
					"delay_ms":    delay.Milliseconds(),
				})
				metrics.IncCounter(ctx, core.MetricRetryTotal, 1, map[string]string{
					"status": strconv.Itoa(resp.StatusCode),
				})
				if waitErr := sleep(ctx, delay); waitErr != nil {
					return resp, nil
				}
				current = req.WithAttempt(attempt)
			}
		})
	}
}

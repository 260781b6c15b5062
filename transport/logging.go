package transport

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/iscanabdulhalik/go-esim/core"
)

// RequestLogging logs and measures every attempt that reaches the wire.
func RequestLogging(logger core.Logger, metrics core.MetricsRecorder) Middleware {
	if metrics == nil {
		metrics = core.NopMetricsRecorder{}
	}
	return func(next Handler) Handler {
		return HandlerFunc(func(ctx context.Context, req Request) (Response, error) {
			startedAt := time.Now()
			resp, err := next.Do(ctx, req)
			elapsed := time.Since(startedAt)

			method := strings.ToUpper(strings.TrimSpace(req.Method))
			fields := map[string]any{
				"method":      method,
				"path":        req.Path,
				"attempt":     req.Attempt.Number,
				"request_id":  req.Attempt.RequestID,
				"duration_ms": elapsed.Milliseconds(),
			}
			if len(req.Query) > 0 {
				fields["query"] = core.RedactStrings(req.Query)
			}
			tags := map[string]string{"method": method}

			switch {
			case err != nil:
				fields["error"] = err.Error()
				fields["code"] = TextCode(err)
				tags["status"] = TextCode(err)
				core.Log(ctx, logger, core.LevelError, "request failed", fields)
			case resp.IsSuccess():
				fields["status"] = resp.StatusCode
				tags["status"] = strconv.Itoa(resp.StatusCode)
				core.Log(ctx, logger, core.LevelInfo, "request completed", fields)
			default:
				fields["status"] = resp.StatusCode
				tags["status"] = strconv.Itoa(resp.StatusCode)
				core.Log(ctx, logger, core.LevelError, "request returned error status", fields)
			}

			metrics.IncCounter(ctx, core.MetricRequestTotal, 1, core.CloneTags(tags))
			metrics.ObserveHistogram(ctx, core.MetricRequestDurationMS, float64(elapsed.Milliseconds()), core.CloneTags(tags))
			return resp, err
		})
	}
}

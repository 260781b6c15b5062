package transport

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/iscanabdulhalik/go-esim/core"
)

// BearerAuth attaches the stored access token unless the request already
// carries an Authorization header. A missing token or a failing store read
// lets the request proceed unauthenticated.
func BearerAuth(tokens core.TokenStore, logger core.Logger) Middleware {
	return func(next Handler) Handler {
		return HandlerFunc(func(ctx context.Context, req Request) (Response, error) {
			if tokens == nil || req.Header(HeaderAuthorization) != "" {
				return next.Do(ctx, req)
			}
			creds, err := tokens.Credentials(ctx)
			if err != nil {
				core.Log(ctx, logger, core.LevelWarn, "access token unavailable", map[string]any{
					"request_id": req.Attempt.RequestID,
					"path":       req.Path,
					"error":      err.Error(),
				})
				return next.Do(ctx, req)
			}
			if creds.HasAccessToken() {
				req = req.WithHeader(HeaderAuthorization, BearerValue(creds.AccessToken))
			}
			return next.Do(ctx, req)
		})
	}
}

func BearerValue(token string) string {
	return "Bearer " + strings.TrimSpace(token)
}

// RequestID stamps every logical call with an id shared by all of its
// attempts and forwards it in the X-Request-ID header.
func RequestID(newID func() string) Middleware {
	if newID == nil {
		newID = uuid.NewString
	}
	return func(next Handler) Handler {
		return HandlerFunc(func(ctx context.Context, req Request) (Response, error) {
			if strings.TrimSpace(req.Attempt.RequestID) == "" {
				attempt := req.Attempt
				attempt.RequestID = newID()
				req = req.WithAttempt(attempt)
			}
			if req.Attempt.Number < 1 {
				attempt := req.Attempt
				attempt.Number = 1
				req = req.WithAttempt(attempt)
			}
			return next.Do(ctx, req.WithHeader(HeaderRequestID, req.Attempt.RequestID))
		})
	}
}

package transport

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/iscanabdulhalik/go-esim/core"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
	"golang.org/x/sync/singleflight"
)

type RefreshPolicy struct {
	Tokens    core.TokenStore
	Refresher core.TokenRefresher
	Observer  core.SessionObserver
	Logger    core.Logger
	Metrics   core.MetricsRecorder
	// Coalesce shares one in-flight refresh call between concurrent
	// requests holding the same refresh token.
	Coalesce bool
	Now      func() time.Time

	group singleflight.Group
}

// RefreshOnUnauthorized refreshes the credential pair once per logical call
// when a 401 comes back, then resends the request with the new access
// token. When no refresh token is stored, or the refresh fails, stored
// credentials are cleared, the session observer is notified and the
// original 401 is returned.
//
// Credentials are read before the call and again after a 401. When the
// stored access token changed in between, another request already refreshed
// and the request is resent with the stored token instead of spending the
// rotated refresh token again. A refresh that completes between the first
// read and the bearer stamp can still cost one extra 401.
func RefreshOnUnauthorized(policy *RefreshPolicy) Middleware {
	return func(next Handler) Handler {
		return HandlerFunc(func(ctx context.Context, req Request) (Response, error) {
			if policy == nil || policy.Tokens == nil || policy.Refresher == nil {
				return next.Do(ctx, req)
			}
			sent, sentErr := policy.Tokens.Credentials(ctx)

			resp, err := next.Do(ctx, req)
			if err != nil || resp.StatusCode != http.StatusUnauthorized {
				return resp, err
			}
			if resp.Attempt.Refreshed {
				return resp, nil
			}

			creds, storeErr := policy.Tokens.Credentials(ctx)
			if storeErr != nil {
				policy.log(ctx, core.LevelError, "refresh token unavailable", req, map[string]any{
					"error": storeErr.Error(),
				})
			}
			if storeErr == nil && sentErr == nil && creds.HasAccessToken() && creds.AccessToken != sent.AccessToken {
				policy.log(ctx, core.LevelInfo, "credentials changed during request, resending", req, nil)
				return next.Do(ctx, req.
					WithAttempt(resp.Attempt.AfterRefresh()).
					WithHeader(HeaderAuthorization, BearerValue(creds.AccessToken)))
			}
			if storeErr != nil || !creds.HasRefreshToken() {
				policy.endSession(ctx, req, core.SessionEndMissingRefreshToken, storeErr)
				return resp, nil
			}

			refreshed, refreshErr := policy.refresh(ctx, creds.RefreshToken)
			policy.recordRefresh(ctx, refreshErr)
			if refreshErr != nil {
				policy.endSession(ctx, req, core.SessionEndRefreshFailed, refreshErr)
				return resp, nil
			}
			if !refreshed.HasRefreshToken() {
				refreshed.RefreshToken = creds.RefreshToken
			}
			if saveErr := policy.Tokens.SaveCredentials(ctx, refreshed); saveErr != nil {
				policy.log(ctx, core.LevelError, "persist refreshed credentials failed", req, map[string]any{
					"error": saveErr.Error(),
				})
			}
			policy.log(ctx, core.LevelInfo, "credentials refreshed, resending request", req, nil)

			resend := req.
				WithAttempt(resp.Attempt.AfterRefresh()).
				WithHeader(HeaderAuthorization, BearerValue(refreshed.AccessToken))
			return next.Do(ctx, resend)
		})
	}
}

func (p *RefreshPolicy) refresh(ctx context.Context, refreshToken string) (core.Credentials, error) {
	if !p.Coalesce {
		return p.Refresher.Refresh(ctx, refreshToken)
	}
	// The flight outlives any single waiter.
	shared := context.WithoutCancel(ctx)
	value, err, _ := p.group.Do(refreshToken, func() (any, error) {
		return p.Refresher.Refresh(shared, refreshToken)
	})
	if err != nil {
		return core.Credentials{}, err
	}
	creds, _ := value.(core.Credentials)
	return creds, nil
}

func (p *RefreshPolicy) endSession(ctx context.Context, req Request, reason core.SessionEndReason, cause error) {
	fields := map[string]any{"reason": string(reason)}
	if cause != nil {
		fields["error"] = cause.Error()
	}
	if clearErr := p.Tokens.Clear(ctx); clearErr != nil {
		fields["clear_error"] = clearErr.Error()
	}
	p.log(ctx, core.LevelWarn, "session ended, stored credentials cleared", req, fields)

	if p.Observer == nil {
		return
	}
	now := time.Now
	if p.Now != nil {
		now = p.Now
	}
	event := core.SessionEndedEvent{
		Reason:    reason,
		RequestID: req.Attempt.RequestID,
		Path:      req.Path,
		EndedAt:   now().UTC(),
	}
	if cause != nil {
		event.Cause = cause.Error()
	}
	if notifyErr := p.Observer.SessionEnded(ctx, event); notifyErr != nil {
		p.log(ctx, core.LevelError, "session observer failed", req, map[string]any{
			"error": notifyErr.Error(),
		})
	}
}

func (p *RefreshPolicy) recordRefresh(ctx context.Context, err error) {
	if p.Metrics == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "failure"
	}
	p.Metrics.IncCounter(ctx, core.MetricRefreshTotal, 1, map[string]string{"status": status})
}

func (p *RefreshPolicy) log(ctx context.Context, level string, message string, req Request, fields map[string]any) {
	merged := core.CloneFields(fields)
	merged["request_id"] = req.Attempt.RequestID
	merged["path"] = req.Path
	core.Log(ctx, p.Logger, level, message, merged)
}

// EndpointRefresher calls the refresh endpoint directly on the terminal
// handler, outside the policy chain, so a failing refresh never triggers
// another refresh or a retry.
type EndpointRefresher struct {
	Handler Handler
	Path    string
}

func NewEndpointRefresher(handler Handler, path string) *EndpointRefresher {
	if strings.TrimSpace(path) == "" {
		path = core.EndpointAuthRefresh
	}
	return &EndpointRefresher{Handler: handler, Path: strings.TrimSpace(path)}
}

func (r *EndpointRefresher) Refresh(ctx context.Context, refreshToken string) (core.Credentials, error) {
	if r == nil || r.Handler == nil {
		return core.Credentials{}, transportError(
			"transport: refresher requires a handler",
			goerrors.CategoryInternal,
			core.ErrorCodeUnknown,
			http.StatusInternalServerError,
			nil,
		)
	}
	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return core.Credentials{}, transportError(
			"transport: refresh token is required",
			goerrors.CategoryAuth,
			core.HTTPErrorCode(http.StatusUnauthorized),
			http.StatusUnauthorized,
			nil,
		)
	}
	body, err := sjson.SetBytes([]byte(`{}`), "refreshToken", refreshToken)
	if err != nil {
		return core.Credentials{}, transportWrapError(
			err,
			goerrors.CategoryInternal,
			core.ErrorCodeUnknown,
			"transport: encode refresh body",
			http.StatusInternalServerError,
			nil,
		)
	}

	resp, err := r.Handler.Do(ctx, Request{
		Method:  http.MethodPost,
		Path:    r.Path,
		Body:    body,
		Attempt: FirstAttempt(),
	})
	if err != nil {
		return core.Credentials{}, err
	}
	if !resp.IsSuccess() {
		return core.Credentials{}, transportError(
			fmt.Sprintf("transport: refresh endpoint returned status %d", resp.StatusCode),
			goerrors.CategoryAuth,
			core.HTTPErrorCode(resp.StatusCode),
			resp.StatusCode,
			map[string]any{"path": r.Path},
		)
	}

	parsed := gjson.ParseBytes(resp.Body)
	if success := parsed.Get("success"); success.Exists() && !success.Bool() {
		return core.Credentials{}, transportError(
			"transport: refresh endpoint rejected the refresh token",
			goerrors.CategoryAuth,
			core.HTTPErrorCode(http.StatusUnauthorized),
			http.StatusUnauthorized,
			map[string]any{"path": r.Path, "message": parsed.Get("message").String()},
		)
	}
	payload := parsed
	if data := parsed.Get("data"); data.IsObject() {
		payload = data
	}
	access := payload.Get("token").String()
	if access == "" {
		access = payload.Get("accessToken").String()
	}
	if strings.TrimSpace(access) == "" {
		return core.Credentials{}, transportError(
			"transport: refresh response has no access token",
			goerrors.CategoryExternal,
			core.ErrorCodeUnknown,
			http.StatusBadGateway,
			map[string]any{"path": r.Path},
		)
	}
	return core.Credentials{
		AccessToken:  access,
		RefreshToken: payload.Get("refreshToken").String(),
	}, nil
}

var _ core.TokenRefresher = (*EndpointRefresher)(nil)

package transport

import (
	"context"
	"net/http"
	"strings"
	"time"
)

const (
	HeaderAuthorization = "Authorization"
	HeaderRequestID     = "X-Request-ID"
)

// Attempt records where a logical call stands. It is immutable: every resend
// carries a new value derived from the attempt that produced the previous
// response.
type Attempt struct {
	Number    int
	Retries   int
	Refreshed bool
	RequestID string
}

func FirstAttempt() Attempt {
	return Attempt{Number: 1}
}

func (a Attempt) NextRetry() Attempt {
	a.Number++
	a.Retries++
	return a
}

func (a Attempt) AfterRefresh() Attempt {
	a.Number++
	a.Refreshed = true
	return a
}

type Request struct {
	Method  string
	Path    string
	Query   map[string]string
	Body    []byte
	Headers map[string]string
	Attempt Attempt
}

func (r Request) WithAttempt(attempt Attempt) Request {
	r.Attempt = attempt
	return r
}

// WithHeader returns a copy of r with the header set. The receiver's header
// map is never mutated.
func (r Request) WithHeader(key string, value string) Request {
	headers := make(map[string]string, len(r.Headers)+1)
	for k, v := range r.Headers {
		headers[k] = v
	}
	headers[http.CanonicalHeaderKey(strings.TrimSpace(key))] = value
	r.Headers = headers
	return r
}

func (r Request) Header(key string) string {
	canonical := http.CanonicalHeaderKey(strings.TrimSpace(key))
	for k, v := range r.Headers {
		if http.CanonicalHeaderKey(k) == canonical {
			return v
		}
	}
	return ""
}

type Response struct {
	StatusCode int
	Headers    map[string]string
	Body       []byte
	Attempt    Attempt
	Duration   time.Duration
}

func (r Response) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

type Handler interface {
	Do(ctx context.Context, req Request) (Response, error)
}

type HandlerFunc func(ctx context.Context, req Request) (Response, error)

func (f HandlerFunc) Do(ctx context.Context, req Request) (Response, error) {
	return f(ctx, req)
}

type Middleware func(next Handler) Handler

// Chain wraps terminal with middlewares. The first middleware is the
// outermost one.
func Chain(terminal Handler, middlewares ...Middleware) Handler {
	handler := terminal
	for i := len(middlewares) - 1; i >= 0; i-- {
		if middlewares[i] == nil {
			continue
		}
		handler = middlewares[i](handler)
	}
	return handler
}

package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
	"github.com/iscanabdulhalik/go-esim/core"
	"github.com/iscanabdulhalik/go-esim/transport"
)

// Client issues calls against the storefront backend and always answers
// with a core.Envelope. It is safe for concurrent use.
type Client struct {
	config      core.Config
	handler     transport.Handler
	tokens      core.TokenStore
	logger      core.Logger
	errorMapper core.ErrorMapper
}

func NewClient(cfg core.Config, opts ...Option) (*Client, error) {
	builder := defaultClientBuilder()
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&builder)
	}

	provider, logger := glog.Resolve("gateway", builder.loggerProvider, builder.logger)
	logger = glog.Ensure(logger)
	if provider != nil {
		if named := provider.GetLogger("gateway"); named != nil {
			logger = glog.Ensure(named)
		}
	}
	if builder.errorMapper == nil {
		builder.errorMapper = core.DefaultErrorMapper
	}
	if builder.metricsRecorder == nil {
		builder.metricsRecorder = core.NopMetricsRecorder{}
	}
	if builder.sessionObserver == nil {
		builder.sessionObserver = core.NopSessionObserver{}
	}

	if err := cfg.Validate(); err != nil {
		return nil, builder.errorMapper(err)
	}
	if cfg.TimeoutMS == 0 {
		cfg.TimeoutMS = core.DefaultTimeoutMS
	}

	tokens := builder.tokenStore
	if tokens == nil {
		kv := builder.kvStore
		if kv == nil {
			kv = core.NewMemoryKeyValueStore()
		}
		tokens = core.NewKeyValueTokenStore(kv)
	}

	adapter := transport.NewRESTAdapter(builder.httpClient, cfg.BaseURL)
	adapter.DefaultHeaders = cfg.RequestHeaders()
	adapter.Timeout = cfg.Timeout()

	wire := transport.Chain(adapter, transport.RequestLogging(logger, builder.metricsRecorder))

	refresher := builder.refresher
	if refresher == nil {
		refresher = transport.NewEndpointRefresher(wire, core.EndpointAuthRefresh)
	}

	middlewares := []transport.Middleware{
		transport.RequestID(builder.requestID),
		transport.RetryOnServerError(transport.RetryPolicy{
			MaxRetries: cfg.Retry.Count,
			BaseDelay:  cfg.Retry.Delay(),
			Sleep:      builder.sleeper,
			Logger:     logger,
			Metrics:    builder.metricsRecorder,
		}),
		transport.RefreshOnUnauthorized(&transport.RefreshPolicy{
			Tokens:    tokens,
			Refresher: refresher,
			Observer:  builder.sessionObserver,
			Logger:    logger,
			Metrics:   builder.metricsRecorder,
			Coalesce:  builder.coalesce,
		}),
		transport.BearerAuth(tokens, logger),
	}
	middlewares = append(middlewares, builder.middlewares...)

	return &Client{
		config:      cfg,
		handler:     transport.Chain(wire, middlewares...),
		tokens:      tokens,
		logger:      logger,
		errorMapper: builder.errorMapper,
	}, nil
}

func (c *Client) Config() core.Config {
	if c == nil {
		return core.Config{}
	}
	return c.config
}

func (c *Client) Tokens() core.TokenStore {
	if c == nil {
		return nil
	}
	return c.tokens
}

func (c *Client) Get(ctx context.Context, path string, query map[string]string) core.Envelope {
	return c.Do(ctx, http.MethodGet, path, query, nil)
}

func (c *Client) Post(ctx context.Context, path string, body any) core.Envelope {
	return c.Do(ctx, http.MethodPost, path, nil, body)
}

func (c *Client) Put(ctx context.Context, path string, body any) core.Envelope {
	return c.Do(ctx, http.MethodPut, path, nil, body)
}

func (c *Client) Patch(ctx context.Context, path string, body any) core.Envelope {
	return c.Do(ctx, http.MethodPatch, path, nil, body)
}

func (c *Client) Delete(ctx context.Context, path string) core.Envelope {
	return c.Do(ctx, http.MethodDelete, path, nil, nil)
}

// Do runs one logical call through the policy chain. It never panics past
// its boundary and never returns an error: every failure is an envelope.
func (c *Client) Do(ctx context.Context, method string, path string, query map[string]string, body any) (env core.Envelope) {
	if c == nil || c.handler == nil {
		return core.FailureEnvelope(0, core.ErrorCodeUnknown, messageUnknown)
	}
	if ctx == nil {
		ctx = context.Background()
	}
	defer func() {
		if recovered := recover(); recovered != nil {
			core.Log(ctx, c.logger, core.LevelError, "gateway call panicked", map[string]any{
				"method": method,
				"path":   path,
				"panic":  fmt.Sprint(recovered),
			})
			env = core.FailureEnvelope(0, core.ErrorCodeUnknown, messageUnknown)
		}
	}()

	method = strings.ToUpper(strings.TrimSpace(method))
	payload, err := encodeBody(method, body)
	if err != nil {
		return c.failure(ctx, method, path, err)
	}

	resp, err := c.handler.Do(ctx, transport.Request{
		Method:  method,
		Path:    strings.TrimSpace(path),
		Query:   cloneQuery(query),
		Body:    payload,
		Attempt: transport.FirstAttempt(),
	})
	if err != nil {
		return c.failure(ctx, method, path, err)
	}
	return normalizeResponse(resp)
}

func (c *Client) failure(ctx context.Context, method string, path string, err error) core.Envelope {
	mapped := err
	if c.errorMapper != nil {
		if rich := c.errorMapper(err); rich != nil {
			mapped = rich
		}
	}
	core.Log(ctx, c.logger, core.LevelError, "gateway call failed", map[string]any{
		"method": method,
		"path":   path,
		"code":   transport.TextCode(mapped),
		"error":  mapped.Error(),
	})
	return normalizeError(mapped)
}

func encodeBody(method string, body any) ([]byte, error) {
	switch typed := body.(type) {
	case nil:
		switch method {
		case http.MethodPost, http.MethodPut, http.MethodPatch:
			return []byte(`{}`), nil
		}
		return nil, nil
	case []byte:
		return typed, nil
	case json.RawMessage:
		return typed, nil
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryBadInput, "gateway: encode request body").
			WithCode(http.StatusBadRequest).
			WithTextCode(core.ErrorCodeUnknown)
	}
	return payload, nil
}

func cloneQuery(query map[string]string) map[string]string {
	if len(query) == 0 {
		return nil
	}
	out := make(map[string]string, len(query))
	for key, value := range query {
		out[key] = value
	}
	return out
}

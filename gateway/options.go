package gateway

import (
	glog "github.com/goliatone/go-logger/glog"
	"github.com/iscanabdulhalik/go-esim/core"
	"github.com/iscanabdulhalik/go-esim/transport"
)

type clientBuilder struct {
	logger          core.Logger
	loggerProvider  core.LoggerProvider
	metricsRecorder core.MetricsRecorder
	errorMapper     core.ErrorMapper
	httpClient      transport.HTTPDoer
	kvStore         core.KeyValueStore
	tokenStore      core.TokenStore
	refresher       core.TokenRefresher
	sessionObserver core.SessionObserver
	sleeper         transport.Sleeper
	coalesce        bool
	requestID       func() string
	middlewares     []transport.Middleware
}

type Option func(*clientBuilder)

func WithLogger(logger core.Logger) Option {
	return func(b *clientBuilder) {
		b.logger = logger
	}
}

func WithLoggerProvider(provider core.LoggerProvider) Option {
	return func(b *clientBuilder) {
		b.loggerProvider = provider
	}
}

func WithMetricsRecorder(recorder core.MetricsRecorder) Option {
	return func(b *clientBuilder) {
		b.metricsRecorder = recorder
	}
}

func WithErrorMapper(mapper core.ErrorMapper) Option {
	return func(b *clientBuilder) {
		b.errorMapper = mapper
	}
}

func WithHTTPClient(client transport.HTTPDoer) Option {
	return func(b *clientBuilder) {
		b.httpClient = client
	}
}

// WithKeyValueStore persists credentials in store through a
// core.KeyValueTokenStore. WithTokenStore takes precedence.
func WithKeyValueStore(store core.KeyValueStore) Option {
	return func(b *clientBuilder) {
		b.kvStore = store
	}
}

func WithTokenStore(store core.TokenStore) Option {
	return func(b *clientBuilder) {
		b.tokenStore = store
	}
}

func WithTokenRefresher(refresher core.TokenRefresher) Option {
	return func(b *clientBuilder) {
		b.refresher = refresher
	}
}

func WithSessionObserver(observer core.SessionObserver) Option {
	return func(b *clientBuilder) {
		b.sessionObserver = observer
	}
}

// WithSleeper replaces the backoff wait between server-error retries.
func WithSleeper(sleeper transport.Sleeper) Option {
	return func(b *clientBuilder) {
		b.sleeper = sleeper
	}
}

// WithRefreshCoalescing makes concurrent requests that hit a 401 with the
// same refresh token share a single refresh call.
func WithRefreshCoalescing() Option {
	return func(b *clientBuilder) {
		b.coalesce = true
	}
}

func WithRequestIDGenerator(fn func() string) Option {
	return func(b *clientBuilder) {
		b.requestID = fn
	}
}

// WithMiddleware adds middlewares between credential attachment and the
// wire, in the given order.
func WithMiddleware(middlewares ...transport.Middleware) Option {
	return func(b *clientBuilder) {
		b.middlewares = append(b.middlewares, middlewares...)
	}
}

func defaultClientBuilder() clientBuilder {
	loggerProvider, logger := glog.Resolve("gateway", nil, nil)
	return clientBuilder{
		loggerProvider:  loggerProvider,
		logger:          logger,
		metricsRecorder: core.NopMetricsRecorder{},
		errorMapper:     core.DefaultErrorMapper,
		sessionObserver: core.NopSessionObserver{},
	}
}

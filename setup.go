package esim

import (
	"context"

	glog "github.com/goliatone/go-logger/glog"
	"github.com/iscanabdulhalik/go-esim/api"
	"github.com/iscanabdulhalik/go-esim/core"
	"github.com/iscanabdulhalik/go-esim/gateway"
	sqlstore "github.com/iscanabdulhalik/go-esim/store/sql"
)

// Runtime is a wired client. Close releases the session store.
type Runtime struct {
	Config   core.Config
	Gateway  *gateway.Client
	Services *api.Services
	Tokens   *core.KeyValueTokenStore

	store *sqlstore.Store
}

type setupOptions struct {
	loader         core.RawConfigLoader
	resolver       core.OptionsResolver
	runtime        core.Config
	logger         core.Logger
	loggerProvider core.LoggerProvider
	errorMapper    core.ErrorMapper
	observer       core.SessionObserver
	kvStore        core.KeyValueStore
	memoryStore    bool
	storeOptions   []sqlstore.OpenOption
	gatewayOptions []gateway.Option
}

type Option func(*setupOptions)

// WithConfigLoader supplies the raw configuration source, for example a
// core.ChainLoader over a YAML file and a dotenv file.
func WithConfigLoader(loader core.RawConfigLoader) Option {
	return func(o *setupOptions) {
		o.loader = loader
	}
}

func WithOptionsResolver(resolver core.OptionsResolver) Option {
	return func(o *setupOptions) {
		o.resolver = resolver
	}
}

// WithRuntimeConfig overrides loaded values. Zero fields are ignored.
func WithRuntimeConfig(cfg core.Config) Option {
	return func(o *setupOptions) {
		o.runtime = cfg
	}
}

func WithLogger(logger core.Logger) Option {
	return func(o *setupOptions) {
		o.logger = logger
	}
}

func WithLoggerProvider(provider core.LoggerProvider) Option {
	return func(o *setupOptions) {
		o.loggerProvider = provider
	}
}

func WithErrorMapper(mapper core.ErrorMapper) Option {
	return func(o *setupOptions) {
		o.errorMapper = mapper
	}
}

func WithSessionObserver(observer core.SessionObserver) Option {
	return func(o *setupOptions) {
		o.observer = observer
	}
}

// WithKeyValueStore skips the SQL store and keeps the session in store.
func WithKeyValueStore(store core.KeyValueStore) Option {
	return func(o *setupOptions) {
		o.kvStore = store
	}
}

// WithMemoryStore keeps the session in process memory only.
func WithMemoryStore() Option {
	return func(o *setupOptions) {
		o.memoryStore = true
	}
}

func WithStoreOptions(opts ...sqlstore.OpenOption) Option {
	return func(o *setupOptions) {
		o.storeOptions = append(o.storeOptions, opts...)
	}
}

// WithGatewayOptions forwards options to gateway.NewClient. They are applied
// after the ones Setup derives, so they win.
func WithGatewayOptions(opts ...gateway.Option) Option {
	return func(o *setupOptions) {
		o.gatewayOptions = append(o.gatewayOptions, opts...)
	}
}

func Setup(ctx context.Context, opts ...Option) (*Runtime, error) {
	options := setupOptions{}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if options.errorMapper == nil {
		options.errorMapper = core.DefaultErrorMapper
	}
	if options.observer == nil {
		options.observer = core.NopSessionObserver{}
	}

	provider, logger := glog.Resolve("esim", options.loggerProvider, options.logger)
	logger = glog.Ensure(logger)

	cfg, err := core.ResolveConfig(ctx, core.NewCfgxConfigProvider(options.loader), options.resolver, options.runtime)
	if err != nil {
		return nil, mapSetupError(options.errorMapper, err)
	}

	runtime := &Runtime{Config: cfg}
	kv := options.kvStore
	switch {
	case kv != nil:
	case options.memoryStore:
		kv = core.NewMemoryKeyValueStore()
	default:
		store, openErr := sqlstore.Open(ctx, cfg.Storage, options.storeOptions...)
		if openErr != nil {
			return nil, mapSetupError(options.errorMapper, openErr)
		}
		runtime.store = store
		kv = store.KeyValueStore()
	}
	runtime.Tokens = core.NewKeyValueTokenStore(kv)

	gatewayOpts := []gateway.Option{
		gateway.WithTokenStore(runtime.Tokens),
		gateway.WithSessionObserver(options.observer),
		gateway.WithErrorMapper(options.errorMapper),
		gateway.WithLogger(logger),
	}
	if provider != nil {
		gatewayOpts = append(gatewayOpts, gateway.WithLoggerProvider(provider))
	}
	gatewayOpts = append(gatewayOpts, options.gatewayOptions...)

	client, err := gateway.NewClient(cfg, gatewayOpts...)
	if err != nil {
		_ = runtime.Close()
		return nil, mapSetupError(options.errorMapper, err)
	}
	runtime.Gateway = client
	runtime.Services = api.New(client, runtime.Tokens,
		api.WithLogger(logger),
		api.WithSessionObserver(options.observer),
	)

	core.Log(ctx, logger, core.LevelDebug, "esim runtime ready", map[string]any{
		"base_url":   cfg.BaseURL,
		"persistent": runtime.store != nil,
	})
	return runtime, nil
}

func (r *Runtime) Close() error {
	if r == nil || r.store == nil {
		return nil
	}
	err := r.store.Close()
	r.store = nil
	if err != nil {
		return core.StoreError(err, "close session store failed")
	}
	return nil
}

func mapSetupError(mapper core.ErrorMapper, err error) error {
	if rich := mapper(err); rich != nil {
		return rich
	}
	return err
}

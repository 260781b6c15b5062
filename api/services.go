// Package api exposes typed storefront operations on top of the gateway
// client. Every operation answers with a core.Envelope or a core.Result;
// invalid input is rejected with a BAD_INPUT envelope before any network
// call is made.
package api

import (
	"context"
	"sort"
	"strconv"
	"strings"

	glog "github.com/goliatone/go-logger/glog"
	"github.com/iscanabdulhalik/go-esim/core"
)

// Gateway is the subset of gateway.Client the services depend on.
type Gateway interface {
	Get(ctx context.Context, path string, query map[string]string) core.Envelope
	Post(ctx context.Context, path string, body any) core.Envelope
	Put(ctx context.Context, path string, body any) core.Envelope
	Patch(ctx context.Context, path string, body any) core.Envelope
	Delete(ctx context.Context, path string) core.Envelope
}

// SessionStore persists the credential pair and the cached user profile.
// core.KeyValueTokenStore implements it.
type SessionStore interface {
	core.TokenStore
	SaveSession(ctx context.Context, creds core.Credentials, user *core.User) error
	SaveUser(ctx context.Context, user core.User) error
	User(ctx context.Context) (core.User, bool, error)
}

type Services struct {
	Auth    *AuthService
	Catalog *CatalogService
	Orders  *OrderService
	ESIMs   *ESIMService
	Profile *ProfileService
}

type settings struct {
	logger   core.Logger
	observer core.SessionObserver
}

type Option func(*settings)

func WithLogger(logger core.Logger) Option {
	return func(s *settings) {
		s.logger = logger
	}
}

// WithSessionObserver is notified after a logout cleared the session.
func WithSessionObserver(observer core.SessionObserver) Option {
	return func(s *settings) {
		s.observer = observer
	}
}

func New(gateway Gateway, sessions SessionStore, opts ...Option) *Services {
	cfg := settings{observer: core.NopSessionObserver{}}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	_, logger := glog.Resolve("api", nil, cfg.logger)
	logger = glog.Ensure(logger)
	if cfg.observer == nil {
		cfg.observer = core.NopSessionObserver{}
	}

	return &Services{
		Auth:    &AuthService{gateway: gateway, sessions: sessions, observer: cfg.observer, logger: logger},
		Catalog: &CatalogService{gateway: gateway},
		Orders:  &OrderService{gateway: gateway},
		ESIMs:   &ESIMService{gateway: gateway},
		Profile: &ProfileService{gateway: gateway, sessions: sessions, logger: logger},
	}
}

func badInput(format string, args ...any) core.Envelope {
	return core.FailureEnvelope(0, core.ErrorCodeBadInput, core.BadInputError(format, args...).Message)
}

func badInputResult[T any](format string, args ...any) core.Result[T] {
	return core.Result[T]{Envelope: badInput(format, args...)}
}

func missing(values map[string]string) (string, bool) {
	for _, field := range sortedKeys(values) {
		if strings.TrimSpace(values[field]) == "" {
			return field, true
		}
	}
	return "", false
}

func sortedKeys(values map[string]string) []string {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func validEmail(email string) bool {
	email = strings.TrimSpace(email)
	at := strings.Index(email, "@")
	return at > 0 && at < len(email)-1 && !strings.ContainsAny(email, " \t")
}

func pageQuery(query map[string]string, page int, limit int) map[string]string {
	if page > 0 {
		query["page"] = strconv.Itoa(page)
	}
	if limit > 0 {
		query["limit"] = strconv.Itoa(limit)
	}
	return query
}

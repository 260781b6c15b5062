package core

import (
	"context"

	glog "github.com/goliatone/go-logger/glog"
)

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger

type MetricsRecorder interface {
	IncCounter(ctx context.Context, name string, value int64, tags map[string]string)
	ObserveHistogram(ctx context.Context, name string, value float64, tags map[string]string)
}

// KeyValueStore is the device-local persisted store holding the credential
// pair and the cached user profile. Values are opaque strings and every
// operation is a whole-value read or write.
type KeyValueStore interface {
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Set(ctx context.Context, key string, value string) error
	Remove(ctx context.Context, key string) error
	MultiSet(ctx context.Context, values map[string]string) error
	MultiRemove(ctx context.Context, keys ...string) error
}

type TokenStore interface {
	Credentials(ctx context.Context) (Credentials, error)
	SaveCredentials(ctx context.Context, creds Credentials) error
	Clear(ctx context.Context) error
}

// SessionObserver is notified when stored credentials were discarded because
// they could not be refreshed. Redirecting to a login surface is the
// observer's concern.
type SessionObserver interface {
	SessionEnded(ctx context.Context, event SessionEndedEvent) error
}

type NopSessionObserver struct{}

func (NopSessionObserver) SessionEnded(context.Context, SessionEndedEvent) error { return nil }

// TokenRefresher exchanges a refresh token for a new credential pair.
type TokenRefresher interface {
	Refresh(ctx context.Context, refreshToken string) (Credentials, error)
}

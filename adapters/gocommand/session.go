package gocommand

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-command"
	commanddispatcher "github.com/goliatone/go-command/dispatcher"
	"github.com/goliatone/go-command/runner"
	"github.com/iscanabdulhalik/go-esim/core"
)

const SessionEndedMessageType = "esim.session.ended"

// SessionEndedMessage is dispatched when the stored session is discarded.
type SessionEndedMessage struct {
	Reason    core.SessionEndReason
	RequestID string
	Path      string
	Cause     string
	EndedAt   time.Time
}

func (SessionEndedMessage) Type() string { return SessionEndedMessageType }

func (m SessionEndedMessage) Validate() error {
	if strings.TrimSpace(string(m.Reason)) == "" {
		return fmt.Errorf("gocommand: session end reason is required")
	}
	return nil
}

func NewSessionEndedMessage(event core.SessionEndedEvent) SessionEndedMessage {
	endedAt := event.EndedAt
	if endedAt.IsZero() {
		endedAt = time.Now().UTC()
	}
	return SessionEndedMessage{
		Reason:    event.Reason,
		RequestID: event.RequestID,
		Path:      event.Path,
		Cause:     event.Cause,
		EndedAt:   endedAt,
	}
}

type DispatchFunc func(ctx context.Context, msg SessionEndedMessage) error

// SessionObserver turns session end notifications into command dispatches.
// A login screen, a cache purge or a queued job can then subscribe to
// SessionEndedMessage without knowing about the gateway.
type SessionObserver struct {
	dispatch DispatchFunc
}

type SessionObserverOption func(*SessionObserver)

// WithDispatchFunc replaces the global command dispatcher.
func WithDispatchFunc(fn DispatchFunc) SessionObserverOption {
	return func(o *SessionObserver) {
		if fn != nil {
			o.dispatch = fn
		}
	}
}

func NewSessionObserver(opts ...SessionObserverOption) *SessionObserver {
	observer := &SessionObserver{
		dispatch: func(ctx context.Context, msg SessionEndedMessage) error {
			return Dispatch(ctx, msg)
		},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(observer)
		}
	}
	return observer
}

func (o *SessionObserver) SessionEnded(ctx context.Context, event core.SessionEndedEvent) error {
	if o == nil || o.dispatch == nil {
		return fmt.Errorf("gocommand: session observer is not configured")
	}
	msg := NewSessionEndedMessage(event)
	if err := validateMessage(msg); err != nil {
		return err
	}
	return o.dispatch(ctx, msg)
}

// SubscribeSessionEnded registers handler with the global dispatcher.
func SubscribeSessionEnded(handler func(ctx context.Context, msg SessionEndedMessage) error, runnerOpts ...runner.Option) commanddispatcher.Subscription {
	return commanddispatcher.SubscribeCommand(command.CommandFunc[SessionEndedMessage](handler), runnerOpts...)
}

var _ core.SessionObserver = (*SessionObserver)(nil)

package gocommand

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/goliatone/go-command"
	commanddispatcher "github.com/goliatone/go-command/dispatcher"
	"github.com/goliatone/go-command/runner"
	jobqueuecommand "github.com/goliatone/go-job/queue/command"
)

const queueResolverKey = "esim.queue"

func validateMessage(msg any) error {
	if err := command.ValidateMessage(msg); err != nil {
		return err
	}
	typed, ok := msg.(command.Message)
	if !ok || strings.TrimSpace(typed.Type()) == "" {
		return fmt.Errorf("gocommand: message type is required")
	}
	return nil
}

// SessionHandlers owns the subscriptions made for session end messages.
// Handlers are also registered in a command registry so a go-job queue
// registry can pick them up for background execution.
type SessionHandlers struct {
	mu            sync.Mutex
	registry      *command.Registry
	queue         *jobqueuecommand.Registry
	subscriptions []commanddispatcher.Subscription
	initialized   bool
}

type SessionHandlersOption func(*SessionHandlers)

func WithCommandRegistry(registry *command.Registry) SessionHandlersOption {
	return func(h *SessionHandlers) {
		if registry != nil {
			h.registry = registry
		}
	}
}

// WithJobQueue mirrors every handler into queue once Initialize runs.
func WithJobQueue(queue *jobqueuecommand.Registry) SessionHandlersOption {
	return func(h *SessionHandlers) {
		h.queue = queue
	}
}

func NewSessionHandlers(opts ...SessionHandlersOption) *SessionHandlers {
	handlers := &SessionHandlers{registry: command.NewRegistry()}
	for _, opt := range opts {
		if opt != nil {
			opt(handlers)
		}
	}
	return handlers
}

// Handle subscribes handler to SessionEndedMessage on the global dispatcher.
func (h *SessionHandlers) Handle(handler command.Commander[SessionEndedMessage], runnerOpts ...runner.Option) error {
	if h == nil || h.registry == nil {
		return fmt.Errorf("gocommand: session handlers are not configured")
	}
	if handler == nil {
		return fmt.Errorf("gocommand: handler is required")
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.initialized {
		return fmt.Errorf("gocommand: session handlers already initialized")
	}

	subscription := commanddispatcher.SubscribeCommand(handler, runnerOpts...)
	if err := h.registry.RegisterCommand(handler); err != nil {
		if subscription != nil {
			subscription.Unsubscribe()
		}
		return err
	}
	h.subscriptions = append(h.subscriptions, subscription)
	return nil
}

func (h *SessionHandlers) HandleFunc(fn func(ctx context.Context, msg SessionEndedMessage) error, runnerOpts ...runner.Option) error {
	if fn == nil {
		return fmt.Errorf("gocommand: handler is required")
	}
	return h.Handle(command.CommandFunc[SessionEndedMessage](fn), runnerOpts...)
}

func (h *SessionHandlers) Initialize() error {
	if h == nil || h.registry == nil {
		return fmt.Errorf("gocommand: session handlers are not configured")
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.initialized {
		return nil
	}
	if h.queue != nil && !h.registry.HasResolver(queueResolverKey) {
		if err := h.registry.AddResolver(queueResolverKey, jobqueuecommand.QueueResolver(h.queue)); err != nil {
			return err
		}
	}
	if err := h.registry.Initialize(); err != nil {
		return err
	}
	h.initialized = true
	return nil
}

func (h *SessionHandlers) Len() int {
	if h == nil {
		return 0
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscriptions)
}

// Close unsubscribes every handler. It is safe to call more than once.
func (h *SessionHandlers) Close() {
	if h == nil {
		return
	}
	h.mu.Lock()
	subscriptions := h.subscriptions
	h.subscriptions = nil
	h.mu.Unlock()
	for _, subscription := range subscriptions {
		if subscription != nil {
			subscription.Unsubscribe()
		}
	}
}

func Dispatch(ctx context.Context, msg SessionEndedMessage) error {
	return commanddispatcher.Dispatch(ctx, msg)
}

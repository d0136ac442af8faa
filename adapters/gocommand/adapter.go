package gocommand

import (
	"context"
	"errors"
	"strings"

	"github.com/goliatone/go-command"
	commanddispatcher "github.com/goliatone/go-command/dispatcher"
	"github.com/goliatone/go-command/runner"
	jobqueuecommand "github.com/goliatone/go-job/queue/command"
)

var (
	errNoRegistry   = errors.New("gocommand: registry is not configured")
	errNoHandler    = errors.New("gocommand: handler is required")
	errUntypedMsg   = errors.New("gocommand: message must implement Type() string")
	errBlankMsgType = errors.New("gocommand: message type is required")
)

// CheckMessage runs the message's own Validate (when present) and requires a
// non-blank Type so the dispatcher can route it.
func CheckMessage(msg any) error {
	if err := command.ValidateMessage(msg); err != nil {
		return err
	}
	typed, ok := msg.(command.Message)
	if !ok {
		return errUntypedMsg
	}
	if strings.TrimSpace(typed.Type()) == "" {
		return errBlankMsgType
	}
	return nil
}

// RegistryAdapter owns the go-command registry the account and access request
// handlers are registered on. Resolvers added here run on Initialize, which is
// how commands get mirrored into a go-job queue registry.
type RegistryAdapter struct {
	registry *command.Registry
}

func NewRegistryAdapter(registry *command.Registry) *RegistryAdapter {
	if registry == nil {
		registry = command.NewRegistry()
	}
	return &RegistryAdapter{registry: registry}
}

func (a *RegistryAdapter) ready() error {
	if a == nil || a.registry == nil {
		return errNoRegistry
	}
	return nil
}

func (a *RegistryAdapter) register(handler any) error {
	if err := a.ready(); err != nil {
		return err
	}
	return a.registry.RegisterCommand(handler)
}

// AddResolver attaches a named resolver hook to the registry.
func (a *RegistryAdapter) AddResolver(key string, resolver command.Resolver) error {
	if err := a.ready(); err != nil {
		return err
	}
	return a.registry.AddResolver(strings.TrimSpace(key), resolver)
}

// AddQueueResolver mirrors every registered command into queueRegistry so a
// go-job worker can execute it by message type.
func (a *RegistryAdapter) AddQueueResolver(key string, queueRegistry *jobqueuecommand.Registry) error {
	if queueRegistry == nil {
		return errors.New("gocommand: queue registry is required")
	}
	return a.AddResolver(key, jobqueuecommand.QueueResolver(queueRegistry))
}

func (a *RegistryAdapter) Initialize() error {
	if err := a.ready(); err != nil {
		return err
	}
	return a.registry.Initialize()
}

// Dispatch checks msg and sends it to the handler subscribed for its type.
func Dispatch[T any](ctx context.Context, msg T) error {
	if err := CheckMessage(msg); err != nil {
		return err
	}
	return commanddispatcher.Dispatch(ctx, msg)
}

// Query checks msg and returns the subscribed querier's result.
func Query[T any, R any](ctx context.Context, msg T) (R, error) {
	var zero R
	if err := CheckMessage(msg); err != nil {
		return zero, err
	}
	return commanddispatcher.Query[T, R](ctx, msg)
}

// RegisterAndSubscribe subscribes cmd on the dispatcher and registers it. The
// subscription is dropped again when registration fails.
func RegisterAndSubscribe[T any](
	adapter *RegistryAdapter,
	cmd command.Commander[T],
	opts ...runner.Option,
) (commanddispatcher.Subscription, error) {
	if cmd == nil {
		return nil, errNoHandler
	}
	return subscribeRegistered(adapter, cmd, func() commanddispatcher.Subscription {
		return commanddispatcher.SubscribeCommand(cmd, opts...)
	})
}

// RegisterAndSubscribeQuery subscribes qry on the dispatcher only. Queries
// stay out of the command registry so queue resolvers never see them.
func RegisterAndSubscribeQuery[T any, R any](
	adapter *RegistryAdapter,
	qry command.Querier[T, R],
	opts ...runner.Option,
) (commanddispatcher.Subscription, error) {
	if qry == nil {
		return nil, errNoHandler
	}
	if err := adapter.ready(); err != nil {
		return nil, err
	}
	return commanddispatcher.SubscribeQuery(qry, opts...), nil
}

func subscribeRegistered(
	adapter *RegistryAdapter,
	handler any,
	subscribe func() commanddispatcher.Subscription,
) (commanddispatcher.Subscription, error) {
	if err := adapter.ready(); err != nil {
		return nil, err
	}
	sub := subscribe()
	if err := adapter.register(handler); err != nil {
		if sub != nil {
			sub.Unsubscribe()
		}
		return nil, err
	}
	return sub, nil
}

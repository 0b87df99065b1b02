package gocommand

import (
	"fmt"

	"github.com/goliatone/go-command"
	commanddispatcher "github.com/goliatone/go-command/dispatcher"
	"github.com/goliatone/go-command/runner"
	jobqueuecommand "github.com/goliatone/go-job/queue/command"
)

// QueueResolverKey names the resolver that mirrors registered commands into a
// go-job queue registry.
const QueueResolverKey = "formchimp.queue"

// RegistryAdapter owns the go-command registry formchimp handlers are
// registered on.
type RegistryAdapter struct {
	registry *command.Registry
}

func NewRegistryAdapter(registry *command.Registry) *RegistryAdapter {
	if registry == nil {
		registry = command.NewRegistry()
	}
	return &RegistryAdapter{registry: registry}
}

func (a *RegistryAdapter) configured() error {
	if a == nil || a.registry == nil {
		return fmt.Errorf("gocommand: registry is not configured")
	}
	return nil
}

// RegisterCommand adds cmd to the registry without subscribing it.
func (a *RegistryAdapter) RegisterCommand(cmd any) error {
	if err := a.configured(); err != nil {
		return err
	}
	return a.registry.RegisterCommand(cmd)
}

// MirrorToQueue makes Initialize copy every registered command into
// queueRegistry so a go-job worker can execute it.
func (a *RegistryAdapter) MirrorToQueue(queueRegistry *jobqueuecommand.Registry) error {
	if err := a.configured(); err != nil {
		return err
	}
	if queueRegistry == nil {
		return fmt.Errorf("gocommand: queue registry is required")
	}
	return a.registry.AddResolver(QueueResolverKey, jobqueuecommand.QueueResolver(queueRegistry))
}

// Initialize runs the registry resolvers over everything registered so far.
func (a *RegistryAdapter) Initialize() error {
	if err := a.configured(); err != nil {
		return err
	}
	return a.registry.Initialize()
}

// RegisterAndSubscribe registers cmd and subscribes it on the global
// dispatcher. The subscription is dropped when registration fails.
func RegisterAndSubscribe[T any](
	adapter *RegistryAdapter,
	cmd command.Commander[T],
	runnerOpts ...runner.Option,
) (commanddispatcher.Subscription, error) {
	if err := adapter.configured(); err != nil {
		return nil, err
	}
	if cmd == nil {
		return nil, fmt.Errorf("gocommand: command is required")
	}
	subscription := commanddispatcher.SubscribeCommand(cmd, runnerOpts...)
	if err := adapter.registry.RegisterCommand(cmd); err != nil {
		if subscription != nil {
			subscription.Unsubscribe()
		}
		return nil, err
	}
	return subscription, nil
}

func RegisterAndSubscribeQuery[T any, R any](
	adapter *RegistryAdapter,
	qry command.Querier[T, R],
	runnerOpts ...runner.Option,
) (commanddispatcher.Subscription, error) {
	if err := adapter.configured(); err != nil {
		return nil, err
	}
	if qry == nil {
		return nil, fmt.Errorf("gocommand: query is required")
	}
	subscription := commanddispatcher.SubscribeQuery(qry, runnerOpts...)
	if err := adapter.registry.RegisterCommand(qry); err != nil {
		if subscription != nil {
			subscription.Unsubscribe()
		}
		return nil, err
	}
	return subscription, nil
}

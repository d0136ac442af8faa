package gocommand

import (
	"github.com/goliatone/go-access-proxy/command"
	"github.com/goliatone/go-access-proxy/core"
	"github.com/goliatone/go-access-proxy/query"
	commanddispatcher "github.com/goliatone/go-command/dispatcher"
)

// ServiceSurface is everything the command and query handlers call.
type ServiceSurface interface {
	command.AccountService
	command.AccessRequestService
	command.ConnectionService
	query.EntitlementLister
	query.IdentityResolver
	query.AccessRequestHistoryReader
}

// Subscriptions groups dispatcher subscriptions so they can be dropped at once.
type Subscriptions []commanddispatcher.Subscription

func (s Subscriptions) Unsubscribe() {
	for _, subscription := range s {
		if subscription != nil {
			subscription.Unsubscribe()
		}
	}
}

// RegisterHandlers registers and subscribes every account, access request and
// connection command plus the entitlement, identity and history queries. On
// failure the subscriptions made so far are released.
func RegisterHandlers(adapter *RegistryAdapter, service ServiceSurface) (Subscriptions, error) {
	subs := Subscriptions{}
	fail := func(err error) (Subscriptions, error) {
		subs.Unsubscribe()
		return nil, err
	}

	steps := []func() (commanddispatcher.Subscription, error){
		func() (commanddispatcher.Subscription, error) {
			return RegisterAndSubscribe(adapter, command.NewCreateAccountCommand(service))
		},
		func() (commanddispatcher.Subscription, error) {
			return RegisterAndSubscribe(adapter, command.NewUpdateAccountCommand(service))
		},
		func() (commanddispatcher.Subscription, error) {
			return RegisterAndSubscribe(adapter, command.NewSubmitAccessRequestCommand(service))
		},
		func() (commanddispatcher.Subscription, error) {
			return RegisterAndSubscribe(adapter, command.NewTestConnectionCommand(service))
		},
		func() (commanddispatcher.Subscription, error) {
			return RegisterAndSubscribeQuery(adapter, query.NewListEntitlementsQuery(service))
		},
		func() (commanddispatcher.Subscription, error) {
			return RegisterAndSubscribeQuery(adapter, query.NewResolveIdentityQuery(service))
		},
		func() (commanddispatcher.Subscription, error) {
			return RegisterAndSubscribeQuery(adapter, query.NewListAccessRequestsQuery(service))
		},
	}
	for _, step := range steps {
		sub, err := step()
		if err != nil {
			return fail(err)
		}
		subs = append(subs, sub)
	}
	return subs, nil
}

var _ ServiceSurface = (*core.Service)(nil)

package accessproxy

import (
	gocommandadapter "github.com/goliatone/go-access-proxy/adapters/gocommand"
	accesscommand "github.com/goliatone/go-access-proxy/command"
	"github.com/goliatone/go-access-proxy/core"
	accessquery "github.com/goliatone/go-access-proxy/query"
)

// CommandQueryService is the surface the facade handlers delegate to.
// *Service satisfies it.
type CommandQueryService = gocommandadapter.ServiceSurface

type Commands struct {
	CreateAccount       *accesscommand.CreateAccountCommand
	UpdateAccount       *accesscommand.UpdateAccountCommand
	SubmitAccessRequest *accesscommand.SubmitAccessRequestCommand
	TestConnection      *accesscommand.TestConnectionCommand
}

type Queries struct {
	ListEntitlements   *accessquery.ListEntitlementsQuery
	ResolveIdentity    *accessquery.ResolveIdentityQuery
	ListAccessRequests *accessquery.ListAccessRequestsQuery
}

type Facade struct {
	service  CommandQueryService
	commands Commands
	queries  Queries
}

func NewFacade(service CommandQueryService) (*Facade, error) {
	if service == nil {
		return nil, core.MissingDependency("accessproxy: command/query service is required")
	}
	return &Facade{
		service: service,
		commands: Commands{
			CreateAccount:       accesscommand.NewCreateAccountCommand(service),
			UpdateAccount:       accesscommand.NewUpdateAccountCommand(service),
			SubmitAccessRequest: accesscommand.NewSubmitAccessRequestCommand(service),
			TestConnection:      accesscommand.NewTestConnectionCommand(service),
		},
		queries: Queries{
			ListEntitlements:   accessquery.NewListEntitlementsQuery(service),
			ResolveIdentity:    accessquery.NewResolveIdentityQuery(service),
			ListAccessRequests: accessquery.NewListAccessRequestsQuery(service),
		},
	}, nil
}

func (f *Facade) Commands() Commands {
	if f == nil {
		return Commands{}
	}
	return f.commands
}

func (f *Facade) Queries() Queries {
	if f == nil {
		return Queries{}
	}
	return f.queries
}

func (f *Facade) Service() CommandQueryService {
	if f == nil {
		return nil
	}
	return f.service
}

// RegisterHandlers subscribes every command and query of the facade service on
// the go-command dispatcher through adapter.
func (f *Facade) RegisterHandlers(adapter *gocommandadapter.RegistryAdapter) (gocommandadapter.Subscriptions, error) {
	if f == nil || f.service == nil {
		return nil, core.MissingDependency("accessproxy: facade is not configured")
	}
	return gocommandadapter.RegisterHandlers(adapter, f.service)
}

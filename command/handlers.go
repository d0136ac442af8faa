package command

import (
	"context"

	"github.com/goliatone/go-access-proxy/core"
	gocmd "github.com/goliatone/go-command"
)

type AccountService interface {
	CreateAccount(ctx context.Context, req core.CreateAccountRequest) (core.AccountView, error)
	UpdateAccount(ctx context.Context, req core.UpdateAccountRequest) (core.AccountView, error)
}

type AccessRequestService interface {
	SubmitAccessRequest(ctx context.Context, req core.SubmitRequest) (core.SubmitResult, error)
}

type ConnectionService interface {
	TestConnection(ctx context.Context) error
}

type CreateAccountCommand struct {
	service AccountService
}

func NewCreateAccountCommand(service AccountService) *CreateAccountCommand {
	return &CreateAccountCommand{service: service}
}

func (c *CreateAccountCommand) Execute(ctx context.Context, msg CreateAccountMessage) error {
	if c == nil || c.service == nil {
		return core.MissingDependency("command: account service is required")
	}
	out, err := c.service.CreateAccount(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type UpdateAccountCommand struct {
	service AccountService
}

func NewUpdateAccountCommand(service AccountService) *UpdateAccountCommand {
	return &UpdateAccountCommand{service: service}
}

func (c *UpdateAccountCommand) Execute(ctx context.Context, msg UpdateAccountMessage) error {
	if c == nil || c.service == nil {
		return core.MissingDependency("command: account service is required")
	}
	out, err := c.service.UpdateAccount(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type SubmitAccessRequestCommand struct {
	service AccessRequestService
}

func NewSubmitAccessRequestCommand(service AccessRequestService) *SubmitAccessRequestCommand {
	return &SubmitAccessRequestCommand{service: service}
}

func (c *SubmitAccessRequestCommand) Execute(ctx context.Context, msg SubmitAccessRequestMessage) error {
	if c == nil || c.service == nil {
		return core.MissingDependency("command: access request service is required")
	}
	out, err := c.service.SubmitAccessRequest(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type TestConnectionCommand struct {
	service ConnectionService
}

func NewTestConnectionCommand(service ConnectionService) *TestConnectionCommand {
	return &TestConnectionCommand{service: service}
}

func (c *TestConnectionCommand) Execute(ctx context.Context, _ TestConnectionMessage) error {
	if c == nil || c.service == nil {
		return core.MissingDependency("command: connection service is required")
	}
	return c.service.TestConnection(ctx)
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}

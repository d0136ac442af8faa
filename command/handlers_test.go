package command

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/goliatone/go-access-proxy/core"
	gocmd "github.com/goliatone/go-command"
	goerrors "github.com/goliatone/go-errors"
)

func TestCreateAccountCommand_ExecuteDelegatesAndStoresResult(t *testing.T) {
	expected := core.AccountView{Identity: "2c91", UUID: "jdoe"}
	called := false

	svc := stubService{
		createAccountFn: func(_ context.Context, req core.CreateAccountRequest) (core.AccountView, error) {
			called = true
			if req.Name != "jdoe" {
				t.Fatalf("expected name jdoe, got %q", req.Name)
			}
			return expected, nil
		},
	}

	cmd := NewCreateAccountCommand(svc)
	collector := gocmd.NewResult[core.AccountView]()
	ctx := gocmd.ContextWithResult(context.Background(), collector)

	err := cmd.Execute(ctx, CreateAccountMessage{Request: core.CreateAccountRequest{
		Name:         "jdoe",
		Entitlements: core.SingleValue("e1"),
	}})
	if err != nil {
		t.Fatalf("execute create account: %v", err)
	}
	if !called {
		t.Fatalf("expected create account invocation")
	}
	result, ok := collector.Load()
	if !ok {
		t.Fatalf("expected result to be stored")
	}
	if result.Identity != expected.Identity || result.UUID != expected.UUID {
		t.Fatalf("unexpected result: %#v", result)
	}
}

func TestMutationCommands_DelegateToService(t *testing.T) {
	t.Run("update account", func(t *testing.T) {
		called := false
		svc := stubService{
			updateAccountFn: func(_ context.Context, req core.UpdateAccountRequest) (core.AccountView, error) {
				called = true
				if req.IdentityID != "2c91" || len(req.Changes) != 1 {
					t.Fatalf("unexpected update payload: %#v", req)
				}
				return core.AccountView{Identity: "2c91"}, nil
			},
		}
		cmd := NewUpdateAccountCommand(svc)
		err := cmd.Execute(context.Background(), UpdateAccountMessage{Request: core.UpdateAccountRequest{
			IdentityID: "2c91",
			Changes:    []core.ChangeOperation{{Op: core.ChangeOpAdd, Value: core.SingleValue("e1")}},
		}})
		if err != nil {
			t.Fatalf("execute update account: %v", err)
		}
		if !called {
			t.Fatalf("expected update invocation")
		}
	})

	t.Run("submit access request", func(t *testing.T) {
		svc := stubService{
			submitFn: func(_ context.Context, req core.SubmitRequest) (core.SubmitResult, error) {
				if req.Type != core.AccessRequestRevoke {
					t.Fatalf("unexpected request type %q", req.Type)
				}
				return core.SubmitResult{Attempts: 1, Response: core.AccessRequestResponse{ID: "ar1"}}, nil
			},
		}
		collector := gocmd.NewResult[core.SubmitResult]()
		ctx := gocmd.ContextWithResult(context.Background(), collector)
		cmd := NewSubmitAccessRequestCommand(svc)
		err := cmd.Execute(ctx, SubmitAccessRequestMessage{Request: core.SubmitRequest{
			IdentityID:     "2c91",
			EntitlementIDs: []string{"e1"},
			Type:           core.AccessRequestRevoke,
		}})
		if err != nil {
			t.Fatalf("execute submit: %v", err)
		}
		result, ok := collector.Load()
		if !ok || result.Response.ID != "ar1" {
			t.Fatalf("expected stored submit result, got %#v", result)
		}
	})

	t.Run("test connection", func(t *testing.T) {
		called := false
		svc := stubService{
			testConnectionFn: func(context.Context) error {
				called = true
				return nil
			},
		}
		if err := NewTestConnectionCommand(svc).Execute(context.Background(), TestConnectionMessage{}); err != nil {
			t.Fatalf("execute test connection: %v", err)
		}
		if !called {
			t.Fatalf("expected test connection invocation")
		}
	})
}

func TestCommands_PropagateServiceErrors(t *testing.T) {
	failure := errors.New("upstream down")
	svc := stubService{
		createAccountFn: func(context.Context, core.CreateAccountRequest) (core.AccountView, error) {
			return core.AccountView{}, failure
		},
		testConnectionFn: func(context.Context) error { return failure },
	}

	collector := gocmd.NewResult[core.AccountView]()
	ctx := gocmd.ContextWithResult(context.Background(), collector)
	err := NewCreateAccountCommand(svc).Execute(ctx, CreateAccountMessage{Request: core.CreateAccountRequest{Name: "jdoe"}})
	if !errors.Is(err, failure) {
		t.Fatalf("expected service error, got %v", err)
	}
	if _, ok := collector.Load(); ok {
		t.Fatalf("expected no stored result on failure")
	}
	if err := NewTestConnectionCommand(svc).Execute(context.Background(), TestConnectionMessage{}); !errors.Is(err, failure) {
		t.Fatalf("expected service error, got %v", err)
	}
}

func TestCommands_NilServiceReturnsRichError(t *testing.T) {
	var cmd *CreateAccountCommand
	err := cmd.Execute(context.Background(), CreateAccountMessage{})
	if err == nil {
		t.Fatalf("expected command dependency error")
	}

	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected go-errors envelope, got %T", err)
	}
	if rich.Category != goerrors.CategoryInternal {
		t.Fatalf("expected internal category, got %q", rich.Category)
	}
	if err := NewSubmitAccessRequestCommand(nil).Execute(context.Background(), SubmitAccessRequestMessage{}); err == nil {
		t.Fatalf("expected error for nil access request service")
	}
}

func TestMessages_ValidateReturnsRichError(t *testing.T) {
	cases := map[string]interface{ Validate() error }{
		"create without name":  CreateAccountMessage{},
		"update without id":    UpdateAccountMessage{},
		"update with bad op":   UpdateAccountMessage{Request: core.UpdateAccountRequest{IdentityID: "2c91", Changes: []core.ChangeOperation{{Op: "Replace"}}}},
		"submit without items": SubmitAccessRequestMessage{Request: core.SubmitRequest{IdentityID: "2c91", Type: core.AccessRequestGrant}},
		"submit with bad type": SubmitAccessRequestMessage{Request: core.SubmitRequest{IdentityID: "2c91", EntitlementIDs: []string{"e1"}, Type: "MODIFY"}},
	}
	for name, msg := range cases {
		t.Run(name, func(t *testing.T) {
			err := msg.Validate()
			if err == nil {
				t.Fatalf("expected validation error")
			}
			var rich *goerrors.Error
			if !goerrors.As(err, &rich) {
				t.Fatalf("expected go-errors envelope, got %T", err)
			}
			if rich.Category != goerrors.CategoryValidation {
				t.Fatalf("expected validation category, got %q", rich.Category)
			}
			if rich.TextCode != core.ErrorBadInput {
				t.Fatalf("expected %q text code, got %q", core.ErrorBadInput, rich.TextCode)
			}
		})
	}

	valid := UpdateAccountMessage{Request: core.UpdateAccountRequest{
		IdentityID: "2c91",
		Changes:    []core.ChangeOperation{{Op: core.ChangeOpSet, Value: core.SingleValue("e1")}},
	}}
	if err := valid.Validate(); err != nil {
		t.Fatalf("set operations are rejected by the service, not the message: %v", err)
	}
}

func TestMessageTypes(t *testing.T) {
	if (CreateAccountMessage{}).Type() != TypeCreateAccount {
		t.Fatalf("unexpected create account type")
	}
	if (UpdateAccountMessage{}).Type() != TypeUpdateAccount {
		t.Fatalf("unexpected update account type")
	}
	if (SubmitAccessRequestMessage{}).Type() != TypeSubmitAccessRequest {
		t.Fatalf("unexpected submit type")
	}
	if (TestConnectionMessage{}).Type() != TypeTestConnection {
		t.Fatalf("unexpected test connection type")
	}
}

type stubService struct {
	createAccountFn  func(ctx context.Context, req core.CreateAccountRequest) (core.AccountView, error)
	updateAccountFn  func(ctx context.Context, req core.UpdateAccountRequest) (core.AccountView, error)
	submitFn         func(ctx context.Context, req core.SubmitRequest) (core.SubmitResult, error)
	testConnectionFn func(ctx context.Context) error
}

func (s stubService) CreateAccount(ctx context.Context, req core.CreateAccountRequest) (core.AccountView, error) {
	if s.createAccountFn == nil {
		return core.AccountView{}, fmt.Errorf("create account not configured")
	}
	return s.createAccountFn(ctx, req)
}

func (s stubService) UpdateAccount(ctx context.Context, req core.UpdateAccountRequest) (core.AccountView, error) {
	if s.updateAccountFn == nil {
		return core.AccountView{}, fmt.Errorf("update account not configured")
	}
	return s.updateAccountFn(ctx, req)
}

func (s stubService) SubmitAccessRequest(ctx context.Context, req core.SubmitRequest) (core.SubmitResult, error) {
	if s.submitFn == nil {
		return core.SubmitResult{}, fmt.Errorf("submit not configured")
	}
	return s.submitFn(ctx, req)
}

func (s stubService) TestConnection(ctx context.Context) error {
	if s.testConnectionFn == nil {
		return fmt.Errorf("test connection not configured")
	}
	return s.testConnectionFn(ctx)
}

var (
	_ AccountService       = stubService{}
	_ AccessRequestService = stubService{}
	_ ConnectionService    = stubService{}
)

package core

import (
	"context"
	"reflect"
	"testing"
)

func newTestService(t *testing.T, client *fakeGovernanceClient, cfg Config, opts ...Option) *Service {
	t.Helper()
	base := []Option{
		WithGovernanceClient(client),
		WithIdentityResolver(lookupResolver{client: client}),
		WithSleeper(&recordingSleeper{}),
	}
	svc, err := NewService(cfg, append(base, opts...)...)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func TestServiceCreateAccount_GrantsInitialEntitlements(t *testing.T) {
	client := newFakeGovernanceClient()
	client.identities["name.exact:jdoe"] = Identity{ID: "id-1", Name: "jdoe"}
	svc := newTestService(t, client, DefaultConfig())

	view, err := svc.CreateAccount(context.Background(), CreateAccountRequest{
		Name:         "jdoe",
		Entitlements: ListValue{"ent-1", "ent-2"},
	})
	if err != nil {
		t.Fatalf("create account: %v", err)
	}
	if view.Identity != "id-1" || view.UUID != "jdoe" {
		t.Fatalf("unexpected view %#v", view)
	}
	if len(client.requests) != 1 || client.requests[0].RequestType != AccessRequestGrant {
		t.Fatalf("expected one grant request, got %#v", client.requests)
	}
	if !reflect.DeepEqual(client.requests[0].EntitlementIDs, []string{"ent-1", "ent-2"}) {
		t.Fatalf("unexpected requested ids %v", client.requests[0].EntitlementIDs)
	}
}

func TestServiceCreateAccount_SkipsRequestWithoutEntitlements(t *testing.T) {
	client := newFakeGovernanceClient()
	client.identities["name.exact:jdoe"] = Identity{ID: "id-1", Name: "jdoe"}
	svc := newTestService(t, client, DefaultConfig())

	view, err := svc.CreateAccount(context.Background(), CreateAccountRequest{Name: "jdoe"})
	if err != nil {
		t.Fatalf("create account: %v", err)
	}
	if len(client.requests) != 0 {
		t.Fatalf("expected no access request, got %d", len(client.requests))
	}
	if got := view.Attributes[AccountAttributeEntitlements].([]string); len(got) != 0 {
		t.Fatalf("expected empty entitlements, got %v", got)
	}
}

func TestServiceCreateAccount_RequiresName(t *testing.T) {
	svc := newTestService(t, newFakeGovernanceClient(), DefaultConfig())
	if _, err := svc.CreateAccount(context.Background(), CreateAccountRequest{}); !HasTextCode(err, ErrorBadInput) {
		t.Fatalf("expected bad input, got %v", err)
	}
}

func TestServiceUpdateAccount_GrantsThenRevokesAndMerges(t *testing.T) {
	client := newFakeGovernanceClient()
	client.identities["id:id-1"] = Identity{ID: "id-1", Name: "jdoe"}
	client.accounts["id-1"] = Account{ID: "acc-1", NativeIdentity: "id-1", Attributes: map[string]any{
		"entitlements": []any{"a", "b"},
	}}
	svc := newTestService(t, client, DefaultConfig())

	view, err := svc.UpdateAccount(context.Background(), UpdateAccountRequest{
		IdentityID: "id-1",
		Changes: []ChangeOperation{
			{Op: ChangeOpAdd, Value: SingleValue("c")},
			{Op: ChangeOpRemove, Value: ListValue{"a"}},
		},
	})
	if err != nil {
		t.Fatalf("update account: %v", err)
	}
	if len(client.requests) != 2 ||
		client.requests[0].RequestType != AccessRequestGrant ||
		client.requests[1].RequestType != AccessRequestRevoke {
		t.Fatalf("expected grant then revoke, got %#v", client.requests)
	}
	got := view.Attributes[AccountAttributeEntitlements].([]string)
	if !reflect.DeepEqual(got, []string{"b", "c"}) {
		t.Fatalf("expected merged entitlements [b c], got %v", got)
	}
	if client.accountFilters[0].NativeIdentity != "id-1" {
		t.Fatalf("unexpected account filter %#v", client.accountFilters[0])
	}
}

func TestServiceUpdateAccount_NoChangesSkipsRequests(t *testing.T) {
	client := newFakeGovernanceClient()
	client.identities["id:id-1"] = Identity{ID: "id-1", Name: "jdoe"}
	client.accounts["id-1"] = Account{NativeIdentity: "id-1", Attributes: map[string]any{"entitlements": "a"}}
	svc := newTestService(t, client, DefaultConfig())

	view, err := svc.UpdateAccount(context.Background(), UpdateAccountRequest{IdentityID: "id-1"})
	if err != nil {
		t.Fatalf("update account: %v", err)
	}
	if len(client.requests) != 0 {
		t.Fatalf("expected no requests, got %d", len(client.requests))
	}
	if got := view.Attributes[AccountAttributeEntitlements].([]string); !reflect.DeepEqual(got, []string{"a"}) {
		t.Fatalf("unexpected entitlements %v", got)
	}
}

func TestServiceUpdateAccount_Failures(t *testing.T) {
	client := newFakeGovernanceClient()
	svc := newTestService(t, client, DefaultConfig())
	if _, err := svc.UpdateAccount(context.Background(), UpdateAccountRequest{IdentityID: "missing"}); !IsIdentityNotFound(err) {
		t.Fatalf("expected identity not found, got %v", err)
	}

	client.identities["id:id-1"] = Identity{ID: "id-1", Name: "jdoe"}
	if _, err := svc.UpdateAccount(context.Background(), UpdateAccountRequest{IdentityID: "id-1"}); !IsAccountNotFound(err) {
		t.Fatalf("expected account not found, got %v", err)
	}

	client.accounts["id-1"] = Account{NativeIdentity: "id-1"}
	_, err := svc.UpdateAccount(context.Background(), UpdateAccountRequest{
		IdentityID: "id-1",
		Changes: []ChangeOperation{
			{Op: ChangeOpAdd, Value: SingleValue("x")},
			{Op: ChangeOpSet, Value: SingleValue("y")},
		},
	})
	if !IsUnsupportedOperation(err) {
		t.Fatalf("expected unsupported operation, got %v", err)
	}
	if len(client.requests) != 0 {
		t.Fatalf("expected no requests after rejected change set, got %d", len(client.requests))
	}
}

func TestServiceTestConnection(t *testing.T) {
	client := newFakeGovernanceClient()
	svc := newTestService(t, client, DefaultConfig())
	if err := svc.TestConnection(context.Background()); err != nil {
		t.Fatalf("test connection: %v", err)
	}
	client.probeErr = errBackendDown
	if err := svc.TestConnection(context.Background()); !IsUpstreamReadFailure(err) {
		t.Fatalf("expected upstream read failure, got %v", err)
	}
	if client.probeCalls != 2 {
		t.Fatalf("expected two probes, got %d", client.probeCalls)
	}
}

func TestServiceListEntitlements_UsesConfiguredSearch(t *testing.T) {
	client := newFakeGovernanceClient()
	client.searchResults = []Entitlement{
		{ID: "ent-1", Name: "Admins", Source: &SourceRef{Name: "HR"}},
		{ID: "ent-2", Name: "Readers"},
	}
	cfg := DefaultConfig()
	cfg.Search = "source.name:HR"
	svc := newTestService(t, client, cfg)

	views, err := svc.ListEntitlements(context.Background())
	if err != nil {
		t.Fatalf("list entitlements: %v", err)
	}
	if len(views) != 2 || views[0].Identity != "ent-1" || views[1].Identity != "ent-2" {
		t.Fatalf("unexpected views %#v", views)
	}
	if client.searchQueries[0] != "source.name:HR" {
		t.Fatalf("expected configured query, got %q", client.searchQueries[0])
	}
}

func TestServiceSubmitAccessRequest_UsesConfiguredRequestability(t *testing.T) {
	client := newFakeGovernanceClient()
	client.entitlements["ent-1"] = Entitlement{ID: "ent-1"}
	cfg := DefaultConfig()
	cfg.MakeRequestable = true
	svc := newTestService(t, client, cfg)

	if _, err := svc.SubmitAccessRequest(context.Background(), SubmitRequest{
		IdentityID:     "id-1",
		EntitlementIDs: []string{"ent-1"},
		Type:           AccessRequestGrant,
	}); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if len(client.patches) != 1 {
		t.Fatalf("expected one requestability patch, got %d", len(client.patches))
	}
}

func TestServiceAccessRequestHistory(t *testing.T) {
	client := newFakeGovernanceClient()
	ledger := &memoryLedger{}
	svc := newTestService(t, client, DefaultConfig(), WithAccessRequestLedger(ledger))

	if _, err := svc.SubmitAccessRequest(context.Background(), SubmitRequest{
		IdentityID:     "id-1",
		EntitlementIDs: []string{"ent-1"},
		Type:           AccessRequestRevoke,
	}); err != nil {
		t.Fatalf("submit: %v", err)
	}
	records, err := svc.AccessRequestHistory(context.Background(), "id-1", 10)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(records) != 1 || records[0].ResponseID != "ar_id-1" || records[0].Status != LedgerStatusSubmitted {
		t.Fatalf("unexpected records %#v", records)
	}
}

func TestServiceWithoutClientReportsBadInput(t *testing.T) {
	svc, err := NewService(DefaultConfig())
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	if err := svc.TestConnection(context.Background()); !HasTextCode(err, ErrorBadInput) {
		t.Fatalf("expected bad input, got %v", err)
	}
	if _, err := svc.ResolveIdentityForCreate(context.Background(), "x"); !HasTextCode(err, ErrorBadInput) {
		t.Fatalf("expected bad input, got %v", err)
	}
}

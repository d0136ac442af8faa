package core

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"
)

func newTestOrchestrator(client *fakeGovernanceClient, sleeper Sleeper, cfg OrchestratorConfig, ledger AccessRequestLedger) *AccessRequestOrchestrator {
	return NewAccessRequestOrchestrator(cfg, OrchestratorDependencies{
		Requester: client,
		Gate:      NewRequestabilityGate(client, client, nil),
		Sleeper:   sleeper,
		Ledger:    ledger,
	})
}

func TestOrchestrator_GrantGatesEachEntitlementInOrder(t *testing.T) {
	client := newFakeGovernanceClient()
	client.entitlements["ent-1"] = Entitlement{ID: "ent-1", Requestable: false}
	client.entitlements["ent-2"] = Entitlement{ID: "ent-2", Requestable: true}
	orchestrator := newTestOrchestrator(client, &recordingSleeper{}, OrchestratorConfig{MakeRequestable: true, Comment: "cfg"}, nil)

	result, err := orchestrator.Submit(context.Background(), SubmitRequest{
		IdentityID:     "id-1",
		EntitlementIDs: []string{"ent-1", "ent-2"},
		Type:           AccessRequestGrant,
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	want := []string{"get:ent-1", "patch:ent-1", "get:ent-2", "request:GRANT_ACCESS"}
	if !reflect.DeepEqual(client.callLog, want) {
		t.Fatalf("expected calls %v, got %v", want, client.callLog)
	}
	if !reflect.DeepEqual(result.Patched, []string{"ent-1"}) {
		t.Fatalf("unexpected patched list %v", result.Patched)
	}
	if result.Response.ID != "ar_id-1" || result.Attempts != 1 {
		t.Fatalf("unexpected result %#v", result)
	}
	if client.requests[0].Comment != "cfg" {
		t.Fatalf("expected configured comment, got %q", client.requests[0].Comment)
	}
}

func TestOrchestrator_RevokeNeverGates(t *testing.T) {
	client := newFakeGovernanceClient()
	client.entitlements["ent-1"] = Entitlement{ID: "ent-1", Requestable: false}
	orchestrator := newTestOrchestrator(client, &recordingSleeper{}, OrchestratorConfig{MakeRequestable: true}, nil)

	if _, err := orchestrator.Submit(context.Background(), SubmitRequest{
		IdentityID:     "id-1",
		EntitlementIDs: []string{"ent-1"},
		Type:           AccessRequestRevoke,
		Comment:        "leaving",
	}); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if len(client.getCalls) != 0 || len(client.patches) != 0 {
		t.Fatalf("expected no gate calls for revoke, got %v", client.callLog)
	}
	if client.requests[0].Comment != "leaving" {
		t.Fatalf("expected caller comment, got %q", client.requests[0].Comment)
	}
}

func TestOrchestrator_GateDisabledSkipsReads(t *testing.T) {
	client := newFakeGovernanceClient()
	orchestrator := newTestOrchestrator(client, &recordingSleeper{}, OrchestratorConfig{MakeRequestable: false}, nil)
	if _, err := orchestrator.Submit(context.Background(), SubmitRequest{
		IdentityID:     "id-1",
		EntitlementIDs: []string{"ent-1"},
		Type:           AccessRequestGrant,
	}); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if len(client.getCalls) != 0 {
		t.Fatalf("expected no entitlement reads, got %v", client.getCalls)
	}
}

func TestOrchestrator_GateFailureAbortsBeforeSubmission(t *testing.T) {
	client := newFakeGovernanceClient()
	client.entitlements["ent-1"] = Entitlement{ID: "ent-1"}
	client.patchErr = errBackendDown
	orchestrator := newTestOrchestrator(client, &recordingSleeper{}, OrchestratorConfig{MakeRequestable: true}, nil)

	_, err := orchestrator.Submit(context.Background(), SubmitRequest{
		IdentityID:     "id-1",
		EntitlementIDs: []string{"ent-1", "ent-2"},
		Type:           AccessRequestGrant,
	})
	if !IsUpstreamRequestFailure(err) {
		t.Fatalf("expected upstream request failure, got %v", err)
	}
	if len(client.requests) != 0 {
		t.Fatalf("expected no submission, got %d", len(client.requests))
	}
	if len(client.getCalls) != 1 {
		t.Fatalf("expected gate to stop at first failure, got reads %v", client.getCalls)
	}
}

func TestOrchestrator_RetriesOnceAfterFixedDelay(t *testing.T) {
	client := newFakeGovernanceClient()
	client.requestFailures = 1
	sleeper := &recordingSleeper{}
	orchestrator := newTestOrchestrator(client, sleeper, OrchestratorConfig{Retry: AccessRequestRetryPolicy()}, nil)

	result, err := orchestrator.Submit(context.Background(), SubmitRequest{
		IdentityID:     "id-1",
		EntitlementIDs: []string{"ent-1"},
		Type:           AccessRequestGrant,
		Comment:        "c",
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if result.Attempts != 2 || len(client.requests) != 2 {
		t.Fatalf("expected two submissions, got %d", len(client.requests))
	}
	if !reflect.DeepEqual(client.requests[0], client.requests[1]) {
		t.Fatalf("expected identical resubmission, got %#v", client.requests)
	}
	if got := sleeper.calls(); len(got) != 1 || got[0] != 60*time.Second {
		t.Fatalf("expected one 60s wait, got %v", got)
	}
}

func TestOrchestrator_SecondFailurePropagates(t *testing.T) {
	client := newFakeGovernanceClient()
	client.requestErr = errBackendDown
	sleeper := &recordingSleeper{}
	ledger := &memoryLedger{}
	orchestrator := newTestOrchestrator(client, sleeper, OrchestratorConfig{}, ledger)

	_, err := orchestrator.Submit(context.Background(), SubmitRequest{
		IdentityID:     "id-1",
		EntitlementIDs: []string{"ent-1"},
		Type:           AccessRequestGrant,
	})
	if !IsUpstreamRequestFailure(err) {
		t.Fatalf("expected upstream request failure, got %v", err)
	}
	if !errors.Is(err, errBackendDown) {
		t.Fatalf("expected source error in chain, got %v", err)
	}
	if len(client.requests) != 2 {
		t.Fatalf("expected exactly two submissions, got %d", len(client.requests))
	}
	if len(sleeper.calls()) != 1 {
		t.Fatalf("expected one wait, got %v", sleeper.calls())
	}
	if len(ledger.records) != 1 || ledger.records[0].Status != LedgerStatusFailed || ledger.records[0].Attempts != 2 {
		t.Fatalf("unexpected ledger records %#v", ledger.records)
	}
}

func TestOrchestrator_LedgerFailureDoesNotFailSubmission(t *testing.T) {
	client := newFakeGovernanceClient()
	logger := newCaptureLogger()
	orchestrator := NewAccessRequestOrchestrator(OrchestratorConfig{}, OrchestratorDependencies{
		Requester: client,
		Gate:      NewRequestabilityGate(client, client, nil),
		Sleeper:   &recordingSleeper{},
		Ledger:    &memoryLedger{err: errors.New("disk full")},
		Logger:    logger,
	})
	if _, err := orchestrator.Submit(context.Background(), SubmitRequest{
		IdentityID:     "id-1",
		EntitlementIDs: []string{"ent-1"},
		Type:           AccessRequestRevoke,
	}); err != nil {
		t.Fatalf("submit: %v", err)
	}
	found := false
	for _, record := range logger.snapshot() {
		if record.level == "warn" && record.msg == "access request ledger write failed" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected ledger warning log")
	}
}

func TestOrchestrator_RejectsInvalidRequestType(t *testing.T) {
	client := newFakeGovernanceClient()
	orchestrator := newTestOrchestrator(client, &recordingSleeper{}, OrchestratorConfig{}, nil)
	_, err := orchestrator.Submit(context.Background(), SubmitRequest{IdentityID: "id-1", Type: "MODIFY"})
	if !HasTextCode(err, ErrorBadInput) {
		t.Fatalf("expected bad input, got %v", err)
	}
	if len(client.requests) != 0 {
		t.Fatalf("expected no submission")
	}
}

package adapters_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/goliatone/go-access-proxy/adapters/gocommand"
	"github.com/goliatone/go-access-proxy/adapters/gojob"
	"github.com/goliatone/go-access-proxy/command"
	"github.com/goliatone/go-access-proxy/core"
	"github.com/goliatone/go-access-proxy/identity"
	gocmd "github.com/goliatone/go-command"
	job "github.com/goliatone/go-job"
	"github.com/goliatone/go-job/queue"
)

func TestRuntimeCompatibility_CommandDispatchReachesGovernanceClient(t *testing.T) {
	client := newCompatClient()
	svc := newCompatService(t, client)

	adapter := gocommand.NewRegistryAdapter(gocmd.NewRegistry())
	subs, err := gocommand.RegisterHandlers(adapter, svc)
	if err != nil {
		t.Fatalf("register handlers: %v", err)
	}
	defer subs.Unsubscribe()
	if err := adapter.Initialize(); err != nil {
		t.Fatalf("initialize registry: %v", err)
	}

	collector := gocmd.NewResult[core.AccountView]()
	ctx := gocmd.ContextWithResult(context.Background(), collector)
	if err := gocommand.Dispatch(ctx, command.CreateAccountMessage{Request: core.CreateAccountRequest{
		Name:         "jdoe",
		Entitlements: core.ListValue{"e1"},
	}}); err != nil {
		t.Fatalf("dispatch create account: %v", err)
	}

	view, ok := collector.Load()
	if !ok {
		t.Fatalf("expected account view from dispatch")
	}
	if view.Identity != "2c91" || view.UUID != "jdoe" {
		t.Fatalf("unexpected account view: %#v", view)
	}
	requests := client.accessRequests()
	if len(requests) != 1 || requests[0].RequestType != core.AccessRequestGrant {
		t.Fatalf("expected one grant access request, got %#v", requests)
	}
}

func TestRuntimeCompatibility_QueuedProvisioningThroughGoJob(t *testing.T) {
	ctx := context.Background()
	client := newCompatClient()
	svc := newCompatService(t, client)

	memQueue := &compatQueue{}
	enqueuer := gojob.NewEnqueuerAdapter(memQueue)
	if err := enqueuer.EnqueueUpdateAccount(ctx, core.UpdateAccountRequest{
		IdentityID: "2c91",
		Changes: []core.ChangeOperation{
			{Op: core.ChangeOpAdd, Value: core.SingleValue("e2")},
			{Op: core.ChangeOpRemove, Value: core.SingleValue("e1")},
		},
	}); err != nil {
		t.Fatalf("enqueue update: %v", err)
	}
	if err := enqueuer.EnqueueUpdateAccount(ctx, core.UpdateAccountRequest{
		IdentityID: "2c91",
		Changes:    []core.ChangeOperation{{Op: core.ChangeOpSet, Value: core.SingleValue("e3")}},
	}); err != nil {
		t.Fatalf("enqueue set update: %v", err)
	}

	worker := core.NewProvisioningWorker(svc, gojob.NewDequeuerAdapter(memQueue, gojob.ProvisioningRetryPolicy()), core.ProvisioningWorkerOptions{
		RetryDelay: time.Second,
	})

	processed, err := worker.ProcessNext(ctx)
	if err != nil || !processed {
		t.Fatalf("process update job: processed=%v err=%v", processed, err)
	}
	if !memQueue.deliveries[0].acked {
		t.Fatalf("expected successful update to be acked")
	}
	requests := client.accessRequests()
	if len(requests) != 2 {
		t.Fatalf("expected grant and revoke requests, got %d", len(requests))
	}
	if requests[0].RequestType != core.AccessRequestGrant || requests[1].RequestType != core.AccessRequestRevoke {
		t.Fatalf("expected grant before revoke, got %#v", requests)
	}

	processed, err = worker.ProcessNext(ctx)
	if !processed || err == nil {
		t.Fatalf("expected set update to fail, processed=%v err=%v", processed, err)
	}
	if !core.IsUnsupportedOperation(err) {
		t.Fatalf("expected unsupported operation error, got %v", err)
	}
	nack := memQueue.deliveries[1].nack
	if nack == nil || !nack.DeadLetter || nack.Requeue {
		t.Fatalf("expected set update to be dead-lettered, got %#v", nack)
	}
}

func newCompatService(t *testing.T, client *compatClient) *core.Service {
	t.Helper()
	noSleep := core.SleeperFunc(func(context.Context, time.Duration) error { return nil })
	svc, err := core.NewService(core.DefaultConfig(),
		core.WithGovernanceClient(client),
		core.WithIdentityResolver(identity.NewResolver(identity.Config{
			Searcher: client,
			Sleeper:  noSleep,
		})),
		core.WithSleeper(noSleep),
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

type compatClient struct {
	mu       sync.Mutex
	requests []core.AccessRequest
}

func newCompatClient() *compatClient {
	return &compatClient{}
}

func (c *compatClient) accessRequests() []core.AccessRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]core.AccessRequest(nil), c.requests...)
}

func (c *compatClient) SearchIdentities(_ context.Context, query core.IdentityQuery) ([]core.Identity, error) {
	jdoe := core.Identity{ID: "2c91", Name: "jdoe"}
	switch {
	case query.Field == core.IdentityFieldNameExact && query.Value == jdoe.Name:
		return []core.Identity{jdoe}, nil
	case query.Field == core.IdentityFieldID && query.Value == jdoe.ID:
		return []core.Identity{jdoe}, nil
	default:
		return []core.Identity{}, nil
	}
}

func (c *compatClient) SearchEntitlements(context.Context, string) ([]core.Entitlement, error) {
	return []core.Entitlement{}, nil
}

func (c *compatClient) GetEntitlement(_ context.Context, id string) (core.Entitlement, error) {
	return core.Entitlement{ID: id, Requestable: true}, nil
}

func (c *compatClient) PatchEntitlement(_ context.Context, id string, _ []core.JSONPatchOperation) (core.Entitlement, error) {
	return core.Entitlement{ID: id, Requestable: true}, nil
}

func (c *compatClient) ListAccounts(_ context.Context, filter core.AccountFilter) ([]core.Account, error) {
	return []core.Account{{
		ID:             "acc1",
		NativeIdentity: filter.NativeIdentity,
		Attributes:     map[string]any{core.AccountAttributeEntitlements: []any{"e1"}},
	}}, nil
}

func (c *compatClient) CreateAccessRequest(_ context.Context, req core.AccessRequest) (core.AccessRequestResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.requests = append(c.requests, req)
	return core.AccessRequestResponse{ID: "ar", Status: "ACCEPTED"}, nil
}

func (c *compatClient) GetPublicIdentityConfig(context.Context) (core.PublicIdentityConfig, error) {
	return core.PublicIdentityConfig{}, nil
}

type compatQueue struct {
	deliveries []*compatDelivery
	next       int
}

func (q *compatQueue) Enqueue(_ context.Context, msg *job.ExecutionMessage) error {
	q.deliveries = append(q.deliveries, &compatDelivery{msg: msg})
	return nil
}

func (q *compatQueue) Dequeue(context.Context) (queue.Delivery, error) {
	if q.next >= len(q.deliveries) {
		return nil, nil
	}
	delivery := q.deliveries[q.next]
	q.next++
	return delivery, nil
}

type compatDelivery struct {
	msg   *job.ExecutionMessage
	acked bool
	nack  *queue.NackOptions
}

func (d *compatDelivery) Message() *job.ExecutionMessage { return d.msg }

func (d *compatDelivery) Ack(context.Context) error {
	d.acked = true
	return nil
}

func (d *compatDelivery) Nack(_ context.Context, opts queue.NackOptions) error {
	d.nack = &opts
	return nil
}

var _ core.GovernanceClient = (*compatClient)(nil)

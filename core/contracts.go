package core

import (
	"context"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

type IdentitySearcher interface {
	SearchIdentities(ctx context.Context, query IdentityQuery) ([]Identity, error)
}

type EntitlementSearcher interface {
	SearchEntitlements(ctx context.Context, query string) ([]Entitlement, error)
}

type EntitlementReader interface {
	GetEntitlement(ctx context.Context, id string) (Entitlement, error)
}

type EntitlementPatcher interface {
	PatchEntitlement(ctx context.Context, id string, ops []JSONPatchOperation) (Entitlement, error)
}

type AccountLister interface {
	ListAccounts(ctx context.Context, filter AccountFilter) ([]Account, error)
}

type AccessRequester interface {
	CreateAccessRequest(ctx context.Context, req AccessRequest) (AccessRequestResponse, error)
}

type ConnectivityProber interface {
	GetPublicIdentityConfig(ctx context.Context) (PublicIdentityConfig, error)
}

// GovernanceClient is the full backend surface used by the service.
type GovernanceClient interface {
	IdentitySearcher
	EntitlementSearcher
	EntitlementReader
	EntitlementPatcher
	AccountLister
	AccessRequester
	ConnectivityProber
}

type IdentityResolver interface {
	ResolveForCreate(ctx context.Context, name string) (Identity, error)
	ResolveForUpdate(ctx context.Context, id string) (Identity, error)
}

type Sleeper interface {
	Sleep(ctx context.Context, delay time.Duration) error
}

type LedgerStatus string

const (
	LedgerStatusSubmitted LedgerStatus = "submitted"
	LedgerStatusFailed    LedgerStatus = "failed"
)

type AccessRequestRecord struct {
	ID             string
	IdentityID     string
	RequestType    AccessRequestType
	EntitlementIDs []string
	Comment        string
	Attempts       int
	Status         LedgerStatus
	ResponseID     string
	ResponseStatus string
	Error          string
	CreatedAt      time.Time
}

type AccessRequestLedger interface {
	Record(ctx context.Context, record AccessRequestRecord) (AccessRequestRecord, error)
	ListByIdentity(ctx context.Context, identityID string, limit int) ([]AccessRequestRecord, error)
}

type MetricsRecorder interface {
	IncCounter(ctx context.Context, name string, value int64, tags map[string]string)
	ObserveHistogram(ctx context.Context, name string, value float64, tags map[string]string)
}

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger

type JobExecutionMessage struct {
	JobID          string
	ScriptPath     string
	Parameters     map[string]any
	IdempotencyKey string
	DedupPolicy    string
}

type JobNackOptions struct {
	Delay      time.Duration
	Requeue    bool
	DeadLetter bool
	Reason     string
}

type JobEnqueuer interface {
	Enqueue(ctx context.Context, msg *JobExecutionMessage) error
}

type JobDelivery interface {
	Message() *JobExecutionMessage
	Ack(ctx context.Context) error
	Nack(ctx context.Context, opts JobNackOptions) error
}

type JobDequeuer interface {
	Dequeue(ctx context.Context) (JobDelivery, error)
}

type JobWorkerHook interface {
	OnStart(ctx context.Context, event JobWorkerEvent)
	OnSuccess(ctx context.Context, event JobWorkerEvent)
	OnFailure(ctx context.Context, event JobWorkerEvent)
	OnRetry(ctx context.Context, event JobWorkerEvent)
}

type JobWorkerEvent struct {
	Message   *JobExecutionMessage
	Attempt   int
	Delay     time.Duration
	Err       error
	StartedAt time.Time
	Duration  time.Duration
}

package gojob

import (
	"context"
	"errors"
	"maps"
	"strings"

	"github.com/goliatone/go-access-proxy/core"
	job "github.com/goliatone/go-job"
	"github.com/goliatone/go-job/queue"
)

// A create for a name already queued is dropped rather than merged.
const createDedupPolicy = job.DeduplicationPolicy("drop")

// EnqueuerAdapter publishes provisioning jobs to a go-job queue.
type EnqueuerAdapter struct {
	enqueuer queue.Enqueuer
}

func NewEnqueuerAdapter(enqueuer queue.Enqueuer) *EnqueuerAdapter {
	return &EnqueuerAdapter{enqueuer: enqueuer}
}

func (a *EnqueuerAdapter) Enqueue(ctx context.Context, msg *core.JobExecutionMessage) error {
	if a == nil || a.enqueuer == nil {
		return errors.New("gojob: enqueuer is not configured")
	}
	if msg == nil {
		return errors.New("gojob: execution message is required")
	}
	return a.enqueuer.Enqueue(ctx, toQueueMessage(msg))
}

// EnqueueCreateAccount schedules an account create job keyed by account name.
func (a *EnqueuerAdapter) EnqueueCreateAccount(ctx context.Context, req core.CreateAccountRequest) error {
	if strings.TrimSpace(req.Name) == "" {
		return errors.New("gojob: account name is required")
	}
	msg := core.CreateAccountJob(req)
	msg.DedupPolicy = string(createDedupPolicy)
	return a.Enqueue(ctx, msg)
}

// EnqueueUpdateAccount schedules an account update job.
func (a *EnqueuerAdapter) EnqueueUpdateAccount(ctx context.Context, req core.UpdateAccountRequest) error {
	if strings.TrimSpace(req.IdentityID) == "" {
		return errors.New("gojob: identity id is required")
	}
	return a.Enqueue(ctx, core.UpdateAccountJob(req))
}

func toQueueMessage(msg *core.JobExecutionMessage) *job.ExecutionMessage {
	return &job.ExecutionMessage{
		JobID:          strings.TrimSpace(msg.JobID),
		ScriptPath:     strings.TrimSpace(msg.ScriptPath),
		Parameters:     cloneParameters(msg.Parameters),
		IdempotencyKey: strings.TrimSpace(msg.IdempotencyKey),
		DedupPolicy:    job.DeduplicationPolicy(strings.TrimSpace(msg.DedupPolicy)),
	}
}

func fromQueueMessage(msg *job.ExecutionMessage) *core.JobExecutionMessage {
	if msg == nil {
		return nil
	}
	return &core.JobExecutionMessage{
		JobID:          msg.JobID,
		ScriptPath:     msg.ScriptPath,
		Parameters:     cloneParameters(msg.Parameters),
		IdempotencyKey: msg.IdempotencyKey,
		DedupPolicy:    string(msg.DedupPolicy),
	}
}

func cloneParameters(in map[string]any) map[string]any {
	if in == nil {
		return map[string]any{}
	}
	return maps.Clone(in)
}

var _ core.JobEnqueuer = (*EnqueuerAdapter)(nil)

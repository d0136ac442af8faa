package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

const (
	JobIDAccountCreate = "accessproxy.account.create"
	JobIDAccountUpdate = "accessproxy.account.update"

	defaultProvisioningRetryDelay = 30 * time.Second
	defaultProvisioningIdleDelay  = time.Second
)

// AttemptNacker is implemented by deliveries that bound requeues by attempt.
type AttemptNacker interface {
	NackForAttempt(ctx context.Context, opts JobNackOptions, attempt int) error
}

type ProvisioningWorkerOptions struct {
	RetryDelay time.Duration
	IdleDelay  time.Duration
	// MaxAttempts drops the attempt counter for a message once it is reached,
	// matching the queue policy that dead-letters it. Zero keeps counting.
	MaxAttempts int
	Hooks       []JobWorkerHook
}

// ProvisioningWorker runs account create and update jobs pulled from a queue.
type ProvisioningWorker struct {
	service  *Service
	dequeuer JobDequeuer
	options  ProvisioningWorkerOptions

	mu       sync.Mutex
	attempts map[string]int
}

func NewProvisioningWorker(service *Service, dequeuer JobDequeuer, options ProvisioningWorkerOptions) *ProvisioningWorker {
	if options.RetryDelay <= 0 {
		options.RetryDelay = defaultProvisioningRetryDelay
	}
	if options.IdleDelay <= 0 {
		options.IdleDelay = defaultProvisioningIdleDelay
	}
	return &ProvisioningWorker{
		service:  service,
		dequeuer: dequeuer,
		options:  options,
		attempts: map[string]int{},
	}
}

func CreateAccountJob(req CreateAccountRequest) *JobExecutionMessage {
	entitlements := []string{}
	if req.Entitlements != nil {
		entitlements = req.Entitlements.Values()
	}
	name := strings.TrimSpace(req.Name)
	return &JobExecutionMessage{
		JobID: JobIDAccountCreate,
		Parameters: map[string]any{
			"name":         name,
			"entitlements": entitlements,
		},
		IdempotencyKey: JobIDAccountCreate + ":" + name,
	}
}

func UpdateAccountJob(req UpdateAccountRequest) *JobExecutionMessage {
	changes := make([]any, 0, len(req.Changes))
	for _, change := range req.Changes {
		values := []string{}
		if change.Value != nil {
			values = change.Value.Values()
		}
		changes = append(changes, map[string]any{
			"op":    string(change.Op),
			"value": values,
		})
	}
	identityID := strings.TrimSpace(req.IdentityID)
	return &JobExecutionMessage{
		JobID: JobIDAccountUpdate,
		Parameters: map[string]any{
			"identity_id": identityID,
			"changes":     changes,
		},
		IdempotencyKey: fmt.Sprintf("%s:%s:%d", JobIDAccountUpdate, identityID, time.Now().UTC().UnixNano()),
	}
}

// Run processes deliveries until ctx is done.
func (w *ProvisioningWorker) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		processed, err := w.ProcessNext(ctx)
		if err != nil && ctx.Err() != nil {
			return ctx.Err()
		}
		if processed && err == nil {
			continue
		}
		if waitErr := waitWithContext(ctx, w.options.IdleDelay); waitErr != nil {
			return waitErr
		}
	}
}

// ProcessNext handles a single delivery. It reports false when the queue
// returned nothing.
func (w *ProvisioningWorker) ProcessNext(ctx context.Context) (bool, error) {
	if w == nil || w.dequeuer == nil {
		return false, MissingDependency("core: provisioning worker is not configured")
	}
	delivery, err := w.dequeuer.Dequeue(ctx)
	if err != nil {
		return false, err
	}
	if delivery == nil {
		return false, nil
	}

	msg := delivery.Message()
	key := attemptKey(msg)
	attempt := w.nextAttempt(key)
	event := JobWorkerEvent{Message: msg, Attempt: attempt, StartedAt: time.Now().UTC()}
	w.emit(ctx, event, JobWorkerHook.OnStart)

	handleErr := w.Handle(ctx, msg)
	event.Duration = time.Since(event.StartedAt)
	if handleErr == nil {
		w.clearAttempts(key)
		w.emit(ctx, event, JobWorkerHook.OnSuccess)
		return true, delivery.Ack(ctx)
	}

	event.Err = handleErr
	opts := JobNackOptions{
		Delay:   w.options.RetryDelay,
		Requeue: true,
		Reason:  handleErr.Error(),
	}
	if isTerminalProvisioningError(handleErr) {
		opts.Requeue = false
		opts.DeadLetter = true
		opts.Delay = 0
		w.clearAttempts(key)
		w.emit(ctx, event, JobWorkerHook.OnFailure)
	} else {
		if w.options.MaxAttempts > 0 && attempt >= w.options.MaxAttempts {
			w.clearAttempts(key)
		}
		event.Delay = opts.Delay
		w.emit(ctx, event, JobWorkerHook.OnRetry)
	}

	var nackErr error
	if bounded, ok := delivery.(AttemptNacker); ok {
		nackErr = bounded.NackForAttempt(ctx, opts, attempt)
	} else {
		nackErr = delivery.Nack(ctx, opts)
	}
	return true, errors.Join(handleErr, nackErr)
}

// Handle executes one job message against the service.
func (w *ProvisioningWorker) Handle(ctx context.Context, msg *JobExecutionMessage) error {
	if w == nil || w.service == nil {
		return MissingDependency("core: provisioning worker is not configured")
	}
	if msg == nil {
		return badInputError("core: job message is required", nil)
	}
	switch strings.TrimSpace(msg.JobID) {
	case JobIDAccountCreate:
		name, _ := msg.Parameters["name"].(string)
		entitlements, err := ChangeValueFrom(msg.Parameters["entitlements"])
		if err != nil {
			return badInputError(err.Error(), map[string]any{"job_id": msg.JobID})
		}
		_, err = w.service.CreateAccount(ctx, CreateAccountRequest{Name: name, Entitlements: entitlements})
		return err
	case JobIDAccountUpdate:
		identityID, _ := msg.Parameters["identity_id"].(string)
		changes, err := ChangeOperationsFrom(msg.Parameters["changes"])
		if err != nil {
			return badInputError(err.Error(), map[string]any{"job_id": msg.JobID})
		}
		_, err = w.service.UpdateAccount(ctx, UpdateAccountRequest{IdentityID: identityID, Changes: changes})
		return err
	default:
		return badInputError(fmt.Sprintf("core: unknown job %q", msg.JobID), map[string]any{"job_id": msg.JobID})
	}
}

func (w *ProvisioningWorker) emit(ctx context.Context, event JobWorkerEvent, fn func(JobWorkerHook, context.Context, JobWorkerEvent)) {
	for _, hook := range w.options.Hooks {
		if hook != nil {
			fn(hook, ctx, event)
		}
	}
}

func (w *ProvisioningWorker) nextAttempt(key string) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.attempts[key]++
	return w.attempts[key]
}

func (w *ProvisioningWorker) clearAttempts(key string) {
	w.mu.Lock()
	delete(w.attempts, key)
	w.mu.Unlock()
}

func attemptKey(msg *JobExecutionMessage) string {
	if msg == nil {
		return ""
	}
	if key := strings.TrimSpace(msg.IdempotencyKey); key != "" {
		return key
	}
	return strings.TrimSpace(msg.JobID)
}

// isTerminalProvisioningError reports failures that must not be redelivered.
// An upstream request failure means a submission was already attempted, so
// redelivery could duplicate the grant or revoke.
func isTerminalProvisioningError(err error) bool {
	if IsUnsupportedOperation(err) || IsIdentityNotFound(err) || IsAccountNotFound(err) {
		return true
	}
	if IsUpstreamRequestFailure(err) {
		return true
	}
	var rich *goerrors.Error
	if goerrors.As(err, &rich) {
		switch rich.Category {
		case goerrors.CategoryBadInput, goerrors.CategoryValidation:
			return true
		}
	}
	return false
}

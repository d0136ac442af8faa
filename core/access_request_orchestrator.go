package core

import (
	"context"
	"strings"
	"time"
)

type OrchestratorConfig struct {
	MakeRequestable bool
	Comment         string
	Retry           RetryPolicy
}

type SubmitRequest struct {
	IdentityID     string
	EntitlementIDs []string
	Type           AccessRequestType
	Comment        string
}

type SubmitResult struct {
	Response AccessRequestResponse
	Attempts int
	Patched  []string
}

// AccessRequestOrchestrator submits one access request per call, gating grant
// entitlements through the requestability check and resubmitting once on
// failure.
type AccessRequestOrchestrator struct {
	config          OrchestratorConfig
	requester       AccessRequester
	gate            *RequestabilityGate
	sleeper         Sleeper
	ledger          AccessRequestLedger
	logger          Logger
	metricsRecorder MetricsRecorder
	now             func() time.Time
}

type OrchestratorDependencies struct {
	Requester       AccessRequester
	Gate            *RequestabilityGate
	Sleeper         Sleeper
	Ledger          AccessRequestLedger
	Logger          Logger
	MetricsRecorder MetricsRecorder
}

func NewAccessRequestOrchestrator(cfg OrchestratorConfig, deps OrchestratorDependencies) *AccessRequestOrchestrator {
	if cfg.Retry.MaxAttempts < 1 {
		cfg.Retry = AccessRequestRetryPolicy()
	}
	sleeper := deps.Sleeper
	if sleeper == nil {
		sleeper = TimerSleeper{}
	}
	recorder := deps.MetricsRecorder
	if recorder == nil {
		recorder = NopMetricsRecorder{}
	}
	return &AccessRequestOrchestrator{
		config:          cfg,
		requester:       deps.Requester,
		gate:            deps.Gate,
		sleeper:         sleeper,
		ledger:          deps.Ledger,
		logger:          deps.Logger,
		metricsRecorder: recorder,
		now:             func() time.Time { return time.Now().UTC() },
	}
}

func (o *AccessRequestOrchestrator) Submit(ctx context.Context, req SubmitRequest) (SubmitResult, error) {
	if o == nil || o.requester == nil {
		return SubmitResult{}, badInputError("core: access request orchestrator is not configured", nil)
	}
	identityID := strings.TrimSpace(req.IdentityID)
	if identityID == "" {
		return SubmitResult{}, badInputError("core: identity id is required", map[string]any{
			"operation": "submit_access_request",
		})
	}
	if err := req.Type.Validate(); err != nil {
		return SubmitResult{}, badInputError(err.Error(), map[string]any{
			"operation": "submit_access_request",
		})
	}

	result := SubmitResult{}
	if req.Type == AccessRequestGrant && o.config.MakeRequestable {
		for _, entitlementID := range req.EntitlementIDs {
			patched, err := o.gate.EnsureRequestable(ctx, entitlementID)
			if err != nil {
				return result, err
			}
			if patched {
				result.Patched = append(result.Patched, entitlementID)
			}
		}
	}

	comment := strings.TrimSpace(req.Comment)
	if comment == "" {
		comment = o.config.Comment
	}
	accessRequest := AccessRequest{
		RequestedFor:   identityID,
		RequestType:    req.Type,
		EntitlementIDs: append([]string{}, req.EntitlementIDs...),
		Comment:        comment,
	}

	response, attempts, err := Retry(ctx, o.config.Retry, o.sleeper,
		func(ctx context.Context, _ int) (AccessRequestResponse, error) {
			return o.requester.CreateAccessRequest(ctx, accessRequest)
		},
		OnRetry(func(attempt int, delay time.Duration, err error) {
			o.metricsRecorder.IncCounter(ctx, "accessproxy.access_request.retry", 1, map[string]string{
				"request_type": string(req.Type),
			})
			if o.logger != nil {
				o.logger.WithContext(ctx).Debug("access request failed, retrying",
					"identity_id", identityID,
					"request_type", string(req.Type),
					"attempt", attempt,
					"delay", delay.String(),
					"error", err.Error(),
				)
			}
		}),
	)
	result.Attempts = attempts
	o.record(ctx, accessRequest, attempts, response, err)
	if err != nil {
		return result, UpstreamRequestError(err, "create_access_request", map[string]any{
			"identity_id":  identityID,
			"request_type": string(req.Type),
			"attempts":     attempts,
		})
	}
	result.Response = response
	return result, nil
}

func (o *AccessRequestOrchestrator) record(
	ctx context.Context,
	req AccessRequest,
	attempts int,
	response AccessRequestResponse,
	submitErr error,
) {
	if o.ledger == nil {
		return
	}
	record := AccessRequestRecord{
		IdentityID:     req.RequestedFor,
		RequestType:    req.RequestType,
		EntitlementIDs: append([]string{}, req.EntitlementIDs...),
		Comment:        req.Comment,
		Attempts:       attempts,
		Status:         LedgerStatusSubmitted,
		ResponseID:     response.ID,
		ResponseStatus: response.Status,
		CreatedAt:      o.now(),
	}
	if submitErr != nil {
		record.Status = LedgerStatusFailed
		record.Error = submitErr.Error()
	}
	if _, err := o.ledger.Record(ctx, record); err != nil && o.logger != nil {
		o.logger.WithContext(ctx).Warn("access request ledger write failed",
			"identity_id", req.RequestedFor,
			"error", err.Error(),
		)
	}
}

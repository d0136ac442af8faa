package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/goliatone/go-access-proxy/core"
	"github.com/goliatone/go-access-proxy/transport"
	goerrors "github.com/goliatone/go-errors"
)

const (
	defaultInitialBackoff = time.Second
	defaultMaxBackoff     = time.Minute
)

// ThrottledError is returned by BeforeCall while a bucket is blocked.
type ThrottledError struct {
	Tenant     string
	Bucket     string
	RetryAfter time.Duration
}

func (e ThrottledError) Error() string {
	return fmt.Sprintf("ratelimit: tenant %q bucket %q throttled for %s", e.Tenant, e.Bucket, e.RetryAfter)
}

func (e ThrottledError) ToServiceError() *goerrors.Error {
	metadata := map[string]any{
		"tenant": e.Tenant,
		"bucket": e.Bucket,
	}
	if e.RetryAfter > 0 {
		metadata["retry_after_ms"] = e.RetryAfter.Milliseconds()
	}
	return goerrors.New(e.Error(), goerrors.CategoryRateLimit).
		WithCode(http.StatusTooManyRequests).
		WithTextCode(core.ErrorRateLimited).
		WithMetadata(metadata)
}

// AdaptivePolicy throttles calls per bucket from what the tenant reports:
// Retry-After and X-RateLimit-* headers, and 429 responses. A 429 without a
// Retry-After hint backs off exponentially from InitialBackoff to MaxBackoff.
type AdaptivePolicy struct {
	Store          StateStore
	Now            func() time.Time
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

func NewAdaptivePolicy(store StateStore) *AdaptivePolicy {
	return &AdaptivePolicy{
		Store:          store,
		Now:            time.Now,
		InitialBackoff: defaultInitialBackoff,
		MaxBackoff:     defaultMaxBackoff,
	}
}

// BeforeCall rejects a call while the bucket is inside a throttle window or
// its quota is spent until the reset time.
func (p *AdaptivePolicy) BeforeCall(ctx context.Context, key Key) error {
	if p == nil || p.Store == nil {
		return nil
	}
	key = key.Normalized()
	state, err := p.Store.Get(ctx, key)
	if errors.Is(err, ErrStateNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if wait, blocked := state.blockedFor(p.now()); blocked {
		return ThrottledError{Tenant: key.Tenant, Bucket: key.Bucket, RetryAfter: wait}
	}
	return nil
}

// AfterCall folds the response quota into the bucket state. A 429 or a spent
// quota opens a throttle window; any other response closes it.
func (p *AdaptivePolicy) AfterCall(ctx context.Context, key Key, res transport.Response) error {
	if p == nil || p.Store == nil {
		return nil
	}
	key = key.Normalized()
	now := p.now()
	state, err := p.Store.Get(ctx, key)
	switch {
	case errors.Is(err, ErrStateNotFound):
		state = State{Key: key}
	case err != nil:
		return err
	}

	q := readQuota(res.Headers, now)
	if q.limit != nil {
		state.Limit = *q.limit
	}
	if q.remaining != nil {
		state.Remaining = *q.remaining
	}
	if q.resetAt != nil {
		state.ResetAt = q.resetAt
	}
	state.RetryAfter = q.retryAfter
	state.LastStatus = res.StatusCode
	state.UpdatedAt = now
	state.Metadata = cloneMetadata(state.Metadata)
	for name, value := range res.Metadata {
		state.Metadata[name] = value
	}

	throttled := res.StatusCode == http.StatusTooManyRequests ||
		(res.StatusCode < http.StatusInternalServerError && q.exhausted(state.Remaining))
	if !throttled {
		state.Attempts = 0
		state.ThrottledUntil = nil
		return p.Store.Upsert(ctx, state)
	}

	state.Attempts++
	delay := p.backoff(state.Attempts)
	if q.retryAfter != nil {
		delay = *q.retryAfter
	}
	until := now.Add(delay)
	state.ThrottledUntil = &until
	return p.Store.Upsert(ctx, state)
}

func (p *AdaptivePolicy) now() time.Time {
	if p.Now != nil {
		return p.Now().UTC()
	}
	return time.Now().UTC()
}

// backoff doubles from InitialBackoff for every consecutive throttled
// attempt, capped at MaxBackoff.
func (p *AdaptivePolicy) backoff(attempt int) time.Duration {
	delay := p.InitialBackoff
	if delay <= 0 {
		delay = defaultInitialBackoff
	}
	ceiling := p.MaxBackoff
	if ceiling <= 0 {
		ceiling = defaultMaxBackoff
	}
	for i := 1; i < attempt && delay < ceiling; i++ {
		delay *= 2
	}
	return min(delay, ceiling)
}

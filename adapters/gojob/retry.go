package gojob

import (
	"strings"
	"time"

	"github.com/goliatone/go-access-proxy/core"
)

// RetryPolicy bounds how often and how late a provisioning job is requeued.
type RetryPolicy struct {
	MaxAttempts     int
	MaxDelay        time.Duration
	DeadLetterOnMax bool
}

// ProvisioningRetryPolicy is used for account create and update jobs: three
// deliveries, at most five minutes apart, then dead-letter.
func ProvisioningRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, MaxDelay: 5 * time.Minute, DeadLetterOnMax: true}
}

// Apply returns the nack actually sent for the given delivery attempt. A nack
// always either requeues or dead-letters, never both.
func (p RetryPolicy) Apply(opts core.JobNackOptions, attempt int) core.JobNackOptions {
	opts.Reason = strings.TrimSpace(opts.Reason)
	opts.Delay = max(opts.Delay, 0)
	if p.MaxDelay > 0 {
		opts.Delay = min(opts.Delay, p.MaxDelay)
	}

	exhausted := p.MaxAttempts > 0 && attempt >= p.MaxAttempts
	switch {
	case opts.DeadLetter:
		opts.Requeue = false
	case exhausted && p.DeadLetterOnMax:
		opts.Requeue, opts.DeadLetter = false, true
	default:
		opts.Requeue = true
	}
	return opts
}

package gojob

import (
	"context"
	"errors"

	"github.com/goliatone/go-access-proxy/core"
	"github.com/goliatone/go-job/queue"
)

var errNoDelivery = errors.New("gojob: delivery is not configured")

// DequeuerAdapter hands go-job deliveries to the provisioning worker, with
// every nack routed through policy.
type DequeuerAdapter struct {
	dequeuer queue.Dequeuer
	policy   RetryPolicy
}

func NewDequeuerAdapter(dequeuer queue.Dequeuer, policy RetryPolicy) *DequeuerAdapter {
	return &DequeuerAdapter{dequeuer: dequeuer, policy: policy}
}

// Dequeue returns nil, nil when the queue is empty.
func (a *DequeuerAdapter) Dequeue(ctx context.Context) (core.JobDelivery, error) {
	if a == nil || a.dequeuer == nil {
		return nil, errors.New("gojob: dequeuer is not configured")
	}
	delivery, err := a.dequeuer.Dequeue(ctx)
	if err != nil || delivery == nil {
		return nil, err
	}
	return &DeliveryAdapter{delivery: delivery, policy: a.policy}, nil
}

type DeliveryAdapter struct {
	delivery queue.Delivery
	policy   RetryPolicy
}

func NewDeliveryAdapter(delivery queue.Delivery, policy RetryPolicy) *DeliveryAdapter {
	return &DeliveryAdapter{delivery: delivery, policy: policy}
}

func (d *DeliveryAdapter) Message() *core.JobExecutionMessage {
	if d == nil || d.delivery == nil {
		return nil
	}
	return fromQueueMessage(d.delivery.Message())
}

func (d *DeliveryAdapter) Ack(ctx context.Context) error {
	if d == nil || d.delivery == nil {
		return errNoDelivery
	}
	return d.delivery.Ack(ctx)
}

// Nack treats the delivery as a first attempt.
func (d *DeliveryAdapter) Nack(ctx context.Context, opts core.JobNackOptions) error {
	return d.NackForAttempt(ctx, opts, 0)
}

func (d *DeliveryAdapter) NackForAttempt(ctx context.Context, opts core.JobNackOptions, attempt int) error {
	if d == nil || d.delivery == nil {
		return errNoDelivery
	}
	applied := d.policy.Apply(opts, attempt)
	return d.delivery.Nack(ctx, queue.NackOptions{
		Delay:      applied.Delay,
		Requeue:    applied.Requeue,
		DeadLetter: applied.DeadLetter,
		Reason:     applied.Reason,
	})
}

var (
	_ core.JobDelivery   = (*DeliveryAdapter)(nil)
	_ core.AttemptNacker = (*DeliveryAdapter)(nil)
	_ core.JobDequeuer   = (*DequeuerAdapter)(nil)
)

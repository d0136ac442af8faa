package accessproxy

import (
	gojobadapter "github.com/goliatone/go-access-proxy/adapters/gojob"
	"github.com/goliatone/go-access-proxy/core"
	"github.com/goliatone/go-job/queue"
)

type (
	ProvisioningWorker        = core.ProvisioningWorker
	ProvisioningWorkerOptions = core.ProvisioningWorkerOptions
	ProvisioningEnqueuer      = gojobadapter.EnqueuerAdapter
)

// NewProvisioningEnqueuer schedules account create and update jobs on a
// go-job queue.
func NewProvisioningEnqueuer(enqueuer queue.Enqueuer) *ProvisioningEnqueuer {
	return gojobadapter.NewEnqueuerAdapter(enqueuer)
}

// NewQueuedProvisioningWorker consumes account jobs from a go-job queue.
// Failed deliveries are requeued under the provisioning retry policy and
// dead-lettered once it is exhausted.
func NewQueuedProvisioningWorker(
	service *Service,
	dequeuer queue.Dequeuer,
	options ProvisioningWorkerOptions,
) *ProvisioningWorker {
	policy := gojobadapter.ProvisioningRetryPolicy()
	if options.MaxAttempts <= 0 {
		options.MaxAttempts = policy.MaxAttempts
	}
	adapter := gojobadapter.NewDequeuerAdapter(dequeuer, policy)
	return core.NewProvisioningWorker(service, adapter, options)
}

package sqlstore

import (
	"github.com/goliatone/go-access-proxy/core"
	"github.com/goliatone/go-access-proxy/ratelimit"
)

var (
	_ core.AccessRequestLedger = (*AccessRequestLedgerStore)(nil)
	_ core.AccessRequestLedger = (*CachedLedgerReader)(nil)
	_ ratelimit.StateStore     = (*RateLimitStateStore)(nil)
	_ ratelimit.StateStore     = (*CachedRateLimitStateStore)(nil)
)

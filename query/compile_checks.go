package query

import (
	"github.com/goliatone/go-access-proxy/core"
	gocmd "github.com/goliatone/go-command"
)

var (
	_ gocmd.Querier[ListEntitlementsMessage, []core.EntitlementView]       = (*ListEntitlementsQuery)(nil)
	_ gocmd.Querier[ResolveIdentityMessage, core.Identity]                 = (*ResolveIdentityQuery)(nil)
	_ gocmd.Querier[ListAccessRequestsMessage, []core.AccessRequestRecord] = (*ListAccessRequestsQuery)(nil)

	_ EntitlementLister          = (*core.Service)(nil)
	_ IdentityResolver           = (*core.Service)(nil)
	_ AccessRequestHistoryReader = (*core.Service)(nil)
)

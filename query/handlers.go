package query

import (
	"context"
	"strings"

	"github.com/goliatone/go-access-proxy/core"
)

type EntitlementLister interface {
	ListEntitlements(ctx context.Context) ([]core.EntitlementView, error)
}

type IdentityResolver interface {
	ResolveIdentityForCreate(ctx context.Context, name string) (core.Identity, error)
	ResolveIdentityForUpdate(ctx context.Context, id string) (core.Identity, error)
}

type AccessRequestHistoryReader interface {
	AccessRequestHistory(ctx context.Context, identityID string, limit int) ([]core.AccessRequestRecord, error)
}

type ListEntitlementsQuery struct {
	lister EntitlementLister
}

func NewListEntitlementsQuery(lister EntitlementLister) *ListEntitlementsQuery {
	return &ListEntitlementsQuery{lister: lister}
}

func (q *ListEntitlementsQuery) Query(ctx context.Context, _ ListEntitlementsMessage) ([]core.EntitlementView, error) {
	if q == nil || q.lister == nil {
		return nil, core.MissingDependency("query: entitlement lister is required")
	}
	return q.lister.ListEntitlements(ctx)
}

type ResolveIdentityQuery struct {
	resolver IdentityResolver
}

func NewResolveIdentityQuery(resolver IdentityResolver) *ResolveIdentityQuery {
	return &ResolveIdentityQuery{resolver: resolver}
}

func (q *ResolveIdentityQuery) Query(ctx context.Context, msg ResolveIdentityMessage) (core.Identity, error) {
	if q == nil || q.resolver == nil {
		return core.Identity{}, core.MissingDependency("query: identity resolver is required")
	}
	if name := strings.TrimSpace(msg.Name); name != "" {
		return q.resolver.ResolveIdentityForCreate(ctx, name)
	}
	return q.resolver.ResolveIdentityForUpdate(ctx, strings.TrimSpace(msg.ID))
}

type ListAccessRequestsQuery struct {
	reader AccessRequestHistoryReader
}

func NewListAccessRequestsQuery(reader AccessRequestHistoryReader) *ListAccessRequestsQuery {
	return &ListAccessRequestsQuery{reader: reader}
}

func (q *ListAccessRequestsQuery) Query(
	ctx context.Context,
	msg ListAccessRequestsMessage,
) ([]core.AccessRequestRecord, error) {
	if q == nil || q.reader == nil {
		return nil, core.MissingDependency("query: access request history reader is required")
	}
	return q.reader.AccessRequestHistory(ctx, msg.IdentityID, msg.limit())
}

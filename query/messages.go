package query

import (
	"strings"

	"github.com/goliatone/go-access-proxy/core"
)

const (
	TypeListEntitlements   = "accessproxy.query.entitlements.list"
	TypeResolveIdentity    = "accessproxy.query.identity.resolve"
	TypeListAccessRequests = "accessproxy.query.access_requests.list"

	DefaultAccessRequestLimit = 50
	MaxAccessRequestLimit     = 500
)

type ListEntitlementsMessage struct{}

func (ListEntitlementsMessage) Type() string { return TypeListEntitlements }

func (ListEntitlementsMessage) Validate() error { return nil }

// ResolveIdentityMessage looks an identity up by exact name when Name is set
// (retrying while it is absent) or directly by ID otherwise.
type ResolveIdentityMessage struct {
	Name string
	ID   string
}

func (ResolveIdentityMessage) Type() string { return TypeResolveIdentity }

func (m ResolveIdentityMessage) Validate() error {
	name := strings.TrimSpace(m.Name)
	id := strings.TrimSpace(m.ID)
	if name == "" && id == "" {
		return core.InvalidField("query", "identity", "identity name or id is required")
	}
	if name != "" && id != "" {
		return core.InvalidField("query", "identity", "identity name and id are mutually exclusive")
	}
	return nil
}

type ListAccessRequestsMessage struct {
	IdentityID string
	Limit      int
}

func (ListAccessRequestsMessage) Type() string { return TypeListAccessRequests }

func (m ListAccessRequestsMessage) Validate() error {
	if strings.TrimSpace(m.IdentityID) == "" {
		return core.InvalidField("query", "identity_id", "identity id is required")
	}
	if m.Limit < 0 {
		return core.InvalidField("query", "limit", "limit must be >= 0")
	}
	if m.Limit > MaxAccessRequestLimit {
		return core.InvalidField("query", "limit", "limit exceeds maximum")
	}
	return nil
}

func (m ListAccessRequestsMessage) limit() int {
	if m.Limit <= 0 {
		return DefaultAccessRequestLimit
	}
	return m.Limit
}

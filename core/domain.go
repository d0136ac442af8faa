package core

import (
	"fmt"
	"strings"
)

const (
	UnknownSourceName     = "Unknown Source"
	EntitlementObjectType = "entitlement"

	AccountAttributeID           = "id"
	AccountAttributeName         = "name"
	AccountAttributeEntitlements = "entitlements"
	EntitlementAttributeDesc     = "description"
)

type Identity struct {
	ID         string
	Name       string
	Attributes map[string]any
}

type SourceRef struct {
	ID   string
	Name string
}

type Entitlement struct {
	ID          string
	Name        string
	Source      *SourceRef
	Requestable bool
	Attributes  map[string]any
}

// SourceName returns the owning source name or an empty string when the
// document carries no source reference.
func (e Entitlement) SourceName() string {
	if e.Source == nil {
		return ""
	}
	return strings.TrimSpace(e.Source.Name)
}

type AccessRequestType string

const (
	AccessRequestGrant  AccessRequestType = "GRANT_ACCESS"
	AccessRequestRevoke AccessRequestType = "REVOKE_ACCESS"
)

func (t AccessRequestType) Validate() error {
	switch t {
	case AccessRequestGrant, AccessRequestRevoke:
		return nil
	default:
		return fmt.Errorf("core: invalid access request type %q", string(t))
	}
}

type AccessRequest struct {
	RequestedFor   string
	RequestType    AccessRequestType
	EntitlementIDs []string
	Comment        string
}

type AccessRequestResponse struct {
	ID     string
	Status string
	Raw    map[string]any
}

type Account struct {
	ID             string
	NativeIdentity string
	Name           string
	SourceID       string
	Disabled       bool
	Attributes     map[string]any
}

// Entitlements returns the entitlement ids recorded on the account's
// attribute bag, accepting either a single id or a list.
func (a Account) Entitlements() []string {
	value, ok := a.Attributes[AccountAttributeEntitlements]
	if !ok || value == nil {
		return []string{}
	}
	normalized, err := ChangeValueFrom(value)
	if err != nil {
		return []string{}
	}
	return normalized.Values()
}

type PublicIdentityConfig struct {
	Attributes map[string]any
}

type JSONPatchOperation struct {
	Op    string `json:"op"`
	Path  string `json:"path"`
	Value any    `json:"value,omitempty"`
}

type AccountView struct {
	Identity   string         `json:"identity"`
	UUID       string         `json:"uuid"`
	Disabled   bool           `json:"disabled,omitempty"`
	Attributes map[string]any `json:"attributes"`
}

type EntitlementView struct {
	Identity   string         `json:"identity"`
	UUID       string         `json:"uuid"`
	Type       string         `json:"type"`
	Attributes map[string]any `json:"attributes"`
}

type IdentityQuery struct {
	Field string
	Value string
}

const (
	IdentityFieldID        = "id"
	IdentityFieldNameExact = "name.exact"
)

// String renders the query in the backend search syntax, e.g. id:2c91.
func (q IdentityQuery) String() string {
	return strings.TrimSpace(q.Field) + ":" + strings.TrimSpace(q.Value)
}

type AccountFilter struct {
	NativeIdentity string
}

type CreateAccountRequest struct {
	Name         string
	Entitlements ChangeValue
	Attributes   map[string]any
}

type UpdateAccountRequest struct {
	IdentityID string
	Changes    []ChangeOperation
}

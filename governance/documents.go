package governance

import (
	"fmt"
	"strings"

	"github.com/goliatone/go-access-proxy/core"
)

type searchQuery struct {
	Query string `json:"query"`
}

type searchRequest struct {
	Indices       []string    `json:"indices"`
	Query         searchQuery `json:"query"`
	Sort          []string    `json:"sort,omitempty"`
	IncludeNested bool        `json:"includeNested"`
	SearchAfter   []string    `json:"searchAfter,omitempty"`
}

type accessRequestItem struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Comment string `json:"comment,omitempty"`
}

type accessRequestBody struct {
	RequestedFor   []string            `json:"requestedFor"`
	RequestType    string              `json:"requestType"`
	RequestedItems []accessRequestItem `json:"requestedItems"`
}

func identityFromDocument(doc map[string]any) core.Identity {
	return core.Identity{
		ID:         stringField(doc, "id"),
		Name:       stringField(doc, "name"),
		Attributes: doc,
	}
}

func entitlementFromDocument(doc map[string]any) core.Entitlement {
	entitlement := core.Entitlement{
		ID:          stringField(doc, "id"),
		Name:        stringField(doc, "name"),
		Requestable: boolField(doc, "requestable"),
		Attributes:  doc,
	}
	if source, ok := doc["source"].(map[string]any); ok {
		entitlement.Source = &core.SourceRef{
			ID:   stringField(source, "id"),
			Name: stringField(source, "name"),
		}
	}
	return entitlement
}

func accountFromDocument(doc map[string]any) core.Account {
	attributes, _ := doc["attributes"].(map[string]any)
	if attributes == nil {
		attributes = map[string]any{}
	}
	return core.Account{
		ID:             stringField(doc, "id"),
		NativeIdentity: stringField(doc, "nativeIdentity"),
		Name:           stringField(doc, "name"),
		SourceID:       stringField(doc, "sourceId"),
		Disabled:       boolField(doc, "disabled"),
		Attributes:     attributes,
	}
}

// accessRequestResponseFromDocument reads the accepted request. The API
// answers with either a bare id or a newRequests list.
func accessRequestResponseFromDocument(doc map[string]any) core.AccessRequestResponse {
	response := core.AccessRequestResponse{
		ID:     stringField(doc, "id"),
		Status: stringField(doc, "status"),
		Raw:    doc,
	}
	if response.ID == "" {
		if requests, ok := doc["newRequests"].([]any); ok && len(requests) > 0 {
			if first, ok := requests[0].(map[string]any); ok {
				if ids, ok := first["accessRequestIds"].([]any); ok && len(ids) > 0 {
					response.ID = fmt.Sprint(ids[0])
				}
			}
		}
	}
	if response.Status == "" && response.ID != "" {
		response.Status = "ACCEPTED"
	}
	if response.Raw == nil {
		response.Raw = map[string]any{}
	}
	return response
}

func stringField(doc map[string]any, key string) string {
	value, ok := doc[key]
	if !ok || value == nil {
		return ""
	}
	switch typed := value.(type) {
	case string:
		return strings.TrimSpace(typed)
	case fmt.Stringer:
		return strings.TrimSpace(typed.String())
	case []any:
		return ""
	default:
		return strings.TrimSpace(fmt.Sprint(typed))
	}
}

func boolField(doc map[string]any, key string) bool {
	value, ok := doc[key].(bool)
	return ok && value
}

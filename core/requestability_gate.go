package core

import (
	"context"
	"strings"
)

var makeRequestablePatch = []JSONPatchOperation{
	{Op: "replace", Path: "/requestable", Value: true},
}

// RequestabilityGate flips an entitlement to requestable before it is used in
// a grant. The change is never rolled back.
type RequestabilityGate struct {
	reader  EntitlementReader
	patcher EntitlementPatcher
	logger  Logger
}

func NewRequestabilityGate(reader EntitlementReader, patcher EntitlementPatcher, logger Logger) *RequestabilityGate {
	return &RequestabilityGate{reader: reader, patcher: patcher, logger: logger}
}

// EnsureRequestable reports whether a patch was issued.
func (g *RequestabilityGate) EnsureRequestable(ctx context.Context, entitlementID string) (bool, error) {
	if g == nil || g.reader == nil || g.patcher == nil {
		return false, badInputError("core: requestability gate is not configured", nil)
	}
	entitlementID = strings.TrimSpace(entitlementID)
	if entitlementID == "" {
		return false, badInputError("core: entitlement id is required", map[string]any{
			"operation": "ensure_requestable",
		})
	}

	entitlement, err := g.reader.GetEntitlement(ctx, entitlementID)
	if err != nil {
		return false, UpstreamReadError(err, "get_entitlement", map[string]any{"entitlement_id": entitlementID})
	}
	if entitlement.Requestable {
		g.debug(ctx, "entitlement already requestable", entitlementID)
		return false, nil
	}

	g.debug(ctx, "marking entitlement requestable", entitlementID)
	ops := append([]JSONPatchOperation(nil), makeRequestablePatch...)
	if _, err := g.patcher.PatchEntitlement(ctx, entitlementID, ops); err != nil {
		return false, UpstreamRequestError(err, "patch_entitlement", map[string]any{"entitlement_id": entitlementID})
	}
	return true, nil
}

func (g *RequestabilityGate) debug(ctx context.Context, message string, entitlementID string) {
	if g.logger == nil {
		return
	}
	g.logger.WithContext(ctx).Debug(message, "entitlement_id", entitlementID)
}

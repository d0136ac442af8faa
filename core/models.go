package core

import "strings"

// BuildEntitlementView projects an entitlement into the proxy catalog shape.
func BuildEntitlementView(entitlement Entitlement) EntitlementView {
	return EntitlementView{
		Identity: entitlement.ID,
		UUID:     entitlement.Name,
		Type:     EntitlementObjectType,
		Attributes: map[string]any{
			AccountAttributeID:       entitlement.ID,
			AccountAttributeName:     entitlement.Name,
			EntitlementAttributeDesc: EntitlementDescription(entitlement),
		},
	}
}

func EntitlementDescription(entitlement Entitlement) string {
	source := entitlement.SourceName()
	if source == "" {
		source = UnknownSourceName
	}
	return "Proxy entitlement for " + source
}

// BuildAccountView assembles the virtual account for an identity. The
// entitlement list is copied so callers can reuse their slice.
func BuildAccountView(identity Identity, entitlements []string) AccountView {
	ids := append([]string{}, entitlements...)
	return AccountView{
		Identity: identity.ID,
		UUID:     identity.Name,
		Attributes: map[string]any{
			AccountAttributeID:           identity.ID,
			AccountAttributeName:         identity.Name,
			AccountAttributeEntitlements: ids,
		},
	}
}

// MergeEntitlements appends add to existing and drops every id present in
// remove. Removal wins over an add of the same id and duplicates are kept.
func MergeEntitlements(existing, add, remove []string) []string {
	removed := make(map[string]struct{}, len(remove))
	for _, id := range remove {
		removed[strings.TrimSpace(id)] = struct{}{}
	}
	merged := make([]string, 0, len(existing)+len(add))
	for _, group := range [][]string{existing, add} {
		for _, id := range group {
			if _, ok := removed[strings.TrimSpace(id)]; ok {
				continue
			}
			merged = append(merged, id)
		}
	}
	return merged
}

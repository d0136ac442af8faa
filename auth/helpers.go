package auth

import (
	"slices"
	"strings"
)

// scopeSet returns the distinct, non-blank scopes in sorted order. Scope
// names compare case-insensitively; the first spelling seen is kept.
func scopeSet(scopes []string) []string {
	out := []string{}
	for _, scope := range scopes {
		scope = strings.TrimSpace(scope)
		if scope == "" {
			continue
		}
		if slices.ContainsFunc(out, func(existing string) bool { return strings.EqualFold(existing, scope) }) {
			continue
		}
		out = append(out, scope)
	}
	slices.Sort(out)
	return out
}

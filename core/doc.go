// Package core contains the access proxy domain contracts, entities, and the
// provisioning orchestration: identity resolution contracts, the entitlement
// requestability gate, access request submission with its retry policy, and
// the account change-set reducer. Transport and governance API adapters
// depend on this package; core must not depend on them.
package core

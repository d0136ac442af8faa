package sqlstore

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/goliatone/go-access-proxy/core"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
)

const (
	ledgerCacheKeyPrefix = "accessproxy::access_requests::v1"

	// CachedLedgerWindow is the number of newest records cached per identity.
	// Larger limits bypass the cache.
	CachedLedgerWindow = 500
)

// CachedLedgerReader serves ListByIdentity from a read-through cache keyed by
// identity and drops that identity's entry whenever a record is written.
type CachedLedgerReader struct {
	base  core.AccessRequestLedger
	cache repositorycache.CacheService
}

func NewCachedLedgerReader(
	base core.AccessRequestLedger,
	cacheService repositorycache.CacheService,
) (*CachedLedgerReader, error) {
	if base == nil {
		return nil, fmt.Errorf("sqlstore: base access request ledger is required")
	}
	if cacheService == nil {
		return nil, fmt.Errorf("sqlstore: ledger cache service is required")
	}
	return &CachedLedgerReader{base: base, cache: cacheService}, nil
}

// LedgerCacheKey returns accessproxy::access_requests::v1::<identity> with the
// identity URL-path escaped.
func LedgerCacheKey(identityID string) (string, error) {
	trimmed := strings.TrimSpace(identityID)
	if trimmed == "" {
		return "", fmt.Errorf("sqlstore: identity id is required")
	}
	return ledgerCacheKeyPrefix + "::" + url.PathEscape(trimmed), nil
}

func (r *CachedLedgerReader) Record(
	ctx context.Context,
	entry core.AccessRequestRecord,
) (core.AccessRequestRecord, error) {
	if r == nil || r.base == nil || r.cache == nil {
		return core.AccessRequestRecord{}, fmt.Errorf("sqlstore: cached ledger reader is not configured")
	}
	recorded, err := r.base.Record(ctx, entry)
	if err != nil {
		return core.AccessRequestRecord{}, err
	}
	cacheKey, err := LedgerCacheKey(recorded.IdentityID)
	if err != nil {
		return recorded, err
	}
	if err := r.cache.Delete(ctx, cacheKey); err != nil {
		return recorded, err
	}
	return recorded, nil
}

func (r *CachedLedgerReader) ListByIdentity(
	ctx context.Context,
	identityID string,
	limit int,
) ([]core.AccessRequestRecord, error) {
	if r == nil || r.base == nil || r.cache == nil {
		return nil, fmt.Errorf("sqlstore: cached ledger reader is not configured")
	}
	if limit <= 0 {
		limit = DefaultLedgerListLimit
	}
	identityID = strings.TrimSpace(identityID)
	if limit > CachedLedgerWindow {
		return r.base.ListByIdentity(ctx, identityID, limit)
	}
	cacheKey, err := LedgerCacheKey(identityID)
	if err != nil {
		return nil, err
	}

	records, err := repositorycache.GetOrFetch(ctx, r.cache, cacheKey, func(ctx context.Context) ([]core.AccessRequestRecord, error) {
		return r.base.ListByIdentity(ctx, identityID, CachedLedgerWindow)
	})
	if err != nil {
		return nil, err
	}
	if len(records) > limit {
		records = records[:limit]
	}
	return cloneLedgerRecords(records), nil
}

func cloneLedgerRecords(records []core.AccessRequestRecord) []core.AccessRequestRecord {
	out := make([]core.AccessRequestRecord, 0, len(records))
	for _, record := range records {
		record.EntitlementIDs = append([]string(nil), record.EntitlementIDs...)
		out = append(out, record)
	}
	return out
}

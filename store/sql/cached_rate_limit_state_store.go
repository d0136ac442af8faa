package sqlstore

import (
	"context"
	"fmt"
	"net/url"

	"github.com/goliatone/go-access-proxy/ratelimit"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
)

const rateLimitCacheKeyPrefix = "accessproxy::ratelimit_state::v2"

// CachedRateLimitStateStore answers BeforeCall checks from a short-lived
// cache and drops a bucket's entry whenever AfterCall writes it.
type CachedRateLimitStateStore struct {
	base  ratelimit.StateStore
	cache repositorycache.CacheService
}

func NewCachedRateLimitStateStore(
	base ratelimit.StateStore,
	cacheService repositorycache.CacheService,
) (*CachedRateLimitStateStore, error) {
	switch {
	case base == nil:
		return nil, fmt.Errorf("sqlstore: base rate-limit state store is required")
	case cacheService == nil:
		return nil, fmt.Errorf("sqlstore: rate-limit cache service is required")
	}
	return &CachedRateLimitStateStore{base: base, cache: cacheService}, nil
}

// RateLimitStateCacheKey is the cache entry for a bucket:
// accessproxy::ratelimit_state::v2::<tenant>/<bucket>, path escaped.
func RateLimitStateCacheKey(key ratelimit.Key) (string, error) {
	key, err := rateLimitKey(key)
	if err != nil {
		return "", err
	}
	return rateLimitCacheKeyPrefix + "::" + url.PathEscape(key.Tenant) + "/" + url.PathEscape(key.Bucket), nil
}

func (s *CachedRateLimitStateStore) Get(ctx context.Context, key ratelimit.Key) (ratelimit.State, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return ratelimit.State{}, fmt.Errorf("sqlstore: cached rate-limit state store is not configured")
	}
	cacheKey, err := RateLimitStateCacheKey(key)
	if err != nil {
		return ratelimit.State{}, err
	}
	state, err := repositorycache.GetOrFetch(ctx, s.cache, cacheKey, func(ctx context.Context) (ratelimit.State, error) {
		return s.base.Get(ctx, key.Normalized())
	})
	if err != nil {
		return ratelimit.State{}, err
	}
	return state.Clone(), nil
}

func (s *CachedRateLimitStateStore) Upsert(ctx context.Context, state ratelimit.State) error {
	if s == nil || s.base == nil || s.cache == nil {
		return fmt.Errorf("sqlstore: cached rate-limit state store is not configured")
	}
	cacheKey, err := RateLimitStateCacheKey(state.Key)
	if err != nil {
		return err
	}
	if err := s.base.Upsert(ctx, state.Clone()); err != nil {
		return err
	}
	return s.cache.Delete(ctx, cacheKey)
}

package sqlstore

import (
	"fmt"

	"github.com/goliatone/go-access-proxy/core"
	"github.com/goliatone/go-access-proxy/ratelimit"
	persistence "github.com/goliatone/go-persistence-bun"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
	"github.com/uptrace/bun"
)

// RepositoryFactory builds the SQL backed stores over one bun database. When a
// cache service is attached, reads are served through the cached decorators.
type RepositoryFactory struct {
	db    *bun.DB
	cache repositorycache.CacheService

	ledgerStore         *AccessRequestLedgerStore
	rateLimitStateStore *RateLimitStateStore
	ledger              core.AccessRequestLedger
	stateStore          ratelimit.StateStore
}

type FactoryOption func(*RepositoryFactory)

// WithCacheService enables read-through caching for ledger and rate-limit reads.
func WithCacheService(cacheService repositorycache.CacheService) FactoryOption {
	return func(f *RepositoryFactory) {
		f.cache = cacheService
	}
}

func NewRepositoryFactoryFromPersistence(client *persistence.Client, opts ...FactoryOption) (*RepositoryFactory, error) {
	if client == nil {
		return nil, fmt.Errorf("sqlstore: persistence client is required")
	}
	return newRepositoryFactory(client, opts...)
}

func NewRepositoryFactoryFromDB(db *bun.DB, opts ...FactoryOption) (*RepositoryFactory, error) {
	return newRepositoryFactory(db, opts...)
}

func newRepositoryFactory(candidate any, opts ...FactoryOption) (*RepositoryFactory, error) {
	db, err := resolveBunDB(candidate)
	if err != nil {
		return nil, err
	}
	factory := &RepositoryFactory{db: db}
	for _, opt := range opts {
		if opt != nil {
			opt(factory)
		}
	}
	if err := factory.initStores(); err != nil {
		return nil, err
	}
	return factory, nil
}

func (f *RepositoryFactory) DB() *bun.DB {
	if f == nil {
		return nil
	}
	return f.db
}

// AccessRequestLedger returns the ledger, cached when a cache service is set.
func (f *RepositoryFactory) AccessRequestLedger() core.AccessRequestLedger {
	if f == nil {
		return nil
	}
	return f.ledger
}

// RateLimitStateStore returns the rate-limit state store, cached when a cache
// service is set.
func (f *RepositoryFactory) RateLimitStateStore() ratelimit.StateStore {
	if f == nil {
		return nil
	}
	return f.stateStore
}

func (f *RepositoryFactory) initStores() error {
	ledgerStore, err := NewAccessRequestLedgerStore(f.db)
	if err != nil {
		return err
	}
	rateLimitStateStore, err := NewRateLimitStateStore(f.db)
	if err != nil {
		return err
	}
	f.ledgerStore = ledgerStore
	f.rateLimitStateStore = rateLimitStateStore
	f.ledger = ledgerStore
	f.stateStore = rateLimitStateStore

	if f.cache == nil {
		return nil
	}
	cachedLedger, err := NewCachedLedgerReader(ledgerStore, f.cache)
	if err != nil {
		return err
	}
	cachedState, err := NewCachedRateLimitStateStore(rateLimitStateStore, f.cache)
	if err != nil {
		return err
	}
	f.ledger = cachedLedger
	f.stateStore = cachedState
	return nil
}

func resolveBunDB(candidate any) (*bun.DB, error) {
	switch typed := candidate.(type) {
	case nil:
		return nil, fmt.Errorf("sqlstore: persistence client is required")
	case *bun.DB:
		if typed == nil {
			return nil, fmt.Errorf("sqlstore: bun db is required")
		}
		return typed, nil
	case interface{ DB() *bun.DB }:
		db := typed.DB()
		if db == nil {
			return nil, fmt.Errorf("sqlstore: persistence client returned nil bun db")
		}
		return db, nil
	default:
		return nil, fmt.Errorf("sqlstore: unsupported persistence client type %T", candidate)
	}
}

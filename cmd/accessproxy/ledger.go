package main

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	accessmigrations "github.com/goliatone/go-access-proxy/migrations"
	sqlstore "github.com/goliatone/go-access-proxy/store/sql"
	persistence "github.com/goliatone/go-persistence-bun"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/schema"
)

const ledgerCacheTTL = 30 * time.Second

type ledgerPersistenceConfig struct {
	driver string
	dsn    string
	debug  bool
}

func (c ledgerPersistenceConfig) GetDebug() bool {
	return c.debug
}

func (c ledgerPersistenceConfig) GetDriver() string {
	return c.driver
}

func (c ledgerPersistenceConfig) GetServer() string {
	return c.dsn
}

func (c ledgerPersistenceConfig) GetPingTimeout() time.Duration {
	return 5 * time.Second
}

func (c ledgerPersistenceConfig) GetOtelIdentifier() string {
	return "accessproxy-ledger"
}

// openLedger connects to the ledger database, applies the embedded schema for
// its dialect and returns cached SQL stores over it.
func openLedger(ctx context.Context, driver string, dsn string, debug bool) (*sqlstore.RepositoryFactory, func() error, error) {
	if strings.TrimSpace(driver) == "" {
		driver = "sqlite3"
	}
	if strings.TrimSpace(dsn) == "" {
		return nil, nil, fmt.Errorf("accessproxy: ledger dsn is required")
	}
	source, err := accessmigrations.ForDriver(driver)
	if err != nil {
		return nil, nil, err
	}

	var dialect schema.Dialect = sqlitedialect.New()
	if source.Dialect == accessmigrations.DialectPostgres {
		dialect = pgdialect.New()
	}
	driver = source.Dialect.SQLDriver()

	sqlDB, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("accessproxy: open ledger database: %w", err)
	}
	if source.Dialect == accessmigrations.DialectSQLite {
		sqlDB.SetMaxOpenConns(1)
	}

	client, err := persistence.New(ledgerPersistenceConfig{driver: driver, dsn: dsn, debug: debug}, sqlDB, dialect)
	if err != nil {
		_ = sqlDB.Close()
		return nil, nil, fmt.Errorf("accessproxy: ledger persistence client: %w", err)
	}
	closeFn := func() error { return client.Close() }

	client.RegisterSQLMigrations(source.FS)
	if err := client.Migrate(ctx); err != nil {
		_ = closeFn()
		return nil, nil, fmt.Errorf("accessproxy: migrate ledger: %w", err)
	}

	cacheConfig := repositorycache.DefaultConfig()
	cacheConfig.TTL = ledgerCacheTTL
	cacheService, err := repositorycache.NewCacheService(cacheConfig)
	if err != nil {
		_ = closeFn()
		return nil, nil, err
	}
	factory, err := sqlstore.NewRepositoryFactoryFromPersistence(client, sqlstore.WithCacheService(cacheService))
	if err != nil {
		_ = closeFn()
		return nil, nil, err
	}
	return factory, closeFn, nil
}

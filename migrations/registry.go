// Package migrations exposes the embedded access request ledger and
// rate-limit state schema, one migration set per SQL dialect.
package migrations

import (
	"fmt"
	"io/fs"
	"path"
	"slices"
	"strings"

	accessproxy "github.com/goliatone/go-access-proxy"
)

const rootDir = "data/sql/migrations"

// Dialect names a migration set. Postgres files sit at the root of
// data/sql/migrations and the sqlite variants under sqlite/.
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

// DialectForDriver maps a database/sql driver name onto its dialect.
func DialectForDriver(driver string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "sqlite3", "sqlite":
		return DialectSQLite, nil
	case "postgres", "postgresql", "pq", "pgx":
		return DialectPostgres, nil
	default:
		return "", fmt.Errorf("migrations: unsupported driver %q", driver)
	}
}

// SQLDriver is the database/sql driver registered for the dialect.
func (d Dialect) SQLDriver() string {
	if d == DialectSQLite {
		return "sqlite3"
	}
	return "postgres"
}

// Source is the migration set of one dialect, rooted so that its
// NNNNN_name.up.sql and .down.sql files sit at the top level.
type Source struct {
	Dialect Dialect
	Path    string
	FS      fs.FS
}

// Sources returns the embedded postgres and sqlite sets.
func Sources() ([]Source, error) {
	return sourcesFrom(accessproxy.GetMigrationsFS())
}

// ForDriver returns the embedded set matching a database/sql driver name.
func ForDriver(driver string) (Source, error) {
	dialect, err := DialectForDriver(driver)
	if err != nil {
		return Source{}, err
	}
	sources, err := Sources()
	if err != nil {
		return Source{}, err
	}
	idx := slices.IndexFunc(sources, func(s Source) bool { return s.Dialect == dialect })
	if idx < 0 {
		return Source{}, fmt.Errorf("migrations: no %s migrations embedded", dialect)
	}
	return sources[idx], nil
}

func sourcesFrom(root fs.FS) ([]Source, error) {
	sources := []Source{
		{Dialect: DialectPostgres, Path: rootDir},
		{Dialect: DialectSQLite, Path: path.Join(rootDir, "sqlite")},
	}
	for i := range sources {
		sub, err := fs.Sub(root, sources[i].Path)
		if err != nil {
			return nil, fmt.Errorf("migrations: open %s: %w", sources[i].Path, err)
		}
		if err := checkPairs(sub); err != nil {
			return nil, fmt.Errorf("migrations: %s: %w", sources[i].Path, err)
		}
		sources[i].FS = sub
	}
	return sources, nil
}

// checkPairs requires at least one up migration and a down file for each.
func checkPairs(fsys fs.FS) error {
	ups, err := fs.Glob(fsys, "*.up.sql")
	if err != nil {
		return err
	}
	if len(ups) == 0 {
		return fmt.Errorf("no *.up.sql files")
	}
	for _, up := range ups {
		down := strings.TrimSuffix(up, ".up.sql") + ".down.sql"
		if _, err := fs.Stat(fsys, down); err != nil {
			return fmt.Errorf("%s has no matching %s", up, down)
		}
	}
	return nil
}

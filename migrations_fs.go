package accessproxy

import (
	"embed"
	"io/fs"
)

// Postgres ledger and rate-limit tables live at the top level; the sqlite
// dialect of the same migrations sits in the sqlite subdirectory.
//
//go:embed data/sql/migrations/*.sql data/sql/migrations/sqlite/*.sql
var schemaFS embed.FS

func GetMigrationsFS() fs.FS {
	return schemaFS
}

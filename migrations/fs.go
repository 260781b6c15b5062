package migrations

import (
	"embed"
	"io/fs"
)

// schemaFS holds the key-value store schema for every supported dialect.
// The sqlite variants live under data/sql/migrations/sqlite.
//
//go:embed data/sql/migrations/*.sql data/sql/migrations/sqlite/*.sql
var schemaFS embed.FS

// FS returns the embedded migration tree rooted above data/sql/migrations.
func FS() fs.FS {
	return schemaFS
}

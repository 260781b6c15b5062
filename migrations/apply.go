package migrations

import (
	"context"
	"fmt"
	"io/fs"
	"strings"
)

const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite"

	rootPath = "data/sql/migrations"
)

// Migrator is the subset of a persistence client that can load and run SQL
// migrations.
type Migrator interface {
	RegisterSQLMigrations(migrations ...fs.FS)
	Migrate(ctx context.Context) error
}

// NormalizeDialect maps driver names onto the dialect labels used by the
// migration tree. Unknown names come back lowercased and trimmed.
func NormalizeDialect(value string) string {
	switch dialect := strings.TrimSpace(strings.ToLower(value)); dialect {
	case "postgresql", "pg", "pgx":
		return DialectPostgres
	case "sqlite3":
		return DialectSQLite
	default:
		return dialect
	}
}

// Filesystem returns the migration directory for dialect. Postgres files live
// at the root of the tree and sqlite files in its sqlite/ subdirectory. A
// non-nil source replaces the embedded tree.
func Filesystem(dialect string, source fs.FS) (fs.FS, error) {
	if source == nil {
		source = FS()
	}
	root, err := locateRoot(source)
	if err != nil {
		return nil, err
	}

	var dir fs.FS
	switch NormalizeDialect(dialect) {
	case DialectPostgres:
		dir = root
	case DialectSQLite:
		dir, err = fs.Sub(root, "sqlite")
		if err != nil {
			return nil, fmt.Errorf("migrations: resolve sqlite directory: %w", err)
		}
	default:
		return nil, fmt.Errorf("migrations: unsupported dialect %q", dialect)
	}

	matches, err := fs.Glob(dir, "*.up.sql")
	if err != nil {
		return nil, fmt.Errorf("migrations: glob %s: %w", dialect, err)
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("migrations: no %s *.up.sql files found", NormalizeDialect(dialect))
	}
	return dir, nil
}

type applyOptions struct {
	source fs.FS
}

type ApplyOption func(*applyOptions)

// WithSource runs migrations from source instead of the embedded tree.
func WithSource(source fs.FS) ApplyOption {
	return func(o *applyOptions) {
		o.source = source
	}
}

// Apply registers the migrations for dialect with migrator and runs them.
func Apply(ctx context.Context, migrator Migrator, dialect string, opts ...ApplyOption) error {
	if migrator == nil {
		return fmt.Errorf("migrations: migrator is required")
	}
	options := applyOptions{}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}

	dir, err := Filesystem(dialect, options.source)
	if err != nil {
		return err
	}
	migrator.RegisterSQLMigrations(dir)
	if err := migrator.Migrate(ctx); err != nil {
		return fmt.Errorf("migrations: migrate %s: %w", NormalizeDialect(dialect), err)
	}
	return nil
}

func locateRoot(source fs.FS) (fs.FS, error) {
	if sub, err := fs.Sub(source, rootPath); err == nil {
		if _, statErr := fs.Stat(sub, "."); statErr == nil {
			return sub, nil
		}
	}
	if matches, _ := fs.Glob(source, "*.sql"); len(matches) > 0 {
		return source, nil
	}
	return nil, fmt.Errorf("migrations: %s not found", rootPath)
}

package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"

	persistence "github.com/goliatone/go-persistence-bun"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
	"github.com/iscanabdulhalik/go-esim/core"
	"github.com/iscanabdulhalik/go-esim/migrations"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/schema"
)

// Store owns the persistence client and the key-value store built on it.
type Store struct {
	client *persistence.Client
	kv     core.KeyValueStore
}

type openOptions struct {
	cache      repositorycache.CacheService
	noCache    bool
	skipSchema bool
}

type OpenOption func(*openOptions)

// WithCacheService replaces the default in-process read cache.
func WithCacheService(cacheService repositorycache.CacheService) OpenOption {
	return func(o *openOptions) {
		o.cache = cacheService
	}
}

// WithoutCache makes reads go straight to the database.
func WithoutCache() OpenOption {
	return func(o *openOptions) {
		o.noCache = true
	}
}

// WithoutMigrations skips schema migration on open.
func WithoutMigrations() OpenOption {
	return func(o *openOptions) {
		o.skipSchema = true
	}
}

// Open connects to the configured database, migrates the schema and returns
// a store ready to back the token store.
func Open(ctx context.Context, cfg core.StorageConfig, opts ...OpenOption) (*Store, error) {
	options := openOptions{}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}

	dsn := cfg.GetServer()
	if dsn == "" {
		return nil, fmt.Errorf("sqlstore: storage dsn is required")
	}
	dialectName := migrations.NormalizeDialect(cfg.GetDriver())
	driver, dialect, err := driverFor(dialectName)
	if err != nil {
		return nil, err
	}

	sqlDB, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, core.StoreError(err, "open database failed")
	}
	if dialectName == migrations.DialectSQLite {
		sqlDB.SetMaxOpenConns(1)
	}

	client, err := persistence.New(cfg, sqlDB, dialect)
	if err != nil {
		_ = sqlDB.Close()
		return nil, core.StoreError(err, "create persistence client failed")
	}

	if !options.skipSchema {
		if err := migrations.Apply(ctx, clientMigrator{client: client}, dialectName); err != nil {
			_ = client.Close()
			return nil, core.StoreError(err, "migrate schema failed")
		}
	}

	kv, err := NewKeyValueStoreFromPersistence(client)
	if err != nil {
		_ = client.Close()
		return nil, err
	}

	store := &Store{client: client, kv: kv}
	if options.noCache {
		return store, nil
	}

	cacheService := options.cache
	if cacheService == nil {
		cacheService, err = NewDefaultCacheService()
		if err != nil {
			_ = client.Close()
			return nil, core.StoreError(err, "create kv cache failed")
		}
	}
	cached, err := NewCachedKeyValueStore(kv, cacheService)
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	store.kv = cached
	return store, nil
}

// KeyValueStore returns the store handed to the token store.
func (s *Store) KeyValueStore() core.KeyValueStore {
	if s == nil {
		return nil
	}
	return s.kv
}

func (s *Store) DB() *bun.DB {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.DB()
}

func (s *Store) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Close()
}

// NewKeyValueStoreFromPersistence accepts a *bun.DB or anything exposing one.
func NewKeyValueStoreFromPersistence(candidate any) (*KeyValueStore, error) {
	db, err := resolveBunDB(candidate)
	if err != nil {
		return nil, err
	}
	return NewKeyValueStore(db)
}

// driverFor maps a dialect onto its database/sql driver name and bun dialect.
func driverFor(dialect string) (string, schema.Dialect, error) {
	switch dialect {
	case migrations.DialectSQLite:
		return "sqlite3", sqlitedialect.New(), nil
	case migrations.DialectPostgres:
		return "postgres", pgdialect.New(), nil
	default:
		return "", nil, fmt.Errorf("sqlstore: unsupported storage driver %q", dialect)
	}
}

type clientMigrator struct {
	client *persistence.Client
}

func (m clientMigrator) RegisterSQLMigrations(fsys ...fs.FS) {
	m.client.RegisterSQLMigrations(fsys...)
}

func (m clientMigrator) Migrate(ctx context.Context) error {
	return m.client.Migrate(ctx)
}

func resolveBunDB(candidate any) (*bun.DB, error) {
	switch typed := candidate.(type) {
	case nil:
		return nil, fmt.Errorf("sqlstore: persistence client is required")
	case *bun.DB:
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

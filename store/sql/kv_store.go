package sqlstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/iscanabdulhalik/go-esim/core"
	"github.com/uptrace/bun"
)

// KeyValueStore persists session values in the esim_kv_entries table.
type KeyValueStore struct {
	db   *bun.DB
	repo repository.Repository[*kvRecord]
	now  func() time.Time
}

func NewKeyValueStore(db *bun.DB) (*KeyValueStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*kvRecord](db, kvHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid kv repository wiring: %w", err)
		}
	}
	return &KeyValueStore{
		db:   db,
		repo: repo,
		now:  func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *KeyValueStore) Get(ctx context.Context, key string) (string, bool, error) {
	if err := s.ready(); err != nil {
		return "", false, err
	}
	key, err := normalizeKey(key)
	if err != nil {
		return "", false, err
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("entry_key", "=", key),
		repository.SelectPaginate(1, 0),
	)
	if err != nil {
		return "", false, core.StoreError(err, fmt.Sprintf("read %q failed", key))
	}
	if len(records) == 0 {
		return "", false, nil
	}
	return records[0].Value, true, nil
}

func (s *KeyValueStore) Set(ctx context.Context, key string, value string) error {
	return s.MultiSet(ctx, map[string]string{key: value})
}

// MultiSet writes every pair in one transaction; either all values land or
// none do.
func (s *KeyValueStore) MultiSet(ctx context.Context, values map[string]string) error {
	if err := s.ready(); err != nil {
		return err
	}
	normalized := make(map[string]string, len(values))
	for key, value := range values {
		trimmed, err := normalizeKey(key)
		if err != nil {
			return err
		}
		normalized[trimmed] = value
	}
	if len(normalized) == 0 {
		return nil
	}

	keys := make([]string, 0, len(normalized))
	for key := range normalized {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	now := s.now()
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		for _, key := range keys {
			if err := s.upsert(ctx, tx, key, normalized[key], now); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return core.StoreError(err, fmt.Sprintf("write %s failed", strings.Join(keys, ", ")))
	}
	return nil
}

func (s *KeyValueStore) Remove(ctx context.Context, key string) error {
	return s.MultiRemove(ctx, key)
}

func (s *KeyValueStore) MultiRemove(ctx context.Context, keys ...string) error {
	if err := s.ready(); err != nil {
		return err
	}
	targets := make([]string, 0, len(keys))
	for _, key := range keys {
		if trimmed := strings.TrimSpace(key); trimmed != "" {
			targets = append(targets, trimmed)
		}
	}
	if len(targets) == 0 {
		return nil
	}
	_, err := s.db.NewDelete().
		Model((*kvRecord)(nil)).
		Where("entry_key IN (?)", bun.In(targets)).
		Exec(ctx)
	if err != nil {
		return core.StoreError(err, fmt.Sprintf("remove %s failed", strings.Join(targets, ", ")))
	}
	return nil
}

func (s *KeyValueStore) upsert(ctx context.Context, tx bun.Tx, key string, value string, now time.Time) error {
	result, err := tx.NewUpdate().
		Model((*kvRecord)(nil)).
		Set("entry_value = ?", value).
		Set("updated_at = ?", now).
		Where("entry_key = ?", key).
		Exec(ctx)
	if err != nil {
		return err
	}
	if affected, affectedErr := result.RowsAffected(); affectedErr == nil && affected > 0 {
		return nil
	}

	record := newKVRecord(key, value, now)
	record.ID = uuid.NewString()
	_, err = s.repo.CreateTx(ctx, tx, record)
	return err
}

func (s *KeyValueStore) ready() error {
	if s == nil || s.db == nil || s.repo == nil {
		return fmt.Errorf("sqlstore: kv store is not configured")
	}
	return nil
}

func normalizeKey(key string) (string, error) {
	trimmed := strings.TrimSpace(key)
	if trimmed == "" {
		return "", core.BadInputError("store key is required")
	}
	return trimmed, nil
}

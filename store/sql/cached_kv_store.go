package sqlstore

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	repositorycache "github.com/goliatone/go-repository-cache/cache"
	"github.com/iscanabdulhalik/go-esim/core"
)

const kvCacheKeyPrefix = "go-esim::kv::v1"

// CachedKeyValueStore fronts a KeyValueStore with a read cache. Writes go to
// the base store first and then evict the affected keys.
type CachedKeyValueStore struct {
	base  core.KeyValueStore
	cache repositorycache.CacheService
}

type cachedValue struct {
	Value string
	Found bool
}

func NewCachedKeyValueStore(base core.KeyValueStore, cacheService repositorycache.CacheService) (*CachedKeyValueStore, error) {
	if base == nil {
		return nil, fmt.Errorf("sqlstore: base kv store is required")
	}
	if cacheService == nil {
		return nil, fmt.Errorf("sqlstore: kv cache service is required")
	}
	return &CachedKeyValueStore{base: base, cache: cacheService}, nil
}

// NewDefaultCacheService builds the in-process cache used in front of the
// SQL store.
func NewDefaultCacheService() (repositorycache.CacheService, error) {
	return repositorycache.NewCacheService(repositorycache.DefaultConfig())
}

// KVCacheKey returns go-esim::kv::v1::<key> with the key URL-path escaped.
func KVCacheKey(key string) string {
	return kvCacheKeyPrefix + "::" + url.PathEscape(strings.TrimSpace(key))
}

func (s *CachedKeyValueStore) Get(ctx context.Context, key string) (string, bool, error) {
	if err := s.ready(); err != nil {
		return "", false, err
	}
	key, err := normalizeKey(key)
	if err != nil {
		return "", false, err
	}
	entry, err := repositorycache.GetOrFetch(ctx, s.cache, KVCacheKey(key), func(ctx context.Context) (cachedValue, error) {
		value, found, fetchErr := s.base.Get(ctx, key)
		if fetchErr != nil {
			return cachedValue{}, fetchErr
		}
		return cachedValue{Value: value, Found: found}, nil
	})
	if err != nil {
		return "", false, err
	}
	return entry.Value, entry.Found, nil
}

func (s *CachedKeyValueStore) Set(ctx context.Context, key string, value string) error {
	if err := s.ready(); err != nil {
		return err
	}
	if err := s.base.Set(ctx, key, value); err != nil {
		return err
	}
	return s.evict(ctx, key)
}

func (s *CachedKeyValueStore) Remove(ctx context.Context, key string) error {
	if err := s.ready(); err != nil {
		return err
	}
	if err := s.base.Remove(ctx, key); err != nil {
		return err
	}
	return s.evict(ctx, key)
}

func (s *CachedKeyValueStore) MultiSet(ctx context.Context, values map[string]string) error {
	if err := s.ready(); err != nil {
		return err
	}
	if err := s.base.MultiSet(ctx, values); err != nil {
		return err
	}
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	return s.evict(ctx, keys...)
}

func (s *CachedKeyValueStore) MultiRemove(ctx context.Context, keys ...string) error {
	if err := s.ready(); err != nil {
		return err
	}
	if err := s.base.MultiRemove(ctx, keys...); err != nil {
		return err
	}
	return s.evict(ctx, keys...)
}

func (s *CachedKeyValueStore) evict(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		if strings.TrimSpace(key) == "" {
			continue
		}
		if err := s.cache.Delete(ctx, KVCacheKey(key)); err != nil {
			return core.StoreError(err, fmt.Sprintf("evict cached %q failed", key))
		}
	}
	return nil
}

func (s *CachedKeyValueStore) ready() error {
	if s == nil || s.base == nil || s.cache == nil {
		return fmt.Errorf("sqlstore: cached kv store is not configured")
	}
	return nil
}

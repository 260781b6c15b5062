package sqlstore

import (
	"time"

	"github.com/uptrace/bun"
)

type kvRecord struct {
	bun.BaseModel `bun:"table:esim_kv_entries,alias:kv"`

	ID        string    `bun:"id,pk"`
	Key       string    `bun:"entry_key,notnull"`
	Value     string    `bun:"entry_value,notnull"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

func newKVRecord(key string, value string, now time.Time) *kvRecord {
	return &kvRecord{
		Key:       key,
		Value:     value,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

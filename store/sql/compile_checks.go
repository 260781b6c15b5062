package sqlstore

import "github.com/iscanabdulhalik/go-esim/core"

var (
	_ core.KeyValueStore = (*KeyValueStore)(nil)
	_ core.KeyValueStore = (*CachedKeyValueStore)(nil)
)

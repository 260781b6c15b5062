package core

import glog "github.com/goliatone/go-logger/glog"

var (
	_ KeyValueStore   = (*MemoryKeyValueStore)(nil)
	_ TokenStore      = (*KeyValueTokenStore)(nil)
	_ SessionObserver = NopSessionObserver{}

	_ Logger         = glog.Nop()
	_ LoggerProvider = glog.ProviderFromLogger(glog.Nop())
)

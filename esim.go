// Package esim is the entry point for the eSIM storefront client. Setup
// resolves configuration, opens the session store and returns a Runtime
// holding the gateway client and the typed storefront services.
package esim

import (
	"github.com/iscanabdulhalik/go-esim/api"
	"github.com/iscanabdulhalik/go-esim/core"
	"github.com/iscanabdulhalik/go-esim/gateway"
)

type Config = core.Config
type RetryConfig = core.RetryConfig
type StorageConfig = core.StorageConfig

type Envelope = core.Envelope
type Credentials = core.Credentials
type User = core.User

type KeyValueStore = core.KeyValueStore
type TokenStore = core.TokenStore
type SessionObserver = core.SessionObserver
type SessionEndedEvent = core.SessionEndedEvent

type Client = gateway.Client
type Services = api.Services

const (
	ErrorCodeNetwork  = core.ErrorCodeNetwork
	ErrorCodeTimeout  = core.ErrorCodeTimeout
	ErrorCodeUnknown  = core.ErrorCodeUnknown
	ErrorCodeBadInput = core.ErrorCodeBadInput
)

var (
	DefaultConfig = core.DefaultConfig
	HTTPErrorCode = core.HTTPErrorCode
)

package core

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

const (
	DefaultBaseURL      = "https://api.esimaccess.com/v1"
	DefaultTimeoutMS    = 30000
	DefaultRetryCount   = 3
	DefaultRetryDelayMS = 1000

	HeaderAPIKey = "X-API-Key"
)

type RetryConfig struct {
	Count   int `koanf:"count" mapstructure:"count"`
	DelayMS int `koanf:"delay_ms" mapstructure:"delay_ms"`
}

func (r RetryConfig) Delay() time.Duration {
	return time.Duration(r.DelayMS) * time.Millisecond
}

type StorageConfig struct {
	Driver string `koanf:"driver" mapstructure:"driver"`
	DSN    string `koanf:"dsn" mapstructure:"dsn"`
	Debug  bool   `koanf:"debug" mapstructure:"debug"`
}

func (c StorageConfig) GetDebug() bool {
	return c.Debug
}

func (c StorageConfig) GetDriver() string {
	return strings.TrimSpace(c.Driver)
}

func (c StorageConfig) GetServer() string {
	return strings.TrimSpace(c.DSN)
}

func (c StorageConfig) GetPingTimeout() time.Duration {
	return 5 * time.Second
}

func (c StorageConfig) GetOtelIdentifier() string {
	return "go-esim"
}

type Config struct {
	BaseURL   string            `koanf:"base_url" mapstructure:"base_url"`
	TimeoutMS int               `koanf:"timeout_ms" mapstructure:"timeout_ms"`
	Retry     RetryConfig       `koanf:"retry" mapstructure:"retry"`
	Headers   map[string]string `koanf:"headers" mapstructure:"headers"`
	APIKey    string            `koanf:"api_key" mapstructure:"api_key"`
	Storage   StorageConfig     `koanf:"storage" mapstructure:"storage"`
}

func DefaultHeaders() map[string]string {
	return map[string]string{
		"Content-Type": "application/json",
		"Accept":       "application/json",
	}
}

func DefaultConfig() Config {
	return Config{
		BaseURL:   DefaultBaseURL,
		TimeoutMS: DefaultTimeoutMS,
		Retry: RetryConfig{
			Count:   DefaultRetryCount,
			DelayMS: DefaultRetryDelayMS,
		},
		Headers: DefaultHeaders(),
		Storage: StorageConfig{
			Driver: "sqlite3",
			DSN:    "file:esim.db?cache=shared",
		},
	}
}

func (c Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutMS) * time.Millisecond
}

// RequestHeaders returns the fixed header set sent with every request,
// including the API key header when one is configured.
func (c Config) RequestHeaders() map[string]string {
	headers := make(map[string]string, len(c.Headers)+1)
	for key, value := range c.Headers {
		if strings.TrimSpace(key) == "" {
			continue
		}
		headers[strings.TrimSpace(key)] = value
	}
	if key := strings.TrimSpace(c.APIKey); key != "" {
		headers[HeaderAPIKey] = key
	}
	return headers
}

func (c Config) Validate() error {
	base := strings.TrimSpace(c.BaseURL)
	if base == "" {
		return fmt.Errorf("core: base_url is required")
	}
	parsed, err := url.Parse(base)
	if err != nil {
		return fmt.Errorf("core: invalid base_url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("core: base_url scheme must be http or https, got %q", parsed.Scheme)
	}
	if parsed.Host == "" {
		return fmt.Errorf("core: base_url host is required")
	}
	if c.TimeoutMS < 0 {
		return fmt.Errorf("core: timeout_ms must not be negative")
	}
	if c.Retry.Count < 0 {
		return fmt.Errorf("core: retry.count must not be negative")
	}
	if c.Retry.DelayMS < 0 {
		return fmt.Errorf("core: retry.delay_ms must not be negative")
	}
	return nil
}

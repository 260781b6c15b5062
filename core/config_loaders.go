package core

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	EnvBaseURL       = "ESIM_BASE_URL"
	EnvTimeoutMS     = "ESIM_TIMEOUT_MS"
	EnvRetryCount    = "ESIM_RETRY_COUNT"
	EnvRetryDelayMS  = "ESIM_RETRY_DELAY_MS"
	EnvAPIKey        = "ESIM_API_KEY"
	EnvStorageDriver = "ESIM_STORAGE_DRIVER"
	EnvStorageDSN    = "ESIM_STORAGE_DSN"
)

type StaticRawConfigLoader struct {
	Values map[string]any
}

func (l StaticRawConfigLoader) LoadRaw(context.Context) (map[string]any, error) {
	if len(l.Values) == 0 {
		return map[string]any{}, nil
	}
	out := make(map[string]any, len(l.Values))
	for key, value := range l.Values {
		out[key] = value
	}
	return out, nil
}

// YAMLFileLoader reads a YAML document shaped like Config. A missing file
// yields an empty map unless Required is set.
type YAMLFileLoader struct {
	Path     string
	Required bool
}

func (l YAMLFileLoader) LoadRaw(context.Context) (map[string]any, error) {
	path := strings.TrimSpace(l.Path)
	if path == "" {
		return map[string]any{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) && !l.Required {
			return map[string]any{}, nil
		}
		return nil, fmt.Errorf("core: read config file %s: %w", path, err)
	}
	raw := map[string]any{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("core: parse config file %s: %w", path, err)
	}
	return raw, nil
}

// DotenvLoader reads ESIM_* variables from the given dotenv files, then lets
// the process environment override them.
type DotenvLoader struct {
	Files     []string
	LookupEnv func(string) (string, bool)
}

func (l DotenvLoader) LoadRaw(context.Context) (map[string]any, error) {
	values := map[string]string{}
	for _, file := range l.Files {
		file = strings.TrimSpace(file)
		if file == "" {
			continue
		}
		read, err := godotenv.Read(file)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("core: read dotenv file %s: %w", file, err)
		}
		for key, value := range read {
			values[key] = value
		}
	}

	lookup := l.LookupEnv
	if lookup == nil {
		lookup = os.LookupEnv
	}
	for _, key := range []string{
		EnvBaseURL, EnvTimeoutMS, EnvRetryCount, EnvRetryDelayMS,
		EnvAPIKey, EnvStorageDriver, EnvStorageDSN,
	} {
		if value, ok := lookup(key); ok {
			values[key] = value
		}
	}
	return envToRawConfig(values)
}

func envToRawConfig(values map[string]string) (map[string]any, error) {
	raw := map[string]any{}
	retry := map[string]any{}
	storage := map[string]any{}

	if value := strings.TrimSpace(values[EnvBaseURL]); value != "" {
		raw["base_url"] = value
	}
	if value := strings.TrimSpace(values[EnvAPIKey]); value != "" {
		raw["api_key"] = value
	}
	for envKey, target := range map[string]struct {
		layer map[string]any
		key   string
	}{
		EnvTimeoutMS:    {raw, "timeout_ms"},
		EnvRetryCount:   {retry, "count"},
		EnvRetryDelayMS: {retry, "delay_ms"},
	} {
		value := strings.TrimSpace(values[envKey])
		if value == "" {
			continue
		}
		parsed, err := strconv.Atoi(value)
		if err != nil {
			return nil, fmt.Errorf("core: invalid %s %q: %w", envKey, value, err)
		}
		target.layer[target.key] = parsed
	}
	if value := strings.TrimSpace(values[EnvStorageDriver]); value != "" {
		storage["driver"] = value
	}
	if value := strings.TrimSpace(values[EnvStorageDSN]); value != "" {
		storage["dsn"] = value
	}
	if len(retry) > 0 {
		raw["retry"] = retry
	}
	if len(storage) > 0 {
		raw["storage"] = storage
	}
	return raw, nil
}

// ChainLoader merges the maps of several loaders; later loaders win on
// top-level and nested keys.
type ChainLoader []RawConfigLoader

func (c ChainLoader) LoadRaw(ctx context.Context) (map[string]any, error) {
	merged := map[string]any{}
	for _, loader := range c {
		if loader == nil {
			continue
		}
		raw, err := loader.LoadRaw(ctx)
		if err != nil {
			return nil, err
		}
		mergeRaw(merged, raw)
	}
	return merged, nil
}

func mergeRaw(dst map[string]any, src map[string]any) {
	for key, value := range src {
		nested, ok := value.(map[string]any)
		if !ok {
			dst[key] = value
			continue
		}
		existing, ok := dst[key].(map[string]any)
		if !ok {
			existing = map[string]any{}
			dst[key] = existing
		}
		mergeRaw(existing, nested)
	}
}

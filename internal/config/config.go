// Package config loads and serves editor configuration: TOML settings
// files (user then project, later wins), a small set of environment
// overrides, and runtime Set calls. Values live under flattened dot
// paths ("editor.tabSize"); the typed section accessors in sections.go
// are the surface the rest of the editor reads.
package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/dshills/keystorm/internal/config/notify"
)

// SettingsFileName is the settings file looked up in each config dir.
const SettingsFileName = "settings.toml"

// Config is the merged configuration store.
type Config struct {
	mu sync.RWMutex

	userDir    string
	projectDir string

	// values holds the merged configuration under flattened dot paths.
	values map[string]any

	// configErrors records the first type/parse error seen per path.
	configErrors map[string]error

	notifier *notify.Notifier
}

// Option configures a Config.
type Option func(*Config)

// WithUserConfigDir sets the user configuration directory.
func WithUserConfigDir(dir string) Option {
	return func(c *Config) {
		c.userDir = dir
	}
}

// WithProjectConfigDir sets the project/workspace configuration directory.
// Its settings override the user's.
func WithProjectConfigDir(dir string) Option {
	return func(c *Config) {
		c.projectDir = dir
	}
}

// New creates a Config. Call Load before reading values.
func New(opts ...Option) *Config {
	c := &Config{
		values:   make(map[string]any),
		notifier: notify.New(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.userDir == "" {
		if dir, err := os.UserConfigDir(); err == nil {
			c.userDir = filepath.Join(dir, "keystorm")
		}
	}
	return c
}

// Load reads the settings files and environment overrides, replacing the
// current values. Missing files are not errors; unreadable files are.
// Subscribers receive a reload event.
func (c *Config) Load(_ context.Context) error {
	merged := make(map[string]any)

	for _, dir := range []string{c.userDir, c.projectDir} {
		if dir == "" {
			continue
		}
		path := filepath.Join(dir, SettingsFileName)
		if err := loadTOMLInto(merged, path); err != nil {
			return err
		}
	}

	applyEnvOverrides(merged)

	c.mu.Lock()
	c.values = merged
	c.configErrors = nil
	c.mu.Unlock()

	c.notifier.NotifyReload("load")
	return nil
}

// loadTOMLInto flattens a TOML file's tables into dst under dot paths.
// A missing file is skipped.
func loadTOMLInto(dst map[string]any, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("config: read %s: %w", path, err)
	}

	var raw map[string]any
	if err := toml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}

	flattenInto(dst, "", raw)
	return nil
}

// flattenInto merges nested maps into dst as dot-path keys.
func flattenInto(dst map[string]any, prefix string, src map[string]any) {
	for k, v := range src {
		path := k
		if prefix != "" {
			path = prefix + "." + k
		}
		if nested, ok := v.(map[string]any); ok {
			flattenInto(dst, path, nested)
			continue
		}
		dst[path] = v
	}
}

// envOverrides maps environment variables to the config paths they set.
func envOverrides() map[string]string {
	return map[string]string{
		"KEYSTORM_LOG_LEVEL": "logging.level",
		"KEYSTORM_THEME":     "ui.theme",
		"KEYSTORM_TAB_SIZE":  "editor.tabSize",
		"KEYSTORM_DATA_DIR":  "paths.dataDir",
		"KEYSTORM_CACHE_DIR": "paths.cacheDir",
	}
}

func applyEnvOverrides(dst map[string]any) {
	for env, path := range envOverrides() {
		val, ok := os.LookupEnv(env)
		if !ok {
			continue
		}
		dst[path] = parseEnvValue(val)
	}
}

// parseEnvValue converts an environment string to bool/int/float when it
// parses as one, else keeps it as a string.
func parseEnvValue(s string) any {
	if s == "true" || s == "false" {
		return s == "true"
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}

// Close releases resources. Safe to call multiple times.
func (c *Config) Close() {}

// Get returns the raw value at path.
func (c *Config) Get(path string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.values[path]
	return v, ok
}

// GetString returns the string value at path.
func (c *Config) GetString(path string) (string, error) {
	v, ok := c.Get(path)
	if !ok {
		return "", ErrSettingNotFound
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%w: %s is %T, want string", ErrTypeMismatch, path, v)
	}
	return s, nil
}

// GetInt returns the integer value at path. TOML integers decode as
// int64; ints from Set calls are accepted too.
func (c *Config) GetInt(path string) (int, error) {
	v, ok := c.Get(path)
	if !ok {
		return 0, ErrSettingNotFound
	}
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		if n == float64(int(n)) {
			return int(n), nil
		}
	}
	return 0, fmt.Errorf("%w: %s is %T, want int", ErrTypeMismatch, path, v)
}

// GetBool returns the boolean value at path.
func (c *Config) GetBool(path string) (bool, error) {
	v, ok := c.Get(path)
	if !ok {
		return false, ErrSettingNotFound
	}
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("%w: %s is %T, want bool", ErrTypeMismatch, path, v)
	}
	return b, nil
}

// GetFloat returns the float value at path.
func (c *Config) GetFloat(path string) (float64, error) {
	v, ok := c.Get(path)
	if !ok {
		return 0, ErrSettingNotFound
	}
	switch n := v.(type) {
	case float64:
		return n, nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	}
	return 0, fmt.Errorf("%w: %s is %T, want float", ErrTypeMismatch, path, v)
}

// GetStringSlice returns the string-slice value at path.
func (c *Config) GetStringSlice(path string) ([]string, error) {
	v, ok := c.Get(path)
	if !ok {
		return nil, ErrSettingNotFound
	}
	switch s := v.(type) {
	case []string:
		return s, nil
	case []any:
		out := make([]string, 0, len(s))
		for _, item := range s {
			str, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("%w: %s contains %T, want string", ErrTypeMismatch, path, item)
			}
			out = append(out, str)
		}
		return out, nil
	}
	return nil, fmt.Errorf("%w: %s is %T, want []string", ErrTypeMismatch, path, v)
}

// Set updates a value at runtime and notifies subscribers.
func (c *Config) Set(path string, value any) error {
	if path == "" {
		return ErrInvalidPath
	}

	c.mu.Lock()
	old := c.values[path]
	c.values[path] = value
	c.mu.Unlock()

	c.notifier.NotifySet(path, old, value, "runtime")
	return nil
}

// Subscribe registers an observer for all changes.
func (c *Config) Subscribe(observer notify.Observer) *notify.Subscription {
	return c.notifier.Subscribe(observer)
}

// SubscribePath registers an observer for changes to a specific path.
func (c *Config) SubscribePath(path string, observer notify.Observer) *notify.Subscription {
	return c.notifier.SubscribePath(path, observer)
}

// Merged returns a copy of the flattened configuration.
func (c *Config) Merged() map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]any, len(c.values))
	for k, v := range c.values {
		out[k] = v
	}
	return out
}

// UserConfigDir returns the directory user settings load from.
func (c *Config) UserConfigDir() string {
	return c.userDir
}

// SectionKeys returns the paths currently set under prefix, for callers
// that enumerate a table (language overrides, plugin blocks).
func (c *Config) SectionKeys(prefix string) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var keys []string
	for k := range c.values {
		if strings.HasPrefix(k, prefix+".") {
			keys = append(keys, k)
		}
	}
	return keys
}

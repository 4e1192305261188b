// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/spf13/afero"

	"github.com/jeranaias/rigchat/internal/util"
)

// Environment variables read by ApplyEnvOverrides and Load.
const (
	EnvBaseURL    = "RIGCHAT_API_BASE_URL"
	EnvConfigPath = "RIGCHAT_CONFIG"
	EnvSessionKey = "RIGCHAT_SESSION_KEY"
	EnvNoColor    = "NO_COLOR"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete rigchat configuration.
type Config struct {
	Version string `toml:"version" json:"version"`

	Backend BackendConfig `toml:"backend" json:"backend"`
	Session SessionConfig `toml:"session" json:"session"`
	Cache   CacheConfig   `toml:"cache" json:"cache"`
	UI      UIConfig      `toml:"ui" json:"ui"`
}

// BackendConfig describes how to reach the chat backend.
type BackendConfig struct {
	// BaseURL is the API root, e.g. "http://127.0.0.1:8000"
	BaseURL string `toml:"base_url" json:"base_url"`
	// Timeout bounds non-streaming requests
	Timeout Duration `toml:"timeout" json:"timeout"`
	// RateLimit is the client-side request rate per second (0 disables)
	RateLimit float64 `toml:"rate_limit" json:"rate_limit"`
	// RateBurst is the limiter burst size
	RateBurst int `toml:"rate_burst" json:"rate_burst"`
}

// SessionConfig controls the persisted login.
type SessionConfig struct {
	// Path of the session file; empty means ~/.rigchat/session.json
	Path string `toml:"path" json:"path"`
	// Watch reloads the session when another process changes it
	Watch bool `toml:"watch" json:"watch"`

	// Key seals the token at rest. Only ever read from the environment.
	Key string `toml:"-" json:"-"`
}

// CacheConfig controls the local conversation cache.
type CacheConfig struct {
	Enabled bool `toml:"enabled" json:"enabled"`
	// Path of the SQLite file; empty means ~/.rigchat/cache.db
	Path             string `toml:"path" json:"path"`
	MaxConversations int    `toml:"max_conversations" json:"max_conversations"`
}

// UIConfig contains terminal presentation settings.
type UIConfig struct {
	// Markdown renders final assistant replies with glamour
	Markdown bool `toml:"markdown" json:"markdown"`
	// Color enables styled output
	Color bool `toml:"color" json:"color"`
	// Style is the glamour style: "auto", "dark", "light", "notty", "ascii"
	Style string `toml:"style" json:"style"`
	// PreviewWidth is the column width of conversation previews
	PreviewWidth int `toml:"preview_width" json:"preview_width"`
}

// Duration is a time.Duration written as a string such as "30s".
type Duration time.Duration

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// =============================================================================
// DEFAULT CONFIGURATION
// =============================================================================

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Version: "1",
		Backend: BackendConfig{
			BaseURL:   "http://127.0.0.1:8000",
			Timeout:   Duration(30 * time.Second),
			RateLimit: 10,
			RateBurst: 20,
		},
		Session: SessionConfig{
			Watch: true,
		},
		Cache: CacheConfig{
			Enabled:          true,
			MaxConversations: 500,
		},
		UI: UIConfig{
			Markdown:     true,
			Color:        true,
			Style:        "auto",
			PreviewWidth: 48,
		},
	}
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// Dir returns the rigchat configuration directory path.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".rigchat"), nil
}

// PathTOML returns the path to the TOML config file.
func PathTOML() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// PathJSON returns the path to the JSON config file.
func PathJSON() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// Path returns the file Save writes to: RIGCHAT_CONFIG if set, else the
// TOML path.
func Path() (string, error) {
	if p := os.Getenv(EnvConfigPath); p != "" {
		return p, nil
	}
	return PathTOML()
}

// SessionPath resolves the session file location.
func (c *Config) SessionPath() (string, error) {
	if c.Session.Path != "" {
		return c.Session.Path, nil
	}
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "session.json"), nil
}

// CachePath resolves the cache database location.
func (c *Config) CachePath() (string, error) {
	if c.Cache.Path != "" {
		return c.Cache.Path, nil
	}
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "cache.db"), nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load loads configuration from fs.
//
// RIGCHAT_CONFIG names an explicit file that must exist. Otherwise TOML is
// tried first, then JSON, then built-in defaults. Environment overrides are
// applied last.
func Load(fs afero.Fs) (*Config, error) {
	if p := os.Getenv(EnvConfigPath); p != "" {
		return LoadFromPath(fs, p)
	}

	for _, pathFn := range []func() (string, error){PathTOML, PathJSON} {
		path, err := pathFn()
		if err != nil {
			continue
		}
		if ok, _ := afero.Exists(fs, path); ok {
			return LoadFromPath(fs, path)
		}
	}

	cfg := Default()
	return cfg, cfg.finish()
}

// LoadFromPath loads configuration from a specific file. Files ending in
// .json are decoded as JSON, anything else as TOML.
func LoadFromPath(fs afero.Fs, path string) (*Config, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	cfg, err := decode(path, data)
	if err != nil {
		return nil, err
	}
	if err := cfg.finish(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ReadFile loads the file at path as written, without environment
// overrides, so it can be edited and saved back. A missing file yields the
// defaults.
func ReadFile(fs afero.Fs, path string) (*Config, error) {
	data, err := afero.ReadFile(fs, path)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	cfg, err := decode(path, data)
	if err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	return cfg, nil
}

func decode(path string, data []byte) (*Config, error) {
	cfg := Default()
	var err error
	if strings.HasSuffix(path, ".json") {
		err = json.Unmarshal(data, cfg)
	} else {
		_, err = toml.Decode(string(data), cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode config %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) finish() error {
	c.ApplyEnvOverrides()
	c.SetDefaults()
	if err := c.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save writes cfg to path, as JSON when the name ends in .json and TOML
// otherwise. The file is written atomically with 0600 permissions.
func Save(fs afero.Fs, cfg *Config, path string) error {
	var buf bytes.Buffer
	if strings.HasSuffix(path, ".json") {
		data, err := json.MarshalIndent(cfg, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode config: %w", err)
		}
		buf.Write(data)
		buf.WriteByte('\n')
	} else {
		buf.WriteString("# rigchat configuration file\n")
		buf.WriteString("# Generated by rigchat - edit with care\n\n")
		if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
			return fmt.Errorf("failed to encode config: %w", err)
		}
	}

	if err := util.AtomicWriteFile(fs, path, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

var validStyles = map[string]bool{"auto": true, "dark": true, "light": true, "notty": true, "ascii": true}

// Validate validates the configuration and returns any errors as
// ValidateErrors.
func (c *Config) Validate() error {
	var errs ValidateErrors
	add := func(field, format string, args ...any) {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	u, err := url.Parse(c.Backend.BaseURL)
	switch {
	case err != nil:
		add("backend.base_url", "invalid URL: %v", err)
	case u.Scheme != "http" && u.Scheme != "https":
		add("backend.base_url", "scheme must be http or https, got '%s'", u.Scheme)
	case u.Host == "":
		add("backend.base_url", "missing host")
	}

	if c.Backend.Timeout <= 0 || c.Backend.Timeout.Std() > 10*time.Minute {
		add("backend.timeout", "must be positive and at most 10m, got %s", c.Backend.Timeout)
	}
	if c.Backend.RateLimit < 0 {
		add("backend.rate_limit", "must not be negative")
	}
	if c.Backend.RateLimit > 0 && c.Backend.RateBurst < 1 {
		add("backend.rate_burst", "must be at least 1 when rate_limit is set")
	}

	if c.Cache.MaxConversations < 1 {
		add("cache.max_conversations", "must be at least 1, got %d", c.Cache.MaxConversations)
	}

	if !validStyles[c.UI.Style] {
		add("ui.style", "invalid style '%s', must be one of: auto, dark, light, notty, ascii", c.UI.Style)
	}
	if c.UI.PreviewWidth < 16 || c.UI.PreviewWidth > 200 {
		add("ui.preview_width", "must be between 16 and 200, got %d", c.UI.PreviewWidth)
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// SetDefaults fills zero values that have no meaningful zero.
func (c *Config) SetDefaults() {
	d := Default()
	if c.Version == "" {
		c.Version = d.Version
	}
	if c.Backend.BaseURL == "" {
		c.Backend.BaseURL = d.Backend.BaseURL
	}
	c.Backend.BaseURL = strings.TrimRight(c.Backend.BaseURL, "/")
	if c.Backend.Timeout == 0 {
		c.Backend.Timeout = d.Backend.Timeout
	}
	if c.Cache.MaxConversations == 0 {
		c.Cache.MaxConversations = d.Cache.MaxConversations
	}
	if c.UI.Style == "" {
		c.UI.Style = d.UI.Style
	}
	if c.UI.PreviewWidth == 0 {
		c.UI.PreviewWidth = d.UI.PreviewWidth
	}
}

// ApplyEnvOverrides applies environment variable overrides.
//
// Supported environment variables:
//   - RIGCHAT_API_BASE_URL: overrides backend.base_url
//   - RIGCHAT_SESSION_KEY: seals the stored session token
//   - NO_COLOR: any non-empty value disables ui.color
func (c *Config) ApplyEnvOverrides() {
	if base := os.Getenv(EnvBaseURL); base != "" {
		c.Backend.BaseURL = base
	}
	if key := os.Getenv(EnvSessionKey); key != "" {
		c.Session.Key = key
	}
	if os.Getenv(EnvNoColor) != "" {
		c.UI.Color = false
	}
}

// =============================================================================
// GET/SET HELPERS (DOT NOTATION)
// =============================================================================

var errEmptyKey = errors.New("empty key")

// Get retrieves a configuration value using dot notation (e.g., "backend.base_url").
func (c *Config) Get(key string) (any, error) {
	field, err := c.lookup(key)
	if err != nil {
		return nil, err
	}
	return field.Interface(), nil
}

// Set sets a configuration value using dot notation. String values are
// converted to the field's type.
func (c *Config) Set(key string, value any) error {
	field, err := c.lookup(key)
	if err != nil {
		return err
	}
	if !field.CanSet() {
		return fmt.Errorf("cannot set field: %s", key)
	}
	return setFieldValue(field, value)
}

// lookup resolves a dotted key against the toml tags of Config.
func (c *Config) lookup(key string) (reflect.Value, error) {
	if key == "" {
		return reflect.Value{}, errEmptyKey
	}
	parts := strings.Split(key, ".")
	v := reflect.ValueOf(c).Elem()
	for i, part := range parts {
		field, ok := fieldByTag(v, normalizeKey(part))
		if !ok {
			return reflect.Value{}, fmt.Errorf("unknown field: %s", strings.Join(parts[:i+1], "."))
		}
		if i == len(parts)-1 {
			if field.Kind() == reflect.Struct {
				return reflect.Value{}, fmt.Errorf("field '%s' is a section, not a value", key)
			}
			return field, nil
		}
		if field.Kind() != reflect.Struct {
			return reflect.Value{}, fmt.Errorf("field '%s' is not a struct", strings.Join(parts[:i+1], "."))
		}
		v = field
	}
	return reflect.Value{}, fmt.Errorf("invalid key: %s", key)
}

func fieldByTag(v reflect.Value, name string) (reflect.Value, bool) {
	t := v.Type()
	for i := range t.NumField() {
		tag, _, _ := strings.Cut(t.Field(i).Tag.Get("toml"), ",")
		if tag != "" && tag != "-" && tag == name {
			return v.Field(i), true
		}
	}
	return reflect.Value{}, false
}

// normalizeKey accepts kebab-case as an alias for snake_case.
func normalizeKey(name string) string {
	return strings.ToLower(strings.ReplaceAll(name, "-", "_"))
}

var durationType = reflect.TypeOf(Duration(0))

// setFieldValue sets a reflect.Value from an interface{} value with type conversion.
func setFieldValue(field reflect.Value, value any) error {
	if strVal, ok := value.(string); ok {
		if field.Type() == durationType {
			d, err := time.ParseDuration(strVal)
			if err != nil {
				return fmt.Errorf("invalid duration value: %v", err)
			}
			field.SetInt(int64(d))
			return nil
		}
		switch field.Kind() {
		case reflect.String:
			field.SetString(strVal)
			return nil
		case reflect.Int, reflect.Int64:
			intVal, err := strconv.ParseInt(strVal, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid integer value: %v", err)
			}
			field.SetInt(intVal)
			return nil
		case reflect.Float64:
			floatVal, err := strconv.ParseFloat(strVal, 64)
			if err != nil {
				return fmt.Errorf("invalid float value: %v", err)
			}
			field.SetFloat(floatVal)
			return nil
		case reflect.Bool:
			boolVal, err := strconv.ParseBool(strings.ToLower(strVal))
			if err != nil {
				boolVal = strings.EqualFold(strVal, "yes")
				if !boolVal && !strings.EqualFold(strVal, "no") {
					return fmt.Errorf("invalid boolean value: %q", strVal)
				}
			}
			field.SetBool(boolVal)
			return nil
		}
	}

	val := reflect.ValueOf(value)
	if !val.IsValid() {
		return fmt.Errorf("cannot assign nil to %s", field.Type())
	}
	if val.Type().AssignableTo(field.Type()) {
		field.Set(val)
		return nil
	}
	if val.Type().ConvertibleTo(field.Type()) && val.Kind() != reflect.String {
		field.Set(val.Convert(field.Type()))
		return nil
	}
	return fmt.Errorf("cannot assign %T to %s", value, field.Type())
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// Keys returns all configuration keys in dot notation.
func Keys() []string {
	var keys []string
	var walk func(t reflect.Type, prefix string)
	walk = func(t reflect.Type, prefix string) {
		for i := range t.NumField() {
			f := t.Field(i)
			tag, _, _ := strings.Cut(f.Tag.Get("toml"), ",")
			if tag == "" || tag == "-" {
				continue
			}
			if f.Type.Kind() == reflect.Struct {
				walk(f.Type, prefix+tag+".")
				continue
			}
			keys = append(keys, prefix+tag)
		}
	}
	walk(reflect.TypeOf(Config{}), "")
	return keys
}

// Clone returns a copy of c.
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}

// String returns the config as indented JSON. The session key is never
// included.
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c, "", "  ")
	return string(data)
}

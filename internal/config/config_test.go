// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate points HOME at a temp dir and clears the variables Load reads.
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv(EnvConfigPath, "")
	t.Setenv(EnvBaseURL, "")
	t.Setenv(EnvSessionKey, "")
	t.Setenv(EnvNoColor, "")
	return home
}

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "http://127.0.0.1:8000", cfg.Backend.BaseURL)
	assert.Equal(t, 30*time.Second, cfg.Backend.Timeout.Std())
	assert.Equal(t, 500, cfg.Cache.MaxConversations)
}

func TestLoad_DefaultsWhenNoFile(t *testing.T) {
	isolate(t)

	cfg, err := Load(afero.NewMemMapFs())
	require.NoError(t, err)
	assert.Equal(t, Default().Backend, cfg.Backend)
}

func TestLoad_TOML(t *testing.T) {
	home := isolate(t)
	fs := afero.NewMemMapFs()
	path := filepath.Join(home, ".rigchat", "config.toml")
	require.NoError(t, afero.WriteFile(fs, path, []byte(`
[backend]
base_url = "https://chat.example.com/"
timeout = "5s"

[ui]
markdown = false
`), 0o600))

	cfg, err := Load(fs)
	require.NoError(t, err)
	assert.Equal(t, "https://chat.example.com", cfg.Backend.BaseURL, "trailing slash trimmed")
	assert.Equal(t, 5*time.Second, cfg.Backend.Timeout.Std())
	assert.False(t, cfg.UI.Markdown)
	assert.True(t, cfg.UI.Color, "unset keys keep defaults")
	assert.Equal(t, 20, cfg.Backend.RateBurst)
}

func TestLoad_JSONFallback(t *testing.T) {
	home := isolate(t)
	fs := afero.NewMemMapFs()
	path := filepath.Join(home, ".rigchat", "config.json")
	require.NoError(t, afero.WriteFile(fs, path,
		[]byte(`{"cache":{"enabled":false,"max_conversations":10}}`), 0o600))

	cfg, err := Load(fs)
	require.NoError(t, err)
	assert.False(t, cfg.Cache.Enabled)
	assert.Equal(t, 10, cfg.Cache.MaxConversations)
}

func TestLoad_ExplicitPathMustExist(t *testing.T) {
	isolate(t)
	t.Setenv(EnvConfigPath, "/nowhere/rigchat.toml")

	_, err := Load(afero.NewMemMapFs())
	assert.Error(t, err)
}

func TestLoad_InvalidFile(t *testing.T) {
	isolate(t)
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/c.toml", []byte(`[backend]
base_url = "ftp://example.com"
`), 0o600))
	t.Setenv(EnvConfigPath, "/c.toml")

	_, err := Load(fs)
	var verrs ValidateErrors
	require.True(t, errors.As(err, &verrs))
	require.Len(t, verrs, 1)
	assert.Equal(t, "backend.base_url", verrs[0].Field)
}

func TestApplyEnvOverrides(t *testing.T) {
	isolate(t)
	t.Setenv(EnvBaseURL, "http://localhost:9999")
	t.Setenv(EnvSessionKey, "hunter2")
	t.Setenv(EnvNoColor, "1")

	cfg, err := Load(afero.NewMemMapFs())
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:9999", cfg.Backend.BaseURL)
	assert.Equal(t, "hunter2", cfg.Session.Key)
	assert.False(t, cfg.UI.Color)
	assert.NotContains(t, cfg.String(), "hunter2")
}

func TestValidate_CollectsEveryError(t *testing.T) {
	cfg := Default()
	cfg.Backend.BaseURL = "http://"
	cfg.Backend.Timeout = 0
	cfg.Backend.RateBurst = 0
	cfg.Cache.MaxConversations = 0
	cfg.UI.Style = "neon"
	cfg.UI.PreviewWidth = 4

	err := cfg.Validate()
	var verrs ValidateErrors
	require.True(t, errors.As(err, &verrs))

	fields := make([]string, 0, len(verrs))
	for _, e := range verrs {
		fields = append(fields, e.Field)
	}
	assert.ElementsMatch(t, []string{
		"backend.base_url", "backend.timeout", "backend.rate_burst",
		"cache.max_conversations", "ui.style", "ui.preview_width",
	}, fields)
}

func TestSave_RoundTrip(t *testing.T) {
	isolate(t)
	for _, name := range []string{"config.toml", "config.json"} {
		t.Run(name, func(t *testing.T) {
			fs := afero.NewMemMapFs()
			path := filepath.Join("/etc/rigchat", name)

			cfg := Default()
			cfg.Backend.Timeout = Duration(90 * time.Second)
			cfg.UI.Style = "dark"
			cfg.Session.Key = "secret"
			require.NoError(t, Save(fs, cfg, path))

			info, err := fs.Stat(path)
			require.NoError(t, err)
			assert.Equal(t, "-rw-------", info.Mode().Perm().String())

			data, err := afero.ReadFile(fs, path)
			require.NoError(t, err)
			assert.NotContains(t, string(data), "secret")

			loaded, err := LoadFromPath(fs, path)
			require.NoError(t, err)
			assert.Equal(t, 90*time.Second, loaded.Backend.Timeout.Std())
			assert.Equal(t, "dark", loaded.UI.Style)
			assert.Empty(t, loaded.Session.Key)
		})
	}
}

func TestGetSet(t *testing.T) {
	tests := []struct {
		key   string
		value string
		want  any
	}{
		{"backend.base_url", "https://x.example", "https://x.example"},
		{"backend.timeout", "45s", Duration(45 * time.Second)},
		{"backend.rate_limit", "2.5", 2.5},
		{"backend.rate-burst", "3", 3},
		{"cache.enabled", "no", false},
		{"ui.markdown", "true", true},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			cfg := Default()
			require.NoError(t, cfg.Set(tt.key, tt.value))
			got, err := cfg.Get(tt.key)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGetSet_Errors(t *testing.T) {
	cfg := Default()

	_, err := cfg.Get("")
	assert.Error(t, err)
	_, err = cfg.Get("backend.nope")
	assert.EqualError(t, err, "unknown field: backend.nope")
	_, err = cfg.Get("backend")
	assert.Error(t, err, "sections are not values")
	_, err = cfg.Get("session.key")
	assert.Error(t, err, "env-only fields are hidden")

	assert.Error(t, cfg.Set("backend.rate_burst", "many"))
	assert.Error(t, cfg.Set("backend.timeout", "soon"))
	assert.Error(t, cfg.Set("ui.color", "maybe"))
	assert.Error(t, cfg.Set("version.major", "1"))
}

func TestKeys(t *testing.T) {
	keys := Keys()
	assert.Contains(t, keys, "backend.base_url")
	assert.Contains(t, keys, "ui.preview_width")
	assert.NotContains(t, keys, "session.key")

	cfg := Default()
	for _, k := range keys {
		_, err := cfg.Get(k)
		assert.NoError(t, err, k)
	}
}

func TestPaths(t *testing.T) {
	home := isolate(t)
	cfg := Default()

	p, err := cfg.SessionPath()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".rigchat", "session.json"), p)

	cfg.Cache.Path = "/tmp/c.db"
	p, err = cfg.CachePath()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/c.db", p)

	t.Setenv(EnvConfigPath, "/x.toml")
	p, err = Path()
	require.NoError(t, err)
	assert.Equal(t, "/x.toml", p)
}

func TestReadFile_IgnoresEnvironment(t *testing.T) {
	isolate(t)
	fs := afero.NewMemMapFs()
	path := "/cfg/config.toml"

	cfg, err := ReadFile(fs, path)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	require.NoError(t, afero.WriteFile(fs, path, []byte("[ui]\npreview_width = 30\n"), 0o600))
	t.Setenv(EnvBaseURL, "http://elsewhere:9")

	cfg, err = ReadFile(fs, path)
	require.NoError(t, err)
	assert.Equal(t, 30, cfg.UI.PreviewWidth)
	assert.Equal(t, "http://127.0.0.1:8000", cfg.Backend.BaseURL)

	loaded, err := LoadFromPath(fs, path)
	require.NoError(t, err)
	assert.Equal(t, "http://elsewhere:9", loaded.Backend.BaseURL)
}

func TestReadFile_DecodeError(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/bad.toml", []byte("[ui\n"), 0o600))
	_, err := ReadFile(fs, "/bad.toml")
	assert.ErrorContains(t, err, "failed to decode config")
}

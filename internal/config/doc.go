// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for rigchat.
//
// Supports both TOML and JSON configuration formats, with sensible defaults,
// environment variable overrides, and validation. Files are read and written
// through an afero.Fs so tests can run against memory.
//
// # Configuration Precedence
//
// Configuration is loaded from (in order of precedence):
//   - Environment variables (RIGCHAT_API_BASE_URL, RIGCHAT_SESSION_KEY, NO_COLOR)
//   - The file named by RIGCHAT_CONFIG
//   - ~/.rigchat/config.toml
//   - ~/.rigchat/config.json
//   - Built-in defaults
//
// # Usage
//
//	cfg, err := config.Load(afero.NewOsFs())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	client := gateway.New(cfg.Backend.BaseURL, store).
//	    WithTimeout(cfg.Backend.Timeout.Std())
package config

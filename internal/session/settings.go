// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/jeranaias/rigchat/internal/model"
	"github.com/jeranaias/rigchat/internal/util"
)

// SettingsFileName is the privacy settings file, kept next to the session.
const SettingsFileName = "settings.json"

// SettingsPath returns the settings file location.
func (s *Store) SettingsPath() string {
	return filepath.Join(filepath.Dir(s.path), SettingsFileName)
}

// Settings reads the local privacy settings. A missing file yields the
// defaults; an unreadable one yields the defaults and the error.
func (s *Store) Settings() (model.UserSettings, error) {
	data, err := afero.ReadFile(s.fs, s.SettingsPath())
	if errors.Is(err, os.ErrNotExist) {
		return model.DefaultSettings(), nil
	}
	if err != nil {
		return model.DefaultSettings(), fmt.Errorf("failed to read settings: %w", err)
	}

	settings := model.DefaultSettings()
	if err := json.Unmarshal(data, &settings); err != nil {
		return model.DefaultSettings(), fmt.Errorf("failed to parse settings: %w", err)
	}
	return settings, nil
}

// SaveSettings writes the settings atomically.
func (s *Store) SaveSettings(settings model.UserSettings) error {
	data, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}
	if err := util.AtomicWriteFile(s.fs, s.SettingsPath(), data, 0o600); err != nil {
		return fmt.Errorf("failed to write settings: %w", err)
	}
	s.logger.Printf("SETTINGS_SAVED | chat_history=%t data_collection=%t", settings.ChatHistory, settings.DataCollection)
	return nil
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"

	"github.com/jeranaias/rigchat/internal/config"
	"github.com/jeranaias/rigchat/internal/util"
)

// keyWidth aligns values in config show.
const keyWidth = 26

const configUsage = "rigchat config [show | get KEY | set KEY VALUE | path | keys]"

// ConfigCmd shows and edits the configuration file.
func (a *App) ConfigCmd() error {
	p := NewArgParser(a.args.Raw)

	switch p.Subcommand() {
	case "", "show":
		return a.configShow()
	case "get":
		key := p.Positional(1)
		if key == "" {
			return &UsageError{Msg: "config key required", Usage: "rigchat config get KEY"}
		}
		v, err := a.cfg.Get(key)
		if err != nil {
			return usageErr("%v", err)
		}
		if a.args.JSON {
			return a.writeJSON(map[string]any{key: v})
		}
		a.println(fmt.Sprint(v))
		return nil
	case "set":
		key, value := p.Positional(1), p.Joined(2)
		if key == "" || p.PositionalCount() < 3 {
			return &UsageError{Msg: "config key and value required", Usage: "rigchat config set KEY VALUE"}
		}
		return a.configSet(key, value)
	case "path":
		path, err := a.configPath()
		if err != nil {
			return err
		}
		a.println(path)
		return nil
	case "keys":
		for _, k := range config.Keys() {
			a.println(k)
		}
		return nil
	default:
		return &UsageError{Msg: fmt.Sprintf("unknown config command %q", p.Subcommand()), Usage: configUsage}
	}
}

func (a *App) configPath() (string, error) {
	if a.args.ConfigPath != "" {
		return a.args.ConfigPath, nil
	}
	return config.Path()
}

func (a *App) configShow() error {
	if a.args.JSON {
		a.println(a.cfg.String())
		return nil
	}
	path, _ := a.configPath()
	a.println(a.styles.Title.Render("Configuration") + " " + a.styles.Dim.Render(path))
	a.println(a.styles.separator(48))
	for _, k := range config.Keys() {
		v, err := a.cfg.Get(k)
		if err != nil {
			continue
		}
		a.println(a.styles.Dim.Render(util.PadWidth(k, keyWidth)) + a.styles.Value.Render(fmt.Sprint(v)))
	}
	return nil
}

// configSet edits the file as written, so environment and flag overrides
// are never persisted.
func (a *App) configSet(key, value string) error {
	path, err := a.configPath()
	if err != nil {
		return err
	}
	cfg, err := config.ReadFile(a.env.FS, path)
	if err != nil {
		return err
	}
	if err := cfg.Set(key, value); err != nil {
		return usageErr("%v", err)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := config.Save(a.env.FS, cfg, path); err != nil {
		return err
	}

	v, _ := cfg.Get(key)
	a.printf("%s %s = %v %s\n", a.styles.Success.Render("✓"), key, v, a.styles.Dim.Render("("+path+")"))
	return nil
}

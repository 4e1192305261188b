// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/afero"

	"github.com/jeranaias/rigchat/internal/export"
	"github.com/jeranaias/rigchat/internal/model"
	"github.com/jeranaias/rigchat/internal/util"
)

const profileUsage = "rigchat profile [show | update [--name N] [--avatar URL] | password | settings [--chat-history on|off] [--data-collection on|off] | export [--format json|markdown] [--out FILE|DIR] | delete --confirm]"

const settingsUsage = "rigchat profile settings [--chat-history on|off] [--data-collection on|off]"

// Profile handles account management.
func (a *App) Profile(ctx context.Context) error {
	p := NewArgParser(a.args.Raw, "confirm", "password-stdin")
	if err := a.requireSession(); err != nil {
		return err
	}

	switch p.Subcommand() {
	case "", "show":
		return a.Whoami(ctx)
	case "update":
		return a.profileUpdate(ctx, p)
	case "password":
		return a.profilePassword(ctx, p)
	case "settings":
		return a.profileSettings(ctx, p)
	case "export":
		return a.profileExport(ctx, p)
	case "delete":
		return a.profileDelete(ctx, p)
	default:
		return &UsageError{Msg: fmt.Sprintf("unknown profile command %q", p.Subcommand()), Usage: profileUsage}
	}
}

func (a *App) profileUpdate(ctx context.Context, p *ArgParser) error {
	var upd model.ProfileUpdate
	if p.HasFlag("name") {
		name := p.Flag("name")
		upd.Name = &name
	}
	if p.HasFlag("avatar") {
		avatar := p.Flag("avatar")
		upd.Avatar = &avatar
	}
	if upd.Name == nil && upd.Avatar == nil {
		return &UsageError{Msg: "nothing to update", Usage: "rigchat profile update [--name N] [--avatar URL]"}
	}

	user, err := a.client.UpdateProfile(ctx, upd)
	if err != nil {
		return err
	}
	if err := a.store.SaveUser(user); err != nil {
		a.logger.Printf("SESSION_USER_SAVE_FAILED | error=%v", err)
	}
	a.printf("%s Profile updated\n", a.styles.Success.Render("✓"))
	a.printUser(user)
	return nil
}

// profilePassword reads the current and new password. With
// --password-stdin the first line is the current password and the second
// the new one.
func (a *App) profilePassword(ctx context.Context, p *ArgParser) error {
	var current string
	var err error
	if p.BoolFlag("password-stdin") || !a.env.StdinTTY {
		current, err = readLine(a.in)
	} else {
		current, err = a.readPassword("Current password: ")
	}
	if err != nil || current == "" {
		return usageErr("current password is required")
	}
	next, err := a.newPassword(p)
	if err != nil {
		return err
	}
	if err := a.client.UpdatePassword(ctx, current, next); err != nil {
		return err
	}
	a.printf("%s Password changed\n", a.styles.Success.Render("✓"))
	return nil
}

// profileSettings shows or changes the local privacy settings. Turning chat
// history off also empties the local cache.
func (a *App) profileSettings(ctx context.Context, p *ArgParser) error {
	next := a.settings
	changed := false
	for _, toggle := range []struct {
		flag string
		dst  *bool
	}{
		{"chat-history", &next.ChatHistory},
		{"data-collection", &next.DataCollection},
	} {
		if !p.HasFlag(toggle.flag) {
			continue
		}
		value := p.Flag(toggle.flag)
		if value == "" {
			value = "on"
		}
		on, err := ParseBoolString(value)
		if err != nil {
			return &UsageError{Msg: fmt.Sprintf("--%s: %v", toggle.flag, err), Usage: settingsUsage}
		}
		*toggle.dst = on
		changed = true
	}

	if changed {
		if a.settings.ChatHistory && !next.ChatHistory {
			if cache := a.openCache(); cache != nil {
				if err := cache.DeleteAll(ctx); err != nil {
					return fmt.Errorf("failed to clear local history: %w", err)
				}
			}
		}
		if err := a.store.SaveSettings(next); err != nil {
			return err
		}
		a.settings = next
	}

	if a.args.JSON {
		return a.writeJSON(a.settings)
	}
	if changed {
		a.printf("%s Settings saved\n", a.styles.Success.Render("✓"))
	}
	a.printf("%s %s\n", util.PadWidth("Chat history", 18), onOff(a.settings.ChatHistory))
	a.printf("%s %s\n", util.PadWidth("Data collection", 18), onOff(a.settings.DataCollection))
	return nil
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

// profileExport writes the account export to stdout or --out. The format
// comes from --format, else from the --out extension. An --out directory
// gets a timestamped file name.
func (a *App) profileExport(ctx context.Context, p *ArgParser) error {
	path := p.Flag("out")
	name := p.Flag("format")
	if name == "" && (strings.HasSuffix(path, ".md") || strings.HasSuffix(path, ".markdown")) {
		name = "markdown"
	}
	format, err := export.ParseFormat(name)
	if err != nil {
		return usageErr("%v", err)
	}
	exp, err := export.New(format, &export.Options{IncludeTimestamps: true, Location: time.Local})
	if err != nil {
		return err
	}

	data, err := a.client.ExportData(ctx)
	if err != nil {
		return err
	}
	out, err := exp.Export(data)
	if err != nil {
		return err
	}

	if path == "" {
		_, err := a.env.Stdout.Write(out)
		return err
	}
	if isDir, _ := afero.IsDir(a.env.FS, path); isDir {
		path = filepath.Join(path, export.Filename(exp, a.env.Now()))
	}
	if err := util.AtomicWriteFile(a.env.FS, path, out, 0o600); err != nil {
		return err
	}
	a.printf("%s Exported %d conversations and %d messages to %s\n",
		a.styles.Success.Render("✓"), len(data.Conversations), len(data.Messages), path)
	return nil
}

// profileDelete removes the account, then the local session and cache.
func (a *App) profileDelete(ctx context.Context, p *ArgParser) error {
	if !p.BoolFlag("confirm") {
		return &UsageError{
			Msg:   "deleting the account removes every conversation permanently",
			Usage: "rigchat profile delete --confirm",
		}
	}
	if err := a.client.DeleteAccount(ctx); err != nil {
		return err
	}
	if cache := a.openCache(); cache != nil {
		if err := cache.DeleteAll(ctx); err != nil {
			a.logger.Printf("CACHE_WRITE_FAILED | op=delete_all error=%v", err)
		}
	}
	if err := a.store.Clear(); err != nil {
		return err
	}
	a.printf("%s Account deleted\n", a.styles.Success.Render("✓"))
	return nil
}

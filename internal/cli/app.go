// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/spf13/afero"

	"github.com/jeranaias/rigchat/internal/chat"
	"github.com/jeranaias/rigchat/internal/config"
	"github.com/jeranaias/rigchat/internal/gateway"
	"github.com/jeranaias/rigchat/internal/model"
	"github.com/jeranaias/rigchat/internal/session"
	"github.com/jeranaias/rigchat/internal/storage"
)

// Env is the process environment a command runs in.
type Env struct {
	Stdin     io.Reader
	Stdout    io.Writer
	Stderr    io.Writer
	FS        afero.Fs
	StdinTTY  bool
	StdoutTTY bool
	Now       func() time.Time
}

// OSEnv returns the environment of the current process.
func OSEnv() Env {
	return Env{
		Stdin:     os.Stdin,
		Stdout:    os.Stdout,
		Stderr:    os.Stderr,
		FS:        afero.NewOsFs(),
		StdinTTY:  isTerminal(os.Stdin),
		StdoutTTY: isTerminal(os.Stdout),
		Now:       time.Now,
	}
}

// App wires configuration, session, backend client and cache for one
// command invocation.
type App struct {
	args   Args
	env    Env
	in     *bufio.Reader
	cfg    *config.Config
	logger *log.Logger
	styles Styles

	store    *session.Store
	settings model.UserSettings
	client   *gateway.Client

	// cache is opened on first use; cacheErr remembers a failed open.
	cache     *storage.Cache
	cacheErr  error
	cacheOpen bool
}

// NewApp loads configuration and builds the session store and client.
func NewApp(args Args, env Env) (*App, error) {
	if env.Now == nil {
		env.Now = time.Now
	}
	if env.FS == nil {
		env.FS = afero.NewOsFs()
	}

	a := &App{
		args:   args,
		env:    env,
		in:     bufio.NewReader(env.Stdin),
		logger: log.New(io.Discard, "", 0),
	}
	if args.Verbose {
		a.logger = log.New(env.Stderr, "", log.LstdFlags)
	}

	var err error
	if args.ConfigPath != "" {
		a.cfg, err = config.LoadFromPath(env.FS, args.ConfigPath)
	} else {
		a.cfg, err = config.Load(env.FS)
	}
	if err != nil {
		return nil, err
	}
	if args.BaseURL != "" {
		a.cfg.Backend.BaseURL = args.BaseURL
	}
	if args.NoColor {
		a.cfg.UI.Color = false
	}
	a.styles = newStyles(env.Stdout, colorProfile(env.Stdout, a.cfg.UI.Color, env.StdoutTTY))

	sessionPath, err := a.cfg.SessionPath()
	if err != nil {
		return nil, err
	}
	a.store = session.NewStore(env.FS, sessionPath).WithLogger(a.logger)
	if a.cfg.Session.Key != "" {
		a.store.WithSealer(session.NewSealer(a.cfg.Session.Key))
	}
	if a.settings, err = a.store.Settings(); err != nil {
		a.logger.Printf("SETTINGS_LOAD_FAILED | error=%v", err)
	}

	a.client = gateway.New(a.cfg.Backend.BaseURL, a.store).
		WithTimeout(a.cfg.Backend.Timeout.Std()).
		WithRateLimit(a.cfg.Backend.RateLimit, a.cfg.Backend.RateBurst).
		WithLogger(a.logger)

	a.logger.Printf("CLI_START | command=%s base_url=%s version=%s", args.Name, a.cfg.Backend.BaseURL, Version)
	return a, nil
}

// Config returns the loaded configuration.
func (a *App) Config() *config.Config { return a.cfg }

// Styles returns the output palette.
func (a *App) Styles() Styles { return a.styles }

// Close releases the cache.
func (a *App) Close() error {
	if a.cache != nil {
		return a.cache.Close()
	}
	return nil
}

// cacheEnabled reports whether conversations are kept locally. Both the
// cache.enabled config key and the chat history setting must allow it.
func (a *App) cacheEnabled() bool {
	return a.cfg.Cache.Enabled && a.settings.ChatHistory
}

// openCache returns the local cache, or nil when it is disabled or cannot
// be opened. A failed open is logged once and never fails a command.
func (a *App) openCache() *storage.Cache {
	if a.cacheOpen || !a.cacheEnabled() {
		return a.cache
	}
	a.cacheOpen = true

	path, err := a.cfg.CachePath()
	if err == nil {
		a.cache, err = storage.Open(path)
	}
	if err != nil {
		a.cacheErr = err
		a.logger.Printf("CACHE_UNAVAILABLE | error=%v", err)
		return nil
	}
	a.cache.WithLimit(a.cfg.Cache.MaxConversations).WithLogger(a.logger)
	return a.cache
}

// reconciler builds a conversation reconciler over the client and cache.
func (a *App) reconciler() *chat.Reconciler {
	opts := []chat.Option{chat.WithLogger(a.logger), chat.WithClock(a.env.Now)}
	if cache := a.openCache(); cache != nil {
		opts = append(opts, chat.WithRecorder(cache))
	}
	return chat.New(a.client, opts...)
}

// requireSession fails with session.ErrNoSession when nobody is signed in.
func (a *App) requireSession() error {
	if _, ok := a.store.Token(); !ok {
		return session.ErrNoSession
	}
	return nil
}

func (a *App) printf(format string, args ...any) {
	fmt.Fprintf(a.env.Stdout, format, args...)
}

func (a *App) println(args ...any) {
	fmt.Fprintln(a.env.Stdout, args...)
}

func (a *App) warn(format string, args ...any) {
	fmt.Fprintln(a.env.Stderr, a.styles.Warning.Render(fmt.Sprintf(format, args...)))
}

// =============================================================================
// DISPATCH
// =============================================================================

// Run executes cmd.
func (a *App) Run(ctx context.Context, cmd Command) error {
	switch cmd {
	case CmdChat:
		return a.Chat(ctx)
	case CmdAsk:
		return a.Ask(ctx)
	case CmdLogin:
		return a.Login(ctx)
	case CmdRegister:
		return a.Register(ctx)
	case CmdLogout:
		return a.Logout(ctx)
	case CmdWhoami:
		return a.Whoami(ctx)
	case CmdForgotPassword:
		return a.ForgotPassword(ctx)
	case CmdResetPassword:
		return a.ResetPassword(ctx)
	case CmdProfile:
		return a.Profile(ctx)
	case CmdConversations:
		return a.Conversations(ctx)
	case CmdConfig:
		return a.ConfigCmd()
	case CmdDevServer:
		return a.DevServer(ctx)
	case CmdVersion:
		PrintVersion(a.env.Stdout)
		return nil
	case CmdHelp:
		PrintUsage(a.env.Stdout)
		return nil
	default:
		return usageErr("unknown command %q", a.args.Name)
	}
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"log"
	"net"

	"github.com/jeranaias/rigchat/internal/server"
)

// DevServer runs the in-memory development backend until ctx is done.
func (a *App) DevServer(ctx context.Context) error {
	p := NewArgParser(a.args.Raw)

	addr := p.FlagOrDefault("addr", server.DefaultAddr)
	if _, _, err := net.SplitHostPort(addr); err != nil {
		return usageErr("--addr must be HOST:PORT, got %q", addr)
	}
	delay, err := p.FlagDuration("delay", 0)
	if err != nil {
		return err
	}
	truncate, err := p.FlagInt("truncate-after", 0)
	if err != nil {
		return err
	}
	if truncate < 0 {
		return usageErr("--truncate-after must not be negative")
	}

	srv := server.New(server.Options{
		Logger:        log.New(a.env.Stderr, "", log.LstdFlags),
		Delay:         delay,
		TruncateAfter: truncate,
		Now:           a.env.Now,
	})

	a.printf("%s listening on http://%s\n", a.styles.Title.Render("rigchat devserver"), addr)
	a.printf("%s\n", a.styles.Dim.Render("demo account: "+server.DemoEmail+" / "+server.DemoPassword))
	return srv.ListenAndServe(ctx, addr)
}

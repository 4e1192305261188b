// rigchat - terminal client for a streaming chat backend.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/jeranaias/rigchat/internal/cli"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

func init() {
	// Sync version info with cli package
	cli.Version = Version
	cli.GitCommit = GitCommit
	cli.BuildDate = BuildDate
}

func main() {
	os.Exit(run())
}

func run() int {
	cmd, args := cli.Parse(os.Args[1:])

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := cli.NewApp(args, cli.OSEnv())
	if err != nil {
		cli.DisplayError(os.Stderr, cli.StylesFor(os.Stderr, !args.NoColor), err, args.JSON)
		return cli.ExitCode(err)
	}
	defer app.Close()

	if err := app.Run(ctx, cmd); err != nil {
		cli.DisplayError(os.Stderr, cli.StylesFor(os.Stderr, app.Config().UI.Color), err, args.JSON)
		return cli.ExitCode(err)
	}
	return cli.ExitCode(nil)
}

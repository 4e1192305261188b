// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// cli.go - Command parsing for rigchat.
package cli

import (
	"fmt"
	"io"
	"strings"
)

// Version information (can be overridden at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Command represents the CLI command to execute.
type Command int

const (
	CmdChat Command = iota
	CmdAsk
	CmdLogin
	CmdRegister
	CmdLogout
	CmdWhoami
	CmdForgotPassword
	CmdResetPassword
	CmdProfile
	CmdConversations
	CmdConfig
	CmdDevServer
	CmdVersion
	CmdHelp
	CmdUnknown
)

var commandNames = map[string]Command{
	"chat":            CmdChat,
	"ask":             CmdAsk,
	"login":           CmdLogin,
	"register":        CmdRegister,
	"signup":          CmdRegister,
	"logout":          CmdLogout,
	"whoami":          CmdWhoami,
	"forgot-password": CmdForgotPassword,
	"reset-password":  CmdResetPassword,
	"profile":         CmdProfile,
	"conversations":   CmdConversations,
	"convs":           CmdConversations,
	"c":               CmdConversations,
	"config":          CmdConfig,
	"devserver":       CmdDevServer,
	"version":         CmdVersion,
	"help":            CmdHelp,
}

// Args holds parsed CLI arguments.
type Args struct {
	// Global flags
	Verbose    bool
	NoColor    bool
	JSON       bool
	ConfigPath string // --config
	BaseURL    string // --api

	// Name is the command word as typed.
	Name string

	// Raw holds the arguments after the command word.
	Raw []string
}

const usageText = `rigchat - terminal client for the rigchat assistant
Version: %s

USAGE:
    rigchat [global flags] <command> [arguments]

COMMANDS:
    chat [--conversation ID]        Interactive chat (default)
    ask [--conversation ID] TEXT    Send one message and print the reply
    login [--email E] [--password-stdin] [--google CREDENTIAL]
    register [--email E] [--name N] [--password-stdin]
    logout                          Sign out and forget the session
    whoami                          Show the signed-in account
    forgot-password EMAIL           Request a password reset
    reset-password TOKEN            Set a new password with a reset token
    profile [show|update|password|settings|export|delete]
    conversations [list|new|show|delete|delete-all|search]
    config [show|get|set|path|keys]
    devserver [--addr HOST:PORT] [--delay 40ms] [--truncate-after N]
    version
    help

GLOBAL FLAGS:
    -v, --verbose       Log requests and stream events to stderr
    --no-color          Disable colored output (also NO_COLOR)
    --json              Machine-readable output where supported
    --config FILE       Use FILE instead of ~/.rigchat/config.toml
    --api URL           Override backend.base_url

CHAT COMMANDS:
    /new [TITLE]   /switch ID|N   /list   /history   /help   /quit
`

// PrintUsage prints the usage/help text.
func PrintUsage(w io.Writer) {
	fmt.Fprintf(w, usageText, Version)
}

// PrintVersion prints version information.
func PrintVersion(w io.Writer) {
	fmt.Fprintf(w, "rigchat version %s\n", Version)
	fmt.Fprintf(w, "  Git commit: %s\n", GitCommit)
	fmt.Fprintf(w, "  Build date: %s\n", BuildDate)
}

// Parse parses command-line arguments (without the program name) and
// returns the command and args. No command means chat.
func Parse(argv []string) (Command, Args) {
	remaining, args := parseGlobalFlags(argv)
	if len(remaining) == 0 {
		return CmdChat, args
	}

	args.Name = remaining[0]
	args.Raw = remaining[1:]

	switch name := strings.ToLower(args.Name); name {
	case "-h", "--help":
		return CmdHelp, args
	case "--version":
		return CmdVersion, args
	default:
		if cmd, ok := commandNames[name]; ok {
			return cmd, args
		}
		return CmdUnknown, args
	}
}

// parseGlobalFlags extracts global flags that appear before the command
// word and returns the rest untouched.
func parseGlobalFlags(argv []string) ([]string, Args) {
	var args Args
	i := 0
	for ; i < len(argv); i++ {
		arg := argv[i]
		switch {
		case arg == "-v" || arg == "--verbose":
			args.Verbose = true
		case arg == "--no-color":
			args.NoColor = true
		case arg == "--json":
			args.JSON = true
		case arg == "--config" || arg == "--api":
			if i+1 >= len(argv) {
				return argv[i:], args
			}
			i++
			if arg == "--config" {
				args.ConfigPath = argv[i]
			} else {
				args.BaseURL = argv[i]
			}
		case strings.HasPrefix(arg, "--config="):
			args.ConfigPath = strings.TrimPrefix(arg, "--config=")
		case strings.HasPrefix(arg, "--api="):
			args.BaseURL = strings.TrimPrefix(arg, "--api=")
		default:
			return argv[i:], args
		}
	}
	return nil, args
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// terminal.go - Terminal detection and raw input for rigchat.
//
// Piped output gets no colors, no markdown re-rendering and no prompts.
// NO_COLOR (https://no-color.org/) and --no-color are honoured.

package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/muesli/termenv"
	"golang.org/x/term"

	"github.com/jeranaias/rigchat/internal/util"
)

// =============================================================================
// TTY DETECTION
// =============================================================================

// isTerminal reports whether v is an *os.File attached to a terminal.
func isTerminal(v any) bool {
	f, ok := v.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

const (
	// DefaultTerminalWidth is used when the width cannot be detected.
	DefaultTerminalWidth = 80
	// MaxRenderWidth caps markdown wrapping on very wide terminals.
	MaxRenderWidth = 120
)

// terminalWidth returns the column count of w, or DefaultTerminalWidth.
func terminalWidth(w any) int {
	f, ok := w.(*os.File)
	if !ok {
		return DefaultTerminalWidth
	}
	width, _, err := term.GetSize(int(f.Fd()))
	if err != nil || width <= 0 {
		return DefaultTerminalWidth
	}
	return width
}

// colorProfile picks the termenv profile for w. Colors are off when
// disabled or when w is not a terminal.
func colorProfile(w io.Writer, enabled, tty bool) termenv.Profile {
	if !enabled || !tty {
		return termenv.Ascii
	}
	return termenv.NewOutput(w).EnvColorProfile()
}

// =============================================================================
// INPUT
// =============================================================================

// errNoInput is returned when stdin closes before a value was read.
var errNoInput = errors.New("no input")

// readLine reads one line from in, trimming the line terminator.
func readLine(in *bufio.Reader) (string, error) {
	line, err := in.ReadString('\n')
	if err != nil && (!errors.Is(err, io.EOF) || line == "") {
		if errors.Is(err, io.EOF) {
			return "", errNoInput
		}
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// prompt writes label and reads a line of visible input.
func (a *App) prompt(label string) (string, error) {
	if a.env.StdinTTY {
		fmt.Fprint(a.env.Stdout, label)
	}
	return readLine(a.in)
}

// readPassword reads a secret. On a terminal the input is not echoed;
// otherwise one line is taken from stdin.
func (a *App) readPassword(label string) (string, error) {
	if f, ok := a.env.Stdin.(*os.File); ok && a.env.StdinTTY {
		fmt.Fprint(a.env.Stdout, label)
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(a.env.Stdout)
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		return string(b), nil
	}
	return readLine(a.in)
}

// displayRows returns how many terminal rows text occupies at width.
func displayRows(text string, width int) int {
	if width <= 0 {
		width = DefaultTerminalWidth
	}
	rows := 0
	for _, line := range strings.Split(text, "\n") {
		w := util.StringWidth(line)
		if w == 0 {
			rows++
			continue
		}
		rows += (w + width - 1) / width
	}
	return rows
}

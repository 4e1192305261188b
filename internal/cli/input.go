// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"log"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"
	"github.com/spf13/afero"

	"github.com/jeranaias/rigchat/internal/config"
	"github.com/jeranaias/rigchat/internal/util"
)

// historyFile is the chat input history, kept next to the config.
const historyFile = "chat_history"

// lineReader reads one line of chat input at a time. ReadLine returns
// io.EOF when the user is done.
type lineReader interface {
	ReadLine(prompt string) (string, error)
	Close() error
}

// newLineReader uses liner for history and line editing on a terminal and
// a plain reader otherwise.
func (a *App) newLineReader() lineReader {
	if !a.env.StdinTTY {
		return &plainReader{in: a.in}
	}
	dir, err := config.Dir()
	if err != nil {
		a.logger.Printf("HISTORY_UNAVAILABLE | error=%v", err)
		return newLinerReader(a.env.FS, "", a.logger)
	}
	return newLinerReader(a.env.FS, filepath.Join(dir, historyFile), a.logger)
}

// =============================================================================
// LINER
// =============================================================================

type linerReader struct {
	line   *liner.State
	fs     afero.Fs
	path   string
	logger *log.Logger
}

func newLinerReader(fs afero.Fs, path string, logger *log.Logger) *linerReader {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	r := &linerReader{line: line, fs: fs, path: path, logger: logger}
	if path != "" {
		if data, err := afero.ReadFile(fs, path); err == nil {
			if _, err := line.ReadHistory(bytes.NewReader(data)); err != nil {
				logger.Printf("HISTORY_READ_FAILED | path=%s error=%v", path, err)
			}
		}
	}
	return r
}

func (r *linerReader) ReadLine(prompt string) (string, error) {
	input, err := r.line.Prompt(prompt)
	if err != nil {
		if errors.Is(err, liner.ErrPromptAborted) {
			return "", io.EOF
		}
		return "", err
	}
	if strings.TrimSpace(input) != "" {
		r.line.AppendHistory(input)
	}
	return input, nil
}

// Close saves history with owner-only permissions and restores the
// terminal.
func (r *linerReader) Close() error {
	defer r.line.Close()
	if r.path == "" {
		return nil
	}
	var buf bytes.Buffer
	if _, err := r.line.WriteHistory(&buf); err != nil {
		return fmt.Errorf("failed to write history: %w", err)
	}
	return util.AtomicWriteFile(r.fs, r.path, buf.Bytes(), 0o600)
}

// =============================================================================
// PLAIN
// =============================================================================

// plainReader reads piped input. It never echoes a prompt.
type plainReader struct {
	in *bufio.Reader
}

func (r *plainReader) ReadLine(string) (string, error) {
	line, err := readLine(r.in)
	if errors.Is(err, errNoInput) {
		return "", io.EOF
	}
	return line, err
}

func (r *plainReader) Close() error { return nil }

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/afero"
)

// ErrWatchUnsupported is returned by Watch on a non-OS filesystem.
var ErrWatchUnsupported = errors.New("session watch requires the OS filesystem")

// watchDebounce coalesces the create+write+rename burst of an atomic write.
const watchDebounce = 50 * time.Millisecond

// Watch reloads the session whenever another process rewrites or removes
// the file, and calls onChange with the new state. ok is false after a
// logout. Watch returns once the watcher is running; it stops when ctx is
// done.
func (s *Store) Watch(ctx context.Context, onChange func(sess Session, ok bool)) error {
	if _, isOS := s.fs.(*afero.OsFs); !isOS {
		return ErrWatchUnsupported
	}

	dir := filepath.Dir(s.path)
	if err := s.fs.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create session directory: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	// Watch the directory: atomic writes replace the file inode.
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	go s.watchLoop(ctx, watcher, onChange)
	return nil
}

func (s *Store) watchLoop(ctx context.Context, watcher *fsnotify.Watcher, onChange func(Session, bool)) {
	defer watcher.Close()

	name := filepath.Base(s.path)
	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != name {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			timer.Reset(watchDebounce)

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			s.logger.Printf("SESSION_WATCH_ERROR | error=%v", err)

		case <-timer.C:
			sess, err := s.Load()
			if err != nil && !errors.Is(err, ErrNoSession) {
				s.logger.Printf("SESSION_RELOAD_FAILED | error=%v", err)
			}
			s.logger.Printf("SESSION_CHANGED | signed_in=%t", err == nil)
			onChange(sess, err == nil)
		}
	}
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/afero"

	"github.com/jeranaias/rigchat/internal/model"
	"github.com/jeranaias/rigchat/internal/util"
)

// ErrNoSession is returned when nobody is signed in.
var ErrNoSession = errors.New("not logged in")

// FileName is the session file inside the rigchat directory.
const FileName = "session.json"

// Session is the signed-in state.
type Session struct {
	Token   string
	User    model.User
	SavedAt time.Time
}

// fileFormat is the on-disk JSON layout.
type fileFormat struct {
	Token   string     `json:"token"`
	User    model.User `json:"user"`
	SavedAt time.Time  `json:"savedAt"`
}

// DefaultPath returns ~/.rigchat/session.json.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".rigchat", FileName), nil
}

// =============================================================================
// STORE
// =============================================================================

// Store persists the session on an afero filesystem. It implements
// gateway.TokenSource.
type Store struct {
	fs     afero.Fs
	path   string
	sealer *Sealer
	logger *log.Logger

	mu     sync.RWMutex
	cached *Session
	loaded bool
}

// NewStore creates a store for the file at path.
func NewStore(fs afero.Fs, path string) *Store {
	return &Store{
		fs:     fs,
		path:   path,
		logger: log.New(io.Discard, "", 0),
	}
}

// WithSealer encrypts the token at rest.
func (s *Store) WithSealer(sealer *Sealer) *Store {
	s.sealer = sealer
	return s
}

// WithLogger sets the logger.
func (s *Store) WithLogger(logger *log.Logger) *Store {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// Path returns the session file location.
func (s *Store) Path() string {
	return s.path
}

// Load reads the session from disk, replacing the cached copy.
func (s *Store) Load() (Session, error) {
	sess, err := s.read()

	s.mu.Lock()
	s.loaded = true
	if err != nil {
		s.cached = nil
	} else {
		s.cached = &sess
	}
	s.mu.Unlock()

	return sess, err
}

func (s *Store) read() (Session, error) {
	data, err := afero.ReadFile(s.fs, s.path)
	if errors.Is(err, os.ErrNotExist) {
		return Session{}, ErrNoSession
	}
	if err != nil {
		return Session{}, fmt.Errorf("failed to read session: %w", err)
	}

	var f fileFormat
	if err := json.Unmarshal(data, &f); err != nil {
		return Session{}, fmt.Errorf("failed to parse session: %w", err)
	}
	if f.Token == "" {
		return Session{}, ErrNoSession
	}

	token := f.Token
	if IsSealed(token) {
		if s.sealer == nil {
			return Session{}, ErrSealed
		}
		if token, err = s.sealer.Open(token); err != nil {
			return Session{}, err
		}
	}
	return Session{Token: token, User: f.User, SavedAt: f.SavedAt}, nil
}

// current returns the cached session, loading it on first use.
func (s *Store) current() (*Session, error) {
	s.mu.RLock()
	if s.loaded {
		cached := s.cached
		s.mu.RUnlock()
		if cached == nil {
			return nil, ErrNoSession
		}
		return cached, nil
	}
	s.mu.RUnlock()

	sess, err := s.Load()
	if err != nil {
		if !errors.Is(err, ErrNoSession) {
			s.logger.Printf("SESSION_LOAD_FAILED | path=%s error=%v", s.path, err)
		}
		return nil, err
	}
	return &sess, nil
}

// Token returns the bearer token if a session exists.
func (s *Store) Token() (string, bool) {
	sess, err := s.current()
	if err != nil {
		return "", false
	}
	return sess.Token, true
}

// User returns the cached profile if a session exists.
func (s *Store) User() (model.User, bool) {
	sess, err := s.current()
	if err != nil {
		return model.User{}, false
	}
	return sess.User, true
}

// Save stores the result of a login or registration.
func (s *Store) Save(auth model.AuthResponse) error {
	if auth.Token == "" {
		return errors.New("refusing to save a session without a token")
	}
	return s.write(Session{Token: auth.Token, User: auth.User, SavedAt: time.Now().UTC()})
}

// SaveUser replaces the cached profile and keeps the token.
func (s *Store) SaveUser(u model.User) error {
	sess, err := s.current()
	if err != nil {
		return err
	}
	next := *sess
	next.User = u
	return s.write(next)
}

func (s *Store) write(sess Session) error {
	token := sess.Token
	if s.sealer != nil {
		sealed, err := s.sealer.Seal(token)
		if err != nil {
			return fmt.Errorf("failed to seal token: %w", err)
		}
		token = sealed
	}

	data, err := json.MarshalIndent(fileFormat{Token: token, User: sess.User, SavedAt: sess.SavedAt}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	// SECURITY: the token grants account access; owner-only perms
	if err := util.AtomicWriteFile(s.fs, s.path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write session: %w", err)
	}

	s.mu.Lock()
	s.cached = &sess
	s.loaded = true
	s.mu.Unlock()

	s.logger.Printf("SESSION_SAVED | user=%s sealed=%t", sess.User.ID, s.sealer != nil)
	return nil
}

// Clear removes the session file. Clearing an absent session is not an error.
func (s *Store) Clear() error {
	err := s.fs.Remove(s.path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove session: %w", err)
	}

	s.mu.Lock()
	s.cached = nil
	s.loaded = true
	s.mu.Unlock()

	s.logger.Printf("SESSION_CLEARED | path=%s", s.path)
	return nil
}

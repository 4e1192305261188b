// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

// =============================================================================
// TOKEN SEALING
// =============================================================================

// SealedPrefix marks a sealed value in the session file.
const SealedPrefix = "ENC:"

const (
	keySize   = 32 // AES-256
	saltSize  = 16
	nonceSize = 12

	// DefaultIterations is the PBKDF2-SHA256 work factor.
	DefaultIterations = 600000
)

var (
	// ErrSealed is returned when a sealed token is read without a key.
	ErrSealed = errors.New("session token is sealed; set RIGCHAT_SESSION_KEY")

	// ErrWrongKey is returned when a sealed token does not open with the key.
	ErrWrongKey = errors.New("session token could not be unsealed with the configured key")
)

// Sealer encrypts the bearer token at rest with AES-256-GCM. Each Seal draws
// a fresh salt, so the key is re-derived per value.
type Sealer struct {
	passphrase []byte
	iterations int
}

// NewSealer creates a sealer for passphrase.
func NewSealer(passphrase string) *Sealer {
	return newSealer(passphrase, DefaultIterations)
}

func newSealer(passphrase string, iterations int) *Sealer {
	return &Sealer{passphrase: []byte(passphrase), iterations: iterations}
}

func (s *Sealer) aead(salt []byte) (cipher.AEAD, error) {
	key := pbkdf2.Key(s.passphrase, salt, s.iterations, keySize, sha256.New)
	defer clear(key)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	return cipher.NewGCM(block)
}

// Seal encrypts plaintext and returns "ENC:" + base64(salt|nonce|ciphertext).
func (s *Sealer) Seal(plaintext string) (string, error) {
	buf := make([]byte, saltSize+nonceSize)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	salt, nonce := buf[:saltSize], buf[saltSize:]

	gcm, err := s.aead(salt)
	if err != nil {
		return "", err
	}
	out := gcm.Seal(buf, nonce, []byte(plaintext), nil)
	return SealedPrefix + base64.StdEncoding.EncodeToString(out), nil
}

// Open reverses Seal.
func (s *Sealer) Open(sealed string) (string, error) {
	if !IsSealed(sealed) {
		return "", errors.New("value is not sealed")
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(sealed, SealedPrefix))
	if err != nil {
		return "", fmt.Errorf("failed to decode sealed value: %w", err)
	}
	if len(raw) < saltSize+nonceSize {
		return "", errors.New("sealed value too short")
	}
	salt, nonce, ct := raw[:saltSize], raw[saltSize:saltSize+nonceSize], raw[saltSize+nonceSize:]

	gcm, err := s.aead(salt)
	if err != nil {
		return "", err
	}
	plain, err := gcm.Open(nil, nonce, ct, nil)
	if err != nil {
		return "", ErrWrongKey
	}
	return string(plain), nil
}

// IsSealed reports whether v carries the sealed prefix.
func IsSealed(v string) bool {
	return strings.HasPrefix(v, SealedPrefix)
}

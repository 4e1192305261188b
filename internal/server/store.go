// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jeranaias/rigchat/internal/model"
)

// Demo credentials that always exist.
const (
	DemoEmail    = "test@test.com"
	DemoPassword = "password"
	DemoName     = "Test User"
)

var (
	errBadCredentials = errors.New("Invalid email or password")
	errEmailTaken     = errors.New("Email already registered")
	errNoConversation = errors.New("Conversation not found")
	errWrongPassword  = errors.New("Current password is incorrect")
	errUnknownAccount = errors.New("Account not found")
)

type account struct {
	user     model.User
	password string
}

// memStore is the in-memory backing state of the dev backend.
type memStore struct {
	mu       sync.Mutex
	now      func() time.Time
	accounts map[string]*account // by email
	tokens   map[string]string   // token -> email
	convs    map[string][]model.Conversation
	messages map[string][]model.Message // by conversation id
	owners   map[string]string          // conversation id -> email
}

func newMemStore(now func() time.Time) *memStore {
	s := &memStore{
		now:      now,
		accounts: make(map[string]*account),
		tokens:   make(map[string]string),
		convs:    make(map[string][]model.Conversation),
		messages: make(map[string][]model.Message),
		owners:   make(map[string]string),
	}
	s.accounts[DemoEmail] = &account{
		user:     model.User{ID: "1", Email: DemoEmail, Name: DemoName, CreatedAt: now().UTC()},
		password: DemoPassword,
	}
	return s
}

func newToken() string {
	b := make([]byte, 16)
	rand.Read(b)
	return "dummy-token-" + hex.EncodeToString(b)
}

// =============================================================================
// ACCOUNTS
// =============================================================================

func (s *memStore) login(email, password string) (model.AuthResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct, ok := s.accounts[strings.ToLower(email)]
	if !ok || subtle.ConstantTimeCompare([]byte(acct.password), []byte(password)) != 1 {
		return model.AuthResponse{}, errBadCredentials
	}
	return s.issueLocked(acct), nil
}

func (s *memStore) register(req model.RegisterRequest) (model.AuthResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	email := strings.ToLower(req.Email)
	if _, taken := s.accounts[email]; taken {
		return model.AuthResponse{}, errEmailTaken
	}
	acct := &account{
		user:     model.User{ID: uuid.NewString(), Email: email, Name: req.Name, CreatedAt: s.now().UTC()},
		password: req.Password,
	}
	s.accounts[email] = acct
	return s.issueLocked(acct), nil
}

// googleLogin signs in as the demo account.
func (s *memStore) googleLogin() model.AuthResponse {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.issueLocked(s.accounts[DemoEmail])
}

func (s *memStore) issueLocked(acct *account) model.AuthResponse {
	token := newToken()
	s.tokens[token] = acct.user.Email
	return model.AuthResponse{User: acct.user, Token: token}
}

func (s *memStore) userForToken(token string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	email, ok := s.tokens[token]
	return email, ok
}

func (s *memStore) logout(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tokens, token)
}

func (s *memStore) profile(email string) (model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acct, ok := s.accounts[email]
	if !ok {
		return model.User{}, errUnknownAccount
	}
	return acct.user, nil
}

func (s *memStore) updateProfile(email string, upd model.ProfileUpdate) (model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acct, ok := s.accounts[email]
	if !ok {
		return model.User{}, errUnknownAccount
	}
	if upd.Name != nil {
		acct.user.Name = *upd.Name
	}
	if upd.Avatar != nil {
		acct.user.Avatar = *upd.Avatar
	}
	return acct.user, nil
}

func (s *memStore) updatePassword(email, current, next string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	acct, ok := s.accounts[email]
	if !ok {
		return errUnknownAccount
	}
	if subtle.ConstantTimeCompare([]byte(acct.password), []byte(current)) != 1 {
		return errWrongPassword
	}
	acct.password = next
	return nil
}

func (s *memStore) deleteAccount(email string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.convs[email] {
		delete(s.messages, c.ID)
		delete(s.owners, c.ID)
	}
	delete(s.convs, email)
	delete(s.accounts, email)
	for token, owner := range s.tokens {
		if owner == email {
			delete(s.tokens, token)
		}
	}
}

func (s *memStore) export(email string) model.ExportData {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := model.ExportData{
		Conversations: slices.Clone(s.convs[email]),
		Messages:      []model.Message{},
		ExportedAt:    s.now().UTC(),
	}
	if out.Conversations == nil {
		out.Conversations = []model.Conversation{}
	}
	for _, c := range s.convs[email] {
		out.Messages = append(out.Messages, s.messages[c.ID]...)
	}
	return out
}

// =============================================================================
// CONVERSATIONS
// =============================================================================

func (s *memStore) listConversations(email string) []model.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := slices.Clone(s.convs[email])
	slices.SortStableFunc(out, func(a, b model.Conversation) int {
		return b.UpdatedAt.Compare(a.UpdatedAt)
	})
	if out == nil {
		out = []model.Conversation{}
	}
	return out
}

func (s *memStore) createConversation(email, title string) model.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	if strings.TrimSpace(title) == "" {
		title = model.DefaultTitle
	}
	now := s.now().UTC()
	conv := model.Conversation{ID: uuid.NewString(), Title: title, CreatedAt: now, UpdatedAt: now}
	s.convs[email] = append([]model.Conversation{conv}, s.convs[email]...)
	s.owners[conv.ID] = email
	return conv
}

func (s *memStore) deleteConversation(email, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.owners[id] != email {
		return errNoConversation
	}
	s.convs[email] = slices.DeleteFunc(s.convs[email], func(c model.Conversation) bool { return c.ID == id })
	delete(s.messages, id)
	delete(s.owners, id)
	return nil
}

func (s *memStore) deleteAllConversations(email string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.convs[email] {
		delete(s.messages, c.ID)
		delete(s.owners, c.ID)
	}
	delete(s.convs, email)
}

func (s *memStore) listMessages(email, id string) ([]model.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.owners[id] != email {
		return nil, errNoConversation
	}
	out := slices.Clone(s.messages[id])
	if out == nil {
		out = []model.Message{}
	}
	return out, nil
}

// appendMessage stores msg, bumps the conversation, and titles an untitled
// conversation from its first user message.
func (s *memStore) appendMessage(email string, msg model.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.owners[msg.ConversationID] != email {
		return errNoConversation
	}
	s.messages[msg.ConversationID] = append(s.messages[msg.ConversationID], msg)

	convs := s.convs[email]
	i := model.FindConversation(convs, msg.ConversationID)
	if i < 0 {
		return nil
	}
	convs[i].Touch(msg.CreatedAt)
	if msg.Role == model.RoleUser {
		if convs[i].Preview == "" {
			convs[i].Preview = model.DeriveTitle(msg.Content)
		}
		if convs[i].Title == model.DefaultTitle {
			convs[i].Title = model.DeriveTitle(msg.Content)
		}
	}
	return nil
}

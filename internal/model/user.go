// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import "time"

// User is the account profile returned by the backend.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Avatar    string    `json:"avatar,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// AuthResponse is returned by login, register and Google sign-in.
type AuthResponse struct {
	User  User   `json:"user"`
	Token string `json:"token"`
}

// LoginRequest carries email/password credentials.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RegisterRequest creates a new account.
type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

// GoogleAuthRequest exchanges a Google ID credential for a session.
type GoogleAuthRequest struct {
	Credential string `json:"credential"`
}

// ProfileUpdate changes profile fields; nil fields are left untouched.
type ProfileUpdate struct {
	Name   *string `json:"name,omitempty"`
	Avatar *string `json:"avatar,omitempty"`
}

// ExportData is the privacy export of everything the account owns.
type ExportData struct {
	Conversations []Conversation `json:"conversations"`
	Messages      []Message      `json:"messages"`
	ExportedAt    time.Time      `json:"exportedAt"`
}

// UserSettings are the privacy toggles of the settings page. They are
// stored locally, not on the backend.
type UserSettings struct {
	// DataCollection allows usage data to be used for improvement.
	DataCollection bool `json:"dataCollection"`
	// ChatHistory keeps a local copy of conversations.
	ChatHistory bool `json:"chatHistory"`
}

// DefaultSettings returns the settings a new account starts with.
func DefaultSettings() UserSettings {
	return UserSettings{DataCollection: true, ChatHistory: true}
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/jeranaias/rigchat/internal/model"
)

// =============================================================================
// LOGIN / REGISTER
// =============================================================================

// Login signs in with email and password, or with a Google credential.
//
//	rigchat login [--email E] [--password-stdin]
//	rigchat login --google CREDENTIAL
func (a *App) Login(ctx context.Context) error {
	p := NewArgParser(a.args.Raw, "password-stdin")

	var auth model.AuthResponse
	var err error
	if credential := p.Flag("google"); credential != "" {
		auth, err = a.client.GoogleAuth(ctx, credential)
	} else {
		email, password, perr := a.credentials(p)
		if perr != nil {
			return perr
		}
		auth, err = a.client.Login(ctx, email, password)
	}
	if err != nil {
		return err
	}
	return a.saveSession(auth, "Signed in")
}

// Register creates an account and signs in.
//
//	rigchat register [--email E] [--name N] [--password-stdin]
func (a *App) Register(ctx context.Context) error {
	p := NewArgParser(a.args.Raw, "password-stdin")

	name := p.Flag("name")
	if name == "" {
		var err error
		if name, err = a.prompt("Name: "); err != nil {
			return usageErr("name is required")
		}
	}
	email, password, err := a.credentials(p)
	if err != nil {
		return err
	}
	if strings.TrimSpace(name) == "" {
		return usageErr("name is required")
	}

	auth, err := a.client.Register(ctx, model.RegisterRequest{Email: email, Password: password, Name: name})
	if err != nil {
		return err
	}
	return a.saveSession(auth, "Account created")
}

// credentials collects email and password from flags, prompts or stdin.
func (a *App) credentials(p *ArgParser) (email, password string, err error) {
	email = p.Flag("email")
	if email == "" {
		if email, err = a.prompt("Email: "); err != nil {
			return "", "", usageErr("email is required")
		}
	}
	if p.BoolFlag("password-stdin") {
		password, err = readLine(a.in)
	} else {
		password, err = a.readPassword("Password: ")
	}
	if err != nil || password == "" {
		return "", "", usageErr("password is required")
	}
	email = strings.TrimSpace(email)
	if email == "" {
		return "", "", usageErr("email is required")
	}
	return email, password, nil
}

func (a *App) saveSession(auth model.AuthResponse, verb string) error {
	if err := a.store.Save(auth); err != nil {
		return err
	}
	a.printf("%s %s as %s\n", a.styles.Success.Render("✓"), verb, auth.User.Email)
	return nil
}

// =============================================================================
// LOGOUT / WHOAMI
// =============================================================================

// Logout tells the backend and forgets the local session. The local session
// is cleared even when the backend cannot be reached.
func (a *App) Logout(ctx context.Context) error {
	if _, ok := a.store.Token(); !ok {
		a.println("Not signed in.")
		return nil
	}
	if err := a.client.Logout(ctx); err != nil {
		a.logger.Printf("LOGOUT_REMOTE_FAILED | error=%v", err)
		a.warn("backend logout failed: %v", err)
	}
	if err := a.store.Clear(); err != nil {
		return err
	}
	a.printf("%s Signed out\n", a.styles.Success.Render("✓"))
	return nil
}

// Whoami fetches the profile and refreshes the cached copy.
func (a *App) Whoami(ctx context.Context) error {
	if err := a.requireSession(); err != nil {
		return err
	}
	user, err := a.client.Profile(ctx)
	if err != nil {
		return err
	}
	if err := a.store.SaveUser(user); err != nil {
		a.logger.Printf("SESSION_USER_SAVE_FAILED | error=%v", err)
	}
	if a.args.JSON {
		return a.writeJSON(user)
	}
	a.printUser(user)
	return nil
}

func (a *App) printUser(u model.User) {
	a.println(a.styles.field("Name", u.Name))
	a.println(a.styles.field("Email", u.Email))
	if u.Avatar != "" {
		a.println(a.styles.field("Avatar", u.Avatar))
	}
	a.println(a.styles.field("ID", u.ID))
	if !u.CreatedAt.IsZero() {
		a.println(a.styles.field("Member since", u.CreatedAt.Local().Format("2006-01-02")))
	}
}

// =============================================================================
// PASSWORD RESET
// =============================================================================

// ForgotPassword asks the backend to send a reset link.
func (a *App) ForgotPassword(ctx context.Context) error {
	p := NewArgParser(a.args.Raw)
	email := p.Positional(0)
	if email == "" {
		return &UsageError{Msg: "email is required", Usage: "rigchat forgot-password EMAIL"}
	}
	if err := a.client.ForgotPassword(ctx, email); err != nil {
		return err
	}
	a.printf("If %s has an account, a reset link is on its way.\n", email)
	return nil
}

// ResetPassword sets a new password using a reset token.
func (a *App) ResetPassword(ctx context.Context) error {
	p := NewArgParser(a.args.Raw, "password-stdin")
	token := p.Positional(0)
	if token == "" {
		return &UsageError{Msg: "reset token is required", Usage: "rigchat reset-password TOKEN [--password-stdin]"}
	}
	password, err := a.newPassword(p)
	if err != nil {
		return err
	}
	if err := a.client.ResetPassword(ctx, token, password); err != nil {
		return err
	}
	a.printf("%s Password updated. Sign in with 'rigchat login'.\n", a.styles.Success.Render("✓"))
	return nil
}

// newPassword reads a new password, asking twice on a terminal.
func (a *App) newPassword(p *ArgParser) (string, error) {
	if p.BoolFlag("password-stdin") || !a.env.StdinTTY {
		pw, err := readLine(a.in)
		if err != nil || pw == "" {
			return "", usageErr("new password is required")
		}
		return pw, nil
	}
	pw, err := a.readPassword("New password: ")
	if err != nil {
		return "", err
	}
	again, err := a.readPassword("Repeat new password: ")
	if err != nil {
		return "", err
	}
	if pw == "" || pw != again {
		return "", fmt.Errorf("passwords do not match")
	}
	return pw, nil
}

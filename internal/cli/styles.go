// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// styles.go - Shared lipgloss styles for rigchat commands.

package cli

import (
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/jeranaias/rigchat/internal/config"
)

// Styles holds every style a command prints with. All styles come from one
// renderer so --no-color applies everywhere.
type Styles struct {
	Title     lipgloss.Style
	Section   lipgloss.Style
	Label     lipgloss.Style
	Value     lipgloss.Style
	Success   lipgloss.Style
	Error     lipgloss.Style
	Warning   lipgloss.Style
	Dim       lipgloss.Style
	Separator lipgloss.Style
	User      lipgloss.Style
	Assistant lipgloss.Style
	Active    lipgloss.Style
}

// newStyles builds the palette for w using profile.
func newStyles(w io.Writer, profile termenv.Profile) Styles {
	r := lipgloss.NewRenderer(w)
	r.SetColorProfile(profile)

	return Styles{
		// Cyan (#39)
		Title: r.NewStyle().Bold(true).Foreground(lipgloss.Color("39")),
		// White (#255), used for group headers
		Section: r.NewStyle().Bold(true).Foreground(lipgloss.Color("255")),
		Label:   r.NewStyle().Foreground(lipgloss.Color("245")).Width(14),
		Value:   r.NewStyle().Foreground(lipgloss.Color("252")),
		Success: r.NewStyle().Bold(true).Foreground(lipgloss.Color("42")),
		Error:   r.NewStyle().Bold(true).Foreground(lipgloss.Color("196")),
		Warning: r.NewStyle().Foreground(lipgloss.Color("214")),
		Dim:     r.NewStyle().Foreground(lipgloss.Color("242")),
		// Dark gray (#240)
		Separator: r.NewStyle().Foreground(lipgloss.Color("240")),
		User:      r.NewStyle().Bold(true).Foreground(lipgloss.Color("75")),
		Assistant: r.NewStyle().Bold(true).Foreground(lipgloss.Color("82")),
		Active:    r.NewStyle().Bold(true).Foreground(lipgloss.Color("39")),
	}
}

// separator renders a horizontal rule of width columns.
func (s Styles) separator(width int) string {
	if width <= 0 {
		width = 60
	}
	return s.Separator.Render(strings.Repeat("─", width))
}

// field renders an aligned "label value" line.
func (s Styles) field(label, value string) string {
	return s.Label.Render(label) + s.Value.Render(value)
}

// StylesFor returns the palette for w when no App could be built, for
// example to report a config error. Colors follow the terminal and NO_COLOR.
func StylesFor(w io.Writer, color bool) Styles {
	color = color && os.Getenv(config.EnvNoColor) == ""
	return newStyles(w, colorProfile(w, color, isTerminal(w)))
}

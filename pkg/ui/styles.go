package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/gtgtree/gtgtree/pkg/model"
)

// ══════════════════════════════════════════════════════════════════════════════
// COLOR PALETTE - Dracula-inspired
// ══════════════════════════════════════════════════════════════════════════════

var (
	ColorBgSubtle    = lipgloss.Color("#363949")
	ColorBgHighlight = lipgloss.Color("#44475A")
	ColorText        = lipgloss.Color("#F8F8F2")
	ColorMuted       = lipgloss.Color("#6272A4")
	ColorPrimary     = lipgloss.Color("#BD93F9")

	// Status colors
	ColorStatusActive    = lipgloss.Color("#50FA7B")
	ColorStatusDone      = lipgloss.Color("#6272A4")
	ColorStatusDismissed = lipgloss.Color("#FF5555")

	// Status background colors (for badges)
	ColorStatusActiveBg    = lipgloss.Color("#1A3D2A")
	ColorStatusDoneBg      = lipgloss.Color("#2A2A3D")
	ColorStatusDismissedBg = lipgloss.Color("#3D1A1A")
)

// Styles are the lipgloss styles bound to one renderer, so color output
// follows the destination terminal.
type Styles struct {
	Title    lipgloss.Style
	Closed   lipgloss.Style
	Guide    lipgloss.Style
	Excerpt  lipgloss.Style
	Tag      lipgloss.Style
	Divider  lipgloss.Style
	renderer *lipgloss.Renderer
}

// NewStyles builds the style set for r.
func NewStyles(r *lipgloss.Renderer) Styles {
	return Styles{
		Title:    r.NewStyle().Foreground(ColorText),
		Closed:   r.NewStyle().Foreground(ColorMuted).Strikethrough(true),
		Guide:    r.NewStyle().Foreground(ColorBgHighlight),
		Excerpt:  r.NewStyle().Foreground(ColorMuted).Italic(true),
		Tag:      r.NewStyle().Foreground(ColorPrimary),
		Divider:  r.NewStyle().Foreground(ColorBgHighlight),
		renderer: r,
	}
}

// StatusBadge returns a fixed-width status badge
func (s Styles) StatusBadge(status model.Status) string {
	var fg, bg lipgloss.Color
	var label string

	switch status {
	case model.StatusActive:
		fg, bg, label = ColorStatusActive, ColorStatusActiveBg, "TODO"
	case model.StatusDone:
		fg, bg, label = ColorStatusDone, ColorStatusDoneBg, "DONE"
	case model.StatusDismissed:
		fg, bg, label = ColorStatusDismissed, ColorStatusDismissedBg, "DISM"
	default:
		fg, bg, label = ColorMuted, ColorBgSubtle, "????"
	}

	return s.renderer.NewStyle().
		Foreground(fg).
		Background(bg).
		Render(label)
}

// RenderDivider renders a horizontal divider line
func (s Styles) RenderDivider(width int) string {
	if width <= 0 {
		return ""
	}
	return s.Divider.Render(strings.Repeat("─", width))
}

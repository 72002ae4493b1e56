package ui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/vanderheijden86/nodemap/pkg/theme"
)

// Theme holds the terminal colours for one palette.
type Theme struct {
	Renderer *lipgloss.Renderer
	Palette  theme.Palette

	Primary    lipgloss.Color
	Secondary  lipgloss.Color
	Background lipgloss.Color
	Surface    lipgloss.Color
	Text       lipgloss.Color
	Subtext    lipgloss.Color
	Border     lipgloss.Color

	Base lipgloss.Style
}

// NewTheme builds terminal styles from a palette. A nil renderer uses the
// default one.
func NewTheme(p theme.Palette, r *lipgloss.Renderer) Theme {
	if r == nil {
		r = lipgloss.DefaultRenderer()
	}
	t := Theme{
		Renderer:   r,
		Palette:    p,
		Primary:    lipgloss.Color(p.Primary),
		Secondary:  lipgloss.Color(p.Secondary),
		Background: lipgloss.Color(p.Background),
		Surface:    lipgloss.Color(p.Surface),
		Text:       lipgloss.Color(p.Text),
		Subtext:    lipgloss.Color(p.TextSecondary),
		Border:     lipgloss.Color(p.Border),
	}
	t.Base = r.NewStyle().Foreground(t.Text)
	return t
}

// cellClass picks the style of one canvas cell.
type cellClass uint8

const (
	classBlank cellClass = iota
	classEdge
	classEdgeEmphasized
	classNode
	classNodeHovered
	classLabel
	classControl
)

func (t Theme) classStyle(c cellClass) lipgloss.Style {
	s := t.Renderer.NewStyle()
	switch c {
	case classEdge:
		return s.Foreground(t.Secondary).Faint(true)
	case classEdgeEmphasized:
		return s.Foreground(t.Primary).Bold(true)
	case classNode:
		return s.Foreground(t.Border)
	case classNodeHovered:
		return s.Foreground(t.Primary).Bold(true)
	case classLabel:
		return s.Foreground(t.Text)
	case classControl:
		return s.Foreground(t.Primary).Bold(true)
	}
	return s
}

func (t Theme) statusStyle() lipgloss.Style {
	return t.Renderer.NewStyle().Foreground(t.Subtext)
}

func (t Theme) errorStyle() lipgloss.Style {
	return t.Renderer.NewStyle().Foreground(lipgloss.Color("#ef4444")).Bold(true)
}

func (t Theme) modalStyle(width int) lipgloss.Style {
	return t.Renderer.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(t.Primary).
		Padding(0, 1).
		Width(width)
}

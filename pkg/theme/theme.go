// Package theme holds the light and dark colour palettes used by every
// renderer. Layout, graph and viewport logic never read it.
package theme

import (
	"fmt"
	"image/color"
	"sort"
	"strconv"
	"strings"
)

// Palette is a named set of hex colours.
type Palette struct {
	Name          string `json:"name" yaml:"name"`
	Primary       string `json:"primary" yaml:"primary"`
	Secondary     string `json:"secondary" yaml:"secondary"`
	Background    string `json:"background" yaml:"background"`
	Surface       string `json:"surface" yaml:"surface"`
	Text          string `json:"text" yaml:"text"`
	TextSecondary string `json:"text_secondary" yaml:"text_secondary"`
	Border        string `json:"border" yaml:"border"`
}

const (
	NameLight = "light"
	NameDark  = "dark"
	NameAuto  = "auto" // follow the terminal or system background

	Default = NameDark
)

var palettes = map[string]Palette{
	NameLight: {
		Name:          "Light",
		Primary:       "#00a67e",
		Secondary:     "#10a37f",
		Background:    "#ffffff",
		Surface:       "#f7f7f8",
		Text:          "#202123",
		TextSecondary: "#6e6e80",
		Border:        "#e5e5e5",
	},
	NameDark: {
		Name:          "Dark",
		Primary:       "#00a67e",
		Secondary:     "#10a37f",
		Background:    "#343541",
		Surface:       "#444654",
		Text:          "#ececf1",
		TextSecondary: "#c5c5d2",
		Border:        "#565869",
	},
}

// Names lists the concrete palette names.
func Names() []string {
	names := make([]string, 0, len(palettes))
	for k := range palettes {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Lookup returns the palette with the given name.
func Lookup(name string) (Palette, error) {
	p, ok := palettes[strings.ToLower(name)]
	if !ok {
		return Palette{}, fmt.Errorf("theme %q not found (available: %s)", name, strings.Join(Names(), ", "))
	}
	return p, nil
}

// Resolve is Lookup with "auto" and "" mapped to dark or light depending on
// darkBackground.
func Resolve(name string, darkBackground bool) (Palette, error) {
	switch strings.ToLower(name) {
	case NameAuto:
		if darkBackground {
			return palettes[NameDark], nil
		}
		return palettes[NameLight], nil
	case "":
		return palettes[Default], nil
	}
	return Lookup(name)
}

// Manager tracks the active palette and notifies listeners when it changes.
type Manager struct {
	current   string
	listeners []func(Palette)
}

// NewManager starts with the named palette; unknown names fall back to the
// default.
func NewManager(name string) *Manager {
	if _, ok := palettes[strings.ToLower(name)]; !ok {
		name = Default
	}
	return &Manager{current: strings.ToLower(name)}
}

// Current returns the active palette.
func (m *Manager) Current() Palette { return palettes[m.current] }

// CurrentName returns the active palette's key.
func (m *Manager) CurrentName() string { return m.current }

// Set switches palettes.
func (m *Manager) Set(name string) error {
	p, err := Lookup(name)
	if err != nil {
		return err
	}
	m.current = strings.ToLower(name)
	for _, fn := range m.listeners {
		fn(p)
	}
	return nil
}

// Toggle flips between light and dark.
func (m *Manager) Toggle() {
	next := NameLight
	if m.current == NameLight {
		next = NameDark
	}
	_ = m.Set(next)
}

// OnChange registers fn and returns a function that removes it.
func (m *Manager) OnChange(fn func(Palette)) (remove func()) {
	m.listeners = append(m.listeners, fn)
	idx := len(m.listeners) - 1
	return func() {
		if idx < len(m.listeners) {
			m.listeners[idx] = func(Palette) {}
		}
	}
}

// ParseHex parses #rgb or #rrggbb.
func ParseHex(s string) (color.RGBA, error) {
	h := strings.TrimPrefix(s, "#")
	if len(h) == 3 {
		h = string([]byte{h[0], h[0], h[1], h[1], h[2], h[2]})
	}
	if len(h) != 6 {
		return color.RGBA{}, fmt.Errorf("invalid hex colour %q", s)
	}
	v, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("invalid hex colour %q: %w", s, err)
	}
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}, nil
}

// RGBA parses a palette colour, returning opaque black for malformed input.
func RGBA(hex string) color.RGBA {
	c, err := ParseHex(hex)
	if err != nil {
		return color.RGBA{A: 0xff}
	}
	return c
}

// CSSVars renders the palette as CSS custom properties.
func (p Palette) CSSVars() string {
	var b strings.Builder
	for _, kv := range [][2]string{
		{"primary", p.Primary},
		{"secondary", p.Secondary},
		{"background", p.Background},
		{"surface", p.Surface},
		{"text", p.Text},
		{"text-secondary", p.TextSecondary},
		{"border", p.Border},
	} {
		fmt.Fprintf(&b, "--color-%s: %s; ", kv[0], kv[1])
	}
	return strings.TrimSpace(b.String())
}

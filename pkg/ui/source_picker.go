package ui

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/sahilm/fuzzy"
)

const quickSlots = 9

// SourceEntry is one collection offered by the picker. Slot is its 1-9
// quick-switch key, or 0.
type SourceEntry struct {
	Path     string
	Name     string
	Slot     int
	IsActive bool
}

// SwitchSourceMsg asks the model to load another collection.
type SwitchSourceMsg struct {
	Path string
}

// SourcePickerModel is a one-line strip of collections. Digits switch
// directly and / starts a fuzzy filter over the paths.
type SourcePickerModel struct {
	entries []SourceEntry
	visible []int
	sel     int
	width   int
	query   textinput.Model
	active  bool
	theme   Theme
	label   string
}

func NewSourcePicker(paths []string, active string, theme Theme) SourcePickerModel {
	m := SourcePickerModel{theme: theme, label: "sources"}
	for i, p := range paths {
		e := SourceEntry{Path: p, Name: entryName(p)}
		if i < quickSlots {
			e.Slot = i + 1
		}
		m.entries = append(m.entries, e)
	}
	m.SetActive(active)

	m.query = textinput.New()
	m.query.Placeholder = "type to filter..."
	m.query.CharLimit = 50
	m.query.Width = 30
	m.refilter()
	return m
}

// entryName is the file name, or the folder name for the conventional
// gallery-data.json so several galleries stay distinguishable.
func entryName(path string) string {
	base := filepath.Base(path)
	if base == "gallery-data.json" {
		if dir := filepath.Base(filepath.Dir(path)); dir != "." && dir != string(filepath.Separator) {
			return dir
		}
	}
	return base
}

func (m *SourcePickerModel) SetSize(w int) { m.width = w }

func (m *SourcePickerModel) SetTheme(t Theme) { m.theme = t }

// SetLabel sets the translated title shown before the entries.
func (m *SourcePickerModel) SetLabel(s string) { m.label = s }

// Filtering reports whether the filter input has focus.
func (m SourcePickerModel) Filtering() bool { return m.active }

// SetActive marks the entry for path as the loaded one.
func (m *SourcePickerModel) SetActive(path string) {
	want := filepath.Clean(path)
	for i := range m.entries {
		m.entries[i].IsActive = path != "" && filepath.Clean(m.entries[i].Path) == want
	}
}

// Entries returns the entries currently shown, in display order.
func (m SourcePickerModel) Entries() []SourceEntry {
	out := make([]SourceEntry, 0, len(m.visible))
	for _, i := range m.visible {
		out = append(out, m.entries[i])
	}
	return out
}

func (m SourcePickerModel) Update(msg tea.Msg) (SourcePickerModel, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	if m.active {
		return m.filterKey(key)
	}

	s := key.String()
	switch {
	case s == "/":
		m.active, m.sel = true, 0
		m.query.SetValue("")
		m.query.Focus()
	case len(s) == 1 && s[0] >= '1' && s[0] <= '9':
		slot := int(s[0] - '0')
		for _, e := range m.entries {
			if e.Slot == slot {
				return m, switchTo(e.Path)
			}
		}
	}
	return m, nil
}

func (m SourcePickerModel) filterKey(key tea.KeyMsg) (SourcePickerModel, tea.Cmd) {
	switch key.String() {
	case "esc":
		m.stopFilter()
		m.query.SetValue("")
		m.refilter()
		return m, nil
	case "enter":
		m.stopFilter()
		if m.sel < len(m.visible) {
			return m, switchTo(m.entries[m.visible[m.sel]].Path)
		}
		return m, nil
	case "up", "left":
		m.sel = max(m.sel-1, 0)
		return m, nil
	case "down", "right":
		m.sel = max(min(m.sel+1, len(m.visible)-1), 0)
		return m, nil
	}
	var cmd tea.Cmd
	m.query, cmd = m.query.Update(key)
	m.refilter()
	return m, cmd
}

func (m *SourcePickerModel) stopFilter() {
	m.active = false
	m.query.Blur()
}

func switchTo(path string) tea.Cmd {
	return func() tea.Msg { return SwitchSourceMsg{Path: path} }
}

// refilter recomputes the visible entries, best fuzzy match first.
func (m *SourcePickerModel) refilter() {
	m.visible = make([]int, 0, len(m.entries))
	if q := strings.TrimSpace(m.query.Value()); q != "" {
		paths := make([]string, len(m.entries))
		for i, e := range m.entries {
			paths[i] = e.Path
		}
		for _, match := range fuzzy.Find(q, paths) {
			m.visible = append(m.visible, match.Index)
		}
	} else {
		for i := range m.entries {
			m.visible = append(m.visible, i)
		}
	}
	m.sel = max(min(m.sel, len(m.visible)-1), 0)
}

// View renders the strip, eliding entries that do not fit the width.
func (m SourcePickerModel) View() string {
	t := m.theme
	st := func() lipgloss.Style { return t.Renderer.NewStyle() }

	head := st().Foreground(t.Primary).Bold(true).Render(fmt.Sprintf("%s[%d]", m.label, len(m.visible)))
	parts := []string{head}
	if m.active {
		parts = append(parts, st().Foreground(t.Primary).Render("/ "+m.query.View()))
	}

	used := 0
	for _, p := range parts {
		used += lipgloss.Width(p) + 2
	}
	for n, i := range m.visible {
		e := m.entries[i]
		text := e.Name
		if e.Slot > 0 {
			text = fmt.Sprintf("%d %s", e.Slot, e.Name)
		}
		w := lipgloss.Width(text) + 2
		if m.width > 0 && used+w > m.width {
			parts = append(parts, st().Foreground(t.Subtext).Render("…"))
			break
		}
		used += w

		style := st().Foreground(t.Text)
		if m.active && n == m.sel {
			style = st().Foreground(t.Background).Background(t.Primary).Bold(true)
		} else if e.IsActive {
			style = st().Foreground(t.Primary).Bold(true)
		}
		parts = append(parts, style.Render(text))
	}
	return strings.Join(parts, "  ")
}

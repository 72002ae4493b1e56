package ui

import (
	"github.com/charmbracelet/bubbles/key"

	"github.com/vanderheijden86/nodemap/pkg/i18n"
)

// keyMap binds keys to map actions. Arrow keys pan the view; nodes are
// only reachable with the mouse.
type keyMap struct {
	Up       key.Binding
	Down     key.Binding
	Left     key.Binding
	Right    key.Binding
	ZoomIn   key.Binding
	ZoomOut  key.Binding
	Reset    key.Binding
	Close    key.Binding
	Copy     key.Binding
	Reload   key.Binding
	Theme    key.Binding
	Language key.Binding
	Help     key.Binding
	Quit     key.Binding
}

func newKeyMap(tr *i18n.Translator) keyMap {
	return keyMap{
		Up:       key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", tr.T("keys.pan"))),
		Down:     key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", tr.T("keys.pan"))),
		Left:     key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("←/h", tr.T("keys.pan"))),
		Right:    key.NewBinding(key.WithKeys("right", "l"), key.WithHelp("→/l", tr.T("keys.pan"))),
		ZoomIn:   key.NewBinding(key.WithKeys("+", "="), key.WithHelp("+", tr.T("controls.zoom_in"))),
		ZoomOut:  key.NewBinding(key.WithKeys("-", "_"), key.WithHelp("-", tr.T("controls.zoom_out"))),
		Reset:    key.NewBinding(key.WithKeys("0"), key.WithHelp("0", tr.T("controls.reset"))),
		Close:    key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", tr.T("modal.close"))),
		Copy:     key.NewBinding(key.WithKeys("y"), key.WithHelp("y", tr.T("modal.copy"))),
		Reload:   key.NewBinding(key.WithKeys("r"), key.WithHelp("r", tr.T("keys.reload"))),
		Theme:    key.NewBinding(key.WithKeys("t"), key.WithHelp("t", tr.T("controls.theme"))),
		Language: key.NewBinding(key.WithKeys("L"), key.WithHelp("L", tr.T("controls.language"))),
		Help:     key.NewBinding(key.WithKeys("?"), key.WithHelp("?", tr.T("keys.help"))),
		Quit:     key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", tr.T("controls.quit"))),
	}
}

// ShortHelp implements help.KeyMap.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.ZoomIn, k.ZoomOut, k.Reset, k.Help, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Left, k.Right},
		{k.ZoomIn, k.ZoomOut, k.Reset},
		{k.Close, k.Copy},
		{k.Reload, k.Theme, k.Language, k.Help, k.Quit},
	}
}

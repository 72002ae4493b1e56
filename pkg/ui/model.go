package ui

import (
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/vanderheijden86/nodemap/pkg/engine"
	"github.com/vanderheijden86/nodemap/pkg/i18n"
	"github.com/vanderheijden86/nodemap/pkg/interaction"
	"github.com/vanderheijden86/nodemap/pkg/model"
	"github.com/vanderheijden86/nodemap/pkg/theme"
)

// SurfaceID is the surface the terminal map is mounted on.
const SurfaceID = "terminal"

// Arrow keys pan by this many cells.
const panCells = 3

// Config wires a Model to its engine and item source.
type Config struct {
	Engine *engine.Engine
	Items  []model.Item
	// LoadErr is the initial load failure; the map stays unrendered until
	// the worker delivers items.
	LoadErr error
	Worker  *BackgroundWorker

	// Sources are the item files offered by the picker. The picker is
	// hidden with fewer than two.
	Sources      []string
	ActiveSource string

	Renderer *lipgloss.Renderer
	// MarkdownStyle is the glamour style of the detail modal. Empty
	// follows the palette name.
	MarkdownStyle string
}

// host is shared by every copy of a Model.
type host struct {
	sender Sender
	worker *BackgroundWorker
}

type rect struct{ x, y, w, h int }

func (r rect) contains(x, y int) bool {
	return x >= r.x && x < r.x+r.w && y >= r.y && y < r.y+r.h
}

type controlBox struct {
	rect
	label   string
	control interaction.Control
}

var headerControls = []struct {
	label   string
	control interaction.Control
}{
	{"[+]", interaction.ControlZoomIn},
	{"[-]", interaction.ControlZoomOut},
	{"[0]", interaction.ControlReset},
}

// Model is the terminal host of one map instance. Mouse input is turned
// into surface events; the engine does the rest.
type Model struct {
	engine  *engine.Engine
	tr      *i18n.Translator
	themes  *theme.Manager
	logger  *log.Logger
	surface *engine.LocalSurface
	inst    *engine.Instance
	host    *host

	picker     SourcePickerModel
	showPicker bool
	theme      Theme
	keys       keyMap
	help       help.Model

	modal         viewport.Model
	modalKey      string
	markdownStyle string
	renderer      *glamour.TermRenderer
	rendererWidth int

	width, height int
	ready         bool
	status        string
	loadErr       error
	clipboard     func(string) error
}

// NewModel mounts cfg.Items on the terminal surface unless cfg.LoadErr is
// set.
func NewModel(cfg Config) (Model, error) {
	if cfg.Engine == nil {
		return Model{}, errors.New("ui: engine is required")
	}
	svc := cfg.Engine.Services()
	m := Model{
		engine:        cfg.Engine,
		tr:            svc.Translator,
		themes:        svc.Theme,
		logger:        svc.Logger,
		surface:       engine.NewLocalSurface(SurfaceID),
		host:          &host{worker: cfg.Worker},
		showPicker:    len(cfg.Sources) > 1,
		help:          help.New(),
		markdownStyle: cfg.MarkdownStyle,
		loadErr:       cfg.LoadErr,
		clipboard:     clipboard.WriteAll,
	}
	m.theme = NewTheme(m.themes.Current(), cfg.Renderer)
	m.keys = newKeyMap(m.tr)
	m.picker = NewSourcePicker(cfg.Sources, cfg.ActiveSource, m.theme)
	m.picker.SetLabel(m.tr.T("keys.sources"))

	if cfg.LoadErr == nil {
		inst, err := cfg.Engine.Mount(m.surface, cfg.Items)
		if err != nil {
			return Model{}, err
		}
		m.inst = inst
	}
	return m, nil
}

// Attach points the worker at the running program.
func (m Model) Attach(p Sender) {
	m.host.sender = p
	if m.host.worker != nil {
		m.host.worker.SetProgram(p)
	}
}

// Close stops the worker and disposes the map.
func (m Model) Close() {
	if m.host.worker != nil {
		m.host.worker.Stop()
	}
	if m.inst != nil {
		m.inst.Dispose()
	}
}

// Instance returns the mounted map, or nil while unrendered.
func (m Model) Instance() *engine.Instance { return m.inst }

// Status returns the status line text.
func (m Model) Status() string { return m.statusText() }

func (m Model) Init() tea.Cmd {
	if m.host.worker == nil {
		return nil
	}
	return startWorker(m.host.worker, false)
}

func startWorker(w *BackgroundWorker, refresh bool) tea.Cmd {
	return func() tea.Msg {
		if err := w.Start(); err != nil {
			return ItemsErrorMsg{Err: err}
		}
		if refresh {
			w.TriggerRefresh()
		}
		return nil
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.ready = true
		m.help.Width = msg.Width
		m.picker.SetSize(msg.Width)
		m.modalKey = ""

	case tea.KeyMsg:
		m, cmd = m.handleKey(msg)

	case tea.MouseMsg:
		m = m.handleMouse(msg)

	case ItemsReadyMsg:
		m.applyItems(msg.Snapshot.Items)

	case ItemsErrorMsg:
		m.loadErr = msg.Err
		m.status = ""
		m.logger.Printf("ui: load failed: %v", msg.Err)

	case SwitchSourceMsg:
		m, cmd = m.switchSource(msg.Path)
	}

	m.syncModal()
	return m, cmd
}

func (m *Model) applyItems(items []model.Item) {
	var err error
	if m.inst == nil {
		m.inst, err = m.engine.Mount(m.surface, items)
	} else {
		err = m.inst.Reload(items)
	}
	if err != nil {
		m.loadErr = err
		m.status = ""
		return
	}
	m.loadErr = nil
	m.modalKey = ""
	m.status = m.tr.Tf("status.reloaded", map[string]string{"items": fmt.Sprint(len(items))})
}

func (m Model) switchSource(path string) (Model, tea.Cmd) {
	if m.host.worker != nil {
		m.host.worker.Stop()
	}
	w, err := NewBackgroundWorker(WorkerConfig{WatchPath: path, Program: m.host.sender, Logger: m.logger})
	if err != nil {
		m.host.worker = nil
		m.loadErr = err
		m.status = ""
		return m, nil
	}
	m.host.worker = w
	m.picker.SetActive(path)
	m.status = m.tr.T("status.loading")
	return m, startWorker(w, true)
}

func (m Model) handleKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	var cmd tea.Cmd
	if m.showPicker && m.picker.Filtering() {
		m.picker, cmd = m.picker.Update(msg)
		return m, cmd
	}
	item, open := m.detailItem()

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Close):
		if m.help.ShowAll {
			m.help.ShowAll = false
		} else {
			m.emit(interaction.Event{Kind: interaction.KeyCancel})
		}
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		m.modalKey = ""
	case key.Matches(msg, m.keys.Copy):
		if open && item.ImageSource != "" {
			m.copy(item.ImageSource)
		}
	case key.Matches(msg, m.keys.Reload):
		if m.host.worker != nil {
			m.host.worker.TriggerRefresh()
			m.status = m.tr.T("status.loading")
		}
	case key.Matches(msg, m.keys.Theme):
		m.themes.Toggle()
		m.setTheme(NewTheme(m.themes.Current(), m.theme.Renderer))
		m.status = m.tr.Tf("status.theme", map[string]string{"name": m.themes.CurrentName()})
	case key.Matches(msg, m.keys.Language):
		lang := m.tr.Next()
		m.keys = newKeyMap(m.tr)
		m.picker.SetLabel(m.tr.T("keys.sources"))
		m.modalKey = ""
		m.status = m.tr.Tf("status.language", map[string]string{"name": lang.NativeName})
	case open && key.Matches(msg, m.keys.Up):
		m.modal.ScrollUp(1)
	case open && key.Matches(msg, m.keys.Down):
		m.modal.ScrollDown(1)
	case open:
	case key.Matches(msg, m.keys.Up):
		m.pan(0, panCells*cellH)
	case key.Matches(msg, m.keys.Down):
		m.pan(0, -panCells*cellH)
	case key.Matches(msg, m.keys.Left):
		m.pan(panCells*cellW, 0)
	case key.Matches(msg, m.keys.Right):
		m.pan(-panCells*cellW, 0)
	case key.Matches(msg, m.keys.ZoomIn):
		m.emit(interaction.Event{Kind: interaction.PointerDown, Target: interaction.OnControl(interaction.ControlZoomIn)})
	case key.Matches(msg, m.keys.ZoomOut):
		m.emit(interaction.Event{Kind: interaction.PointerDown, Target: interaction.OnControl(interaction.ControlZoomOut)})
	case key.Matches(msg, m.keys.Reset):
		m.emit(interaction.Event{Kind: interaction.PointerDown, Target: interaction.OnControl(interaction.ControlReset)})
	case m.showPicker:
		m.picker, cmd = m.picker.Update(msg)
	}
	return m, cmd
}

func (m *Model) pan(dx, dy float64) {
	if m.inst != nil {
		m.inst.Viewport().Pan(dx, dy)
	}
}

// glamourStyle is the configured markdown style, or the standard glamour
// style named after the palette ("dark" or "light").
func (m *Model) glamourStyle() string {
	if m.markdownStyle != "" {
		return m.markdownStyle
	}
	return strings.ToLower(m.theme.Palette.Name)
}

func (m *Model) setTheme(t Theme) {
	m.theme = t
	m.picker.SetTheme(t)
	m.renderer = nil
	m.modalKey = ""
}

func (m *Model) copy(text string) {
	if err := m.clipboard(text); err != nil {
		m.logger.Printf("ui: copy failed: %v", err)
		m.status = err.Error()
		return
	}
	m.status = m.tr.T("modal.copied")
}

func (m Model) emit(ev interaction.Event) {
	if m.inst != nil {
		m.surface.Emit(ev)
	}
}

func (m Model) detailItem() (model.Item, bool) {
	if m.inst == nil {
		return model.Item{}, false
	}
	return m.inst.Detail().Shown()
}

func (m Model) handleMouse(msg tea.MouseMsg) Model {
	if m.inst == nil {
		return m
	}
	if _, open := m.detailItem(); open {
		return m.handleModalMouse(msg)
	}

	top := m.mapTop()
	inMap := msg.Y >= top && msg.Y < top+m.mapHeight()
	sx, sy := cellPoint(msg.X, msg.Y-top)

	switch {
	case msg.Button == tea.MouseButtonWheelUp:
		m.emit(interaction.Event{Kind: interaction.Wheel, X: sx, Y: sy, DeltaY: -1})
	case msg.Button == tea.MouseButtonWheelDown:
		m.emit(interaction.Event{Kind: interaction.Wheel, X: sx, Y: sy, DeltaY: 1})
	case msg.Action == tea.MouseActionPress && msg.Button == tea.MouseButtonLeft:
		m.status = ""
		for _, b := range m.controlBoxes() {
			if b.contains(msg.X, msg.Y) {
				m.emit(interaction.Event{Kind: interaction.PointerDown, Target: interaction.OnControl(b.control), X: sx, Y: sy})
				return m
			}
		}
		if inMap {
			m.emit(interaction.Event{Kind: interaction.PointerDown, Target: m.inst.Target(sx, sy), X: sx, Y: sy})
		}
	case msg.Action == tea.MouseActionMotion:
		target := interaction.Outside()
		if inMap {
			target = m.inst.Target(sx, sy)
		}
		m.hover(target)
		m.emit(interaction.Event{Kind: interaction.PointerMove, Target: target, X: sx, Y: sy})
	case msg.Action == tea.MouseActionRelease:
		m.emit(interaction.Event{Kind: interaction.PointerUp, X: sx, Y: sy})
	}
	return m
}

// hover turns a motion target into leave and enter events.
func (m Model) hover(t interaction.Target) {
	cur, ok := m.inst.Interaction().Hovered()
	onNode := t.Kind == interaction.TargetNode
	if ok && (!onNode || t.Node != cur) {
		m.emit(interaction.Event{Kind: interaction.PointerLeave, Target: interaction.OnNode(cur)})
	}
	if onNode && (!ok || t.Node != cur) {
		m.emit(interaction.Event{Kind: interaction.PointerEnter, Target: t})
	}
}

func (m Model) handleModalMouse(msg tea.MouseMsg) Model {
	box := m.modalRect()
	switch {
	case msg.Button == tea.MouseButtonWheelUp:
		m.modal.ScrollUp(1)
	case msg.Button == tea.MouseButtonWheelDown:
		m.modal.ScrollDown(1)
	case msg.Action == tea.MouseActionPress && msg.Button == tea.MouseButtonLeft:
		switch {
		case !box.contains(msg.X, msg.Y):
			m.emit(interaction.Event{Kind: interaction.PointerDown, Target: interaction.Backdrop()})
		case msg.Y == box.y+1:
			m.emit(interaction.Event{Kind: interaction.PointerDown, Target: interaction.OnControl(interaction.ControlClose)})
		default:
			m.emit(interaction.Event{Kind: interaction.PointerDown, Target: interaction.Target{Kind: interaction.TargetModal}})
		}
	}
	return m
}

// Layout: header row, optional picker row, map, status row, help.

func (m Model) mapTop() int {
	if m.showPicker {
		return 2
	}
	return 1
}

func (m Model) mapHeight() int {
	footer := 1 + lipgloss.Height(m.help.View(m.keys))
	return max(m.height-m.mapTop()-footer, 1)
}

func (m Model) controlBoxes() []controlBox {
	total := -1
	for _, c := range headerControls {
		total += len(c.label) + 1
	}
	x := max(m.width-total, 0)
	boxes := make([]controlBox, len(headerControls))
	for i, c := range headerControls {
		boxes[i] = controlBox{rect: rect{x: x, y: 0, w: len(c.label), h: 1}, label: c.label, control: c.control}
		x += len(c.label) + 1
	}
	return boxes
}

func (m Model) modalWidth() int {
	return max(min(64, m.width-4), min(20, m.width))
}

func (m Model) modalRect() rect {
	w := m.modalWidth()
	h := m.modal.Height + 4 // border, header and footer rows
	return rect{
		x: max((m.width-w)/2, 0),
		y: m.mapTop() + max((m.mapHeight()-h)/2, 0),
		w: w,
		h: h,
	}
}

// syncModal re-renders the modal body when the shown item, the size, the
// theme or the language changed.
func (m *Model) syncModal() {
	item, open := m.detailItem()
	if !open || !m.ready {
		m.modalKey = ""
		return
	}
	k := fmt.Sprintf("%v|%d|%d|%s|%s|%t", item, m.width, m.height, m.tr.Language().Code, m.theme.Palette.Name, m.help.ShowAll)
	if k == m.modalKey {
		return
	}
	m.modalKey = k

	w := max(m.modalWidth()-4, 1)
	content := m.renderMarkdown(item, w)
	lines := strings.Count(content, "\n") + 1
	m.modal = viewport.New(w, max(min(lines, m.mapHeight()-4), 1))
	m.modal.SetContent(content)
}

func (m *Model) renderMarkdown(item model.Item, width int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", item.Title)
	if strings.TrimSpace(item.Description) != "" {
		b.WriteString(item.Description)
	} else {
		fmt.Fprintf(&b, "_%s_", m.tr.T("modal.no_description"))
	}
	if item.ImageSource != "" {
		fmt.Fprintf(&b, "\n\n![%s](%s)", item.Title, item.ImageSource)
	}
	md := b.String()

	if m.renderer == nil || m.rendererWidth != width {
		r, err := glamour.NewTermRenderer(
			glamour.WithStandardStyle(m.glamourStyle()),
			glamour.WithWordWrap(width),
		)
		if err != nil {
			m.logger.Printf("ui: markdown renderer: %v", err)
			return md
		}
		m.renderer, m.rendererWidth = r, width
	}
	out, err := m.renderer.Render(md)
	if err != nil {
		return md
	}
	return strings.Trim(out, "\n")
}

func (m Model) View() string {
	if !m.ready {
		return m.tr.T("status.loading")
	}
	parts := []string{m.headerView()}
	if m.showPicker {
		parts = append(parts, m.picker.View())
	}
	parts = append(parts, m.mapView(m.mapHeight()), m.statusView(), m.help.View(m.keys))
	return strings.Join(parts, "\n")
}

func (m Model) headerView() string {
	boxes := m.controlBoxes()
	title := runewidth.Truncate(m.tr.T("map.title"), max(boxes[0].x-1, 0), "…")
	var b strings.Builder
	b.WriteString(m.theme.Renderer.NewStyle().Foreground(m.theme.Primary).Bold(true).Render(title))
	b.WriteString(strings.Repeat(" ", max(boxes[0].x-runewidth.StringWidth(title), 0)))
	for i, box := range boxes {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(m.theme.classStyle(classControl).Render(box.label))
	}
	return b.String()
}

func (m Model) mapView(h int) string {
	c := newCanvas(m.width, h)
	switch {
	case m.inst == nil:
		reason := "not loaded"
		if m.loadErr != nil {
			reason = m.loadErr.Error()
		}
		c.centered(h/2, m.tr.Tf("map.unavailable", map[string]string{"reason": reason}), classLabel)
	case len(m.inst.Nodes()) == 0:
		c.centered(h/2, m.tr.T("map.empty"), classLabel)
	default:
		if _, open := m.detailItem(); open {
			return m.overlayModal(h)
		}
		hovered, ok := m.inst.Interaction().Hovered()
		if !ok {
			hovered = -1
		}
		drawMap(c, m.inst, hovered, m.inst.Interaction().Emphasized())
	}
	return c.render(m.theme)
}

// overlayModal draws the modal over a blank backdrop.
func (m Model) overlayModal(h int) string {
	box := m.modalRect()
	modal := strings.Split(m.modalView(), "\n")
	lines := make([]string, h)
	for i := range lines {
		if j := m.mapTop() + i - box.y; j >= 0 && j < len(modal) {
			lines[i] = strings.Repeat(" ", box.x) + modal[j]
		}
	}
	return strings.Join(lines, "\n")
}

func (m Model) modalView() string {
	inner := max(m.modalWidth()-4, 1)
	header := runewidth.Truncate("✕ "+m.tr.T("modal.close"), inner, "…")
	footer := runewidth.Truncate(fmt.Sprintf("y %s · esc %s", m.tr.T("modal.copy"), m.tr.T("modal.close")), inner, "…")
	body := lipgloss.JoinVertical(lipgloss.Left,
		m.theme.classStyle(classControl).Render(header),
		m.modal.View(),
		m.theme.statusStyle().Render(footer),
	)
	return m.theme.modalStyle(m.modalWidth() - 2).Render(body)
}

func (m Model) statusText() string {
	switch {
	case m.status != "":
		return m.status
	case m.loadErr != nil:
		return m.tr.Tf("map.unavailable", map[string]string{"reason": m.loadErr.Error()})
	case m.inst == nil:
		return m.tr.T("status.loading")
	}
	return m.tr.Tf("map.summary", map[string]string{
		"items": fmt.Sprint(len(m.inst.Items())),
		"edges": fmt.Sprint(len(m.inst.Edges())),
		"zoom":  fmt.Sprintf("%.1f", m.inst.Viewport().Scale()),
	})
}

func (m Model) statusView() string {
	text := m.statusText()
	style := m.theme.statusStyle()
	if m.status == "" && m.loadErr != nil {
		style = m.theme.errorStyle()
	}
	line := text
	if hint := m.tr.T("map.hint"); m.loadErr == nil && runewidth.StringWidth(text)+3+runewidth.StringWidth(hint) <= m.width {
		line = text + " · " + hint
	}
	return style.Render(runewidth.Truncate(line, m.width, "…"))
}

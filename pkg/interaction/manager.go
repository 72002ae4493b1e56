// Package interaction reconciles pointer, touch, wheel and key input into
// hover emphasis, panning, zooming and detail requests.
//
// The manager is a three-state machine:
//
//	Idle        --enter(n)-->         Hovering(n)
//	Hovering(n) --leave(n)-->         Idle
//	any         --down(background)--> Dragging
//	Dragging    --up/cancel-->        Idle
//
// A pointer-down on a node opens the detail view and never starts a drag.
// While dragging, enter and leave events are ignored so emphasis cannot
// change under a pan.
package interaction

import (
	"fmt"

	"github.com/vanderheijden86/nodemap/pkg/model"
)

// State is the manager's current mode.
type State int

const (
	Idle State = iota
	Hovering
	Dragging
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Hovering:
		return "hovering"
	case Dragging:
		return "dragging"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Viewport receives pan and zoom requests.
type Viewport interface {
	Pan(dx, dy float64)
	Wheel(deltaY float64)
	ZoomIn()
	ZoomOut()
	Reset()
}

// Detail receives open and close requests.
type Detail interface {
	Open(item model.Item)
	Close()
}

// Incidence answers which edges touch a node; *graph.Graph satisfies it.
type Incidence interface {
	NodeCount() int
	Incident(n int) []int
}

// Manager owns InteractionState for one map instance.
type Manager struct {
	state       State
	hovered     int
	lastPointer model.Position
	emphasized  []int

	graph       Incidence
	items       []model.Item
	view        Viewport
	detail      Detail
	onHighlight func([]int)
}

// New creates an idle manager. items[i] must be the item behind node i.
func New(g Incidence, items []model.Item, view Viewport, detail Detail) *Manager {
	return &Manager{graph: g, items: items, view: view, detail: detail, hovered: -1}
}

// OnHighlight registers a hook called with the emphasized edge indices
// whenever they change.
func (m *Manager) OnHighlight(fn func([]int)) {
	m.onHighlight = fn
}

// State returns the current state.
func (m *Manager) State() State { return m.state }

// Hovered returns the hovered node index when Hovering.
func (m *Manager) Hovered() (int, bool) {
	if m.state != Hovering {
		return -1, false
	}
	return m.hovered, true
}

// IsDragging reports whether a pan drag is in progress.
func (m *Manager) IsDragging() bool { return m.state == Dragging }

// LastPointer returns the last pointer position seen during a drag.
func (m *Manager) LastPointer() model.Position { return m.lastPointer }

// Emphasized returns the ascending indices of emphasized edges.
func (m *Manager) Emphasized() []int {
	out := make([]int, len(m.emphasized))
	copy(out, m.emphasized)
	return out
}

// Handle applies one event. An event naming a node outside the node set
// returns an error wrapping model.ErrInvalidTarget and leaves state
// untouched. Events with a missing or non-finite position are ignored.
func (m *Manager) Handle(ev Event) error {
	if ev.Target.Kind == TargetNode && (ev.Target.Node < 0 || ev.Target.Node >= m.graph.NodeCount() || ev.Target.Node >= len(m.items)) {
		return fmt.Errorf("%s on node %d of %d: %w", ev.Kind, ev.Target.Node, m.graph.NodeCount(), model.ErrInvalidTarget)
	}

	switch ev.Kind {
	case PointerEnter:
		m.enter(ev.Target)
	case PointerLeave:
		m.leave(ev.Target)
	case PointerDown, TouchStart:
		m.down(ev)
	case PointerMove, TouchMove:
		m.move(ev)
	case PointerUp, PointerCancel, TouchEnd, TouchCancel:
		if m.state == Dragging {
			m.state = Idle
		}
	case Wheel:
		if model.IsFinite(ev.DeltaY) {
			m.view.Wheel(ev.DeltaY)
		}
	case KeyCancel:
		m.detail.Close()
	}
	return nil
}

func (m *Manager) enter(t Target) {
	if m.state == Dragging || t.Kind != TargetNode {
		return
	}
	if m.state == Hovering && m.hovered == t.Node {
		return
	}
	m.state = Hovering
	m.hovered = t.Node
	m.setEmphasis(m.graph.Incident(t.Node))
}

func (m *Manager) leave(t Target) {
	if m.state != Hovering || t.Kind != TargetNode || t.Node != m.hovered {
		return
	}
	m.state = Idle
	m.hovered = -1
	m.setEmphasis(nil)
}

func (m *Manager) down(ev Event) {
	switch ev.Target.Kind {
	case TargetNode:
		m.detail.Open(m.items[ev.Target.Node])
	case TargetControl:
		m.control(ev.Target.Control)
	case TargetBackdrop:
		m.detail.Close()
	case TargetBackground:
		p, ok := ev.Point()
		if !ok {
			return
		}
		m.state = Dragging
		m.hovered = -1
		m.lastPointer = p
		m.setEmphasis(nil)
	}
}

func (m *Manager) move(ev Event) {
	if m.state != Dragging {
		return
	}
	p, ok := ev.Point()
	if !ok {
		return
	}
	dx, dy := p.X-m.lastPointer.X, p.Y-m.lastPointer.Y
	m.lastPointer = p
	if dx != 0 || dy != 0 {
		m.view.Pan(dx, dy)
	}
}

func (m *Manager) control(c Control) {
	switch c {
	case ControlZoomIn:
		m.view.ZoomIn()
	case ControlZoomOut:
		m.view.ZoomOut()
	case ControlReset:
		m.view.Reset()
	case ControlClose:
		m.detail.Close()
	}
}

func (m *Manager) setEmphasis(edges []int) {
	if len(edges) == 0 && len(m.emphasized) == 0 {
		return
	}
	m.emphasized = append(m.emphasized[:0], edges...)
	if m.onHighlight != nil {
		m.onHighlight(m.Emphasized())
	}
}

package interaction

import (
	"errors"
	"math"
	"reflect"
	"testing"

	"github.com/vanderheijden86/nodemap/pkg/detail"
	"github.com/vanderheijden86/nodemap/pkg/graph"
	"github.com/vanderheijden86/nodemap/pkg/model"
	"github.com/vanderheijden86/nodemap/pkg/viewport"
	"pgregory.net/rapid"
)

type fixture struct {
	m      *Manager
	g      *graph.Graph
	view   *viewport.Controller
	detail *detail.Presenter
	items  []model.Item
}

// newFixture wires a manager over 4 nodes:
//
//	0->1, 1->0, 1->2, 3->1, 2->0
func newFixture() *fixture {
	items := []model.Item{
		{ID: "a", Title: "A"}, {ID: "b", Title: "B"},
		{ID: "c", Title: "C"}, {ID: "d", Title: "D"},
	}
	g := graph.New(4, []model.Edge{{From: 0, To: 1}, {From: 1, To: 0}, {From: 1, To: 2}, {From: 3, To: 1}, {From: 2, To: 0}})
	view := viewport.New(viewport.DefaultConfig(), nil)
	p := detail.New(nil)
	return &fixture{m: New(g, items, view, p), g: g, view: view, detail: p, items: items}
}

func (f *fixture) send(t *testing.T, evs ...Event) {
	t.Helper()
	for _, ev := range evs {
		if err := f.m.Handle(ev); err != nil {
			t.Fatalf("Handle(%v): %v", ev.Kind, err)
		}
	}
}

func TestHover_EmphasizesIncidentEdges(t *testing.T) {
	f := newFixture()
	var hooks [][]int
	f.m.OnHighlight(func(e []int) { hooks = append(hooks, e) })

	f.send(t, Event{Kind: PointerEnter, Target: OnNode(1)})
	if f.m.State() != Hovering {
		t.Fatalf("state = %v, want hovering", f.m.State())
	}
	if got, want := f.m.Emphasized(), []int{0, 1, 2, 3}; !reflect.DeepEqual(got, want) {
		t.Errorf("Emphasized() = %v, want %v", got, want)
	}

	f.send(t, Event{Kind: PointerLeave, Target: OnNode(1)})
	if f.m.State() != Idle || len(f.m.Emphasized()) != 0 {
		t.Errorf("after leave: state=%v emphasized=%v", f.m.State(), f.m.Emphasized())
	}
	if len(hooks) != 2 || len(hooks[1]) != 0 {
		t.Errorf("highlight hooks = %v", hooks)
	}
}

func TestHover_LeaveOfOtherNodeIsIgnored(t *testing.T) {
	f := newFixture()
	f.send(t,
		Event{Kind: PointerEnter, Target: OnNode(0)},
		Event{Kind: PointerEnter, Target: OnNode(3)},
		Event{Kind: PointerLeave, Target: OnNode(0)},
	)
	if n, ok := f.m.Hovered(); !ok || n != 3 {
		t.Fatalf("Hovered() = %d, %v; want 3", n, ok)
	}
	if got, want := f.m.Emphasized(), []int{3}; !reflect.DeepEqual(got, want) {
		t.Errorf("Emphasized() = %v, want %v", got, want)
	}
}

func TestHighlightSymmetryProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(2, 30).Draw(t, "n")
		edgeGen := rapid.Custom(func(t *rapid.T) model.Edge {
			from := rapid.IntRange(0, n-1).Draw(t, "from")
			to := rapid.IntRange(0, n-2).Draw(t, "to")
			if to >= from {
				to++
			}
			return model.Edge{From: from, To: to}
		})
		edges := rapid.SliceOf(edgeGen).Draw(t, "edges")
		items := make([]model.Item, n)
		g := graph.New(n, edges)
		m := New(g, items, viewport.New(viewport.DefaultConfig(), nil), detail.New(nil))

		hover := rapid.IntRange(0, n-1).Draw(t, "hover")
		if err := m.Handle(Event{Kind: PointerEnter, Target: OnNode(hover)}); err != nil {
			t.Fatal(err)
		}
		var want []int
		for i, e := range edges {
			if e.From == hover || e.To == hover {
				want = append(want, i)
			}
		}
		got := m.Emphasized()
		if len(got) != len(want) || (len(want) > 0 && !reflect.DeepEqual(got, want)) {
			t.Fatalf("emphasized %v, want %v", got, want)
		}
		if err := m.Handle(Event{Kind: PointerLeave, Target: OnNode(hover)}); err != nil {
			t.Fatal(err)
		}
		if len(m.Emphasized()) != 0 {
			t.Fatalf("emphasis not cleared: %v", m.Emphasized())
		}
	})
}

func TestPointerDownOnNode_OpensDetailWithoutDrag(t *testing.T) {
	f := newFixture()
	f.send(t,
		Event{Kind: PointerEnter, Target: OnNode(2), X: 10, Y: 10},
		Event{Kind: PointerDown, Target: OnNode(2), X: 10, Y: 10},
		Event{Kind: PointerUp, Target: OnNode(2), X: 10, Y: 10},
	)
	item, ok := f.detail.Shown()
	if !ok || item.ID != "c" {
		t.Fatalf("detail shown = %+v, %v; want item c", item, ok)
	}
	if x, y := f.view.Translate(); x != 0 || y != 0 {
		t.Errorf("translate changed to (%v, %v)", x, y)
	}
	if f.m.IsDragging() {
		t.Error("pointer-down on a node must not start a drag")
	}
}

func TestBackgroundDrag_PansByScreenDelta(t *testing.T) {
	f := newFixture()
	f.view.ZoomTo(1.7) // delta must not depend on zoom
	f.send(t,
		Event{Kind: PointerDown, Target: Background(), X: 100, Y: 100},
		Event{Kind: PointerMove, Target: Background(), X: 110, Y: 95},
		Event{Kind: PointerMove, Target: Outside(), X: 130, Y: 90},
	)
	if !f.m.IsDragging() {
		t.Fatal("expected dragging")
	}
	if x, y := f.view.Translate(); x != 30 || y != -10 {
		t.Errorf("translate = (%v, %v), want (30, -10)", x, y)
	}
	f.send(t, Event{Kind: PointerUp, Target: Outside(), X: 500, Y: 500})
	if f.m.State() != Idle {
		t.Errorf("state after release outside = %v", f.m.State())
	}
	if f.detail.IsOpen() {
		t.Error("background drag must not open the detail view")
	}
}

func TestDrag_SuppressesHover(t *testing.T) {
	f := newFixture()
	f.send(t,
		Event{Kind: PointerEnter, Target: OnNode(1)},
		Event{Kind: PointerDown, Target: Background(), X: 0, Y: 0},
	)
	if len(f.m.Emphasized()) != 0 {
		t.Fatalf("drag start should clear emphasis, got %v", f.m.Emphasized())
	}
	f.send(t, Event{Kind: PointerEnter, Target: OnNode(0)})
	if f.m.State() != Dragging || len(f.m.Emphasized()) != 0 {
		t.Errorf("hover during drag changed state: %v %v", f.m.State(), f.m.Emphasized())
	}
	f.send(t, Event{Kind: PointerCancel, Target: Outside()})
	if f.m.State() != Idle {
		t.Errorf("cancel should end drag, state %v", f.m.State())
	}
	f.send(t, Event{Kind: PointerEnter, Target: OnNode(0)})
	if f.m.State() != Hovering {
		t.Errorf("hover after drag: state %v", f.m.State())
	}
}

func TestTouchParity(t *testing.T) {
	f := newFixture()
	f.send(t,
		Event{Kind: TouchStart, Target: Background(), Touches: []model.Position{{X: 50, Y: 50}, {X: 900, Y: 900}}},
		Event{Kind: TouchMove, Target: Background(), Touches: []model.Position{{X: 80, Y: 40}, {X: 0, Y: 0}}},
		Event{Kind: TouchEnd, Target: Background()},
	)
	if x, y := f.view.Translate(); x != 30 || y != -10 {
		t.Errorf("translate = (%v, %v), want (30, -10)", x, y)
	}
	if f.m.State() != Idle {
		t.Errorf("state = %v, want idle", f.m.State())
	}

	f.send(t, Event{Kind: TouchStart, Target: OnNode(0), Touches: []model.Position{{X: 1, Y: 1}}})
	if item, ok := f.detail.Shown(); !ok || item.ID != "a" {
		t.Errorf("touch on node should open detail, got %+v %v", item, ok)
	}

	f.send(t, Event{Kind: TouchStart, Target: Background()})
	if f.m.IsDragging() {
		t.Error("touch-start without contacts should be ignored")
	}
}

func TestControlsAndClose(t *testing.T) {
	f := newFixture()
	f.send(t,
		Event{Kind: PointerDown, Target: OnControl(ControlZoomIn)},
		Event{Kind: PointerDown, Target: OnControl(ControlZoomIn)},
		Event{Kind: PointerDown, Target: OnControl(ControlZoomOut)},
	)
	if s := f.view.Scale(); s < 1.0999 || s > 1.1001 {
		t.Errorf("scale = %v, want 1.1", s)
	}
	if f.m.IsDragging() {
		t.Error("control press must not start a drag")
	}
	f.send(t, Event{Kind: PointerDown, Target: OnControl(ControlReset)})
	if f.view.Transform() != viewport.Identity() {
		t.Errorf("reset control: %+v", f.view.Transform())
	}

	closers := []Event{
		{Kind: PointerDown, Target: OnControl(ControlClose)},
		{Kind: PointerDown, Target: Backdrop()},
		{Kind: KeyCancel},
	}
	for _, c := range closers {
		f.send(t, Event{Kind: PointerDown, Target: OnNode(1)})
		f.send(t, c, c)
		if f.detail.IsOpen() {
			t.Errorf("%v on %v did not close the detail", c.Kind, c.Target.Kind)
		}
	}

	f.send(t, Event{Kind: PointerDown, Target: OnNode(1)}, Event{Kind: PointerDown, Target: Target{Kind: TargetModal}})
	if !f.detail.IsOpen() {
		t.Error("click inside the modal content should not close it")
	}
}

func TestWheel(t *testing.T) {
	f := newFixture()
	f.send(t, Event{Kind: Wheel, DeltaY: 120}, Event{Kind: Wheel, DeltaY: 3})
	if s := f.view.Scale(); s < 0.7999 || s > 0.8001 {
		t.Errorf("scale = %v, want 0.8", s)
	}
}

func TestInvalidTarget(t *testing.T) {
	f := newFixture()
	err := f.m.Handle(Event{Kind: PointerDown, Target: OnNode(7)})
	if !errors.Is(err, model.ErrInvalidTarget) {
		t.Fatalf("error = %v, want ErrInvalidTarget", err)
	}
	if f.detail.IsOpen() || f.m.State() != Idle {
		t.Error("invalid target must not change state")
	}
}

func TestNonFinitePointerIgnored(t *testing.T) {
	f := newFixture()
	f.send(t, Event{Kind: PointerDown, Target: Background(), X: 0, Y: 0})
	f.send(t, Event{Kind: PointerMove, X: math.NaN(), Y: 3})
	if x, y := f.view.Translate(); x != 0 || y != 0 {
		t.Errorf("NaN move panned to (%v, %v)", x, y)
	}
	f.send(t, Event{Kind: PointerMove, X: 4, Y: 3})
	if x, y := f.view.Translate(); x != 4 || y != 3 {
		t.Errorf("translate = (%v, %v), want (4, 3)", x, y)
	}
}

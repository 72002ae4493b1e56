package engine

import (
	"context"
	"errors"
	"io"
	"log"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/vanderheijden86/nodemap/pkg/interaction"
	"github.com/vanderheijden86/nodemap/pkg/layout"
	"github.com/vanderheijden86/nodemap/pkg/loader"
	"github.com/vanderheijden86/nodemap/pkg/model"
	"github.com/vanderheijden86/nodemap/pkg/viewport"
)

func fiveItems() []model.Item {
	return []model.Item{
		{ID: "1", Title: "Harbour", ImageSource: "img/1.jpg"},
		{ID: "2", Title: "Market", ImageSource: "img/2.jpg"},
		{ID: "3", Title: "Temple", ImageSource: "img/3.jpg"},
		{ID: "4", Title: "Bridge", ImageSource: "img/4.jpg"},
		{ID: "5", Title: "Garden", ImageSource: "img/5.jpg", Description: "Quiet."},
	}
}

func newTestEngine(t *testing.T) (*Engine, *strings.Builder) {
	t.Helper()
	var buf strings.Builder
	e, err := New(Services{Jitter: layout.NoJitter{}, Logger: log.New(&buf, "", 0)}, DefaultOptions())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return e, &buf
}

func mount(t *testing.T, e *Engine, id string, items []model.Item) (*Instance, *LocalSurface) {
	t.Helper()
	s := NewLocalSurface(id)
	inst, err := e.Mount(s, items)
	if err != nil {
		t.Fatalf("Mount: %v", err)
	}
	return inst, s
}

func TestMount_FiveItems(t *testing.T) {
	e, _ := newTestEngine(t)
	inst, s := mount(t, e, "gallery", fiveItems())

	if len(inst.Nodes()) != 5 {
		t.Fatalf("nodes = %d, want 5", len(inst.Nodes()))
	}
	edges := inst.Edges()
	if len(edges) > 10 {
		t.Errorf("edges = %d, want <= 10", len(edges))
	}
	out := map[int]int{}
	for _, ed := range edges {
		out[ed.From]++
		if ed.From == ed.To {
			t.Errorf("self edge %v", ed)
		}
	}
	for n, c := range out {
		if c > 2 {
			t.Errorf("node %d has %d outgoing edges", n, c)
		}
	}
	if s.Transform() != viewport.Identity() || s.Applies() != 1 {
		t.Errorf("initial transform %v after %d applies", s.Transform(), s.Applies())
	}
	if s.Listeners() != 1 {
		t.Errorf("listeners = %d, want 1", s.Listeners())
	}
	if got, ok := e.Instance("gallery"); !ok || got != inst {
		t.Error("instance not registered")
	}
}

func TestMount_Empty(t *testing.T) {
	e, _ := newTestEngine(t)
	inst, _ := mount(t, e, "empty", nil)
	if len(inst.Nodes()) != 0 || len(inst.Edges()) != 0 {
		t.Errorf("empty mount produced %d nodes, %d edges", len(inst.Nodes()), len(inst.Edges()))
	}
	if _, ok := inst.HitTest(1000, 1000); ok {
		t.Error("hit on empty map")
	}
}

func TestMount_RemountDisposesPrevious(t *testing.T) {
	e, _ := newTestEngine(t)
	s := NewLocalSurface("gallery")
	first, err := e.Mount(s, fiveItems())
	if err != nil {
		t.Fatal(err)
	}
	second, err := e.Mount(s, fiveItems()[:2])
	if err != nil {
		t.Fatal(err)
	}

	if !first.Disposed() || second.Disposed() {
		t.Errorf("disposed: first=%v second=%v", first.Disposed(), second.Disposed())
	}
	if s.Listeners() != 1 {
		t.Errorf("listeners = %d, want 1 after remount", s.Listeners())
	}
	if e.Mounted() != 1 {
		t.Errorf("mounted = %d, want 1", e.Mounted())
	}
	if err := first.Dispatch(interaction.Event{Kind: interaction.KeyCancel}); !errors.Is(err, ErrDisposed) {
		t.Errorf("Dispatch on disposed = %v", err)
	}
}

func TestDispose_DetachesListeners(t *testing.T) {
	e, _ := newTestEngine(t)
	inst, s := mount(t, e, "gallery", fiveItems())

	inst.Dispose()
	inst.Dispose()

	if s.Listeners() != 0 {
		t.Errorf("listeners = %d after dispose", s.Listeners())
	}
	if e.Mounted() != 0 {
		t.Errorf("mounted = %d after dispose", e.Mounted())
	}
	s.Emit(interaction.Event{Kind: interaction.PointerDown, Target: interaction.Background(), X: 1, Y: 1})
	if inst.Interaction().IsDragging() {
		t.Error("disposed instance still receives events")
	}
}

func TestEngineClose(t *testing.T) {
	e, _ := newTestEngine(t)
	a, _ := mount(t, e, "a", fiveItems())
	b, _ := mount(t, e, "b", fiveItems())
	e.Close()
	if !a.Disposed() || !b.Disposed() || e.Mounted() != 0 {
		t.Error("Close did not dispose every instance")
	}
}

func TestSurfaceDrag_PansByDelta(t *testing.T) {
	e, _ := newTestEngine(t)
	inst, s := mount(t, e, "gallery", fiveItems())

	s.Emit(interaction.Event{Kind: interaction.PointerDown, Target: interaction.Background(), X: 100, Y: 100})
	s.Emit(interaction.Event{Kind: interaction.PointerMove, Target: interaction.Outside(), X: 130, Y: 90})
	s.Emit(interaction.Event{Kind: interaction.PointerUp, Target: interaction.Outside(), X: 130, Y: 90})

	want := viewport.Transform{Scale: 1, TranslateX: 30, TranslateY: -10}
	if got := s.Transform(); got != want {
		t.Errorf("surface transform = %+v, want %+v", got, want)
	}
	if inst.Detail().IsOpen() {
		t.Error("drag opened the detail modal")
	}
	if inst.Interaction().IsDragging() {
		t.Error("still dragging after pointer-up")
	}
}

func TestSurfaceClick_OpensDetail(t *testing.T) {
	e, _ := newTestEngine(t)
	inst, s := mount(t, e, "gallery", fiveItems())

	s.Emit(interaction.Event{Kind: interaction.PointerDown, Target: interaction.OnNode(4), X: 10, Y: 10})
	s.Emit(interaction.Event{Kind: interaction.PointerUp, Target: interaction.OnNode(4), X: 10, Y: 10})

	got, ok := s.Detail()
	if !ok || got.ID != "5" {
		t.Fatalf("detail = %+v, %v; want item 5", got, ok)
	}
	if inst.Viewport().Transform() != viewport.Identity() {
		t.Errorf("click moved the viewport: %v", inst.Viewport().Transform())
	}

	s.Emit(interaction.Event{Kind: interaction.PointerDown, Target: interaction.Backdrop()})
	if _, ok := s.Detail(); ok {
		t.Error("backdrop click did not close the modal")
	}
	s.Emit(interaction.Event{Kind: interaction.KeyCancel})
	if inst.Detail().IsOpen() {
		t.Error("cancel on closed modal reopened it")
	}
}

func TestSurfaceHover_HighlightsIncidentEdges(t *testing.T) {
	e, _ := newTestEngine(t)
	inst, s := mount(t, e, "gallery", fiveItems())

	for n := range inst.Nodes() {
		s.Emit(interaction.Event{Kind: interaction.PointerEnter, Target: interaction.OnNode(n)})
		want := inst.Graph().Incident(n)
		if got := s.Highlighted(); len(want) > 0 && !reflect.DeepEqual(got, want) {
			t.Errorf("node %d: highlighted %v, want %v", n, got, want)
		}
		for _, idx := range s.Highlighted() {
			if !inst.Edges()[idx].Touches(n) {
				t.Errorf("node %d: edge %v highlighted but not incident", n, inst.Edges()[idx])
			}
		}
		s.Emit(interaction.Event{Kind: interaction.PointerLeave, Target: interaction.OnNode(n)})
		if got := s.Highlighted(); len(got) != 0 {
			t.Errorf("node %d: highlight %v after leave", n, got)
		}
	}
}

func TestSurfaceInvalidTarget_Logged(t *testing.T) {
	e, buf := newTestEngine(t)
	inst, s := mount(t, e, "gallery", fiveItems())

	s.Emit(interaction.Event{Kind: interaction.PointerDown, Target: interaction.OnNode(99)})
	if !strings.Contains(buf.String(), "node 99") {
		t.Errorf("invalid target not logged: %q", buf.String())
	}
	err := inst.Dispatch(interaction.Event{Kind: interaction.PointerEnter, Target: interaction.OnNode(-1)})
	if !errors.Is(err, model.ErrInvalidTarget) {
		t.Errorf("Dispatch = %v, want ErrInvalidTarget", err)
	}
}

func TestHitTest(t *testing.T) {
	e, _ := newTestEngine(t)
	inst, _ := mount(t, e, "gallery", fiveItems())

	// Node 0 sits at the spiral start: centre (1000,1000) plus radius 100.
	n0 := inst.Nodes()[0].Position
	if n0 != (model.Position{X: 1100, Y: 1000}) {
		t.Fatalf("node 0 at %v", n0)
	}
	if idx, ok := inst.HitTest(1175, 1075); !ok || idx != 0 {
		t.Errorf("HitTest(node 0 centre) = %d, %v", idx, ok)
	}
	if _, ok := inst.HitTest(10, 10); ok {
		t.Error("HitTest hit the background")
	}
	if tgt := inst.Target(10, 10); tgt.Kind != interaction.TargetBackground {
		t.Errorf("Target(background) = %+v", tgt)
	}

	inst.Viewport().ZoomTo(2)
	inst.Viewport().Pan(-100, 50)
	if idx, ok := inst.HitTest(2250, 2200); !ok || idx != 0 {
		t.Errorf("HitTest after zoom = %d, %v", idx, ok)
	}
	if tgt := inst.Target(2250, 2200); tgt != interaction.OnNode(0) {
		t.Errorf("Target after zoom = %+v", tgt)
	}
}

func TestReload_KeepsViewportAndShownItem(t *testing.T) {
	e, _ := newTestEngine(t)
	inst, s := mount(t, e, "gallery", fiveItems())

	inst.Viewport().Pan(30, -10)
	if err := inst.Dispatch(interaction.Event{Kind: interaction.PointerDown, Target: interaction.OnNode(1)}); err != nil {
		t.Fatal(err)
	}

	items := fiveItems()
	items[1].Title = "Night market"
	if err := inst.Reload(items); err != nil {
		t.Fatal(err)
	}
	if got, _ := s.Detail(); got.Title != "Night market" {
		t.Errorf("shown item not refreshed: %+v", got)
	}
	if tx, ty := inst.Viewport().Translate(); tx != 30 || ty != -10 {
		t.Errorf("reload moved viewport to %v,%v", tx, ty)
	}

	if err := inst.Reload(items[2:]); err != nil {
		t.Fatal(err)
	}
	if inst.Detail().IsOpen() {
		t.Error("modal still open for a removed item")
	}
	if len(inst.Nodes()) != 3 {
		t.Errorf("nodes = %d after reload", len(inst.Nodes()))
	}
}

func TestSnapshot(t *testing.T) {
	e, _ := newTestEngine(t)
	items := fiveItems()
	inst, _ := mount(t, e, "gallery", items)

	snap := inst.Snapshot()
	if snap.Extent != 2000 || snap.NodeSize != 150 {
		t.Errorf("snapshot geometry %v/%v", snap.Extent, snap.NodeSize)
	}
	if snap.Hash != loader.Fingerprint(items) {
		t.Error("snapshot hash mismatch")
	}
	snap.Nodes[0].Position.X = -1
	if inst.Nodes()[0].Position.X == -1 {
		t.Error("snapshot shares node storage")
	}
}

func TestMountSource_Unavailable(t *testing.T) {
	e, buf := newTestEngine(t)
	s := NewLocalSurface("gallery")
	src := &loader.FileSource{Path: filepath.Join(t.TempDir(), "missing.json")}

	inst, err := e.MountSource(context.Background(), s, src)
	if !errors.Is(err, loader.ErrDataUnavailable) {
		t.Fatalf("err = %v, want ErrDataUnavailable", err)
	}
	if inst != nil || e.Mounted() != 0 || s.Listeners() != 0 {
		t.Error("unavailable data still mounted a map")
	}
	if !strings.Contains(buf.String(), "left unrendered") {
		t.Errorf("failure not logged: %q", buf.String())
	}
}

func TestMountSource_Static(t *testing.T) {
	e, _ := newTestEngine(t)
	inst, err := e.MountSource(context.Background(), NewLocalSurface("s"), loader.StaticSource(fiveItems()))
	if err != nil {
		t.Fatal(err)
	}
	if len(inst.Items()) != 5 {
		t.Errorf("items = %d", len(inst.Items()))
	}
}

func TestNew_InvalidOptions(t *testing.T) {
	opts := DefaultOptions()
	opts.Viewport.MinScale = 3
	if _, err := New(Services{Logger: log.New(io.Discard, "", 0)}, opts); err == nil {
		t.Error("expected error for bad zoom range")
	}
}

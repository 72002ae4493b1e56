package engine

import (
	"fmt"

	"github.com/vanderheijden86/nodemap/pkg/detail"
	"github.com/vanderheijden86/nodemap/pkg/graph"
	"github.com/vanderheijden86/nodemap/pkg/interaction"
	"github.com/vanderheijden86/nodemap/pkg/loader"
	"github.com/vanderheijden86/nodemap/pkg/model"
	"github.com/vanderheijden86/nodemap/pkg/viewport"
)

// Instance is one mounted map. It is not safe for concurrent use; hosts
// deliver events from a single loop.
type Instance struct {
	engine  *Engine
	surface Surface

	items []model.Item
	nodes []model.Node
	graph *graph.Graph
	hash  string

	view     *viewport.Controller
	detail   *detail.Presenter
	manager  *interaction.Manager
	detach   func()
	disposed bool
}

func newInstance(e *Engine, s Surface, items []model.Item, nodes []model.Node, g *graph.Graph) *Instance {
	inst := &Instance{
		engine:  e,
		surface: s,
		items:   items,
		nodes:   nodes,
		graph:   g,
		hash:    loader.Fingerprint(items),
	}
	inst.view = viewport.New(e.opts.Viewport, s.Apply)
	inst.detail = detail.New(s.ShowDetail)
	inst.manager = inst.newManager()
	inst.detach = s.Listen(inst.listen)
	s.Apply(inst.view.Transform())
	return inst
}

func (i *Instance) newManager() *interaction.Manager {
	m := interaction.New(i.graph, i.items, i.view, i.detail)
	m.OnHighlight(i.surface.Highlight)
	return m
}

// listen is the surface subscription; it has nowhere to return errors.
func (i *Instance) listen(ev interaction.Event) {
	if err := i.Dispatch(ev); err != nil {
		i.engine.svc.Logger.Printf("engine: %s: %v", i.surface.ID(), err)
	}
}

// Dispatch feeds one input event to the interaction manager.
func (i *Instance) Dispatch(ev interaction.Event) error {
	if i.disposed {
		return ErrDisposed
	}
	return i.manager.Handle(ev)
}

// Reload rebuilds nodes and edges for a new item collection. The viewport
// is kept; hover emphasis is cleared and the detail modal closes unless the
// shown item still exists.
func (i *Instance) Reload(items []model.Item) error {
	if i.disposed {
		return ErrDisposed
	}
	nodes, g, err := i.engine.build(items)
	if err != nil {
		return err
	}
	i.items, i.nodes, i.graph = items, nodes, g
	i.hash = loader.Fingerprint(items)

	if shown, ok := i.detail.Shown(); ok {
		if idx := i.IndexOf(shown.ID); idx >= 0 {
			i.detail.Open(items[idx])
		} else {
			i.detail.Close()
		}
	}
	i.manager = i.newManager()
	i.surface.Highlight(nil)
	i.engine.svc.Logger.Printf("engine: reloaded %s with %d nodes and %d edges", i.surface.ID(), len(nodes), len(g.Edges()))
	return nil
}

// Dispose detaches the surface listener and unregisters the instance.
// Calling it again is a no-op.
func (i *Instance) Dispose() {
	if i.disposed {
		return
	}
	i.disposed = true
	if i.detach != nil {
		i.detach()
		i.detach = nil
	}
	i.engine.forget(i)
}

// Disposed reports whether Dispose has run.
func (i *Instance) Disposed() bool { return i.disposed }

func (i *Instance) Surface() Surface                  { return i.surface }
func (i *Instance) Items() []model.Item               { return i.items }
func (i *Instance) Nodes() []model.Node               { return i.nodes }
func (i *Instance) Edges() []model.Edge               { return i.graph.Edges() }
func (i *Instance) Graph() *graph.Graph               { return i.graph }
func (i *Instance) Viewport() *viewport.Controller    { return i.view }
func (i *Instance) Interaction() *interaction.Manager { return i.manager }
func (i *Instance) Detail() *detail.Presenter         { return i.detail }
func (i *Instance) Hash() string                      { return i.hash }

// IndexOf returns the node index of the item with id, or -1.
func (i *Instance) IndexOf(id string) int {
	for idx, it := range i.items {
		if it.ID == id {
			return idx
		}
	}
	return -1
}

// NodeSize is the side of a node's square footprint in map units.
func (i *Instance) NodeSize() float64 { return i.engine.opts.Layout.NodeSize }

// HitTest maps a screen point through the inverse transform and returns the
// node whose footprint contains it. Later nodes are drawn on top, so they
// win on overlap.
func (i *Instance) HitTest(screenX, screenY float64) (int, bool) {
	p := model.Position{X: screenX, Y: screenY}
	if !p.IsFinite() {
		return -1, false
	}
	m := i.view.Transform().Invert(p)
	size := i.NodeSize()
	for idx := len(i.nodes) - 1; idx >= 0; idx-- {
		n := i.nodes[idx].Position
		if m.X >= n.X && m.X <= n.X+size && m.Y >= n.Y && m.Y <= n.Y+size {
			return idx, true
		}
	}
	return -1, false
}

// Target resolves a screen point to a node or the background.
func (i *Instance) Target(screenX, screenY float64) interaction.Target {
	if idx, ok := i.HitTest(screenX, screenY); ok {
		return interaction.OnNode(idx)
	}
	return interaction.Background()
}

// Snapshot returns a serialisable copy of the map.
func (i *Instance) Snapshot() model.MapSnapshot {
	items := make([]model.Item, len(i.items))
	copy(items, i.items)
	nodes := make([]model.Node, len(i.nodes))
	copy(nodes, i.nodes)
	edges := make([]model.Edge, len(i.graph.Edges()))
	copy(edges, i.graph.Edges())
	return model.MapSnapshot{
		Extent:   i.engine.opts.Layout.Extent,
		NodeSize: i.NodeSize(),
		Items:    items,
		Nodes:    nodes,
		Edges:    edges,
		Hash:     i.hash,
	}
}

func (i *Instance) String() string {
	return fmt.Sprintf("%s(%d nodes, %d edges, %s)", i.surface.ID(), len(i.nodes), len(i.graph.Edges()), i.view.Transform())
}

// Package engine mounts node maps onto surfaces. A mount lays items out on
// the spiral, connects nearest neighbours and wires a viewport, an
// interaction manager and a detail presenter to the surface's input stream.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/vanderheijden86/nodemap/pkg/graph"
	"github.com/vanderheijden86/nodemap/pkg/i18n"
	"github.com/vanderheijden86/nodemap/pkg/layout"
	"github.com/vanderheijden86/nodemap/pkg/loader"
	"github.com/vanderheijden86/nodemap/pkg/model"
	"github.com/vanderheijden86/nodemap/pkg/theme"
	"github.com/vanderheijden86/nodemap/pkg/viewport"
)

// ErrDisposed is returned when an event reaches an instance after Dispose.
var ErrDisposed = errors.New("map instance disposed")

// Services are the collaborators shared by every instance of an engine.
// Nil fields get defaults in New.
type Services struct {
	Translator *i18n.Translator
	Theme      *theme.Manager
	Jitter     layout.Jitter
	Logger     *log.Logger
}

// Options configure layout, graph construction and zoom limits.
type Options struct {
	Layout   layout.Config
	Graph    graph.Options
	Viewport viewport.Config
	// Strict turns malformed edges into mount errors instead of log lines.
	Strict bool
}

// DefaultOptions returns the stock map geometry.
func DefaultOptions() Options {
	return Options{
		Layout:   layout.DefaultConfig(),
		Graph:    graph.DefaultOptions(),
		Viewport: viewport.DefaultConfig(),
	}
}

// Validate checks every section.
func (o Options) Validate() error {
	if err := o.Layout.Validate(); err != nil {
		return fmt.Errorf("layout: %w", err)
	}
	if err := o.Graph.Validate(); err != nil {
		return fmt.Errorf("graph: %w", err)
	}
	if err := o.Viewport.Validate(); err != nil {
		return fmt.Errorf("viewport: %w", err)
	}
	return nil
}

// Engine builds instances and keeps one per surface id.
type Engine struct {
	svc     Services
	opts    Options
	layout  *layout.Engine
	builder *graph.Builder

	mu      sync.Mutex
	mounted map[string]*Instance
}

// New validates opts and fills in default services.
func New(svc Services, opts Options) (*Engine, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if svc.Logger == nil {
		svc.Logger = log.Default()
	}
	if svc.Translator == nil {
		svc.Translator = i18n.New(svc.Logger)
	}
	if svc.Theme == nil {
		svc.Theme = theme.NewManager(theme.Default)
	}
	if svc.Jitter == nil {
		svc.Jitter = layout.NewJitter(opts.Layout.Jitter, nil)
	}
	// Graph centres follow the layout footprint unless set explicitly.
	if opts.Graph.NodeSize == 0 {
		opts.Graph.NodeSize = opts.Layout.NodeSize
	}
	return &Engine{
		svc:     svc,
		opts:    opts,
		layout:  layout.New(opts.Layout, svc.Jitter),
		builder: graph.NewBuilder(opts.Graph),
		mounted: make(map[string]*Instance),
	}, nil
}

// Services returns the engine's collaborators.
func (e *Engine) Services() Services { return e.svc }

// Options returns the options the engine was built with.
func (e *Engine) Options() Options { return e.opts }

// Mount builds a map for items on s. Mounting a surface id that already
// holds an instance disposes that instance first.
func (e *Engine) Mount(s Surface, items []model.Item) (*Instance, error) {
	nodes, g, err := e.build(items)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	prev := e.mounted[s.ID()]
	e.mu.Unlock()
	if prev != nil {
		prev.Dispose()
	}

	inst := newInstance(e, s, items, nodes, g)

	e.mu.Lock()
	e.mounted[s.ID()] = inst
	e.mu.Unlock()

	e.svc.Logger.Printf("engine: mounted %s with %d nodes and %d edges", s.ID(), len(nodes), len(g.Edges()))
	return inst, nil
}

// MountSource loads items from src and mounts them. When the source is
// unavailable the failure is logged, nothing is mounted and any existing
// instance on the surface is left as it was.
func (e *Engine) MountSource(ctx context.Context, s Surface, src loader.Source) (*Instance, error) {
	items, err := loader.Load(ctx, src, e.svc.Logger)
	if err != nil {
		e.svc.Logger.Printf("engine: map %s left unrendered: %v", s.ID(), err)
		return nil, err
	}
	return e.Mount(s, items)
}

// Instance returns the live instance mounted on the surface id.
func (e *Engine) Instance(id string) (*Instance, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	inst, ok := e.mounted[id]
	return inst, ok
}

// Mounted returns the number of live instances.
func (e *Engine) Mounted() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.mounted)
}

// Close disposes every instance.
func (e *Engine) Close() {
	e.mu.Lock()
	all := make([]*Instance, 0, len(e.mounted))
	for _, inst := range e.mounted {
		all = append(all, inst)
	}
	e.mu.Unlock()
	for _, inst := range all {
		inst.Dispose()
	}
}

func (e *Engine) forget(inst *Instance) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.mounted[inst.surface.ID()] == inst {
		delete(e.mounted, inst.surface.ID())
	}
}

// build lays out items and connects them.
func (e *Engine) build(items []model.Item) ([]model.Node, *graph.Graph, error) {
	nodes := e.layout.PlaceAll(items)
	edges := e.builder.Build(nodes)
	g, err := graph.FromEdges(len(nodes), edges, e.opts.Strict, e.svc.Logger)
	if err != nil {
		return nil, nil, fmt.Errorf("building graph: %w", err)
	}
	return nodes, g, nil
}

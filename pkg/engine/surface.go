package engine

import (
	"sort"
	"sync"

	"github.com/vanderheijden86/nodemap/pkg/interaction"
	"github.com/vanderheijden86/nodemap/pkg/model"
	"github.com/vanderheijden86/nodemap/pkg/viewport"
)

// Surface is where a map is shown and where its input comes from.
type Surface interface {
	// ID identifies the surface; one instance is mounted per id.
	ID() string
	// Listen subscribes handler to the surface's input events. Calling the
	// returned func unsubscribes it.
	Listen(handler func(interaction.Event)) (detach func())
	Apply(t viewport.Transform)
	Highlight(edges []int)
	// ShowDetail shows item in the modal, or hides the modal when nil.
	ShowDetail(item *model.Item)
}

// LocalSurface is an in-memory Surface. It records what the engine pushed
// to it and forwards Emit calls to its listeners.
type LocalSurface struct {
	id string

	mu        sync.Mutex
	next      int
	listeners map[int]func(interaction.Event)
	transform viewport.Transform
	highlight []int
	detail    *model.Item
	applies   int
}

// NewLocalSurface returns an empty surface with the given id.
func NewLocalSurface(id string) *LocalSurface {
	return &LocalSurface{id: id, listeners: make(map[int]func(interaction.Event)), transform: viewport.Identity()}
}

func (s *LocalSurface) ID() string { return s.id }

func (s *LocalSurface) Listen(handler func(interaction.Event)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.next
	s.next++
	s.listeners[id] = handler
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}

func (s *LocalSurface) Apply(t viewport.Transform) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transform = t
	s.applies++
}

func (s *LocalSurface) Highlight(edges []int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.highlight = append([]int(nil), edges...)
}

func (s *LocalSurface) ShowDetail(item *model.Item) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if item == nil {
		s.detail = nil
		return
	}
	it := *item
	s.detail = &it
}

// Emit delivers ev to every listener in subscription order.
func (s *LocalSurface) Emit(ev interaction.Event) {
	s.mu.Lock()
	ids := make([]int, 0, len(s.listeners))
	for id := range s.listeners {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	handlers := make([]func(interaction.Event), 0, len(ids))
	for _, id := range ids {
		handlers = append(handlers, s.listeners[id])
	}
	s.mu.Unlock()

	for _, h := range handlers {
		h(ev)
	}
}

// Listeners returns the number of subscribed handlers.
func (s *LocalSurface) Listeners() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.listeners)
}

// Transform returns the last applied transform.
func (s *LocalSurface) Transform() viewport.Transform {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transform
}

// Applies counts Apply calls.
func (s *LocalSurface) Applies() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.applies
}

// Highlighted returns the last highlighted edge indices.
func (s *LocalSurface) Highlighted() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int(nil), s.highlight...)
}

// Detail returns the item shown in the modal.
func (s *LocalSurface) Detail() (model.Item, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.detail == nil {
		return model.Item{}, false
	}
	return *s.detail, true
}

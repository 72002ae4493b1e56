// Package detail tracks which item, if any, is shown in the detail modal.
package detail

import "github.com/vanderheijden86/nodemap/pkg/model"

// Presenter holds the modal state. Close is idempotent.
type Presenter struct {
	shown    *model.Item
	onChange func(*model.Item)
}

// New returns a closed presenter. onChange, if set, receives the shown item
// on open and nil on close.
func New(onChange func(*model.Item)) *Presenter {
	return &Presenter{onChange: onChange}
}

// OnChange replaces the change hook.
func (p *Presenter) OnChange(fn func(*model.Item)) {
	p.onChange = fn
}

// Open shows item, replacing whatever was shown.
func (p *Presenter) Open(item model.Item) {
	it := item
	p.shown = &it
	if p.onChange != nil {
		p.onChange(p.shown)
	}
}

// Close hides the modal. Closing an already closed modal does nothing.
func (p *Presenter) Close() {
	if p.shown == nil {
		return
	}
	p.shown = nil
	if p.onChange != nil {
		p.onChange(nil)
	}
}

// Shown returns a copy of the shown item and whether the modal is open.
func (p *Presenter) Shown() (model.Item, bool) {
	if p.shown == nil {
		return model.Item{}, false
	}
	return *p.shown, true
}

// IsOpen reports whether an item is shown.
func (p *Presenter) IsOpen() bool {
	return p.shown != nil
}

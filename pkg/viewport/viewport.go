// Package viewport owns the pan/zoom state of one mounted map.
package viewport

import (
	"fmt"
	"math"
	"strconv"

	"github.com/vanderheijden86/nodemap/pkg/model"
)

// Config bounds the zoom level.
type Config struct {
	MinScale float64 `yaml:"min_scale" koanf:"min_scale"`
	MaxScale float64 `yaml:"max_scale" koanf:"max_scale"`
	Step     float64 `yaml:"step" koanf:"step"` // zoom change per wheel tick or zoom control
}

// DefaultConfig allows zooming between half and double size in 0.1 steps.
func DefaultConfig() Config {
	return Config{MinScale: 0.5, MaxScale: 2.0, Step: 0.1}
}

// Validate checks that the zoom range is non-empty and contains 1.
func (c Config) Validate() error {
	if c.MinScale <= 0 || c.MaxScale < c.MinScale {
		return fmt.Errorf("invalid zoom range [%v, %v]", c.MinScale, c.MaxScale)
	}
	if c.MinScale > 1 || c.MaxScale < 1 {
		return fmt.Errorf("zoom range [%v, %v] must contain 1", c.MinScale, c.MaxScale)
	}
	if c.Step <= 0 {
		return fmt.Errorf("zoom step must be positive, got %v", c.Step)
	}
	return nil
}

// Transform is translate(TranslateX, TranslateY) followed by scale(Scale):
// a map point p is shown at Translate + Scale*p, so translation is in
// unscaled screen units.
type Transform struct {
	Scale      float64 `json:"scale"`
	TranslateX float64 `json:"translate_x"`
	TranslateY float64 `json:"translate_y"`
}

// Identity is the canonical view.
func Identity() Transform {
	return Transform{Scale: 1}
}

// Apply maps a map-space point to screen space.
func (t Transform) Apply(p model.Position) model.Position {
	return model.Position{X: t.Scale*p.X + t.TranslateX, Y: t.Scale*p.Y + t.TranslateY}
}

// Invert maps a screen-space point back to map space.
func (t Transform) Invert(p model.Position) model.Position {
	if t.Scale == 0 {
		return p
	}
	return model.Position{X: (p.X - t.TranslateX) / t.Scale, Y: (p.Y - t.TranslateY) / t.Scale}
}

// CSS renders the transform as a CSS transform property value.
func (t Transform) CSS() string {
	return fmt.Sprintf("translate(%spx, %spx) scale(%s)", num(t.TranslateX), num(t.TranslateY), num(t.Scale))
}

// SVG renders the transform as an SVG transform attribute value.
func (t Transform) SVG() string {
	return fmt.Sprintf("translate(%s %s) scale(%s)", num(t.TranslateX), num(t.TranslateY), num(t.Scale))
}

func (t Transform) String() string { return t.SVG() }

func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Controller mutates the transform. Every accepted mutation calls the change
// hook synchronously so the rendered view never lags the state.
// Non-finite inputs are ignored.
type Controller struct {
	cfg      Config
	t        Transform
	onChange func(Transform)
}

// New creates a controller at the identity transform.
func New(cfg Config, onChange func(Transform)) *Controller {
	return &Controller{cfg: cfg, t: Identity(), onChange: onChange}
}

// OnChange replaces the change hook.
func (c *Controller) OnChange(fn func(Transform)) {
	c.onChange = fn
}

// Config returns the zoom limits.
func (c *Controller) Config() Config { return c.cfg }

// Transform returns the current transform.
func (c *Controller) Transform() Transform { return c.t }

// Scale returns the current zoom level.
func (c *Controller) Scale() float64 { return c.t.Scale }

// Translate returns the current translation.
func (c *Controller) Translate() (x, y float64) { return c.t.TranslateX, c.t.TranslateY }

// Pan moves the view by a screen-space delta. Translation is unbounded.
func (c *Controller) Pan(dx, dy float64) {
	if !model.IsFinite(dx) || !model.IsFinite(dy) {
		return
	}
	c.t.TranslateX += dx
	c.t.TranslateY += dy
	c.changed()
}

// ZoomBy adds delta to the scale, clamped to the configured range.
func (c *Controller) ZoomBy(delta float64) {
	if !model.IsFinite(delta) {
		return
	}
	c.t.Scale = c.clamp(c.t.Scale + delta)
	c.changed()
}

// ZoomTo sets the scale, clamped to the configured range.
func (c *Controller) ZoomTo(scale float64) {
	if !model.IsFinite(scale) {
		return
	}
	c.t.Scale = c.clamp(scale)
	c.changed()
}

// ZoomIn and ZoomOut step the scale like the on-screen zoom controls.
func (c *Controller) ZoomIn()  { c.ZoomBy(c.cfg.Step) }
func (c *Controller) ZoomOut() { c.ZoomBy(-c.cfg.Step) }

// Wheel zooms by one fixed step per scroll tick regardless of magnitude:
// scrolling down (positive deltaY) zooms out. A zero delta is ignored.
func (c *Controller) Wheel(deltaY float64) {
	if d := WheelDelta(deltaY, c.cfg.Step); d != 0 {
		c.ZoomBy(d)
	}
}

// Reset returns to scale 1 with no translation.
func (c *Controller) Reset() {
	c.t = Identity()
	c.changed()
}

// WheelDelta converts a scroll delta into a zoom delta of exactly ±step.
func WheelDelta(deltaY, step float64) float64 {
	switch {
	case !model.IsFinite(deltaY), deltaY == 0:
		return 0
	case deltaY > 0:
		return -step
	default:
		return step
	}
}

func (c *Controller) clamp(s float64) float64 {
	return math.Max(c.cfg.MinScale, math.Min(c.cfg.MaxScale, s))
}

func (c *Controller) changed() {
	if c.onChange != nil {
		c.onChange(c.t)
	}
}

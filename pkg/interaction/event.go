package interaction

import (
	"fmt"

	"github.com/vanderheijden86/nodemap/pkg/model"
)

// Kind is the input event type.
type Kind int

const (
	PointerEnter Kind = iota
	PointerLeave
	PointerDown
	PointerMove
	PointerUp
	PointerCancel
	TouchStart
	TouchMove
	TouchEnd
	TouchCancel
	Wheel
	KeyCancel
)

var kindNames = [...]string{
	PointerEnter:  "pointer-enter",
	PointerLeave:  "pointer-leave",
	PointerDown:   "pointer-down",
	PointerMove:   "pointer-move",
	PointerUp:     "pointer-up",
	PointerCancel: "pointer-cancel",
	TouchStart:    "touch-start",
	TouchMove:     "touch-move",
	TouchEnd:      "touch-end",
	TouchCancel:   "touch-cancel",
	Wheel:         "wheel",
	KeyCancel:     "key-cancel",
}

func (k Kind) String() string {
	if k >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// IsTouch reports whether the event came from a touch contact.
func (k Kind) IsTouch() bool {
	return k >= TouchStart && k <= TouchCancel
}

// TargetKind identifies what the pointer is over.
type TargetKind int

const (
	TargetBackground TargetKind = iota // empty map canvas
	TargetNode
	TargetControl
	TargetBackdrop // modal overlay outside its content
	TargetModal    // modal content
	TargetOutside  // outside the map surface entirely
)

// Control is an on-screen button.
type Control string

const (
	ControlZoomIn  Control = "zoom-in"
	ControlZoomOut Control = "zoom-out"
	ControlReset   Control = "reset-view"
	ControlClose   Control = "modal-close"
)

// Target is the hit-test result an event was delivered to.
type Target struct {
	Kind    TargetKind
	Node    int     // node index when Kind is TargetNode
	Control Control // when Kind is TargetControl
}

// Background targets the empty canvas.
func Background() Target { return Target{Kind: TargetBackground} }

// OnNode targets node n.
func OnNode(n int) Target { return Target{Kind: TargetNode, Node: n} }

// OnControl targets an on-screen control.
func OnControl(c Control) Target { return Target{Kind: TargetControl, Control: c} }

// Backdrop targets the modal backdrop.
func Backdrop() Target { return Target{Kind: TargetBackdrop} }

// Outside targets anything beyond the surface.
func Outside() Target { return Target{Kind: TargetOutside} }

// Event is one input from a host surface. Pointer events carry X/Y in
// screen space; touch events carry their contacts in Touches and the first
// contact is used as the pointer position.
type Event struct {
	Kind    Kind
	Target  Target
	X, Y    float64
	Touches []model.Position
	DeltaY  float64 // wheel scroll amount, positive scrolls down
}

// Point returns the effective pointer position and whether one is present
// and finite.
func (e Event) Point() (model.Position, bool) {
	if e.Kind.IsTouch() {
		if len(e.Touches) == 0 {
			return model.Position{}, false
		}
		p := e.Touches[0]
		return p, p.IsFinite()
	}
	p := model.Position{X: e.X, Y: e.Y}
	return p, p.IsFinite()
}

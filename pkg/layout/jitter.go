package layout

import (
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"
)

// Jitter is a source of per-axis offsets added to spiral points.
// distuv.Uniform satisfies it.
type Jitter interface {
	Rand() float64
}

// NoJitter always returns zero.
type NoJitter struct{}

func (NoJitter) Rand() float64 { return 0 }

// NewJitter returns a uniform source over [-amplitude, amplitude). With a nil
// seed every call site gets a different sequence, so layouts differ between
// loads; a non-nil seed makes layouts reproducible.
func NewJitter(amplitude float64, seed *uint64) Jitter {
	if amplitude <= 0 {
		return NoJitter{}
	}
	u := distuv.Uniform{Min: -amplitude, Max: amplitude}
	if seed != nil {
		u.Src = rand.NewPCG(*seed, *seed^0x9e3779b97f4a7c15)
	}
	return u
}

// Fixed replays a sequence of offsets, cycling when exhausted. Useful for
// exact-position tests.
type Fixed struct {
	Values []float64
	next   int
}

func (f *Fixed) Rand() float64 {
	if len(f.Values) == 0 {
		return 0
	}
	v := f.Values[f.next%len(f.Values)]
	f.next++
	return v
}

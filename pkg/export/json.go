package export

import (
	"io"

	"github.com/goccy/go-json"

	"github.com/vanderheijden86/nodemap/pkg/analysis"
	"github.com/vanderheijden86/nodemap/pkg/model"
	"github.com/vanderheijden86/nodemap/pkg/viewport"
)

// MapDocument is the JSON export and the /api/map payload.
type MapDocument struct {
	model.MapSnapshot
	Transform  viewport.Transform `json:"transform"`
	Emphasized []int              `json:"emphasized"`
	Stats      *analysis.Stats    `json:"stats,omitempty"`
}

// NewMapDocument extracts the JSON form of doc.
func NewMapDocument(doc Document) MapDocument {
	emph := doc.Emphasized
	if emph == nil {
		emph = []int{}
	}
	return MapDocument{
		MapSnapshot: doc.Snapshot,
		Transform:   doc.Transform,
		Emphasized:  emph,
		Stats:       doc.Stats,
	}
}

// WriteJSON writes the map as indented JSON.
func WriteJSON(w io.Writer, doc Document) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(NewMapDocument(doc))
}

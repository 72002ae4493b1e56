package export

import (
	"fmt"
	"io"
	"math"
	"strings"

	svg "github.com/ajstarks/svgo"

	"github.com/vanderheijden86/nodemap/pkg/model"
)

// DefaultSVGSize is the rendered width and height of SVG snapshots.
const DefaultSVGSize = 1000

const edgeGradientID = "edge-gradient"

// WriteSVG renders the map at its current transform. Nodes are rounded
// cards with their image and title; edges use the primary to secondary
// gradient, emphasized edges solid primary.
func WriteSVG(w io.Writer, doc Document) error {
	snap := doc.Snapshot
	extent := round(snap.Extent)
	size := round(snap.NodeSize)
	pal := doc.Palette

	canvas := svg.New(w)
	canvas.Startview(DefaultSVGSize, DefaultSVGSize, 0, 0, extent, extent)

	canvas.Def()
	canvas.LinearGradient(edgeGradientID, 0, 0, 100, 0, []svg.Offcolor{
		{Offset: 0, Color: pal.Primary, Opacity: 0.6},
		{Offset: 100, Color: pal.Secondary, Opacity: 0.6},
	})
	canvas.DefEnd()

	canvas.Rect(0, 0, extent, extent, "fill:"+pal.Background)
	if doc.Title != "" {
		canvas.Title(doc.Title)
	}

	canvas.Group(fmt.Sprintf(`id="map" transform="%s"`, doc.Transform.SVG()))

	canvas.Gid("edges")
	emph := doc.emphasized()
	for i, e := range snap.Edges {
		a, b, ok := edgeEndpoints(snap, e)
		if !ok {
			continue
		}
		style := fmt.Sprintf("stroke:url(#%s);stroke-width:2", edgeGradientID)
		if emph[i] {
			style = fmt.Sprintf("stroke:%s;stroke-width:4", pal.Primary)
		}
		canvas.Line(round(a.X), round(a.Y), round(b.X), round(b.Y), style)
	}
	canvas.Gend()

	canvas.Gid("nodes")
	for i, n := range snap.Nodes {
		x, y := round(n.Position.X), round(n.Position.Y)
		canvas.Group(fmt.Sprintf(`id="node-%d" class="node anim-%d"`, i, i%5+1))
		if i < len(snap.Items) {
			canvas.Title(snap.Items[i].Title)
		}
		canvas.Roundrect(x, y, size, size, 12, 12,
			fmt.Sprintf("fill:%s;stroke:url(#%s);stroke-width:2", pal.Surface, edgeGradientID))
		if i < len(snap.Items) {
			it := snap.Items[i]
			if safeHref(it.ImageSource) {
				canvas.Image(x+8, y+8, size-16, size-40, it.ImageSource, `preserveAspectRatio="xMidYMid slice"`)
			}
			canvas.Text(x+size/2, y+size-12, it.Title,
				fmt.Sprintf("fill:%s;font-size:14px;font-family:system-ui,sans-serif;text-anchor:middle", pal.Text))
		}
		canvas.Gend()
	}
	canvas.Gend()

	canvas.Gend()

	if len(snap.Nodes) == 0 && doc.Labels.Empty != "" {
		canvas.Text(extent/2, extent/2, doc.Labels.Empty,
			fmt.Sprintf("fill:%s;font-size:28px;font-family:system-ui,sans-serif;text-anchor:middle", pal.TextSecondary))
	}
	if doc.Labels.Hint != "" {
		canvas.Text(extent/2, extent-24, doc.Labels.Hint,
			fmt.Sprintf("fill:%s;font-size:24px;font-family:system-ui,sans-serif;text-anchor:middle", pal.TextSecondary))
	}

	canvas.End()
	return nil
}

// safeHref rejects image sources that would break out of the attribute.
func safeHref(s string) bool {
	return s != "" && !strings.ContainsAny(s, "\"<>")
}

func round(v float64) int {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return int(math.Round(v))
}

// edgeEndpoints returns the centre points of a valid edge.
func edgeEndpoints(snap model.MapSnapshot, e model.Edge) (a, b model.Position, ok bool) {
	if e.Validate(len(snap.Nodes)) != nil {
		return a, b, false
	}
	return snap.Nodes[e.From].Center(snap.NodeSize), snap.Nodes[e.To].Center(snap.NodeSize), true
}

package export

import (
	"image/color"
	"io"

	"git.sr.ht/~sbinet/gg"
	"github.com/mattn/go-runewidth"
	"golang.org/x/image/font/basicfont"

	"github.com/vanderheijden86/nodemap/pkg/model"
	"github.com/vanderheijden86/nodemap/pkg/theme"
)

// DefaultPNGSize is the side length of PNG snapshots in pixels.
const DefaultPNGSize = 1000

// WritePNG rasterises the map into a size x size image at the document's
// current transform. Images are not fetched; nodes show their title only.
func WritePNG(w io.Writer, doc Document, size int) error {
	dc := renderPNG(doc, size)
	return dc.EncodePNG(w)
}

func renderPNG(doc Document, size int) *gg.Context {
	if size <= 0 {
		size = DefaultPNGSize
	}
	snap := doc.Snapshot
	pal := doc.Palette
	k := 1.0
	if snap.Extent > 0 {
		k = float64(size) / snap.Extent
	}
	t := doc.Transform
	project := func(p model.Position) (float64, float64) {
		s := t.Apply(p)
		return s.X * k, s.Y * k
	}

	dc := gg.NewContext(size, size)
	dc.SetColor(theme.RGBA(pal.Background))
	dc.Clear()
	dc.SetFontFace(basicfont.Face7x13)

	primary := theme.RGBA(pal.Primary)
	secondary := theme.RGBA(pal.Secondary)
	emph := doc.emphasized()
	for i, e := range snap.Edges {
		a, b, ok := edgeEndpoints(snap, e)
		if !ok {
			continue
		}
		x1, y1 := project(a)
		x2, y2 := project(b)
		if emph[i] {
			dc.SetColor(primary)
			dc.SetLineWidth(3)
		} else {
			grad := gg.NewLinearGradient(x1, y1, x2, y2)
			grad.AddColorStop(0, withAlpha(primary, 0x99))
			grad.AddColorStop(1, withAlpha(secondary, 0x99))
			dc.SetStrokeStyle(grad)
			dc.SetLineWidth(1.5)
		}
		dc.DrawLine(x1, y1, x2, y2)
		dc.Stroke()
	}

	side := snap.NodeSize * t.Scale * k
	surface := theme.RGBA(pal.Surface)
	text := theme.RGBA(pal.Text)
	// basicfont glyphs are 7px wide.
	maxCells := int(side/7) - 1
	for i, n := range snap.Nodes {
		x, y := project(n.Position)
		dc.SetColor(surface)
		dc.DrawRoundedRectangle(x, y, side, side, 6)
		dc.Fill()
		dc.SetColor(primary)
		dc.SetLineWidth(1)
		dc.DrawRoundedRectangle(x, y, side, side, 6)
		dc.Stroke()

		if i < len(snap.Items) && maxCells > 1 {
			dc.SetColor(text)
			label := runewidth.Truncate(snap.Items[i].Title, maxCells, "…")
			dc.DrawStringAnchored(label, x+side/2, y+side/2, 0.5, 0.5)
		}
	}

	dc.SetColor(theme.RGBA(pal.TextSecondary))
	if len(snap.Nodes) == 0 && doc.Labels.Empty != "" {
		dc.DrawStringAnchored(doc.Labels.Empty, float64(size)/2, float64(size)/2, 0.5, 0.5)
	}
	if doc.Labels.Hint != "" {
		dc.DrawStringAnchored(doc.Labels.Hint, float64(size)/2, float64(size)-16, 0.5, 0.5)
	}
	return dc
}

func withAlpha(c color.RGBA, a uint8) color.RGBA {
	// color.RGBA is alpha-premultiplied.
	return color.RGBA{
		R: uint8(uint16(c.R) * uint16(a) / 0xff),
		G: uint8(uint16(c.G) * uint16(a) / 0xff),
		B: uint8(uint16(c.B) * uint16(a) / 0xff),
		A: a,
	}
}

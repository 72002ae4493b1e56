package ui

import (
	"io"
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"

	"github.com/vanderheijden86/nodemap/pkg/theme"
)

func TestCanvas_Line(t *testing.T) {
	c := newCanvas(5, 3)
	c.line(0, 0, 4, 2, '*', classEdge)

	want := "*    \n **  \n   **"
	if got := c.plain(); got != want {
		t.Errorf("plain =\n%s\nwant\n%s", got, want)
	}
}

func TestCanvas_LineClipsOutside(t *testing.T) {
	c := newCanvas(3, 1)
	c.line(-5, 0, 10, 0, '-', classEdge)
	if got := c.plain(); got != "---" {
		t.Errorf("plain = %q", got)
	}
}

func TestCanvas_Box(t *testing.T) {
	c := newCanvas(4, 3)
	c.box(0, 0, 4, 3, classNode)

	want := "╭──╮\n│  │\n╰──╯"
	if got := c.plain(); got != want {
		t.Errorf("plain =\n%s", got)
	}

	small := newCanvas(2, 1)
	small.box(0, 0, 1, 1, classNode)
	if got := small.plain(); got != "■ " {
		t.Errorf("small box = %q", got)
	}
}

func TestCanvas_TextTruncatesWide(t *testing.T) {
	c := newCanvas(6, 1)
	c.text(0, 0, "Harbour Lights", 6, classLabel)
	if got := c.plain(); got != "Harbo…" {
		t.Errorf("plain = %q", got)
	}

	wide := newCanvas(4, 1)
	wide.text(0, 0, "中文", 4, classLabel)
	if got := wide.plain(); got != "中文" {
		t.Errorf("wide = %q", got)
	}
	if wide.runes[0][1] != 0 {
		t.Error("second cell of a wide rune should be a placeholder")
	}
}

func TestCanvas_Centered(t *testing.T) {
	c := newCanvas(9, 1)
	c.centered(0, "abc", classLabel)
	if got := c.plain(); got != "   abc   " {
		t.Errorf("plain = %q", got)
	}
}

func TestCanvas_RenderWithoutColour(t *testing.T) {
	pal, _ := theme.Lookup(theme.NameLight)
	th := NewTheme(pal, lipgloss.NewRenderer(io.Discard))

	c := newCanvas(4, 2)
	c.box(0, 0, 4, 2, classNodeHovered)
	if got := c.render(th); got != c.plain() {
		t.Errorf("render = %q, want %q", got, c.plain())
	}
}

func TestDrawMap(t *testing.T) {
	m := newTestModel(t, galleryItems(), nil)
	c := newCanvas(120, 50)
	drawMap(c, m.inst, 0, m.inst.Interaction().Emphasized())

	out := c.plain()
	if n := strings.Count(out, "╭"); n != 5 {
		t.Errorf("boxes = %d, want 5", n)
	}
	if !strings.Contains(out, "·") {
		t.Error("expected edges")
	}
	for _, title := range []string{"Market", "Temple", "Bridge", "Garden"} {
		if !strings.Contains(out, title) {
			t.Errorf("missing label %q", title)
		}
	}
}

func TestCellPointRoundTrip(t *testing.T) {
	for _, p := range [][2]int{{0, 0}, {3, 7}, {59, 29}} {
		x, y := toCell(cellPoint(p[0], p[1]))
		if x != p[0] || y != p[1] {
			t.Errorf("toCell(cellPoint(%v)) = %d,%d", p, x, y)
		}
	}
}

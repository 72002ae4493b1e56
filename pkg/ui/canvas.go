package ui

import (
	"math"
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/vanderheijden86/nodemap/pkg/engine"
	"github.com/vanderheijden86/nodemap/pkg/model"
)

// One terminal cell covers cellW x cellH screen units. Cells are about
// twice as tall as wide, so this keeps nodes roughly square.
const (
	cellW = 20.0
	cellH = 40.0
)

// cellPoint returns the screen point at the centre of cell (x, y).
func cellPoint(x, y int) (float64, float64) {
	return (float64(x) + 0.5) * cellW, (float64(y) + 0.5) * cellH
}

func toCell(sx, sy float64) (int, int) {
	return int(math.Floor(sx / cellW)), int(math.Floor(sy / cellH))
}

// canvas is a grid of styled cells. A zero rune marks the right half of a
// wide rune and is skipped when rendering.
type canvas struct {
	w, h  int
	runes [][]rune
	class [][]cellClass
}

func newCanvas(w, h int) *canvas {
	c := &canvas{w: w, h: h, runes: make([][]rune, h), class: make([][]cellClass, h)}
	for y := range c.runes {
		c.runes[y] = []rune(strings.Repeat(" ", w))
		c.class[y] = make([]cellClass, w)
	}
	return c
}

func (c *canvas) set(x, y int, r rune, cl cellClass) {
	if x < 0 || y < 0 || x >= c.w || y >= c.h {
		return
	}
	c.runes[y][x] = r
	c.class[y][x] = cl
}

// line draws from (x0, y0) to (x1, y1) with Bresenham's algorithm.
func (c *canvas) line(x0, y0, x1, y1 int, r rune, cl cellClass) {
	dx := abs(x1 - x0)
	dy := -abs(y1 - y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	err := dx + dy
	for {
		c.set(x0, y0, r, cl)
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x0 += sx
		}
		if e2 <= dx {
			err += dx
			y0 += sy
		}
	}
}

// box draws a rounded rectangle with a blank interior.
func (c *canvas) box(x, y, w, h int, cl cellClass) {
	if w < 2 || h < 2 {
		for dy := 0; dy < max(h, 1); dy++ {
			for dx := 0; dx < max(w, 1); dx++ {
				c.set(x+dx, y+dy, '■', cl)
			}
		}
		return
	}
	for dx := 1; dx < w-1; dx++ {
		c.set(x+dx, y, '─', cl)
		c.set(x+dx, y+h-1, '─', cl)
	}
	for dy := 1; dy < h-1; dy++ {
		c.set(x, y+dy, '│', cl)
		c.set(x+w-1, y+dy, '│', cl)
		for dx := 1; dx < w-1; dx++ {
			c.set(x+dx, y+dy, ' ', classBlank)
		}
	}
	c.set(x, y, '╭', cl)
	c.set(x+w-1, y, '╮', cl)
	c.set(x, y+h-1, '╰', cl)
	c.set(x+w-1, y+h-1, '╯', cl)
}

// text writes s starting at (x, y), truncated to maxW cells.
func (c *canvas) text(x, y int, s string, maxW int, cl cellClass) {
	if maxW <= 0 {
		return
	}
	s = runewidth.Truncate(s, maxW, "…")
	for _, r := range s {
		rw := runewidth.RuneWidth(r)
		if rw == 0 {
			continue
		}
		if rw == 2 && x+1 >= c.w {
			return
		}
		c.set(x, y, r, cl)
		if rw == 2 {
			c.set(x+1, y, 0, cl)
		}
		x += rw
	}
}

// centered writes s centred on row y.
func (c *canvas) centered(y int, s string, cl cellClass) {
	w := runewidth.StringWidth(s)
	c.text(max((c.w-w)/2, 0), y, s, c.w, cl)
}

func (c *canvas) render(t Theme) string {
	var b strings.Builder
	for y := 0; y < c.h; y++ {
		if y > 0 {
			b.WriteByte('\n')
		}
		var run []rune
		cur := classBlank
		flush := func() {
			if len(run) == 0 {
				return
			}
			if cur == classBlank {
				b.WriteString(string(run))
			} else {
				b.WriteString(t.classStyle(cur).Render(string(run)))
			}
			run = run[:0]
		}
		for x := 0; x < c.w; x++ {
			r := c.runes[y][x]
			if r == 0 {
				continue
			}
			if cl := c.class[y][x]; cl != cur {
				flush()
				cur = cl
			}
			run = append(run, r)
		}
		flush()
	}
	return b.String()
}

// plain returns the canvas text without styling.
func (c *canvas) plain() string {
	lines := make([]string, c.h)
	for y := range c.runes {
		var b strings.Builder
		for _, r := range c.runes[y] {
			if r != 0 {
				b.WriteRune(r)
			}
		}
		lines[y] = b.String()
	}
	return strings.Join(lines, "\n")
}

// drawMap paints edges then nodes of inst at its current transform.
func drawMap(c *canvas, inst *engine.Instance, hovered int, emphasized []int) {
	t := inst.Viewport().Transform()
	size := inst.NodeSize()
	nodes := inst.Nodes()
	items := inst.Items()

	emph := make(map[int]bool, len(emphasized))
	for _, i := range emphasized {
		emph[i] = true
	}
	center := func(n model.Node) (int, int) {
		p := t.Apply(n.Center(size))
		return toCell(p.X, p.Y)
	}
	for i, e := range inst.Edges() {
		if e.Validate(len(nodes)) != nil {
			continue
		}
		if emph[i] {
			continue
		}
		x0, y0 := center(nodes[e.From])
		x1, y1 := center(nodes[e.To])
		c.line(x0, y0, x1, y1, '·', classEdge)
	}
	// Emphasized edges go on top so crossings keep them visible.
	for i, e := range inst.Edges() {
		if emph[i] && e.Validate(len(nodes)) == nil {
			x0, y0 := center(nodes[e.From])
			x1, y1 := center(nodes[e.To])
			c.line(x0, y0, x1, y1, '•', classEdgeEmphasized)
		}
	}

	wCells := max(int(math.Round(size*t.Scale/cellW)), 1)
	hCells := max(int(math.Round(size*t.Scale/cellH)), 1)
	for i, n := range nodes {
		p := t.Apply(n.Position)
		x, y := toCell(p.X, p.Y)
		cl := classNode
		if i == hovered {
			cl = classNodeHovered
		}
		c.box(x, y, wCells, hCells, cl)
		if i < len(items) && wCells > 2 && hCells > 2 {
			label := items[i].Title
			lw := min(runewidth.StringWidth(label), wCells-2)
			c.text(x+1+(wCells-2-lw)/2, y+hCells/2, label, wCells-2, classLabel)
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

package export

import (
	"bytes"
	"fmt"
	"html"
	"io"

	"github.com/goccy/go-json"
	"github.com/yuin/goldmark"

	"github.com/vanderheijden86/nodemap/pkg/model"
	"github.com/vanderheijden86/nodemap/pkg/viewport"
)

// htmlNode is a node as the page script sees it.
type htmlNode struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Src         string  `json:"src"`
	Description string  `json:"description"` // rendered HTML
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	Anim        int     `json:"anim"`
}

type htmlData struct {
	Extent     float64            `json:"extent"`
	NodeSize   float64            `json:"nodeSize"`
	Nodes      []htmlNode         `json:"nodes"`
	Edges      []model.Edge       `json:"edges"`
	Emphasized []int              `json:"emphasized"`
	Transform  viewport.Transform `json:"transform"`
	MinScale   float64            `json:"minScale"`
	MaxScale   float64            `json:"maxScale"`
	Step       float64            `json:"step"`
	NoDesc     string             `json:"noDescription"`
}

// renderDescription converts markdown to HTML. Raw HTML in the source is
// dropped by goldmark's default renderer.
func renderDescription(md string) (string, error) {
	if md == "" {
		return "", nil
	}
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(md), &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// WriteHTML writes a self-contained page that shows the map with the same
// pan, zoom, hover and detail behaviour as the engine.
func WriteHTML(w io.Writer, doc Document) error {
	snap := doc.Snapshot
	data := htmlData{
		Extent:     snap.Extent,
		NodeSize:   snap.NodeSize,
		Nodes:      make([]htmlNode, 0, len(snap.Nodes)),
		Edges:      make([]model.Edge, 0, len(snap.Edges)),
		Emphasized: append([]int{}, doc.Emphasized...),
		Transform:  doc.Transform,
		MinScale:   doc.Viewport.MinScale,
		MaxScale:   doc.Viewport.MaxScale,
		Step:       doc.Viewport.Step,
		NoDesc:     doc.Labels.NoDescription,
	}
	if data.Transform.Scale == 0 {
		data.Transform = viewport.Identity()
	}
	if data.Step == 0 {
		vc := viewport.DefaultConfig()
		data.MinScale, data.MaxScale, data.Step = vc.MinScale, vc.MaxScale, vc.Step
	}
	for i, n := range snap.Nodes {
		hn := htmlNode{ID: n.ID, X: n.Position.X, Y: n.Position.Y, Anim: i%5 + 1}
		if i < len(snap.Items) {
			it := snap.Items[i]
			desc, err := renderDescription(it.Description)
			if err != nil {
				return fmt.Errorf("render description of %s: %w", it.ID, err)
			}
			hn.Title, hn.Src, hn.Description = it.Title, it.ImageSource, desc
		}
		data.Nodes = append(data.Nodes, hn)
	}
	for _, e := range snap.Edges {
		if e.Validate(len(snap.Nodes)) == nil {
			data.Edges = append(data.Edges, e)
		}
	}

	dataJSON, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal map data: %w", err)
	}

	title := doc.Title
	if title == "" {
		title = "Node map"
	}
	lang, dir := doc.Language.Code, doc.Language.Dir()
	if lang == "" {
		lang = "en"
	}

	_, err = io.WriteString(w, generateHTML(htmlPage{
		Lang:    html.EscapeString(lang),
		Dir:     dir,
		Title:   html.EscapeString(title),
		CSSVars: doc.Palette.CSSVars(),
		Hint:    html.EscapeString(doc.Labels.Hint),
		ZoomIn:  html.EscapeString(orDefault(doc.Labels.ZoomIn, "Zoom in")),
		ZoomOut: html.EscapeString(orDefault(doc.Labels.ZoomOut, "Zoom out")),
		Reset:   html.EscapeString(orDefault(doc.Labels.Reset, "Reset view")),
		Close:   html.EscapeString(orDefault(doc.Labels.Close, "Close")),
		Hash:    html.EscapeString(snap.Hash),
		Data:    string(dataJSON),
	}))
	return err
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

type htmlPage struct {
	Lang, Dir, Title, CSSVars, Hint string
	ZoomIn, ZoomOut, Reset, Close   string
	Hash, Data                      string
}

func generateHTML(p htmlPage) string {
	return fmt.Sprintf(`<!DOCTYPE html>
<html lang="%s" dir="%s">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <meta name="nodemap-hash" content="%s">
    <title>%s</title>
    <style>
        :root { %s }
        * { box-sizing: border-box; margin: 0; padding: 0; }
        body {
            font-family: system-ui, -apple-system, sans-serif;
            background: var(--color-background);
            color: var(--color-text);
            height: 100vh;
            overflow: hidden;
        }
        #map-container { position: relative; width: 100%%; height: 100%%; overflow: hidden; cursor: grab; touch-action: none; }
        #map-container.dragging { cursor: grabbing; }
        #map { position: absolute; left: 0; top: 0; transform-origin: 0 0; }
        #edges { position: absolute; left: 0; top: 0; overflow: visible; pointer-events: none; }
        #edges line { stroke: url(#edge-gradient); stroke-width: 2; opacity: 0.6; transition: opacity 0.15s, stroke-width 0.15s; }
        #edges line.emphasized { stroke: var(--color-primary); stroke-width: 4; opacity: 1; }
        .node {
            position: absolute;
            background: var(--color-surface);
            border: 2px solid var(--color-border);
            border-radius: 12px;
            overflow: hidden;
            cursor: pointer;
            display: flex; flex-direction: column;
            box-shadow: 0 4px 12px rgba(0,0,0,0.2);
            opacity: 0;
            animation: appear 0.6s ease forwards;
            transition: border-color 0.15s, transform 0.15s;
        }
        .node:hover { border-color: var(--color-primary); transform: scale(1.05); }
        .node img { width: 100%%; flex: 1; object-fit: cover; min-height: 0; }
        .node span { padding: 6px 8px; font-size: 13px; white-space: nowrap; overflow: hidden; text-overflow: ellipsis; }
        .anim-1 { animation-delay: 0.05s; } .anim-2 { animation-delay: 0.1s; } .anim-3 { animation-delay: 0.15s; }
        .anim-4 { animation-delay: 0.2s; } .anim-5 { animation-delay: 0.25s; }
        @keyframes appear { from { opacity: 0; transform: translateY(8px); } to { opacity: 1; transform: none; } }
        .controls { position: fixed; right: 16px; bottom: 16px; display: flex; flex-direction: column; gap: 6px; z-index: 10; }
        .controls button {
            width: 40px; height: 40px; border-radius: 8px;
            border: 1px solid var(--color-border);
            background: var(--color-surface); color: var(--color-text);
            font-size: 18px; cursor: pointer;
        }
        .controls button:hover { border-color: var(--color-primary); }
        .hint {
            position: fixed; left: 50%%; bottom: 16px; transform: translateX(-50%%);
            padding: 6px 14px; border-radius: 999px;
            background: var(--color-surface); color: var(--color-text-secondary);
            font-size: 13px; pointer-events: none;
        }
        #modal { position: fixed; inset: 0; background: rgba(0,0,0,0.6); display: none; align-items: center; justify-content: center; z-index: 20; }
        #modal.open { display: flex; }
        #modal .content {
            background: var(--color-surface); color: var(--color-text);
            border-radius: 12px; max-width: min(720px, 90vw); max-height: 90vh; overflow: auto;
            padding: 20px; position: relative;
        }
        #modal img { max-width: 100%%; border-radius: 8px; margin-bottom: 12px; }
        #modal h2 { margin-bottom: 8px; }
        #modal .description { color: var(--color-text-secondary); line-height: 1.5; }
        #modal-close { position: absolute; top: 8px; inset-inline-end: 8px; border: none; background: transparent; color: var(--color-text); font-size: 20px; cursor: pointer; }
    </style>
</head>
<body>
    <div id="map-container">
        <div id="map">
            <svg id="edges">
                <defs>
                    <linearGradient id="edge-gradient">
                        <stop offset="0%%" stop-color="var(--color-primary)"/>
                        <stop offset="100%%" stop-color="var(--color-secondary)"/>
                    </linearGradient>
                </defs>
            </svg>
        </div>
    </div>
    <div class="controls">
        <button id="zoom-in" title="%s" aria-label="%s">+</button>
        <button id="zoom-out" title="%s" aria-label="%s">&minus;</button>
        <button id="reset-view" title="%s" aria-label="%s">&#8634;</button>
    </div>
    <div class="hint">%s</div>
    <div id="modal" role="dialog" aria-modal="true">
        <div class="content">
            <button id="modal-close" title="%s" aria-label="%s">&times;</button>
            <img id="modal-image" alt="">
            <h2 id="modal-title"></h2>
            <div id="modal-description" class="description"></div>
        </div>
    </div>
    <script>
    (function() {
        var data = %s;
        var container = document.getElementById('map-container');
        var map = document.getElementById('map');
        var edgesSvg = document.getElementById('edges');
        var modal = document.getElementById('modal');
        var SVGNS = 'http://www.w3.org/2000/svg';

        var view = { scale: data.transform.scale, tx: data.transform.translate_x, ty: data.transform.translate_y };
        var dragging = false, hovered = -1, last = null;
        var lines = [], incident = data.nodes.map(function() { return []; });

        map.style.width = data.extent + 'px';
        map.style.height = data.extent + 'px';
        edgesSvg.setAttribute('width', data.extent);
        edgesSvg.setAttribute('height', data.extent);

        function apply() {
            map.style.transform = 'translate(' + view.tx + 'px, ' + view.ty + 'px) scale(' + view.scale + ')';
        }
        function clampScale(s) { return Math.min(data.maxScale, Math.max(data.minScale, s)); }
        function finite(v) { return typeof v === 'number' && isFinite(v); }
        function pan(dx, dy) { if (!finite(dx) || !finite(dy)) return; view.tx += dx; view.ty += dy; apply(); }
        function zoomBy(d) { if (!finite(d)) return; view.scale = clampScale(view.scale + d); apply(); }
        function reset() { view.scale = 1; view.tx = 0; view.ty = 0; apply(); }
        function emphasize(idx) {
            lines.forEach(function(l) { l.classList.remove('emphasized'); });
            (idx || []).forEach(function(i) { if (lines[i]) lines[i].classList.add('emphasized'); });
        }

        var half = data.nodeSize / 2;
        data.edges.forEach(function(e, i) {
            var a = data.nodes[e.from], b = data.nodes[e.to];
            var line = document.createElementNS(SVGNS, 'line');
            line.setAttribute('x1', a.x + half); line.setAttribute('y1', a.y + half);
            line.setAttribute('x2', b.x + half); line.setAttribute('y2', b.y + half);
            edgesSvg.appendChild(line);
            lines.push(line);
            incident[e.from].push(i);
            if (e.to !== e.from) incident[e.to].push(i);
        });

        function openDetail(n) {
            document.getElementById('modal-title').textContent = n.title;
            var img = document.getElementById('modal-image');
            if (n.src) { img.src = n.src; img.alt = n.title; img.style.display = ''; } else { img.style.display = 'none'; }
            var desc = document.getElementById('modal-description');
            if (n.description) { desc.innerHTML = n.description; } else { desc.textContent = data.noDescription || ''; }
            modal.classList.add('open');
        }
        function closeDetail() { modal.classList.remove('open'); }

        data.nodes.forEach(function(n, i) {
            var el = document.createElement('div');
            el.className = 'node anim-' + n.anim;
            el.id = 'node-' + i;
            el.style.left = n.x + 'px';
            el.style.top = n.y + 'px';
            el.style.width = data.nodeSize + 'px';
            el.style.height = data.nodeSize + 'px';
            if (n.src) {
                var img = document.createElement('img');
                img.src = n.src; img.alt = n.title; img.loading = 'lazy'; img.draggable = false;
                el.appendChild(img);
            }
            var label = document.createElement('span');
            label.textContent = n.title;
            el.appendChild(label);
            el.addEventListener('mouseenter', function() {
                if (dragging) return;
                hovered = i; emphasize(incident[i]);
            });
            el.addEventListener('mouseleave', function() {
                if (dragging || hovered !== i) return;
                hovered = -1; emphasize([]);
            });
            function down(ev) { ev.stopPropagation(); openDetail(n); }
            el.addEventListener('mousedown', down);
            el.addEventListener('touchstart', down, { passive: true });
            map.appendChild(el);
        });

        function startDrag(x, y) {
            if (!finite(x) || !finite(y)) return;
            dragging = true; hovered = -1; last = { x: x, y: y };
            emphasize([]);
            container.classList.add('dragging');
        }
        function moveDrag(x, y) {
            if (!dragging || !finite(x) || !finite(y)) return;
            pan(x - last.x, y - last.y);
            last = { x: x, y: y };
        }
        function endDrag() { dragging = false; container.classList.remove('dragging'); }

        container.addEventListener('mousedown', function(ev) { startDrag(ev.clientX, ev.clientY); });
        document.addEventListener('mousemove', function(ev) { moveDrag(ev.clientX, ev.clientY); });
        document.addEventListener('mouseup', endDrag);
        container.addEventListener('touchstart', function(ev) {
            if (ev.touches.length) startDrag(ev.touches[0].clientX, ev.touches[0].clientY);
        }, { passive: true });
        document.addEventListener('touchmove', function(ev) {
            if (ev.touches.length) moveDrag(ev.touches[0].clientX, ev.touches[0].clientY);
        }, { passive: true });
        document.addEventListener('touchend', endDrag);
        document.addEventListener('touchcancel', endDrag);
        container.addEventListener('wheel', function(ev) {
            ev.preventDefault();
            if (!finite(ev.deltaY) || ev.deltaY === 0) return;
            zoomBy(ev.deltaY > 0 ? -data.step : data.step);
        }, { passive: false });

        document.getElementById('zoom-in').addEventListener('click', function() { zoomBy(data.step); });
        document.getElementById('zoom-out').addEventListener('click', function() { zoomBy(-data.step); });
        document.getElementById('reset-view').addEventListener('click', reset);
        document.getElementById('modal-close').addEventListener('click', closeDetail);
        modal.addEventListener('click', function(ev) { if (ev.target === modal) closeDetail(); });
        document.addEventListener('keydown', function(ev) { if (ev.key === 'Escape') closeDetail(); });

        apply();
        emphasize(data.emphasized);
    })();
    </script>
</body>
</html>
`, p.Lang, p.Dir, p.Hash, p.Title, p.CSSVars,
		p.ZoomIn, p.ZoomIn, p.ZoomOut, p.ZoomOut, p.Reset, p.Reset,
		p.Hint, p.Close, p.Close, p.Data)
}

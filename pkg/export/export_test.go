package export

import (
	"bufio"
	"bytes"
	"context"
	"image/png"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/vanderheijden86/nodemap/pkg/engine"
	"github.com/vanderheijden86/nodemap/pkg/i18n"
	"github.com/vanderheijden86/nodemap/pkg/layout"
	"github.com/vanderheijden86/nodemap/pkg/loader"
	"github.com/vanderheijden86/nodemap/pkg/model"
	"github.com/vanderheijden86/nodemap/pkg/theme"
)

func quiet() *log.Logger { return log.New(io.Discard, "", 0) }

func testItems() []model.Item {
	return []model.Item{
		{ID: "1", Title: "Harbour", ImageSource: "img/1.jpg"},
		{ID: "2", Title: "Market & Square", ImageSource: "img/2.jpg"},
		{ID: "3", Title: "Temple", ImageSource: "img/3.jpg", Description: "<script>alert(1)</script>"},
		{ID: "4", Title: "Bridge", ImageSource: `x" onload="bad`},
		{ID: "5", Title: "Garden", ImageSource: "img/5.jpg", Description: "**Quiet** place."},
	}
}

func testDoc(t *testing.T, items []model.Item) Document {
	t.Helper()
	e, err := engine.New(engine.Services{Jitter: layout.NoJitter{}, Logger: quiet()}, engine.DefaultOptions())
	if err != nil {
		t.Fatalf("engine.New: %v", err)
	}
	t.Cleanup(e.Close)
	inst, err := e.Mount(engine.NewLocalSurface("test"), items)
	if err != nil {
		t.Fatalf("Mount: %v", err)
	}
	pal, err := theme.Lookup(theme.NameDark)
	if err != nil {
		t.Fatal(err)
	}
	return NewDocument(inst, i18n.New(quiet()), pal)
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"svg", FormatSVG, false},
		{".PNG", FormatPNG, false},
		{"htm", FormatHTML, false},
		{"markdown", FormatMarkdown, false},
		{" json ", FormatJSON, false},
		{"sqlite3", FormatSQLite, false},
		{"pdf", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNewDocument(t *testing.T) {
	doc := testDoc(t, testItems())
	if doc.Title != "Gallery" {
		t.Errorf("Title = %q", doc.Title)
	}
	if doc.Labels.Hint != "Drag to explore • Scroll to zoom" {
		t.Errorf("Hint = %q", doc.Labels.Hint)
	}
	if len(doc.Snapshot.Nodes) != 5 {
		t.Errorf("nodes = %d", len(doc.Snapshot.Nodes))
	}
	if doc.Transform.Scale != 1 {
		t.Errorf("scale = %v", doc.Transform.Scale)
	}
}

func TestWriteSVG(t *testing.T) {
	doc := testDoc(t, testItems())
	var buf bytes.Buffer
	if err := WriteSVG(&buf, doc); err != nil {
		t.Fatalf("WriteSVG: %v", err)
	}
	out := buf.String()

	for _, want := range []string{
		"<svg",
		`id="edge-gradient"`,
		`transform="translate(0 0) scale(1)"`,
		`class="node anim-1"`,
		`class="node anim-5"`,
		"Harbour",
		"Market &amp; Square",
		"Drag to explore • Scroll to zoom",
		`img/1.jpg`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("SVG missing %q", want)
		}
	}
	if got := strings.Count(out, "<line x1"); got != len(doc.Snapshot.Edges) {
		t.Errorf("lines = %d, want %d", got, len(doc.Snapshot.Edges))
	}
	if strings.Contains(out, "onload") {
		t.Error("unsafe image source was written")
	}
}

func TestWriteSVG_Emphasized(t *testing.T) {
	doc := testDoc(t, testItems())
	if len(doc.Snapshot.Edges) == 0 {
		t.Fatal("expected edges")
	}
	doc.Emphasized = []int{0}
	var buf bytes.Buffer
	if err := WriteSVG(&buf, doc); err != nil {
		t.Fatalf("WriteSVG: %v", err)
	}
	if !strings.Contains(buf.String(), "stroke-width:4") {
		t.Error("emphasized edge not drawn solid")
	}
}

func TestWriteSVG_Empty(t *testing.T) {
	doc := testDoc(t, nil)
	var buf bytes.Buffer
	if err := WriteSVG(&buf, doc); err != nil {
		t.Fatalf("WriteSVG: %v", err)
	}
	if !strings.Contains(buf.String(), doc.Labels.Empty) {
		t.Errorf("empty label %q not shown", doc.Labels.Empty)
	}
	if strings.Contains(buf.String(), "<line x1") {
		t.Error("empty map has edges")
	}
}

func TestWritePNG(t *testing.T) {
	doc := testDoc(t, testItems())
	var buf bytes.Buffer
	if err := WritePNG(&buf, doc, 400); err != nil {
		t.Fatalf("WritePNG: %v", err)
	}
	img, err := png.Decode(&buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 400 || b.Dy() != 400 {
		t.Errorf("bounds = %v, want 400x400", b)
	}
}

func TestWriteHTML(t *testing.T) {
	doc := testDoc(t, testItems())
	var buf bytes.Buffer
	if err := WriteHTML(&buf, doc); err != nil {
		t.Fatalf("WriteHTML: %v", err)
	}
	out := buf.String()

	for _, want := range []string{
		`<html lang="en" dir="ltr">`,
		`<meta name="nodemap-hash" content="` + doc.Snapshot.Hash + `"`,
		"--color-primary:",
		"Drag to explore • Scroll to zoom",
		`"noDescription"`,
		"'node anim-' + n.anim",
		`\u003cstrong\u003eQuiet\u003c/strong\u003e`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("HTML missing %q", want)
		}
	}
	if strings.Contains(out, "alert(1)") {
		t.Error("raw HTML from a description reached the page")
	}
}

func TestWriteHTML_RightToLeft(t *testing.T) {
	doc := testDoc(t, testItems())
	lang, ok := i18n.LookupLanguage("ar")
	if !ok {
		t.Fatal("ar not supported")
	}
	doc.Language = lang
	var buf bytes.Buffer
	if err := WriteHTML(&buf, doc); err != nil {
		t.Fatalf("WriteHTML: %v", err)
	}
	if !strings.Contains(buf.String(), `<html lang="ar" dir="rtl">`) {
		t.Error("page is not marked right-to-left")
	}
}

func TestGenerateMarkdown(t *testing.T) {
	doc := testDoc(t, testItems())
	md := GenerateMarkdown(doc)

	for _, want := range []string{
		"# Gallery",
		"- **Items**: 5",
		"```mermaid\ngraph LR\n",
		`n0["Harbour"]`,
		"## Garden",
		"**Quiet** place.",
		"![Harbour](img/1.jpg)",
		"Nearest:",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown missing %q", want)
		}
	}
	if got := strings.Count(md, " --> "); got != len(doc.Snapshot.Edges) {
		t.Errorf("mermaid edges = %d, want %d", got, len(doc.Snapshot.Edges))
	}
}

func TestGenerateMarkdown_Empty(t *testing.T) {
	md := GenerateMarkdown(Document{})
	if !strings.Contains(md, "# Node map") || !strings.Contains(md, "NoConnections") {
		t.Errorf("unexpected empty report:\n%s", md)
	}
}

func TestMermaidLabel(t *testing.T) {
	if got := mermaidLabel(`a "b" [c] (d)`); got != "a 'b' c d" {
		t.Errorf("got %q", got)
	}
	long := strings.Repeat("x", 40)
	if got := mermaidLabel(long); len(got) != 30 || !strings.HasSuffix(got, "...") {
		t.Errorf("long label = %q", got)
	}
}

func TestWriteJSON(t *testing.T) {
	doc := testDoc(t, testItems())
	var buf bytes.Buffer
	if err := WriteJSON(&buf, doc); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	var got MapDocument
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got.Items) != 5 || len(got.Nodes) != 5 {
		t.Errorf("items = %d, nodes = %d", len(got.Items), len(got.Nodes))
	}
	if len(got.Edges) != len(doc.Snapshot.Edges) {
		t.Errorf("edges = %d, want %d", len(got.Edges), len(doc.Snapshot.Edges))
	}
	if got.Hash != doc.Snapshot.Hash {
		t.Errorf("hash = %q", got.Hash)
	}
	if got.Emphasized == nil {
		t.Error("emphasized should encode as an empty list")
	}
}

func TestRender_SQLiteNeedsPath(t *testing.T) {
	if err := Render(io.Discard, FormatSQLite, Document{}); err == nil {
		t.Fatal("expected an error")
	}
	if err := Render(io.Discard, Format("pdf"), Document{}); err == nil {
		t.Fatal("expected an error for unknown format")
	}
}

func TestWriteFiles(t *testing.T) {
	doc := testDoc(t, testItems())
	base := filepath.Join(t.TempDir(), "out", "gallery")

	paths, err := WriteFiles(context.Background(), base, Formats, doc)
	if err != nil {
		t.Fatalf("WriteFiles: %v", err)
	}
	if len(paths) != len(Formats) {
		t.Fatalf("paths = %v", paths)
	}
	for i, p := range paths {
		if want := base + "." + string(Formats[i]); p != want {
			t.Errorf("paths[%d] = %q, want %q", i, p, want)
		}
		info, err := os.Stat(p)
		if err != nil {
			t.Errorf("stat %s: %v", p, err)
			continue
		}
		if info.Size() == 0 {
			t.Errorf("%s is empty", p)
		}
	}

	items, err := (&loader.SQLiteSource{Path: base + ".db"}).Load(context.Background())
	if err != nil {
		t.Fatalf("reading db export: %v", err)
	}
	if len(items) != 5 || items[4].Description != "**Quiet** place." {
		t.Errorf("db items = %+v", items)
	}
}

func TestWriteFiles_Cancelled(t *testing.T) {
	doc := testDoc(t, testItems())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := WriteFiles(ctx, filepath.Join(t.TempDir(), "x"), []Format{FormatSVG}, doc); err == nil {
		t.Fatal("expected cancellation error")
	}
}

func TestGenerateFilename(t *testing.T) {
	name := GenerateFilename("my project")
	if !strings.HasPrefix(name, "my_project_") {
		t.Errorf("name = %q", name)
	}
	if !strings.HasPrefix(GenerateFilename(""), "nodemap_") {
		t.Error("empty project should fall back to nodemap")
	}
}

func TestInjectLiveReload(t *testing.T) {
	page := []byte("<html><body><p>hi</p></body></html>")
	out := string(InjectLiveReload(page))
	if !strings.Contains(out, "/__preview__/events") {
		t.Fatal("script not injected")
	}
	if strings.Index(out, "EventSource") > strings.Index(out, "</body>") {
		t.Error("script should precede </body>")
	}

	bare := string(InjectLiveReload([]byte("plain")))
	if !strings.HasPrefix(bare, "plain") || !strings.HasSuffix(bare, "</script>") {
		t.Errorf("bare page = %q", bare)
	}
}

func readEvent(t *testing.T, r *bufio.Reader) string {
	t.Helper()
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			t.Fatalf("reading stream: %v", err)
		}
		if strings.HasPrefix(line, "event: ") {
			return strings.TrimSpace(strings.TrimPrefix(line, "event: "))
		}
	}
}

func TestLiveReloadHub_SSE(t *testing.T) {
	var changes atomic.Int32
	hub := NewLiveReloadHub("", func() { changes.Add(1) }, quiet())
	if err := hub.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer hub.Stop()

	srv := httptest.NewServer(hub.SSEHandler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q", ct)
	}

	r := bufio.NewReader(resp.Body)
	if ev := readEvent(t, r); ev != "connected" {
		t.Fatalf("first event = %q", ev)
	}
	if hub.ClientCount() != 1 {
		t.Errorf("clients = %d", hub.ClientCount())
	}

	hub.Notify()
	if ev := readEvent(t, r); ev != "reload" {
		t.Fatalf("second event = %q", ev)
	}
	if changes.Load() != 1 {
		t.Errorf("onChange ran %d times", changes.Load())
	}
}

func TestLiveReloadHub_WatchesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "items.json")
	if err := os.WriteFile(path, []byte("[]"), 0o644); err != nil {
		t.Fatal(err)
	}
	changed := make(chan struct{}, 4)
	hub := NewLiveReloadHub(path, func() { changed <- struct{}{} }, quiet())
	if err := hub.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer hub.Stop()

	if err := os.WriteFile(path, []byte(`[{"id":"1","title":"a"}]`), 0o644); err != nil {
		t.Fatal(err)
	}
	select {
	case <-changed:
	case <-time.After(3 * time.Second):
		t.Fatal("no change seen")
	}
}

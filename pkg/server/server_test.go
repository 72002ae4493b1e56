package server

import (
	"context"
	"image/png"
	"io"
	"log"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/goccy/go-json"

	"github.com/vanderheijden86/nodemap/pkg/analysis"
	"github.com/vanderheijden86/nodemap/pkg/engine"
	"github.com/vanderheijden86/nodemap/pkg/export"
	"github.com/vanderheijden86/nodemap/pkg/layout"
	"github.com/vanderheijden86/nodemap/pkg/loader"
	"github.com/vanderheijden86/nodemap/pkg/model"
	"github.com/vanderheijden86/nodemap/pkg/theme"
	"github.com/vanderheijden86/nodemap/pkg/viewport"
)

const galleryJSON = `{"images":[
 {"id":1,"title":"Harbour","src":"img/1.jpg"},
 {"id":2,"title":"Market","src":"img/2.jpg"},
 {"id":3,"title":"Temple","src":"img/3.jpg"},
 {"id":4,"title":"Bridge","src":"img/4.jpg"},
 {"id":5,"title":"Garden","src":"img/5.jpg","description":"Quiet."}
]}`

func newTestServer(t *testing.T, src loader.Source, cfg Config) *Server {
	t.Helper()
	eng, err := engine.New(engine.Services{Jitter: layout.NoJitter{}, Logger: log.New(io.Discard, "", 0)}, engine.DefaultOptions())
	if err != nil {
		t.Fatalf("engine.New: %v", err)
	}
	t.Cleanup(eng.Close)
	pal, err := theme.Lookup(theme.NameDark)
	if err != nil {
		t.Fatal(err)
	}
	srv := New(cfg, eng, src, pal)
	t.Cleanup(srv.hub.Stop)
	return srv
}

func loadedServer(t *testing.T) *Server {
	t.Helper()
	items, err := loader.ParseJSON([]byte(galleryJSON))
	if err != nil {
		t.Fatal(err)
	}
	srv := newTestServer(t, loader.StaticSource(items), Config{AllowedOrigins: []string{"*"}, Gzip: true})
	if err := srv.Reload(context.Background()); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	return srv
}

func do(t *testing.T, srv *Server, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("unmarshal %q: %v", w.Body.String(), err)
	}
}

func TestHealthCheck(t *testing.T) {
	srv := newTestServer(t, loader.StaticSource(nil), Config{})
	w := do(t, srv, "GET", "/healthz")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var body map[string]string
	decode(t, w, &body)
	if body["status"] != "ok" {
		t.Errorf("status = %q", body["status"])
	}
}

func TestCORSHeaders(t *testing.T) {
	srv := newTestServer(t, loader.StaticSource(nil), Config{AllowedOrigins: []string{"*"}})
	req := httptest.NewRequest("OPTIONS", "/api/map", nil)
	req.Header.Set("Origin", "http://example.com")
	req.Header.Set("Access-Control-Request-Method", "GET")
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)
	if w.Header().Get("Access-Control-Allow-Origin") == "" {
		t.Error("expected CORS Allow-Origin header")
	}
}

func TestMap(t *testing.T) {
	srv := loadedServer(t)
	w := do(t, srv, "GET", "/api/map")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	var doc export.MapDocument
	decode(t, w, &doc)
	if len(doc.Nodes) != 5 || len(doc.Items) != 5 {
		t.Fatalf("nodes = %d, items = %d", len(doc.Nodes), len(doc.Items))
	}
	if doc.Transform != viewport.Identity() {
		t.Errorf("transform = %+v", doc.Transform)
	}
	if doc.Hash == "" {
		t.Error("missing hash")
	}
}

func TestMap_Unavailable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gallery-data.json")
	srv := newTestServer(t, &loader.FileSource{Path: path}, Config{})

	if err := srv.Reload(context.Background()); err == nil {
		t.Fatal("expected a load error for a missing file")
	}
	w := do(t, srv, "GET", "/api/map")
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", w.Code)
	}
	var body map[string]string
	decode(t, w, &body)
	if !strings.HasPrefix(body["error"], "Could not load items: ") {
		t.Errorf("error = %q", body["error"])
	}
	if w := do(t, srv, "GET", "/"); w.Code != http.StatusServiceUnavailable {
		t.Errorf("page status = %d, want 503", w.Code)
	}
	if w := do(t, srv, "POST", "/api/reload"); w.Code != http.StatusServiceUnavailable {
		t.Errorf("reload status = %d, want 503", w.Code)
	}

	if err := os.WriteFile(path, []byte(galleryJSON), 0o644); err != nil {
		t.Fatal(err)
	}
	w = do(t, srv, "POST", "/api/reload")
	if w.Code != http.StatusOK {
		t.Fatalf("reload status = %d: %s", w.Code, w.Body.String())
	}
	if w := do(t, srv, "GET", "/api/map"); w.Code != http.StatusOK {
		t.Errorf("map status after reload = %d", w.Code)
	}
}

func TestItem(t *testing.T) {
	srv := loadedServer(t)

	w := do(t, srv, "GET", "/api/items/5")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var it struct {
		model.Item
		Index   int      `json:"index"`
		Nearest []string `json:"nearest"`
	}
	decode(t, w, &it)
	if it.Title != "Garden" || it.Index != 4 {
		t.Errorf("item = %+v", it)
	}
	if len(it.Nearest) == 0 || len(it.Nearest) > 2 {
		t.Errorf("nearest = %v", it.Nearest)
	}

	if w := do(t, srv, "GET", "/api/items/nope"); w.Code != http.StatusNotFound {
		t.Errorf("missing item status = %d", w.Code)
	}
}

func TestOpenAndClose(t *testing.T) {
	srv := loadedServer(t)

	w := do(t, srv, "POST", "/api/items/2/open")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var d detailResponse
	decode(t, w, &d)
	if !d.Open || d.Item == nil || d.Item.Title != "Market" {
		t.Fatalf("detail = %+v", d)
	}
	// Opening a node never pans.
	if tr := srv.surface.Transform(); tr != viewport.Identity() {
		t.Errorf("transform = %+v", tr)
	}

	for i := 0; i < 2; i++ {
		if w := do(t, srv, "POST", "/api/controls/modal-close"); w.Code != http.StatusOK {
			t.Fatalf("close status = %d", w.Code)
		}
	}
	d = detailResponse{}
	decode(t, do(t, srv, "GET", "/api/detail"), &d)
	if d.Open {
		t.Errorf("detail still open: %+v", d)
	}
}

func TestControls(t *testing.T) {
	srv := loadedServer(t)

	var tr viewport.Transform
	decode(t, do(t, srv, "POST", "/api/controls/zoom-in"), &tr)
	if math.Abs(tr.Scale-1.1) > 1e-9 {
		t.Errorf("scale after zoom-in = %v", tr.Scale)
	}
	for i := 0; i < 30; i++ {
		do(t, srv, "POST", "/api/controls/zoom-in")
	}
	decode(t, do(t, srv, "POST", "/api/controls/zoom-in"), &tr)
	if tr.Scale != 2 {
		t.Errorf("scale should clamp at 2, got %v", tr.Scale)
	}
	decode(t, do(t, srv, "POST", "/api/controls/reset-view"), &tr)
	if tr != viewport.Identity() {
		t.Errorf("reset = %+v", tr)
	}

	if w := do(t, srv, "POST", "/api/controls/explode"); w.Code != http.StatusNotFound {
		t.Errorf("unknown control status = %d", w.Code)
	}
}

func TestReloadKeepsView(t *testing.T) {
	srv := loadedServer(t)
	do(t, srv, "POST", "/api/controls/zoom-out")

	w := do(t, srv, "POST", "/api/reload")
	if w.Code != http.StatusOK {
		t.Fatalf("reload status = %d", w.Code)
	}
	var doc export.MapDocument
	decode(t, do(t, srv, "GET", "/api/map"), &doc)
	if math.Abs(doc.Transform.Scale-0.9) > 1e-9 {
		t.Errorf("scale after reload = %v, want 0.9", doc.Transform.Scale)
	}
}

func TestPage(t *testing.T) {
	srv := loadedServer(t)
	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if enc := w.Header().Get("Content-Encoding"); enc != "gzip" {
		t.Errorf("Content-Encoding = %q, want gzip", enc)
	}

	plain := do(t, srv, "GET", "/")
	body := plain.Body.String()
	for _, want := range []string{"<html", "/__preview__/events", "Drag to explore"} {
		if !strings.Contains(body, want) {
			t.Errorf("page missing %q", want)
		}
	}
}

func TestSnapshots(t *testing.T) {
	srv := loadedServer(t)

	w := do(t, srv, "GET", "/map.svg")
	if w.Code != http.StatusOK || w.Header().Get("Content-Type") != "image/svg+xml" {
		t.Fatalf("svg: %d %q", w.Code, w.Header().Get("Content-Type"))
	}
	if !strings.Contains(w.Body.String(), "Harbour") {
		t.Error("svg missing titles")
	}

	w = do(t, srv, "GET", "/map.png?size=128")
	if w.Code != http.StatusOK {
		t.Fatalf("png status = %d", w.Code)
	}
	img, err := png.Decode(w.Body)
	if err != nil {
		t.Fatalf("decode png: %v", err)
	}
	if img.Bounds().Dx() != 128 {
		t.Errorf("width = %d", img.Bounds().Dx())
	}

	for _, bad := range []string{"10", "9999", "abc"} {
		if w := do(t, srv, "GET", "/map.png?size="+bad); w.Code != http.StatusBadRequest {
			t.Errorf("size=%s status = %d, want 400", bad, w.Code)
		}
	}
}

func TestStats(t *testing.T) {
	srv := loadedServer(t)
	w := do(t, srv, "GET", "/api/stats")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var st analysis.Stats
	decode(t, w, &st)
	if st.Nodes != 5 {
		t.Errorf("nodes = %d", st.Nodes)
	}
	if st.Betweenness != analysis.BetweennessExact {
		t.Errorf("betweenness = %q", st.Betweenness)
	}
}

func TestWatchPath(t *testing.T) {
	tests := []struct {
		src  loader.Source
		want string
	}{
		{&loader.FileSource{Path: "a.json"}, "a.json"},
		{&loader.SQLiteSource{Path: "a.db"}, "a.db"},
		{&loader.HTTPSource{URL: "http://x"}, ""},
		{loader.StaticSource(nil), ""},
	}
	for _, tt := range tests {
		if got := WatchPath(tt.src); got != tt.want {
			t.Errorf("WatchPath(%s) = %q, want %q", tt.src, got, tt.want)
		}
	}
}

// Package server is the preview server: it serves the interactive HTML page,
// the map as JSON, SVG and PNG snapshots, and pushes a reload to open pages
// when the item file changes.
package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/klauspost/compress/gzhttp"

	"github.com/vanderheijden86/nodemap/pkg/analysis"
	"github.com/vanderheijden86/nodemap/pkg/engine"
	"github.com/vanderheijden86/nodemap/pkg/export"
	"github.com/vanderheijden86/nodemap/pkg/interaction"
	"github.com/vanderheijden86/nodemap/pkg/loader"
	"github.com/vanderheijden86/nodemap/pkg/theme"
)

// SurfaceID is the surface the server mounts its map on.
const SurfaceID = "preview"

// Config holds server configuration.
type Config struct {
	Addr           string
	AllowedOrigins []string
	Gzip           bool
	// Watch is the file whose changes trigger a reload. Empty disables
	// watching; POST /api/reload still works.
	Watch string
}

// Server owns one mounted map and the HTTP routes that expose it.
type Server struct {
	cfg     Config
	engine  *engine.Engine
	source  loader.Source
	palette theme.Palette
	logger  *log.Logger

	surface    *engine.LocalSurface
	hub        *export.LiveReloadHub
	router     chi.Router
	httpServer *http.Server

	mu      sync.Mutex
	inst    *engine.Instance
	loadErr error
}

// New creates a server for the items in src. Nothing is loaded until
// Reload or Start.
func New(cfg Config, eng *engine.Engine, src loader.Source, pal theme.Palette) *Server {
	s := &Server{
		cfg:     cfg,
		engine:  eng,
		source:  src,
		palette: pal,
		logger:  eng.Services().Logger,
		surface: engine.NewLocalSurface(SurfaceID),
	}
	s.hub = export.NewLiveReloadHub(cfg.Watch, func() {
		if err := s.Reload(context.Background()); err != nil {
			s.logger.Printf("server: reload failed: %v", err)
		}
	}, s.logger)
	s.router = s.buildRouter()
	return s
}

// WatchPath returns the local file behind src, or "" when src is not
// file backed.
func WatchPath(src loader.Source) string {
	switch v := src.(type) {
	case *loader.FileSource:
		return v.Path
	case *loader.SQLiteSource:
		return v.Path
	}
	return ""
}

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestLogger(&middleware.DefaultLogFormatter{Logger: s.logger, NoColor: true}))
	r.Use(middleware.Recoverer)

	origins := s.cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:*", "http://127.0.0.1:*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	// The event stream stays open, so it sits outside the timeout and
	// compression middleware.
	r.Get("/__preview__/events", s.hub.SSEHandler())

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(60 * time.Second))
		if s.cfg.Gzip {
			r.Use(func(next http.Handler) http.Handler { return gzhttp.GzipHandler(next) })
		}

		r.Get("/", s.handlePage)
		r.Get("/map.svg", s.handleSVG)
		r.Get("/map.png", s.handlePNG)

		r.Route("/api", func(r chi.Router) {
			r.Get("/map", s.handleMap)
			r.Get("/stats", s.handleStats)
			r.Get("/items/{id}", s.handleItem)
			r.Post("/items/{id}/open", s.handleOpen)
			r.Get("/detail", s.handleDetail)
			r.Post("/controls/{control}", s.handleControl)
			r.Post("/reload", s.handleReload)
		})
	})
	return r
}

// Router returns the HTTP handler.
func (s *Server) Router() chi.Router { return s.router }

// Hub returns the live reload hub.
func (s *Server) Hub() *export.LiveReloadHub { return s.hub }

// Reload loads the items again and rebuilds the map, keeping the current
// view. When the source is unavailable the previous map is kept but the API
// reports the failure until a later reload succeeds.
func (s *Server) Reload(ctx context.Context) error {
	items, err := loader.Load(ctx, s.source, s.logger)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.loadErr = err
		s.logger.Printf("server: map left unrendered: %v", err)
		return err
	}
	s.loadErr = nil
	if s.inst != nil && !s.inst.Disposed() {
		return s.inst.Reload(items)
	}
	inst, err := s.engine.Mount(s.surface, items)
	if err != nil {
		return err
	}
	s.inst = inst
	return nil
}

// Start loads the map, starts the file watcher and listens on cfg.Addr.
// A failed initial load is logged and served as 503 until fixed.
func (s *Server) Start(ctx context.Context) error {
	_ = s.Reload(ctx)
	if err := s.hub.Start(); err != nil {
		return err
	}
	s.httpServer = &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	s.logger.Printf("server: listening on %s", s.cfg.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the watcher, disconnects live reload clients and shuts
// the HTTP server down.
func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.Stop()
	s.mu.Lock()
	if s.inst != nil {
		s.inst.Dispose()
	}
	s.mu.Unlock()
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

// withInstance runs fn with the mounted instance under the lock, or writes
// 503 when no map is available.
func (s *Server) withInstance(w http.ResponseWriter, fn func(inst *engine.Instance)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loadErr != nil || s.inst == nil {
		reason := "not loaded"
		if s.loadErr != nil {
			reason = s.loadErr.Error()
		}
		msg := s.engine.Services().Translator.Tf("map.unavailable", map[string]string{"reason": reason})
		writeError(w, http.StatusServiceUnavailable, msg)
		return
	}
	fn(s.inst)
}

func (s *Server) document(inst *engine.Instance) export.Document {
	return export.NewDocument(inst, s.engine.Services().Translator, s.palette)
}

func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	s.withInstance(w, func(inst *engine.Instance) {
		var buf bytes.Buffer
		if err := export.WriteHTML(&buf, s.document(inst)); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write(export.InjectLiveReload(buf.Bytes()))
	})
}

func (s *Server) handleSVG(w http.ResponseWriter, r *http.Request) {
	s.withInstance(w, func(inst *engine.Instance) {
		var buf bytes.Buffer
		if err := export.WriteSVG(&buf, s.document(inst)); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		w.Header().Set("Content-Type", "image/svg+xml")
		w.Write(buf.Bytes())
	})
}

// handlePNG accepts ?size=N between 64 and 4096 pixels.
func (s *Server) handlePNG(w http.ResponseWriter, r *http.Request) {
	size := export.DefaultPNGSize
	if v := r.URL.Query().Get("size"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 64 || n > 4096 {
			writeError(w, http.StatusBadRequest, "size must be an integer between 64 and 4096")
			return
		}
		size = n
	}
	s.withInstance(w, func(inst *engine.Instance) {
		var buf bytes.Buffer
		if err := export.WritePNG(&buf, s.document(inst), size); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Write(buf.Bytes())
	})
}

func (s *Server) handleMap(w http.ResponseWriter, r *http.Request) {
	s.withInstance(w, func(inst *engine.Instance) {
		writeJSON(w, http.StatusOK, export.NewMapDocument(s.document(inst)))
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	s.withInstance(w, func(inst *engine.Instance) {
		st, err := analysis.Compute(r.Context(), inst.Graph(), inst.Nodes(), inst.Items(), inst.NodeSize(), analysis.DefaultConfig())
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, st)
	})
}

func (s *Server) handleItem(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.withInstance(w, func(inst *engine.Instance) {
		idx := inst.IndexOf(id)
		if idx < 0 {
			writeError(w, http.StatusNotFound, fmt.Sprintf("item %q not found", id))
			return
		}
		var nearest []string
		for _, e := range inst.Edges() {
			if e.From == idx {
				nearest = append(nearest, inst.Items()[e.To].ID)
			}
		}
		writeJSON(w, http.StatusOK, itemResponse{
			Item:     inst.Items()[idx],
			Index:    idx,
			Position: inst.Nodes()[idx].Position,
			Nearest:  nearest,
		})
	})
}

// handleOpen presses the node for id, which opens its detail.
func (s *Server) handleOpen(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.withInstance(w, func(inst *engine.Instance) {
		idx := inst.IndexOf(id)
		if idx < 0 {
			writeError(w, http.StatusNotFound, fmt.Sprintf("item %q not found", id))
			return
		}
		s.surface.Emit(interaction.Event{Kind: interaction.PointerDown, Target: interaction.OnNode(idx)})
		s.surface.Emit(interaction.Event{Kind: interaction.PointerUp, Target: interaction.OnNode(idx)})
		writeDetail(w, s.surface)
	})
}

func (s *Server) handleDetail(w http.ResponseWriter, r *http.Request) {
	s.withInstance(w, func(*engine.Instance) {
		writeDetail(w, s.surface)
	})
}

var controls = map[string]interaction.Control{
	string(interaction.ControlZoomIn):  interaction.ControlZoomIn,
	string(interaction.ControlZoomOut): interaction.ControlZoomOut,
	string(interaction.ControlReset):   interaction.ControlReset,
	string(interaction.ControlClose):   interaction.ControlClose,
}

// handleControl presses an on-screen control and returns the new view.
func (s *Server) handleControl(w http.ResponseWriter, r *http.Request) {
	c, ok := controls[chi.URLParam(r, "control")]
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("unknown control %q", chi.URLParam(r, "control")))
		return
	}
	s.withInstance(w, func(inst *engine.Instance) {
		s.surface.Emit(interaction.Event{Kind: interaction.PointerDown, Target: interaction.OnControl(c)})
		writeJSON(w, http.StatusOK, inst.Viewport().Transform())
	})
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	if err := s.Reload(r.Context()); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, loader.ErrDataUnavailable) {
			status = http.StatusServiceUnavailable
		}
		writeError(w, status, err.Error())
		return
	}
	s.hub.Broadcast()
	s.mu.Lock()
	hash := s.inst.Hash()
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]string{"status": "reloaded", "hash": hash})
}

// Package serve exposes run artifacts over HTTP for humans and downstream
// tooling: the latest summary, run history, raw snapshots, and on-demand
// row alignment of a previous/current pair.
package serve

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/hazyhaar/visreg/align"
	"github.com/hazyhaar/visreg/internal/report"
	"github.com/hazyhaar/visreg/internal/store"
	"github.com/hazyhaar/visreg/raster"
)

// Server serves the snapshot directory and, when configured, run history.
type Server struct {
	store   *store.Store
	history *store.History // nil when history is disabled
	logger  *slog.Logger
}

// New creates a Server. history may be nil.
func New(st *store.Store, history *store.History, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{store: st, history: history, logger: logger}
}

// Router builds the HTTP handler.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/api/summary", s.handleSummary)
	r.Get("/api/runs", s.handleRuns)
	r.Get("/api/align", s.handleAlign)
	r.Handle("/snapshots/*", http.StripPrefix("/snapshots/",
		http.FileServer(http.Dir(s.store.Dir()))))

	return r
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	sum, err := report.ReadSummary(s.store.Dir())
	if errors.Is(err, os.ErrNotExist) {
		http.Error(w, "no summary yet", http.StatusNotFound)
		return
	}
	if err != nil {
		s.logger.Error("serve: read summary", "error", err)
		http.Error(w, "read summary failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, sum)
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		http.Error(w, "run history not configured", http.StatusNotFound)
		return
	}
	runs, err := s.history.Runs(r.Context(), 50)
	if err != nil {
		s.logger.Error("serve: query runs", "error", err)
		http.Error(w, "query runs failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, runs)
}

// alignedImage is one side of an alignment response.
type alignedImage struct {
	// Data is the base64-encoded row-major RGBA buffer.
	Data   string `json:"data"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

type alignResponse struct {
	PreviousData alignedImage `json:"previousData"`
	CurrentData  alignedImage `json:"currentData"`
}

// handleAlign loads the previous/current pair for a key and returns the
// gap-padded aligned buffers. This is the out-of-band path: it never runs
// during capture.
func (s *Server) handleAlign(w http.ResponseWriter, r *http.Request) {
	description := r.URL.Query().Get("description")
	viewport := r.URL.Query().Get("viewport")
	if description == "" || viewport == "" {
		http.Error(w, "description and viewport are required", http.StatusBadRequest)
		return
	}

	previous, current, err := s.store.LoadPair(description, viewport)
	if errors.Is(err, os.ErrNotExist) {
		http.Error(w, "no snapshot for key", http.StatusNotFound)
		return
	}
	if err != nil {
		s.logger.Error("serve: load pair", "error", err)
		http.Error(w, "load snapshots failed", http.StatusInternalServerError)
		return
	}
	if previous == nil {
		http.Error(w, "no previous snapshot to align against", http.StatusNotFound)
		return
	}

	prevOut, curOut, err := align.AlignImages(previous, current, func(pct int) {
		s.logger.Debug("serve: align progress",
			"description", description, "viewport", viewport, "pct", pct)
	})
	if err != nil {
		s.logger.Error("serve: align", "error", err)
		http.Error(w, "alignment failed", http.StatusInternalServerError)
		return
	}

	writeJSON(w, alignResponse{
		PreviousData: encodeAligned(prevOut),
		CurrentData:  encodeAligned(curOut),
	})
}

func encodeAligned(m *raster.Image) alignedImage {
	return alignedImage{
		Data:   base64.StdEncoding.EncodeToString(m.Pix),
		Width:  m.Width,
		Height: m.Height,
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

package tilesrv

import(
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"

	"skybrowse/pkg/archive"
	"skybrowse/pkg/pyramid"
)

// Server is the read path over a published pyramid, plus the thin
// dataset/label/regenerate endpoints around it. No pixel computation
// happens at request time; tiles are whatever the builder persisted.
type Server struct {
	store   pyramid.Store
	labels  *LabelStore
	catalog *archive.Catalog

	// Hooks into the batch side, wired up by the caller
	regenerate func(name string) error
	download   func(ctx context.Context, object, telescope string, maxFiles int) (string, error)

	mux *http.ServeMux
}

type Config struct {
	Store      pyramid.Store
	Labels     *LabelStore
	Catalog    *archive.Catalog
	Regenerate func(name string) error
	Download   func(ctx context.Context, object, telescope string, maxFiles int) (string, error)
}

func New(cfg Config) *Server {
	s := &Server{
		store:      cfg.Store,
		labels:     cfg.Labels,
		catalog:    cfg.Catalog,
		regenerate: cfg.Regenerate,
		download:   cfg.Download,
		mux:        http.NewServeMux(),
	}

	s.mux.HandleFunc("GET /metadata", s.handleMetadata)
	s.mux.HandleFunc("GET /tiles/{zoom}/{col}/{row}", s.handleTile)
	s.mux.HandleFunc("GET /labels", s.handleGetLabels)
	s.mux.HandleFunc("POST /labels", s.handlePostLabel)
	s.mux.HandleFunc("GET /datasets", s.handleListDatasets)
	s.mux.HandleFunc("DELETE /datasets/{name}", s.handleDeleteDataset)
	s.mux.HandleFunc("POST /datasets/{name}/regenerate", s.handleRegenerate)
	s.mux.HandleFunc("POST /download", s.handleDownload)

	return s
}

func (s *Server)Handler() http.Handler { return s.mux }

func (s *Server)handleMetadata(w http.ResponseWriter, r *http.Request) {
	md, err := s.store.ReadMetadata()
	if errors.Is(err, pyramid.ErrNotFound) {
		http.Error(w, "no pyramid published", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, md)
}

func (s *Server)handleTile(w http.ResponseWriter, r *http.Request) {
	zoom, err1 := strconv.Atoi(r.PathValue("zoom"))
	col, err2 := strconv.Atoi(r.PathValue("col"))
	rowStr, ok := strings.CutSuffix(r.PathValue("row"), ".png")
	row, err3 := strconv.Atoi(rowStr)
	if err1 != nil || err2 != nil || err3 != nil || !ok {
		http.Error(w, "bad tile coordinate", http.StatusNotFound)
		return
	}

	md, err := s.store.ReadMetadata()
	if errors.Is(err, pyramid.ErrNotFound) {
		http.Error(w, "no pyramid published", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	// Out of range is a normal miss, not a failure
	if !md.InRange(zoom, col, row) {
		http.Error(w, "tile out of range", http.StatusNotFound)
		return
	}

	data, err := s.store.ReadTile(zoom, col, row)
	if errors.Is(err, pyramid.ErrNotFound) {
		// In-range but unpersisted would mean a hole in the pyramid
		http.Error(w, "tile missing", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	// A regenerated mosaic should show up without a hard refresh
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Write(data)
}

func (s *Server)handleGetLabels(w http.ResponseWriter, r *http.Request) {
	labels, err := s.labels.All()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, labels)
}

func (s *Server)handlePostLabel(w http.ResponseWriter, r *http.Request) {
	var l Label
	if err := json.NewDecoder(r.Body).Decode(&l); err != nil {
		http.Error(w, "bad label", http.StatusBadRequest)
		return
	}
	if err := s.labels.Add(l); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]bool{"ok": true})
}

func (s *Server)handleListDatasets(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.catalog.List())
}

func (s *Server)handleDeleteDataset(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if _, ok := s.catalog.Get(name); !ok {
		http.Error(w, "no such dataset", http.StatusNotFound)
		return
	}
	if err := s.catalog.Delete(name); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	log.Printf("Deleted dataset '%s'\n", name)
	writeJSON(w, map[string]bool{"ok": true})
}

func (s *Server)handleRegenerate(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if _, ok := s.catalog.Get(name); !ok {
		http.Error(w, "no such dataset", http.StatusNotFound)
		return
	}
	if err := s.regenerate(name); err != nil {
		// The build aborted; any prior pyramid is still live
		http.Error(w, fmt.Sprintf("regenerate '%s': %v", name, err), http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]bool{"ok": true})
}

func (s *Server)handleDownload(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Target    string `json:"target"`
		Telescope string `json:"telescope"`
		MaxFiles  int    `json:"max_files"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Target == "" {
		http.Error(w, "bad download request", http.StatusBadRequest)
		return
	}
	if req.Telescope == "" { req.Telescope = "HST" }
	if req.MaxFiles <= 0   { req.MaxFiles = 10 }

	name, err := s.download(r.Context(), req.Target, req.Telescope, req.MaxFiles)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	writeJSON(w, map[string]string{"name": name})
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

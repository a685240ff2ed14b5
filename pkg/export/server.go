package export

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
)

// Server serves the most recently published snapshot:
//
//	/              the rendered text tree
//	/tree.json     the snapshot as JSON
//	/__status__    publish counters
type Server struct {
	mu        sync.RWMutex
	snap      *Snapshot
	published int
	mux       *http.ServeMux
}

// NewServer creates a server with nothing published yet.
func NewServer() *Server {
	s := &Server{mux: http.NewServeMux()}
	s.mux.HandleFunc("/", s.textHandler)
	s.mux.HandleFunc("/tree.json", s.jsonHandler)
	s.mux.HandleFunc("/__status__", s.statusHandler)
	return s
}

// Publish replaces the served snapshot.
func (s *Server) Publish(snap *Snapshot) {
	s.mu.Lock()
	s.snap = snap
	s.published++
	s.mu.Unlock()
}

// Current returns the served snapshot, nil before the first Publish.
func (s *Server) Current() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	noCacheMiddleware(s.mux).ServeHTTP(w, r)
}

func (s *Server) textHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	snap := s.Current()
	if snap == nil {
		http.Error(w, "no snapshot yet", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, snap.Text)
}

func (s *Server) jsonHandler(w http.ResponseWriter, r *http.Request) {
	snap := s.Current()
	if snap == nil {
		http.Error(w, "no snapshot yet", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := WriteJSON(w, snap); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// statusHandler reports how many snapshots have been published.
func (s *Server) statusHandler(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	published := s.published
	var shown, total int
	if s.snap != nil {
		shown, total = s.snap.Shown, s.snap.Total
	}
	s.mu.RUnlock()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":    "running",
		"published": published,
		"shown":     shown,
		"total":     total,
	})
}

// noCacheMiddleware adds headers to prevent browser caching.
func noCacheMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate, max-age=0")
		w.Header().Set("Pragma", "no-cache")
		w.Header().Set("Expires", "0")

		switch r.Method {
		case http.MethodGet, http.MethodHead:
			next.ServeHTTP(w, r)
		default:
			w.Header().Set("Allow", "GET, HEAD")
			http.Error(w, fmt.Sprintf("method %s not allowed", r.Method), http.StatusMethodNotAllowed)
		}
	})
}

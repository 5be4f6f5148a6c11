// Package web serves the live target state over HTTP: an auto-refreshing page
// for people at the range and JSON for scripts.
package web

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/freetarget/target-core/internal/status"
)

// Server exposes a status.Tracker over HTTP.
type Server struct {
	httpServer *http.Server
	tracker    *status.Tracker
	logger     *zap.SugaredLogger
}

// New creates a Server bound to addr. Nothing is served until ListenAndServe.
func New(addr string, tracker *status.Tracker, logger *zap.SugaredLogger) *Server {
	s := &Server{tracker: tracker, logger: logger}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.readOnly(s.handlePage))
	mux.HandleFunc("/index.json", s.readOnly(s.handleStatus))
	mux.HandleFunc("/shot.json", s.readOnly(s.handleShot))

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// ListenAndServe blocks until Shutdown is called.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// handler returns the request router.
func (s *Server) handler() http.Handler {
	return s.httpServer.Handler
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// readOnly rejects everything but GET and HEAD.
func (s *Server) readOnly(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.Header().Set("Allow", "GET, HEAD")
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h(w, r)
	}
}

func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" && r.URL.Path != "/index.html" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	renderHTML(w, s.tracker.Snapshot())
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, status.FormatJSON(s.tracker.Snapshot()))
}

func (s *Server) handleShot(w http.ResponseWriter, r *http.Request) {
	data, ok := status.FormatShot(s.tracker.Snapshot())
	if !ok {
		http.Error(w, "no shot recorded", http.StatusNotFound)
		return
	}
	s.writeJSON(w, data)
}

func (s *Server) writeJSON(w http.ResponseWriter, data []byte) {
	w.Header().Set("Content-Type", "application/json")
	if _, err := w.Write(data); err != nil {
		s.logger.Debugw("http write failed", "error", err)
	}
}

package web

import (
	"context"
	"io/fs"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/cjeanneret/PriceScan/internal/debug"
)

// Server wraps the HTTP server and handlers.
type Server struct {
	addr     string
	handlers *Handlers
}

// NewServer creates a server configured for the given address and dependencies.
func NewServer(addr string, broadcaster *StatusBroadcaster, app App) *Server {
	subFS, err := fs.Sub(staticFiles, "static")
	if err != nil {
		log.Fatalf("web: failed to sub static fs: %v", err)
	}

	return &Server{
		addr:     addr,
		handlers: NewHandlers(broadcaster, app, subFS),
	}
}

// Router returns an http.Handler with all routes registered.
func (s *Server) Router() http.Handler {
	return NewRouter(s.handlers)
}

// NewRouter registers every route on a gorilla/mux router.
func NewRouter(h *Handlers) *mux.Router {
	r := mux.NewRouter()
	r.Use(logRequests)

	r.HandleFunc("/api/state", h.HandleState).Methods(http.MethodGet)
	r.HandleFunc("/api/tab", h.HandleTab).Methods(http.MethodPut)
	r.HandleFunc("/api/capture", h.HandleCapture).Methods(http.MethodPost)
	r.HandleFunc("/api/items", h.HandleItems).Methods(http.MethodGet)
	r.HandleFunc("/api/items/{id}", h.HandleDeleteItem).Methods(http.MethodDelete)
	r.HandleFunc("/api/items/{id}/image", h.HandleItemImage).Methods(http.MethodGet)
	r.HandleFunc("/api/settings/offline", h.HandleSetOffline).Methods(http.MethodPut)
	r.HandleFunc("/api/settings/offline/toggle", h.HandleToggleOffline).Methods(http.MethodPost)
	r.HandleFunc("/api/stats", h.HandleStats).Methods(http.MethodGet)
	r.HandleFunc("/api/camera/frame", h.HandleFrame).Methods(http.MethodGet)

	r.HandleFunc("/status/stream", h.HandleStatusStream).Methods(http.MethodGet)
	r.PathPrefix("/static/").Handler(http.StripPrefix("/static/", http.FileServer(http.FS(h.staticFS))))
	r.HandleFunc("/", h.ServeIndex).Methods(http.MethodGet)

	return r
}

// logRequests traces API calls; the preview poll is too chatty for anything
// but trace level.
func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/camera/frame" {
			debug.Trace("%s %s", r.Method, r.URL.Path)
		} else {
			debug.Verbose("%s %s", r.Method, r.URL.Path)
		}
		next.ServeHTTP(w, r)
	})
}

// Run starts the server and blocks until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{Addr: s.addr, Handler: s.Router()}
	errCh := make(chan error, 1)
	go func() {
		debug.Info("Web UI listening on %s", s.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

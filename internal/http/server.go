package http

import (
	"context"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"bollette/internal/services"
	appweb "bollette/web"
)

// Server serves the HTMX UI on top of the bill service and the month
// generator. Month pages are cached briefly; any mutation purges the cache
// because carry-forward lets one bill affect several months.
type Server struct {
	http.Server
	templates   *template.Template
	bills       *services.BillService
	generator   *services.MonthGenerator
	rateLimiter *rateLimiter

	pageCache *ttlCache[monthPageData]

	stopCacheCleanup chan struct{}
	shutdownOnce     sync.Once
}

// NewServer configures routes and templates, returning a ready-to-run server.
func NewServer(addr string, bills *services.BillService, generator *services.MonthGenerator) *Server {
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:    addr,
			Handler: mux,
		},
		bills:            bills,
		generator:        generator,
		rateLimiter:      newRateLimiter(),
		pageCache:        newTTLCache[monthPageData](time.Minute),
		stopCacheCleanup: make(chan struct{}),
	}

	go s.startCacheCleanup()

	// Parse embedded templates at startup.
	t, err := template.ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		slog.Warn("Failed parsing templates", "error", err)
	}
	s.templates = t

	// Static assets (served from embedded FS)
	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("/static/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Cache-Control", "public, max-age=3600, immutable")
			static.ServeHTTP(w, r)
		}))
	} else {
		slog.Warn("Failed to mount embedded static FS", "error", err)
	}

	mux.HandleFunc("/healthz", handleHealth)
	mux.HandleFunc("/readyz", handleReady)

	mux.HandleFunc("GET /{$}", s.withMiddleware(s.handleIndex))
	mux.HandleFunc("GET /months/{month}", s.withMiddleware(s.handleMonthPage))

	mux.HandleFunc("POST /bills", s.withMiddleware(s.handleCreateBill))
	mux.HandleFunc("POST /bills/{id}/toggle", s.withMiddleware(s.handleToggleBill))
	mux.HandleFunc("POST /bills/{id}/update", s.withMiddleware(s.handleUpdateBill))
	mux.HandleFunc("DELETE /bills/{id}", s.withMiddleware(s.handleDeleteBill))

	mux.HandleFunc("GET /categories", s.withMiddleware(s.handleCategoriesPage))
	mux.HandleFunc("POST /categories", s.withMiddleware(s.handleCreateCategory))
	mux.HandleFunc("POST /categories/{id}/update", s.withMiddleware(s.handleUpdateCategory))
	mux.HandleFunc("DELETE /categories/{id}", s.withMiddleware(s.handleDeleteCategory))

	mux.HandleFunc("GET /templates", s.withMiddleware(s.handleTemplatesPage))
	mux.HandleFunc("POST /templates", s.withMiddleware(s.handleCreateTemplate))
	mux.HandleFunc("POST /templates/{id}/update", s.withMiddleware(s.handleUpdateTemplate))
	mux.HandleFunc("POST /templates/{id}/active", s.withMiddleware(s.handleTemplateActive))
	mux.HandleFunc("DELETE /templates/{id}", s.withMiddleware(s.handleDeleteTemplate))

	return s
}

func (s *Server) startCacheCleanup() {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if cleaned := s.pageCache.CleanExpired(); cleaned > 0 {
				slog.Debug("Cache cleanup completed", "entries_removed", cleaned)
			}
		case <-s.stopCacheCleanup:
			return
		}
	}
}

// invalidatePages drops all cached month pages. A single bill mutation can
// change both its own month and any month it was carried into, so purging
// everything is the only safe invalidation.
func (s *Server) invalidatePages() {
	s.pageCache.Purge()
}

// Shutdown gracefully shuts down the server and cleanup routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		close(s.stopCacheCleanup)
		s.rateLimiter.stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

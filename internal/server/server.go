// Package server provides the HTTP server and handlers.
package server

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"time"

	"github.com/bryan-buckman/pushfeed/internal/database"
	"github.com/bryan-buckman/pushfeed/internal/logger"
	"github.com/bryan-buckman/pushfeed/internal/model"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

//go:embed templates/*.html
var templatesFS embed.FS

//go:embed static/*
var staticFS embed.FS

// Options configures the handlers.
type Options struct {
	Prefix        string // ingest path prefix, e.g. "/subscriber"
	MaxBodyBytes  int64
	Items         model.RangePolicy
	RetentionKeep int
	ReadTimeout   time.Duration
	WriteTimeout  time.Duration
}

// DefaultOptions returns the options used when nothing is configured.
func DefaultOptions() Options {
	return Options{
		Prefix:        "/subscriber",
		MaxBodyBytes:  10 << 20,
		Items:         model.DefaultItemsPolicy,
		RetentionKeep: model.DefaultRetentionKeep,
		ReadTimeout:   30 * time.Second,
		WriteTimeout:  30 * time.Second,
	}
}

// Server is the main HTTP server.
type Server struct {
	db        database.Store
	opts      Options
	router    chi.Router
	templates *template.Template

	now   func() time.Time
	newID func() string
}

// New creates a new server.
func New(db database.Store, opts Options) (*Server, error) {
	s := &Server{
		db:    db,
		opts:  opts,
		now:   time.Now,
		newID: uuid.NewString,
	}
	tmpl, err := template.New("").Funcs(template.FuncMap{
		"timeAgo": s.timeAgo,
	}).ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	s.templates = tmpl
	s.setupRoutes()
	return s, nil
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestLogger(&middleware.DefaultLogFormatter{
		Logger:  logger.StdLog(),
		NoColor: true,
	}))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))

	// Serve static files.
	staticSub, _ := fs.Sub(staticFS, "static")
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(staticSub))))

	// Pages.
	r.Get("/", s.handleView)
	r.Get("/debug", s.handleDebug)

	// API.
	r.Get("/items", s.handleItems)
	r.Get("/cleanup", s.handleCleanup)
	r.Get("/topics.opml", s.handleExportOPML)

	// Push callbacks. Everything after the prefix names the callback.
	r.Get(s.opts.Prefix+"*", s.handleChallenge)
	r.Post(s.opts.Prefix+"*", s.handleIngest)

	s.router = r
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Start serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.opts.ReadTimeout,
		WriteTimeout: s.opts.WriteTimeout,
		ErrorLog:     logger.StdLog(),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("Server starting on %s (store: %s)", addr, s.db.DatabaseType())
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Infof("Server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// --- Page Handlers ---

func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	s.render(w, "subscriber.html", map[string]interface{}{
		"Prefix": s.opts.Prefix,
	})
}

func (s *Server) handleDebug(w http.ResponseWriter, r *http.Request) {
	topics, err := s.db.GetTopics(r.Context())
	if err != nil {
		logger.Warnf("Debug page topics: %v", err)
	}
	s.render(w, "debug.html", map[string]interface{}{
		"Prefix": s.opts.Prefix,
		"Topics": topics,
	})
}

// --- Helpers ---

func (s *Server) render(w http.ResponseWriter, name string, data interface{}) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.templates.ExecuteTemplate(w, name, data); err != nil {
		logger.Errorf("Template error: %v", err)
		http.Error(w, "Render error", http.StatusInternalServerError)
	}
}

func (s *Server) timeAgo(t time.Time) string {
	d := s.now().Sub(t)
	switch {
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}

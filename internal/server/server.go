// Package server provides the DevFlow HTTP API.
package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hyperjump/devflow/internal/config"
	"github.com/hyperjump/devflow/internal/ingest"
	"github.com/hyperjump/devflow/internal/search"
	"github.com/hyperjump/devflow/internal/storage"
	"github.com/hyperjump/devflow/internal/vector"
	"go.uber.org/zap"
)

// WatchService manages watched directories.
type WatchService interface {
	Directories() []string
	AddDirectory(path string, syncExisting bool) error
	RemoveDirectory(path string) error
}

// Server is the HTTP server for the DevFlow API.
type Server struct {
	engine      *search.Engine
	ingest      *ingest.Service
	storage     storage.Storage
	vectorIndex vector.VectorIndex
	cfg         *config.Config
	logger      *zap.Logger

	watch      WatchService
	configPath string
	cfgMu      sync.Mutex

	server *http.Server
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithWatch enables the watch directory endpoints. When configPath is set, changes to the
// watched directories are saved to it.
func WithWatch(w WatchService, configPath string) Option {
	return func(s *Server) {
		s.watch = w
		s.configPath = configPath
	}
}

// NewServer creates a server with the given dependencies.
func NewServer(
	engine *search.Engine,
	svc *ingest.Service,
	store storage.Storage,
	vectorIndex vector.VectorIndex,
	cfg *config.Config,
	opts ...Option,
) *Server {
	s := &Server{
		engine:      engine,
		ingest:      svc,
		storage:     store,
		vectorIndex: vectorIndex,
		cfg:         cfg,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the API router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors)
	r.Use(middleware.Timeout(s.cfg.Server.RequestTimeout))

	r.Get("/", s.handleRoot)
	r.Get("/health", s.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Get("/stats", s.handleStats)
		r.Post("/search", s.handleSearch)
		r.Post("/query", s.handleQuery)

		r.Route("/index", func(r chi.Router) {
			r.Post("/manual", s.handleIndexManual)
			r.Post("/upload", s.handleIndexUpload)
			r.Post("/directory", s.handleIndexDirectory)
			r.Post("/bookmarks", s.handleIndexBookmarks)
			r.Post("/web", s.handleIndexWeb)
		})

		r.Get("/sources", s.handleListSources)
		r.Delete("/sources/{id}", s.handleDeleteSource)

		r.Get("/watch/directories", s.handleWatchDirectoriesList)
		r.Post("/watch/directories", s.handleWatchDirectoriesAdd)
		r.Delete("/watch/directories", s.handleWatchDirectoriesRemove)
	})
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// requestLogger logs one line per request through zap.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		defer func() {
			s.logger.Debug("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())))
		}()
		next.ServeHTTP(ww, r)
	})
}

// cors allows any origin, matching the browser frontend's expectations.
func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

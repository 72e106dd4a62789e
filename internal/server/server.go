package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/michaelbrown/rubybox/internal/catalog"
	"github.com/michaelbrown/rubybox/internal/config"
	"github.com/michaelbrown/rubybox/internal/runner"
	"github.com/michaelbrown/rubybox/internal/storage"
)

// Runner executes code and reports which versions can run.
type Runner interface {
	Execute(ctx context.Context, code, version string) runner.Result
	AvailableVersions(ctx context.Context) (catalog.Snapshot, error)
}

// Server is the HTTP server for the rubybox API.
type Server struct {
	cfg      *config.Config
	runner   Runner
	store    storage.Store
	inflight *Tracker
	log      *zap.Logger
	router   chi.Router
	http     *http.Server
}

// New creates a new Server.
func New(cfg *config.Config, r Runner, store storage.Store, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{
		cfg:      cfg,
		runner:   r,
		store:    store,
		inflight: NewTracker(),
		log:      log,
		router:   chi.NewRouter(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	r := s.router

	r.Use(middleware.RequestID)
	r.Use(accessLog(s.log))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.Server.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
	}))

	r.Get("/healthz", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Use(jsonContentType)

		r.Get("/versions", s.handleVersions)
		r.Post("/execute", s.handleExecute)

		// Workspaces
		r.Get("/workspaces/{ws}/files", s.handleListFiles)
		r.Get("/workspaces/{ws}/files/{name}", s.handleGetFile)
		r.Put("/workspaces/{ws}/files/{name}", s.handlePutFile)
		r.Delete("/workspaces/{ws}/files/{name}", s.handleDeleteFile)
		r.Post("/workspaces/{ws}/files/{name}/execute", s.handleExecuteFile)

		r.Get("/ws", s.handleWebSocket)
	})
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// jsonContentType sets Content-Type to application/json for API routes.
func jsonContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

// accessLog writes one zap entry per request.
func accessLog(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.Info("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	}
}

// Start begins listening on the given port.
func (s *Server) Start(port int) error {
	addr := fmt.Sprintf(":%d", port)
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.announce(context.Background())
	s.log.Info("rubybox server starting", zap.String("url", "http://localhost"+addr))
	return s.http.ListenAndServe()
}

// announce logs how many configured versions have their image present.
func (s *Server) announce(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	snap, err := s.runner.AvailableVersions(ctx)
	if err != nil {
		s.log.Warn("could not probe runtime images", zap.Error(err))
		return
	}
	s.log.Info("runtime images",
		zap.Int("configured", snap.TotalConfigured),
		zap.Int("available", snap.TotalAvailable),
	)
	if snap.TotalAvailable == 0 {
		s.log.Warn("no runtime images found, pull at least one configured image before executing code")
	}
}

// Shutdown cancels in-flight executions, waits for their units to be
// released and then shuts the listener down. Websocket connections are
// hijacked, so http.Server.Shutdown alone would not wait for them.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("shutting down server", zap.Int("inflight", s.inflight.Len()))

	shutdownCtx, cancel := context.WithTimeout(ctx, s.cfg.Server.ShutdownTimeout)
	defer cancel()

	s.inflight.CancelAll()
	if err := s.inflight.Wait(shutdownCtx); err != nil {
		s.log.Warn("executions still running at shutdown", zap.Error(err))
	}

	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(shutdownCtx)
}

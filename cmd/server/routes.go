package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/himanishpuri/AyaScan/pkg/logger"
)

// setupRoutes registers all HTTP routes and middleware
func (s *Server) setupRoutes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(loggingMiddleware)
	r.Use(cors.Handler(corsOptions(s.config.AllowedOrigins)))

	r.Get("/", s.handleRoot)
	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health/metrics", s.handleMetrics)

		r.Get("/results", s.handleListResults)
		r.Post("/results", s.handleAddResult)

		r.Route("/session", func(r chi.Router) {
			r.Get("/", s.handleGetSession)
			r.Post("/query", s.handleSetQuery)
			r.Post("/save", s.handleSaveLatest)
			r.Post("/history", s.handleLoadHistory)
			r.Post("/toggle", s.handleToggle)
		})

		r.Post("/frames", s.handleProcessFrame)
	})

	return r
}

func corsOptions(allowedOrigins []string) cors.Options {
	opts := cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "X-Requested-With"},
		AllowCredentials: true,
		MaxAge:           3600,
	}
	if len(allowedOrigins) == 0 || (len(allowedOrigins) == 1 && allowedOrigins[0] == "*") {
		// Browsers reject a wildcard origin combined with credentials.
		opts.AllowedOrigins = []string{"*"}
		opts.AllowCredentials = false
	}
	return opts
}

// loggingMiddleware logs all HTTP requests
func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		logger.Debugf("%s %s from %s -> %d (%s)", r.Method, r.URL.Path, r.RemoteAddr, ww.Status(), time.Since(start))
	})
}

// Start serves HTTP until ctx is done, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.config.Addr,
		Handler:           s.setupRoutes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.log.Infof("🚀 AyaScan server starting on %s", s.config.Addr)
	s.log.Infof("   Database: %s", redactLocation(s.config.DBPath))
	if s.config.Camera != "" {
		s.log.Infof("   Camera: %s", s.config.Camera)
	}
	s.log.Infof("   CORS Origins: %v", s.config.AllowedOrigins)
	s.log.Infof("Endpoints:")
	s.log.Infof("   GET    /health                  - Health check")
	s.log.Infof("   GET    /api/health/metrics      - Server metrics")
	s.log.Infof("   GET    /api/results?q=          - List or search saved results")
	s.log.Infof("   POST   /api/results             - Save a result")
	s.log.Infof("   GET    /api/session             - Live session state")
	s.log.Infof("   POST   /api/session/query       - Set the session filter")
	s.log.Infof("   POST   /api/session/save        - Save the latest confirmation")
	s.log.Infof("   POST   /api/session/history     - Load saved history into the session")
	s.log.Infof("   POST   /api/session/toggle      - Pause or resume analysis")
	s.log.Infof("   POST   /api/frames              - Analyze an uploaded frame")

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

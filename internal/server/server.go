// Package server provides the HTTP server and routing for the quote
// platform (§6): instruments/quotes query endpoints, download/gap-fill
// triggers, calendar lookups, system status, and the unified SSE stream.
package server

import (
	"context"
	"fmt"
	"mime"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/aristath/quoteflow/internal/backup"
	"github.com/aristath/quoteflow/internal/calendar"
	"github.com/aristath/quoteflow/internal/config"
	"github.com/aristath/quoteflow/internal/events"
	"github.com/aristath/quoteflow/internal/gaps"
	"github.com/aristath/quoteflow/internal/pipeline"
	"github.com/aristath/quoteflow/internal/provider"
	"github.com/aristath/quoteflow/internal/query"
	"github.com/aristath/quoteflow/internal/store"
)

// Config holds everything Server needs to build its routes. Every field
// is a narrow interface or a concrete component from internal/wiring's
// Container, not a direct database handle — mirrors the teacher's
// per-module constructor-injection idiom without the DI container type.
type Config struct {
	Log       zerolog.Logger
	Cfg       *config.Config
	Store     *store.Store
	Query     *query.Facade
	Pipeline  *pipeline.Orchestrator
	Router    *provider.Router
	GapEngine *gaps.Engine
	Calendar  calendar.Source
	Backup    *backup.Service
	Events    *events.Bus
	Port      int
	DevMode   bool
}

// Server is the chi-routed HTTP façade over the query/pipeline/gap/backup
// components (§6).
type Server struct {
	router *chi.Mux
	server *http.Server
	log    zerolog.Logger

	cfg       *config.Config
	store     *store.Store
	query     *query.Facade
	pipeline  *pipeline.Orchestrator
	router    *provider.Router
	gapEngine *gaps.Engine
	cal       calendar.Source
	backup    *backup.Service
	events    *events.Bus

	jobsMu       chan struct{} // 1-buffered: guards against concurrent manual trigger runs
	lastProgress downloadProgress
}

// downloadProgress is the last-known state surfaced by GET /data/download/progress.
type downloadProgress struct {
	Running   bool      `json:"running"`
	StartedAt time.Time `json:"started_at,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// New builds a Server from cfg; call Start to begin serving.
func New(cfg Config) *Server {
	_ = mime.AddExtensionType(".json", "application/json")

	s := &Server{
		router:    chi.NewRouter(),
		log:       cfg.Log.With().Str("component", "server").Logger(),
		cfg:       cfg.Cfg,
		store:     cfg.Store,
		query:     cfg.Query,
		pipeline:  cfg.Pipeline,
		router:    cfg.Router,
		gapEngine: cfg.GapEngine,
		cal:       cfg.Calendar,
		backup:    cfg.Backup,
		events:    cfg.Events,
		jobsMu:    make(chan struct{}, 1),
	}

	s.setupMiddleware(cfg.DevMode)
	s.setupRoutes(cfg)

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

func (s *Server) setupMiddleware(devMode bool) {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(middleware.Timeout(60 * time.Second))
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	if !devMode {
		s.router.Use(middleware.Compress(5))
	}
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}

func (s *Server) setupRoutes(cfg Config) {
	s.router.Get("/health", s.handleHealth)

	eventsHandler := NewEventsStreamHandler(cfg.Events, cfg.Cfg.Data.DataDir, cfg.Log)
	logHandlers := NewLogHandlers(cfg.Log, cfg.Cfg.Data.DataDir)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Get("/events/stream", eventsHandler.ServeHTTP)

		r.Get("/instruments", s.handleListInstruments)
		r.Get("/instruments/{id}", s.handleGetInstrumentByID)
		r.Get("/instruments/symbol/{symbol}", s.handleGetInstrumentBySymbol)

		r.Get("/quotes/daily", s.handleGetDailyQuotes)
		r.Get("/quotes/latest", s.handleGetLatestQuotes)

		r.Post("/data/download/historical", s.handleTriggerHistoricalDownload)
		r.Post("/data/update", s.handleTriggerDailyUpdate)
		r.Get("/data/download/progress", s.handleDownloadProgress)
		r.Post("/data/validate", s.handleValidateData)

		r.Get("/gaps", s.handleListGaps)
		r.Post("/gaps/fill", s.handleFillGaps)
		r.Get("/gaps/report", s.handleGapsReport)

		r.Get("/calendar/trading", s.handleTradingDays)
		r.Get("/calendar/trading/next", s.handleNextTradingDay)
		r.Get("/calendar/trading/previous", s.handlePreviousTradingDay)

		r.Get("/stats", s.handleStats)
		r.Get("/system/status", s.handleSystemStatus)

		r.Route("/logs", func(r chi.Router) {
			r.Get("/list", logHandlers.HandleListLogs)
			r.Get("/", logHandlers.HandleGetLogs)
			r.Get("/errors", logHandlers.HandleGetErrors)
		})
	})
}

// Start begins serving; blocks until the listener returns (normally on
// Shutdown).
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("starting HTTP server")
	err := s.server.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown gracefully stops the server within ctx's deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

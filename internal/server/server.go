package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"bingx-relay/internal/exchange"
	"bingx-relay/internal/metrics"
	"bingx-relay/internal/strategy"
)

// TradeRunner runs the price trigger for one symbol.
type TradeRunner interface {
	Run(ctx context.Context, symbol string) (*strategy.Result, error)
}

type Config struct {
	Port     int
	Log      zerolog.Logger
	Exchange exchange.Exchange
	Trigger  TradeRunner
	Metrics  *metrics.Metrics
	DevMode  bool
}

type Server struct {
	router  *chi.Mux
	server  *http.Server
	log     zerolog.Logger
	ex      exchange.Exchange
	trigger TradeRunner
	metrics *metrics.Metrics
	devMode bool
	port    int
}

func New(cfg Config) *Server {
	s := &Server{
		router:  chi.NewRouter(),
		log:     cfg.Log.With().Str("component", "server").Logger(),
		ex:      cfg.Exchange,
		trigger: cfg.Trigger,
		metrics: cfg.Metrics,
		devMode: cfg.DevMode,
		port:    cfg.Port,
	}

	s.setupMiddleware()
	s.setupRoutes()

	// No write timeout: exchange calls have no deadline of their own.
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(s.recoverMiddleware)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))
}

func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)
	if s.metrics != nil {
		s.router.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}

	s.router.Get("/balance", s.handleBalance)
	s.router.Get("/positions", s.handlePositions)
	s.router.Get("/price/{symbol}", s.handlePrice)
	s.router.Post("/trade/{symbol}", s.handleTrade)

	s.router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		s.writeError(w, r, errNotFound(r))
	})
}

func (s *Server) Start() error {
	s.log.Info().Int("port", s.port).Msg("Starting HTTP server")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}

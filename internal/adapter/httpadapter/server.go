package httpadapter

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/rainfall-forecast-service/internal/domain"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Forecaster answers forecast requests once the registry is ready.
type Forecaster interface {
	Forecast(category, month string, year int) (float64, error)
	ListCategories() []string
}

// Server exposes health, readiness, metrics and the forecast API.
type Server struct {
	httpServer *http.Server
	ready      sharedobs.ReadinessChecker
	logger     *slog.Logger
	forecaster atomic.Pointer[forecasterBox]
	geocoder   domain.Geocoder
	region     string
}

type forecasterBox struct{ Forecaster }

// Option configures a Server.
type Option func(*Server)

// WithGeocoder enables coordinates in the category listing. Names are
// geocoded within region.
func WithGeocoder(g domain.Geocoder, region string) Option {
	return func(s *Server) {
		s.geocoder = g
		s.region = region
	}
}

// NewServer creates an HTTP server with /healthz, /readyz, /metrics and the
// /api/v1 routes. The API answers 503 until SetForecaster is called, and
// /readyz reports ready only once ready passes and a forecaster is set.
func NewServer(addr string, ready sharedobs.ReadinessChecker, logger *slog.Logger, opts ...Option) *Server {
	r := chi.NewRouter()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      r,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		ready:  ready,
		logger: logger,
	}
	for _, opt := range opts {
		opt(s)
	}

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", sharedobs.LivenessHandler())
	r.Get("/readyz", sharedobs.ReadinessHandler(s))
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.requestLogger)
		r.Get("/categories", s.handleCategories)
		r.Get("/forecast", s.handleForecast)
	})

	return s
}

// SetForecaster makes the API available.
func (s *Server) SetForecaster(f Forecaster) {
	s.forecaster.Store(&forecasterBox{f})
}

// CheckReadiness implements sharedobs.ReadinessChecker for /readyz.
func (s *Server) CheckReadiness(ctx context.Context) error {
	if err := s.ready.CheckReadiness(ctx); err != nil {
		return err
	}
	if s.current() == nil {
		return errNotServing
	}
	return nil
}

var errNotServing = errors.New("forecast API is not serving yet")

func (s *Server) current() Forecaster {
	if b := s.forecaster.Load(); b != nil {
		return b.Forecaster
	}
	return nil
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", chimiddleware.GetReqID(r.Context()),
		)
	})
}

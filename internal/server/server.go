// Package server exposes the prediction service over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/hed1ad/vitalguard/internal/config"
	"github.com/hed1ad/vitalguard/internal/version"
	"github.com/hed1ad/vitalguard/pkg/predict"
	"github.com/hed1ad/vitalguard/pkg/vitals"
)

const maxBodyBytes = 1 << 16

// Predictor is the consumer-side view of predict.Service.
type Predictor interface {
	Predict(req predict.Request) (vitals.PredictionResult, error)
	State() predict.State
	Ready() error
}

// Server is the vitalguard HTTP server.
type Server struct {
	httpServer *http.Server
	svc        Predictor
	logger     *zap.Logger
}

// New builds the router and middleware chain for svc.
func New(cfg config.Config, svc Predictor, logger *zap.Logger) *Server {
	s := &Server{
		svc:    svc,
		logger: logger,
	}

	s.httpServer = &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      s.routes(cfg),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Handler returns the root handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func (s *Server) routes(cfg config.Config) http.Handler {
	r := chi.NewRouter()

	// Outermost first.
	r.Use(RequestIDMiddleware)
	r.Use(RecoveryMiddleware(s.logger))
	r.Use(middleware.RealIP)
	r.Use(LoggingMiddleware(s.logger, "/healthz", "/readyz", "/metrics"))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", RequestIDHeader},
		ExposedHeaders: []string{RequestIDHeader},
		MaxAge:         300,
	}))

	r.Get("/", s.handleIndex)
	r.Get("/health", s.handleHealth)
	r.Get("/healthz", s.handleHealthz)
	r.Get("/readyz", s.handleReadyz)
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		if cfg.RateLimit.Enabled {
			r.Use(RateLimitMiddleware(cfg.RateLimit.RPS, cfg.RateLimit.Burst))
		}
		r.Post("/predict", s.handlePredict)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		WriteProblem(w, Problem{
			Type:     ProblemTypeBadRequest,
			Title:    "Not Found",
			Status:   http.StatusNotFound,
			Instance: r.URL.Path,
		})
	})

	return r
}

// Start begins serving HTTP requests.
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("HTTP server error: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	var req predict.Request
	if !s.decode(w, r, &req) {
		return
	}

	res, err := s.svc.Predict(req)
	if err != nil {
		var verr *vitals.ValidationError
		switch {
		case errors.As(err, &verr):
			validationFailuresTotal.WithLabelValues(verr.Field).Inc()
			InvalidField(w, verr.Field, verr.Error(), r.URL.Path)
		case errors.Is(err, predict.ErrNotServing):
			Unavailable(w, "model is not loaded", r.URL.Path)
		default:
			s.logger.Error("prediction failed",
				zap.Error(err),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
			InternalError(w, "prediction failed", r.URL.Path)
		}
		return
	}

	predictionsTotal.WithLabelValues(string(res.Result)).Inc()
	predictionRisk.Observe(float64(res.RiskScore))

	writeJSON(w, http.StatusOK, res)
}

// decode reads a JSON body into dst, writing a problem response and returning false on failure.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	err := json.NewDecoder(r.Body).Decode(dst)
	if err == nil {
		return true
	}

	var typeErr *json.UnmarshalTypeError
	var maxErr *http.MaxBytesError
	switch {
	case errors.As(err, &typeErr) && typeErr.Field != "":
		validationFailuresTotal.WithLabelValues(typeErr.Field).Inc()
		InvalidField(w, typeErr.Field, fmt.Sprintf("invalid %s: must be a %s", typeErr.Field, expectedKind(typeErr.Field)), r.URL.Path)
	case errors.Is(err, io.EOF):
		BadRequest(w, "request body is required", r.URL.Path)
	case errors.As(err, &maxErr):
		BadRequest(w, "request body too large", r.URL.Path)
	default:
		BadRequest(w, "request body is not valid JSON", r.URL.Path)
	}
	return false
}

func expectedKind(field string) string {
	if field == vitals.FieldActivityLevel {
		return "string"
	}
	return "whole number"
}

// HealthResponse is the response for GET /health.
type HealthResponse struct {
	Status      string `json:"status"`
	State       string `json:"state"`
	ModelLoaded bool   `json:"model_loaded"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	st := s.svc.State()
	resp := HealthResponse{
		Status:      "healthy",
		State:       st.String(),
		ModelLoaded: st == predict.StateServing,
	}
	code := http.StatusOK
	if !resp.ModelLoaded {
		resp.Status = "unhealthy"
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, resp)
}

// handleHealthz is a liveness probe; it answers whenever the process is running.
func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

func (s *Server) handleReadyz(w http.ResponseWriter, _ *http.Request) {
	if err := s.svc.Ready(); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"service": "vitalguard",
		"message": "health anomaly detection service is running",
		"build":   version.Info(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

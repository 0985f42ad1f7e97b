package httpapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aretw0/arbor/internal/logging"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Processor is the engine surface the inbound API drives.
type Processor interface {
	Process(ctx context.Context, userID, platform, text string, metadata map[string]string)
}

// InboundRequest is the JSON body of POST /v1/inbound. A platform gateway
// (webhook bridge, bot framework glue) translates its native update into this
// shape and forwards it.
type InboundRequest struct {
	UserID   string            `json:"user_id"`
	Platform string            `json:"platform"`
	Text     string            `json:"text"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Server exposes the inbound message API over HTTP.
type Server struct {
	engine  Processor
	logger  *slog.Logger
	metrics prometheus.Gatherer
}

// Option configures the Server.
type Option func(*Server)

// WithLogger sets a structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics exposes a Prometheus registry at GET /metrics.
func WithMetrics(g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.metrics = g
	}
}

// NewHandler builds the chi router for the inbound API.
func NewHandler(engine Processor, opts ...Option) http.Handler {
	s := &Server{
		engine: engine,
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Post("/v1/inbound", s.handleInbound)
	r.Get("/healthz", s.handleHealth)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics",
			promhttp.HandlerFor(s.metrics, promhttp.HandlerOpts{}))
	}
	return r
}

// handleInbound accepts one user message and processes the turn before
// responding. Turn outcomes are not reported to the gateway: delivery runs
// through the outbound connector, and failures inside the turn resolve to
// the user notice, not an API error.
func (s *Server) handleInbound(w http.ResponseWriter, r *http.Request) {
	var req InboundRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		s.logger.Warn("inbound: invalid request body", "err", err)
		return
	}
	if strings.TrimSpace(req.UserID) == "" || strings.TrimSpace(req.Platform) == "" {
		http.Error(w, "user_id and platform are required", http.StatusBadRequest)
		return
	}

	s.engine.Process(r.Context(), req.UserID, req.Platform, req.Text, req.Metadata)
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

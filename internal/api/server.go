// internal/api/server.go
package api

import (
	"context"
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"capacity-engine/internal/common/clock"
	apperrors "capacity-engine/internal/common/errors"
	"capacity-engine/internal/common/logger"
	"capacity-engine/internal/common/provider"
	"capacity-engine/internal/common/validation"
	"capacity-engine/internal/models"
	calculatecapacity "capacity-engine/internal/workers/capacity/calculate-capacity"
)

type Calculator interface {
	Execute(ctx context.Context, input *calculatecapacity.Input) (*models.CapacityResponse, error)
	DateFor(offset int) string
	Fallback(ctx context.Context, date, zip string, cause error) *models.CapacityResponse
}

type BreakerReporter interface {
	BreakerState() provider.BreakerState
}

type Options struct {
	Calculator Calculator
	Breaker    BreakerReporter // optional
	Clock      clock.Clock
	Logger     logger.Logger
	Version    string
}

// Server is the public capacity boundary plus health and metrics.
type Server struct {
	calc    Calculator
	breaker BreakerReporter
	clock   clock.Clock
	logger  logger.Logger
	version string
	handler http.Handler
}

func NewServer(opts Options) *Server {
	clk := opts.Clock
	if clk == nil {
		clk = clock.NewReal()
	}
	log := opts.Logger
	if log == nil {
		log = logger.NewNoOpLogger()
	}

	s := &Server{
		calc:    opts.Calculator,
		breaker: opts.Breaker,
		clock:   clk,
		logger:  log.WithFields(map[string]interface{}{"component": "api"}),
		version: opts.Version,
	}

	mux := http.NewServeMux()
	mux.Handle("GET /capacity/today", s.instrument("/capacity/today", s.capacity(0)))
	mux.Handle("GET /capacity/tomorrow", s.instrument("/capacity/tomorrow", s.capacity(1)))
	mux.Handle("GET /health", s.instrument("/health", http.HandlerFunc(s.health)))
	mux.Handle("GET /ready", s.instrument("/ready", http.HandlerFunc(s.ready)))
	mux.Handle("GET /metrics", promhttp.Handler())
	s.handler = mux

	return s
}

func (s *Server) Handler() http.Handler {
	return s.handler
}

// capacity serves the decision for today plus offset days. Calculation
// failures are answered with the degraded NEXT_DAY payload, never a 5xx.
func (s *Server) capacity(offset int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		zip := r.URL.Query().Get("zip")
		if zip != "" && !validation.ValidateZip(zip) {
			s.writeError(w, apperrors.NewInvalidRequestError("zip must be a 5 digit ZIP code"))
			return
		}

		date := s.calc.DateFor(offset)
		resp, err := s.calc.Execute(ctx, &calculatecapacity.Input{Date: date, Zip: zip})
		if err != nil {
			if apperrors.HasCode(err, apperrors.ErrCodeInvalidCapacityRequest) {
				s.writeError(w, err)
				return
			}
			if errors.Is(ctx.Err(), context.Canceled) {
				s.logger.Debug("client went away", map[string]interface{}{"date": date})
				return
			}
			resp = s.calc.Fallback(ctx, date, zip, err)
		}

		w.Header().Set("Cache-Control", "public, max-age="+strconv.Itoa(s.maxAge(resp.ExpiresAt)))
		s.writeJSON(w, http.StatusOK, resp)
	}
}

func (s *Server) maxAge(expiresAt time.Time) int {
	secs := math.Ceil(expiresAt.Sub(s.clock.Now()).Seconds())
	if secs < 0 {
		return 0
	}
	return int(secs)
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"version": s.version,
		"time":    s.clock.Now().Format(time.RFC3339),
	})
}

func (s *Server) ready(w http.ResponseWriter, _ *http.Request) {
	state := provider.BreakerClosed
	if s.breaker != nil {
		state = s.breaker.BreakerState()
	}

	status, code := "ready", http.StatusOK
	if state == provider.BreakerOpen {
		status, code = "degraded", http.StatusServiceUnavailable
	}
	s.writeJSON(w, code, map[string]string{
		"status":  status,
		"breaker": state.String(),
		"time":    s.clock.Now().Format(time.RFC3339),
	})
}

type errorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	stdErr := apperrors.Normalize(err)
	var body errorBody
	body.Error.Code = string(stdErr.Code)
	body.Error.Message = stdErr.Message
	if stdErr.Details != "" {
		body.Error.Message = stdErr.Details
	}
	s.writeJSON(w, apperrors.HTTPStatus(stdErr.Code), body)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("failed to write response", map[string]interface{}{"error": err.Error()})
	}
}

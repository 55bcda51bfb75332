// Package server exposes the analysis proxy over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"runtime"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/codeGROOVE-dev/morningglow/pkg/analysis"
)

// DefaultMaxBodyBytes bounds the JSON request body carrying the encoded image.
const DefaultMaxBodyBytes = 10 << 20

// Analyzer is the proxy the server delegates to.
type Analyzer interface {
	Analyze(ctx context.Context, base64Image string) (analysis.Detailed, error)
}

// Options configures a Server.
type Options struct {
	Metrics *Metrics
	// AllowOrigin is sent as Access-Control-Allow-Origin. Empty disables CORS headers.
	AllowOrigin string
	// MaxBodyBytes defaults to DefaultMaxBodyBytes.
	MaxBodyBytes int64
	// RateLimit is the number of analyze requests allowed per client per minute; 0 disables it.
	RateLimit int
}

// Server handles /analyze, /health and /metrics.
type Server struct {
	analyzer    Analyzer
	logger      *slog.Logger
	metrics     *Metrics
	limiter     *rateLimiter
	allowOrigin string
	maxBody     int64
}

// New creates a Server.
func New(analyzer Analyzer, logger *slog.Logger, opts Options) *Server {
	s := &Server{
		analyzer:    analyzer,
		logger:      logger,
		metrics:     opts.Metrics,
		allowOrigin: opts.AllowOrigin,
		maxBody:     opts.MaxBodyBytes,
	}
	if s.metrics == nil {
		s.metrics = NewMetrics()
	}
	if s.maxBody <= 0 {
		s.maxBody = DefaultMaxBodyBytes
	}
	if opts.RateLimit > 0 {
		s.limiter = newRateLimiter(opts.RateLimit, time.Minute)
	}
	return s
}

// Handler returns the routed, wrapped handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /analyze", s.handleAnalyze)
	mux.HandleFunc("POST /api/analyze", s.handleAnalyze)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", s.metrics.Handler())
	return s.wrap(mux)
}

// validationResponse always carries raw, even when the model's object was empty.
type validationResponse struct {
	Raw   map[string]any `json:"raw"`
	Error string         `json:"error"`
	Code  string         `json:"code"`
}

type errorResponse struct {
	Error string         `json:"error"`
	Code  string         `json:"code,omitempty"`
}

func (s *Server) wrap(handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.NewString()
		w.Header().Set("X-Request-ID", requestID)

		defer func() {
			if err := recover(); err != nil {
				const size = 64 << 10
				buf := make([]byte, size)
				buf = buf[:runtime.Stack(buf, false)]

				s.logger.Error("PANIC: Request handler crashed",
					"error", err,
					"path", r.URL.Path,
					"method", r.Method,
					"request_id", requestID,
					"client_ip", clientIP(r),
					"stack", string(buf))
				s.metrics.observeOutcome("failed")
				s.writeJSON(w, requestID, http.StatusInternalServerError, analysis.ServerFallback().Payload())
			}
		}()

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		if s.allowOrigin != "" {
			w.Header().Set("Access-Control-Allow-Origin", s.allowOrigin)
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}
		}

		if strings.HasSuffix(r.URL.Path, "/analyze") {
			w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate, private")
			w.Header().Set("Pragma", "no-cache")
			w.Header().Set("Expires", "0")
		}

		handler.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, w.Header().Get("X-Request-ID"), http.StatusOK, map[string]string{
		"status":  "ok",
		"message": "Server is running",
	})
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	requestID := w.Header().Get("X-Request-ID")
	ip := clientIP(r)

	if s.limiter != nil && !s.limiter.allow(ip) {
		s.logger.Warn("Rate limit exceeded", "request_id", requestID, "client_ip", ip)
		s.metrics.observeOutcome("rate_limited")
		s.writeJSON(w, requestID, http.StatusTooManyRequests, errorResponse{Error: "Rate limit exceeded", Code: "RATE_LIMITED"})
		return
	}

	var req struct {
		Base64Image string `json:"base64Image"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.maxBody)).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			s.logger.Warn("Request body too large", "request_id", requestID, "client_ip", ip, "limit_bytes", tooLarge.Limit)
			s.metrics.observeOutcome("too_large")
			s.writeJSON(w, requestID, http.StatusRequestEntityTooLarge, errorResponse{Error: "request body too large", Code: "TOO_LARGE"})
			return
		case errors.Is(err, io.EOF):
			// An empty body is a missing image.
		default:
			s.logger.Warn("Invalid request body", "request_id", requestID, "client_ip", ip, "error", err)
			s.metrics.observeOutcome("bad_request")
			s.writeJSON(w, requestID, http.StatusBadRequest, errorResponse{Error: "invalid JSON body", Code: "INVALID_BODY"})
			return
		}
	}

	s.logger.Info("Analyze request received",
		"request_id", requestID,
		"client_ip", ip,
		"path", r.URL.Path,
		"image_chars", len(req.Base64Image))

	result, err := s.analyzer.Analyze(r.Context(), req.Base64Image)
	if err != nil {
		s.writeAnalyzeError(w, requestID, err, time.Since(start))
		return
	}

	s.metrics.observeOutcome("ok")
	s.logger.Info("Analyze request completed",
		"request_id", requestID,
		"score", result.Score,
		"confidence", result.Confidence,
		"duration_ms", time.Since(start).Milliseconds())
	s.writeJSON(w, requestID, http.StatusOK, result.Payload())
}

func (s *Server) writeAnalyzeError(w http.ResponseWriter, requestID string, err error, elapsed time.Duration) {
	var verr *analysis.ValidationError
	switch {
	case analysis.IsInputError(err):
		s.logger.Warn("Rejected analyze input", "request_id", requestID, "error", err)
		s.metrics.observeOutcome("bad_request")
		s.writeJSON(w, requestID, http.StatusBadRequest, errorResponse{Error: err.Error(), Code: "INVALID_IMAGE"})
	case errors.As(err, &verr):
		s.logger.Error("Vision model response failed validation",
			"request_id", requestID,
			"field", verr.Field,
			"reason", verr.Reason,
			"duration_ms", elapsed.Milliseconds())
		s.metrics.observeOutcome("invalid")
		raw := verr.Raw
		if raw == nil {
			raw = map[string]any{}
		}
		s.writeJSON(w, requestID, http.StatusBadGateway, validationResponse{Error: verr.Error(), Code: "VALIDATION_FAILED", Raw: raw})
	case errors.Is(err, analysis.ErrMalformedOutput):
		s.logger.Error("Vision model returned malformed output", "request_id", requestID, "duration_ms", elapsed.Milliseconds())
		s.metrics.observeOutcome("malformed")
		s.writeJSON(w, requestID, http.StatusBadGateway, errorResponse{Error: analysis.ErrMalformedOutput.Error(), Code: "MALFORMED_OUTPUT"})
	case errors.Is(err, analysis.ErrUpstreamUnavailable):
		s.logger.Error("Vision model unavailable", "request_id", requestID, "error", err, "duration_ms", elapsed.Milliseconds())
		s.metrics.observeOutcome("upstream_unavailable")
		s.writeJSON(w, requestID, http.StatusBadGateway, errorResponse{Error: analysis.ErrUpstreamUnavailable.Error(), Code: "UPSTREAM_UNAVAILABLE"})
	default:
		s.logger.Error("Analyze failed",
			"request_id", requestID,
			"error", err,
			"duration_ms", elapsed.Milliseconds())
		s.metrics.observeOutcome("failed")
		s.writeJSON(w, requestID, http.StatusInternalServerError, analysis.ServerFallback().Payload())
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, requestID string, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Failed to encode response",
			"request_id", requestID,
			"status", status,
			"error", err)
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/codeGROOVE-dev/morningglow/pkg/analysis"
)

type fakeAnalyzer struct {
	err    error
	result analysis.Detailed
	panics bool
	calls  int
}

func (f *fakeAnalyzer) Analyze(_ context.Context, base64Image string) (analysis.Detailed, error) {
	f.calls++
	if f.panics {
		panic("boom")
	}
	if strings.TrimSpace(base64Image) == "" {
		return analysis.Detailed{}, analysis.ErrMissingImage
	}
	return f.result, f.err
}

func newTestServer(a Analyzer, opts Options) http.Handler {
	return New(a, slog.New(slog.NewTextHandler(io.Discard, nil)), opts).Handler()
}

func post(t *testing.T, h http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("response body %q is not JSON: %v", rec.Body.String(), err)
	}
	return body
}

func TestAnalyzeSuccess(t *testing.T) {
	a := &fakeAnalyzer{result: analysis.Detailed{
		Scored:     analysis.Scored{Score: 83, Feedback: "좋아요"},
		Neatness:   90,
		Corners:    80,
		Pillows:    70,
		Confidence: 0.9,
	}}
	h := newTestServer(a, Options{})

	for _, path := range []string{"/analyze", "/api/analyze"} {
		rec := post(t, h, path, `{"base64Image":"AAAA"}`)
		if rec.Code != http.StatusOK {
			t.Fatalf("%s status = %d, want 200; body %s", path, rec.Code, rec.Body)
		}
		body := decodeBody(t, rec)
		for _, field := range []string{"neatness", "corners", "pillows", "confidence", "score", "feedback"} {
			if _, ok := body[field]; !ok {
				t.Errorf("%s response missing %q: %v", path, field, body)
			}
		}
		if body["score"] != float64(83) {
			t.Errorf("%s score = %v, want 83", path, body["score"])
		}
		if rec.Header().Get("X-Request-ID") == "" {
			t.Errorf("%s missing X-Request-ID", path)
		}
	}
}

func TestAnalyzeStatusMapping(t *testing.T) {
	raw := map[string]any{"score": float64(500)}
	tests := []struct {
		name       string
		body       string
		err        error
		wantStatus int
		wantRaw    bool
		wantScore  bool
	}{
		{"missing image", `{}`, nil, http.StatusBadRequest, false, false},
		{"empty body", ``, nil, http.StatusBadRequest, false, false},
		{"invalid json", `{"base64Image":`, nil, http.StatusBadRequest, false, false},
		{"invalid base64", `{"base64Image":"x"}`, analysis.ErrInvalidImage, http.StatusBadRequest, false, false},
		{"upstream", `{"base64Image":"x"}`, fmt.Errorf("%w: timeout", analysis.ErrUpstreamUnavailable), http.StatusBadGateway, false, false},
		{"malformed", `{"base64Image":"x"}`, analysis.ErrMalformedOutput, http.StatusBadGateway, false, false},
		{"validation", `{"base64Image":"x"}`, &analysis.ValidationError{Raw: raw, Field: "score", Reason: "is outside [0,100]"}, http.StatusBadGateway, true, false},
		{"validation without object", `{"base64Image":"x"}`, &analysis.ValidationError{Field: "neatness", Reason: "is not a number"}, http.StatusBadGateway, true, false},
		{"unexpected", `{"base64Image":"x"}`, errors.New("credentials missing"), http.StatusInternalServerError, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestServer(&fakeAnalyzer{err: tt.err}, Options{})
			rec := post(t, h, "/analyze", tt.body)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d; body %s", rec.Code, tt.wantStatus, rec.Body)
			}
			body := decodeBody(t, rec)
			if _, ok := body["raw"]; ok != tt.wantRaw {
				t.Errorf("raw present = %v, want %v: %v", ok, tt.wantRaw, body)
			}
			if tt.wantScore {
				if body["score"] != float64(analysis.FallbackScore) || body["feedback"] == "" {
					t.Errorf("fallback body = %v", body)
				}
				if _, ok := body["error"]; ok {
					t.Errorf("fallback body carries an error envelope: %v", body)
				}
			} else if _, ok := body["error"]; !ok {
				t.Errorf("body missing error: %v", body)
			}
		})
	}
}

func TestAnalyzeRecoversPanicWithFallback(t *testing.T) {
	h := newTestServer(&fakeAnalyzer{panics: true}, Options{})
	rec := post(t, h, "/analyze", `{"base64Image":"AAAA"}`)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if body := decodeBody(t, rec); body["score"] != float64(analysis.FallbackScore) {
		t.Errorf("body = %v, want fallback result", body)
	}
}

func TestAnalyzeBodyLimit(t *testing.T) {
	a := &fakeAnalyzer{}
	h := newTestServer(a, Options{MaxBodyBytes: 64})
	rec := post(t, h, "/analyze", `{"base64Image":"`+strings.Repeat("A", 128)+`"}`)
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d, want 413", rec.Code)
	}
	if a.calls != 0 {
		t.Errorf("analyzer called %d times for oversized body", a.calls)
	}
}

func TestHealth(t *testing.T) {
	h := newTestServer(&fakeAnalyzer{}, Options{})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", http.NoBody))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["status"] != "ok" || body["message"] == "" {
		t.Errorf("health body = %v", body)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	h := newTestServer(&fakeAnalyzer{}, Options{})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/analyze", http.NoBody))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET /analyze status = %d, want 405", rec.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	a := &fakeAnalyzer{}
	h := newTestServer(a, Options{AllowOrigin: "*"})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/analyze", http.NoBody))
	if rec.Code != http.StatusOK {
		t.Errorf("OPTIONS status = %d, want 200", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Allow-Origin = %q", got)
	}
	if a.calls != 0 {
		t.Error("preflight reached the analyzer")
	}
}

func TestMetricsExposeOutcomes(t *testing.T) {
	m := NewMetrics()
	h := newTestServer(&fakeAnalyzer{err: analysis.ErrMalformedOutput}, Options{Metrics: m})
	post(t, h, "/analyze", `{"base64Image":"x"}`)
	m.ObserveUpstream(time.Second)
	m.ObserveMismatch(analysis.Detailed{})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody))
	out := rec.Body.String()
	for _, want := range []string{
		`morningglow_analyze_requests_total{outcome="malformed"} 1`,
		"morningglow_upstream_duration_seconds_count 1",
		"morningglow_score_mismatch_total 1",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}

func TestRateLimit(t *testing.T) {
	h := newTestServer(&fakeAnalyzer{}, Options{RateLimit: 2})
	for i := range 2 {
		if rec := post(t, h, "/analyze", `{"base64Image":"AAAA"}`); rec.Code != http.StatusOK {
			t.Fatalf("request %d status = %d", i, rec.Code)
		}
	}
	if rec := post(t, h, "/analyze", `{"base64Image":"AAAA"}`); rec.Code != http.StatusTooManyRequests {
		t.Errorf("third request status = %d, want 429", rec.Code)
	}
}

func TestRateLimiterWindowSlides(t *testing.T) {
	rl := newRateLimiter(1, time.Minute)
	now := time.Date(2026, 10, 17, 7, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	if !rl.allow("10.0.0.1") {
		t.Fatal("first request denied")
	}
	if rl.allow("10.0.0.1") {
		t.Error("second request in window allowed")
	}
	if !rl.allow("10.0.0.2") {
		t.Error("other client denied")
	}
	now = now.Add(61 * time.Second)
	if !rl.allow("10.0.0.1") {
		t.Error("request after window denied")
	}
}

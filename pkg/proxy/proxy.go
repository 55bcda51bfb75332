// Package proxy forwards bed photos to a vision model and validates what comes back.
package proxy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown/v2"

	"github.com/codeGROOVE-dev/morningglow/pkg/analysis"
	"github.com/codeGROOVE-dev/morningglow/pkg/gemini"
)

// Vision is the external model. Implementations return the model's raw text and
// wrap transport failures or empty output with analysis.ErrUpstreamUnavailable.
type Vision interface {
	Generate(ctx context.Context, image []byte, mimeType string) (string, error)
}

// Option configures a Service.
type Option func(*Service)

// WithStrictScore rejects responses whose score differs from the weighted breakdown.
func WithStrictScore(strict bool) Option {
	return func(s *Service) {
		s.strictScore = strict
	}
}

// WithMismatchHook is called for every accepted or rejected score/breakdown mismatch.
func WithMismatchHook(fn func(analysis.Detailed)) Option {
	return func(s *Service) {
		s.onMismatch = fn
	}
}

// WithUpstreamHook is called with the duration of every upstream call.
func WithUpstreamHook(fn func(time.Duration)) Option {
	return func(s *Service) {
		s.onUpstream = fn
	}
}

// Service is the analysis proxy. It holds no per-request state.
type Service struct {
	vision      Vision
	logger      *slog.Logger
	onMismatch  func(analysis.Detailed)
	onUpstream  func(time.Duration)
	strictScore bool
}

// New creates a Service.
func New(vision Vision, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{vision: vision, logger: logger}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Analyze scores one image. Exactly one upstream call is made, and none when
// the payload is missing or undecodable.
func (s *Service) Analyze(ctx context.Context, base64Image string) (analysis.Detailed, error) {
	image, mimeType, err := analysis.DecodeImage(base64Image)
	if err != nil {
		return analysis.Detailed{}, err
	}

	start := time.Now()
	text, err := s.vision.Generate(ctx, image, mimeType)
	if s.onUpstream != nil {
		s.onUpstream(time.Since(start))
	}
	if err != nil {
		if errors.Is(err, analysis.ErrUpstreamUnavailable) {
			return analysis.Detailed{}, err
		}
		return analysis.Detailed{}, fmt.Errorf("vision call: %w", err)
	}
	if strings.TrimSpace(text) == "" {
		return analysis.Detailed{}, analysis.ErrUpstreamUnavailable
	}

	raw, err := parseObject(text)
	if err != nil {
		s.logger.Warn("Failed to parse vision model text as JSON", "response_text", text, "error", err)
		return analysis.Detailed{}, analysis.ErrMalformedOutput
	}

	result, err := analysis.Validate(raw)
	if err != nil {
		s.logger.Warn("Vision model response failed validation", "error", err, "raw", raw)
		return analysis.Detailed{}, err
	}
	result.Feedback = s.cleanFeedback(result.Feedback)

	if !result.Consistent() {
		want := analysis.WeightedScore(result.Neatness, result.Corners, result.Pillows)
		s.logger.Warn("Vision model score does not match weighted breakdown",
			"score", result.Score,
			"weighted", want,
			"neatness", result.Neatness,
			"corners", result.Corners,
			"pillows", result.Pillows,
			"strict", s.strictScore)
		if s.onMismatch != nil {
			s.onMismatch(result)
		}
		if s.strictScore {
			return analysis.Detailed{}, &analysis.ValidationError{
				Raw:    raw,
				Field:  "score",
				Reason: fmt.Sprintf("does not equal weighted breakdown %d", want),
			}
		}
	}

	return result, nil
}

var markupTag = regexp.MustCompile(`</?[a-zA-Z][^>]*>`)

// cleanFeedback flattens the model's one-line comment. Models occasionally
// answer with HTML fragments; those are converted to Markdown text.
func (s *Service) cleanFeedback(feedback string) string {
	if markupTag.MatchString(feedback) {
		converted, err := md.ConvertString(feedback)
		if err != nil {
			s.logger.Debug("Failed to convert feedback markup", "error", err)
		} else {
			feedback = converted
		}
	}
	return strings.Join(strings.Fields(feedback), " ")
}

func parseObject(text string) (map[string]any, error) {
	var raw map[string]any
	if err := json.Unmarshal([]byte(text), &raw); err == nil && raw != nil {
		return raw, nil
	}

	jsonText, err := gemini.ExtractJSON(text)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(jsonText), &raw); err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, errors.New("response is not a JSON object")
	}
	return raw, nil
}

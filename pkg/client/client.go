// Package client calls the analysis server from the terminal app.
package client

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/codeGROOVE-dev/retry"

	"github.com/codeGROOVE-dev/morningglow/pkg/analysis"
)

const maxResponseBytes = 1 << 20

// Client talks to a morningglow server.
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	baseURL    string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.httpClient = c }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(cl *Client) { cl.logger = l }
}

// New creates a Client for the server at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 60 * time.Second},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Analyze sends one image to the server. It never fails: any error is logged
// and replaced by analysis.ClientFallback.
func (c *Client) Analyze(ctx context.Context, base64Image string) analysis.Result {
	result, err := c.analyze(ctx, base64Image)
	if err != nil {
		c.logger.Warn("Analysis unavailable, using fallback", "error", err)
		return analysis.ClientFallback()
	}
	return result
}

// AnalyzeFile reads an image file and analyzes it. The data URI media type
// is chosen from the file extension.
func (c *Client) AnalyzeFile(ctx context.Context, path string) analysis.Result {
	image, err := EncodeFile(path)
	if err != nil {
		c.logger.Warn("Could not read image, using fallback", "path", path, "error", err)
		return analysis.ClientFallback()
	}
	return c.Analyze(ctx, image)
}

// EncodeFile reads path and returns it as a data URI, or as bare base64 when
// the extension is not a known image type.
func EncodeFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read image: %w", err)
	}
	if len(data) == 0 {
		return "", fmt.Errorf("read image: %s is empty", path)
	}
	mime := analysis.MIMETypeForFile(path)
	if !strings.HasPrefix(mime, "image/") {
		return base64.StdEncoding.EncodeToString(data), nil
	}
	return analysis.EncodeDataURI(data, mime), nil
}

func (c *Client) analyze(ctx context.Context, base64Image string) (analysis.Result, error) {
	body, err := json.Marshal(map[string]string{"base64Image": base64Image})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/analyze", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("post analyze: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			c.logger.Debug("failed to close response body", "error", err)
		}
	}()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	c.logger.Debug("Analyze response", "status", resp.StatusCode, "bytes", len(data), "duration_ms", time.Since(start).Milliseconds())

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, truncate(string(data), 200))
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if raw == nil {
		return nil, errors.New("decode response: empty object")
	}
	result, err := analysis.Validate(raw)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Health checks the server's liveness endpoint once.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", http.NoBody)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("get health: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			c.logger.Debug("failed to close response body", "error", err)
		}
	}()

	var body struct {
		Status  string `json:"status"`
		Message string `json:"message"`
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health: HTTP %d", resp.StatusCode)
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&body); err != nil {
		return fmt.Errorf("decode health: %w", err)
	}
	if body.Status != "ok" {
		return fmt.Errorf("health: status %q", body.Status)
	}
	return nil
}

// WaitHealthy polls Health with jittered backoff until the server answers or
// attempts run out. It is meant for startup, not for analysis calls.
func (c *Client) WaitHealthy(ctx context.Context, attempts uint) error {
	err := retry.Do(
		func() error { return c.Health(ctx) },
		retry.Context(ctx),
		retry.Attempts(attempts),
		retry.Delay(250*time.Millisecond),
		retry.MaxDelay(5*time.Second),
		retry.DelayType(retry.FullJitterBackoffDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			c.logger.Debug("waiting for server", "attempt", n+1, "url", c.baseURL, "error", err)
		}),
	)
	if err != nil {
		return fmt.Errorf("server not healthy after %d attempts: %w", attempts, err)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

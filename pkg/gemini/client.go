// Package gemini provides a client for Google's Gemini vision models.
package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"google.golang.org/genai"

	"github.com/codeGROOVE-dev/morningglow/pkg/analysis"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "gemini-2.5-flash"

const defaultLocation = "us-central1"

// Client represents a Gemini API client.
type Client struct {
	logger     *slog.Logger
	apiKey     string
	model      string
	gcpProject string
	location   string
}

// NewClient creates a new Gemini API client. Without an API key the client
// uses Vertex AI with Application Default Credentials.
func NewClient(apiKey, model, gcpProject string, logger *slog.Logger) *Client {
	return &Client{
		logger:     logger,
		apiKey:     apiKey,
		model:      model,
		gcpProject: gcpProject,
		location:   defaultLocation,
	}
}

// Model returns the model name requests are sent to.
func (c *Client) Model() string {
	modelName := c.model
	if modelName == "" {
		modelName = DefaultModel
	}
	return strings.TrimPrefix(modelName, "models/")
}

// Generate sends one image and the bed evaluation instruction to the model and
// returns the raw text of the first candidate. Each call builds its own SDK
// client so no state is shared between requests.
func (c *Client) Generate(ctx context.Context, image []byte, mimeType string) (string, error) {
	client, err := c.createClient(ctx)
	if err != nil {
		return "", err
	}

	modelName, contents, genConfig := c.configureRequest(image, mimeType)

	resp, err := client.Models.GenerateContent(ctx, modelName, contents, genConfig)
	if err != nil {
		c.logger.Warn("Gemini API call failed", "model", modelName, "error", err)
		return "", fmt.Errorf("%w: %w", analysis.ErrUpstreamUnavailable, err)
	}

	return c.responseText(resp)
}

// createClient creates and configures the Gemini client.
func (c *Client) createClient(ctx context.Context) (*genai.Client, error) {
	var config *genai.ClientConfig

	if c.apiKey != "" {
		config = &genai.ClientConfig{
			Backend: genai.BackendGeminiAPI,
			APIKey:  c.apiKey,
		}
		c.logger.Debug("Using Gemini API with API key")
	} else {
		projectID := c.projectID()
		config = &genai.ClientConfig{
			Backend:  genai.BackendVertexAI,
			Project:  projectID,
			Location: c.location,
		}
		c.logger.Debug("Using Vertex AI with Application Default Credentials", "project", projectID, "location", c.location)
	}

	client, err := genai.NewClient(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return client, nil
}

// projectID determines the GCP project ID to use.
func (c *Client) projectID() string {
	if c.gcpProject != "" {
		return c.gcpProject
	}
	if projectID := os.Getenv("GCP_PROJECT"); projectID != "" {
		return projectID
	}
	return os.Getenv("GOOGLE_CLOUD_PROJECT")
}

// configureRequest prepares the model, content, and generation configuration.
func (c *Client) configureRequest(image []byte, mimeType string) (string, []*genai.Content, *genai.GenerateContentConfig) {
	modelName := c.Model()
	c.logger.Debug("Using model", "model", modelName, "mime_type", mimeType, "image_bytes", len(image))

	contents := []*genai.Content{
		{
			Role: "user",
			Parts: []*genai.Part{
				{InlineData: &genai.Blob{MIMEType: mimeType, Data: image}},
				{Text: BedPrompt()},
			},
		},
	}

	temperature := float32(0.1)

	genConfig := &genai.GenerateContentConfig{
		Temperature:      &temperature,
		MaxOutputTokens:  512,
		ResponseMIMEType: "application/json",
		ResponseSchema:   ResponseSchema(),
	}

	return modelName, contents, genConfig
}

// ResponseSchema is the structured output contract sent with every request.
func ResponseSchema() *genai.Schema {
	zero, hundred, one := 0.0, 100.0, 1.0
	percent := func(description string) *genai.Schema {
		return &genai.Schema{Type: genai.TypeInteger, Minimum: &zero, Maximum: &hundred, Description: description}
	}
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"neatness": percent("Overall neatness of the made bed, 0-100"),
			"corners":  percent("Tucked corners and sheet edges, 0-100"),
			"pillows":  percent("Pillow alignment and symmetry, 0-100"),
			"confidence": {
				Type:        genai.TypeNumber,
				Minimum:     &zero,
				Maximum:     &one,
				Description: "Confidence in this evaluation, 0.0-1.0",
			},
			"score": percent("round(0.5*neatness + 0.3*corners + 0.2*pillows)"),
			"feedback": {
				Type:        genai.TypeString,
				Description: "One short encouraging sentence in Korean",
			},
		},
		PropertyOrdering: FieldOrder(),
		Required:         FieldOrder(),
	}
}

// FieldOrder lists the six result fields in wire order.
func FieldOrder() []string {
	return []string{"neatness", "corners", "pillows", "confidence", "score", "feedback"}
}

// responseText extracts the text of the first candidate.
func (c *Client) responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", fmt.Errorf("%w: empty response", analysis.ErrUpstreamUnavailable)
	}

	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return "", fmt.Errorf("%w: no content in response", analysis.ErrUpstreamUnavailable)
	}

	var sb strings.Builder
	for _, part := range candidate.Content.Parts {
		if part != nil {
			sb.WriteString(part.Text)
		}
	}
	text := sb.String()
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%w: empty text in response", analysis.ErrUpstreamUnavailable)
	}

	c.logger.Debug("Raw Gemini response", "response_text", text)
	return text, nil
}

// ExtractJSON extracts a JSON object from a response that may contain explanatory text.
func ExtractJSON(text string) (string, error) {
	text = strings.TrimSpace(text)
	if isValidJSON(text) {
		return text, nil
	}

	// Look for JSON code blocks (```json ... ```)
	if start := strings.Index(text, "```json"); start != -1 {
		start += 7
		if end := strings.Index(text[start:], "```"); end != -1 {
			jsonText := strings.TrimSpace(text[start : start+end])
			if isValidJSON(jsonText) {
				return jsonText, nil
			}
		}
	}

	// Look for JSON blocks without language specifier (``` ... ```)
	if start := strings.Index(text, "```"); start != -1 {
		start += 3
		if end := strings.Index(text[start:], "```"); end != -1 {
			jsonText := strings.TrimSpace(text[start : start+end])
			if isValidJSON(jsonText) {
				return jsonText, nil
			}
		}
	}

	if start := strings.Index(text, "{"); start != -1 {
		if end := strings.LastIndex(text, "}"); end != -1 && end > start {
			jsonText := strings.TrimSpace(text[start : end+1])
			if isValidJSON(jsonText) {
				return jsonText, nil
			}
		}
	}

	return "", fmt.Errorf("no valid JSON found in response")
}

// isValidJSON checks if a string is a JSON object by attempting to parse it.
func isValidJSON(s string) bool {
	var js map[string]any
	return json.Unmarshal([]byte(s), &js) == nil && js != nil
}

package analysis

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingImage means the request carried no image payload.
	ErrMissingImage = errors.New("base64Image is required")
	// ErrInvalidImage means the image payload is not valid base64.
	ErrInvalidImage = errors.New("base64Image is not valid base64")
	// ErrUpstreamUnavailable means the vision model failed or returned no text.
	ErrUpstreamUnavailable = errors.New("no text response from vision model")
	// ErrMalformedOutput means the model's text could not be parsed as a JSON object.
	ErrMalformedOutput = errors.New("invalid JSON from vision model")
)

// ValidationError reports a parsed model response whose fields are out of contract.
type ValidationError struct {
	Raw    map[string]any
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("vision model response validation failed: %s %s", e.Field, e.Reason)
}

// IsInputError reports whether err was caused by the caller's payload.
func IsInputError(err error) bool {
	return errors.Is(err, ErrMissingImage) || errors.Is(err, ErrInvalidImage)
}

package analysis

import (
	"encoding/base64"
	"net/http"
	"path/filepath"
	"regexp"
	"strings"
)

// DefaultMIMEType is assumed when neither a data URI prefix nor the bytes say otherwise.
const DefaultMIMEType = "image/jpeg"

var dataURIPrefix = regexp.MustCompile(`^data:(image/\w+);base64,`)

// StripDataURI removes a leading "data:image/<type>;base64," declaration.
// The declared media type is returned when present.
func StripDataURI(s string) (payload, mimeType string) {
	m := dataURIPrefix.FindStringSubmatch(s)
	if m == nil {
		return s, ""
	}
	return s[len(m[0]):], m[1]
}

// DecodeImage strips any media-type prefix and decodes the base64 payload.
func DecodeImage(s string) ([]byte, string, error) {
	if strings.TrimSpace(s) == "" {
		return nil, "", ErrMissingImage
	}

	payload, mimeType := StripDataURI(strings.TrimSpace(s))
	payload = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\r' || r == ' ' || r == '\t' {
			return -1
		}
		return r
	}, payload)
	if payload == "" {
		return nil, "", ErrMissingImage
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		data, err = base64.RawStdEncoding.DecodeString(payload)
		if err != nil {
			return nil, "", ErrInvalidImage
		}
	}

	if mimeType == "" {
		mimeType = DefaultMIMEType
		if sniffed := http.DetectContentType(data); strings.HasPrefix(sniffed, "image/") {
			mimeType = sniffed
		}
	}
	return data, mimeType, nil
}

// EncodeDataURI builds a data URI for an image file's bytes.
func EncodeDataURI(data []byte, mimeType string) string {
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// MIMETypeForFile picks a media type from a file extension.
func MIMETypeForFile(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".webp":
		return "image/webp"
	case ".gif":
		return "image/gif"
	default:
		return "application/octet-stream"
	}
}

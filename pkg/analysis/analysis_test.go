package analysis

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func validRaw() map[string]any {
	return map[string]any{
		"neatness":   float64(90),
		"corners":    float64(80),
		"pillows":    float64(70),
		"confidence": 0.85,
		"score":      float64(83),
		"feedback":   "깔끔해요!",
	}
}

func TestValidateAcceptsWellFormedResponse(t *testing.T) {
	got, err := Validate(validRaw())
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	want := Detailed{
		Scored:     Scored{Score: 83, Feedback: "깔끔해요!"},
		Neatness:   90,
		Corners:    80,
		Pillows:    70,
		Confidence: 0.85,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Validate() mismatch (-want +got):\n%s", diff)
	}
	if !got.Consistent() {
		t.Errorf("Consistent() = false for score %d", got.Score)
	}
}

func TestValidateRejectsOutOfContractFields(t *testing.T) {
	tests := []struct {
		name  string
		field string
		value any
	}{
		{"neatness above range", "neatness", float64(101)},
		{"corners negative", "corners", float64(-1)},
		{"pillows fractional", "pillows", 50.5},
		{"score as string", "score", "90"},
		{"score missing", "score", nil},
		{"confidence above one", "confidence", 1.2},
		{"confidence negative", "confidence", -0.1},
		{"confidence as string", "confidence", "high"},
		{"feedback as number", "feedback", float64(3)},
		{"feedback missing", "feedback", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := validRaw()
			if tt.value == nil {
				delete(raw, tt.field)
			} else {
				raw[tt.field] = tt.value
			}

			_, err := Validate(raw)
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("Validate() error = %v, want *ValidationError", err)
			}
			if verr.Field != tt.field {
				t.Errorf("ValidationError.Field = %q, want %q", verr.Field, tt.field)
			}
			if verr.Raw == nil {
				t.Error("ValidationError.Raw is nil, want the parsed object")
			}
		})
	}
}

func TestValidateAcceptsBoundaries(t *testing.T) {
	raw := validRaw()
	raw["neatness"] = float64(0)
	raw["corners"] = float64(100)
	raw["confidence"] = float64(1)
	raw["feedback"] = ""
	if _, err := Validate(raw); err != nil {
		t.Errorf("Validate() error = %v, want nil", err)
	}
}

func TestWeightedScore(t *testing.T) {
	tests := []struct {
		neatness, corners, pillows int
		want                       int
	}{
		{100, 100, 100, 100},
		{0, 0, 0, 0},
		{90, 80, 70, 83},
		{85, 60, 40, 69},
		{1, 0, 0, 1}, // 0.5 rounds up
	}
	for _, tt := range tests {
		if got := WeightedScore(tt.neatness, tt.corners, tt.pillows); got != tt.want {
			t.Errorf("WeightedScore(%d, %d, %d) = %d, want %d", tt.neatness, tt.corners, tt.pillows, got, tt.want)
		}
	}
}

func TestPayloadResultVariant(t *testing.T) {
	var scored Payload
	if err := json.Unmarshal([]byte(`{"score":50,"feedback":"ok"}`), &scored); err != nil {
		t.Fatal(err)
	}
	if _, ok := AsDetailed(scored.Result()); ok {
		t.Error("payload without breakdown decoded as Detailed")
	}

	var partial Payload
	if err := json.Unmarshal([]byte(`{"score":50,"feedback":"ok","neatness":40}`), &partial); err != nil {
		t.Fatal(err)
	}
	if _, ok := AsDetailed(partial.Result()); ok {
		t.Error("payload with partial breakdown decoded as Detailed")
	}

	var full Payload
	if err := json.Unmarshal([]byte(`{"neatness":90,"corners":80,"pillows":70,"confidence":0.5,"score":83,"feedback":"ok"}`), &full); err != nil {
		t.Fatal(err)
	}
	d, ok := AsDetailed(full.Result())
	if !ok {
		t.Fatal("full payload did not decode as Detailed")
	}
	if d.Pillows != 70 || d.Confidence != 0.5 {
		t.Errorf("Detailed = %+v", d)
	}
	if diff := cmp.Diff(full, d.Payload()); diff != "" {
		t.Errorf("Payload() mismatch (-want +got):\n%s", diff)
	}
}

func TestFallbacks(t *testing.T) {
	for name, r := range map[string]Scored{"server": ServerFallback(), "client": ClientFallback()} {
		if r.Score != FallbackScore {
			t.Errorf("%s fallback score = %d, want %d", name, r.Score, FallbackScore)
		}
		if r.Feedback == "" {
			t.Errorf("%s fallback feedback is empty", name)
		}
	}
}

func TestDecodeImage(t *testing.T) {
	const png1x1 = "iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAYAAAAfFcSJAAAADUlEQVR42mNk+M9QDwADhgGAWjR9awAAAABJRU5ErkJggg=="

	tests := []struct {
		name     string
		in       string
		wantMIME string
		wantErr  error
	}{
		{"bare base64 is sniffed", png1x1, "image/png", nil},
		{"data uri prefix is stripped", "data:image/jpeg;base64," + png1x1, "image/jpeg", nil},
		{"empty", "", "", ErrMissingImage},
		{"whitespace", "   ", "", ErrMissingImage},
		{"prefix only", "data:image/png;base64,", "", ErrMissingImage},
		{"not base64", "this is not an image!", "", ErrInvalidImage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, mimeType, err := DecodeImage(tt.in)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("DecodeImage() error = %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr != nil {
				return
			}
			if len(data) == 0 {
				t.Error("DecodeImage() returned no bytes")
			}
			if mimeType != tt.wantMIME {
				t.Errorf("DecodeImage() mime = %q, want %q", mimeType, tt.wantMIME)
			}
		})
	}
}

func TestStripDataURI(t *testing.T) {
	payload, mimeType := StripDataURI("data:image/webp;base64,AAAA")
	if payload != "AAAA" || mimeType != "image/webp" {
		t.Errorf("StripDataURI() = %q, %q", payload, mimeType)
	}
	payload, mimeType = StripDataURI("AAAA")
	if payload != "AAAA" || mimeType != "" {
		t.Errorf("StripDataURI() = %q, %q", payload, mimeType)
	}
}

func TestIsInputError(t *testing.T) {
	if !IsInputError(ErrMissingImage) || !IsInputError(ErrInvalidImage) {
		t.Error("input errors not classified")
	}
	if IsInputError(ErrUpstreamUnavailable) {
		t.Error("upstream error classified as input error")
	}
}

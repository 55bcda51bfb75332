// Package analysis defines bed analysis results and the rules for accepting them.
package analysis

import "math"

// FallbackScore is the neutral score shown whenever analysis cannot be trusted.
const FallbackScore = 50

const (
	serverFallbackFeedback = "서버 오류로 정확한 분석이 불가합니다. 시도해 주셔서 감사합니다!"
	clientFallbackFeedback = "서버와 연결할 수 없어 정확한 분석이 불가합니다. 나름 정리하신 점은 훌륭해요!"
)

// Result is either a Scored or a Detailed analysis.
type Result interface {
	// Base returns the score and feedback every result carries.
	Base() Scored
	// Payload returns the flat wire representation.
	Payload() Payload
}

// Scored is a result without a breakdown.
type Scored struct {
	Feedback string
	Score    int
}

// Detailed is a result with the per-aspect breakdown reported by the vision model.
type Detailed struct {
	Scored

	Confidence float64
	Neatness   int
	Corners    int
	Pillows    int
}

// Base implements Result.
func (s Scored) Base() Scored { return s }

// Payload implements Result.
func (s Scored) Payload() Payload {
	return Payload{Score: s.Score, Feedback: s.Feedback}
}

// Payload implements Result.
func (d Detailed) Payload() Payload {
	neatness, corners, pillows, confidence := d.Neatness, d.Corners, d.Pillows, d.Confidence
	return Payload{
		Neatness:   &neatness,
		Corners:    &corners,
		Pillows:    &pillows,
		Confidence: &confidence,
		Score:      d.Score,
		Feedback:   d.Feedback,
	}
}

// Consistent reports whether Score equals the weighted breakdown.
func (d Detailed) Consistent() bool {
	return d.Score == WeightedScore(d.Neatness, d.Corners, d.Pillows)
}

// Payload is the flat JSON shape used on the wire and in client storage.
// Field order matches the proxy's documented response body.
type Payload struct {
	Neatness   *int     `json:"neatness,omitempty"`
	Corners    *int     `json:"corners,omitempty"`
	Pillows    *int     `json:"pillows,omitempty"`
	Confidence *float64 `json:"confidence,omitempty"`
	Score      int      `json:"score"`
	Feedback   string   `json:"feedback"`
}

// Result converts the payload into a Detailed result when the whole breakdown
// is present and into a Scored result otherwise.
func (p Payload) Result() Result {
	base := Scored{Score: p.Score, Feedback: p.Feedback}
	if p.Neatness == nil || p.Corners == nil || p.Pillows == nil || p.Confidence == nil {
		return base
	}
	return Detailed{
		Scored:     base,
		Neatness:   *p.Neatness,
		Corners:    *p.Corners,
		Pillows:    *p.Pillows,
		Confidence: *p.Confidence,
	}
}

// AsDetailed returns the breakdown of r if it has one.
func AsDetailed(r Result) (Detailed, bool) {
	d, ok := r.(Detailed)
	return d, ok
}

// WeightedScore is round(0.5*neatness + 0.3*corners + 0.2*pillows).
func WeightedScore(neatness, corners, pillows int) int {
	return int(math.Round(0.5*float64(neatness) + 0.3*float64(corners) + 0.2*float64(pillows)))
}

// ServerFallback is returned by the proxy on unexpected failures.
func ServerFallback() Scored {
	return Scored{Score: FallbackScore, Feedback: serverFallbackFeedback}
}

// ClientFallback is returned by the client when the proxy cannot be reached
// or answers with anything but a valid result.
func ClientFallback() Scored {
	return Scored{Score: FallbackScore, Feedback: clientFallbackFeedback}
}

package analysis

import "math"

// Validate checks every field of a parsed model response independently and
// returns the accepted result. Integers must be whole numbers in [0,100],
// confidence a number in [0,1], and feedback a string.
func Validate(raw map[string]any) (Detailed, error) {
	var d Detailed
	var err error

	if d.Neatness, err = percentField(raw, "neatness"); err != nil {
		return Detailed{}, err
	}
	if d.Corners, err = percentField(raw, "corners"); err != nil {
		return Detailed{}, err
	}
	if d.Pillows, err = percentField(raw, "pillows"); err != nil {
		return Detailed{}, err
	}

	confidence, ok := raw["confidence"].(float64)
	if !ok {
		return Detailed{}, &ValidationError{Raw: raw, Field: "confidence", Reason: "is not a number"}
	}
	if confidence < 0 || confidence > 1 {
		return Detailed{}, &ValidationError{Raw: raw, Field: "confidence", Reason: "is outside [0.0,1.0]"}
	}
	d.Confidence = confidence

	if d.Score, err = percentField(raw, "score"); err != nil {
		return Detailed{}, err
	}

	feedback, ok := raw["feedback"].(string)
	if !ok {
		return Detailed{}, &ValidationError{Raw: raw, Field: "feedback", Reason: "is not a string"}
	}
	d.Feedback = feedback

	return d, nil
}

func percentField(raw map[string]any, name string) (int, error) {
	v, ok := raw[name].(float64)
	if !ok {
		return 0, &ValidationError{Raw: raw, Field: name, Reason: "is not a number"}
	}
	if v != math.Trunc(v) {
		return 0, &ValidationError{Raw: raw, Field: name, Reason: "is not an integer"}
	}
	if v < 0 || v > 100 {
		return 0, &ValidationError{Raw: raw, Field: name, Reason: "is outside [0,100]"}
	}
	return int(v), nil
}

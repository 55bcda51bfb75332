package gemini

// BedPrompt returns the instruction sent alongside the bed photo.
func BedPrompt() string {
	return `You are a precise evaluator for bed neatness. Analyze the photo and return ONLY JSON with the following fields:
neatness: integer 0-100 (overall neatness)
corners: integer 0-100 (tucked corners and sheet edges)
pillows: integer 0-100 (pillow alignment and symmetry)
confidence: number 0.0-1.0 (model's confidence)
score: integer 0-100 (computed as round(0.5*neatness + 0.3*corners + 0.2*pillows))
feedback: string (one short encouraging sentence in Korean)
Ensure numbers are within the specified ranges. Return JSON only.`
}

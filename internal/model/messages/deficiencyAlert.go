package messages

// DeficiencyAlert is emitted by the image-classification collaborator when a
// nutrient deficiency is detected on camera.
type DeficiencyAlert struct {
	Tower      string `json:"tower"`
	Deficiency string `json:"deficiency"`
}

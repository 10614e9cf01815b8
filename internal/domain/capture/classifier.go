package capture

import "context"

// Detection is one region found by the content classifier.
type Detection struct {
	Label string  `json:"class"`
	Score float64 `json:"score"`
	Box   Region  `json:"box"`
}

// Region is a detection bounding box in pixel coordinates.
type Region struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Classifier screens rendered image bytes for explicit content.
type Classifier interface {
	Detect(ctx context.Context, image []byte) ([]Detection, error)
}

// explicitLabels is the set of anatomical-exposure labels that disqualify an
// image. Any detection counts, regardless of score: a low-confidence hit on
// one of these is still a rejection.
var explicitLabels = map[string]struct{}{
	"FEMALE_GENITALIA_EXPOSED": {},
	"MALE_GENITALIA_EXPOSED":   {},
	"FEMALE_BREAST_EXPOSED":    {},
	"ANUS_EXPOSED":             {},
	"BUTTOCKS_EXPOSED":         {},
}

// IsExplicitLabel reports whether the label is in the disqualifying set.
func IsExplicitLabel(label string) bool {
	_, ok := explicitLabels[label]
	return ok
}

// ContainsExplicit reports whether any detection carries a disqualifying label.
func ContainsExplicit(detections []Detection) bool {
	for _, d := range detections {
		if IsExplicitLabel(d.Label) {
			return true
		}
	}
	return false
}

package llm

import "github.com/joseph-ayodele/guideline-extractor/constants"

// LayoutSchema returns the JSON-Schema (draft 2020-12 subset) a layout-analysis answer
// must satisfy after NormalizeZones: an object with all five zone keys as strings.
func LayoutSchema() map[string]any {
	props := make(map[string]any, len(constants.AllZones))
	for _, z := range constants.AllZones {
		props[z] = map[string]any{"type": "string"}
	}
	return map[string]any{
		"type":       "object",
		"properties": props,
		"required":   constants.AllZones,
	}
}

// SegmentationSchema returns the JSON-Schema a core-segmentation answer must satisfy
// after NormalizeSegmentation: {"atom": [...], "total": n}.
func SegmentationSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"atom":  map[string]any{"type": "array"},
			"total": map[string]any{"type": "integer", "minimum": 0},
		},
		"required": []string{"atom", "total"},
	}
}

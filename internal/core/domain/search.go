package domain

type SearchHit struct {
	DocumentID string  `json:"documentId"`
	Filename   string  `json:"filename,omitempty"`
	Relevance  float64 `json:"relevance"`
	Reason     Text    `json:"reason,omitempty"`
}

type SearchResults struct {
	Results []SearchHit `json:"results"`
}

// ClampRelevance keeps a model-reported score inside [0, 1].
func ClampRelevance(v float64) float64 {
	switch {
	case v != v:
		return 0
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

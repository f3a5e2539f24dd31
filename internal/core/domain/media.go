package domain

// Image is one raster attachment for a vision request.
type Image struct {
	Data     []byte
	MimeType string
}

// CADPlaceholder stands in for parsed CAD content until a parser exists.
type CADPlaceholder struct {
	Layers     []string `json:"layers"`
	Dimensions []string `json:"dimensions"`
	Blocks     []string `json:"blocks"`
	Text       []string `json:"text"`
}

type NormalizedDocument struct {
	Images []Image
	CAD    *CADPlaceholder
}

type OCRResult struct {
	Text   string     `json:"text"`
	Blocks []string   `json:"blocks"`
	Tables [][]string `json:"tables"`
	Forms  []OCRField `json:"forms"`
}

type OCRField struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

func EmptyOCRResult() OCRResult {
	return OCRResult{
		Blocks: []string{},
		Tables: [][]string{},
		Forms:  []OCRField{},
	}
}

// VisionRequest is the backend-agnostic multi-part prompt.
type VisionRequest struct {
	SystemPrompt string
	Prompt       string
	Images       []Image
}

// IndexChunk is one embedded slice of a document's analysis text.
type IndexChunk struct {
	DocumentID string
	OwnerID    string
	Index      int
	Text       string
}

// Package ocr defines the backend contract shared by all OCR backends and the
// uniform extraction result they produce. Backends wrap heterogeneous engines
// (native libraries, remote vision models) and reshape their output into this
// schema so the rest of the system never sees engine-specific data.
package ocr

import "context"

// Level of a recognized element. Backends currently emit line-level elements.
const LevelLine = "line"

// Backend is the capability surface consumed by the extraction pipeline.
type Backend interface {
	// Name returns the stable backend identifier.
	Name() string

	// SupportedLanguages returns the sorted union of accepted language
	// tokens: user-facing aliases plus the canonical codes the engine takes.
	SupportedLanguages() []string

	// Initialize eagerly warms the default-language engine.
	Initialize(ctx context.Context) error

	// Shutdown releases all engine handles. The backend stays usable:
	// a later ProcessImage recreates engines on demand.
	Shutdown() error

	// ProcessImage runs OCR on raw image bytes using the given language
	// token (alias or canonical code).
	ProcessImage(ctx context.Context, image []byte, language string) (*ExtractionResult, error)

	// ProcessFile reads the file's bytes and delegates to ProcessImage.
	// I/O errors propagate as-is.
	ProcessFile(ctx context.Context, path string, language string) (*ExtractionResult, error)
}

// Quad is a quadrilateral text region: exactly four (x, y) points in source
// order. Serialized as [[x,y],[x,y],[x,y],[x,y]].
type Quad [4][2]float64

// Geometry positions an element on the source image with integer-rounded
// coordinates.
type Geometry struct {
	Type   string    `json:"type"` // always "quadrilateral"
	Points [4][2]int `json:"points"`
}

// Confidence carries per-element recognition confidence in 0..1.
type Confidence struct {
	Recognition float64 `json:"recognition"`
}

// Element is one recognized text region. Text is never empty.
type Element struct {
	Text       string     `json:"text"`
	Geometry   Geometry   `json:"geometry"`
	Confidence Confidence `json:"confidence"`
	Level      string     `json:"level"`
	PageNumber int        `json:"page_number"`
}

// Metadata summarizes one backend invocation. Boxes, Height and Width are
// present only when the engine exposed them.
type Metadata struct {
	Backend     string  `json:"backend"`
	Language    string  `json:"language"` // canonical code actually used
	Confidence  float64 `json:"confidence"`
	TextRegions int     `json:"text_regions"`
	Boxes       []Quad  `json:"boxes,omitempty"`
	Height      int     `json:"height,omitempty"`
	Width       int     `json:"width,omitempty"`
}

// Table is a table detected in the source document. OCR backends do not
// perform table detection; the field exists so the result shape matches the
// rest of the extraction system.
type Table struct {
	Cells      [][]string `json:"cells"`
	Markdown   string     `json:"markdown"`
	PageNumber int        `json:"page_number"`
}

// ExtractionResult is the uniform output of every backend.
type ExtractionResult struct {
	Content     string    `json:"content"`
	Metadata    Metadata  `json:"metadata"`
	Tables      []Table   `json:"tables"`
	OCRElements []Element `json:"ocr_elements"`
}

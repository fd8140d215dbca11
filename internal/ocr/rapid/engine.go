package rapid

// Engine is one per-language recognition engine instance. The backend treats
// it as an opaque capability: raw image bytes in, a loosely shaped result out.
type Engine interface {
	Invoke(image []byte) (*RawResult, error)
}

// RawResult is the engine's output before normalization. Boxes and Image are
// deliberately untyped: engines report geometry in whatever nesting their
// binding produces, and the backend coerces it at the boundary.
type RawResult struct {
	// Boxes is a sequence of boxes, each a sequence of coordinate pairs.
	Boxes any
	// Texts holds the recognized text per detected region.
	Texts []string
	// Scores holds the recognition confidence per region, in 0..1.
	Scores []float64
	// Image optionally exposes the decoded source image. Dimensions are
	// captured when it implements image.Image or Shape() []int.
	Image any
}

// EngineConfig selects the models an engine loads for one canonical language.
type EngineConfig struct {
	// Language is the canonical recognition language code.
	Language string
	// DetectorMode is "en" for English, "ch" for Chinese, "multi" otherwise.
	DetectorMode string
	// ClassifierMode is fixed to "ch"; RapidOCR ships a single classifier.
	ClassifierMode string
	// ConfigPath optionally points at an engine configuration file.
	ConfigPath string
	// Params carries engine-specific tuning knobs, merged from the backend's
	// base parameters.
	Params map[string]string
}

// Factory constructs an engine for one canonical language. It is the
// capability an engine binding must supply; a backend built without one
// fails with a missing-dependency error.
type Factory func(cfg EngineConfig) (Engine, error)

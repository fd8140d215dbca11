// Package rapid implements the RapidOCR backend. It owns one engine instance
// per canonical language, normalizes the engine's loosely shaped output into
// the uniform extraction result, and translates failures into the shared
// error taxonomy.
package rapid

import (
	"context"
	"image"
	"math"
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/chikingsley/kreuzberg/internal/ocr"
)

const backendName = "rapid-ocr"

// Backend adapts RapidOCR-style engines to the ocr.Backend contract.
// Safe for concurrent use: the engine cache serializes check-then-create so
// at most one engine is constructed per language.
type Backend struct {
	factory         Factory
	configPath      string
	params          map[string]string
	defaultLanguage string
	log             zerolog.Logger

	mu      sync.Mutex
	engines map[string]Engine
}

// Option configures a Backend.
type Option func(*Backend)

// WithLanguage sets the default language warmed by Initialize. Accepts an
// alias or a canonical code; defaults to "en".
func WithLanguage(lang string) Option {
	return func(b *Backend) { b.defaultLanguage = lang }
}

// WithConfigPath points engines at a configuration file.
func WithConfigPath(path string) Option {
	return func(b *Backend) { b.configPath = path }
}

// WithParams sets base engine parameters merged into every engine's config.
func WithParams(params map[string]string) Option {
	return func(b *Backend) {
		b.params = make(map[string]string, len(params))
		for k, v := range params {
			b.params[k] = v
		}
	}
}

// WithLogger sets the backend logger. Defaults to a no-op logger.
func WithLogger(log zerolog.Logger) Option {
	return func(b *Backend) { b.log = log }
}

// New constructs the backend. factory is the engine capability the RapidOCR
// binding supplies; without one the backend cannot operate and construction
// fails immediately, before any language resolution.
func New(factory Factory, opts ...Option) (*Backend, error) {
	if factory == nil {
		return nil, &ocr.MissingDependencyError{
			Backend:    backendName,
			Dependency: "a RapidOCR engine factory",
		}
	}
	b := &Backend{
		factory:         factory,
		defaultLanguage: "en",
		log:             zerolog.Nop(),
		engines:         make(map[string]Engine),
	}
	for _, opt := range opts {
		opt(b)
	}
	normalized, err := normalizeLanguage(b.defaultLanguage)
	if err != nil {
		return nil, err
	}
	b.defaultLanguage = normalized
	return b, nil
}

// Name returns the backend identifier.
func (b *Backend) Name() string { return backendName }

// SupportedLanguages returns the sorted union of aliases and canonical codes.
func (b *Backend) SupportedLanguages() []string { return supportedLanguages() }

// Initialize eagerly constructs the default-language engine.
func (b *Backend) Initialize(ctx context.Context) error {
	_, err := b.engine(b.defaultLanguage)
	return err
}

// Shutdown releases every cached engine. Engines implementing Close are
// closed; close errors are logged, not returned, since the cache is emptied
// regardless.
func (b *Backend) Shutdown() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for lang, e := range b.engines {
		if closer, ok := e.(interface{ Close() error }); ok {
			if err := closer.Close(); err != nil {
				b.log.Warn().Err(err).Str("language", lang).Msg("engine close failed")
			}
		}
	}
	b.engines = make(map[string]Engine)
	return nil
}

// ProcessImage runs OCR on raw image bytes for the given language token.
func (b *Backend) ProcessImage(ctx context.Context, img []byte, language string) (*ocr.ExtractionResult, error) {
	normalized, err := normalizeLanguage(language)
	if err != nil {
		return nil, err
	}
	engine, err := b.engine(normalized)
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	raw, err := engine.Invoke(img)
	if err != nil {
		return nil, &ocr.ProcessingError{Backend: backendName, Err: err}
	}
	if raw == nil {
		raw = &RawResult{}
	}
	return b.assemble(raw, normalized), nil
}

// ProcessFile reads the file and delegates to ProcessImage. Read errors
// propagate untranslated.
func (b *Backend) ProcessFile(ctx context.Context, path string, language string) (*ocr.ExtractionResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return b.ProcessImage(ctx, data, language)
}

// engine returns the cached engine for a canonical language, constructing it
// on first use. A failed construction leaves no cache entry, so the next call
// retries instead of replaying the failure.
func (b *Backend) engine(language string) (Engine, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if e, ok := b.engines[language]; ok {
		return e, nil
	}

	detector := "multi"
	switch language {
	case "en":
		detector = "en"
	case "ch":
		detector = "ch"
	}
	params := make(map[string]string, len(b.params))
	for k, v := range b.params {
		params[k] = v
	}
	cfg := EngineConfig{
		Language:       language,
		DetectorMode:   detector,
		ClassifierMode: "ch",
		ConfigPath:     b.configPath,
		Params:         params,
	}

	e, err := b.factory(cfg)
	if err != nil {
		return nil, &ocr.EngineInitError{Backend: backendName, Language: language, Err: err}
	}
	b.engines[language] = e
	b.log.Info().Str("language", language).Msg("initialized rapid-ocr engine")
	return e, nil
}

// assemble reshapes one raw engine result into the uniform schema.
func (b *Backend) assemble(raw *RawResult, language string) *ocr.ExtractionResult {
	quads := normalizeBoxes(raw.Boxes)
	elements := buildElements(quads, raw.Texts, raw.Scores)

	var parts []string
	for _, txt := range raw.Texts {
		if trimmed := strings.TrimSpace(txt); trimmed != "" {
			parts = append(parts, trimmed)
		}
	}

	var confidence float64
	if len(raw.Scores) > 0 {
		var sum float64
		for _, s := range raw.Scores {
			sum += s
		}
		confidence = sum / float64(len(raw.Scores))
	}

	meta := ocr.Metadata{
		Backend:     backendName,
		Language:    language,
		Confidence:  confidence,
		TextRegions: max(len(raw.Texts), len(quads)),
		Boxes:       quads,
	}
	if h, w, ok := imageDims(raw.Image); ok {
		meta.Height, meta.Width = h, w
	}

	return &ocr.ExtractionResult{
		Content:     strings.Join(parts, "\n"),
		Metadata:    meta,
		Tables:      []ocr.Table{},
		OCRElements: elements,
	}
}

// buildElements pairs quads with texts and scores positionally. Regions with
// blank text are excluded entirely.
func buildElements(quads []ocr.Quad, texts []string, scores []float64) []ocr.Element {
	elements := make([]ocr.Element, 0, len(quads))
	for i, quad := range quads {
		var text string
		if i < len(texts) {
			text = strings.TrimSpace(texts[i])
		}
		if text == "" {
			continue
		}
		var recognition float64
		if i < len(scores) {
			recognition = scores[i]
		}

		var points [4][2]int
		for j, p := range quad {
			points[j] = [2]int{int(math.Round(p[0])), int(math.Round(p[1]))}
		}

		elements = append(elements, ocr.Element{
			Text:       text,
			Geometry:   ocr.Geometry{Type: "quadrilateral", Points: points},
			Confidence: ocr.Confidence{Recognition: recognition},
			Level:      ocr.LevelLine,
			PageNumber: 1,
		})
	}
	return elements
}

// imageDims extracts height and width from whatever the engine exposed as
// its source image.
func imageDims(img any) (height, width int, ok bool) {
	switch v := img.(type) {
	case nil:
		return 0, 0, false
	case interface{ Shape() []int }:
		if shape := v.Shape(); len(shape) >= 2 {
			return shape[0], shape[1], true
		}
		return 0, 0, false
	case image.Image:
		bounds := v.Bounds()
		return bounds.Dy(), bounds.Dx(), true
	default:
		return 0, 0, false
	}
}

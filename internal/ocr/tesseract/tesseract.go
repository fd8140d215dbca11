// Package tesseract implements the Tesseract OCR backend over gosseract.
// One client is kept per resolved language; clients are not safe for
// concurrent use, so recognition is serialized across the backend.
package tesseract

import (
	"bytes"
	"context"
	"image"
	"os"
	"sort"
	"strings"
	"sync"

	_ "image/jpeg"
	_ "image/png"

	"github.com/otiai10/gosseract/v2"
	"github.com/rs/zerolog"

	"github.com/chikingsley/kreuzberg/internal/ocr"
)

const backendName = "tesseract"

// languageAliases maps ISO 639-1 tokens to the traineddata codes Tesseract
// loads.
var languageAliases = map[string]string{
	"en": "eng",
	"de": "deu",
	"fr": "fra",
	"es": "spa",
	"it": "ita",
	"pt": "por",
	"nl": "nld",
	"pl": "pol",
	"ru": "rus",
	"uk": "ukr",
	"ar": "ara",
	"hi": "hin",
	"ja": "jpn",
	"ko": "kor",
	"zh": "chi_sim",
	"th": "tha",
	"el": "ell",
	"tr": "tur",
	"vi": "vie",
	"id": "ind",
}

var canonicalLanguages = map[string]struct{}{
	"eng":     {},
	"deu":     {},
	"fra":     {},
	"spa":     {},
	"ita":     {},
	"por":     {},
	"nld":     {},
	"pol":     {},
	"rus":     {},
	"ukr":     {},
	"ara":     {},
	"hin":     {},
	"jpn":     {},
	"kor":     {},
	"chi_sim": {},
	"chi_tra": {},
	"tha":     {},
	"ell":     {},
	"tur":     {},
	"vie":     {},
	"ind":     {},
}

// client is the slice of the gosseract API the backend uses, extracted so
// tests can substitute a fake.
type client interface {
	SetLanguage(langs ...string) error
	SetImageFromBytes(data []byte) error
	Text() (string, error)
	GetBoundingBoxes(level gosseract.PageIteratorLevel) ([]gosseract.BoundingBox, error)
	SetVariable(name gosseract.SettableVariable, value string) error
	Close() error
}

// Backend runs OCR through locally installed Tesseract.
type Backend struct {
	newClient       func() client
	defaultLanguage string
	variables       map[string]string
	log             zerolog.Logger

	mu      sync.Mutex
	clients map[string]client
}

// Option configures a Backend.
type Option func(*Backend)

// WithLanguage sets the default language warmed by Initialize.
func WithLanguage(lang string) Option {
	return func(b *Backend) { b.defaultLanguage = lang }
}

// WithVariables sets Tesseract variables (e.g. tessedit_char_whitelist)
// applied to every client.
func WithVariables(vars map[string]string) Option {
	return func(b *Backend) {
		b.variables = make(map[string]string, len(vars))
		for k, v := range vars {
			b.variables[k] = v
		}
	}
}

// WithLogger sets the backend logger.
func WithLogger(log zerolog.Logger) Option {
	return func(b *Backend) { b.log = log }
}

// New constructs the backend.
func New(opts ...Option) (*Backend, error) {
	b := &Backend{
		newClient:       func() client { return gosseract.NewClient() },
		defaultLanguage: "eng",
		log:             zerolog.Nop(),
		clients:         make(map[string]client),
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

// SupportedLanguages returns the sorted union of aliases and traineddata
// codes.
func (b *Backend) SupportedLanguages() []string { return supportedLanguages() }

func supportedLanguages() []string {
	set := make(map[string]struct{}, len(languageAliases)+len(canonicalLanguages))
	for alias := range languageAliases {
		set[alias] = struct{}{}
	}
	for code := range canonicalLanguages {
		set[code] = struct{}{}
	}
	langs := make([]string, 0, len(set))
	for lang := range set {
		langs = append(langs, lang)
	}
	sort.Strings(langs)
	return langs
}

// Initialize eagerly constructs the default-language client.
func (b *Backend) Initialize(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, err := b.clientLocked(b.defaultLanguage)
	return err
}

// Shutdown closes every cached client. Subsequent calls recreate clients on
// demand.
func (b *Backend) Shutdown() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for lang, c := range b.clients {
		if err := c.Close(); err != nil {
			b.log.Warn().Err(err).Str("language", lang).Msg("tesseract client close failed")
		}
	}
	b.clients = make(map[string]client)
	return nil
}

// ProcessImage runs OCR on raw image bytes for the given language token.
func (b *Backend) ProcessImage(ctx context.Context, img []byte, language string) (*ocr.ExtractionResult, error) {
	normalized, err := normalizeLanguage(language)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	c, err := b.clientLocked(normalized)
	if err != nil {
		return nil, err
	}

	if err := c.SetImageFromBytes(img); err != nil {
		return nil, &ocr.ProcessingError{Backend: backendName, Err: err}
	}
	text, err := c.Text()
	if err != nil {
		return nil, &ocr.ProcessingError{Backend: backendName, Err: err}
	}

	lines, err := c.GetBoundingBoxes(gosseract.RIL_TEXTLINE)
	if err != nil {
		// degrade to plain text when layout iteration fails
		b.log.Warn().Err(err).Msg("bounding box extraction failed")
		lines = nil
	}

	return b.assemble(img, normalized, text, lines), nil
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

// clientLocked returns the cached client for a language, constructing and
// configuring it on first use. Callers hold b.mu. A client that fails
// configuration is closed and not cached, so the next call retries.
func (b *Backend) clientLocked(language string) (client, error) {
	if c, ok := b.clients[language]; ok {
		return c, nil
	}
	c := b.newClient()
	if err := c.SetLanguage(language); err != nil {
		_ = c.Close()
		return nil, &ocr.EngineInitError{Backend: backendName, Language: language, Err: err}
	}
	for name, value := range b.variables {
		if err := c.SetVariable(gosseract.SettableVariable(name), value); err != nil {
			_ = c.Close()
			return nil, &ocr.EngineInitError{Backend: backendName, Language: language, Err: err}
		}
	}
	b.clients[language] = c
	b.log.Info().Str("language", language).Msg("initialized tesseract client")
	return c, nil
}

// assemble reshapes Tesseract line output into the uniform schema.
func (b *Backend) assemble(img []byte, language, text string, lines []gosseract.BoundingBox) *ocr.ExtractionResult {
	var (
		quads    []ocr.Quad
		elements []ocr.Element
		sum      float64
		scored   int
	)
	for _, line := range lines {
		quad := rectQuad(line.Box)
		quads = append(quads, quad)

		trimmed := strings.TrimSpace(line.Word)
		if trimmed == "" {
			continue
		}
		recognition := line.Confidence / 100.0
		sum += recognition
		scored++

		var points [4][2]int
		for i, p := range quad {
			points[i] = [2]int{int(p[0]), int(p[1])}
		}
		elements = append(elements, ocr.Element{
			Text:       trimmed,
			Geometry:   ocr.Geometry{Type: "quadrilateral", Points: points},
			Confidence: ocr.Confidence{Recognition: recognition},
			Level:      ocr.LevelLine,
			PageNumber: 1,
		})
	}

	var confidence float64
	if scored > 0 {
		confidence = sum / float64(scored)
	}

	meta := ocr.Metadata{
		Backend:     backendName,
		Language:    language,
		Confidence:  confidence,
		TextRegions: max(len(lines), len(elements)),
		Boxes:       quads,
	}
	if cfg, _, err := image.DecodeConfig(bytes.NewReader(img)); err == nil {
		meta.Height, meta.Width = cfg.Height, cfg.Width
	}

	return &ocr.ExtractionResult{
		Content:     strings.TrimSpace(text),
		Metadata:    meta,
		Tables:      []ocr.Table{},
		OCRElements: elements,
	}
}

// rectQuad converts an axis-aligned rectangle to the four-corner form shared
// with detection-based backends, clockwise from the top-left.
func rectQuad(r image.Rectangle) ocr.Quad {
	return ocr.Quad{
		{float64(r.Min.X), float64(r.Min.Y)},
		{float64(r.Max.X), float64(r.Min.Y)},
		{float64(r.Max.X), float64(r.Max.Y)},
		{float64(r.Min.X), float64(r.Max.Y)},
	}
}

// normalizeLanguage resolves a user token to a traineddata code.
func normalizeLanguage(token string) (string, error) {
	lowered := strings.ToLower(token)
	normalized, ok := languageAliases[lowered]
	if !ok {
		normalized = lowered
	}
	if _, ok := canonicalLanguages[normalized]; !ok {
		return "", &ocr.ValidationError{
			Backend:            backendName,
			Language:           token,
			NormalizedLanguage: normalized,
			SupportedLanguages: supportedLanguages(),
		}
	}
	return normalized, nil
}

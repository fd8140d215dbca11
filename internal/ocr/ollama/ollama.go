// Package ollama implements an OCR backend over Ollama's chat API. Any
// vision model that accepts image input works (glm-ocr, llava, moondream,
// qwen2.5vl). The backend returns plain recognized text: remote vision
// models expose no detection geometry or per-line confidence.
package ollama

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/chikingsley/kreuzberg/internal/ocr"
)

const (
	backendName     = "ollama"
	defaultEndpoint = "http://localhost:11434"
	defaultModel    = "glm-ocr"
	defaultPrompt   = "Extract all text from this image. Return only the extracted text, nothing else."
)

// Vision models are effectively language-agnostic; this is the advertised
// subset, and any token is accepted at processing time.
var advertisedLanguages = []string{
	"ara", "chi", "deu", "eng", "fra", "hin", "ita", "jpn", "kor", "por", "rus", "spa",
}

// Backend sends images to Ollama for recognition.
type Backend struct {
	endpoint   string
	model      string
	prompt     string
	client     *http.Client
	limiter    *rate.Limiter
	maxRetries int
	log        zerolog.Logger
}

// Option configures a Backend.
type Option func(*Backend)

// WithEndpoint overrides the Ollama API endpoint.
func WithEndpoint(url string) Option {
	return func(b *Backend) { b.endpoint = url }
}

// WithModel sets the vision model name.
func WithModel(model string) Option {
	return func(b *Backend) { b.model = model }
}

// WithPrompt sets the OCR prompt sent with each image.
func WithPrompt(prompt string) Option {
	return func(b *Backend) { b.prompt = prompt }
}

// WithRateLimit bounds outgoing requests per second.
func WithRateLimit(rps, burst int) Option {
	return func(b *Backend) {
		if rps > 0 && burst > 0 {
			b.limiter = rate.NewLimiter(rate.Limit(rps), burst)
		}
	}
}

// WithMaxRetries caps retry attempts for transient failures.
func WithMaxRetries(n int) Option {
	return func(b *Backend) {
		if n > 0 {
			b.maxRetries = n
		}
	}
}

// WithLogger sets the backend logger.
func WithLogger(log zerolog.Logger) Option {
	return func(b *Backend) { b.log = log }
}

// New constructs the backend. OLLAMA_HOST and OLLAMA_MODEL environment
// variables override the defaults; options override both.
func New(opts ...Option) *Backend {
	b := &Backend{
		endpoint:   defaultEndpoint,
		model:      defaultModel,
		prompt:     defaultPrompt,
		client:     &http.Client{Timeout: 60 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(2), 2),
		maxRetries: 3,
		log:        zerolog.Nop(),
	}
	if host := os.Getenv("OLLAMA_HOST"); host != "" {
		b.endpoint = host
	}
	if model := os.Getenv("OLLAMA_MODEL"); model != "" {
		b.model = model
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Name returns the backend identifier.
func (b *Backend) Name() string { return backendName }

// SupportedLanguages returns the advertised language list.
func (b *Backend) SupportedLanguages() []string {
	langs := append([]string(nil), advertisedLanguages...)
	sort.Strings(langs)
	return langs
}

// Initialize is a no-op: there is no per-language engine to warm and the
// remote endpoint is only reachable per-request.
func (b *Backend) Initialize(ctx context.Context) error { return nil }

// Shutdown drops idle connections.
func (b *Backend) Shutdown() error {
	b.client.CloseIdleConnections()
	return nil
}

// ProcessImage sends the image to Ollama and wraps the recognized text in
// the uniform schema. The language token is advisory: vision models read any
// script, so no validation is performed.
func (b *Backend) ProcessImage(ctx context.Context, img []byte, language string) (*ocr.ExtractionResult, error) {
	content, err := b.chat(ctx, img)
	if err != nil {
		return nil, &ocr.ProcessingError{Backend: backendName, Err: err}
	}
	if content == "" {
		b.log.Warn().Str("model", b.model).Str("endpoint", b.endpoint).Msg("ollama returned empty content")
	}

	lang := strings.ToLower(strings.TrimSpace(language))
	if lang == "" {
		lang = "eng"
	}
	return &ocr.ExtractionResult{
		Content: content,
		Metadata: ocr.Metadata{
			Backend:     backendName,
			Language:    lang,
			Confidence:  0,
			TextRegions: 0,
		},
		Tables:      []ocr.Table{},
		OCRElements: []ocr.Element{},
	}, nil
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

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
}

type chatMessage struct {
	Role    string   `json:"role"`
	Content string   `json:"content"`
	Images  []string `json:"images"`
}

type chatResponse struct {
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
}

// chat posts one image to /api/chat with bounded retries for transport
// errors and 429s.
func (b *Backend) chat(ctx context.Context, img []byte) (string, error) {
	if err := b.limiter.Wait(ctx); err != nil {
		return "", err
	}

	payload, err := json.Marshal(chatRequest{
		Model: b.model,
		Messages: []chatMessage{{
			Role:    "user",
			Content: b.prompt,
			Images:  []string{base64.StdEncoding.EncodeToString(img)},
		}},
	})
	if err != nil {
		return "", err
	}
	url := strings.TrimRight(b.endpoint, "/") + "/api/chat"

	var lastErr error
	start := time.Now()
	for attempt := 0; attempt <= b.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(time.Duration(200*(1<<uint(attempt-1))) * time.Millisecond):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
		if err != nil {
			return "", err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := b.client.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		raw, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			var out chatResponse
			if err := json.Unmarshal(raw, &out); err != nil {
				return "", fmt.Errorf("parse ollama response: %w", err)
			}
			content := strings.TrimSpace(out.Message.Content)
			b.log.Debug().
				Int("latency_ms", int(time.Since(start)/time.Millisecond)).
				Int("chars", len(content)).
				Msg("ollama_ocr_ok")
			return content, nil
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			b.log.Warn().Int("status", resp.StatusCode).Msg("ollama_429_retry")
			lastErr = errors.New("ollama 429")
			continue
		}

		lastErr = fmt.Errorf("ollama request to %s failed: http %s", url, resp.Status)
		break
	}
	return "", lastErr
}

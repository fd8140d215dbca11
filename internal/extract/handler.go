package extract

import (
	"errors"
	"io"

	"github.com/gofiber/fiber/v2"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"github.com/chikingsley/kreuzberg/internal/cache"
	"github.com/chikingsley/kreuzberg/internal/config"
	"github.com/chikingsley/kreuzberg/internal/middleware"
	"github.com/chikingsley/kreuzberg/internal/ocr"
)

type Handler struct {
	cfg     *config.Config
	backend ocr.Backend
	svc     *Service
	store   *Store
}

func NewHandler(cfg *config.Config, backend ocr.Backend, db *sqlx.DB, rdb *redis.Client) *Handler {
	var results resultCache
	if rdb != nil {
		results = cache.NewResults(rdb, cfg.OCRCacheTTL)
	}
	svc := NewService(
		backend, results, db,
		cfg.OCRImgMaxW, cfg.OCRImgQuality, cfg.OCRImgGrayscale,
		cfg.OCRTimeout, cfg.OCRMaxParallel,
	)
	h := &Handler{cfg: cfg, backend: backend, svc: svc}
	if db != nil {
		h.store = &Store{db: db}
	}
	return h
}

// Extract handles POST /api/v1/extract: one or more "image" files plus an
// optional "language" form field.
func (h *Handler) Extract(c *fiber.Ctx) error {
	rid, _ := c.Locals(middleware.ReqIDKey).(string)

	form, err := c.MultipartForm()
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid multipart form"})
	}
	files := form.File["image"]
	if len(files) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "image required"})
	}

	language := c.FormValue("language", h.cfg.OCRLang)

	items := make([]Item, 0, len(files))
	for _, fh := range files {
		f, err := fh.Open()
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "cannot open upload"})
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "cannot read upload"})
		}
		items = append(items, Item{Filename: fh.Filename, Data: data})
	}

	results, err := h.svc.ProcessUpload(c.Context(), rid, items, language)
	if err != nil {
		return renderError(c, err)
	}

	return c.JSON(fiber.Map{
		"request_id": rid,
		"results":    results,
	})
}

// Languages handles GET /api/v1/languages.
func (h *Handler) Languages(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"backend":   h.backend.Name(),
		"languages": h.backend.SupportedLanguages(),
	})
}

// History handles GET /api/v1/extractions.
func (h *Handler) History(c *fiber.Ctx) error {
	if h.store == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "history disabled"})
	}
	rows, err := h.store.Recent(c.QueryInt("limit", 20))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "db error"})
	}
	return c.JSON(fiber.Map{"extractions": rows})
}

// renderError maps the OCR error taxonomy onto HTTP statuses.
func renderError(c *fiber.Ctx, err error) error {
	var validation *ocr.ValidationError
	if errors.As(err, &validation) {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"error":               "unsupported language",
			"language":            validation.Language,
			"normalized_language": validation.NormalizedLanguage,
			"supported_languages": validation.SupportedLanguages,
		})
	}
	var missing *ocr.MissingDependencyError
	if errors.As(err, &missing) {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": missing.Error()})
	}
	var initErr *ocr.EngineInitError
	if errors.As(err, &initErr) {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error":    "engine initialization failed",
			"language": initErr.Language,
		})
	}
	var processing *ocr.ProcessingError
	if errors.As(err, &processing) {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "ocr processing failed"})
	}
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "extraction failed"})
}

package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"github.com/chikingsley/kreuzberg/internal/cache"
	"github.com/chikingsley/kreuzberg/internal/config"
	"github.com/chikingsley/kreuzberg/internal/db"
	"github.com/chikingsley/kreuzberg/internal/extract"
	"github.com/chikingsley/kreuzberg/internal/middleware"
	"github.com/chikingsley/kreuzberg/internal/ocr"
	"github.com/chikingsley/kreuzberg/internal/ocr/ollama"
	"github.com/chikingsley/kreuzberg/internal/ocr/rapid"
	"github.com/chikingsley/kreuzberg/internal/ocr/tesseract"
	"github.com/chikingsley/kreuzberg/internal/telemetry"
)

func main() {
	doMigrate := flag.Bool("migrate", false, "run migrations and exit")
	flag.Parse()

	cfg := config.Load()

	tlog := telemetry.Init(telemetry.FromEnv(config.GetEnv))
	tlog.Info().Str("port", cfg.AppPort).Str("backend", cfg.OCRBackend).Msg("booting ocr-api")

	var sqlxDB *sqlx.DB
	if cfg.DBDSN != "" {
		sqlxDB = db.MustConnect(cfg.DBDSN)
	}
	if *doMigrate {
		if sqlxDB == nil {
			log.Fatal("migrate requested but DB_DSN is empty")
		}
		db.MustMigrate(sqlxDB)
		log.Println("migrations done")
		return
	}

	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = cache.MustConnect(cfg.RedisAddr, cfg.RedisDB)
	}

	backend, err := buildBackend(cfg)
	if err != nil {
		tlog.Fatal().Err(err).Str("backend", cfg.OCRBackend).Msg("backend unavailable")
	}
	if err := backend.Initialize(context.Background()); err != nil {
		tlog.Fatal().Err(err).Msg("backend warm-up failed")
	}

	app := fiber.New(fiber.Config{
		BodyLimit: cfg.AllowedMaxFileSize * 1024 * 1024 * 2,
	})

	app.Use(middleware.RequestID())
	app.Use(middleware.Recover())
	app.Use(middleware.RateLimiter())
	app.Use(middleware.SecureHeaders())
	app.Use(middleware.RequestLog())

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})

	eh := extract.NewHandler(cfg, backend, sqlxDB, rdb)
	api := app.Group("/api/v1")
	api.Post("/extract", middleware.FileUploadValidator(cfg), eh.Extract)
	api.Get("/languages", eh.Languages)
	api.Get("/extractions", eh.History)

	go func() {
		if err := app.Listen(":" + cfg.AppPort); err != nil {
			tlog.Fatal().Err(err).Msg("listen failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	tlog.Info().Msg("shutting down")
	if err := app.Shutdown(); err != nil {
		tlog.Error().Err(err).Msg("server shutdown error")
	}
	if err := backend.Shutdown(); err != nil {
		tlog.Error().Err(err).Msg("backend shutdown error")
	}
}

// buildBackend picks the OCR implementation from OCR_BACKEND.
func buildBackend(cfg *config.Config) (ocr.Backend, error) {
	switch cfg.OCRBackend {
	case "ollama":
		return ollama.New(
			ollama.WithEndpoint(cfg.OllamaHost),
			ollama.WithModel(cfg.OllamaModel),
			ollama.WithRateLimit(cfg.OllamaRPS, cfg.OllamaBurst),
			ollama.WithMaxRetries(cfg.OllamaMaxRetries),
			ollama.WithLogger(telemetry.L()),
		), nil
	case "rapid":
		// No in-process RapidOCR runtime ships with this build; a deployment
		// registers a factory here when one is available.
		return rapid.New(nil,
			rapid.WithLanguage(cfg.OCRLang),
			rapid.WithLogger(telemetry.L()),
		)
	default:
		return tesseract.New(
			tesseract.WithLanguage(cfg.OCRLang),
			tesseract.WithVariables(cfg.TesseractVariables),
			tesseract.WithLogger(telemetry.L()),
		)
	}
}

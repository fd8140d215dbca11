package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	AppEnv, AppPort string

	DBDSN     string
	RedisAddr string
	RedisDB   int

	OCRBackend     string // tesseract | ollama | rapid
	OCRLang        string
	OCRCacheTTL    time.Duration
	OCRTimeout     time.Duration
	OCRMaxParallel int

	OCRImgMaxW      int
	OCRImgQuality   int
	OCRImgGrayscale bool

	OllamaHost       string
	OllamaModel      string
	OllamaRPS        int
	OllamaBurst      int
	OllamaMaxRetries int

	TesseractVariables map[string]string

	AllowedMaxFileSize int
	AllowedFileExt     []string
}

func Load() *Config {
	_ = godotenv.Load()

	c := &Config{
		AppEnv:             get("APP_ENV", "dev"),
		AppPort:            get("APP_PORT", "8080"),
		DBDSN:              get("DB_DSN", ""),
		RedisAddr:          get("REDIS_ADDR", "127.0.0.1:6379"),
		RedisDB:            atoi(get("REDIS_DB", "0")),
		OCRBackend:         get("OCR_BACKEND", "tesseract"),
		OCRLang:            get("OCR_LANG", "eng"),
		OCRCacheTTL:        mustDuration(get("OCR_CACHE_TTL", "168h")),
		OCRTimeout:         mustDuration(get("OCR_TIMEOUT", "45s")),
		OCRMaxParallel:     atoi(get("OCR_MAX_PARALLEL", "3")),
		OCRImgMaxW:         atoi(get("OCR_IMG_MAX_W", "2048")),
		OCRImgQuality:      atoi(get("OCR_IMG_QUALITY", "85")),
		OCRImgGrayscale:    parseBool(get("OCR_IMG_GRAYSCALE", "true")),
		OllamaHost:         get("OLLAMA_HOST", "http://localhost:11434"),
		OllamaModel:        get("OLLAMA_MODEL", "glm-ocr"),
		OllamaRPS:          atoi(get("OLLAMA_RPS", "2")),
		OllamaBurst:        atoi(get("OLLAMA_BURST", "2")),
		OllamaMaxRetries:   atoi(get("OLLAMA_MAX_RETRIES", "3")),
		TesseractVariables: kvmap(get("TESSERACT_VARIABLES", "")),
		AllowedMaxFileSize: GetEnvInt("ALLOWED_MAX_FILE_SIZE", 8),
		AllowedFileExt:     GetEnvList("ALLOWED_FILE_EXT", []string{".jpg", ".jpeg", ".png"}),
	}
	return c
}

func GetEnvInt(k string, d int) int {
	if v := os.Getenv(k); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return d
}

func GetEnvList(k string, d []string) []string {
	if v := os.Getenv(k); v != "" {
		return strings.Split(v, ",")
	}
	return d
}

func get(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func atoi(s string) int                   { i, _ := strconv.Atoi(s); return i }
func parseBool(s string) bool             { b, _ := strconv.ParseBool(s); return b }
func mustDuration(s string) time.Duration { d, _ := time.ParseDuration(s); return d }

// kvmap parses "key=value,key=value" lists into a map.
func kvmap(s string) map[string]string {
	if s == "" {
		return nil
	}
	m := make(map[string]string)
	for _, pair := range strings.Split(s, ",") {
		k, v, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		m[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}
	return m
}

func GetEnv(k, d string) string {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	return v
}

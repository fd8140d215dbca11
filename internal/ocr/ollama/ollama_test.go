package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/chikingsley/kreuzberg/internal/ocr"
)

func TestProcessImage(t *testing.T) {
	var gotReq chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("path = %q, want /api/chat", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"message": map[string]any{"content": "  hello world\n"},
		})
	}))
	defer srv.Close()

	b := New(WithEndpoint(srv.URL), WithModel("llava"))
	res, err := b.ProcessImage(context.Background(), []byte("img"), "ENG")
	if err != nil {
		t.Fatalf("ProcessImage() error = %v", err)
	}

	if res.Content != "hello world" {
		t.Errorf("Content = %q", res.Content)
	}
	if res.Metadata.Backend != "ollama" || res.Metadata.Language != "eng" {
		t.Errorf("metadata = %+v", res.Metadata)
	}
	if res.Metadata.Confidence != 0 || res.Metadata.TextRegions != 0 {
		t.Errorf("metadata = %+v, want no confidence or regions", res.Metadata)
	}
	if len(res.OCRElements) != 0 || len(res.Tables) != 0 {
		t.Errorf("elements/tables should be empty: %+v", res)
	}

	if gotReq.Model != "llava" {
		t.Errorf("request model = %q", gotReq.Model)
	}
	if gotReq.Stream {
		t.Error("streaming must be disabled")
	}
	if len(gotReq.Messages) != 1 || len(gotReq.Messages[0].Images) != 1 {
		t.Fatalf("request messages = %+v", gotReq.Messages)
	}
	if gotReq.Messages[0].Content == "" {
		t.Error("request carries no prompt")
	}
}

func TestProcessImageRetriesOn429(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"message": map[string]any{"content": "ok"},
		})
	}))
	defer srv.Close()

	b := New(WithEndpoint(srv.URL), WithMaxRetries(2))
	res, err := b.ProcessImage(context.Background(), []byte("img"), "eng")
	if err != nil {
		t.Fatalf("ProcessImage() error = %v", err)
	}
	if res.Content != "ok" {
		t.Errorf("Content = %q", res.Content)
	}
	if attempts != 2 {
		t.Errorf("attempts = %d, want 2", attempts)
	}
}

func TestProcessImageServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	b := New(WithEndpoint(srv.URL))
	_, err := b.ProcessImage(context.Background(), []byte("img"), "eng")
	var processing *ocr.ProcessingError
	if !errors.As(err, &processing) {
		t.Fatalf("error = %v, want ProcessingError", err)
	}
}

func TestDefaultLanguageFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"message": map[string]any{"content": "text"},
		})
	}))
	defer srv.Close()

	b := New(WithEndpoint(srv.URL))
	res, err := b.ProcessImage(context.Background(), []byte("img"), "")
	if err != nil {
		t.Fatalf("ProcessImage() error = %v", err)
	}
	if res.Metadata.Language != "eng" {
		t.Errorf("Language = %q, want default", res.Metadata.Language)
	}
}

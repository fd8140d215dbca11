package img

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"
)

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	im := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			im.Set(x, y, color.RGBA{uint8(x % 256), uint8(y % 256), 128, 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, im); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func TestPrepareForOCRResizes(t *testing.T) {
	data := encodePNG(t, 400, 200)
	prep, err := PrepareForOCR(data, 100, 85, false)
	if err != nil {
		t.Fatalf("PrepareForOCR() error = %v", err)
	}
	if prep.MIME != "image/jpeg" {
		t.Errorf("MIME = %q", prep.MIME)
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(prep.Bytes))
	if err != nil {
		t.Fatalf("decode prepared image: %v", err)
	}
	if cfg.Width != 100 || cfg.Height != 50 {
		t.Errorf("prepared size = %dx%d, want proportional 100x50", cfg.Width, cfg.Height)
	}
}

func TestPrepareForOCRKeepsSmallImages(t *testing.T) {
	data := encodePNG(t, 60, 40)
	prep, err := PrepareForOCR(data, 100, 85, true)
	if err != nil {
		t.Fatalf("PrepareForOCR() error = %v", err)
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(prep.Bytes))
	if err != nil {
		t.Fatalf("decode prepared image: %v", err)
	}
	if cfg.Width != 60 || cfg.Height != 40 {
		t.Errorf("prepared size = %dx%d, want unchanged", cfg.Width, cfg.Height)
	}
}

func TestPrepareForOCRRejectsGarbage(t *testing.T) {
	if _, err := PrepareForOCR([]byte("not an image"), 100, 85, false); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestClamp(t *testing.T) {
	tests := []struct{ v, lo, hi, want int }{
		{10, 40, 95, 40},
		{100, 40, 95, 95},
		{85, 40, 95, 85},
	}
	for _, tt := range tests {
		if got := clamp(tt.v, tt.lo, tt.hi); got != tt.want {
			t.Errorf("clamp(%d, %d, %d) = %d, want %d", tt.v, tt.lo, tt.hi, got, tt.want)
		}
	}
}

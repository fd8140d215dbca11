package tesseract

import (
	"context"
	"errors"
	"image"
	"testing"

	"github.com/otiai10/gosseract/v2"

	"github.com/chikingsley/kreuzberg/internal/ocr"
)

type fakeClient struct {
	text       string
	boxes      []gosseract.BoundingBox
	langErr    error
	textErr    error
	languages  []string
	imageCalls int
	closed     bool
}

func (f *fakeClient) SetLanguage(langs ...string) error {
	if f.langErr != nil {
		return f.langErr
	}
	f.languages = langs
	return nil
}

func (f *fakeClient) SetImageFromBytes(data []byte) error {
	f.imageCalls++
	return nil
}

func (f *fakeClient) Text() (string, error) {
	return f.text, f.textErr
}

func (f *fakeClient) GetBoundingBoxes(level gosseract.PageIteratorLevel) ([]gosseract.BoundingBox, error) {
	return f.boxes, nil
}

func (f *fakeClient) SetVariable(name gosseract.SettableVariable, value string) error {
	return nil
}

func (f *fakeClient) Close() error {
	f.closed = true
	return nil
}

func newFakeBackend(t *testing.T, clients ...*fakeClient) (*Backend, *int) {
	t.Helper()
	b, err := New()
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	calls := new(int)
	b.newClient = func() client {
		c := clients[0]
		if len(clients) > 1 {
			clients = clients[1:]
		}
		*calls++
		return c
	}
	return b, calls
}

func TestNormalizeLanguage(t *testing.T) {
	tests := []struct {
		token string
		want  string
	}{
		{"en", "eng"},
		{"EN", "eng"},
		{"eng", "eng"},
		{"zh", "chi_sim"},
		{"chi_tra", "chi_tra"},
	}
	for _, tt := range tests {
		got, err := normalizeLanguage(tt.token)
		if err != nil {
			t.Fatalf("normalizeLanguage(%q) error = %v", tt.token, err)
		}
		if got != tt.want {
			t.Errorf("normalizeLanguage(%q) = %q, want %q", tt.token, got, tt.want)
		}
	}

	_, err := normalizeLanguage("xx")
	var validation *ocr.ValidationError
	if !errors.As(err, &validation) {
		t.Fatalf("normalizeLanguage(\"xx\") error = %v, want ValidationError", err)
	}
}

func TestProcessImage(t *testing.T) {
	fc := &fakeClient{
		text: "hello\nworld",
		boxes: []gosseract.BoundingBox{
			{Box: image.Rect(1, 2, 3, 4), Word: "hello", Confidence: 90},
			{Box: image.Rect(10, 20, 30, 40), Word: "world", Confidence: 80},
		},
	}
	b, calls := newFakeBackend(t, fc)

	res, err := b.ProcessImage(context.Background(), []byte("img"), "en")
	if err != nil {
		t.Fatalf("ProcessImage() error = %v", err)
	}
	if res.Content != "hello\nworld" {
		t.Errorf("Content = %q", res.Content)
	}
	if res.Metadata.Backend != "tesseract" || res.Metadata.Language != "eng" {
		t.Errorf("metadata = %+v", res.Metadata)
	}
	if got := res.Metadata.Confidence; got < 0.8499 || got > 0.8501 {
		t.Errorf("Confidence = %v, want 0.85", got)
	}
	if res.Metadata.TextRegions != 2 {
		t.Errorf("TextRegions = %d, want 2", res.Metadata.TextRegions)
	}
	if len(res.OCRElements) != 2 {
		t.Fatalf("len(OCRElements) = %d, want 2", len(res.OCRElements))
	}
	wantQuad := ocr.Quad{{1, 2}, {3, 2}, {3, 4}, {1, 4}}
	if res.Metadata.Boxes[0] != wantQuad {
		t.Errorf("Boxes[0] = %v, want %v", res.Metadata.Boxes[0], wantQuad)
	}
	el := res.OCRElements[0]
	if el.Geometry.Type != "quadrilateral" || el.Level != ocr.LevelLine || el.PageNumber != 1 {
		t.Errorf("element = %+v", el)
	}
	if el.Geometry.Points != [4][2]int{{1, 2}, {3, 2}, {3, 4}, {1, 4}} {
		t.Errorf("points = %v", el.Geometry.Points)
	}
	if *calls != 1 {
		t.Errorf("client constructed %d times, want 1", *calls)
	}
}

func TestProcessImageReusesClient(t *testing.T) {
	fc := &fakeClient{text: "x"}
	b, calls := newFakeBackend(t, fc)

	for i := 0; i < 2; i++ {
		if _, err := b.ProcessImage(context.Background(), []byte("img"), "eng"); err != nil {
			t.Fatalf("ProcessImage() error = %v", err)
		}
	}
	if *calls != 1 {
		t.Errorf("client constructed %d times, want 1", *calls)
	}
	if fc.imageCalls != 2 {
		t.Errorf("image set %d times, want 2", fc.imageCalls)
	}
}

func TestProcessImageBlankLinesExcluded(t *testing.T) {
	fc := &fakeClient{
		text: "hello",
		boxes: []gosseract.BoundingBox{
			{Box: image.Rect(1, 2, 3, 4), Word: "hello", Confidence: 90},
			{Box: image.Rect(5, 6, 7, 8), Word: "   ", Confidence: 50},
		},
	}
	b, _ := newFakeBackend(t, fc)

	res, err := b.ProcessImage(context.Background(), []byte("img"), "eng")
	if err != nil {
		t.Fatalf("ProcessImage() error = %v", err)
	}
	if len(res.OCRElements) != 1 {
		t.Errorf("len(OCRElements) = %d, want blank line excluded", len(res.OCRElements))
	}
	if len(res.Metadata.Boxes) != 2 {
		t.Errorf("len(Boxes) = %d, want detection geometry kept", len(res.Metadata.Boxes))
	}
	if res.Metadata.Confidence != 0.9 {
		t.Errorf("Confidence = %v, want mean over scored lines", res.Metadata.Confidence)
	}
}

func TestClientInitFailureRetries(t *testing.T) {
	failing := &fakeClient{langErr: errors.New("missing traineddata")}
	working := &fakeClient{text: "ok"}
	b, calls := newFakeBackend(t, failing, working)

	_, err := b.ProcessImage(context.Background(), []byte("img"), "eng")
	var initErr *ocr.EngineInitError
	if !errors.As(err, &initErr) {
		t.Fatalf("error = %v, want EngineInitError", err)
	}
	if !failing.closed {
		t.Error("failed client was not closed")
	}

	if _, err := b.ProcessImage(context.Background(), []byte("img"), "eng"); err != nil {
		t.Fatalf("retry error = %v", err)
	}
	if *calls != 2 {
		t.Errorf("client constructed %d times, want retry after failure", *calls)
	}
}

func TestProcessingFailure(t *testing.T) {
	fc := &fakeClient{textErr: errors.New("tesseract crashed")}
	b, _ := newFakeBackend(t, fc)

	_, err := b.ProcessImage(context.Background(), []byte("img"), "eng")
	var processing *ocr.ProcessingError
	if !errors.As(err, &processing) {
		t.Fatalf("error = %v, want ProcessingError", err)
	}
}

func TestShutdownClosesClients(t *testing.T) {
	first := &fakeClient{text: "x"}
	second := &fakeClient{text: "y"}
	b, calls := newFakeBackend(t, first, second)

	if _, err := b.ProcessImage(context.Background(), []byte("img"), "eng"); err != nil {
		t.Fatalf("ProcessImage() error = %v", err)
	}
	if err := b.Shutdown(); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
	if !first.closed {
		t.Error("client not closed on shutdown")
	}
	if _, err := b.ProcessImage(context.Background(), []byte("img"), "eng"); err != nil {
		t.Fatalf("ProcessImage() after shutdown error = %v", err)
	}
	if *calls != 2 {
		t.Errorf("client constructed %d times, want recreation after shutdown", *calls)
	}
}

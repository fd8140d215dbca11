package rapid

import (
	"reflect"
	"testing"

	"github.com/chikingsley/kreuzberg/internal/ocr"
)

func TestNormalizeBoxes(t *testing.T) {
	tests := []struct {
		name string
		raw  any
		want []ocr.Quad
	}{
		{
			name: "nil input",
			raw:  nil,
			want: nil,
		},
		{
			name: "non sequence input",
			raw:  42,
			want: nil,
		},
		{
			name: "typed float slices",
			raw: [][][2]float64{
				{{1, 2}, {3, 2}, {3, 4}, {1, 4}},
			},
			want: []ocr.Quad{{{1, 2}, {3, 2}, {3, 4}, {1, 4}}},
		},
		{
			name: "untyped nesting with mixed numeric kinds",
			raw: []any{
				[]any{[]any{1, 2.0}, []any{int32(3), 2}, []any{3, uint8(4)}, []any{"1", "4"}},
			},
			want: []ocr.Quad{{{1, 2}, {3, 2}, {3, 4}, {1, 4}}},
		},
		{
			name: "three point box dropped",
			raw: [][][2]float64{
				{{1, 2}, {3, 2}, {3, 4}},
			},
			want: nil,
		},
		{
			name: "five point box truncated to first four",
			raw: [][][2]float64{
				{{1, 2}, {3, 2}, {3, 4}, {1, 4}, {99, 99}},
			},
			want: []ocr.Quad{{{1, 2}, {3, 2}, {3, 4}, {1, 4}}},
		},
		{
			name: "unusable points skipped, box still viable",
			raw: []any{
				[]any{"junk", []any{1, 2}, []any{3, 2}, nil, []any{3, 4}, []any{1, 4}},
			},
			want: []ocr.Quad{{{1, 2}, {3, 2}, {3, 4}, {1, 4}}},
		},
		{
			name: "non pair entry skipped",
			raw: []any{
				[]any{[]any{1}, []any{1, 2}, []any{3, 2}, []any{3, 4}, []any{1, 4}},
			},
			want: []ocr.Quad{{{1, 2}, {3, 2}, {3, 4}, {1, 4}}},
		},
		{
			name: "non numeric coordinate skipped",
			raw: []any{
				[]any{[]any{"x", "y"}, []any{1, 2}, []any{3, 2}, []any{3, 4}, []any{1, 4}},
			},
			want: []ocr.Quad{{{1, 2}, {3, 2}, {3, 4}, {1, 4}}},
		},
		{
			name: "malformed box does not poison the batch",
			raw: []any{
				"not a box",
				[][2]float64{{1, 2}, {3, 2}, {3, 4}, {1, 4}},
			},
			want: []ocr.Quad{{{1, 2}, {3, 2}, {3, 4}, {1, 4}}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := normalizeBoxes(tt.raw)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("normalizeBoxes() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestImageDims(t *testing.T) {
	if _, _, ok := imageDims(nil); ok {
		t.Error("nil image should not report dimensions")
	}
	if _, _, ok := imageDims("not an image"); ok {
		t.Error("arbitrary value should not report dimensions")
	}
	if _, _, ok := imageDims(fakeImage{shape: []int{42}}); ok {
		t.Error("one-dimensional shape should not report dimensions")
	}
	h, w, ok := imageDims(fakeImage{shape: []int{120, 320, 3}})
	if !ok || h != 120 || w != 320 {
		t.Errorf("imageDims() = %d, %d, %v, want 120, 320, true", h, w, ok)
	}
}

package rapid

import (
	"reflect"
	"strconv"

	"github.com/chikingsley/kreuzberg/internal/ocr"
)

// normalizeBoxes coerces an arbitrary box structure into quadrilaterals.
// Malformed entries are skipped, never escalated: a non-iterable top level
// yields no quads, a non-pair point is dropped, and a box keeps only its
// first four usable points. Boxes with fewer than four usable points are
// dropped entirely.
func normalizeBoxes(raw any) []ocr.Quad {
	boxes := sequence(raw)
	if !boxes.IsValid() {
		return nil
	}

	var quads []ocr.Quad
	for i := 0; i < boxes.Len(); i++ {
		box := sequence(boxes.Index(i).Interface())
		if !box.IsValid() {
			continue
		}

		var quad ocr.Quad
		count := 0
		for j := 0; j < box.Len() && count < 4; j++ {
			point := sequence(box.Index(j).Interface())
			if !point.IsValid() || point.Len() < 2 {
				continue
			}
			x, okX := toFloat(point.Index(0))
			y, okY := toFloat(point.Index(1))
			if !okX || !okY {
				continue
			}
			quad[count] = [2]float64{x, y}
			count++
		}
		if count == 4 {
			quads = append(quads, quad)
		}
	}
	return quads
}

// sequence returns an indexable view of v, or an invalid value when v is not
// a slice or array.
func sequence(v any) reflect.Value {
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return reflect.Value{}
	}
	return rv
}

// toFloat converts one coordinate to float64. Numeric kinds convert directly;
// strings are parsed. Anything else fails the conversion.
func toFloat(v reflect.Value) (float64, bool) {
	for v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface {
		v = v.Elem()
	}
	switch v.Kind() {
	case reflect.Float32, reflect.Float64:
		return v.Float(), true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(v.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(v.Uint()), true
	case reflect.String:
		f, err := strconv.ParseFloat(v.String(), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

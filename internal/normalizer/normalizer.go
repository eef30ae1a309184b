// Package normalizer rescales image arrays from integer pixel values to
// float32 in [0, 1], leaving label and metadata arrays untouched.
package normalizer

import (
	"errors"
	"fmt"
	"path"

	"fmworker/internal/dataset"
)

// DefaultScale is the divisor applied to matched image arrays.
const DefaultScale = 255.0

// DefaultPatterns matches the split-qualified image arrays.
var DefaultPatterns = []string{"X_*"}

// ErrBadPattern is returned when an image-key pattern does not compile.
var ErrBadPattern = errors.New("invalid image key pattern")

// Method is the name recorded in generated documentation.
const Method = "min-max rescale (pixel / 255)"

// Warning is a non-fatal finding raised while normalizing, such as an
// already-floating-point image array or out-of-range pixel values.
type Warning struct {
	Key     string
	Message string
}

func (w Warning) String() string {
	return fmt.Sprintf("%s: %s", w.Key, w.Message)
}

// Normalizer converts matched image arrays to float32 and divides by Scale.
type Normalizer struct {
	Patterns []string
	Scale    float64
}

// New creates a normalizer. Nil patterns and a zero scale fall back to the
// defaults.
func New(patterns []string, scale float64) *Normalizer {
	if len(patterns) == 0 {
		patterns = DefaultPatterns
	}

	if scale == 0 {
		scale = DefaultScale
	}

	return &Normalizer{Patterns: patterns, Scale: scale}
}

// Normalize produces a new dataset where every array whose name matches an
// image pattern is cast to float32 and divided by the scale. Unmatched
// arrays carry over by reference. Matched arrays that are already floating
// point are passed through unchanged with a warning so nothing is
// normalized twice. Values outside [0, scale] raise a warning, not an
// error; they pass through scaled as-is.
func (n *Normalizer) Normalize(ds *dataset.Dataset) (*dataset.Dataset, []Warning, error) {
	if err := ds.Validate(); err != nil {
		return nil, nil, fmt.Errorf("input dataset invalid: %w", err)
	}

	out := dataset.New()

	var warnings []Warning

	for _, key := range ds.Keys() {
		arr := ds.Get(key)

		matched, err := n.matches(key)
		if err != nil {
			return nil, nil, err
		}

		if !matched {
			if err := out.Set(key, arr); err != nil {
				return nil, nil, err
			}

			continue
		}

		if arr.IsFloat() {
			warnings = append(warnings, Warning{
				Key:     key,
				Message: fmt.Sprintf("already %s, skipping (looks normalized)", arr.DType),
			})

			if err := out.Set(key, arr); err != nil {
				return nil, nil, err
			}

			continue
		}

		scaled, warn, err := n.rescale(key, arr)
		if err != nil {
			return nil, nil, err
		}

		if warn != nil {
			warnings = append(warnings, *warn)
		}

		if err := out.Set(key, scaled); err != nil {
			return nil, nil, err
		}
	}

	return out, warnings, nil
}

// matches reports whether key matches any image pattern.
func (n *Normalizer) matches(key string) (bool, error) {
	for _, pattern := range n.Patterns {
		ok, err := path.Match(pattern, key)
		if err != nil {
			return false, fmt.Errorf("%w: %q", ErrBadPattern, pattern)
		}

		if ok {
			return true, nil
		}
	}

	return false, nil
}

func (n *Normalizer) rescale(key string, arr *dataset.Array) (*dataset.Array, *Warning, error) {
	scale := float32(n.Scale)
	out := make([]float32, arr.Len())

	outOfRange := 0

	switch arr.DType {
	case dataset.Uint8:
		// uint8 is always within [0, 255]; no range check needed.
		for i, v := range arr.Uint8() {
			out[i] = float32(v) / scale
		}
	case dataset.Int64:
		for i, v := range arr.Int64() {
			if v < 0 || float64(v) > n.Scale {
				outOfRange++
			}

			out[i] = float32(v) / scale
		}
	default:
		return nil, nil, fmt.Errorf("%w: %s for image array %s",
			dataset.ErrUnsupportedDType, arr.DType, key)
	}

	scaled, err := dataset.NewFloat32(arr.Shape, out)
	if err != nil {
		return nil, nil, err
	}

	if outOfRange > 0 {
		return scaled, &Warning{
			Key:     key,
			Message: fmt.Sprintf("%d values outside [0, %g]", outOfRange, n.Scale),
		}, nil
	}

	return scaled, nil, nil
}

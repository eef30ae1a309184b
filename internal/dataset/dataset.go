// Package dataset defines the in-memory model for multi-array datasets:
// named n-dimensional arrays plus an optional class-name manifest.
package dataset

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Dataset validation errors.
var (
	ErrEmptyDataset     = errors.New("dataset has no arrays")
	ErrNilArray         = errors.New("array is nil")
	ErrShapeMismatch    = errors.New("data length does not match shape")
	ErrSampleMismatch   = errors.New("image and label arrays disagree on sample count")
	ErrUnsupportedDType = errors.New("unsupported dtype")
)

// DType identifies the element type of an Array.
type DType string

// Supported element types. They cover everything Fashion-MNIST archives
// carry plus the float types normalization produces.
const (
	Uint8   DType = "uint8"
	Int64   DType = "int64"
	Float32 DType = "float32"
	Float64 DType = "float64"
)

// Array is a dense n-dimensional numeric array in row-major order.
// The backing slice is one of []uint8, []int64, []float32 or []float64,
// matching DType.
type Array struct {
	DType DType
	Shape []int
	data  any
}

// NewUint8 creates a uint8 array with the given shape.
func NewUint8(shape []int, data []uint8) (*Array, error) {
	return newArray(Uint8, shape, data, len(data))
}

// NewInt64 creates an int64 array with the given shape.
func NewInt64(shape []int, data []int64) (*Array, error) {
	return newArray(Int64, shape, data, len(data))
}

// NewFloat32 creates a float32 array with the given shape.
func NewFloat32(shape []int, data []float32) (*Array, error) {
	return newArray(Float32, shape, data, len(data))
}

// NewFloat64 creates a float64 array with the given shape.
func NewFloat64(shape []int, data []float64) (*Array, error) {
	return newArray(Float64, shape, data, len(data))
}

func newArray(dt DType, shape []int, data any, n int) (*Array, error) {
	if want := NumElements(shape); n != want {
		return nil, fmt.Errorf("%w: shape %v wants %d elements, got %d",
			ErrShapeMismatch, shape, want, n)
	}

	return &Array{
		DType: dt,
		Shape: append([]int(nil), shape...),
		data:  data,
	}, nil
}

// NumElements returns the element count implied by shape. An empty shape
// describes a scalar (one element).
func NumElements(shape []int) int {
	n := 1
	for _, d := range shape {
		n *= d
	}

	return n
}

// Len returns the number of elements in the array.
func (a *Array) Len() int {
	return NumElements(a.Shape)
}

// Samples returns the leading dimension, or 0 for a scalar.
func (a *Array) Samples() int {
	if len(a.Shape) == 0 {
		return 0
	}

	return a.Shape[0]
}

// Uint8 returns the backing slice of a uint8 array, or nil otherwise.
func (a *Array) Uint8() []uint8 {
	v, _ := a.data.([]uint8)
	return v
}

// Int64 returns the backing slice of an int64 array, or nil otherwise.
func (a *Array) Int64() []int64 {
	v, _ := a.data.([]int64)
	return v
}

// Float32 returns the backing slice of a float32 array, or nil otherwise.
func (a *Array) Float32() []float32 {
	v, _ := a.data.([]float32)
	return v
}

// Float64 returns the backing slice of a float64 array, or nil otherwise.
func (a *Array) Float64() []float64 {
	v, _ := a.data.([]float64)
	return v
}

// IsFloat reports whether the array has a floating-point dtype.
func (a *Array) IsFloat() bool {
	return a.DType == Float32 || a.DType == Float64
}

// String returns a compact description like "uint8(60000, 28, 28)".
func (a *Array) String() string {
	dims := make([]string, len(a.Shape))
	for i, d := range a.Shape {
		dims[i] = fmt.Sprintf("%d", d)
	}

	return fmt.Sprintf("%s(%s)", a.DType, strings.Join(dims, ", "))
}

// Dataset maps split-qualified array names (X_train, y_train, ...) to arrays.
type Dataset struct {
	arrays map[string]*Array
}

// New creates an empty dataset.
func New() *Dataset {
	return &Dataset{arrays: make(map[string]*Array)}
}

// Set stores an array under the given name, replacing any previous entry.
func (d *Dataset) Set(name string, a *Array) error {
	if a == nil {
		return fmt.Errorf("%w: %s", ErrNilArray, name)
	}

	d.arrays[name] = a

	return nil
}

// Get returns the array stored under name, or nil.
func (d *Dataset) Get(name string) *Array {
	return d.arrays[name]
}

// Has reports whether an array is stored under name.
func (d *Dataset) Has(name string) bool {
	_, ok := d.arrays[name]
	return ok
}

// Len returns the number of arrays.
func (d *Dataset) Len() int {
	return len(d.arrays)
}

// Keys returns all array names in sorted order.
func (d *Dataset) Keys() []string {
	keys := make([]string, 0, len(d.arrays))
	for k := range d.arrays {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	return keys
}

// Validate checks the dataset invariants: at least one array, and every
// image array X_<split> agrees with its paired label array y_<split> on
// the leading dimension.
func (d *Dataset) Validate() error {
	if len(d.arrays) == 0 {
		return ErrEmptyDataset
	}

	for name, arr := range d.arrays {
		split, ok := strings.CutPrefix(name, "X_")
		if !ok {
			continue
		}

		labels := d.arrays["y_"+split]
		if labels == nil {
			continue
		}

		if arr.Samples() != labels.Samples() {
			return fmt.Errorf("%w: %s has %d, y_%s has %d",
				ErrSampleMismatch, name, arr.Samples(), split, labels.Samples())
		}
	}

	return nil
}

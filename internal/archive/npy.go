// Package archive reads and writes NPZ archives: zip containers of NPY
// entries, one per named array. Output stays loadable by NumPy's
// counterpart reader, with shape and dtype preserved.
package archive

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"regexp"
	"strconv"
	"strings"

	"fmworker/internal/dataset"
)

// Codec errors. Everything unreadable maps to ErrCorrupt so callers can
// classify with errors.Is.
var (
	ErrCorrupt          = errors.New("corrupt archive")
	ErrUnsupportedDType = errors.New("unsupported dtype descr")
	ErrFortranOrder     = errors.New("fortran-order arrays are not supported")
)

var npyMagic = []byte("\x93NUMPY")

// headerRegex pulls descr, fortran_order and shape out of the NPY header
// dict. The header is a python literal with a fixed key order.
var headerRegex = regexp.MustCompile(
	`'descr':\s*'([^']+)',\s*'fortran_order':\s*(True|False),\s*'shape':\s*\(([^)]*)\)`)

// dtype descr ↔ DType mapping. NPY descrs are little-endian on disk.
var descrToDType = map[string]dataset.DType{
	"|u1": dataset.Uint8,
	"u1":  dataset.Uint8,
	"<u1": dataset.Uint8,
	"<i8": dataset.Int64,
	"<f4": dataset.Float32,
	"<f8": dataset.Float64,
}

var dtypeToDescr = map[dataset.DType]string{
	dataset.Uint8:   "|u1",
	dataset.Int64:   "<i8",
	dataset.Float32: "<f4",
	dataset.Float64: "<f8",
}

// WriteNPY encodes a single array in NPY format version 1.0.
func WriteNPY(w io.Writer, arr *dataset.Array) error {
	descr, ok := dtypeToDescr[arr.DType]
	if !ok {
		return fmt.Errorf("%w: %s", dataset.ErrUnsupportedDType, arr.DType)
	}

	header := fmt.Sprintf("{'descr': '%s', 'fortran_order': False, 'shape': %s, }",
		descr, shapeTuple(arr.Shape))

	// Pad so the data section starts on a 64-byte boundary, header ends
	// with a newline. Preamble is magic(6) + version(2) + length(2).
	total := 6 + 2 + 2 + len(header) + 1
	pad := (64 - total%64) % 64
	header = header + strings.Repeat(" ", pad) + "\n"

	if _, err := w.Write(npyMagic); err != nil {
		return err
	}

	if _, err := w.Write([]byte{1, 0}); err != nil {
		return err
	}

	if err := binary.Write(w, binary.LittleEndian, uint16(len(header))); err != nil {
		return err
	}

	if _, err := io.WriteString(w, header); err != nil {
		return err
	}

	return writeData(w, arr)
}

// ReadNPY decodes a single NPY entry.
func ReadNPY(r io.Reader) (*dataset.Array, error) {
	preamble := make([]byte, 8)
	if _, err := io.ReadFull(r, preamble); err != nil {
		return nil, fmt.Errorf("%w: short preamble: %v", ErrCorrupt, err)
	}

	if !bytes.Equal(preamble[:6], npyMagic) {
		return nil, fmt.Errorf("%w: bad magic", ErrCorrupt)
	}

	major := preamble[6]

	var headerLen int

	switch major {
	case 1:
		var n uint16
		if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
			return nil, fmt.Errorf("%w: short header length: %v", ErrCorrupt, err)
		}
		headerLen = int(n)
	case 2:
		var n uint32
		if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
			return nil, fmt.Errorf("%w: short header length: %v", ErrCorrupt, err)
		}
		headerLen = int(n)
	default:
		return nil, fmt.Errorf("%w: unsupported version %d", ErrCorrupt, major)
	}

	rawHeader := make([]byte, headerLen)
	if _, err := io.ReadFull(r, rawHeader); err != nil {
		return nil, fmt.Errorf("%w: short header: %v", ErrCorrupt, err)
	}

	m := headerRegex.FindSubmatch(rawHeader)
	if m == nil {
		return nil, fmt.Errorf("%w: unparseable header %q", ErrCorrupt, rawHeader)
	}

	if string(m[2]) == "True" {
		return nil, ErrFortranOrder
	}

	dt, ok := descrToDType[string(m[1])]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDType, m[1])
	}

	shape, err := parseShape(string(m[3]))
	if err != nil {
		return nil, fmt.Errorf("%w: bad shape %q", ErrCorrupt, m[3])
	}

	return readData(r, dt, shape)
}

func shapeTuple(shape []int) string {
	if len(shape) == 0 {
		return "()"
	}

	dims := make([]string, len(shape))
	for i, d := range shape {
		dims[i] = strconv.Itoa(d)
	}

	if len(dims) == 1 {
		return "(" + dims[0] + ",)"
	}

	return "(" + strings.Join(dims, ", ") + ")"
}

func parseShape(s string) ([]int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return []int{}, nil
	}

	var shape []int

	for part := range strings.SplitSeq(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		d, err := strconv.Atoi(part)
		if err != nil || d < 0 {
			return nil, fmt.Errorf("invalid dimension %q", part)
		}

		shape = append(shape, d)
	}

	if shape == nil {
		shape = []int{}
	}

	return shape, nil
}

func writeData(w io.Writer, arr *dataset.Array) error {
	switch arr.DType {
	case dataset.Uint8:
		_, err := w.Write(arr.Uint8())
		return err
	case dataset.Int64:
		buf := make([]byte, 8*arr.Len())
		for i, v := range arr.Int64() {
			binary.LittleEndian.PutUint64(buf[i*8:], uint64(v))
		}
		_, err := w.Write(buf)
		return err
	case dataset.Float32:
		buf := make([]byte, 4*arr.Len())
		for i, v := range arr.Float32() {
			binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
		}
		_, err := w.Write(buf)
		return err
	case dataset.Float64:
		buf := make([]byte, 8*arr.Len())
		for i, v := range arr.Float64() {
			binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(v))
		}
		_, err := w.Write(buf)
		return err
	default:
		return fmt.Errorf("%w: %s", dataset.ErrUnsupportedDType, arr.DType)
	}
}

// checkedSize returns the element count and byte size implied by shape,
// rejecting products that overflow. The header is attacker-controlled
// input; a corrupt shape must surface as ErrCorrupt, not a panic.
func checkedSize(shape []int, elemSize int) (elements, size int, err error) {
	n := 1

	for _, d := range shape {
		if d != 0 && n > math.MaxInt/d {
			return 0, 0, fmt.Errorf("%w: shape %v element count overflows", ErrCorrupt, shape)
		}

		n *= d
	}

	if n > math.MaxInt/elemSize {
		return 0, 0, fmt.Errorf("%w: shape %v byte size overflows", ErrCorrupt, shape)
	}

	return n, n * elemSize, nil
}

// readBody reads exactly size bytes. Allocation grows with what the
// stream actually holds, so a header claiming a huge shape cannot
// allocate beyond the entry's real size.
func readBody(r io.Reader, size int) ([]byte, error) {
	buf, err := io.ReadAll(io.LimitReader(r, int64(size)))
	if err != nil {
		return nil, fmt.Errorf("%w: short data: %v", ErrCorrupt, err)
	}

	if len(buf) != size {
		return nil, fmt.Errorf("%w: short data: have %d bytes, want %d", ErrCorrupt, len(buf), size)
	}

	return buf, nil
}

func readData(r io.Reader, dt dataset.DType, shape []int) (*dataset.Array, error) {
	elemSize := 0

	switch dt {
	case dataset.Uint8:
		elemSize = 1
	case dataset.Int64, dataset.Float64:
		elemSize = 8
	case dataset.Float32:
		elemSize = 4
	default:
		return nil, fmt.Errorf("%w: %s", dataset.ErrUnsupportedDType, dt)
	}

	n, size, err := checkedSize(shape, elemSize)
	if err != nil {
		return nil, err
	}

	buf, err := readBody(r, size)
	if err != nil {
		return nil, err
	}

	switch dt {
	case dataset.Uint8:
		return dataset.NewUint8(shape, buf)
	case dataset.Int64:
		out := make([]int64, n)
		for i := range out {
			out[i] = int64(binary.LittleEndian.Uint64(buf[i*8:]))
		}
		return dataset.NewInt64(shape, out)
	case dataset.Float32:
		out := make([]float32, n)
		for i := range out {
			out[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
		}
		return dataset.NewFloat32(shape, out)
	default:
		out := make([]float64, n)
		for i := range out {
			out[i] = math.Float64frombits(binary.LittleEndian.Uint64(buf[i*8:]))
		}
		return dataset.NewFloat64(shape, out)
	}
}

package ingest

import (
	"compress/gzip"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"fmworker/internal/dataset"
)

// IDX decoding errors.
var (
	ErrBadIDXMagic  = errors.New("bad IDX magic")
	ErrBadIDXDType  = errors.New("unsupported IDX element type")
	ErrBadIDXShape  = errors.New("implausible IDX dimensions")
	ErrTruncatedIDX = errors.New("truncated IDX data")
)

// idxUByte is the IDX element-type code for unsigned bytes, the only type
// Fashion-MNIST uses.
const idxUByte = 0x08

// DecodeIDX reads an uncompressed IDX stream (big-endian header: zero
// bytes, element type, dimension count, then one uint32 per dimension)
// into a uint8 array.
func DecodeIDX(r io.Reader) (*dataset.Array, error) {
	var magic [4]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTruncatedIDX, err)
	}

	if magic[0] != 0 || magic[1] != 0 {
		return nil, fmt.Errorf("%w: % x", ErrBadIDXMagic, magic)
	}

	if magic[2] != idxUByte {
		return nil, fmt.Errorf("%w: 0x%02x", ErrBadIDXDType, magic[2])
	}

	ndims := int(magic[3])
	shape := make([]int, ndims)
	n := 1

	for i := range shape {
		var dim uint32
		if err := binary.Read(r, binary.BigEndian, &dim); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrTruncatedIDX, err)
		}

		// The header is untrusted; an overflowing dimension product must
		// error out, not wrap around and panic at allocation.
		if dim != 0 && n > math.MaxInt/int(dim) {
			return nil, fmt.Errorf("%w: dimension %d overflows the element count", ErrBadIDXShape, dim)
		}

		shape[i] = int(dim)
		n *= int(dim)
	}

	data, err := io.ReadAll(io.LimitReader(r, int64(n)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTruncatedIDX, err)
	}

	if len(data) != n {
		return nil, fmt.Errorf("%w: have %d bytes, want %d", ErrTruncatedIDX, len(data), n)
	}

	return dataset.NewUint8(shape, data)
}

// DecodeGzipIDX decodes a gzip-wrapped IDX stream.
func DecodeGzipIDX(r io.Reader) (*dataset.Array, error) {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open gzip stream: %w", err)
	}
	defer gz.Close()

	return DecodeIDX(gz)
}

package zarr

import (
	"bytes"
	"compress/bzip2"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"
	"github.com/pierrec/lz4/v4"
	"github.com/qri-io/dataset/compression"
)

// CompressionMeta defines compression settings zarr-go understands. Zarr
// stores it as the "compressor" object, N5 as "compression" which is
// normalized into the same struct.
type CompressionMeta struct {
	ID      string `json:"id"`
	Cname   string `json:"cname,omitempty"`
	Clevel  int    `json:"clevel,omitempty"`
	Shuffle int    `json:"shuffle,omitempty"`
	Level   int    `json:"level,omitempty"`
	// UseZlib is N5's switch for zlib framing on "gzip" blocks
	UseZlib bool `json:"useZlib,omitempty"`
}

const (
	CodecRaw   = "raw"
	CodecGzip  = "gzip"
	CodecZstd  = "zstd"
	CodecZlib  = "zlib"
	CodecLZ4   = "lz4"
	CodecBZ2   = "bz2"
	CodecBzip2 = "bzip2"
)

// Supported reports ErrUnsupported for codecs that can't be decoded. A nil
// CompressionMeta means no compression.
func (m *CompressionMeta) Supported() error {
	if m == nil {
		return nil
	}
	switch m.ID {
	case "", CodecRaw, CodecGzip, CodecZstd, CodecZlib, CodecLZ4, CodecBZ2, CodecBzip2:
		return nil
	}
	return fmt.Errorf("%w: compressor %q", ErrUnsupported, m.ID)
}

// Decompressor wraps r in a reader of decoded bytes. Callers must close the
// returned reader.
func (m *CompressionMeta) Decompressor(r io.Reader) (io.ReadCloser, error) {
	if m == nil {
		return io.NopCloser(r), nil
	}
	switch m.ID {
	case "", CodecRaw:
		return io.NopCloser(r), nil
	case CodecGzip:
		if m.UseZlib {
			return zlib.NewReader(r)
		}
		return compression.Decompressor(CodecGzip, r)
	case CodecZstd:
		return compression.Decompressor(CodecZstd, r)
	case CodecZlib:
		return zlib.NewReader(r)
	case CodecBZ2, CodecBzip2:
		return io.NopCloser(bzip2.NewReader(r)), nil
	case CodecLZ4:
		return lz4BlockReader(r)
	}
	return nil, m.Supported()
}

// lz4BlockReader decodes the numcodecs LZ4 framing: a little-endian uint32
// holding the decoded size, followed by one LZ4 block
func lz4BlockReader(r io.Reader) (io.ReadCloser, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if len(src) < 4 {
		return nil, fmt.Errorf("lz4: buffer too short (%d bytes)", len(src))
	}
	size := binary.LittleEndian.Uint32(src[:4])
	dst := make([]byte, size)
	n, err := lz4.UncompressBlock(src[4:], dst)
	if err != nil {
		return nil, fmt.Errorf("lz4: %w", err)
	}
	return io.NopCloser(bytes.NewReader(dst[:n])), nil
}

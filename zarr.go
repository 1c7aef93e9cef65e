package zarr

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Array is a handle on one chunked array in a hierarchy. Opening it reads
// metadata only; chunk payloads are fetched by a LazyArray.
type Array struct {
	path  Path
	store Store
	meta  *ArrayMeta
	attrs Attributes
}

func (*Array) node() {}

func (a *Array) Path() Path { return a.path }

func (a *Array) Meta() *ArrayMeta { return a.meta }

// Store is the store the array reads chunks from
func (a *Array) Store() Store { return a.store }

func (a *Array) Attrs() Attributes { return a.attrs }

func (a *Array) Dtype() Dtype { return a.meta.Dtype }

func (a *Array) Shape() []int { return append([]int(nil), a.meta.Shape...) }

func (a *Array) Chunks() []int { return append([]int(nil), a.meta.Chunks...) }

func (a *Array) Info() string {
	return fmt.Sprintf("<zarr.Array %q shape=%v chunks=%v dtype=%s format=%s>",
		a.path.String(), a.meta.Shape, a.meta.Chunks, a.meta.Dtype, a.meta.Format())
}

// chunkKey is the store key of the chunk at the given grid coordinates
func (a *Array) chunkKey(coords []int) string {
	var name string
	switch a.meta.Format() {
	case FormatN5:
		name = joinInts(reversed(coords), "/")
	default:
		sep := a.meta.DimensionSeparator
		if sep == "" {
			sep = "."
		}
		name = joinInts(coords, sep)
	}
	return a.path.Join(name).String()
}

func joinInts(idx []int, sep string) string {
	if len(idx) == 0 {
		return "0"
	}
	var sb strings.Builder
	for i, v := range idx {
		if i > 0 {
			sb.WriteString(sep)
		}
		sb.WriteString(strconv.Itoa(v))
	}
	return sb.String()
}

// decodedChunk is one chunk's elements as a typed slice, indexed through strides
type decodedChunk struct {
	shape   []int
	strides []int
	data    interface{}
}

// readChunk fetches and decodes one chunk, returning the number of stored
// bytes read
func (a *Array) readChunk(ctx context.Context, coords []int) (*decodedChunk, int, error) {
	raw, err := readKey(ctx, a.store, a.chunkKey(coords))
	if err != nil {
		return nil, 0, err
	}

	var ch *decodedChunk
	switch a.meta.Format() {
	case FormatN5:
		ch, err = a.decodeN5Chunk(raw)
	default:
		ch, err = a.decodeZarrChunk(raw)
	}
	return ch, len(raw), err
}

func (a *Array) decodeZarrChunk(raw []byte) (*decodedChunk, error) {
	shape := a.meta.Chunks
	ch := &decodedChunk{shape: shape}
	if a.meta.Order == "F" {
		ch.strides = fortranStrides(shape)
	} else {
		ch.strides = cStrides(shape)
	}
	data, err := a.decodeElements(bytes.NewReader(raw), product(shape))
	if err != nil {
		return nil, err
	}
	ch.data = data
	return ch, nil
}

func (a *Array) decodeN5Chunk(raw []byte) (*decodedChunk, error) {
	r := bytes.NewReader(raw)
	hdr, err := readN5BlockHeader(r)
	if err != nil {
		return nil, err
	}
	if len(hdr.Size) != len(a.meta.Shape) {
		return nil, fmt.Errorf("block rank %d doesn't match array rank %d", len(hdr.Size), len(a.meta.Shape))
	}
	shape := reversed(hdr.Size)
	for i := range shape {
		if shape[i] > a.meta.Chunks[i] {
			return nil, fmt.Errorf("block size %v exceeds chunk size %v", shape, a.meta.Chunks)
		}
	}
	if hdr.NumElements != product(shape) {
		return nil, fmt.Errorf("%w: varlength block with %d elements for size %v", ErrUnsupported, hdr.NumElements, shape)
	}
	data, err := a.decodeElements(r, hdr.NumElements)
	if err != nil {
		return nil, err
	}
	return &decodedChunk{shape: shape, strides: cStrides(shape), data: data}, nil
}

// decodeElements decompresses r and reads n elements of the array's dtype
func (a *Array) decodeElements(r io.Reader, n int) (interface{}, error) {
	dr, err := a.meta.Compressor.Decompressor(r)
	if err != nil {
		return nil, err
	}
	defer dr.Close()

	data, err := a.meta.Dtype.NewSlice(n)
	if err != nil {
		return nil, err
	}
	if err := binary.Read(dr, a.meta.Dtype.binaryOrder(), data); err != nil {
		return nil, fmt.Errorf("decoding %d %s elements: %w", n, a.meta.Dtype, err)
	}
	return data, nil
}

func cStrides(shape []int) []int {
	s := make([]int, len(shape))
	acc := 1
	for i := len(shape) - 1; i >= 0; i-- {
		s[i] = acc
		acc *= shape[i]
	}
	return s
}

func fortranStrides(shape []int) []int {
	s := make([]int, len(shape))
	acc := 1
	for i := range shape {
		s[i] = acc
		acc *= shape[i]
	}
	return s
}

func product(s []int) int {
	n := 1
	for _, v := range s {
		n *= v
	}
	return n
}

// Path is a normalized, slash-delimited location within a hierarchy. The
// empty Path is the root.
type Path []string

// NewPath normalizes a logical path so it behaves the same on every store:
//   - backward slashes become forward slashes
//   - leading, trailing and repeated slashes are dropped
//   - "." and ".." components are rejected
func NewPath(posix string) (Path, error) {
	posix = strings.ReplaceAll(posix, "\\", "/")
	var p Path
	for _, el := range strings.Split(posix, "/") {
		switch el {
		case "":
			continue
		case ".", "..":
			return nil, fmt.Errorf("%w: relative component %q in path %q", ErrInvalidInput, el, posix)
		}
		p = append(p, el)
	}
	return p, nil
}

func (p Path) String() string {
	return strings.Join(p, "/")
}

func (p Path) Shift() (head string, ch Path) {
	switch len(p) {
	case 0:
		return "", nil
	case 1:
		return p[0], nil
	default:
		return p[0], p[1:]
	}
}

// Join returns a new path. p is never modified.
func (p Path) Join(elems ...string) Path {
	out := make(Path, 0, len(p)+len(elems))
	out = append(out, p...)
	return append(out, elems...)
}

// Name is the last path component, "" for the root
func (p Path) Name() string {
	if len(p) == 0 {
		return ""
	}
	return p[len(p)-1]
}

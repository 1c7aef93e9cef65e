package zarr

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/klauspost/compress/zlib"
	"github.com/qri-io/dataset/compression"
)

// testValue gives every element of a fixture a distinct value
func testValue(idx []int) float64 {
	v := 0.0
	for _, i := range idx {
		v = v*100 + float64(i)
	}
	return v
}

// fixture describes an array written into a store by the helpers below
type fixture struct {
	path       string
	shape      []int
	chunks     []int
	dtype      string // numpy typestr for zarr, N5 name for n5
	compressor string // "", "gzip", "zlib"
	order      string
	separator  string
	attrs      map[string]interface{}
}

func putJSON(t *testing.T, s Store, key string, v interface{}) {
	t.Helper()
	d, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Put(context.Background(), key, bytes.NewReader(d)); err != nil {
		t.Fatal(err)
	}
}

func joinKey(path, name string) string {
	if path == "" {
		return name
	}
	return path + "/" + name
}

func putZarrGroup(t *testing.T, s Store, path string, attrs map[string]interface{}) {
	t.Helper()
	putJSON(t, s, joinKey(path, ".zgroup"), map[string]int{"zarr_format": 2})
	if attrs != nil {
		putJSON(t, s, joinKey(path, ".zattrs"), attrs)
	}
}

func putN5Group(t *testing.T, s Store, path string, attrs map[string]interface{}) {
	t.Helper()
	doc := map[string]interface{}{}
	for k, v := range attrs {
		doc[k] = v
	}
	if path == "" {
		doc["n5"] = "2.5.1"
	}
	putJSON(t, s, joinKey(path, "attributes.json"), doc)
}

// encodeValues writes vals in the given dtype
func encodeValues(t *testing.T, dt Dtype, vals []float64) []byte {
	t.Helper()
	data, err := dt.NewSlice(len(vals))
	if err != nil {
		t.Fatal(err)
	}
	for i, v := range vals {
		switch s := data.(type) {
		case []uint8:
			s[i] = uint8(v)
		case []uint16:
			s[i] = uint16(v)
		case []int32:
			s[i] = int32(v)
		case []float32:
			s[i] = float32(v)
		case []float64:
			s[i] = v
		default:
			t.Fatalf("no test encoder for %T", data)
		}
	}
	buf := &bytes.Buffer{}
	if err := binary.Write(buf, dt.binaryOrder(), data); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

// bzip2Payload is `bzip2 -9` output for bytes.Repeat([]byte("zarr-grid "), 64)
var bzip2Payload = []byte{
	0x42, 0x5a, 0x68, 0x39, 0x31, 0x41, 0x59, 0x26, 0x53, 0x59, 0x46, 0x63, 0x7b, 0x41,
	0x00, 0x01, 0x3f, 0x91, 0x80, 0x40, 0x02, 0x24, 0xa0, 0x10, 0x10, 0x20, 0x00, 0x50,
	0x86, 0x04, 0x05, 0x54, 0x34, 0xcd, 0x28, 0x0c, 0x02, 0x01, 0x00, 0xb0, 0x28, 0x04,
	0x02, 0x01, 0x00, 0xd1, 0x77, 0x24, 0x53, 0x85, 0x09, 0x04, 0x66, 0x37, 0xb4, 0x10,
}

func compress(t *testing.T, codec string, raw []byte) []byte {
	t.Helper()
	buf := &bytes.Buffer{}
	var w io.WriteCloser
	switch codec {
	case "", CodecRaw:
		return raw
	case CodecGzip:
		w = gzip.NewWriter(buf)
	case CodecZlib:
		w = zlib.NewWriter(buf)
	case CodecZstd:
		var err error
		if w, err = compression.Compressor(CodecZstd, buf); err != nil {
			t.Fatal(err)
		}
	default:
		t.Fatalf("no test compressor for %q", codec)
	}
	if _, err := w.Write(raw); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

// chunkValues collects the values of one chunk. Elements outside the array
// are padded with zeros when pad is set, otherwise the chunk is cropped.
func chunkValues(shape, chunks, coords []int, fortran, pad bool) (vals []float64, size []int) {
	size = make([]int, len(chunks))
	for d := range chunks {
		size[d] = chunks[d]
		if !pad && (coords[d]+1)*chunks[d] > shape[d] {
			size[d] = shape[d] - coords[d]*chunks[d]
		}
	}
	n := product(size)
	vals = make([]float64, n)
	strides := cStrides(size)
	if fortran {
		strides = fortranStrides(size)
	}
	walk := cStrides(size)
	idx := make([]int, len(size))
	for i := 0; i < n; i++ {
		rem := i
		for d := range size {
			idx[d] = rem / walk[d]
			rem %= walk[d]
		}
		off := 0
		global := make([]int, len(idx))
		inside := true
		for d := range idx {
			off += idx[d] * strides[d]
			global[d] = coords[d]*chunks[d] + idx[d]
			if global[d] >= shape[d] {
				inside = false
			}
		}
		if inside {
			vals[off] = testValue(global)
		}
	}
	return vals, size
}

// eachChunk calls fn with the coordinates of every chunk of the grid
func eachChunk(shape, chunks []int, fn func(coords []int)) {
	plan, err := NewChunkPlan(shape, chunks)
	if err != nil {
		panic(err)
	}
	for _, p := range plan.projections() {
		fn(p.ChunkCoords)
	}
}

func putZarrArray(t *testing.T, s Store, f fixture) {
	t.Helper()
	dt, err := ParseDtype(f.dtype)
	if err != nil {
		t.Fatal(err)
	}
	order := f.order
	if order == "" {
		order = "C"
	}
	meta := map[string]interface{}{
		"zarr_format": 2,
		"shape":       f.shape,
		"chunks":      f.chunks,
		"dtype":       f.dtype,
		"fill_value":  0,
		"order":       order,
		"filters":     nil,
		"compressor":  nil,
	}
	if f.compressor != "" {
		meta["compressor"] = map[string]interface{}{"id": f.compressor}
	}
	if f.separator != "" {
		meta["dimension_separator"] = f.separator
	}
	putJSON(t, s, joinKey(f.path, ".zarray"), meta)
	if f.attrs != nil {
		putJSON(t, s, joinKey(f.path, ".zattrs"), f.attrs)
	}

	sep := f.separator
	if sep == "" {
		sep = "."
	}
	eachChunk(f.shape, f.chunks, func(coords []int) {
		vals, _ := chunkValues(f.shape, f.chunks, coords, order == "F", true)
		raw := compress(t, f.compressor, encodeValues(t, dt, vals))
		key := joinKey(f.path, joinInts(coords, sep))
		if err := s.Put(context.Background(), key, bytes.NewReader(raw)); err != nil {
			t.Fatal(err)
		}
	})
}

func putN5Array(t *testing.T, s Store, f fixture) {
	t.Helper()
	dt, err := ParseN5DataType(f.dtype)
	if err != nil {
		t.Fatal(err)
	}
	doc := map[string]interface{}{
		"dimensions": reversed(f.shape),
		"blockSize":  reversed(f.chunks),
		"dataType":   f.dtype,
	}
	codec := f.compressor
	if codec == "" {
		codec = CodecRaw
	}
	switch codec {
	case CodecZlib:
		doc["compression"] = map[string]interface{}{"type": CodecGzip, "useZlib": true}
	default:
		doc["compression"] = map[string]interface{}{"type": codec}
	}
	for k, v := range f.attrs {
		doc[k] = v
	}
	putJSON(t, s, joinKey(f.path, "attributes.json"), doc)

	eachChunk(f.shape, f.chunks, func(coords []int) {
		vals, size := chunkValues(f.shape, f.chunks, coords, false, false)
		buf := &bytes.Buffer{}
		hdr := []uint16{n5ModeDefault, uint16(len(size))}
		binary.Write(buf, binary.BigEndian, hdr)
		for _, d := range reversed(size) {
			binary.Write(buf, binary.BigEndian, uint32(d))
		}
		buf.Write(compress(t, codec, encodeValues(t, dt, vals)))
		key := joinKey(f.path, joinInts(reversed(coords), "/"))
		if err := s.Put(context.Background(), key, buf); err != nil {
			t.Fatal(err)
		}
	})
}

// checkDense compares every element of d against testValue
func checkDense(t *testing.T, d *Dense, shape []int) {
	t.Helper()
	if fmt.Sprint(d.Shape) != fmt.Sprint(shape) {
		t.Fatalf("shape mismatch. want: %v got: %v", shape, d.Shape)
	}
	n := product(shape)
	idx := make([]int, len(shape))
	for i := 0; i < n; i++ {
		rem := i
		for k, st := range cStrides(shape) {
			idx[k] = rem / st
			rem %= st
		}
		want := testValue(idx)
		if got := d.At(idx...); got != want {
			t.Fatalf("element %v: want %v got %v", idx, want, got)
		}
	}
}

// faultStore wraps a store, failing reads of chosen keys and counting
// concurrent Gets
type faultStore struct {
	Store
	fail map[string]error

	mu       sync.Mutex
	inflight int
	peak     int
	gets     []string
	gate     chan struct{}
}

func (s *faultStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	s.mu.Lock()
	s.inflight++
	if s.inflight > s.peak {
		s.peak = s.inflight
	}
	s.gets = append(s.gets, key)
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.inflight--
		s.mu.Unlock()
	}()

	if s.gate != nil {
		select {
		case <-s.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err, ok := s.fail[key]; ok {
		return nil, err
	}
	return s.Store.Get(ctx, key)
}

func (s *faultStore) chunkGets() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, k := range s.gets {
		if !strings.HasSuffix(k, ".zarray") && !strings.HasSuffix(k, ".zattrs") &&
			!strings.HasSuffix(k, ".zgroup") && !strings.HasSuffix(k, ".zmetadata") &&
			!strings.HasSuffix(k, "attributes.json") {
			n++
		}
	}
	return n
}

var errBoom = errors.New("boom")

package zarr

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
)

// n5 keys that describe structure rather than user metadata
var n5StructuralKeys = []string{"dimensions", "blockSize", "dataType", "compression", "compressionType", "n5"}

type n5ArrayAttrs struct {
	Dimensions []int  `json:"dimensions"`
	BlockSize  []int  `json:"blockSize"`
	DataType   string `json:"dataType"`
	// pre 2.0 containers name the codec directly
	CompressionType string          `json:"compressionType"`
	RawCompression  json.RawMessage `json:"compression"`
}

type n5Compression struct {
	Type    string `json:"type"`
	Level   int    `json:"level"`
	UseZlib bool   `json:"useZlib"`
}

// parseN5Node decodes an attributes.json document. meta is nil for groups.
func parseN5Node(data []byte) (meta *ArrayMeta, attrs Attributes, err error) {
	attrs = Attributes{}
	if err := json.Unmarshal(data, &attrs); err != nil {
		return nil, nil, fmt.Errorf("reading n5 attributes: %w", err)
	}

	_, hasDims := attrs["dimensions"]
	_, hasType := attrs["dataType"]
	if hasDims && hasType {
		if err := validateArrayDoc(FormatN5, data); err != nil {
			return nil, nil, err
		}
		na := n5ArrayAttrs{}
		if err := json.Unmarshal(data, &na); err != nil {
			return nil, nil, fmt.Errorf("reading n5 array attributes: %w", err)
		}
		if meta, err = na.arrayMeta(); err != nil {
			return nil, nil, err
		}
	}

	for _, k := range n5StructuralKeys {
		delete(attrs, k)
	}
	return meta, attrs, nil
}

// arrayMeta converts N5's fastest-first axes to slowest-first
func (na n5ArrayAttrs) arrayMeta() (*ArrayMeta, error) {
	dt, err := ParseN5DataType(na.DataType)
	if err != nil {
		return nil, err
	}

	comp := &CompressionMeta{ID: CodecRaw}
	if len(na.RawCompression) > 0 && string(na.RawCompression) != "null" {
		nc := n5Compression{}
		if err := json.Unmarshal(na.RawCompression, &nc); err != nil {
			return nil, fmt.Errorf("reading n5 compression: %w", err)
		}
		comp = &CompressionMeta{ID: nc.Type, Level: nc.Level, UseZlib: nc.UseZlib}
	} else if na.CompressionType != "" {
		comp = &CompressionMeta{ID: na.CompressionType}
	}

	m := &ArrayMeta{
		Shape:      reversed(na.Dimensions),
		Chunks:     reversed(na.BlockSize),
		Dtype:      dt,
		Compressor: comp,
		Order:      "C",
		format:     FormatN5,
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

const (
	n5ModeDefault uint16 = iota
	n5ModeVarlength
	n5ModeObject
)

// n5BlockHeader precedes the (compressed) payload of every N5 block. Size is
// the actual extent of the block, fastest axis first; edge blocks are cropped.
type n5BlockHeader struct {
	Mode        uint16
	Size        []int
	NumElements int
}

func readN5BlockHeader(r io.Reader) (h n5BlockHeader, err error) {
	var fixed [2]uint16
	if err = binary.Read(r, binary.BigEndian, &fixed); err != nil {
		return h, fmt.Errorf("reading n5 block header: %w", err)
	}
	h.Mode = fixed[0]
	if h.Mode == n5ModeObject {
		return h, fmt.Errorf("%w: n5 object blocks", ErrUnsupported)
	}

	dims := make([]uint32, fixed[1])
	if err = binary.Read(r, binary.BigEndian, dims); err != nil {
		return h, fmt.Errorf("reading n5 block size: %w", err)
	}
	h.Size = make([]int, len(dims))
	h.NumElements = 1
	for i, d := range dims {
		h.Size[i] = int(d)
		h.NumElements *= int(d)
	}

	if h.Mode == n5ModeVarlength {
		var n uint32
		if err = binary.Read(r, binary.BigEndian, &n); err != nil {
			return h, fmt.Errorf("reading n5 element count: %w", err)
		}
		h.NumElements = int(n)
	}
	return h, nil
}

func reversed(s []int) []int {
	if s == nil {
		return nil
	}
	r := make([]int, len(s))
	for i, v := range s {
		r[len(s)-1-i] = v
	}
	return r
}

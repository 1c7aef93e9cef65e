package zarr

import (
	"encoding/json"
	"fmt"
	"sort"
)

type MetaType string

const (
	// MTAttributes stores userland metadata keyed by array name
	MTAttributes MetaType = ".zattrs"
	// MTArray is the key for storing metadata on an array store
	MTArray MetaType = ".zarray"
	// MTGroup is the key for storing group definitions on an array store
	MTGroup MetaType = ".zgroup"
	// MTMetadata is the key for composite metadata
	MTMetadata MetaType = ".zmetadata"
	// MTN5Attributes holds both structure and user attributes of an N5 node
	MTN5Attributes MetaType = "attributes.json"
)

// Format is the on-store layout of a hierarchy
type Format string

const (
	FormatZarr Format = "zarr"
	FormatN5   Format = "n5"
)

type MetaTyper interface {
	MetaType() MetaType
}

var metaTypes = map[MetaType]struct{}{
	MTAttributes: {},
	MTArray:      {},
	MTGroup:      {},
}

// relies on the fact that all keynames are 7 characters long
func KeyMetaType(s string) (mt MetaType, ok bool) {
	if len(s) < 7 {
		return mt, false
	}
	mt = MetaType(s[len(s)-7:])
	_, ok = metaTypes[mt]
	return mt, ok
}

type Attributes map[string]interface{}

func (Attributes) MetaType() MetaType { return MTAttributes }

// Keys returns attribute names in sorted order
func (a Attributes) Keys() []string {
	keys := make([]string, 0, len(a))
	for k := range a {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ConsolidatedMetadata is the content of a root .zmetadata key: every
// metadata document in the hierarchy keyed by its store key
type ConsolidatedMetadata struct {
	ConsolidatedFormat int                  `json:"zarr_consolidated_format"`
	Metadata           map[string]MetaTyper `json:"metadata"`
}

type consolidatedMetaDecoder struct {
	ConsolidatedFormat int                        `json:"zarr_consolidated_format"`
	Metadata           map[string]json.RawMessage `json:"metadata"`
}

func (m *ConsolidatedMetadata) UnmarshalJSON(d []byte) error {
	cd := consolidatedMetaDecoder{}
	if err := json.Unmarshal(d, &cd); err != nil {
		return err
	}
	cm := ConsolidatedMetadata{
		ConsolidatedFormat: cd.ConsolidatedFormat,
		Metadata:           map[string]MetaTyper{},
	}

	for key, data := range cd.Metadata {
		kt, ok := KeyMetaType(key)
		if !ok {
			return fmt.Errorf("invalid consoldated metadata key: %q", key)
		}

		switch kt {
		case MTArray:
			if err := validateArrayDoc(FormatZarr, data); err != nil {
				return fmt.Errorf("reading %q metadata: %w", key, err)
			}
			arr := &ArrayMeta{}
			if err := json.Unmarshal(data, arr); err != nil {
				return fmt.Errorf("reading %q metadata: %w", key, err)
			}
			cm.Metadata[key] = arr
		case MTAttributes:
			attr := Attributes{}
			if err := json.Unmarshal(data, &attr); err != nil {
				return fmt.Errorf("reading %q attributes: %w", key, err)
			}
			cm.Metadata[key] = attr
		case MTGroup:
			grp := &GroupMeta{}
			if err := json.Unmarshal(data, grp); err != nil {
				return fmt.Errorf("reading %q group: %w", key, err)
			}
			cm.Metadata[key] = grp
		}
	}

	*m = cm
	return nil
}

// Dirs lists the immediate child directories of prefix that hold metadata,
// sorted lexically like an object store listing
func (m *ConsolidatedMetadata) Dirs(prefix string) []string {
	prefix = dirPrefix(prefix)
	seen := map[string]struct{}{}
	var dirs []string
	for key := range m.Metadata {
		if len(key) <= len(prefix) || key[:len(prefix)] != prefix {
			continue
		}
		rest := key[len(prefix):]
		for i := 0; i < len(rest); i++ {
			if rest[i] == '/' {
				if _, ok := seen[rest[:i]]; !ok && i > 0 {
					seen[rest[:i]] = struct{}{}
					dirs = append(dirs, rest[:i])
				}
				break
			}
		}
	}
	sort.Strings(dirs)
	return dirs
}

// Each array requires essential configuration metadata to be stored,
// enabling correct interpretation of the stored data.
// This metadata is encoded using JSON and stored as the value of the
// “.zarray” key within an array store. N5 arrays are converted into the
// same form with their axes reversed so that Shape is slowest-first.
type ArrayMeta struct {
	// An integer defining the version of the storage specification to which
	// the array store adheres.
	ZarrFormat int `json:"zarr_format"`
	// A list of integers defining the length of each dimension of the array.
	Shape []int `json:"shape"`
	// A list of integers defining the length of each dimension of a chunk of the
	// array. Note that all chunks within a Zarr array have the same shape.
	Chunks []int `json:"chunks"`
	// A string defining a valid data type for the array.
	Dtype Dtype `json:"dtype"`
	// A JSON object identifying the primary compression codec and providing
	// configuration parameters, or null if no compressor is to be used.
	Compressor *CompressionMeta `json:"compressor"`
	// A scalar value providing the default value to use for uninitialized
	// portions of the array, or null if no fill_value is to be used.
	FillValue interface{} `json:"fill_value"`
	// Either “C” or “F”, defining the layout of bytes within each chunk of the
	// array. “C” means row-major order, i.e., the last dimension varies fastest;
	// “F” means column-major order, i.e., the first dimension varies fastest.
	Order string `json:"order"`
	// A list of JSON objects providing codec configurations, or null if no
	// filters are to be applied.
	Filters []Filter `json:"filters"`

	// If present, either the string "." or "/"" definining the separator placed
	// between the dimensions of a chunk. If the value is not set, then the
	// default MUST be assumed to be ".", leading to chunk keys of the form “0.0”.
	DimensionSeparator string `json:"dimension_separator,omitempty"`

	format Format
}

func (a ArrayMeta) MetaType() MetaType { return MTArray }

// Validate checks the structural fields every array needs
func (a *ArrayMeta) Validate() error {
	if len(a.Shape) != len(a.Chunks) {
		return fmt.Errorf("shape %v and chunks %v differ in rank", a.Shape, a.Chunks)
	}
	for i := range a.Shape {
		if a.Shape[i] < 0 {
			return fmt.Errorf("negative dimension %d in shape %v", i, a.Shape)
		}
		if a.Chunks[i] <= 0 {
			return fmt.Errorf("chunk size must be positive, got %v", a.Chunks)
		}
	}
	switch a.Order {
	case "", "C", "F":
	default:
		return fmt.Errorf("invalid order %q", a.Order)
	}
	return nil
}

// Decodable reports ErrUnsupported for anything the materializer can't read
func (a *ArrayMeta) Decodable() error {
	if _, err := a.Dtype.NewSlice(0); err != nil {
		return err
	}
	if err := a.Compressor.Supported(); err != nil {
		return err
	}
	if len(a.Filters) > 0 {
		return fmt.Errorf("%w: %d filter(s), first %q", ErrUnsupported, len(a.Filters), a.Filters[0].ID)
	}
	return nil
}

// Format is the layout chunks of this array are stored in
func (a *ArrayMeta) Format() Format {
	if a.format == "" {
		return FormatZarr
	}
	return a.format
}

type Filter struct {
	ID     string `json:"id"`
	Delta  string `json:"delta,omitempty"`
	Dtype  string `json:"dtype,omitempty"`
	AsType string `json:"astype,omitempty"`
}

const (
	// Not a Number
	FillValueNaN = "NaN"
	// Infinity
	FillValueInfinity = "Infinity"
	// -Infinity
	FillValueNegativeInfinity = "-Infinity"
)

// GroupMeta is stored under the “.zgroup” key. A group exists at logical path
// “foo/bar” if the “foo/bar/.zgroup” key exists in the store.
type GroupMeta struct {
	ZarrFormat int `json:"zarr_format"`
}

func (GroupMeta) MetaType() MetaType { return MTGroup }

package zarr

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Field is a named point-data array of a grid
type Field struct {
	Name   string
	Dtype  Dtype
	Values interface{}
}

func (f *Field) Len() int {
	if f == nil || f.Values == nil {
		return 0
	}
	return lenSlice(f.Values)
}

// RectilinearGrid is a 3D grid with independent per-axis coordinates. Points
// are visited with X varying fastest, then Y, then Z, and every field lists
// its values in that order.
type RectilinearGrid struct {
	Dimensions   [3]int
	XCoordinates []float64
	YCoordinates []float64
	ZCoordinates []float64
	PointData    []Field
}

// NumPoints is the number of grid points
func (g *RectilinearGrid) NumPoints() int {
	return g.Dimensions[0] * g.Dimensions[1] * g.Dimensions[2]
}

// Field returns the named point-data field, or nil
func (g *RectilinearGrid) Field(name string) *Field {
	for i := range g.PointData {
		if g.PointData[i].Name == name {
			return &g.PointData[i]
		}
	}
	return nil
}

// Copy returns a deep copy
func (g *RectilinearGrid) Copy() *RectilinearGrid {
	out := &RectilinearGrid{
		Dimensions:   g.Dimensions,
		XCoordinates: append([]float64(nil), g.XCoordinates...),
		YCoordinates: append([]float64(nil), g.YCoordinates...),
		ZCoordinates: append([]float64(nil), g.ZCoordinates...),
	}
	for _, f := range g.PointData {
		out.PointData = append(out.PointData, Field{Name: f.Name, Dtype: f.Dtype, Values: cloneSlice(f.Values)})
	}
	return out
}

// Linspace returns n evenly spaced values from 0 to extent inclusive:
// coord[i] = extent*i/(n-1). A single sample is [0].
func Linspace(extent float64, n int) []float64 {
	if n <= 0 {
		return []float64{}
	}
	if n == 1 {
		return []float64{0}
	}
	out := make([]float64, n)
	for i := range out {
		out[i] = extent * float64(i) / float64(n-1)
	}
	out[n-1] = extent
	return out
}

// ResolutionFromAttrs reads the physical extent per axis from attrs. key is
// a slash-delimited path into nested attribute objects, e.g.
// "pixelResolution/dimensions". The value may also be an object carrying a
// "dimensions" list.
func ResolutionFromAttrs(attrs Attributes, key string) ([]float64, error) {
	if key == "" {
		key = DefaultResolutionKey
	}
	var v interface{} = map[string]interface{}(attrs)
	for _, name := range strings.Split(strings.Trim(key, "/"), "/") {
		m, ok := v.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("%w: %q is not an object", ErrMissingResolutionMetadata, name)
		}
		if v, ok = m[name]; !ok {
			return nil, fmt.Errorf("%w: no attribute %q", ErrMissingResolutionMetadata, key)
		}
	}
	if m, ok := v.(map[string]interface{}); ok {
		v = m["dimensions"]
	}

	list, ok := v.([]interface{})
	if !ok {
		return nil, fmt.Errorf("%w: %q is %T, want a list of 3 numbers", ErrMissingResolutionMetadata, key, v)
	}
	if len(list) != 3 {
		return nil, fmt.Errorf("%w: %q has %d values, want 3", ErrMissingResolutionMetadata, key, len(list))
	}
	out := make([]float64, len(list))
	for i, el := range list {
		f, ok := el.(float64)
		if !ok {
			return nil, fmt.Errorf("%w: %q element %d is %T, want a number", ErrMissingResolutionMetadata, key, i, el)
		}
		out[i] = f
	}
	return out, nil
}

// Resolution reads the array's physical extents in the array's axis order.
// N5 attributes list axes fastest-first, so they are reversed to match Shape.
func (a *Array) Resolution(key string) ([]float64, error) {
	res, err := ResolutionFromAttrs(a.attrs, key)
	if err != nil {
		return nil, fmt.Errorf("array %q: %w", a.path.String(), err)
	}
	if a.meta.Format() == FormatN5 {
		res = reversedFloats(res)
	}
	return res, nil
}

// Assemble builds a grid from a rank 3 dense array in native (slow, medium,
// fast) axis order and the physical extents of those same axes. The grid's
// X axis is the array's fastest axis: dimensions are the reversed shape and
// each coordinate axis spans its reversed extent.
func Assemble(dense *Dense, extents []float64, fieldName string) (*RectilinearGrid, error) {
	if dense == nil || dense.Rank() != 3 {
		rank := 0
		if dense != nil {
			rank = dense.Rank()
		}
		return nil, fmt.Errorf("%w: volumetric grids need a rank 3 array, got rank %d", ErrShapeMismatch, rank)
	}
	if len(extents) != 3 {
		return nil, fmt.Errorf("%w: need 3 extents, got %d", ErrMissingResolutionMetadata, len(extents))
	}
	if fieldName == "" {
		fieldName = DefaultFieldName
	}

	src := dense
	if src.Order != "C" {
		var err error
		if src, err = dense.WithOrder("C"); err != nil {
			return nil, err
		}
	}
	// the reversed array is laid out first-axis-fastest: the grid's point order
	rev := src.ReverseAxes()
	ext := reversedFloats(extents)

	g := &RectilinearGrid{
		Dimensions:   [3]int{rev.Shape[0], rev.Shape[1], rev.Shape[2]},
		XCoordinates: Linspace(ext[0], rev.Shape[0]),
		YCoordinates: Linspace(ext[1], rev.Shape[1]),
		ZCoordinates: Linspace(ext[2], rev.Shape[2]),
		PointData: []Field{
			{Name: fieldName, Dtype: rev.Dtype, Values: rev.Data},
		},
	}
	return g, nil
}

// AssembleInto is Assemble writing into out. out is only modified once the
// whole grid has been built.
func AssembleInto(out *RectilinearGrid, dense *Dense, extents []float64, fieldName string) error {
	g, err := Assemble(dense, extents, fieldName)
	if err != nil {
		return err
	}
	*out = *g
	return nil
}

// PullOptions configure one run of the pipeline
type PullOptions struct {
	Store         StoreOptions
	Materialize   MaterializeOptions
	ResolutionKey string
	FieldName     string
}

// Pull runs the whole pipeline: resolve the array at path in the store at
// location, materialize it, and assemble a grid. The store is opened for this
// call only.
func Pull(ctx context.Context, location, path string, opts PullOptions) (*RectilinearGrid, error) {
	start := time.Now()
	a, err := ResolveLocation(ctx, location, path, opts.Store)
	if err != nil {
		return nil, err
	}
	defer CloseStore(a.Store())
	Debugf("resolved %s\n", a.Info())

	// check metadata before fetching anything
	extents, err := a.Resolution(opts.ResolutionKey)
	if err != nil {
		return nil, err
	}
	if len(a.meta.Shape) != 3 {
		return nil, fmt.Errorf("%w: array %q has shape %v, want 3 dimensions", ErrShapeMismatch, a.path.String(), a.meta.Shape)
	}

	dense, err := Materialize(ctx, a, opts.Materialize)
	if err != nil {
		return nil, err
	}
	g, err := Assemble(dense, extents, opts.FieldName)
	if err != nil {
		return nil, err
	}
	Infof("pulled %q from %s: grid %v in %s\n", path, location, g.Dimensions, time.Since(start))
	return g, nil
}

func reversedFloats(s []float64) []float64 {
	r := make([]float64, len(s))
	for i, v := range s {
		r[len(s)-1-i] = v
	}
	return r
}

func lenSlice(data interface{}) int {
	switch s := data.(type) {
	case []bool:
		return len(s)
	case []int8:
		return len(s)
	case []int16:
		return len(s)
	case []int32:
		return len(s)
	case []int64:
		return len(s)
	case []uint8:
		return len(s)
	case []uint16:
		return len(s)
	case []uint32:
		return len(s)
	case []uint64:
		return len(s)
	case []float32:
		return len(s)
	case []float64:
		return len(s)
	case []complex64:
		return len(s)
	case []complex128:
		return len(s)
	}
	return 0
}

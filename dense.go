package zarr

import (
	"fmt"
	"math"
	"math/cmplx"
)

// Dense is a fully materialized array in contiguous memory. Data is a typed
// slice matching Dtype, e.g. []float32 for "<f4".
type Dense struct {
	Shape []int
	Dtype Dtype
	// Order is "C" (last axis varies fastest) or "F" (first axis fastest)
	Order string
	Data  interface{}
}

// NewDense allocates a zeroed C-ordered array
func NewDense(shape []int, dt Dtype) (*Dense, error) {
	data, err := dt.NewSlice(product(shape))
	if err != nil {
		return nil, err
	}
	return &Dense{
		Shape: append([]int(nil), shape...),
		Dtype: dt,
		Order: "C",
		Data:  data,
	}, nil
}

func (d *Dense) Rank() int { return len(d.Shape) }

func (d *Dense) Len() int { return product(d.Shape) }

func (d *Dense) strides() []int {
	if d.Order == "F" {
		return fortranStrides(d.Shape)
	}
	return cStrides(d.Shape)
}

// Index is the flat position of an element in Data
func (d *Dense) Index(idx ...int) int {
	if len(idx) != len(d.Shape) {
		panic(fmt.Sprintf("zarr: %d indices for rank %d array", len(idx), len(d.Shape)))
	}
	st := d.strides()
	off := 0
	for i, v := range idx {
		if v < 0 || v >= d.Shape[i] {
			panic(fmt.Sprintf("zarr: index %v out of bounds for shape %v", idx, d.Shape))
		}
		off += v * st[i]
	}
	return off
}

// At returns an element converted to float64. Complex values yield their
// magnitude.
func (d *Dense) At(idx ...int) float64 {
	return valueAt(d.Data, d.Index(idx...))
}

// Float64s converts every element in storage order
func (d *Dense) Float64s() []float64 {
	out := make([]float64, d.Len())
	for i := range out {
		out[i] = valueAt(d.Data, i)
	}
	return out
}

// ReverseAxes returns the array with its axes in reverse order: element
// (i, j, k) of the result is element (k, j, i) of d. The result has the
// opposite Order, so it shares d's element sequence; Data is copied and d is
// left untouched.
func (d *Dense) ReverseAxes() *Dense {
	order := "F"
	if d.Order == "F" {
		order = "C"
	}
	return &Dense{
		Shape: ReverseAxes(d.Shape),
		Dtype: d.Dtype,
		Order: order,
		Data:  cloneSlice(d.Data),
	}
}

// WithOrder returns a copy of d laid out in the given order
func (d *Dense) WithOrder(order string) (*Dense, error) {
	if order != "C" && order != "F" {
		return nil, fmt.Errorf("invalid order %q", order)
	}
	if order == d.Order || d.Rank() < 2 {
		out := *d
		out.Shape = append([]int(nil), d.Shape...)
		out.Data = cloneSlice(d.Data)
		out.Order = order
		return &out, nil
	}
	out, err := d.Dtype.NewSlice(d.Len())
	if err != nil {
		return nil, err
	}
	dstStrides := cStrides(d.Shape)
	if order == "F" {
		dstStrides = fortranStrides(d.Shape)
	}
	zero := make([]int, d.Rank())
	if err := copyRegion(out, dstStrides, zero, d.Data, d.strides(), d.Shape); err != nil {
		return nil, err
	}
	return &Dense{Shape: append([]int(nil), d.Shape...), Dtype: d.Dtype, Order: order, Data: out}, nil
}

// ReverseAxes reverses a shape tuple. Applying it twice is the identity.
func ReverseAxes(shape []int) []int {
	return reversed(shape)
}

func valueAt(data interface{}, i int) float64 {
	switch s := data.(type) {
	case []bool:
		if s[i] {
			return 1
		}
		return 0
	case []int8:
		return float64(s[i])
	case []int16:
		return float64(s[i])
	case []int32:
		return float64(s[i])
	case []int64:
		return float64(s[i])
	case []uint8:
		return float64(s[i])
	case []uint16:
		return float64(s[i])
	case []uint32:
		return float64(s[i])
	case []uint64:
		return float64(s[i])
	case []float32:
		return float64(s[i])
	case []float64:
		return s[i]
	case []complex64:
		return cmplx.Abs(complex128(s[i]))
	case []complex128:
		return cmplx.Abs(s[i])
	}
	return math.NaN()
}

func cloneSlice(data interface{}) interface{} {
	switch s := data.(type) {
	case []bool:
		return append([]bool(nil), s...)
	case []int8:
		return append([]int8(nil), s...)
	case []int16:
		return append([]int16(nil), s...)
	case []int32:
		return append([]int32(nil), s...)
	case []int64:
		return append([]int64(nil), s...)
	case []uint8:
		return append([]uint8(nil), s...)
	case []uint16:
		return append([]uint16(nil), s...)
	case []uint32:
		return append([]uint32(nil), s...)
	case []uint64:
		return append([]uint64(nil), s...)
	case []float32:
		return append([]float32(nil), s...)
	case []float64:
		return append([]float64(nil), s...)
	case []complex64:
		return append([]complex64(nil), s...)
	case []complex128:
		return append([]complex128(nil), s...)
	}
	return nil
}

// copyRegion copies the block of the given extent from the start of src into
// dst at dstOff. Strides are in elements. dst and src must be slices of the
// same element type.
func copyRegion(dst interface{}, dstStrides, dstOff []int, src interface{}, srcStrides, extent []int) error {
	switch d := dst.(type) {
	case []bool:
		return copyTyped(d, dstStrides, dstOff, src, srcStrides, extent)
	case []int8:
		return copyTyped(d, dstStrides, dstOff, src, srcStrides, extent)
	case []int16:
		return copyTyped(d, dstStrides, dstOff, src, srcStrides, extent)
	case []int32:
		return copyTyped(d, dstStrides, dstOff, src, srcStrides, extent)
	case []int64:
		return copyTyped(d, dstStrides, dstOff, src, srcStrides, extent)
	case []uint8:
		return copyTyped(d, dstStrides, dstOff, src, srcStrides, extent)
	case []uint16:
		return copyTyped(d, dstStrides, dstOff, src, srcStrides, extent)
	case []uint32:
		return copyTyped(d, dstStrides, dstOff, src, srcStrides, extent)
	case []uint64:
		return copyTyped(d, dstStrides, dstOff, src, srcStrides, extent)
	case []float32:
		return copyTyped(d, dstStrides, dstOff, src, srcStrides, extent)
	case []float64:
		return copyTyped(d, dstStrides, dstOff, src, srcStrides, extent)
	case []complex64:
		return copyTyped(d, dstStrides, dstOff, src, srcStrides, extent)
	case []complex128:
		return copyTyped(d, dstStrides, dstOff, src, srcStrides, extent)
	}
	return fmt.Errorf("%w: element slice %T", ErrUnsupported, dst)
}

func copyTyped[T any](dst []T, dstStrides, dstOff []int, srcAny interface{}, srcStrides, extent []int) error {
	src, ok := srcAny.([]T)
	if !ok {
		return fmt.Errorf("element type mismatch: %T into %T", srcAny, dst)
	}
	rank := len(extent)
	if rank == 0 {
		dst[0] = src[0]
		return nil
	}
	for _, e := range extent {
		if e == 0 {
			return nil
		}
	}

	base := 0
	for i, o := range dstOff {
		base += o * dstStrides[i]
	}
	last := rank - 1
	idx := make([]int, rank)
	for {
		di, si := base, 0
		for d := 0; d < last; d++ {
			di += idx[d] * dstStrides[d]
			si += idx[d] * srcStrides[d]
		}
		ds, ss := dstStrides[last], srcStrides[last]
		if ds == 1 && ss == 1 {
			copy(dst[di:di+extent[last]], src[si:si+extent[last]])
		} else {
			for k := 0; k < extent[last]; k++ {
				dst[di+k*ds] = src[si+k*ss]
			}
		}

		d := last - 1
		for ; d >= 0; d-- {
			idx[d]++
			if idx[d] < extent[d] {
				break
			}
			idx[d] = 0
		}
		if d < 0 {
			return nil
		}
	}
}

package zarr

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Dtype is a zarr data type.
// Simple data types as a string following the NumPy array protocol type string
// (typestr) format. The format consists of 3 parts:
//   - One character describing the byteorder of the data:
//     "<": little-endian; ">": big-endian; "|": not-relevant)
//   - One character code giving the basic type of the array
//   - An integer specifying the number of bytes the type uses.
//
// Within the zarr format byte order MUST be specified. N5 data types are
// mapped onto the same representation, always big-endian.
type Dtype struct {
	ByteOrder ByteOrder
	BasicType BasicType
	ByteSize  int
	Units     string
}

var (
	_ json.Unmarshaler = (*Dtype)(nil)
	_ json.Marshaler   = (*Dtype)(nil)
)

func ParseDtype(s string) (dt Dtype, err error) {
	// bug in python implementation uses HTML escape sequences when serializaing JSON
	s = strings.Replace(s, "&lt;", "<", 1)
	s = strings.Replace(s, "&gt;", ">", 1)

	if len(s) < 3 {
		return dt, fmt.Errorf("invalid Dtype string. %q is too short", s)
	}

	boByte, s := s[0], s[1:]
	dt.ByteOrder, err = ParseByteOrder(rune(boByte))
	if err != nil {
		return dt, err
	}

	typeByte, s := s[0], s[1:]
	dt.BasicType, err = ParseBasicType(rune(typeByte))
	if err != nil {
		return dt, err
	}

	sizeStr, unitStr := s, ""
	if i := strings.IndexByte(s, '['); i >= 0 {
		sizeStr, unitStr = s[:i], s[i:]
	}

	size, err := strconv.ParseInt(sizeStr, 10, 0)
	if err != nil {
		return dt, fmt.Errorf("invalid Dtype size %q: %w", sizeStr, err)
	}
	dt.ByteSize = int(size)
	dt.Units = unitStr

	return dt, nil
}

var n5DataTypes = map[string]Dtype{
	"uint8":   {ByteOrder: BONotRelevant, BasicType: BTUnsigned, ByteSize: 1},
	"uint16":  {ByteOrder: BOBigEndian, BasicType: BTUnsigned, ByteSize: 2},
	"uint32":  {ByteOrder: BOBigEndian, BasicType: BTUnsigned, ByteSize: 4},
	"uint64":  {ByteOrder: BOBigEndian, BasicType: BTUnsigned, ByteSize: 8},
	"int8":    {ByteOrder: BONotRelevant, BasicType: BTInteger, ByteSize: 1},
	"int16":   {ByteOrder: BOBigEndian, BasicType: BTInteger, ByteSize: 2},
	"int32":   {ByteOrder: BOBigEndian, BasicType: BTInteger, ByteSize: 4},
	"int64":   {ByteOrder: BOBigEndian, BasicType: BTInteger, ByteSize: 8},
	"float32": {ByteOrder: BOBigEndian, BasicType: BTFloatingPoint, ByteSize: 4},
	"float64": {ByteOrder: BOBigEndian, BasicType: BTFloatingPoint, ByteSize: 8},
}

// ParseN5DataType maps an N5 "dataType" name to a Dtype
func ParseN5DataType(s string) (Dtype, error) {
	dt, ok := n5DataTypes[s]
	if !ok {
		return dt, fmt.Errorf("%w: n5 data type %q", ErrUnsupported, s)
	}
	return dt, nil
}

func (dt Dtype) String() string {
	s := fmt.Sprintf("%s%s%d", string(dt.ByteOrder), string(dt.BasicType), dt.ByteSize)
	if dt.Units != "" {
		s += dt.Units
	}
	return s
}

func (dt Dtype) MarshalJSON() ([]byte, error) {
	return json.Marshal(dt.String())
}

func (dt *Dtype) UnmarshalJSON(d []byte) error {
	var s string
	if err := json.Unmarshal(d, &s); err != nil {
		// structured dtypes are lists
		return fmt.Errorf("%w: structured dtype %s", ErrUnsupported, string(d))
	}
	t, err := ParseDtype(s)
	if err != nil {
		return err
	}

	*dt = t
	return nil
}

// binaryOrder is the byte order chunk payloads of this type are encoded in
func (dt Dtype) binaryOrder() binary.ByteOrder {
	if dt.ByteOrder == BOLittleEndian {
		return binary.LittleEndian
	}
	return binary.BigEndian
}

// NewSlice allocates a typed slice of n elements for this dtype
func (dt Dtype) NewSlice(n int) (interface{}, error) {
	switch dt.BasicType {
	case BTBoolean:
		if dt.ByteSize == 1 {
			return make([]bool, n), nil
		}
	case BTInteger:
		switch dt.ByteSize {
		case 1:
			return make([]int8, n), nil
		case 2:
			return make([]int16, n), nil
		case 4:
			return make([]int32, n), nil
		case 8:
			return make([]int64, n), nil
		}
	case BTUnsigned:
		switch dt.ByteSize {
		case 1:
			return make([]uint8, n), nil
		case 2:
			return make([]uint16, n), nil
		case 4:
			return make([]uint32, n), nil
		case 8:
			return make([]uint64, n), nil
		}
	case BTFloatingPoint:
		switch dt.ByteSize {
		case 4:
			return make([]float32, n), nil
		case 8:
			return make([]float64, n), nil
		}
	case BTComplex:
		switch dt.ByteSize {
		case 8:
			return make([]complex64, n), nil
		case 16:
			return make([]complex128, n), nil
		}
	}
	return nil, fmt.Errorf("%w: dtype %s (%s)", ErrUnsupported, dt, dt.BasicType.Human())
}

// fillSlice sets every element of a typed slice to v
func fillSlice(data interface{}, v float64) {
	switch s := data.(type) {
	case []bool:
		fillAll(s, v != 0)
	case []int8:
		fillAll(s, int8(v))
	case []int16:
		fillAll(s, int16(v))
	case []int32:
		fillAll(s, int32(v))
	case []int64:
		fillAll(s, int64(v))
	case []uint8:
		fillAll(s, uint8(v))
	case []uint16:
		fillAll(s, uint16(v))
	case []uint32:
		fillAll(s, uint32(v))
	case []uint64:
		fillAll(s, uint64(v))
	case []float32:
		fillAll(s, float32(v))
	case []float64:
		fillAll(s, v)
	case []complex64:
		fillAll(s, complex(float32(v), 0))
	case []complex128:
		fillAll(s, complex(v, 0))
	}
}

func fillAll[T any](s []T, v T) {
	for i := range s {
		s[i] = v
	}
}

// fillValue interprets an array's fill_value. ok is false for null.
func fillValue(v interface{}) (f float64, ok bool) {
	switch x := v.(type) {
	case nil:
		return 0, false
	case float64:
		return x, true
	case bool:
		if x {
			return 1, true
		}
		return 0, true
	case string:
		switch x {
		case FillValueNaN:
			return math.NaN(), true
		case FillValueInfinity:
			return math.Inf(1), true
		case FillValueNegativeInfinity:
			return math.Inf(-1), true
		}
	}
	return 0, false
}

type ByteOrder rune

func ParseByteOrder(r rune) (ByteOrder, error) {
	o := ByteOrder(r)
	if _, ok := byteOrders[o]; !ok {
		return o, fmt.Errorf("unsupported byte order format: %q", r)
	}
	return o, nil
}

const (
	BONotRelevant  ByteOrder = '|'
	BOLittleEndian ByteOrder = '<'
	BOBigEndian    ByteOrder = '>'
)

var byteOrders = map[ByteOrder]struct{}{
	BONotRelevant:  {},
	BOLittleEndian: {},
	BOBigEndian:    {},
}

type BasicType rune

func ParseBasicType(r rune) (BasicType, error) {
	t := BasicType(r)
	if _, ok := supportedBasicTypes[t]; !ok {
		return t, fmt.Errorf("unsupported basic type: %q", r)
	}
	return t, nil
}

func (bt BasicType) Human() string {
	return supportedBasicTypes[bt]
}

const (
	BTBoolean       BasicType = 'b'
	BTInteger       BasicType = 'i'
	BTUnsigned      BasicType = 'u'
	BTFloatingPoint BasicType = 'f'
	BTComplex       BasicType = 'c'
	BTTimedelta     BasicType = 'm'
	BTDatetime      BasicType = 'M'
	BTString        BasicType = 'S'
	BTUnicode       BasicType = 'U'
	BTOther         BasicType = 'V'
)

var supportedBasicTypes = map[BasicType]string{
	BTBoolean:       "bool",
	BTInteger:       "int",
	BTUnsigned:      "uint",
	BTFloatingPoint: "float",
	BTComplex:       "complex",
	BTTimedelta:     "timeDelta",
	BTDatetime:      "dateTime",
	BTString:        "string",
	BTUnicode:       "unicode",
	BTOther:         "other",
}

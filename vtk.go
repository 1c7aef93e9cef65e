package zarr

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"strings"
)

// vtkScalarType names the legacy VTK type of a field's element slice
func vtkScalarType(values interface{}) (string, error) {
	switch values.(type) {
	case []bool, []uint8:
		return "unsigned_char", nil
	case []int8:
		return "char", nil
	case []int16:
		return "short", nil
	case []uint16:
		return "unsigned_short", nil
	case []int32:
		return "int", nil
	case []uint32:
		return "unsigned_int", nil
	case []int64:
		return "vtktypeint64", nil
	case []uint64:
		return "vtktypeuint64", nil
	case []float32:
		return "float", nil
	case []float64:
		return "double", nil
	}
	return "", fmt.Errorf("%w: no VTK scalar type for %T", ErrUnsupported, values)
}

// WriteVTK writes g as a legacy VTK RECTILINEAR_GRID file with binary
// (big-endian) payloads
func WriteVTK(w io.Writer, g *RectilinearGrid, title string) error {
	if n := g.NumPoints(); len(g.XCoordinates)*len(g.YCoordinates)*len(g.ZCoordinates) != n {
		return fmt.Errorf("%w: coordinates don't match dimensions %v", ErrShapeMismatch, g.Dimensions)
	}
	for _, f := range g.PointData {
		if f.Len() != g.NumPoints() {
			return fmt.Errorf("%w: field %q has %d values for %d points", ErrShapeMismatch, f.Name, f.Len(), g.NumPoints())
		}
		if _, err := vtkScalarType(f.Values); err != nil {
			return err
		}
	}

	bw := bufio.NewWriter(w)
	if title == "" {
		title = "rectilinear grid"
	}
	// the title line must not break the header
	title = strings.ReplaceAll(title, "\n", " ")
	fmt.Fprintf(bw, "# vtk DataFile Version 3.0\n%s\nBINARY\nDATASET RECTILINEAR_GRID\n", title)
	fmt.Fprintf(bw, "DIMENSIONS %d %d %d\n", g.Dimensions[0], g.Dimensions[1], g.Dimensions[2])

	for _, axis := range []struct {
		name   string
		coords []float64
	}{
		{"X", g.XCoordinates},
		{"Y", g.YCoordinates},
		{"Z", g.ZCoordinates},
	} {
		fmt.Fprintf(bw, "%s_COORDINATES %d double\n", axis.name, len(axis.coords))
		if err := binary.Write(bw, binary.BigEndian, axis.coords); err != nil {
			return err
		}
		bw.WriteString("\n")
	}

	if len(g.PointData) > 0 {
		fmt.Fprintf(bw, "POINT_DATA %d\n", g.NumPoints())
	}
	for _, f := range g.PointData {
		typ, _ := vtkScalarType(f.Values)
		fmt.Fprintf(bw, "SCALARS %s %s 1\nLOOKUP_TABLE default\n", strings.ReplaceAll(f.Name, " ", "_"), typ)
		if err := binary.Write(bw, binary.BigEndian, f.Values); err != nil {
			return err
		}
		bw.WriteString("\n")
	}
	return bw.Flush()
}

package zarr

import (
	"context"
	"testing"
)

func TestValidateArrayDoc(t *testing.T) {
	cases := []struct {
		description string
		format      Format
		doc         string
		ok          bool
	}{
		{"zarr", FormatZarr, `{"zarr_format": 2, "shape": [4, 6], "chunks": [2, 3], "dtype": "<f4", "compressor": null, "fill_value": 0, "order": "C", "filters": null}`, true},
		{"zarr with compressor", FormatZarr, `{"zarr_format": 2, "shape": [4], "chunks": [2], "dtype": "<f4", "compressor": {"id": "zlib", "level": 1}}`, true},
		{"zarr v3", FormatZarr, `{"zarr_format": 3, "shape": [4], "chunks": [2], "dtype": "<f4"}`, false},
		{"zarr missing chunks", FormatZarr, `{"zarr_format": 2, "shape": [4], "dtype": "<f4"}`, false},
		{"zarr zero chunk", FormatZarr, `{"zarr_format": 2, "shape": [4], "chunks": [0], "dtype": "<f4"}`, false},
		{"zarr fractional shape", FormatZarr, `{"zarr_format": 2, "shape": [4.5], "chunks": [2], "dtype": "<f4"}`, false},
		{"zarr bad order", FormatZarr, `{"zarr_format": 2, "shape": [4], "chunks": [2], "dtype": "<f4", "order": "K"}`, false},
		{"zarr bad separator", FormatZarr, `{"zarr_format": 2, "shape": [4], "chunks": [2], "dtype": "<f4", "dimension_separator": "_"}`, false},
		{"zarr compressor without id", FormatZarr, `{"zarr_format": 2, "shape": [4], "chunks": [2], "dtype": "<f4", "compressor": {"level": 1}}`, false},
		{"n5", FormatN5, `{"dimensions": [8, 6], "blockSize": [4, 3], "dataType": "uint16", "compression": {"type": "gzip"}}`, true},
		{"n5 negative dimension", FormatN5, `{"dimensions": [-8], "blockSize": [4], "dataType": "uint16"}`, false},
		{"n5 numeric data type", FormatN5, `{"dimensions": [8], "blockSize": [4], "dataType": 3}`, false},
		{"not json", FormatN5, `{`, false},
	}
	for _, c := range cases {
		err := validateArrayDoc(c.format, []byte(c.doc))
		if c.ok && err != nil {
			t.Errorf("case %q: unexpected error: %v", c.description, err)
		}
		if !c.ok && err == nil {
			t.Errorf("case %q: expected error", c.description)
		}
	}
}

func TestResolveInvalidMetadata(t *testing.T) {
	s := NewMemoryStore()
	putZarrGroup(t, s, "", nil)
	putJSON(t, s, "bad/.zarray", map[string]interface{}{
		"zarr_format": 2,
		"shape":       []int{4},
		"chunks":      []int{-2},
		"dtype":       "<f4",
	})
	if _, err := Resolve(context.Background(), s, "bad"); err == nil {
		t.Error("expected invalid metadata to fail resolution")
	}
}

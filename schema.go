package zarr

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const zarrArraySchema = `{
  "type": "object",
  "required": ["zarr_format", "shape", "chunks", "dtype"],
  "properties": {
    "zarr_format": {"const": 2},
    "shape": {"type": "array", "items": {"type": "integer", "minimum": 0}},
    "chunks": {"type": "array", "items": {"type": "integer", "minimum": 1}},
    "dtype": {"type": ["string", "array"]},
    "order": {"enum": ["C", "F"]},
    "compressor": {
      "oneOf": [
        {"type": "null"},
        {"type": "object", "required": ["id"], "properties": {"id": {"type": "string"}}}
      ]
    },
    "filters": {"type": ["array", "null"]},
    "dimension_separator": {"enum": [".", "/"]}
  }
}`

const n5ArraySchema = `{
  "type": "object",
  "required": ["dimensions", "blockSize", "dataType"],
  "properties": {
    "dimensions": {"type": "array", "items": {"type": "integer", "minimum": 0}},
    "blockSize": {"type": "array", "items": {"type": "integer", "minimum": 1}},
    "dataType": {"type": "string"},
    "compression": {
      "type": ["object", "null"],
      "required": ["type"],
      "properties": {"type": {"type": "string"}}
    },
    "compressionType": {"type": "string"}
  }
}`

var (
	schemaOnce sync.Once
	schemas    map[Format]*jsonschema.Schema
	schemaErr  error
)

func arraySchema(f Format) (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		schemas = map[Format]*jsonschema.Schema{}
		for format, src := range map[Format]string{FormatZarr: zarrArraySchema, FormatN5: n5ArraySchema} {
			sch, err := jsonschema.CompileString(string(format)+"-array.json", src)
			if err != nil {
				schemaErr = err
				return
			}
			schemas[format] = sch
		}
	})
	if schemaErr != nil {
		return nil, schemaErr
	}
	return schemas[f], nil
}

// validateArrayDoc checks a raw array metadata document before it is decoded
func validateArrayDoc(f Format, data []byte) error {
	sch, err := arraySchema(f)
	if err != nil {
		return err
	}
	var v interface{}
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("invalid %s array metadata: %w", f, err)
	}
	if err := sch.Validate(v); err != nil {
		return fmt.Errorf("invalid %s array metadata: %w", f, err)
	}
	return nil
}

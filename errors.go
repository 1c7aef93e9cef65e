package zarr

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput is returned before any I/O when a location or path is
	// empty or malformed
	ErrInvalidInput = errors.New("invalid input")
	// ErrStoreUnreachable covers transport and auth failures opening a store root,
	// and roots that carry no group metadata
	ErrStoreUnreachable = errors.New("store unreachable")
	// ErrPathNotFound means a path component is missing, or a path descends
	// through an array
	ErrPathNotFound = errors.New("path not found")
	// ErrNotAnArray means a path resolved to a group where an array was wanted
	ErrNotAnArray = errors.New("not an array")
	// ErrChunkFetchFailed is matched by every *ChunkFetchError
	ErrChunkFetchFailed = errors.New("chunk fetch failed")
	// ErrMissingResolutionMetadata means the physical resolution attribute is
	// absent or malformed
	ErrMissingResolutionMetadata = errors.New("missing resolution metadata")
	// ErrShapeMismatch is returned when a volumetric operation gets an array
	// that isn't rank 3
	ErrShapeMismatch = errors.New("shape mismatch")
	// ErrUnsupported flags data types, codecs and filters this package can't decode
	ErrUnsupported = errors.New("unsupported")
)

// ChunkFetchError reports the chunk that stopped a materialization
type ChunkFetchError struct {
	Coords []int
	Key    string
	Err    error
}

func (e *ChunkFetchError) Error() string {
	return fmt.Sprintf("%s: chunk %v (%s): %v", ErrChunkFetchFailed, e.Coords, e.Key, e.Err)
}

func (e *ChunkFetchError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrChunkFetchFailed) match without losing the cause
func (e *ChunkFetchError) Is(target error) bool { return target == ErrChunkFetchFailed }

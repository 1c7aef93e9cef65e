package zarr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

const (
	MemoryStoreType   = "MemoryStore"
	LocalStoreType    = "LocalStore"
	BlobStoreType     = "BlobStore"
	dirPermissionBits = 0755
)

// ErrNotfound is returned by Store.Get for keys that don't exist
var ErrNotfound = errors.New("not found")

// Store is a flat key/value view over a chunked-array hierarchy. Keys are
// slash-delimited. Implementations must be safe for concurrent reads.
type Store interface {
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Put(ctx context.Context, key string, val io.Reader) error
	// ListDirs returns the names of the immediate "directories" under prefix,
	// in the order the backing store reports them
	ListDirs(ctx context.Context, prefix string) ([]string, error)
	Type() string
}

// readKey reads a whole value from a store
func readKey(ctx context.Context, s Store, key string) ([]byte, error) {
	r, err := s.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

type MemoryStore struct {
	lk   sync.RWMutex
	data map[string][]byte
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data: map[string][]byte{},
	}
}

func (s *MemoryStore) Type() string { return MemoryStoreType }

func (s *MemoryStore) Get(_ context.Context, key string) (io.ReadCloser, error) {
	s.lk.RLock()
	defer s.lk.RUnlock()
	d, ok := s.data[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotfound, key)
	}
	return io.NopCloser(bytes.NewReader(d)), nil
}

func (s *MemoryStore) Put(_ context.Context, key string, val io.Reader) error {
	d, err := io.ReadAll(val)
	if err != nil {
		return err
	}

	s.lk.Lock()
	defer s.lk.Unlock()
	s.data[key] = d

	return nil
}

// Delete removes a key. Missing keys are ignored.
func (s *MemoryStore) Delete(key string) {
	s.lk.Lock()
	defer s.lk.Unlock()
	delete(s.data, key)
}

// ListDirs reports directories in lexical order, which is what object stores do
func (s *MemoryStore) ListDirs(_ context.Context, prefix string) ([]string, error) {
	prefix = dirPrefix(prefix)

	s.lk.RLock()
	defer s.lk.RUnlock()

	seen := map[string]struct{}{}
	var dirs []string
	for key := range s.data {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		rest := key[len(prefix):]
		i := strings.IndexByte(rest, '/')
		if i <= 0 {
			continue
		}
		name := rest[:i]
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		dirs = append(dirs, name)
	}
	sort.Strings(dirs)
	return dirs, nil
}

// LocalStore keeps keys as files under a base directory
type LocalStore struct {
	base string
}

var _ Store = (*LocalStore)(nil)

// NewLocalStore creates the base directory if needed. Use OpenLocalStore to
// read an existing hierarchy.
func NewLocalStore(base string) (*LocalStore, error) {
	base, err := filepath.Abs(base)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(base, dirPermissionBits); err != nil {
		return nil, err
	}

	return &LocalStore{
		base: base,
	}, nil
}

// OpenLocalStore opens an existing directory
func OpenLocalStore(base string) (*LocalStore, error) {
	base, err := filepath.Abs(base)
	if err != nil {
		return nil, err
	}
	fi, err := os.Stat(base)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrStoreUnreachable, err)
	}
	if !fi.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrStoreUnreachable, base)
	}
	return &LocalStore{base: base}, nil
}

func (s *LocalStore) Type() string { return LocalStoreType }

func (s *LocalStore) Get(_ context.Context, key string) (io.ReadCloser, error) {
	f, err := os.Open(filepath.Join(s.base, filepath.FromSlash(key)))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotfound, key)
	}
	return f, err
}

func (s *LocalStore) Put(_ context.Context, key string, val io.Reader) error {
	path := filepath.Join(s.base, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(path), dirPermissionBits); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	if _, err := io.Copy(f, val); err != nil {
		f.Close()
		return err
	}
	if c, ok := val.(io.Closer); ok {
		if err := c.Close(); err != nil {
			f.Close()
			return err
		}
	}
	return f.Close()
}

// ListDirs relies on os.ReadDir returning entries sorted by name
func (s *LocalStore) ListDirs(_ context.Context, prefix string) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(s.base, filepath.FromSlash(prefix)))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var dirs []string
	for _, e := range entries {
		if e.IsDir() {
			dirs = append(dirs, e.Name())
		}
	}
	return dirs, nil
}

func dirPrefix(prefix string) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return ""
	}
	return prefix + "/"
}

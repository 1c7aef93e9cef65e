package zarr

import (
	"bytes"
	"context"
	"errors"
	"io"
	"path/filepath"
	"reflect"
	"testing"

	"gocloud.dev/blob/memblob"
)

func testStoreRoundTrip(t *testing.T, s Store) {
	ctx := context.Background()
	for _, key := range []string{"a/.zgroup", "a/b/.zarray", "a/b/0.0", "a/c/d/.zgroup", "e/.zgroup", "root.txt"} {
		if err := s.Put(ctx, key, bytes.NewReader([]byte(key))); err != nil {
			t.Fatal(err)
		}
	}

	r, err := s.Get(ctx, "a/b/0.0")
	if err != nil {
		t.Fatal(err)
	}
	d, err := io.ReadAll(r)
	r.Close()
	if err != nil {
		t.Fatal(err)
	}
	if string(d) != "a/b/0.0" {
		t.Errorf("value mismatch. want: %q got: %q", "a/b/0.0", string(d))
	}

	if _, err := s.Get(ctx, "a/missing"); !errors.Is(err, ErrNotfound) {
		t.Errorf("expected ErrNotfound for missing key, got: %v", err)
	}

	cases := []struct {
		prefix string
		expect []string
	}{
		{"", []string{"a", "e"}},
		{"a", []string{"b", "c"}},
		{"a/", []string{"b", "c"}},
		{"a/c", []string{"d"}},
		{"a/b", nil},
		{"nope", nil},
	}
	for _, c := range cases {
		got, err := s.ListDirs(ctx, c.prefix)
		if err != nil {
			t.Fatalf("ListDirs(%q): %v", c.prefix, err)
		}
		if len(got) == 0 && len(c.expect) == 0 {
			continue
		}
		if !reflect.DeepEqual(c.expect, got) {
			t.Errorf("ListDirs(%q) mismatch. want: %v got: %v", c.prefix, c.expect, got)
		}
	}
}

func TestMemoryStore(t *testing.T) {
	s := NewMemoryStore()
	if s.Type() != MemoryStoreType {
		t.Errorf("unexpected type %q", s.Type())
	}
	testStoreRoundTrip(t, s)

	s.Delete("a/b/0.0")
	if _, err := s.Get(context.Background(), "a/b/0.0"); !errors.Is(err, ErrNotfound) {
		t.Errorf("expected deleted key to be missing, got: %v", err)
	}
}

func TestLocalStore(t *testing.T) {
	s, err := NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	testStoreRoundTrip(t, s)
}

func TestOpenLocalStore(t *testing.T) {
	if _, err := OpenLocalStore(filepath.Join(t.TempDir(), "missing")); !errors.Is(err, ErrStoreUnreachable) {
		t.Errorf("expected ErrStoreUnreachable, got: %v", err)
	}
	dir := t.TempDir()
	if _, err := OpenLocalStore(dir); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestBlobStore(t *testing.T) {
	s := NewBlobStore(memblob.OpenBucket(nil), "mem://test")
	defer s.Close()
	if s.Type() != BlobStoreType {
		t.Errorf("unexpected type %q", s.Type())
	}
	testStoreRoundTrip(t, s)
}

func TestOpenStore(t *testing.T) {
	ctx := context.Background()
	bad := []string{"", "   ", "ftp://host/path", "http://example.com/data.n5"}
	for _, loc := range bad {
		if _, err := OpenStore(ctx, loc, DefaultStoreOptions()); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("OpenStore(%q): expected ErrInvalidInput, got: %v", loc, err)
		}
	}

	dir := t.TempDir()
	for _, loc := range []string{dir, "file://" + filepath.ToSlash(dir)} {
		s, err := OpenStore(ctx, loc, DefaultStoreOptions())
		if err != nil {
			t.Fatalf("OpenStore(%q): %v", loc, err)
		}
		if s.Type() != LocalStoreType {
			t.Errorf("OpenStore(%q): expected local store, got %s", loc, s.Type())
		}
	}

	if _, err := OpenStore(ctx, filepath.Join(dir, "nope"), DefaultStoreOptions()); !errors.Is(err, ErrStoreUnreachable) {
		t.Errorf("expected ErrStoreUnreachable for missing dir, got: %v", err)
	}
}

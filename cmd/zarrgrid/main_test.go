package main

import (
	"bytes"
	"context"
	"flag"
	"os"
	"path/filepath"
	"testing"
	"time"

	zarr "github.com/qri-io/zarr-grid"
)

const fileConfig = `
[store]
anonymous = false

[fetch]
concurrency = 4
chunk_timeout = "30s"
`

func writeFile(t *testing.T, filename, data string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(filename), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filename, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadConfig(t *testing.T) {
	cfgFile := filepath.Join(t.TempDir(), "config.toml")
	writeFile(t, cfgFile, fileConfig)

	cases := []struct {
		description string
		file        string
		args        []string
		anonymous   bool
		concurrency int
		timeout     time.Duration
		err         bool
	}{
		{"defaults", "", nil, true, zarr.DefaultConcurrency, 0, false},
		{"flags over defaults", "", []string{"-anon=false", "-concurrency", "2", "-timeout", "5s"}, false, 2, 5 * time.Second, false},
		{"file only", cfgFile, nil, false, 4, 30 * time.Second, false},
		{"unset flags keep file values", cfgFile, []string{"-concurrency", "8"}, false, 8, 30 * time.Second, false},
		{"flags over file", cfgFile, []string{"-anon", "-timeout", "1m"}, true, 4, time.Minute, false},
		{"invalid override", cfgFile, []string{"-concurrency", "-1"}, false, 0, 0, true},
		{"missing file", filepath.Join(t.TempDir(), "missing.toml"), nil, false, 0, 0, true},
	}

	for _, c := range cases {
		fs := flag.NewFlagSet("zarrgrid", flag.ContinueOnError)
		fs.Bool("anon", true, "")
		fs.Int("concurrency", 0, "")
		fs.Duration("timeout", 0, "")
		fs.Bool("verbose", false, "")
		if err := fs.Parse(c.args); err != nil {
			t.Fatalf("case %q: %v", c.description, err)
		}

		cfg, err := loadConfig(c.file, fs.Visit)
		if c.err {
			if err == nil {
				t.Errorf("case %q: expected error", c.description)
			}
			continue
		}
		if err != nil {
			t.Errorf("case %q: unexpected error: %v", c.description, err)
			continue
		}
		if cfg.Store.Anonymous != c.anonymous {
			t.Errorf("case %q: anonymous mismatch. want: %t got: %t", c.description, c.anonymous, cfg.Store.Anonymous)
		}
		if cfg.Fetch.Concurrency != c.concurrency {
			t.Errorf("case %q: concurrency mismatch. want: %d got: %d", c.description, c.concurrency, cfg.Fetch.Concurrency)
		}
		if cfg.Fetch.ChunkTimeout.Duration != c.timeout {
			t.Errorf("case %q: timeout mismatch. want: %s got: %s", c.description, c.timeout, cfg.Fetch.ChunkTimeout.Duration)
		}
	}
}

// newListDir writes a small zarr hierarchy with one array in em/s0
func newListDir(t *testing.T) string {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, ".zgroup"), `{"zarr_format": 2}`)
	writeFile(t, filepath.Join(dir, "em", ".zgroup"), `{"zarr_format": 2}`)
	writeFile(t, filepath.Join(dir, "em", "s0", ".zarray"), `{
  "zarr_format": 2,
  "shape": [2, 2],
  "chunks": [2, 2],
  "dtype": "<u2",
  "compressor": null,
  "fill_value": 0,
  "order": "C",
  "filters": null
}`)
	writeFile(t, filepath.Join(dir, "em", "s0", ".zattrs"), `{"unit": "nm", "scale": [4, 4]}`)
	return dir
}

func TestRunList(t *testing.T) {
	ctx := context.Background()
	dir := newListDir(t)
	cfg := zarr.DefaultConfig()

	cases := []struct {
		description string
		args        []string
		expect      string
	}{
		{"arrays below the root", []string{dir}, "zarr hierarchy, 1 entries\nem/s0\n"},
		{"arrays below a group", []string{dir, "em"}, "zarr hierarchy, 1 entries\nem/s0\n"},
		{"array argument", []string{dir, "em/s0"}, "<zarr.Array \"em/s0\" shape=[2 2] chunks=[2 2] dtype=<u2 format=zarr>\n  scale: [4,4]\n  unit: \"nm\"\n"},
	}
	for _, c := range cases {
		buf := &bytes.Buffer{}
		if err := runList(ctx, buf, cfg, c.args); err != nil {
			t.Errorf("case %q: unexpected error: %v", c.description, err)
			continue
		}
		if buf.String() != c.expect {
			t.Errorf("case %q: output mismatch.\nwant: %q\ngot:  %q", c.description, c.expect, buf.String())
		}
	}

	bad := [][]string{
		{},
		{dir, "em/missing"},
		{dir, "em/../em"},
	}
	for _, args := range bad {
		if err := runList(ctx, &bytes.Buffer{}, cfg, args); err == nil {
			t.Errorf("expected error for args %v", args)
		}
	}
}

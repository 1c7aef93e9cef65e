package zarr

import (
	"fmt"
	"time"

	"github.com/BurntSushi/toml"
)

// Config holds everything a Source needs to pull grids
type Config struct {
	Store   StoreConfig `toml:"store"`
	Fetch   FetchConfig `toml:"fetch"`
	Grid    GridConfig  `toml:"grid"`
	Logging LogConfig   `toml:"logging"`
}

type StoreConfig struct {
	Anonymous bool   `toml:"anonymous"`
	Region    string `toml:"region"`
	Endpoint  string `toml:"endpoint"`
}

type FetchConfig struct {
	Concurrency  int      `toml:"concurrency"`
	ChunkTimeout Duration `toml:"chunk_timeout"`
	FillMissing  bool     `toml:"fill_missing"`
}

type GridConfig struct {
	ResolutionKey string `toml:"resolution_key"`
	FieldName     string `toml:"field_name"`
	// SoftFail makes Source.Update log pipeline errors and report success
	SoftFail bool `toml:"soft_fail"`
}

// Duration decodes TOML strings like "30s"
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

const (
	DefaultConcurrency   = 16
	DefaultResolutionKey = "pixelResolution/dimensions"
	DefaultFieldName     = "values"
)

func DefaultConfig() *Config {
	return &Config{
		Store: StoreConfig{
			Anonymous: true,
			Region:    "us-east-1",
		},
		Fetch: FetchConfig{
			Concurrency: DefaultConcurrency,
		},
		Grid: GridConfig{
			ResolutionKey: DefaultResolutionKey,
			FieldName:     DefaultFieldName,
		},
		Logging: LogConfig{
			MaxSize: 500,
			MaxAge:  30,
			Level:   "info",
		},
	}
}

// LoadConfig reads a TOML file over the defaults
func LoadConfig(filename string) (*Config, error) {
	if filename == "" {
		return nil, fmt.Errorf("no TOML configuration file provided")
	}
	c := DefaultConfig()
	if _, err := toml.DecodeFile(filename, c); err != nil {
		return nil, fmt.Errorf("could not decode TOML config: %v", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate rejects settings the pipeline can't run with
func (c *Config) Validate() error {
	if c.Fetch.Concurrency < 0 {
		return fmt.Errorf("fetch.concurrency must not be negative, got %d", c.Fetch.Concurrency)
	}
	if c.Fetch.ChunkTimeout.Duration < 0 {
		return fmt.Errorf("fetch.chunk_timeout must not be negative, got %s", c.Fetch.ChunkTimeout)
	}
	if _, err := ParseLogMode(c.Logging.Level); err != nil {
		return err
	}
	return nil
}

func (c *Config) StoreOptions() StoreOptions {
	return StoreOptions{
		Anonymous: c.Store.Anonymous,
		Region:    c.Store.Region,
		Endpoint:  c.Store.Endpoint,
	}
}

func (c *Config) MaterializeOptions() MaterializeOptions {
	return MaterializeOptions{
		Concurrency:       c.Fetch.Concurrency,
		ChunkTimeout:      c.Fetch.ChunkTimeout.Duration,
		FillMissingChunks: c.Fetch.FillMissing,
	}
}

func (c *Config) PullOptions() PullOptions {
	return PullOptions{
		Store:         c.StoreOptions(),
		Materialize:   c.MaterializeOptions(),
		ResolutionKey: c.Grid.ResolutionKey,
		FieldName:     c.Grid.FieldName,
	}
}

package zarr

import (
	"context"
	"fmt"
	"sync"
)

// Source feeds a visualization host. The host sets a data URL and an array
// path in any order, then pulls grids with Update. Setting either value to
// something new marks the source dirty; a pull on a dirty source re-runs the
// whole pipeline, a pull on a clean one returns the last good grid.
type Source struct {
	cfg  *Config
	pull func(ctx context.Context, location, path string, opts PullOptions) (*RectilinearGrid, error)

	mu    sync.Mutex
	url   string
	group string
	dirty bool
	last  *RectilinearGrid
}

// NewSource creates a source with cfg, or DefaultConfig when cfg is nil
func NewSource(cfg *Config) *Source {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Source{cfg: cfg, pull: Pull}
}

// SetDataURL sets the store location. Empty or unchanged values are ignored.
func (s *Source) SetDataURL(url string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if url != "" && url != s.url {
		s.url = url
		s.dirty = true
	}
}

// SetGroup sets the path of the array to load. Empty or unchanged values are
// ignored.
func (s *Source) SetGroup(group string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if group != "" && group != s.group {
		s.group = group
		s.dirty = true
	}
}

// Modified reports whether the next Update will run the pipeline
func (s *Source) Modified() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirty || s.last == nil
}

// Update fills out with the grid for the current URL and path. On error out
// is left as it was and the source stays dirty. With Grid.SoftFail set the
// error is only logged and Update returns nil, leaving out without data.
// The lock is not held while fetching; inputs set during a fetch keep the
// source dirty and the fetched grid is not cached.
func (s *Source) Update(ctx context.Context, out *RectilinearGrid) error {
	s.mu.Lock()
	url, group := s.url, s.group
	if url == "" || group == "" {
		s.mu.Unlock()
		return s.fail(fmt.Errorf("%w: URL to dataset or the group to access data not provided", ErrInvalidInput))
	}
	if !s.dirty && s.last != nil {
		g := s.last.Copy()
		s.mu.Unlock()
		*out = *g
		return nil
	}
	s.mu.Unlock()

	Infof("getting data from %s with group %s\n", url, group)
	g, err := s.pull(ctx, url, group, s.cfg.PullOptions())
	if err != nil {
		return s.fail(fmt.Errorf("fetching %q from %s: %w", group, url, err))
	}

	s.mu.Lock()
	if s.url == url && s.group == group {
		s.last = g
		s.dirty = false
	} else {
		Debugf("inputs changed while fetching %q, not caching\n", group)
	}
	s.mu.Unlock()
	*out = *g.Copy()
	return nil
}

func (s *Source) fail(err error) error {
	Errorf("%v\n", err)
	if s.cfg.Grid.SoftFail {
		return nil
	}
	return err
}

package zarr

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Node is either a *Group or an *Array
type Node interface {
	node()
	Path() Path
	Attrs() Attributes
}

// Group is a container node: named children, no data
type Group struct {
	h     *Hierarchy
	path  Path
	attrs Attributes
}

func (*Group) node() {}

func (g *Group) Path() Path { return g.path }

func (g *Group) Attrs() Attributes { return g.attrs }

// Hierarchy is an opened store whose root is a group
type Hierarchy struct {
	store        Store
	format       Format
	consolidated *ConsolidatedMetadata
	root         *Group
}

// OpenHierarchy reads root metadata to detect the store format. Failing to
// read the root, or a root that isn't a group, is ErrStoreUnreachable.
func OpenHierarchy(ctx context.Context, store Store) (*Hierarchy, error) {
	h := &Hierarchy{store: store}

	format, err := detectFormat(ctx, store)
	if err != nil {
		return nil, err
	}
	h.format = format

	if format == FormatZarr {
		data, err := readKey(ctx, store, string(MTMetadata))
		switch {
		case err == nil:
			cm := &ConsolidatedMetadata{}
			if err := json.Unmarshal(data, cm); err != nil {
				return nil, fmt.Errorf("%w: reading consolidated metadata: %s", ErrStoreUnreachable, err)
			}
			h.consolidated = cm
			Debugf("using consolidated metadata with %d entries\n", len(cm.Metadata))
		case !errors.Is(err, ErrNotfound):
			return nil, fmt.Errorf("%w: %s", ErrStoreUnreachable, err)
		}
	}

	root, err := h.load(ctx, Path{})
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrStoreUnreachable, err)
	}
	g, ok := root.(*Group)
	if !ok {
		return nil, fmt.Errorf("%w: store root is an array, not a group", ErrStoreUnreachable)
	}
	h.root = g
	return h, nil
}

func detectFormat(ctx context.Context, store Store) (Format, error) {
	for _, marker := range []struct {
		key    MetaType
		format Format
	}{
		{MTGroup, FormatZarr},
		{MTN5Attributes, FormatN5},
	} {
		r, err := store.Get(ctx, string(marker.key))
		if err == nil {
			r.Close()
			return marker.format, nil
		}
		if !errors.Is(err, ErrNotfound) {
			return "", fmt.Errorf("%w: %s", ErrStoreUnreachable, err)
		}
	}
	return "", fmt.Errorf("%w: no group metadata at store root", ErrStoreUnreachable)
}

func (h *Hierarchy) Format() Format { return h.format }

func (h *Hierarchy) Root() *Group { return h.root }

func (h *Hierarchy) Store() Store { return h.store }

// Get descends from the root one component at a time. Every intermediate
// node must be a group. In N5 an intermediate directory without
// attributes.json is an implicit group; the final component must exist.
func (h *Hierarchy) Get(ctx context.Context, p Path) (Node, error) {
	var cur Node = h.root
	for rest := p; len(rest) > 0; {
		g, ok := cur.(*Group)
		if !ok {
			return nil, fmt.Errorf("%w: %q is an array, can't descend to %q", ErrPathNotFound, p[:len(p)-len(rest)].String(), p.String())
		}
		var name string
		name, rest = rest.Shift()
		next, err := g.Child(ctx, name)
		if errors.Is(err, ErrPathNotFound) && len(rest) > 0 && h.format == FormatN5 {
			// N5 doesn't require attributes.json on intermediate groups
			Debugf("treating %q as an implicit n5 group\n", g.path.Join(name).String())
			next, err = &Group{h: h, path: g.path.Join(name), attrs: Attributes{}}, nil
		}
		if err != nil {
			return nil, err
		}
		cur = next
	}
	return cur, nil
}

// load reads the metadata of the node at p. Only metadata keys are touched.
func (h *Hierarchy) load(ctx context.Context, p Path) (Node, error) {
	switch h.format {
	case FormatN5:
		return h.loadN5(ctx, p)
	default:
		return h.loadZarr(ctx, p)
	}
}

func (h *Hierarchy) loadZarr(ctx context.Context, p Path) (Node, error) {
	attrs, err := h.zarrAttrs(ctx, p)
	if err != nil {
		return nil, err
	}

	if h.consolidated != nil {
		if m, ok := h.consolidated.Metadata[p.Join(string(MTArray)).String()].(*ArrayMeta); ok {
			if err := m.Validate(); err != nil {
				return nil, fmt.Errorf("array %q: %w", p.String(), err)
			}
			return &Array{path: p, store: h.store, meta: m, attrs: attrs}, nil
		}
		if _, ok := h.consolidated.Metadata[p.Join(string(MTGroup)).String()]; ok {
			return &Group{h: h, path: p, attrs: attrs}, nil
		}
		return nil, fmt.Errorf("%w: %q", ErrPathNotFound, p.String())
	}

	data, err := readKey(ctx, h.store, p.Join(string(MTArray)).String())
	if err == nil {
		if err := validateArrayDoc(FormatZarr, data); err != nil {
			return nil, fmt.Errorf("array %q: %w", p.String(), err)
		}
		m := &ArrayMeta{}
		if err := json.Unmarshal(data, m); err != nil {
			return nil, fmt.Errorf("reading %q array metadata: %w", p.String(), err)
		}
		if err := m.Validate(); err != nil {
			return nil, fmt.Errorf("array %q: %w", p.String(), err)
		}
		return &Array{path: p, store: h.store, meta: m, attrs: attrs}, nil
	}
	if !errors.Is(err, ErrNotfound) {
		return nil, fmt.Errorf("%w: %s", ErrStoreUnreachable, err)
	}

	r, err := h.store.Get(ctx, p.Join(string(MTGroup)).String())
	if err == nil {
		r.Close()
		return &Group{h: h, path: p, attrs: attrs}, nil
	}
	if !errors.Is(err, ErrNotfound) {
		return nil, fmt.Errorf("%w: %s", ErrStoreUnreachable, err)
	}
	return nil, fmt.Errorf("%w: %q", ErrPathNotFound, p.String())
}

func (h *Hierarchy) zarrAttrs(ctx context.Context, p Path) (Attributes, error) {
	key := p.Join(string(MTAttributes)).String()
	if h.consolidated != nil {
		if a, ok := h.consolidated.Metadata[key].(Attributes); ok {
			return a, nil
		}
		return Attributes{}, nil
	}

	data, err := readKey(ctx, h.store, key)
	if errors.Is(err, ErrNotfound) {
		return Attributes{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrStoreUnreachable, err)
	}
	attrs := Attributes{}
	if err := json.Unmarshal(data, &attrs); err != nil {
		return nil, fmt.Errorf("reading %q attributes: %w", p.String(), err)
	}
	return attrs, nil
}

func (h *Hierarchy) loadN5(ctx context.Context, p Path) (Node, error) {
	data, err := readKey(ctx, h.store, p.Join(string(MTN5Attributes)).String())
	if errors.Is(err, ErrNotfound) {
		return nil, fmt.Errorf("%w: %q", ErrPathNotFound, p.String())
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrStoreUnreachable, err)
	}
	meta, attrs, err := parseN5Node(data)
	if err != nil {
		return nil, fmt.Errorf("node %q: %w", p.String(), err)
	}
	if meta == nil {
		return &Group{h: h, path: p, attrs: attrs}, nil
	}
	return &Array{path: p, store: h.store, meta: meta, attrs: attrs}, nil
}

// Child loads the named child node
func (g *Group) Child(ctx context.Context, name string) (Node, error) {
	return g.h.load(ctx, g.path.Join(name))
}

// Children lists child nodes in the order the store reports them.
// Directories without node metadata, like nested chunk keys, are skipped.
func (g *Group) Children(ctx context.Context) ([]Node, error) {
	var names []string
	if g.h.consolidated != nil {
		names = g.h.consolidated.Dirs(g.path.String())
	} else {
		var err error
		if names, err = g.h.store.ListDirs(ctx, g.path.String()); err != nil {
			return nil, fmt.Errorf("%w: listing %q: %s", ErrStoreUnreachable, g.path.String(), err)
		}
	}

	nodes := make([]Node, 0, len(names))
	for _, name := range names {
		n, err := g.Child(ctx, name)
		if errors.Is(err, ErrPathNotFound) {
			Debugf("skipping %q: no node metadata\n", g.path.Join(name).String())
			continue
		}
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	return nodes, nil
}

// Resolve opens the hierarchy in store and returns the array at path
func Resolve(ctx context.Context, store Store, path string) (*Array, error) {
	p, err := NewPath(path)
	if err != nil {
		return nil, err
	}
	if len(p) == 0 {
		return nil, fmt.Errorf("%w: empty array path", ErrInvalidInput)
	}

	h, err := OpenHierarchy(ctx, store)
	if err != nil {
		return nil, err
	}
	n, err := h.Get(ctx, p)
	if err != nil {
		return nil, err
	}

	switch node := n.(type) {
	case *Array:
		return node, nil
	case *Group:
		return nil, fmt.Errorf("%w: %q is a group", ErrNotAnArray, node.path.String())
	default:
		return nil, fmt.Errorf("unexpected node type %T", n)
	}
}

// ResolveLocation opens the store at location and resolves path in it.
// Inputs are validated before any I/O. The caller owns the store and should
// close it once the array is no longer needed, see CloseStore.
func ResolveLocation(ctx context.Context, location, path string, opts StoreOptions) (*Array, error) {
	if location == "" {
		return nil, fmt.Errorf("%w: empty store location", ErrInvalidInput)
	}
	if p, err := NewPath(path); err != nil {
		return nil, err
	} else if len(p) == 0 {
		return nil, fmt.Errorf("%w: empty array path", ErrInvalidInput)
	}

	store, err := OpenStore(ctx, location, opts)
	if err != nil {
		return nil, err
	}
	a, err := Resolve(ctx, store, path)
	if err != nil {
		CloseStore(store)
		return nil, err
	}
	return a, nil
}

// CloseStore releases stores that hold resources, like open buckets
func CloseStore(s Store) {
	if c, ok := s.(io.Closer); ok {
		if err := c.Close(); err != nil {
			Warningf("closing %s: %v\n", s.Type(), err)
		}
	}
}

// ArrayPaths lists every array below g, depth first
func ArrayPaths(ctx context.Context, g *Group) ([]string, error) {
	children, err := g.Children(ctx)
	if err != nil {
		return nil, err
	}
	var paths []string
	for _, ch := range children {
		switch n := ch.(type) {
		case *Array:
			paths = append(paths, n.path.String())
		case *Group:
			sub, err := ArrayPaths(ctx, n)
			if err != nil {
				return nil, err
			}
			paths = append(paths, sub...)
		}
	}
	return paths, nil
}

// GroupPaths lists every group below g, depth first, parents before children
func GroupPaths(ctx context.Context, g *Group) ([]string, error) {
	children, err := g.Children(ctx)
	if err != nil {
		return nil, err
	}
	var paths []string
	for _, ch := range children {
		if n, ok := ch.(*Group); ok {
			paths = append(paths, n.path.String())
			sub, err := GroupPaths(ctx, n)
			if err != nil {
				return nil, err
			}
			paths = append(paths, sub...)
		}
	}
	return paths, nil
}

// LeafGroupPaths lists groups with no sub-groups. A g without sub-groups is
// its own only leaf.
func LeafGroupPaths(ctx context.Context, g *Group) ([]string, error) {
	children, err := g.Children(ctx)
	if err != nil {
		return nil, err
	}
	var paths []string
	hasSubgroups := false
	for _, ch := range children {
		if n, ok := ch.(*Group); ok {
			hasSubgroups = true
			sub, err := LeafGroupPaths(ctx, n)
			if err != nil {
				return nil, err
			}
			paths = append(paths, sub...)
		}
	}
	if !hasSubgroups {
		paths = append(paths, g.path.String())
	}
	return paths, nil
}

package zarr

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"
)

// MaterializeOptions tune how chunks are fetched
type MaterializeOptions struct {
	// Concurrency caps in-flight chunk fetches. Zero means DefaultConcurrency.
	Concurrency int
	// ChunkTimeout bounds each chunk fetch. Zero means no per-chunk timeout.
	ChunkTimeout time.Duration
	// FillMissingChunks fills absent chunks with the array's fill value
	// instead of failing. Arrays without a fill value still fail.
	FillMissingChunks bool
}

// chunkTask fetches, decodes and places one chunk
type chunkTask struct {
	proj chunkProjection
	key  string
}

// LazyArray is the unevaluated fetch plan of an array: one task per chunk
// of the array's own chunk grid
type LazyArray struct {
	array *Array
	plan  *ChunkPlan
	tasks []chunkTask
}

// Lazy builds the task graph for a. It performs no I/O.
func (a *Array) Lazy() (*LazyArray, error) {
	if err := a.meta.Decodable(); err != nil {
		return nil, fmt.Errorf("array %q: %w", a.path.String(), err)
	}
	plan, err := NewChunkPlan(a.meta.Shape, a.meta.Chunks)
	if err != nil {
		return nil, fmt.Errorf("array %q: %w", a.path.String(), err)
	}
	projs := plan.projections()
	l := &LazyArray{array: a, plan: plan, tasks: make([]chunkTask, len(projs))}
	for i, p := range projs {
		l.tasks[i] = chunkTask{proj: p, key: a.chunkKey(p.ChunkCoords)}
	}
	return l, nil
}

func (l *LazyArray) Plan() *ChunkPlan { return l.plan }

func (l *LazyArray) NumTasks() int { return len(l.tasks) }

// Compute evaluates every chunk task and returns the dense array. The first
// failing chunk cancels the rest and is reported as a *ChunkFetchError; no
// partially filled array is ever returned.
func (l *LazyArray) Compute(ctx context.Context, opts MaterializeOptions) (*Dense, error) {
	meta := l.array.meta
	dense, err := NewDense(meta.Shape, meta.Dtype)
	if err != nil {
		return nil, err
	}
	dstStrides := dense.strides()

	limit := opts.Concurrency
	if limit <= 0 {
		limit = DefaultConcurrency
	}

	var fetched int64
	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for _, t := range l.tasks {
		t := t
		g.Go(func() error {
			n, err := l.runTask(gctx, t, dense.Data, dstStrides, opts)
			if err != nil {
				return &ChunkFetchError{Coords: t.proj.ChunkCoords, Key: t.key, Err: err}
			}
			atomic.AddInt64(&fetched, int64(n))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		Debugf("materializing %q failed after %s: %v\n", l.array.path.String(), time.Since(start), err)
		return nil, err
	}

	Infof("materialized %q: %d chunks, %s fetched, %s in memory, %s\n",
		l.array.path.String(), len(l.tasks), humanize.Bytes(uint64(fetched)),
		humanize.Bytes(uint64(dense.Len()*meta.Dtype.ByteSize)), time.Since(start))
	return dense, nil
}

// runTask writes one chunk into its region of dst. Regions of distinct tasks
// never overlap, so tasks share dst without locking.
func (l *LazyArray) runTask(ctx context.Context, t chunkTask, dst interface{}, dstStrides []int, opts MaterializeOptions) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if opts.ChunkTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.ChunkTimeout)
		defer cancel()
	}

	ch, n, err := l.array.readChunk(ctx, t.proj.ChunkCoords)
	if errors.Is(err, ErrNotfound) && opts.FillMissingChunks {
		if ch, err = l.fillChunk(t.proj.ChunkSelection); err == nil {
			Debugf("chunk %v of %q missing, filled\n", t.proj.ChunkCoords, l.array.path.String())
		}
	}
	if err != nil {
		return n, err
	}

	for d, sel := range t.proj.ChunkSelection {
		if ch.shape[d] < sel {
			return n, fmt.Errorf("chunk shape %v smaller than selection %v", ch.shape, t.proj.ChunkSelection)
		}
	}
	return n, copyRegion(dst, dstStrides, t.proj.OutSelection, ch.data, ch.strides, t.proj.ChunkSelection)
}

func (l *LazyArray) fillChunk(extent []int) (*decodedChunk, error) {
	v, ok := fillValue(l.array.meta.FillValue)
	if !ok {
		return nil, fmt.Errorf("%w: chunk missing and array has no fill value", ErrNotfound)
	}
	data, err := l.array.meta.Dtype.NewSlice(product(extent))
	if err != nil {
		return nil, err
	}
	fillSlice(data, v)
	return &decodedChunk{shape: extent, strides: cStrides(extent), data: data}, nil
}

// Materialize reads every chunk of a into a dense array
func Materialize(ctx context.Context, a *Array, opts MaterializeOptions) (*Dense, error) {
	l, err := a.Lazy()
	if err != nil {
		return nil, err
	}
	return l.Compute(ctx, opts)
}

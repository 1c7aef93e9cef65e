package zarr

import "fmt"

// chunkDimProjection maps one chunk along one dimension onto the output
type chunkDimProjection struct {
	// Index of chunk.
	DimChunkIX int
	// Number of items selected from the chunk, starting at 0. Smaller than the
	// chunk size only for the trailing chunk of a non-divisible dimension.
	DimChunkSel int
	// Offset of the selection in the target (output) array.
	DimOutSel int
}

// dimProjections covers a dimension of length n with chunks of size c
func dimProjections(n, c int) []chunkDimProjection {
	var ps []chunkDimProjection
	for ix, start := 0, 0; start < n; ix, start = ix+1, start+c {
		sel := c
		if start+sel > n {
			sel = n - start
		}
		ps = append(ps, chunkDimProjection{DimChunkIX: ix, DimChunkSel: sel, DimOutSel: start})
	}
	return ps
}

// A mapping of items from chunk to output array. Can be used to extract items
// from the chunk array for loading into an output array.
type chunkProjection struct {
	// Indices of chunk
	ChunkCoords []int
	// Extent of items taken from the chunk, per dimension, starting at 0.
	ChunkSelection []int
	// Offset of those items in the target (output) array.
	OutSelection []int
}

// ChunkPlan is the chunk grid of an array, exactly as the array's metadata
// reports it. Chunks are never merged or split.
type ChunkPlan struct {
	Shape  []int
	Chunks []int
	dims   [][]chunkDimProjection
}

func NewChunkPlan(shape, chunks []int) (*ChunkPlan, error) {
	if len(shape) != len(chunks) {
		return nil, fmt.Errorf("shape %v and chunks %v differ in rank", shape, chunks)
	}
	p := &ChunkPlan{
		Shape:  append([]int(nil), shape...),
		Chunks: append([]int(nil), chunks...),
		dims:   make([][]chunkDimProjection, len(shape)),
	}
	for i := range shape {
		if chunks[i] <= 0 {
			return nil, fmt.Errorf("chunk size must be positive, got %v", chunks)
		}
		p.dims[i] = dimProjections(shape[i], chunks[i])
	}
	return p, nil
}

// Grid is the number of chunks along each dimension
func (p *ChunkPlan) Grid() []int {
	g := make([]int, len(p.dims))
	for i, d := range p.dims {
		g[i] = len(d)
	}
	return g
}

// NumChunks is the total number of chunks. A zero-length dimension means no
// chunks; a rank 0 array has one.
func (p *ChunkPlan) NumChunks() int {
	return product(p.Grid())
}

// projections enumerates every chunk in C order of chunk coordinates
func (p *ChunkPlan) projections() []chunkProjection {
	n := p.NumChunks()
	out := make([]chunkProjection, 0, n)
	if n == 0 {
		return out
	}
	idx := make([]int, len(p.dims))
	for {
		cp := chunkProjection{
			ChunkCoords:    make([]int, len(idx)),
			ChunkSelection: make([]int, len(idx)),
			OutSelection:   make([]int, len(idx)),
		}
		for d, i := range idx {
			dp := p.dims[d][i]
			cp.ChunkCoords[d] = dp.DimChunkIX
			cp.ChunkSelection[d] = dp.DimChunkSel
			cp.OutSelection[d] = dp.DimOutSel
		}
		out = append(out, cp)

		d := len(idx) - 1
		for ; d >= 0; d-- {
			idx[d]++
			if idx[d] < len(p.dims[d]) {
				break
			}
			idx[d] = 0
		}
		if d < 0 {
			return out
		}
	}
}

package zarr

import (
	"reflect"
	"testing"
)

func TestDimProjections(t *testing.T) {
	got := dimProjections(10, 4)
	expect := []chunkDimProjection{
		{DimChunkIX: 0, DimChunkSel: 4, DimOutSel: 0},
		{DimChunkIX: 1, DimChunkSel: 4, DimOutSel: 4},
		{DimChunkIX: 2, DimChunkSel: 2, DimOutSel: 8},
	}
	if !reflect.DeepEqual(expect, got) {
		t.Errorf("projection mismatch.\nwant: %v\ngot:  %v", expect, got)
	}

	if got := dimProjections(0, 4); len(got) != 0 {
		t.Errorf("empty dimension has no chunks, got %v", got)
	}
	if got := dimProjections(3, 8); len(got) != 1 || got[0].DimChunkSel != 3 {
		t.Errorf("chunk larger than dimension mismatch. got: %v", got)
	}
}

func TestChunkPlan(t *testing.T) {
	cases := []struct {
		shape, chunks []int
		grid          []int
	}{
		{[]int{4, 6, 8}, []int{2, 3, 4}, []int{2, 2, 2}},
		{[]int{5, 7, 9}, []int{2, 3, 4}, []int{3, 3, 3}},
		{[]int{10}, []int{10}, []int{1}},
		{[]int{0, 4}, []int{2, 2}, []int{0, 2}},
		{[]int{}, []int{}, []int{}},
	}
	for _, c := range cases {
		p, err := NewChunkPlan(c.shape, c.chunks)
		if err != nil {
			t.Fatalf("NewChunkPlan(%v, %v): %v", c.shape, c.chunks, err)
		}
		if !reflect.DeepEqual(c.grid, p.Grid()) {
			t.Errorf("grid mismatch for %v/%v. want: %v got: %v", c.shape, c.chunks, c.grid, p.Grid())
		}
		if len(p.projections()) != p.NumChunks() {
			t.Errorf("%v/%v: %d projections for %d chunks", c.shape, c.chunks, len(p.projections()), p.NumChunks())
		}
		if n := product(c.shape); n > 0 {
			checkCoverage(t, p, n)
		}
	}

	if _, err := NewChunkPlan([]int{4, 4}, []int{2}); err == nil {
		t.Error("expected rank mismatch error")
	}
	if _, err := NewChunkPlan([]int{4}, []int{0}); err == nil {
		t.Error("expected error for zero chunk size")
	}
}

// checkCoverage asserts that the chunk selections cover every element of the
// array exactly once
func checkCoverage(t *testing.T, p *ChunkPlan, n int) {
	t.Helper()
	seen := make([]int, n)
	strides := cStrides(p.Shape)
	for _, proj := range p.projections() {
		extent := proj.ChunkSelection
		total := product(extent)
		idx := make([]int, len(extent))
		walk := cStrides(extent)
		for i := 0; i < total; i++ {
			rem := i
			off := 0
			for d := range extent {
				idx[d] = rem / walk[d]
				rem %= walk[d]
				off += (proj.OutSelection[d] + idx[d]) * strides[d]
			}
			seen[off]++
		}
	}
	for i, c := range seen {
		if c != 1 {
			t.Fatalf("shape %v chunks %v: element %d covered %d times", p.Shape, p.Chunks, i, c)
		}
	}
}

func TestProjectionOrder(t *testing.T) {
	p, err := NewChunkPlan([]int{4, 4}, []int{2, 2})
	if err != nil {
		t.Fatal(err)
	}
	var got [][]int
	for _, proj := range p.projections() {
		got = append(got, proj.ChunkCoords)
	}
	expect := [][]int{{0, 0}, {0, 1}, {1, 0}, {1, 1}}
	if !reflect.DeepEqual(expect, got) {
		t.Errorf("chunk order mismatch. want: %v got: %v", expect, got)
	}
}

package gip

import (
	"sort"

	"github.com/dhconnelly/rtreego"
	"github.com/paulmach/orb"
)

// minExtent is used as the size of degenerate (zero width or height) rectangles,
// which the R-tree does not accept
const minExtent = 1e-9

// ChunkIndex provides spatial queries over the world-space footprint of a
// chunk plan, e.g. to find which chunks must be processed to cover a region
// of interest.
type ChunkIndex struct {
	entries []chunkEntry
	rtree   *rtreego.Rtree
}

type chunkEntry struct {
	idx   int
	bound orb.Bound
}

// Bounds implements rtreego.Spatial
func (e chunkEntry) Bounds() rtreego.Rect {
	return boundToRect(e.bound)
}

func boundToRect(b orb.Bound) rtreego.Rect {
	lengths := []float64{b.Max[0] - b.Min[0], b.Max[1] - b.Min[1]}
	for i := range lengths {
		if lengths[i] < minExtent {
			lengths[i] = minExtent
		}
	}
	rect, _ := rtreego.NewRect(rtreego.Point{b.Min[0], b.Min[1]}, lengths)
	return rect
}

// NewChunkIndex indexes the world bounds of chunks, computed with the affine
// geotransform gt
func NewChunkIndex(chunks []Chunk, gt [6]float64) *ChunkIndex {
	idx := &ChunkIndex{
		entries: make([]chunkEntry, len(chunks)),
		rtree:   rtreego.NewTree(2, 25, 50),
	}
	for i, c := range chunks {
		idx.entries[i] = chunkEntry{idx: i, bound: c.WorldBounds(gt)}
		idx.rtree.Insert(idx.entries[i])
	}
	return idx
}

// Len returns the number of indexed chunks
func (idx *ChunkIndex) Len() int {
	return len(idx.entries)
}

// Bounds returns the world bounds of chunk i
func (idx *ChunkIndex) Bounds(i int) orb.Bound {
	return idx.entries[i].bound
}

// Query returns the indexes, in increasing order, of the chunks whose world
// bounds intersect b
func (idx *ChunkIndex) Query(b orb.Bound) []int {
	var ret []int
	for _, s := range idx.rtree.SearchIntersect(boundToRect(b)) {
		e := s.(chunkEntry)
		if e.bound.Intersects(b) {
			ret = append(ret, e.idx)
		}
	}
	sort.Ints(ret)
	return ret
}

package gip

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
)

func TestChunkIndex(t *testing.T) {
	gt := [6]float64{500000, 10, 0, 4000000, 0, -10}
	chunks := PlanChunks(1000, 1000, 1, 100000.0/1024/1024)
	assert.Len(t, chunks, 10)

	idx := NewChunkIndex(chunks, gt)
	assert.Equal(t, 10, idx.Len())
	assert.Equal(t, orb.Bound{Min: orb.Point{500000, 3999000}, Max: orb.Point{510000, 4000000}}, idx.Bounds(0))

	testfunc := func(b orb.Bound, expected []int) {
		t.Helper()
		assert.Equal(t, expected, idx.Query(b))
	}
	// whole raster
	testfunc(orb.Bound{Min: orb.Point{499000, 3989000}, Max: orb.Point{511000, 4001000}},
		[]int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9})
	// inside a single chunk
	testfunc(orb.Bound{Min: orb.Point{501000, 3995100}, Max: orb.Point{502000, 3995900}}, []int{4})
	// straddling two chunks
	testfunc(orb.Bound{Min: orb.Point{501000, 3997500}, Max: orb.Point{502000, 3998500}}, []int{1, 2})
	// a point
	testfunc(orb.Point{505000, 3990500}.Bound(), []int{9})
	// outside
	testfunc(orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{1, 1}}, nil)
}

func TestChunkIndexEmpty(t *testing.T) {
	idx := NewChunkIndex(nil, [6]float64{0, 1, 0, 0, 0, 1})
	assert.Equal(t, 0, idx.Len())
	assert.Empty(t, idx.Query(orb.Bound{Min: orb.Point{-1, -1}, Max: orb.Point{1, 1}}))
}

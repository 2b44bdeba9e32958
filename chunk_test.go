package gip

import (
	"math"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func checkPartition(t *testing.T, chunks []Chunk, width, height, rows int) {
	t.Helper()
	require.NotEmpty(t, chunks)
	assert.Equal(t, 0, chunks[0].MinY)
	assert.Equal(t, height-1, chunks[len(chunks)-1].MaxY)
	for i, c := range chunks {
		assert.Equal(t, 0, c.MinX)
		assert.Equal(t, width-1, c.MaxX)
		assert.LessOrEqual(t, c.MinY, c.MaxY)
		assert.LessOrEqual(t, c.Height(), rows)
		if i < len(chunks)-1 {
			assert.Equal(t, rows, c.Height(), "chunk %d", i)
			assert.Equal(t, c.MaxY+1, chunks[i+1].MinY, "chunk %d", i)
		}
	}
}

func TestRowsPerChunk(t *testing.T) {
	testfunc := func(w, h, bpp int, budget float64, expected int) {
		t.Helper()
		assert.Equal(t, expected, RowsPerChunk(w, h, bpp, budget))
	}
	testfunc(1024, 2048, 4, 4, 1024)
	testfunc(1024, 2048, 4, 3.999, 1023)
	testfunc(1024, 100, 4, 4, 100)
	testfunc(1000, 1000, 1, 0.5, 524)
	// budget smaller than a single row
	testfunc(1024*1024, 10, 8, 1, 1)
	testfunc(1024, 10, 1, 0, 1)
	testfunc(1024, 10, 1, -5, 1)
	testfunc(1024, 10, 1, math.NaN(), 1)
}

func TestPlanChunks(t *testing.T) {
	type tc struct {
		w, h, bpp int
		budget    float64
		rows      int
		count     int
	}
	cases := []tc{
		{1024, 2048, 4, 4, 1024, 2},
		{1024, 2049, 4, 4, 1024, 3},
		{1024, 2047, 4, 4, 1024, 2},
		{1024, 10, 4, 4, 10, 1},
		{1, 1, 1, 128, 1, 1},
		{1000, 1000, 1, 0.5, 524, 2},
		{4096, 7, 16, 0.0001, 1, 7},
		{300, 5000, 2, 1, 1747, 3},
	}
	for _, c := range cases {
		chunks := PlanChunks(c.w, c.h, c.bpp, c.budget)
		assert.Len(t, chunks, c.count, "%+v", c)
		checkPartition(t, chunks, c.w, c.h, c.rows)
	}
}

func TestPlanChunksScenario(t *testing.T) {
	chunks := PlanChunks(1024, 2048, 4, 4)
	assert.Equal(t, []Chunk{
		{MinX: 0, MinY: 0, MaxX: 1023, MaxY: 1023},
		{MinX: 0, MinY: 1024, MaxX: 1023, MaxY: 2047},
	}, chunks)
}

func TestPlanChunksEmpty(t *testing.T) {
	assert.Empty(t, PlanChunks(0, 10, 1, 128))
	assert.Empty(t, PlanChunks(10, 0, 1, 128))
	assert.Empty(t, PlanChunks(10, 10, 0, 128))
}

func TestPlanChunksIdempotent(t *testing.T) {
	assert.Equal(t, PlanChunks(12345, 23456, 2, 64), PlanChunks(12345, 23456, 2, 64))
}

func TestChunkWindow(t *testing.T) {
	c := Chunk{MinX: 0, MinY: 100, MaxX: 499, MaxY: 199}
	x, y, w, h := c.Window()
	assert.Equal(t, []int{0, 100, 500, 100}, []int{x, y, w, h})
	assert.Equal(t, "((0, 100), (499, 199))", c.String())
}

func TestChunkWorldBounds(t *testing.T) {
	gt := [6]float64{1000, 10, 0, 5000, 0, -10}
	c := Chunk{MinX: 0, MinY: 10, MaxX: 99, MaxY: 19}
	b := c.WorldBounds(gt)
	assert.Equal(t, orb.Bound{Min: orb.Point{1000, 4800}, Max: orb.Point{2000, 4900}}, b)
}

func TestDataTypeSize(t *testing.T) {
	testfunc := func(dt DataType, size int) {
		t.Helper()
		s, err := dt.Size()
		require.NoError(t, err)
		assert.Equal(t, size, s)
	}
	testfunc(Byte, 1)
	testfunc(UInt16, 2)
	testfunc(Int16, 2)
	testfunc(UInt32, 4)
	testfunc(Int32, 4)
	testfunc(Float32, 4)
	testfunc(Float64, 8)
	testfunc(CInt16, 4)
	testfunc(CInt32, 8)
	testfunc(CFloat32, 8)
	testfunc(CFloat64, 16)

	for _, dt := range []DataType{Unknown, 12, -1} {
		_, err := dt.Size()
		var dterr *DataTypeError
		require.ErrorAs(t, err, &dterr)
		assert.Equal(t, int(dt), dterr.Code)
	}
	assert.Equal(t, "Float32", Float32.String())
	assert.Equal(t, "Unknown", DataType(42).String())
}

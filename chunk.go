package gip

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
)

// A Chunk is a horizontal strip of a raster, in pixel coordinates. All bounds
// are inclusive: the chunk spans columns MinX to MaxX and rows MinY to MaxY.
type Chunk struct {
	MinX, MinY int
	MaxX, MaxY int
}

func (c Chunk) Width() int {
	return c.MaxX - c.MinX + 1
}

func (c Chunk) Height() int {
	return c.MaxY - c.MinY + 1
}

// Window returns the chunk as an offset and size, i.e. in the form expected by
// gdal_translate's -srcwin switch or a windowed read
func (c Chunk) Window() (x, y, width, height int) {
	return c.MinX, c.MinY, c.Width(), c.Height()
}

func (c Chunk) String() string {
	return fmt.Sprintf("((%d, %d), (%d, %d))", c.MinX, c.MinY, c.MaxX, c.MaxY)
}

// WorldBounds returns the bounding box of the chunk in world coordinates, using
// the outer pixel edges of the chunk
func (c Chunk) WorldBounds(gt [6]float64) orb.Bound {
	x0, y0 := float64(c.MinX), float64(c.MinY)
	x1, y1 := float64(c.MaxX+1), float64(c.MaxY+1)
	b := orb.Bound{Min: affine(gt, x0, y0), Max: affine(gt, x0, y0)}
	b = b.Extend(affine(gt, x1, y0))
	b = b.Extend(affine(gt, x0, y1))
	b = b.Extend(affine(gt, x1, y1))
	return b
}

func affine(gt [6]float64, x, y float64) orb.Point {
	return orb.Point{
		gt[0] + x*gt[1] + y*gt[2],
		gt[3] + x*gt[4] + y*gt[5],
	}
}

// RowsPerChunk returns the number of full rows of width pixels of
// bytesPerPixel bytes that fit in budgetMB megabytes. The result is clamped to
// [1,height] so that a budget smaller than a single row still yields one-row
// chunks.
func RowsPerChunk(width, height, bytesPerPixel int, budgetMB float64) int {
	rows := math.Floor(budgetMB * 1024 * 1024 / float64(bytesPerPixel) / float64(width))
	if math.IsNaN(rows) || rows < 1 {
		return 1
	}
	if rows > float64(height) {
		return height
	}
	return int(rows)
}

// PlanChunks splits a width*height raster into horizontal strips of at most
// budgetMB megabytes each. Every strip spans the full width; all strips have
// the same number of rows except possibly the last, shorter one.
//
// An empty raster, or a non positive pixel size, yields no chunks.
func PlanChunks(width, height, bytesPerPixel int, budgetMB float64) []Chunk {
	if width <= 0 || height <= 0 || bytesPerPixel <= 0 {
		return nil
	}
	rows := RowsPerChunk(width, height, bytesPerPixel, budgetMB)
	count := (height + rows - 1) / rows
	chunks := make([]Chunk, count)
	for i := range chunks {
		maxY := rows*(i+1) - 1
		if maxY > height-1 {
			maxY = height - 1
		}
		chunks[i] = Chunk{
			MinX: 0,
			MinY: rows * i,
			MaxX: width - 1,
			MaxY: maxY,
		}
	}
	return chunks
}

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/airbusgeo/gip"
	"github.com/paulmach/orb"
	"github.com/spf13/cobra"
)

var asJSON bool
var bbox string

type chunkJSON struct {
	Index  int         `json:"index"`
	MinX   int         `json:"minx"`
	MinY   int         `json:"miny"`
	MaxX   int         `json:"maxx"`
	MaxY   int         `json:"maxy"`
	Bounds *[4]float64 `json:"bounds,omitempty"`
}

// parseBBox parses a minx,miny,maxx,maxy bounding box
func parseBBox(s string) (orb.Bound, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return orb.Bound{}, fmt.Errorf("invalid bbox %q: expecting minx,miny,maxx,maxy", s)
	}
	var v [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return orb.Bound{}, fmt.Errorf("invalid bbox %q: %w", s, err)
		}
		v[i] = f
	}
	if v[0] > v[2] || v[1] > v[3] {
		return orb.Bound{}, fmt.Errorf("invalid bbox %q: min greater than max", s)
	}
	return orb.Bound{Min: orb.Point{v[0], v[1]}, Max: orb.Point{v[2], v[3]}}, nil
}

// selectChunks returns the indexes of the chunks of g to process: all of them,
// or those intersecting bbox if it is not empty
func selectChunks(g *gip.GeoData, bbox string) ([]int, error) {
	if bbox == "" {
		ids := make([]int, len(g.Chunks()))
		for i := range ids {
			ids[i] = i
		}
		return ids, nil
	}
	b, err := parseBBox(bbox)
	if err != nil {
		return nil, err
	}
	idx, err := g.ChunkIndex()
	if err != nil {
		return nil, fmt.Errorf("bbox selection requires a georeferenced dataset: %w", err)
	}
	return idx.Query(b), nil
}

var chunksCmd = &cobra.Command{
	Use:   "chunks file",
	Short: "print the chunk plan of a raster file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		g, err := cfg.Open(args[0], false)
		if err != nil {
			return err
		}
		defer g.Close()
		if err := g.Chunk(); err != nil {
			return err
		}
		ids, err := selectChunks(g, bbox)
		if err != nil {
			return err
		}
		gt, gterr := g.GeoTransform()
		chunks := g.Chunks()
		if !asJSON {
			for _, i := range ids {
				fmt.Printf("%d %v\n", i, chunks[i])
			}
			return nil
		}
		out := make([]chunkJSON, len(ids))
		for o, i := range ids {
			c := chunks[i]
			out[o] = chunkJSON{Index: i, MinX: c.MinX, MinY: c.MinY, MaxX: c.MaxX, MaxY: c.MaxY}
			if gterr == nil {
				b := c.WorldBounds(gt)
				out[o].Bounds = &[4]float64{b.Min[0], b.Min[1], b.Max[0], b.Max[1]}
			}
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	},
}

func init() {
	chunksCmd.Flags().BoolVar(&asJSON, "json", false, "json output")
	chunksCmd.Flags().StringVar(&bbox, "bbox", "", "only print chunks intersecting minx,miny,maxx,maxy (world coordinates)")
}

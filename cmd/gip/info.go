package main

import (
	"context"
	"fmt"
	"sort"

	"github.com/airbusgeo/gip"
	"github.com/paulmach/orb"
	"github.com/sourcegraph/conc/pool"
	"github.com/spf13/cobra"
)

var parallelism int

type datasetInfo struct {
	idx      int
	path     string
	width    int
	height   int
	bands    int
	dtype    gip.DataType
	origin   orb.Point
	hasGT    bool
	projSize int
	chunks   int
}

func (di datasetInfo) String() string {
	origin := "none"
	if di.hasGT {
		origin = fmt.Sprintf("%g,%g", di.origin[0], di.origin[1])
	}
	return fmt.Sprintf("%s: %dx%dx%d %s origin=%s projection=%db chunks=%d",
		di.path, di.width, di.height, di.bands, di.dtype, origin, di.projSize, di.chunks)
}

func describe(idx int, path string) (datasetInfo, error) {
	g, err := cfg.Open(path, false)
	if err != nil {
		return datasetInfo{}, err
	}
	defer g.Close()
	di := datasetInfo{
		idx:    idx,
		path:   path,
		width:  g.Width(),
		height: g.Height(),
		bands:  g.Bands(),
		dtype:  g.DataType(),
	}
	if p, err := g.PixelToWorld(0, 0); err == nil {
		di.origin, di.hasGT = p, true
	}
	proj, err := g.Projection()
	if err != nil {
		return di, err
	}
	di.projSize = len(proj)
	if err := g.Chunk(); err != nil {
		return di, err
	}
	di.chunks = len(g.Chunks())
	return di, nil
}

var infoCmd = &cobra.Command{
	Use:   "info file...",
	Short: "print size, type, georeferencing and chunk count of raster files",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p := pool.NewWithResults[datasetInfo]().
			WithContext(cmd.Context()).
			WithMaxGoroutines(parallelism)
		for i, name := range args {
			i, name := i, name
			p.Go(func(ctx context.Context) (datasetInfo, error) {
				if err := ctx.Err(); err != nil {
					return datasetInfo{}, err
				}
				return describe(i, name)
			})
		}
		infos, err := p.Wait()
		sort.Slice(infos, func(i, j int) bool { return infos[i].idx < infos[j].idx })
		for _, di := range infos {
			fmt.Println(di)
		}
		return err
	},
}

func init() {
	infoCmd.Flags().IntVar(&parallelism, "parallelism", 4, "number of files opened concurrently")
}

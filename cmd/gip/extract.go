package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/airbusgeo/gip"
	"github.com/airbusgeo/gip/gdal"
	"github.com/airbusgeo/godal"
	shellwords "github.com/mattn/go-shellwords"
	"github.com/spf13/cobra"
	"github.com/tbonfort/gobs"
	"go.uber.org/zap"
)

var extractSwitches string
var copts []string
var configOpts []string
var buildVRT bool
var chunkIndex int
var extractBBox string
var workers int

// checkSwitches rejects gdal_translate switches that conflict with the
// windowing done for each chunk
func checkSwitches(sw []string) error {
	for _, s := range sw {
		switch s {
		case "-of", "-sds", "-te", "-outsize", "-tr", "-srcwin", "-projwin", "-a_ullr", "-a_gt":
			return fmt.Errorf("%s switch not allowed", s)
		}
	}
	return nil
}

// creationOptions applies KEY=VALUE overrides to the default creation
// options. An empty value removes the option.
func creationOptions(overrides []string) (map[string]string, error) {
	opts := map[string]string{
		"TILED":    "YES",
		"COMPRESS": "LZW",
	}
	for _, co := range overrides {
		k, v, ok := strings.Cut(co, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid creation option %q, expecting KEY=VALUE", co)
		}
		if v == "" {
			delete(opts, k)
		} else {
			opts[k] = v
		}
	}
	return opts, nil
}

func formatOptions(opts map[string]string) []string {
	ret := make([]string, 0, len(opts))
	for k, v := range opts {
		ret = append(ret, k+"="+v)
	}
	sort.Strings(ret)
	return ret
}

// chunkSwitches returns the gdal_translate switches extracting chunk c
func chunkSwitches(switches []string, c gip.Chunk) []string {
	x, y, w, h := c.Window()
	ret := append([]string(nil), switches...)
	return append(ret, "-srcwin",
		fmt.Sprintf("%d", x), fmt.Sprintf("%d", y),
		fmt.Sprintf("%d", w), fmt.Sprintf("%d", h))
}

func stripName(prefix string, idx int) string {
	return fmt.Sprintf("%s-%d.tif", prefix, idx)
}

// extractChunk writes chunk idx of src to dst, using a private handle on src
// as godal datasets must not be shared between goroutines
func extractChunk(ctx context.Context, src *gip.GeoData, idx int, dst string, switches, coptstring []string) error {
	g, err := src.Clone()
	if err != nil {
		return err
	}
	defer g.Close()
	priv, err := cfg.Open(g.Path(), false)
	if err != nil {
		return err
	}
	defer priv.Close()
	ds, ok := priv.Handle().Dataset().(*gdal.Dataset)
	if !ok {
		return fmt.Errorf("%s is not a gdal dataset", g.Path())
	}
	chunks := g.Chunks()
	if idx < 0 || idx >= len(chunks) {
		return fmt.Errorf("chunk %d out of range [0,%d)", idx, len(chunks))
	}

	local := dst
	if strings.HasPrefix(dst, "gs://") {
		local = cfg.TempPath() + ".tif"
	}
	outds, err := ds.Godal().Translate(local, chunkSwitches(switches, chunks[idx]),
		godal.CreationOption(coptstring...),
		godal.ConfigOption(configOpts...),
		godal.GTiff)
	if err != nil {
		return fmt.Errorf("translate chunk %d: %w", idx, err)
	}
	if err = outds.Close(); err != nil {
		return fmt.Errorf("close strip %s: %w", local, err)
	}
	return deliver(ctx, local, dst)
}

var extractCmd = &cobra.Command{
	Use:   "extract srcfile dstprefix",
	Short: "write each chunk of srcfile to dstprefix-N.tif",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		srcDatasetName, prefix := args[0], args[1]

		switches, err := shellwords.Parse(extractSwitches)
		if err != nil {
			return fmt.Errorf("invalid switches: %w", err)
		}
		if err := checkSwitches(switches); err != nil {
			return err
		}
		co, err := creationOptions(copts)
		if err != nil {
			return err
		}
		coptstring := formatOptions(co)

		src, err := cfg.Open(srcDatasetName, false)
		if err != nil {
			return err
		}
		defer src.Close()
		if err := src.Chunk(); err != nil {
			return err
		}
		ids, err := selectChunks(src, extractBBox)
		if err != nil {
			return err
		}
		if chunkIndex >= 0 {
			if chunkIndex >= len(src.Chunks()) {
				return fmt.Errorf("chunk %d out of range, %s has %d chunks", chunkIndex, srcDatasetName, len(src.Chunks()))
			}
			ids = []int{chunkIndex}
		}

		if !strings.HasPrefix(prefix, "gs://") {
			if err := os.MkdirAll(filepath.Dir(prefix), 0o755); err != nil {
				return fmt.Errorf("create %s: %w", filepath.Dir(prefix), err)
			}
		}

		p := gobs.NewPool(workers)
		batch := p.Batch()
		strips := make([]string, len(ids))
		for s, idx := range ids {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			idx := idx
			dst := stripName(prefix, idx)
			strips[s] = dst
			batch.Submit(func() error {
				select {
				case <-ctx.Done():
					return ctx.Err()
				default:
				}
				logger.Info("extract chunk", zap.Int("chunk", idx), zap.String("dst", dst))
				return extractChunk(ctx, src, idx, dst, switches, coptstring)
			})
		}
		if err := batch.Wait(); err != nil {
			return err
		}

		if !buildVRT || len(strips) == 0 {
			return nil
		}
		vrtName := prefix + ".vrt"
		local := vrtName
		if strings.HasPrefix(vrtName, "gs://") {
			local = cfg.TempPath() + ".vrt"
		}
		vrt, err := godal.BuildVRT(local, strips, nil)
		if err != nil {
			return fmt.Errorf("create vrt: %w", err)
		}
		if err = vrt.Close(); err != nil {
			return fmt.Errorf("close vrt: %w", err)
		}
		return deliver(ctx, local, vrtName)
	},
}

func init() {
	flags := extractCmd.Flags()
	flags.StringVar(&extractSwitches, "switches", "", "gdal_translate switches applied to every chunk, e.g: \"-b 1 -b 3 -ot Byte\"")
	flags.StringArrayVar(&copts, "co", nil, "tif creation options, eg, \"COMPRESS=DEFLATE\" (empty value removes a default)")
	flags.StringArrayVar(&configOpts, "config", nil, "gdal configuration options")
	flags.BoolVar(&buildVRT, "vrt", false, "build a dstprefix.vrt mosaic of the extracted chunks")
	flags.IntVar(&chunkIndex, "chunk", -1, "only extract this chunk")
	flags.StringVar(&extractBBox, "bbox", "", "only extract chunks intersecting minx,miny,maxx,maxy (world coordinates)")
	flags.IntVar(&workers, "parallelism", 4, "number of concurrent gdal_translate")
}

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"cloud.google.com/go/storage"
	"github.com/airbusgeo/gip"
	"github.com/airbusgeo/gip/gdal"
	"github.com/airbusgeo/godal"
	"github.com/airbusgeo/osio"
	"github.com/airbusgeo/osio/gcs"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var stcl *storage.Client
var gcsa *osio.Adapter
var cfg *gip.Config
var logger *zap.Logger

var format string
var chunkSize float64
var verbose int
var workDir string
var useGCS bool
var blocksize string
var numCachedBlocks int
var startTime time.Time

var rootCmd = &cobra.Command{
	Use:   "gip",
	Short: "raster chunking cli",
	CompletionOptions: cobra.CompletionOptions{
		DisableDefaultCmd: true,
	},
	SilenceUsage: true,

	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		startTime = time.Now()
		var err error
		if logger, err = gip.NewLogger(verbose); err != nil {
			return fmt.Errorf("create logger: %w", err)
		}
		ctx := cmd.Context()

		if useGCS {
			if stcl, err = storage.NewClient(ctx); err != nil {
				return fmt.Errorf("storage.newclient: %w", err)
			}
			gcsh, err := gcs.Handle(ctx, gcs.GCSClient(stcl))
			if err != nil {
				return fmt.Errorf("gcs.handle: %w", err)
			}
			gcsa, err = osio.NewAdapter(gcsh, osio.BlockSize(blocksize), osio.NumCachedBlocks(numCachedBlocks))
			if err != nil {
				return fmt.Errorf("osio.new: %w", err)
			}
			if err := godal.RegisterVSIHandler("gs://", gcsa); err != nil {
				return fmt.Errorf("register osio: %w", err)
			}
		}

		backend, err := gdal.NewBackend(gdal.WithLogger(logger))
		if err != nil {
			return fmt.Errorf("gdal backend: %w", err)
		}
		cfg, err = gip.NewConfig(backend,
			gip.DefaultFormat(format),
			gip.ChunkSize(chunkSize),
			gip.Verbose(verbose),
			gip.WorkDir(workDir),
			gip.Logger(logger))
		if err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, _ []string) {
		logger.Sugar().Debugf("command %s took %.1fs",
			cmd.Name(), time.Since(startTime).Seconds())
		_ = logger.Sync()
		if stcl != nil {
			stcl.Close()
		}
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&format, "format", "GTiff", "default output format driver")
	flags.Float64Var(&chunkSize, "chunksize", 128, "chunk size in megabytes")
	flags.IntVar(&verbose, "verbose", 1, "verbosity level (0 errors only, 4 and above for debug output)")
	flags.StringVar(&workDir, "workdir", os.TempDir(), "directory for temporary files")
	flags.BoolVar(&useGCS, "gcs", false, "enable gs:// access")
	flags.StringVar(&blocksize, "blocksize", "512k", "gs cache blocksize")
	flags.IntVar(&numCachedBlocks, "numblocks", 1000, "number of gs cached blocks")
	rootCmd.AddCommand(infoCmd, chunksCmd, extractCmd, planCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// parseGCS splits a gs://bucket/object url
func parseGCS(url string) (string, string, error) {
	rest, ok := strings.CutPrefix(url, "gs://")
	if !ok {
		return "", "", fmt.Errorf("%s is not a gs:// url", url)
	}
	bucket, object, _ := strings.Cut(rest, "/")
	if bucket == "" || object == "" {
		return "", "", fmt.Errorf("%s: missing bucket or object", url)
	}
	return bucket, object, nil
}

// deliver moves the local file to dst, uploading it if dst is on gs://
func deliver(ctx context.Context, local, dst string) error {
	if !strings.HasPrefix(dst, "gs://") {
		if local == dst {
			return nil
		}
		if err := os.Rename(local, dst); err != nil {
			return fmt.Errorf("rename %s->%s: %w", local, dst, err)
		}
		return nil
	}
	defer os.Remove(local)
	if stcl == nil {
		return fmt.Errorf("upload %s: gs:// access requires --gcs", dst)
	}
	b, o, err := parseGCS(dst)
	if err != nil {
		return fmt.Errorf("invalid dst %s: %w", dst, err)
	}
	r, err := os.Open(local)
	if err != nil {
		return fmt.Errorf("failed to reopen %s: %w", local, err)
	}
	defer r.Close()
	w := stcl.Bucket(b).Object(o).NewWriter(ctx)
	if _, err = io.Copy(w, r); err != nil {
		w.Close()
		return fmt.Errorf("upload %s: %w", dst, err)
	}
	if err = w.Close(); err != nil {
		return fmt.Errorf("close %s: %w", dst, err)
	}
	return nil
}

package gip

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the settings shared by every GeoData created from it: the
// backend used to open and create datasets, the default output format, the
// memory budget used when chunking, and logging.
//
// A Config is read at call time, so changing ChunkSize affects the next call
// to GeoData.Chunk of every GeoData built from it. Mutating a Config while it
// is in use from other goroutines is not synchronized.
type Config struct {
	Backend Backend
	// DefaultFormat is the driver name used by Create when no Format option is given
	DefaultFormat string
	// ChunkSize is the approximate size in megabytes of a single chunk
	ChunkSize float64
	Verbose   int
	WorkDir   string
	Logger    *zap.Logger
}

type ErrInvalidOption struct {
	msg string
}

func (err ErrInvalidOption) Error() string {
	return err.msg
}

type ConfigOption func(c *Config) error

// DefaultFormat sets the driver used when creating datasets
func DefaultFormat(format string) ConfigOption {
	return func(c *Config) error {
		if format == "" {
			return ErrInvalidOption{"default format must not be empty"}
		}
		c.DefaultFormat = format
		return nil
	}
}

// ChunkSize sets the memory budget, in megabytes, of a single chunk
func ChunkSize(mb float64) ConfigOption {
	return func(c *Config) error {
		if !(mb > 0) {
			return ErrInvalidOption{"chunk size must be >0"}
		}
		c.ChunkSize = mb
		return nil
	}
}

// Verbose sets the verbosity level. Unless a Logger option is also given, the
// logger is derived from it (see NewLogger)
func Verbose(level int) ConfigOption {
	return func(c *Config) error {
		if level < 0 {
			return ErrInvalidOption{"verbosity must be >=0"}
		}
		c.Verbose = level
		return nil
	}
}

// WorkDir sets the directory used for temporary datasets
func WorkDir(dir string) ConfigOption {
	return func(c *Config) error {
		if dir == "" {
			return ErrInvalidOption{"work directory must not be empty"}
		}
		c.WorkDir = dir
		return nil
	}
}

func Logger(l *zap.Logger) ConfigOption {
	return func(c *Config) error {
		c.Logger = l
		return nil
	}
}

// NewConfig creates a Config using the given backend.
// Default options are:
// - GTiff output format
// - 128MB chunks
// - verbosity 1 (warnings and errors are logged)
// - the system temporary directory as work directory
func NewConfig(backend Backend, options ...ConfigOption) (*Config, error) {
	c := &Config{
		Backend:       backend,
		DefaultFormat: "GTiff",
		ChunkSize:     128,
		Verbose:       1,
		WorkDir:       os.TempDir(),
	}
	for _, o := range options {
		if err := o(c); err != nil {
			return nil, err
		}
	}
	if c.Logger == nil {
		l, err := NewLogger(c.Verbose)
		if err != nil {
			return nil, fmt.Errorf("create logger: %w", err)
		}
		c.Logger = l
	}
	return c, nil
}

// NewLogger returns a console logger whose level follows the verbosity scale:
// 0 only logs errors, 1 warnings, 2 and 3 informational messages, and 4 and
// above enables debug output (dataset open/close, chunk plans).
func NewLogger(verbose int) (*zap.Logger, error) {
	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(verbosityLevel(verbose))
	cfg.DisableStacktrace = true
	return cfg.Build()
}

func verbosityLevel(verbose int) zapcore.Level {
	switch {
	case verbose <= 0:
		return zapcore.ErrorLevel
	case verbose == 1:
		return zapcore.WarnLevel
	case verbose <= 3:
		return zapcore.InfoLevel
	default:
		return zapcore.DebugLevel
	}
}

func (c *Config) logger() *zap.Logger {
	if c.Logger == nil {
		return zap.NewNop()
	}
	return c.Logger
}

// TempPath returns a unique, not yet existing, path inside the work directory
func (c *Config) TempPath() string {
	return filepath.Join(c.WorkDir, uuid.New().String())
}

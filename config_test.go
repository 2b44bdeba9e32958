package gip

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestConfigDefaults(t *testing.T) {
	cfg, err := NewConfig(nil)
	require.NoError(t, err)
	assert.Equal(t, "GTiff", cfg.DefaultFormat)
	assert.Equal(t, 128.0, cfg.ChunkSize)
	assert.Equal(t, 1, cfg.Verbose)
	assert.Equal(t, os.TempDir(), cfg.WorkDir)
	require.NotNil(t, cfg.Logger)
	assert.True(t, cfg.Logger.Core().Enabled(zapcore.WarnLevel))
	assert.False(t, cfg.Logger.Core().Enabled(zapcore.InfoLevel))
}

func TestConfigOptions(t *testing.T) {
	l := zap.NewNop()
	cfg, err := NewConfig(nil, DefaultFormat("HFA"), ChunkSize(0.5), Verbose(4), WorkDir("/scratch"), Logger(l))
	require.NoError(t, err)
	assert.Equal(t, "HFA", cfg.DefaultFormat)
	assert.Equal(t, 0.5, cfg.ChunkSize)
	assert.Equal(t, 4, cfg.Verbose)
	assert.Equal(t, "/scratch", cfg.WorkDir)
	assert.Same(t, l, cfg.Logger)

	cfg, err = NewConfig(nil, Verbose(5))
	require.NoError(t, err)
	assert.True(t, cfg.Logger.Core().Enabled(zapcore.DebugLevel))
}

func TestConfigInvalidOptions(t *testing.T) {
	testfunc := func(opt ConfigOption) {
		t.Helper()
		_, err := NewConfig(nil, opt)
		assert.ErrorAs(t, err, &ErrInvalidOption{})
	}
	testfunc(ChunkSize(0))
	testfunc(ChunkSize(-1))
	testfunc(DefaultFormat(""))
	testfunc(Verbose(-1))
	testfunc(WorkDir(""))
}

func TestVerbosityLevel(t *testing.T) {
	assert.Equal(t, zapcore.ErrorLevel, verbosityLevel(0))
	assert.Equal(t, zapcore.WarnLevel, verbosityLevel(1))
	assert.Equal(t, zapcore.InfoLevel, verbosityLevel(2))
	assert.Equal(t, zapcore.InfoLevel, verbosityLevel(3))
	assert.Equal(t, zapcore.DebugLevel, verbosityLevel(4))
	assert.Equal(t, zapcore.DebugLevel, verbosityLevel(10))
}

func TestTempPath(t *testing.T) {
	cfg := &Config{WorkDir: "/work"}
	p1, p2 := cfg.TempPath(), cfg.TempPath()
	assert.Equal(t, "/work", filepath.Dir(p1))
	assert.NotEqual(t, p1, p2)
	assert.NotNil(t, (&Config{}).logger())
}

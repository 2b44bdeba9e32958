// Package gdal implements gip.Backend on top of the GDAL library, through the
// godal bindings.
package gdal

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/airbusgeo/gip"
	"github.com/airbusgeo/godal"
	"go.uber.org/zap"
)

var registerOnce sync.Once

// Backend opens and creates datasets with GDAL.
type Backend struct {
	logger *zap.Logger
}

type BackendOption func(b *Backend) error

// WithLogger sets the logger receiving GDAL warnings and debug messages
func WithLogger(l *zap.Logger) BackendOption {
	return func(b *Backend) error {
		if l == nil {
			return fmt.Errorf("nil logger")
		}
		b.logger = l
		return nil
	}
}

// NewBackend registers all the GDAL drivers (once per process) and returns a
// Backend using them.
func NewBackend(options ...BackendOption) (*Backend, error) {
	b := &Backend{logger: zap.NewNop()}
	for _, o := range options {
		if err := o(b); err != nil {
			return nil, err
		}
	}
	registerOnce.Do(godal.RegisterAll)
	return b, nil
}

// errorHandler turns GDAL failures into *gip.BackendError carrying the CPLE
// error code, and logs warnings instead of failing on them.
func (b *Backend) errorHandler(path string) godal.ErrorHandler {
	return func(ec godal.ErrorCategory, code int, msg string) error {
		switch {
		case ec >= godal.CE_Failure:
			return &gip.BackendError{Code: code, Message: msg}
		case ec == godal.CE_Warning:
			b.logger.Warn(msg, zap.String("path", path), zap.Int("code", code))
		default:
			b.logger.Debug(msg, zap.String("path", path), zap.Int("code", code))
		}
		return nil
	}
}

func (b *Backend) Open(path string, update bool) (gip.Dataset, error) {
	eh := godal.ErrLogger(b.errorHandler(path))
	var (
		ds  *godal.Dataset
		err error
	)
	if update {
		ds, err = godal.Open(path, godal.Update(), eh)
	} else {
		ds, err = godal.Open(path, eh)
	}
	if err != nil {
		return nil, err
	}
	return &Dataset{ds: ds, eh: b.errorHandler(path)}, nil
}

func (b *Backend) Create(format, path string, width, height, bands int, dtype gip.DataType, options []string) (gip.Dataset, error) {
	gdt, err := toGodal(dtype)
	if err != nil {
		return nil, err
	}
	eh := b.errorHandler(path)
	ds, err := godal.Create(godal.DriverName(format), path, bands, gdt, width, height,
		godal.CreationOption(options...), godal.ErrLogger(eh))
	if err != nil {
		return nil, err
	}
	return &Dataset{ds: ds, eh: eh}, nil
}

// Extension returns the DMD_EXTENSION metadata item of the named driver. Some
// drivers advertise several space separated extensions, in which case the
// first one is used.
func (b *Backend) Extension(format string) (string, error) {
	drv, ok := godal.RasterDriver(godal.DriverName(format))
	if !ok {
		return "", fmt.Errorf("unknown raster driver %q", format)
	}
	ext := strings.Fields(drv.Metadata("DMD_EXTENSION"))
	if len(ext) == 0 {
		return "", nil
	}
	return ext[0], nil
}

// Dataset wraps a *godal.Dataset
type Dataset struct {
	mu sync.Mutex
	ds *godal.Dataset
	eh godal.ErrorHandler
}

// Godal returns the wrapped dataset, or nil once closed
func (d *Dataset) Godal() *godal.Dataset {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.ds
}

func (d *Dataset) Structure() gip.Structure {
	st := d.ds.Structure()
	return gip.Structure{
		Width:    st.SizeX,
		Height:   st.SizeY,
		Bands:    st.NBands,
		DataType: fromGodal(st.DataType),
	}
}

func (d *Dataset) GeoTransform() ([6]float64, error) {
	return d.ds.GeoTransform()
}

func (d *Dataset) SetGeoTransform(gt [6]float64) error {
	return d.ds.SetGeoTransform(gt)
}

func (d *Dataset) Projection() string {
	return d.ds.Projection()
}

func (d *Dataset) SetProjection(wkt string) error {
	return d.ds.SetProjection(wkt)
}

// Metadata returns the entries of domain sorted by key, GDAL not exposing
// their original order
func (d *Dataset) Metadata(domain string) []string {
	md := d.ds.Metadatas(godal.Domain(domain))
	keys := make([]string, 0, len(md))
	for k := range md {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	entries := make([]string, len(keys))
	for i, k := range keys {
		entries[i] = k + "=" + md[k]
	}
	return entries
}

func (d *Dataset) SetMetadata(domain string, entries []string) error {
	if err := d.ds.ClearMetadata(godal.Domain(domain)); err != nil {
		return fmt.Errorf("clear metadata: %w", err)
	}
	for _, e := range entries {
		k, v, _ := strings.Cut(e, "=")
		if err := d.ds.SetMetadata(k, v, godal.Domain(domain)); err != nil {
			return fmt.Errorf("set metadata %s: %w", k, err)
		}
	}
	return nil
}

// Flush only checks that the dataset is still open: GDAL flushes pending
// writes when the dataset is closed, which Handle.Release always does right
// after flushing.
func (d *Dataset) Flush() error {
	if d.Godal() == nil {
		return gip.ErrClosed
	}
	return nil
}

func (d *Dataset) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.ds == nil {
		return nil
	}
	ds := d.ds
	d.ds = nil
	return ds.Close(godal.ErrLogger(d.eh))
}

func toGodal(dt gip.DataType) (godal.DataType, error) {
	switch dt {
	case gip.Byte:
		return godal.Byte, nil
	case gip.UInt16:
		return godal.UInt16, nil
	case gip.Int16:
		return godal.Int16, nil
	case gip.UInt32:
		return godal.UInt32, nil
	case gip.Int32:
		return godal.Int32, nil
	case gip.Float32:
		return godal.Float32, nil
	case gip.Float64:
		return godal.Float64, nil
	case gip.CInt16:
		return godal.CInt16, nil
	case gip.CInt32:
		return godal.CInt32, nil
	case gip.CFloat32:
		return godal.CFloat32, nil
	case gip.CFloat64:
		return godal.CFloat64, nil
	default:
		return godal.Unknown, &gip.DataTypeError{Code: int(dt)}
	}
}

func fromGodal(dt godal.DataType) gip.DataType {
	switch dt {
	case godal.Byte:
		return gip.Byte
	case godal.UInt16:
		return gip.UInt16
	case godal.Int16:
		return gip.Int16
	case godal.UInt32:
		return gip.UInt32
	case godal.Int32:
		return gip.Int32
	case godal.Float32:
		return gip.Float32
	case godal.Float64:
		return gip.Float64
	case godal.CInt16:
		return gip.CInt16
	case godal.CInt32:
		return gip.CInt32
	case godal.CFloat32:
		return gip.CFloat32
	case godal.CFloat64:
		return gip.CFloat64
	default:
		return gip.Unknown
	}
}

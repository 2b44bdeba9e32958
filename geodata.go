package gip

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/paulmach/orb"
	"go.uber.org/zap"
)

// GeoData is a raster dataset opened or created through a Config's Backend.
//
// The underlying dataset is shared between a GeoData and all the GeoData
// cloned or assigned from it, and is flushed and closed when the last of them
// is closed. The chunk plan is not shared: each GeoData holds its own copy.
//
// A GeoData is not safe for concurrent use; clones may be used and closed from
// different goroutines.
type GeoData struct {
	path   string
	handle *Handle
	chunks []Chunk
	cfg    *Config
}

// Open opens the dataset at path, for writing if update is set. If the backend
// reports that update access is not supported, the dataset is opened read-only
// instead.
func (c *Config) Open(path string, update bool) (*GeoData, error) {
	if c.Backend == nil {
		return nil, ErrNoBackend
	}
	ds, err := c.Backend.Open(path, update)
	if err != nil && update {
		var berr *BackendError
		if errors.As(err, &berr) && berr.Code == ErrCodeNotSupported {
			c.logger().Debug("update not supported, opening read-only",
				zap.String("path", path))
			ds, err = c.Backend.Open(path, false)
		}
	}
	if err != nil {
		oerr := &OpenError{Path: path, Code: ErrCodeUnknown, Message: err.Error()}
		var berr *BackendError
		if errors.As(err, &berr) {
			oerr.Code, oerr.Message = berr.Code, berr.Message
		}
		return nil, oerr
	}
	if ds == nil {
		return nil, &OpenError{Path: path, Code: ErrCodeOpenFailed, Message: "backend returned no dataset"}
	}
	g := &GeoData{
		path:   path,
		handle: newHandle(ds, c.logger()),
		cfg:    c,
	}
	c.logger().Debug("open", zap.String("name", g.Basename()),
		zap.Bool("update", update), zap.Int32("refs", g.handle.Refs()))
	return g, nil
}

type createOpts struct {
	format  string
	options map[string]string
}

// CreateOption is an option that can be passed to Create and CreateTemp
type CreateOption func(o *createOpts)

// Format overrides the Config's DefaultFormat
func Format(name string) CreateOption {
	return func(o *createOpts) {
		o.format = name
	}
}

// CreationOptions passes driver specific creation options. It may be given
// several times, later values overriding earlier ones for the same key.
func CreationOptions(options map[string]string) CreateOption {
	return func(o *createOpts) {
		for k, v := range options {
			o.options[k] = v
		}
	}
}

// Create creates a new width*height dataset of bands bands of type dtype.
//
// If the format driver has a canonical file extension that path does not
// already carry, the extension is appended: creating "out" with the GTiff
// driver results in "out.tif", available through Path().
func (c *Config) Create(width, height, bands int, dtype DataType, path string, opts ...CreateOption) (*GeoData, error) {
	if c.Backend == nil {
		return nil, ErrNoBackend
	}
	co := createOpts{format: c.DefaultFormat, options: map[string]string{}}
	for _, o := range opts {
		o(&co)
	}
	if width <= 0 || height <= 0 || bands <= 0 {
		return nil, &CreateError{Path: path, Message: fmt.Sprintf("invalid size %dx%dx%d", width, height, bands)}
	}
	ext, err := c.Backend.Extension(co.format)
	if err != nil {
		return nil, &CreateError{Path: path, Message: err.Error()}
	}
	path = withExtension(path, ext)

	keys := make([]string, 0, len(co.options))
	for k := range co.options {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	copts := make([]string, len(keys))
	for i, k := range keys {
		copts[i] = k + "=" + co.options[k]
	}

	ds, err := c.Backend.Create(co.format, path, width, height, bands, dtype, copts)
	if err != nil {
		return nil, &CreateError{Path: path, Message: err.Error()}
	}
	if ds == nil {
		return nil, &CreateError{Path: path, Message: "driver returned no dataset"}
	}
	g := &GeoData{
		path:   path,
		handle: newHandle(ds, c.logger()),
		cfg:    c,
	}
	c.logger().Debug("create", zap.String("path", path), zap.String("format", co.format),
		zap.Strings("options", copts))
	return g, nil
}

// CreateTemp creates a new dataset with a unique name inside the work directory
func (c *Config) CreateTemp(width, height, bands int, dtype DataType, opts ...CreateOption) (*GeoData, error) {
	return c.Create(width, height, bands, dtype, c.TempPath(), opts...)
}

// withExtension appends ext to path unless it already ends with it. The
// comparison ignores case so that e.g. "IMG.TIF" is kept as is.
func withExtension(path, ext string) string {
	if ext == "" {
		return path
	}
	if strings.EqualFold(filepath.Ext(path), "."+ext) {
		return path
	}
	return path + "." + ext
}

// Clone returns a new GeoData sharing g's dataset, with a copy of its path and
// chunk plan
func (g *GeoData) Clone() (*GeoData, error) {
	if g.handle == nil {
		return nil, ErrClosed
	}
	return &GeoData{
		path:   g.path,
		handle: g.handle.Acquire(),
		chunks: append([]Chunk(nil), g.chunks...),
		cfg:    g.cfg,
	}, nil
}

// Assign makes g share src's dataset, path and chunk plan. The dataset g
// previously referenced is released first, and flushed and closed if g was its
// last user; an error doing so is returned after the assignment completed.
func (g *GeoData) Assign(src *GeoData) error {
	if g == src {
		return nil
	}
	if src.handle == nil {
		return ErrClosed
	}
	var err error
	if g.handle != nil {
		err = g.handle.Release()
	}
	g.path = src.path
	g.handle = src.handle.Acquire()
	g.chunks = append([]Chunk(nil), src.chunks...)
	g.cfg = src.cfg
	return err
}

// Close releases g's reference to its dataset. The dataset is flushed and
// closed if g was the last GeoData using it, and any error doing so is logged
// and returned. Close can be called several times.
func (g *GeoData) Close() error {
	if g.handle == nil {
		return nil
	}
	h := g.handle
	g.handle = nil
	refs := h.Refs() - 1
	err := h.Release()
	g.cfg.logger().Debug("close", zap.String("name", g.Basename()), zap.Int32("refs", refs))
	return err
}

// Closed reports whether Close has been called
func (g *GeoData) Closed() bool {
	return g.handle == nil
}

// Handle returns the shared dataset handle, or nil once closed
func (g *GeoData) Handle() *Handle {
	return g.handle
}

// Path returns the dataset path, including any extension added at creation
func (g *GeoData) Path() string {
	return g.path
}

// Basename returns the file name of the dataset without directory or extension
func (g *GeoData) Basename() string {
	base := filepath.Base(g.path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func (g *GeoData) structure() Structure {
	if g.handle == nil {
		return Structure{}
	}
	return g.handle.ds.Structure()
}

// Width returns the number of columns, or 0 once closed
func (g *GeoData) Width() int {
	return g.structure().Width
}

// Height returns the number of rows, or 0 once closed
func (g *GeoData) Height() int {
	return g.structure().Height
}

// Size returns the number of columns and rows
func (g *GeoData) Size() (int, int) {
	st := g.structure()
	return st.Width, st.Height
}

func (g *GeoData) Bands() int {
	return g.structure().Bands
}

func (g *GeoData) DataType() DataType {
	return g.structure().DataType
}

// GeoTransform returns the affine transform mapping pixel/line coordinates to
// world coordinates
func (g *GeoData) GeoTransform() ([6]float64, error) {
	if g.handle == nil {
		return [6]float64{}, ErrClosed
	}
	gt, err := g.handle.ds.GeoTransform()
	if err != nil {
		return gt, fmt.Errorf("get geotransform of %s: %w", g.path, err)
	}
	return gt, nil
}

// PixelToWorld returns the world coordinates of the pixel/line position x,y
func (g *GeoData) PixelToWorld(x, y float64) (orb.Point, error) {
	gt, err := g.GeoTransform()
	if err != nil {
		return orb.Point{}, err
	}
	return affine(gt, x, y), nil
}

// Projection returns the WKT coordinate system of the dataset. May be empty.
func (g *GeoData) Projection() (string, error) {
	if g.handle == nil {
		return "", ErrClosed
	}
	return g.handle.ds.Projection(), nil
}

// CopyCoordinateSystem copies the projection and geotransform of src onto g
func (g *GeoData) CopyCoordinateSystem(src *GeoData) error {
	if g.handle == nil || src.handle == nil {
		return ErrClosed
	}
	if err := g.handle.ds.SetProjection(src.handle.ds.Projection()); err != nil {
		return fmt.Errorf("set projection of %s: %w", g.path, err)
	}
	gt, err := src.GeoTransform()
	if err != nil {
		return err
	}
	if err := g.handle.ds.SetGeoTransform(gt); err != nil {
		return fmt.Errorf("set geotransform of %s: %w", g.path, err)
	}
	return nil
}

// Metadata returns the KEY=VALUE entries of a metadata domain, in the order
// reported by the backend
func (g *GeoData) Metadata(opts ...MetadataOption) ([]string, error) {
	mo := metadataOpts{}
	for _, o := range opts {
		o.setMetadataOpt(&mo)
	}
	if g.handle == nil {
		return nil, ErrClosed
	}
	return g.handle.ds.Metadata(mo.domain), nil
}

// SetMetadata replaces all the entries of a metadata domain
func (g *GeoData) SetMetadata(entries []string, opts ...MetadataOption) error {
	mo := metadataOpts{}
	for _, o := range opts {
		o.setMetadataOpt(&mo)
	}
	if g.handle == nil {
		return ErrClosed
	}
	if err := g.handle.ds.SetMetadata(mo.domain, entries); err != nil {
		return fmt.Errorf("set metadata of %s: %w", g.path, err)
	}
	return nil
}

// CopyMetadata replaces the metadata of g with the metadata of src. Entries of
// g that are not present in src are removed.
func (g *GeoData) CopyMetadata(src *GeoData, opts ...MetadataOption) error {
	md, err := src.Metadata(opts...)
	if err != nil {
		return err
	}
	return g.SetMetadata(md, opts...)
}

// MetadataGroup returns the entries of the group metadata domain. If filter is
// not empty, only entries containing filter are returned, stripped of
// everything up to and including the first occurrence of filter:
// with filter "FOO=", the entry "FOO=bar" yields "bar".
func (g *GeoData) MetadataGroup(group, filter string) ([]string, error) {
	md, err := g.Metadata(Domain(group))
	if err != nil {
		return nil, err
	}
	items := make([]string, 0, len(md))
	for _, m := range md {
		if filter == "" {
			items = append(items, m)
			continue
		}
		if pos := strings.Index(m, filter); pos != -1 {
			items = append(items, m[pos+len(filter):])
		}
	}
	return items, nil
}

// Chunk recomputes the chunk plan of g with the Config's current ChunkSize. On
// error the previous plan is left untouched.
func (g *GeoData) Chunk() error {
	if g.handle == nil {
		return ErrClosed
	}
	st := g.handle.ds.Structure()
	bpp, err := st.DataType.Size()
	if err != nil {
		return fmt.Errorf("chunk %s: %w", g.path, err)
	}
	budget := g.cfg.ChunkSize
	chunks := PlanChunks(st.Width, st.Height, bpp, budget)
	g.chunks = chunks

	l := g.cfg.logger()
	if ce := l.Check(zap.DebugLevel, "chunked"); ce != nil {
		ce.Write(zap.String("name", g.Basename()), zap.Int("chunks", len(chunks)),
			zap.Float64("chunksize_mb", budget))
		for i, c := range chunks {
			l.Debug("chunk", zap.Int("index", i), zap.Stringer("box", c))
		}
	}
	return nil
}

// Chunks returns a copy of the last computed chunk plan
func (g *GeoData) Chunks() []Chunk {
	return append([]Chunk(nil), g.chunks...)
}

// ChunkIndex returns a spatial index over the world bounds of the current
// chunk plan
func (g *GeoData) ChunkIndex() (*ChunkIndex, error) {
	gt, err := g.GeoTransform()
	if err != nil {
		return nil, err
	}
	return NewChunkIndex(g.chunks, gt), nil
}

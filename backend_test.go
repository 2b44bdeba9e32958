package gip

import (
	"errors"
	"sync"
)

// memBackend is an in-memory Backend recording the calls made to its datasets
type memBackend struct {
	mu          sync.Mutex
	datasets    map[string]*memDataset
	extensions  map[string]string
	readOnly    map[string]bool // paths for which update access is not supported
	openErr     error
	createNil   bool
	lastOptions []string
	lastFormat  string
}

func newMemBackend() *memBackend {
	return &memBackend{
		datasets:   map[string]*memDataset{},
		extensions: map[string]string{"GTiff": "tif", "MEM": "", "HFA": "img"},
		readOnly:   map[string]bool{},
	}
}

func (b *memBackend) add(path string, st Structure) *memDataset {
	b.mu.Lock()
	defer b.mu.Unlock()
	ds := &memDataset{st: st, metadata: map[string][]string{}}
	b.datasets[path] = ds
	return ds
}

func (b *memBackend) Open(path string, update bool) (Dataset, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.openErr != nil {
		return nil, b.openErr
	}
	ds, ok := b.datasets[path]
	if !ok {
		return nil, &BackendError{Code: ErrCodeOpenFailed, Message: path + ": No such file or directory"}
	}
	if update && b.readOnly[path] {
		return nil, &BackendError{Code: ErrCodeNotSupported, Message: "update access not supported"}
	}
	ds.update = update
	ds.opens++
	return ds, nil
}

func (b *memBackend) Create(format, path string, width, height, bands int, dtype DataType, options []string) (Dataset, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lastOptions = options
	b.lastFormat = format
	if _, ok := b.extensions[format]; !ok {
		return nil, errors.New("unknown driver " + format)
	}
	if b.createNil {
		return nil, nil
	}
	ds := &memDataset{
		st:       Structure{Width: width, Height: height, Bands: bands, DataType: dtype},
		metadata: map[string][]string{},
		update:   true,
	}
	b.datasets[path] = ds
	return ds, nil
}

func (b *memBackend) Extension(format string) (string, error) {
	ext, ok := b.extensions[format]
	if !ok {
		return "", errors.New("unknown driver " + format)
	}
	return ext, nil
}

type memDataset struct {
	mu        sync.Mutex
	st        Structure
	gt        [6]float64
	gtErr     error
	wkt       string
	metadata  map[string][]string
	update    bool
	opens     int
	flushes   int
	closes    int
	flushErr  error
	writeErr  error
	callOrder []string
}

func (ds *memDataset) Structure() Structure {
	return ds.st
}

func (ds *memDataset) GeoTransform() ([6]float64, error) {
	return ds.gt, ds.gtErr
}

func (ds *memDataset) SetGeoTransform(gt [6]float64) error {
	if ds.writeErr != nil {
		return ds.writeErr
	}
	ds.gt = gt
	return nil
}

func (ds *memDataset) Projection() string {
	return ds.wkt
}

func (ds *memDataset) SetProjection(wkt string) error {
	if ds.writeErr != nil {
		return ds.writeErr
	}
	ds.wkt = wkt
	return nil
}

func (ds *memDataset) Metadata(domain string) []string {
	return append([]string(nil), ds.metadata[domain]...)
}

func (ds *memDataset) SetMetadata(domain string, entries []string) error {
	if ds.writeErr != nil {
		return ds.writeErr
	}
	ds.metadata[domain] = append([]string(nil), entries...)
	return nil
}

func (ds *memDataset) Flush() error {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	ds.flushes++
	ds.callOrder = append(ds.callOrder, "flush")
	return ds.flushErr
}

func (ds *memDataset) Close() error {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	ds.closes++
	ds.callOrder = append(ds.callOrder, "close")
	return nil
}

func (ds *memDataset) counts() (int, int) {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	return ds.flushes, ds.closes
}

package gip

import (
	"errors"
	"fmt"
)

// Backend error codes, following the CPLE_* numbering used by GDAL
const (
	ErrCodeNone         = 0
	ErrCodeAppDefined   = 1
	ErrCodeOutOfMemory  = 2
	ErrCodeFileIO       = 3
	ErrCodeOpenFailed   = 4
	ErrCodeIllegalArg   = 5
	ErrCodeNotSupported = 6
	ErrCodeUnknown      = -1
)

var (
	// ErrClosed is returned when using a GeoData after Close
	ErrClosed = errors.New("geodata is closed")
	// ErrNoBackend is returned when the Config has no Backend to open or create datasets
	ErrNoBackend = errors.New("no raster backend configured")
)

// BackendError is an error reported by the raster backend, along with its
// numeric error code
type BackendError struct {
	Code    int
	Message string
}

func (err *BackendError) Error() string {
	return fmt.Sprintf("%d: %s", err.Code, err.Message)
}

// OpenError is returned when a dataset could not be opened in any supported mode
type OpenError struct {
	Path    string
	Code    int
	Message string
}

func (err *OpenError) Error() string {
	return fmt.Sprintf("open %s: %d: %s", err.Path, err.Code, err.Message)
}

// CreateError is returned when the backend could not create a dataset
type CreateError struct {
	Path    string
	Message string
}

func (err *CreateError) Error() string {
	return fmt.Sprintf("create %s: %s", err.Path, err.Message)
}

// DataTypeError is returned when a pixel data type has no known byte size
type DataTypeError struct {
	Code int
}

func (err *DataTypeError) Error() string {
	return fmt.Sprintf("unsupported pixel data type %d", err.Code)
}

package gip

// Backend opens and creates raster datasets. It is implemented by the gdal
// subpackage; tests use an in-memory implementation.
type Backend interface {
	// Open opens an existing dataset, for writing if update is set. Failures
	// should be reported as a *BackendError so that callers can inspect the code.
	Open(path string, update bool) (Dataset, error)
	// Create creates a new dataset using the named format driver. options are
	// driver specific KEY=VALUE creation options.
	Create(format, path string, width, height, bands int, dtype DataType, options []string) (Dataset, error)
	// Extension returns the canonical file extension (without the leading dot)
	// of the named format, or an empty string if the format has none.
	Extension(format string) (string, error)
}

// Dataset is an open raster dataset managed by a Backend.
//
// Implementations are only expected to be safe for concurrent readers.
type Dataset interface {
	Structure() Structure
	GeoTransform() ([6]float64, error)
	SetGeoTransform(gt [6]float64) error
	Projection() string
	SetProjection(wkt string) error
	// Metadata returns the KEY=VALUE entries of the given domain ("" is the default domain)
	Metadata(domain string) []string
	// SetMetadata replaces all the entries of the given domain
	SetMetadata(domain string, entries []string) error
	Flush() error
	// Close releases the dataset. Calling it more than once must not fail.
	Close() error
}

// Structure describes the raster layout of a Dataset
type Structure struct {
	Width, Height int
	Bands         int
	DataType      DataType
}

// DataType is a pixel data type, numbered as in GDAL
type DataType int

const (
	Unknown  DataType = 0
	Byte     DataType = 1
	UInt16   DataType = 2
	Int16    DataType = 3
	UInt32   DataType = 4
	Int32    DataType = 5
	Float32  DataType = 6
	Float64  DataType = 7
	CInt16   DataType = 8
	CInt32   DataType = 9
	CFloat32 DataType = 10
	CFloat64 DataType = 11
)

var dataTypeNames = map[DataType]string{
	Byte:     "Byte",
	UInt16:   "UInt16",
	Int16:    "Int16",
	UInt32:   "UInt32",
	Int32:    "Int32",
	Float32:  "Float32",
	Float64:  "Float64",
	CInt16:   "CInt16",
	CInt32:   "CInt32",
	CFloat32: "CFloat32",
	CFloat64: "CFloat64",
}

func (dt DataType) String() string {
	if n, ok := dataTypeNames[dt]; ok {
		return n
	}
	return "Unknown"
}

// Size returns the number of bytes used by a single pixel of this type
func (dt DataType) Size() (int, error) {
	switch dt {
	case Byte:
		return 1, nil
	case UInt16, Int16:
		return 2, nil
	case UInt32, Int32, Float32, CInt16:
		return 4, nil
	case Float64, CInt32, CFloat32:
		return 8, nil
	case CFloat64:
		return 16, nil
	default:
		return 0, &DataTypeError{Code: int(dt)}
	}
}

type metadataOpts struct {
	domain string
}

// MetadataOption is an option that can be passed to metadata related calls
//
// Available MetadataOptions are:
//
// • Domain
type MetadataOption interface {
	setMetadataOpt(mo *metadataOpts)
}

type domainOpt struct {
	domain string
}

// Domain selects the metadata domain to read or write. The default domain is ""
func Domain(name string) interface {
	MetadataOption
} {
	return domainOpt{name}
}

func (do domainOpt) setMetadataOpt(mo *metadataOpts) {
	mo.domain = do.domain
}

// Package storageendpoint is the arbiter-equivalent keyed blob store: a
// small interface with local-disk and HTTP(S)/S3-shaped implementations.
// Grounded on tools/io.go's OpenFileOrFail/CreateDirectoryIfDoesNotExist
// for the local variant's directory handling.
package storageendpoint

// LocalHandle is a filesystem path a Reader can open directly, plus an
// optional cleanup for handles materialized from a remote source.
type LocalHandle struct {
	Path    string
	Cleanup func() error
}

// Endpoint is the storage-backend collaborator interface: a keyed blob
// store with local and remote endpoints.
type Endpoint interface {
	// Get fetches the full value for key.
	Get(key string) ([]byte, error)
	// Put stores value under key, creating or overwriting it.
	Put(key string, value []byte) error
	// GetBinary fetches key honoring the given headers (for example a
	// Range header, as HTTPEndpoint.GetRange sends).
	GetBinary(key string, headers map[string]string) ([]byte, error)
	// GetLocalHandle returns a filesystem path for path, downloading to
	// tmp first if this endpoint is remote.
	GetLocalHandle(path string, tmp Endpoint) (LocalHandle, error)
	// IsRemote reports whether this endpoint requires network I/O.
	IsRemote() bool
	// IsHttpDerived reports whether url names an HTTP(S) location this
	// endpoint type would serve.
	IsHttpDerived(url string) bool
}

// RangeReader is implemented by endpoints that can serve partial reads
// efficiently. No reader or builder code calls it; Preview reads go
// through the reader directly.
type RangeReader interface {
	GetRange(key string, offset, length int64) ([]byte, error)
}

package storageendpoint

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// LocalEndpoint stores keys as files under a root directory. Grounded on
// tools/io.go's CreateDirectoryIfDoesNotExist/OpenFileOrFail.
type LocalEndpoint struct {
	root string
}

// NewLocal returns an endpoint rooted at dir, creating it if necessary.
func NewLocal(dir string) (*LocalEndpoint, error) {
	if err := createDirectoryIfDoesNotExist(dir); err != nil {
		return nil, fmt.Errorf("storageendpoint: create root %q: %w", dir, err)
	}
	return &LocalEndpoint{root: dir}, nil
}

func createDirectoryIfDoesNotExist(directory string) error {
	if _, err := os.Stat(directory); os.IsNotExist(err) {
		return os.MkdirAll(directory, 0777)
	}
	return nil
}

func removeFile(path string) error {
	return os.Remove(path)
}

func (e *LocalEndpoint) path(key string) string {
	return filepath.Join(e.root, key)
}

func (e *LocalEndpoint) Get(key string) ([]byte, error) {
	b, err := os.ReadFile(e.path(key))
	if err != nil {
		return nil, fmt.Errorf("storageendpoint: get %q: %w", key, err)
	}
	return b, nil
}

func (e *LocalEndpoint) Put(key string, value []byte) error {
	p := e.path(key)
	if err := createDirectoryIfDoesNotExist(filepath.Dir(p)); err != nil {
		return fmt.Errorf("storageendpoint: put %q: %w", key, err)
	}
	if err := os.WriteFile(p, value, 0666); err != nil {
		return fmt.Errorf("storageendpoint: put %q: %w", key, err)
	}
	return nil
}

// GetBinary on a local endpoint ignores headers: there is no network round
// trip to shape with a range request.
func (e *LocalEndpoint) GetBinary(key string, _ map[string]string) ([]byte, error) {
	return e.Get(key)
}

// GetLocalHandle returns path directly; local endpoints never need a tmp
// download.
func (e *LocalEndpoint) GetLocalHandle(path string, _ Endpoint) (LocalHandle, error) {
	if _, err := os.Stat(path); err != nil {
		return LocalHandle{}, fmt.Errorf("storageendpoint: local handle %q: %w", path, err)
	}
	return LocalHandle{Path: path}, nil
}

func (e *LocalEndpoint) IsRemote() bool { return false }

func (e *LocalEndpoint) IsHttpDerived(url string) bool {
	return strings.HasPrefix(url, "http://") || strings.HasPrefix(url, "https://")
}

// GetRange implements RangeReader by reading a slice of the local file
// directly, used for symmetry with the HTTP endpoint's preview fetch.
func (e *LocalEndpoint) GetRange(key string, offset, length int64) ([]byte, error) {
	f, err := os.Open(e.path(key))
	if err != nil {
		return nil, fmt.Errorf("storageendpoint: range %q: %w", key, err)
	}
	defer f.Close()
	buf := make([]byte, length)
	n, err := f.ReadAt(buf, offset)
	if err != nil && n == 0 {
		return nil, fmt.Errorf("storageendpoint: range %q: %w", key, err)
	}
	return buf[:n], nil
}

// newTempName mirrors arbiter's getLocalHandle naming for downloaded
// remote files: a random, collision-free basename under tmp's root.
func newTempName(suffix string) string {
	return uuid.NewString() + suffix
}

var _ Endpoint = (*LocalEndpoint)(nil)
var _ RangeReader = (*LocalEndpoint)(nil)

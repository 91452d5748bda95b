package storageendpoint

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"path"
	"strconv"
	"strings"
	"time"
)

// HTTPEndpoint is a remote key-value endpoint backed by GET/PUT requests
// against a base URL, standing in for both a plain HTTP object store and
// an S3-compatible one addressed through a virtual-hosted or path-style
// URL (the distinction is a matter of what baseURL points at, not of this
// type's behavior).
type HTTPEndpoint struct {
	baseURL string
	client  *http.Client
}

// NewHTTP returns an endpoint that resolves keys against baseURL.
func NewHTTP(baseURL string) *HTTPEndpoint {
	return &HTTPEndpoint{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 60 * time.Second},
	}
}

func (e *HTTPEndpoint) url(key string) string {
	return e.baseURL + "/" + path.Clean(key)
}

func (e *HTTPEndpoint) Get(key string) ([]byte, error) {
	return e.GetBinary(key, nil)
}

func (e *HTTPEndpoint) GetBinary(key string, headers map[string]string) ([]byte, error) {
	req, err := http.NewRequest(http.MethodGet, e.url(key), nil)
	if err != nil {
		return nil, fmt.Errorf("storageendpoint: build request for %q: %w", key, err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("storageendpoint: get %q: %w", key, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("storageendpoint: get %q: status %d", key, resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

func (e *HTTPEndpoint) Put(key string, value []byte) error {
	req, err := http.NewRequest(http.MethodPut, e.url(key), bytes.NewReader(value))
	if err != nil {
		return fmt.Errorf("storageendpoint: build request for %q: %w", key, err)
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("storageendpoint: put %q: %w", key, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("storageendpoint: put %q: status %d", key, resp.StatusCode)
	}
	return nil
}

// GetRange issues a byte-range GET for length bytes starting at offset.
func (e *HTTPEndpoint) GetRange(key string, offset, length int64) ([]byte, error) {
	end := offset + length - 1
	headers := map[string]string{
		"Range": "bytes=" + strconv.FormatInt(offset, 10) + "-" + strconv.FormatInt(end, 10),
	}
	return e.GetBinary(key, headers)
}

// GetLocalHandle downloads path into a temp file under tmp and returns
// its path, with a cleanup that removes it.
func (e *HTTPEndpoint) GetLocalHandle(remotePath string, tmp Endpoint) (LocalHandle, error) {
	local, ok := tmp.(*LocalEndpoint)
	if !ok {
		return LocalHandle{}, fmt.Errorf("storageendpoint: tmp endpoint must be local, got %T", tmp)
	}
	body, err := e.GetBinary(remotePath, nil)
	if err != nil {
		return LocalHandle{}, fmt.Errorf("storageendpoint: download %q: %w", remotePath, err)
	}
	name := newTempName(path.Ext(remotePath))
	if err := local.Put(name, body); err != nil {
		return LocalHandle{}, fmt.Errorf("storageendpoint: stage %q: %w", remotePath, err)
	}
	full := local.path(name)
	return LocalHandle{
		Path:    full,
		Cleanup: func() error { return removeFile(full) },
	}, nil
}

func (e *HTTPEndpoint) IsRemote() bool { return true }

func (e *HTTPEndpoint) IsHttpDerived(url string) bool {
	return strings.HasPrefix(url, "http://") || strings.HasPrefix(url, "https://") || strings.HasPrefix(url, "s3://")
}

var (
	_ Endpoint    = (*HTTPEndpoint)(nil)
	_ RangeReader = (*HTTPEndpoint)(nil)
)

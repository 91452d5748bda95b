package plyreader

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ecopia-map/entwine_go/internal/data"
	"github.com/ecopia-map/entwine_go/internal/reader"
)

func TestReaderSatisfiesReaderInterface(t *testing.T) {
	var _ reader.Reader = New()
}

func TestPreviewOnMissingFileErrors(t *testing.T) {
	r := New()
	_, ok, err := r.Preview("/no/such/file.ply")
	assert.False(t, ok)
	assert.Error(t, err)
}

func TestRunOnMissingFileErrors(t *testing.T) {
	r := New()
	ok, err := r.Run("/no/such/file.ply", nil, func(batch []data.Point) error { return nil })
	assert.False(t, ok)
	assert.Error(t, err)
}

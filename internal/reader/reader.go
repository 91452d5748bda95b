// Package reader defines the point-format reader collaborator interface:
// produces batches of typed point records from a local file path. This is
// the PDAL-equivalent spec.md treats as an external collaborator.
package reader

import (
	"github.com/ecopia-map/entwine_go/internal/data"
	"github.com/ecopia-map/entwine_go/internal/geometry"
)

// PreviewResult is what Preview reports about a file without a full scan.
type PreviewResult struct {
	NumPoints int64
	Bounds    geometry.Bounds
	Srs       string
	DimNames  []string
	Scale     float64
}

// Reprojection is the collaborator function trait applied to each batch
// before it reaches the sink, per spec.md §9's design note: a plain
// function, not an inherited interface.
type Reprojection func(batch []data.Point) ([]data.Point, error)

// Sink receives successive point batches during Run.
type Sink func(batch []data.Point) error

// Reader is the external point-format collaborator interface.
type Reader interface {
	// Preview inspects path's header (or a bounded prefix of it) without
	// reading every point. Returns ok=false if the format has no usable
	// header information.
	Preview(path string) (result PreviewResult, ok bool, err error)
	// Run streams every point in path through reprojection (which may be
	// nil) and then sink, in batches. Returns false if the read failed
	// partway through.
	Run(path string, reprojection Reprojection, sink Sink) (bool, error)
}

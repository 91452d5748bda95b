// Package plyreader is a concrete, narrow implementation of the reader
// collaborator interface for PLY point cloud files, using
// github.com/cobaltgray/go-plyfile — the same dependency the teacher
// carries for its point-format I/O, here exercised on the read side
// instead of the write side the Cesium tile emitter used it for.
package plyreader

import (
	"fmt"

	"github.com/cobaltgray/go-plyfile"

	"github.com/ecopia-map/entwine_go/internal/data"
	"github.com/ecopia-map/entwine_go/internal/geometry"
	"github.com/ecopia-map/entwine_go/internal/reader"
)

const batchSize = 4096

// Reader reads PLY files' "vertex" element into point batches. Only each
// vertex's X/Y/Z is read; other vertex properties (colors, intensity,
// classification) are not copied, and every point's Record is left nil.
// Preview lists the vertex property names, reports Scale as 1.0, and
// returns an empty (Expander) Bounds, since a PLY header carries no extent.
type Reader struct{}

// New returns a PLY reader.
func New() *Reader { return &Reader{} }

func (r *Reader) Preview(path string) (reader.PreviewResult, bool, error) {
	f, err := plyfile.Open(path)
	if err != nil {
		return reader.PreviewResult{}, false, fmt.Errorf("plyreader: open %q: %w", path, err)
	}
	defer f.Close()

	elem := f.ElementByName("vertex")
	if elem == nil {
		return reader.PreviewResult{}, false, nil
	}

	names := make([]string, 0, len(elem.Properties))
	for _, p := range elem.Properties {
		names = append(names, p.Name)
	}

	bounds := geometry.Expander(true)
	return reader.PreviewResult{
		NumPoints: int64(elem.Count),
		Bounds:    bounds,
		DimNames:  names,
		Scale:     1.0,
	}, true, nil
}

func (r *Reader) Run(path string, reprojection reader.Reprojection, sink reader.Sink) (bool, error) {
	f, err := plyfile.Open(path)
	if err != nil {
		return false, fmt.Errorf("plyreader: open %q: %w", path, err)
	}
	defer f.Close()

	elem := f.ElementByName("vertex")
	if elem == nil {
		return false, fmt.Errorf("plyreader: %q has no vertex element", path)
	}

	batch := make([]data.Point, 0, batchSize)
	var idx uint32
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		out := batch
		if reprojection != nil {
			out, err = reprojection(out)
			if err != nil {
				return fmt.Errorf("plyreader: reproject: %w", err)
			}
		}
		if err := sink(out); err != nil {
			return err
		}
		batch = batch[:0]
		return nil
	}

	for i := 0; i < elem.Count; i++ {
		v, err := f.ReadVertex(i)
		if err != nil {
			return false, fmt.Errorf("plyreader: read vertex %d: %w", i, err)
		}
		p := data.Point{
			Position: geometry.Point3{X: v.X, Y: v.Y, Z: v.Z},
			Index:    idx,
		}
		idx++
		batch = append(batch, p)
		if len(batch) == batchSize {
			if err := flush(); err != nil {
				return false, err
			}
		}
	}
	if err := flush(); err != nil {
		return false, err
	}
	return true, nil
}

var _ reader.Reader = (*Reader)(nil)

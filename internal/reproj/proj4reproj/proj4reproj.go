// Package proj4reproj implements reproj.Func on top of
// github.com/xeonx/proj4 and github.com/xeonx/geom, mirroring the role
// internal/converters.CoordinateConverter plays in the teacher: convert
// every point from one SRID to another before it reaches the sink.
package proj4reproj

import (
	"fmt"

	"github.com/xeonx/geom"
	"github.com/xeonx/proj4"

	"github.com/ecopia-map/entwine_go/internal/data"
	"github.com/ecopia-map/entwine_go/internal/geometry"
)

// Reprojector converts points from one SRID to another using PROJ.4.
type Reprojector struct {
	src, dst *proj4.Proj
	srcName  string
	dstName  string
}

// New builds a Reprojector for the given PROJ.4 definition strings, e.g.
// "+proj=longlat +datum=WGS84" for EPSG:4326.
func New(srcDef, dstDef string) (*Reprojector, error) {
	src, err := proj4.InitPlus(srcDef)
	if err != nil {
		return nil, fmt.Errorf("proj4reproj: init src %q: %w", srcDef, err)
	}
	dst, err := proj4.InitPlus(dstDef)
	if err != nil {
		return nil, fmt.Errorf("proj4reproj: init dst %q: %w", dstDef, err)
	}
	return &Reprojector{src: src, dst: dst, srcName: srcDef, dstName: dstDef}, nil
}

// Reproject converts every point in batch from src to dst in place and
// returns it, satisfying reader.Reprojection's (batch) -> batch shape.
func (r *Reprojector) Reproject(batch []data.Point) ([]data.Point, error) {
	for i := range batch {
		p := geom.Point{X: batch[i].Position.X, Y: batch[i].Position.Y, Z: batch[i].Position.Z}
		out, err := proj4.Transform(r.src, r.dst, p)
		if err != nil {
			return nil, fmt.Errorf("proj4reproj: transform point %d: %w", i, err)
		}
		batch[i].Position = geometry.Point3{X: out.X, Y: out.Y, Z: out.Z}
	}
	return batch, nil
}

// Bounds2DToWGS84 projects a 2D bounding box's four corners to WGS84,
// returning the enclosing region. The metadata document has no region
// field, and nothing in the build path calls this. Mirrors
// converters.CoordinateConverter.Convert2DBoundingboxToWGS84Region.
func (r *Reprojector) Bounds2DToWGS84(b geometry.Bounds) (geometry.Bounds, error) {
	wgs84, err := proj4.InitPlus("+proj=longlat +datum=WGS84 +no_defs")
	if err != nil {
		return geometry.Bounds{}, fmt.Errorf("proj4reproj: init WGS84: %w", err)
	}
	corners := []geom.Point{
		{X: b.Min.X, Y: b.Min.Y},
		{X: b.Max.X, Y: b.Min.Y},
		{X: b.Max.X, Y: b.Max.Y},
		{X: b.Min.X, Y: b.Max.Y},
	}
	out := geometry.Expander(false)
	for _, c := range corners {
		t, err := proj4.Transform(r.src, wgs84, c)
		if err != nil {
			return geometry.Bounds{}, fmt.Errorf("proj4reproj: transform corner: %w", err)
		}
		out.Grow(geometry.Point3{X: t.X, Y: t.Y})
	}
	return out, nil
}

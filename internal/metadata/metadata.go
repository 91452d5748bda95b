// Package metadata reads and writes the entwine{postfix} root document:
// bbox, schema, structure, optional reprojection, manifest, srs, stats,
// compressed/trustHeaders flags, and (after save/merge) the chunk id list.
// Marshaling goes through github.com/ohler55/ojg's dynamic map/JSON
// support rather than a fixed struct, since several fields (reprojection,
// structure.subset, ids) are optional and the document's shape mutates
// after merge().
package metadata

import (
	"fmt"

	"github.com/ohler55/ojg/oj"
	"github.com/shopspring/decimal"

	"github.com/ecopia-map/entwine_go/internal/geometry"
	"github.com/ecopia-map/entwine_go/internal/manifest"
	"github.com/ecopia-map/entwine_go/internal/schema"
	"github.com/ecopia-map/entwine_go/internal/stats"
	"github.com/ecopia-map/entwine_go/internal/structure"
)

// Reprojection names an input/output SRS pair for the reprojection
// collaborator.
type Reprojection struct {
	In  string
	Out string
}

// Document is the fully decoded root metadata value.
type Document struct {
	Bounds       geometry.Bounds
	Schema       schema.Schema
	Structure    structure.Structure
	Reprojection *Reprojection
	Manifest     []manifest.Entry
	Srs          string
	Stats        stats.Snapshot
	Compressed   bool
	TrustHeaders bool
	Ids          []uint64
}

// Marshal renders d as the JSON document written to the "entwine{postfix}"
// key.
func Marshal(d Document) ([]byte, error) {
	m := map[string]interface{}{
		"bbox": map[string]interface{}{
			"min": []float64{d.Bounds.Min.X, d.Bounds.Min.Y, d.Bounds.Min.Z},
			"max": []float64{d.Bounds.Max.X, d.Bounds.Max.Y, d.Bounds.Max.Z},
		},
		"schema":    schemaToJSON(d.Schema),
		"structure": structureToJSON(d.Structure),
		"srs":       d.Srs,
		"stats": map[string]interface{}{
			"numPoints":      d.Stats.NumPoints,
			"numOutOfBounds": d.Stats.NumOutOfBounds,
			"numFallThrough": d.Stats.NumFallThrough,
		},
		"compressed":   d.Compressed,
		"trustHeaders": d.TrustHeaders,
	}
	if d.Reprojection != nil {
		m["reprojection"] = map[string]interface{}{"in": d.Reprojection.In, "out": d.Reprojection.Out}
	}
	paths := make([]string, len(d.Manifest))
	statuses := make([]string, len(d.Manifest))
	for i, e := range d.Manifest {
		paths[i] = e.Path
		statuses[i] = string(e.Status)
	}
	m["manifest"] = paths
	m["manifestStatus"] = statuses
	if d.Ids != nil {
		ids := make([]interface{}, len(d.Ids))
		for i, id := range d.Ids {
			ids[i] = id
		}
		m["ids"] = ids
	}

	return oj.Marshal(m, 2)
}

// Unmarshal decodes a previously written document.
func Unmarshal(blob []byte) (Document, error) {
	v, err := oj.Parse(blob)
	if err != nil {
		return Document{}, fmt.Errorf("metadata: parse: %w", err)
	}
	m, ok := v.(map[string]interface{})
	if !ok {
		return Document{}, fmt.Errorf("metadata: expected a JSON object at the root")
	}

	var d Document
	if err := decodeBbox(m, &d); err != nil {
		return Document{}, err
	}
	if err := decodeSchema(m, &d); err != nil {
		return Document{}, err
	}
	if err := decodeStructure(m, &d); err != nil {
		return Document{}, err
	}
	if rp, ok := m["reprojection"].(map[string]interface{}); ok {
		d.Reprojection = &Reprojection{In: asString(rp["in"]), Out: asString(rp["out"])}
	}
	decodeManifest(m, &d)
	d.Srs = asString(m["srs"])
	decodeStats(m, &d)
	d.Compressed, _ = m["compressed"].(bool)
	d.TrustHeaders, _ = m["trustHeaders"].(bool)
	decodeIds(m, &d)
	return d, nil
}

func schemaToJSON(sc schema.Schema) []interface{} {
	out := make([]interface{}, len(sc.Dimensions))
	for i, dim := range sc.Dimensions {
		out[i] = map[string]interface{}{
			"name":   dim.Name,
			"type":   string(dim.Type),
			"size":   dim.Size(),
			"scale":  dim.Scale.String(),
			"offset": dim.Offset.String(),
		}
	}
	return out
}

func structureToJSON(st structure.Structure) map[string]interface{} {
	m := map[string]interface{}{
		"nullDepthBegin": st.NullDepthBegin,
		"nullDepthEnd":   st.NullDepthEnd,
		"baseDepthBegin": st.BaseDepthBegin,
		"baseDepthEnd":   st.BaseDepthEnd,
		"coldDepthBegin": st.ColdDepthBegin,
		"coldDepthEnd":   st.ColdDepthEnd,
		"chunkPoints":    st.ChunkPoints,
		"is3d":           st.Is3d,
	}
	if st.Subset != nil {
		m["subset"] = map[string]interface{}{"id": st.Subset.Id, "of": st.Subset.Of}
	}
	return m
}

func asString(v interface{}) string {
	s, _ := v.(string)
	return s
}

func asFloat(v interface{}) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int64:
		return float64(n)
	case int:
		return float64(n)
	}
	return 0
}

// asDecimal parses a dimension's scale/offset string back into a
// decimal.Decimal, matching schemaToJSON's dim.Scale.String()/
// dim.Offset.String() encoding. A missing or malformed field decodes as the
// zero value rather than failing the whole document.
func asDecimal(v interface{}) decimal.Decimal {
	s, _ := v.(string)
	if s == "" {
		return decimal.Decimal{}
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}
	}
	return d
}

func asUint64(v interface{}) uint64 {
	switch n := v.(type) {
	case float64:
		return uint64(n)
	case int64:
		return uint64(n)
	case int:
		return uint64(n)
	}
	return 0
}

func decodeBbox(m map[string]interface{}, d *Document) error {
	bbox, ok := m["bbox"].(map[string]interface{})
	if !ok {
		return fmt.Errorf("metadata: missing bbox")
	}
	min, _ := bbox["min"].([]interface{})
	max, _ := bbox["max"].([]interface{})
	if len(min) < 2 || len(max) < 2 {
		return fmt.Errorf("metadata: malformed bbox")
	}
	is3d := len(min) >= 3 && len(max) >= 3
	d.Bounds = geometry.New(
		geometry.Point3{X: asFloat(min[0]), Y: asFloat(min[1]), Z: floatOr(min, 2)},
		geometry.Point3{X: asFloat(max[0]), Y: asFloat(max[1]), Z: floatOr(max, 2)},
		is3d,
	)
	return nil
}

func floatOr(v []interface{}, idx int) float64 {
	if idx < len(v) {
		return asFloat(v[idx])
	}
	return 0
}

func decodeSchema(m map[string]interface{}, d *Document) error {
	raw, ok := m["schema"].([]interface{})
	if !ok {
		return fmt.Errorf("metadata: missing schema")
	}
	dims := make([]schema.Dimension, 0, len(raw))
	for _, item := range raw {
		dm, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		dims = append(dims, schema.Dimension{
			Name:   asString(dm["name"]),
			Type:   schema.DimType(asString(dm["type"])),
			Scale:  asDecimal(dm["scale"]),
			Offset: asDecimal(dm["offset"]),
		})
	}
	d.Schema = schema.Schema{Dimensions: dims}
	return nil
}

func decodeStructure(m map[string]interface{}, d *Document) error {
	sm, ok := m["structure"].(map[string]interface{})
	if !ok {
		return fmt.Errorf("metadata: missing structure")
	}
	st := structure.Structure{
		NullDepthBegin: asUint64(sm["nullDepthBegin"]),
		NullDepthEnd:   asUint64(sm["nullDepthEnd"]),
		BaseDepthBegin: asUint64(sm["baseDepthBegin"]),
		BaseDepthEnd:   asUint64(sm["baseDepthEnd"]),
		ColdDepthBegin: asUint64(sm["coldDepthBegin"]),
		ColdDepthEnd:   asUint64(sm["coldDepthEnd"]),
		ChunkPoints:    asUint64(sm["chunkPoints"]),
	}
	st.Is3d, _ = sm["is3d"].(bool)
	if sub, ok := sm["subset"].(map[string]interface{}); ok {
		st.Subset = &structure.Subset{Id: asUint64(sub["id"]), Of: asUint64(sub["of"])}
	}
	d.Structure = st
	return nil
}

func decodeManifest(m map[string]interface{}, d *Document) {
	paths, _ := m["manifest"].([]interface{})
	statuses, _ := m["manifestStatus"].([]interface{})
	d.Manifest = make([]manifest.Entry, len(paths))
	for i, p := range paths {
		status := manifest.Pending
		if i < len(statuses) {
			status = manifest.Status(asString(statuses[i]))
		}
		d.Manifest[i] = manifest.Entry{Path: asString(p), Status: status}
	}
}

func decodeStats(m map[string]interface{}, d *Document) {
	sm, ok := m["stats"].(map[string]interface{})
	if !ok {
		return
	}
	d.Stats = stats.Snapshot{
		NumPoints:      int64(asUint64(sm["numPoints"])),
		NumOutOfBounds: int64(asUint64(sm["numOutOfBounds"])),
		NumFallThrough: int64(asUint64(sm["numFallThrough"])),
	}
}

func decodeIds(m map[string]interface{}, d *Document) {
	raw, ok := m["ids"].([]interface{})
	if !ok {
		return
	}
	d.Ids = make([]uint64, len(raw))
	for i, v := range raw {
		d.Ids[i] = asUint64(v)
	}
}

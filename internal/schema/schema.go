// Package schema describes the fixed per-build record layout: which
// dimensions each point record carries, in what wire type, and at what
// fixed-point scale/offset.
package schema

import (
	"crypto/sha1"
	"encoding/binary"
	"fmt"

	"github.com/shopspring/decimal"
)

// DimType is the wire type of one dimension's storage.
type DimType string

const (
	Float64 DimType = "float64"
	Float32 DimType = "float32"
	Int32   DimType = "int32"
	Uint32  DimType = "uint32"
	Uint16  DimType = "uint16"
	Uint8   DimType = "uint8"
)

// Sizes in bytes for each DimType.
var sizes = map[DimType]int{
	Float64: 8,
	Float32: 4,
	Int32:   4,
	Uint32:  4,
	Uint16:  2,
	Uint8:   1,
}

// Dimension is one named field of a point record. Scale/Offset are used for
// fixed-point-style dimensions (LAS-derived intensity/classification) that
// need exact decimal round-tripping rather than float64 drift.
type Dimension struct {
	Name   string
	Type   DimType
	Scale  decimal.Decimal
	Offset decimal.Decimal
}

// Size returns the on-wire byte width of the dimension.
func (d Dimension) Size() int {
	return sizes[d.Type]
}

// Schema is the ordered, fixed set of dimensions every point record in a
// build carries. X, Y, Z are implicit and stored separately as float64;
// Schema.Dimensions covers everything else (intensity, classification,
// RGB, Origin, ...).
type Schema struct {
	Dimensions []Dimension
}

// New builds a Schema, always including an "OriginId" dimension appended
// last if the caller has not supplied one, since the Manifest depends on
// every point record carrying its origin.
func New(dims []Dimension) Schema {
	for _, d := range dims {
		if d.Name == "OriginId" {
			return Schema{Dimensions: dims}
		}
	}
	out := make([]Dimension, len(dims), len(dims)+1)
	copy(out, dims)
	out = append(out, Dimension{Name: "OriginId", Type: Uint32, Scale: decimal.NewFromInt(1)})
	return Schema{Dimensions: out}
}

// RecordSize returns the fixed byte width of the packed dimension record
// (excluding the X/Y/Z floats, which are stored alongside it).
func (s Schema) RecordSize() int {
	n := 0
	for _, d := range s.Dimensions {
		n += d.Size()
	}
	return n
}

// Find returns the dimension named name and whether it exists.
func (s Schema) Find(name string) (Dimension, bool) {
	for _, d := range s.Dimensions {
		if d.Name == name {
			return d, true
		}
	}
	return Dimension{}, false
}

// Hash returns a short, stable fingerprint of the schema layout, embedded
// in each Base chunk's serialization header so a load can detect a
// mismatched schema without fully deserializing the chunk.
func (s Schema) Hash() [8]byte {
	h := sha1.New()
	for _, d := range s.Dimensions {
		fmt.Fprintf(h, "%s:%s:%s:%s;", d.Name, d.Type, d.Scale.String(), d.Offset.String())
	}
	sum := h.Sum(nil)
	var out [8]byte
	copy(out[:], sum[:8])
	return out
}

// PutUint32 / Uint32At write and read a little-endian uint32, the wire
// type of the OriginId dimension every record carries. Chunk
// (de)serialization does not call them; it writes a point's OriginID with
// encoding/binary directly.
func PutUint32(b []byte, v uint32) { binary.LittleEndian.PutUint32(b, v) }
func Uint32At(b []byte) uint32     { return binary.LittleEndian.Uint32(b) }

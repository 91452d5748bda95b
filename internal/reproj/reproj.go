// Package reproj is the reprojection collaborator: a plain function trait
// (batch) -> batch per spec.md §9's design note, rather than an inherited
// class hierarchy.
package reproj

import "github.com/ecopia-map/entwine_go/internal/reader"

// Func is an alias of the reader package's Reprojection trait, kept as its
// own named type so callers can talk about "a reprojection" without
// importing the reader package for an unrelated reason.
type Func = reader.Reprojection

// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package window resolves sliding-window geometry: output shapes, paddings and
// the index maps the operators iterate over.
//
//	g, err := window.Resolve([]int{8, 8}, window.Spec{
//	    Window:  []int{5, 5},
//	    Strides: []int{2, 2},
//	    Mode:    window.PadAuto,
//	})
//	// g.OutputShape() == [4 4], g.Padding() == [[2 1] [2 1]]
package window

import "github.com/born-ml/kernels/internal/window"

type (
	// Spec describes a sliding window before it meets an input shape.
	Spec = window.Spec
	// PadMode selects how an axis is padded and how its output is rounded.
	PadMode = window.PadMode
	// Geometry is a resolved, immutable sliding window.
	Geometry = window.Geometry
	// Axis is the resolved geometry of one spatial axis.
	Axis = window.Axis
	// IndexMap lists the taps of every output cell.
	IndexMap = window.IndexMap
	// InverseMap lists the readers of every input position.
	InverseMap = window.InverseMap
	// Tap is one input position read by an output cell.
	Tap = window.Tap
	// Source is one output cell reading an input position.
	Source = window.Source
	// Memo caches index maps by geometry.
	Memo = window.Memo
	// Dim is a declared axis size, fixed or free.
	Dim = window.Dim
	// ROISpec describes ROI max pooling.
	ROISpec = window.ROISpec
	// Bin is one ROI grid cell.
	Bin = window.Bin
)

// Padding modes.
const (
	PadNone           = window.PadNone
	PadAuto           = window.PadAuto
	PadAutoIncludePad = window.PadAutoIncludePad
	PadCeil           = window.PadCeil
	PadExplicit       = window.PadExplicit
)

// Error kinds; check with errors.Is.
var (
	ErrInvalidGeometry = window.ErrInvalidGeometry
	ErrShapeMismatch   = window.ErrShapeMismatch
)

// Free is an axis whose size is known only at evaluation time.
var Free = window.Free

// Fixed returns an axis of size n.
func Fixed(n int) Dim { return window.Fixed(n) }

// FixedDims returns fixed axes of the given sizes.
func FixedDims(sizes ...int) []Dim { return window.FixedDims(sizes...) }

// Resolve computes the geometry of spec over an input of the given spatial shape.
func Resolve(input []int, spec Spec) (*Geometry, error) {
	return window.Resolve(input, spec)
}

// ResolveTranspose computes the forward geometry of a transposed operator
// whose input has the given spatial shape.
func ResolveTranspose(input []int, spec Spec) (*Geometry, error) {
	return window.ResolveTranspose(input, spec)
}

// ResolveDims concretises declared dims against an actual shape.
func ResolveDims(declared []Dim, actual []int) ([]int, error) {
	return window.ResolveDims(declared, actual)
}

// ParsePadMode parses a padding mode name as printed by PadMode.String.
func ParsePadMode(s string) (PadMode, error) {
	return window.ParsePadMode(s)
}

// NewMemo returns an index-map cache holding at most limit geometries.
func NewMemo(limit int) *Memo {
	return window.NewMemo(limit)
}

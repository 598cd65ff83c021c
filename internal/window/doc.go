// Package window resolves the geometry of N-dimensional sliding-window operators.
//
// Given an input spatial shape and a Spec (window sizes, strides, padding mode),
// Resolve produces an immutable Geometry: the output shape together with the lower
// and upper padding of every axis. A Geometry expands into an IndexMap listing, for
// every output cell, the input positions its window reads, and into the InverseMap
// used to scatter gradients back onto the input.
//
// The same geometry drives convolution, transposed convolution, average and max
// pooling and max unpooling. ROI pooling bins are resolved by ROISpec.
//
// Shapes only cover spatial axes. Batch and channel axes belong to the caller.
package window

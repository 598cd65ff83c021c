package window

import "math"

// ROISpec describes ROI max pooling: every box is divided into an
// OutputShape[0] x OutputShape[1] grid of bins.
type ROISpec struct {
	OutputShape [2]int

	// SpatialScale maps pixel-space box coordinates onto the feature map.
	SpatialScale float64

	// Normalized boxes hold coordinates in [0, 1] relative to the feature map
	// width and height instead of pixels. Their far corner is exclusive, so
	// (0, 0, 1, 1) covers the whole map.
	Normalized bool
}

// Bin is the half-open feature-map region [H0, H1) x [W0, W1) of one ROI cell.
// An empty bin pools to zero.
type Bin struct {
	H0, H1 int
	W0, W1 int
}

// Empty reports whether the bin covers no feature-map position.
func (b Bin) Empty() bool {
	return b.H1 <= b.H0 || b.W1 <= b.W0
}

// Validate checks the grid and scale.
func (s ROISpec) Validate() error {
	if s.OutputShape[0] <= 0 || s.OutputShape[1] <= 0 {
		return invalidf("roi output shape %v must be positive", s.OutputShape)
	}
	if !s.Normalized && s.SpatialScale <= 0 {
		return invalidf("roi spatial scale %g must be positive", s.SpatialScale)
	}
	return nil
}

// Bins partitions box (x1, y1, x2, y2) over a height x width feature map into
// row-major grid cells. Pixel corners are inclusive: the box (1,1,2,2) covers a
// 2x2 region.
func (s ROISpec) Bins(box [4]float64, height, width int) []Bin {
	sx, sy, farEdge := s.SpatialScale, s.SpatialScale, 0
	if s.Normalized {
		sx, sy, farEdge = float64(width), float64(height), 1
	}
	x1 := int(math.Round(box[0] * sx))
	y1 := int(math.Round(box[1] * sy))
	x2 := int(math.Round(box[2]*sx)) - farEdge
	y2 := int(math.Round(box[3]*sy)) - farEdge

	roiH := max(y2-y1+1, 1)
	roiW := max(x2-x1+1, 1)
	outH, outW := s.OutputShape[0], s.OutputShape[1]
	binH := float64(roiH) / float64(outH)
	binW := float64(roiW) / float64(outW)

	bins := make([]Bin, 0, outH*outW)
	for ph := 0; ph < outH; ph++ {
		h0 := clampInt(int(math.Floor(float64(ph)*binH))+y1, 0, height)
		h1 := clampInt(int(math.Ceil(float64(ph+1)*binH))+y1, 0, height)
		for pw := 0; pw < outW; pw++ {
			w0 := clampInt(int(math.Floor(float64(pw)*binW))+x1, 0, width)
			w1 := clampInt(int(math.Ceil(float64(pw+1)*binW))+x1, 0, width)
			bins = append(bins, Bin{H0: h0, H1: h1, W0: w0, W1: w1})
		}
	}
	return bins
}

func clampInt(v, lo, hi int) int {
	return min(max(v, lo), hi)
}

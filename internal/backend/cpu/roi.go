package cpu

import (
	"fmt"

	"github.com/born-ml/kernels/internal/parallel"
	"github.com/born-ml/kernels/internal/tensor"
	"github.com/born-ml/kernels/internal/window"
)

// ROIPool max-pools every region of interest into a fixed grid.
//
// Features shape: [N, C, H, W]
// ROIs shape: [N, R, 4] holding (x1, y1, x2, y2) per box
// Output shape: [N, R, C, outH, outW]
//
// Empty bins output 0.
func (cpu *CPUBackend) ROIPool(features, rois *tensor.RawTensor, spec window.ROISpec) *tensor.RawTensor {
	n, c, h, w, r := roiShapes("roi_pool", features, rois)
	outH, outW := spec.OutputShape[0], spec.OutputShape[1]
	output := cpu.alloc("roi_pool", tensor.Shape{n, r, c, outH, outW}, sameDType("roi_pool", features, rois))
	bins := roiBins(rois, spec, n, r, h, w)
	switch features.DType() {
	case tensor.Float32:
		roiPool[float32](output, features, bins, n, c, r, h, w, cpu.cfg)
	case tensor.Float64:
		roiPool[float64](output, features, bins, n, c, r, h, w, cpu.cfg)
	}
	return output
}

func roiPool[T float](output, features *tensor.RawTensor, bins [][]window.Bin, n, c, r, h, w int, cfg parallel.Config) {
	in, out := slice[T](features), slice[T](output)
	plane := h * w

	parallel.ForBatch(n, r, func(b, roi int) {
		cells := bins[b*r+roi]
		for ch := 0; ch < c; ch++ {
			src := in[(b*c+ch)*plane : (b*c+ch+1)*plane]
			dst := out[((b*r+roi)*c+ch)*len(cells):]
			for i, bin := range cells {
				dst[i], _ = binMax(src, bin, w)
			}
		}
	}, cfg)
}

// ROIPoolBackward routes grad [N, R, C, outH, outW] to every maximum of each
// bin in features [N, C, H, W], accumulating over bins and boxes.
func (cpu *CPUBackend) ROIPoolBackward(features, rois, grad *tensor.RawTensor, spec window.ROISpec) *tensor.RawTensor {
	n, c, h, w, r := roiShapes("roi_pool_backward", features, rois)
	want := tensor.Shape{n, r, c, spec.OutputShape[0], spec.OutputShape[1]}
	if !grad.Shape().Equal(want) {
		panic(fmt.Sprintf("roi_pool_backward: grad shape %v, expected %v", grad.Shape(), want))
	}
	result := cpu.alloc("roi_pool_backward", features.Shape(), sameDType("roi_pool_backward", features, rois, grad))
	bins := roiBins(rois, spec, n, r, h, w)
	switch features.DType() {
	case tensor.Float32:
		roiPoolBackward[float32](result, features, grad, bins, n, c, r, h, w, cpu.cfg)
	case tensor.Float64:
		roiPoolBackward[float64](result, features, grad, bins, n, c, r, h, w, cpu.cfg)
	}
	return result
}

func roiPoolBackward[T float](result, features, grad *tensor.RawTensor, bins [][]window.Bin, n, c, r, h, w int, cfg parallel.Config) {
	in, gr, res := slice[T](features), slice[T](grad), slice[T](result)
	plane := h * w

	// Parallel over feature planes so that no two workers write the same element.
	parallel.ForBatch(n, c, func(b, ch int) {
		src := in[(b*c+ch)*plane : (b*c+ch+1)*plane]
		dst := res[(b*c+ch)*plane : (b*c+ch+1)*plane]
		for roi := 0; roi < r; roi++ {
			cells := bins[b*r+roi]
			up := gr[((b*r+roi)*c+ch)*len(cells):]
			for i, bin := range cells {
				m, ok := binMax(src, bin, w)
				if !ok {
					continue
				}
				for y := bin.H0; y < bin.H1; y++ {
					for x := bin.W0; x < bin.W1; x++ {
						if src[y*w+x] == m {
							dst[y*w+x] += up[i]
						}
					}
				}
			}
		}
	}, cfg)
}

func roiShapes(op string, features, rois *tensor.RawTensor) (n, c, h, w, r int) {
	fs, rs := features.Shape(), rois.Shape()
	if len(fs) != 4 {
		panic(fmt.Sprintf("%s: features must be 4D [N,C,H,W], got %dD", op, len(fs)))
	}
	if len(rs) != 3 || rs[2] != 4 {
		panic(fmt.Sprintf("%s: rois must be [N,R,4], got %v", op, rs))
	}
	if rs[0] != fs[0] {
		panic(fmt.Sprintf("%s: rois batch %d != features batch %d", op, rs[0], fs[0]))
	}
	return fs[0], fs[1], fs[2], fs[3], rs[1]
}

func roiBins(rois *tensor.RawTensor, spec window.ROISpec, n, r, h, w int) [][]window.Bin {
	boxes := rois.Float64s()
	bins := make([][]window.Bin, n*r)
	for i := range bins {
		box := [4]float64(boxes[i*4 : i*4+4])
		bins[i] = spec.Bins(box, h, w)
	}
	return bins
}

func binMax[T float](plane []T, bin window.Bin, w int) (T, bool) {
	if bin.Empty() {
		return 0, false
	}
	m := plane[bin.H0*w+bin.W0]
	for y := bin.H0; y < bin.H1; y++ {
		for x := bin.W0; x < bin.W1; x++ {
			if v := plane[y*w+x]; v > m {
				m = v
			}
		}
	}
	return m, true
}

package cpu

import (
	"github.com/born-ml/kernels/internal/parallel"
	"github.com/born-ml/kernels/internal/tensor"
	"github.com/born-ml/kernels/internal/window"
)

// AvgPool averages every window of input [N, C, I...] into [N, C, O...].
//
// Tap weights come from the geometry: 1/count of in-bounds positions, or
// 1/prod(K) when the geometry includes padding.
func (cpu *CPUBackend) AvgPool(input *tensor.RawTensor, g *window.Geometry) *tensor.RawTensor {
	n, c := planes("avg_pool", "input", input, g.InputShape())
	output := cpu.alloc("avg_pool", batchShape(n, c, g.OutputShape()), sameDType("avg_pool", input))
	im := cpu.memo.IndexMap(g)
	switch input.DType() {
	case tensor.Float32:
		avgPool[float32](output, input, im, n, c, cpu.cfg)
	case tensor.Float64:
		avgPool[float64](output, input, im, n, c, cpu.cfg)
	}
	return output
}

func avgPool[T float](output, input *tensor.RawTensor, im *window.IndexMap, n, c int, cfg parallel.Config) {
	in, out := slice[T](input), slice[T](output)
	g := im.Geometry()
	inPlane, outPlane := g.InputSize(), g.OutputSize()

	parallel.ForBatch(n, c, func(b, ch int) {
		p := b*c + ch
		src := in[p*inPlane : (p+1)*inPlane]
		dst := out[p*outPlane : (p+1)*outPlane]
		for o := range dst {
			var sum T
			for _, tap := range im.Taps(o) {
				sum += T(tap.Weight) * src[tap.Input]
			}
			dst[o] = sum
		}
	}, cfg)
}

// AvgPoolBackward spreads grad [N, C, O...] back over [N, C, I...] with the
// forward tap weights.
func (cpu *CPUBackend) AvgPoolBackward(grad *tensor.RawTensor, g *window.Geometry) *tensor.RawTensor {
	n, c := planes("avg_pool_backward", "grad", grad, g.OutputShape())
	result := cpu.alloc("avg_pool_backward", batchShape(n, c, g.InputShape()), sameDType("avg_pool_backward", grad))
	inv := cpu.memo.Inverse(g)
	switch grad.DType() {
	case tensor.Float32:
		avgPoolBackward[float32](result, grad, inv, n, c, cpu.cfg)
	case tensor.Float64:
		avgPoolBackward[float64](result, grad, inv, n, c, cpu.cfg)
	}
	return result
}

func avgPoolBackward[T float](result, grad *tensor.RawTensor, inv *window.InverseMap, n, c int, cfg parallel.Config) {
	gr, res := slice[T](grad), slice[T](result)
	g := inv.Geometry()
	inPlane, outPlane := g.InputSize(), g.OutputSize()

	parallel.ForBatch(n, c, func(b, ch int) {
		p := b*c + ch
		up := gr[p*outPlane : (p+1)*outPlane]
		dst := res[p*inPlane : (p+1)*inPlane]
		for i := range dst {
			var sum T
			for _, src := range inv.Sources(i) {
				sum += T(src.Weight) * up[src.Output]
			}
			dst[i] = sum
		}
	}, cfg)
}

// MaxPool takes the maximum of every window of input [N, C, I...].
// A window with no in-bounds position yields 0.
func (cpu *CPUBackend) MaxPool(input *tensor.RawTensor, g *window.Geometry) *tensor.RawTensor {
	n, c := planes("max_pool", "input", input, g.InputShape())
	output := cpu.alloc("max_pool", batchShape(n, c, g.OutputShape()), sameDType("max_pool", input))
	im := cpu.memo.IndexMap(g)
	switch input.DType() {
	case tensor.Float32:
		maxPool[float32](output, input, im, n, c, cpu.cfg)
	case tensor.Float64:
		maxPool[float64](output, input, im, n, c, cpu.cfg)
	}
	return output
}

func maxPool[T float](output, input *tensor.RawTensor, im *window.IndexMap, n, c int, cfg parallel.Config) {
	in, out := slice[T](input), slice[T](output)
	g := im.Geometry()
	inPlane, outPlane := g.InputSize(), g.OutputSize()

	parallel.ForBatch(n, c, func(b, ch int) {
		p := b*c + ch
		src := in[p*inPlane : (p+1)*inPlane]
		dst := out[p*outPlane : (p+1)*outPlane]
		for o := range dst {
			dst[o], _ = maxOf(src, im.Taps(o))
		}
	}, cfg)
}

// MaxPoolBackward routes grad [N, C, O...] to the maxima of input [N, C, I...].
//
// Every position equal to its window's maximum receives the full output
// gradient; ties are not broken. Overlapping windows accumulate.
func (cpu *CPUBackend) MaxPoolBackward(input, grad *tensor.RawTensor, g *window.Geometry) *tensor.RawTensor {
	return cpu.scatterToMaxima("max_pool_backward", input, grad, g, false)
}

// MaxUnpool writes pooled [N, C, O...] onto the maxima of reference
// [N, C, I...]. A maximum claimed by several overlapping windows is written
// once, by the first window in row-major order, so re-pooling the result with
// g reproduces pooled when pooled = MaxPool(reference, g) and reference is
// non-negative.
func (cpu *CPUBackend) MaxUnpool(pooled, reference *tensor.RawTensor, g *window.Geometry) *tensor.RawTensor {
	return cpu.scatterToMaxima("max_unpool", reference, pooled, g, true)
}

func (cpu *CPUBackend) scatterToMaxima(op string, reference, values *tensor.RawTensor, g *window.Geometry, claimOnce bool) *tensor.RawTensor {

	n, c := planes(op, "reference", reference, g.InputShape())
	vn, vc := planes(op, "values", values, g.OutputShape())
	if vn != n || vc != c {
		panic(op + ": batch or channel mismatch between reference and values")
	}
	result := cpu.alloc(op, reference.Shape(), sameDType(op, reference, values))
	im := cpu.memo.IndexMap(g)
	switch reference.DType() {
	case tensor.Float32:
		scatterMax[float32](result, reference, values, im, n, c, claimOnce, cpu.cfg)
	case tensor.Float64:
		scatterMax[float64](result, reference, values, im, n, c, claimOnce, cpu.cfg)
	}
	return result
}

// scatterMax adds values[o] at every maximum of window o. With claimOnce a
// maximum takes the value of the first window that reaches it instead.
func scatterMax[T float](result, reference, values *tensor.RawTensor, im *window.IndexMap, n, c int, claimOnce bool, cfg parallel.Config) {
	ref, val, res := slice[T](reference), slice[T](values), slice[T](result)
	g := im.Geometry()
	inPlane, outPlane := g.InputSize(), g.OutputSize()

	parallel.ForBatch(n, c, func(b, ch int) {
		p := b*c + ch
		src := ref[p*inPlane : (p+1)*inPlane]
		up := val[p*outPlane : (p+1)*outPlane]
		dst := res[p*inPlane : (p+1)*inPlane]
		var claimed []bool
		if claimOnce {
			claimed = make([]bool, inPlane)
		}
		for o, v := range up {
			forEachClaim(src, im.Taps(o), claimed, func(i int) {
				dst[i] += v
			})
		}
	}, cfg)
}

// forEachClaim calls f with every maximum of src under taps. A non-nil claimed
// marks visited maxima and skips those already taken by an earlier window.
func forEachClaim[T float](src []T, taps []window.Tap, claimed []bool, f func(i int)) {
	m, ok := maxOf(src, taps)
	if !ok {
		return
	}
	for _, tap := range taps {
		i := tap.Input
		if src[i] != m {
			continue
		}
		if claimed != nil {
			if claimed[i] {
				continue
			}
			claimed[i] = true
		}
		f(i)
	}
}

// MaxUnpoolBackward gathers grad [N, C, I...] back onto the pooled shape
// [N, C, O...]: every pooled cell receives the sum of the gradient at the
// maxima MaxUnpool wrote it to, which makes it the adjoint of MaxUnpool.
func (cpu *CPUBackend) MaxUnpoolBackward(reference, grad *tensor.RawTensor, g *window.Geometry) *tensor.RawTensor {
	n, c := planes("max_unpool_backward", "reference", reference, g.InputShape())
	gn, gc := planes("max_unpool_backward", "grad", grad, g.InputShape())
	if gn != n || gc != c {
		panic("max_unpool_backward: batch or channel mismatch between reference and grad")
	}
	result := cpu.alloc("max_unpool_backward", batchShape(n, c, g.OutputShape()),
		sameDType("max_unpool_backward", reference, grad))
	im := cpu.memo.IndexMap(g)
	switch grad.DType() {
	case tensor.Float32:
		gatherMax[float32](result, reference, grad, im, n, c, cpu.cfg)
	case tensor.Float64:
		gatherMax[float64](result, reference, grad, im, n, c, cpu.cfg)
	}
	return result
}

func gatherMax[T float](result, reference, grad *tensor.RawTensor, im *window.IndexMap, n, c int, cfg parallel.Config) {
	ref, gr, res := slice[T](reference), slice[T](grad), slice[T](result)
	g := im.Geometry()
	inPlane, outPlane := g.InputSize(), g.OutputSize()

	parallel.ForBatch(n, c, func(b, ch int) {
		p := b*c + ch
		src := ref[p*inPlane : (p+1)*inPlane]
		down := gr[p*inPlane : (p+1)*inPlane]
		dst := res[p*outPlane : (p+1)*outPlane]
		claimed := make([]bool, inPlane)
		for o := range dst {
			var sum T
			forEachClaim(src, im.Taps(o), claimed, func(i int) {
				sum += down[i]
			})
			dst[o] = sum
		}
	}, cfg)
}

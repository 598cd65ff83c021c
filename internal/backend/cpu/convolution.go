package cpu

import (
	"fmt"

	"github.com/born-ml/kernels/internal/parallel"
	"github.com/born-ml/kernels/internal/tensor"
	"github.com/born-ml/kernels/internal/window"
)

// Convolution performs N-dimensional cross-correlation using im2col.
//
// Input shape: [N, C_in, I...]
// Kernel shape: [C_out, C_in, K...]
// Output shape: [N, C_out, O...]
//
// Algorithm:
//  1. Gather every output cell's window into a row of [O, C_in*prod(K)]
//     following the geometry's index map (padded taps stay zero)
//  2. Dot each kernel row [C_in*prod(K)] with each column row
func (cpu *CPUBackend) Convolution(input, kernel *tensor.RawTensor, g *window.Geometry) *tensor.RawTensor {
	n, cin := planes("convolution", "input", input, g.InputShape())
	cout, kcin := planes("convolution", "kernel", kernel, g.WindowShape())
	if cin != kcin {
		panic(fmt.Sprintf("convolution: input channels %d != kernel channels %d", cin, kcin))
	}

	output := cpu.alloc("convolution", batchShape(n, cout, g.OutputShape()), sameDType("convolution", input, kernel))
	im := cpu.memo.IndexMap(g)
	switch input.DType() {
	case tensor.Float32:
		convolve[float32](output, input, kernel, im, n, cin, cout, cpu.cfg)
	case tensor.Float64:
		convolve[float64](output, input, kernel, im, n, cin, cout, cpu.cfg)
	}
	return output
}

func convolve[T float](output, input, kernel *tensor.RawTensor, im *window.IndexMap, n, cin, cout int, cfg parallel.Config) {
	in, k, out := slice[T](input), slice[T](kernel), slice[T](output)
	g := im.Geometry()
	inPlane, outPlane, kVol := g.InputSize(), g.OutputSize(), g.WindowVolume()
	row := cin * kVol

	cols := make([][]T, n)
	parallel.For(n, func(b int) {
		cols[b] = im2col(in[b*cin*inPlane:(b+1)*cin*inPlane], im, cin, inPlane, kVol)
	}, cfg)

	parallel.ForBatch(n, cout, func(b, co int) {
		kRow := k[co*row : (co+1)*row]
		dst := out[(b*cout+co)*outPlane : (b*cout+co+1)*outPlane]
		col := cols[b]
		for o := range dst {
			dst[o] = dot(kRow, col[o*row:(o+1)*row])
		}
	}, cfg)
}

// im2col lays out one sample's windows as rows of [C_in, prod(K)].
func im2col[T float](in []T, im *window.IndexMap, cin, inPlane, kVol int) []T {
	row := cin * kVol
	col := make([]T, im.Len()*row)
	for o := 0; o < im.Len(); o++ {
		dst := col[o*row : (o+1)*row]
		for _, tap := range im.Taps(o) {
			for ci := 0; ci < cin; ci++ {
				dst[ci*kVol+tap.Offset] = in[ci*inPlane+tap.Input]
			}
		}
	}
	return col
}

// ConvolutionInputBackward computes the gradient w.r.t. the convolution input.
//
// Each input position gathers kernel[co, ci, offset] * grad[co, out] over every
// (out, offset) pair that read it, so no two workers write the same element.
//
// Kernel shape: [C_out, C_in, K...]
// Grad shape: [N, C_out, O...]
// Result shape: [N, C_in, I...]
func (cpu *CPUBackend) ConvolutionInputBackward(kernel, grad *tensor.RawTensor, g *window.Geometry) *tensor.RawTensor {
	cout, cin := planes("convolution_input_backward", "kernel", kernel, g.WindowShape())
	n, gc := planes("convolution_input_backward", "grad", grad, g.OutputShape())
	if gc != cout {
		panic(fmt.Sprintf("convolution_input_backward: grad channels %d != kernel output channels %d", gc, cout))
	}

	result := cpu.alloc("convolution_input_backward", batchShape(n, cin, g.InputShape()),
		sameDType("convolution_input_backward", kernel, grad))
	inv := cpu.memo.Inverse(g)
	switch grad.DType() {
	case tensor.Float32:
		convolveInputBackward[float32](result, kernel, grad, inv, n, cin, cout, cpu.cfg)
	case tensor.Float64:
		convolveInputBackward[float64](result, kernel, grad, inv, n, cin, cout, cpu.cfg)
	}
	return result
}

func convolveInputBackward[T float](result, kernel, grad *tensor.RawTensor, inv *window.InverseMap, n, cin, cout int, cfg parallel.Config) {
	k, gr, res := slice[T](kernel), slice[T](grad), slice[T](result)
	g := inv.Geometry()
	inPlane, outPlane, kVol := g.InputSize(), g.OutputSize(), g.WindowVolume()

	parallel.ForBatch(n, cin, func(b, ci int) {
		dst := res[(b*cin+ci)*inPlane : (b*cin+ci+1)*inPlane]
		for i := range dst {
			var sum T
			for _, src := range inv.Sources(i) {
				for co := 0; co < cout; co++ {
					sum += k[(co*cin+ci)*kVol+src.Offset] * gr[(b*cout+co)*outPlane+src.Output]
				}
			}
			dst[i] = sum
		}
	}, cfg)
}

// ConvolutionKernelBackward computes the gradient w.r.t. the convolution kernel.
//
// Input shape: [N, C_in, I...]
// Grad shape: [N, C_out, O...]
// Result shape: [C_out, C_in, K...]
func (cpu *CPUBackend) ConvolutionKernelBackward(input, grad *tensor.RawTensor, g *window.Geometry) *tensor.RawTensor {
	n, cin := planes("convolution_kernel_backward", "input", input, g.InputShape())
	gn, cout := planes("convolution_kernel_backward", "grad", grad, g.OutputShape())
	if gn != n {
		panic(fmt.Sprintf("convolution_kernel_backward: grad batch %d != input batch %d", gn, n))
	}

	result := cpu.alloc("convolution_kernel_backward", batchShape(cout, cin, g.WindowShape()),
		sameDType("convolution_kernel_backward", input, grad))
	im := cpu.memo.IndexMap(g)
	switch input.DType() {
	case tensor.Float32:
		convolveKernelBackward[float32](result, input, grad, im, n, cin, cout, cpu.cfg)
	case tensor.Float64:
		convolveKernelBackward[float64](result, input, grad, im, n, cin, cout, cpu.cfg)
	}
	return result
}

func convolveKernelBackward[T float](result, input, grad *tensor.RawTensor, im *window.IndexMap, n, cin, cout int, cfg parallel.Config) {
	in, gr, res := slice[T](input), slice[T](grad), slice[T](result)
	g := im.Geometry()
	inPlane, outPlane, kVol := g.InputSize(), g.OutputSize(), g.WindowVolume()

	parallel.ForBatch(cout, cin, func(co, ci int) {
		dst := res[(co*cin+ci)*kVol : (co*cin+ci+1)*kVol]
		for b := 0; b < n; b++ {
			src := in[(b*cin+ci)*inPlane : (b*cin+ci+1)*inPlane]
			up := gr[(b*cout+co)*outPlane : (b*cout+co+1)*outPlane]
			for o, gv := range up {
				if gv == 0 {
					continue
				}
				for _, tap := range im.Taps(o) {
					dst[tap.Offset] += gv * src[tap.Input]
				}
			}
		}
	}, cfg)
}

// ConvolutionTranspose computes the transposed convolution (the adjoint of
// Convolution under the same geometry).
//
// Input shape: [N, C_in, O...]
// Kernel shape: [C_in, C_out, K...]
// Output shape: [N, C_out, I...]
//
// The kernel layout [C_in, C_out, K...] is the forward kernel
// [C_out', C_in', K...] of the convolution being transposed, so this is the
// input gradient of that convolution.
func (cpu *CPUBackend) ConvolutionTranspose(input, kernel *tensor.RawTensor, g *window.Geometry) *tensor.RawTensor {
	return cpu.ConvolutionInputBackward(kernel, input, g)
}

package graph

import (
	"math/rand/v2"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/kernels/internal/parallel"
	"github.com/born-ml/kernels/internal/tensor"
	"github.com/born-ml/kernels/internal/window"
)

func TestConvolution_WithoutPadding(t *testing.T) {
	tests := []struct {
		name   string
		dims   []window.Dim
		kernel []float64
		input  []float64
		cin    int
		want   float64
	}{
		{
			name:   "free dims",
			dims:   []window.Dim{window.Free, window.Free, window.Free},
			kernel: []float64{5, 6, 3, 4},
			input:  []float64{1, 2, 7, 8},
			cin:    1,
			want:   70,
		},
		{
			name:   "fixed dims",
			dims:   window.FixedDims(3, 2, 2),
			kernel: []float64{1, 2, 3, 4, 1, 2, 3, 4, 1, 2, 3, 4},
			input:  []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12},
			cin:    3,
			want:   210,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			x := Input("a", tt.dims...)
			k := Constant("map", tensor.MustFromFloat64s(tensor.Shape{1, tt.cin, 2, 2}, tensor.Float32, tt.kernel))
			y, err := Convolution(k, x, window.Spec{})
			require.NoError(t, err)

			data := tensor.MustFromFloat64s(tensor.Shape{1, tt.cin, 2, 2}, tensor.Float32, tt.input)
			ev := NewEvaluator()
			out, err := ev.Evaluate(y, Bindings{x: data})
			require.NoError(t, err)
			assert.Equal(t, tensor.Shape{1, 1, 1, 1}, out.Shape())
			assert.InDelta(t, tt.want, out.At(0), 1e-4)

			grads, err := ev.Gradient(y, Bindings{x: data}, x)
			require.NoError(t, err)
			assert.InDeltaSlice(t, tt.kernel, grads[x].Float64s(), 1e-6)
		})
	}
}

func TestConvolution_IncorrectShapes(t *testing.T) {
	k := Constant("k", tensor.Ones(tensor.Shape{8, 1, 5, 5}, tensor.Float32))

	for _, x := range []*Node{Input("scalar"), Input("vector", window.Fixed(28))} {
		_, err := Convolution(k, x, window.Spec{Mode: window.PadAuto})
		assert.True(t, errors.Is(err, ErrInvalidGeometry), "convolution of %s: %v", x, err)

		_, err = Pooling(x, MaxPooling, window.Spec{Window: []int{2, 2}, Strides: []int{2, 2}})
		assert.True(t, errors.Is(err, ErrInvalidGeometry), "pooling of %s: %v", x, err)
	}

	x := Input("x", window.FixedDims(2, 8, 8)...)
	_, err := Convolution(k, x, window.Spec{})
	assert.True(t, errors.Is(err, ErrInvalidGeometry), "channel mismatch: %v", err)

	_, err = Convolution(k, x, window.Spec{Window: []int{3, 3}})
	assert.True(t, errors.Is(err, ErrInvalidGeometry), "window mismatch: %v", err)

	_, err = Convolution(Input("k", window.FixedDims(1, 1, 2, 2)...), x, window.Spec{})
	assert.True(t, errors.Is(err, ErrInvalidGeometry), "non-constant kernel: %v", err)

	_, err = Pooling(Input("small", window.FixedDims(1, 2, 2)...), MaxPooling, window.Spec{Window: []int{3, 3}})
	assert.True(t, errors.Is(err, ErrInvalidGeometry), "window larger than input: %v", err)
}

func TestConvolution_AsymmetricAutoPad(t *testing.T) {
	x := Input("a", window.FixedDims(1, 3, 3)...)
	k := Constant("map", tensor.Arange(tensor.Shape{1, 1, 2, 2}, tensor.Float64, 0))
	y, err := Convolution(k, x, window.Spec{Mode: window.PadAuto})
	require.NoError(t, err)
	assert.Equal(t, window.FixedDims(1, 3, 3), y.Dims())

	out, err := NewEvaluator().Evaluate(y, Bindings{x: tensor.Arange(tensor.Shape{1, 1, 3, 3}, tensor.Float64, 0)})
	require.NoError(t, err)
	assert.Equal(t, []float64{19, 25, 10, 37, 43, 16, 7, 8, 0}, out.AsFloat64())
}

func TestConvolutionTranspose_OutputShape(t *testing.T) {
	x := Input("a", window.FixedDims(1, 3, 3)...)
	k := Constant("map", tensor.Arange(tensor.Shape{1, 1, 3, 3}, tensor.Float32, 0))
	y, err := ConvolutionTranspose(k, x, window.Spec{Strides: []int{2, 2}, Mode: window.PadAuto, OutputShape: []int{5, 6}})
	require.NoError(t, err)
	assert.Equal(t, window.FixedDims(1, 5, 6), y.Dims())

	out, err := NewEvaluator().Evaluate(y, Bindings{x: tensor.Arange(tensor.Shape{1, 1, 3, 3}, tensor.Float32, 0)})
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{
		0, 3, 4, 11, 8, 10,
		3, 12, 11, 28, 19, 26,
		12, 27, 16, 35, 20, 25,
		27, 60, 35, 76, 43, 56,
		24, 51, 28, 59, 32, 40,
	}, out.Float64s(), 1e-4)

	_, err = ConvolutionTranspose(k, x, window.Spec{Strides: []int{2, 2}, Mode: window.PadAuto, OutputShape: []int{9, 6}})
	assert.True(t, errors.Is(err, ErrInvalidGeometry), "unreachable output shape: %v", err)
}

func TestConvolutionTranspose_SolvedPadding(t *testing.T) {
	x := Input("a", window.Fixed(1), window.Free)
	k := Constant("ones", tensor.Ones(tensor.Shape{1, 1, 3}, tensor.Float32))
	y, err := ConvolutionTranspose(k, x, window.Spec{Strides: []int{2}, OutputShape: []int{6}})
	require.NoError(t, err)
	assert.Equal(t, window.FixedDims(1, 6), y.Dims())

	out, err := NewEvaluator().Evaluate(y, Bindings{x: tensor.Ones(tensor.Shape{1, 1, 3}, tensor.Float32)})
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{1, 1, 2, 1, 2, 1}, out.Float64s(), 1e-6)
}

func TestEvaluate_ConstantIsNotShared(t *testing.T) {
	value := tensor.Arange(tensor.Shape{1, 1, 2}, tensor.Float32, 1)
	c := Constant("c", value)
	ev := NewEvaluator()

	first, err := ev.Evaluate(c, Bindings{})
	require.NoError(t, err)
	first.AsFloat32()[0] = 99

	second, err := ev.Evaluate(c, Bindings{})
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2}, second.AsFloat32())
	assert.Equal(t, []float32{1, 2}, value.AsFloat32())
}

func TestPooling_Gradients(t *testing.T) {
	x := Input("a", window.FixedDims(1, 7, 7)...)
	y, err := Pooling(x, AvgPooling, window.Spec{Window: []int{3, 3}, Strides: []int{3, 3}, Mode: window.PadAutoIncludePad})
	require.NoError(t, err)

	grads, err := NewEvaluator().Gradient(y, Bindings{x: tensor.Arange(tensor.Shape{1, 1, 7, 7}, tensor.Float32, 1)}, x)
	require.NoError(t, err)
	for _, v := range grads[x].Float64s() {
		assert.InDelta(t, 1.0/9, v, 1e-6)
	}
}

func TestUnpooling_RoundTrip(t *testing.T) {
	spec := window.Spec{Window: []int{5, 5}, Strides: []int{2, 2}, Mode: window.PadAuto}
	x := Input("a", window.Fixed(1), window.Free, window.Free)
	p, err := Pooling(x, MaxPooling, spec)
	require.NoError(t, err)
	u, err := Unpooling(p, x, spec)
	require.NoError(t, err)
	q, err := Pooling(u, MaxPooling, spec)
	require.NoError(t, err)

	data := tensor.Arange(tensor.Shape{1, 1, 8, 8}, tensor.Float32, 1)
	ev := NewEvaluator()

	pooled, err := ev.Evaluate(p, Bindings{x: data})
	require.NoError(t, err)
	repooled, err := ev.Evaluate(q, Bindings{x: data})
	require.NoError(t, err)
	assert.True(t, tensor.AllClose(pooled, repooled, 1e-6))

	unpooled, err := ev.Evaluate(u, Bindings{x: data})
	require.NoError(t, err)
	grads, err := ev.Gradient(u, Bindings{x: data}, x)
	require.NoError(t, err)

	for i, g := range grads[x].Float64s() {
		isMax := 0.0
		for _, m := range pooled.Float64s() {
			if data.At(i) == m {
				isMax = 1
			}
		}
		assert.Equal(t, isMax, g, "grad[%d]", i)
		assert.Equal(t, isMax*data.At(i), unpooled.At(i), "unpooled[%d]", i)
	}
}

func TestUnpooling_ShapeChecks(t *testing.T) {
	spec := window.Spec{Window: []int{2, 2}, Strides: []int{2, 2}}
	ref := Input("ref", window.FixedDims(1, 4, 4)...)

	_, err := Unpooling(Input("p", window.FixedDims(1, 3, 2)...), ref, spec)
	assert.True(t, errors.Is(err, ErrInvalidGeometry), "pooled shape: %v", err)

	p := Input("p", window.Fixed(1), window.Free, window.Free)
	u, err := Unpooling(p, ref, spec)
	require.NoError(t, err)
	_, err = NewEvaluator().Evaluate(u, Bindings{
		p:   tensor.Ones(tensor.Shape{1, 1, 3, 3}, tensor.Float32),
		ref: tensor.Ones(tensor.Shape{1, 1, 4, 4}, tensor.Float32),
	})
	assert.True(t, errors.Is(err, ErrShapeMismatch), "pooled binding: %v", err)
}

func TestROIPooling(t *testing.T) {
	features := Input("features", window.FixedDims(1, 3, 3)...)
	rois := Input("rois", window.FixedDims(1, 4)...)
	y, err := ROIPooling(features, rois, window.ROISpec{OutputShape: [2]int{3, 3}, SpatialScale: 1})
	require.NoError(t, err)
	assert.Equal(t, window.FixedDims(1, 1, 3, 3), y.Dims())

	bindings := Bindings{
		features: tensor.Arange(tensor.Shape{1, 1, 3, 3}, tensor.Float32, 1),
		rois:     tensor.MustFromFloat64s(tensor.Shape{1, 1, 4}, tensor.Float32, []float64{1, 1, 2, 2}),
	}
	ev := NewEvaluator()
	out, err := ev.Evaluate(y, bindings)
	require.NoError(t, err)
	assert.Equal(t, []float32{5, 6, 6, 8, 9, 9, 8, 9, 9}, out.AsFloat32())

	grads, err := ev.Gradient(y, bindings, features, rois)
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 0, 0, 0, 1, 2, 0, 2, 4}, grads[features].AsFloat32())
	assert.Equal(t, make([]float32, 4), grads[rois].AsFloat32())

	_, err = ROIPooling(features, Input("bad", window.FixedDims(1, 3)...), window.ROISpec{OutputShape: [2]int{3, 3}, SpatialScale: 1})
	assert.True(t, errors.Is(err, ErrInvalidGeometry))
	_, err = ROIPooling(features, rois, window.ROISpec{OutputShape: [2]int{0, 3}, SpatialScale: 1})
	assert.True(t, errors.Is(err, ErrInvalidGeometry))
}

func TestEvaluate_BindingErrors(t *testing.T) {
	x := Input("x", window.Fixed(1), window.Fixed(4), window.Free)
	y, err := Pooling(x, MaxPooling, window.Spec{Window: []int{2, 3}})
	require.NoError(t, err)
	ev := NewEvaluator()

	tests := []struct {
		name     string
		bindings Bindings
	}{
		{"missing", Bindings{}},
		{"rank", Bindings{x: tensor.Ones(tensor.Shape{1, 4, 4}, tensor.Float32)}},
		{"fixed axis", Bindings{x: tensor.Ones(tensor.Shape{1, 1, 5, 4}, tensor.Float32)}},
		{"free axis too small", Bindings{x: tensor.Ones(tensor.Shape{1, 1, 4, 2}, tensor.Float32)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ev.Evaluate(y, tt.bindings)
			assert.True(t, errors.Is(err, ErrShapeMismatch), "got %v", err)
		})
	}
}

func TestEvaluate_FreeChannelMismatch(t *testing.T) {
	x := Input("x", window.Free, window.Free, window.Free)
	y, err := Convolution(Constant("k", tensor.Ones(tensor.Shape{2, 3, 2, 2}, tensor.Float32)), x, window.Spec{})
	require.NoError(t, err)

	_, err = NewEvaluator().Evaluate(y, Bindings{x: tensor.Ones(tensor.Shape{1, 2, 4, 4}, tensor.Float32)})
	assert.True(t, errors.Is(err, ErrShapeMismatch), "got %v", err)
}

func TestEvaluate_DType(t *testing.T) {
	x := Input("x", window.FixedDims(1, 2, 2)...)
	y, err := Pooling(x, AvgPooling, window.Spec{Window: []int{2, 2}})
	require.NoError(t, err)

	data := tensor.Arange(tensor.Shape{1, 1, 2, 2}, tensor.Float64, 1)
	out, err := NewEvaluator().Evaluate(y, Bindings{x: data})
	require.NoError(t, err)
	assert.Equal(t, tensor.Float64, out.DType())
	assert.Equal(t, []float64{2.5}, out.AsFloat64())

	out, err = NewEvaluator(WithDType(tensor.Float32)).Evaluate(y, Bindings{x: data})
	require.NoError(t, err)
	assert.Equal(t, []float32{2.5}, out.AsFloat32())
}

// TestEvaluate_FreeAxesMatchFixed evaluates the same convolution with free
// and fixed spatial axes, after warming the free graph up on another size.
func TestEvaluate_FreeAxesMatchFixed(t *testing.T) {
	tests := []struct {
		name   string
		warmup []int
		input  []int
		free   int
		filter []int
		cout   int
	}{
		{"2d one free axis", []int{3, 11, 15}, []int{3, 11, 35}, 1, []int{5, 5}, 4},
		{"2d two free axes", []int{3, 9, 13}, []int{3, 19, 25}, 2, []int{3, 3}, 4},
		{"3d three free axes", []int{2, 5, 7, 6}, []int{2, 9, 8, 10}, 3, []int{3, 3, 3}, 2},
		{"3d one free axis", []int{2, 5, 6, 7}, []int{2, 5, 6, 12}, 1, []int{3, 3, 3}, 2},
	}

	rng := rand.New(rand.NewPCG(0, 0))
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kshape := append(tensor.Shape{tt.cout, tt.warmup[0]}, tt.filter...)
			k := Constant("k", tensor.Arange(kshape, tensor.Float32, 0))
			spec := window.Spec{Mode: window.PadAuto}

			ref := Input("ref", window.FixedDims(tt.input...)...)
			freeDims := window.FixedDims(tt.input...)
			for d := len(freeDims) - tt.free; d < len(freeDims); d++ {
				freeDims[d] = window.Free
			}
			test := Input("test", freeDims...)

			yRef, err := Convolution(k, ref, spec)
			require.NoError(t, err)
			yTest, err := Convolution(k, test, spec)
			require.NoError(t, err)

			batch := 1 + rng.IntN(3)
			vals := make([]float64, batch*tensor.Shape(tt.input).NumElements())
			for i := range vals {
				vals[i] = rng.Float64()
			}
			data := tensor.MustFromFloat64s(append(tensor.Shape{batch}, tt.input...), tensor.Float32, vals)

			warm := make([]int, len(tt.input))
			copy(warm, tt.input)
			copy(warm[len(warm)-tt.free:], tt.warmup[len(tt.warmup)-tt.free:])

			ev := NewEvaluator()
			_, err = ev.Evaluate(yTest, Bindings{test: tensor.Ones(append(tensor.Shape{2}, warm...), tensor.Float32)})
			require.NoError(t, err)

			want, err := ev.Evaluate(yRef, Bindings{ref: data})
			require.NoError(t, err)
			got, err := ev.Evaluate(yTest, Bindings{test: data})
			require.NoError(t, err)
			assert.True(t, tensor.AllClose(want, got, 1e-4), "max diff %g", tensor.MaxAbsDiff(want, got))
		})
	}
}

func TestGradient_Errors(t *testing.T) {
	x := Input("x", window.FixedDims(1, 2, 2)...)
	y, err := Pooling(x, MaxPooling, window.Spec{Window: []int{2, 2}})
	require.NoError(t, err)
	data := Bindings{x: tensor.Ones(tensor.Shape{1, 1, 2, 2}, tensor.Float32)}

	_, err = NewEvaluator().Gradient(y, data, Input("other"))
	assert.Error(t, err)

	// The gradient of an input with respect to itself is the upstream ones.
	grads, err := NewEvaluator().Gradient(x, data, x)
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 1, 1, 1}, grads[x].AsFloat32())
}

func TestEvaluate_RecoversBackendPanics(t *testing.T) {
	x := Input("x", window.FixedDims(1, 2, 2)...)
	y, err := Pooling(x, MaxPooling, window.Spec{Window: []int{2, 2}})
	require.NoError(t, err)

	err = catch(y, func() { panic("max_pool: boom") })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_pool: boom")
}

func TestEvaluator_Concurrent(t *testing.T) {
	x := Input("x", window.Fixed(2), window.Free, window.Free)
	k := Constant("k", tensor.Arange(tensor.Shape{3, 2, 3, 3}, tensor.Float64, 0))
	y, err := Convolution(k, x, window.Spec{Strides: []int{2, 1}, Mode: window.PadAuto})
	require.NoError(t, err)

	ev := NewEvaluator(WithConfig(parallel.Config{Enabled: true, NumWorkers: 4, MinChunkSize: 1}))
	data := tensor.Arange(tensor.Shape{2, 2, 9, 7}, tensor.Float64, 0)
	want, err := ev.Evaluate(y, Bindings{x: data})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := ev.Evaluate(y, Bindings{x: data})
			if assert.NoError(t, err) {
				assert.True(t, tensor.AllClose(want, got, 0))
			}
		}()
	}
	wg.Wait()
}

package cpu

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/floats"

	"github.com/born-ml/kernels/internal/tensor"
	"github.com/born-ml/kernels/internal/window"
)

// TestMaxPool_Geometry pools 0-based sequences; the leading window axis of
// size 1 covers the channel-like axis.
func TestMaxPool_Geometry(t *testing.T) {
	tests := []struct {
		name    string
		input   []int
		spec    window.Spec
		want    []float64
		outWant []int
	}{
		{
			name:    "auto pad",
			input:   []int{1, 6, 6},
			spec:    window.Spec{Window: []int{1, 5, 5}, Strides: []int{1, 3, 3}, Mode: window.PadAuto},
			want:    []float64{21, 23, 33, 35},
			outWant: []int{1, 2, 2},
		},
		{
			name:    "no pad drops remainder",
			input:   []int{1, 8, 8},
			spec:    window.Spec{Window: []int{1, 4, 4}, Strides: []int{1, 5, 5}},
			want:    []float64{27},
			outWant: []int{1, 1, 1},
		},
		{
			name:    "per-axis flags",
			input:   []int{1, 6, 6},
			spec:    window.Spec{Window: []int{1, 4, 4}, Strides: []int{1, 2, 2}, Mode: window.PadAuto, AutoPad: []bool{true, false}},
			want:    []float64{15, 17, 27, 29, 33, 35},
			outWant: []int{1, 3, 2},
		},
	}

	backend := New()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := resolve(t, tt.input, tt.spec)
			assert.Equal(t, tt.outWant, g.OutputShape())
			x := tensor.Arange(append(tensor.Shape{1, 1}, tt.input...), tensor.Float32, 0)
			assertValues(t, tt.want, backend.MaxPool(x, g))
		})
	}
}

var maxPoolFixtures = []struct {
	name   string
	shape  tensor.Shape
	spec   window.Spec
	result []float64
}{
	{
		name:   "2x4x3 window 2x2x1",
		shape:  tensor.Shape{2, 1, 2, 4, 3},
		spec:   window.Spec{Window: []int{2, 2, 1}, Strides: []int{2, 2, 1}},
		result: []float64{16, 17, 18, 22, 23, 24, 40, 41, 42, 46, 47, 48},
	},
	{
		name:  "4x4x4 window 2x2x2",
		shape: tensor.Shape{2, 1, 4, 4, 4},
		spec:  window.Spec{Window: []int{2, 2, 2}, Strides: []int{2, 2, 2}},
		result: []float64{
			22, 24, 30, 32, 54, 56, 62, 64,
			86, 88, 94, 96, 118, 120, 126, 128,
		},
	},
	{
		name:  "8x8 window 5x5 stride 2 auto",
		shape: tensor.Shape{1, 1, 8, 8},
		spec:  window.Spec{Window: []int{5, 5}, Strides: []int{2, 2}, Mode: window.PadAuto},
		result: []float64{
			19, 21, 23, 24,
			35, 37, 39, 40,
			51, 53, 55, 56,
			59, 61, 63, 64,
		},
	},
	{
		name:  "ceil 2x2",
		shape: tensor.Shape{1, 1, 8, 8},
		spec:  window.Spec{Window: []int{2, 2}, Strides: []int{2, 2}, Mode: window.PadCeil},
		result: []float64{
			10, 12, 14, 16,
			26, 28, 30, 32,
			42, 44, 46, 48,
			58, 60, 62, 64,
		},
	},
	{
		name:  "ceil 3x3",
		shape: tensor.Shape{1, 1, 8, 8},
		spec:  window.Spec{Window: []int{3, 3}, Strides: []int{2, 2}, Mode: window.PadCeil},
		result: []float64{
			19, 21, 23, 24,
			35, 37, 39, 40,
			51, 53, 55, 56,
			59, 61, 63, 64,
		},
	},
}

func TestMaxPool_Fixtures(t *testing.T) {
	backend := New()
	for _, tt := range maxPoolFixtures {
		for _, dt := range dtypes {
			t.Run(tt.name+"/"+dt.String(), func(t *testing.T) {
				g := resolve(t, tt.shape.Spatial(), tt.spec)
				x := tensor.Arange(tt.shape, dt, 1)

				out := backend.MaxPool(x, g)
				assertValues(t, tt.result, out)

				grad := backend.MaxPoolBackward(x, tensor.OnesLike(out), g)
				assertValues(t, maxIndicator(x, tt.result), grad)
			})
		}
	}
}

func TestMaxUnpool_RoundTrip(t *testing.T) {
	backend := New()
	for _, tt := range maxPoolFixtures {
		t.Run(tt.name, func(t *testing.T) {
			g := resolve(t, tt.shape.Spatial(), tt.spec)
			x := tensor.Arange(tt.shape, tensor.Float32, 1)
			indicator := maxIndicator(x, tt.result)

			p := backend.MaxPool(x, g)
			u := backend.MaxUnpool(p, x, g)
			want := make([]float64, len(indicator))
			maxima := 0.0
			for i, c := range indicator {
				if c > 0 {
					want[i] = x.At(i)
					maxima++
				}
			}
			assertValues(t, want, u)
			assert.True(t, tensor.AllClose(p, backend.MaxPool(u, g), 1e-6))

			// Each maximum is owned by exactly one pooled cell.
			back := backend.MaxUnpoolBackward(x, tensor.OnesLike(u), g)
			total := 0.0
			for _, v := range back.Float64s() {
				assert.Contains(t, []float64{0, 1}, v)
				total += v
			}
			assert.Equal(t, maxima, total)
		})
	}
}

func TestMaxUnpool_OverlappingWindowsShareMaximum(t *testing.T) {
	backend := New()
	g := resolve(t, []int{3}, window.Spec{Window: []int{2}})
	x := tensor.MustFromFloat64s(tensor.Shape{1, 1, 3}, tensor.Float64, []float64{1, 3, 2})

	p := backend.MaxPool(x, g)
	assertValues(t, []float64{3, 3}, p)
	u := backend.MaxUnpool(p, x, g)
	assertValues(t, []float64{0, 3, 0}, u)
	assertValues(t, []float64{3, 3}, backend.MaxPool(u, g))

	// The first window owns the shared maximum.
	grad := tensor.MustFromFloat64s(tensor.Shape{1, 1, 3}, tensor.Float64, []float64{5, 7, 11})
	assertValues(t, []float64{7, 0}, backend.MaxUnpoolBackward(x, grad, g))
}

func TestMaxUnpool_RepoolLaw(t *testing.T) {
	backend := New()
	rng := rand.New(rand.NewPCG(4, 2))
	specs := []window.Spec{
		{Window: []int{3, 3}, Mode: window.PadAuto},
		{Window: []int{3, 2}, Strides: []int{2, 1}},
		{Window: []int{2, 3}, Strides: []int{1, 2}, Mode: window.PadCeil},
	}
	for i, spec := range specs {
		g := resolve(t, []int{5, 6}, spec)
		shape := tensor.Shape{2, 3, 5, 6}
		values := make([]float64, shape.NumElements())
		for j := range values {
			// Few distinct levels so that ties and shared maxima are common.
			values[j] = float64(rng.IntN(4))
		}
		x := tensor.MustFromFloat64s(shape, tensor.Float64, values)
		p := backend.MaxPool(x, g)
		assert.Equal(t, p.Float64s(), backend.MaxPool(backend.MaxUnpool(p, x, g), g).Float64s(), "case %d", i)
	}
}

func TestMaxUnpool_Adjoint(t *testing.T) {
	backend := New()
	rng := rand.New(rand.NewPCG(8, 1))
	g := resolve(t, []int{6, 5}, window.Spec{Window: []int{3, 3}, Strides: []int{1, 2}, Mode: window.PadAuto})

	random := func(shape tensor.Shape, levels int) *tensor.RawTensor {
		values := make([]float64, shape.NumElements())
		for j := range values {
			if levels > 0 {
				values[j] = float64(rng.IntN(levels))
			} else {
				values[j] = rng.Float64()*2 - 1
			}
		}
		return tensor.MustFromFloat64s(shape, tensor.Float64, values)
	}
	x := random(tensor.Shape{1, 2, 6, 5}, 3)
	p := random(append(tensor.Shape{1, 2}, g.OutputShape()...), 0)
	y := random(tensor.Shape{1, 2, 6, 5}, 0)

	lhs := floats.Dot(backend.MaxUnpool(p, x, g).Float64s(), y.Float64s())
	rhs := floats.Dot(p.Float64s(), backend.MaxUnpoolBackward(x, y, g).Float64s())
	assert.InDelta(t, lhs, rhs, 1e-9)
}

func TestMaxPool_TiesRouteToEveryMaximum(t *testing.T) {
	backend := New()
	g := resolve(t, []int{2, 2}, window.Spec{Window: []int{2, 2}})
	x := tensor.MustFromFloat64s(tensor.Shape{1, 1, 2, 2}, tensor.Float64, []float64{3, 1, 3, 3})

	out := backend.MaxPool(x, g)
	assertValues(t, []float64{3}, out)
	assertValues(t, []float64{1, 0, 1, 1}, backend.MaxPoolBackward(x, tensor.OnesLike(out), g))

	// Unpooling a tied window copies the value to every maximum.
	assertValues(t, []float64{3, 0, 3, 3}, backend.MaxUnpool(out, x, g))
	assertValues(t, []float64{3}, backend.MaxUnpoolBackward(x, tensor.OnesLike(x), g))
}

func TestAvgPool_Fixtures(t *testing.T) {
	tests := []struct {
		name   string
		shape  tensor.Shape
		spec   window.Spec
		result []float64
		grad   float64
	}{
		{
			name:   "2x4x3 window 2x2x1",
			shape:  tensor.Shape{2, 1, 2, 4, 3},
			spec:   window.Spec{Window: []int{2, 2, 1}, Strides: []int{2, 2, 1}, Mode: window.PadAuto},
			result: []float64{8.5, 9.5, 10.5, 14.5, 15.5, 16.5, 32.5, 33.5, 34.5, 38.5, 39.5, 40.5},
			grad:   1.0 / 4,
		},
		{
			name:   "2x2x4 window 2x2x1",
			shape:  tensor.Shape{1, 1, 2, 2, 4},
			spec:   window.Spec{Window: []int{2, 2, 1}, Strides: []int{2, 2, 1}, Mode: window.PadAuto},
			result: []float64{7, 8, 9, 10},
			grad:   1.0 / 4,
		},
		{
			name:  "include pad 7x7",
			shape: tensor.Shape{1, 1, 7, 7},
			spec:  window.Spec{Window: []int{3, 3}, Strides: []int{3, 3}, Mode: window.PadAutoIncludePad},
			result: []float64{
				20. / 9, 45. / 9, 40. / 9,
				135. / 9, 225. / 9, 165. / 9,
				160. / 9, 255. / 9, 180. / 9,
			},
			grad: 1.0 / 9,
		},
	}

	backend := New()
	for _, tt := range tests {
		for _, dt := range dtypes {
			t.Run(tt.name+"/"+dt.String(), func(t *testing.T) {
				g := resolve(t, tt.shape.Spatial(), tt.spec)
				x := tensor.Arange(tt.shape, dt, 1)

				out := backend.AvgPool(x, g)
				assertValues(t, tt.result, out)

				grad := backend.AvgPoolBackward(tensor.OnesLike(out), g)
				assert.Equal(t, x.Shape(), grad.Shape())
				for i, v := range grad.Float64s() {
					assert.InDelta(t, tt.grad, v, 1e-6, "grad[%d]", i)
				}
			})
		}
	}
}

func TestAvgPool_ExcludesPaddingFromDivisor(t *testing.T) {
	backend := New()
	g := resolve(t, []int{3, 3}, window.Spec{Window: []int{3, 3}, Mode: window.PadAuto})
	x := tensor.Ones(tensor.Shape{1, 1, 3, 3}, tensor.Float64)

	// Every cell averages only in-bounds ones, corners included.
	for _, v := range backend.AvgPool(x, g).Float64s() {
		assert.InDelta(t, 1.0, v, 1e-12)
	}

	gi := resolve(t, []int{3, 3}, window.Spec{Window: []int{3, 3}, Mode: window.PadAutoIncludePad})
	out := backend.AvgPool(x, gi).Float64s()
	assert.InDelta(t, 4.0/9, out[0], 1e-12)
	assert.InDelta(t, 6.0/9, out[1], 1e-12)
	assert.InDelta(t, 1.0, out[4], 1e-12)
}

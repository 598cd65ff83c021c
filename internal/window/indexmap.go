package window

// Tap is one input position read by an output cell.
type Tap struct {
	// Input is the flat row-major index into the spatial input plane.
	Input int
	// Offset is the flat row-major index into the window; convolution uses it
	// to select the kernel weight.
	Offset int
	// Weight is the averaging weight of the tap: 1/count of in-bounds taps, or
	// 1/window volume when the geometry includes padding.
	Weight float64
}

// IndexMap lists, for every output cell in row-major order, the taps its window
// reads. Taps falling outside the input are omitted.
type IndexMap struct {
	geom   *Geometry
	starts []int
	taps   []Tap
}

// Source is one output cell reading an input position.
type Source struct {
	Output int
	Offset int
	Weight float64
}

// InverseMap lists, for every input position, the output cells that read it.
// Sources are ordered by output cell.
type InverseMap struct {
	geom    *Geometry
	starts  []int
	sources []Source
}

type axisTap struct {
	offset int
	input  int
}

// IndexMap expands the geometry into its per-output tap lists.
func (g *Geometry) IndexMap() *IndexMap {
	rank := g.Rank()

	// Valid (window offset, input coordinate) pairs per axis and output index.
	perAxis := make([][][]axisTap, rank)
	for d, a := range g.axes {
		perAxis[d] = make([][]axisTap, a.Output)
		for o := 0; o < a.Output; o++ {
			start := a.Start(o)
			for k := 0; k < a.Window; k++ {
				if i := start + k; i >= 0 && i < a.Input {
					perAxis[d][o] = append(perAxis[d][o], axisTap{offset: k, input: i})
				}
			}
		}
	}

	inStrides := rowMajorStrides(g.InputShape())
	winStrides := rowMajorStrides(g.WindowShape())
	volume := float64(g.WindowVolume())

	outSize := g.OutputSize()
	m := &IndexMap{
		geom:   g,
		starts: make([]int, outSize+1),
		taps:   make([]Tap, 0, outSize*g.WindowVolume()),
	}

	outCoord := make([]int, rank)
	cursor := make([]int, rank)
	for out := 0; out < outSize; out++ {
		m.starts[out] = len(m.taps)

		count := 1
		for d := 0; d < rank; d++ {
			count *= len(perAxis[d][outCoord[d]])
		}
		if count > 0 {
			weight := 1 / float64(count)
			if g.includePad {
				weight = 1 / volume
			}
			clear(cursor)
			for {
				in, off := 0, 0
				for d := 0; d < rank; d++ {
					t := perAxis[d][outCoord[d]][cursor[d]]
					in += t.input * inStrides[d]
					off += t.offset * winStrides[d]
				}
				m.taps = append(m.taps, Tap{Input: in, Offset: off, Weight: weight})
				if !advance(cursor, func(d int) int { return len(perAxis[d][outCoord[d]]) }) {
					break
				}
			}
		}
		advance(outCoord, func(d int) int { return g.axes[d].Output })
	}
	m.starts[outSize] = len(m.taps)
	return m
}

// Geometry returns the geometry the map was built from.
func (m *IndexMap) Geometry() *Geometry {
	return m.geom
}

// Len returns the number of output cells.
func (m *IndexMap) Len() int {
	return len(m.starts) - 1
}

// Taps returns the taps of output cell out. The slice must not be modified.
func (m *IndexMap) Taps(out int) []Tap {
	return m.taps[m.starts[out]:m.starts[out+1]]
}

// NumTaps returns the total number of taps over all output cells.
func (m *IndexMap) NumTaps() int {
	return len(m.taps)
}

// Inverse builds the input-to-output view of the same taps.
func (m *IndexMap) Inverse() *InverseMap {
	inSize := m.geom.InputSize()
	counts := make([]int, inSize+1)
	for _, t := range m.taps {
		counts[t.Input+1]++
	}
	for i := 1; i <= inSize; i++ {
		counts[i] += counts[i-1]
	}

	inv := &InverseMap{
		geom:    m.geom,
		starts:  append([]int(nil), counts...),
		sources: make([]Source, len(m.taps)),
	}
	fill := counts[:inSize]
	for out := 0; out < m.Len(); out++ {
		for _, t := range m.Taps(out) {
			inv.sources[fill[t.Input]] = Source{Output: out, Offset: t.Offset, Weight: t.Weight}
			fill[t.Input]++
		}
	}
	return inv
}

// Geometry returns the geometry the map was built from.
func (m *InverseMap) Geometry() *Geometry {
	return m.geom
}

// Len returns the number of input positions.
func (m *InverseMap) Len() int {
	return len(m.starts) - 1
}

// Sources returns the output cells reading input position in.
func (m *InverseMap) Sources(in int) []Source {
	return m.sources[m.starts[in]:m.starts[in+1]]
}

func rowMajorStrides(shape []int) []int {
	strides := make([]int, len(shape))
	acc := 1
	for d := len(shape) - 1; d >= 0; d-- {
		strides[d] = acc
		acc *= shape[d]
	}
	return strides
}

// advance steps a row-major odometer. It returns false after wrapping around.
func advance(coord []int, limit func(d int) int) bool {
	for d := len(coord) - 1; d >= 0; d-- {
		coord[d]++
		if coord[d] < limit(d) {
			return true
		}
		coord[d] = 0
	}
	return false
}

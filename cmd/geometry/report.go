package main

import (
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/born-ml/kernels/internal/window"
)

// marshalReport renders the geometry as a JSON object. Transposed reports
// list the transpose input and output, not the forward ones.
func marshalReport(g *window.Geometry, opts options) ([]byte, error) {
	in, out := g.InputShape(), g.OutputShape()
	if opts.transpose {
		in, out = out, in
	}

	padding := make([]any, 0, g.Rank())
	for _, p := range g.Padding() {
		padding = append(padding, []any{p[0], p[1]})
	}
	fields := map[string]any{
		"input":      ints(in),
		"output":     ints(out),
		"window":     ints(g.WindowShape()),
		"strides":    ints(strides(g)),
		"padding":    padding,
		"mode":       opts.spec.Mode.String(),
		"includePad": g.IncludePad(),
		"transpose":  opts.transpose,
		"key":        g.Key(),
	}
	if opts.taps {
		im := g.IndexMap()
		cells := make([]any, im.Len())
		for o := range cells {
			taps := im.Taps(o)
			list := make([]any, len(taps))
			for i, t := range taps {
				list[i] = map[string]any{"input": t.Input, "offset": t.Offset, "weight": t.Weight}
			}
			cells[o] = list
		}
		fields["taps"] = cells
	}

	report, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, err
	}
	return protojson.MarshalOptions{Multiline: true, Indent: "  "}.Marshal(report)
}

func strides(g *window.Geometry) []int {
	out := make([]int, g.Rank())
	for d, ax := range g.Axes() {
		out[d] = ax.Stride
	}
	return out
}

func ints(v []int) []any {
	out := make([]any, len(v))
	for i, x := range v {
		out[i] = x
	}
	return out
}

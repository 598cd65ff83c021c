// Package main provides the geometry CLI: it resolves a sliding window over an
// input shape and prints the output shape, the paddings and optionally the
// index map.
//
// Usage:
//
//	geometry -input 8,8 -window 5,5 -stride 2,2 -pad auto
//	geometry -input 3,3 -window 3,3 -stride 2,2 -pad auto -transpose -output 5,6 -json
package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/born-ml/kernels/internal/window"
)

func main() {
	err := run(os.Args[1:], os.Stdout, os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "geometry: %v\n", err)
		os.Exit(1)
	}
}

type options struct {
	input      []int
	spec       window.Spec
	transpose  bool
	jsonOutput bool
	taps       bool
}

func run(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("geometry", flag.ContinueOnError)
	fs.SetOutput(stderr)
	input := fs.String("input", "", "Spatial input shape, e.g. 8,8")
	win := fs.String("window", "", "Window shape, e.g. 5,5")
	stride := fs.String("stride", "", "Strides (default 1 per axis)")
	pad := fs.String("pad", "none", "Padding mode: none, auto, auto-include-pad, ceil, explicit")
	includePad := fs.Bool("include-pad", false, "Count padding in average divisors (implies -pad auto)")
	autoPad := fs.String("autopad", "", "Per-axis auto-pad flags, right-aligned, e.g. true,false")
	explicit := fs.String("padding", "", "Explicit lo:hi padding per axis, e.g. 1:2,0:0")
	output := fs.String("output", "", "Transpose output shape")
	transpose := fs.Bool("transpose", false, "Resolve a transposed operator")
	jsonOutput := fs.Bool("json", false, "Print the report as JSON")
	taps := fs.Bool("taps", false, "Print the index map")
	verbose := fs.Bool("v", false, "Verbose diagnostics on stderr")
	if err := fs.Parse(args); err != nil {
		return err
	}

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	opts, err := parseOptions(*input, *win, *stride, *pad, *autoPad, *explicit, *output, *includePad)
	if err != nil {
		return err
	}
	opts.transpose, opts.jsonOutput, opts.taps = *transpose, *jsonOutput, *taps
	logger.Debug("resolving", "input", opts.input, "window", opts.spec.Window,
		"strides", opts.spec.Strides, "mode", opts.spec.Mode, "transpose", opts.transpose)

	g, err := resolve(opts)
	if err != nil {
		return err
	}
	logger.Debug("resolved", "geometry", g.String(), "key", g.Key())

	if opts.jsonOutput {
		out, err := marshalReport(g, opts)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(stdout, string(out))
		return err
	}
	return printReport(stdout, g, opts)
}

func resolve(opts options) (*window.Geometry, error) {
	if opts.transpose {
		return window.ResolveTranspose(opts.input, opts.spec)
	}
	if opts.spec.OutputShape != nil {
		return nil, errors.New("-output requires -transpose")
	}
	return window.Resolve(opts.input, opts.spec)
}

func parseOptions(input, win, stride, pad, autoPad, explicit, output string, includePad bool) (options, error) {
	var (
		opts options
		err  error
	)
	if opts.input, err = parseInts("input", input); err != nil {
		return opts, err
	}
	if opts.spec.Window, err = parseInts("window", win); err != nil {
		return opts, err
	}
	if opts.input == nil || opts.spec.Window == nil {
		return opts, errors.New("-input and -window are required")
	}
	if opts.spec.Strides, err = parseInts("stride", stride); err != nil {
		return opts, err
	}
	if opts.spec.OutputShape, err = parseInts("output", output); err != nil {
		return opts, err
	}
	if opts.spec.Mode, err = window.ParsePadMode(pad); err != nil {
		return opts, err
	}
	if includePad {
		opts.spec.Mode = window.PadAutoIncludePad
	}
	if autoPad != "" {
		for _, f := range strings.Split(autoPad, ",") {
			b, err := strconv.ParseBool(strings.TrimSpace(f))
			if err != nil {
				return opts, errors.Wrapf(err, "-autopad %q", autoPad)
			}
			opts.spec.AutoPad = append(opts.spec.AutoPad, b)
		}
	}
	if explicit != "" {
		for _, pair := range strings.Split(explicit, ",") {
			lo, hi, ok := strings.Cut(pair, ":")
			if !ok {
				return opts, errors.Errorf("-padding %q: want lo:hi per axis", explicit)
			}
			l, err1 := strconv.Atoi(strings.TrimSpace(lo))
			h, err2 := strconv.Atoi(strings.TrimSpace(hi))
			if err1 != nil || err2 != nil {
				return opts, errors.Errorf("-padding %q: want integers", explicit)
			}
			opts.spec.Padding = append(opts.spec.Padding, [2]int{l, h})
		}
		opts.spec.Mode = window.PadExplicit
	}
	return opts, nil
}

func parseInts(name, s string) ([]int, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]int, len(parts))
	for i, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, errors.Wrapf(err, "-%s %q", name, s)
		}
		out[i] = v
	}
	return out, nil
}

func printReport(w io.Writer, g *window.Geometry, opts options) error {
	in, out := g.InputShape(), g.OutputShape()
	if opts.transpose {
		in, out = out, in
	}
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "input:   %v\n", in)
	fmt.Fprintf(bw, "output:  %v\n", out)
	fmt.Fprintf(bw, "window:  %v\n", g.WindowShape())
	fmt.Fprintf(bw, "padding: %v\n", g.Padding())
	fmt.Fprintf(bw, "mode:    %s\n", opts.spec.Mode)
	if opts.taps {
		im := g.IndexMap()
		for o := 0; o < im.Len(); o++ {
			taps := im.Taps(o)
			inputs := make([]string, len(taps))
			for i, t := range taps {
				inputs[i] = fmt.Sprintf("%d@%d", t.Input, t.Offset)
			}
			fmt.Fprintf(bw, "cell %d: %s\n", o, strings.Join(inputs, " "))
		}
	}
	// bufio.Writer keeps the first write error and Flush returns it.
	return bw.Flush()
}

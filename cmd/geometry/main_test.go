package main

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/born-ml/kernels/internal/window"
)

func runCLI(t *testing.T, args string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	err := run(strings.Fields(args), &stdout, &stderr)
	return stdout.String(), err
}

func TestRunAutoPad(t *testing.T) {
	out, err := runCLI(t, "-input 8,8 -window 5,5 -stride 2,2 -pad auto")
	require.NoError(t, err)
	assert.Contains(t, out, "output:  [4 4]")
	assert.Contains(t, out, "padding: [[2 1] [2 1]]")
	assert.Contains(t, out, "mode:    auto")
}

func TestRunTranspose(t *testing.T) {
	out, err := runCLI(t, "-input 3,3 -window 3,3 -stride 2,2 -pad auto -transpose -output 5,6")
	require.NoError(t, err)
	assert.Contains(t, out, "input:   [3 3]")
	assert.Contains(t, out, "output:  [5 6]")
}

func TestRunTaps(t *testing.T) {
	out, err := runCLI(t, "-input 3 -window 2 -taps")
	require.NoError(t, err)
	assert.Contains(t, out, "cell 0: 0@0 1@1\n")
	assert.Contains(t, out, "cell 1: 1@0 2@1\n")
}

func TestRunJSON(t *testing.T) {
	out, err := runCLI(t, "-input 4,4 -window 3,3 -pad auto -include-pad -json")
	require.NoError(t, err)

	var report structpb.Struct
	require.NoError(t, protojson.Unmarshal([]byte(out), &report))
	fields := report.AsMap()
	assert.Equal(t, []any{4.0, 4.0}, fields["output"])
	assert.Equal(t, []any{[]any{1.0, 1.0}, []any{1.0, 1.0}}, fields["padding"])
	assert.Equal(t, "auto-include-pad", fields["mode"])
	assert.Equal(t, true, fields["includePad"])
	assert.NotContains(t, fields, "taps")
}

func TestRunErrors(t *testing.T) {
	for name, args := range map[string]string{
		"missing input":          "-window 2,2",
		"bad integer":            "-input 4,x -window 2,2",
		"output needs transpose": "-input 4 -window 2 -output 5",
		"bad padding":            "-input 4 -window 2 -padding 1-2",
		"bad mode":               "-input 4 -window 2 -pad same",
		"window too large":       "-input 2 -window 3",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := runCLI(t, args)
			assert.Error(t, err)
		})
	}
}

func TestParseOptions(t *testing.T) {
	opts, err := parseOptions("6,6,6", "2,2,2", "", "auto", "true,false", "", "", false)
	require.NoError(t, err)
	assert.Equal(t, []int{6, 6, 6}, opts.input)
	assert.Equal(t, window.PadAuto, opts.spec.Mode)
	assert.Equal(t, []bool{true, false}, opts.spec.AutoPad)
	assert.Nil(t, opts.spec.Strides)

	opts, err = parseOptions("5,5", "3,3", "1,2", "none", "", "1:0, 0:2", "", false)
	require.NoError(t, err)
	assert.Equal(t, window.PadExplicit, opts.spec.Mode)
	assert.Equal(t, [][2]int{{1, 0}, {0, 2}}, opts.spec.Padding)
	assert.Equal(t, []int{1, 2}, opts.spec.Strides)
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) {
	return 0, errors.New("disk full")
}

func TestRunReportsWriteErrors(t *testing.T) {
	for _, args := range []string{"-input 4 -window 2", "-input 4 -window 2 -taps"} {
		err := run(strings.Fields(args), failingWriter{}, &bytes.Buffer{})
		assert.ErrorContains(t, err, "disk full", args)
	}
}

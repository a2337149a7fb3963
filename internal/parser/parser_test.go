package parser

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"volnet/internal/tensor"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fcLayout = Layout{
	Header:  []Dim{{"inputs", 3}, {"outputs", 2}},
	Weights: 6,
	Biases:  2,
}

func TestReadText(t *testing.T) {
	src := "3 2\n1 0 -1\n0.5 0.25 2e-1\n0.5\n-1.5\n"
	p, err := ReadText(strings.NewReader(src), fcLayout)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 0, -1, 0.5, 0.25, 0.2}, p.Weights)
	assert.Equal(t, []float64{0.5, -1.5}, p.Biases)
}

func TestReadText_Errors(t *testing.T) {
	cases := []struct {
		name string
		src  string
		want error
	}{
		{"header mismatch", "4 2 1 0 -1 0.5 0.25 0.2 0.5 -1.5", ErrHeaderMismatch},
		{"second header field", "3 3 1 0 -1 0.5 0.25 0.2 0.5 -1.5", ErrHeaderMismatch},
		{"short header", "3", ErrValueCount},
		{"short weights", "3 2 1 0 -1", ErrValueCount},
		{"missing bias", "3 2 1 0 -1 0.5 0.25 0.2 0.5", ErrValueCount},
		{"trailing", "3 2 1 0 -1 0.5 0.25 0.2 0.5 -1.5 9", ErrValueCount},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := ReadText(strings.NewReader(c.src), fcLayout)
			require.Error(t, err)
			assert.True(t, errors.Is(err, c.want), "got %v", err)
		})
	}

	_, err := ReadText(strings.NewReader("3 2 1 x"), fcLayout)
	assert.Error(t, err)
	_, err = ReadText(strings.NewReader("three 2"), fcLayout)
	assert.Error(t, err)
}

func TestWriteText_RoundTrip(t *testing.T) {
	want := Params{
		Weights: []float64{1.0 / 3, -2, 0, 1e-300, 7, 8},
		Biases:  []float64{0.1, -0.1},
	}
	var buf bytes.Buffer
	require.NoError(t, WriteText(&buf, fcLayout, want))

	got, err := ReadText(&buf, fcLayout)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	err = WriteText(&buf, fcLayout, Params{Weights: []float64{1}})
	assert.True(t, errors.Is(err, ErrValueCount))
}

func TestSafeTensors_RoundTrip(t *testing.T) {
	entries := map[string]Entry{
		"layer1.weight": {Shape: []int{2, 3}, Values: []float64{1, 2, 3, 4, 5, 6}},
		"layer1.bias":   {Shape: []int{2}, Values: []float64{-1, 1}},
	}
	var buf bytes.Buffer
	require.NoError(t, WriteSafeTensors(&buf, entries))

	a, err := ReadSafeTensors(&buf)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"layer1.weight", "layer1.bias"}, a.Names())

	w, err := a.Float64s("layer1.weight", 2, 3)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 3, 4, 5, 6}, w)

	_, err = a.Float64s("layer1.weight", 3, 2)
	assert.True(t, errors.Is(err, ErrHeaderMismatch))
	_, err = a.Float64s("layer1.weight", 6)
	assert.True(t, errors.Is(err, ErrHeaderMismatch))
	_, err = a.Float64s("layer2.weight", 2, 3)
	assert.True(t, errors.Is(err, ErrHeaderMismatch))
}

func TestReadSafeTensors_Garbage(t *testing.T) {
	_, err := ReadSafeTensors(strings.NewReader("not a safetensors file"))
	assert.Error(t, err)
}

func TestParseLines(t *testing.T) {
	size := tensor.TensorSize{Width: 2, Height: 1, Depth: 2}
	lines := [][]string{
		{"3", "0", "255", "51", "102"},
		{"7", "255", "255", "0", "0"},
	}
	samples, err := ParseLines(lines, size, 1.0/255)
	require.NoError(t, err)
	require.Len(t, samples, 2)

	assert.Equal(t, 3, samples[0].Answer)
	assert.InDelta(t, 1.0, samples[0].Input.GetValue(0, 0, 1), 1e-12)
	assert.InDelta(t, 0.2, samples[0].Input.GetValue(1, 0, 0), 1e-12)
	assert.InDelta(t, 0.4, samples[0].Input.GetValue(1, 0, 1), 1e-12)
	assert.Equal(t, 7, samples[1].Answer)

	batch := Inputs(samples)
	require.Len(t, batch, 2)
	assert.Equal(t, samples[1].Input.Values(), batch[1].Values())
}

func TestParseLines_Errors(t *testing.T) {
	size := tensor.TensorSize{Width: 2, Height: 1, Depth: 1}

	_, err := ParseLines([][]string{{"1", "0"}}, size, 1)
	assert.True(t, errors.Is(err, tensor.ErrDimensionMismatch))

	_, err = ParseLines([][]string{{"a", "0", "1"}}, size, 1)
	assert.Error(t, err)

	_, err = ParseLines([][]string{{"1", "0", "x"}}, size, 1)
	assert.Error(t, err)
}

func TestReadCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "samples.csv")
	require.NoError(t, os.WriteFile(path, []byte("1,2,3\n4,5,6\n"), 0o644))

	records, err := ReadCSV(path)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"1", "2", "3"}, {"4", "5", "6"}}, records)

	_, err = ReadCSV(filepath.Join(t.TempDir(), "missing.csv"))
	assert.Error(t, err)
}

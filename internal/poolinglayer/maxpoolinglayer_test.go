package poolinglayer

import (
	"math"
	"math/rand"
	"testing"
	"volnet/internal/tensor"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMaxPoolingLayer_OutputSize(t *testing.T) {
	cases := []struct {
		in            tensor.TensorSize
		scale, stride int
		want          tensor.TensorSize
	}{
		{tensor.TensorSize{Width: 32, Height: 32, Depth: 16}, 2, 2, tensor.TensorSize{Width: 16, Height: 16, Depth: 16}},
		{tensor.TensorSize{Width: 3, Height: 3, Depth: 1}, 3, 1, tensor.TensorSize{Width: 1, Height: 1, Depth: 1}},
		{tensor.TensorSize{Width: 7, Height: 5, Depth: 2}, 3, 2, tensor.TensorSize{Width: 3, Height: 2, Depth: 2}},
		{tensor.TensorSize{Width: 5, Height: 5, Depth: 1}, 2, 3, tensor.TensorSize{Width: 2, Height: 2, Depth: 1}},
	}
	for _, c := range cases {
		l, err := NewMaxPoolingLayer(c.in, c.scale, c.stride)
		require.NoError(t, err)
		assert.Equal(t, c.want, l.OutputSize, "%+v", c)
	}
}

func TestNewMaxPoolingLayer_Invalid(t *testing.T) {
	size := tensor.TensorSize{Width: 4, Height: 2, Depth: 1}
	for _, args := range [][2]int{{0, 1}, {2, 0}, {3, 1}, {-1, 1}} {
		_, err := NewMaxPoolingLayer(size, args[0], args[1])
		assert.True(t, errors.Is(err, tensor.ErrInvalidConfig), "args %v", args)
	}
}

func TestForward_WindowMaximum(t *testing.T) {
	size := tensor.TensorSize{Width: 3, Height: 3, Depth: 1}
	l, err := NewMaxPoolingLayer(size, 3, 1)
	require.NoError(t, err)

	in := tensor.NewBatch(1, size)
	window := [3][3]float64{
		{1, 3, 5},
		{4, 2, 1},
		{2, 2, 2},
	}
	for y := range window {
		for x, v := range window[y] {
			in[0].SetValue(x, y, 0, v)
		}
	}
	out := tensor.NewBatch(1, l.OutputSize)
	require.NoError(t, l.Forward(in, out, 0, 0))
	assert.Equal(t, 5.0, out[0].GetValue(0, 0, 0))
}

func TestForward_ChannelsIndependent(t *testing.T) {
	size := tensor.TensorSize{Width: 4, Height: 4, Depth: 2}
	l, err := NewMaxPoolingLayer(size, 2, 2)
	require.NoError(t, err)

	in := tensor.NewBatch(1, size)
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			in[0].SetValue(x, y, 0, float64(y*4+x+1))
			in[0].SetValue(x, y, 1, -float64(y*4+x+1))
		}
	}
	out := tensor.NewBatch(1, l.OutputSize)
	require.NoError(t, l.Forward(in, out, 0, 0))

	assert.Equal(t, 6.0, out[0].GetValue(0, 0, 0))
	assert.Equal(t, 8.0, out[0].GetValue(1, 0, 0))
	assert.Equal(t, 14.0, out[0].GetValue(0, 1, 0))
	assert.Equal(t, 16.0, out[0].GetValue(1, 1, 0))
	assert.Equal(t, -1.0, out[0].GetValue(0, 0, 1))
	assert.Equal(t, -11.0, out[0].GetValue(1, 1, 1))
}

func TestForward_MatchesBruteForce(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	size := tensor.TensorSize{Width: 9, Height: 7, Depth: 3}
	l, err := NewMaxPoolingLayer(size, 3, 2)
	require.NoError(t, err)

	in := tensor.NewBatch(1, size)
	for i := range in[0].Values() {
		in[0].Values()[i] = r.NormFloat64()
	}
	out := tensor.NewBatch(1, l.OutputSize)
	require.NoError(t, l.Forward(in, out, 0, 0))

	for d := 0; d < size.Depth; d++ {
		for outY := 0; outY < l.OutputSize.Height; outY++ {
			for outX := 0; outX < l.OutputSize.Width; outX++ {
				want := math.Inf(-1)
				for y := outY * 2; y < outY*2+3; y++ {
					for x := outX * 2; x < outX*2+3; x++ {
						want = math.Max(want, in[0].GetValue(x, y, d))
					}
				}
				got := out[0].GetValue(outX, outY, d)
				assert.Equal(t, want, got)
				assert.False(t, math.IsInf(got, -1))
			}
		}
	}
}

func TestForward_SplitBatchIdentical(t *testing.T) {
	r := rand.New(rand.NewSource(2))
	size := tensor.TensorSize{Width: 6, Height: 6, Depth: 2}
	l, err := NewMaxPoolingLayer(size, 2, 2)
	require.NoError(t, err)

	in := tensor.NewBatch(4, size)
	for i := range in {
		for j := range in[i].Values() {
			in[i].Values()[j] = r.NormFloat64()
		}
	}
	whole := tensor.NewBatch(4, l.OutputSize)
	split := tensor.NewBatch(4, l.OutputSize)
	require.NoError(t, l.Forward(in, whole, 0, 3))
	require.NoError(t, l.Forward(in, split, 0, 0))
	require.NoError(t, l.Forward(in, split, 1, 3))

	for i := range whole {
		assert.Equal(t, whole[i].Values(), split[i].Values())
	}
}

func TestForward_Errors(t *testing.T) {
	size := tensor.TensorSize{Width: 4, Height: 4, Depth: 1}
	l, err := NewMaxPoolingLayer(size, 2, 2)
	require.NoError(t, err)

	in := tensor.NewBatch(1, size)
	out := tensor.NewBatch(1, size)
	assert.True(t, errors.Is(l.Forward(in, out, 0, 0), tensor.ErrDimensionMismatch))
	assert.True(t, errors.Is(l.Forward(in, out, -1, 0), tensor.ErrBatchRange))
}

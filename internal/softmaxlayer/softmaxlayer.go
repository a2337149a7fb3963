package softmaxlayer

import (
	"math"
	"sync"
	"volnet/internal/tensor"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
)

// SoftmaxLayer turns a flattened input into a probability distribution of
// length Width*Height*Depth.
type SoftmaxLayer struct {
	inputSize  tensor.TensorSize
	OutputSize tensor.TensorSize
	scratch    *sync.Pool
}

func NewSoftmaxLayer(size tensor.TensorSize) (SoftmaxLayer, error) {
	if !size.Valid() {
		return SoftmaxLayer{}, errors.Wrapf(tensor.ErrInvalidConfig, "softmax size %v", size)
	}
	n := size.Len()
	return SoftmaxLayer{
		inputSize: size,
		OutputSize: tensor.TensorSize{
			Width:  1,
			Height: 1,
			Depth:  n,
		},
		scratch: &sync.Pool{
			New: func() any {
				buf := make([]float64, n)
				return &buf
			},
		},
	}, nil
}

func (l *SoftmaxLayer) GetInputSize() tensor.TensorSize  { return l.inputSize }
func (l *SoftmaxLayer) GetOutputSize() tensor.TensorSize { return l.OutputSize }

// Forward is safe to call concurrently on disjoint ranges: each call borrows
// its own exponentials buffer for its duration.
func (l *SoftmaxLayer) Forward(inputs, outputs []tensor.Tensor, start, end int) error {
	if err := tensor.CheckRange(inputs, outputs, start, end); err != nil {
		return err
	}
	bufp := l.scratch.Get().(*[]float64)
	defer l.scratch.Put(bufp)
	likelihoods := *bufp

	for j := start; j <= end; j++ {
		if err := tensor.CheckPair(&inputs[j], &outputs[j], l.inputSize, l.OutputSize); err != nil {
			return errors.Wrapf(err, "softmax batch element %d", j)
		}
		in := inputs[j].Values()
		out := outputs[j].Values()

		amax := floats.Max(in)
		total := 0.0
		for i, v := range in {
			e := math.Exp(v - amax)
			total += e
			likelihoods[i] = e
		}
		for i, e := range likelihoods {
			out[i] = e / total
		}
	}
	return nil
}

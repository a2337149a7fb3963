package activationlayer

import (
	"volnet/internal/tensor"

	"github.com/pkg/errors"
)

type ReLULayer struct {
	size tensor.TensorSize
}

func NewReLULayer(size tensor.TensorSize) (ReLULayer, error) {
	if !size.Valid() {
		return ReLULayer{}, errors.Wrapf(tensor.ErrInvalidConfig, "relu size %v", size)
	}
	return ReLULayer{size: size}, nil
}

func (l *ReLULayer) GetInputSize() tensor.TensorSize  { return l.size }
func (l *ReLULayer) GetOutputSize() tensor.TensorSize { return l.size }

// Forward writes max(0, x) for every element of inputs[start..end].
func (l *ReLULayer) Forward(inputs, outputs []tensor.Tensor, start, end int) error {
	if err := tensor.CheckRange(inputs, outputs, start, end); err != nil {
		return err
	}
	for i := start; i <= end; i++ {
		if err := tensor.CheckPair(&inputs[i], &outputs[i], l.size, l.size); err != nil {
			return errors.Wrapf(err, "relu batch element %d", i)
		}
		out := outputs[i].Values()
		for j, value := range inputs[i].Values() {
			if value > 0 {
				out[j] = value
			} else {
				out[j] = 0
			}
		}
	}
	return nil
}

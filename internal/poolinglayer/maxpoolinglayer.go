package poolinglayer

import (
	"math"
	"volnet/internal/tensor"

	"github.com/pkg/errors"
)

// MaxPoolingLayer takes the maximum over square windows of each channel.
// Padding is fixed at zero.
type MaxPoolingLayer struct {
	scale      int
	stride     int
	pad        int
	inputSize  tensor.TensorSize
	OutputSize tensor.TensorSize
}

// NewMaxPoolingLayer rejects windows larger than the input. With zero padding
// every window then starts inside the input, so none can be empty.
func NewMaxPoolingLayer(size tensor.TensorSize, scale, stride int) (MaxPoolingLayer, error) {
	switch {
	case !size.Valid():
		return MaxPoolingLayer{}, errors.Wrapf(tensor.ErrInvalidConfig, "pool input size %v", size)
	case scale <= 0 || stride <= 0:
		return MaxPoolingLayer{}, errors.Wrapf(tensor.ErrInvalidConfig, "pool size=%d stride=%d", scale, stride)
	case scale > size.Width || scale > size.Height:
		return MaxPoolingLayer{}, errors.Wrapf(tensor.ErrInvalidConfig, "pool window %d larger than input %v", scale, size)
	}
	return MaxPoolingLayer{
		scale:     scale,
		stride:    stride,
		inputSize: size,
		OutputSize: tensor.TensorSize{
			Width:  tensor.OutputExtent(size.Width, scale, stride, 0),
			Height: tensor.OutputExtent(size.Height, scale, stride, 0),
			Depth:  size.Depth,
		},
	}, nil
}

func (l *MaxPoolingLayer) GetInputSize() tensor.TensorSize  { return l.inputSize }
func (l *MaxPoolingLayer) GetOutputSize() tensor.TensorSize { return l.OutputSize }

func (l *MaxPoolingLayer) Forward(inputs, outputs []tensor.Tensor, start, end int) error {
	if err := tensor.CheckRange(inputs, outputs, start, end); err != nil {
		return err
	}
	for i := start; i <= end; i++ {
		if err := tensor.CheckPair(&inputs[i], &outputs[i], l.inputSize, l.OutputSize); err != nil {
			return errors.Wrapf(err, "pool batch element %d", i)
		}
		l.forward(&inputs[i], &outputs[i])
	}
	return nil
}

func (l *MaxPoolingLayer) forward(in, out *tensor.Tensor) {
	inValues := in.Values()
	outValues := out.Values()

	for d := 0; d < l.OutputSize.Depth; d++ {
		x := -l.pad
		for outX := 0; outX < l.OutputSize.Width; outX, x = outX+1, x+l.stride {
			y := -l.pad
			for outY := 0; outY < l.OutputSize.Height; outY, y = outY+1, y+l.stride {
				best := math.Inf(-1)
				for fx := 0; fx < l.scale; fx++ {
					for fy := 0; fy < l.scale; fy++ {
						inX, inY := x+fx, y+fy
						if inX < 0 || inX >= l.inputSize.Width || inY < 0 || inY >= l.inputSize.Height {
							continue
						}
						if v := inValues[l.inputSize.Index(inX, inY, d)]; v > best {
							best = v
						}
					}
				}
				outValues[l.OutputSize.Index(outX, outY, d)] = best
			}
		}
	}
}

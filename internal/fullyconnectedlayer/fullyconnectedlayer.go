package fullyconnectedlayer

import (
	"io"
	"volnet/internal/parser"
	"volnet/internal/tensor"

	"github.com/pkg/errors"
)

// FullyConnectedLayer treats its input as a flat vector in tensor layout
// order. Weight i is a 1x1xinputs tensor holding neuron i's coefficients in
// that same order.
type FullyConnectedLayer struct {
	inputSize  tensor.TensorSize
	OutputSize tensor.TensorSize
	inputs     int
	outputs    int
	w          []tensor.Tensor
	b          tensor.Tensor
}

func NewFullyConnectedLayer(size tensor.TensorSize, outputs int) (FullyConnectedLayer, error) {
	if !size.Valid() || outputs <= 0 {
		return FullyConnectedLayer{}, errors.Wrapf(tensor.ErrInvalidConfig, "fc input %v outputs %d", size, outputs)
	}
	l := FullyConnectedLayer{
		inputSize: size,
		OutputSize: tensor.TensorSize{
			Width:  1,
			Height: 1,
			Depth:  outputs,
		},
		inputs:  size.Len(),
		outputs: outputs,
		w:       make([]tensor.Tensor, outputs),
		b:       tensor.NewTensor(tensor.TensorSize{Width: 1, Height: 1, Depth: outputs}),
	}
	for i := range l.w {
		l.w[i] = tensor.NewTensor(tensor.TensorSize{Width: 1, Height: 1, Depth: l.inputs})
	}
	return l, nil
}

func (l *FullyConnectedLayer) GetInputSize() tensor.TensorSize  { return l.inputSize }
func (l *FullyConnectedLayer) GetOutputSize() tensor.TensorSize { return l.OutputSize }

func (l *FullyConnectedLayer) Forward(inputs, outputs []tensor.Tensor, start, end int) error {
	if err := tensor.CheckRange(inputs, outputs, start, end); err != nil {
		return err
	}
	bias := l.b.Values()
	for j := start; j <= end; j++ {
		if err := tensor.CheckPair(&inputs[j], &outputs[j], l.inputSize, l.OutputSize); err != nil {
			return errors.Wrapf(err, "fc batch element %d", j)
		}
		x := inputs[j].Values()
		out := outputs[j].Values()
		for i := range l.w {
			out[i] = tensor.DotUnrolled(x, l.w[i].Values()) + bias[i]
		}
	}
	return nil
}

func (l *FullyConnectedLayer) Layout() parser.Layout {
	return parser.Layout{
		Header: []parser.Dim{
			{Name: "inputs", Value: l.inputs},
			{Name: "outputs", Value: l.outputs},
		},
		Weights: l.inputs * l.outputs,
		Biases:  l.outputs,
	}
}

func (l *FullyConnectedLayer) Load(r io.Reader) error {
	p, err := parser.ReadText(r, l.Layout())
	if err != nil {
		return errors.Wrap(err, "fc load")
	}
	return l.SetParameters(p.Weights, p.Biases)
}

func (l *FullyConnectedLayer) WeightShape() []int { return []int{l.outputs, l.inputs} }

// LoadSafeTensors reads "<prefix>.weight" shaped [outputs, inputs] and
// "<prefix>.bias" shaped [outputs].
func (l *FullyConnectedLayer) LoadSafeTensors(a *parser.Archive, prefix string) error {
	w, err := a.Float64s(prefix+".weight", l.WeightShape()...)
	if err != nil {
		return errors.Wrap(err, "fc load")
	}
	b, err := a.Float64s(prefix+".bias", l.outputs)
	if err != nil {
		return errors.Wrap(err, "fc load")
	}
	return l.SetParameters(w, b)
}

// SetParameters takes all weights of neuron 0, then neuron 1, and so on.
func (l *FullyConnectedLayer) SetParameters(weights, biases []float64) error {
	if len(weights) != l.inputs*l.outputs || len(biases) != l.outputs {
		return errors.Wrapf(parser.ErrValueCount, "fc got %d weights and %d biases, want %d and %d",
			len(weights), len(biases), l.inputs*l.outputs, l.outputs)
	}
	for i := range l.w {
		copy(l.w[i].Values(), weights[i*l.inputs:(i+1)*l.inputs])
	}
	copy(l.b.Values(), biases)
	return nil
}

func (l *FullyConnectedLayer) Parameters() ([]float64, []float64) {
	weights := make([]float64, 0, l.inputs*l.outputs)
	for i := range l.w {
		weights = append(weights, l.w[i].Values()...)
	}
	return weights, append([]float64(nil), l.b.Values()...)
}

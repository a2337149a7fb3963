package convlayer

import (
	"io"
	"volnet/internal/parser"
	"volnet/internal/tensor"

	"github.com/pkg/errors"
)

// ConvLayer slides Fc square filters of side Fs over a zero-padded input.
type ConvLayer struct {
	InputSize  tensor.TensorSize
	OutputSize tensor.TensorSize
	W          []tensor.Tensor
	B          tensor.Tensor
	P          int
	S          int
	Fc         int
	Fs         int
	Fd         int
}

// NewConvLayer builds a layer with fc filters of size fs x fs, padding p and
// stride s. Filters and biases start at zero until parameters are loaded.
func NewConvLayer(size tensor.TensorSize, fc, fs, p, s int) (ConvLayer, error) {
	switch {
	case !size.Valid():
		return ConvLayer{}, errors.Wrapf(tensor.ErrInvalidConfig, "conv input size %v", size)
	case fc <= 0 || fs <= 0 || s <= 0 || p < 0:
		return ConvLayer{}, errors.Wrapf(tensor.ErrInvalidConfig,
			"conv filters=%d size=%d pad=%d stride=%d", fc, fs, p, s)
	case fs > size.Width+2*p || fs > size.Height+2*p:
		return ConvLayer{}, errors.Wrapf(tensor.ErrInvalidConfig,
			"conv filter %d larger than padded input %v (pad %d)", fs, size, p)
	}

	l := ConvLayer{
		InputSize: size,
		OutputSize: tensor.TensorSize{
			Width:  tensor.OutputExtent(size.Width, fs, s, p),
			Height: tensor.OutputExtent(size.Height, fs, s, p),
			Depth:  fc,
		},
		P:  p,
		S:  s,
		Fc: fc,
		Fs: fs,
		Fd: size.Depth,
		W:  make([]tensor.Tensor, fc),
		B:  tensor.NewTensor(tensor.TensorSize{Width: 1, Height: 1, Depth: fc}),
	}
	for i := range l.W {
		l.W[i] = tensor.NewTensor(tensor.TensorSize{Width: fs, Height: fs, Depth: size.Depth})
	}
	return l, nil
}

func (l *ConvLayer) GetInputSize() tensor.TensorSize  { return l.InputSize }
func (l *ConvLayer) GetOutputSize() tensor.TensorSize { return l.OutputSize }

// Forward convolves inputs[start..end] (inclusive) into outputs[start..end].
// Padding cells are never materialized: the filter footprint is clipped to
// the input and each clipped filter row is reduced with a single dot product,
// since a row of depth vectors is contiguous in both tensors.
func (l *ConvLayer) Forward(inputs, outputs []tensor.Tensor, start, end int) error {
	if err := tensor.CheckRange(inputs, outputs, start, end); err != nil {
		return err
	}
	for i := start; i <= end; i++ {
		in := &inputs[i]
		out := &outputs[i]
		if err := tensor.CheckPair(in, out, l.InputSize, l.OutputSize); err != nil {
			return errors.Wrapf(err, "conv batch element %d", i)
		}
		l.forward(in, out)
	}
	return nil
}

func (l *ConvLayer) forward(in, out *tensor.Tensor) {
	outValues := out.Values()
	bias := l.B.Values()

	for f := range l.W {
		filter := &l.W[f]
		y := -l.P
		for outY := 0; outY < l.OutputSize.Height; outY, y = outY+1, y+l.S {
			x := -l.P
			for outX := 0; outX < l.OutputSize.Width; outX, x = outX+1, x+l.S {
				fx0, fx1 := clip(x, l.Fs, l.InputSize.Width)
				sum := 0.0
				if fx0 < fx1 {
					for fy := 0; fy < l.Fs; fy++ {
						inY := y + fy
						if inY < 0 || inY >= l.InputSize.Height {
							continue
						}
						sum += tensor.Dot(filter.Span(fy, fx0, fx1), in.Span(inY, x+fx0, x+fx1))
					}
				}
				outValues[l.OutputSize.Index(outX, outY, f)] = sum + bias[f]
			}
		}
	}
}

// clip returns the filter offsets [lo, hi) whose input column off+k lies in
// [0, limit).
func clip(off, size, limit int) (int, int) {
	lo, hi := 0, size
	if off < 0 {
		lo = -off
	}
	if off+hi > limit {
		hi = limit - off
	}
	if hi < lo {
		hi = lo
	}
	return lo, hi
}

// Layout is the parameter stream this layer accepts.
func (l *ConvLayer) Layout() parser.Layout {
	return parser.Layout{
		Header: []parser.Dim{
			{Name: "filter width", Value: l.Fs},
			{Name: "filter height", Value: l.Fs},
			{Name: "depth", Value: l.Fd},
			{Name: "filters", Value: l.Fc},
		},
		Weights: l.Fc * l.Fs * l.Fs * l.Fd,
		Biases:  l.Fc,
	}
}

// Load reads filters and biases in the text format. The layer is left
// untouched if the stream does not match its geometry.
func (l *ConvLayer) Load(r io.Reader) error {
	p, err := parser.ReadText(r, l.Layout())
	if err != nil {
		return errors.Wrap(err, "conv load")
	}
	return l.SetParameters(p.Weights, p.Biases)
}

// WeightShape is [filters, width, height, depth], matching SetParameters order.
func (l *ConvLayer) WeightShape() []int { return []int{l.Fc, l.Fs, l.Fs, l.Fd} }

// LoadSafeTensors reads "<prefix>.weight" shaped WeightShape and
// "<prefix>.bias" shaped [filters].
func (l *ConvLayer) LoadSafeTensors(a *parser.Archive, prefix string) error {
	w, err := a.Float64s(prefix+".weight", l.WeightShape()...)
	if err != nil {
		return errors.Wrap(err, "conv load")
	}
	b, err := a.Float64s(prefix+".bias", l.Fc)
	if err != nil {
		return errors.Wrap(err, "conv load")
	}
	return l.SetParameters(w, b)
}

// SetParameters installs weights ordered filter by filter, x outer, y middle,
// depth inner. biases holds one value per filter.
func (l *ConvLayer) SetParameters(weights, biases []float64) error {
	layout := l.Layout()
	if len(weights) != layout.Weights || len(biases) != layout.Biases {
		return errors.Wrapf(parser.ErrValueCount, "conv got %d weights and %d biases, want %d and %d",
			len(weights), len(biases), layout.Weights, layout.Biases)
	}

	n := 0
	for f := range l.W {
		for x := 0; x < l.Fs; x++ {
			for y := 0; y < l.Fs; y++ {
				for d := 0; d < l.Fd; d++ {
					l.W[f].SetValue(x, y, d, weights[n])
					n++
				}
			}
		}
	}
	copy(l.B.Values(), biases)
	return nil
}

// Parameters returns the weights and biases in SetParameters order.
func (l *ConvLayer) Parameters() ([]float64, []float64) {
	weights := make([]float64, 0, l.Layout().Weights)
	for f := range l.W {
		for x := 0; x < l.Fs; x++ {
			for y := 0; y < l.Fs; y++ {
				for d := 0; d < l.Fd; d++ {
					weights = append(weights, l.W[f].GetValue(x, y, d))
				}
			}
		}
	}
	biases := append([]float64(nil), l.B.Values()...)
	return weights, biases
}

package parser

import (
	"encoding/binary"
	"io"
	"math"

	"github.com/nlpodyssey/safetensors"
	"github.com/pkg/errors"
)

// Archive is a set of named parameter tensors read from a safetensors file.
type Archive struct {
	st safetensors.SafeTensors
}

func ReadSafeTensors(r io.Reader) (*Archive, error) {
	buf, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "read safetensors")
	}
	st, err := safetensors.Deserialize(buf)
	if err != nil {
		return nil, errors.Wrap(err, "decode safetensors")
	}
	return &Archive{st: st}, nil
}

func (a *Archive) Names() []string { return a.st.Names() }

// Float64s returns the values of tensor name, which must have exactly the
// given shape. F32 and F64 tensors are accepted.
func (a *Archive) Float64s(name string, shape ...int) ([]float64, error) {
	view, ok := a.st.Tensor(name)
	if !ok {
		return nil, errors.Wrapf(ErrHeaderMismatch, "tensor %q not found", name)
	}
	got := view.Shape()
	match := len(got) == len(shape)
	for i := 0; match && i < len(shape); i++ {
		match = got[i] == uint64(shape[i])
	}
	if !match {
		return nil, errors.Wrapf(ErrHeaderMismatch, "tensor %q has shape %v, layer has %v", name, got, shape)
	}

	data := view.Data()
	switch view.DType() {
	case safetensors.F64:
		out := make([]float64, len(data)/8)
		for i := range out {
			out[i] = math.Float64frombits(binary.LittleEndian.Uint64(data[i*8:]))
		}
		return out, nil
	case safetensors.F32:
		out := make([]float64, len(data)/4)
		for i := range out {
			out[i] = float64(math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:])))
		}
		return out, nil
	default:
		return nil, errors.Errorf("parser: tensor %q has unsupported dtype %s", name, view.DType())
	}
}

// Entry is one tensor to be written by WriteSafeTensors.
type Entry struct {
	Shape  []int
	Values []float64
}

// WriteSafeTensors stores entries as F64 tensors.
func WriteSafeTensors(w io.Writer, entries map[string]Entry) error {
	views := make(map[string]safetensors.TensorView, len(entries))
	for name, e := range entries {
		shape := make([]uint64, len(e.Shape))
		for i, s := range e.Shape {
			shape[i] = uint64(s)
		}
		data := make([]byte, 0, len(e.Values)*8)
		for _, v := range e.Values {
			data = binary.LittleEndian.AppendUint64(data, math.Float64bits(v))
		}
		view, err := safetensors.NewTensorView(safetensors.F64, shape, data)
		if err != nil {
			return errors.Wrapf(err, "tensor %q", name)
		}
		views[name] = view
	}
	return errors.Wrap(
		safetensors.SerializeToWriter(views, map[string]string{"format": "volnet"}, w),
		"write safetensors")
}

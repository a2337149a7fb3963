package tensor

import "github.com/pkg/errors"

var ErrBatchRange = errors.New("tensor: invalid batch range")

// NewBatch allocates n independent zero tensors of the given size.
func NewBatch(n int, size TensorSize) []Tensor {
	batch := make([]Tensor, n)
	for i := range batch {
		batch[i] = NewTensor(size)
	}
	return batch
}

// CheckRange validates the inclusive [start, end] slice of a batch handed to a
// layer's Forward. start > end selects nothing.
func CheckRange(inputs, outputs []Tensor, start, end int) error {
	if len(inputs) != len(outputs) {
		return errors.Wrapf(ErrBatchRange, "%d inputs, %d outputs", len(inputs), len(outputs))
	}
	if start > end {
		return nil
	}
	if start < 0 || end >= len(inputs) {
		return errors.Wrapf(ErrBatchRange, "[%d, %d] of %d", start, end, len(inputs))
	}
	return nil
}

// CheckPair validates one batch element against a layer's declared sizes.
func CheckPair(in, out *Tensor, inSize, outSize TensorSize) error {
	if err := in.Expect(inSize); err != nil {
		return errors.Wrap(err, "input")
	}
	if err := out.Expect(outSize); err != nil {
		return errors.Wrap(err, "output")
	}
	return nil
}

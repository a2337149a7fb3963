package tensor

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	ErrDimensionMismatch = errors.New("tensor: dimension mismatch")
	ErrInvalidConfig     = errors.New("tensor: invalid layer configuration")
)

type TensorSize struct {
	Width  int
	Height int
	Depth  int
}

// Len is the number of elements a tensor of this size holds.
func (s TensorSize) Len() int { return s.Width * s.Height * s.Depth }

// Index maps (x, y, d) to the flat offset. Depth is the innermost axis.
func (s TensorSize) Index(x, y, d int) int { return (y*s.Width+x)*s.Depth + d }

func (s TensorSize) Valid() bool { return s.Width > 0 && s.Height > 0 && s.Depth > 0 }

func (s TensorSize) String() string {
	return fmt.Sprintf("%dx%dx%d", s.Width, s.Height, s.Depth)
}

type Tensor struct {
	size   TensorSize
	values []float64
}

func NewTensor(size TensorSize) Tensor {
	if !size.Valid() {
		panic(fmt.Sprintf("tensor: invalid size %v", size))
	}
	return Tensor{
		size:   size,
		values: make([]float64, size.Len()),
	}
}

// NewFilledTensor returns a tensor with every element set to value.
func NewFilledTensor(size TensorSize, value float64) Tensor {
	t := NewTensor(size)
	t.Fill(value)
	return t
}

func (t *Tensor) check(x, y, d int) {
	if x < 0 || x >= t.size.Width || y < 0 || y >= t.size.Height || d < 0 || d >= t.size.Depth {
		panic(fmt.Sprintf("tensor: coordinate (%d, %d, %d) out of range for %v", x, y, d, t.size))
	}
}

func (t *Tensor) GetValue(x, y, d int) float64 {
	t.check(x, y, d)
	return t.values[t.size.Index(x, y, d)]
}

func (t *Tensor) SetValue(x, y, d int, value float64) {
	t.check(x, y, d)
	t.values[t.size.Index(x, y, d)] = value
}

func (t *Tensor) GetSize() TensorSize { return t.size }

// Values exposes the flat backing slice in layout order. Callers that write
// through it own the tensor.
func (t *Tensor) Values() []float64 { return t.values }

// Span returns the contiguous depth vectors of row y for x in [x0, x1).
func (t *Tensor) Span(y, x0, x1 int) []float64 {
	if x0 >= x1 {
		if x0 == x1 {
			return nil
		}
		panic(fmt.Sprintf("tensor: inverted span [%d, %d)", x0, x1))
	}
	t.check(x0, y, 0)
	t.check(x1-1, y, 0)
	return t.values[t.size.Index(x0, y, 0):t.size.Index(x1, y, 0)]
}

func (t *Tensor) Fill(value float64) {
	for i := range t.values {
		t.values[i] = value
	}
}

func (t *Tensor) Clone() Tensor {
	c := Tensor{size: t.size, values: make([]float64, len(t.values))}
	copy(c.values, t.values)
	return c
}

// Copy duplicates src into dst. Both keep their own storage afterwards.
func Copy(dst, src *Tensor) error {
	if dst.size != src.size {
		return errors.Wrapf(ErrDimensionMismatch, "copy %v into %v", src.size, dst.size)
	}
	copy(dst.values, src.values)
	return nil
}

// Expect reports ErrDimensionMismatch when t is not of the given size.
func (t *Tensor) Expect(size TensorSize) error {
	if t.size != size {
		return errors.Wrapf(ErrDimensionMismatch, "got %v, want %v", t.size, size)
	}
	return nil
}

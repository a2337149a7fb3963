package tensor

import "gonum.org/v1/gonum/floats"

// Dot is the vectorized reduction used along the contiguous depth axis. It
// handles any length; gonum's assembly kernel covers the tail elements.
func Dot(a, b []float64) float64 {
	return floats.Dot(a, b)
}

// DotUnrolled accumulates four products per step and finishes the remainder
// one element at a time. The result matches a plain left-to-right sum.
func DotUnrolled(a, b []float64) float64 {
	if len(a) != len(b) {
		panic("tensor: slice lengths do not match")
	}
	n := len(a)
	m := n / 4 * 4
	sum := 0.0
	for i := 0; i < m; i += 4 {
		sum += a[i] * b[i]
		sum += a[i+1] * b[i+1]
		sum += a[i+2] * b[i+2]
		sum += a[i+3] * b[i+3]
	}
	for i := m; i < n; i++ {
		sum += a[i] * b[i]
	}
	return sum
}

// OutputExtent applies the sliding-window size formula
// floor((in + 2*pad - window)/stride) + 1.
func OutputExtent(in, window, stride, pad int) int {
	return (in+2*pad-window)/stride + 1
}

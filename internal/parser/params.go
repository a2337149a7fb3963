package parser

import (
	"bufio"
	"fmt"
	"io"
	"strconv"

	"github.com/pkg/errors"
)

var (
	ErrHeaderMismatch = errors.New("parser: parameter header does not match layer")
	ErrValueCount     = errors.New("parser: wrong number of parameter values")
)

// Dim is one integer of a parameter file header.
type Dim struct {
	Name  string
	Value int
}

// Layout describes what a layer expects from a parameter stream: the header
// integers in order, then Weights values, then Biases values.
type Layout struct {
	Header  []Dim
	Weights int
	Biases  int
}

type Params struct {
	Weights []float64
	Biases  []float64
}

// ReadText parses a whitespace separated parameter stream. Nothing is
// returned unless the header matches and exactly Weights+Biases values follow.
func ReadText(r io.Reader, layout Layout) (Params, error) {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 64*1024), 1024*1024)
	s.Split(bufio.ScanWords)

	for _, dim := range layout.Header {
		if !s.Scan() {
			return Params{}, errors.Wrapf(scanErr(s), "header field %s", dim.Name)
		}
		got, err := strconv.Atoi(s.Text())
		if err != nil {
			return Params{}, errors.Wrapf(err, "header field %s", dim.Name)
		}
		if got != dim.Value {
			return Params{}, errors.Wrapf(ErrHeaderMismatch, "%s is %d, layer has %d", dim.Name, got, dim.Value)
		}
	}

	p := Params{
		Weights: make([]float64, layout.Weights),
		Biases:  make([]float64, layout.Biases),
	}
	if err := readFloats(s, p.Weights, "weight"); err != nil {
		return Params{}, err
	}
	if err := readFloats(s, p.Biases, "bias"); err != nil {
		return Params{}, err
	}
	if s.Scan() {
		return Params{}, errors.Wrapf(ErrValueCount, "unexpected trailing token %q", s.Text())
	}
	if err := s.Err(); err != nil {
		return Params{}, errors.Wrap(err, "read parameters")
	}
	return p, nil
}

func readFloats(s *bufio.Scanner, dst []float64, what string) error {
	for i := range dst {
		if !s.Scan() {
			return errors.Wrapf(scanErr(s), "%s %d of %d", what, i, len(dst))
		}
		v, err := strconv.ParseFloat(s.Text(), 64)
		if err != nil {
			return errors.Wrapf(err, "%s %d", what, i)
		}
		dst[i] = v
	}
	return nil
}

func scanErr(s *bufio.Scanner) error {
	if err := s.Err(); err != nil {
		return err
	}
	return errors.Wrap(ErrValueCount, "unexpected end of input")
}

// WriteText emits p in the format ReadText accepts.
func WriteText(w io.Writer, layout Layout, p Params) error {
	if len(p.Weights) != layout.Weights || len(p.Biases) != layout.Biases {
		return errors.Wrapf(ErrValueCount, "have %d weights and %d biases, layout wants %d and %d",
			len(p.Weights), len(p.Biases), layout.Weights, layout.Biases)
	}
	bw := bufio.NewWriter(w)
	for i, dim := range layout.Header {
		if i > 0 {
			bw.WriteByte(' ')
		}
		bw.WriteString(strconv.Itoa(dim.Value))
	}
	bw.WriteByte('\n')
	for _, values := range [][]float64{p.Weights, p.Biases} {
		for _, v := range values {
			fmt.Fprintln(bw, strconv.FormatFloat(v, 'g', -1, 64))
		}
	}
	return errors.Wrap(bw.Flush(), "write parameters")
}

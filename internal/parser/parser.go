package parser

import (
	"encoding/csv"
	"os"
	"strconv"
	"volnet/internal/tensor"

	"github.com/pkg/errors"
)

type Sample struct {
	Input  tensor.Tensor
	Answer int
}

func ReadCSV(path string) ([][]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader := csv.NewReader(file)

	records, err := reader.ReadAll()
	return records, errors.Wrapf(err, "read %s", path)
}

// ParseLines turns rows of "label,v0,v1,..." into samples. Values are taken in
// tensor layout order (row-major, channels interleaved) and multiplied by scale.
func ParseLines(lines [][]string, size tensor.TensorSize, scale float64) ([]Sample, error) {
	data := make([]Sample, len(lines))
	for i, line := range lines {
		if len(line) != size.Len()+1 {
			return nil, errors.Wrapf(tensor.ErrDimensionMismatch,
				"line %d has %d values, want %d", i+1, len(line)-1, size.Len())
		}
		ans, err := strconv.Atoi(line[0])
		if err != nil {
			return nil, errors.Wrapf(err, "line %d label", i+1)
		}
		data[i] = Sample{
			Input:  tensor.NewTensor(size),
			Answer: ans,
		}

		values := data[i].Input.Values()
		for j, strNum := range line[1:] {
			v, err := strconv.ParseFloat(strNum, 64)
			if err != nil {
				return nil, errors.Wrapf(err, "line %d value %d", i+1, j)
			}
			values[j] = v * scale
		}
	}
	return data, nil
}

// Inputs collects the input tensors of samples into a batch.
func Inputs(samples []Sample) []tensor.Tensor {
	batch := make([]tensor.Tensor, len(samples))
	for i := range samples {
		batch[i] = samples[i].Input
	}
	return batch
}

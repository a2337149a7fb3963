package nn

import (
	"context"
	"volnet/internal/parallel"
	"volnet/internal/tensor"

	"github.com/pkg/errors"
)

// Layer is one stage of a forward pipeline. Forward processes the inclusive
// batch range [start, end] and must only touch those indices of outputs, so
// disjoint ranges can run concurrently.
type Layer interface {
	GetInputSize() tensor.TensorSize
	GetOutputSize() tensor.TensorSize
	Forward(inputs, outputs []tensor.Tensor, start, end int) error
}

type Config struct {
	Workers      int
	MinChunkSize int
}

func DefaultConfig() Config {
	p := parallel.DefaultConfig()
	return Config{
		Workers:      p.Workers,
		MinChunkSize: p.MinChunkSize,
	}
}

// Network chains layers whose sizes line up.
type Network struct {
	cfg    Config
	layers []Layer
}

func New(cfg Config, layers ...Layer) (*Network, error) {
	if len(layers) == 0 {
		return nil, errors.Wrap(tensor.ErrInvalidConfig, "network has no layers")
	}
	for i := 1; i < len(layers); i++ {
		prev, next := layers[i-1].GetOutputSize(), layers[i].GetInputSize()
		if prev != next {
			return nil, errors.Wrapf(tensor.ErrDimensionMismatch,
				"layer %d outputs %v but layer %d expects %v", i-1, prev, i, next)
		}
	}
	return &Network{cfg: cfg, layers: layers}, nil
}

func (n *Network) Layers() []Layer               { return n.layers }
func (n *Network) InputSize() tensor.TensorSize  { return n.layers[0].GetInputSize() }
func (n *Network) OutputSize() tensor.TensorSize { return n.layers[len(n.layers)-1].GetOutputSize() }

// Forward runs batch through every layer and returns the last layer's
// outputs. The batch is split into ranges that each travel the whole chain
// on their own goroutine.
func (n *Network) Forward(ctx context.Context, batch []tensor.Tensor) ([]tensor.Tensor, error) {
	acts, err := n.ForwardAll(ctx, batch)
	if err != nil {
		return nil, err
	}
	return acts[len(acts)-1], nil
}

// ForwardAll is Forward but keeps every intermediate activation batch:
// element 0 is the input batch and element i+1 the output of layer i.
func (n *Network) ForwardAll(ctx context.Context, batch []tensor.Tensor) ([][]tensor.Tensor, error) {
	in := n.InputSize()
	for i := range batch {
		if err := batch[i].Expect(in); err != nil {
			return nil, errors.Wrapf(err, "batch element %d", i)
		}
	}

	acts := make([][]tensor.Tensor, len(n.layers)+1)
	acts[0] = batch
	for i, l := range n.layers {
		acts[i+1] = tensor.NewBatch(len(batch), l.GetOutputSize())
	}

	cfg := parallel.Config{Workers: n.cfg.Workers, MinChunkSize: n.cfg.MinChunkSize}
	err := parallel.Run(ctx, cfg, len(batch), func(start, end int) error {
		for i, l := range n.layers {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := l.Forward(acts[i], acts[i+1], start, end); err != nil {
				return errors.Wrapf(err, "layer %d", i)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return acts, nil
}

// ArgMax returns the index of the largest value of t in layout order. Ties
// go to the lowest index.
func ArgMax(t *tensor.Tensor) int {
	values := t.Values()
	idx := 0
	for i, v := range values {
		if v > values[idx] {
			idx = i
		}
	}
	return idx
}

// Accuracy is the fraction of outputs whose ArgMax equals the label.
func Accuracy(outputs []tensor.Tensor, labels []int) (float64, error) {
	if len(outputs) != len(labels) {
		return 0, errors.Wrapf(tensor.ErrDimensionMismatch, "%d outputs for %d labels", len(outputs), len(labels))
	}
	if len(outputs) == 0 {
		return 0, nil
	}
	correct := 0
	for i := range outputs {
		if ArgMax(&outputs[i]) == labels[i] {
			correct++
		}
	}
	return float64(correct) / float64(len(outputs)), nil
}

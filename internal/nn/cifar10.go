package nn

import (
	"io"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"volnet/internal/activationlayer"
	"volnet/internal/convlayer"
	"volnet/internal/fullyconnectedlayer"
	"volnet/internal/parser"
	"volnet/internal/poolinglayer"
	"volnet/internal/softmaxlayer"
	"volnet/internal/tensor"

	"github.com/pkg/errors"
)

var CIFAR10Input = tensor.TensorSize{Width: 32, Height: 32, Depth: 3}

const CIFAR10Classes = 10

// CIFAR10 is the 11-layer classifier for 32x32 RGB images: three
// conv/relu/pool blocks, a fully-connected layer and softmax.
type CIFAR10 struct {
	*Network
	cfg Config

	L1  *convlayer.ConvLayer
	L2  *activationlayer.ReLULayer
	L3  *poolinglayer.MaxPoolingLayer
	L4  *convlayer.ConvLayer
	L5  *activationlayer.ReLULayer
	L6  *poolinglayer.MaxPoolingLayer
	L7  *convlayer.ConvLayer
	L8  *activationlayer.ReLULayer
	L9  *poolinglayer.MaxPoolingLayer
	L10 *fullyconnectedlayer.FullyConnectedLayer
	L11 *softmaxlayer.SoftmaxLayer
}

// Parametric is a layer with loadable weights and biases.
type Parametric interface {
	Layer
	Layout() parser.Layout
	WeightShape() []int
	Load(r io.Reader) error
	LoadSafeTensors(a *parser.Archive, prefix string) error
	SetParameters(weights, biases []float64) error
	Parameters() ([]float64, []float64)
}

// NamedLayer pairs a parametric layer with the name its parameters are
// stored under.
type NamedLayer struct {
	Name  string
	Layer Parametric
}

// NewCIFAR10 builds the network with zero parameters.
func NewCIFAR10(cfg Config) (*CIFAR10, error) {
	var (
		c   CIFAR10
		err error
	)
	conv := func(size tensor.TensorSize, filters int) *convlayer.ConvLayer {
		if err != nil {
			return new(convlayer.ConvLayer)
		}
		var l convlayer.ConvLayer
		l, err = convlayer.NewConvLayer(size, filters, 5, 2, 1)
		return &l
	}
	relu := func(size tensor.TensorSize) *activationlayer.ReLULayer {
		if err != nil {
			return new(activationlayer.ReLULayer)
		}
		var l activationlayer.ReLULayer
		l, err = activationlayer.NewReLULayer(size)
		return &l
	}
	pool := func(size tensor.TensorSize) *poolinglayer.MaxPoolingLayer {
		if err != nil {
			return new(poolinglayer.MaxPoolingLayer)
		}
		var l poolinglayer.MaxPoolingLayer
		l, err = poolinglayer.NewMaxPoolingLayer(size, 2, 2)
		return &l
	}

	c.L1 = conv(CIFAR10Input, 16)
	c.L2 = relu(c.L1.OutputSize)
	c.L3 = pool(c.L2.GetOutputSize())
	c.L4 = conv(c.L3.OutputSize, 20)
	c.L5 = relu(c.L4.OutputSize)
	c.L6 = pool(c.L5.GetOutputSize())
	c.L7 = conv(c.L6.OutputSize, 20)
	c.L8 = relu(c.L7.OutputSize)
	c.L9 = pool(c.L8.GetOutputSize())
	if err != nil {
		return nil, errors.Wrap(err, "cifar10")
	}

	fc, err := fullyconnectedlayer.NewFullyConnectedLayer(c.L9.OutputSize, CIFAR10Classes)
	if err != nil {
		return nil, errors.Wrap(err, "cifar10")
	}
	c.L10 = &fc
	sm, err := softmaxlayer.NewSoftmaxLayer(fc.OutputSize)
	if err != nil {
		return nil, errors.Wrap(err, "cifar10")
	}
	c.L11 = &sm

	c.cfg = cfg
	c.Network, err = New(cfg, c.L1, c.L2, c.L3, c.L4, c.L5, c.L6, c.L7, c.L8, c.L9, c.L10, c.L11)
	if err != nil {
		return nil, errors.Wrap(err, "cifar10")
	}
	return &c, nil
}

// ParamLayers lists the layers that carry parameters, named after their
// 1-based position in the chain.
func (c *CIFAR10) ParamLayers() []NamedLayer {
	return []NamedLayer{
		{Name: "layer1_conv", Layer: c.L1},
		{Name: "layer4_conv", Layer: c.L4},
		{Name: "layer7_conv", Layer: c.L7},
		{Name: "layer10_fc", Layer: c.L10},
	}
}

// Randomize draws He-scaled normal weights from r and sets every bias to
// 0.01.
func (c *CIFAR10) Randomize(r *rand.Rand) {
	for _, nl := range c.ParamLayers() {
		layout := nl.Layer.Layout()
		sigma := math.Sqrt(2.0 / float64(layout.Weights/layout.Biases))
		weights := make([]float64, layout.Weights)
		for i := range weights {
			weights[i] = r.NormFloat64() * sigma
		}
		biases := make([]float64, layout.Biases)
		for i := range biases {
			biases[i] = 0.01
		}
		if err := nl.Layer.SetParameters(weights, biases); err != nil {
			panic(err)
		}
	}
}

// Load reads <name>.txt for every parametric layer from dir. Either all
// layers are updated or none are.
func (c *CIFAR10) Load(dir string) error {
	return c.replace(func(fresh *CIFAR10) error {
		for _, nl := range fresh.ParamLayers() {
			path := filepath.Join(dir, nl.Name+".txt")
			if err := loadFile(nl.Layer, path); err != nil {
				return err
			}
		}
		return nil
	})
}

func loadFile(l Parametric, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrap(err, "open parameters")
	}
	defer f.Close()
	return errors.Wrapf(l.Load(f), "load %s", path)
}

// LoadSafeTensors reads "<name>.weight" and "<name>.bias" for every
// parametric layer. Either all layers are updated or none are.
func (c *CIFAR10) LoadSafeTensors(r io.Reader) error {
	a, err := parser.ReadSafeTensors(r)
	if err != nil {
		return err
	}
	return c.replace(func(fresh *CIFAR10) error {
		for _, nl := range fresh.ParamLayers() {
			if err := nl.Layer.LoadSafeTensors(a, nl.Name); err != nil {
				return errors.Wrapf(err, "load %s", nl.Name)
			}
		}
		return nil
	})
}

// replace loads into a fresh network and swaps it in on success.
func (c *CIFAR10) replace(load func(fresh *CIFAR10) error) error {
	fresh, err := NewCIFAR10(c.cfg)
	if err != nil {
		return err
	}
	if err := load(fresh); err != nil {
		return err
	}
	*c = *fresh
	return nil
}

// SaveSafeTensors writes every parametric layer as float64 tensors.
func (c *CIFAR10) SaveSafeTensors(w io.Writer) error {
	entries := make(map[string]parser.Entry)
	for _, nl := range c.ParamLayers() {
		weights, biases := nl.Layer.Parameters()
		entries[nl.Name+".weight"] = parser.Entry{Shape: nl.Layer.WeightShape(), Values: weights}
		entries[nl.Name+".bias"] = parser.Entry{Shape: []int{len(biases)}, Values: biases}
	}
	return parser.WriteSafeTensors(w, entries)
}

// SaveText writes <name>.txt for every parametric layer into dir.
func (c *CIFAR10) SaveText(dir string) error {
	for _, nl := range c.ParamLayers() {
		path := filepath.Join(dir, nl.Name+".txt")
		f, err := os.Create(path)
		if err != nil {
			return errors.Wrap(err, "create parameters")
		}
		weights, biases := nl.Layer.Parameters()
		err = parser.WriteText(f, nl.Layer.Layout(), parser.Params{Weights: weights, Biases: biases})
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return errors.Wrapf(err, "write %s", path)
		}
	}
	return nil
}

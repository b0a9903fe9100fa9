package patchgan_go

import (
	"fmt"
	"sync/atomic"

	"github.com/pkg/errors"
	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

var nodeID uint64

// nextID Monotonic suffix to keep node names unique across instances sharing one graph
func nextID() uint64 {
	return atomic.AddUint64(&nodeID, 1)
}

// Layer Just an alias to Weight+Bias+ActivationFunction combo
//
// SpectralU - fixed random direction for spectral normalization of WeightNode.
// When it is non-nil the weight is divided by its estimated largest singular
// value on every evaluation. Not a learnable.
//
type Layer struct {
	WeightNode *gorgonia.Node
	BiasNode   *gorgonia.Node
	SpectralU  *gorgonia.Node
	Activation ActivationFunc
	Type       LayerType

	KernelHeight int
	KernelWidth  int
	Padding      []int
	Stride       []int
	Dilation     []int
	// Footprint - output spatial edge for the average-pooling layer
	Footprint int
}

type LayerType uint16

const (
	LayerLinear = LayerType(iota)
	LayerFlatten
	LayerConvolutional
	LayerAvgpool
)

var (
	allowedNoWeights = []LayerType{LayerAvgpool, LayerFlatten}
)

func noWeightsAllowed(checkType LayerType) bool {
	return checkLayerType(checkType, allowedNoWeights...)
}

func checkLayerType(checkType LayerType, t ...LayerType) bool {
	for _, typeOf := range t {
		if checkType == typeOf {
			return true
		}
	}
	return false
}

// Fwd Applies layer operation to provided input (activation is up to the caller)
//
// input - Input node
// batchSize - batch size. If it's >= 2 then broadcast function will be applied to bias addition
//
func (layer *Layer) Fwd(input *gorgonia.Node, batchSize int) (*gorgonia.Node, error) {
	if layer.WeightNode == nil && !noWeightsAllowed(layer.Type) {
		return nil, fmt.Errorf("Layer of type '%d' (uint16) must have weight node", layer.Type)
	}
	weight := layer.WeightNode
	if layer.SpectralU != nil {
		var err error
		weight, err = spectralNorm(layer.WeightNode, layer.SpectralU)
		if err != nil {
			return nil, errors.Wrap(err, "Can't apply spectral normalization to weight node")
		}
	}
	nonBiased := &gorgonia.Node{}
	switch layer.Type {
	case LayerConvolutional:
		var err error
		nonBiased, err = gorgonia.Conv2d(input, weight, tensor.Shape{layer.KernelHeight, layer.KernelWidth}, layer.Padding, layer.Stride, layer.Dilation)
		if err != nil {
			return nil, errors.Wrap(err, "Can't convolve[2D] input by kernel")
		}
	case LayerLinear:
		tOp, err := gorgonia.Transpose(weight)
		if err != nil {
			return nil, errors.Wrap(err, "Can't transpose weights")
		}
		nonBiased, err = gorgonia.Mul(input, tOp)
		if err != nil {
			return nil, errors.Wrap(err, "Can't multiply input and weights")
		}
	case LayerAvgpool:
		var err error
		nonBiased, err = averagePool2D(input, layer.Footprint)
		if err != nil {
			return nil, errors.Wrap(err, "Can't avgpool[2D] input")
		}
	case LayerFlatten:
		var err error
		nonBiased, err = gorgonia.Reshape(input, tensor.Shape{batchSize, input.Shape().TotalSize() / batchSize})
		if err != nil {
			return nil, errors.Wrap(err, "Can't flatten input")
		}
	default:
		return nil, fmt.Errorf("Layer type '%d' (uint16) is not handled", layer.Type)
	}
	if layer.BiasNode == nil {
		return nonBiased, nil
	}
	var biased *gorgonia.Node
	var err error
	switch layer.Type {
	case LayerConvolutional:
		biased, err = gorgonia.BroadcastAdd(nonBiased, layer.BiasNode, nil, []byte{0, 2, 3})
	default:
		if batchSize < 2 {
			biased, err = gorgonia.Add(nonBiased, layer.BiasNode)
		} else {
			biased, err = gorgonia.BroadcastAdd(nonBiased, layer.BiasNode, nil, []byte{0})
		}
	}
	if err != nil {
		return nil, errors.Wrap(err, fmt.Sprintf("Can't add bias [batch_size = %d] to non-activated output", batchSize))
	}
	return biased, nil
}

// averagePool2D Non-overlapping average pooling down to footprint×footprint output.
// Gorgonia has no strided average-pool op, so pooling is expressed as a
// reshape to (N, C, footprint, k, footprint, k) and a mean over the block axes.
func averagePool2D(input *gorgonia.Node, footprint int) (*gorgonia.Node, error) {
	if input.Dims() != 4 {
		return nil, fmt.Errorf("Avgpool input must have 4 dimensions, but got %d", input.Dims())
	}
	shp := input.Shape()
	n, c, h, w := shp[0], shp[1], shp[2], shp[3]
	if h%footprint != 0 || w%footprint != 0 {
		return nil, fmt.Errorf("Avgpool input spatial size %dx%d is not divisible by footprint %d", h, w, footprint)
	}
	kh, kw := h/footprint, w/footprint
	blocks, err := gorgonia.Reshape(input, tensor.Shape{n, c, footprint, kh, footprint, kw})
	if err != nil {
		return nil, errors.Wrap(err, "Can't split input into pooling blocks")
	}
	pooled, err := gorgonia.Mean(blocks, 3, 5)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do mean over pooling blocks")
	}
	return pooled, nil
}

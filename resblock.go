package patchgan_go

import (
	"fmt"

	"github.com/pkg/errors"
	"gorgonia.org/gorgonia"
)

// ResBlock Pre-activation residual block: relu => conv3x3 => relu => conv1x1, plus identity skip.
// Output shape equals input shape exactly. Both convolution weights are
// spectrally normalized.
type ResBlock struct {
	conv3 *Layer
	conv1 *Layer
}

// NewResBlock Constructor for ResBlock
//
// g - Graph for holding weight nodes
// inChannel - number of input (and output) channels
// channel - intermediate channel width
//
func NewResBlock(g *gorgonia.ExprGraph, inChannel, channel int) *ResBlock {
	id := nextID()
	w3 := gorgonia.NewTensor(g, gorgonia.Float64, 4, gorgonia.WithShape(channel, inChannel, 3, 3), gorgonia.WithName(fmt.Sprintf("res%d_w3x3", id)), gorgonia.WithInit(gorgonia.GlorotN(1.0)))
	b3 := gorgonia.NewTensor(g, gorgonia.Float64, 4, gorgonia.WithShape(1, channel, 1, 1), gorgonia.WithName(fmt.Sprintf("res%d_b3x3", id)), gorgonia.WithInit(gorgonia.Zeroes()))
	u3 := gorgonia.NewVector(g, gorgonia.Float64, gorgonia.WithShape(channel), gorgonia.WithName(fmt.Sprintf("res%d_u3x3", id)), gorgonia.WithInit(gorgonia.Gaussian(0, 1)))
	w1 := gorgonia.NewTensor(g, gorgonia.Float64, 4, gorgonia.WithShape(inChannel, channel, 1, 1), gorgonia.WithName(fmt.Sprintf("res%d_w1x1", id)), gorgonia.WithInit(gorgonia.GlorotN(1.0)))
	b1 := gorgonia.NewTensor(g, gorgonia.Float64, 4, gorgonia.WithShape(1, inChannel, 1, 1), gorgonia.WithName(fmt.Sprintf("res%d_b1x1", id)), gorgonia.WithInit(gorgonia.Zeroes()))
	u1 := gorgonia.NewVector(g, gorgonia.Float64, gorgonia.WithShape(inChannel), gorgonia.WithName(fmt.Sprintf("res%d_u1x1", id)), gorgonia.WithInit(gorgonia.Gaussian(0, 1)))
	return &ResBlock{
		conv3: &Layer{
			WeightNode:   w3,
			BiasNode:     b3,
			SpectralU:    u3,
			Activation:   NoActivation,
			Type:         LayerConvolutional,
			KernelHeight: 3,
			KernelWidth:  3,
			Padding:      []int{1, 1},
			Stride:       []int{1, 1},
			Dilation:     []int{1, 1},
		},
		conv1: &Layer{
			WeightNode:   w1,
			BiasNode:     b1,
			SpectralU:    u1,
			Activation:   NoActivation,
			Type:         LayerConvolutional,
			KernelHeight: 1,
			KernelWidth:  1,
			Padding:      []int{0, 0},
			Stride:       []int{1, 1},
			Dilation:     []int{1, 1},
		},
	}
}

// Learnables Returns learnables nodes
func (block *ResBlock) Learnables() gorgonia.Nodes {
	return gorgonia.Nodes{block.conv3.WeightNode, block.conv3.BiasNode, block.conv1.WeightNode, block.conv1.BiasNode}
}

// Fwd Initializates feedforward for provided input
//
// input - Input node of shape (batch, inChannel, height, width)
//
func (block *ResBlock) Fwd(input *gorgonia.Node) (*gorgonia.Node, error) {
	batchSize := input.Shape()[0]
	activated, err := gorgonia.Rectify(input)
	if err != nil {
		return nil, errors.Wrap(err, "[ResBlock] Can't apply activation function to input")
	}
	hidden, err := block.conv3.Fwd(activated, batchSize)
	if err != nil {
		return nil, errors.Wrap(err, "[ResBlock] Can't feedforward input through 3x3 convolution")
	}
	hidden, err = gorgonia.Rectify(hidden)
	if err != nil {
		return nil, errors.Wrap(err, "[ResBlock] Can't apply activation function to hidden state")
	}
	hidden, err = block.conv1.Fwd(hidden, batchSize)
	if err != nil {
		return nil, errors.Wrap(err, "[ResBlock] Can't feedforward hidden state through 1x1 convolution")
	}
	out, err := gorgonia.Add(hidden, input)
	if err != nil {
		return nil, errors.Wrap(err, "[ResBlock] Can't add skip connection")
	}
	return out, nil
}

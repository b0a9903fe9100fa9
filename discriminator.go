package patchgan_go

import (
	"fmt"
	"math/rand"

	"github.com/pkg/errors"
	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

const defaultPoolChannel = 64

// PatchDiscriminator Patch-based discriminator scoring texture realism of random image crops.
//
// Pipeline: random resample crop => conv3x3 stem => stack of ResBlocks => relu =>
// conv1x1 => avgpool to 4x4 footprint => flatten => linear => relu => linear to a
// single scalar logit per image. Every convolution and linear weight is
// spectrally normalized on each evaluation.
//
// The instance owns an explicit pseudo-random source for the crop step; call
// Resample before an evaluation run to draw fresh crops for every registered
// scoring branch.
//
type PatchDiscriminator struct {
	PatchSize int

	crop      *RandomCrop
	stem      *Layer
	resBlocks []*ResBlock
	head      []*Layer
}

// NewPatchDiscriminator Constructor for PatchDiscriminator
//
// g - Graph for holding weight nodes
// rnd - explicit pseudo-random source for the crop step; when nil a time-seeded one is used
// patchSize - edge length of scored patches; must be a positive multiple of 4 (the pooling footprint)
// inChannel - number of image channels
// channel - stem and residual-stack channel width
// nResBlock - number of residual blocks
// nResChannel - intermediate channel width inside each residual block
// poolChannel - width of the pooling head; defaults to 64
//
func NewPatchDiscriminator(g *gorgonia.ExprGraph, rnd *rand.Rand, patchSize, inChannel, channel, nResBlock, nResChannel int, poolChannel ...int) (*PatchDiscriminator, error) {
	if patchSize <= 0 || patchSize%4 != 0 {
		return nil, fmt.Errorf("Patch size must be a positive multiple of 4, but got %d", patchSize)
	}
	if inChannel <= 0 || channel <= 0 || nResChannel <= 0 {
		return nil, fmt.Errorf("Channel counts must be positive, but got in=%d stem=%d res=%d", inChannel, channel, nResChannel)
	}
	if nResBlock < 0 {
		return nil, fmt.Errorf("Number of residual blocks must be non-negative, but got %d", nResBlock)
	}
	nPoolChannel := defaultPoolChannel
	if len(poolChannel) != 0 {
		nPoolChannel = poolChannel[0]
	}
	if nPoolChannel <= 0 {
		return nil, fmt.Errorf("Pooling head width must be positive, but got %d", nPoolChannel)
	}

	id := nextID()
	stemW := gorgonia.NewTensor(g, gorgonia.Float64, 4, gorgonia.WithShape(channel, inChannel, 3, 3), gorgonia.WithName(fmt.Sprintf("disc%d_stem_w", id)), gorgonia.WithInit(gorgonia.GlorotN(1.0)))
	stemB := gorgonia.NewTensor(g, gorgonia.Float64, 4, gorgonia.WithShape(1, channel, 1, 1), gorgonia.WithName(fmt.Sprintf("disc%d_stem_b", id)), gorgonia.WithInit(gorgonia.Zeroes()))
	stemU := gorgonia.NewVector(g, gorgonia.Float64, gorgonia.WithShape(channel), gorgonia.WithName(fmt.Sprintf("disc%d_stem_u", id)), gorgonia.WithInit(gorgonia.Gaussian(0, 1)))

	poolW := gorgonia.NewTensor(g, gorgonia.Float64, 4, gorgonia.WithShape(nPoolChannel, channel, 1, 1), gorgonia.WithName(fmt.Sprintf("disc%d_pool_w", id)), gorgonia.WithInit(gorgonia.GlorotN(1.0)))
	poolB := gorgonia.NewTensor(g, gorgonia.Float64, 4, gorgonia.WithShape(1, nPoolChannel, 1, 1), gorgonia.WithName(fmt.Sprintf("disc%d_pool_b", id)), gorgonia.WithInit(gorgonia.Zeroes()))
	poolU := gorgonia.NewVector(g, gorgonia.Float64, gorgonia.WithShape(nPoolChannel), gorgonia.WithName(fmt.Sprintf("disc%d_pool_u", id)), gorgonia.WithInit(gorgonia.Gaussian(0, 1)))

	linearW := gorgonia.NewMatrix(g, gorgonia.Float64, gorgonia.WithShape(nPoolChannel, nPoolChannel*4*4), gorgonia.WithName(fmt.Sprintf("disc%d_linear_w", id)), gorgonia.WithInit(gorgonia.GlorotN(1.0)))
	linearB := gorgonia.NewMatrix(g, gorgonia.Float64, gorgonia.WithShape(1, nPoolChannel), gorgonia.WithName(fmt.Sprintf("disc%d_linear_b", id)), gorgonia.WithInit(gorgonia.Zeroes()))
	linearU := gorgonia.NewVector(g, gorgonia.Float64, gorgonia.WithShape(nPoolChannel), gorgonia.WithName(fmt.Sprintf("disc%d_linear_u", id)), gorgonia.WithInit(gorgonia.Gaussian(0, 1)))

	scoreW := gorgonia.NewMatrix(g, gorgonia.Float64, gorgonia.WithShape(1, nPoolChannel), gorgonia.WithName(fmt.Sprintf("disc%d_score_w", id)), gorgonia.WithInit(gorgonia.GlorotN(1.0)))
	scoreB := gorgonia.NewMatrix(g, gorgonia.Float64, gorgonia.WithShape(1, 1), gorgonia.WithName(fmt.Sprintf("disc%d_score_b", id)), gorgonia.WithInit(gorgonia.Zeroes()))
	scoreU := gorgonia.NewVector(g, gorgonia.Float64, gorgonia.WithShape(1), gorgonia.WithName(fmt.Sprintf("disc%d_score_u", id)), gorgonia.WithInit(gorgonia.Gaussian(0, 1)))

	resBlocks := make([]*ResBlock, nResBlock)
	for i := range resBlocks {
		resBlocks[i] = NewResBlock(g, channel, nResChannel)
	}

	return &PatchDiscriminator{
		PatchSize: patchSize,
		crop:      NewRandomCrop(patchSize, rnd),
		stem: &Layer{
			WeightNode:   stemW,
			BiasNode:     stemB,
			SpectralU:    stemU,
			Activation:   NoActivation,
			Type:         LayerConvolutional,
			KernelHeight: 3,
			KernelWidth:  3,
			Padding:      []int{1, 1},
			Stride:       []int{1, 1},
			Dilation:     []int{1, 1},
		},
		resBlocks: resBlocks,
		head: []*Layer{
			{
				WeightNode:   poolW,
				BiasNode:     poolB,
				SpectralU:    poolU,
				Activation:   NoActivation,
				Type:         LayerConvolutional,
				KernelHeight: 1,
				KernelWidth:  1,
				Padding:      []int{0, 0},
				Stride:       []int{1, 1},
				Dilation:     []int{1, 1},
			},
			{
				Activation: NoActivation,
				Type:       LayerAvgpool,
				Footprint:  4,
			},
			{
				Activation: NoActivation,
				Type:       LayerFlatten,
			},
			{
				WeightNode: linearW,
				BiasNode:   linearB,
				SpectralU:  linearU,
				Activation: Rectify,
				Type:       LayerLinear,
			},
			{
				WeightNode: scoreW,
				BiasNode:   scoreB,
				SpectralU:  scoreU,
				Activation: NoActivation,
				Type:       LayerLinear,
			},
		},
	}, nil
}

// Learnables Returns learnables nodes (spectral direction vectors excluded)
func (disc *PatchDiscriminator) Learnables() gorgonia.Nodes {
	learnables := make(gorgonia.Nodes, 0, 2*(len(disc.head)+2*len(disc.resBlocks)+1))
	learnables = append(learnables, disc.stem.WeightNode, disc.stem.BiasNode)
	for _, block := range disc.resBlocks {
		learnables = append(learnables, block.Learnables()...)
	}
	for _, layer := range disc.head {
		if layer.WeightNode != nil {
			learnables = append(learnables, layer.WeightNode)
		}
		if layer.BiasNode != nil {
			learnables = append(learnables, layer.BiasNode)
		}
	}
	return learnables
}

// Resample Redraws the crop offsets of every scoring branch built so far
func (disc *PatchDiscriminator) Resample() error {
	return disc.crop.Resample()
}

// Fwd Builds a scoring branch for provided images
//
// images - Input node of shape (batch, channels, height, width); spatial size must not be below PatchSize
//
// Returns the logit node of shape (batch): one scalar per image, higher means
// "more real". Each call registers its own crop placement, so two branches of
// the same graph see independent random patches.
//
func (disc *PatchDiscriminator) Fwd(images *gorgonia.Node) (*gorgonia.Node, error) {
	if images.Dims() != 4 {
		return nil, fmt.Errorf("[PatchDiscriminator] Input must have 4 dimensions, but got %d", images.Dims())
	}
	batchSize := images.Shape()[0]
	patches, err := disc.crop.Fwd(images)
	if err != nil {
		return nil, errors.Wrap(err, "[PatchDiscriminator] Can't crop input images")
	}
	out, err := disc.stem.Fwd(patches, batchSize)
	if err != nil {
		return nil, errors.Wrap(err, "[PatchDiscriminator] Can't feedforward patches through stem convolution")
	}
	for i, block := range disc.resBlocks {
		out, err = block.Fwd(out)
		if err != nil {
			return nil, errors.Wrap(err, fmt.Sprintf("[PatchDiscriminator] Can't feedforward through residual block #%d", i))
		}
	}
	out, err = gorgonia.Rectify(out)
	if err != nil {
		return nil, errors.Wrap(err, "[PatchDiscriminator] Can't apply activation function to residual stack output")
	}
	for i, layer := range disc.head {
		out, err = layer.Fwd(out, batchSize)
		if err != nil {
			return nil, errors.Wrap(err, fmt.Sprintf("[PatchDiscriminator] Can't feedforward through head layer #%d", i))
		}
		out, err = layer.Activation(out)
		if err != nil {
			return nil, errors.Wrap(err, fmt.Sprintf("[PatchDiscriminator] Can't apply activation function to head layer #%d", i))
		}
	}
	logits, err := gorgonia.Reshape(out, tensor.Shape{batchSize})
	if err != nil {
		return nil, errors.Wrap(err, "[PatchDiscriminator] Can't squeeze logits")
	}
	return logits, nil
}

// DLoss Hinge discriminator loss over independent scoring branches for both batches
//
// reals - batch of ground-truth images
// fakes - batch of generated images of the same shape
//
func (disc *PatchDiscriminator) DLoss(reals, fakes *gorgonia.Node) (*gorgonia.Node, error) {
	logitsReal, err := disc.Fwd(reals)
	if err != nil {
		return nil, errors.Wrap(err, "[PatchDiscriminator] Can't score real images")
	}
	logitsFake, err := disc.Fwd(fakes)
	if err != nil {
		return nil, errors.Wrap(err, "[PatchDiscriminator] Can't score fake images")
	}
	loss, err := HingeDLoss(logitsReal, logitsFake)
	if err != nil {
		return nil, errors.Wrap(err, "[PatchDiscriminator] Can't build hinge discriminator loss")
	}
	return loss, nil
}

// GLoss Hinge generator loss for provided fake batch
func (disc *PatchDiscriminator) GLoss(fakes *gorgonia.Node) (*gorgonia.Node, error) {
	logitsFake, err := disc.Fwd(fakes)
	if err != nil {
		return nil, errors.Wrap(err, "[PatchDiscriminator] Can't score fake images")
	}
	loss, err := HingeGLoss(logitsFake)
	if err != nil {
		return nil, errors.Wrap(err, "[PatchDiscriminator] Can't build hinge generator loss")
	}
	return loss, nil
}

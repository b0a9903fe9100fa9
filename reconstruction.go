package patchgan_go

import (
	"fmt"
	"math/rand"

	"github.com/pkg/errors"
	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// PatchReconstructionDiscriminator Paired variant of PatchDiscriminator comparing a ground-truth
// image against its reconstruction.
//
// It owns a base PatchDiscriminator built for doubled input channels; scoring
// stacks the pair along the channel axis and delegates to the base pipeline.
// The losses train the network to tell apart the order in which real and fake
// appear in the pair, rather than to score single images.
//
type PatchReconstructionDiscriminator struct {
	PatchSize int
	InChannel int

	base *PatchDiscriminator
}

// NewPatchReconstructionDiscriminator Constructor for PatchReconstructionDiscriminator
//
// g - Graph for holding weight nodes
// rnd - explicit pseudo-random source for the crop step; when nil a time-seeded one is used
// patchSize - edge length of scored patches; must be a positive multiple of 4
// inChannel - number of channels of a single image (the base network consumes 2*inChannel)
// channel - stem and residual-stack channel width
// nResBlock - number of residual blocks
// nResChannel - intermediate channel width inside each residual block
//
func NewPatchReconstructionDiscriminator(g *gorgonia.ExprGraph, rnd *rand.Rand, patchSize, inChannel, channel, nResBlock, nResChannel int) (*PatchReconstructionDiscriminator, error) {
	base, err := NewPatchDiscriminator(g, rnd, patchSize, inChannel*2, channel, nResBlock, nResChannel)
	if err != nil {
		return nil, errors.Wrap(err, "[PatchReconstructionDiscriminator] Can't construct base discriminator")
	}
	return &PatchReconstructionDiscriminator{
		PatchSize: patchSize,
		InChannel: inChannel,
		base:      base,
	}, nil
}

// Learnables Returns learnables nodes of the base discriminator
func (disc *PatchReconstructionDiscriminator) Learnables() gorgonia.Nodes {
	return disc.base.Learnables()
}

// Resample Redraws the crop offsets of every scoring branch built so far
func (disc *PatchReconstructionDiscriminator) Resample() error {
	return disc.base.Resample()
}

// Fwd Builds a scoring branch for provided image pair
//
// x, y - Input nodes of identical shape (batch, channels, height, width)
//
// The pair is stacked channel-wise and scored jointly; output is the logit
// node of shape (batch).
//
func (disc *PatchReconstructionDiscriminator) Fwd(x, y *gorgonia.Node) (*gorgonia.Node, error) {
	if !x.Shape().Eq(y.Shape()) {
		return nil, fmt.Errorf("[PatchReconstructionDiscriminator] Pair shapes must match, but got %v and %v", x.Shape(), y.Shape())
	}
	paired, err := gorgonia.Concat(1, x, y)
	if err != nil {
		return nil, errors.Wrap(err, "[PatchReconstructionDiscriminator] Can't stack pair along channel axis")
	}
	logits, err := disc.base.Fwd(paired)
	if err != nil {
		return nil, errors.Wrap(err, "[PatchReconstructionDiscriminator] Can't score stacked pair")
	}
	return logits, nil
}

// DLoss Hinge discriminator loss over pair orderings
//
// reals, fakes - batches of identical shape (batch, channels, patch, patch) with even batch size
//
// Each batch is split into two equal halves along the batch axis; the leading
// halves are scored in both orderings - (real, fake) as the "real" logits and
// (fake, real) as the "fake" logits - and fed to the hinge discriminator loss.
// The trailing halves take no part in the objective.
//
func (disc *PatchReconstructionDiscriminator) DLoss(reals, fakes *gorgonia.Node) (*gorgonia.Node, error) {
	logitsReal, logitsFake, err := disc.pairedLogits(reals, fakes)
	if err != nil {
		return nil, err
	}
	loss, err := HingeDLoss(logitsReal, logitsFake)
	if err != nil {
		return nil, errors.Wrap(err, "[PatchReconstructionDiscriminator] Can't build hinge discriminator loss")
	}
	return loss, nil
}

// GLoss Hinge generator loss over pair orderings.
// Mirrors DLoss with the logit roles swapped, producing the generator-side
// adversarial signal.
func (disc *PatchReconstructionDiscriminator) GLoss(reals, fakes *gorgonia.Node) (*gorgonia.Node, error) {
	logitsReal, logitsFake, err := disc.pairedLogits(reals, fakes)
	if err != nil {
		return nil, err
	}
	loss, err := HingeDLoss(logitsFake, logitsReal)
	if err != nil {
		return nil, errors.Wrap(err, "[PatchReconstructionDiscriminator] Can't build hinge generator loss")
	}
	return loss, nil
}

func (disc *PatchReconstructionDiscriminator) pairedLogits(reals, fakes *gorgonia.Node) (*gorgonia.Node, *gorgonia.Node, error) {
	if !reals.Shape().Eq(fakes.Shape()) {
		return nil, nil, fmt.Errorf("[PatchReconstructionDiscriminator] Batch shapes must match, but got %v and %v", reals.Shape(), fakes.Shape())
	}
	realsLead, err := disc.leadingHalf(reals)
	if err != nil {
		return nil, nil, errors.Wrap(err, "[PatchReconstructionDiscriminator] Can't split real batch")
	}
	fakesLead, err := disc.leadingHalf(fakes)
	if err != nil {
		return nil, nil, errors.Wrap(err, "[PatchReconstructionDiscriminator] Can't split fake batch")
	}
	logitsReal, err := disc.Fwd(realsLead, fakesLead)
	if err != nil {
		return nil, nil, errors.Wrap(err, "[PatchReconstructionDiscriminator] Can't score (real, fake) ordering")
	}
	logitsFake, err := disc.Fwd(fakesLead, realsLead)
	if err != nil {
		return nil, nil, errors.Wrap(err, "[PatchReconstructionDiscriminator] Can't score (fake, real) ordering")
	}
	return logitsReal, logitsFake, nil
}

// leadingHalf Reinterprets batch as (2, batch/2, channels, patch, patch) and keeps the first half.
// The second half is deliberately left out of the loss computation.
func (disc *PatchReconstructionDiscriminator) leadingHalf(batch *gorgonia.Node) (*gorgonia.Node, error) {
	batchSize := batch.Shape()[0]
	if batchSize%2 != 0 {
		return nil, fmt.Errorf("Batch size must be even to split into halves, but got %d", batchSize)
	}
	split, err := gorgonia.Reshape(batch, tensor.Shape{2, batchSize / 2, disc.InChannel, disc.PatchSize, disc.PatchSize})
	if err != nil {
		return nil, errors.Wrap(err, "Can't reshape batch into halves")
	}
	lead, err := gorgonia.Slice(split, gorgonia.S(0))
	if err != nil {
		return nil, errors.Wrap(err, "Can't take leading half")
	}
	return lead, nil
}

package patchgan_go

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/pkg/errors"
	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// RandomCrop Differentiable random crop used as the discriminator's augmentation step.
//
// Each Fwd call registers a placement: a pair of interpolation matrices
// (patch×H) and (patch×W) held in input nodes. Crop offsets are continuous, so
// patches are sampled at sub-pixel positions with bilinear weights and the
// transform stays differentiable with respect to the image. Cropping is two
// matrix products along the spatial axes.
//
// Randomness is owned by the component: offsets come from the provided
// *rand.Rand and are redrawn for every placement on Resample(). A fixed seed
// reproduces the crop sequence exactly.
//
type RandomCrop struct {
	PatchSize  int
	placements []*cropPlacement
	rnd        *rand.Rand
}

type cropPlacement struct {
	rows   *gorgonia.Node
	cols   *gorgonia.Node
	height int
	width  int
}

// NewRandomCrop Constructor for RandomCrop
//
// patchSize - edge length of extracted square patches
// rnd - explicit pseudo-random source; when nil a time-seeded one is used
//
func NewRandomCrop(patchSize int, rnd *rand.Rand) *RandomCrop {
	if rnd == nil {
		rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &RandomCrop{
		PatchSize: patchSize,
		rnd:       rnd,
	}
}

// Fwd Registers a fresh crop placement for provided input and applies it
//
// input - Input node of shape (batch, channels, height, width); spatial size must not be below PatchSize
//
func (crop *RandomCrop) Fwd(input *gorgonia.Node) (*gorgonia.Node, error) {
	if input.Dims() != 4 {
		return nil, fmt.Errorf("Crop input must have 4 dimensions, but got %d", input.Dims())
	}
	shp := input.Shape()
	h, w := shp[2], shp[3]
	if h < crop.PatchSize || w < crop.PatchSize {
		return nil, fmt.Errorf("Crop input spatial size %dx%d is less than patch size %d", h, w, crop.PatchSize)
	}
	g := input.Graph()
	id := nextID()
	placement := &cropPlacement{
		rows:   gorgonia.NewMatrix(g, gorgonia.Float64, gorgonia.WithShape(crop.PatchSize, h), gorgonia.WithName(fmt.Sprintf("crop_rows_%d", id))),
		cols:   gorgonia.NewMatrix(g, gorgonia.Float64, gorgonia.WithShape(crop.PatchSize, w), gorgonia.WithName(fmt.Sprintf("crop_cols_%d", id))),
		height: h,
		width:  w,
	}
	crop.placements = append(crop.placements, placement)
	// initial draw, so the graph is runnable without an explicit Resample()
	if err := crop.resample(placement); err != nil {
		return nil, errors.Wrap(err, "Can't draw initial crop placement")
	}
	cropped, err := cropAxis(input, placement.rows, 2)
	if err != nil {
		return nil, errors.Wrap(err, "Can't crop input along height axis")
	}
	cropped, err = cropAxis(cropped, placement.cols, 3)
	if err != nil {
		return nil, errors.Wrap(err, "Can't crop input along width axis")
	}
	return cropped, nil
}

// Resample Redraws offsets for every registered placement.
// Call it before each evaluation run to get a fresh crop per call.
func (crop *RandomCrop) Resample() error {
	for i, placement := range crop.placements {
		if err := crop.resample(placement); err != nil {
			return errors.Wrap(err, fmt.Sprintf("Can't resample crop placement #%d", i))
		}
	}
	return nil
}

func (crop *RandomCrop) resample(placement *cropPlacement) error {
	offsetY := crop.rnd.Float64() * float64(placement.height-crop.PatchSize)
	offsetX := crop.rnd.Float64() * float64(placement.width-crop.PatchSize)
	if err := gorgonia.Let(placement.rows, interpolationWeights(crop.PatchSize, placement.height, offsetY)); err != nil {
		return errors.Wrap(err, "Can't bind row interpolation weights")
	}
	if err := gorgonia.Let(placement.cols, interpolationWeights(crop.PatchSize, placement.width, offsetX)); err != nil {
		return errors.Wrap(err, "Can't bind column interpolation weights")
	}
	return nil
}

// interpolationWeights Bilinear sampling matrix of shape (patch, length).
// Row p holds the weights picking source position offset+p; every row sums to
// 1, and an offset of 0 with length == patch is the identity.
func interpolationWeights(patch, length int, offset float64) *tensor.Dense {
	data := make([]float64, patch*length)
	for p := 0; p < patch; p++ {
		center := offset + float64(p)
		for j := 0; j < length; j++ {
			if d := math.Abs(center - float64(j)); d < 1.0 {
				data[p*length+j] = 1.0 - d
			}
		}
	}
	return tensor.New(tensor.WithShape(patch, length), tensor.WithBacking(data))
}

// cropAxis Contracts one spatial axis of a (N, C, H, W) node with interpolation matrix m.
// axis must be 2 (height) or 3 (width).
func cropAxis(input, m *gorgonia.Node, axis int) (*gorgonia.Node, error) {
	var toFront, fromFront []int
	switch axis {
	case 2:
		toFront, fromFront = []int{2, 0, 1, 3}, []int{1, 2, 0, 3}
	case 3:
		toFront, fromFront = []int{3, 0, 1, 2}, []int{1, 2, 3, 0}
	default:
		return nil, fmt.Errorf("Crop axis must be 2 or 3, but got %d", axis)
	}
	fronted, err := gorgonia.Transpose(input, toFront...)
	if err != nil {
		return nil, errors.Wrap(err, "Can't move cropped axis to front")
	}
	length := fronted.Shape()[0]
	rest := fronted.Shape().TotalSize() / length
	flat, err := gorgonia.Reshape(fronted, tensor.Shape{length, rest})
	if err != nil {
		return nil, errors.Wrap(err, "Can't flatten trailing axes")
	}
	contracted, err := gorgonia.Mul(m, flat)
	if err != nil {
		return nil, errors.Wrap(err, "Can't contract axis with interpolation weights")
	}
	outShape := make(tensor.Shape, 4)
	outShape[0] = m.Shape()[0]
	copy(outShape[1:], fronted.Shape()[1:])
	shaped, err := gorgonia.Reshape(contracted, outShape)
	if err != nil {
		return nil, errors.Wrap(err, "Can't restore trailing axes")
	}
	restored, err := gorgonia.Transpose(shaped, fromFront...)
	if err != nil {
		return nil, errors.Wrap(err, "Can't move cropped axis back")
	}
	return restored, nil
}

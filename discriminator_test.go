package patchgan_go

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

func TestNewPatchDiscriminatorValidation(t *testing.T) {
	tests := []struct {
		name        string
		patchSize   int
		inChannel   int
		channel     int
		nResBlock   int
		nResChannel int
		pool        []int
	}{
		{name: "patch size not multiple of 4", patchSize: 15, inChannel: 3, channel: 32, nResBlock: 2, nResChannel: 16},
		{name: "zero patch size", patchSize: 0, inChannel: 3, channel: 32, nResBlock: 2, nResChannel: 16},
		{name: "zero input channels", patchSize: 16, inChannel: 0, channel: 32, nResBlock: 2, nResChannel: 16},
		{name: "negative residual blocks", patchSize: 16, inChannel: 3, channel: 32, nResBlock: -1, nResChannel: 16},
		{name: "zero pooling width", patchSize: 16, inChannel: 3, channel: 32, nResBlock: 2, nResChannel: 16, pool: []int{0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := gorgonia.NewGraph()
			_, err := NewPatchDiscriminator(g, rand.New(rand.NewSource(1)), tt.patchSize, tt.inChannel, tt.channel, tt.nResBlock, tt.nResChannel, tt.pool...)
			require.Error(t, err)
		})
	}
}

func TestPatchDiscriminatorForwardShape(t *testing.T) {
	rnd := rand.New(rand.NewSource(5))
	g := gorgonia.NewGraph()
	disc, err := NewPatchDiscriminator(g, rnd, 16, 3, 32, 2, 16)
	require.NoError(t, err)

	images := gorgonia.NewTensor(g, gorgonia.Float64, 4, gorgonia.WithShape(4, 3, 32, 32), gorgonia.WithName("disc_test_images"))
	require.NoError(t, gorgonia.Let(images, NormRandImages(rnd, 4, 3, 32, 32)))

	logits, err := disc.Fwd(images)
	require.NoError(t, err)
	require.True(t, logits.Shape().Eq(tensor.Shape{4}), "unexpected logit shape %v", logits.Shape())

	data := runVector(t, g, logits)
	require.Len(t, data, 4)
	requireAllFinite(t, data)
}

func TestPatchDiscriminatorEndToEndLosses(t *testing.T) {
	rnd := rand.New(rand.NewSource(13))
	g := gorgonia.NewGraph()
	disc, err := NewPatchDiscriminator(g, rnd, 16, 3, 32, 2, 16)
	require.NoError(t, err)

	reals := gorgonia.NewTensor(g, gorgonia.Float64, 4, gorgonia.WithShape(4, 3, 32, 32), gorgonia.WithName("disc_test_reals"))
	fakes := gorgonia.NewTensor(g, gorgonia.Float64, 4, gorgonia.WithShape(4, 3, 32, 32), gorgonia.WithName("disc_test_fakes"))
	require.NoError(t, gorgonia.Let(reals, NormRandImages(rnd, 4, 3, 32, 32)))
	require.NoError(t, gorgonia.Let(fakes, UniformRandImages(rnd, 4, 3, 32, 32)))

	dLoss, err := disc.DLoss(reals, fakes)
	require.NoError(t, err)
	gLoss, err := disc.GLoss(fakes)
	require.NoError(t, err)

	var dOut, gOut gorgonia.Value
	gorgonia.Read(dLoss, &dOut)
	gorgonia.Read(gLoss, &gOut)
	tm := gorgonia.NewTapeMachine(g)
	defer tm.Close()
	require.NoError(t, tm.RunAll())

	dVal := dOut.Data().(float64)
	gVal := gOut.Data().(float64)
	require.False(t, math.IsNaN(dVal) || math.IsInf(dVal, 0), "d_loss is not finite: %v", dVal)
	require.False(t, math.IsNaN(gVal) || math.IsInf(gVal, 0), "g_loss is not finite: %v", gVal)
	assert.True(t, gVal >= 0, "g_loss must be non-negative, got %v", gVal)
}

func TestPatchDiscriminatorDLossSameBatchPositive(t *testing.T) {
	rnd := rand.New(rand.NewSource(29))
	g := gorgonia.NewGraph()
	disc, err := NewPatchDiscriminator(g, rnd, 16, 3, 32, 2, 16)
	require.NoError(t, err)

	reals := gorgonia.NewTensor(g, gorgonia.Float64, 4, gorgonia.WithShape(4, 3, 32, 32), gorgonia.WithName("disc_test_batch"))
	require.NoError(t, gorgonia.Let(reals, NormRandImages(rnd, 4, 3, 32, 32)))

	// feeding the same batch as both sides is degenerate for training, but the
	// loss must stay finite and strictly positive at initialization
	loss, err := disc.DLoss(reals, reals)
	require.NoError(t, err)
	val := runScalar(t, g, loss)
	require.False(t, math.IsNaN(val) || math.IsInf(val, 0), "loss is not finite: %v", val)
	require.Greater(t, val, 0.0)
}

func TestPatchDiscriminatorLearnablesExcludeSpectralDirections(t *testing.T) {
	g := gorgonia.NewGraph()
	disc, err := NewPatchDiscriminator(g, rand.New(rand.NewSource(1)), 16, 3, 32, 2, 16)
	require.NoError(t, err)
	// stem (2) + 2 res blocks (4 each) + conv1x1/linear/score (2 each)
	require.Len(t, disc.Learnables(), 16)
	for _, node := range disc.Learnables() {
		assert.NotContains(t, node.Name(), "_u", "spectral direction %q must not be learnable", node.Name())
	}
}

func TestPatchDiscriminatorResampleChangesCrops(t *testing.T) {
	rnd := rand.New(rand.NewSource(31))
	g := gorgonia.NewGraph()
	disc, err := NewPatchDiscriminator(g, rnd, 16, 3, 32, 0, 16)
	require.NoError(t, err)

	images := gorgonia.NewTensor(g, gorgonia.Float64, 4, gorgonia.WithShape(1, 3, 32, 32), gorgonia.WithName("disc_resample_images"))
	_, err = disc.Fwd(images)
	require.NoError(t, err)

	before := append([]float64{}, disc.crop.placements[0].rows.Value().Data().([]float64)...)
	require.NoError(t, disc.Resample())
	after := disc.crop.placements[0].rows.Value().Data().([]float64)
	assert.NotEqual(t, before, after)
}

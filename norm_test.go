package patchgan_go

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

func TestSpectralNormRankOneMatrixExact(t *testing.T) {
	// For a rank-1 matrix one power-iteration step recovers the spectral norm
	// exactly: ‖(3,4)‖ = 5, so the normalized weight is (0.6, 0.8).
	g := gorgonia.NewGraph()
	w := gorgonia.NewMatrix(g, gorgonia.Float64, gorgonia.WithShape(1, 2), gorgonia.WithName("sn_w"), gorgonia.WithValue(tensor.New(tensor.WithShape(1, 2), tensor.WithBacking([]float64{3, 4}))))
	u := gorgonia.NewVector(g, gorgonia.Float64, gorgonia.WithShape(1), gorgonia.WithName("sn_u"), gorgonia.WithValue(tensor.New(tensor.WithShape(1), tensor.WithBacking([]float64{-0.7}))))

	normalized, err := spectralNorm(w, u)
	require.NoError(t, err)
	require.True(t, normalized.Shape().Eq(tensor.Shape{1, 2}))

	var out gorgonia.Value
	gorgonia.Read(normalized, &out)
	tm := gorgonia.NewTapeMachine(g)
	defer tm.Close()
	require.NoError(t, tm.RunAll())
	data := out.Data().([]float64)
	require.InDelta(t, 0.6, data[0], 1e-6)
	require.InDelta(t, 0.8, data[1], 1e-6)
}

func TestSpectralNormPreservesWeightShape(t *testing.T) {
	g := gorgonia.NewGraph()
	w := gorgonia.NewTensor(g, gorgonia.Float64, 4, gorgonia.WithShape(5, 3, 3, 3), gorgonia.WithName("sn_conv_w"), gorgonia.WithInit(gorgonia.GlorotN(1.0)))
	u := gorgonia.NewVector(g, gorgonia.Float64, gorgonia.WithShape(5), gorgonia.WithName("sn_conv_u"), gorgonia.WithInit(gorgonia.Gaussian(0, 1)))

	normalized, err := spectralNorm(w, u)
	require.NoError(t, err)
	require.True(t, normalized.Shape().Eq(tensor.Shape{5, 3, 3, 3}), "unexpected shape %v", normalized.Shape())

	var out gorgonia.Value
	gorgonia.Read(normalized, &out)
	tm := gorgonia.NewTapeMachine(g)
	defer tm.Close()
	require.NoError(t, tm.RunAll())
	requireAllFinite(t, out.Data().([]float64))
}

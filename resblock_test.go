package patchgan_go

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

func TestResBlockPreservesShape(t *testing.T) {
	rnd := rand.New(rand.NewSource(21))
	g := gorgonia.NewGraph()
	input := gorgonia.NewTensor(g, gorgonia.Float64, 4, gorgonia.WithShape(2, 4, 8, 8), gorgonia.WithName("res_test_input"))
	require.NoError(t, gorgonia.Let(input, NormRandImages(rnd, 2, 4, 8, 8)))

	block := NewResBlock(g, 4, 6)
	out, err := block.Fwd(input)
	require.NoError(t, err)
	require.True(t, out.Shape().Eq(input.Shape()), "output shape %v differs from input shape %v", out.Shape(), input.Shape())

	var outVal gorgonia.Value
	gorgonia.Read(out, &outVal)
	tm := gorgonia.NewTapeMachine(g)
	defer tm.Close()
	require.NoError(t, tm.RunAll())
	requireAllFinite(t, outVal.Data().([]float64))
}

func TestResBlockLearnables(t *testing.T) {
	g := gorgonia.NewGraph()
	block := NewResBlock(g, 3, 5)
	learnables := block.Learnables()
	require.Len(t, learnables, 4)
	require.True(t, learnables[0].Shape().Eq(tensor.Shape{5, 3, 3, 3}))
	require.True(t, learnables[2].Shape().Eq(tensor.Shape{3, 5, 1, 1}))
}

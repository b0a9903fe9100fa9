package patchgan_go

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// runScalar Evaluates a scalar node on a fresh tape machine
func runScalar(t *testing.T, g *gorgonia.ExprGraph, node *gorgonia.Node) float64 {
	t.Helper()
	var out gorgonia.Value
	gorgonia.Read(node, &out)
	tm := gorgonia.NewTapeMachine(g)
	defer tm.Close()
	require.NoError(t, tm.RunAll())
	return out.Data().(float64)
}

// runVector Evaluates a rank-1 node on a fresh tape machine
func runVector(t *testing.T, g *gorgonia.ExprGraph, node *gorgonia.Node) []float64 {
	t.Helper()
	var out gorgonia.Value
	gorgonia.Read(node, &out)
	tm := gorgonia.NewTapeMachine(g)
	defer tm.Close()
	require.NoError(t, tm.RunAll())
	return out.Data().([]float64)
}

func requireAllFinite(t *testing.T, data []float64) {
	t.Helper()
	for i, v := range data {
		require.False(t, math.IsNaN(v) || math.IsInf(v, 0), "element #%d is not finite: %v", i, v)
	}
}

func letVector(t *testing.T, g *gorgonia.ExprGraph, name string, values []float64) *gorgonia.Node {
	t.Helper()
	node := gorgonia.NewVector(g, gorgonia.Float64, gorgonia.WithShape(len(values)), gorgonia.WithName(name))
	require.NoError(t, gorgonia.Let(node, tensor.New(tensor.WithShape(len(values)), tensor.WithBacking(values))))
	return node
}

func TestHingeDLossSeparatedLogits(t *testing.T) {
	g := gorgonia.NewGraph()
	logitsReal := letVector(t, g, "logits_real", []float64{1.0, 1.5, 3.0})
	logitsFake := letVector(t, g, "logits_fake", []float64{-1.0, -2.0, -1.5})
	loss, err := HingeDLoss(logitsReal, logitsFake)
	require.NoError(t, err)
	require.Zero(t, runScalar(t, g, loss))
}

func TestHingeGLossLiteralVector(t *testing.T) {
	g := gorgonia.NewGraph()
	logitsFake := letVector(t, g, "logits_fake", []float64{0.5, 2.0})
	loss, err := HingeGLoss(logitsFake)
	require.NoError(t, err)
	require.InDelta(t, 0.25, runScalar(t, g, loss), 1e-12)
}

func TestHingeDLossMatchesHandComputed(t *testing.T) {
	rnd := rand.New(rand.NewSource(7))
	logitsRealData := make([]float64, 16)
	logitsFakeData := make([]float64, 16)
	for i := range logitsRealData {
		logitsRealData[i] = rnd.NormFloat64() * 2
		logitsFakeData[i] = rnd.NormFloat64() * 2
	}
	expected := 0.0
	for i := range logitsRealData {
		expected += math.Max(0, 1-logitsRealData[i]) + math.Max(0, 1+logitsFakeData[i])
	}
	expected = 0.5 * expected / float64(len(logitsRealData))

	g := gorgonia.NewGraph()
	logitsReal := letVector(t, g, "logits_real", logitsRealData)
	logitsFake := letVector(t, g, "logits_fake", logitsFakeData)
	loss, err := HingeDLoss(logitsReal, logitsFake)
	require.NoError(t, err)
	require.InDelta(t, expected, runScalar(t, g, loss), 1e-12)
}

func TestHingeGLossMatchesHandComputed(t *testing.T) {
	rnd := rand.New(rand.NewSource(11))
	logitsFakeData := make([]float64, 10)
	expected := 0.0
	for i := range logitsFakeData {
		logitsFakeData[i] = rnd.NormFloat64() * 3
		expected += math.Max(0, 1-logitsFakeData[i])
	}
	expected /= float64(len(logitsFakeData))

	g := gorgonia.NewGraph()
	logitsFake := letVector(t, g, "logits_fake", logitsFakeData)
	loss, err := HingeGLoss(logitsFake)
	require.NoError(t, err)
	require.InDelta(t, expected, runScalar(t, g, loss), 1e-12)
}

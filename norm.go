package patchgan_go

import (
	"github.com/pkg/errors"
	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// spectralNorm Rescales weight node by an estimate of its largest singular value.
// See ref. https://arxiv.org/abs/1802.05957
//
// w - weight node of any rank (matrix view is (out, rest))
// u - fixed random direction of length w.Shape()[0], not learnable
//
// One power-iteration step per graph evaluation: v = normalize(Wᵀu), σ = ‖Wv‖.
// Since the whole estimate lives in the graph, σ follows the current weight
// values on every run.
//
func spectralNorm(w, u *gorgonia.Node) (*gorgonia.Node, error) {
	flat := w
	if w.Dims() > 2 {
		rows := w.Shape()[0]
		var err error
		flat, err = gorgonia.Reshape(w, tensor.Shape{rows, w.Shape().TotalSize() / rows})
		if err != nil {
			return nil, errors.Wrap(err, "Can't flatten weight to matrix")
		}
	}
	flatT, err := gorgonia.Transpose(flat)
	if err != nil {
		return nil, errors.Wrap(err, "Can't transpose weight matrix")
	}
	v, err := gorgonia.Mul(flatT, u)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do (Wᵀ@u)")
	}
	v, err = l2normalize(v)
	if err != nil {
		return nil, errors.Wrap(err, "Can't normalize right singular direction")
	}
	wv, err := gorgonia.Mul(flat, v)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do (W@v)")
	}
	sigma, err := euclideanNorm(wv)
	if err != nil {
		return nil, errors.Wrap(err, "Can't estimate spectral norm")
	}
	normalized, err := gorgonia.Div(w, sigma)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do (W/σ)")
	}
	return normalized, nil
}

func l2normalize(v *gorgonia.Node) (*gorgonia.Node, error) {
	norm, err := euclideanNorm(v)
	if err != nil {
		return nil, err
	}
	return gorgonia.Div(v, norm)
}

func euclideanNorm(v *gorgonia.Node) (*gorgonia.Node, error) {
	sqr, err := gorgonia.Square(v)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do (x^2)")
	}
	sum, err := gorgonia.Sum(sqr)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do sum(x)")
	}
	// guard against an all-zero vector
	sum, err = gorgonia.Add(sum, gorgonia.NewConstant(1e-12))
	if err != nil {
		return nil, errors.Wrap(err, "Can't do (x+eps)")
	}
	return gorgonia.Sqrt(sum)
}

package patchgan_go

import (
	"github.com/pkg/errors"
	"gorgonia.org/gorgonia"
)

// HingeDLoss Hinge variant of the discriminator loss, standard for stabilizing adversarial training.
// See ref. https://paperswithcode.com/method/gan-hinge-loss
//
// Evaluates 0.5 * (mean(relu(1 - logitsReal)) + mean(relu(1 + logitsFake))).
// Reaches zero when every real logit is above +1 and every fake logit is below -1.
//
func HingeDLoss(logitsReal, logitsFake *gorgonia.Node) (*gorgonia.Node, error) {
	onesReal := gorgonia.NewTensor(logitsReal.Graph(), logitsReal.Dtype(), logitsReal.Dims(), gorgonia.WithShape(logitsReal.Shape()...), gorgonia.WithInit(gorgonia.Ones()))
	marginReal, err := gorgonia.Sub(onesReal, logitsReal)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do (1-A)")
	}
	hingeReal, err := gorgonia.Rectify(marginReal)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do relu(x)")
	}
	lossReal, err := gorgonia.Mean(hingeReal)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do mean(x)")
	}
	onesFake := gorgonia.NewTensor(logitsFake.Graph(), logitsFake.Dtype(), logitsFake.Dims(), gorgonia.WithShape(logitsFake.Shape()...), gorgonia.WithInit(gorgonia.Ones()))
	marginFake, err := gorgonia.Add(onesFake, logitsFake)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do (1+B)")
	}
	hingeFake, err := gorgonia.Rectify(marginFake)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do relu(x)")
	}
	lossFake, err := gorgonia.Mean(hingeFake)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do mean(x)")
	}
	lossSum, err := gorgonia.Add(lossReal, lossFake)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do (x+y)")
	}
	scaled, err := gorgonia.Mul(gorgonia.NewConstant(0.5), lossSum)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do (0.5*x)")
	}
	return scaled, nil
}

// HingeGLoss Hinge variant of the generator loss.
//
// Evaluates mean(relu(1 - logitsFake)): the generator is rewarded for pushing
// the discriminator's fake logits above +1.
//
func HingeGLoss(logitsFake *gorgonia.Node) (*gorgonia.Node, error) {
	ones := gorgonia.NewTensor(logitsFake.Graph(), logitsFake.Dtype(), logitsFake.Dims(), gorgonia.WithShape(logitsFake.Shape()...), gorgonia.WithInit(gorgonia.Ones()))
	margin, err := gorgonia.Sub(ones, logitsFake)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do (1-A)")
	}
	hinge, err := gorgonia.Rectify(margin)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do relu(x)")
	}
	loss, err := gorgonia.Mean(hinge)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do mean(x)")
	}
	return loss, nil
}

package patchgan_go

import (
	"image/color"
	"math/rand"

	"github.com/pkg/errors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gorgonia.org/tensor"
)

// NormRandImages Return reference to tensor.Dense image batch filled with normally distributed float64 values
//
// rnd - explicit pseudo-random source
// batchSize, channels, height, width - resulting shape (batchSize, channels, height, width)
//
func NormRandImages(rnd *rand.Rand, batchSize, channels, height, width int) *tensor.Dense {
	data := make([]float64, batchSize*channels*height*width)
	for i := range data {
		data[i] = rnd.NormFloat64()
	}
	return tensor.New(tensor.WithShape(batchSize, channels, height, width), tensor.WithBacking(data))
}

// UniformRandImages Return reference to tensor.Dense image batch filled with pseudo-random float64 values in range [0.0,1.0)
//
// rnd - explicit pseudo-random source
// batchSize, channels, height, width - resulting shape (batchSize, channels, height, width)
//
func UniformRandImages(rnd *rand.Rand, batchSize, channels, height, width int) *tensor.Dense {
	data := make([]float64, batchSize*channels*height*width)
	for i := range data {
		data[i] = rnd.Float64()
	}
	return tensor.New(tensor.WithShape(batchSize, channels, height, width), tensor.WithBacking(data))
}

// PlotLossCurve Plot chart for loss values over training steps
func PlotLossCurve(losses []float64, fname string) error {
	lineData := make(plotter.XYs, len(losses))
	for i, loss := range losses {
		lineData[i].X = float64(i)
		lineData[i].Y = loss
	}
	line, err := plotter.NewLine(lineData)
	if err != nil {
		return errors.Wrap(err, "Can't init new line")
	}
	line.Color = color.RGBA{R: 255, B: 128, A: 255}
	p := plot.New()
	p.X.Label.Text = "Step"
	p.Y.Label.Text = "Loss"
	p.Add(plotter.NewGrid())
	p.Add(line)
	// Save the plot to a PNG file.
	if err := p.Save(4*vg.Inch, 4*vg.Inch, fname); err != nil {
		return errors.Wrap(err, "Can't save plot")
	}
	return nil
}

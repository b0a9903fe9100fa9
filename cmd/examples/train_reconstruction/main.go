package main

import (
	"fmt"
	"math"
	"math/rand"

	patchgan "github.com/reidsanders/patchgan-go"
	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

var (
	learningRate = 0.0002
	batchSize    = 8
	imgChannels  = 3
	patchSize    = 16
	stemChannel  = 32
	numResBlocks = 2
	resChannel   = 16
	noiseLevel   = 0.3
	numSteps     = 200
)

func main() {
	rnd := rand.New(rand.NewSource(42))

	/* Define Gorgonia's graph */
	g := gorgonia.NewGraph()

	/* Define structure of paired reconstruction discriminator */
	disc, err := patchgan.NewPatchReconstructionDiscriminator(g, rnd, patchSize, imgChannels, stemChannel, numResBlocks, resChannel)
	if err != nil {
		panic(err)
	}

	/* Prepare tensors for input values: batches are already patch-sized */
	realsInput := gorgonia.NewTensor(g, gorgonia.Float64, 4, gorgonia.WithShape(batchSize, imgChannels, patchSize, patchSize), gorgonia.WithName("reconstruction_reals_input"))
	fakesInput := gorgonia.NewTensor(g, gorgonia.Float64, 4, gorgonia.WithShape(batchSize, imgChannels, patchSize, patchSize), gorgonia.WithName("reconstruction_fakes_input"))

	/* Prepare cost node */
	cost, err := disc.DLoss(realsInput, fakesInput)
	if err != nil {
		panic(err)
	}
	gorgonia.WithName("reconstruction_discriminator_loss")(cost)

	/* Prepare generator-side loss node for monitoring */
	genCost, err := disc.GLoss(realsInput, fakesInput)
	if err != nil {
		panic(err)
	}
	gorgonia.WithName("reconstruction_generator_loss")(genCost)

	/* Define gradients */
	_, err = gorgonia.Grad(cost, disc.Learnables()...)
	if err != nil {
		panic(err)
	}

	/* Prepare variables for storing loss values */
	var costOut, genCostOut gorgonia.Value
	gorgonia.Read(cost, &costOut)
	gorgonia.Read(genCost, &genCostOut)

	/* Define tape machine */
	tm := gorgonia.NewTapeMachine(g, gorgonia.BindDualValues(disc.Learnables()...))
	defer tm.Close()

	/* Initialize solver for evaluation graph */
	solver := gorgonia.NewAdamSolver(gorgonia.WithBatchSize(float64(batchSize)), gorgonia.WithLearnRate(learningRate))

	/* Train discriminator to tell (clean, noised) pairs from (noised, clean) ones */
	lossHistory := make([]float64, 0, numSteps)
	for step := 0; step < numSteps; step++ {
		reals := sinusoidImages(rnd, batchSize, imgChannels, patchSize, patchSize)
		fakes := noisedCopy(rnd, reals, noiseLevel)
		err = gorgonia.Let(realsInput, reals)
		if err != nil {
			panic(err)
		}
		err = gorgonia.Let(fakesInput, fakes)
		if err != nil {
			panic(err)
		}
		/* Fresh random crops for this step */
		err = disc.Resample()
		if err != nil {
			panic(err)
		}

		/* Run training step */
		err = tm.RunAll()
		if err != nil {
			panic(err)
		}
		err = solver.Step(gorgonia.NodesToValueGrads(disc.Learnables()))
		if err != nil {
			panic(err)
		}
		tm.Reset()

		lossHistory = append(lossHistory, costOut.Data().(float64))
		if step%20 == 0 {
			fmt.Printf("Step %d:\td_loss = %v\tg_loss = %v\n", step, costOut, genCostOut)
		}
	}
	fmt.Printf("Final:\td_loss = %v\tg_loss = %v\n", costOut, genCostOut)

	/* Save loss curve */
	err = patchgan.PlotLossCurve(lossHistory, "reconstruction_d_loss.png")
	if err != nil {
		panic(err)
	}
	fmt.Println("Loss curve saved to reconstruction_d_loss.png")
}

// sinusoidImages Smooth images with random phases standing in for ground truth
func sinusoidImages(rnd *rand.Rand, batchSize, channels, height, width int) *tensor.Dense {
	data := make([]float64, batchSize*channels*height*width)
	idx := 0
	for b := 0; b < batchSize; b++ {
		phaseY := rnd.Float64() * 2 * math.Pi
		phaseX := rnd.Float64() * 2 * math.Pi
		for c := 0; c < channels; c++ {
			for y := 0; y < height; y++ {
				for x := 0; x < width; x++ {
					data[idx] = 0.5 + 0.25*math.Sin(phaseY+float64(y)/4) + 0.25*math.Sin(phaseX+float64(x)/4)
					idx++
				}
			}
		}
	}
	return tensor.New(tensor.WithShape(batchSize, channels, height, width), tensor.WithBacking(data))
}

// noisedCopy Ground truth plus uniform noise standing in for a lossy reconstruction
func noisedCopy(rnd *rand.Rand, images *tensor.Dense, level float64) *tensor.Dense {
	noised := images.Clone().(*tensor.Dense)
	data := noised.Data().([]float64)
	for i := range data {
		data[i] += (rnd.Float64() - 0.5) * 2 * level
	}
	return noised
}

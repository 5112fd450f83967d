package trainer

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"gorgonia.org/tensor"
	"k8s.io/klog/v2"

	"github.com/IrisRainbowNeko/sample-watermark-eraser/internal/checkpoint"
	"github.com/IrisRainbowNeko/sample-watermark-eraser/internal/dataset"
	"github.com/IrisRainbowNeko/sample-watermark-eraser/internal/metrics"
	"github.com/IrisRainbowNeko/sample-watermark-eraser/internal/model"
	"github.com/IrisRainbowNeko/sample-watermark-eraser/internal/reduce"
)

// Adversarial comparison labels.
const (
	realLabel float32 = 1.0
	fakeLabel float32 = 0.0
)

// The discriminator loss sums three adversarial terms and halves the total.
const dLossDivisor = 2.0

// Loader streams one full pass over a dataset per Batches call.
type Loader interface {
	Batches(ctx context.Context) (<-chan dataset.Batch, <-chan error)
	Len() int
}

// Optimizer applies accumulated gradients to its parameter set.
type Optimizer interface {
	Step()
	LR() float64
}

// Config captures the knobs required by the training loop.
type Config struct {
	Epochs    int
	LogEvery  int
	Alpha     float64
	NormMean  float32
	NormStd   float32
	EvalTotal int // evaluation samples across every worker
	OutputDir string
	IsMain    bool // the designated logging/checkpoint worker
}

// Trainer drives the alternating generator/discriminator optimization.
type Trainer struct {
	cfg     Config
	netG    model.Network
	netD    model.Network
	optG    Optimizer
	optD    Optimizer
	train   Loader
	eval    Loader
	reducer reduce.Reducer
	window  metrics.Window
}

// New wires a Trainer. EvalTotal defaults to the local evaluation set size,
// which is only correct for single-worker runs; multi-worker callers must
// pass the full dataset size.
func New(cfg Config, netG, netD model.Network, optG, optD Optimizer, train, eval Loader, reducer reduce.Reducer) (*Trainer, error) {
	if cfg.Epochs <= 0 {
		return nil, errors.New("trainer: epochs must be > 0")
	}
	if cfg.Alpha < 0 {
		return nil, errors.New("trainer: alpha must be >= 0")
	}
	if cfg.LogEvery <= 0 {
		cfg.LogEvery = 20
	}
	if cfg.NormStd == 0 {
		cfg.NormMean = 0.5
		cfg.NormStd = 0.5
	}
	if netG == nil || netD == nil {
		return nil, errors.New("trainer: both networks are required")
	}
	if reducer == nil {
		reducer = reduce.Noop{}
	}
	if cfg.EvalTotal <= 0 {
		cfg.EvalTotal = eval.Len()
	}
	return &Trainer{
		cfg:     cfg,
		netG:    netG,
		netD:    netD,
		optG:    optG,
		optD:    optD,
		train:   train,
		eval:    eval,
		reducer: reducer,
	}, nil
}

// Run executes the full training workload: per epoch a complete pass over
// the training data, an evaluation pass, and a generator checkpoint on the
// main worker. Any failure is final; there are no retries.
func (t *Trainer) Run(ctx context.Context) error {
	for ep := 0; ep < t.cfg.Epochs; ep++ {
		if err := t.trainEpoch(ctx, ep); err != nil {
			return err
		}
		if err := t.evaluate(ctx, ep); err != nil {
			return err
		}
		if t.cfg.IsMain {
			if _, err := checkpoint.Save(t.cfg.OutputDir, ep, t.optG.LR(), t.netG.Params()); err != nil {
				return err
			}
		}
	}
	return nil
}

func (t *Trainer) trainEpoch(ctx context.Context, epoch int) error {
	batches, errs := t.train.Batches(ctx)
	step := 0
	for {
		startData := time.Now()
		batch, ok, err := nextBatch(ctx, batches, errs)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		dataTime := time.Since(startData)

		startCompute := time.Now()
		lossG, fakeA, err := t.generatorStep(batch)
		if err != nil {
			return errors.Wrapf(err, "trainer: generator step %d", step)
		}
		lossD, err := t.discriminatorStep(batch, fakeA)
		if err != nil {
			return errors.Wrapf(err, "trainer: discriminator step %d", step)
		}
		computeTime := time.Since(startCompute)

		step++
		t.window.Record(batch.Size(), dataTime, computeTime, lossG, lossD)
		if step%t.cfg.LogEvery == 0 {
			snap := t.window.Snapshot(t.cfg.LogEvery)
			if t.cfg.IsMain {
				klog.Infof("epoch=%d/%d step=%d loss_g=%.3e loss_d=%.3e lr=%.3e images_per_sec=%.1f",
					epoch+1, t.cfg.Epochs, step, snap.MeanLossG, snap.MeanLossD, t.optG.LR(), snap.ImagesPerSec)
			}
		}
	}
}

// generatorStep optimizes the generator against a frozen discriminator and
// returns the loss together with the restored real input, which the
// discriminator phase consumes detached.
func (t *Trainer) generatorStep(b dataset.Batch) (float64, *tensor.Dense, error) {
	t.netG.SetMode(model.Train)
	t.netD.SetMode(model.Frozen)
	model.ZeroGrads(t.netG.Params())

	fakeA, err := t.netG.Apply(b.Marked)
	if err != nil {
		return 0, nil, err
	}
	fakeB, err := t.netG.Apply(b.Aux)
	if err != nil {
		return 0, nil, err
	}
	predFakeA, err := t.netD.Apply(fakeA.Output)
	if err != nil {
		return 0, nil, err
	}

	advLoss := model.MSE(predFakeA.Output, realLabel)
	reconLoss, err := model.SmoothL1(b.Clean, fakeB.Output)
	if err != nil {
		return 0, nil, err
	}
	lossG := advLoss + t.cfg.Alpha*reconLoss

	// The frozen discriminator passes gradients through to the generator
	// without accumulating any of its own.
	gradFakeA, err := predFakeA.Backward(model.MSEGrad(predFakeA.Output, realLabel))
	if err != nil {
		return 0, nil, err
	}
	if _, err := fakeA.Backward(gradFakeA); err != nil {
		return 0, nil, err
	}
	reconGrad, err := model.SmoothL1Grad(b.Clean, fakeB.Output)
	if err != nil {
		return 0, nil, err
	}
	scaleInPlace(reconGrad, float32(t.cfg.Alpha))
	if _, err := fakeB.Backward(reconGrad); err != nil {
		return 0, nil, err
	}
	t.optG.Step()

	return lossG, fakeA.Output, nil
}

// discriminatorStep optimizes the discriminator on three targets: the clean
// reference (real), the generator output (fake) and the watermarked original
// (fake as well — a real-but-marked image is a negative example).
func (t *Trainer) discriminatorStep(b dataset.Batch, fakeA *tensor.Dense) (float64, error) {
	t.netG.SetMode(model.Frozen)
	t.netD.SetMode(model.Train)
	model.ZeroGrads(t.netD.Params())

	// fakeA arrives as a bare tensor: the generator's activation record
	// stayed behind in the generator phase, so no gradient can reach it.
	terms := []struct {
		input *tensor.Dense
		label float32
	}{
		{b.Clean, realLabel},
		{fakeA, fakeLabel},
		{b.Marked, fakeLabel},
	}

	var lossD float64
	for _, term := range terms {
		res, err := t.netD.Apply(term.input)
		if err != nil {
			return 0, err
		}
		lossD += model.MSE(res.Output, term.label)
		grad := model.MSEGrad(res.Output, term.label)
		scaleInPlace(grad, 1/float32(dLossDivisor))
		if _, err := res.Backward(grad); err != nil {
			return 0, err
		}
	}
	lossD /= dLossDivisor
	t.optD.Step()

	return lossD, nil
}

func nextBatch(ctx context.Context, batches <-chan dataset.Batch, errs <-chan error) (dataset.Batch, bool, error) {
	for {
		select {
		case <-ctx.Done():
			return dataset.Batch{}, false, ctx.Err()
		case err, ok := <-errs:
			if ok && err != nil {
				return dataset.Batch{}, false, err
			}
			if !ok {
				errs = nil
			}
		case batch, ok := <-batches:
			if !ok {
				return dataset.Batch{}, false, nil
			}
			return batch, true, nil
		}
	}
}

func scaleInPlace(t *tensor.Dense, s float32) {
	data := t.Data().([]float32)
	for i := range data {
		data[i] *= s
	}
}

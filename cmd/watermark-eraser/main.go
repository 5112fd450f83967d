package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"k8s.io/klog/v2"

	"github.com/IrisRainbowNeko/sample-watermark-eraser/internal/config"
	"github.com/IrisRainbowNeko/sample-watermark-eraser/internal/dataset"
	"github.com/IrisRainbowNeko/sample-watermark-eraser/internal/imaging"
	"github.com/IrisRainbowNeko/sample-watermark-eraser/internal/model"
	"github.com/IrisRainbowNeko/sample-watermark-eraser/internal/reduce"
	"github.com/IrisRainbowNeko/sample-watermark-eraser/internal/trainer"
)

func main() {
	klog.InitFlags(nil)
	cfgPath := flag.String("config", "configs/train.yaml", "Path to YAML config")
	outDir := flag.String("out-dir", "", "Override checkpoint output directory")
	epochs := flag.Int("epochs", 0, "Number of training epochs")
	batchSize := flag.Int("batch-size", 0, "Batch size")
	lr := flag.Float64("lr", 0, "Learning rate for both optimizers")
	alpha := flag.Float64("alpha", 0, "Reconstruction loss weight")
	logEvery := flag.Int("log-every", 0, "Log every N steps")
	numWorkers := flag.Int("num-workers", 0, "Number of data loader workers")
	seed := flag.Int64("seed", 0, "PRNG seed")

	flag.Parse()
	defer klog.Flush()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		klog.Fatalf("failed to load config: %v", err)
	}

	cfg.ApplyOverrides(config.Overrides{
		OutputDir:    *outDir,
		Epochs:       *epochs,
		BatchSize:    *batchSize,
		LearningRate: *lr,
		Alpha:        *alpha,
		LogEvery:     *logEvery,
		NumWorkers:   *numWorkers,
		Seed:         *seed,
	})

	if err := cfg.Validate(); err != nil {
		klog.Fatalf("invalid config: %v", err)
	}

	trainSrc, err := dataset.NewPairSource(cfg.TrainRootMarked, cfg.TrainRootClean, cfg.TrainRootSynth)
	if err != nil {
		klog.Fatalf("build training set: %v", err)
	}
	evalSrc, err := dataset.NewPairSource(cfg.TestRootMarked, cfg.TestRootClean, cfg.TestRootMask)
	if err != nil {
		klog.Fatalf("build evaluation set: %v", err)
	}
	klog.Infof("train_samples=%d eval_samples=%d", trainSrc.Len(), evalSrc.Len())

	const normMean, normStd = 0.5, 0.5
	transform := imaging.PadResize{Size: cfg.ImageSize, Pad: true}
	trainLoader := dataset.NewLoader(trainSrc, dataset.LoaderOptions{
		Transform:  transform,
		Mean:       normMean,
		Std:        normStd,
		BatchSize:  cfg.BatchSize,
		NumWorkers: cfg.NumWorkers,
		Seed:       cfg.Seed,
		Shuffle:    true,
	})
	evalLoader := dataset.NewLoader(evalSrc, dataset.LoaderOptions{
		Transform:  transform,
		Mean:       normMean,
		Std:        normStd,
		BatchSize:  cfg.BatchSize,
		NumWorkers: cfg.NumWorkers,
		Seed:       cfg.Seed,
	})

	netG := model.NewRestorer(cfg.Seed)
	netD := model.NewCritic(3, cfg.ImageSize, cfg.ImageSize, cfg.Seed)
	optG := model.NewAdamW(netG.Params(), cfg.LearningRate)
	optD := model.NewAdamW(netD.Params(), cfg.LearningRate)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tr, err := trainer.New(trainer.Config{
		Epochs:    cfg.Epochs,
		LogEvery:  cfg.LogEvery,
		Alpha:     cfg.Alpha,
		NormMean:  normMean,
		NormStd:   normStd,
		OutputDir: cfg.OutputDir,
		IsMain:    true,
	}, netG, netD, optG, optD, trainLoader, evalLoader, reduce.Noop{})
	if err != nil {
		klog.Fatalf("build trainer: %v", err)
	}

	if err := tr.Run(ctx); err != nil {
		klog.Fatalf("training failed: %v", err)
	}
}

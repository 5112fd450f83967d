package metrics

import "time"

// Window accumulates the per-step training losses and timings between two
// logging checkpoints.
type Window struct {
	samples int
	data    time.Duration
	compute time.Duration
	steps   int
	lossG   float64
	lossD   float64
}

// Record adds one optimization step to the window.
func (w *Window) Record(batchSize int, dataTime, computeTime time.Duration, lossG, lossD float64) {
	w.samples += batchSize
	w.data += dataTime
	w.compute += computeTime
	w.steps++
	w.lossG += lossG
	w.lossD += lossD
}

// Snapshot returns aggregated metrics and resets the window. Loss sums are
// divided by the configured window length, not the recorded step count.
func (w *Window) Snapshot(window int) Snapshot {
	snap := Snapshot{}
	total := w.data + w.compute
	if total > 0 {
		snap.ImagesPerSec = float64(w.samples) / total.Seconds()
	}
	if w.steps > 0 {
		snap.AvgDataMS = (w.data.Seconds() * 1000) / float64(w.steps)
		snap.AvgComputeMS = (w.compute.Seconds() * 1000) / float64(w.steps)
	}
	if window > 0 {
		snap.MeanLossG = w.lossG / float64(window)
		snap.MeanLossD = w.lossD / float64(window)
	}

	w.samples = 0
	w.data = 0
	w.compute = 0
	w.steps = 0
	w.lossG = 0
	w.lossD = 0
	return snap
}

// Snapshot represents loggable metrics.
type Snapshot struct {
	ImagesPerSec float64
	AvgDataMS    float64
	AvgComputeMS float64
	MeanLossG    float64
	MeanLossD    float64
}

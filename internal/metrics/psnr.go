package metrics

import (
	"math"

	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// MaxPSNR bounds the per-sample score. A zero-MSE sample would otherwise
// yield +Inf, which must never enter the distributed sum.
const MaxPSNR = 100.0

// PSNR computes the peak signal-to-noise ratio between a predicted and a
// reference NCHW batch, one score per sample. Both tensors are denormalized
// as x*std+mean back to [0,1] and clamped before the comparison.
func PSNR(pred, ref *tensor.Dense, mean, std float32) ([]float64, error) {
	if !pred.Shape().Eq(ref.Shape()) {
		return nil, errors.Errorf("psnr: shape %v vs %v", pred.Shape(), ref.Shape())
	}
	shape := pred.Shape()
	if len(shape) != 4 {
		return nil, errors.Errorf("psnr: want NCHW batch, got %v", shape)
	}
	n := shape[0]
	stride := shape[1] * shape[2] * shape[3]
	pv := pred.Data().([]float32)
	rv := ref.Data().([]float32)

	scores := make([]float64, n)
	for s := 0; s < n; s++ {
		var mse float64
		for i := s * stride; i < (s+1)*stride; i++ {
			d := float64(denorm(pv[i], mean, std)) - float64(denorm(rv[i], mean, std))
			mse += d * d
		}
		mse /= float64(stride)
		if mse == 0 {
			scores[s] = MaxPSNR
			continue
		}
		score := 10 * math.Log10(1/mse)
		if score > MaxPSNR {
			score = MaxPSNR
		}
		scores[s] = score
	}
	return scores, nil
}

func denorm(v, mean, std float32) float32 {
	d := v*std + mean
	if d < 0 {
		return 0
	}
	if d > 1 {
		return 1
	}
	return d
}

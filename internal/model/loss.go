package model

import (
	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// MSE is the adversarial criterion: mean squared distance between a score
// tensor and a broadcast scalar label.
func MSE(pred *tensor.Dense, label float32) float64 {
	data := pred.Data().([]float32)
	var sum float64
	for _, v := range data {
		d := float64(v - label)
		sum += d * d
	}
	return sum / float64(len(data))
}

// MSEGrad is the gradient of MSE with respect to pred.
func MSEGrad(pred *tensor.Dense, label float32) *tensor.Dense {
	data := pred.Data().([]float32)
	grad := make([]float32, len(data))
	scale := 2 / float32(len(data))
	for i, v := range data {
		grad[i] = scale * (v - label)
	}
	shape := pred.Shape()
	return tensor.New(tensor.WithShape([]int(shape)...), tensor.WithBacking(grad))
}

// SmoothL1 is the reconstruction criterion: Huber loss with beta=1 and mean
// reduction. Quadratic inside the unit band, linear outside.
func SmoothL1(target, pred *tensor.Dense) (float64, error) {
	if !target.Shape().Eq(pred.Shape()) {
		return 0, errors.Errorf("smooth l1: shape %v vs %v", target.Shape(), pred.Shape())
	}
	tv := target.Data().([]float32)
	pv := pred.Data().([]float32)
	var sum float64
	for i := range tv {
		d := float64(tv[i] - pv[i])
		if d < 0 {
			d = -d
		}
		if d < 1 {
			sum += 0.5 * d * d
		} else {
			sum += d - 0.5
		}
	}
	return sum / float64(len(tv)), nil
}

// SmoothL1Grad is the gradient of SmoothL1 with respect to pred.
func SmoothL1Grad(target, pred *tensor.Dense) (*tensor.Dense, error) {
	if !target.Shape().Eq(pred.Shape()) {
		return nil, errors.Errorf("smooth l1: shape %v vs %v", target.Shape(), pred.Shape())
	}
	tv := target.Data().([]float32)
	pv := pred.Data().([]float32)
	grad := make([]float32, len(tv))
	inv := 1 / float32(len(tv))
	for i := range tv {
		d := pv[i] - tv[i]
		switch {
		case d > 1:
			grad[i] = inv
		case d < -1:
			grad[i] = -inv
		default:
			grad[i] = d * inv
		}
	}
	shape := pred.Shape()
	return tensor.New(tensor.WithShape([]int(shape)...), tensor.WithBacking(grad)), nil
}

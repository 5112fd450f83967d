package model

import "math"

// AdamW implements Adam with decoupled weight decay over a parameter list.
type AdamW struct {
	params      []*Param
	lr          float64
	beta1       float64
	beta2       float64
	eps         float64
	weightDecay float64
	t           int
	m           [][]float32
	v           [][]float32
}

// NewAdamW creates an AdamW optimizer with the torch defaults for betas,
// epsilon and weight decay. Params are updated in place by Step.
func NewAdamW(params []*Param, lr float64) *AdamW {
	m := make([][]float32, len(params))
	v := make([][]float32, len(params))
	for i, p := range params {
		m[i] = make([]float32, len(p.Data))
		v[i] = make([]float32, len(p.Data))
	}
	return &AdamW{
		params:      params,
		lr:          lr,
		beta1:       0.9,
		beta2:       0.999,
		eps:         1e-8,
		weightDecay: 0.01,
		m:           m,
		v:           v,
	}
}

// LR reports the current learning rate.
func (a *AdamW) LR() float64 { return a.lr }

// Step applies one update from the accumulated gradients.
func (a *AdamW) Step() {
	a.t++
	c1 := 1 - math.Pow(a.beta1, float64(a.t))
	c2 := 1 - math.Pow(a.beta2, float64(a.t))
	for i, p := range a.params {
		mF := a.m[i]
		vF := a.v[i]
		for j, g := range p.Grad {
			// Decoupled weight decay, then the Adam moment update.
			p.Data[j] -= float32(a.lr * a.weightDecay * float64(p.Data[j]))
			mF[j] = float32(a.beta1)*mF[j] + float32(1-a.beta1)*g
			vF[j] = float32(a.beta2)*vF[j] + float32(1-a.beta2)*g*g
			mHat := float64(mF[j]) / c1
			vHat := float64(vF[j]) / c2
			p.Data[j] -= float32(a.lr * mHat / (math.Sqrt(vHat) + a.eps))
		}
	}
}

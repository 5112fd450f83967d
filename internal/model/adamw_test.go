package model

import (
	"math"
	"testing"
)

func TestAdamWFirstStep(t *testing.T) {
	p := &Param{Name: "p", Shape: []int{1}, Data: []float32{1}, Grad: []float32{1}}
	opt := NewAdamW([]*Param{p}, 0.1)
	opt.Step()
	// Decay shifts 1 to 0.999; bias-corrected first step moves by ~lr.
	want := 0.999 - 0.1
	if math.Abs(float64(p.Data[0])-want) > 1e-4 {
		t.Fatalf("expected ~%f after first step, got %f", want, p.Data[0])
	}
}

func TestAdamWStepsTowardMinimum(t *testing.T) {
	p := &Param{Name: "p", Shape: []int{1}, Data: []float32{5}, Grad: []float32{0}}
	opt := NewAdamW([]*Param{p}, 0.05)
	for i := 0; i < 200; i++ {
		p.ZeroGrad()
		p.Grad[0] = 2 * p.Data[0] // d/dp of p^2
		opt.Step()
	}
	if math.Abs(float64(p.Data[0])) > 0.5 {
		t.Fatalf("expected parameter near 0, got %f", p.Data[0])
	}
}

package model

import (
	"math"
	"testing"

	"gorgonia.org/tensor"
)

func identityRestorer() *Restorer {
	r := NewRestorer(1)
	for i := range r.w.Data {
		r.w.Data[i] = 0
	}
	r.w.Data[0] = 1
	r.w.Data[4] = 1
	r.w.Data[8] = 1
	for i := range r.b.Data {
		r.b.Data[i] = 0
	}
	return r
}

func TestRestorerIdentityForward(t *testing.T) {
	r := identityRestorer()
	x := tensor.New(tensor.WithShape(1, 3, 2, 2), tensor.WithBacking([]float32{
		1, 2, 3, 4,
		5, 6, 7, 8,
		9, 10, 11, 12,
	}))
	res, err := r.Apply(x)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if !res.Output.Shape().Eq(x.Shape()) {
		t.Fatalf("shape changed: %v", res.Output.Shape())
	}
	out := res.Output.Data().([]float32)
	for i, v := range x.Data().([]float32) {
		if math.Abs(float64(out[i]-v)) > 1e-6 {
			t.Fatalf("identity map changed element %d: %f vs %f", i, out[i], v)
		}
	}
}

func TestRestorerBackwardAccumulatesWhenTrainable(t *testing.T) {
	r := identityRestorer()
	r.SetMode(Train)
	x := tensor.New(tensor.WithShape(1, 3, 1, 1), tensor.WithBacking([]float32{2, 3, 4}))
	res, err := r.Apply(x)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	dy := tensor.New(tensor.WithShape(1, 3, 1, 1), tensor.WithBacking([]float32{1, 0, 0}))
	dx, err := res.Backward(dy)
	if err != nil {
		t.Fatalf("Backward: %v", err)
	}
	// dL/dx_k = sum_c w[c,k] dy_c = dy_0 for the identity map.
	got := dx.Data().([]float32)
	if got[0] != 1 || got[1] != 0 || got[2] != 0 {
		t.Fatalf("unexpected input gradient %v", got)
	}
	// dL/dW[0,k] = dy_0 * x_k.
	if r.w.Grad[0] != 2 || r.w.Grad[1] != 3 || r.w.Grad[2] != 4 {
		t.Fatalf("unexpected weight gradient %v", r.w.Grad[:3])
	}
	if r.b.Grad[0] != 1 {
		t.Fatalf("unexpected bias gradient %v", r.b.Grad)
	}
}

func TestRestorerFrozenSkipsParamGrads(t *testing.T) {
	r := identityRestorer()
	r.SetMode(Frozen)
	x := tensor.New(tensor.WithShape(1, 3, 1, 1), tensor.WithBacking([]float32{2, 3, 4}))
	res, err := r.Apply(x)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	dy := tensor.New(tensor.WithShape(1, 3, 1, 1), tensor.WithBacking([]float32{1, 1, 1}))
	dx, err := res.Backward(dy)
	if err != nil {
		t.Fatalf("Backward: %v", err)
	}
	if dx.Data().([]float32)[0] != 1 {
		t.Fatal("frozen network must still propagate input gradients")
	}
	for _, g := range append(append([]float32{}, r.w.Grad...), r.b.Grad...) {
		if g != 0 {
			t.Fatalf("frozen network accumulated parameter gradient %v %v", r.w.Grad, r.b.Grad)
		}
	}
}

func TestRestorerRejectsBadShape(t *testing.T) {
	r := NewRestorer(1)
	x := tensor.New(tensor.WithShape(1, 1, 2, 2), tensor.WithBacking(make([]float32, 4)))
	if _, err := r.Apply(x); err == nil {
		t.Fatal("expected shape error for single-channel input")
	}
}

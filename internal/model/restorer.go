package model

import (
	"math/rand"

	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// Restorer is a small restoration network: a 1x1 channel-mixing affine map
// applied at every pixel. It preserves the input shape, so it can stand in
// for any shape-preserving generator.
type Restorer struct {
	mode Mode
	w    *Param // [3,3] channel mixing matrix
	b    *Param // [3] per-channel bias
}

// NewRestorer constructs a Restorer initialized near the identity map.
func NewRestorer(seed int64) *Restorer {
	rng := rand.New(rand.NewSource(seed))
	w := make([]float32, 9)
	for i := range w {
		w[i] = float32(rng.Float64()*2-1) * 0.01
		if i%4 == 0 {
			w[i] += 1 // diagonal
		}
	}
	return &Restorer{
		w: &Param{Name: "restorer.weight", Shape: []int{3, 3}, Data: w, Grad: make([]float32, 9)},
		b: &Param{Name: "restorer.bias", Shape: []int{3}, Data: make([]float32, 3), Grad: make([]float32, 3)},
	}
}

// Params returns the learnable parameters.
func (r *Restorer) Params() []*Param { return []*Param{r.w, r.b} }

// SetMode switches the role state.
func (r *Restorer) SetMode(m Mode) { r.mode = m }

// Mode reports the current role state.
func (r *Restorer) Mode() Mode { return r.mode }

// Apply maps an (N,3,H,W) batch to a batch of identical shape.
func (r *Restorer) Apply(x *tensor.Dense) (*Result, error) {
	shape := x.Shape()
	if len(shape) != 4 || shape[1] != 3 {
		return nil, errors.Errorf("restorer: want (N,3,H,W) input, got %v", shape)
	}
	n, c := shape[0], shape[1]
	plane := shape[2] * shape[3]
	in := x.Data().([]float32)
	out := make([]float32, len(in))

	for s := 0; s < n; s++ {
		base := s * c * plane
		for oc := 0; oc < c; oc++ {
			bias := r.b.Data[oc]
			dst := out[base+oc*plane : base+(oc+1)*plane]
			for i := range dst {
				dst[i] = bias
			}
			for ic := 0; ic < c; ic++ {
				wv := r.w.Data[oc*c+ic]
				src := in[base+ic*plane : base+(ic+1)*plane]
				for i, v := range src {
					dst[i] += wv * v
				}
			}
		}
	}

	trainable := r.mode.Trainable
	output := tensor.New(tensor.WithShape(shape[0], shape[1], shape[2], shape[3]), tensor.WithBacking(out))
	return &Result{
		Output: output,
		backward: func(outGrad *tensor.Dense) (*tensor.Dense, error) {
			if !outGrad.Shape().Eq(output.Shape()) {
				return nil, errors.Errorf("restorer: gradient shape %v does not match output %v", outGrad.Shape(), output.Shape())
			}
			dy := outGrad.Data().([]float32)
			dx := make([]float32, len(in))
			for s := 0; s < n; s++ {
				base := s * c * plane
				for oc := 0; oc < c; oc++ {
					g := dy[base+oc*plane : base+(oc+1)*plane]
					for ic := 0; ic < c; ic++ {
						wv := r.w.Data[oc*c+ic]
						dst := dx[base+ic*plane : base+(ic+1)*plane]
						src := in[base+ic*plane : base+(ic+1)*plane]
						var wg float32
						for i, gv := range g {
							dst[i] += wv * gv
							wg += gv * src[i]
						}
						if trainable {
							r.w.Grad[oc*c+ic] += wg
						}
					}
					if trainable {
						var bg float32
						for _, gv := range g {
							bg += gv
						}
						r.b.Grad[oc] += bg
					}
				}
			}
			return tensor.New(tensor.WithShape(shape[0], shape[1], shape[2], shape[3]), tensor.WithBacking(dx)), nil
		},
	}, nil
}

package model

import (
	"math/rand"

	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// Critic scores how clean an image batch looks: per-channel global mean
// pooling followed by a linear head. Output is an (N,1) score tensor
// comparable against the 0/1 adversarial labels.
type Critic struct {
	mode     Mode
	channels int
	height   int
	width    int
	w        *Param // [channels]
	b        *Param // [1]
}

// NewCritic constructs a Critic bound to a fixed (channels, height, width)
// input shape. Batches with any other spatial layout are rejected.
func NewCritic(channels, height, width int, seed int64) *Critic {
	rng := rand.New(rand.NewSource(seed))
	w := make([]float32, channels)
	for i := range w {
		w[i] = float32(rng.Float64()*2-1) * 0.01
	}
	return &Critic{
		channels: channels,
		height:   height,
		width:    width,
		w:        &Param{Name: "critic.weight", Shape: []int{channels}, Data: w, Grad: make([]float32, channels)},
		b:        &Param{Name: "critic.bias", Shape: []int{1}, Data: make([]float32, 1), Grad: make([]float32, 1)},
	}
}

// Params returns the learnable parameters.
func (cr *Critic) Params() []*Param { return []*Param{cr.w, cr.b} }

// SetMode switches the role state.
func (cr *Critic) SetMode(m Mode) { cr.mode = m }

// Mode reports the current role state.
func (cr *Critic) Mode() Mode { return cr.mode }

// Apply maps an (N,channels,height,width) batch to (N,1) scores.
func (cr *Critic) Apply(x *tensor.Dense) (*Result, error) {
	shape := x.Shape()
	if len(shape) != 4 || shape[1] != cr.channels || shape[2] != cr.height || shape[3] != cr.width {
		return nil, errors.Errorf("critic: want (N,%d,%d,%d) input, got %v", cr.channels, cr.height, cr.width, shape)
	}
	n := shape[0]
	plane := cr.height * cr.width
	in := x.Data().([]float32)

	// Per-sample channel means feed the linear head.
	means := make([]float32, n*cr.channels)
	out := make([]float32, n)
	for s := 0; s < n; s++ {
		score := cr.b.Data[0]
		for c := 0; c < cr.channels; c++ {
			src := in[(s*cr.channels+c)*plane : (s*cr.channels+c+1)*plane]
			var sum float32
			for _, v := range src {
				sum += v
			}
			m := sum / float32(plane)
			means[s*cr.channels+c] = m
			score += cr.w.Data[c] * m
		}
		out[s] = score
	}

	trainable := cr.mode.Trainable
	output := tensor.New(tensor.WithShape(n, 1), tensor.WithBacking(out))
	return &Result{
		Output: output,
		backward: func(outGrad *tensor.Dense) (*tensor.Dense, error) {
			if outGrad.Shape().TotalSize() != n {
				return nil, errors.Errorf("critic: gradient shape %v does not match output (%d,1)", outGrad.Shape(), n)
			}
			dy := outGrad.Data().([]float32)
			dx := make([]float32, len(in))
			inv := 1 / float32(plane)
			for s := 0; s < n; s++ {
				g := dy[s]
				for c := 0; c < cr.channels; c++ {
					if trainable {
						cr.w.Grad[c] += g * means[s*cr.channels+c]
					}
					dst := dx[(s*cr.channels+c)*plane : (s*cr.channels+c+1)*plane]
					dv := g * cr.w.Data[c] * inv
					for i := range dst {
						dst[i] = dv
					}
				}
				if trainable {
					cr.b.Grad[0] += g
				}
			}
			return tensor.New(tensor.WithShape(shape[0], shape[1], shape[2], shape[3]), tensor.WithBacking(dx)), nil
		},
	}, nil
}

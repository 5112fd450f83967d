package model

import "gorgonia.org/tensor"

// Mode is the runtime role state of a network. Trainable controls whether
// Backward accumulates parameter gradients; Training controls stochastic
// layer behavior. The step orchestration is the only writer.
type Mode struct {
	Trainable bool
	Training  bool
}

var (
	// Train marks the network being optimized in the current phase.
	Train = Mode{Trainable: true, Training: true}
	// Frozen marks the network that only participates in the forward graph.
	Frozen = Mode{Trainable: false, Training: false}
)

// Param is a named learnable tensor with its gradient accumulator.
type Param struct {
	Name  string
	Shape []int
	Data  []float32
	Grad  []float32
}

// ZeroGrad clears the gradient accumulator.
func (p *Param) ZeroGrad() {
	for i := range p.Grad {
		p.Grad[i] = 0
	}
}

// ZeroGrads clears every gradient accumulator in params.
func ZeroGrads(params []*Param) {
	for _, p := range params {
		p.ZeroGrad()
	}
}

// Network is an opaque differentiable function over NCHW batches.
type Network interface {
	// Apply runs a forward pass and returns a Result whose Backward
	// propagates gradients for this call. Each Apply carries its own
	// activation record, so multiple forward passes may be backpropagated
	// independently and in any order.
	Apply(x *tensor.Dense) (*Result, error)
	Params() []*Param
	SetMode(Mode)
	Mode() Mode
}

// Result is the activation record of one forward pass.
type Result struct {
	Output   *tensor.Dense
	backward func(outGrad *tensor.Dense) (*tensor.Dense, error)
}

// NewResult builds an activation record from an output tensor and the
// function that backpropagates through the pass that produced it.
func NewResult(output *tensor.Dense, backward func(outGrad *tensor.Dense) (*tensor.Dense, error)) *Result {
	return &Result{Output: output, backward: backward}
}

// Backward propagates outGrad through the recorded pass and returns the
// gradient with respect to the input. Parameter gradients are accumulated
// only if the network was trainable when Apply ran; a frozen network still
// returns input gradients so upstream networks can be reached through it.
// Never calling Backward detaches the pass from the graph.
func (r *Result) Backward(outGrad *tensor.Dense) (*tensor.Dense, error) {
	return r.backward(outGrad)
}

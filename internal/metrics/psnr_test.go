package metrics

import (
	"math"
	"testing"

	"gorgonia.org/tensor"
)

func TestPSNRKnownError(t *testing.T) {
	// Normalized values: denorm(v) = v*0.5+0.5. pred=0, ref=0.2 gives a
	// uniform pixel error of 0.1 and mse=0.01.
	pred := tensor.New(tensor.WithShape(1, 1, 2, 2), tensor.WithBacking([]float32{0, 0, 0, 0}))
	ref := tensor.New(tensor.WithShape(1, 1, 2, 2), tensor.WithBacking([]float32{0.2, 0.2, 0.2, 0.2}))
	scores, err := PSNR(pred, ref, 0.5, 0.5)
	if err != nil {
		t.Fatalf("PSNR: %v", err)
	}
	if len(scores) != 1 {
		t.Fatalf("expected one score per sample, got %d", len(scores))
	}
	want := 10 * math.Log10(1/0.01)
	if math.Abs(scores[0]-want) > 1e-3 {
		t.Fatalf("expected %.3f dB, got %.3f", want, scores[0])
	}
}

func TestPSNRIdenticalBatchesClamp(t *testing.T) {
	x := tensor.New(tensor.WithShape(2, 1, 1, 2), tensor.WithBacking([]float32{0.1, 0.2, 0.3, 0.4}))
	y := tensor.New(tensor.WithShape(2, 1, 1, 2), tensor.WithBacking([]float32{0.1, 0.2, 0.3, 0.4}))
	scores, err := PSNR(x, y, 0.5, 0.5)
	if err != nil {
		t.Fatalf("PSNR: %v", err)
	}
	for i, s := range scores {
		if s != MaxPSNR {
			t.Fatalf("sample %d: expected clamp to %v, got %f", i, MaxPSNR, s)
		}
	}
}

func TestPSNRPerSampleScores(t *testing.T) {
	pred := tensor.New(tensor.WithShape(2, 1, 1, 1), tensor.WithBacking([]float32{0, 0}))
	ref := tensor.New(tensor.WithShape(2, 1, 1, 1), tensor.WithBacking([]float32{0, 0.2}))
	scores, err := PSNR(pred, ref, 0.5, 0.5)
	if err != nil {
		t.Fatalf("PSNR: %v", err)
	}
	if scores[0] != MaxPSNR {
		t.Fatalf("first sample is exact, expected clamp, got %f", scores[0])
	}
	if scores[1] >= MaxPSNR {
		t.Fatalf("second sample has error, got %f", scores[1])
	}
}

func TestPSNRShapeMismatch(t *testing.T) {
	a := tensor.New(tensor.WithShape(1, 1, 1, 2), tensor.WithBacking([]float32{0, 0}))
	b := tensor.New(tensor.WithShape(1, 1, 2, 1), tensor.WithBacking([]float32{0, 0}))
	if _, err := PSNR(a, b, 0.5, 0.5); err == nil {
		t.Fatal("expected shape mismatch error")
	}
}

package dataset

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/IrisRainbowNeko/sample-watermark-eraser/internal/imaging"
)

func collectBatches(t *testing.T, l *Loader) []Batch {
	t.Helper()
	ctx := context.Background()
	batches, errCh := l.Batches(ctx)
	var out []Batch
	for batches != nil || errCh != nil {
		select {
		case b, ok := <-batches:
			if !ok {
				batches = nil
				continue
			}
			out = append(out, b)
		case err, ok := <-errCh:
			if !ok {
				errCh = nil
				continue
			}
			if err != nil {
				t.Fatalf("loader error: %v", err)
			}
			errCh = nil
		}
	}
	return out
}

func TestLoaderBatchShapes(t *testing.T) {
	marked, clean, aux := buildRoots(t, "a", "b", "c", "d", "e")
	src, err := NewPairSource(marked, clean, aux)
	if err != nil {
		t.Fatalf("NewPairSource: %v", err)
	}
	l := NewLoader(src, LoaderOptions{
		Transform:  imaging.PadResize{Size: 8, Pad: true},
		Mean:       0.5,
		Std:        0.5,
		BatchSize:  2,
		NumWorkers: 2,
	})

	batches := collectBatches(t, l)
	if len(batches) != 3 {
		t.Fatalf("expected 3 batches (2+2+1), got %d", len(batches))
	}
	for i, b := range batches[:2] {
		shape := b.Marked.Shape()
		if shape[0] != 2 || shape[1] != 3 || shape[2] != 8 || shape[3] != 8 {
			t.Fatalf("batch %d: unexpected shape %v", i, shape)
		}
		if !b.Clean.Shape().Eq(b.Marked.Shape()) || !b.Aux.Shape().Eq(b.Marked.Shape()) {
			t.Fatalf("batch %d: triple shapes diverge", i)
		}
	}
	if batches[2].Size() != 1 {
		t.Fatalf("final partial batch should hold 1 sample, got %d", batches[2].Size())
	}
}

func TestLoaderReleasesWorkersOnDecodeError(t *testing.T) {
	marked, clean, aux := buildRoots(t, "a", "b", "c", "d", "e", "f", "g", "h")
	if err := os.WriteFile(filepath.Join(marked, "a.png"), []byte("not an image"), 0o644); err != nil {
		t.Fatalf("corrupt fixture: %v", err)
	}
	src, err := NewPairSource(marked, clean, aux)
	if err != nil {
		t.Fatalf("NewPairSource: %v", err)
	}
	l := NewLoader(src, LoaderOptions{
		Transform: imaging.PadResize{Size: 4, Pad: true},
		Mean:      0.5, Std: 0.5,
		BatchSize: 1, NumWorkers: 2,
	})

	before := runtime.NumGoroutine()
	batches, errCh := l.Batches(context.Background())
	var decodeErr error
	for batches != nil || errCh != nil {
		select {
		case _, ok := <-batches:
			if !ok {
				batches = nil
			}
		case err, ok := <-errCh:
			if !ok {
				errCh = nil
				continue
			}
			decodeErr = err
		}
	}
	if decodeErr == nil {
		t.Fatal("expected a decode error")
	}

	// The failed pass must not leave the producer or workers blocked.
	deadline := time.Now().Add(2 * time.Second)
	for runtime.NumGoroutine() > before {
		if time.Now().After(deadline) {
			t.Fatalf("pipeline goroutines still running: %d > %d", runtime.NumGoroutine(), before)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestLoaderDeterministicOrderWithoutShuffle(t *testing.T) {
	marked, clean, aux := buildRoots(t, "a", "b", "c")
	src, err := NewPairSource(marked, clean, aux)
	if err != nil {
		t.Fatalf("NewPairSource: %v", err)
	}
	opts := LoaderOptions{
		Transform: imaging.PadResize{Size: 4, Pad: true},
		Mean:      0.5, Std: 0.5,
		BatchSize: 3, NumWorkers: 2,
	}

	first := collectBatches(t, NewLoader(src, opts))
	second := collectBatches(t, NewLoader(src, opts))
	if len(first) != 1 || len(second) != 1 {
		t.Fatalf("expected a single batch per pass")
	}
	a := first[0].Marked.Data().([]float32)
	b := second[0].Marked.Data().([]float32)
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("unshuffled passes differ at %d", i)
		}
	}
}

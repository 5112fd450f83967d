package dataset

import (
	"context"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"math/rand"
	"os"
	"sync"

	"github.com/pkg/errors"
	"gorgonia.org/tensor"

	"github.com/IrisRainbowNeko/sample-watermark-eraser/internal/imaging"
)

// Batch is an ordered triple of same-shaped NCHW tensors. Marked carries the
// watermarked inputs, Clean the references, Aux the synthetic-watermarked
// inputs (training) or masks (evaluation).
type Batch struct {
	Marked *tensor.Dense
	Clean  *tensor.Dense
	Aux    *tensor.Dense
}

// Size reports the number of samples in the batch.
func (b Batch) Size() int { return b.Marked.Shape()[0] }

// LoaderOptions configures a Loader.
type LoaderOptions struct {
	Transform  imaging.PadResize
	Mean       float32
	Std        float32
	BatchSize  int
	NumWorkers int
	Seed       int64
	Shuffle    bool
}

// Loader decodes paired samples with a worker pool and collates them into
// fixed-size batches. The final batch of a pass may be smaller.
type Loader struct {
	src  *PairSource
	opts LoaderOptions
	mu   sync.Mutex
	rng  *rand.Rand
}

// NewLoader wraps src with decode/transform/collate plumbing.
func NewLoader(src *PairSource, opts LoaderOptions) *Loader {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 1
	}
	if opts.NumWorkers <= 0 {
		opts.NumWorkers = 1
	}
	if opts.Seed == 0 {
		opts.Seed = 42
	}
	return &Loader{src: src, opts: opts, rng: rand.New(rand.NewSource(opts.Seed))}
}

// Len reports the number of samples behind the loader.
func (l *Loader) Len() int { return l.src.Len() }

// Batches streams one full pass over the source. Decoding runs on the
// configured worker pool; emission preserves sample order. Any decode or
// collate failure is reported once on the error channel and ends the pass.
func (l *Loader) Batches(ctx context.Context) (<-chan Batch, <-chan error) {
	out := make(chan Batch, 1)
	errCh := make(chan error, 1)

	// The pass gets its own context: when collate stops early the producer
	// and decode workers are still blocked on sends and must be released.
	ctx, cancel := context.WithCancel(ctx)

	order := make([]int, l.src.Len())
	for i := range order {
		order[i] = i
	}
	if l.opts.Shuffle {
		l.mu.Lock()
		l.rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
		l.mu.Unlock()
	}

	jobs := make(chan job, l.opts.NumWorkers)
	decoded := make(chan triple, l.opts.NumWorkers)

	go func() {
		defer close(jobs)
		for pos, idx := range order {
			select {
			case <-ctx.Done():
				return
			case jobs <- job{pos: pos, sample: l.src.samples[idx]}:
			}
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < l.opts.NumWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.decodeWorker(ctx, jobs, decoded)
		}()
	}
	go func() {
		wg.Wait()
		close(decoded)
	}()

	go func() {
		defer close(out)
		defer close(errCh)
		defer cancel()
		l.collate(ctx, len(order), decoded, out, errCh)
	}()

	return out, errCh
}

type job struct {
	pos    int
	sample Sample
}

type triple struct {
	pos    int
	marked image.Image
	clean  image.Image
	aux    image.Image
	err    error
}

func (l *Loader) decodeWorker(ctx context.Context, jobs <-chan job, decoded chan<- triple) {
	for {
		select {
		case <-ctx.Done():
			return
		case j, ok := <-jobs:
			if !ok {
				return
			}
			t := triple{pos: j.pos}
			t.marked, t.err = l.loadImage(j.sample.Marked)
			if t.err == nil {
				t.clean, t.err = l.loadImage(j.sample.Clean)
			}
			if t.err == nil {
				t.aux, t.err = l.loadImage(j.sample.Aux)
			}
			select {
			case <-ctx.Done():
				return
			case decoded <- t:
			}
		}
	}
}

func (l *Loader) loadImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "dataset: open image")
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, errors.Wrapf(err, "dataset: decode %s", path)
	}
	return l.opts.Transform.Apply(img), nil
}

func (l *Loader) collate(ctx context.Context, total int, decoded <-chan triple, out chan<- Batch, errCh chan<- error) {
	pending := make(map[int]triple)
	var (
		next   int
		marked []image.Image
		clean  []image.Image
		aux    []image.Image
	)

	flush := func() bool {
		batch, err := l.buildBatch(marked, clean, aux)
		if err != nil {
			errCh <- err
			return false
		}
		marked, clean, aux = nil, nil, nil
		select {
		case <-ctx.Done():
			return false
		case out <- batch:
			return true
		}
	}

	for next < total {
		t, ok := pending[next]
		if !ok {
			select {
			case <-ctx.Done():
				return
			case t, ok = <-decoded:
				if !ok {
					errCh <- errors.New("dataset: decode pipeline closed early")
					return
				}
				pending[t.pos] = t
				continue
			}
		}
		delete(pending, next)
		next++

		if t.err != nil {
			errCh <- t.err
			return
		}
		marked = append(marked, t.marked)
		clean = append(clean, t.clean)
		aux = append(aux, t.aux)
		if len(marked) == l.opts.BatchSize {
			if !flush() {
				return
			}
		}
	}
	if len(marked) > 0 {
		flush()
	}
}

func (l *Loader) buildBatch(marked, clean, aux []image.Image) (Batch, error) {
	m, err := imaging.ToTensor(marked, l.opts.Mean, l.opts.Std)
	if err != nil {
		return Batch{}, err
	}
	c, err := imaging.ToTensor(clean, l.opts.Mean, l.opts.Std)
	if err != nil {
		return Batch{}, err
	}
	a, err := imaging.ToTensor(aux, l.opts.Mean, l.opts.Std)
	if err != nil {
		return Batch{}, err
	}
	if !m.Shape().Eq(c.Shape()) || !m.Shape().Eq(a.Shape()) {
		return Batch{}, errors.Errorf("dataset: triple shapes diverge: %v %v %v", m.Shape(), c.Shape(), a.Shape())
	}
	return Batch{Marked: m, Clean: c, Aux: a}, nil
}

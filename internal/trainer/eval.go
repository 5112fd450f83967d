package trainer

import (
	"context"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"k8s.io/klog/v2"

	"github.com/IrisRainbowNeko/sample-watermark-eraser/internal/metrics"
	"github.com/IrisRainbowNeko/sample-watermark-eraser/internal/model"
)

// evaluate runs the generator over the held-out shard, sums per-sample PSNR,
// joins the collective reduction and logs the global mean. Every worker must
// reach the reduction: it is a barrier, and the mean divides by the total
// evaluation set size rather than the local shard size.
func (t *Trainer) evaluate(ctx context.Context, epoch int) error {
	t.netG.SetMode(model.Frozen)

	batches, errs := t.eval.Batches(ctx)
	var localSum float64
	for {
		batch, ok, err := nextBatch(ctx, batches, errs)
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		// The eval triple carries a watermark mask in Aux; the metric
		// only needs the prediction and the clean reference.
		res, err := t.netG.Apply(batch.Marked)
		if err != nil {
			return errors.Wrap(err, "trainer: eval forward")
		}
		scores, err := metrics.PSNR(res.Output, batch.Clean, t.cfg.NormMean, t.cfg.NormStd)
		if err != nil {
			return err
		}
		localSum += floats.Sum(scores)
	}

	total, err := t.reducer.Sum(ctx, localSum)
	if err != nil {
		return errors.Wrap(err, "trainer: reduce psnr")
	}
	if t.cfg.IsMain {
		klog.Infof("epoch=%d psnr=%.3f", epoch+1, total/float64(t.cfg.EvalTotal))
	}
	return nil
}

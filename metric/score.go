package metric

import (
	"github.com/sugarme/gotch"
	ts "github.com/sugarme/gotch/tensor"
)

// Threshold is the probability above which a pixel is foreground.
const Threshold = 0.5

// binarize returns a double tensor: 1 where x > thr, otherwise 0.
func binarize(x *ts.Tensor, thr float64) *ts.Tensor {
	return x.MustGt(ts.FloatScalar(thr), false).MustTotype(gotch.Double, true)
}

// sum reduces x to a single value. x is dropped when del is set.
func sum(x *ts.Tensor, del bool) float64 {
	s := x.MustSum(gotch.Double, del)
	v := s.Float64Values()[0]
	s.MustDrop()

	return v
}

func numel(x *ts.Tensor) float64 {
	n := int64(1)
	for _, d := range x.MustSize() {
		n *= d
	}

	return float64(n)
}

// confusion counts thresholded pixels of pred against target.
func confusion(pred, target *ts.Tensor) (tp, fp, fn, tn float64) {
	p := binarize(pred, Threshold)
	defer p.MustDrop()
	t := binarize(target, Threshold)
	defer t.MustDrop()

	tp = sum(p.MustMul(t, false), true)
	pSum := sum(p, false)
	tSum := sum(t, false)

	fp = pSum - tp
	fn = tSum - tp
	tn = numel(p) - tp - fp - fn

	return tp, fp, fn, tn
}

func dice(tp, fp, fn float64) float64 {
	denom := 2*tp + fp + fn
	// both empty: perfect agreement
	if denom == 0 {
		return 1
	}

	return 2 * tp / denom
}

func iou(tp, fp, fn float64) float64 {
	union := tp + fp + fn
	if union == 0 {
		return 1
	}

	return tp / union
}

// Accuracy is the fraction of pixels where thresholded prediction equals
// thresholded target.
func Accuracy(pred, target *ts.Tensor) float64 {
	tp, fp, fn, tn := confusion(pred, target)
	total := tp + fp + fn + tn
	if total == 0 {
		return 0
	}

	return (tp + tn) / total
}

// DiceCoeff calculates dice coefficient (F1) of thresholded prediction and target
// over all elements.
func DiceCoeff(pred, target *ts.Tensor) float64 {
	tp, fp, fn, _ := confusion(pred, target)
	return dice(tp, fp, fn)
}

// DiceCoeffBatch calculates mean dice coefficient of samples in a batch.
// Both inputs are in shape [B ...].
func DiceCoeffBatch(pred, target *ts.Tensor) float64 {
	size := pred.MustSize()
	if len(size) == 0 || size[0] == 0 {
		return 0
	}
	if len(size) == 1 {
		return DiceCoeff(pred, target)
	}

	var dims []int64
	for d := 1; d < len(size); d++ {
		dims = append(dims, int64(d))
	}

	p := binarize(pred, Threshold)
	defer p.MustDrop()
	t := binarize(target, Threshold)
	defer t.MustDrop()

	// per sample sums, shape [B]
	tpTs := p.MustMul(t, false).MustSum1(dims, false, gotch.Double, true)
	pTs := p.MustSum1(dims, false, gotch.Double, false)
	tTs := t.MustSum1(dims, false, gotch.Double, false)
	tps := tpTs.Float64Values()
	ps := pTs.Float64Values()
	tss := tTs.Float64Values()
	tpTs.MustDrop()
	pTs.MustDrop()
	tTs.MustDrop()

	var total float64
	for i := range tps {
		total += dice(tps[i], ps[i]-tps[i], tss[i]-tps[i])
	}

	return total / float64(len(tps))
}

// IoU calculates intersection over union of thresholded foreground.
func IoU(pred, target *ts.Tensor) float64 {
	tp, fp, fn, _ := confusion(pred, target)
	return iou(tp, fp, fn)
}

// classMask returns a double tensor: 1 where x rounds to class c.
func classMask(x *ts.Tensor, c int) *ts.Tensor {
	lo := binarize(x, float64(c)-0.5)
	hi := binarize(x, float64(c)+0.5).MustMul1(ts.FloatScalar(-1), true)

	return lo.MustAdd(hi, true)
}

// JaccardIndex calculates mean IoU over class labels 0..nclasses-1.
// Inputs hold class labels, not probabilities. It returns 0 when nclasses < 1.
func JaccardIndex(pred, target *ts.Tensor, nclasses int) float64 {
	if nclasses < 1 {
		return 0
	}

	var total float64
	for c := 0; c < nclasses; c++ {
		p := classMask(pred, c)
		t := classMask(target, c)

		inter := sum(p.MustMul(t, false), true)
		union := sum(p, false) + sum(t, false) - inter
		p.MustDrop()
		t.MustDrop()

		if union == 0 {
			total++
			continue
		}
		total += inter / union
	}

	return total / float64(nclasses)
}

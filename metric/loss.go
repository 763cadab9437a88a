package metric

import (
	"github.com/sugarme/gotch"
	ts "github.com/sugarme/gotch/tensor"
)

// BCEWithLogitsLoss is binary cross entropy with logits (mean reduction).
// It is the numerically stable form of sigmoid followed by BCELoss.
func BCEWithLogitsLoss(logit, target *ts.Tensor) *ts.Tensor {
	logitR := logit.MustReshape([]int64{-1}, false)
	targetR := target.MustReshape([]int64{-1}, false).MustTotype(logit.DType(), true)

	// NOTE: reduction: none = 0; mean = 1; sum = 2. Default=mean
	// ref. https://pytorch.org/docs/master/nn.functional.html#torch.nn.functional.binary_cross_entropy_with_logits
	loss := logitR.MustBinaryCrossEntropyWithLogits(targetR, ts.NewTensor(), ts.NewTensor(), 1, true)
	targetR.MustDrop()

	return loss
}

// BCELoss is binary cross entropy on probabilities (mean reduction).
// Probabilities are clipped to [1e-6, 1] before taking log.
func BCELoss(probability, mask *ts.Tensor) *ts.Tensor {
	p := probability.MustView([]int64{-1}, false)
	t := mask.MustView([]int64{-1}, false).MustTotype(probability.DType(), true)

	// 1-p
	p1 := p.MustMul1(ts.FloatScalar(-1), false).MustAdd1(ts.FloatScalar(1), true)
	// 1-t
	t1 := t.MustMul1(ts.FloatScalar(-1), false).MustAdd1(ts.FloatScalar(1), true)

	pclip := p.MustClip(ts.FloatScalar(1e-6), ts.FloatScalar(1), true)
	logp := pclip.MustLog(true)
	p1clip := p1.MustClip(ts.FloatScalar(1e-6), ts.FloatScalar(1), true)
	logn := p1clip.MustLog(true)

	// t * logp
	tlogp := t.MustMul(logp, true)
	logp.MustDrop()
	// (1-t)*logn
	t1logn := t1.MustMul(logn, true)
	logn.MustDrop()

	loss := tlogp.MustAdd(t1logn, true)
	t1logn.MustDrop()

	// -mean(t*log(p) + (1-t)*log(1-p))
	return loss.MustMean(gotch.Double, true).MustMul1(ts.FloatScalar(-1), true)
}

// SoftDiceLoss is 1 - soft dice coefficient over the last 2 dimensions.
//
// Ref. https://gist.github.com/jeremyjordan/9ea3032a32909f71dd2ab35fe3bacc08
func SoftDiceLoss(x, y *ts.Tensor) *ts.Tensor {
	dims := []int64{-2, -1}
	smooth := 1.0

	xyMul := x.MustMul(y, false)
	tp := xyMul.MustSum1(dims, false, gotch.Double, true)

	// fp = sum(x*(1-y))
	y1 := y.MustMul1(ts.FloatScalar(-1), false).MustAdd1(ts.FloatScalar(1), true)
	xy1Mul := y1.MustMul(x, true)
	fp := xy1Mul.MustSum1(dims, false, gotch.Double, true)

	// fn = sum((1-x)*y)
	x1 := x.MustMul1(ts.FloatScalar(-1), false).MustAdd1(ts.FloatScalar(1), true)
	x1yMul := x1.MustMul(y, true)
	fn := x1yMul.MustSum1(dims, false, gotch.Double, true)

	numerator := tp.MustMul1(ts.FloatScalar(2.0), false).MustAdd1(ts.FloatScalar(smooth), true)
	denominator := numerator.MustAdd(fp, false).MustAdd(fn, true)

	dc := numerator.MustDiv(denominator, true)

	tp.MustDrop()
	fp.MustDrop()
	fn.MustDrop()
	denominator.MustDrop()

	mean := dc.MustMean(gotch.Double, true)

	return mean.MustMul1(ts.FloatScalar(-1), true).MustAdd1(ts.FloatScalar(1), true)
}

// ComboLoss is 0.8 * BCE with logits + 0.2 * soft dice loss.
//
// Ref. https://www.kaggle.com/finlay/pytorch-fcn-resnet50-in-20-minute
func ComboLoss(logit, mask *ts.Tensor) *ts.Tensor {
	bce := BCEWithLogitsLoss(logit, mask).MustTotype(gotch.Double, true).MustMul1(ts.FloatScalar(0.8), true)
	prob := logit.MustSigmoid(false)
	target := mask.MustTotype(prob.DType(), false)
	dice := SoftDiceLoss(prob, target).MustMul1(ts.FloatScalar(0.2), true)
	prob.MustDrop()
	target.MustDrop()

	loss := bce.MustAdd(dice, true)
	dice.MustDrop()

	return loss
}

// LossFunc computes a scalar loss from logits and target mask.
type LossFunc func(logit, mask *ts.Tensor) *ts.Tensor

// LossByName returns loss func by name: "bce" (default) or "combo".
func LossByName(name string) (LossFunc, bool) {
	switch name {
	case "", "bce":
		return BCEWithLogitsLoss, true
	case "combo":
		return ComboLoss, true
	default:
		return nil, false
	}
}

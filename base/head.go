package base

import (
	"github.com/sugarme/gotch/nn"
	ts "github.com/sugarme/gotch/tensor"
)

// NewSegmentationHead creates new SegmentationHead (nn.SequentialT).
// It projects decoder channels to `cOut` class logits with `same` padding.
// When sigmoid is set, probabilities are returned instead of logits.
func NewSegmentationHead(p *nn.Path, cIn, cOut, ksize int64, sigmoid bool) *nn.SequentialT {
	seq := nn.SeqT()
	seq.Add(Conv2d(p, cIn, cOut, ksize, ksize/2, 1))
	if sigmoid {
		seq.AddFn(nn.NewFunc(func(xs *ts.Tensor) *ts.Tensor {
			return xs.MustSigmoid(false)
		}))
	}

	return seq
}

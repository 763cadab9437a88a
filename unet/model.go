package unet

import (
	"fmt"

	"github.com/sugarme/gotch/nn"
	ts "github.com/sugarme/gotch/tensor"

	"github.com/sugarme/nuseg/base"
	"github.com/sugarme/nuseg/encoder"
)

// DefaultFilters are channel widths of the 4 down blocks and the bottleneck.
var DefaultFilters = []int64{16, 32, 64, 128, 256}

// Config holds UNet model options.
type Config struct {
	InChannels int64   // image channels
	Classes    int64   // output mask channels
	Filters    []int64 // down blocks widths followed by bottleneck width
	BatchNorm  bool    // batch normalize conv blocks
	Attention  bool    // scSE attention in up blocks
}

// DefaultConfig returns config of a UNet for RGB images and binary masks.
func DefaultConfig() Config {
	filters := make([]int64, len(DefaultFilters))
	copy(filters, DefaultFilters)

	return Config{
		InChannels: 3,
		Classes:    1,
		Filters:    filters,
	}
}

// UNet is a UNET model struct
// Ref: https://arxiv.org/abs/1505.04597
type UNet struct {
	encoder encoder.Encoder
	decoder *Decoder
	segHead *nn.SequentialT
	depth   int
}

// New creates UNet model from config.
func New(p *nn.Path, cfg Config) (*UNet, error) {
	enc, err := encoder.NewContractingEncoder(p.Sub("encoder"), cfg.InChannels, cfg.Filters, cfg.BatchNorm)
	if err != nil {
		return nil, err
	}
	dec, err := NewDecoder(p.Sub("decoder"), enc.OutChannels(), cfg.BatchNorm, cfg.Attention)
	if err != nil {
		return nil, err
	}

	// cIn=filters[0], cOut=classes, ksize(kernel size = 1)
	head := base.NewSegmentationHead(p.Sub("logit"), cfg.Filters[0], cfg.Classes, 1, false)

	return &UNet{
		encoder: enc,
		decoder: dec,
		segHead: head,
		depth:   enc.Depth(),
	}, nil
}

// DefaultUNet creates UNet with default values.
func DefaultUNet(p *nn.Path) *UNet {
	net, err := New(p, DefaultConfig())
	if err != nil {
		panic(err)
	}

	return net
}

// ForwardT implements ts.ModuleT for UNet struct. It returns logits.
func (n *UNet) ForwardT(x *ts.Tensor, train bool) *ts.Tensor {
	features := n.encoder.ForwardAll(x, train)
	out, err := n.decoder.ForwardFeatures(features, train)
	if err != nil {
		panic(err)
	}
	logit := n.segHead.ForwardT(out, train)

	for _, f := range features {
		f.MustDrop()
	}
	out.MustDrop()

	return logit
}

// CheckInput validates input shape [B C H W] where H and W must be
// divisible by 2^depth so that skip connections line up.
func (n *UNet) CheckInput(size []int64) error {
	if len(size) != 4 {
		return fmt.Errorf("Expected input of 4 dimensions [B C H W]. Got %v", size)
	}
	div := int64(1) << uint(n.depth)
	if size[2]%div != 0 || size[3]%div != 0 {
		return fmt.Errorf("Expected input height and width divisible by %v. Got %vx%v", div, size[2], size[3])
	}

	return nil
}

// Predict forwards x in eval mode without gradient and returns probabilities.
func (n *UNet) Predict(x *ts.Tensor) (*ts.Tensor, error) {
	if err := n.CheckInput(x.MustSize()); err != nil {
		return nil, err
	}

	var prob *ts.Tensor
	ts.NoGrad(func() {
		logit := n.ForwardT(x, false)
		prob = logit.MustSigmoid(true)
	})

	return prob, nil
}

// Threshold binarizes probabilities: 1 where prob > threshold, otherwise 0.
// Returned tensor has float dtype.
func Threshold(prob *ts.Tensor, threshold float64) *ts.Tensor {
	return prob.MustGt(ts.FloatScalar(threshold), false).MustTotype(prob.DType(), true)
}

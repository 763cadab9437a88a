package encoder

import (
	"fmt"

	"github.com/sugarme/gotch/nn"
	ts "github.com/sugarme/gotch/tensor"

	"github.com/sugarme/nuseg/base"
)

// DownBlock is a double convolution followed by a 2x2 max pooling.
type DownBlock struct {
	Conv *nn.SequentialT
}

// NewDownBlock creates a DownBlock.
func NewDownBlock(p *nn.Path, cIn, cOut int64, batchNorm bool) *DownBlock {
	return &DownBlock{
		Conv: base.DoubleConv(p, cIn, cOut, batchNorm),
	}
}

// ForwardDown returns the convolution output `c` (used as skip connection)
// and its pooled version `p` with half spatial size.
func (b *DownBlock) ForwardDown(x *ts.Tensor, train bool) (c, p *ts.Tensor) {
	c = b.Conv.ForwardT(x, train)
	// ksize = 2; stride=2; padding=0; dilation=1; ceil=false
	p = c.MustMaxPool2d([]int64{2, 2}, []int64{2, 2}, []int64{0, 0}, []int64{1, 1}, false, false)

	return c, p
}

// ContractingEncoder is the contracting path of UNet (Ronneberger et al.):
// down blocks halving the resolution then a bottleneck double convolution.
type ContractingEncoder struct {
	downs      []*DownBlock
	bottleneck *nn.SequentialT
	channels   []int64
}

// NewContractingEncoder creates encoder for given filters. The last filter is the
// bottleneck width, the others are the widths of the down blocks, e.g.
// [16, 32, 64, 128, 256] gives 4 down blocks and a 256 channels bottleneck.
func NewContractingEncoder(p *nn.Path, cIn int64, filters []int64, batchNorm bool) (*ContractingEncoder, error) {
	if len(filters) < 2 {
		err := fmt.Errorf("Expected at least 2 filters. Got %v", len(filters))
		return nil, err
	}

	var downs []*DownBlock
	c := cIn
	for i, f := range filters[:len(filters)-1] {
		downs = append(downs, NewDownBlock(p.Sub(fmt.Sprintf("down%v", i+1)), c, f, batchNorm))
		c = f
	}
	bn := base.DoubleConv(p.Sub("bottleneck"), c, filters[len(filters)-1], batchNorm)

	channels := make([]int64, len(filters))
	copy(channels, filters)

	return &ContractingEncoder{
		downs:      downs,
		bottleneck: bn,
		channels:   channels,
	}, nil
}

// ForwardAll implements Encoder interface for ContractingEncoder.
// E.g. input [B 3 128 128] with default filters returns:
// 0- [B  16 128 128]
// 1- [B  32  64  64]
// 2- [B  64  32  32]
// 3- [B 128  16  16]
// 4- [B 256   8   8]
func (e *ContractingEncoder) ForwardAll(x *ts.Tensor, train bool) []*ts.Tensor {
	var features []*ts.Tensor
	input := x
	for i, down := range e.downs {
		c, p := down.ForwardDown(input, train)
		if i > 0 {
			input.MustDrop()
		}
		features = append(features, c)
		input = p
	}
	bn := e.bottleneck.ForwardT(input, train)
	input.MustDrop()

	return append(features, bn)
}

// OutChannels implements Encoder interface.
func (e *ContractingEncoder) OutChannels() []int64 {
	return e.channels
}

// Depth returns number of down-sampling stages.
func (e *ContractingEncoder) Depth() int {
	return len(e.downs)
}

package unet

import (
	"fmt"
	"reflect"

	"github.com/sugarme/gotch/nn"
	ts "github.com/sugarme/gotch/tensor"

	"github.com/sugarme/nuseg/base"
)

// interpolation using `nearest` algorithm
// x, ref should be in shape: [BatchSize CHW]
func upsample(x, ref *ts.Tensor) *ts.Tensor {
	xSize := x.MustSize()
	refSize := ref.MustSize()
	if reflect.DeepEqual(xSize[2:], refSize[2:]) {
		return x.MustShallowClone()
	}

	return x.MustUpsampleNearest2d(refSize[2:], nil, nil, false)
}

// UpBlock upsamples, concatenates skip features and forwards through double conv.
type UpBlock struct {
	Attn *base.Attention
	Conv *nn.SequentialT
}

// NewUpBlock creates an UpBlock. cIn is channels of the tensor to upsample,
// skip is channels of the skip connection.
func NewUpBlock(p *nn.Path, cIn, skip, cOut int64, batchNorm, attention bool) *UpBlock {
	attn := base.NewAttention()
	if attention {
		attn = base.NewAttention(base.NewSCSE(p.Sub("attn"), cIn+skip))
	}

	return &UpBlock{
		Attn: attn,
		Conv: base.DoubleConv(p, cIn+skip, cOut, batchNorm),
	}
}

// ForwardSkip forwards x with skip connection.
func (b *UpBlock) ForwardSkip(x, skip *ts.Tensor, train bool) *ts.Tensor {
	up := upsample(x, skip) // [B cIn H*2 W*2]
	cat := ts.MustCat([]ts.Tensor{*up, *skip}, 1)
	up.MustDrop()
	attn := b.Attn.ForwardT(cat, train)
	cat.MustDrop()
	out := b.Conv.ForwardT(attn, train)
	attn.MustDrop()

	return out
}

// Decoder is the expanding path of UNet model.
type Decoder struct {
	ups []*UpBlock
}

// NewDecoder creates Decoder mirroring encoder channels.
// E.g. encoder channels [16 32 64 128 256] gives up blocks:
// 256+128 -> 128, 128+64 -> 64, 64+32 -> 32, 32+16 -> 16.
func NewDecoder(p *nn.Path, encoderChannels []int64, batchNorm, attention bool) (*Decoder, error) {
	if len(encoderChannels) < 2 {
		err := fmt.Errorf("Expected at least 2 encoder channels. Got %v", len(encoderChannels))
		return nil, err
	}

	var ups []*UpBlock
	n := len(encoderChannels)
	cIn := encoderChannels[n-1]
	for i := n - 2; i >= 0; i-- {
		skip := encoderChannels[i]
		name := fmt.Sprintf("up%v", n-1-i)
		ups = append(ups, NewUpBlock(p.Sub(name), cIn, skip, skip, batchNorm, attention))
		cIn = skip
	}

	return &Decoder{ups}, nil
}

// ForwardFeatures forwards through encoder features.
// It does not drop the input features.
func (d *Decoder) ForwardFeatures(features []*ts.Tensor, train bool) (*ts.Tensor, error) {
	if len(features) != len(d.ups)+1 {
		err := fmt.Errorf("Expected features of %v tensors. Got %v", len(d.ups)+1, len(features))
		return nil, err
	}

	n := len(features)
	x := features[n-1]
	for i, up := range d.ups {
		skip := features[n-2-i]
		z := up.ForwardSkip(x, skip, train)
		if i > 0 {
			x.MustDrop()
		}
		x = z
	}

	return x, nil
}

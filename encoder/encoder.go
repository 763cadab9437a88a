package encoder

import (
	ts "github.com/sugarme/gotch/tensor"
)

// Encoder is encoder interface for a image segmentation model.
//
// ForwardAll returns feature maps ordered from the highest to the lowest
// resolution. The last one is the deepest (bottleneck) feature map.
type Encoder interface {
	ForwardAll(x *ts.Tensor, train bool) []*ts.Tensor
	// OutChannels returns number of channels of each feature map in ForwardAll.
	OutChannels() []int64
}

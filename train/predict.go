package train

import (
	"context"
	"image"

	"github.com/pkg/errors"
	ts "github.com/sugarme/gotch/tensor"

	"github.com/sugarme/nuseg/dataset"
	"github.com/sugarme/nuseg/rle"
	"github.com/sugarme/nuseg/unet"
	"github.com/sugarme/nuseg/viz"
)

// PredictMasks predicts binary masks of batch images thresholded at threshold.
func (t *Trainer) PredictMasks(x *ts.Tensor, threshold float64) ([]*image.Gray, error) {
	prob, err := t.Predict(x)
	if err != nil {
		return nil, err
	}
	bin := unet.Threshold(prob, threshold)
	prob.MustDrop()
	defer bin.MustDrop()

	size := bin.MustSize()
	var masks []*image.Gray
	for i := int64(0); i < size[0]; i++ {
		m := bin.MustSelect(0, i, false)
		g, err := viz.GrayImage(m)
		m.MustDrop()
		if err != nil {
			return nil, err
		}
		masks = append(masks, g)
	}

	return masks, nil
}

// Submission predicts every sample of ids under root at model resolution,
// restores predicted masks to original image size and splits them into
// run-length encoded instances. Instances under minSize pixels are dropped.
func (t *Trainer) Submission(ctx context.Context, root string, ids []string, threshold float64, minSize int) ([]rle.Row, error) {
	var rows []rle.Row
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		img, err := dataset.ReadImage(dataset.ImagePath(root, id))
		if err != nil {
			return nil, errors.Wrapf(err, "read image of %q", id)
		}
		b := img.Bounds()

		x := dataset.ImageTensor(dataset.ResizeRGB(img, t.cfg.ImageSize)).MustUnsqueeze(0, true)
		masks, err := t.PredictMasks(x, threshold)
		x.MustDrop()
		if err != nil {
			return nil, errors.Wrapf(err, "predict %q", id)
		}

		full := rle.Restore(masks[0], b.Dx(), b.Dy())
		rows = append(rows, rle.Rows(id, rle.Label(full, minSize))...)
	}

	return rows, nil
}

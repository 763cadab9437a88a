package main

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sugarme/nuseg/dataset"
	"github.com/sugarme/nuseg/metric"
	"github.com/sugarme/nuseg/train"
	"github.com/sugarme/nuseg/viz"
)

var (
	predictBatch int
	predictCount int
	predictProb  bool
)

var predictCmd = &cobra.Command{
	Use:   "predict",
	Short: "Load weights, evaluate and plot predictions of a validation batch",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPredict(cmd.Context())
	},
}

func init() {
	predictCmd.Flags().IntVar(&predictBatch, "index", 1, "specify validation batch index")
	predictCmd.Flags().IntVar(&predictCount, "count", 1, "specify number of figures from batch")
	predictCmd.Flags().BoolVar(&predictProb, "prob", false, "specify whether saving probability maps or not")
}

func runPredict(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	_, validGen, err := splitGenerators()
	if err != nil {
		return err
	}
	if predictBatch < 0 || predictBatch >= validGen.Len() {
		return fmt.Errorf("Batch index %v out of %v validation batches", predictBatch, validGen.Len())
	}

	trainer, err := train.NewTrainer(cfg, device(), log)
	if err != nil {
		return err
	}
	if err := trainer.LoadWeights(cfg.WeightsPath, false); err != nil {
		return err
	}

	loss, acc, dice, err := trainer.Evaluate(ctx, validGen, 0)
	if err != nil {
		return err
	}
	log.WithFields(logrus.Fields{
		"val_loss": fmt.Sprintf("%6.4f", loss),
		"val_acc":  fmt.Sprintf("%6.4f", acc),
		"dice":     fmt.Sprintf("%6.4f", dice),
	}).Info("validation")

	return savePredictions(trainer, validGen, predictBatch, predictCount)
}

// savePredictions saves ground truth vs thresholded prediction of the first
// n samples of a batch.
func savePredictions(trainer *train.Trainer, gen *dataset.Generator, index, n int) error {
	b, err := gen.Batch(index)
	if err != nil {
		return err
	}
	defer b.Drop()

	preds, err := trainer.PredictMasks(b.X, cfg.Threshold)
	if err != nil {
		return err
	}

	if n > b.Size() {
		n = b.Size()
	}
	for i := 0; i < n; i++ {
		x := b.X.MustSelect(0, int64(i), false)
		y := b.Y.MustSelect(0, int64(i), false)
		img, err := viz.RGBImage(x)
		x.MustDrop()
		if err != nil {
			y.MustDrop()
			return err
		}
		truth, err := viz.GrayImage(y)
		y.MustDrop()
		if err != nil {
			return err
		}

		filename := outPath(fmt.Sprintf("prediction-%v.png", b.IDs[i]))
		if err := viz.SaveComparison(img, truth, preds[i], filename); err != nil {
			return err
		}
		if predictProb {
			if err := saveProbability(trainer, b, i); err != nil {
				return err
			}
		}
		log.WithFields(logrus.Fields{
			"id":   b.IDs[i],
			"file": filename,
			"iou":  fmt.Sprintf("%6.4f", maskIoU(truth.Pix, preds[i].Pix)),
		}).Info("prediction saved")
	}

	return nil
}

// saveProbability saves predicted probability map of sample i as grayscale image.
func saveProbability(trainer *train.Trainer, b *dataset.Batch, i int) error {
	x := b.X.MustNarrow(0, int64(i), 1, false)
	prob, err := trainer.Predict(x)
	x.MustDrop()
	if err != nil {
		return err
	}
	p := prob.MustSelect(0, 0, true) // [1 H W]
	defer p.MustDrop()

	return viz.SaveTensor(p, outPath(fmt.Sprintf("probability-%v.png", b.IDs[i])))
}

// maskIoU is IoU of two 8 bits masks.
func maskIoU(truth, pred []uint8) float64 {
	var inter, union float64
	for i := range truth {
		t := float64(truth[i])/255 > metric.Threshold
		p := float64(pred[i])/255 > metric.Threshold
		if t && p {
			inter++
		}
		if t || p {
			union++
		}
	}
	if union == 0 {
		return 1
	}

	return inter / union
}

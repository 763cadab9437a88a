package main

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sugarme/nuseg/dataset"
	"github.com/sugarme/nuseg/rle"
	"github.com/sugarme/nuseg/viz"
)

var (
	inspectCount int
	labelsPath   string
)

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Describe samples, save image/mask pairs and check labels CSV",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInspect()
	},
}

func init() {
	inspectCmd.Flags().IntVar(&inspectCount, "count", 3, "specify number of image/mask figures")
	inspectCmd.Flags().StringVar(&labelsPath, "labels", "", "specify run-length encoded labels CSV to check against masks")
}

func runInspect() error {
	ids, err := dataset.ListIDs(cfg.DataPath)
	if err != nil {
		return err
	}

	infos, err := dataset.Inspect(cfg.DataPath, ids)
	if err != nil {
		return err
	}
	df := dataset.InfoFrame(infos)
	fmt.Println(df)
	if df.Nrow() > 0 {
		log.WithFields(logrus.Fields{
			"samples":    df.Nrow(),
			"mean_masks": fmt.Sprintf("%.2f", df.Col("masks").Mean()),
			"mean_w":     fmt.Sprintf("%.1f", df.Col("width").Mean()),
			"mean_h":     fmt.Sprintf("%.1f", df.Col("height").Mean()),
		}).Info("dataset")
	}

	n := inspectCount
	if n > len(ids) {
		n = len(ids)
	}
	for _, id := range ids[:n] {
		img, mask, err := dataset.LoadSample(cfg.DataPath, id, cfg.ImageSize)
		if err != nil {
			return err
		}
		filename := outPath(fmt.Sprintf("sample-%v.png", id))
		if err := viz.SavePair(viz.Scale(img, 2), viz.Scale(mask, 2), filename); err != nil {
			return err
		}
	}

	if labelsPath == "" {
		labelsPath = cfg.LabelsPath
	}
	if labelsPath != "" {
		return checkLabels(labelsPath, infos)
	}

	return nil
}

// checkLabels compares merged mask files with merged run-length encoded labels.
func checkLabels(filename string, infos []dataset.SampleInfo) error {
	labels, err := rle.ReadLabelsFile(filename)
	if err != nil {
		return err
	}

	mismatch := 0
	for _, info := range infos {
		encodings, ok := labels[info.ID]
		if !ok {
			log.WithField("id", info.ID).Warn("no labels")
			mismatch++
			continue
		}
		fromRLE, err := rle.Merge(encodings, info.Width, info.Height)
		if err != nil {
			return err
		}
		masks, err := dataset.ReadMasks(cfg.DataPath, info.ID)
		if err != nil {
			return err
		}
		fromPNG := dataset.MergeMasksRect(masks, info.Width, info.Height)

		if score := maskIoU(fromPNG.Pix, fromRLE.Pix); score < 1 {
			log.WithFields(logrus.Fields{
				"id":  info.ID,
				"iou": fmt.Sprintf("%6.4f", score),
			}).Warn("labels differ from mask files")
			mismatch++
		}
	}
	log.WithFields(logrus.Fields{
		"checked":  len(infos),
		"mismatch": mismatch,
	}).Info("labels checked")

	return nil
}

package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sugarme/nuseg/dataset"
	"github.com/sugarme/nuseg/rle"
	"github.com/sugarme/nuseg/train"
)

var (
	testPath string
	minSize  int
)

var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Predict test images and write run-length encoded submission CSV",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		return runSubmit(ctx)
	},
}

func init() {
	submitCmd.Flags().StringVar(&testPath, "test", "", "specify test data directory (default data directory)")
	submitCmd.Flags().IntVar(&minSize, "min-size", 10, "specify minimum instance size in pixels")
}

func runSubmit(ctx context.Context) error {
	root := testPath
	if root == "" {
		root = cfg.DataPath
	}
	ids, err := dataset.ListIDs(root)
	if err != nil {
		return err
	}

	trainer, err := train.NewTrainer(cfg, device(), log)
	if err != nil {
		return err
	}
	if err := trainer.LoadWeights(cfg.WeightsPath, false); err != nil {
		return err
	}

	rows, err := trainer.Submission(ctx, root, ids, cfg.Threshold, minSize)
	if err != nil {
		return err
	}

	filename := outPath("submission.csv")
	if err := rle.WriteSubmissionFile(filename, rows); err != nil {
		return err
	}
	log.WithFields(logrus.Fields{
		"images": len(ids),
		"rows":   len(rows),
		"file":   filename,
	}).Info("submission written")

	return nil
}

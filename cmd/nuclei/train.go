package main

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"os/signal"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sugarme/nuseg/dataset"
	"github.com/sugarme/nuseg/train"
	"github.com/sugarme/nuseg/viz"
)

var resume bool

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Train UNet, save weights and plot predictions on validation data",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		return runTrain(ctx)
	},
}

func init() {
	trainCmd.Flags().BoolVar(&resume, "resume", false, "specify whether continuing from saved weights or not")
}

// splitGenerators lists sample ids and builds train and validation generators.
func splitGenerators() (trainGen, validGen *dataset.Generator, err error) {
	ids, err := dataset.ListIDs(cfg.DataPath)
	if err != nil {
		return nil, nil, err
	}
	validIDs, trainIDs := dataset.SplitIDs(ids, cfg.ValidSize)
	log.WithFields(logrus.Fields{
		"train": len(trainIDs),
		"valid": len(validIDs),
	}).Info("samples found")

	trainDS, err := dataset.NewNucleiDataset(cfg.DataPath, trainIDs, cfg.ImageSize)
	if err != nil {
		return nil, nil, err
	}
	validDS, err := dataset.NewNucleiDataset(cfg.DataPath, validIDs, cfg.ImageSize)
	if err != nil {
		return nil, nil, err
	}

	trainGen, err = dataset.NewGenerator(trainDS, cfg.BatchSize, true, cfg.Seed)
	if err != nil {
		return nil, nil, err
	}
	validGen, err = dataset.NewGenerator(validDS, cfg.BatchSize, false, cfg.Seed)
	if err != nil {
		return nil, nil, err
	}

	return trainGen, validGen, nil
}

// saveSample saves a random image of the first batch next to its mask.
func saveSample(gen *dataset.Generator, rng *rand.Rand, filename string) error {
	b, err := gen.Batch(0)
	if err != nil {
		return err
	}
	defer b.Drop()

	r := int64(rng.Intn(b.Size()))
	x := b.X.MustSelect(0, r, false)
	defer x.MustDrop()
	y := b.Y.MustSelect(0, r, false)
	defer y.MustDrop()

	img, err := viz.RGBImage(x)
	if err != nil {
		return err
	}
	mask, err := viz.GrayImage(y)
	if err != nil {
		return err
	}

	log.WithFields(logrus.Fields{
		"id":   b.IDs[r],
		"x":    b.X.MustSize(),
		"y":    b.Y.MustSize(),
		"file": filename,
	}).Info("sample batch")

	return viz.SavePair(img, mask, filename)
}

func runTrain(ctx context.Context) error {
	rng := rand.New(rand.NewSource(cfg.Seed))

	trainGen, validGen, err := splitGenerators()
	if err != nil {
		return err
	}
	if trainGen.Len() == 0 {
		return fmt.Errorf("No training samples in %v", cfg.DataPath)
	}

	if err := saveSample(trainGen, rng, outPath("sample.png")); err != nil {
		return err
	}

	trainer, err := train.NewTrainer(cfg, device(), log)
	if err != nil {
		return err
	}

	if resume {
		if err := trainer.LoadWeights(cfg.WeightsPath, true); err != nil {
			return err
		}
	}

	history, err := trainer.Fit(ctx, trainGen, validGen)
	if err != nil {
		return err
	}
	if err := trainer.SaveWeights(cfg.WeightsPath); err != nil {
		return err
	}
	if err := history.Plot(outPath("history")); err != nil {
		return err
	}

	if validGen.Len() == 0 {
		log.Warn("No validation samples, skip prediction figure")
		return nil
	}

	// second validation batch when there is one
	index := 1
	if validGen.Len() < 2 {
		index = 0
	}

	return savePredictions(trainer, validGen, index, 1)
}

package train_test

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io/ioutil"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	logrustest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sugarme/gotch"

	"github.com/sugarme/nuseg/config"
	"github.com/sugarme/nuseg/dataset"
	"github.com/sugarme/nuseg/train"
)

func writePNG(t *testing.T, path string, img image.Image) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
}

// makeData writes n samples of size x size with one bright square nucleus.
func makeData(t *testing.T, n, size int) (string, []string) {
	t.Helper()
	root := t.TempDir()
	var ids []string
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("img%02d", i)
		ids = append(ids, id)

		img := image.NewNRGBA(image.Rect(0, 0, size, size))
		mask := image.NewGray(image.Rect(0, 0, size, size))
		x0 := (i * 3) % (size / 2)
		for y := 0; y < size; y++ {
			for x := 0; x < size; x++ {
				in := x >= x0 && x < x0+size/3 && y >= x0 && y < x0+size/3
				v := uint8(20)
				if in {
					v = 230
					mask.SetGray(x, y, color.Gray{255})
				}
				img.SetNRGBA(x, y, color.NRGBA{v, v, v, 255})
			}
		}
		writePNG(t, dataset.ImagePath(root, id), img)
		writePNG(t, filepath.Join(dataset.MaskDir(root, id), "0.png"), mask)
	}

	return root, ids
}

func testConfig(root string) *config.Config {
	cfg := config.Default()
	cfg.DataPath = root
	cfg.ImageSize = 16
	cfg.Epochs = 2
	cfg.BatchSize = 2
	cfg.ValidSize = 2
	cfg.Filters = []int64{4, 8, 16}
	return cfg
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(ioutil.Discard)
	return l
}

func generators(t *testing.T, cfg *config.Config, ids []string) (trainGen, validGen *dataset.Generator) {
	t.Helper()
	validIDs, trainIDs := dataset.SplitIDs(ids, cfg.ValidSize)
	trainDS, err := dataset.NewNucleiDataset(cfg.DataPath, trainIDs, cfg.ImageSize)
	require.NoError(t, err)
	validDS, err := dataset.NewNucleiDataset(cfg.DataPath, validIDs, cfg.ImageSize)
	require.NoError(t, err)
	trainGen, err = dataset.NewGenerator(trainDS, cfg.BatchSize, true, cfg.Seed)
	require.NoError(t, err)
	validGen, err = dataset.NewGenerator(validDS, cfg.BatchSize, false, cfg.Seed)
	require.NoError(t, err)
	return trainGen, validGen
}

func TestFit(t *testing.T) {
	root, ids := makeData(t, 7, 20)
	cfg := testConfig(root)

	trainer, err := train.NewTrainer(cfg, gotch.CPU, quietLogger())
	require.NoError(t, err)

	trainGen, validGen := generators(t, cfg, ids)
	// 5 train ids, batch 2: 2 full batches per epoch, short batch is skipped
	assert.Equal(t, 2, train.Steps(trainGen))
	assert.Equal(t, 1, train.Steps(validGen))

	history, err := trainer.Fit(context.Background(), trainGen, validGen)
	require.NoError(t, err)
	require.Len(t, history.Epochs, 2)

	for _, e := range history.Epochs {
		assert.False(t, math.IsNaN(e.Loss))
		assert.True(t, e.Loss > 0)
		assert.True(t, e.Acc >= 0 && e.Acc <= 1)
		assert.True(t, e.ValDice >= 0 && e.ValDice <= 1)
	}

	last, ok := history.Last()
	assert.True(t, ok)
	assert.Equal(t, 2, last.Epoch)

	prefix := filepath.Join(t.TempDir(), "history")
	require.NoError(t, history.Plot(prefix))
	assert.FileExists(t, prefix+"-loss.png")
	assert.FileExists(t, prefix+"-acc.png")
}

func TestFitCancelled(t *testing.T) {
	root, ids := makeData(t, 4, 16)
	cfg := testConfig(root)

	trainer, err := train.NewTrainer(cfg, gotch.CPU, quietLogger())
	require.NoError(t, err)
	trainGen, validGen := generators(t, cfg, ids)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = trainer.Fit(ctx, trainGen, validGen)
	assert.Error(t, err)
}

func TestSaveLoadWeights(t *testing.T) {
	root, ids := makeData(t, 3, 16)
	cfg := testConfig(root)
	cfg.Optimizer = "SGD"

	trainer, err := train.NewTrainer(cfg, gotch.CPU, quietLogger())
	require.NoError(t, err)

	weights := filepath.Join(t.TempDir(), "unet.ot")
	require.NoError(t, trainer.SaveWeights(weights))

	other, err := train.NewTrainer(cfg, gotch.CPU, quietLogger())
	require.NoError(t, err)
	require.NoError(t, other.LoadWeights(weights, false))

	_, validGen := generators(t, cfg, ids)
	b, err := validGen.Batch(0)
	require.NoError(t, err)
	defer b.Drop()

	p1, err := trainer.Predict(b.X)
	require.NoError(t, err)
	p2, err := other.Predict(b.X)
	require.NoError(t, err)
	assert.Equal(t, p1.Float64Values(), p2.Float64Values())
	p1.MustDrop()
	p2.MustDrop()

	masks, err := other.PredictMasks(b.X, cfg.Threshold)
	require.NoError(t, err)
	require.Len(t, masks, b.Size())
	assert.Equal(t, image.Rect(0, 0, 16, 16), masks[0].Bounds())

	assert.Error(t, other.LoadWeights(filepath.Join(t.TempDir(), "missing.ot"), false))
}

func TestFitFewerIDsThanBatch(t *testing.T) {
	root, ids := makeData(t, 4, 16)
	cfg := testConfig(root)
	cfg.BatchSize = 8
	cfg.ValidSize = 1

	trainer, err := train.NewTrainer(cfg, gotch.CPU, quietLogger())
	require.NoError(t, err)

	// 3 train ids, batch 8: no full batch, the short one is used
	trainGen, validGen := generators(t, cfg, ids)
	assert.Equal(t, 0, trainGen.NumSamples()/trainGen.BatchSize())
	assert.Equal(t, 1, train.Steps(trainGen))
	assert.Equal(t, 1, train.Steps(validGen))

	history, err := trainer.Fit(context.Background(), trainGen, validGen)
	require.NoError(t, err)
	require.Len(t, history.Epochs, cfg.Epochs)
	for _, e := range history.Epochs {
		assert.False(t, math.IsNaN(e.Loss))
		assert.True(t, e.Loss > 0)
		assert.False(t, math.IsNaN(e.ValLoss))
	}
}

func TestLoadWeightsPartial(t *testing.T) {
	root, _ := makeData(t, 1, 16)
	cfg := testConfig(root)

	trainer, err := train.NewTrainer(cfg, gotch.CPU, quietLogger())
	require.NoError(t, err)
	weights := filepath.Join(t.TempDir(), "unet.ot")
	require.NoError(t, trainer.SaveWeights(weights))

	bnCfg := testConfig(root)
	bnCfg.BatchNorm = true
	logger, hook := logrustest.NewNullLogger()
	bnTrainer, err := train.NewTrainer(bnCfg, gotch.CPU, logger)
	require.NoError(t, err)

	// batch norm variables are not in the file
	require.Error(t, bnTrainer.LoadWeights(weights, false))
	require.NoError(t, bnTrainer.LoadWeights(weights, true))

	var missing interface{}
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.WarnLevel {
			missing = e.Data["missing"]
		}
	}
	require.NotNil(t, missing)
	assert.NotEmpty(t, missing)
}

func TestSubmission(t *testing.T) {
	root, ids := makeData(t, 2, 20)
	cfg := testConfig(root)

	trainer, err := train.NewTrainer(cfg, gotch.CPU, quietLogger())
	require.NoError(t, err)

	rows, err := trainer.Submission(context.Background(), root, ids, cfg.Threshold, 1)
	require.NoError(t, err)

	seen := map[string]bool{}
	for _, r := range rows {
		seen[r.ImageID] = true
	}
	assert.Equal(t, map[string]bool{"img00": true, "img01": true}, seen)
}

func TestNewTrainerInvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Optimizer = "RMSProp"
	_, err := train.NewTrainer(cfg, gotch.CPU, quietLogger())
	assert.Error(t, err)
}

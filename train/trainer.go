// Package train fits a UNet model on nuclei batches and predicts masks.
package train

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/sugarme/gotch"
	"github.com/sugarme/gotch/nn"
	ts "github.com/sugarme/gotch/tensor"

	"github.com/sugarme/nuseg/config"
	"github.com/sugarme/nuseg/dataset"
	"github.com/sugarme/nuseg/metric"
	"github.com/sugarme/nuseg/unet"
)

// Trainer holds model, optimizer and loss of a training run.
type Trainer struct {
	cfg    *config.Config
	device gotch.Device
	vs     *nn.VarStore
	net    *unet.UNet
	opt    *nn.Optimizer
	loss   metric.LossFunc
	log    logrus.FieldLogger
}

// NewTrainer creates model and optimizer from config.
func NewTrainer(cfg *config.Config, device gotch.Device, logger logrus.FieldLogger) (*Trainer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	vs := nn.NewVarStore(device)
	mcfg := unet.DefaultConfig()
	mcfg.Filters = cfg.Filters
	mcfg.BatchNorm = cfg.BatchNorm
	mcfg.Attention = cfg.Attention
	net, err := unet.New(vs.Root(), mcfg)
	if err != nil {
		return nil, err
	}

	var opt *nn.Optimizer
	switch cfg.Optimizer {
	case "SGD":
		opt, err = nn.DefaultSGDConfig().Build(vs, cfg.LR)
	case "Adam":
		opt, err = nn.DefaultAdamConfig().Build(vs, cfg.LR)
	default:
		err = fmt.Errorf("Unspecified/Invalid Optimizer option: '%v'", cfg.Optimizer)
	}
	if err != nil {
		return nil, err
	}

	lossFn, ok := metric.LossByName(cfg.Loss)
	if !ok {
		return nil, fmt.Errorf("Invalid loss option: %v", cfg.Loss)
	}

	return &Trainer{
		cfg:    cfg,
		device: device,
		vs:     vs,
		net:    net,
		opt:    opt,
		loss:   lossFn,
		log:    logger,
	}, nil
}

// Steps returns number of full batches, e.g. 670 ids with batch size 8 gives 83.
// When there are fewer ids than one batch, all batches of gen are used.
func Steps(gen *dataset.Generator) int {
	steps := gen.NumSamples() / gen.BatchSize()
	if steps == 0 {
		steps = gen.Len()
	}

	return steps
}

// Fit trains for configured epochs. valid may be nil.
func (t *Trainer) Fit(ctx context.Context, trainGen, validGen *dataset.Generator) (*History, error) {
	trainSteps := Steps(trainGen)
	trainDL := dataset.NewDataLoader(trainGen, trainSteps)

	var validDL *dataset.DataLoader
	if validGen != nil && validGen.Len() > 0 {
		validDL = dataset.NewDataLoader(validGen, Steps(validGen))
	}

	history := &History{}
	for e := 1; e <= t.cfg.Epochs; e++ {
		start := time.Now()
		trainDL.Reset()

		loss, acc, err := t.trainEpoch(ctx, trainDL)
		if err != nil {
			return history, errors.Wrapf(err, "epoch %v", e)
		}
		stats := EpochStats{Epoch: e, Loss: loss, Acc: acc}

		if validDL != nil {
			validDL.Reset()
			stats.ValLoss, stats.ValAcc, stats.ValDice, err = t.evaluate(ctx, validDL)
			if err != nil {
				return history, errors.Wrapf(err, "validate epoch %v", e)
			}
		}
		stats.Duration = time.Since(start)
		history.Epochs = append(history.Epochs, stats)

		t.log.WithFields(logrus.Fields{
			"epoch":    fmt.Sprintf("%v/%v", e, t.cfg.Epochs),
			"loss":     fmt.Sprintf("%6.4f", stats.Loss),
			"acc":      fmt.Sprintf("%6.4f", stats.Acc),
			"val_loss": fmt.Sprintf("%6.4f", stats.ValLoss),
			"val_acc":  fmt.Sprintf("%6.4f", stats.ValAcc),
			"dice":     fmt.Sprintf("%6.4f", stats.ValDice),
			"took":     stats.Duration.Round(time.Millisecond),
		}).Info("epoch completed")
	}

	return history, nil
}

func (t *Trainer) trainEpoch(ctx context.Context, dl *dataset.DataLoader) (loss, acc float64, err error) {
	var losses, accs []float64
	count := 0
	for dl.HasNext() {
		if err := ctx.Err(); err != nil {
			return 0, 0, err
		}
		startRAM, memOK := usedRAM()

		b, err := dl.Next()
		if err != nil {
			return 0, 0, err
		}
		count++

		input := b.X.MustTo(t.device, false)
		target := b.Y.MustTo(t.device, false)
		b.Drop()

		logit := t.net.ForwardT(input, true)
		input.MustDrop()
		l := t.loss(logit, target)
		t.opt.BackwardStep(l)

		losses = append(losses, l.Float64Values()[0])
		l.MustDrop()

		prob := logit.MustDetach(false).MustSigmoid(true)
		accs = append(accs, metric.Accuracy(prob, target))
		prob.MustDrop()
		logit.MustDrop()
		target.MustDrop()

		entry := t.log.WithFields(logrus.Fields{
			"batch": count,
			"loss":  fmt.Sprintf("%6.4f", losses[len(losses)-1]),
		})
		if endRAM, ok := usedRAM(); ok && memOK && t.device == gotch.CPU {
			entry = entry.WithField("ram_mib", fmt.Sprintf("%8.2f", (float64(endRAM)-float64(startRAM))/1024))
		}
		entry.Debug("batch completed")
	}

	return avg(losses), avg(accs), nil
}

// Evaluate computes mean loss, pixel accuracy and dice over gen batches.
func (t *Trainer) Evaluate(ctx context.Context, gen *dataset.Generator, steps int) (loss, acc, dice float64, err error) {
	return t.evaluate(ctx, dataset.NewDataLoader(gen, steps))
}

func (t *Trainer) evaluate(ctx context.Context, dl *dataset.DataLoader) (loss, acc, dice float64, err error) {
	var losses, accs, dices []float64
	for dl.HasNext() {
		if err := ctx.Err(); err != nil {
			return 0, 0, 0, err
		}
		b, err := dl.Next()
		if err != nil {
			return 0, 0, 0, err
		}

		input := b.X.MustTo(t.device, false)
		target := b.Y.MustTo(t.device, false)
		b.Drop()

		ts.NoGrad(func() {
			logit := t.net.ForwardT(input, false)
			l := t.loss(logit, target)
			losses = append(losses, l.Float64Values()[0])
			l.MustDrop()

			prob := logit.MustSigmoid(true)
			accs = append(accs, metric.Accuracy(prob, target))
			dices = append(dices, metric.DiceCoeffBatch(prob, target))
			prob.MustDrop()
		})
		input.MustDrop()
		target.MustDrop()
	}

	return avg(losses), avg(accs), avg(dices), nil
}

// Predict returns probabilities of x [B 3 S S] as CPU tensor [B 1 S S].
func (t *Trainer) Predict(x *ts.Tensor) (*ts.Tensor, error) {
	input := x.MustTo(t.device, false)
	defer input.MustDrop()

	prob, err := t.net.Predict(input)
	if err != nil {
		return nil, err
	}

	return prob.MustTo(gotch.CPU, true), nil
}

// SaveWeights saves model weights to file.
func (t *Trainer) SaveWeights(path string) error {
	fpath, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	if err := t.vs.Save(fpath); err != nil {
		return errors.Wrap(err, "save weights")
	}
	t.log.WithField("path", fpath).Info("weights saved")

	return nil
}

// LoadWeights loads model weights from file. With partial set, variables
// missing from file keep their initial values.
func (t *Trainer) LoadWeights(path string, partial bool) error {
	fpath, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	if partial {
		missing, err := t.vs.LoadPartial(fpath)
		if err != nil {
			return errors.Wrap(err, "load weights")
		}
		if len(missing) > 0 {
			t.log.WithField("missing", missing).Warn("variables not found in weights file")
		}
	} else if err := t.vs.Load(fpath); err != nil {
		return errors.Wrap(err, "load weights")
	}
	t.log.WithField("path", fpath).Info("weights loaded")

	return nil
}

func avg(input []float64) float64 {
	if len(input) == 0 {
		return 0
	}
	var sum float64
	for _, v := range input {
		sum += v
	}

	return sum / float64(len(input))
}

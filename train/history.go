package train

import (
	"time"

	"github.com/sugarme/nuseg/viz"
)

// EpochStats are metrics of one epoch.
type EpochStats struct {
	Epoch    int
	Loss     float64
	Acc      float64
	ValLoss  float64
	ValAcc   float64
	ValDice  float64
	Duration time.Duration
}

// History is metrics of all epochs of a Fit call.
type History struct {
	Epochs []EpochStats
}

// Last returns stats of the last epoch.
func (h *History) Last() (EpochStats, bool) {
	if len(h.Epochs) == 0 {
		return EpochStats{}, false
	}
	return h.Epochs[len(h.Epochs)-1], true
}

// Curves returns loss and accuracy series for plotting.
func (h *History) Curves() (loss, acc []viz.Curve) {
	n := len(h.Epochs)
	trainLoss := make([]float64, n)
	validLoss := make([]float64, n)
	trainAcc := make([]float64, n)
	validAcc := make([]float64, n)
	validDice := make([]float64, n)
	for i, e := range h.Epochs {
		trainLoss[i] = e.Loss
		validLoss[i] = e.ValLoss
		trainAcc[i] = e.Acc
		validAcc[i] = e.ValAcc
		validDice[i] = e.ValDice
	}

	loss = []viz.Curve{
		{Name: "train", Values: trainLoss},
		{Name: "valid", Values: validLoss},
	}
	acc = []viz.Curve{
		{Name: "train acc", Values: trainAcc},
		{Name: "valid acc", Values: validAcc},
		{Name: "valid dice", Values: validDice},
	}

	return loss, acc
}

// Plot saves loss and accuracy charts as `<prefix>-loss.png` and `<prefix>-acc.png`.
func (h *History) Plot(prefix string) error {
	loss, acc := h.Curves()
	if err := viz.PlotCurves("Loss", "loss", loss, prefix+"-loss.png"); err != nil {
		return err
	}

	return viz.PlotCurves("Accuracy", "score", acc, prefix+"-acc.png")
}

package metric_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/sugarme/gotch"
	ts "github.com/sugarme/gotch/tensor"

	"github.com/sugarme/nuseg/metric"
)

var (
	pslice = []int64{1, 0, 0, 1, 0, 0, 1, 0, 0}
	tslice = []int64{1, 0, 0, 1, 1, 0, 1, 0, 0}
)

func predTarget() (pred, target *ts.Tensor) {
	pred = ts.MustOfSlice(pslice).MustView([]int64{1, 3, 3}, true)
	target = ts.MustOfSlice(tslice).MustView([]int64{1, 3, 3}, true)
	return pred, target
}

func TestJaccardIndex(t *testing.T) {
	pred, target := predTarget()

	// class 0: 5/6, class 1: 3/4
	iou := metric.JaccardIndex(pred, target, 2)
	assert.InDelta(t, (5.0/6.0+0.75)/2, iou, 1e-6)
}

func TestIoU(t *testing.T) {
	pred, target := predTarget()

	iou := metric.IoU(pred, target)
	assert.InDelta(t, 0.75, iou, 1e-4)
}

func TestDiceCoeff(t *testing.T) {
	pred, target := predTarget()

	dice := metric.DiceCoeff(pred, target)
	assert.InDelta(t, 0.8571, dice, 1e-4)
}

func TestDiceCoeffEmpty(t *testing.T) {
	zeros := ts.MustZeros([]int64{1, 3, 3}, gotch.Float, gotch.CPU)
	defer zeros.MustDrop()

	assert.Equal(t, 1.0, metric.DiceCoeff(zeros, zeros))
	assert.Equal(t, 1.0, metric.IoU(zeros, zeros))
}

func TestDiceCoeffBatch(t *testing.T) {
	pred := ts.MustOfSlice([]float64{0.9, 0.1, 0.9, 0.1}).MustView([]int64{2, 1, 2}, true)
	target := ts.MustOfSlice([]float64{1, 0, 0, 1}).MustView([]int64{2, 1, 2}, true)

	// sample 0: perfect; sample 1: no overlap
	assert.InDelta(t, 0.5, metric.DiceCoeffBatch(pred, target), 1e-6)
}

func TestAccuracy(t *testing.T) {
	pred, target := predTarget()

	assert.InDelta(t, 8.0/9.0, metric.Accuracy(pred, target), 1e-6)
}

func TestBCELoss(t *testing.T) {
	prob := ts.MustOfSlice([]float64{0.8, 0.3})
	target := ts.MustOfSlice([]float64{1, 0})

	loss := metric.BCELoss(prob, target)
	want := -(math.Log(0.8) + math.Log(0.7)) / 2
	assert.InDelta(t, want, loss.Float64Values()[0], 1e-6)
}

func TestBCEWithLogitsLoss(t *testing.T) {
	logit := ts.MustOfSlice([]float64{0, 2})
	target := ts.MustOfSlice([]float64{1, 0})

	loss := metric.BCEWithLogitsLoss(logit, target)
	// -log(sigmoid(0)) and -log(1-sigmoid(2))
	want := (math.Log(2) + math.Log(1+math.Exp(2))) / 2
	assert.InDelta(t, want, loss.Float64Values()[0], 1e-6)
}

func TestSoftDiceLoss(t *testing.T) {
	x := ts.MustOfSlice([]float64{1, 0, 1, 0}).MustView([]int64{1, 2, 2}, true)

	loss := metric.SoftDiceLoss(x, x)
	assert.InDelta(t, 0.0, loss.Float64Values()[0], 1e-6)
}

func TestLossByName(t *testing.T) {
	_, ok := metric.LossByName("bce")
	assert.True(t, ok)
	_, ok = metric.LossByName("combo")
	assert.True(t, ok)
	_, ok = metric.LossByName("focal")
	assert.False(t, ok)
}

func TestJaccardIndexNoClasses(t *testing.T) {
	pred, target := predTarget()

	assert.Equal(t, 0.0, metric.JaccardIndex(pred, target, 0))
	assert.False(t, math.IsNaN(metric.JaccardIndex(pred, target, -1)))
}

func TestScoresOnProbabilities(t *testing.T) {
	prob := ts.MustOfSlice([]float32{0.7, 0.2, 0.6, 0.4}).MustView([]int64{1, 1, 2, 2}, true)
	target := ts.MustOfSlice([]float32{1, 0, 0, 1}).MustView([]int64{1, 1, 2, 2}, true)
	defer prob.MustDrop()
	defer target.MustDrop()

	// tp=1 fp=1 fn=1 tn=1
	assert.InDelta(t, 0.5, metric.Accuracy(prob, target), 1e-6)
	assert.InDelta(t, 0.5, metric.DiceCoeff(prob, target), 1e-6)
	assert.InDelta(t, 0.5, metric.DiceCoeffBatch(prob, target), 1e-6)
	assert.InDelta(t, 1.0/3.0, metric.IoU(prob, target), 1e-6)
	// inputs stay usable
	assert.Equal(t, []int64{1, 1, 2, 2}, prob.MustSize())
}

package unet_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sugarme/gotch"
	"github.com/sugarme/gotch/nn"
	ts "github.com/sugarme/gotch/tensor"

	"github.com/sugarme/nuseg/unet"
)

func TestNewUNet(t *testing.T) {
	vs := nn.NewVarStore(gotch.CPU)
	net := unet.DefaultUNet(vs.Root())

	batchSize := int64(2)
	imageSize := int64(64)
	image := ts.MustRand([]int64{batchSize, 3, imageSize, imageSize}, gotch.Float, gotch.CPU)
	defer image.MustDrop()

	ts.NoGrad(func() {
		logit := net.ForwardT(image, false)
		assert.Equal(t, []int64{batchSize, 1, imageSize, imageSize}, logit.MustSize())
		logit.MustDrop()
	})
}

func TestUNetOptions(t *testing.T) {
	vs := nn.NewVarStore(gotch.CPU)
	cfg := unet.DefaultConfig()
	cfg.Filters = []int64{8, 16, 32}
	cfg.BatchNorm = true
	cfg.Attention = true
	net, err := unet.New(vs.Root(), cfg)
	require.NoError(t, err)

	image := ts.MustRand([]int64{1, 3, 32, 32}, gotch.Float, gotch.CPU)
	defer image.MustDrop()

	prob, err := net.Predict(image)
	require.NoError(t, err)
	defer prob.MustDrop()
	assert.Equal(t, []int64{1, 1, 32, 32}, prob.MustSize())

	for _, v := range prob.Float64Values() {
		assert.True(t, v >= 0 && v <= 1)
	}
}

func TestUNetInvalidFilters(t *testing.T) {
	vs := nn.NewVarStore(gotch.CPU)
	cfg := unet.DefaultConfig()
	cfg.Filters = []int64{16}
	_, err := unet.New(vs.Root(), cfg)
	assert.Error(t, err)
}

func TestCheckInput(t *testing.T) {
	vs := nn.NewVarStore(gotch.CPU)
	net := unet.DefaultUNet(vs.Root())

	assert.NoError(t, net.CheckInput([]int64{8, 3, 128, 128}))
	assert.Error(t, net.CheckInput([]int64{8, 3, 100, 100}))
	assert.Error(t, net.CheckInput([]int64{3, 128, 128}))
}

func TestThreshold(t *testing.T) {
	prob := ts.MustOfSlice([]float64{0.1, 0.5, 0.51, 0.9})
	defer prob.MustDrop()

	bin := unet.Threshold(prob, 0.5)
	defer bin.MustDrop()

	assert.Equal(t, []float64{0, 0, 1, 1}, bin.Float64Values())
}

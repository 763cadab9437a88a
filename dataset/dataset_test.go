package dataset_test

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sugarme/nuseg/dataset"
)

func writePNG(t *testing.T, path string, img image.Image) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
}

// square returns a w x h grayscale mask with a filled square at (x0, y0).
func square(w, h, x0, y0, side int) *image.Gray {
	m := image.NewGray(image.Rect(0, 0, w, h))
	for y := y0; y < y0+side; y++ {
		for x := x0; x < x0+side; x++ {
			m.SetGray(x, y, color.Gray{255})
		}
	}
	return m
}

// makeSample writes a sample with an RGB image and given instance masks.
func makeSample(t *testing.T, root, id string, w, h int, masks ...image.Image) {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: 255, G: 0, B: 51, A: 255})
		}
	}
	writePNG(t, dataset.ImagePath(root, id), img)
	require.NoError(t, os.MkdirAll(dataset.MaskDir(root, id), 0755))
	for i, m := range masks {
		writePNG(t, filepath.Join(dataset.MaskDir(root, id), fmt.Sprintf("m%02d.png", i)), m)
	}
}

func TestListIDs(t *testing.T) {
	root := t.TempDir()
	for _, id := range []string{"c", "a", "b"} {
		makeSample(t, root, id, 8, 8)
	}
	// stray file is not a sample
	require.NoError(t, os.WriteFile(filepath.Join(root, "labels.csv"), []byte("x"), 0644))

	ids, err := dataset.ListIDs(root)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, ids)

	_, err = dataset.ListIDs(filepath.Join(root, "missing"))
	assert.Error(t, err)
}

func TestSplitIDs(t *testing.T) {
	ids := []string{"a", "b", "c", "d"}

	valid, train := dataset.SplitIDs(ids, 1)
	assert.Equal(t, []string{"a"}, valid)
	assert.Equal(t, []string{"b", "c", "d"}, train)

	valid, train = dataset.SplitIDs(ids, 10)
	assert.Equal(t, ids, valid)
	assert.Empty(t, train)
}

func TestMergeMasks(t *testing.T) {
	a := square(8, 8, 0, 0, 4)
	b := square(8, 8, 2, 2, 4)

	merged := dataset.MergeMasks([]image.Image{a, b}, 8)
	assert.Equal(t, uint8(255), merged.GrayAt(0, 0).Y)
	assert.Equal(t, uint8(255), merged.GrayAt(3, 3).Y) // overlap stays 255
	assert.Equal(t, uint8(255), merged.GrayAt(5, 5).Y)
	assert.Equal(t, uint8(0), merged.GrayAt(7, 0).Y)

	empty := dataset.MergeMasks(nil, 4)
	assert.Equal(t, make([]uint8, 16), empty.Pix)
}

func TestResizeRGB(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 10, 6))
	for i := range img.Pix {
		img.Pix[i] = 255
	}

	out := dataset.ResizeRGB(img, 4)
	assert.Equal(t, image.Rect(0, 0, 4, 4), out.Bounds())

	vals := dataset.RGBValues(out)
	assert.Len(t, vals, 3*4*4)
	for _, v := range vals {
		assert.InDelta(t, 1.0, v, 1e-6)
	}
}

func TestGrayFromValues(t *testing.T) {
	img, err := dataset.GrayFromValues([]float64{-1, 0.5, 2, 1}, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, []uint8{0, 128, 255, 255}, img.Pix)

	_, err = dataset.GrayFromValues([]float64{0}, 2, 2)
	assert.Error(t, err)
}

func TestReadImageUnsupported(t *testing.T) {
	p := filepath.Join(t.TempDir(), "x.bmp")
	require.NoError(t, os.WriteFile(p, []byte("bm"), 0644))

	_, err := dataset.ReadImage(p)
	assert.Error(t, err)
}

func TestInspect(t *testing.T) {
	root := t.TempDir()
	makeSample(t, root, "a", 12, 10, square(12, 10, 0, 0, 2), square(12, 10, 4, 4, 2))
	makeSample(t, root, "b", 8, 8)

	infos, err := dataset.Inspect(root, []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, []dataset.SampleInfo{
		{ID: "a", Width: 12, Height: 10, Masks: 2},
		{ID: "b", Width: 8, Height: 8, Masks: 0},
	}, infos)

	df := dataset.InfoFrame(infos)
	assert.Equal(t, 2, df.Nrow())
	assert.Equal(t, []string{"id", "width", "height", "masks"}, df.Names())
}

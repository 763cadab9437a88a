// Package viz renders images, masks and predictions for visual checks.
package viz

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"

	"github.com/sugarme/gotch"
	ts "github.com/sugarme/gotch/tensor"
	"github.com/sugarme/gotch/vision"
	"golang.org/x/image/draw"

	"github.com/sugarme/nuseg/dataset"
)

// Gap is number of pixels between panels.
const Gap = 8

// Panel places images side by side, left to right, on white background.
func Panel(images ...image.Image) *image.RGBA {
	w, h := 0, 0
	for i, img := range images {
		b := img.Bounds()
		if i > 0 {
			w += Gap
		}
		w += b.Dx()
		if b.Dy() > h {
			h = b.Dy()
		}
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	x := 0
	for _, img := range images {
		b := img.Bounds()
		r := image.Rect(x, 0, x+b.Dx(), b.Dy())
		draw.Draw(dst, r, img, b.Min, draw.Src)
		x += b.Dx() + Gap
	}

	return dst
}

// Scale enlarges image by an integer factor with nearest neighbor so that small
// inputs stay readable.
func Scale(img image.Image, factor int) image.Image {
	if factor <= 1 {
		return img
	}
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx()*factor, b.Dy()*factor))
	draw.NearestNeighbor.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)

	return dst
}

// Overlay draws mask in red over image with given opacity (0-255).
func Overlay(img image.Image, mask *image.Gray, opacity uint8) *image.RGBA {
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)

	// scale mask intensity by opacity
	alpha := image.NewAlpha(mask.Bounds())
	for i, v := range mask.Pix {
		alpha.Pix[i] = uint8(uint16(v) * uint16(opacity) / 255)
	}
	red := image.NewUniform(color.RGBA{255, 0, 0, 255})
	draw.DrawMask(dst, dst.Bounds(), red, image.Point{}, alpha, mask.Bounds().Min, draw.Over)

	return dst
}

// SavePNG encodes image to png file.
func SavePNG(img image.Image, filename string) error {
	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return err
	}

	return f.Close()
}

// SavePair saves input image next to its mask.
func SavePair(img, mask image.Image, filename string) error {
	return SavePNG(Panel(img, mask), filename)
}

// SaveComparison saves ground truth mask, predicted mask and their overlay
// on the input image.
func SaveComparison(img image.Image, truth, pred *image.Gray, filename string) error {
	return SavePNG(Panel(truth, pred, Overlay(img, pred, 96)), filename)
}

// RGBImage converts image tensor [3 H W] in [0, 1] to image.
func RGBImage(x *ts.Tensor) (*image.NRGBA, error) {
	size := x.MustSize()
	if len(size) != 3 || size[0] != 3 {
		err := fmt.Errorf("Expected image tensor of shape [3 H W]. Got %v", size)
		return nil, err
	}

	return dataset.RGBFromValues(x.Float64Values(), int(size[2]), int(size[1]))
}

// GrayImage converts mask tensor [1 H W] or [H W] in [0, 1] to image.
func GrayImage(x *ts.Tensor) (*image.Gray, error) {
	size := x.MustSize()
	switch {
	case len(size) == 3 && size[0] == 1:
		size = size[1:]
	case len(size) == 2:
	default:
		err := fmt.Errorf("Expected mask tensor of shape [1 H W]. Got %v", size)
		return nil, err
	}

	return dataset.GrayFromValues(x.Float64Values(), int(size[1]), int(size[0]))
}

// SaveTensor saves a [C H W] tensor in [0, 1] as image file.
func SaveTensor(x *ts.Tensor, filename string) error {
	scaled := x.MustMul1(ts.FloatScalar(255.0), false).MustClip(ts.FloatScalar(0), ts.FloatScalar(255), true)
	u8 := scaled.MustTotype(gotch.Uint8, true)
	defer u8.MustDrop()

	return vision.Save(u8, filename)
}

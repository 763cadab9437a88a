package dataset

import (
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/chai2010/tiff"
	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
	ts "github.com/sugarme/gotch/tensor"
)

// ReadImage reads image from file. Supported formats: png, jpeg, tiff.
func ReadImage(filename string) (image.Image, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var img image.Image
	switch ext {
	case ".png":
		img, err = png.Decode(f)
	case ".jpg", ".jpeg":
		img, err = jpeg.Decode(f)
	case ".tiff", ".tif":
		img, err = tiff.Decode(f)
	default:
		return nil, fmt.Errorf("Unsupported image format: %v", ext)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "decode %v", filename)
	}

	return img, nil
}

// ResizeRGB drops alpha channel and resizes image to size x size
// using bilinear interpolation.
func ResizeRGB(img image.Image, size int) *image.NRGBA {
	bounds := img.Bounds()
	// Flatten onto opaque black, same as reading with 3 channels.
	opaque := imaging.New(bounds.Dx(), bounds.Dy(), color.NRGBA{0, 0, 0, 255})
	opaque = imaging.Overlay(opaque, img, image.Pt(0, 0), 1.0)
	if bounds.Dx() == size && bounds.Dy() == size {
		return opaque
	}

	return imaging.Resize(opaque, size, size, imaging.Linear)
}

// ResizeGray converts image to 8 bits grayscale and resizes to w x h
// using bilinear interpolation.
func ResizeGray(img image.Image, w, h int) *image.Gray {
	var src image.Image = img
	b := img.Bounds()
	if b.Dx() != w || b.Dy() != h {
		src = imaging.Resize(img, w, h, imaging.Linear)
	}

	sb := src.Bounds()
	gray := image.NewGray(image.Rect(0, 0, sb.Dx(), sb.Dy()))
	for y := 0; y < sb.Dy(); y++ {
		for x := 0; x < sb.Dx(); x++ {
			c := color.GrayModel.Convert(src.At(sb.Min.X+x, sb.Min.Y+y)).(color.Gray)
			gray.SetGray(x, y, c)
		}
	}

	return gray
}

// MergeMasks resizes every instance mask to size x size and merges them with
// element-wise maximum. No masks gives an all-zero mask.
func MergeMasks(masks []image.Image, size int) *image.Gray {
	return MergeMasksRect(masks, size, size)
}

// MergeMasksRect is MergeMasks for a w x h target.
func MergeMasksRect(masks []image.Image, w, h int) *image.Gray {
	merged := image.NewGray(image.Rect(0, 0, w, h))
	for _, m := range masks {
		g := ResizeGray(m, w, h)
		for i, v := range g.Pix {
			if v > merged.Pix[i] {
				merged.Pix[i] = v
			}
		}
	}

	return merged
}

// RGBValues returns pixel values in CHW order scaled to [0, 1].
func RGBValues(img *image.NRGBA) []float32 {
	b := img.Bounds()
	h, w := b.Dy(), b.Dx()
	vals := make([]float32, 3*h*w)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			off := y*img.Stride + x*4
			i := y*w + x
			vals[i] = float32(img.Pix[off]) / 255.0
			vals[h*w+i] = float32(img.Pix[off+1]) / 255.0
			vals[2*h*w+i] = float32(img.Pix[off+2]) / 255.0
		}
	}

	return vals
}

// GrayValues returns pixel values in HW order scaled to [0, 1].
func GrayValues(img *image.Gray) []float32 {
	b := img.Bounds()
	h, w := b.Dy(), b.Dx()
	vals := make([]float32, h*w)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			vals[y*w+x] = float32(img.Pix[y*img.Stride+x]) / 255.0
		}
	}

	return vals
}

// ImageTensor converts RGB image to float tensor of shape [3 H W] in [0, 1].
func ImageTensor(img *image.NRGBA) *ts.Tensor {
	b := img.Bounds()
	return ts.MustOfSlice(RGBValues(img)).MustView([]int64{3, int64(b.Dy()), int64(b.Dx())}, true)
}

// MaskTensor converts grayscale mask to float tensor of shape [1 H W] in [0, 1].
func MaskTensor(img *image.Gray) *ts.Tensor {
	b := img.Bounds()
	return ts.MustOfSlice(GrayValues(img)).MustView([]int64{1, int64(b.Dy()), int64(b.Dx())}, true)
}

// GrayFromValues builds grayscale image from HW values in [0, 1].
func GrayFromValues(vals []float64, w, h int) (*image.Gray, error) {
	if len(vals) != w*h {
		return nil, fmt.Errorf("Expected %v values for %vx%v image. Got %v", w*h, w, h, len(vals))
	}
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i, v := range vals {
		switch {
		case v <= 0:
			img.Pix[i] = 0
		case v >= 1:
			img.Pix[i] = 255
		default:
			img.Pix[i] = uint8(v*255 + 0.5)
		}
	}

	return img, nil
}

// RGBFromValues builds RGB image from CHW values in [0, 1].
func RGBFromValues(vals []float64, w, h int) (*image.NRGBA, error) {
	if len(vals) != 3*w*h {
		return nil, fmt.Errorf("Expected %v values for 3x%vx%v image. Got %v", 3*w*h, w, h, len(vals))
	}
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	toByte := func(v float64) uint8 {
		switch {
		case v <= 0:
			return 0
		case v >= 1:
			return 255
		default:
			return uint8(v*255 + 0.5)
		}
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := y*w + x
			img.SetNRGBA(x, y, color.NRGBA{
				R: toByte(vals[i]),
				G: toByte(vals[w*h+i]),
				B: toByte(vals[2*w*h+i]),
				A: 255,
			})
		}
	}

	return img, nil
}

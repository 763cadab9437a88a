// Package rle implements run-length encoding of binary masks as used by the
// Data Science Bowl 2018 labels and submissions.
//
// Pixels are numbered from 1, top to bottom then left to right (column-major).
// An encoding is a sequence of `start length` pairs.
package rle

import (
	"fmt"
	"image"
	"strconv"
	"strings"

	"github.com/nfnt/resize"
)

// Foreground is the minimum gray value of a foreground pixel.
const Foreground = 128

// RLE is a run-length encoding: start1, length1, start2, length2, ...
type RLE []int

// String formats encoding as space separated numbers.
func (r RLE) String() string {
	parts := make([]string, len(r))
	for i, v := range r {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, " ")
}

// Parse parses space separated `start length` pairs.
func Parse(s string) (RLE, error) {
	fields := strings.Fields(s)
	if len(fields)%2 != 0 {
		err := fmt.Errorf("Expected even number of values. Got %v", len(fields))
		return nil, err
	}

	r := make(RLE, len(fields))
	for i, f := range fields {
		v, err := strconv.Atoi(f)
		if err != nil {
			return nil, err
		}
		if v < 0 || (i%2 == 0 && v < 1) {
			err := fmt.Errorf("Invalid value %v at position %v", v, i)
			return nil, err
		}
		r[i] = v
	}

	return r, nil
}

// Encode encodes foreground pixels of mask.
func Encode(mask *image.Gray) RLE {
	b := mask.Bounds()
	w, h := b.Dx(), b.Dy()

	var (
		r     RLE
		start = -1
	)
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			pos := x*h + y + 1
			fg := mask.GrayAt(b.Min.X+x, b.Min.Y+y).Y >= Foreground
			switch {
			case fg && start < 0:
				start = pos
			case !fg && start >= 0:
				r = append(r, start, pos-start)
				start = -1
			}
		}
	}
	if start >= 0 {
		r = append(r, start, w*h+1-start)
	}

	return r
}

// Decode decodes encoding into a w x h mask with foreground 255.
func Decode(r RLE, w, h int) (*image.Gray, error) {
	if len(r)%2 != 0 {
		err := fmt.Errorf("Expected even number of values. Got %v", len(r))
		return nil, err
	}

	mask := image.NewGray(image.Rect(0, 0, w, h))
	total := w * h
	for i := 0; i < len(r); i += 2 {
		start, length := r[i], r[i+1]
		if start < 1 || length < 0 || start-1+length > total {
			err := fmt.Errorf("Run (%v, %v) out of %vx%v mask", start, length, w, h)
			return nil, err
		}
		for p := start - 1; p < start-1+length; p++ {
			x, y := p/h, p%h
			mask.Pix[y*mask.Stride+x] = 255
		}
	}

	return mask, nil
}

// Merge decodes encodings of instances and merges them into one mask.
func Merge(rles []RLE, w, h int) (*image.Gray, error) {
	merged := image.NewGray(image.Rect(0, 0, w, h))
	for _, r := range rles {
		m, err := Decode(r, w, h)
		if err != nil {
			return nil, err
		}
		for i, v := range m.Pix {
			if v > merged.Pix[i] {
				merged.Pix[i] = v
			}
		}
	}

	return merged, nil
}

// Restore resizes a predicted mask back to original image size and
// re-binarizes it to 0/255.
func Restore(mask *image.Gray, w, h int) *image.Gray {
	b := mask.Bounds()
	var src image.Image = mask
	if b.Dx() != w || b.Dy() != h {
		src = resize.Resize(uint(w), uint(h), mask, resize.Bilinear)
	}

	out := image.NewGray(image.Rect(0, 0, w, h))
	sb := src.Bounds()
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, _, _, _ := src.At(sb.Min.X+x, sb.Min.Y+y).RGBA()
			if uint8(r>>8) >= Foreground {
				out.Pix[y*out.Stride+x] = 255
			}
		}
	}

	return out
}

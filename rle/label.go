package rle

import (
	"image"
)

// Label splits foreground of a binary mask into 8-connected instances.
// Instances with fewer than minSize pixels are dropped. Instances are
// ordered by their first pixel in column-major order.
func Label(mask *image.Gray, minSize int) []*image.Gray {
	b := mask.Bounds()
	w, h := b.Dx(), b.Dy()
	labels := make([]int, w*h)

	fg := func(x, y int) bool {
		return mask.GrayAt(b.Min.X+x, b.Min.Y+y).Y >= Foreground
	}

	var (
		instances []*image.Gray
		stack     [][2]int
		next      = 1
	)
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			if labels[y*w+x] != 0 || !fg(x, y) {
				continue
			}

			// flood fill
			var pixels [][2]int
			labels[y*w+x] = next
			stack = append(stack[:0], [2]int{x, y})
			for len(stack) > 0 {
				p := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				pixels = append(pixels, p)
				for dy := -1; dy <= 1; dy++ {
					for dx := -1; dx <= 1; dx++ {
						nx, ny := p[0]+dx, p[1]+dy
						if nx < 0 || ny < 0 || nx >= w || ny >= h {
							continue
						}
						if labels[ny*w+nx] != 0 || !fg(nx, ny) {
							continue
						}
						labels[ny*w+nx] = next
						stack = append(stack, [2]int{nx, ny})
					}
				}
			}
			next++

			if len(pixels) < minSize {
				continue
			}
			inst := image.NewGray(image.Rect(0, 0, w, h))
			for _, p := range pixels {
				inst.Pix[p[1]*inst.Stride+p[0]] = 255
			}
			instances = append(instances, inst)
		}
	}

	return instances
}

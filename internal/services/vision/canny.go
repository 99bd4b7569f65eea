package vision

import (
	"image"
	"math"
)

const (
	edgeNone   = 0
	edgeWeak   = 1
	edgeStrong = 2
)

var tan22 = math.Tan(22.5 * math.Pi / 180)
var tan67 = math.Tan(67.5 * math.Pi / 180)

// Canny detects edges with 3x3 Sobel gradients, L1 magnitude, non-maximum
// suppression and hysteresis between low and high. Edge pixels are 255.
func Canny(src *image.Gray, low, high float64) *image.Gray {
	if low > high {
		low, high = high, low
	}
	w, h := src.Bounds().Dx(), src.Bounds().Dy()
	gx := make([]float64, w*h)
	gy := make([]float64, w*h)
	mag := make([]float64, w*h)

	px := func(x, y int) float64 {
		return float64(src.Pix[replicate(y, h)*src.Stride+replicate(x, w)])
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			sx := -px(x-1, y-1) - 2*px(x-1, y) - px(x-1, y+1) +
				px(x+1, y-1) + 2*px(x+1, y) + px(x+1, y+1)
			sy := -px(x-1, y-1) - 2*px(x, y-1) - px(x+1, y-1) +
				px(x-1, y+1) + 2*px(x, y+1) + px(x+1, y+1)
			i := y*w + x
			gx[i], gy[i] = sx, sy
			mag[i] = math.Abs(sx) + math.Abs(sy)
		}
	}

	state := make([]uint8, w*h)
	stack := make([]int, 0, 256)
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			i := y*w + x
			m := mag[i]
			if m <= low {
				continue
			}
			ax, ay := math.Abs(gx[i]), math.Abs(gy[i])
			var a, b float64
			switch {
			case ay < ax*tan22:
				a, b = mag[i-1], mag[i+1]
			case ay > ax*tan67:
				a, b = mag[i-w], mag[i+w]
			case (gx[i] < 0) != (gy[i] < 0):
				a, b = mag[i-w+1], mag[i+w-1]
			default:
				a, b = mag[i-w-1], mag[i+w+1]
			}
			if !(m > a && m >= b) {
				continue
			}
			if m > high {
				state[i] = edgeStrong
				stack = append(stack, i)
			} else {
				state[i] = edgeWeak
			}
		}
	}

	for len(stack) > 0 {
		i := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		x, y := i%w, i/w
		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				nx, ny := x+dx, y+dy
				if nx < 0 || ny < 0 || nx >= w || ny >= h {
					continue
				}
				j := ny*w + nx
				if state[j] == edgeWeak {
					state[j] = edgeStrong
					stack = append(stack, j)
				}
			}
		}
	}

	dst := image.NewGray(image.Rect(0, 0, w, h))
	for i, s := range state {
		if s == edgeStrong {
			dst.Pix[i] = 255
		}
	}
	return dst
}

package vision

import (
	"image"
	"math"
)

// Contour is the outer boundary of one connected foreground component.
type Contour struct {
	Bounds image.Rectangle
	// Area is the shoelace area of the traced border polygon.
	Area   float64
	Border []image.Point
}

// InverseThreshold marks pixels whose 8-bit intensity is <= thresh as foreground (255).
func InverseThreshold(gray *GrayMatrix, thresh uint8) *image.Gray {
	dst := image.NewGray(image.Rect(0, 0, gray.Width, gray.Height))
	for i, v := range gray.Pix {
		if clamp8(math.Round(v*255)) <= thresh {
			dst.Pix[i] = 255
		}
	}
	return dst
}

// clockwise neighbour offsets starting east, y pointing down
var moore = [8]image.Point{
	{1, 0}, {1, 1}, {0, 1}, {-1, 1}, {-1, 0}, {-1, -1}, {0, -1}, {1, -1},
}

func mooreIndex(d image.Point) int {
	for i, p := range moore {
		if p == d {
			return i
		}
	}
	return 0
}

// ExternalContours returns the outer contours of 8-connected foreground
// components that are not enclosed by another component. A component counts
// as external when it touches the image border or background reachable from it.
func ExternalContours(bin *image.Gray) []Contour {
	w, h := bin.Bounds().Dx(), bin.Bounds().Dy()
	fg := func(x, y int) bool { return bin.Pix[y*bin.Stride+x] != 0 }

	outside := make([]bool, w*h)
	queue := make([]int, 0, 2*(w+h))
	seed := func(x, y int) {
		i := y*w + x
		if !fg(x, y) && !outside[i] {
			outside[i] = true
			queue = append(queue, i)
		}
	}
	for x := 0; x < w; x++ {
		seed(x, 0)
		seed(x, h-1)
	}
	for y := 0; y < h; y++ {
		seed(0, y)
		seed(w-1, y)
	}
	for len(queue) > 0 {
		i := queue[0]
		queue = queue[1:]
		x, y := i%w, i/w
		if x > 0 {
			seed(x-1, y)
		}
		if x < w-1 {
			seed(x+1, y)
		}
		if y > 0 {
			seed(x, y-1)
		}
		if y < h-1 {
			seed(x, y+1)
		}
	}

	labels := make([]int32, w*h)
	var contours []Contour
	var next int32
	stack := make([]image.Point, 0, 256)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if !fg(x, y) || labels[y*w+x] != 0 {
				continue
			}
			next++
			start := image.Point{X: x, Y: y}
			bounds := image.Rectangle{Min: start, Max: start.Add(image.Pt(1, 1))}
			external := false
			labels[y*w+x] = next
			stack = append(stack[:0], start)
			for len(stack) > 0 {
				p := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				bounds = bounds.Union(image.Rectangle{Min: p, Max: p.Add(image.Pt(1, 1))})
				if p.X == 0 || p.Y == 0 || p.X == w-1 || p.Y == h-1 {
					external = true
				}
				for i, d := range moore {
					q := p.Add(d)
					if q.X < 0 || q.Y < 0 || q.X >= w || q.Y >= h {
						continue
					}
					j := q.Y*w + q.X
					if !fg(q.X, q.Y) {
						if i%2 == 0 && outside[j] {
							external = true
						}
						continue
					}
					if labels[j] == 0 {
						labels[j] = next
						stack = append(stack, q)
					}
				}
			}
			if !external {
				continue
			}
			border := traceBorder(start, 4*w*h, func(p image.Point) bool {
				return p.X >= 0 && p.Y >= 0 && p.X < w && p.Y < h && labels[p.Y*w+p.X] == next
			})
			contours = append(contours, Contour{Bounds: bounds, Area: polygonArea(border), Border: border})
		}
	}
	return contours
}

// traceBorder follows the outer border clockwise from start, which must be the
// first pixel of its component in raster order.
func traceBorder(start image.Point, maxSteps int, inside func(image.Point) bool) []image.Point {
	step := func(cur image.Point, back int) (image.Point, int, bool) {
		for i := 1; i <= 8; i++ {
			d := (back + i) & 7
			n := cur.Add(moore[d])
			if inside(n) {
				prev := cur.Add(moore[(d+7)&7])
				return n, mooreIndex(prev.Sub(n)), true
			}
		}
		return cur, back, false
	}

	border := []image.Point{start}
	cur, back := start, 4
	var first image.Point
	for steps := 0; steps < maxSteps; steps++ {
		n, nb, ok := step(cur, back)
		if !ok {
			break
		}
		if steps == 0 {
			first = n
		} else if cur == start && n == first {
			break
		}
		border = append(border, n)
		cur, back = n, nb
	}
	if len(border) > 1 && border[len(border)-1] == start {
		border = border[:len(border)-1]
	}
	return border
}

func polygonArea(pts []image.Point) float64 {
	if len(pts) < 3 {
		return 0
	}
	var sum int
	for i, p := range pts {
		q := pts[(i+1)%len(pts)]
		sum += p.X*q.Y - q.X*p.Y
	}
	return math.Abs(float64(sum)) / 2
}

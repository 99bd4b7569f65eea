package vision

import (
	"image"
	"math"
	"math/rand"
)

// Segment is a line segment in pixel coordinates.
type Segment struct {
	X1, Y1 int
	X2, Y2 int
}

// Angle returns the segment direction in degrees, in (-180, 180].
func (s Segment) Angle() float64 {
	return math.Atan2(float64(s.Y2-s.Y1), float64(s.X2-s.X1)) * 180 / math.Pi
}

func (s Segment) Length() float64 {
	return math.Hypot(float64(s.X2-s.X1), float64(s.Y2-s.Y1))
}

// HoughConfig parameterizes the probabilistic Hough transform.
type HoughConfig struct {
	Rho           float64
	Theta         float64
	Threshold     int
	MinLineLength int
	MaxLineGap    int
	// Seed fixes the point visiting order so results are reproducible.
	Seed int64
}

func DefaultHoughConfig() HoughConfig {
	return HoughConfig{
		Rho:           1,
		Theta:         math.Pi / 180,
		Threshold:     50,
		MinLineLength: 30,
		MaxLineGap:    10,
		Seed:          1,
	}
}

const houghShift = 16

// HoughLinesP finds line segments in a binary edge map using progressive
// probabilistic Hough voting. Points on an accepted segment are consumed.
func HoughLinesP(edges *image.Gray, cfg HoughConfig) []Segment {
	if cfg.Rho <= 0 {
		cfg.Rho = 1
	}
	if cfg.Theta <= 0 {
		cfg.Theta = math.Pi / 180
	}
	if cfg.Threshold <= 0 {
		cfg.Threshold = 1
	}
	w, h := edges.Bounds().Dx(), edges.Bounds().Dy()
	numAngle := int(math.Round(math.Pi / cfg.Theta))
	numRho := int(math.Round(float64((w+h)*2+1) / cfg.Rho))
	rhoOffset := (numRho - 1) / 2
	irho := 1 / cfg.Rho

	cosT := make([]float64, numAngle)
	sinT := make([]float64, numAngle)
	for n := 0; n < numAngle; n++ {
		a := float64(n) * cfg.Theta
		cosT[n] = math.Cos(a) * irho
		sinT[n] = math.Sin(a) * irho
	}

	accum := make([]int, numAngle*numRho)
	mask := make([]bool, w*h)
	points := make([]image.Point, 0, 1024)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if edges.Pix[y*edges.Stride+x] != 0 {
				mask[y*w+x] = true
				points = append(points, image.Point{X: x, Y: y})
			}
		}
	}

	vote := func(x, y, delta int) (int, int) {
		best, bestN := cfg.Threshold-1, 0
		for n := 0; n < numAngle; n++ {
			r := int(math.RoundToEven(float64(x)*cosT[n]+float64(y)*sinT[n])) + rhoOffset
			idx := n*numRho + r
			accum[idx] += delta
			if accum[idx] > best {
				best, bestN = accum[idx], n
			}
		}
		return best, bestN
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	var lines []Segment
	for count := len(points); count > 0; count-- {
		idx := rng.Intn(count)
		pt := points[idx]
		points[idx] = points[count-1]
		if !mask[pt.Y*w+pt.X] {
			continue
		}

		maxVal, maxN := vote(pt.X, pt.Y, 1)
		if maxVal < cfg.Threshold {
			continue
		}

		a := -sinT[maxN]
		b := cosT[maxN]
		x0, y0 := pt.X, pt.Y
		var dx0, dy0 int
		xflag := math.Abs(a) > math.Abs(b)
		if xflag {
			dx0 = 1
			if a <= 0 {
				dx0 = -1
			}
			dy0 = int(math.RoundToEven(b * (1 << houghShift) / math.Abs(a)))
			y0 = (y0 << houghShift) + (1 << (houghShift - 1))
		} else {
			dy0 = 1
			if b <= 0 {
				dy0 = -1
			}
			dx0 = int(math.RoundToEven(a * (1 << houghShift) / math.Abs(b)))
			x0 = (x0 << houghShift) + (1 << (houghShift - 1))
		}

		locate := func(x, y int) (int, int) {
			if xflag {
				return x, y >> houghShift
			}
			return x >> houghShift, y
		}

		var ends [2]image.Point
		for k := 0; k < 2; k++ {
			gap := 0
			x, y, dx, dy := x0, y0, dx0, dy0
			if k > 0 {
				dx, dy = -dx, -dy
			}
			for ; ; x, y = x+dx, y+dy {
				j1, i1 := locate(x, y)
				if j1 < 0 || j1 >= w || i1 < 0 || i1 >= h {
					break
				}
				if mask[i1*w+j1] {
					gap = 0
					ends[k] = image.Point{X: j1, Y: i1}
				} else {
					gap++
					if gap > cfg.MaxLineGap {
						break
					}
				}
			}
		}

		good := abs(ends[1].X-ends[0].X) >= cfg.MinLineLength ||
			abs(ends[1].Y-ends[0].Y) >= cfg.MinLineLength

		for k := 0; k < 2; k++ {
			x, y, dx, dy := x0, y0, dx0, dy0
			if k > 0 {
				dx, dy = -dx, -dy
			}
			for ; ; x, y = x+dx, y+dy {
				j1, i1 := locate(x, y)
				if mask[i1*w+j1] {
					if good {
						vote(j1, i1, -1)
					}
					mask[i1*w+j1] = false
				}
				if i1 == ends[k].Y && j1 == ends[k].X {
					break
				}
			}
		}

		if good {
			lines = append(lines, Segment{X1: ends[0].X, Y1: ends[0].Y, X2: ends[1].X, Y2: ends[1].Y})
		}
	}
	return lines
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

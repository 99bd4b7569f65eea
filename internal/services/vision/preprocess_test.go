package vision

import (
	"errors"
	"image"
	"testing"

	"ChartSignal/internal/domain/models"
	"ChartSignal/internal/services/vision/visiontest"
)

func TestPreprocessDimensionsAndRange(t *testing.T) {
	p := NewPreprocessor(DefaultPreprocessConfig())
	out, err := p.Preprocess(visiontest.DefaultChartPNG())
	if err != nil {
		t.Fatalf("preprocess: %v", err)
	}
	b := out.Color.Bounds()
	if out.Gray.Width != b.Dx() || out.Gray.Height != b.Dy() {
		t.Fatalf("gray %dx%d, color %dx%d", out.Gray.Width, out.Gray.Height, b.Dx(), b.Dy())
	}
	if b.Dx() != 400 || b.Dy() != 300 {
		t.Errorf("unexpected size %v", b)
	}
	for i, v := range out.Gray.Pix {
		if v < 0 || v > 1 {
			t.Fatalf("pixel %d out of range: %f", i, v)
		}
	}
}

func TestPreprocessRejectsGarbage(t *testing.T) {
	p := NewPreprocessor(DefaultPreprocessConfig())
	for _, data := range [][]byte{nil, []byte("definitely not an image")} {
		_, err := p.Preprocess(data)
		if !errors.Is(err, models.ErrDecode) {
			t.Errorf("expected decode error, got %v", err)
		}
		var de *models.DecodeError
		if !errors.As(err, &de) {
			t.Errorf("expected *DecodeError, got %T", err)
		}
	}
}

func TestPreprocessRefusesOversizedCanvas(t *testing.T) {
	// Compresses to a few kilobytes but decodes to 16.4 MP.
	huge := visiontest.PNG(image.NewGray(image.Rect(0, 0, 4100, 4000)))
	_, err := NewPreprocessor(DefaultPreprocessConfig()).Preprocess(huge)
	var de *models.DecodeError
	if !errors.As(err, &de) {
		t.Fatalf("expected *DecodeError for 4100x4000, got %v", err)
	}

	capped := DefaultPreprocessConfig()
	capped.MaxPixels = 400*300 - 1
	if _, err := NewPreprocessor(capped).Preprocess(visiontest.DefaultChartPNG()); !errors.Is(err, models.ErrDecode) {
		t.Errorf("400x300 over a %d pixel cap: %v", capped.MaxPixels, err)
	}
	if _, err := Decode(visiontest.DefaultChartPNG(), 400*300); err != nil {
		t.Errorf("exactly at the cap should decode: %v", err)
	}
}

func TestEqualizeHistStretches(t *testing.T) {
	g := image.NewGray(image.Rect(0, 0, 4, 2))
	copy(g.Pix, []uint8{10, 10, 10, 10, 20, 20, 30, 30})
	EqualizeHist(g)
	want := []uint8{0, 0, 0, 0, 128, 128, 255, 255}
	for i := range want {
		if g.Pix[i] != want[i] {
			t.Fatalf("pix %d: got %d want %d (all %v)", i, g.Pix[i], want[i], g.Pix)
		}
	}
}

func TestEqualizeHistFlat(t *testing.T) {
	g := image.NewGray(image.Rect(0, 0, 3, 3))
	for i := range g.Pix {
		g.Pix[i] = 77
	}
	EqualizeHist(g)
	for _, v := range g.Pix {
		if v != 77 {
			t.Fatalf("flat image changed to %d", v)
		}
	}
}

func TestBilateralKeepsStepEdge(t *testing.T) {
	g := image.NewGray(image.Rect(0, 0, 20, 20))
	for y := 0; y < 20; y++ {
		for x := 10; x < 20; x++ {
			g.Pix[y*g.Stride+x] = 255
		}
	}
	out := BilateralFilter(g, 9, 75, 75)
	if v := out.Pix[10*out.Stride+9]; v > 10 {
		t.Errorf("dark side bled to %d", v)
	}
	if v := out.Pix[10*out.Stride+10]; v < 245 {
		t.Errorf("bright side bled to %d", v)
	}
}

func TestPrepareForModel(t *testing.T) {
	p := NewPreprocessor(DefaultPreprocessConfig())
	out, err := p.Preprocess(visiontest.DefaultChartPNG())
	if err != nil {
		t.Fatalf("preprocess: %v", err)
	}
	tensor := PrepareForModel(out.Gray, 64)
	if tensor.Width != 64 || tensor.Height != 64 || len(tensor.Data) != 64*64 {
		t.Fatalf("unexpected tensor shape %dx%d/%d", tensor.Width, tensor.Height, len(tensor.Data))
	}
	for _, v := range tensor.Data {
		if v < 0 || v > 1 {
			t.Fatalf("tensor value out of range: %f", v)
		}
	}
}

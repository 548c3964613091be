package media

import (
	"image"
	"image/color"
	"testing"
)

func bgrFrame() *Frame {
	// 2x1: pure blue pixel, pure red pixel (stored BGR)
	return &Frame{
		Width:  2,
		Height: 1,
		Order:  OrderBGR,
		Pix:    []byte{255, 0, 0, 0, 0, 255},
	}
}

func TestFrame_ConvertSwapsChannelsOnCopy(t *testing.T) {
	src := bgrFrame()
	rgb := src.Convert(OrderRGB)

	if rgb.Order != OrderRGB {
		t.Fatalf("Order = %v, want rgb24", rgb.Order)
	}
	want := []byte{0, 0, 255, 255, 0, 0}
	for i := range want {
		if rgb.Pix[i] != want[i] {
			t.Fatalf("Pix = %v, want %v", rgb.Pix, want)
		}
	}

	// Source untouched and buffers independent
	if src.Pix[0] != 255 || src.Order != OrderBGR {
		t.Errorf("Convert mutated the source: %v", src.Pix)
	}
	rgb.Pix[1] = 42
	if src.Pix[1] == 42 {
		t.Error("Convert shares its buffer with the source")
	}
}

func TestFrame_ConvertSameOrderStillCopies(t *testing.T) {
	src := bgrFrame()
	c := src.Convert(OrderBGR)
	c.Pix[0] = 1
	if src.Pix[0] != 255 {
		t.Error("Convert to the same order must still return a copy")
	}
}

func TestFrame_RGBAAndBack(t *testing.T) {
	src := bgrFrame()
	img := src.RGBA()

	if got := img.RGBAAt(0, 0); got != (color.RGBA{0, 0, 255, 255}) {
		t.Errorf("pixel 0 = %v, want blue", got)
	}
	if got := img.RGBAAt(1, 0); got != (color.RGBA{255, 0, 0, 255}) {
		t.Errorf("pixel 1 = %v, want red", got)
	}

	back := FromImage(img, OrderBGR)
	for i := range src.Pix {
		if back.Pix[i] != src.Pix[i] {
			t.Fatalf("FromImage(RGBA()) = %v, want %v", back.Pix, src.Pix)
		}
	}
}

func TestFrame_Resize(t *testing.T) {
	src := NewFrame(320, 240, OrderBGR)
	for i := 0; i < len(src.Pix); i += 3 {
		src.Pix[i] = 200 // blue channel
	}
	src.Seq = 7

	out := src.Resize(640, 480)
	if out.Width != 640 || out.Height != 480 || !out.Valid() {
		t.Fatalf("Resize() = %dx%d (valid=%v), want 640x480", out.Width, out.Height, out.Valid())
	}
	if out.Order != OrderBGR || out.Seq != 7 {
		t.Errorf("Resize() lost metadata: order=%v seq=%d", out.Order, out.Seq)
	}
	if c := out.At(320, 240); c.B < 195 || c.B > 205 || c.R != 0 {
		t.Errorf("At(320,240) = %v, want blue 200", c)
	}
}

func TestLetterbox_PreservesAspect(t *testing.T) {
	// 4:1 white strip into a square: bars above and below
	src := image.NewRGBA(image.Rect(0, 0, 400, 100))
	for i := range src.Pix {
		src.Pix[i] = 255
	}

	out := Letterbox(src, 200, 200)
	if out.Bounds().Dx() != 200 || out.Bounds().Dy() != 200 {
		t.Fatalf("Letterbox() bounds = %v", out.Bounds())
	}
	if c := out.RGBAAt(100, 5); c.R != 0 {
		t.Errorf("top bar pixel = %v, want black", c)
	}
	if c := out.RGBAAt(100, 100); c.R < 250 {
		t.Errorf("centre pixel = %v, want white", c)
	}
}

func TestRegistry_UnknownBackend(t *testing.T) {
	if _, err := NewOpener("does-not-exist"); err == nil {
		t.Error("NewOpener() of unknown backend should fail")
	}
	if _, err := NewWriterOpener("does-not-exist"); err == nil {
		t.Error("NewWriterOpener() of unknown backend should fail")
	}
}

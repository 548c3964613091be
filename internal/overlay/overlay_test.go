package overlay

import (
	"image"
	"image/color"
	"image/draw"
	"testing"
)

func grayImage(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.RGBA{50, 50, 50, 255}), image.Point{}, draw.Src)
	return img
}

func changed(img *image.RGBA, r image.Rectangle) bool {
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			if img.RGBAAt(x, y) != (color.RGBA{50, 50, 50, 255}) {
				return true
			}
		}
	}
	return false
}

func TestRecordingBadge(t *testing.T) {
	recording := false
	badge := NewRecordingBadge("rec", TopRight, func() bool { return recording })

	img := grayImage(160, 120)
	if err := badge.Render(img); err != nil {
		t.Fatal(err)
	}
	if changed(img, img.Bounds()) {
		t.Error("badge drawn while not recording")
	}

	recording = true
	if err := badge.Render(img); err != nil {
		t.Fatal(err)
	}
	if !changed(img, image.Rect(80, 0, 160, 40)) {
		t.Error("badge not drawn in the top right corner")
	}
	if changed(img, image.Rect(0, 40, 160, 120)) {
		t.Error("badge drew outside its corner")
	}
}

func TestTextWidget_EmptyTextDrawsNothing(t *testing.T) {
	img := grayImage(100, 50)
	w := NewTextWidget("src", BottomLeft, func() string { return "" })
	if err := w.Render(img); err != nil {
		t.Fatal(err)
	}
	if changed(img, img.Bounds()) {
		t.Error("empty text widget changed the image")
	}
}

func TestStatusOverlay(t *testing.T) {
	state := State{Source: "http://cam.local/video"}
	m := NewStatusOverlay(func() State { return state })

	img := grayImage(320, 240)
	if err := m.Render(img); err != nil {
		t.Fatal(err)
	}
	if !changed(img, image.Rect(0, 200, 320, 240)) {
		t.Error("source label not drawn at the bottom")
	}
	if changed(img, image.Rect(240, 0, 320, 40)) {
		t.Error("recording badge drawn while not recording")
	}

	m.SetEnabled(false)
	clean := grayImage(320, 240)
	if err := m.Render(clean); err != nil {
		t.Fatal(err)
	}
	if changed(clean, clean.Bounds()) {
		t.Error("disabled overlay still drew")
	}
}

func TestManager_RejectsDuplicateID(t *testing.T) {
	m := NewManager()
	w := NewTextWidget("a", TopLeft, func() string { return "x" })

	if err := m.AddWidget(w); err != nil {
		t.Fatal(err)
	}
	if err := m.AddWidget(w); err == nil {
		t.Error("AddWidget() accepted a duplicate id")
	}
}

func TestBlendImage_Clips(t *testing.T) {
	dst := grayImage(4, 4)
	src := image.NewRGBA(image.Rect(0, 0, 4, 4))
	draw.Draw(src, src.Bounds(), image.NewUniform(color.RGBA{255, 0, 0, 255}), image.Point{}, draw.Src)

	BlendImage(dst, src, 2, 2, 1.0)

	if got := dst.RGBAAt(3, 3); got.R != 255 || got.G != 0 {
		t.Errorf("overlapping pixel = %+v, want opaque red", got)
	}
	if got := dst.RGBAAt(1, 1); got != (color.RGBA{50, 50, 50, 255}) {
		t.Errorf("pixel outside src = %+v, want unchanged", got)
	}
}

package overlay

import (
	"image"
	"image/color"

	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"
)

var recordRed = color.RGBA{220, 30, 30, 255}

// RecordingBadge shows a red dot and "REC" while recording
type RecordingBadge struct {
	*BaseWidget
	recording func() bool
}

// NewRecordingBadge creates a badge visible whenever recording returns true
func NewRecordingBadge(id string, anchor Anchor, recording func() bool) *RecordingBadge {
	return &RecordingBadge{
		BaseWidget: NewBaseWidget(id, anchor, 8, 1.0),
		recording:  recording,
	}
}

// Type returns the widget type
func (w *RecordingBadge) Type() string {
	return "recording"
}

// Render draws the badge when recording
func (w *RecordingBadge) Render(img *image.RGBA) error {
	if !w.IsEnabled() || w.recording == nil || !w.recording() {
		return nil
	}

	const (
		label  = "REC"
		radius = 5
		gap    = 4
		pad    = 3
	)
	labelW := font.MeasureString(face, label).Ceil()
	boxW := pad + radius*2 + gap + labelW + pad
	boxH := textHeight + pad*2
	at := w.origin(img.Bounds(), boxW, boxH)

	DrawRectangle(img, at.X, at.Y, boxW, boxH, color.Black, 0.5)
	DrawDisc(img, at.X+pad+radius, at.Y+boxH/2, radius, recordRed)

	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(recordRed),
		Face: face,
		Dot:  fixed.P(at.X+pad+radius*2+gap, at.Y+pad+face.Ascent),
	}
	d.DrawString(label)
	return nil
}

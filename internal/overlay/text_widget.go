package overlay

import (
	"image"
	"image/color"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// face is the only font; it covers printable ASCII
var face = basicfont.Face7x13

const textHeight = 13

// TextWidget displays a line of text, read from a provider on every render
type TextWidget struct {
	*BaseWidget
	text      func() string
	textColor color.RGBA
	bgColor   *color.RGBA // nil for no background
	padding   int
}

// NewTextWidget creates a text widget that renders whatever text returns
func NewTextWidget(id string, anchor Anchor, text func() string) *TextWidget {
	return &TextWidget{
		BaseWidget: NewBaseWidget(id, anchor, 6, 0.85),
		text:       text,
		textColor:  color.RGBA{255, 255, 255, 255},
		bgColor:    &color.RGBA{0, 0, 0, 255},
		padding:    4,
	}
}

// Type returns the widget type
func (w *TextWidget) Type() string {
	return "text"
}

// SetColor sets the text color
func (w *TextWidget) SetColor(c color.RGBA) {
	w.textColor = c
}

// SetBackground sets the background color (nil for transparent)
func (w *TextWidget) SetBackground(c *color.RGBA) {
	w.bgColor = c
}

// Render draws the text widget
func (w *TextWidget) Render(img *image.RGBA) error {
	if !w.IsEnabled() || w.text == nil {
		return nil
	}
	text := w.text()
	if text == "" {
		return nil
	}

	textWidth := font.MeasureString(face, text).Ceil()
	boxW := textWidth + w.padding*2
	boxH := textHeight + w.padding*2
	at := w.origin(img.Bounds(), boxW, boxH)

	if w.bgColor != nil {
		DrawRectangle(img, at.X, at.Y, boxW, boxH, *w.bgColor, w.opacity*0.6)
	}

	textImg := image.NewRGBA(image.Rect(0, 0, textWidth, textHeight))
	d := &font.Drawer{
		Dst:  textImg,
		Src:  image.NewUniform(w.textColor),
		Face: face,
		Dot:  fixed.Point26_6{X: 0, Y: fixed.I(face.Ascent)},
	}
	d.DrawString(text)

	BlendImage(img, textImg, at.X+w.padding, at.Y+w.padding, w.opacity)
	return nil
}

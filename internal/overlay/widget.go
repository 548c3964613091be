package overlay

import (
	"image"
	"image/color"
	"image/draw"
)

// Widget is one element drawn over the displayed video
type Widget interface {
	// ID returns the unique identifier for this widget instance
	ID() string

	// Type returns the widget type name
	Type() string

	// Render draws the widget onto img
	Render(img *image.RGBA) error

	// IsEnabled returns whether the widget should be rendered
	IsEnabled() bool

	// SetEnabled sets whether the widget should be rendered
	SetEnabled(enabled bool)
}

// Anchor selects the corner a widget is positioned from
type Anchor int

const (
	TopLeft Anchor = iota
	TopRight
	BottomLeft
	BottomRight
)

// BaseWidget provides common functionality for all widgets
type BaseWidget struct {
	id      string
	enabled bool
	anchor  Anchor
	margin  int
	opacity float64 // 0.0 to 1.0
}

// NewBaseWidget creates a new base widget
func NewBaseWidget(id string, anchor Anchor, margin int, opacity float64) *BaseWidget {
	w := &BaseWidget{
		id:      id,
		enabled: true,
		anchor:  anchor,
		margin:  margin,
	}
	w.SetOpacity(opacity)
	return w
}

// ID returns the widget's unique identifier
func (w *BaseWidget) ID() string {
	return w.id
}

// IsEnabled returns whether the widget should be rendered
func (w *BaseWidget) IsEnabled() bool {
	return w.enabled
}

// SetEnabled sets whether the widget should be rendered
func (w *BaseWidget) SetEnabled(enabled bool) {
	w.enabled = enabled
}

// SetOpacity sets the widget's opacity (0.0 to 1.0)
func (w *BaseWidget) SetOpacity(opacity float64) {
	if opacity < 0.0 {
		opacity = 0.0
	}
	if opacity > 1.0 {
		opacity = 1.0
	}
	w.opacity = opacity
}

// origin returns the top-left corner of a width x height box placed at the
// widget's anchor inside bounds
func (w *BaseWidget) origin(bounds image.Rectangle, width, height int) image.Point {
	x := bounds.Min.X + w.margin
	y := bounds.Min.Y + w.margin
	if w.anchor == TopRight || w.anchor == BottomRight {
		x = bounds.Max.X - w.margin - width
	}
	if w.anchor == BottomLeft || w.anchor == BottomRight {
		y = bounds.Max.Y - w.margin - height
	}
	return image.Pt(x, y)
}

// BlendImage blends src onto dst at (x, y) with the given opacity. Pixels
// outside dst are clipped.
func BlendImage(dst *image.RGBA, src image.Image, x, y int, opacity float64) {
	srcBounds := src.Bounds()
	dstBounds := dst.Bounds()

	for sy := srcBounds.Min.Y; sy < srcBounds.Max.Y; sy++ {
		dy := y + (sy - srcBounds.Min.Y)
		if dy < dstBounds.Min.Y || dy >= dstBounds.Max.Y {
			continue
		}

		for sx := srcBounds.Min.X; sx < srcBounds.Max.X; sx++ {
			dx := x + (sx - srcBounds.Min.X)
			if dx < dstBounds.Min.X || dx >= dstBounds.Max.X {
				continue
			}

			sr, sg, sb, sa := src.At(sx, sy).RGBA()
			alpha := float64(sa) * opacity / 65535.0
			if alpha <= 0 {
				continue
			}

			// video frames are opaque, so only the source alpha matters
			d := dst.RGBAAt(dx, dy)
			dst.SetRGBA(dx, dy, color.RGBA{
				R: mix(sr, d.R, opacity, alpha),
				G: mix(sg, d.G, opacity, alpha),
				B: mix(sb, d.B, opacity, alpha),
				A: 255,
			})
		}
	}
}

// mix blends a premultiplied 16-bit source channel over an 8-bit one
func mix(src uint32, dst uint8, opacity, alpha float64) uint8 {
	v := float64(src)/257.0*opacity + float64(dst)*(1-alpha)
	if v > 255 {
		v = 255
	}
	return uint8(v)
}

// DrawRectangle draws a filled rectangle with the specified color and opacity
func DrawRectangle(dst *image.RGBA, x, y, width, height int, c color.Color, opacity float64) {
	tmp := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(tmp, tmp.Bounds(), image.NewUniform(c), image.Point{}, draw.Src)
	BlendImage(dst, tmp, x, y, opacity)
}

// DrawDisc draws a filled circle centred on (cx, cy)
func DrawDisc(dst *image.RGBA, cx, cy, radius int, c color.RGBA) {
	b := dst.Bounds()
	for y := cy - radius; y <= cy+radius; y++ {
		for x := cx - radius; x <= cx+radius; x++ {
			dx, dy := x-cx, y-cy
			if dx*dx+dy*dy > radius*radius {
				continue
			}
			if image.Pt(x, y).In(b) {
				dst.SetRGBA(x, y, c)
			}
		}
	}
}

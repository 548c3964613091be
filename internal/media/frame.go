package media

import (
	"image"
	"image/color"
	"time"

	"golang.org/x/image/draw"
)

// PixelOrder is the channel order of a packed 3-byte-per-pixel buffer
type PixelOrder int

const (
	// OrderBGR is what capture libraries deliver and encoders consume
	OrderBGR PixelOrder = iota
	// OrderRGB is what display surfaces consume
	OrderRGB
)

// String returns the conventional name of the pixel order
func (o PixelOrder) String() string {
	switch o {
	case OrderBGR:
		return "bgr24"
	case OrderRGB:
		return "rgb24"
	default:
		return "unknown"
	}
}

// Frame is one decoded image sampled from a video source.
// Pix holds Width*Height pixels, 3 bytes each, rows tightly packed.
type Frame struct {
	Width  int
	Height int
	Order  PixelOrder
	Pix    []byte
	Seq    int64
	Time   time.Time
}

// NewFrame allocates a black frame
func NewFrame(width, height int, order PixelOrder) *Frame {
	return &Frame{
		Width:  width,
		Height: height,
		Order:  order,
		Pix:    make([]byte, width*height*3),
		Time:   time.Now(),
	}
}

// Stride is the number of bytes per row
func (f *Frame) Stride() int {
	return f.Width * 3
}

// Valid reports whether the buffer matches the declared geometry
func (f *Frame) Valid() bool {
	return f != nil && f.Width > 0 && f.Height > 0 && len(f.Pix) == f.Width*f.Height*3
}

// Clone returns a deep copy
func (f *Frame) Clone() *Frame {
	c := *f
	c.Pix = make([]byte, len(f.Pix))
	copy(c.Pix, f.Pix)
	return &c
}

// Convert returns an independent copy in the requested channel order.
// The receiver is never modified, so display and recording can each take
// their own copy of the same source frame.
func (f *Frame) Convert(order PixelOrder) *Frame {
	c := f.Clone()
	if f.Order == order {
		return c
	}
	for i := 0; i+2 < len(c.Pix); i += 3 {
		c.Pix[i], c.Pix[i+2] = c.Pix[i+2], c.Pix[i]
	}
	c.Order = order
	return c
}

// At returns the pixel at (x, y) as RGB regardless of the frame order
func (f *Frame) At(x, y int) color.RGBA {
	i := y*f.Stride() + x*3
	if f.Order == OrderBGR {
		return color.RGBA{R: f.Pix[i+2], G: f.Pix[i+1], B: f.Pix[i], A: 255}
	}
	return color.RGBA{R: f.Pix[i], G: f.Pix[i+1], B: f.Pix[i+2], A: 255}
}

// RGBA expands the frame into a new image the display side can draw on
func (f *Frame) RGBA() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, f.Width, f.Height))
	r, b := 0, 2
	if f.Order == OrderBGR {
		r, b = 2, 0
	}
	for y := 0; y < f.Height; y++ {
		src := f.Pix[y*f.Stride() : (y+1)*f.Stride()]
		dst := img.Pix[y*img.Stride : y*img.Stride+f.Width*4]
		for x := 0; x < f.Width; x++ {
			dst[x*4] = src[x*3+r]
			dst[x*4+1] = src[x*3+1]
			dst[x*4+2] = src[x*3+b]
			dst[x*4+3] = 255
		}
	}
	return img
}

// FromImage packs any image into a frame with the given order
func FromImage(img image.Image, order PixelOrder) *Frame {
	bounds := img.Bounds()
	rgba, ok := img.(*image.RGBA)
	if !ok || bounds.Min != (image.Point{}) {
		rgba = image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
		draw.Draw(rgba, rgba.Bounds(), img, bounds.Min, draw.Src)
	}

	f := NewFrame(bounds.Dx(), bounds.Dy(), order)
	r, b := 0, 2
	if order == OrderBGR {
		r, b = 2, 0
	}
	for y := 0; y < f.Height; y++ {
		src := rgba.Pix[y*rgba.Stride : y*rgba.Stride+f.Width*4]
		dst := f.Pix[y*f.Stride() : (y+1)*f.Stride()]
		for x := 0; x < f.Width; x++ {
			dst[x*3+r] = src[x*4]
			dst[x*3+1] = src[x*4+1]
			dst[x*3+b] = src[x*4+2]
		}
	}
	return f
}

// Resize returns a copy scaled to exactly width x height (no letterboxing).
// Encoders silently drop frames whose size differs from what they were
// opened with, so recording resizes before writing.
func (f *Frame) Resize(width, height int) *Frame {
	if f.Width == width && f.Height == height {
		return f.Clone()
	}
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), f.RGBA(), image.Rect(0, 0, f.Width, f.Height), draw.Src, nil)

	out := FromImage(dst, f.Order)
	out.Seq = f.Seq
	out.Time = f.Time
	return out
}

// Letterbox scales src to fit inside width x height keeping the aspect
// ratio, centred on a black background.
func Letterbox(src *image.RGBA, width, height int) *image.RGBA {
	out := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(out, out.Bounds(), image.Black, image.Point{}, draw.Src)

	sb := src.Bounds()
	if sb.Dx() == 0 || sb.Dy() == 0 || width == 0 || height == 0 {
		return out
	}

	scaleX := float64(width) / float64(sb.Dx())
	scaleY := float64(height) / float64(sb.Dy())
	scale := scaleX
	if scaleY < scaleX {
		scale = scaleY
	}

	dstW := int(float64(sb.Dx()) * scale)
	dstH := int(float64(sb.Dy()) * scale)
	offX := (width - dstW) / 2
	offY := (height - dstH) / 2

	draw.ApproxBiLinear.Scale(out, image.Rect(offX, offY, offX+dstW, offY+dstH), src, sb, draw.Src, nil)
	return out
}

package video

import (
	"image"
	"image/color"
	"sync"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
)

// LabelFontSize is the point size of the label text drawn on RGBA frames.
const LabelFontSize = 11

var labelFace = sync.OnceValues(func() (font.Face, error) {
	f, err := truetype.Parse(goregular.TTF)
	if err != nil {
		return nil, err
	}
	return truetype.NewFace(f, &truetype.Options{Size: LabelFontSize}), nil
})

// RGBAFrame is a pure Go frame backed by an *image.RGBA.
type RGBAFrame struct {
	img *image.RGBA
	dc  *gg.Context
}

var _ Frame = (*RGBAFrame)(nil)

// NewRGBAFrame wraps img. Drawing modifies img.
func NewRGBAFrame(img *image.RGBA) *RGBAFrame {
	return &RGBAFrame{img: img, dc: gg.NewContextForRGBA(img)}
}

// Size returns the frame width and height.
func (f *RGBAFrame) Size() image.Point {
	return f.img.Bounds().Size()
}

// DrawRectangle strokes r.
func (f *RGBAFrame) DrawRectangle(r image.Rectangle, c color.RGBA, thickness int) {
	f.dc.SetColor(c)
	f.dc.SetLineWidth(float64(thickness))
	f.dc.DrawRectangle(float64(r.Min.X), float64(r.Min.Y), float64(r.Dx()), float64(r.Dy()))
	f.dc.Stroke()
}

// FillRectangle fills r.
func (f *RGBAFrame) FillRectangle(r image.Rectangle, c color.RGBA) {
	f.dc.SetColor(c)
	f.dc.DrawRectangle(float64(r.Min.X), float64(r.Min.Y), float64(r.Dx()), float64(r.Dy()))
	f.dc.Fill()
}

// DrawText draws text with its baseline at origin. Text is skipped if the font cannot load.
func (f *RGBAFrame) DrawText(text string, origin image.Point, c color.RGBA) {
	face, err := labelFace()
	if err != nil {
		return
	}
	f.dc.SetFontFace(face)
	f.dc.SetColor(c)
	f.dc.DrawString(text, float64(origin.X), float64(origin.Y))
}

// Image returns the backing image.
func (f *RGBAFrame) Image() (image.Image, error) {
	return f.img, nil
}

// RGBA returns the backing image.
func (f *RGBAFrame) RGBA() *image.RGBA {
	return f.img
}

// Close is a no-op; the buffer is garbage collected.
func (f *RGBAFrame) Close() error {
	return nil
}

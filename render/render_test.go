package render

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvr-ai/ssd-video/images"
	"github.com/nvr-ai/ssd-video/models"
	"github.com/nvr-ai/ssd-video/models/postprocess"
)

type call struct {
	op    string
	rect  image.Rectangle
	text  string
	at    image.Point
	color color.RGBA
	width int
}

// recorder is a canvas that records every primitive drawn on it.
type recorder struct {
	size  image.Point
	calls []call
}

func (r *recorder) Size() image.Point { return r.size }

func (r *recorder) DrawRectangle(rect image.Rectangle, c color.RGBA, thickness int) {
	r.calls = append(r.calls, call{op: "rect", rect: rect, color: c, width: thickness})
}

func (r *recorder) FillRectangle(rect image.Rectangle, c color.RGBA) {
	r.calls = append(r.calls, call{op: "fill", rect: rect, color: c})
}

func (r *recorder) DrawText(text string, origin image.Point, c color.RGBA) {
	r.calls = append(r.calls, call{op: "text", text: text, at: origin, color: c})
}

func newRenderer(t *testing.T) (*Renderer, Palette) {
	t.Helper()
	palette := NewPalette(21, 1)
	r, err := NewRenderer(models.VOCClasses(), palette)
	require.NoError(t, err)
	return r, palette
}

// TestRender_Car draws one car detection with its label band and caption.
func TestRender_Car(t *testing.T) {
	r, palette := newRenderer(t)
	canvas := &recorder{size: image.Pt(640, 480)}

	err := r.Render(canvas, []postprocess.Result{{
		Class: 7,
		Score: 0.9,
		Box:   images.Box{YMin: 0.25, XMin: 0.1, YMax: 0.75, XMax: 0.5},
	}})
	require.NoError(t, err)
	require.Len(t, canvas.calls, 3)

	assert.Equal(t, call{op: "rect", rect: image.Rect(64, 120, 320, 360), color: palette[7], width: 2}, canvas.calls[0])
	assert.Equal(t, call{op: "fill", rect: image.Rect(64, 114, 244, 126), color: palette[7]}, canvas.calls[1])
	assert.Equal(t, call{op: "text", text: "car | 0.900", at: image.Pt(64, 126), color: White}, canvas.calls[2])
}

// TestRender_UnknownClass surfaces a class outside the table.
func TestRender_UnknownClass(t *testing.T) {
	r, _ := newRenderer(t)
	canvas := &recorder{size: image.Pt(100, 100)}

	err := r.Render(canvas, []postprocess.Result{
		{Class: 15, Score: 0.8, Box: images.UnitBox},
		{Class: 21, Score: 0.7, Box: images.UnitBox},
		{Class: 3, Score: 0.6, Box: images.UnitBox},
	})
	assert.ErrorIs(t, err, ErrUnknownClass)
	assert.Len(t, canvas.calls, 3, "only the detection before the bad one is drawn")

	err = r.Render(canvas, []postprocess.Result{{Class: -1}})
	assert.ErrorIs(t, err, ErrUnknownClass)
}

// TestRender_DegenerateBox tolerates zero-area boxes on the image edge.
func TestRender_DegenerateBox(t *testing.T) {
	r, _ := newRenderer(t)
	canvas := &recorder{size: image.Pt(100, 100)}

	err := r.Render(canvas, []postprocess.Result{{Class: 1, Score: 0.5, Box: images.Box{YMin: 1, XMin: 1, YMax: 1, XMax: 1}}})
	require.NoError(t, err)
	assert.Equal(t, image.Rect(100, 100, 100, 100), canvas.calls[0].rect)
}

// TestNewPalette is deterministic per seed and fully opaque.
func TestNewPalette(t *testing.T) {
	a := NewPalette(21, 42)
	b := NewPalette(21, 42)
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, NewPalette(21, 43))

	for i, c := range a {
		assert.Equal(t, uint8(0xff), c.A, "color %d", i)
	}
	_, ok := a.Color(21)
	assert.False(t, ok)
}

// TestNewRendererValidation needs a palette covering every class.
func TestNewRendererValidation(t *testing.T) {
	_, err := NewRenderer(models.VOCClasses(), NewPalette(5, 1))
	assert.Error(t, err)
	_, err = NewRenderer(nil, NewPalette(5, 1))
	assert.Error(t, err)
}

package render

import (
	"fmt"
	"image"
	"image/color"

	"github.com/pkg/errors"

	"github.com/nvr-ai/ssd-video/models"
	"github.com/nvr-ai/ssd-video/models/postprocess"
)

// ErrUnknownClass is returned when a detection carries a class id outside the label table.
var ErrUnknownClass = errors.New("class id outside the label table")

// Label geometry, in pixels.
const (
	BoxThickness    = 2
	LabelWidth      = 180
	LabelHalfHeight = 6
)

// White is the label text color.
var White = color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}

// Renderer draws detections with their class name and score.
type Renderer struct {
	classes *models.OutputClassSet
	palette Palette
}

// NewRenderer creates a renderer over a label table and a palette covering it.
func NewRenderer(classes *models.OutputClassSet, palette Palette) (*Renderer, error) {
	if classes == nil || classes.Len() == 0 {
		return nil, errors.New("label table is empty")
	}
	if len(palette) < classes.Len() {
		return nil, errors.Errorf("palette has %d colors for %d classes", len(palette), classes.Len())
	}
	return &Renderer{classes: classes, palette: palette}, nil
}

// Render draws every detection onto the canvas in place.
//
// Each box is scaled to pixels by truncation, outlined in the class color, and topped by a
// filled label band holding "<name> | <score>" in white.
//
// Returns:
//   - error: ErrUnknownClass for a class outside the label table. Detections after it are
//     not drawn.
func (r *Renderer) Render(canvas Canvas, detections []postprocess.Result) error {
	size := canvas.Size()

	for _, d := range detections {
		name, ok := r.classes.Name(d.Class)
		if !ok {
			return errors.Wrapf(ErrUnknownClass, "class %d of %d", d.Class, r.classes.Len())
		}
		c, _ := r.palette.Color(d.Class)

		rect := d.Box.ToRect(size.X, size.Y)
		canvas.DrawRectangle(rect, c, BoxThickness)

		band := image.Rect(
			rect.Min.X, rect.Min.Y-LabelHalfHeight,
			rect.Min.X+LabelWidth, rect.Min.Y+LabelHalfHeight,
		)
		canvas.FillRectangle(band, c)
		canvas.DrawText(Label(name, d.Score), image.Pt(rect.Min.X, rect.Min.Y+LabelHalfHeight), White)
	}
	return nil
}

// Label formats the caption of a detection.
func Label(name string, score float32) string {
	return fmt.Sprintf("%s | %.3f", name, score)
}

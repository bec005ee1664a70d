// Package render - Draws detections onto frames.
package render

import (
	"image"
	"image/color"
)

// Canvas is a mutable pixel buffer that detections are drawn on.
//
// Implementations clip drawing to their bounds; coordinates outside the canvas are never an
// error.
type Canvas interface {
	// Size returns the canvas width (X) and height (Y) in pixels.
	Size() image.Point
	// DrawRectangle strokes the outline of r.
	DrawRectangle(r image.Rectangle, c color.RGBA, thickness int)
	// FillRectangle fills r.
	FillRectangle(r image.Rectangle, c color.RGBA)
	// DrawText draws text with its baseline starting at origin.
	DrawText(text string, origin image.Point, c color.RGBA)
}

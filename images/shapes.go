// Package images - Image geometry utilities
package images

import (
	"fmt"
	"image"

	"github.com/chewxy/math32"
)

// Box is a bounding box in normalized image coordinates.
//
// Coordinates follow the SSD convention (y first): YMin/XMin is the top-left corner and
// YMax/XMax is the bottom-right corner, both expressed as fractions of the image height and
// width. A decoded box may extend past [0, 1] until it is clipped.
type Box struct {
	YMin float32 `json:"ymin" yaml:"ymin"`
	XMin float32 `json:"xmin" yaml:"xmin"`
	YMax float32 `json:"ymax" yaml:"ymax"`
	XMax float32 `json:"xmax" yaml:"xmax"`
}

// UnitBox is the whole image: the reference box produced by a plain stretch resize.
var UnitBox = Box{YMin: 0, XMin: 0, YMax: 1, XMax: 1}

// Height returns the height of the box, or 0 for an inverted box.
func (b Box) Height() float32 {
	return math32.Max(b.YMax-b.YMin, 0)
}

// Width returns the width of the box, or 0 for an inverted box.
func (b Box) Width() float32 {
	return math32.Max(b.XMax-b.XMin, 0)
}

// Area returns the area of the box. Degenerate and inverted boxes have area 0.
func (b Box) Area() float32 {
	return b.Height() * b.Width()
}

// Empty reports whether the box has zero area.
func (b Box) Empty() bool {
	return b.Area() <= 0
}

// Clamp restricts every coordinate of b to the region covered by ref.
//
// The result always satisfies ref.YMin <= YMin <= YMax <= ref.YMax (and the same for X). A
// box lying entirely outside ref collapses onto the nearest edge of ref with zero area.
func (b Box) Clamp(ref Box) Box {
	out := Box{
		YMin: clamp(b.YMin, ref.YMin, ref.YMax),
		XMin: clamp(b.XMin, ref.XMin, ref.XMax),
		YMax: clamp(b.YMax, ref.YMin, ref.YMax),
		XMax: clamp(b.XMax, ref.XMin, ref.XMax),
	}
	// An inverted input collapses to its min edge.
	if out.YMax < out.YMin {
		out.YMax = out.YMin
	}
	if out.XMax < out.XMin {
		out.XMax = out.XMin
	}
	return out
}

// ToRect converts the normalized box into pixel coordinates for an image of the given size.
//
// Each coordinate is scaled and truncated toward zero, the same way the pixel positions of a
// detection are computed before drawing.
//
// Arguments:
//   - width: Image width in pixels.
//   - height: Image height in pixels.
//
// Returns:
//   - image.Rectangle: The pixel rectangle. It is not canonicalized so a degenerate box maps
//     to an empty rectangle at its position.
func (b Box) ToRect(width, height int) image.Rectangle {
	return image.Rectangle{
		Min: image.Point{X: int(b.XMin * float32(width)), Y: int(b.YMin * float32(height))},
		Max: image.Point{X: int(b.XMax * float32(width)), Y: int(b.YMax * float32(height))},
	}
}

func (b Box) String() string {
	return fmt.Sprintf("[%.4f, %.4f, %.4f, %.4f]", b.YMin, b.XMin, b.YMax, b.XMax)
}

// Jaccard computes the Jaccard overlap (Intersection over Union) of two normalized boxes.
//
// IoU is the fundamental overlap metric of object detection:
//
//	IoU = Area of Intersection / Area of Union
//
//	- A value of 1.0 means the boxes are identical.
//	- A value of 0.0 means the boxes don't overlap at all.
//
// **1. Intersection**
//
//	The top-left corner of the intersection is the *maximum* of the two top-left corners and the
//	bottom-right corner is the *minimum* of the two bottom-right corners. When the resulting
//	height or width is zero or negative the boxes do not overlap.
//
// **2. Union**
//
//	Area(Union) = Area(A) + Area(B) - Area(Intersection)
//
// **3. Degenerate boxes**
//
//	The overlap of a zero-area box with anything is defined as 0. This keeps boxes that
//	collapsed during clipping from dividing by zero, and such a box never suppresses or is
//	suppressed by another one.
//
// Arguments:
//   - a: The first box.
//   - b: The other box to compare against.
//
// Returns:
//   - float32: A value between 0.0 and 1.0.
//
// Example Usage:
// ```go
//
//	a := Box{YMin: 0, XMin: 0, YMax: 0.5, XMax: 0.5}
//	b := Box{YMin: 0.25, XMin: 0.25, YMax: 0.75, XMax: 0.75}
//	iou := Jaccard(a, b) // intersection 0.0625, union 0.4375, iou ≈ 0.142857
//
// ```
func Jaccard(a, b Box) float32 {
	areaA := a.Area()
	areaB := b.Area()
	if areaA <= 0 || areaB <= 0 {
		return 0
	}

	iy1 := math32.Max(a.YMin, b.YMin)
	ix1 := math32.Max(a.XMin, b.XMin)
	iy2 := math32.Min(a.YMax, b.YMax)
	ix2 := math32.Min(a.XMax, b.XMax)

	interH := iy2 - iy1
	interW := ix2 - ix1
	if interH <= 0 || interW <= 0 {
		return 0
	}
	inter := interH * interW

	union := areaA + areaB - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

func clamp(v, lo, hi float32) float32 {
	if math32.IsNaN(v) {
		return lo
	}
	return math32.Min(math32.Max(v, lo), hi)
}

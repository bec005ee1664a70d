// Package anchors - Anchor (prior box) geometry shared by detectors and decoders.
package anchors

import (
	"fmt"

	"github.com/nvr-ai/ssd-video/images"
)

// Anchor is one reference box of the prior grid in normalized coordinates.
type Anchor struct {
	// CY, CX is the center of the anchor.
	CY, CX float32
	// H, W is the height and width of the anchor.
	H, W float32
	// Layer is the index of the feature map the anchor belongs to.
	Layer int
}

// Box returns the anchor as a corner box.
func (a Anchor) Box() images.Box {
	return images.Box{
		YMin: a.CY - a.H/2,
		XMin: a.CX - a.W/2,
		YMax: a.CY + a.H/2,
		XMax: a.CX + a.W/2,
	}
}

// Layer describes one feature map of the detector head.
type Layer struct {
	// Rows and Cols is the spatial size of the feature map.
	Rows, Cols int
	// PerCell is the number of anchors generated for each feature map cell.
	PerCell int
}

// Count returns the number of anchors contributed by the layer.
func (l Layer) Count() int {
	return l.Rows * l.Cols * l.PerCell
}

// Geometry is the immutable anchor set of a detector for a fixed input shape.
//
// It is built once at startup and then shared read-only by every frame, so it is safe for
// concurrent readers.
type Geometry struct {
	anchors []Anchor
	layers  []Layer
}

// New builds a Geometry from a flat anchor list and its layer table.
//
// Arguments:
//   - list: Anchors in detector output order.
//   - layers: Feature map layers in the same order. May be nil for a single flat layer.
//
// Returns:
//   - *Geometry: The geometry. The inputs are copied.
//   - error: If the anchor count disagrees with the layer table or an anchor names an unknown layer.
func New(list []Anchor, layers []Layer) (*Geometry, error) {
	if len(layers) == 0 {
		layers = []Layer{{Rows: 1, Cols: len(list), PerCell: 1}}
	}

	total := 0
	for _, l := range layers {
		total += l.Count()
	}
	if total != len(list) {
		return nil, fmt.Errorf("layer table describes %d anchors, got %d", total, len(list))
	}
	for i, a := range list {
		if a.Layer < 0 || a.Layer >= len(layers) {
			return nil, fmt.Errorf("anchor %d references layer %d of %d", i, a.Layer, len(layers))
		}
	}

	g := &Geometry{
		anchors: make([]Anchor, len(list)),
		layers:  make([]Layer, len(layers)),
	}
	copy(g.anchors, list)
	copy(g.layers, layers)
	return g, nil
}

// Len returns the number of anchors.
func (g *Geometry) Len() int {
	return len(g.anchors)
}

// At returns the anchor at index i.
func (g *Geometry) At(i int) Anchor {
	return g.anchors[i]
}

// Layers returns a copy of the layer table.
func (g *Geometry) Layers() []Layer {
	out := make([]Layer, len(g.layers))
	copy(out, g.layers)
	return out
}

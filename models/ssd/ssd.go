// Package ssd - SSD300 (VGG-16) detector head parameters and prior boxes.
package ssd

import (
	"fmt"
	"image"

	"github.com/chewxy/math32"
	"github.com/nvr-ai/ssd-video/models/anchors"
)

// LayerParams describes the prior boxes of one SSD feature map.
type LayerParams struct {
	// FeatureShape is the [rows, cols] size of the feature map.
	FeatureShape [2]int `json:"feature_shape" yaml:"feature_shape"`
	// Sizes is the [min, max] anchor size in input pixels.
	Sizes [2]float32 `json:"sizes" yaml:"sizes"`
	// Ratios is the list of extra aspect ratios.
	Ratios []float32 `json:"ratios" yaml:"ratios"`
	// Step is the stride of the feature map in input pixels.
	Step float32 `json:"step" yaml:"step"`
}

// Params is the SSD head configuration needed to reproduce its prior boxes.
type Params struct {
	// InputShape is the network input size.
	InputShape image.Point `json:"input_shape" yaml:"input_shape"`
	// NumClasses is the number of output classes including background.
	NumClasses int `json:"num_classes" yaml:"num_classes"`
	// Offset is the center offset of each anchor inside its cell.
	Offset float32 `json:"offset" yaml:"offset"`
	// Variances are the prior scaling factors applied to (cx, cy, w, h) offsets.
	Variances [4]float32 `json:"variances" yaml:"variances"`
	// Layers lists the feature maps in output order.
	Layers []LayerParams `json:"layers" yaml:"layers"`
}

// SSD300 returns the parameters of the SSD300 VGG-16 network trained on Pascal VOC.
func SSD300() Params {
	return Params{
		InputShape: image.Point{X: 300, Y: 300},
		NumClasses: 21,
		Offset:     0.5,
		Variances:  [4]float32{0.1, 0.1, 0.2, 0.2},
		Layers: []LayerParams{
			{FeatureShape: [2]int{38, 38}, Sizes: [2]float32{21, 45}, Ratios: []float32{2, 0.5}, Step: 8},
			{FeatureShape: [2]int{19, 19}, Sizes: [2]float32{45, 99}, Ratios: []float32{2, 0.5, 3, 1. / 3}, Step: 16},
			{FeatureShape: [2]int{10, 10}, Sizes: [2]float32{99, 153}, Ratios: []float32{2, 0.5, 3, 1. / 3}, Step: 32},
			{FeatureShape: [2]int{5, 5}, Sizes: [2]float32{153, 207}, Ratios: []float32{2, 0.5, 3, 1. / 3}, Step: 64},
			{FeatureShape: [2]int{3, 3}, Sizes: [2]float32{207, 261}, Ratios: []float32{2, 0.5}, Step: 100},
			{FeatureShape: [2]int{1, 1}, Sizes: [2]float32{261, 315}, Ratios: []float32{2, 0.5}, Step: 300},
		},
	}
}

// NumAnchors returns the total number of prior boxes described by p.
func (p Params) NumAnchors() int {
	n := 0
	for _, l := range p.Layers {
		n += l.FeatureShape[0] * l.FeatureShape[1] * (2 + len(l.Ratios))
	}
	return n
}

// Anchors generates the prior boxes for the given input shape.
//
// Anchors are emitted layer by layer, then row-major over the feature map, then per cell in
// the order: min size, sqrt(min*max) size, then one per aspect ratio. This matches the order
// in which the network flattens its per-layer predictions.
//
// Arguments:
//   - inputShape: The network input size in pixels.
//
// Returns:
//   - *anchors.Geometry: The prior boxes in normalized coordinates.
//   - error: If the input shape is invalid.
func (p Params) Anchors(inputShape image.Point) (*anchors.Geometry, error) {
	if inputShape.X <= 0 || inputShape.Y <= 0 {
		return nil, fmt.Errorf("invalid input shape: %dx%d", inputShape.X, inputShape.Y)
	}
	imgH := float32(inputShape.Y)
	imgW := float32(inputShape.X)

	list := make([]anchors.Anchor, 0, p.NumAnchors())
	layers := make([]anchors.Layer, 0, len(p.Layers))

	for li, l := range p.Layers {
		perCell := 2 + len(l.Ratios)
		hs := make([]float32, perCell)
		ws := make([]float32, perCell)

		hs[0] = l.Sizes[0] / imgH
		ws[0] = l.Sizes[0] / imgW
		mid := math32.Sqrt(l.Sizes[0] * l.Sizes[1])
		hs[1] = mid / imgH
		ws[1] = mid / imgW
		for i, r := range l.Ratios {
			sr := math32.Sqrt(r)
			hs[i+2] = l.Sizes[0] / imgH / sr
			ws[i+2] = l.Sizes[0] / imgW * sr
		}

		for row := 0; row < l.FeatureShape[0]; row++ {
			cy := (float32(row) + p.Offset) * l.Step / imgH
			for col := 0; col < l.FeatureShape[1]; col++ {
				cx := (float32(col) + p.Offset) * l.Step / imgW
				for k := 0; k < perCell; k++ {
					list = append(list, anchors.Anchor{CY: cy, CX: cx, H: hs[k], W: ws[k], Layer: li})
				}
			}
		}

		layers = append(layers, anchors.Layer{
			Rows:    l.FeatureShape[0],
			Cols:    l.FeatureShape[1],
			PerCell: perCell,
		})
	}

	return anchors.New(list, layers)
}

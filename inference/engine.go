// Package inference - Detector contract and model sessions.
package inference

import (
	"context"
	"image"

	"gorgonia.org/tensor"

	"github.com/nvr-ai/ssd-video/models/anchors"
)

// Prediction is the raw output of one forward pass.
type Prediction struct {
	// Scores holds the per-anchor class scores, shaped [anchors, classes].
	Scores *tensor.Dense
	// Offsets holds the per-anchor box offsets (cx, cy, w, h), shaped [anchors, 4].
	Offsets *tensor.Dense
}

// Detector runs the forward pass of an anchor-based detector.
type Detector interface {
	// Infer runs the network on a preprocessed input tensor.
	Infer(ctx context.Context, input *tensor.Dense) (*Prediction, error)
	// Anchors returns the prior boxes the predictions refer to. It is called once per run.
	Anchors(inputShape image.Point) (*anchors.Geometry, error)
	// Close releases the model.
	Close() error
}

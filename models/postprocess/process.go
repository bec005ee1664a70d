package postprocess

import (
	"github.com/pkg/errors"
	"gorgonia.org/tensor"

	"github.com/nvr-ai/ssd-video/images"
	"github.com/nvr-ai/ssd-video/models/anchors"
)

// Config holds the parameters of the SSD post-processing pipeline.
type Config struct {
	// SelectThreshold is the score a class must strictly exceed to become a candidate.
	SelectThreshold float32 `json:"select_threshold" yaml:"select_threshold"`
	// TopK bounds the number of candidates entering NMS. Zero or less disables truncation.
	TopK int `json:"top_k" yaml:"top_k"`
	// NMS configures the suppression pass.
	NMS NMSConfig `json:"nms" yaml:"nms"`
	// Variances are the prior scaling factors for (cx, cy, w, h). They belong to the
	// detector's prior parameters and are copied from there, never read from a file.
	Variances [4]float32 `json:"-" yaml:"-"`
}

// DefaultConfig returns the thresholds used for SSD300 on Pascal VOC.
func DefaultConfig() Config {
	return Config{
		SelectThreshold: 0.5,
		TopK:            400,
		NMS:             DefaultNMSConfig(),
		Variances:       DefaultVariances,
	}
}

// Validate reports whether the configuration can be used.
func (c Config) Validate() error {
	if c.SelectThreshold < 0 || c.SelectThreshold >= 1 {
		return errors.Errorf("select threshold %v out of range [0, 1)", c.SelectThreshold)
	}
	if c.NMS.IoUThreshold < 0 || c.NMS.IoUThreshold > 1 {
		return errors.Errorf("iou threshold %v out of range [0, 1]", c.NMS.IoUThreshold)
	}
	for i, v := range c.Variances {
		if v <= 0 {
			return errors.Errorf("variance %d must be positive, got %v", i, v)
		}
	}
	return nil
}

// Process runs the full detection pipeline on one frame of detector output:
// Decode, Clip, TopK, ApplyGreedyNMS and Remap, in that order.
//
// Arguments:
//   - scores: Class scores shaped [anchors, classes].
//   - offsets: Box offsets shaped [anchors, 4].
//   - geom: The anchor geometry.
//   - reference: The region of the detector input holding the frame.
//   - cfg: Pipeline parameters.
//
// Returns:
//   - []Result: The final detections in frame coordinates.
//   - error: If the tensors do not match the geometry or the reference box is degenerate.
func Process(
	scores, offsets *tensor.Dense,
	geom *anchors.Geometry,
	reference images.Box,
	cfg *Config,
) ([]Result, error) {
	candidates, err := Decode(scores, offsets, geom, cfg)
	if err != nil {
		return nil, errors.Wrap(err, "failed to decode predictions")
	}

	candidates = Clip(reference, candidates)
	candidates = TopK(candidates, cfg.TopK)
	kept := ApplyGreedyNMS(candidates, cfg.NMS)

	out, err := Remap(reference, kept)
	if err != nil {
		return nil, errors.Wrap(err, "failed to remap detections")
	}
	return out, nil
}

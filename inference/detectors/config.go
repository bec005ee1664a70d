// Package detectors - ONNX Runtime backed detectors.
package detectors

import (
	"github.com/pkg/errors"

	"github.com/nvr-ai/ssd-video/inference"
	"github.com/nvr-ai/ssd-video/models/ssd"
)

// Config represents the configuration of the SSD ONNX detector.
type Config struct {
	// ModelPath is the serialized ONNX model.
	ModelPath string `json:"model_path" yaml:"model_path"`
	// SharedLibraryPath is the ONNX Runtime shared library. Empty selects the platform default.
	SharedLibraryPath string `json:"shared_library_path" yaml:"shared_library_path"`
	// Provider selects the execution backend.
	Provider inference.ExecutionProvider `json:"provider" yaml:"provider"`
	// InputName is the name of the image input of the graph.
	InputName string `json:"input_name" yaml:"input_name"`
	// InputShape is the full input tensor shape, batch included.
	InputShape []int64 `json:"input_shape" yaml:"input_shape"`
	// ScoreOutputs names the class score outputs. Either one output holding every anchor or
	// one output per feature layer, in layer order.
	ScoreOutputs []string `json:"score_outputs" yaml:"score_outputs"`
	// OffsetOutputs names the box offset outputs, laid out like ScoreOutputs.
	OffsetOutputs []string `json:"offset_outputs" yaml:"offset_outputs"`
	// ApplySoftmax converts raw class logits to probabilities.
	ApplySoftmax bool `json:"apply_softmax" yaml:"apply_softmax"`
	// IntraOpThreads parallelizes execution within graph nodes. 0 uses the default.
	IntraOpThreads int `json:"intra_op_threads" yaml:"intra_op_threads"`
	// InterOpThreads parallelizes execution across graph nodes. 0 uses the default.
	InterOpThreads int `json:"inter_op_threads" yaml:"inter_op_threads"`
	// Params describes the detector head and its prior boxes.
	Params ssd.Params `json:"params" yaml:"params"`
}

// DefaultSSDConfig returns the configuration of an SSD300 VGG-16 export with its six
// per-layer score and offset outputs.
//
// @example
// config := DefaultSSDConfig()
// config.ModelPath = "./checkpoints/ssd_300_vgg.onnx"
// detector, err := NewSSD(config, logger)
func DefaultSSDConfig() Config {
	params := ssd.SSD300()
	return Config{
		ModelPath:  "./checkpoints/ssd_300_vgg.onnx",
		Provider:   inference.ExecutionProviderCPU,
		InputName:  "input",
		InputShape: []int64{1, int64(params.InputShape.Y), int64(params.InputShape.X), 3},
		ScoreOutputs: []string{
			"predictions_0", "predictions_1", "predictions_2",
			"predictions_3", "predictions_4", "predictions_5",
		},
		OffsetOutputs: []string{
			"localisations_0", "localisations_1", "localisations_2",
			"localisations_3", "localisations_4", "localisations_5",
		},
		IntraOpThreads: 4,
		InterOpThreads: 2,
		Params:         params,
	}
}

// Validate reports whether the configuration is complete.
func (c Config) Validate() error {
	if c.ModelPath == "" {
		return errors.New("model path is required")
	}
	if _, err := inference.ParseExecutionProvider(string(c.Provider)); err != nil {
		return err
	}
	if c.InputName == "" {
		return errors.New("input name is required")
	}
	if len(c.InputShape) != 4 {
		return errors.Errorf("input shape %v must have 4 dimensions", c.InputShape)
	}
	for _, d := range c.InputShape {
		if d <= 0 {
			return errors.Errorf("input shape %v has a non-positive dimension", c.InputShape)
		}
	}
	if c.Params.NumClasses < 2 {
		return errors.Errorf("need at least 2 classes, got %d", c.Params.NumClasses)
	}
	if len(c.Params.Layers) == 0 {
		return errors.New("params define no feature layers")
	}
	for name, outputs := range map[string][]string{"score": c.ScoreOutputs, "offset": c.OffsetOutputs} {
		if len(outputs) != 1 && len(outputs) != len(c.Params.Layers) {
			return errors.Errorf("%s outputs: want 1 or %d names, got %d", name, len(c.Params.Layers), len(outputs))
		}
	}
	return nil
}

// Normalize validates the configuration and returns it with the provider in canonical form.
func (c Config) Normalize() (Config, error) {
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	provider, err := inference.ParseExecutionProvider(string(c.Provider))
	if err != nil {
		return Config{}, err
	}
	c.Provider = provider
	return c, nil
}

// outputShapes returns the shape of each named output holding `depth` values per anchor.
func (c Config) outputShapes(names []string, depth int) [][]int64 {
	if len(names) == 1 {
		return [][]int64{{1, int64(c.Params.NumAnchors()), int64(depth)}}
	}
	shapes := make([][]int64, len(names))
	for i, l := range c.Params.Layers {
		shapes[i] = []int64{
			1,
			int64(l.FeatureShape[0]),
			int64(l.FeatureShape[1]),
			int64(2 + len(l.Ratios)),
			int64(depth),
		}
	}
	return shapes
}

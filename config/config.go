// Package config - Run configuration loaded from YAML on top of built-in defaults.
package config

import (
	"os"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/nvr-ai/ssd-video/inference/detectors"
	"github.com/nvr-ai/ssd-video/models/postprocess"
	"github.com/nvr-ai/ssd-video/stream"
)

// Config is everything a run can be tuned with.
type Config struct {
	// Output is the annotated video path.
	Output string `json:"output" yaml:"output"`
	// Postprocess holds the detection thresholds.
	Postprocess postprocess.Config `json:"postprocess" yaml:"postprocess"`
	// Detector configures the ONNX model.
	Detector detectors.Config `json:"detector" yaml:"detector"`
	// Letterbox keeps the frame aspect ratio when resizing to the detector input.
	Letterbox bool `json:"letterbox" yaml:"letterbox"`
	// PaletteSeed seeds the class colors.
	PaletteSeed int64 `json:"palette_seed" yaml:"palette_seed"`
	// SequenceFPS is the rate used when the input is a directory of frames.
	SequenceFPS float64 `json:"sequence_fps" yaml:"sequence_fps"`
	// LogLevel is a logrus level name.
	LogLevel string `json:"log_level" yaml:"log_level"`
}

// Default returns the built-in configuration.
func Default() Config {
	cfg := Config{
		Output:      stream.DefaultOutputPath,
		Postprocess: postprocess.DefaultConfig(),
		Detector:    detectors.DefaultSSDConfig(),
		PaletteSeed: 1,
		SequenceFPS: 30,
		LogLevel:    logrus.InfoLevel.String(),
	}
	cfg.Postprocess.Variances = cfg.Detector.Params.Variances
	return cfg
}

// Load reads a YAML file over the defaults. An empty path returns the defaults.
//
// Arguments:
//   - path: The YAML file, or "".
//
// Returns:
//   - Config: The merged, validated configuration.
//   - error: If the file cannot be read or parsed, or a value is invalid.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, cfg.Validate()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrapf(err, "failed to read config %s", path)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, errors.Wrapf(err, "failed to parse config %s", path)
	}
	// Decoding uses the priors the detector was exported with.
	cfg.Postprocess.Variances = cfg.Detector.Params.Variances
	if err := cfg.Validate(); err != nil {
		return Config{}, errors.Wrapf(err, "invalid config %s", path)
	}
	if cfg.Detector, err = cfg.Detector.Normalize(); err != nil {
		return Config{}, errors.Wrapf(err, "invalid config %s", path)
	}
	return cfg, nil
}

// Validate checks every section.
func (c Config) Validate() error {
	if c.Output == "" {
		return errors.New("output path is required")
	}
	if err := c.Postprocess.Validate(); err != nil {
		return errors.Wrap(err, "postprocess")
	}
	if err := c.Detector.Validate(); err != nil {
		return errors.Wrap(err, "detector")
	}
	if c.Postprocess.Variances != c.Detector.Params.Variances {
		return errors.Errorf("postprocess variances %v differ from detector priors %v",
			c.Postprocess.Variances, c.Detector.Params.Variances)
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// Level returns the parsed log level.
func (c Config) Level() logrus.Level {
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return logrus.InfoLevel
	}
	return level
}

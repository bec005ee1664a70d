package detectors

import (
	"context"
	"image"
	"os"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	ort "github.com/yalue/onnxruntime_go"
	"go.uber.org/multierr"
	"gorgonia.org/tensor"

	"github.com/nvr-ai/ssd-video/inference"
	"github.com/nvr-ai/ssd-video/models/anchors"
)

// SSD runs an SSD network exported to ONNX through ONNX Runtime.
type SSD struct {
	config  Config
	session *inference.Session
	logger  logrus.FieldLogger

	numScores int
}

var _ inference.Detector = (*SSD)(nil)

// NewSSD loads the model and binds its input and output tensors.
//
// Arguments:
//   - config: The detector configuration.
//   - logger: The logger for status lines.
//
// Returns:
//   - *SSD: The detector, ready for Infer.
//   - error: An error if the runtime or the session cannot be created.
func NewSSD(config Config, logger logrus.FieldLogger) (*SSD, error) {
	config, err := config.Normalize()
	if err != nil {
		return nil, errors.Wrap(err, "invalid detector config")
	}

	libPath := config.SharedLibraryPath
	if libPath == "" {
		if libPath, err = inference.DefaultSharedLibraryPath(); err != nil {
			return nil, err
		}
	}
	if _, err := os.Stat(libPath); err != nil {
		return nil, errors.Wrapf(err, "ONNX Runtime library not found at %s", libPath)
	}

	if !ort.IsInitialized() {
		ort.SetSharedLibraryPath(libPath)
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, errors.Wrap(err, "error initializing ORT environment")
		}
	}

	session, err := newSession(config)
	if err != nil {
		return nil, err
	}

	logger.WithFields(logrus.Fields{
		"model":    config.ModelPath,
		"provider": config.Provider,
		"anchors":  config.Params.NumAnchors(),
	}).Info("✅ SSD detector initialized")

	return &SSD{
		config:    config,
		session:   session,
		logger:    logger,
		numScores: config.Params.NumClasses,
	}, nil
}

func newSession(config Config) (*inference.Session, error) {
	s := &inference.Session{}
	fail := func(err error) (*inference.Session, error) {
		return nil, multierr.Append(err, s.Close())
	}

	input, err := ort.NewEmptyTensor[float32](ort.NewShape(config.InputShape...))
	if err != nil {
		return fail(errors.Wrap(err, "error creating input tensor"))
	}
	s.Inputs = append(s.Inputs, input)

	outputNames := append(append([]string{}, config.ScoreOutputs...), config.OffsetOutputs...)
	shapes := append(
		config.outputShapes(config.ScoreOutputs, config.Params.NumClasses),
		config.outputShapes(config.OffsetOutputs, 4)...,
	)
	for i, shape := range shapes {
		out, err := ort.NewEmptyTensor[float32](ort.NewShape(shape...))
		if err != nil {
			return fail(errors.Wrapf(err, "error creating output tensor %s", outputNames[i]))
		}
		s.Outputs = append(s.Outputs, out)
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		return fail(errors.Wrap(err, "error creating ORT session options"))
	}
	defer options.Destroy()

	if err := configureOptions(options, config); err != nil {
		return fail(err)
	}

	inputs := []ort.ArbitraryTensor{input}
	outputs := make([]ort.ArbitraryTensor, len(s.Outputs))
	for i, t := range s.Outputs {
		outputs[i] = t
	}

	s.Session, err = ort.NewAdvancedSession(
		config.ModelPath,
		[]string{config.InputName},
		outputNames,
		inputs,
		outputs,
		options,
	)
	if err != nil {
		return fail(errors.Wrap(err, "error creating ORT session"))
	}
	return s, nil
}

func configureOptions(options *ort.SessionOptions, config Config) error {
	if config.IntraOpThreads > 0 {
		if err := options.SetIntraOpNumThreads(config.IntraOpThreads); err != nil {
			return errors.Wrap(err, "error setting intra-op threads")
		}
	}
	if config.InterOpThreads > 0 {
		if err := options.SetInterOpNumThreads(config.InterOpThreads); err != nil {
			return errors.Wrap(err, "error setting inter-op threads")
		}
	}
	if err := options.SetGraphOptimizationLevel(ort.GraphOptimizationLevelEnableExtended); err != nil {
		return errors.Wrap(err, "error setting graph optimization level")
	}

	provider, err := inference.ParseExecutionProvider(string(config.Provider))
	if err != nil {
		return err
	}
	switch provider {
	case inference.ExecutionProviderCoreML:
		if err := options.AppendExecutionProviderCoreML(0); err != nil {
			return errors.Wrap(err, "error enabling CoreML")
		}
	case inference.ExecutionProviderOpenVINO:
		err := options.AppendExecutionProviderOpenVINO(map[string]string{
			"device_type": "CPU",
			"precision":   "FP32",
		})
		if err != nil {
			return errors.Wrap(err, "error enabling OpenVINO")
		}
	case inference.ExecutionProviderCUDA:
		cuda, err := ort.NewCUDAProviderOptions()
		if err != nil {
			return errors.Wrap(err, "error creating CUDA options")
		}
		defer cuda.Destroy()
		if err := cuda.Update(map[string]string{"device_id": "0"}); err != nil {
			return errors.Wrap(err, "error configuring CUDA")
		}
		if err := options.AppendExecutionProviderCUDA(cuda); err != nil {
			return errors.Wrap(err, "error enabling CUDA")
		}
	}
	return nil
}

// Infer runs the network on one preprocessed frame.
//
// Per-layer outputs are concatenated in layer order, which is the order of the prior boxes
// returned by Anchors. The returned tensors own their data.
func (d *SSD) Infer(ctx context.Context, input *tensor.Dense) (*inference.Prediction, error) {
	if d.session == nil {
		return nil, errors.New("detector is closed")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	numAnchors := d.config.Params.NumAnchors()
	scores := make([]float32, 0, numAnchors*d.numScores)
	offsets := make([]float32, 0, numAnchors*4)

	fill := func(inputs []*ort.Tensor[float32]) error {
		dst := inputs[0].GetData()
		src := input.Float32s()
		if len(src) != len(dst) {
			return errors.Errorf("input holds %d values, model expects %d", len(src), len(dst))
		}
		copy(dst, src)
		return nil
	}
	read := func(outputs []*ort.Tensor[float32]) error {
		split := len(d.config.ScoreOutputs)
		for _, t := range outputs[:split] {
			scores = append(scores, t.GetData()...)
		}
		for _, t := range outputs[split:] {
			offsets = append(offsets, t.GetData()...)
		}
		return nil
	}

	if err := d.session.Run(fill, read); err != nil {
		return nil, err
	}
	if len(scores) != numAnchors*d.numScores || len(offsets) != numAnchors*4 {
		return nil, errors.Errorf("model produced %d scores and %d offsets for %d anchors",
			len(scores), len(offsets), numAnchors)
	}

	if d.config.ApplySoftmax {
		inference.Softmax(scores, d.numScores)
	}

	return &inference.Prediction{
		Scores:  tensor.New(tensor.WithShape(numAnchors, d.numScores), tensor.WithBacking(scores)),
		Offsets: tensor.New(tensor.WithShape(numAnchors, 4), tensor.WithBacking(offsets)),
	}, nil
}

// Anchors returns the prior boxes of the configured head.
func (d *SSD) Anchors(inputShape image.Point) (*anchors.Geometry, error) {
	return d.config.Params.Anchors(inputShape)
}

// Metrics returns the session run statistics.
func (d *SSD) Metrics() inference.SessionMetrics {
	if d.session == nil {
		return inference.SessionMetrics{}
	}
	return d.session.Metrics()
}

// Close releases the session and its tensors.
func (d *SSD) Close() error {
	if d.session == nil {
		return nil
	}
	err := d.session.Close()
	d.session = nil
	if d.logger != nil {
		d.logger.Info("🔒 SSD detector closed")
	}
	return err
}

// Package stream - Drives a video through the detection pipeline frame by frame.
package stream

import (
	"context"
	"image"
	"io"
	"io/fs"
	"os"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.uber.org/multierr"

	"github.com/nvr-ai/ssd-video/inference"
	"github.com/nvr-ai/ssd-video/models/anchors"
	"github.com/nvr-ai/ssd-video/models/model/preprocess"
	"github.com/nvr-ai/ssd-video/models/postprocess"
	"github.com/nvr-ai/ssd-video/profiler"
	"github.com/nvr-ai/ssd-video/render"
	"github.com/nvr-ai/ssd-video/video"
)

// DefaultOutputPath is where the annotated video is written.
const DefaultOutputPath = "./output.avi"

// Stage names reported by the profiler.
const (
	StagePrepare     = "prepare"
	StageInfer       = "infer"
	StagePostprocess = "postprocess"
	StageRender      = "render"
	StageWrite       = "write"
)

// Preparer maps a frame onto the detector input.
type Preparer interface {
	Prepare(img image.Image) (*preprocess.Result, error)
	InputShape() image.Point
}

// Renderer draws detections on a frame.
type Renderer interface {
	Render(canvas render.Canvas, detections []postprocess.Result) error
}

// Config controls a run.
type Config struct {
	// OutputPath is the annotated video. If it already exists nothing is written.
	OutputPath string `json:"output_path" yaml:"output_path"`
	// Postprocess holds the detection thresholds.
	Postprocess postprocess.Config `json:"postprocess" yaml:"postprocess"`
}

// DefaultConfig returns the default output path and thresholds.
func DefaultConfig() Config {
	return Config{
		OutputPath:  DefaultOutputPath,
		Postprocess: postprocess.DefaultConfig(),
	}
}

// Dependencies are the collaborators of an Orchestrator.
type Dependencies struct {
	OpenSource video.SourceOpener
	OpenSink   video.SinkOpener
	Preparer   Preparer
	Detector   inference.Detector
	Renderer   Renderer
	// Logger defaults to the logrus standard logger.
	Logger logrus.FieldLogger
	// Clock defaults to the wall clock.
	Clock clock.Clock
}

// RunStats summarizes a run.
type RunStats struct {
	State           State                     `json:"state"`
	FramesProcessed int                       `json:"frames_processed"`
	FramesWritten   int                       `json:"frames_written"`
	Detections      int                       `json:"detections"`
	SinkSkipped     bool                      `json:"sink_skipped"`
	Start           time.Time                 `json:"start"`
	Elapsed         time.Duration             `json:"elapsed"`
	FPS             float64                   `json:"fps"`
	Stages          []profiler.OperationStats `json:"stages"`
	// ReleaseErr combines the errors of closing the source and the sink. It never replaces
	// the error returned by Run.
	ReleaseErr error `json:"-"`
}

// Orchestrator owns the source and sink of one run and pushes every frame through
// preprocessing, inference, post-processing and rendering.
type Orchestrator struct {
	config Config
	deps   Dependencies
	logger logrus.FieldLogger
}

// New validates the configuration and the collaborators.
func New(config Config, deps Dependencies) (*Orchestrator, error) {
	switch {
	case deps.OpenSource == nil:
		return nil, errors.New("source opener is required")
	case deps.OpenSink == nil:
		return nil, errors.New("sink opener is required")
	case deps.Preparer == nil:
		return nil, errors.New("preparer is required")
	case deps.Detector == nil:
		return nil, errors.New("detector is required")
	case deps.Renderer == nil:
		return nil, errors.New("renderer is required")
	}
	if config.OutputPath == "" {
		config.OutputPath = DefaultOutputPath
	}
	if err := config.Postprocess.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid postprocess config")
	}
	if deps.Logger == nil {
		deps.Logger = logrus.StandardLogger()
	}
	if deps.Clock == nil {
		deps.Clock = clock.New()
	}

	return &Orchestrator{config: config, deps: deps, logger: deps.Logger}, nil
}

// Run processes the whole source.
//
// The run ends Drained when the source is exhausted, a read fails or ctx is cancelled
// between frames, and Failed when the source cannot be opened or a collaborator returns an
// error. The source and the sink are released on every path.
//
// Returns:
//   - *RunStats: Always non-nil, including on failure.
//   - error: The reason the run failed, nil when it drained.
func (o *Orchestrator) Run(ctx context.Context) (stats *RunStats, err error) {
	clk := o.deps.Clock
	stats = &RunStats{State: StateInit, Start: clk.Now()}
	prof := profiler.NewStageProfiler(clk)

	// Registered first so it runs after the source and sink are released, on every path.
	defer func() {
		stats.Elapsed = clk.Since(stats.Start)
		stats.FPS = fps(stats.FramesProcessed, stats.Elapsed)
		stats.Stages = prof.Stats()
		prof.Report(o.logger)
		o.logger.WithFields(logrus.Fields{
			"state":   stats.State,
			"frames":  stats.FramesProcessed,
			"written": stats.FramesWritten,
			"elapsed": stats.Elapsed,
		}).Infof("FPS: %.2f", stats.FPS)
	}()

	fail := func(cause error) (*RunStats, error) {
		o.transition(stats, StateFailed)
		return stats, cause
	}

	source, err := o.deps.OpenSource()
	if err != nil {
		if !errors.Is(err, video.ErrSourceUnavailable) {
			err = multierr.Combine(video.ErrSourceUnavailable, err)
		}
		o.logger.WithError(err).Error("couldn't open video file or webcam")
		return fail(err)
	}
	defer func() {
		if cerr := source.Close(); cerr != nil {
			o.logger.WithError(cerr).Warn("failed to release source")
			stats.ReleaseErr = multierr.Append(stats.ReleaseErr, cerr)
		}
	}()

	props := source.Properties()
	o.logger.WithFields(logrus.Fields{
		"width":  props.Width,
		"height": props.Height,
		"fps":    props.FPS,
	}).Info("🎯 source opened")

	geom, err := o.deps.Detector.Anchors(o.deps.Preparer.InputShape())
	if err != nil {
		return fail(errors.Wrap(err, "failed to build anchors"))
	}

	sink, err := o.openSink(props)
	if err != nil {
		return fail(err)
	}
	if sink == nil {
		stats.SinkSkipped = true
	} else {
		defer func() {
			if cerr := sink.Close(); cerr != nil {
				o.logger.WithError(cerr).Warn("failed to release sink")
				stats.ReleaseErr = multierr.Append(stats.ReleaseErr, cerr)
			}
		}()
	}

	o.transition(stats, StateRunning)

	for {
		if cerr := ctx.Err(); cerr != nil {
			o.logger.WithError(cerr).Info("stopping")
			break
		}

		frame, rerr := source.Read()
		if rerr != nil {
			if !errors.Is(rerr, io.EOF) {
				o.logger.WithError(rerr).Warn("read failed, draining")
			}
			break
		}

		perr := o.processFrame(ctx, frame, geom, sink, stats, prof)
		if cerr := frame.Close(); cerr != nil {
			o.logger.WithError(cerr).Debug("failed to release frame")
		}
		if perr != nil {
			o.logger.WithError(perr).WithField("frame", stats.FramesProcessed+1).Error("frame failed")
			return fail(perr)
		}
	}

	o.logger.Info("Done!")
	o.transition(stats, StateDrained)
	return stats, nil
}

// openSink applies the existing-output guard. It returns a nil sink when the output exists.
func (o *Orchestrator) openSink(props video.Properties) (video.Sink, error) {
	path := o.config.OutputPath
	_, err := os.Stat(path)
	switch {
	case err == nil:
		o.logger.WithField("path", path).Warn("output already exists, frames will not be written")
		return nil, nil
	case !errors.Is(err, fs.ErrNotExist):
		return nil, errors.Wrapf(err, "failed to check output %s", path)
	}

	sink, err := o.deps.OpenSink(path, props)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open output %s", path)
	}
	o.logger.WithField("path", path).Info("✅ output opened")
	return sink, nil
}

func (o *Orchestrator) processFrame(
	ctx context.Context,
	frame video.Frame,
	geom *anchors.Geometry,
	sink video.Sink,
	stats *RunStats,
	prof *profiler.StageProfiler,
) error {
	done := prof.StartOperation(StagePrepare)
	img, err := frame.Image()
	if err != nil {
		return errors.Wrap(err, "failed to read frame pixels")
	}
	prepared, err := o.deps.Preparer.Prepare(img)
	done()
	if err != nil {
		return errors.Wrap(err, "failed to prepare frame")
	}

	done = prof.StartOperation(StageInfer)
	prediction, err := o.deps.Detector.Infer(ctx, prepared.Tensor)
	done()
	if err != nil {
		return errors.Wrap(err, "inference failed")
	}

	done = prof.StartOperation(StagePostprocess)
	detections, err := postprocess.Process(
		prediction.Scores,
		prediction.Offsets,
		geom,
		prepared.Reference,
		&o.config.Postprocess,
	)
	done()
	if err != nil {
		return err
	}

	done = prof.StartOperation(StageRender)
	err = o.deps.Renderer.Render(frame, detections)
	done()
	if err != nil {
		return errors.Wrap(err, "failed to render detections")
	}

	stats.FramesProcessed++
	stats.Detections += len(detections)
	o.logger.WithFields(logrus.Fields{
		"frame":      stats.FramesProcessed,
		"detections": len(detections),
	}).Debug("frame processed")

	if sink == nil {
		return nil
	}
	done = prof.StartOperation(StageWrite)
	err = sink.Write(frame)
	done()
	if err != nil {
		return errors.Wrap(err, "failed to write frame")
	}
	stats.FramesWritten++
	return nil
}

func (o *Orchestrator) transition(stats *RunStats, to State) {
	o.logger.WithFields(logrus.Fields{"from": stats.State, "to": to}).Debug("state change")
	stats.State = to
}

// fps returns frames per second, or 0 when it is undefined.
func fps(frames int, elapsed time.Duration) float64 {
	if frames == 0 || elapsed <= 0 {
		return 0
	}
	return float64(frames) / elapsed.Seconds()
}

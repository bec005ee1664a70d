// Package app - The ssdvideo command line: flags, configuration and pipeline wiring.
package app

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"

	"github.com/nvr-ai/ssd-video/config"
	"github.com/nvr-ai/ssd-video/inference"
	"github.com/nvr-ai/ssd-video/inference/detectors"
	"github.com/nvr-ai/ssd-video/models"
	"github.com/nvr-ai/ssd-video/models/model/preprocess"
	"github.com/nvr-ai/ssd-video/render"
	"github.com/nvr-ai/ssd-video/stream"
	"github.com/nvr-ai/ssd-video/video"
)

const (
	flagOutput   = "output"
	flagConfig   = "config"
	flagModel    = "model"
	flagLogLevel = "log-level"

	// exitUsage is returned when the command line is malformed.
	exitUsage = 2
)

// Devices opens the video files and cameras the command reads and writes.
type Devices struct {
	// OpenCapture opens a video path or a camera index.
	OpenCapture func(target string) (video.Source, error)
	// OpenWriter creates the annotated output video.
	OpenWriter video.SinkOpener
}

// New builds the ssdvideo command.
func New(logger *logrus.Logger, devices Devices) *cli.App {
	return &cli.App{
		Name:      "ssdvideo",
		Usage:     "annotate a video with SSD300 object detections",
		UsageText: "ssdvideo [options] <video-file | camera-index | frame-directory>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    flagOutput,
				Aliases: []string{"o"},
				Usage:   "annotated video `PATH`; nothing is written if it already exists",
			},
			&cli.StringFlag{
				Name:    flagConfig,
				Aliases: []string{"c"},
				Usage:   "YAML configuration `FILE`",
			},
			&cli.StringFlag{
				Name:  flagModel,
				Usage: "SSD300 ONNX model `PATH`",
			},
			&cli.StringFlag{
				Name:  flagLogLevel,
				Usage: "log `LEVEL` (trace, debug, info, warn, error)",
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				_ = cli.ShowAppHelp(c)
				return cli.Exit("expected exactly one input", exitUsage)
			}
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			logger.SetLevel(cfg.Level())

			ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, c.Args().First(), cfg, devices, logger)
		},
	}
}

// loadConfig reads the configuration file and applies the command line overrides.
func loadConfig(c *cli.Context) (config.Config, error) {
	cfg, err := config.Load(c.String(flagConfig))
	if err != nil {
		return config.Config{}, err
	}
	if c.IsSet(flagOutput) {
		cfg.Output = c.String(flagOutput)
	}
	if c.IsSet(flagModel) {
		cfg.Detector.ModelPath = c.String(flagModel)
	}
	if c.IsSet(flagLogLevel) {
		cfg.LogLevel = c.String(flagLogLevel)
	}
	return cfg, cfg.Validate()
}

// sourceOpener picks the frame directory reader or the capture device for input.
func sourceOpener(input string, fps float64, openCapture func(string) (video.Source, error)) video.SourceOpener {
	return func() (video.Source, error) {
		if info, err := os.Stat(input); err == nil && info.IsDir() {
			src, err := video.OpenSequence(input, fps)
			if err != nil {
				return nil, err
			}
			return src, nil
		}
		if openCapture == nil {
			return nil, errors.Wrapf(video.ErrSourceUnavailable, "%s: no capture device support", input)
		}
		return openCapture(input)
	}
}

// run wires the pipeline for one input and blocks until it drains or fails.
func run(ctx context.Context, input string, cfg config.Config, devices Devices, logger *logrus.Logger) (err error) {
	prepCfg := preprocess.GetSSD300Config()
	prepCfg.KeepAspectRatio = cfg.Letterbox
	preparer, err := preprocess.NewPreprocessor(prepCfg, logger)
	if err != nil {
		return errors.Wrap(err, "failed to create preprocessor")
	}

	classes := models.VOCClasses()
	renderer, err := render.NewRenderer(classes, render.NewPalette(classes.Len(), cfg.PaletteSeed))
	if err != nil {
		return errors.Wrap(err, "failed to create renderer")
	}

	detector, err := detectors.NewSSD(cfg.Detector, logger)
	if err != nil {
		return errors.Wrap(err, "failed to load detector")
	}
	defer func() {
		err = multierr.Append(err, detector.Close())
	}()

	orchestrator, err := stream.New(
		stream.Config{OutputPath: cfg.Output, Postprocess: cfg.Postprocess},
		stream.Dependencies{
			OpenSource: sourceOpener(input, cfg.SequenceFPS, devices.OpenCapture),
			OpenSink:   devices.OpenWriter,
			Preparer:   preparer,
			Detector:   detector,
			Renderer:   renderer,
			Logger:     logger,
		},
	)
	if err != nil {
		return err
	}

	stats, err := orchestrator.Run(ctx)
	report(logger, stats, detector.Metrics())
	if err != nil {
		return err
	}
	if stats.ReleaseErr != nil {
		logger.WithError(stats.ReleaseErr).Warn("resources were not released cleanly")
	}
	return nil
}

func report(logger logrus.FieldLogger, stats *stream.RunStats, metrics inference.SessionMetrics) {
	if stats == nil {
		return
	}
	logger.WithFields(logrus.Fields{
		"state":        stats.State,
		"frames":       stats.FramesProcessed,
		"written":      stats.FramesWritten,
		"detections":   stats.Detections,
		"sink_skipped": stats.SinkSkipped,
		"fps":          stats.FPS,
	}).Info("📊 run summary")
	logger.WithFields(logrus.Fields{
		"inferences": metrics.InferenceCount,
		"average":    metrics.AverageTime,
	}).Debug("session metrics")
}

// Package main is the ssdvideo command: it annotates a video with SSD300 detections.
package main

import (
	"os"

	"github.com/sirupsen/logrus"

	"github.com/nvr-ai/ssd-video/cmd/ssdvideo/app"
	"github.com/nvr-ai/ssd-video/video"
	"github.com/nvr-ai/ssd-video/video/cv"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	devices := app.Devices{
		OpenCapture: func(target string) (video.Source, error) {
			src, err := cv.OpenCapture(target)
			if err != nil {
				return nil, err
			}
			return src, nil
		},
		OpenWriter: cv.OpenWriter,
	}
	if err := app.New(logger, devices).Run(os.Args); err != nil {
		logger.WithError(err).Error("run failed")
		os.Exit(1)
	}
}

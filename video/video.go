// Package video - Frame sources and sinks for the annotation pipeline.
package video

import (
	"image"

	"github.com/pkg/errors"

	"github.com/nvr-ai/ssd-video/render"
)

// ErrSourceUnavailable is returned when a video source cannot be opened.
var ErrSourceUnavailable = errors.New("video source unavailable")

// Frame is one decoded picture. It is drawn on in place and owned by whoever holds it; the
// holder must Close it.
type Frame interface {
	render.Canvas
	// Image returns a read view of the frame for preprocessing.
	Image() (image.Image, error)
	// Close releases the frame buffer.
	Close() error
}

// Properties describes a stream.
type Properties struct {
	Width  int     `json:"width" yaml:"width"`
	Height int     `json:"height" yaml:"height"`
	FPS    float64 `json:"fps" yaml:"fps"`
}

// Source produces frames in order.
type Source interface {
	// Read returns the next frame, or io.EOF once the stream is exhausted.
	Read() (Frame, error)
	// Properties returns the stream dimensions and rate.
	Properties() Properties
	// Close releases the source.
	Close() error
}

// Sink consumes annotated frames. It does not take ownership of the frame.
type Sink interface {
	Write(frame Frame) error
	Close() error
}

// SourceOpener opens the source a run reads from.
type SourceOpener func() (Source, error)

// SinkOpener creates the sink a run writes to at path, sized after the source.
type SinkOpener func(path string, props Properties) (Sink, error)

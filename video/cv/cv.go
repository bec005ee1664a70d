// Package cv - OpenCV (gocv) video capture, writer and frames.
package cv

import (
	"image"
	"image/color"
	"io"
	"strconv"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"

	"github.com/nvr-ai/ssd-video/video"
)

// FourCC is the codec of written videos.
const FourCC = "mp4v"

// MatFrame is a frame backed by an OpenCV Mat in BGR order.
type MatFrame struct {
	mat gocv.Mat
}

var _ video.Frame = (*MatFrame)(nil)

// Size returns the frame width and height.
func (f *MatFrame) Size() image.Point {
	return image.Pt(f.mat.Cols(), f.mat.Rows())
}

// DrawRectangle strokes r.
func (f *MatFrame) DrawRectangle(r image.Rectangle, c color.RGBA, thickness int) {
	gocv.Rectangle(&f.mat, r, c, thickness)
}

// FillRectangle fills r.
func (f *MatFrame) FillRectangle(r image.Rectangle, c color.RGBA) {
	gocv.Rectangle(&f.mat, r, c, -1)
}

// DrawText draws text in the plain Hershey font.
func (f *MatFrame) DrawText(text string, origin image.Point, c color.RGBA) {
	gocv.PutText(&f.mat, text, origin, gocv.FontHersheyPlain, 1, c, 1)
}

// Image converts the Mat to a Go image.
func (f *MatFrame) Image() (image.Image, error) {
	return f.mat.ToImage()
}

// Close releases the Mat.
func (f *MatFrame) Close() error {
	return f.mat.Close()
}

// CaptureSource reads frames from a video file or a camera.
type CaptureSource struct {
	capture *gocv.VideoCapture
	props   video.Properties
}

var _ video.Source = (*CaptureSource)(nil)

// OpenCapture opens target, a video path or an integer camera index.
//
// Returns:
//   - *CaptureSource: The opened source.
//   - error: video.ErrSourceUnavailable if the capture cannot be opened.
func OpenCapture(target string) (*CaptureSource, error) {
	var device interface{} = target
	if idx, err := strconv.Atoi(target); err == nil {
		device = idx
	}

	capture, err := gocv.OpenVideoCapture(device)
	if err != nil {
		return nil, errors.Wrapf(video.ErrSourceUnavailable, "%s: %v", target, err)
	}
	if !capture.IsOpened() {
		capture.Close()
		return nil, errors.Wrapf(video.ErrSourceUnavailable, "%s: could not open video file or webcam", target)
	}

	return &CaptureSource{
		capture: capture,
		props: video.Properties{
			Width:  int(capture.Get(gocv.VideoCaptureFrameWidth)),
			Height: int(capture.Get(gocv.VideoCaptureFrameHeight)),
			FPS:    capture.Get(gocv.VideoCaptureFPS),
		},
	}, nil
}

// Read returns the next frame, or io.EOF when the capture yields no more.
func (s *CaptureSource) Read() (video.Frame, error) {
	mat := gocv.NewMat()
	if ok := s.capture.Read(&mat); !ok || mat.Empty() {
		mat.Close()
		return nil, io.EOF
	}
	return &MatFrame{mat: mat}, nil
}

// Properties returns the probed width, height and rate.
func (s *CaptureSource) Properties() video.Properties {
	return s.props
}

// Close releases the capture.
func (s *CaptureSource) Close() error {
	return s.capture.Close()
}

// WriterSink encodes frames into a video file.
type WriterSink struct {
	writer *gocv.VideoWriter
}

var _ video.Sink = (*WriterSink)(nil)

// OpenWriter creates the video file at path. It has the video.SinkOpener signature.
func OpenWriter(path string, props video.Properties) (video.Sink, error) {
	fps := props.FPS
	if fps <= 0 {
		fps = video.DefaultSequenceFPS
	}
	writer, err := gocv.VideoWriterFile(path, FourCC, fps, props.Width, props.Height, true)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open video writer %s", path)
	}
	if !writer.IsOpened() {
		writer.Close()
		return nil, errors.Errorf("failed to open video writer %s", path)
	}
	return &WriterSink{writer: writer}, nil
}

// Write encodes one frame. Frames that are not Mats are converted first.
func (s *WriterSink) Write(frame video.Frame) error {
	if f, ok := frame.(*MatFrame); ok {
		return s.writer.Write(f.mat)
	}

	img, err := frame.Image()
	if err != nil {
		return errors.Wrap(err, "failed to read frame")
	}
	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return errors.Wrap(err, "failed to convert frame")
	}
	defer mat.Close()
	return s.writer.Write(mat)
}

// Close finalizes the file.
func (s *WriterSink) Close() error {
	return s.writer.Close()
}
